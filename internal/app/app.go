// Package app is the process entry point behind cmd/phredmean.
package app

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"phredmean/internal/appcore"
	"phredmean/internal/cli"
	"phredmean/internal/writers"
)

// RunIO executes argv and returns the exit code.
func RunIO(parent context.Context, argv []string, stdin io.Reader, stdout, stderr io.Writer) int {
	outw := bufio.NewWriter(stdout)

	root := cli.NewRootCommand(cli.Env{Stdin: stdin, Stdout: outw, Stderr: stderr})
	root.SetArgs(argv)
	err := root.ExecuteContext(parent)

	if e := outw.Flush(); writers.IsBrokenPipe(e) {
		return appcore.ExitOK
	} else if e != nil {
		_, _ = fmt.Fprintln(stderr, e)
		return appcore.ExitFailure
	}

	var ee *cli.ExitError
	switch {
	case err == nil:
		return appcore.ExitOK
	case errors.As(err, &ee):
		return ee.Code
	case errors.Is(err, context.Canceled):
		return appcore.ExitCancelled
	default:
		// cobra argument and flag errors
		_, _ = fmt.Fprintf(stderr, "error: %v\nRun 'phredmean --help' for usage.\n", err)
		return appcore.ExitUsage
	}
}

// RunContext executes argv with the process stdin.
func RunContext(parent context.Context, argv []string, stdout, stderr io.Writer) int {
	return RunIO(parent, argv, os.Stdin, stdout, stderr)
}

func Run(argv []string, stdout, stderr io.Writer) int {
	return RunContext(context.Background(), argv, stdout, stderr)
}
