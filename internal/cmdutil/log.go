// Package cmdutil holds the plain stderr diagnostics used by commands.
package cmdutil

import (
	"fmt"
	"io"
)

// Warnf prints "WARN: ..." unless quiet.
func Warnf(dst io.Writer, quiet bool, format string, a ...any) {
	if quiet {
		return
	}
	_, _ = fmt.Fprintf(dst, "WARN: "+format+"\n", a...)
}

// Errorf prints "error: ..." regardless of quiet.
func Errorf(dst io.Writer, format string, a ...any) {
	_, _ = fmt.Fprintf(dst, "error: "+format+"\n", a...)
}
