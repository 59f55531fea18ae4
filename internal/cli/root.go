// Package cli defines the phredmean command tree.
package cli

import (
	"fmt"
	"io"

	"github.com/go-kit/log"
	"github.com/spf13/cobra"

	"phredmean/internal/appcore"
	"phredmean/internal/config"
	"phredmean/internal/logging"
	"phredmean/internal/version"
)

// Env carries the process streams into the commands.
type Env struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// ExitError ends a command with a non-zero exit code. The failure has
// already been reported.
type ExitError struct{ Code int }

func (e *ExitError) Error() string { return fmt.Sprintf("exit status %d", e.Code) }

func exit(code int) error {
	if code == appcore.ExitOK {
		return nil
	}
	return &ExitError{Code: code}
}

// globals is shared by every command. Flags of all commands bind into one
// config.Effective; only the executing command's flags are parsed.
type globals struct {
	env        Env
	configPath string
	flags      config.Effective
}

// NewRootCommand builds the command tree.
func NewRootCommand(env Env) *cobra.Command {
	g := &globals{env: env, flags: config.Defaults()}

	root := &cobra.Command{
		Use:   "phredmean",
		Short: "Per-position mean Phred quality of FASTQ files",
		Long: `phredmean splits FASTQ files into byte ranges, computes per-position quality
sums on local or remote workers, and reduces them to the mean Phred score of
every read position.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.CompletionOptions.DisableDefaultCmd = true
	root.SetIn(env.Stdin)
	root.SetOut(env.Stdout)
	root.SetErr(env.Stderr)

	pf := root.PersistentFlags()
	pf.StringVar(&g.configPath, "config", "", "YAML config file (default $"+config.EnvConfig+")")
	pf.StringVar(&g.flags.LogLevel, config.FlagLogLevel, g.flags.LogLevel, "log level: debug, info, warn, error, none")
	pf.StringVar(&g.flags.LogFormat, config.FlagLogFormat, g.flags.LogFormat, "log format: logfmt or json")

	root.AddCommand(
		newRunCommand(g),
		newServeCommand(g),
		newWorkCommand(g),
		newPlanCommand(g),
		newChunkCommand(g),
		newCombineCommand(g),
		newVersionCommand(g),
	)
	return root
}

// load merges the config file with the flags given to cmd and builds the
// logger.
func (g *globals) load(cmd *cobra.Command) (config.Effective, log.Logger, error) {
	eff, err := config.Load(g.configPath, g.flags, cmd.Flags().Changed)
	if err != nil {
		return eff, nil, err
	}
	logger, err := logging.New(g.env.Stderr, eff.LogFormat, eff.LogLevel)
	if err != nil {
		return eff, nil, appcore.Usage(err)
	}
	return eff, log.With(logger, "cmd", cmd.Name()), nil
}

// fail reports err and turns it into an exit.
func (g *globals) fail(err error) error {
	appcore.Report(g.env.Stderr, err)
	return exit(appcore.ExitCode(err))
}

func newVersionCommand(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintf(g.env.Stdout, "phredmean version %s\n", version.Version)
			return err
		},
	}
}
