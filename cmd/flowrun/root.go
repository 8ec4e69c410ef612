package main

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/flowcore-run/flowcore/internal/tracing"
)

// rootFlags are shared across every subcommand, the way Streamy's
// newRootCmd threads a single flags struct into each leaf constructor.
type rootFlags struct {
	verbose   bool
	storePath string
	trace     bool

	tracingProvider *tracing.Provider
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}

	cmd := &cobra.Command{
		Use:           "flowrun",
		Short:         "flowrun loads a board document and drives its execution engine",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if flags.trace {
				flags.tracingProvider = tracing.New("flowrun")
			}
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if flags.tracingProvider != nil {
				_ = flags.tracingProvider.Shutdown(cmd.Context())
			}
		},
	}

	cmd.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "enable debug-level logging")
	cmd.PersistentFlags().StringVar(&flags.storePath, "store", "flowrun.db", "columnar trace store path")
	cmd.PersistentFlags().BoolVar(&flags.trace, "trace", false, "record an OpenTelemetry span per node trigger")

	cmd.AddCommand(newValidateCmd(flags))
	cmd.AddCommand(newRunCmd(flags))
	cmd.AddCommand(newStepCmd(flags))

	return cmd
}

func newLogger(verbose bool) zerolog.Logger {
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}).
		Level(level).
		With().Timestamp().Logger()
}
