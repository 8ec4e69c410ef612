package main

import (
	"context"

	"github.com/spf13/cobra"
)

type stepOptions struct {
	BoardPath string
	EntryID   string
	MaxSteps  int
}

func newStepCmd(root *rootFlags) *cobra.Command {
	opts := stepOptions{}

	cmd := &cobra.Command{
		Use:   "step",
		Short: "Advance a board one frontier generation at a time, logging each step",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStep(root, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.BoardPath, "board", "b", "", "path to the board document")
	cmd.Flags().StringVarP(&opts.EntryID, "entry", "e", "", "entry node id")
	cmd.Flags().IntVar(&opts.MaxSteps, "max-steps", 1000, "stop after this many generations even if the frontier hasn't drained")
	cmd.MarkFlagRequired("board") //nolint:errcheck
	cmd.MarkFlagRequired("entry") //nolint:errcheck

	return cmd
}

func runStep(root *rootFlags, opts stepOptions) error {
	log := newLogger(root.verbose)

	run, store, err := buildRun(opts.BoardPath, opts.EntryID, root.storePath)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := context.Background()
	for i := 0; i < opts.MaxSteps; i++ {
		progressed, err := run.DebugStep(ctx)
		if err != nil {
			logTraceSummary(log, run)
			return err
		}
		if !progressed {
			log.Debug().Int("generation", i).Msg("frontier drained")
			break
		}
		log.Info().Int("generation", i).Msg("advanced one frontier generation")
	}

	run.Flush(ctx)
	logTraceSummary(log, run)
	return nil
}
