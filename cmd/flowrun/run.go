package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

type runOptions struct {
	BoardPath string
	EntryID   string
}

func newRunCmd(root *rootFlags) *cobra.Command {
	opts := runOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Execute a board document to completion",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExecute(root, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.BoardPath, "board", "b", "", "path to the board document")
	cmd.Flags().StringVarP(&opts.EntryID, "entry", "e", "", "entry node id")
	cmd.MarkFlagRequired("board") //nolint:errcheck
	cmd.MarkFlagRequired("entry") //nolint:errcheck

	return cmd
}

func runExecute(root *rootFlags, opts runOptions) error {
	log := newLogger(root.verbose)

	run, store, err := buildRun(opts.BoardPath, opts.EntryID, root.storePath)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err = run.Execute(ctx)
	if ctx.Err() != nil {
		run.Cancel(context.Background())
	}
	logTraceSummary(log, run)
	return err
}
