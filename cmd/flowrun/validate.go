package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

type validateOptions struct {
	BoardPath string
}

func newValidateCmd(root *rootFlags) *cobra.Command {
	opts := validateOptions{}

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Parse and repair a board document without executing it",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(root, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.BoardPath, "board", "b", "", "path to the board document")
	cmd.MarkFlagRequired("board") //nolint:errcheck

	return cmd
}

func runValidate(root *rootFlags, opts validateOptions) error {
	log := newLogger(root.verbose)

	b, err := loadBoard(opts.BoardPath)
	if err != nil {
		return err
	}

	report := b.FixPinsSetLayer()
	log.Info().
		Str("board_id", b.ID).
		Int("nodes", len(b.Nodes)).
		Int("layers", len(b.Layers)).
		Int("orphaned_edges_removed", report.OrphanedEdgesRemoved).
		Int("bridge_pins_synthesized", report.BridgePinsSynthesized).
		Msg("board validated")

	fmt.Printf("board %q: %d nodes, %d layers, repair=%+v\n", b.Name, len(b.Nodes), len(b.Layers), report)
	return nil
}
