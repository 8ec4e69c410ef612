package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"github.com/flowcore-run/flowcore/internal/nodelogic"
	"github.com/flowcore-run/flowcore/internal/runtime"
	"github.com/flowcore-run/flowcore/internal/telemetry"
	"github.com/flowcore-run/flowcore/pkg/board"
)

// loadBoard decodes a board document from path.
func loadBoard(path string) (*board.Board, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read board %q: %w", path, err)
	}
	b, err := board.FromJSON(data)
	if err != nil {
		return nil, fmt.Errorf("parse board %q: %w", path, err)
	}
	return b, nil
}

// buildRun wires a board, the reference node-logic catalog, and a
// columnar store into a single InternalRun ready to execute.
func buildRun(boardPath, entryID, storePath string) (*runtime.InternalRun, *telemetry.Store, error) {
	b, err := loadBoard(boardPath)
	if err != nil {
		return nil, nil, err
	}

	store, err := telemetry.Open(storePath)
	if err != nil {
		return nil, nil, fmt.Errorf("open trace store %q: %w", storePath, err)
	}

	payload := runtime.RunPayload{ID: entryID}
	run, err := runtime.New(b, nodelogic.Registry(), payload, runtime.DefaultConfig(), store)
	if err != nil {
		_ = store.Close()
		return nil, nil, fmt.Errorf("construct run: %w", err)
	}
	return run, store, nil
}

// logTraceSummary prints a one-line-per-node summary of the run's final
// state, the CLI's replacement for a live WebSocket debug stream.
func logTraceSummary(log zerolog.Logger, run *runtime.InternalRun) {
	meta := run.Meta()
	log.Info().
		Str("run_id", meta.RunID).
		Str("board_id", meta.BoardID).
		Str("status", run.Status.String()).
		Uint64("log_count", run.LogCount).
		Str("highest_level", run.HighestLevel.String()).
		Msg("run finished")

	for nodeID, level := range run.VisitedNodes {
		log.Debug().Str("node_id", nodeID).Str("level", level.String()).Msg("node visited")
	}
}
