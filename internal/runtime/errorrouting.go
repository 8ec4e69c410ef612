package runtime

import (
	"context"

	"github.com/flowcore-run/flowcore/pkg/value"
)

// routeError implements §4.5 points 2-5: if the failing node declares an
// auto_handle_error output, bind the error string and walk its connected
// handlers as an independent chain; otherwise surface ExecutionFailed so
// the caller can terminate just this frontier branch.
func (r *InternalRun) routeError(ctx context.Context, ts *triggerState, node *InternalNode, ec *execContext, cause error) error {
	if !node.hasAutoHandleError {
		return ExecutionFailed(node.ID, cause)
	}
	pin, ok := node.Pins[node.autoHandleErrorPin]
	if !ok || len(pin.connectedTo) == 0 {
		// Declared but unwired: §4.5 point 5, "if no handler exists, the
		// error is surfaced to the scheduler".
		return ExecutionFailed(node.ID, cause)
	}

	if errStrPin, ok := node.Pins[node.errorStringPin]; ok {
		bound := value.New(value.String, value.Normal, cause.Error())
		_ = errStrPin.setCurrentValue(bound) // String values never carry a schema
		for _, downstream := range errStrPin.connectedTo {
			_ = downstream.setCurrentValue(bound)
		}
	}

	for _, handlerPin := range pin.connectedTo {
		handler := handlerPin.node
		if handler == nil {
			continue
		}
		// Fresh guard per successor, mirroring §4.8's "Successor-walk
		// traversals create a fresh guard per successor".
		chainTS := ts.freshGuard()
		if err := r.ensureNodeDependencies(ctx, chainTS, handler); err != nil {
			return ExecutionFailed(node.ID, err)
		}
		if err := r.runHandlerChain(ctx, chainTS, handler); err != nil {
			return ExecutionFailed(node.ID, err)
		}
	}
	return nil
}

// runHandlerChain executes a connected error handler, then iteratively
// walks its own active execution successors (§4.5 point 3: "a separate
// DFS ... an independent traversal, not a return to the main frontier").
// A plain FIFO queue suffices since ordering among a handler chain's own
// successors is unspecified (§5), just like the main frontier.
func (r *InternalRun) runHandlerChain(ctx context.Context, ts *triggerState, start *InternalNode) error {
	queue := []*InternalNode{start}
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]

		activated, err := r.invokeNode(ctx, ts, n)
		if err != nil {
			return err
		}
		for _, downstream := range activeSuccessors(n, activated) {
			if downstream.node != nil {
				queue = append(queue, downstream.node)
			}
		}
	}
	return nil
}
