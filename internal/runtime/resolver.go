package runtime

import (
	"context"
	"sort"
)

// triggerState is the per-trigger-call bookkeeping shared by every
// sub-context spawned while resolving and executing one target (§4.3
// Tie-break: "an optional per-traversal executed set deduplicates across
// sibling branches within one trigger"). It is NOT shared across
// concurrent frontier targets — each gets its own.
type triggerState struct {
	scheduled map[string]bool // pure nodes already executed this trigger
	visiting  map[string]bool // cycle-detection "visiting" set
	guard     map[string]bool // recursion guard (§4.8); nil disables it
}

func newTriggerState() *triggerState {
	return &triggerState{
		scheduled: make(map[string]bool),
		visiting:  make(map[string]bool),
	}
}

// freshGuard returns a triggerState sharing scheduled/visiting but with a
// brand new recursion guard — used by successor-walk traversals, which
// "create a fresh guard per successor to mirror legacy semantics" (§4.8).
func (ts *triggerState) freshGuard() *triggerState {
	return &triggerState{
		scheduled: ts.scheduled,
		visiting:  ts.visiting,
		guard:     make(map[string]bool),
	}
}

type dfsPhase int

const (
	phaseEnter dfsPhase = iota
	phaseExit
)

type dfsFrame struct {
	node  *InternalNode
	phase dfsPhase
}

// pureParents returns the immediate pure-node producers feeding node's
// data input pins, following relay pins transparently and stopping at
// the first owner-bearing pin per input (§4.3 algorithm, first bullet).
func pureParents(run *InternalRun, node *InternalNode) []*InternalNode {
	seen := make(map[string]*InternalNode)
	order := make([]*InternalNode, 0, 4)
	for _, pin := range node.DataInputPins() {
		for _, owner := range upstreamOwners(run, pin) {
			if owner.node != nil && owner.node.IsPure {
				if _, ok := seen[owner.node.ID]; !ok {
					seen[owner.node.ID] = owner.node
					order = append(order, owner.node)
				}
			}
		}
	}
	return order
}

// upstreamOwners walks pin.DependsOn, transparently following relay pins
// (owner-less), and returns the set of owner-bearing InternalPins first
// reached on each upstream path, ordered by declared pin index so
// multi-producer reads resolve deterministically (§4.1 rule 4:
// "resolution order follows declared pin indices").
func upstreamOwners(run *InternalRun, pin *InternalPin) []*InternalPin {
	var out []*InternalPin
	visited := make(map[string]bool)
	var walk func(p *InternalPin)
	walk = func(p *InternalPin) {
		if visited[p.ID] {
			return
		}
		visited[p.ID] = true
		for _, up := range p.dependsOn {
			if up.IsRelay() {
				walk(up)
				continue
			}
			out = append(out, up)
		}
	}
	walk(pin)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out
}

// ensureNodeDependencies resolves and executes every pure node
// transitively reachable via target's data-input depends_on edges,
// without executing target itself (§4.3 contract, first paragraph). Used
// by the scheduler before running an execution-graph node.
func (r *InternalRun) ensureNodeDependencies(ctx context.Context, ts *triggerState, target *InternalNode) error {
	for _, parent := range pureParents(r, target) {
		if err := r.ensurePureNodeExecuted(ctx, ts, parent); err != nil {
			return err
		}
	}
	return nil
}

// ensurePureNodeExecuted runs the iterative Enter/Exit DFS rooted at a
// single pure node (§4.3 Algorithm), executing it and every pure
// ancestor it transitively needs, each exactly once.
func (r *InternalRun) ensurePureNodeExecuted(ctx context.Context, ts *triggerState, root *InternalNode) error {
	if ts.scheduled[root.ID] {
		return nil
	}
	if ts.guard != nil && ts.guard[root.ID] {
		r.logDebugSkip(root.ID)
		return nil
	}

	stack := []dfsFrame{{node: root, phase: phaseEnter}}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		switch f.phase {
		case phaseEnter:
			if ts.scheduled[f.node.ID] {
				continue
			}
			if ts.guard != nil && ts.guard[f.node.ID] {
				r.logDebugSkip(f.node.ID)
				continue
			}
			if ts.visiting[f.node.ID] {
				return Cycle(f.node.ID)
			}
			ts.visiting[f.node.ID] = true
			stack = append(stack, dfsFrame{node: f.node, phase: phaseExit})

			parents := pureParents(r, f.node)
			// Push in reverse so the first-declared parent is processed
			// (popped) first, matching declared-index resolution order.
			for i := len(parents) - 1; i >= 0; i-- {
				if !ts.scheduled[parents[i].ID] {
					stack = append(stack, dfsFrame{node: parents[i], phase: phaseEnter})
				}
			}

		case phaseExit:
			delete(ts.visiting, f.node.ID)
			if ts.scheduled[f.node.ID] {
				continue
			}
			if err := r.executePureNode(ctx, ts, f.node); err != nil {
				return err
			}
			ts.scheduled[f.node.ID] = true
		}
	}
	return nil
}

func (r *InternalRun) logDebugSkip(nodeID string) {
	r.trace(nodeID, levelDebug, "skipped re-entrant pure node due to recursion guard", nil)
}
