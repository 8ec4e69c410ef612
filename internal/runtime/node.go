package runtime

import (
	"sort"
	"sync/atomic"

	"github.com/flowcore-run/flowcore/pkg/board"
)

// NodeState is the per-invocation state machine from §4.2.
type NodeState int32

const (
	StateIdle NodeState = iota
	StateRunning
	StateSuccess
	StateError
)

// InternalNode is the runtime mirror of a board.Node (§3 InternalNode).
type InternalNode struct {
	ID        string
	Name      string
	LogicName string
	IsPure    bool

	Pins       map[string]*InternalPin    // owning map: InternalNode exclusively owns its pins
	pinsByName map[string][]*InternalPin  // name -> pins ordered by declared index

	Logic NodeLogic

	execCalls uint64 // atomic: §4.2/§4.8 concurrency-limit counter
	state     int32  // atomic NodeState, informational (debug_step / status reporting)

	hasAutoHandleError bool
	autoHandleErrorPin string // InternalPin ID of the auto_handle_error output, "" if absent
	errorStringPin     string // InternalPin ID of auto_handle_error_string
}

func newInternalNode(n *board.Node, logic NodeLogic) *InternalNode {
	in := &InternalNode{
		ID:         n.ID,
		Name:       n.Name,
		LogicName:  n.LogicName,
		IsPure:     n.IsPure(),
		Pins:       make(map[string]*InternalPin, len(n.Pins)),
		pinsByName: make(map[string][]*InternalPin),
		Logic:      logic,
	}
	for _, p := range n.Pins {
		ip := newInternalPin(p)
		ip.node = in
		in.Pins[p.ID] = ip
		in.pinsByName[p.Name] = append(in.pinsByName[p.Name], ip)
	}
	for name, pins := range in.pinsByName {
		sort.Slice(pins, func(i, j int) bool { return declaredIndex(n, pins[i].ID) < declaredIndex(n, pins[j].ID) })
		in.pinsByName[name] = pins
	}
	if ap := n.AutoHandleErrorPin(); ap != nil {
		in.hasAutoHandleError = true
		in.autoHandleErrorPin = ap.ID
	}
	if sp := n.AutoHandleErrorStringPin(); sp != nil {
		in.errorStringPin = sp.ID
	}
	return in
}

func declaredIndex(n *board.Node, pinID string) int {
	if p, ok := n.Pins[pinID]; ok {
		return p.Index
	}
	return 0
}

// PinByName returns the first pin with the given name, in declared-index
// order (§4.1 rule 4).
func (n *InternalNode) PinByName(name string) (*InternalPin, bool) {
	pins := n.pinsByName[name]
	if len(pins) == 0 {
		return nil, false
	}
	return pins[0], true
}

// PinsByName returns every pin sharing a name, in declared-index order.
func (n *InternalNode) PinsByName(name string) []*InternalPin {
	return n.pinsByName[name]
}

// DataInputPins returns every non-execution input pin (the set the
// dependency resolver walks per §4.3).
func (n *InternalNode) DataInputPins() []*InternalPin {
	out := make([]*InternalPin, 0, len(n.Pins))
	for _, p := range n.Pins {
		if p.Direction == board.Input && !p.IsExecution() {
			out = append(out, p)
		}
	}
	return out
}

// ExecutionOutputPins returns every execution output pin.
func (n *InternalNode) ExecutionOutputPins() []*InternalPin {
	out := make([]*InternalPin, 0, len(n.Pins))
	for _, p := range n.Pins {
		if p.Direction == board.Output && p.IsExecution() {
			out = append(out, p)
		}
	}
	return out
}

// IncrementExecCalls increments the invocation counter and reports
// whether the call exceeded limit (§4.2 loop-protection, default 128000).
func (n *InternalNode) IncrementExecCalls(limit uint64) (exceeded bool, count uint64) {
	count = atomic.AddUint64(&n.execCalls, 1)
	return count > limit, count
}

// ExecCalls returns the current invocation count.
func (n *InternalNode) ExecCalls() uint64 { return atomic.LoadUint64(&n.execCalls) }

// SetState updates the informational state machine value.
func (n *InternalNode) SetState(s NodeState) { atomic.StoreInt32(&n.state, int32(s)) }

// State reads the informational state machine value.
func (n *InternalNode) State() NodeState { return NodeState(atomic.LoadInt32(&n.state)) }

// resetExecCalls clears the invocation counter (used by Fork).
func (n *InternalNode) resetExecCalls() { atomic.StoreUint64(&n.execCalls, 0) }
