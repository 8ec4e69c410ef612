package runtime

import (
	"sync"

	"github.com/flowcore-run/flowcore/pkg/board"
	"github.com/flowcore-run/flowcore/pkg/value"
)

// InternalPin is the runtime mirror of a board.Pin (§3 InternalPin).
//
// Two-phase construction: newInternalPin creates the record with empty
// edge slices; wireEdges (called once per pin during InternalRun.new's
// second pass) fills connected_to/depends_on. wireEdges panics if called
// twice — the Go equivalent of the spec's OnceLock-style write-once slot,
// since after construction the wire set is never mutated again for the
// run's lifetime.
type InternalPin struct {
	ID        string
	Name      string
	Direction board.PinDirection
	DataType  value.DataType
	ValueType value.ValueType
	Index      int // declared display index, resolution order (§4.1 rule 4)
	HasDefault bool
	defaultRaw []byte
	schema     []byte

	mu      sync.RWMutex
	current *value.Value // current runtime value, nil if unset

	// node is a plain reference to the owning InternalNode; nil for layer
	// relay pins. Go's garbage collector traces reference cycles, so
	// unlike the Rust original there is no need for an actual weak
	// pointer to break an ownership cycle — InternalNode.Pins still
	// exclusively *owns* InternalPin in the sense that nothing outside
	// the node's own map holds a strong, counted reference to it.
	node *InternalNode

	wired       bool
	connectedTo []*InternalPin // downstream
	dependsOn   []*InternalPin // upstream
}

func newInternalPin(p *board.Pin) *InternalPin {
	return &InternalPin{
		ID:         p.ID,
		Name:       p.Name,
		Direction:  p.Direction,
		DataType:   p.DataType,
		ValueType:  p.ValueType,
		Index:      p.Index,
		HasDefault: len(p.Default) > 0,
		defaultRaw: p.Default,
		schema:     p.Schema,
	}
}

// wireEdges performs the second construction phase: resolving the board
// pin's connected_to/depends_on id sets into direct InternalPin
// references. Must be called exactly once, after every InternalPin in
// the run has been created.
func (ip *InternalPin) wireEdges(connectedTo, dependsOn []*InternalPin) {
	if ip.wired {
		panic("runtime: InternalPin.wireEdges called twice for pin " + ip.ID)
	}
	ip.connectedTo = connectedTo
	ip.dependsOn = dependsOn
	ip.wired = true
}

// Node returns the owning InternalNode, or nil for a relay pin.
func (ip *InternalPin) Node() *InternalNode { return ip.node }

// IsExecution reports whether this pin carries no value, only presence.
func (ip *InternalPin) IsExecution() bool { return ip.DataType == value.Execution }

// IsRelay reports whether this pin has no owning node.
func (ip *InternalPin) IsRelay() bool { return ip.node == nil }

// currentValue returns the cached runtime value, if any (§4.1 step 2).
func (ip *InternalPin) currentValue() (value.Value, bool) {
	ip.mu.RLock()
	defer ip.mu.RUnlock()
	if ip.current == nil {
		return value.Value{}, false
	}
	return *ip.current, true
}

// setCurrentValue stores a runtime value (used by execContext.SetPinValue
// for the written pin and its connected downstream pins, and by error
// routing to bind auto_handle_error_string), after checking it against the
// pin's optional JSON schema (§3 Pin invariants).
func (ip *InternalPin) setCurrentValue(v value.Value) error {
	if err := value.ValidateSchema(ip.DataType, ip.schema, v); err != nil {
		return err
	}
	ip.mu.Lock()
	defer ip.mu.Unlock()
	ip.current = &v
	return nil
}

// resetValue clears the cached runtime value (used by InternalRun.Fork).
func (ip *InternalPin) resetValue() {
	ip.mu.Lock()
	defer ip.mu.Unlock()
	ip.current = nil
}

// decodeDefault lazily decodes the pin's wire-form default (§4.1 step 3).
func (ip *InternalPin) decodeDefault() (value.Value, error) {
	if !ip.HasDefault {
		return value.Null(ip.DataType, ip.ValueType), nil
	}
	decoded, err := value.FromDefaultBytes(ip.DataType, ip.ValueType, ip.defaultRaw)
	if err != nil {
		return value.Value{}, err
	}
	if err := value.ValidateSchema(ip.DataType, ip.schema, decoded); err != nil {
		return value.Value{}, err
	}
	return decoded, nil
}
