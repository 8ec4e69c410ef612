package runtime

import (
	"context"

	"github.com/flowcore-run/flowcore/pkg/board"
	"github.com/flowcore-run/flowcore/pkg/value"
)

// testLogic is a small configurable NodeLogic double used across this
// package's tests, the way webblueprint's internal/test mock nodes stand
// in for a real catalog.
type testLogic struct {
	pure bool
	run  func(ctx context.Context, ec ExecutionContext) error
	fail bool
}

func (l *testLogic) Metadata() NodeLogicMetadata { return NodeLogicMetadata{Name: "test"} }

func (l *testLogic) Run(ctx context.Context, ec ExecutionContext) error {
	if l.fail {
		return errTestFailure
	}
	if l.run != nil {
		return l.run(ctx, ec)
	}
	return nil
}

func (l *testLogic) OnUpdate(ctx context.Context, nodeID string) error { return nil }
func (l *testLogic) OnDrop(ctx context.Context) error                  { return nil }

var errTestFailure = &testError{"intentional test failure"}

type testError struct{ msg string }

func (e *testError) Error() string { return e.msg }

// testRegistry resolves every logic name against a fixed map, mirroring
// MapRegistry without pulling in the reference nodelogic catalog (which
// imports this package).
type testRegistry struct {
	factories map[string]NodeLogicFactory
}

func newTestRegistry() *testRegistry {
	return &testRegistry{factories: make(map[string]NodeLogicFactory)}
}

func (r *testRegistry) add(name string, factory NodeLogicFactory) {
	r.factories[name] = factory
}

func (r *testRegistry) Resolve(name string) (NodeLogicFactory, bool) {
	f, ok := r.factories[name]
	return f, ok
}

// dataPin adds a data (non-execution) pin to n at the next declared index.
func dataPin(b *board.Board, n *board.Node, name string, dir board.PinDirection, dt value.DataType) *board.Pin {
	p := board.NewPin(n.ID+"."+name, name, dir, dt, value.Normal)
	p.Index = len(n.Pins)
	p.NodeID = n.ID
	n.Pins[p.ID] = p
	return p
}

// execPin adds an execution pin to n.
func execPin(b *board.Board, n *board.Node, name string, dir board.PinDirection) *board.Pin {
	p := board.NewPin(n.ID+"."+name, name, dir, value.Execution, value.Normal)
	p.Index = len(n.Pins)
	p.NodeID = n.ID
	n.Pins[p.ID] = p
	return p
}

// newNode registers an empty node with the given id/logic on b.
func newNode(b *board.Board, id, logicName string) *board.Node {
	n := &board.Node{ID: id, LogicName: logicName, Name: id, Pins: make(map[string]*board.Pin)}
	b.AddNode(n)
	return n
}

func mustConnect(b *board.Board, fromPinID, toPinID string) {
	if err := b.Connect(fromPinID, toPinID); err != nil {
		panic(err)
	}
}
