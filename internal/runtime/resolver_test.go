package runtime

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowcore-run/flowcore/pkg/board"
	"github.com/flowcore-run/flowcore/pkg/value"
)

func newTestRun(t *testing.T, b *board.Board, reg Registry, entryID string) *InternalRun {
	t.Helper()
	r, err := New(b, reg, RunPayload{ID: entryID}, DefaultConfig(), nil)
	require.NoError(t, err)
	return r
}

// TestEnsureNodeDependencies_LinearChain verifies that a single pure
// producer feeding an impure node's data input executes exactly once
// before the target runs.
func TestEnsureNodeDependencies_LinearChain(t *testing.T) {
	b := board.New("t", board.StageDev)

	producer := newNode(b, "producer", "producer")
	out := dataPin(b, producer, "out", board.Output, value.Integer)

	target := newNode(b, "target", "target")
	in := dataPin(b, target, "in", board.Input, value.Integer)
	execPin(b, target, "enter", board.Input)

	mustConnect(b, out.ID, in.ID)

	calls := 0
	reg := newTestRegistry()
	reg.add("producer", func() NodeLogic {
		return &testLogic{pure: true, run: func(ctx context.Context, ec ExecutionContext) error {
			calls++
			return ec.SetPinValue("out", value.New(value.Integer, value.Normal, 42.0))
		}}
	})
	reg.add("target", func() NodeLogic { return &testLogic{} })

	r := newTestRun(t, b, reg, "target")

	ts := newTriggerState()
	require.NoError(t, r.ensureNodeDependencies(context.Background(), ts, r.Nodes["target"]))
	require.NoError(t, r.ensureNodeDependencies(context.Background(), ts, r.Nodes["target"]))

	assert.Equal(t, 1, calls, "producer must execute exactly once per trigger even when asked for twice")

	v, ok := r.Nodes["producer"].Pins[out.ID].currentValue()
	require.True(t, ok)
	f, _ := v.AsFloat()
	assert.Equal(t, 42.0, f)
}

// TestEnsureNodeDependencies_Diamond verifies a shared pure ancestor is
// only executed once even when reached through two different paths.
func TestEnsureNodeDependencies_Diamond(t *testing.T) {
	b := board.New("t", board.StageDev)

	root := newNode(b, "root", "root")
	rootOut := dataPin(b, root, "out", board.Output, value.Integer)

	left := newNode(b, "left", "left")
	leftIn := dataPin(b, left, "in", board.Input, value.Integer)
	leftOut := dataPin(b, left, "out", board.Output, value.Integer)

	right := newNode(b, "right", "right")
	rightIn := dataPin(b, right, "in", board.Input, value.Integer)
	rightOut := dataPin(b, right, "out", board.Output, value.Integer)

	target := newNode(b, "target", "target")
	tLeft := dataPin(b, target, "left", board.Input, value.Integer)
	tRight := dataPin(b, target, "right", board.Input, value.Integer)
	execPin(b, target, "enter", board.Input)

	mustConnect(b, rootOut.ID, leftIn.ID)
	mustConnect(b, rootOut.ID, rightIn.ID)
	mustConnect(b, leftOut.ID, tLeft.ID)
	mustConnect(b, rightOut.ID, tRight.ID)

	rootCalls := 0
	reg := newTestRegistry()
	reg.add("root", func() NodeLogic {
		return &testLogic{pure: true, run: func(ctx context.Context, ec ExecutionContext) error {
			rootCalls++
			return ec.SetPinValue("out", value.New(value.Integer, value.Normal, 1.0))
		}}
	})
	reg.add("left", func() NodeLogic {
		return &testLogic{pure: true, run: func(ctx context.Context, ec ExecutionContext) error {
			v, err := ec.EvaluatePin(context.Background(), "in")
			if err != nil {
				return err
			}
			return ec.SetPinValue("out", v)
		}}
	})
	reg.add("right", func() NodeLogic {
		return &testLogic{pure: true, run: func(ctx context.Context, ec ExecutionContext) error {
			v, err := ec.EvaluatePin(context.Background(), "in")
			if err != nil {
				return err
			}
			return ec.SetPinValue("out", v)
		}}
	})
	reg.add("target", func() NodeLogic { return &testLogic{} })

	r := newTestRun(t, b, reg, "target")
	ts := newTriggerState()
	require.NoError(t, r.ensureNodeDependencies(context.Background(), ts, r.Nodes["target"]))

	assert.Equal(t, 1, rootCalls, "shared ancestor must be deduplicated across both paths")
}

// TestEnsurePureNodeExecuted_CycleDetected verifies a pure-node cycle is
// reported as runtime.KindCycle instead of hanging the DFS.
func TestEnsurePureNodeExecuted_CycleDetected(t *testing.T) {
	b := board.New("t", board.StageDev)

	a := newNode(b, "a", "a")
	aIn := dataPin(b, a, "in", board.Input, value.Integer)
	aOut := dataPin(b, a, "out", board.Output, value.Integer)

	bb := newNode(b, "b", "b")
	bIn := dataPin(b, bb, "in", board.Input, value.Integer)
	bOut := dataPin(b, bb, "out", board.Output, value.Integer)

	mustConnect(b, aOut.ID, bIn.ID)
	mustConnect(b, bOut.ID, aIn.ID)

	target := newNode(b, "target", "target")
	tIn := dataPin(b, target, "in", board.Input, value.Integer)
	execPin(b, target, "enter", board.Input)
	mustConnect(b, aOut.ID, tIn.ID)

	reg := newTestRegistry()
	reg.add("a", func() NodeLogic { return &testLogic{pure: true} })
	reg.add("b", func() NodeLogic { return &testLogic{pure: true} })
	reg.add("target", func() NodeLogic { return &testLogic{} })

	r := newTestRun(t, b, reg, "target")
	ts := newTriggerState()
	err := r.ensureNodeDependencies(context.Background(), ts, r.Nodes["target"])
	require.Error(t, err)
	kind, ok := KindOf(err)
	require.True(t, ok)
	assert.Equal(t, KindCycle, kind)
}

// TestUpstreamOwners_DeclaredIndexOrder verifies multiple producers
// feeding one pin resolve in declared-pin-index order, first non-null
// wins.
func TestUpstreamOwners_DeclaredIndexOrder(t *testing.T) {
	b := board.New("t", board.StageDev)

	low := newNode(b, "low", "low")
	lowOut := dataPin(b, low, "out", board.Output, value.Integer)

	high := newNode(b, "high", "high")
	highOut := dataPin(b, high, "out", board.Output, value.Integer)

	target := newNode(b, "target", "target")
	in := dataPin(b, target, "in", board.Input, value.Integer)
	execPin(b, target, "enter", board.Input)

	// Wire high first so insertion order alone can't explain the result.
	mustConnect(b, highOut.ID, in.ID)
	mustConnect(b, lowOut.ID, in.ID)
	lowOut.Index = 0
	highOut.Index = 1

	reg := newTestRegistry()
	reg.add("low", func() NodeLogic { return &testLogic{pure: true} })
	reg.add("high", func() NodeLogic { return &testLogic{pure: true} })
	reg.add("target", func() NodeLogic { return &testLogic{} })

	r := newTestRun(t, b, reg, "target")
	owners := upstreamOwners(r, r.Nodes["target"].Pins[in.ID])
	require.Len(t, owners, 2)
	assert.Equal(t, lowOut.ID, owners[0].ID)
	assert.Equal(t, highOut.ID, owners[1].ID)
}
