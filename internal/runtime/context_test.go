package runtime

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowcore-run/flowcore/pkg/board"
	"github.com/flowcore-run/flowcore/pkg/value"
)

func simpleRun(t *testing.T) (*InternalRun, *board.Node, *board.Pin) {
	t.Helper()
	b := board.New("t", board.StageDev)
	n := newNode(b, "n", "n")
	in := dataPin(b, n, "in", board.Input, value.String)
	dataPin(b, n, "out", board.Output, value.String)
	execPin(b, n, "enter", board.Input)
	execPin(b, n, "then", board.Output)
	in.Default = []byte(`"default-value"`)

	reg := newTestRegistry()
	reg.add("n", func() NodeLogic { return &testLogic{} })

	r := newTestRun(t, b, reg, "n")
	return r, n, in
}

// TestEvaluatePin_FallsThroughToDefault covers §4.1 steps 3-4: no
// override, no upstream producer, no own current value -> decoded
// default.
func TestEvaluatePin_FallsThroughToDefault(t *testing.T) {
	r, _, _ := simpleRun(t)
	node := r.Nodes["n"]
	ts := newTriggerState()
	ec := newExecContext(r, node, ts)

	v, err := ec.EvaluatePin(context.Background(), "in")
	require.NoError(t, err)
	s, err := v.AsString()
	require.NoError(t, err)
	assert.Equal(t, "default-value", s)
}

// TestEvaluatePin_OwnCurrentValueBeatsDefault covers §4.1 step 2 taking
// priority over step 3: once a pin has been written, its current value
// wins over the decoded default.
func TestEvaluatePin_OwnCurrentValueBeatsDefault(t *testing.T) {
	r, _, inPin := simpleRun(t)
	node := r.Nodes["n"]
	node.Pins[inPin.ID].setCurrentValue(value.New(value.String, value.Normal, "written-value"))

	ts := newTriggerState()
	ec := newExecContext(r, node, ts)
	v, err := ec.EvaluatePin(context.Background(), "in")
	require.NoError(t, err)
	s, _ := v.AsString()
	assert.Equal(t, "written-value", s)
}

// TestEvaluatePin_OverrideShadowsEverything covers §4.1 step 1: a bound
// override wins over an upstream producer, the pin's own value, and the
// default.
func TestEvaluatePin_OverrideShadowsEverything(t *testing.T) {
	r, _, inPin := simpleRun(t)
	node := r.Nodes["n"]
	node.Pins[inPin.ID].setCurrentValue(value.New(value.String, value.Normal, "written-value"))

	ts := newTriggerState()
	ec := newExecContext(r, node, ts)
	require.NoError(t, ec.BindOverride("in", value.New(value.String, value.Normal, "override-value")))

	v, err := ec.EvaluatePin(context.Background(), "in")
	require.NoError(t, err)
	s, _ := v.AsString()
	assert.Equal(t, "override-value", s)
}

// TestSetPinValue_PropagatesToConnected verifies SetPinValue writes both
// the source pin and every directly connected downstream pin.
func TestSetPinValue_PropagatesToConnected(t *testing.T) {
	b := board.New("t", board.StageDev)
	src := newNode(b, "src", "src")
	srcOut := dataPin(b, src, "out", board.Output, value.String)
	dst := newNode(b, "dst", "dst")
	dstIn := dataPin(b, dst, "in", board.Input, value.String)
	execPin(b, dst, "enter", board.Input)
	mustConnect(b, srcOut.ID, dstIn.ID)

	reg := newTestRegistry()
	reg.add("src", func() NodeLogic { return &testLogic{pure: true} })
	reg.add("dst", func() NodeLogic { return &testLogic{} })

	r := newTestRun(t, b, reg, "dst")
	ts := newTriggerState()
	ec := newExecContext(r, r.Nodes["src"], ts)
	require.NoError(t, ec.SetPinValue("out", value.New(value.String, value.Normal, "hello")))

	v, ok := r.Nodes["dst"].Pins[dstIn.ID].currentValue()
	require.True(t, ok)
	s, _ := v.AsString()
	assert.Equal(t, "hello", s)
}

// TestActivateExecPin_GatesSuccessorFanOut verifies a node's activated
// set only contains pins the logic explicitly activated.
func TestActivateExecPin_GatesSuccessorFanOut(t *testing.T) {
	r, _, _ := simpleRun(t)
	node := r.Nodes["n"]
	ts := newTriggerState()
	ec := newExecContext(r, node, ts)

	thenPin, ok := node.PinByName("then")
	require.True(t, ok)
	assert.False(t, ec.activated[thenPin], "execution output pins default to inactive")

	require.NoError(t, ec.ActivateExecPin("then"))
	assert.True(t, ec.activated[thenPin])

	require.NoError(t, ec.DeactivateExecPin("then"))
	assert.False(t, ec.activated[thenPin])
}
