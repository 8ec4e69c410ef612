package runtime

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowcore-run/flowcore/pkg/board"
)

// linearChainBoard builds start -(then)-> middle -(then)-> end, each an
// impure node whose logic unconditionally activates its "then" pin.
func linearChainBoard(t *testing.T) (*board.Board, *testRegistry) {
	t.Helper()
	b := board.New("t", board.StageDev)

	start := newNode(b, "start", "passthrough")
	execPin(b, start, "enter", board.Input)
	startThen := execPin(b, start, "then", board.Output)

	middle := newNode(b, "middle", "passthrough")
	middleEnter := execPin(b, middle, "enter", board.Input)
	middleThen := execPin(b, middle, "then", board.Output)

	end := newNode(b, "end", "passthrough")
	endEnter := execPin(b, end, "enter", board.Input)

	mustConnect(b, startThen.ID, middleEnter.ID)
	mustConnect(b, middleThen.ID, endEnter.ID)

	reg := newTestRegistry()
	reg.add("passthrough", func() NodeLogic {
		return &testLogic{run: func(ctx context.Context, ec ExecutionContext) error {
			return ec.ActivateExecPin("then")
		}}
	})
	return b, reg
}

func TestExecute_DrainsLinearChainToSuccess(t *testing.T) {
	b, reg := linearChainBoard(t)
	r, err := New(b, reg, RunPayload{ID: "start"}, DefaultConfig(), nil)
	require.NoError(t, err)

	require.NoError(t, r.Execute(context.Background()))
	assert.Equal(t, RunSuccess, r.Status)
	assert.Contains(t, r.VisitedNodes, "start")
	assert.Contains(t, r.VisitedNodes, "middle")
	assert.Contains(t, r.VisitedNodes, "end")
	assert.True(t, r.frontier.Empty())
}

func TestDebugStep_AdvancesOneGenerationAtATime(t *testing.T) {
	b, reg := linearChainBoard(t)
	r, err := New(b, reg, RunPayload{ID: "start"}, DefaultConfig(), nil)
	require.NoError(t, err)

	ctx := context.Background()

	progressed, err := r.DebugStep(ctx)
	require.NoError(t, err)
	assert.True(t, progressed)
	assert.NotContains(t, r.VisitedNodes, "middle", "middle should not have run after only one generation")

	progressed, err = r.DebugStep(ctx)
	require.NoError(t, err)
	assert.True(t, progressed)
	assert.Contains(t, r.VisitedNodes, "middle")

	progressed, err = r.DebugStep(ctx)
	require.NoError(t, err)
	assert.True(t, progressed)
	assert.Contains(t, r.VisitedNodes, "end")

	progressed, err = r.DebugStep(ctx)
	require.NoError(t, err)
	assert.False(t, progressed, "frontier is drained, nothing left to step")
}

func TestExecute_DetectsStagnationOnSelfLoop(t *testing.T) {
	b := board.New("t", board.StageDev)
	loop := newNode(b, "loop", "loop")
	enter := execPin(b, loop, "enter", board.Input)
	then := execPin(b, loop, "then", board.Output)
	mustConnect(b, then.ID, enter.ID)

	reg := newTestRegistry()
	reg.add("loop", func() NodeLogic {
		return &testLogic{run: func(ctx context.Context, ec ExecutionContext) error {
			return ec.ActivateExecPin("then")
		}}
	})

	r, err := New(b, reg, RunPayload{ID: "loop"}, DefaultConfig(), nil)
	require.NoError(t, err)

	err = r.Execute(context.Background())
	require.Error(t, err)
	kind, ok := KindOf(err)
	require.True(t, ok)
	assert.Equal(t, KindStagnation, kind)
	assert.Equal(t, RunFailed, r.Status)
}

func TestFork_ResetsStateForReExecution(t *testing.T) {
	b, reg := linearChainBoard(t)
	r, err := New(b, reg, RunPayload{ID: "start"}, DefaultConfig(), nil)
	require.NoError(t, err)
	require.NoError(t, r.Execute(context.Background()))
	assert.Equal(t, RunSuccess, r.Status)
	assert.Equal(t, uint64(1), r.Nodes["start"].ExecCalls())

	require.NoError(t, r.Fork())
	assert.Equal(t, RunRunning, r.Status)
	assert.Equal(t, uint64(0), r.Nodes["start"].ExecCalls())
	assert.False(t, r.frontier.Empty())

	require.NoError(t, r.Execute(context.Background()))
	assert.Equal(t, RunSuccess, r.Status)
	assert.Equal(t, uint64(1), r.Nodes["start"].ExecCalls(), "fork must reset, not accumulate, exec calls")
}
