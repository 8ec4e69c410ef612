package runtime

import (
	"context"
	"fmt"

	"github.com/flowcore-run/flowcore/internal/telemetry"
	"github.com/flowcore-run/flowcore/pkg/value"
)

const levelDebug = telemetry.Debug

// UserContext carries the role/subject pair extracted from a run's JWT
// (§6 "user context (role + subject)").
type UserContext struct {
	Role    string
	Subject string
}

// ExecutionContext is the per-call argument bundle handed to node logic
// (§4.7). A fresh value is created per trigger and per sub-context.
type ExecutionContext interface {
	Node() *InternalNode

	// EvaluatePin applies §4.1 (including this context's pin overrides).
	EvaluatePin(ctx context.Context, name string) (value.Value, error)
	// SetPinValue stores a pin's current runtime value; used by outputs.
	SetPinValue(name string, v value.Value) error
	// ActivateExecPin / DeactivateExecPin gate successor fan-out.
	ActivateExecPin(name string) error
	DeactivateExecPin(name string) error

	LogMessage(msg string, level telemetry.Level)
	Log(m telemetry.LogMessage)

	// CreateSubContext produces a child context sharing run/cache/
	// variables/log-level, used to invoke dependencies, error handlers
	// and referenced functions.
	CreateSubContext(node *InternalNode) ExecutionContext
	// PushSubContext merges a child's traces into this context's trace.
	PushSubContext(child ExecutionContext)

	// BindOverride shadows a named pin's read for the remainder of this
	// call only, without mutating the pin's shared current value — used
	// by callers of a referenced function to pass call-specific
	// arguments without racing concurrent callers of the same node.
	BindOverride(name string, v value.Value) error

	// GetReferencedFunctions resolves node-logic references to other
	// nodes (callbacks/tool calls).
	GetReferencedFunctions() []*InternalNode

	// Cache / credentials / auth surface (§4.7 last bullet).
	Cache() *SharedCache
	Credentials() *SharedCredentials
	JWT() string
	OAuthTokens() map[string]string
	User() UserContext
	Profile() *Profile
	Callback() chan<- any
}

// execContext is the concrete ExecutionContext implementation.
type execContext struct {
	run     *InternalRun
	node    *InternalNode
	ts      *triggerState
	overrides map[string]value.Value // pin id -> override, shadows §4.1 steps 1-3

	trace     *telemetry.Trace
	activated map[*InternalPin]bool // execution output pins activated this call
}

func newExecContext(run *InternalRun, node *InternalNode, ts *triggerState) *execContext {
	return &execContext{
		run:       run,
		node:      node,
		ts:        ts,
		trace:     telemetry.NewTrace(node.ID),
		activated: make(map[*InternalPin]bool),
	}
}

func (c *execContext) Node() *InternalNode { return c.node }

// EvaluatePin implements §4.1's pin-read algorithm:
//  1. Context override (shadows everything else for this call).
//  2. Walk depends_on: for each upstream producer (relay pins followed
//     transparently), ensure pure producers have executed, then read
//     their current value. First non-null value wins, in declared-index
//     order across multiple producers.
//  3. The pin's own current runtime value.
//  4. The pin's decoded default.
//  5. null, with no error, if none of the above apply (orphaned pins).
func (c *execContext) EvaluatePin(ctx context.Context, name string) (value.Value, error) {
	pin, ok := c.node.PinByName(name)
	if !ok {
		return value.Value{}, PinNotReady(c.node.ID, name, fmt.Errorf("no such pin"))
	}
	return c.evaluatePin(ctx, pin)
}

func (c *execContext) evaluatePin(ctx context.Context, pin *InternalPin) (value.Value, error) {
	if ov, ok := c.overrides[pin.ID]; ok {
		return ov, nil
	}

	for _, owner := range upstreamOwners(c.run, pin) {
		if owner.node != nil && owner.node.IsPure {
			if err := c.run.ensurePureNodeExecuted(ctx, c.ts, owner.node); err != nil {
				return value.Value{}, DependencyFailed(owner.node.ID, err)
			}
		}
		if v, ok := owner.currentValue(); ok && !v.IsNull() {
			return v, nil
		}
	}

	if v, ok := pin.currentValue(); ok {
		return v, nil
	}

	v, err := pin.decodeDefault()
	if err != nil {
		return value.Value{}, PinNotReady(c.node.ID, pin.ID, err)
	}
	return v, nil
}

func (c *execContext) SetPinValue(name string, v value.Value) error {
	pin, ok := c.node.PinByName(name)
	if !ok {
		return PinNotReady(c.node.ID, name, fmt.Errorf("no such pin"))
	}
	if err := pin.setCurrentValue(v); err != nil {
		return PinNotReady(c.node.ID, pin.ID, err)
	}
	for _, downstream := range pin.connectedTo {
		if err := downstream.setCurrentValue(v); err != nil {
			return PinNotReady(c.node.ID, downstream.ID, err)
		}
	}
	return nil
}

func (c *execContext) BindOverride(name string, v value.Value) error {
	pin, ok := c.node.PinByName(name)
	if !ok {
		return PinNotReady(c.node.ID, name, fmt.Errorf("no such pin"))
	}
	if c.overrides == nil {
		c.overrides = make(map[string]value.Value)
	}
	c.overrides[pin.ID] = v
	return nil
}

func (c *execContext) ActivateExecPin(name string) error {
	pin, ok := c.node.PinByName(name)
	if !ok {
		return PinNotReady(c.node.ID, name, fmt.Errorf("no such pin"))
	}
	if !pin.IsExecution() {
		return fmt.Errorf("runtime: pin %q is not an execution pin", name)
	}
	c.activated[pin] = true
	return nil
}

func (c *execContext) DeactivateExecPin(name string) error {
	pin, ok := c.node.PinByName(name)
	if !ok {
		return PinNotReady(c.node.ID, name, fmt.Errorf("no such pin"))
	}
	c.activated[pin] = false
	return nil
}

func (c *execContext) LogMessage(msg string, level telemetry.Level) {
	c.Log(telemetry.NewLogMessage(c.node.ID, msg, level, c.run.nowMicros()))
}

func (c *execContext) Log(m telemetry.LogMessage) {
	c.trace.Append(m)
}

func (c *execContext) CreateSubContext(node *InternalNode) ExecutionContext {
	return newExecContext(c.run, node, c.ts)
}

func (c *execContext) PushSubContext(child ExecutionContext) {
	cc, ok := child.(*execContext)
	if !ok {
		return
	}
	c.trace.Messages = append(c.trace.Messages, cc.trace.Messages...)
}

func (c *execContext) GetReferencedFunctions() []*InternalNode {
	return c.run.referencedFunctions(c.node)
}

func (c *execContext) Cache() *SharedCache             { return c.run.cache }
func (c *execContext) Credentials() *SharedCredentials  { return c.run.credentials }
func (c *execContext) JWT() string                      { return c.run.jwt }
func (c *execContext) OAuthTokens() map[string]string   { return c.run.oauthTokens }
func (c *execContext) User() UserContext                { return c.run.user }
func (c *execContext) Profile() *Profile                { return c.run.profile }
func (c *execContext) Callback() chan<- any             { return c.run.callback }

// endTrace moves this context's accumulated trace onto the run's traces
// vector (§4.6: "When ExecutionContext::end_trace is called, the trace
// is moved onto the run's traces vector").
func (c *execContext) endTrace() {
	c.run.endTrace(c.trace)
}
