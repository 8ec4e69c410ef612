// Package nodelogic provides a small reference catalog of NodeLogic
// implementations — echo, transform, branch and sink — used to exercise
// the scheduler and dependency resolver in tests. A production node
// catalog is out of scope (mirrors the distillation's product-surface
// Non-goals); these exist only as fixtures.
package nodelogic

import (
	"context"

	"github.com/flowcore-run/flowcore/internal/runtime"
	"github.com/flowcore-run/flowcore/pkg/value"
)

// Registry builds a runtime.MapRegistry pre-populated with the
// reference catalog.
func Registry() *runtime.MapRegistry {
	r := runtime.NewMapRegistry()
	r.Register("echo", func() runtime.NodeLogic { return &Echo{} })
	r.Register("transform_upper", func() runtime.NodeLogic { return &TransformUpper{} })
	r.Register("branch", func() runtime.NodeLogic { return &Branch{} })
	r.Register("sink", func() runtime.NodeLogic { return &Sink{} })
	r.Register("const_pure", func() runtime.NodeLogic { return &ConstPure{} })
	r.Register("caller", func() runtime.NodeLogic { return &Caller{} })
	return r
}

// Echo reads "in", writes it to "out", and fires "then".
type Echo struct{}

func (Echo) Metadata() runtime.NodeLogicMetadata {
	return runtime.NodeLogicMetadata{Name: "echo", Category: "debug"}
}

func (Echo) Run(ctx context.Context, ec runtime.ExecutionContext) error {
	v, err := ec.EvaluatePin(ctx, "in")
	if err != nil {
		return err
	}
	if err := ec.SetPinValue("out", v); err != nil {
		return err
	}
	return ec.ActivateExecPin("then")
}

func (Echo) OnUpdate(ctx context.Context, nodeID string) error { return nil }
func (Echo) OnDrop(ctx context.Context) error                  { return nil }

// TransformUpper is a pure node: reads "in" (string), writes its
// upper-cased form to "out". No execution pins.
type TransformUpper struct{}

func (TransformUpper) Metadata() runtime.NodeLogicMetadata {
	return runtime.NodeLogicMetadata{Name: "transform_upper", Category: "string"}
}

func (TransformUpper) Run(ctx context.Context, ec runtime.ExecutionContext) error {
	v, err := ec.EvaluatePin(ctx, "in")
	if err != nil {
		return err
	}
	s, err := v.AsString()
	if err != nil {
		return err
	}
	return ec.SetPinValue("out", value.New(value.String, value.Normal, toUpper(s)))
}

func (TransformUpper) OnUpdate(ctx context.Context, nodeID string) error { return nil }
func (TransformUpper) OnDrop(ctx context.Context) error                 { return nil }

func toUpper(s string) string {
	out := []rune(s)
	for i, r := range out {
		if r >= 'a' && r <= 'z' {
			out[i] = r - ('a' - 'A')
		}
	}
	return string(out)
}

// ConstPure is a pure node with no inputs: writes a fixed boolean to
// "out". Used in tests to exercise the dependency resolver's simplest
// case.
type ConstPure struct{}

func (ConstPure) Metadata() runtime.NodeLogicMetadata {
	return runtime.NodeLogicMetadata{Name: "const_pure", Category: "debug"}
}

func (ConstPure) Run(ctx context.Context, ec runtime.ExecutionContext) error {
	return ec.SetPinValue("out", value.New(value.Boolean, value.Normal, true))
}

func (ConstPure) OnUpdate(ctx context.Context, nodeID string) error { return nil }
func (ConstPure) OnDrop(ctx context.Context) error                  { return nil }

// Branch reads "condition" and activates either "true" or "false".
type Branch struct{}

func (Branch) Metadata() runtime.NodeLogicMetadata {
	return runtime.NodeLogicMetadata{Name: "branch", Category: "control"}
}

func (Branch) Run(ctx context.Context, ec runtime.ExecutionContext) error {
	v, err := ec.EvaluatePin(ctx, "condition")
	if err != nil {
		return err
	}
	cond, err := v.AsBool()
	if err != nil {
		return err
	}
	if cond {
		return ec.ActivateExecPin("true")
	}
	return ec.ActivateExecPin("false")
}

func (Branch) OnUpdate(ctx context.Context, nodeID string) error { return nil }
func (Branch) OnDrop(ctx context.Context) error                  { return nil }

// Sink is a terminal logging node: logs "in" and fires no successors.
type Sink struct{}

func (Sink) Metadata() runtime.NodeLogicMetadata {
	return runtime.NodeLogicMetadata{Name: "sink", Category: "debug"}
}

func (Sink) Run(ctx context.Context, ec runtime.ExecutionContext) error {
	v, err := ec.EvaluatePin(ctx, "in")
	if err != nil {
		return err
	}
	s, _ := v.AsString()
	ec.LogMessage("sink received: "+s, 0)
	return nil
}

func (Sink) OnUpdate(ctx context.Context, nodeID string) error { return nil }
func (Sink) OnDrop(ctx context.Context) error                  { return nil }

// Caller invokes whatever node its "target_function" pin references,
// passing its own "arg" value as that node's "in" override, and relays
// the callee's "out" back to its own "out". Demonstrates the
// sub-context/referenced-function/BindOverride path an actual callback
// or tool-call node would use.
type Caller struct{}

func (Caller) Metadata() runtime.NodeLogicMetadata {
	return runtime.NodeLogicMetadata{Name: "caller", Category: "control"}
}

func (Caller) Run(ctx context.Context, ec runtime.ExecutionContext) error {
	targets := ec.GetReferencedFunctions()
	if len(targets) == 0 {
		return ec.ActivateExecPin("then")
	}

	arg, err := ec.EvaluatePin(ctx, "arg")
	if err != nil {
		return err
	}

	for _, target := range targets {
		sub := ec.CreateSubContext(target)
		if err := sub.BindOverride("in", arg); err != nil {
			return err
		}
		if err := target.Logic.Run(ctx, sub); err != nil {
			return err
		}
		ec.PushSubContext(sub)

		out, err := sub.EvaluatePin(ctx, "out")
		if err != nil {
			return err
		}
		if err := ec.SetPinValue("out", out); err != nil {
			return err
		}
	}
	return ec.ActivateExecPin("then")
}

func (Caller) OnUpdate(ctx context.Context, nodeID string) error { return nil }
func (Caller) OnDrop(ctx context.Context) error                  { return nil }
