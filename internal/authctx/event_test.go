package authctx

import (
	"testing"

	"github.com/flowcore-run/flowcore/pkg/board"
	"github.com/flowcore-run/flowcore/pkg/value"
)

func strVar(name string, exposed, secret bool, current string) *board.Variable {
	return &board.Variable{
		Name:     name,
		DataType: value.String,
		Exposed:  exposed,
		Secret:   secret,
		Current:  value.New(value.String, value.Normal, current),
	}
}

func TestHydrateVariables_OverwritesExposedMatchedVariables(t *testing.T) {
	vars := map[string]*board.Variable{
		"v1": strVar("greeting", true, false, "default"),
	}
	ev := &Event{Variables: map[string]value.Value{
		"greeting": value.New(value.String, value.Normal, "hello"),
	}}

	HydrateVariables(vars, ev, true)

	got, _ := vars["v1"].Current.AsString()
	if got != "hello" {
		t.Errorf("got %q, want %q", got, "hello")
	}
}

func TestHydrateVariables_LeavesNonExposedVariablesAlone(t *testing.T) {
	vars := map[string]*board.Variable{
		"v1": strVar("internal", false, false, "default"),
	}
	ev := &Event{Variables: map[string]value.Value{
		"internal": value.New(value.String, value.Normal, "hacked"),
	}}

	HydrateVariables(vars, ev, true)

	got, _ := vars["v1"].Current.AsString()
	if got != "default" {
		t.Errorf("non-exposed variable must not be overwritten, got %q", got)
	}
}

func TestHydrateVariables_FiltersSecretsByDefault(t *testing.T) {
	vars := map[string]*board.Variable{
		"v1": strVar("api_key", true, true, "default"),
	}
	ev := &Event{Variables: map[string]value.Value{
		"api_key": value.New(value.String, value.Normal, "overridden"),
	}}

	HydrateVariables(vars, ev, true)

	got, _ := vars["v1"].Current.AsString()
	if got != "default" {
		t.Errorf("secret variable must not be overridden when filterSecrets=true, got %q", got)
	}
}

func TestHydrateVariables_AllowsSecretOverrideWhenFilterDisabled(t *testing.T) {
	vars := map[string]*board.Variable{
		"v1": strVar("api_key", true, true, "default"),
	}
	ev := &Event{Variables: map[string]value.Value{
		"api_key": value.New(value.String, value.Normal, "overridden"),
	}}

	HydrateVariables(vars, ev, false)

	got, _ := vars["v1"].Current.AsString()
	if got != "overridden" {
		t.Errorf("got %q, want %q", got, "overridden")
	}
}

func TestHydrateVariables_NilEventIsNoOp(t *testing.T) {
	vars := map[string]*board.Variable{
		"v1": strVar("greeting", true, false, "default"),
	}
	HydrateVariables(vars, nil, true)
	got, _ := vars["v1"].Current.AsString()
	if got != "default" {
		t.Errorf("nil event must leave variables untouched, got %q", got)
	}
}

func TestHydrateVariables_UnmatchedVariableKeepsDefault(t *testing.T) {
	vars := map[string]*board.Variable{
		"v1": strVar("greeting", true, false, "default"),
	}
	ev := &Event{Variables: map[string]value.Value{
		"unrelated": value.New(value.String, value.Normal, "x"),
	}}
	HydrateVariables(vars, ev, true)
	got, _ := vars["v1"].Current.AsString()
	if got != "default" {
		t.Errorf("got %q, want %q", got, "default")
	}
}
