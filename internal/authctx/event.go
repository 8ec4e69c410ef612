package authctx

import (
	"github.com/flowcore-run/flowcore/pkg/board"
	"github.com/flowcore-run/flowcore/pkg/value"
)

// Event declares the variables used to hydrate a run's exposed variables
// (§6 "Event (optional): declares variables used to hydrate the run's
// exposed variables").
type Event struct {
	ID        string
	Version   string
	Variables map[string]value.Value
}

// HydrateVariables overwrites the Current value of every board Variable
// marked Exposed with the matching entry from the event, leaving
// unmatched or non-exposed variables at their authored default. Secret
// variables are only hydrated when filterSecrets is false (§6
// "filter_secrets=true (default) ignores untrusted secret overrides").
func HydrateVariables(vars map[string]*board.Variable, ev *Event, filterSecrets bool) {
	if ev == nil {
		return
	}
	for _, v := range vars {
		if !v.Exposed {
			continue
		}
		if v.Secret && filterSecrets {
			continue
		}
		if nv, ok := ev.Variables[v.Name]; ok {
			v.Current = nv
		}
	}
}
