// Package runtime implements the execution subsystem (§3-§4): the
// InternalPin/InternalNode runtime mirror of a Board,
// the pure-node dependency resolver, the frontier-driven scheduler, the
// execution context handed to node logic, and §4.5 error routing.
package runtime

import (
	"errors"
	"fmt"
)

// Kind is the abstract error taxonomy from §7.
type Kind string

const (
	KindDependencyFailed Kind = "dependency_failed"
	KindExecutionFailed  Kind = "execution_failed"
	KindPinNotReady      Kind = "pin_not_ready"
	KindConcurrencyLimit Kind = "concurrency_limit"
	KindCycle            Kind = "cycle"
	KindStagnation       Kind = "stagnation"
	KindLockTimeout      Kind = "lock_timeout"
	KindPersistenceError Kind = "persistence_error"
)

// Error is the concrete error type carrying a Kind plus the node/pin it
// concerns, so callers can branch on errors.As without string matching.
type Error struct {
	Kind   Kind
	NodeID string
	PinID  string
	Err    error
}

func (e *Error) Error() string {
	switch {
	case e.PinID != "":
		return fmt.Sprintf("%s: node %q pin %q: %v", e.Kind, e.NodeID, e.PinID, e.Err)
	case e.NodeID != "":
		return fmt.Sprintf("%s: node %q: %v", e.Kind, e.NodeID, e.Err)
	default:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Is allows errors.Is(err, runtime.KindX) style checks by comparing kinds
// when the target is itself an *Error with no wrapped cause.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) && t.Err == nil {
		return e.Kind == t.Kind
	}
	return false
}

func newErr(kind Kind, nodeID, pinID string, cause error) *Error {
	return &Error{Kind: kind, NodeID: nodeID, PinID: pinID, Err: cause}
}

// DependencyFailed wraps an upstream pure-node failure (§7).
func DependencyFailed(nodeID string, cause error) error {
	return newErr(KindDependencyFailed, nodeID, "", cause)
}

// ExecutionFailed wraps a node logic error (§7).
func ExecutionFailed(nodeID string, cause error) error {
	return newErr(KindExecutionFailed, nodeID, "", cause)
}

// PinNotReady reports a pin whose value could not be resolved (§7).
func PinNotReady(nodeID, pinID string, cause error) error {
	return newErr(KindPinNotReady, nodeID, pinID, cause)
}

// ConcurrencyLimit reports a per-node invocation cap violation (§7, §4.2).
func ConcurrencyLimit(nodeID string, limit uint64) error {
	return newErr(KindConcurrencyLimit, nodeID, "", fmt.Errorf("exceeded %d invocations", limit))
}

// Cycle reports a pure-dependency back-edge (§7, §4.3).
func Cycle(nodeID string) error {
	return newErr(KindCycle, nodeID, "", errors.New("cycle detected"))
}

// Stagnation reports an unchanged frontier signature across a step (§7, §4.4).
func Stagnation() error {
	return newErr(KindStagnation, "", "", errors.New("frontier signature unchanged between steps"))
}

// LockTimeout reports a failed lock acquisition within the configured
// timeout (§7, §4.8).
func LockTimeout(what string) error {
	return newErr(KindLockTimeout, "", "", fmt.Errorf("timed out acquiring lock: %s", what))
}

// PersistenceError wraps a columnar-writer failure after retries (§7, §4.6).
func PersistenceError(cause error) error {
	return newErr(KindPersistenceError, "", "", cause)
}

// KindOf extracts the Kind of err, if it (or something it wraps) is a
// runtime *Error.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}
