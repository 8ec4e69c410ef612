package runtime

import (
	"context"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/flowcore-run/flowcore/internal/authctx"
	"github.com/flowcore-run/flowcore/internal/telemetry"
)

// runMutex is a mutex that fails closed instead of blocking forever: every
// acquisition races against a configured timeout and returns LockTimeout
// instead of wedging the run (§4.8, §5: "every lock on Run within hot
// paths is obtained with timeout; failure logs an error and terminates
// the affected branch").
type runMutex struct {
	sem *semaphore.Weighted
}

func newRunMutex() *runMutex {
	return &runMutex{sem: semaphore.NewWeighted(1)}
}

func (m *runMutex) lock(timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := m.sem.Acquire(ctx, 1); err != nil {
		return LockTimeout("run")
	}
	return nil
}

func (m *runMutex) unlock() {
	m.sem.Release(1)
}

// RunStatus is the run-level state machine (§4.4/§5).
type RunStatus int

const (
	RunRunning RunStatus = iota
	RunSuccess
	RunFailed
	RunStopped
)

func (s RunStatus) String() string {
	switch s {
	case RunRunning:
		return "running"
	case RunSuccess:
		return "success"
	case RunFailed:
		return "failed"
	case RunStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// RunPayload nominates the entry node and carries the run's inputs (§6).
type RunPayload struct {
	ID               string // entry node id
	Payload          []byte // serialized initial value, optional
	JWT              string // optional bearer token; subject falls back to authctx.DefaultSubject
	Event            *authctx.Event
	RuntimeVariables map[string][]byte // variable name -> wire-encoded override
	FilterSecrets    *bool             // nil means default true
}

// FilterSecretsOrDefault returns the effective filter_secrets flag.
func (p RunPayload) FilterSecretsOrDefault() bool {
	if p.FilterSecrets == nil {
		return true
	}
	return *p.FilterSecrets
}

// RunMeta caches immutable Run fields for lock-free reads on hot paths
// (§5: "Hot paths cache immutable Run fields in RunMeta").
type RunMeta struct {
	RunID    string
	AppID    string
	BoardID  string
	Subject  string
	EntryID  string
}

// Run is the mutable per-execution record (§3 Run).
type Run struct {
	meta RunMeta

	mu          *runMutex
	lockTimeout time.Duration

	Status         RunStatus
	Traces         []*telemetry.Trace
	StartMicros    uint64
	EndMicros      uint64
	HighestLevel   telemetry.Level
	VisitedNodes   map[string]telemetry.Level
	LogCount       uint64
	EventID        string
	EventVersion   string
	Payload        []byte

	VersionString string
}

// NewRun creates a fresh Run record for the given identifiers. lockTimeout
// bounds every subsequent Run.mu acquisition (§4.8, §5).
func NewRun(runID, appID, boardID, subject, entryID string, nowMicros uint64, lockTimeout time.Duration) *Run {
	return &Run{
		meta: RunMeta{
			RunID:   runID,
			AppID:   appID,
			BoardID: boardID,
			Subject: subject,
			EntryID: entryID,
		},
		mu:           newRunMutex(),
		lockTimeout:  lockTimeout,
		Status:       RunRunning,
		StartMicros:  nowMicros,
		VisitedNodes: make(map[string]telemetry.Level),
	}
}

// Meta returns the cached immutable identifiers.
func (r *Run) Meta() RunMeta { return r.meta }

// endTrace moves a trace onto the run's traces vector, updating the
// pointwise-max invariants (§4.6). Returns LockTimeout if the run lock
// can't be acquired within lockTimeout, in which case the trace is
// dropped rather than blocking the invoking branch indefinitely.
func (r *Run) endTrace(t *telemetry.Trace, nowMicros uint64) error {
	if err := r.mu.lock(r.lockTimeout); err != nil {
		return err
	}
	defer r.mu.unlock()
	t.ClosedAt = nowMicros
	r.Traces = append(r.Traces, t)
	level := t.HighestLevel()
	r.HighestLevel = telemetry.Max(r.HighestLevel, level)
	r.VisitedNodes[t.NodeID] = telemetry.Max(r.VisitedNodes[t.NodeID], level)
	return nil
}

// drainTraces removes and returns every buffered trace's rows flattened
// for a flush (§4.6 Persistence step 1).
func (r *Run) drainTraces() (rows []telemetry.LogMessage, err error) {
	if err := r.mu.lock(r.lockTimeout); err != nil {
		return nil, err
	}
	defer r.mu.unlock()
	for _, t := range r.Traces {
		rows = append(rows, t.Messages...)
	}
	r.Traces = nil
	r.LogCount += uint64(len(rows))
	return rows, nil
}

// metaRow builds the finalization meta row (§4.6 point 4).
func (r *Run) metaRow(entryID string) (telemetry.MetaRow, error) {
	if err := r.mu.lock(r.lockTimeout); err != nil {
		return telemetry.MetaRow{}, err
	}
	defer r.mu.unlock()
	visited := make(map[string]telemetry.Level, len(r.VisitedNodes))
	for k, v := range r.VisitedNodes {
		visited[k] = v
	}
	return telemetry.MetaRow{
		AppID:        r.meta.AppID,
		RunID:        r.meta.RunID,
		BoardID:      r.meta.BoardID,
		StartMicros:  r.StartMicros,
		EndMicros:    r.EndMicros,
		HighestLevel: r.HighestLevel,
		Version:      r.VersionString,
		VisitedNodes: visited,
		LogCount:     r.LogCount,
		EntryNodeID:  entryID,
		EventID:      r.EventID,
		EventVersion: r.EventVersion,
		Payload:      r.Payload,
	}, nil
}
