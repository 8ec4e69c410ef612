package runtime

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/flowcore-run/flowcore/internal/authctx"
	"github.com/flowcore-run/flowcore/internal/telemetry"
	"github.com/flowcore-run/flowcore/pkg/board"
	"github.com/flowcore-run/flowcore/pkg/value"
)

// tracer opens one span per node trigger, parented to whatever span is
// live on the incoming context (the run's root span, for a host that
// started one). Reads the process-wide TracerProvider, so a host that
// never calls tracing.New gets otel's built-in no-op and pays nothing.
var tracer = otel.Tracer("github.com/flowcore-run/flowcore/internal/runtime")

// Config holds the ambient execution limits (§4.2, §4.4, §4.8).
type Config struct {
	ConcurrencyLimit uint64        // per-node exec_calls cap, default 128000
	LockTimeout      time.Duration // default 3s
	FlushInterval    time.Duration // default 5s
}

// DefaultConfig returns the spec's documented defaults.
func DefaultConfig() Config {
	return Config{
		ConcurrencyLimit: 128000,
		LockTimeout:      3 * time.Second,
		FlushInterval:    5 * time.Second,
	}
}

// InternalRun is the runnable mirror of a Board (§3 InternalRun): every
// InternalNode/InternalPin it owns is constructed once in two phases
// (create-all, then wire edges) from the authoring Board.
type InternalRun struct {
	*Run

	board *board.Board
	Nodes map[string]*InternalNode

	config Config
	store  *telemetry.Store

	frontier   *RunStack
	frontierMu sync.Mutex

	cache       *SharedCache
	credentials *SharedCredentials
	jwt         string
	oauthTokens map[string]string
	user        UserContext
	profile     *Profile
	callback    chan any

	// hadNodeError latches true the moment any node's Run call fails, even
	// if §4.5 routes that failure to a handler that itself completes
	// cleanly. Checked by Execute before reporting RunSuccess (§8 E2E
	// scenario 3: "Error routed" still finishes Failed overall).
	hadNodeError int32

	flushCancel context.CancelFunc
	flushDone   chan struct{}
}

// New performs the two-phase construction of an InternalRun from a
// Board: every InternalNode and InternalPin is created first, then every
// pin's connected_to/depends_on id sets are resolved into direct
// InternalPin references (§3).
func New(b *board.Board, registry Registry, payload RunPayload, cfg Config, store *telemetry.Store) (*InternalRun, error) {
	r := &InternalRun{
		board:       b,
		Nodes:       make(map[string]*InternalNode, len(b.Nodes)),
		config:      cfg,
		store:       store,
		frontier:    NewRunStack(),
		cache:       NewSharedCache(),
		credentials: NewSharedCredentials(),
		oauthTokens: make(map[string]string),
		callback:    make(chan any, 64),
	}

	// Phase 1: create every node and its pins, bare (no edges yet).
	allPins := make(map[string]*InternalPin)
	for _, n := range b.Nodes {
		factory, ok := registry.Resolve(n.LogicName)
		if !ok {
			return nil, fmt.Errorf("runtime: no NodeLogic registered for %q (node %s)", n.LogicName, n.ID)
		}
		in := newInternalNode(n, factory())
		r.Nodes[in.ID] = in
		for id, p := range in.Pins {
			allPins[id] = p
		}
	}
	for id, p := range b.RelayPins() {
		allPins[id] = newInternalPin(p)
	}

	// Phase 2: wire every pin's edges now that all pins exist.
	for id, bp := range allOfBoardPins(b) {
		ip, ok := allPins[id]
		if !ok {
			continue
		}
		connected := make([]*InternalPin, 0, len(bp.ConnectedTo))
		for pid := range bp.ConnectedTo {
			if p, ok := allPins[pid]; ok {
				connected = append(connected, p)
			}
		}
		depends := make([]*InternalPin, 0, len(bp.DependsOn))
		for pid := range bp.DependsOn {
			if p, ok := allPins[pid]; ok {
				depends = append(depends, p)
			}
		}
		ip.wireEdges(connected, depends)
	}

	entry, ok := r.Nodes[payload.ID]
	if !ok {
		return nil, fmt.Errorf("runtime: RunPayload.ID %q does not name a node on this board", payload.ID)
	}

	resolveVariables(b, payload)

	r.jwt = payload.JWT
	subject := authctx.ExtractSubject(payload.JWT)
	r.Run = NewRun(newRunID(), "", b.ID, subject, entry.ID, r.nowMicros(), cfg.LockTimeout)
	r.Run.VersionString = fmt.Sprintf("%d.%d.%d", b.Version[0], b.Version[1], b.Version[2])
	if payload.Payload != nil {
		r.Run.Payload = payload.Payload
	}
	r.frontier.Push(entry, nil)
	return r, nil
}

// resolveVariables implements the §3 Variable priority-resolution
// algorithm at run start: runtime_variables override when
// runtime_configured || (secret && !filter_secrets); otherwise
// event_variables override when exposed; otherwise the board default.
// Applied in ascending priority order so a later pass always wins.
func resolveVariables(b *board.Board, payload RunPayload) {
	for _, v := range b.Variables {
		if dv, err := value.FromDefaultBytes(v.DataType, v.ValueType, v.Default); err == nil {
			v.Current = dv
		}
	}

	filterSecrets := payload.FilterSecretsOrDefault()
	authctx.HydrateVariables(b.Variables, payload.Event, filterSecrets)

	for _, v := range b.Variables {
		if !(v.RuntimeConfigured || (v.Secret && !filterSecrets)) {
			continue
		}
		raw, ok := payload.RuntimeVariables[v.Name]
		if !ok {
			continue
		}
		if rv, err := value.FromDefaultBytes(v.DataType, v.ValueType, raw); err == nil {
			v.Current = rv
		}
	}
}

func allOfBoardPins(b *board.Board) map[string]*board.Pin {
	out := make(map[string]*board.Pin)
	for _, n := range b.Nodes {
		for id, p := range n.Pins {
			out[id] = p
		}
	}
	for id, p := range b.RelayPins() {
		out[id] = p
	}
	return out
}

func newRunID() string {
	return fmt.Sprintf("run-%d", time.Now().UnixNano())
}

// nowMicros returns wall-clock microseconds since epoch (§5 "Global time
// source"); overflow is rejected at flush time, not here.
func (r *InternalRun) nowMicros() uint64 {
	return uint64(time.Now().UnixMicro())
}

// endTrace moves a context's accumulated trace onto the run (§4.6). A
// LockTimeout here can't be logged through r.trace, since that would
// re-enter endTrace; the trace is simply dropped, the affected branch for
// this particular lock (§4.8, §5).
func (r *InternalRun) endTrace(t *telemetry.Trace) {
	if err := r.Run.endTrace(t, r.nowMicros()); err != nil {
		fmt.Fprintf(os.Stderr, "runtime: dropping trace for node %s: %v\n", t.NodeID, err)
	}
}

// trace is a convenience used by code that has no live ExecutionContext
// (e.g. the dependency resolver's recursion-guard Debug log).
func (r *InternalRun) trace(nodeID string, level telemetry.Level, msg string, payload []byte) {
	t := telemetry.NewTrace(nodeID)
	m := telemetry.NewLogMessage(nodeID, msg, level, r.nowMicros())
	m.Payload = payload
	t.Append(m)
	r.endTrace(t)
}

// referencedFunctions resolves node-logic references to other nodes
// (§4.7 get_referenced_functions): any data input pin whose name ends in
// "_function" and whose resolved value is a node id string.
func (r *InternalRun) referencedFunctions(node *InternalNode) []*InternalNode {
	var out []*InternalNode
	for _, pin := range node.DataInputPins() {
		if len(pin.Name) < 9 || pin.Name[len(pin.Name)-9:] != "_function" {
			continue
		}
		v, ok := pin.currentValue()
		if !ok {
			continue
		}
		id, err := v.AsString()
		if err != nil {
			continue
		}
		if target, ok := r.Nodes[id]; ok {
			out = append(out, target)
		}
	}
	return out
}

// executePureNode runs a pure node's logic in isolation ("no successor
// fan-out" per §4.3): it has no execution pins, so its only observable
// effect is the values it writes to its own output pins.
func (r *InternalRun) executePureNode(ctx context.Context, ts *triggerState, node *InternalNode) error {
	_, err := r.invokeNode(ctx, ts, node)
	return err
}

// invokeNode runs one node's logic: increments its exec-call counter,
// executes it, finalizes its trace, and (for impure nodes) resolves the
// route taken on error per §4.5. Returns the set of execution output
// pins the logic activated, for the caller's successor fan-out.
func (r *InternalRun) invokeNode(ctx context.Context, ts *triggerState, node *InternalNode) (map[*InternalPin]bool, error) {
	exceeded, _ := node.IncrementExecCalls(r.config.ConcurrencyLimit)
	if exceeded {
		return nil, ConcurrencyLimit(node.ID, r.config.ConcurrencyLimit)
	}

	ctx, span := tracer.Start(ctx, "node.trigger", oteltrace.WithAttributes(
		attribute.String("node_id", node.ID),
		attribute.String("logic_name", node.LogicName),
	))
	defer span.End()

	node.SetState(StateRunning)
	ec := newExecContext(r, node, ts)

	err := node.Logic.Run(ctx, ec)
	if err != nil {
		ec.LogMessage(err.Error(), telemetry.Error)
		node.SetState(StateError)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		atomic.StoreInt32(&r.hadNodeError, 1)
	} else {
		node.SetState(StateSuccess)
	}
	ec.endTrace()

	if err != nil {
		return ec.activated, r.routeError(ctx, ts, node, ec, err)
	}
	return ec.activated, nil
}

// activeSuccessors returns the downstream InternalPins reachable through
// node's activated execution output pins, following the activation map
// captured during this node's own Run call.
func activeSuccessors(node *InternalNode, activated map[*InternalPin]bool) []*InternalPin {
	var out []*InternalPin
	for _, pin := range node.ExecutionOutputPins() {
		if !activated[pin] {
			continue
		}
		out = append(out, pin.connectedTo...)
	}
	return out
}

// Execute drains the frontier to completion (§4.4 Contract): runs the
// background flush ticker, steps until the frontier empties or
// stagnates, and performs a finalization flush.
func (r *InternalRun) Execute(ctx context.Context) error {
	r.startFlushTicker(ctx)
	defer r.stopFlushTicker()
	defer func() {
		for _, n := range r.Nodes {
			_ = n.Logic.OnDrop(ctx)
		}
	}()

	var lastSignature uint64
	first := true
	for !r.frontier.Empty() {
		sig := r.frontier.Signature()
		if !first && sig == lastSignature {
			r.Run.Status = RunFailed
			r.finalizeFlush(ctx)
			return Stagnation()
		}
		first = false
		lastSignature = sig

		progressed, err := r.step(ctx)
		if err != nil {
			r.Run.Status = RunFailed
			r.finalizeFlush(ctx)
			return err
		}
		if !progressed && !r.frontier.Empty() {
			r.Run.Status = RunFailed
			r.finalizeFlush(ctx)
			return Stagnation()
		}
	}

	if atomic.LoadInt32(&r.hadNodeError) == 1 {
		r.Run.Status = RunFailed
	} else {
		r.Run.Status = RunSuccess
	}
	r.finalizeFlush(ctx)
	return nil
}

// DebugStep advances the frontier by one generation and reports whether
// any target actually ran (§4.4 "debug_step (advance one frontier
// generation, return whether progress was made)").
func (r *InternalRun) DebugStep(ctx context.Context) (bool, error) {
	if r.frontier.Empty() {
		return false, nil
	}
	return r.step(ctx)
}

// step executes every currently-enqueued target (synchronously if there
// is exactly one, else with bounded parallelism = logical CPU count) and
// merges produced successors into a fresh frontier (§4.4 Step policy).
func (r *InternalRun) step(ctx context.Context) (bool, error) {
	targets := r.frontier.Drain()
	if len(targets) == 0 {
		return false, nil
	}

	next := NewRunStack()
	var nextMu sync.Mutex
	var anyRan int32

	runOne := func(ctx context.Context, t *execTarget) error {
		ts := newTriggerState()
		if err := r.ensureNodeDependencies(ctx, ts, t.node); err != nil {
			return DependencyFailed(t.node.ID, err)
		}
		activated, err := r.invokeNode(ctx, ts, t.node)
		atomic.StoreInt32(&anyRan, 1)
		if err != nil {
			return err
		}
		nextMu.Lock()
		for _, downstream := range activeSuccessors(t.node, activated) {
			if downstream.node != nil {
				next.Push(downstream.node, downstream)
			}
		}
		nextMu.Unlock()
		return nil
	}

	if len(targets) == 1 {
		if err := runOne(ctx, targets[0]); err != nil {
			return false, err
		}
	} else {
		limit := int64(runtime.NumCPU())
		sem := semaphore.NewWeighted(limit)
		g, gctx := errgroup.WithContext(ctx)
		for _, t := range targets {
			t := t
			g.Go(func() error {
				if err := sem.Acquire(gctx, 1); err != nil {
					return err
				}
				defer sem.Release(1)
				return runOne(gctx, t)
			})
		}
		if err := g.Wait(); err != nil {
			return false, err
		}
	}

	r.frontierMu.Lock()
	r.frontier = next
	r.frontierMu.Unlock()

	return atomic.LoadInt32(&anyRan) == 1, nil
}

// Fork resets an exhausted run for re-execution (§4.4 Fork semantics).
func (r *InternalRun) Fork() error {
	if !r.frontier.Empty() {
		return fmt.Errorf("runtime: cannot fork while frontier is non-empty")
	}
	r.cache.Reset()
	atomic.StoreInt32(&r.hadNodeError, 0)
	for _, n := range r.Nodes {
		n.resetExecCalls()
		n.SetState(StateIdle)
		for _, p := range n.Pins {
			p.resetValue()
		}
	}
	for _, v := range r.board.Variables {
		dv, err := value.FromDefaultBytes(v.DataType, v.ValueType, v.Default)
		if err == nil {
			v.Current = dv
		}
	}
	r.Run.Status = RunRunning
	entry := r.Nodes[r.Run.Meta().EntryID]
	if entry != nil {
		r.frontier.Push(entry, nil)
	}
	return nil
}

// startFlushTicker spawns the companion task that ticks every
// config.FlushInterval and calls a non-finalizing flush (§4.4 Background
// log flush).
func (r *InternalRun) startFlushTicker(parent context.Context) {
	ctx, cancel := context.WithCancel(parent)
	r.flushCancel = cancel
	r.flushDone = make(chan struct{})
	go func() {
		defer close(r.flushDone)
		ticker := time.NewTicker(r.config.FlushInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				r.prepareFlush(ctx, false)
			}
		}
	}()
}

func (r *InternalRun) stopFlushTicker() {
	if r.flushCancel != nil {
		r.flushCancel()
		<-r.flushDone
	}
}

func (r *InternalRun) finalizeFlush(ctx context.Context) {
	if err := r.Run.mu.lock(r.Run.lockTimeout); err != nil {
		r.trace(r.Run.meta.EntryID, telemetry.Error, "finalize: "+err.Error(), nil)
	} else {
		r.Run.EndMicros = r.nowMicros()
		r.Run.mu.unlock()
	}
	r.prepareFlush(ctx, true)
}

// prepareFlush assembles the batch under a brief lock, then writes it
// without holding the lock (§4.4: "preparation ... holds the run lock
// briefly; the actual write happens without the lock"). Re-entrant: safe
// to call concurrently from the ticker and the finalizer. A lock timeout
// while assembling the batch terminates just this flush attempt (§4.8,
// §5); the next tick or the caller's own retry tries again.
func (r *InternalRun) prepareFlush(ctx context.Context, final bool) {
	if r.store == nil {
		return
	}
	rows, err := r.Run.drainTraces()
	if err != nil {
		r.trace(r.Run.meta.EntryID, telemetry.Error, "flush: "+err.Error(), nil)
		return
	}

	batch := telemetry.FlushBatch{
		AppID:   r.Run.meta.AppID,
		BoardID: r.Run.meta.BoardID,
		RunID:   r.Run.meta.RunID,
		Rows:    rows,
		Final:   final,
	}
	if final {
		meta, err := r.Run.metaRow(r.Run.meta.EntryID)
		if err != nil {
			r.trace(r.Run.meta.EntryID, telemetry.Error, "flush: "+err.Error(), nil)
		} else {
			batch.Meta = &meta
		}
	}
	if err := r.store.Flush(batch); err != nil {
		r.trace(r.Run.meta.EntryID, telemetry.Error, "flush failed: "+err.Error(), nil)
	}
}

// Flush forces an immediate, non-finalizing persistence of whatever
// trace rows have accumulated so far. Exposed for hosts driving the run
// one generation at a time via DebugStep, which has no background
// flush ticker of its own.
func (r *InternalRun) Flush(ctx context.Context) {
	r.prepareFlush(ctx, false)
}

// Cancel implements the host-surfaced cancellation signal (§5): stamps a
// Fatal log, sets status Stopped, and performs a finalization flush even
// if the frontier is non-empty.
func (r *InternalRun) Cancel(ctx context.Context) {
	r.trace(r.Run.meta.EntryID, telemetry.Fatal, "Run cancelled", nil)
	if err := r.Run.mu.lock(r.Run.lockTimeout); err != nil {
		r.trace(r.Run.meta.EntryID, telemetry.Error, "cancel: "+err.Error(), nil)
	} else {
		r.Run.Status = RunStopped
		r.Run.mu.unlock()
	}
	r.finalizeFlush(ctx)
}
