package telemetry

import "github.com/google/uuid"

// LogMessage is one structured log entry (§4.6).
type LogMessage struct {
	ID      string
	NodeID  string
	Message string
	Level   Level
	Start   uint64 // microseconds since epoch
	EndAt   uint64 // defaults to Start; updated by Close()
	Payload []byte // optional structured payload
	Stats   []byte // optional structured stats
}

// NewLogMessage stamps a new message at nowMicros, open-ended until Close.
func NewLogMessage(nodeID, message string, level Level, nowMicros uint64) LogMessage {
	return LogMessage{
		ID:      uuid.NewString(),
		NodeID:  nodeID,
		Message: message,
		Level:   level,
		Start:   nowMicros,
		EndAt:   nowMicros,
	}
}

// Close stamps the message's closing timestamp.
func (m *LogMessage) Close(nowMicros uint64) { m.EndAt = nowMicros }

// Trace is the append-only, per-node-invocation bucket of LogMessages
// (§4.6). It is built up during one node trigger and moved onto the
// run's traces slice when the trace is ended (the runtime's endTrace).
type Trace struct {
	NodeID   string
	Messages []LogMessage
	ClosedAt uint64 // monotonic end_trace time; traces on the run are ordered by this
}

// NewTrace starts a trace for a node invocation.
func NewTrace(nodeID string) *Trace {
	return &Trace{NodeID: nodeID}
}

// Append adds a log message to the trace, preserving emission order
// (§5 "Logs within one node's trace are ordered by emission").
func (t *Trace) Append(m LogMessage) {
	t.Messages = append(t.Messages, m)
}

// HighestLevel returns the pointwise max level across this trace's messages.
func (t *Trace) HighestLevel() Level {
	var h Level
	for _, m := range t.Messages {
		h = Max(h, m.Level)
	}
	return h
}
