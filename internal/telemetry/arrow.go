package telemetry

import (
	"bytes"
	"fmt"

	"github.com/apache/arrow/go/v14/arrow"
	"github.com/apache/arrow/go/v14/arrow/array"
	"github.com/apache/arrow/go/v14/arrow/ipc"
	"github.com/apache/arrow/go/v14/arrow/memory"
)

// rowSchema is the persisted columnar record layout (§4.6 / §6): one row
// per log entry. Grounded on original_source's flow_like_storage use of
// arrow_array/arrow_schema to build the batch handed to its columnar
// store, before the write path diverges into bbolt (no Go LanceDB
// binding exists).
var rowSchema = arrow.NewSchema([]arrow.Field{
	{Name: "id", Type: arrow.BinaryTypes.String},
	{Name: "message", Type: arrow.BinaryTypes.String},
	{Name: "level", Type: arrow.PrimitiveTypes.Uint8},
	{Name: "start", Type: arrow.PrimitiveTypes.Uint64},
	{Name: "end", Type: arrow.PrimitiveTypes.Uint64},
	{Name: "node_id", Type: arrow.BinaryTypes.String},
	{Name: "payload", Type: arrow.BinaryTypes.Binary, Nullable: true},
	{Name: "stats", Type: arrow.BinaryTypes.Binary, Nullable: true},
}, nil)

// buildRecordBatch assembles one Arrow RecordBatch from a drained set of
// log messages (§4.6 Persistence, step 1: "Drains all trace logs into a
// single row-batch").
func buildRecordBatch(mem memory.Allocator, rows []LogMessage) arrow.Record {
	if mem == nil {
		mem = memory.DefaultAllocator
	}
	b := array.NewRecordBuilder(mem, rowSchema)
	defer b.Release()

	idB := b.Field(0).(*array.StringBuilder)
	msgB := b.Field(1).(*array.StringBuilder)
	lvlB := b.Field(2).(*array.Uint8Builder)
	startB := b.Field(3).(*array.Uint64Builder)
	endB := b.Field(4).(*array.Uint64Builder)
	nodeB := b.Field(5).(*array.StringBuilder)
	payloadB := b.Field(6).(*array.BinaryBuilder)
	statsB := b.Field(7).(*array.BinaryBuilder)

	for _, r := range rows {
		idB.Append(r.ID)
		msgB.Append(r.Message)
		lvlB.Append(uint8(r.Level))
		startB.Append(r.Start)
		endB.Append(r.EndAt)
		nodeB.Append(r.NodeID)
		if r.Payload == nil {
			payloadB.AppendNull()
		} else {
			payloadB.Append(r.Payload)
		}
		if r.Stats == nil {
			statsB.AppendNull()
		} else {
			statsB.Append(r.Stats)
		}
	}

	return b.NewRecord()
}

// serializeRecord encodes a RecordBatch via the Arrow IPC stream format
// into plain bytes, suitable as a bbolt value.
func serializeRecord(rec arrow.Record) ([]byte, error) {
	defer rec.Release()
	var buf bytes.Buffer
	w := ipc.NewWriter(&buf, ipc.WithSchema(rec.Schema()))
	if err := w.Write(rec); err != nil {
		return nil, fmt.Errorf("telemetry: write ipc record: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("telemetry: close ipc writer: %w", err)
	}
	return buf.Bytes(), nil
}

// deserializeRows decodes an IPC stream previously produced by
// serializeRecord back into LogMessage rows (used by store inspection
// tooling, e.g. `flowrun` trace dumps).
func deserializeRows(data []byte) ([]LogMessage, error) {
	r, err := ipc.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("telemetry: new ipc reader: %w", err)
	}
	defer r.Release()

	var out []LogMessage
	for r.Next() {
		rec := r.Record()
		idCol := rec.Column(0).(*array.String)
		msgCol := rec.Column(1).(*array.String)
		lvlCol := rec.Column(2).(*array.Uint8)
		startCol := rec.Column(3).(*array.Uint64)
		endCol := rec.Column(4).(*array.Uint64)
		nodeCol := rec.Column(5).(*array.String)
		payloadCol := rec.Column(6).(*array.Binary)
		statsCol := rec.Column(7).(*array.Binary)

		for i := 0; i < int(rec.NumRows()); i++ {
			row := LogMessage{
				ID:      idCol.Value(i),
				Message: msgCol.Value(i),
				Level:   Level(lvlCol.Value(i)),
				Start:   startCol.Value(i),
				EndAt:   endCol.Value(i),
				NodeID:  nodeCol.Value(i),
			}
			if !payloadCol.IsNull(i) {
				row.Payload = append([]byte(nil), payloadCol.Value(i)...)
			}
			if !statsCol.IsNull(i) {
				row.Stats = append([]byte(nil), statsCol.Value(i)...)
			}
			out = append(out, row)
		}
	}
	if err := r.Err(); err != nil {
		return nil, fmt.Errorf("telemetry: read ipc records: %w", err)
	}
	return out, nil
}
