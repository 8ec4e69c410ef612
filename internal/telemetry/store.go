package telemetry

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
)

// retryDelays is the flush retry/backoff schedule: after the first
// attempt fails, Flush retries up to 3 more times, waiting 100 ms, 200 ms
// and 400 ms before each retry.
var retryDelays = []time.Duration{100 * time.Millisecond, 200 * time.Millisecond, 400 * time.Millisecond}

const (
	bucketRuns = "runs" // top-level meta table: runs/{app_id}/{board_id}/{run_id} -> meta row

	subBucketLogs      = "logs"
	subBucketIdxEvent   = "idx_event_id"
	subBucketIdxNode    = "idx_node_id"
	subBucketIdxLevel   = "idx_log_level"
)

// MetaRow is the finalization-flush record written into the top-level
// runs table (§4.6, point 4).
type MetaRow struct {
	AppID          string            `json:"app_id"`
	RunID          string            `json:"run_id"`
	BoardID        string            `json:"board_id"`
	StartMicros    uint64            `json:"start_micros"`
	EndMicros      uint64            `json:"end_micros"`
	HighestLevel   Level             `json:"highest_level"`
	Version        string            `json:"version"`
	VisitedNodes   map[string]Level  `json:"visited_nodes"`
	LogCount       uint64            `json:"log_count"`
	EntryNodeID    string            `json:"entry_node_id"`
	EventID        string            `json:"event_id,omitempty"`
	EventVersion   string            `json:"event_version,omitempty"`
	Payload        []byte            `json:"payload,omitempty"`
}

// Store is the durable backing for flushed traces: one bbolt bucket tree
// of log rows per runs/tree_{app_id}/{board_id}/{run_id}, plus meta rows
// stored under runs/{app_id}/{board_id} keyed by run id. Grounded on octoreflex's internal/storage/bolt.go ACID
// bucket-per-key-range layout.
type Store struct {
	db *bolt.DB
}

// Open opens (or creates) the bbolt database backing the columnar store.
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 3 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("telemetry: bolt.Open(%q): %w", path, err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketRuns))
		return err
	}); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("telemetry: init runs bucket: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error { return s.db.Close() }

// FlushBatch is one drained, assembled flush unit (§4.6 Persistence).
type FlushBatch struct {
	AppID   string
	BoardID string
	RunID   string
	Rows    []LogMessage
	Final   bool
	Meta    *MetaRow // set only when Final
}

// Flush writes one batch, retrying with the configured backoff schedule
// and dropping/recreating a corrupted run bucket tree on open failure.
func (s *Store) Flush(batch FlushBatch) error {
	if len(batch.Rows) == 0 && !batch.Final {
		return nil
	}

	var lastErr error
	for attempt := 0; attempt <= len(retryDelays); attempt++ {
		if attempt > 0 {
			time.Sleep(retryDelays[attempt-1])
		}
		if err := s.flushOnce(batch); err != nil {
			lastErr = err
			continue
		}
		return nil
	}
	return PersistenceErrorf("flush failed after %d attempts: %w", len(retryDelays)+1, lastErr)
}

func (s *Store) flushOnce(batch FlushBatch) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		runBucket, err := s.openOrRecreateRunBucket(tx, batch.AppID, batch.BoardID, batch.RunID)
		if err != nil {
			return err
		}

		if len(batch.Rows) > 0 {
			rec := buildRecordBatch(nil, batch.Rows)
			data, err := serializeRecord(rec)
			if err != nil {
				return err
			}
			logsBucket, err := runBucket.CreateBucketIfNotExists([]byte(subBucketLogs))
			if err != nil {
				return fmt.Errorf("create logs bucket: %w", err)
			}
			seq, err := logsBucket.NextSequence()
			if err != nil {
				return err
			}
			key := flushKey(batch.Rows[0].Start, seq)
			if err := logsBucket.Put(key, data); err != nil {
				return fmt.Errorf("put log batch: %w", err)
			}
			if err := indexBatch(runBucket, key, batch.Rows); err != nil {
				return err
			}
		}

		if batch.Final && batch.Meta != nil {
			appBucket, err := tx.Bucket([]byte(bucketRuns)).CreateBucketIfNotExists([]byte(batch.AppID))
			if err != nil {
				return fmt.Errorf("create app bucket: %w", err)
			}
			boardBucket, err := appBucket.CreateBucketIfNotExists([]byte(batch.BoardID))
			if err != nil {
				return fmt.Errorf("create board bucket: %w", err)
			}
			metaBytes, err := json.Marshal(batch.Meta)
			if err != nil {
				return fmt.Errorf("marshal meta row: %w", err)
			}
			if err := boardBucket.Put([]byte(batch.RunID), metaBytes); err != nil {
				return fmt.Errorf("put meta row: %w", err)
			}
		}
		return nil
	})
}

// openOrRecreateRunBucket opens runs/{app}/{board}/{run}, dropping and
// recreating the bucket tree if it is present but corrupted (§4.6:
// "Corrupted tables (detected by open-failure) are dropped and
// recreated").
func (s *Store) openOrRecreateRunBucket(tx *bolt.Tx, appID, boardID, runID string) (*bolt.Bucket, error) {
	root := tx.Bucket([]byte(bucketRuns))
	appB, err := root.CreateBucketIfNotExists([]byte("tree_" + appID))
	if err != nil {
		return nil, fmt.Errorf("create app tree bucket: %w", err)
	}
	boardB, err := appB.CreateBucketIfNotExists([]byte(boardID))
	if err != nil {
		return nil, fmt.Errorf("create board tree bucket: %w", err)
	}
	runB, err := boardB.CreateBucketIfNotExists([]byte(runID))
	if err != nil {
		// The bucket name collides with an existing non-bucket key:
		// drop and recreate rather than fail the run.
		if delErr := boardB.Delete([]byte(runID)); delErr != nil {
			return nil, fmt.Errorf("recreate corrupted run bucket: %w (original: %v)", delErr, err)
		}
		runB, err = boardB.CreateBucketIfNotExists([]byte(runID))
		if err != nil {
			return nil, fmt.Errorf("recreate run bucket: %w", err)
		}
	}
	return runB, nil
}

// flushKey is the B-tree ordering key for a log batch: big-endian
// microsecond timestamp (ordered-bucket-key behavior) plus the bucket
// sequence to disambiguate same-microsecond flushes.
func flushKey(startMicros, seq uint64) []byte {
	key := make([]byte, 16)
	binary.BigEndian.PutUint64(key[:8], startMicros)
	binary.BigEndian.PutUint64(key[8:], seq)
	return key
}

// indexBatch maintains the bitmap indexes on node_id and log_level:
// nested buckets mapping an index value to the set of log-batch keys that
// contain a matching row, created on first write. The event_id index
// bucket (subBucketIdxEvent) is not written.
func indexBatch(runBucket *bolt.Bucket, key []byte, rows []LogMessage) error {
	nodeIdx, err := runBucket.CreateBucketIfNotExists([]byte(subBucketIdxNode))
	if err != nil {
		return err
	}
	levelIdx, err := runBucket.CreateBucketIfNotExists([]byte(subBucketIdxLevel))
	if err != nil {
		return err
	}

	seenNode := make(map[string]bool)
	seenLevel := make(map[Level]bool)
	for _, r := range rows {
		if !seenNode[r.NodeID] {
			seenNode[r.NodeID] = true
			if err := addIndexEntry(nodeIdx, []byte(r.NodeID), key); err != nil {
				return err
			}
		}
		if !seenLevel[r.Level] {
			seenLevel[r.Level] = true
			if err := addIndexEntry(levelIdx, []byte{byte(r.Level)}, key); err != nil {
				return err
			}
		}
	}
	return nil
}

// addIndexEntry appends key to the bitmap list stored under idxKey,
// creating the nested bucket on first write for this index value.
func addIndexEntry(idx *bolt.Bucket, idxKey, key []byte) error {
	b, err := idx.CreateBucketIfNotExists(idxKey)
	if err != nil {
		return err
	}
	return b.Put(key, []byte{1})
}

// PersistenceErrorf formats a wrapped persistence-layer error. Kept
// separate from internal/runtime's error taxonomy so this package has no
// dependency on internal/runtime (it is a leaf, imported by it instead).
func PersistenceErrorf(format string, args ...any) error {
	return fmt.Errorf("telemetry: "+format, args...)
}
