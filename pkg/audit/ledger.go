// Package audit persists a rolling log of Matryoshka target-power
// decisions and resampler ResamplingErrors to an embedded bbolt store for
// post-hoc inspection, grounded on the teacher's pkg/gps bbolt-backed cache
// (bucket layout, bolt.Open options, Update/View transaction shape) but
// adapted from a cell-location cache to a decision/error ledger. This is
// not cross-process coordination or restart-spanning state recovery —
// spec.md's Non-goals still exclude that; the store exists purely so an
// operator can inspect what happened after the fact.
package audit

import (
	"encoding/json"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/holmgren-io/microgrid-core/pkg/logx"
)

const (
	decisionsBucket = "decisions"
	errorsBucket    = "resampling_errors"
	metadataBucket  = "metadata"
)

// PowerDecision is one Matryoshka CalculateTargetPower outcome, recorded
// for a single battery set.
type PowerDecision struct {
	Timestamp   time.Time `json:"timestamp"`
	BatterySet  []string  `json:"battery_set"`
	SourceID    string    `json:"source_id"`
	Priority    int       `json:"priority"`
	TargetPower *float64  `json:"target_power,omitempty"`
	Sent        bool      `json:"sent"`
}

// ResamplingFailure is one source's failure cause from a single
// ResamplerScheduler pass.
type ResamplingFailure struct {
	Timestamp time.Time `json:"timestamp"`
	Source    string    `json:"source"`
	Cause     string    `json:"cause"`
}

// Ledger is an embedded, append-mostly store of decisions and failures.
// A single writer is assumed, matching spec.md §5's single-writer ledger
// model for Matryoshka's in-memory state.
type Ledger struct {
	db         *bolt.DB
	logger     *logx.Logger
	maxEntries int
}

// Open creates or opens the bbolt file at path and ensures its buckets
// exist. maxEntries bounds each bucket via FIFO trimming on every append;
// maxEntries <= 0 disables trimming.
func Open(path string, maxEntries int, logger *logx.Logger) (*Ledger, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("audit: open %s: %w", path, err)
	}

	l := &Ledger{db: db, logger: logger, maxEntries: maxEntries}
	if err := l.initBuckets(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return l, nil
}

func (l *Ledger) initBuckets() error {
	return l.db.Update(func(tx *bolt.Tx) error {
		for _, name := range []string{decisionsBucket, errorsBucket, metadataBucket} {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return fmt.Errorf("audit: create bucket %s: %w", name, err)
			}
		}
		return nil
	})
}

// Close closes the underlying bbolt file.
func (l *Ledger) Close() error {
	return l.db.Close()
}

// RecordDecision appends a PowerDecision, keyed by a monotonically
// increasing sequence number so iteration order matches insertion order.
func (l *Ledger) RecordDecision(d PowerDecision) error {
	return l.append(decisionsBucket, d)
}

// RecordResamplingFailure appends one source's failure from a scheduler
// pass.
func (l *Ledger) RecordResamplingFailure(f ResamplingFailure) error {
	return l.append(errorsBucket, f)
}

func (l *Ledger) append(bucket string, value interface{}) error {
	return l.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucket))
		seq, err := b.NextSequence()
		if err != nil {
			return fmt.Errorf("audit: next sequence for %s: %w", bucket, err)
		}

		data, err := json.Marshal(value)
		if err != nil {
			return fmt.Errorf("audit: marshal %s entry: %w", bucket, err)
		}

		if err := b.Put(itob(seq), data); err != nil {
			return fmt.Errorf("audit: put %s entry: %w", bucket, err)
		}

		if l.maxEntries > 0 {
			trimOldest(b, l.maxEntries)
		}
		return nil
	})
}

// trimOldest deletes entries from the front of b until its key count is at
// most limit. Assumes keys are monotonically increasing (NextSequence),
// so bucket iteration order is also insertion order.
func trimOldest(b *bolt.Bucket, limit int) {
	// Count through a cursor: Stats() reads committed pages and does not see
	// the entry just put in this write transaction.
	c := b.Cursor()
	count := 0
	for k, _ := c.First(); k != nil; k, _ = c.Next() {
		count++
	}
	for k, _ := c.First(); k != nil && count > limit; k, _ = c.First() {
		_ = c.Delete()
		count--
	}
}

// RecentDecisions returns up to limit of the most recently recorded
// decisions, newest last.
func (l *Ledger) RecentDecisions(limit int) ([]PowerDecision, error) {
	var out []PowerDecision
	err := l.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(decisionsBucket))
		return forEachRecent(b, limit, func(data []byte) error {
			var d PowerDecision
			if err := json.Unmarshal(data, &d); err != nil {
				return err
			}
			out = append(out, d)
			return nil
		})
	})
	return out, err
}

// RecentResamplingFailures returns up to limit of the most recently
// recorded resampling failures, newest last.
func (l *Ledger) RecentResamplingFailures(limit int) ([]ResamplingFailure, error) {
	var out []ResamplingFailure
	err := l.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(errorsBucket))
		return forEachRecent(b, limit, func(data []byte) error {
			var f ResamplingFailure
			if err := json.Unmarshal(data, &f); err != nil {
				return err
			}
			out = append(out, f)
			return nil
		})
	})
	return out, err
}

func forEachRecent(b *bolt.Bucket, limit int, fn func([]byte) error) error {
	total := b.Stats().KeyN
	skip := total - limit
	i := 0
	c := b.Cursor()
	for k, v := c.First(); k != nil; k, v = c.Next() {
		i++
		if skip > 0 && i <= skip {
			continue
		}
		if err := fn(v); err != nil {
			return err
		}
	}
	return nil
}

func itob(v uint64) []byte {
	b := make([]byte, 8)
	for i := 7; i >= 0; i-- {
		b[i] = byte(v & 0xff)
		v >>= 8
	}
	return b
}
