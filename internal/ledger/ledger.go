// Package ledger provides the append-only incident record store. Records are
// immutable after append; reads are bounded projections.
package ledger

import (
	"sync"
	"time"

	"github.com/invisible-tech/autopilot-remediation-agent/internal/types"
)

// Ledger is an in-memory append-only store of finalized incident records.
// It is the sole writer of record ids. Old records are dropped once the
// retention count is exceeded.
type Ledger struct {
	mu        sync.RWMutex
	nextID    uint64
	records   []types.IncidentRecord
	retention int
}

// New creates a ledger retaining at most retention records. A retention of
// zero or less means 10000.
func New(retention int) *Ledger {
	if retention <= 0 {
		retention = 10000
	}
	return &Ledger{retention: retention}
}

// Append assigns an id and timestamp, inserts the record in one atomic
// operation, and returns the id. The caller must not mutate the record
// afterwards.
func (l *Ledger) Append(rec types.IncidentRecord) uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.nextID++
	rec.ID = l.nextID
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now().UTC()
	}
	l.records = append(l.records, rec)
	if len(l.records) > l.retention {
		l.records = l.records[len(l.records)-l.retention:]
	}
	return rec.ID
}

// Recent returns up to limit records, most recent first.
func (l *Ledger) Recent(limit int) []types.IncidentRecord {
	l.mu.RLock()
	defer l.mu.RUnlock()
	n := len(l.records)
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]types.IncidentRecord, limit)
	for i := 0; i < limit; i++ {
		out[i] = l.records[n-1-i]
	}
	return out
}

// Len returns the number of retained records.
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.records)
}
