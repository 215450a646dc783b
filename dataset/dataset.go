// Package dataset holds the immutable in-memory table produced by a crawl
// run. A snapshot is built once, never mutated, and shared read-only across
// any number of concurrent queries; a reload produces a brand-new snapshot
// that replaces the old one atomically.
package dataset

import (
	"sync/atomic"

	"github.com/aluiziolira/go-books-api/models"
)

// Dataset is one immutable snapshot of book records keyed by id.
type Dataset struct {
	records []*models.BookRecord
	byID    map[int]*models.BookRecord
}

// New builds a snapshot from records. The slice is copied so later mutation
// by the caller cannot leak into the snapshot.
func New(records []*models.BookRecord) *Dataset {
	copied := make([]*models.BookRecord, len(records))
	copy(copied, records)

	byID := make(map[int]*models.BookRecord, len(copied))
	for _, r := range copied {
		byID[r.ID] = r
	}
	return &Dataset{records: copied, byID: byID}
}

// Empty returns the explicit empty-dataset sentinel.
func Empty() *Dataset {
	return &Dataset{byID: map[int]*models.BookRecord{}}
}

// IsEmpty reports whether the snapshot holds no records. An empty snapshot
// is a first-class state: the crawl may never have run, or failed before
// capturing anything.
func (d *Dataset) IsEmpty() bool {
	return d == nil || len(d.records) == 0
}

// Len returns the number of records.
func (d *Dataset) Len() int {
	if d == nil {
		return 0
	}
	return len(d.records)
}

// Records returns all records in crawl order. Callers must not mutate the
// returned slice or the records it points to.
func (d *Dataset) Records() []*models.BookRecord {
	if d == nil {
		return nil
	}
	return d.records
}

// ByID looks up a record by its id.
func (d *Dataset) ByID(id int) (*models.BookRecord, bool) {
	if d == nil {
		return nil, false
	}
	r, ok := d.byID[id]
	return r, ok
}

// Store holds the snapshot currently visible to queries. Swaps are atomic:
// readers always see either the old table or the new one in full, never a
// partially-replaced one.
type Store struct {
	current atomic.Pointer[Dataset]
}

// NewStore creates a store seeded with d; a nil d seeds the empty sentinel.
func NewStore(d *Dataset) *Store {
	s := &Store{}
	if d == nil {
		d = Empty()
	}
	s.current.Store(d)
	return s
}

// Current returns the snapshot visible to queries right now.
func (s *Store) Current() *Dataset {
	return s.current.Load()
}

// Swap replaces the visible snapshot wholesale.
func (s *Store) Swap(d *Dataset) {
	if d == nil {
		d = Empty()
	}
	s.current.Store(d)
}
