// Package results holds the ordered, uniquely keyed set of tabular results
// produced during a session.
package results

import (
	"sync"

	"github.com/doeshing/dexplorer/internal/domain"
	"github.com/doeshing/dexplorer/internal/ports"
)

// Store keeps result records in insertion order. Keys come from a counter that
// starts at 1 and is never reset, so a key is never handed out twice.
type Store struct {
	mu      sync.Mutex
	results []domain.ResultRecord
	lastKey int
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{}
}

// NextKey allocates the next record key.
func (s *Store) NextKey() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastKey++
	return s.lastKey
}

// Append adds record at the end of the collection.
func (s *Store) Append(record domain.ResultRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results = append(s.results, record)
}

// Remove deletes the record with the given key. Unknown keys are ignored.
func (s *Store) Remove(key int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, rec := range s.results {
		if rec.Key == key {
			s.results = append(s.results[:i:i], s.results[i+1:]...)
			return true
		}
	}
	return false
}

// Clear drops every record whose type is one of kinds and returns how many
// were removed. Survivors keep their relative order.
func (s *Store) Clear(kinds ...domain.QueryKind) int {
	if len(kinds) == 0 {
		return 0
	}
	drop := make(map[domain.QueryKind]struct{}, len(kinds))
	for _, k := range kinds {
		drop[k] = struct{}{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	kept := make([]domain.ResultRecord, 0, len(s.results))
	for _, rec := range s.results {
		if _, ok := drop[rec.Type]; ok {
			continue
		}
		kept = append(kept, rec)
	}
	removed := len(s.results) - len(kept)
	s.results = kept
	return removed
}

// Results returns a copy of the records in insertion order.
func (s *Store) Results() []domain.ResultRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.ResultRecord, len(s.results))
	copy(out, s.results)
	return out
}

// Get looks up a record by key.
func (s *Store) Get(key int) (domain.ResultRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range s.results {
		if rec.Key == key {
			return rec, true
		}
	}
	return domain.ResultRecord{}, false
}

// Len returns the number of stored records.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.results)
}

var _ ports.ResultRepository = (*Store)(nil)
