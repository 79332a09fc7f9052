package workflow

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore is an in-memory Store implementation, used in tests and for
// runs where history does not need to survive the process.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]*Record
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]*Record)}
}

func (s *MemoryStore) SaveRecord(_ context.Context, record *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[record.ExecutionID] = record.Copy()
	return nil
}

func (s *MemoryStore) GetRecord(_ context.Context, executionID string) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.records[executionID]
	if !ok {
		return nil, ErrRecordNotFound
	}
	return record.Copy(), nil
}

func (s *MemoryStore) ListRecords(_ context.Context, filter Filter) ([]*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []*Record
	for _, record := range s.records {
		if matchesFilter(record, filter) {
			matched = append(matched, record.Copy())
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].StartTime.After(matched[j].StartTime)
	})
	return applyWindow(matched, filter), nil
}

func (s *MemoryStore) DeleteRecord(_ context.Context, executionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, executionID)
	return nil
}

func matchesFilter(record *Record, filter Filter) bool {
	if filter.Status != "" && record.Status != filter.Status {
		return false
	}
	if filter.ModelID != "" && record.ModelID != filter.ModelID {
		return false
	}
	if !filter.Since.IsZero() && record.StartTime.Before(filter.Since) {
		return false
	}
	if !filter.Until.IsZero() && record.StartTime.After(filter.Until) {
		return false
	}
	return true
}

func applyWindow(records []*Record, filter Filter) []*Record {
	if filter.Offset > 0 {
		if filter.Offset >= len(records) {
			return nil
		}
		records = records[filter.Offset:]
	}
	if filter.Limit > 0 && filter.Limit < len(records) {
		records = records[:filter.Limit]
	}
	return records
}
