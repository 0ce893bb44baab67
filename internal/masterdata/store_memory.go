package masterdata

import (
	"context"
	"fmt"
	"sync"

	"casedocs/pkg/platform/sentinel"
)

// InMemoryStore keeps master records in a map. Used by tests and the offline fill command.
type InMemoryStore struct {
	mu      sync.RWMutex
	records map[string]Record
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{records: make(map[string]Record)}
}

func (s *InMemoryStore) Put(caseID string, record Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[caseID] = record.Clone()
}

func (s *InMemoryStore) Get(_ context.Context, caseID string) (Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.records[caseID]
	if !ok {
		return nil, fmt.Errorf("master record %s: %w", caseID, sentinel.ErrNotFound)
	}
	return record.Clone(), nil
}
