package store

import (
	"context"
	"sync"

	"github.com/mferrand/ragapi/internal/domain/ragModel"
)

type InMemoryDocumentStore struct {
	mu      sync.RWMutex
	records map[string]ragModel.DocumentRecord
}

func InitInMemoryDocumentStore() *InMemoryDocumentStore {
	return &InMemoryDocumentStore{
		records: make(map[string]ragModel.DocumentRecord),
	}
}

func (s *InMemoryDocumentStore) SaveDocument(ctx context.Context, record ragModel.DocumentRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[record.ID] = record
	return nil
}

func (s *InMemoryDocumentStore) GetDocument(ctx context.Context, documentID string) (ragModel.DocumentRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, found := s.records[documentID]
	return record, found
}

func (s *InMemoryDocumentStore) DeleteDocument(ctx context.Context, documentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, documentID)
	return nil
}
