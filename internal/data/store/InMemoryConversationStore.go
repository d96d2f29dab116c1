package store

import (
	"context"
	"sync"

	"github.com/mferrand/ragapi/internal/domain/ragModel"
)

// InMemoryConversationStore is the degraded-mode fallback when Redis is
// unreachable at startup. Conversations do not survive a restart.
type InMemoryConversationStore struct {
	mu    sync.RWMutex
	turns map[string][]ragModel.ConversationTurn
}

func InitInMemoryConversationStore() *InMemoryConversationStore {
	return &InMemoryConversationStore{
		turns: make(map[string][]ragModel.ConversationTurn),
	}
}

func (s *InMemoryConversationStore) AppendTurn(ctx context.Context, conversationID string, turn ragModel.ConversationTurn) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turns[conversationID] = append(s.turns[conversationID], turn)
	return nil
}

func (s *InMemoryConversationStore) RecentTurns(ctx context.Context, conversationID string, n int) ([]ragModel.ConversationTurn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	all := s.turns[conversationID]
	if len(all) > n {
		all = all[len(all)-n:]
	}
	out := make([]ragModel.ConversationTurn, len(all))
	copy(out, all)
	return out, nil
}

func (s *InMemoryConversationStore) AllTurns(ctx context.Context, conversationID string) ([]ragModel.ConversationTurn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	all := s.turns[conversationID]
	out := make([]ragModel.ConversationTurn, len(all))
	copy(out, all)
	return out, nil
}

func (s *InMemoryConversationStore) Exists(ctx context.Context, conversationID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.turns[conversationID]
	return ok, nil
}
