package store

import (
	"context"
	"encoding/json"

	"github.com/mferrand/ragapi/internal/config"
	"github.com/mferrand/ragapi/internal/data/redisStore"
	"github.com/mferrand/ragapi/internal/domain/ragModel"
	"github.com/mferrand/ragapi/pkg/logger_i"
)

// RedisConversationStore keeps each conversation as a Redis list of JSON
// turns, oldest first. The list TTL slides on every append.
type RedisConversationStore struct {
	store  *redisStore.Store
	logger *logger_i.Logger
}

func GetRedisConversationStore(ctx context.Context) *RedisConversationStore {
	internal := redisStore.GetRedisStore(ctx, config.RedisConversationStore)
	if internal == nil {
		return nil
	}
	return &RedisConversationStore{
		store:  internal,
		logger: logger_i.NewLogger("ConversationStore"),
	}
}

func (s *RedisConversationStore) AppendTurn(ctx context.Context, conversationID string, turn ragModel.ConversationTurn) error {
	log := s.logger.With("traceId", ctx.Value(config.TRACE_ID_KEY), "conversationId", conversationID)

	data, err := json.Marshal(turn)
	if err != nil {
		return err
	}
	if err := s.store.ListPush(ctx, conversationID, data, config.RedisConversationStoreTTL); err != nil {
		log.Error("error saving turn", "error", err)
		return err
	}
	return nil
}

func (s *RedisConversationStore) RecentTurns(ctx context.Context, conversationID string, n int) ([]ragModel.ConversationTurn, error) {
	raw, err := s.store.ListGetLastN(ctx, conversationID, n)
	if err != nil {
		return nil, err
	}
	return s.decodeTurns(ctx, conversationID, raw), nil
}

func (s *RedisConversationStore) AllTurns(ctx context.Context, conversationID string) ([]ragModel.ConversationTurn, error) {
	raw, err := s.store.ListGetAll(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	return s.decodeTurns(ctx, conversationID, raw), nil
}

func (s *RedisConversationStore) Exists(ctx context.Context, conversationID string) (bool, error) {
	return s.store.Exists(ctx, conversationID)
}

// decodeTurns drops undecodable entries instead of failing the read: one
// corrupt turn must not make the whole conversation unreadable.
func (s *RedisConversationStore) decodeTurns(ctx context.Context, conversationID string, raw []string) []ragModel.ConversationTurn {
	turns := make([]ragModel.ConversationTurn, 0, len(raw))
	for _, item := range raw {
		var turn ragModel.ConversationTurn
		if err := json.Unmarshal([]byte(item), &turn); err != nil {
			s.logger.Warn("skipping undecodable turn", "conversationId", conversationID, "error", err)
			continue
		}
		turns = append(turns, turn)
	}
	return turns
}

func TestConversationStore(store *redisStore.Store) *RedisConversationStore {
	return &RedisConversationStore{
		store:  store,
		logger: logger_i.NewLogger("test redis"),
	}
}
