package store

import (
	"context"
	"encoding/json"

	"github.com/mferrand/ragapi/internal/config"
	"github.com/mferrand/ragapi/internal/data/redisStore"
	"github.com/mferrand/ragapi/internal/domain/ragModel"
	"github.com/mferrand/ragapi/pkg/logger_i"
)

type RedisDocumentStore struct {
	store  *redisStore.Store
	logger *logger_i.Logger
}

func GetRedisDocumentStore(ctx context.Context) *RedisDocumentStore {
	internal := redisStore.GetRedisStore(ctx, config.RedisDocumentStore)
	if internal == nil {
		return nil
	}
	return &RedisDocumentStore{
		store:  internal,
		logger: logger_i.NewLogger("DocumentStore"),
	}
}

func (s *RedisDocumentStore) SaveDocument(ctx context.Context, record ragModel.DocumentRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return err
	}
	return s.store.Set(ctx, record.ID, data, config.RedisDocumentStoreTTL)
}

func (s *RedisDocumentStore) GetDocument(ctx context.Context, documentID string) (ragModel.DocumentRecord, bool) {
	var record ragModel.DocumentRecord

	val, err := s.store.Get(ctx, documentID)
	if s.store.IsNil(err) {
		return record, false
	} else if err != nil {
		s.logger.Error("Error reading document record", "documentId", documentID, "error", err)
		return record, false
	}

	if err = json.Unmarshal([]byte(val), &record); err != nil {
		s.logger.Error("Error unmarshalling document record", "documentId", documentID, "error", err)
		return record, false
	}
	return record, true
}

func (s *RedisDocumentStore) DeleteDocument(ctx context.Context, documentID string) error {
	return s.store.Del(ctx, documentID)
}

func TestDocumentStore(store *redisStore.Store) *RedisDocumentStore {
	return &RedisDocumentStore{
		store:  store,
		logger: logger_i.NewLogger("test redis"),
	}
}
