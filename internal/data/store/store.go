package store

import (
	"context"

	"github.com/mferrand/ragapi/internal/domain/ragModel"
)

// ConversationStore persists chat history. Turns are append-only; readers
// take a bounded recent window.
type ConversationStore interface {
	AppendTurn(ctx context.Context, conversationID string, turn ragModel.ConversationTurn) error
	RecentTurns(ctx context.Context, conversationID string, n int) ([]ragModel.ConversationTurn, error)
	AllTurns(ctx context.Context, conversationID string) ([]ragModel.ConversationTurn, error)
	Exists(ctx context.Context, conversationID string) (bool, error)
}

// DocumentStore tracks ingested document lifecycle records.
type DocumentStore interface {
	SaveDocument(ctx context.Context, record ragModel.DocumentRecord) error
	GetDocument(ctx context.Context, documentID string) (ragModel.DocumentRecord, bool)
	DeleteDocument(ctx context.Context, documentID string) error
}
