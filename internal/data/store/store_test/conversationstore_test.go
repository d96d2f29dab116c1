package store_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/mferrand/ragapi/internal/data/store"
	"github.com/mferrand/ragapi/internal/domain/ragModel"
)

func TestRedisConversationStore_AppendAndRead(t *testing.T) {
	convStore := store.TestConversationStore(newTestStore(t))
	ctx := context.Background()
	convID := "conv-1"

	for i := 0; i < 8; i++ {
		role := "user"
		if i%2 == 1 {
			role = "assistant"
		}
		turn := ragModel.ConversationTurn{Role: role, Content: fmt.Sprintf("turn %d", i)}
		if err := convStore.AppendTurn(ctx, convID, turn); err != nil {
			t.Fatalf("AppendTurn: %v", err)
		}
	}

	t.Run("RecentTurns bounded window in order", func(t *testing.T) {
		turns, err := convStore.RecentTurns(ctx, convID, 6)
		if err != nil {
			t.Fatalf("RecentTurns: %v", err)
		}
		if len(turns) != 6 {
			t.Fatalf("got %d turns, want 6", len(turns))
		}
		if turns[0].Content != "turn 2" || turns[5].Content != "turn 7" {
			t.Errorf("window wrong: first=%q last=%q", turns[0].Content, turns[5].Content)
		}
	})

	t.Run("RecentTurns larger than history", func(t *testing.T) {
		turns, err := convStore.RecentTurns(ctx, convID, 50)
		if err != nil {
			t.Fatalf("RecentTurns: %v", err)
		}
		if len(turns) != 8 {
			t.Errorf("got %d turns, want all 8", len(turns))
		}
	})

	t.Run("AllTurns", func(t *testing.T) {
		turns, err := convStore.AllTurns(ctx, convID)
		if err != nil {
			t.Fatalf("AllTurns: %v", err)
		}
		if len(turns) != 8 || turns[0].Content != "turn 0" {
			t.Errorf("got %d turns, first=%q", len(turns), turns[0].Content)
		}
	})

	t.Run("Exists", func(t *testing.T) {
		found, err := convStore.Exists(ctx, convID)
		if err != nil || !found {
			t.Errorf("Exists(%s) = %v, %v", convID, found, err)
		}
		found, err = convStore.Exists(ctx, "nope")
		if err != nil || found {
			t.Errorf("Exists(nope) = %v, %v", found, err)
		}
	})
}

func TestRedisDocumentStore_Lifecycle(t *testing.T) {
	docStore := store.TestDocumentStore(newTestStore(t))
	ctx := context.Background()

	record := ragModel.DocumentRecord{
		ID:           "doc-1",
		OriginalName: "manual.pdf",
		Status:       ragModel.DocumentProcessing,
	}
	if err := docStore.SaveDocument(ctx, record); err != nil {
		t.Fatalf("SaveDocument: %v", err)
	}

	got, found := docStore.GetDocument(ctx, "doc-1")
	if !found || got.OriginalName != "manual.pdf" {
		t.Fatalf("GetDocument = %+v, %v", got, found)
	}

	record.Status = ragModel.DocumentComplete
	record.ChunkCount = 12
	if err := docStore.SaveDocument(ctx, record); err != nil {
		t.Fatalf("SaveDocument update: %v", err)
	}
	got, _ = docStore.GetDocument(ctx, "doc-1")
	if got.Status != ragModel.DocumentComplete || got.ChunkCount != 12 {
		t.Errorf("update not visible: %+v", got)
	}

	if err := docStore.DeleteDocument(ctx, "doc-1"); err != nil {
		t.Fatalf("DeleteDocument: %v", err)
	}
	if _, found := docStore.GetDocument(ctx, "doc-1"); found {
		t.Error("record still present after delete")
	}
}
