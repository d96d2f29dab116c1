package ollamaEmbedding

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/mferrand/ragapi/internal/config"
	"github.com/mferrand/ragapi/internal/domain/ragModel"
)

// fakeOllama answers /api/embeddings with a vector derived from the prompt
// so order preservation is observable.
func fakeOllama(t *testing.T, inFlight *int64, maxInFlight *int64) *httptest.Server {
	t.Helper()
	var mu sync.Mutex
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if inFlight != nil {
			cur := atomic.AddInt64(inFlight, 1)
			defer atomic.AddInt64(inFlight, -1)
			mu.Lock()
			if cur > *maxInFlight {
				*maxInFlight = cur
			}
			mu.Unlock()
		}

		var req embedRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if req.Prompt == "boom" {
			json.NewEncoder(w).Encode(embedResponse{Embedding: []float32{}})
			return
		}
		json.NewEncoder(w).Encode(embedResponse{
			Embedding: []float32{float32(len(req.Prompt)), 1, 2},
		})
	}))
}

func TestBatchEmbedding_OrderAndLength(t *testing.T) {
	srv := fakeOllama(t, nil, nil)
	defer srv.Close()
	c := NewClient(srv.URL, "test-model")

	texts := make([]string, 20)
	for i := range texts {
		texts[i] = fmt.Sprintf("%0*d", i+1, 0) // length i+1
	}

	vectors, err := c.BatchEmbedding(context.Background(), texts)
	if err != nil {
		t.Fatalf("BatchEmbedding failed: %v", err)
	}
	if len(vectors) != len(texts) {
		t.Fatalf("got %d vectors for %d texts", len(vectors), len(texts))
	}
	for i, v := range vectors {
		if v[0] != float32(i+1) {
			t.Errorf("vector %d out of order: first component %v", i, v[0])
		}
	}
}

func TestBatchEmbedding_EmptyInput(t *testing.T) {
	srv := fakeOllama(t, nil, nil)
	defer srv.Close()
	c := NewClient(srv.URL, "test-model")

	vectors, err := c.BatchEmbedding(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(vectors) != 0 {
		t.Errorf("expected empty result, got %d", len(vectors))
	}
}

func TestBatchEmbedding_ConcurrencyCap(t *testing.T) {
	var inFlight, maxSeen int64
	srv := fakeOllama(t, &inFlight, &maxSeen)
	defer srv.Close()
	c := NewClient(srv.URL, "test-model")

	texts := make([]string, 30)
	for i := range texts {
		texts[i] = "text"
	}
	if _, err := c.BatchEmbedding(context.Background(), texts); err != nil {
		t.Fatalf("BatchEmbedding failed: %v", err)
	}
	if maxSeen > config.EmbeddingBatchSize {
		t.Errorf("observed %d concurrent embedding calls, cap is %d",
			maxSeen, config.EmbeddingBatchSize)
	}
}

func TestBatchEmbedding_OneFailureFailsAll(t *testing.T) {
	srv := fakeOllama(t, nil, nil)
	defer srv.Close()
	c := NewClient(srv.URL, "test-model")

	_, err := c.BatchEmbedding(context.Background(), []string{"ok", "boom", "ok"})
	if err == nil {
		t.Fatal("expected error when one item yields an empty vector")
	}
	if !errors.Is(err, ragModel.ErrEmbedding) {
		t.Errorf("error should wrap ErrEmbedding, got %v", err)
	}
}

func TestVerifyDimension(t *testing.T) {
	srv := fakeOllama(t, nil, nil)
	defer srv.Close()
	c := NewClient(srv.URL, "test-model")

	dim, err := c.VerifyDimension(context.Background())
	if err != nil {
		t.Fatalf("VerifyDimension failed: %v", err)
	}
	if dim != 3 {
		t.Errorf("dimension got %d, want 3", dim)
	}
}
