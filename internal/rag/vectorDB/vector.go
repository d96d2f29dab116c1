package vectorDB

import (
	"context"

	"github.com/mferrand/ragapi/internal/domain/ragModel"
)

// SearchQuery parameterizes one similarity search. MinScore of 0 means no
// threshold; WantDiversity makes the adapter over-fetch and return vectors
// so MMR reranking can run.
type SearchQuery struct {
	Vector        []float32
	TopK          int
	DocumentIDs   []string
	MinScore      float32
	WantDiversity bool
	MMRLambda     float32
}

type DataProcessor interface {
	// EnsureCollection is idempotent and memoized: the existence check runs
	// at most once per process lifetime.
	EnsureCollection(ctx context.Context, dimension int) error

	// Upsert writes one point per (chunk, vector) pair in a single bulk
	// call and returns the count written. Callers guarantee equal lengths.
	Upsert(ctx context.Context, chunks []ragModel.Chunk, vectors [][]float32, documentID string) (int, error)

	// Search returns candidates sorted by descending relevance.
	Search(ctx context.Context, query SearchQuery) ([]ragModel.RetrievalCandidate, error)

	// DeleteByDocument removes every point owned by the document. Deleting
	// a document with no points is a no-op, not an error.
	DeleteByDocument(ctx context.Context, documentID string) error
}
