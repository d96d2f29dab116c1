package embedding

import "context"

type Embedder interface {
	GetEmbedding(ctx context.Context, text string) ([]float32, error)
	// BatchEmbedding is order-preserving: one output vector per input text,
	// same length as the input. A single failing item fails the whole call.
	BatchEmbedding(ctx context.Context, texts []string) ([][]float32, error)
	// VerifyDimension performs one probe call and returns the vector length.
	// Callers size the vector index with it at startup and must refuse to
	// start on a zero dimension.
	VerifyDimension(ctx context.Context) (int, error)
}
