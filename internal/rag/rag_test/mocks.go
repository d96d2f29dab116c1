package rag_test

import (
	"context"

	"github.com/mferrand/ragapi/internal/domain/ragModel"
	"github.com/mferrand/ragapi/internal/rag/llm"
	"github.com/mferrand/ragapi/internal/rag/vectorDB"
)

// MockVectorDB implements vectorDB.DataProcessor
type MockVectorDB struct {
	OnSearch           func(ctx context.Context, query vectorDB.SearchQuery) ([]ragModel.RetrievalCandidate, error)
	OnUpsert           func(ctx context.Context, chunks []ragModel.Chunk, vectors [][]float32, documentID string) (int, error)
	OnEnsureCollection func(ctx context.Context, dimension int) error
	OnDeleteByDocument func(ctx context.Context, documentID string) error

	SearchCalls int
}

func (m *MockVectorDB) Search(ctx context.Context, query vectorDB.SearchQuery) ([]ragModel.RetrievalCandidate, error) {
	m.SearchCalls++
	if m.OnSearch != nil {
		return m.OnSearch(ctx, query)
	}
	return nil, nil
}

func (m *MockVectorDB) Upsert(ctx context.Context, chunks []ragModel.Chunk, vectors [][]float32, documentID string) (int, error) {
	if m.OnUpsert != nil {
		return m.OnUpsert(ctx, chunks, vectors, documentID)
	}
	return len(chunks), nil
}

func (m *MockVectorDB) EnsureCollection(ctx context.Context, dimension int) error {
	if m.OnEnsureCollection != nil {
		return m.OnEnsureCollection(ctx, dimension)
	}
	return nil
}

func (m *MockVectorDB) DeleteByDocument(ctx context.Context, documentID string) error {
	if m.OnDeleteByDocument != nil {
		return m.OnDeleteByDocument(ctx, documentID)
	}
	return nil
}

// MockEmbedder implements embedding.Embedder
type MockEmbedder struct {
	OnGetEmbedding func(ctx context.Context, text string) ([]float32, error)

	EmbeddedTexts []string
}

func (m *MockEmbedder) GetEmbedding(ctx context.Context, text string) ([]float32, error) {
	m.EmbeddedTexts = append(m.EmbeddedTexts, text)
	if m.OnGetEmbedding != nil {
		return m.OnGetEmbedding(ctx, text)
	}
	return []float32{0.1, 0.2}, nil
}

func (m *MockEmbedder) BatchEmbedding(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i := range vectors {
		vectors[i] = []float32{0.1, 0.2}
	}
	return vectors, nil
}

func (m *MockEmbedder) VerifyDimension(ctx context.Context) (int, error) {
	return 2, nil
}

// MockProvider implements llm.Provider. The default Stream yields two
// tokens and a done marker.
type MockProvider struct {
	OnChat   func(ctx context.Context, model string, messages []llm.Message, opts llm.Options) (string, error)
	OnStream func(ctx context.Context, model string, messages []llm.Message, opts llm.Options) (<-chan llm.StreamChunk, error)
	OnShow   func(ctx context.Context, model string) (llm.ModelInfo, error)

	StreamedMessages []llm.Message
	ChatCalls        int
}

func (m *MockProvider) Chat(ctx context.Context, model string, messages []llm.Message, opts llm.Options) (string, error) {
	m.ChatCalls++
	if m.OnChat != nil {
		return m.OnChat(ctx, model, messages, opts)
	}
	return "chat answer", nil
}

func (m *MockProvider) Stream(ctx context.Context, model string, messages []llm.Message, opts llm.Options) (<-chan llm.StreamChunk, error) {
	m.StreamedMessages = messages
	if m.OnStream != nil {
		return m.OnStream(ctx, model, messages, opts)
	}
	return chunkStream(
		llm.StreamChunk{Token: "Bon"},
		llm.StreamChunk{Token: "jour"},
		llm.StreamChunk{Done: true},
	), nil
}

func (m *MockProvider) Show(ctx context.Context, model string) (llm.ModelInfo, error) {
	if m.OnShow != nil {
		return m.OnShow(ctx, model)
	}
	return llm.ModelInfo{}, nil
}

func (m *MockProvider) Tags(ctx context.Context) ([]string, error) {
	return []string{"llama3:8b"}, nil
}

func chunkStream(chunks ...llm.StreamChunk) <-chan llm.StreamChunk {
	out := make(chan llm.StreamChunk, len(chunks))
	for _, c := range chunks {
		out <- c
	}
	close(out)
	return out
}
