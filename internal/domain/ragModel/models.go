package ragModel

import "time"

// Chunk is a bounded span of document text, the unit of embedding and
// retrieval. Immutable once produced by the chunker.
type Chunk struct {
	Title      string   `json:"title"`
	Page       int      `json:"page"`
	Content    string   `json:"content"`
	ChunkIndex int      `json:"chunk_index"`
	ImageRefs  []string `json:"image_refs,omitempty"`
}

// RetrievalCandidate is transient: it only exists within one retrieval call.
// Vector is populated only when diversity reranking was requested.
type RetrievalCandidate struct {
	DocumentID string
	Title      string
	Page       int
	Content    string
	ChunkIndex int
	ImageRefs  []string
	Score      float32
	Vector     []float32
}

// ConversationTurn is consumed, never mutated. The orchestrator reads a
// bounded recent window of these.
type ConversationTurn struct {
	Role    string `json:"role"` // "user" or "assistant"
	Content string `json:"content"`
}

type DocumentStatus string

const (
	DocumentProcessing DocumentStatus = "processing"
	DocumentComplete   DocumentStatus = "complete"
	DocumentError      DocumentStatus = "error"
)

// DocumentRecord tracks an ingested document's lifecycle. One bad document
// must never affect others, so errors end up here rather than propagating.
type DocumentRecord struct {
	ID           string         `json:"id"`
	OriginalName string         `json:"original_name"`
	Status       DocumentStatus `json:"status"`
	StatusDetail string         `json:"status_detail,omitempty"`
	ChunkCount   int            `json:"chunk_count"`
	UpdatedAt    time.Time      `json:"updated_at"`
}
