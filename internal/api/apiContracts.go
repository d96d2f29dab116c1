package api

import "time"

type ExternalStatus string

const (
	StatusError ExternalStatus = "Error"
)

// requests---------------------

// ChatStreamRequest opens one streamed chat turn. Everything except Message
// is optional; zero values fall back to server defaults.
type ChatStreamRequest struct {
	Message        string   `json:"message" validate:"required"`
	Model          string   `json:"model,omitempty"`
	ConversationID string   `json:"conversation_id,omitempty"`
	DocumentIDs    []string `json:"document_ids,omitempty"`
	SkipRetrieval  bool     `json:"skip_retrieval,omitempty"`
	Temperature    float64  `json:"temperature,omitempty"`
	MaxTokens      int      `json:"max_tokens,omitempty"`
	TopK           int      `json:"top_k,omitempty"`
	MinScore       float32  `json:"min_score,omitempty"`
	ContextChars   int      `json:"context_max_chars,omitempty"`
	SystemPrompt   string   `json:"system_prompt,omitempty"`
}

// responses--------------------

type JobOutgoingError struct {
	Code    int    `json:"code" example:"400"`
	Message string `json:"message" example:"Job not found"`
	Retry   bool   `json:"can_retry" example:"false"`
}

type IngestResult struct {
	DocumentID string `json:"document_id"`
	FileName   string `json:"file_name,omitempty"`
	ChunkCount int    `json:"chunk_count,omitempty"`
}

type Result struct {
	Status string        `json:"status"`
	Step   string        `json:"step,omitempty"`
	Ingest *IngestResult `json:"ingest,omitempty"`
}

type JobResponse struct {
	Id        string            `json:"id" example:"job_cz109"`
	Result    Result            `json:"result"`
	Error     *JobOutgoingError `json:"error,omitempty"`
	StartTime time.Time         `json:"start_time"`
	EndTime   time.Time         `json:"end_time,omitempty"`
}

type InitJobResponse struct {
	Id         string `json:"id"`
	DocumentID string `json:"document_id"`
	StatusURL  string `json:"status_url"`
}

type ModelsResponse struct {
	Models []string `json:"models"`
}

type ConversationTurnResponse struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ConversationResponse struct {
	ConversationID string                     `json:"conversation_id"`
	Turns          []ConversationTurnResponse `json:"turns"`
}

type DocumentResponse struct {
	ID           string    `json:"id"`
	OriginalName string    `json:"original_name"`
	Status       string    `json:"status"`
	StatusDetail string    `json:"status_detail,omitempty"`
	ChunkCount   int       `json:"chunk_count"`
	UpdatedAt    time.Time `json:"updated_at"`
}
