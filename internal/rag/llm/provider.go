// Package llm abstracts the chat backends. The service was built around
// Ollama; a Gemini provider exists for deployments without local models.
package llm

import "context"

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type Message struct {
	Role    Role
	Content string
	// Images holds base64-encoded image payloads for multimodal turns.
	Images []string
}

type Options struct {
	Temperature float64
	MaxTokens   int
}

// StreamChunk is one unit of a generation stream. Exactly one chunk carries
// Done=true or a non-nil Err; nothing follows either.
type StreamChunk struct {
	Token string
	Done  bool
	Err   error
}

type ModelInfo struct {
	Capabilities []string
	Families     []string
}

type Provider interface {
	// Chat runs a full non-streaming completion.
	Chat(ctx context.Context, model string, messages []Message, opts Options) (string, error)

	// Stream starts a generation and returns a channel of chunks. The
	// channel is closed after the terminal chunk. Cancelling ctx aborts
	// the stream.
	Stream(ctx context.Context, model string, messages []Message, opts Options) (<-chan StreamChunk, error)

	// Show reports model metadata for capability probing.
	Show(ctx context.Context, model string) (ModelInfo, error)

	// Tags lists the model names the backend currently serves.
	Tags(ctx context.Context) ([]string, error)
}
