package ragModel

import "encoding/json"

type EventType string

const (
	EventConversationID EventType = "conversation_id"
	EventSources        EventType = "sources"
	EventToken          EventType = "token"
	EventDone           EventType = "done"
	EventError          EventType = "error"
)

// SourceRef is the caller-facing view of one retrieval candidate: truncated
// preview content plus score and image references. All retrieved candidates
// are listed, not only the ones that crossed the relevance bar.
type SourceRef struct {
	DocumentID string   `json:"document_id"`
	Title      string   `json:"title"`
	Page       int      `json:"page"`
	Content    string   `json:"content"`
	Score      float32  `json:"score"`
	ImageRefs  []string `json:"image_refs"`
}

// StreamEvent is one element of the ordered event sequence a chat request
// produces: exactly one sources event, zero or more token events, then
// exactly one terminal done or error event.
type StreamEvent struct {
	Type           EventType
	Token          string
	Sources        []SourceRef
	ConversationID string
	Error          string
}

// MarshalJSON emits only the fields that belong to the event kind, so a
// token event does not carry a null sources list and an empty sources event
// still carries "sources": [].
func (e StreamEvent) MarshalJSON() ([]byte, error) {
	switch e.Type {
	case EventSources:
		sources := e.Sources
		if sources == nil {
			sources = []SourceRef{}
		}
		return json.Marshal(struct {
			Type    EventType   `json:"type"`
			Sources []SourceRef `json:"sources"`
		}{e.Type, sources})
	case EventToken:
		return json.Marshal(struct {
			Type  EventType `json:"type"`
			Token string    `json:"token"`
		}{e.Type, e.Token})
	case EventConversationID:
		return json.Marshal(struct {
			Type           EventType `json:"type"`
			ConversationID string    `json:"conversation_id"`
		}{e.Type, e.ConversationID})
	case EventError:
		return json.Marshal(struct {
			Type  EventType `json:"type"`
			Error string    `json:"error"`
		}{e.Type, e.Error})
	default:
		return json.Marshal(struct {
			Type EventType `json:"type"`
		}{e.Type})
	}
}
