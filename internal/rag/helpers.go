package rag

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mferrand/ragapi/internal/config"
	"github.com/mferrand/ragapi/internal/domain/ragModel"
	"github.com/mferrand/ragapi/internal/metrics"
	"github.com/mferrand/ragapi/internal/rag/llm"
	"github.com/mferrand/ragapi/internal/rag/vectorDB"
	"github.com/mferrand/ragapi/pkg/logger_i"
)

const (
	sourcePreviewChars = 300
	// The generation prompt carries up to ten past turns; the condenser
	// works from a smaller window of its own.
	historyTurns     = 10
	maxVisionImages  = 3
	visionCandidates = 3
)

const generalKnowledgeNoDocuments = "No document matched this question. Answer from your general knowledge and say explicitly that your answer is not based on the ingested documents."

const generalKnowledgeNotRelevant = "Documents were searched but none is relevant to this question. Answer from your general knowledge and say explicitly that your answer is not based on the ingested documents."

func applyDefaults(req ChatRequest) ChatRequest {
	if req.TopK <= 0 {
		req.TopK = config.DefaultTopK
	}
	if req.Temperature <= 0 {
		req.Temperature = float64(config.DefaultTemperature)
	}
	if req.MaxTokens <= 0 {
		req.MaxTokens = config.DefaultMaxTokens
	}
	if req.MinScore <= 0 {
		req.MinScore = config.MinRelevanceScore
	}
	if req.ContextChars <= 0 {
		req.ContextChars = config.ContextMaxChars
	}
	if req.SystemPrompt == "" {
		req.SystemPrompt = config.ModelContext
	}
	return req
}

func errorEvent(err error) ragModel.StreamEvent {
	return ragModel.StreamEvent{Type: ragModel.EventError, Error: err.Error()}
}

func historyToMessages(history []ragModel.ConversationTurn) []llm.Message {
	messages := make([]llm.Message, 0, len(history))
	for _, turn := range history {
		role := llm.RoleUser
		if turn.Role == "assistant" {
			role = llm.RoleAssistant
		}
		messages = append(messages, llm.Message{Role: role, Content: turn.Content})
	}
	return messages
}

func (s *service) executeEmbedQueryStep(ctx context.Context, log *logger_i.Logger, question string) ([]float32, error) {
	start := time.Now()
	defer func() { metrics.CaptureExecutionMetrics("query_embedding", time.Since(start)) }()

	vector, err := s.embedder.GetEmbedding(ctx, question)
	if err != nil {
		log.Error("query embedding failed", "error", err)
	}
	return vector, err
}

// executeRetrieveStep searches without a score threshold: the relevance bar
// is applied afterwards so the sources event can still list what fell below
// it.
func (s *service) executeRetrieveStep(ctx context.Context, log *logger_i.Logger, queryVector []float32, req ChatRequest) ([]ragModel.RetrievalCandidate, error) {
	start := time.Now()
	defer func() { metrics.CaptureExecutionMetrics("vector_search", time.Since(start)) }()

	candidates, err := s.vectorDB.Search(ctx, vectorDB.SearchQuery{
		Vector:        queryVector,
		TopK:          req.TopK,
		DocumentIDs:   req.DocumentIDs,
		WantDiversity: true,
		MMRLambda:     config.MMRLambda,
	})
	if err != nil {
		log.Error("vector search failed", "error", err)
	}
	return candidates, err
}

func partitionByRelevance(candidates []ragModel.RetrievalCandidate, minScore float32) []ragModel.RetrievalCandidate {
	var relevant []ragModel.RetrievalCandidate
	for _, c := range candidates {
		if c.Score >= minScore {
			relevant = append(relevant, c)
		}
	}
	return relevant
}

func buildSourceRefs(candidates []ragModel.RetrievalCandidate) []ragModel.SourceRef {
	refs := make([]ragModel.SourceRef, 0, len(candidates))
	for _, c := range candidates {
		preview := c.Content
		if runes := []rune(preview); len(runes) > sourcePreviewChars {
			preview = string(runes[:sourcePreviewChars]) + "..."
		}
		refs = append(refs, ragModel.SourceRef{
			DocumentID: c.DocumentID,
			Title:      c.Title,
			Page:       c.Page,
			Content:    preview,
			Score:      c.Score,
			ImageRefs:  c.ImageRefs,
		})
	}
	return refs
}

// buildContextBlock packs relevant chunks into the character budget in
// relevance order and stops at the first chunk that would overflow it. A
// chunk is never truncated, and a lower-ranked chunk never leapfrogs a
// dropped higher-ranked one.
func buildContextBlock(relevant []ragModel.RetrievalCandidate, budget int) string {
	var b strings.Builder
	for i, c := range relevant {
		block := fmt.Sprintf("[Source %d: %s (Page %d)]\n%s", i+1, c.Title, c.Page, c.Content)
		if b.Len()+len(block)+2 > budget {
			break
		}
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(block)
	}
	return b.String()
}

func (s *service) buildMessages(ctx context.Context, req ChatRequest, question string, all, relevant []ragModel.RetrievalCandidate) []llm.Message {
	messages := make([]llm.Message, 0, len(req.History)+2)
	messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: req.SystemPrompt})

	history := req.History
	if len(history) > historyTurns {
		history = history[len(history)-historyTurns:]
	}
	messages = append(messages, historyToMessages(history)...)

	user := llm.Message{Role: llm.RoleUser, Content: s.buildUserPrompt(req, question, all, relevant)}
	if len(relevant) > 0 {
		user.Images = s.collectImages(ctx, req.Model, relevant)
	}
	return append(messages, user)
}

func (s *service) buildUserPrompt(req ChatRequest, question string, all, relevant []ragModel.RetrievalCandidate) string {
	switch {
	case req.SkipRetrieval:
		return question
	case len(all) == 0:
		return fmt.Sprintf("%s\n\nQUESTION: %s", generalKnowledgeNoDocuments, question)
	case len(relevant) == 0:
		return fmt.Sprintf("%s\n\nQUESTION: %s", generalKnowledgeNotRelevant, question)
	default:
		contextBlock := buildContextBlock(relevant, req.ContextChars)
		return fmt.Sprintf("CONTEXT:\n%s\n\nQUESTION: %s", contextBlock, question)
	}
}

// collectImages loads up to three distinct images referenced by the top
// relevant chunks, but only when the model can actually look at them.
// Chunks of the same page often share a ref; each image is attached once.
// Unreadable image files are skipped.
func (s *service) collectImages(ctx context.Context, model string, relevant []ragModel.RetrievalCandidate) []string {
	if !s.vision.HasVision(ctx, model) {
		return nil
	}

	top := relevant
	if len(top) > visionCandidates {
		top = top[:visionCandidates]
	}

	var images []string
	seen := make(map[string]bool)
	for _, c := range top {
		for _, ref := range c.ImageRefs {
			if len(images) >= maxVisionImages {
				return images
			}
			if seen[ref] {
				continue
			}
			seen[ref] = true
			encoded, err := loadImageBase64(ref)
			if err != nil {
				s.logger.Warn("skipping unreadable image", "ref", ref, "error", err)
				continue
			}
			images = append(images, encoded)
		}
	}
	return images
}

func loadImageBase64(ref string) (string, error) {
	// refs are stored as bare filenames; keep path traversal out
	path := filepath.Join(config.ImagesDir, filepath.Base(ref))
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

// executeGenerateStep streams tokens to the caller and finishes with the
// terminal event. It reports whether the stream ended cleanly.
func (s *service) executeGenerateStep(ctx context.Context, log *logger_i.Logger, req ChatRequest, messages []llm.Message, emit func(ragModel.StreamEvent) bool) bool {
	start := time.Now()
	defer func() { metrics.CaptureExecutionMetrics("llm_generation", time.Since(start)) }()

	stream, err := s.llmProvider.Stream(ctx, req.Model, messages, llm.Options{
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	})
	if err != nil {
		log.Error("could not start generation", "error", err)
		emit(errorEvent(err))
		return false
	}

	for chunk := range stream {
		switch {
		case chunk.Err != nil:
			log.Error("generation failed mid-stream", "error", chunk.Err)
			emit(errorEvent(chunk.Err))
			return false
		case chunk.Done:
			emit(ragModel.StreamEvent{Type: ragModel.EventDone})
			return true
		default:
			metrics.CountStreamedToken()
			if !emit(ragModel.StreamEvent{Type: ragModel.EventToken, Token: chunk.Token}) {
				return false
			}
		}
	}

	// provider closed the stream without a terminal chunk
	emit(errorEvent(ragModel.ErrGeneration))
	return false
}
