package rag

import (
	"context"
	"time"

	"github.com/mferrand/ragapi/internal/config"
	"github.com/mferrand/ragapi/internal/data/store"
	"github.com/mferrand/ragapi/internal/domain/jobModel"
	"github.com/mferrand/ragapi/internal/domain/ragModel"
	"github.com/mferrand/ragapi/internal/gate"
	"github.com/mferrand/ragapi/internal/metrics"
	"github.com/mferrand/ragapi/internal/rag/condense"
	"github.com/mferrand/ragapi/internal/rag/embedding"
	"github.com/mferrand/ragapi/internal/rag/ingest"
	"github.com/mferrand/ragapi/internal/rag/llm"
	"github.com/mferrand/ragapi/internal/rag/vectorDB"
	"github.com/mferrand/ragapi/internal/rag/vision"
	"github.com/mferrand/ragapi/pkg/logger_i"
)

// ChatRequest carries one chat turn through the pipeline. Zero values fall
// back to the configured defaults.
type ChatRequest struct {
	Question       string
	Model          string
	ConversationID string
	DocumentIDs    []string
	History        []ragModel.ConversationTurn
	SkipRetrieval  bool

	// NewConversation is set by the transport when it minted ConversationID
	// for this request; only then is the id announced on the stream.
	NewConversation bool
	Temperature     float64
	MaxTokens       int
	TopK            int
	MinScore        float32
	ContextChars    int
	SystemPrompt    string
}

// Service is the only surface handlers and workers see; they never touch the
// vector database or the LLM clients directly.
type Service interface {
	// StreamChat runs the retrieval pipeline and streams the answer. The
	// returned channel yields an optional conversation_id event, exactly
	// one sources event, zero or more token events and exactly one
	// terminal done or error event, then closes. A failure before
	// retrieval yields the terminal error alone.
	StreamChat(ctx context.Context, req ChatRequest) <-chan ragModel.StreamEvent

	IngestDocument(ctx context.Context, job jobModel.Job) jobModel.Job

	// DeleteDocument removes the document's vector points and its status
	// record.
	DeleteDocument(ctx context.Context, documentID string) error
}

type service struct {
	vectorDB    vectorDB.DataProcessor
	llmProvider llm.Provider
	embedder    embedding.Embedder
	condenser   *condense.Condenser
	vision      *vision.Checker
	documents   store.DocumentStore
	pipeline    *ingest.Pipeline
	logger      *logger_i.Logger
}

func NewService(
	vector vectorDB.DataProcessor,
	provider llm.Provider,
	em embedding.Embedder,
	documents store.DocumentStore,
	ingestGate *gate.Exclusive,
	visionChecker *vision.Checker,
) Service {
	return &service{
		vectorDB:    vector,
		llmProvider: provider,
		embedder:    em,
		condenser:   condense.New(provider),
		vision:      visionChecker,
		documents:   documents,
		pipeline:    ingest.NewPipeline(em, vector, documents, ingestGate),
		logger:      logger_i.NewLogger("RAG Service"),
	}
}

func (s *service) StreamChat(ctx context.Context, req ChatRequest) <-chan ragModel.StreamEvent {
	out := make(chan ragModel.StreamEvent)
	go s.runChat(ctx, req, out)
	return out
}

func (s *service) runChat(ctx context.Context, req ChatRequest, out chan<- ragModel.StreamEvent) {
	defer close(out)
	start := time.Now()
	status := "ok"
	defer func() { metrics.CaptureChatMetrics(status, time.Since(start)) }()

	log := s.logger.With("traceId", ctx.Value(config.TRACE_ID_KEY))
	req = applyDefaults(req)

	emit := func(event ragModel.StreamEvent) bool {
		select {
		case out <- event:
			return true
		case <-ctx.Done():
			return false
		}
	}

	// the id is only announced when this request created the conversation;
	// a caller continuing an existing one already knows it
	if req.ConversationID != "" && req.NewConversation {
		if !emit(ragModel.StreamEvent{Type: ragModel.EventConversationID, ConversationID: req.ConversationID}) {
			status = "cancelled"
			return
		}
	}

	question := req.Question

	var relevant []ragModel.RetrievalCandidate
	var allCandidates []ragModel.RetrievalCandidate

	if !req.SkipRetrieval {
		// condensing only serves retrieval; without it the raw question
		// goes straight to the prompt
		question = s.condenser.Condense(ctx, req.Model, question, historyToMessages(req.History))

		queryVector, err := s.executeEmbedQueryStep(ctx, log, question)
		if err != nil {
			status = "error"
			emit(errorEvent(err))
			return
		}

		allCandidates, err = s.executeRetrieveStep(ctx, log, queryVector, req)
		if err != nil {
			status = "error"
			emit(errorEvent(err))
			return
		}

		relevant = partitionByRelevance(allCandidates, req.MinScore)
		log.Debug("retrieval done", "candidates", len(allCandidates), "relevant", len(relevant))
	}

	// the sources event always lists every retrieved candidate, crossed
	// the relevance bar or not, so the caller can show what was considered
	if !emit(ragModel.StreamEvent{Type: ragModel.EventSources, Sources: buildSourceRefs(allCandidates)}) {
		status = "cancelled"
		return
	}

	messages := s.buildMessages(ctx, req, question, allCandidates, relevant)

	if !s.executeGenerateStep(ctx, log, req, messages, emit) {
		status = "error"
	}
}

func (s *service) IngestDocument(ctx context.Context, job jobModel.Job) jobModel.Job {
	start := time.Now()
	defer func() { metrics.CaptureExecutionMetrics("document_ingestion", time.Since(start)) }()
	return s.pipeline.ProcessDocumentIngestion(ctx, job)
}

func (s *service) DeleteDocument(ctx context.Context, documentID string) error {
	if err := s.vectorDB.DeleteByDocument(ctx, documentID); err != nil {
		return err
	}
	return s.documents.DeleteDocument(ctx, documentID)
}
