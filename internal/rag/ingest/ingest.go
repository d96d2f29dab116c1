package ingest

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/mferrand/ragapi/internal/config"
	"github.com/mferrand/ragapi/internal/data/store"
	"github.com/mferrand/ragapi/internal/domain/jobModel"
	"github.com/mferrand/ragapi/internal/domain/ragModel"
	"github.com/mferrand/ragapi/internal/gate"
	"github.com/mferrand/ragapi/internal/metrics"
	"github.com/mferrand/ragapi/internal/rag/chunker"
	"github.com/mferrand/ragapi/internal/rag/embedding"
	"github.com/mferrand/ragapi/internal/rag/vectorDB"
	"github.com/mferrand/ragapi/pkg/logger_i"
)

type rawPage struct {
	Number  int    `json:"number"`
	Content string `json:"content"`
}

// Pipeline turns an uploaded file into indexed vector points. Ingestions run
// strictly one at a time behind the gate: the embedding backend saturates on
// a single document already, concurrent ones only trade latency for memory.
type Pipeline struct {
	embedder   embedding.Embedder
	vectorDB   vectorDB.DataProcessor
	documents  store.DocumentStore
	ingestGate *gate.Exclusive
	logger     *logger_i.Logger
}

func NewPipeline(e embedding.Embedder, v vectorDB.DataProcessor, d store.DocumentStore, g *gate.Exclusive) *Pipeline {
	return &Pipeline{
		embedder:   e,
		vectorDB:   v,
		documents:  d,
		ingestGate: g,
		logger:     logger_i.NewLogger("Document Ingestion"),
	}
}

func (p *Pipeline) ProcessDocumentIngestion(ctx context.Context, job jobModel.Job) jobModel.Job {
	log := p.logger.With("traceId", ctx.Value(config.TRACE_ID_KEY), "documentId", job.JobPayload.DocumentID)

	if err := p.ingestGate.Acquire(ctx); err != nil {
		return p.failJob(ctx, job, fmt.Errorf("waiting for ingestion slot: %w", err))
	}
	defer p.ingestGate.Release()

	// ceiling for a single document, gate held the whole time
	ingestCtx, cancel := context.WithTimeout(ctx, config.IngestTimeout)
	defer cancel()

	job.Status = jobModel.JobStatusRunning
	job.CurrentStep = jobModel.IngestInit
	p.saveRecord(ctx, job, ragModel.DocumentProcessing, "", 0)

	chunks, err := p.executeConversionStep(ingestCtx, log, &job)
	if err != nil {
		return p.failJob(ctx, job, err)
	}

	vectors, err := p.executeEmbeddingStep(ingestCtx, log, &job, chunks)
	if err != nil {
		return p.failJob(ctx, job, err)
	}

	count, err := p.executeIndexingStep(ingestCtx, log, &job, chunks, vectors)
	if err != nil {
		return p.failJob(ctx, job, err)
	}

	if err := os.Remove(job.JobPayload.IngestURL); err != nil {
		log.Warn("could not remove uploaded file", "path", job.JobPayload.IngestURL, "error", err)
	}

	job.Status = jobModel.JobStatusComplete
	job.CurrentStep = jobModel.Complete
	job.JobPayload.ChunkCount = count
	job.EndTime = time.Now()
	p.saveRecord(ctx, job, ragModel.DocumentComplete, "", count)
	metrics.CountIngestedDocument("complete")
	log.Info("document ingested", "chunks", count)
	return job
}

func (p *Pipeline) executeConversionStep(ctx context.Context, log *logger_i.Logger, job *jobModel.Job) ([]ragModel.Chunk, error) {
	job.CurrentStep = jobModel.IngestConverting
	start := time.Now()
	defer func() { metrics.CaptureExecutionMetrics("document_conversion", time.Since(start)) }()

	// classify on the stored path, the display name may carry no extension
	docType := getDocType(job.JobPayload.IngestURL)
	if docType == typeUnknown {
		return nil, fmt.Errorf("%w: %s", ragModel.ErrUnsupportedFormat, job.JobPayload.IngestFileName)
	}

	pages, err := extractText(job.JobPayload.IngestURL, docType)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ragModel.ErrConversion, err)
	}
	log.Debug("document converted", "pages", len(pages))

	job.CurrentStep = jobModel.IngestChunking
	markdown := pagesToMarkdown(pages)
	chunks := chunker.ChunkMarkdown(markdown, job.JobPayload.IngestFileName, config.ChunkMaxChars, config.ChunkOverlapChars)
	log.Debug("document chunked", "chunks", len(chunks))
	return chunks, nil
}

func (p *Pipeline) executeEmbeddingStep(ctx context.Context, log *logger_i.Logger, job *jobModel.Job, chunks []ragModel.Chunk) ([][]float32, error) {
	job.CurrentStep = jobModel.IngestEmbedding
	start := time.Now()
	defer func() { metrics.CaptureExecutionMetrics("batch_embedding", time.Since(start)) }()

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}
	vectors, err := p.embedder.BatchEmbedding(ctx, texts)
	if err != nil {
		return nil, err
	}
	return vectors, nil
}

// executeIndexingStep deletes the document's existing points before the bulk
// insert. Re-ingesting the same document converges on the new content
// instead of accumulating stale points.
func (p *Pipeline) executeIndexingStep(ctx context.Context, log *logger_i.Logger, job *jobModel.Job, chunks []ragModel.Chunk, vectors [][]float32) (int, error) {
	job.CurrentStep = jobModel.IngestIndexing
	start := time.Now()
	defer func() { metrics.CaptureExecutionMetrics("vector_indexing", time.Since(start)) }()

	if len(vectors) > 0 {
		if err := p.vectorDB.EnsureCollection(ctx, len(vectors[0])); err != nil {
			return 0, err
		}
	}
	if err := p.vectorDB.DeleteByDocument(ctx, job.JobPayload.DocumentID); err != nil {
		return 0, err
	}
	return p.vectorDB.Upsert(ctx, chunks, vectors, job.JobPayload.DocumentID)
}

func (p *Pipeline) failJob(ctx context.Context, job jobModel.Job, err error) jobModel.Job {
	p.logger.Error("ingestion failed", "documentId", job.JobPayload.DocumentID, "error", err)

	job.Status = jobModel.JobStatusError
	job.CurrentStep = jobModel.Error
	job.EndTime = time.Now()
	job.Error = jobModel.JobError{
		Code:    500,
		Message: truncateDetail(err.Error()),
		Retry:   true,
	}
	p.saveRecord(ctx, job, ragModel.DocumentError, truncateDetail(err.Error()), 0)
	metrics.CountIngestedDocument("error")
	return job
}

func (p *Pipeline) saveRecord(ctx context.Context, job jobModel.Job, status ragModel.DocumentStatus, detail string, chunkCount int) {
	record := ragModel.DocumentRecord{
		ID:           job.JobPayload.DocumentID,
		OriginalName: job.JobPayload.IngestFileName,
		Status:       status,
		StatusDetail: detail,
		ChunkCount:   chunkCount,
		UpdatedAt:    time.Now(),
	}
	if err := p.documents.SaveDocument(ctx, record); err != nil {
		p.logger.Error("could not save document record", "documentId", record.ID, "error", err)
	}
}
