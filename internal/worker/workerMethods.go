package worker

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/mferrand/ragapi/internal/config"
	"github.com/mferrand/ragapi/internal/domain/jobModel"
	"github.com/mferrand/ragapi/internal/metrics"
)

// executeJob runs one queued ingestion. The timeout leaves headroom past the
// pipeline's own ceiling so the pipeline error, not the worker's deadline, is
// what lands on the status record.
func executeJob(currentJob jobModel.Job) {
	start := time.Now()
	defer func() {
		metrics.CaptureExecutionMetrics("ingest_job", time.Since(start))
	}()
	ctxTrace := context.WithValue(context.Background(), config.TRACE_ID_KEY, currentJob.TraceId)
	ctx, cancel := context.WithTimeout(ctxTrace, config.IngestTimeout+time.Minute)
	defer cancel()
	logger.Debug("Processing job", "jobId", currentJob.Id)

	saveJobState(ctx, currentJob, jobModel.JobStatusRunning)

	finished := _ragService.IngestDocument(ctx, currentJob)
	saveJobState(ctx, finished, finished.Status)
}

func removeWorker(reason string) {
	workerWaitGroup.Done()
	atomic.AddInt64(&currentWorkerCount, -1)
	logger.Info("Removed worker", "reason", reason, "workerCount", currentWorkerCount)
	metrics.DecrementActiveWorkerCount()
}

func saveJobState(ctx context.Context, currentJob jobModel.Job, jobStatus jobModel.JobStatus) {
	currentJob.Status = jobStatus
	if err := _jobService.JobStore.SaveJob(ctx, currentJob); err != nil {
		logger.Error("Failed to update job status", "jobId", currentJob.Id, "err", err)
	}
}
