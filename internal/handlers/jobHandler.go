package handlers

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mferrand/ragapi/internal/config"
	"github.com/mferrand/ragapi/internal/data/store"
	"github.com/mferrand/ragapi/internal/domain/jobModel"
	"github.com/mferrand/ragapi/internal/job"
	"github.com/mferrand/ragapi/internal/metrics"
	"github.com/mferrand/ragapi/internal/rag"
	"github.com/mferrand/ragapi/internal/rag/models"
	"github.com/mferrand/ragapi/pkg/logger_i"
)

var (
	handlerInstance *JobHandler //private singleton
	once            sync.Once
	logJH           *logger_i.Logger
)

type JobHandler struct {
	service       *job.Service
	ragService    rag.Service
	conversations store.ConversationStore
	resolver      *models.Resolver
}

func InitJobHandler(jobService *job.Service, ragService rag.Service, conversations store.ConversationStore, resolver *models.Resolver) {
	once.Do(func() {
		handlerInstance = &JobHandler{
			service:       jobService,
			ragService:    ragService,
			conversations: conversations,
			resolver:      resolver,
		}

		logJH = logger_i.NewLogger("JobHandler")
		logRH = logger_i.NewLogger("RequestHandler")
		logJH.Info("Starting job handler")
	})

}

func CreateNewJob(newJob newJobData) {
	logJH.With("traceId", newJob.traceId, "job id", newJob.id)
	logJH.Info("To create new ingest job")
	handlerInstance.pushToJobChannel(newJob)
}

func jobFromNewData(newJob newJobData) jobModel.Job {
	j := jobModel.Job{Id: newJob.id}
	j.JobPayload.DocumentID = newJob.documentID
	return j
}

func GetJobStatus(id string, traceId string) (result jobModel.Job, isFound bool) {
	ctxC := context.WithValue(context.Background(), config.TRACE_ID_KEY, traceId)
	if handlerInstance != nil {
		return handlerInstance.service.JobStore.GetJob(ctxC, id)
	}
	return result, false
}

// private methods
func (h *JobHandler) pushToJobChannel(newJob newJobData) {

	_job := jobModel.Job{}
	_job.Id = newJob.id
	_job.CreatedTime = time.Now()
	_job.TraceId = newJob.traceId
	_job.Status = jobModel.JobStatusQueued
	_job.CurrentStep = jobModel.IngestInit
	_job.JobPayload.DocumentID = newJob.documentID
	_job.JobPayload.IngestFileName = newJob.documentName
	_job.JobPayload.IngestURL = newJob.documentPath

	//metrics
	metrics.IncrementJobsInQueue()

	h.service.JobChannel <- _job //this is a blocking send to prevent the system from being overwhelmed
	logJH.Info("Created new ingest job")

	//ingestion involves batch embedding calls which take time, so every
	//ingest job asks the dispatcher for a worker. the pool retires idle
	//workers so at quiet times only one stays up
	atomic.AddInt64(&h.service.RequestCount, 1)
	metrics.StartDispatcherSignalCount() //metrics
	h.service.DispatcherChannel <- true
}
