package worker

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mferrand/ragapi/internal/config"
	"github.com/mferrand/ragapi/internal/domain/jobModel"
	"github.com/mferrand/ragapi/internal/domain/ragModel"
	"github.com/mferrand/ragapi/internal/job"
	"github.com/mferrand/ragapi/internal/rag"
	"github.com/mferrand/ragapi/pkg/logger_i"
)

// MockRagService tracks executed ingestions
type MockRagService struct {
	ProcessedCount int32
}

func (m *MockRagService) StreamChat(ctx context.Context, req rag.ChatRequest) <-chan ragModel.StreamEvent {
	out := make(chan ragModel.StreamEvent)
	close(out)
	return out
}

func (m *MockRagService) IngestDocument(ctx context.Context, j jobModel.Job) jobModel.Job {
	atomic.AddInt32(&m.ProcessedCount, 1)
	j.Status = jobModel.JobStatusComplete
	return j
}

func (m *MockRagService) DeleteDocument(ctx context.Context, documentID string) error {
	return nil
}

type MockJobStore struct {
	mu     sync.Mutex
	states []jobModel.JobStatus
}

func (m *MockJobStore) GetJob(ctx context.Context, jobId string) (jobModel.Job, bool) {
	return jobModel.Job{}, false
}

func (m *MockJobStore) DeleteJob(ctx context.Context, jobID string) {}

func (m *MockJobStore) SaveJob(ctx context.Context, j jobModel.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states = append(m.states, j.Status)
	return nil
}

func (m *MockJobStore) savedStates() []jobModel.JobStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]jobModel.JobStatus, len(m.states))
	copy(out, m.states)
	return out
}

func TestWorkerPool_Flow(t *testing.T) {
	jobStore := &MockJobStore{}
	jobSvc := &job.Service{
		JobChannel:        make(chan jobModel.Job, 10),
		DispatcherChannel: make(chan bool, 10),
		JobStore:          jobStore,
	}
	mockRag := &MockRagService{}
	stopChan := make(chan bool)
	wg := &sync.WaitGroup{}

	InitServices(jobSvc, mockRag)
	InitWorkerPool(stopChan, wg)

	// Reset global state for test
	atomic.StoreInt64(&currentWorkerCount, 0)

	t.Run("Dispatcher creates worker on signal", func(t *testing.T) {
		jobSvc.DispatcherChannel <- true

		time.Sleep(50 * time.Millisecond)

		count := atomic.LoadInt64(&currentWorkerCount)
		if count < 1 {
			t.Errorf("Expected at least 1 worker, got %d", count)
		}
	})

	t.Run("Worker processes an ingestion job", func(t *testing.T) {
		testJob := jobModel.Job{Id: "test-1", TraceId: "trace-1"}
		jobSvc.JobChannel <- testJob

		time.Sleep(50 * time.Millisecond)

		processed := atomic.LoadInt32(&mockRag.ProcessedCount)
		if processed != 1 {
			t.Errorf("Expected 1 job processed, got %d", processed)
		}

		states := jobStore.savedStates()
		if len(states) < 2 {
			t.Fatalf("expected running then final state saved, got %v", states)
		}
		if states[0] != jobModel.JobStatusRunning {
			t.Errorf("first saved state = %s, want RUNNING", states[0])
		}
		if states[len(states)-1] != jobModel.JobStatusComplete {
			t.Errorf("final saved state = %s, want COMPLETE", states[len(states)-1])
		}
	})

	t.Run("Stop signal retires workers", func(t *testing.T) {
		close(stopChan)

		done := make(chan struct{})
		go func() {
			wg.Wait()
			close(done)
		}()

		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Error("Workers did not stop within timeout")
		}
	})
}

func TestWorker_IdleTimeout(t *testing.T) {
	atomic.StoreInt64(&currentWorkerCount, 0)
	logger = logger_i.NewLogger("TestWorkerPool")
	jobSvc := &job.Service{
		JobChannel: make(chan jobModel.Job),
		JobStore:   &MockJobStore{},
	}
	InitServices(jobSvc, &MockRagService{})

	wg := &sync.WaitGroup{}
	stopChan := make(chan bool)
	workerWaitGroup = wg
	stopWorkerChannel = stopChan

	// staggered so the idle timers fire apart: the first worker sees
	// the pool above the floor and retires, the survivor sees it at
	// the floor and stays
	createWorker()
	time.Sleep(300 * time.Millisecond)
	createWorker()

	time.Sleep(config.IdleWorkerTimeout + 1*time.Second)
	count := atomic.LoadInt64(&currentWorkerCount)
	if count != 1 {
		t.Errorf("Pool should have shrunk to the floor of 1 worker, but count is %d", count)
	}

	close(stopChan)
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Error("Surviving worker did not stop within timeout")
	}
}
