package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/mferrand/ragapi/internal/config"
	"github.com/mferrand/ragapi/internal/data/store"
	jobmodel "github.com/mferrand/ragapi/internal/domain/jobModel"
	"github.com/mferrand/ragapi/internal/gate"
	"github.com/mferrand/ragapi/internal/handlers"
	"github.com/mferrand/ragapi/internal/job"
	"github.com/mferrand/ragapi/internal/rag"
	"github.com/mferrand/ragapi/internal/rag/embedding"
	"github.com/mferrand/ragapi/internal/rag/embedding/ollamaEmbedding"
	"github.com/mferrand/ragapi/internal/rag/llm"
	"github.com/mferrand/ragapi/internal/rag/llm/gemini"
	"github.com/mferrand/ragapi/internal/rag/llm/ollamaLLM"
	"github.com/mferrand/ragapi/internal/rag/models"
	"github.com/mferrand/ragapi/internal/rag/vectorDB/qdrantDB"
	"github.com/mferrand/ragapi/internal/rag/vision"
	"github.com/mferrand/ragapi/internal/server"
	"github.com/mferrand/ragapi/internal/worker"
	"github.com/mferrand/ragapi/pkg/logger_i"
)

var (
	listenAddr        string
	configPath        string
	requestCount      int64
	stopWorkerChannel chan bool
	workerWaitGroup   sync.WaitGroup
)

func main() {

	logger_i.Init()
	var logger = logger_i.NewLogger("main")

	//config
	flag.StringVar(&listenAddr, "listen-addr", config.ServerListenAddr, "server listen address")
	flag.StringVar(&configPath, "config", "", "path to config.yaml")
	flag.Parse()

	if err := config.Load(configPath); err != nil {
		logger.Error("Couldn't load configuration", "path", configPath, "err", err)
		return
	}

	//init buffered job channel
	jobChannel := make(chan jobmodel.Job, config.BufferLimit)
	dispatcherChannel := make(chan bool, 1)
	stopWorkerChannel = make(chan bool, 1)

	serviceContext, closeExternalServices := context.WithCancel(context.Background())
	defer closeExternalServices()

	//init job service and stores
	serviceConfig := job.ServiceConfig{
		JobChannel:        jobChannel,
		RequestCount:      requestCount,
		DispatcherChannel: dispatcherChannel,
		JobStore:          jobStoreOrFallback(serviceContext, logger),
		DocumentStore:     documentStoreOrFallback(serviceContext, logger),
	}
	logger.Info("Starting job service")
	service := job.InitJobService(serviceConfig)

	conversationStore := conversationStoreOrFallback(serviceContext, logger)

	vectorDB, err := qdrantDB.NewClient(serviceContext)
	if err != nil {
		logger.Error("Couldn't connect to the vector database", "err", err)
		return
	}

	embeddingService := ollamaEmbedding.NewClient(config.OllamaBaseURL, config.OllamaEmbeddingModel)
	llmProvider := selectProvider(serviceContext, logger)
	if llmProvider == nil {
		return
	}

	//the vector index is sized from a live probe of the embedding backend,
	//starting with a wrong or zero dimension would corrupt every upsert
	if !prepareIndex(serviceContext, logger, embeddingService, vectorDB) {
		return
	}

	visionChecker := vision.NewChecker(llmProvider, nil)
	modelResolver := models.NewResolver(llmProvider, config.AvailableModels, nil)

	ragService := rag.NewService(vectorDB, llmProvider, embeddingService, serviceConfig.DocumentStore, gate.New(), visionChecker)

	handlers.InitJobHandler(service, ragService, conversationStore, modelResolver)

	//init worker pool
	worker.InitServices(service, ragService)
	worker.InitWorkerPool(stopWorkerChannel, &workerWaitGroup)

	//server handling
	gracefulShutdown := make(chan os.Signal, 1)
	signal.Notify(gracefulShutdown, syscall.SIGINT, syscall.SIGTERM)
	stopExecution := make(chan bool, 1)

	shutdownParams := server.ShutdownParams{
		GracefulShutdown: gracefulShutdown,
		StopExecution:    stopExecution,
		WorkerStop:       stopWorkerChannel,
		Group:            &workerWaitGroup,
		CloseServices:    closeExternalServices,
	}
	go server.ShutDownHandler(shutdownParams)
	go server.CreateServer(listenAddr)

	<-stopExecution
	logger.Info("Server stopped")
}

func jobStoreOrFallback(ctx context.Context, logger *logger_i.Logger) jobmodel.JobStore {
	if s := store.GetRedisJobStore(ctx); s != nil {
		return s
	}
	logger.Error("Redis job store is offline, falling back to memory")
	return store.InitInMemoryJobStore()
}

func documentStoreOrFallback(ctx context.Context, logger *logger_i.Logger) store.DocumentStore {
	if s := store.GetRedisDocumentStore(ctx); s != nil {
		return s
	}
	logger.Error("Redis document store is offline, falling back to memory")
	return store.InitInMemoryDocumentStore()
}

func conversationStoreOrFallback(ctx context.Context, logger *logger_i.Logger) store.ConversationStore {
	if s := store.GetRedisConversationStore(ctx); s != nil {
		return s
	}
	logger.Error("Redis conversation store is offline, falling back to memory")
	return store.InitInMemoryConversationStore()
}

func selectProvider(ctx context.Context, logger *logger_i.Logger) llm.Provider {
	switch config.LLMProvider {
	case "gemini":
		provider := gemini.GetGeminiClient(ctx, config.GeminiAPIKey)
		if provider == nil {
			logger.Error("Gemini client failed to initialize")
		}
		return provider
	case "ollama":
		return ollamaLLM.NewClient(config.OllamaBaseURL)
	default:
		logger.Error("Unknown LLM provider", "provider", config.LLMProvider)
		return nil
	}
}

// prepareIndex probes the embedding dimension and sizes the vector
// collection, retrying with backoff so a restart race with the embedding
// backend does not kill the service.
func prepareIndex(ctx context.Context, logger *logger_i.Logger, embedder embedding.Embedder, vectorDB *qdrantDB.ClientHolder) bool {
	backoff := config.StartupBackoffStart

	for attempt := 1; attempt <= config.StartupRetries; attempt++ {
		dimension, err := embedder.VerifyDimension(ctx)
		if err == nil && dimension > 0 {
			if err = vectorDB.EnsureCollection(ctx, dimension); err == nil {
				logger.Info("Vector index ready", "dimension", dimension)
				return true
			}
		}
		if err == nil && dimension == 0 {
			logger.Error("Embedding backend returned a zero dimension, refusing to start")
			return false
		}

		logger.Warn("Startup dependency probe failed", "attempt", attempt, "err", err)
		select {
		case <-ctx.Done():
			return false
		case <-time.After(backoff):
			backoff *= 2
		}
	}

	logger.Error("Startup dependency probe kept failing, giving up")
	return false
}
