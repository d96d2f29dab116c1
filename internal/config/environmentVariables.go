package config

import (
	"log/slog"
	"time"
)

const (
	IS_PROD        = false
	LOG_LEVEL_PROD = slog.LevelInfo
	TRACE_ID_KEY   = "traceId"

	RATE_LIMIT_PER_SECOND       = 2
	BURST_RATE_LIMIT_PER_SECOND = 5

	// Embedding calls are issued at most 8 at a time. This is a correctness
	// constraint observed against the embedding backend, not a tuning knob:
	// beyond 8 parallel requests the returned vectors degrade.
	EmbeddingBatchSize = 8

	RequestsPerNewWorkerCount int64 = 10
	MaxWorkerCount            int64 = 10
	MinWorkerCount            int64 = 1
	IdleWorkerTimeout               = 1 * time.Minute

	//serverTimeouts
	ReadTimeout = 5 * time.Second
	// WriteTimeout stays 0: /chat/stream holds the response open for the
	// whole generation, a server-level write deadline would cut it off.
	WriteTimeout           = 0 * time.Second
	IdleTimeout            = 120 * time.Second
	ShutdownContextTimeout = 10 * time.Second

	ServerListenAddr = ":3000"

	//job requests buffer limit
	BufferLimit = 100

	//vectorDB
	QdrantConnectionTimeout = 30 * time.Second
	QdrantUseTLS            = false
	QdrantPoolSize          = 1 //2-5 is preferred for prod according to documentation

	//ingestion
	IngestTimeout     = 20 * time.Minute
	MaxUploadSize     = 50 << 20 //50mb
	ConvertPageBudget = 10 * time.Second

	//caches
	VisionCacheTTL = 300 * time.Second
	ModelsCacheTTL = 30 * time.Second

	//startup dependency probing
	StartupRetries      = 5
	StartupBackoffStart = 1 * time.Second

	MaxIdleConns        = 50
	MaxIdleConnsPerHost = 25
	IdleConnTimeout     = 60 * time.Second

	//redis has 16 DB we can use
	RedisJobStore          = 0
	RedisConversationStore = 1
	RedisDocumentStore     = 2

	//redis timeouts
	RedisJobStoreTTL          = 24 * time.Hour
	RedisConversationStoreTTL = 7 * 24 * time.Hour
	RedisDocumentStoreTTL     = time.Duration(0) //document records do not expire
)

// Tunables with environment / config.yaml overrides. Load() fills these in at
// startup; the values here are the defaults the service runs with otherwise.
var (
	QdrantHost       = "127.0.0.1"
	QdrantGrpcPort   = 6334
	QdrantCollection = "documents"

	RedisAddr     = "127.0.0.1:6379"
	RedisPassword = ""

	OllamaBaseURL        = "http://127.0.0.1:11434"
	OllamaEmbeddingModel = "bge-m3:567m"
	OllamaTimeout        = 120 * time.Second

	// LLMProvider selects the generation backend: "ollama" or "gemini".
	LLMProvider     = "ollama"
	GeminiAPIKey    = ""
	GeminiModelName = "gemini-2.5-flash-lite-preview-09-2025"

	AvailableModels = []string{
		"gemma3:4b",
		"llama3.1:latest",
		"deepseek-r1:14b",
		"gemma3:12b",
		"gemma3:27b",
	}

	//rag tunables - thresholds were tuned against bge-m3 score distributions,
	//a different embedding model likely needs different values
	MinRelevanceScore float32 = 0.45
	MMRLambda         float32 = 0.6
	DefaultTopK               = 5
	ContextMaxChars           = 12000
	ChunkMaxChars             = 3000
	ChunkOverlapChars         = 450
	DefaultMaxTokens          = 1024
	DefaultTemperature        = float32(0.1)

	ImagesDir = "/var/lib/ragapi/images"

	AuthToken    = ""
	NoAuthBypass = false

	ModelContext = "You are an assistant with access to documents provided in the context.\n" +
		"Rules:\n" +
		"1. If the answer is in the provided documents, base your answer on them and cite the sources.\n" +
		"2. If the answer is not in the documents but you know it, answer normally and state that the information comes from your general knowledge, not from the documents.\n" +
		"3. Be precise and concise."
)
