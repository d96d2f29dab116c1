package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// yamlConfig mirrors the overridable part of the package vars. Everything is
// optional; zero values mean "keep the default".
type yamlConfig struct {
	Qdrant struct {
		Host       string `yaml:"host"`
		GrpcPort   int    `yaml:"grpc_port"`
		Collection string `yaml:"collection"`
	} `yaml:"qdrant"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
	} `yaml:"redis"`
	Ollama struct {
		BaseURL        string `yaml:"base_url"`
		EmbeddingModel string `yaml:"embedding_model"`
		TimeoutSecs    int    `yaml:"timeout_secs"`
	} `yaml:"ollama"`
	LLM struct {
		Provider     string   `yaml:"provider"`
		GeminiAPIKey string   `yaml:"gemini_api_key"`
		GeminiModel  string   `yaml:"gemini_model"`
		Models       []string `yaml:"models"`
	} `yaml:"llm"`
	RAG struct {
		MinRelevanceScore float32 `yaml:"min_relevance_score"`
		MMRLambda         float32 `yaml:"mmr_lambda"`
		TopK              int     `yaml:"top_k"`
		ContextMaxChars   int     `yaml:"context_max_chars"`
		ChunkMaxChars     int     `yaml:"chunk_max_chars"`
		ChunkOverlapChars int     `yaml:"chunk_overlap_chars"`
		ImagesDir         string  `yaml:"images_dir"`
	} `yaml:"rag"`
	Auth struct {
		Token  string `yaml:"token"`
		Bypass bool   `yaml:"bypass"`
	} `yaml:"auth"`
}

// Load applies overrides in increasing precedence: config.yaml, .env file,
// then real environment variables. Missing files are not an error.
func Load(yamlPath string) error {
	if err := loadYaml(yamlPath); err != nil {
		return err
	}
	//.env populates the process env, so the env pass below picks it up
	_ = godotenv.Load()
	loadEnv()
	return nil
}

func loadYaml(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	var y yamlConfig
	if err := yaml.Unmarshal(data, &y); err != nil {
		return err
	}

	setString(&QdrantHost, y.Qdrant.Host)
	setInt(&QdrantGrpcPort, y.Qdrant.GrpcPort)
	setString(&QdrantCollection, y.Qdrant.Collection)
	setString(&RedisAddr, y.Redis.Addr)
	setString(&RedisPassword, y.Redis.Password)
	setString(&OllamaBaseURL, y.Ollama.BaseURL)
	setString(&OllamaEmbeddingModel, y.Ollama.EmbeddingModel)
	if y.Ollama.TimeoutSecs > 0 {
		OllamaTimeout = time.Duration(y.Ollama.TimeoutSecs) * time.Second
	}
	setString(&LLMProvider, y.LLM.Provider)
	setString(&GeminiAPIKey, y.LLM.GeminiAPIKey)
	setString(&GeminiModelName, y.LLM.GeminiModel)
	if len(y.LLM.Models) > 0 {
		AvailableModels = y.LLM.Models
	}
	if y.RAG.MinRelevanceScore > 0 {
		MinRelevanceScore = y.RAG.MinRelevanceScore
	}
	if y.RAG.MMRLambda > 0 {
		MMRLambda = y.RAG.MMRLambda
	}
	setInt(&DefaultTopK, y.RAG.TopK)
	setInt(&ContextMaxChars, y.RAG.ContextMaxChars)
	setInt(&ChunkMaxChars, y.RAG.ChunkMaxChars)
	setInt(&ChunkOverlapChars, y.RAG.ChunkOverlapChars)
	setString(&ImagesDir, y.RAG.ImagesDir)
	setString(&AuthToken, y.Auth.Token)
	if y.Auth.Bypass {
		NoAuthBypass = true
	}
	return nil
}

func loadEnv() {
	setString(&QdrantHost, os.Getenv("QDRANT_HOST"))
	if p, err := strconv.Atoi(os.Getenv("QDRANT_GRPC_PORT")); err == nil {
		QdrantGrpcPort = p
	}
	setString(&QdrantCollection, os.Getenv("QDRANT_COLLECTION"))
	setString(&RedisAddr, os.Getenv("REDIS_ADDR"))
	setString(&RedisPassword, os.Getenv("REDIS_PASSWORD"))
	setString(&OllamaBaseURL, os.Getenv("OLLAMA_BASE_URL"))
	setString(&OllamaEmbeddingModel, os.Getenv("OLLAMA_EMBEDDING_MODEL"))
	setString(&LLMProvider, os.Getenv("LLM_PROVIDER"))
	setString(&GeminiAPIKey, os.Getenv("GEMINI_API_KEY"))
	setString(&GeminiModelName, os.Getenv("GEMINI_MODEL"))
	if v := os.Getenv("OLLAMA_AVAILABLE_MODELS"); v != "" {
		var models []string
		for _, m := range strings.Split(v, ",") {
			if m = strings.TrimSpace(m); m != "" {
				models = append(models, m)
			}
		}
		if len(models) > 0 {
			AvailableModels = models
		}
	}
	if v, err := strconv.ParseFloat(os.Getenv("RAG_MIN_RELEVANCE"), 32); err == nil {
		MinRelevanceScore = float32(v)
	}
	if v, err := strconv.ParseFloat(os.Getenv("RAG_MMR_LAMBDA"), 32); err == nil {
		MMRLambda = float32(v)
	}
	if v, err := strconv.Atoi(os.Getenv("RAG_TOP_K")); err == nil && v > 0 {
		DefaultTopK = v
	}
	setString(&ImagesDir, os.Getenv("IMAGES_DIR"))
	setString(&AuthToken, os.Getenv("AUTH_TOKEN"))
	if os.Getenv("NO_AUTH_BYPASS") == "true" {
		NoAuthBypass = true
	}
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v > 0 {
		*dst = v
	}
}
