package ollamaEmbedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/mferrand/ragapi/internal/config"
	"github.com/mferrand/ragapi/internal/customHttpClient"
	"github.com/mferrand/ragapi/internal/domain/ragModel"
	"github.com/mferrand/ragapi/internal/rag/embedding"
	"github.com/mferrand/ragapi/pkg/logger_i"
	"golang.org/x/sync/errgroup"
)

const dimensionProbe = "dimension probe"

type client struct {
	httpClient *http.Client
	baseURL    string
	model      string
	logger     *logger_i.Logger
}

type embedRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type embedResponse struct {
	Embedding []float32 `json:"embedding"`
}

// NewClient builds an embedder talking to an Ollama-style embeddings
// endpoint over a pooled HTTP client.
func NewClient(baseURL, model string) embedding.Embedder {
	return &client{
		httpClient: customHttpClient.NewPooledClient(config.OllamaTimeout),
		baseURL:    baseURL,
		model:      model,
		logger:     logger_i.NewLogger("ollama_embedding"),
	}
}

func (c *client) GetEmbedding(ctx context.Context, text string) ([]float32, error) {
	body, err := json.Marshal(embedRequest{Model: c.model, Prompt: text})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/api/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ragModel.ErrEmbedding, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("%w: backend returned %d", ragModel.ErrEmbedding, resp.StatusCode)
	}

	var parsed embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("%w: %v", ragModel.ErrEmbedding, err)
	}
	if len(parsed.Embedding) == 0 {
		return nil, fmt.Errorf("%w: empty vector for %q", ragModel.ErrEmbedding, preview(text))
	}
	return parsed.Embedding, nil
}

// BatchEmbedding partitions texts into batches of at most
// config.EmbeddingBatchSize. Items within a batch are issued concurrently,
// batches run to completion sequentially. The cap of 8 is a correctness
// envelope of the backend and must not be relaxed.
func (c *client) BatchEmbedding(ctx context.Context, texts []string) ([][]float32, error) {
	results := make([][]float32, len(texts))

	for start := 0; start < len(texts); start += config.EmbeddingBatchSize {
		end := start + config.EmbeddingBatchSize
		if end > len(texts) {
			end = len(texts)
		}

		g, batchCtx := errgroup.WithContext(ctx)
		for i := start; i < end; i++ {
			g.Go(func() error {
				vec, err := c.GetEmbedding(batchCtx, texts[i])
				if err != nil {
					return err
				}
				results[i] = vec
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			// no partial results: one failing item fails the whole call
			return nil, err
		}
		c.logger.Debug("embedded batch", "from", start, "to", end)
	}
	return results, nil
}

func (c *client) VerifyDimension(ctx context.Context) (int, error) {
	vec, err := c.GetEmbedding(ctx, dimensionProbe)
	if err != nil {
		return 0, err
	}
	if len(vec) == 0 {
		return 0, fmt.Errorf("%w: model %s returns empty vectors", ragModel.ErrEmbedding, c.model)
	}
	c.logger.Info("embedding model verified", "model", c.model, "dimension", len(vec))
	return len(vec), nil
}

func preview(text string) string {
	if len(text) > 50 {
		return text[:50]
	}
	return text
}
