package ollamaLLM

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/mferrand/ragapi/internal/config"
	"github.com/mferrand/ragapi/internal/customHttpClient"
	"github.com/mferrand/ragapi/internal/domain/ragModel"
	"github.com/mferrand/ragapi/internal/rag/llm"
	"github.com/mferrand/ragapi/pkg/logger_i"
)

type client struct {
	httpClient   *http.Client
	streamClient *http.Client
	baseURL      string
	logger       *logger_i.Logger
}

func NewClient(baseURL string) llm.Provider {
	return &client{
		httpClient:   customHttpClient.NewPooledClient(config.OllamaTimeout),
		streamClient: customHttpClient.NewStreamingClient(),
		baseURL:      strings.TrimRight(baseURL, "/"),
		logger:       logger_i.NewLogger("OllamaLLM"),
	}
}

type chatMessage struct {
	Role    string   `json:"role"`
	Content string   `json:"content"`
	Images  []string `json:"images,omitempty"`
}

type chatRequest struct {
	Model    string         `json:"model"`
	Messages []chatMessage  `json:"messages"`
	Stream   bool           `json:"stream"`
	Options  map[string]any `json:"options,omitempty"`
}

type chatResponse struct {
	Message struct {
		Content string `json:"content"`
	} `json:"message"`
	Done  bool   `json:"done"`
	Error string `json:"error,omitempty"`
}

func toWire(messages []llm.Message) []chatMessage {
	wire := make([]chatMessage, len(messages))
	for i, m := range messages {
		wire[i] = chatMessage{Role: string(m.Role), Content: m.Content, Images: m.Images}
	}
	return wire
}

func wireOptions(opts llm.Options) map[string]any {
	options := map[string]any{}
	if opts.Temperature > 0 {
		options["temperature"] = opts.Temperature
	}
	if opts.MaxTokens > 0 {
		options["num_predict"] = opts.MaxTokens
	}
	if len(options) == 0 {
		return nil
	}
	return options
}

func (c *client) postChat(ctx context.Context, httpClient *http.Client, body chatRequest) (*http.Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal chat request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ragModel.ErrGeneration, err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: ollama returned %d: %s", ragModel.ErrGeneration, resp.StatusCode, string(raw))
	}
	return resp, nil
}

func (c *client) Chat(ctx context.Context, model string, messages []llm.Message, opts llm.Options) (string, error) {
	resp, err := c.postChat(ctx, c.httpClient, chatRequest{
		Model:    model,
		Messages: toWire(messages),
		Stream:   false,
		Options:  wireOptions(opts),
	})
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("%w: decode chat response: %v", ragModel.ErrGeneration, err)
	}
	if parsed.Error != "" {
		return "", fmt.Errorf("%w: %s", ragModel.ErrGeneration, parsed.Error)
	}
	return parsed.Message.Content, nil
}

// Stream issues the chat request with stream=true and fans the NDJSON lines
// out on a channel. Malformed lines are skipped, not fatal: Ollama keeps
// streaming after the occasional garbled frame and so do we.
func (c *client) Stream(ctx context.Context, model string, messages []llm.Message, opts llm.Options) (<-chan llm.StreamChunk, error) {
	resp, err := c.postChat(ctx, c.streamClient, chatRequest{
		Model:    model,
		Messages: toWire(messages),
		Stream:   true,
		Options:  wireOptions(opts),
	})
	if err != nil {
		return nil, err
	}

	out := make(chan llm.StreamChunk)
	go c.pumpStream(ctx, resp.Body, out)
	return out, nil
}

func (c *client) pumpStream(ctx context.Context, body io.ReadCloser, out chan<- llm.StreamChunk) {
	defer close(out)
	defer body.Close()

	emit := func(chunk llm.StreamChunk) bool {
		select {
		case out <- chunk:
			return true
		case <-ctx.Done():
			return false
		}
	}

	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var parsed chatResponse
		if err := json.Unmarshal(line, &parsed); err != nil {
			c.logger.Warn("skipping malformed stream line", "error", err)
			continue
		}
		if parsed.Error != "" {
			emit(llm.StreamChunk{Err: fmt.Errorf("%w: %s", ragModel.ErrGeneration, parsed.Error)})
			return
		}
		if parsed.Message.Content != "" {
			if !emit(llm.StreamChunk{Token: parsed.Message.Content}) {
				return
			}
		}
		if parsed.Done {
			emit(llm.StreamChunk{Done: true})
			return
		}
	}

	if err := scanner.Err(); err != nil {
		if ctx.Err() != nil {
			emit(llm.StreamChunk{Err: fmt.Errorf("%w: %v", ragModel.ErrGenerationTimeout, ctx.Err())})
			return
		}
		emit(llm.StreamChunk{Err: fmt.Errorf("%w: stream read: %v", ragModel.ErrGeneration, err)})
		return
	}
	// body ended without a done marker
	emit(llm.StreamChunk{Err: fmt.Errorf("%w: stream ended without done marker", ragModel.ErrGeneration)})
}

type showResponse struct {
	Capabilities []string `json:"capabilities"`
	Details      struct {
		Families []string `json:"families"`
	} `json:"details"`
}

func (c *client) Show(ctx context.Context, model string) (llm.ModelInfo, error) {
	endpoint := c.baseURL + "/api/show?name=" + url.QueryEscape(model)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return llm.ModelInfo{}, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return llm.ModelInfo{}, fmt.Errorf("ollama show: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return llm.ModelInfo{}, fmt.Errorf("ollama show returned %d", resp.StatusCode)
	}

	var parsed showResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return llm.ModelInfo{}, fmt.Errorf("decode show response: %w", err)
	}
	return llm.ModelInfo{
		Capabilities: parsed.Capabilities,
		Families:     parsed.Details.Families,
	}, nil
}

type tagsResponse struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

func (c *client) Tags(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/tags", nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ollama tags: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ollama tags returned %d", resp.StatusCode)
	}

	var parsed tagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode tags response: %w", err)
	}
	names := make([]string, 0, len(parsed.Models))
	for _, m := range parsed.Models {
		names = append(names, m.Name)
	}
	return names, nil
}
