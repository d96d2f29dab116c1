package gemini

import (
	"context"
	"encoding/base64"
	"fmt"
	"sync"

	"github.com/mferrand/ragapi/internal/config"
	"github.com/mferrand/ragapi/internal/domain/ragModel"
	"github.com/mferrand/ragapi/internal/rag/llm"
	"github.com/mferrand/ragapi/pkg/logger_i"
	"google.golang.org/genai"
)

type llmClient struct {
	client *genai.Client
	logger *logger_i.Logger
}

var geminiClient *llmClient
var once sync.Once

func GetGeminiClient(ctx context.Context, apikey string) llm.Provider {
	once.Do(func() {
		logger := logger_i.NewLogger("llm_gemini")
		c, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apikey})
		if err != nil {
			logger.Error("Error creating Gemini client:", "error", err)
			return
		}
		geminiClient = &llmClient{client: c, logger: logger}
		logger.Info("Gemini client created")
	})

	if geminiClient == nil {
		return nil
	}
	return geminiClient
}

// toContents maps provider-neutral messages onto genai contents. A system
// message is pulled out into the SystemInstruction slot, images become
// inline blobs.
func toContents(messages []llm.Message) (*genai.Content, []*genai.Content) {
	var system *genai.Content
	contents := make([]*genai.Content, 0, len(messages))
	for _, m := range messages {
		if m.Role == llm.RoleSystem {
			system = &genai.Content{Parts: []*genai.Part{{Text: m.Content}}}
			continue
		}
		role := genai.RoleUser
		if m.Role == llm.RoleAssistant {
			role = genai.RoleModel
		}
		parts := []*genai.Part{{Text: m.Content}}
		for _, img := range m.Images {
			raw, err := base64.StdEncoding.DecodeString(img)
			if err != nil {
				continue
			}
			parts = append(parts, &genai.Part{InlineData: &genai.Blob{MIMEType: "image/png", Data: raw}})
		}
		contents = append(contents, &genai.Content{Role: role, Parts: parts})
	}
	return system, contents
}

func toConfig(system *genai.Content, opts llm.Options) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{SystemInstruction: system}
	if opts.Temperature > 0 {
		cfg.Temperature = genai.Ptr(float32(opts.Temperature))
	}
	if opts.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(opts.MaxTokens)
	}
	return cfg
}

func (c *llmClient) Chat(ctx context.Context, model string, messages []llm.Message, opts llm.Options) (string, error) {
	system, contents := toContents(messages)
	result, err := c.client.Models.GenerateContent(ctx, model, contents, toConfig(system, opts))
	if err != nil {
		return "", fmt.Errorf("%w: gemini: %v", ragModel.ErrGeneration, err)
	}
	return result.Text(), nil
}

func (c *llmClient) Stream(ctx context.Context, model string, messages []llm.Message, opts llm.Options) (<-chan llm.StreamChunk, error) {
	system, contents := toContents(messages)
	out := make(chan llm.StreamChunk)

	go func() {
		defer close(out)
		emit := func(chunk llm.StreamChunk) bool {
			select {
			case out <- chunk:
				return true
			case <-ctx.Done():
				return false
			}
		}

		for resp, err := range c.client.Models.GenerateContentStream(ctx, model, contents, toConfig(system, opts)) {
			if err != nil {
				emit(llm.StreamChunk{Err: fmt.Errorf("%w: gemini stream: %v", ragModel.ErrGeneration, err)})
				return
			}
			if text := resp.Text(); text != "" {
				if !emit(llm.StreamChunk{Token: text}) {
					return
				}
			}
		}
		emit(llm.StreamChunk{Done: true})
	}()
	return out, nil
}

// Show has no Ollama-style metadata endpoint behind it. Current Gemini chat
// models are multimodal, so the capability set is static.
func (c *llmClient) Show(ctx context.Context, model string) (llm.ModelInfo, error) {
	return llm.ModelInfo{Capabilities: []string{"completion", "vision"}}, nil
}

// Tags reports the configured model list. Gemini exposes no equivalent of a
// local "loaded models" inventory, every configured model is assumed served.
func (c *llmClient) Tags(ctx context.Context) ([]string, error) {
	return config.AvailableModels, nil
}
