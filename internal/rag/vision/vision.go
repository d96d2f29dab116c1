// Package vision answers "can this model look at images" without hitting
// the backend metadata endpoint on every chat request.
package vision

import (
	"context"
	"strings"

	"github.com/mferrand/ragapi/internal/cache"
	"github.com/mferrand/ragapi/internal/config"
	"github.com/mferrand/ragapi/internal/rag/llm"
	"github.com/mferrand/ragapi/pkg/logger_i"
)

// visionFamilies are model family markers that imply image input support.
// Matched as substrings: "llava" covers "llava-llama3" and friends.
var visionFamilies = []string{"clip", "vision", "llava", "gemma3", "moondream", "minicpm"}

type Checker struct {
	provider llm.Provider
	cache    *cache.TTLCache[bool]
	logger   *logger_i.Logger
}

func NewChecker(provider llm.Provider, clock cache.Clock) *Checker {
	return &Checker{
		provider: provider,
		cache:    cache.New[bool](config.VisionCacheTTL, clock),
		logger:   logger_i.NewLogger("Vision"),
	}
}

// HasVision probes the backend once per model per TTL window. A failed
// probe caches false: a model we cannot inspect gets text-only treatment
// rather than a retry storm.
func (c *Checker) HasVision(ctx context.Context, model string) bool {
	if cached, ok := c.cache.Get(model); ok {
		return cached
	}

	info, err := c.provider.Show(ctx, model)
	if err != nil {
		c.logger.Warn("capability probe failed, assuming text-only", "model", model, "error", err)
		c.cache.Set(model, false)
		return false
	}

	capable := supportsVision(info)
	c.cache.Set(model, capable)
	c.logger.Debug("capability probed", "model", model, "vision", capable)
	return capable
}

func supportsVision(info llm.ModelInfo) bool {
	for _, capability := range info.Capabilities {
		if strings.EqualFold(capability, "vision") {
			return true
		}
	}
	for _, family := range info.Families {
		lowered := strings.ToLower(family)
		for _, marker := range visionFamilies {
			if strings.Contains(lowered, marker) {
				return true
			}
		}
	}
	return false
}
