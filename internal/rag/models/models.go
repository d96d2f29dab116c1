// Package models resolves which chat models the API may offer: the
// configured allow-list intersected with what the backend actually serves.
package models

import (
	"context"
	"strings"

	"github.com/mferrand/ragapi/internal/cache"
	"github.com/mferrand/ragapi/internal/config"
	"github.com/mferrand/ragapi/internal/rag/llm"
	"github.com/mferrand/ragapi/pkg/logger_i"
)

const cacheKey = "available"

type Resolver struct {
	provider  llm.Provider
	allowList []string
	cache     *cache.TTLCache[[]string]
	logger    *logger_i.Logger
}

func NewResolver(provider llm.Provider, allowList []string, clock cache.Clock) *Resolver {
	return &Resolver{
		provider:  provider,
		allowList: allowList,
		cache:     cache.New[[]string](config.ModelsCacheTTL, clock),
		logger:    logger_i.NewLogger("Models"),
	}
}

// Available returns the allow-listed models the backend currently serves,
// in allow-list order. An empty result is never cached: a backend that is
// still pulling models should be re-queried on the next request, not pinned
// empty for the TTL.
func (r *Resolver) Available(ctx context.Context) ([]string, error) {
	if cached, ok := r.cache.Get(cacheKey); ok {
		return cached, nil
	}

	loaded, err := r.provider.Tags(ctx)
	if err != nil {
		r.logger.Error("could not list backend models", "error", err)
		return nil, err
	}

	available := intersect(r.allowList, loaded)
	if len(available) == 0 {
		r.cache.Delete(cacheKey)
		r.logger.Warn("no allow-listed model is loaded", "loaded", len(loaded))
		return available, nil
	}

	r.cache.Set(cacheKey, available)
	return available, nil
}

// IsAvailable reports whether one model may be used for a chat request.
func (r *Resolver) IsAvailable(ctx context.Context, model string) (bool, error) {
	available, err := r.Available(ctx)
	if err != nil {
		return false, err
	}
	for _, m := range available {
		if baseName(m) == baseName(model) {
			return true, nil
		}
	}
	return false, nil
}

// intersect matches on base names so an allow-list entry "llama3" accepts a
// loaded "llama3:8b" and vice versa.
func intersect(allowed, loaded []string) []string {
	loadedBases := make(map[string]struct{}, len(loaded))
	for _, m := range loaded {
		loadedBases[baseName(m)] = struct{}{}
	}

	var out []string
	for _, m := range allowed {
		if _, ok := loadedBases[baseName(m)]; ok {
			out = append(out, m)
		}
	}
	return out
}

func baseName(model string) string {
	if i := strings.IndexByte(model, ':'); i >= 0 {
		return model[:i]
	}
	return model
}
