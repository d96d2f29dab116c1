package customHttpClient

import (
	"net/http"
	"time"

	"github.com/mferrand/ragapi/internal/config"
)

// The Ollama endpoints are hit on every request (embeddings, generation,
// model probes); one pooled transport keeps connections warm across them.
var customTransport = &http.Transport{
	MaxIdleConns:        config.MaxIdleConns,
	MaxIdleConnsPerHost: config.MaxIdleConnsPerHost,
	IdleConnTimeout:     config.IdleConnTimeout,
}

func NewPooledClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Transport: customTransport,
		Timeout:   timeout,
	}
}

// NewStreamingClient has no overall timeout: a generation stream is open
// for as long as the model keeps producing tokens. Connect-level deadlines
// belong to the request context.
func NewStreamingClient() *http.Client {
	return &http.Client{
		Transport: customTransport,
	}
}
