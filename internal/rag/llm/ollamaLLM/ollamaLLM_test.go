package ollamaLLM

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/mferrand/ragapi/internal/domain/ragModel"
	"github.com/mferrand/ragapi/internal/rag/llm"
)

func collect(t *testing.T, ch <-chan llm.StreamChunk) (tokens []string, done bool, err error) {
	t.Helper()
	for chunk := range ch {
		if chunk.Err != nil {
			return tokens, done, chunk.Err
		}
		if chunk.Done {
			done = true
			continue
		}
		tokens = append(tokens, chunk.Token)
	}
	return tokens, done, nil
}

func streamServer(t *testing.T, lines []string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/x-ndjson")
		flusher := w.(http.Flusher)
		for _, line := range lines {
			w.Write([]byte(line + "\n"))
			flusher.Flush()
		}
	}))
}

func TestStreamDeliversTokensThenDone(t *testing.T) {
	srv := streamServer(t, []string{
		`{"message":{"content":"Bon"},"done":false}`,
		`{"message":{"content":"jour"},"done":false}`,
		`{"message":{"content":""},"done":true}`,
	})
	defer srv.Close()

	c := NewClient(srv.URL)
	ch, err := c.Stream(context.Background(), "llama3", []llm.Message{{Role: llm.RoleUser, Content: "salut"}}, llm.Options{})
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}

	tokens, done, err := collect(t, ch)
	if err != nil {
		t.Fatalf("unexpected stream error: %v", err)
	}
	if !done {
		t.Fatal("expected terminal done chunk")
	}
	if got := strings.Join(tokens, ""); got != "Bonjour" {
		t.Errorf("got %q, want %q", got, "Bonjour")
	}
}

func TestStreamSkipsMalformedLines(t *testing.T) {
	srv := streamServer(t, []string{
		`{"message":{"content":"a"},"done":false}`,
		`{{{not json`,
		`{"message":{"content":"b"},"done":false}`,
		`{"done":true}`,
	})
	defer srv.Close()

	c := NewClient(srv.URL)
	ch, err := c.Stream(context.Background(), "llama3", nil, llm.Options{})
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	tokens, done, err := collect(t, ch)
	if err != nil {
		t.Fatalf("unexpected stream error: %v", err)
	}
	if !done || strings.Join(tokens, "") != "ab" {
		t.Errorf("got tokens=%v done=%v, want ab/true", tokens, done)
	}
}

func TestStreamBackendErrorFrame(t *testing.T) {
	srv := streamServer(t, []string{
		`{"message":{"content":"a"},"done":false}`,
		`{"error":"model crashed"}`,
	})
	defer srv.Close()

	c := NewClient(srv.URL)
	ch, err := c.Stream(context.Background(), "llama3", nil, llm.Options{})
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	_, _, err = collect(t, ch)
	if !errors.Is(err, ragModel.ErrGeneration) {
		t.Fatalf("got %v, want ErrGeneration", err)
	}
}

func TestStreamTruncatedWithoutDoneIsError(t *testing.T) {
	srv := streamServer(t, []string{
		`{"message":{"content":"a"},"done":false}`,
	})
	defer srv.Close()

	c := NewClient(srv.URL)
	ch, err := c.Stream(context.Background(), "llama3", nil, llm.Options{})
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	_, done, err := collect(t, ch)
	if done {
		t.Fatal("truncated stream must not report done")
	}
	if !errors.Is(err, ragModel.ErrGeneration) {
		t.Fatalf("got %v, want ErrGeneration", err)
	}
}

func TestStreamCancelledContextStops(t *testing.T) {
	started := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"message":{"content":"a"},"done":false}` + "\n"))
		w.(http.Flusher).Flush()
		close(started)
		// stall until the client goes away
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	c := NewClient(srv.URL)
	ch, err := c.Stream(ctx, "llama3", nil, llm.Options{})
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}

	<-started
	if chunk := <-ch; chunk.Token != "a" {
		t.Fatalf("got %+v, want token a", chunk)
	}
	cancel()

	select {
	case _, open := <-ch:
		if open {
			// terminal timeout chunk, channel must close after it
			if _, stillOpen := <-ch; stillOpen {
				t.Fatal("channel not closed after terminal chunk")
			}
		}
	case <-time.After(2 * time.Second):
		t.Fatal("stream did not terminate on cancel")
	}
}

func TestChatNonStreaming(t *testing.T) {
	var gotReq map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&gotReq)
		json.NewEncoder(w).Encode(map[string]any{
			"message": map[string]any{"content": "condensed question"},
			"done":    true,
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	out, err := c.Chat(context.Background(), "llama3",
		[]llm.Message{{Role: llm.RoleUser, Content: "hi"}},
		llm.Options{Temperature: 0.1, MaxTokens: 100})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if out != "condensed question" {
		t.Errorf("got %q", out)
	}
	if gotReq["stream"] != false {
		t.Error("non-streaming chat must send stream=false")
	}
	opts := gotReq["options"].(map[string]any)
	if opts["num_predict"].(float64) != 100 {
		t.Errorf("num_predict = %v, want 100", opts["num_predict"])
	}
}

func TestChatHTTPErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	_, err := c.Chat(context.Background(), "missing", nil, llm.Options{})
	if !errors.Is(err, ragModel.ErrGeneration) {
		t.Fatalf("got %v, want ErrGeneration", err)
	}
}

func TestShowParsesCapabilitiesAndFamilies(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/show" {
			http.NotFound(w, r)
			return
		}
		if r.URL.Query().Get("name") != "llava:13b" {
			t.Errorf("name = %q", r.URL.Query().Get("name"))
		}
		json.NewEncoder(w).Encode(map[string]any{
			"capabilities": []string{"completion", "vision"},
			"details":      map[string]any{"families": []string{"llava", "clip"}},
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	info, err := c.Show(context.Background(), "llava:13b")
	if err != nil {
		t.Fatalf("Show: %v", err)
	}
	if len(info.Capabilities) != 2 || info.Capabilities[1] != "vision" {
		t.Errorf("capabilities = %v", info.Capabilities)
	}
	if len(info.Families) != 2 || info.Families[0] != "llava" {
		t.Errorf("families = %v", info.Families)
	}
}

func TestTagsListsModelNames(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/tags" {
			http.NotFound(w, r)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"models": []map[string]any{
				{"name": "llama3:8b"},
				{"name": "bge-m3:567m"},
			},
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	names, err := c.Tags(context.Background())
	if err != nil {
		t.Fatalf("Tags: %v", err)
	}
	if len(names) != 2 || names[0] != "llama3:8b" || names[1] != "bge-m3:567m" {
		t.Errorf("names = %v", names)
	}
}
