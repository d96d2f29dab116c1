package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mferrand/ragapi/internal/adapter"
	"github.com/mferrand/ragapi/internal/adapter/utils"
	"github.com/mferrand/ragapi/internal/api"
	"github.com/mferrand/ragapi/internal/config"
	"github.com/mferrand/ragapi/internal/domain/ragModel"
	"github.com/mferrand/ragapi/internal/rag"
)

const historyWindowTurns = 10

// ChatStreamHandler answers one chat turn as a Server-Sent Events stream.
// Chat never goes through the job queue: tokens have to reach the caller as
// they are generated, which a polled status endpoint cannot do.
func ChatStreamHandler(w http.ResponseWriter, request *http.Request) {
	if !validateContext(request.Context()) {
		logRH.Warn("Invalid Context by request ", request.RemoteAddr)
		return
	}

	var requestData api.ChatStreamRequest
	defer func(Body io.ReadCloser) {
		err := Body.Close()
		if err != nil {
			logRH.Error("Couldn't close the Chat handler reader :", err)
		}
	}(request.Body)
	if err := json.NewDecoder(request.Body).Decode(&requestData); err != nil || requestData.Message == "" {
		logRH.Warn("Bad Chat Request: ", "error:", err, "request data:", requestData)
		WriteErrorResponse(w, http.StatusBadRequest, requestData.ConversationID, "Bad Request")
		return
	}

	model, errResponse := resolveModel(request.Context(), requestData.Model)
	if errResponse != nil {
		writeJsonResponse(w, errResponse.Error.Code, errResponse)
		return
	}

	conversationID := requestData.ConversationID
	newConversation := false
	if conversationID == "" {
		conversationID = utils.GetNewUUID()
		newConversation = true
		logRH.Debug(" New conversation : ", "conversationID:", conversationID)
	}

	history := loadHistory(request.Context(), conversationID)

	flusher, ok := w.(http.Flusher)
	if !ok {
		WriteErrorResponse(w, http.StatusInternalServerError, conversationID, "Streaming unsupported")
		return
	}

	events := handlerInstance.ragService.StreamChat(request.Context(), rag.ChatRequest{
		Question:        requestData.Message,
		Model:           model,
		ConversationID:  conversationID,
		DocumentIDs:     requestData.DocumentIDs,
		History:         history,
		SkipRetrieval:   requestData.SkipRetrieval,
		NewConversation: newConversation,
		Temperature:     requestData.Temperature,
		MaxTokens:       requestData.MaxTokens,
		TopK:            requestData.TopK,
		MinScore:        requestData.MinScore,
		ContextChars:    requestData.ContextChars,
		SystemPrompt:    requestData.SystemPrompt,
	})

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	var answer strings.Builder
	completed := false
	for event := range events {
		payload, err := json.Marshal(event)
		if err != nil {
			logRH.Error("Couldn't encode stream event", "err", err)
			continue
		}
		fmt.Fprintf(w, "data: %s\n\n", payload)
		flusher.Flush()

		switch event.Type {
		case ragModel.EventToken:
			answer.WriteString(event.Token)
		case ragModel.EventDone:
			completed = true
		}
	}

	//only a completed exchange is worth remembering, an errored or cancelled
	//one would poison the condenser's history window
	if completed {
		persistTurns(traceFromContext(request), conversationID, requestData.Message, answer.String())
	}
}

// GetModelsHandler lists the models that are allowed and currently loaded.
func GetModelsHandler(w http.ResponseWriter, r *http.Request) {
	if validateContext(r.Context()) {
		available, err := handlerInstance.resolver.Available(r.Context())
		if err != nil {
			logRH.Error("Model backend unavailable", "err", err)
			WriteErrorResponse(w, http.StatusBadGateway, "", "Model backend unavailable")
			return
		}
		writeJsonResponse(w, http.StatusOK, api.ModelsResponse{Models: available})
	}
}

// GetConversationHandler returns the full history of one conversation.
func GetConversationHandler(w http.ResponseWriter, r *http.Request) {
	if validateContext(r.Context()) {
		conversationID := utils.GetChiURLParam(r, "id")

		exists, err := handlerInstance.conversations.Exists(r.Context(), conversationID)
		if err != nil {
			logRH.Error("Conversation lookup failed", "conversationID", conversationID, "err", err)
			WriteErrorResponse(w, http.StatusInternalServerError, conversationID, "Storage error")
			return
		}
		if !exists {
			WriteErrorResponse(w, http.StatusNotFound, conversationID, "Conversation not found")
			return
		}

		turns, err := handlerInstance.conversations.AllTurns(r.Context(), conversationID)
		if err != nil {
			logRH.Error("Conversation read failed", "conversationID", conversationID, "err", err)
			WriteErrorResponse(w, http.StatusInternalServerError, conversationID, "Storage error")
			return
		}
		writeJsonResponse(w, http.StatusOK, adapter.ToConversationResponse(conversationID, turns))
	}
}

// resolveModel picks the default model when none was asked for and rejects
// models outside the allow-list or not currently loaded.
func resolveModel(ctx context.Context, requested string) (string, *api.JobResponse) {
	if requested == "" {
		available, err := handlerInstance.resolver.Available(ctx)
		if err != nil {
			response := adapter.BadRequest("", "Model backend unavailable", http.StatusBadGateway)
			return "", &response
		}
		if len(available) == 0 {
			response := adapter.BadRequest("", "No model is currently available", http.StatusServiceUnavailable)
			return "", &response
		}
		return available[0], nil
	}

	ok, err := handlerInstance.resolver.IsAvailable(ctx, requested)
	if err != nil {
		response := adapter.BadRequest("", "Model backend unavailable", http.StatusBadGateway)
		return "", &response
	}
	if !ok {
		response := adapter.BadRequest(requested, "Model not available", http.StatusBadRequest)
		return "", &response
	}
	return requested, nil
}

func loadHistory(ctx context.Context, conversationID string) []ragModel.ConversationTurn {
	history, err := handlerInstance.conversations.RecentTurns(ctx, conversationID, historyWindowTurns)
	if err != nil {
		//history is an enrichment, a storage hiccup must not fail the chat
		logRH.Warn("Couldn't load conversation history", "conversationID", conversationID, "err", err)
		return nil
	}
	return history
}

// persistTurns runs on its own context: the request context is often already
// cancelled by the time the stream has drained.
func persistTurns(traceId string, conversationID string, question string, answer string) {
	ctx := context.WithValue(context.Background(), config.TRACE_ID_KEY, traceId)
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := handlerInstance.conversations.AppendTurn(ctx, conversationID, ragModel.ConversationTurn{Role: "user", Content: question}); err != nil {
		logRH.Error("Couldn't persist user turn", "conversationID", conversationID, "err", err)
		return
	}
	if err := handlerInstance.conversations.AppendTurn(ctx, conversationID, ragModel.ConversationTurn{Role: "assistant", Content: answer}); err != nil {
		logRH.Error("Couldn't persist assistant turn", "conversationID", conversationID, "err", err)
	}
}
