package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/villadeifiori/gabi/internal/api"
	"github.com/villadeifiori/gabi/internal/domain"
	"github.com/villadeifiori/gabi/internal/service"
)

// ChatRunner answers chat turns, optionally streaming the reply.
type ChatRunner interface {
	Chat(ctx context.Context, input service.ChatInput) (*service.ChatOutput, error)
	ChatStream(ctx context.Context, input service.ChatInput, emit func(delta string) error) (*service.ChatOutput, error)
}

// ChatHandler handles RAG chat endpoints.
type ChatHandler struct {
	service ChatRunner
}

func NewChatHandler(service ChatRunner) *ChatHandler {
	return &ChatHandler{service: service}
}

type chatRequest struct {
	Message        string   `json:"message"`
	ConversationID string   `json:"conversation_id"`
	UserID         string   `json:"user_id"`
	MatchThreshold *float64 `json:"match_threshold"`
	MatchCount     int      `json:"match_count"`
	UseHybrid      *bool    `json:"use_hybrid"`
}

func (r *chatRequest) toInput() service.ChatInput {
	// Hybrid search is on unless the caller turns it off.
	useHybrid := true
	if r.UseHybrid != nil {
		useHybrid = *r.UseHybrid
	}
	return service.ChatInput{
		Message:        r.Message,
		ConversationID: r.ConversationID,
		UserID:         r.UserID,
		MatchThreshold: r.MatchThreshold,
		MatchCount:     r.MatchCount,
		UseHybrid:      useHybrid,
	}
}

type chatResponse struct {
	Success     bool                `json:"success"`
	Message     string              `json:"message"`
	Sources     []domain.ChatSource `json:"sources"`
	ContextUsed bool                `json:"context_used"`
	Usage       service.ChatUsage   `json:"usage"`
}

// Chat handles POST /chat-with-rag
func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	output, err := h.service.Chat(r.Context(), req.toInput())
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.JSON(w, http.StatusOK, chatResponse{
		Success:     true,
		Message:     output.Message,
		Sources:     chatSources(output),
		ContextUsed: output.ContextUsed,
		Usage:       output.Usage,
	})
}

type chatStreamDelta struct {
	Delta string `json:"delta"`
}

type chatStreamDone struct {
	Done        bool                `json:"done"`
	Sources     []domain.ChatSource `json:"sources"`
	ContextUsed bool                `json:"context_used"`
	Usage       service.ChatUsage   `json:"usage"`
}

type chatStreamError struct {
	Error string `json:"error"`
}

// ChatStream handles POST /chat-with-rag/stream, emitting reply deltas as
// server-sent events followed by a final done event with the sources.
func (h *ChatHandler) ChatStream(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		api.Error(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	// Headers go out with the first delta: validation and retrieval errors
	// before that point still get a regular JSON error response.
	started := false
	emit := func(delta string) error {
		if !started {
			startEventStream(w)
			started = true
		}
		if err := writeEvent(w, chatStreamDelta{Delta: delta}); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	}

	output, err := h.service.ChatStream(r.Context(), req.toInput(), emit)
	if err != nil {
		if !started {
			api.HandleError(w, err)
			return
		}
		writeEvent(w, chatStreamError{Error: err.Error()})
		flusher.Flush()
		return
	}

	if !started {
		startEventStream(w)
	}
	if err := writeEvent(w, chatStreamDone{
		Done:        true,
		Sources:     chatSources(output),
		ContextUsed: output.ContextUsed,
		Usage:       output.Usage,
	}); err == nil {
		flusher.Flush()
	}
}

func startEventStream(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
}

func writeEvent(w http.ResponseWriter, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	if _, err := w.Write([]byte("data: ")); err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return err
	}
	_, err = w.Write([]byte("\n\n"))
	return err
}

func chatSources(output *service.ChatOutput) []domain.ChatSource {
	if output.Sources == nil {
		return []domain.ChatSource{}
	}
	return output.Sources
}
