package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/villadeifiori/gabi/internal/api"
	"github.com/villadeifiori/gabi/internal/domain"
	"github.com/villadeifiori/gabi/internal/openai"
)

// EmbeddingGenerator turns text into an embedding vector.
type EmbeddingGenerator interface {
	GenerateEmbedding(ctx context.Context, text string) ([]float32, openai.Usage, error)
}

// EmbeddingHandler exposes raw embedding generation without any persistence.
type EmbeddingHandler struct {
	client EmbeddingGenerator
	model  string
}

// NewEmbeddingHandler creates the handler. A nil client means no provider is
// configured and requests are refused with a configuration error.
func NewEmbeddingHandler(client EmbeddingGenerator, model string) *EmbeddingHandler {
	if model == "" {
		model = string(openai.DefaultEmbeddingModel)
	}
	return &EmbeddingHandler{client: client, model: model}
}

type generateEmbeddingRequest struct {
	Text     string         `json:"text"`
	Metadata map[string]any `json:"metadata"`
}

type generateEmbeddingResponse struct {
	Embedding []float32    `json:"embedding"`
	Model     string       `json:"model"`
	Usage     openai.Usage `json:"usage"`
}

// Generate handles POST /generate-embeddings
func (h *EmbeddingHandler) Generate(w http.ResponseWriter, r *http.Request) {
	var req generateEmbeddingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	if req.Text == "" {
		api.Error(w, http.StatusBadRequest, "text is required")
		return
	}

	if h.client == nil {
		api.HandleError(w, domain.ErrEmbeddingNotConfigured)
		return
	}

	embedding, usage, err := h.client.GenerateEmbedding(r.Context(), req.Text)
	if err != nil {
		api.HandleError(w, domain.NewDomainErrorWithCause(domain.ErrCodeUpstream, "failed to generate embedding", err))
		return
	}

	api.JSON(w, http.StatusOK, generateEmbeddingResponse{
		Embedding: embedding,
		Model:     h.model,
		Usage:     usage,
	})
}
