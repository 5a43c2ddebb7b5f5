package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/villadeifiori/gabi/internal/api"
	"github.com/villadeifiori/gabi/internal/api/handlers"
	"github.com/villadeifiori/gabi/internal/api/middleware"
)

type RouterConfig struct {
	// ServiceToken guards every endpoint except /health. Empty disables auth.
	ServiceToken     string
	IngestHandler    *handlers.IngestHandler
	SearchHandler    *handlers.SearchHandler
	ChatHandler      *handlers.ChatHandler
	EmbeddingHandler *handlers.EmbeddingHandler
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	const maxBodyBytes int64 = 5 * 1024 * 1024

	r.Use(middleware.RequestID)
	r.Use(middleware.SentryMiddleware)
	r.Use(middleware.AccessLog)
	r.Use(middleware.CORS)
	r.Use(middleware.MaxBodyBytes(maxBodyBytes))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		api.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.BearerAuth(cfg.ServiceToken))

		r.Post("/ingest-process", cfg.IngestHandler.IngestProcess)
		r.Post("/ingest-document", cfg.IngestHandler.IngestDocument)
		r.Get("/ingestion-status", cfg.IngestHandler.ListStatuses)
		r.Get("/ingestion-status/{process_id}/{version_id}", cfg.IngestHandler.GetStatus)

		r.Post("/search-knowledge", cfg.SearchHandler.Search)

		r.Post("/chat-with-rag", cfg.ChatHandler.Chat)
		r.Post("/chat-with-rag/stream", cfg.ChatHandler.ChatStream)

		r.Post("/generate-embeddings", cfg.EmbeddingHandler.Generate)
	})

	return r
}
