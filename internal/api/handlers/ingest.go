package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/villadeifiori/gabi/internal/api"
	"github.com/villadeifiori/gabi/internal/domain"
	"github.com/villadeifiori/gabi/internal/pagination"
	"github.com/villadeifiori/gabi/internal/service"
)

const (
	defaultStatusPageLimit = 20
	maxStatusPageLimit     = 100
)

// IngestionRunner triggers ingestion runs and reads their status.
type IngestionRunner interface {
	IngestProcess(ctx context.Context, processID, versionID string) (*service.IngestResult, error)
	IngestDocument(ctx context.Context, documentID string) (*service.IngestResult, error)
	GetStatus(ctx context.Context, processID, versionID string) (*domain.IngestionStatus, error)
	ListStatuses(ctx context.Context, cursor *pagination.Cursor, limit int) (*service.StatusPageResult, error)
}

// IngestHandler handles ingestion trigger and status endpoints.
type IngestHandler struct {
	service IngestionRunner
}

func NewIngestHandler(service IngestionRunner) *IngestHandler {
	return &IngestHandler{service: service}
}

type ingestProcessRequest struct {
	ProcessID        string `json:"process_id"`
	ProcessVersionID string `json:"process_version_id"`
}

type ingestProcessResponse struct {
	Success          bool                  `json:"success"`
	ProcessID        string                `json:"process_id"`
	ProcessVersionID string                `json:"process_version_id"`
	ChunksIngested   int                   `json:"chunks_ingested"`
	FailedChunks     []domain.ChunkFailure `json:"failed_chunks"`
}

// IngestProcess handles POST /ingest-process
func (h *IngestHandler) IngestProcess(w http.ResponseWriter, r *http.Request) {
	var req ingestProcessRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	if req.ProcessID == "" {
		api.Error(w, http.StatusBadRequest, "process_id is required")
		return
	}
	if req.ProcessVersionID == "" {
		api.Error(w, http.StatusBadRequest, "process_version_id is required")
		return
	}

	result, err := h.service.IngestProcess(r.Context(), req.ProcessID, req.ProcessVersionID)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.JSON(w, http.StatusOK, ingestProcessResponse{
		Success:          true,
		ProcessID:        req.ProcessID,
		ProcessVersionID: req.ProcessVersionID,
		ChunksIngested:   result.ChunksIngested,
		FailedChunks:     failedChunks(result),
	})
}

type ingestDocumentRequest struct {
	DocumentID string `json:"document_id"`
}

type ingestDocumentResponse struct {
	Success      bool                  `json:"success"`
	DocumentID   string                `json:"document_id"`
	ChunksCount  int                   `json:"chunks_count"`
	FailedChunks []domain.ChunkFailure `json:"failed_chunks"`
}

// IngestDocument handles POST /ingest-document
func (h *IngestHandler) IngestDocument(w http.ResponseWriter, r *http.Request) {
	var req ingestDocumentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	if req.DocumentID == "" {
		api.Error(w, http.StatusBadRequest, "document_id is required")
		return
	}

	result, err := h.service.IngestDocument(r.Context(), req.DocumentID)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.JSON(w, http.StatusOK, ingestDocumentResponse{
		Success:      true,
		DocumentID:   req.DocumentID,
		ChunksCount:  result.ChunksIngested,
		FailedChunks: failedChunks(result),
	})
}

type ingestionStatusResponse struct {
	ID               string     `json:"id"`
	ProcessID        string     `json:"process_id"`
	ProcessVersionID string     `json:"process_version_id"`
	Status           string     `json:"status"`
	ChunksCount      int        `json:"chunks_count"`
	StartedAt        *time.Time `json:"started_at,omitempty"`
	CompletedAt      *time.Time `json:"completed_at,omitempty"`
	ErrorMessage     string     `json:"error_message,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// GetStatus handles GET /ingestion-status/{process_id}/{version_id}
func (h *IngestHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	processID := chi.URLParam(r, "process_id")
	versionID := chi.URLParam(r, "version_id")

	status, err := h.service.GetStatus(r.Context(), processID, versionID)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.JSON(w, http.StatusOK, toStatusResponse(status))
}

type statusListResponse struct {
	Items      []ingestionStatusResponse `json:"items"`
	NextCursor string                    `json:"next_cursor,omitempty"`
	HasMore    bool                      `json:"has_more"`
}

// ListStatuses handles GET /ingestion-status
func (h *IngestHandler) ListStatuses(w http.ResponseWriter, r *http.Request) {
	cursor, err := pagination.DecodeCursor(r.URL.Query().Get("cursor"))
	if err != nil {
		api.Error(w, http.StatusBadRequest, "invalid cursor")
		return
	}

	limit := defaultStatusPageLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			api.Error(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = parsed
	}
	if limit > maxStatusPageLimit {
		limit = maxStatusPageLimit
	}

	page, err := h.service.ListStatuses(r.Context(), cursor, limit)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	items := make([]ingestionStatusResponse, 0, len(page.Items))
	for _, status := range page.Items {
		items = append(items, toStatusResponse(status))
	}

	api.JSON(w, http.StatusOK, statusListResponse{
		Items:      items,
		NextCursor: page.NextCursor,
		HasMore:    page.HasMore,
	})
}

func toStatusResponse(status *domain.IngestionStatus) ingestionStatusResponse {
	return ingestionStatusResponse{
		ID:               status.ID,
		ProcessID:        status.ProcessID,
		ProcessVersionID: status.ProcessVersionID,
		Status:           string(status.Status),
		ChunksCount:      status.ChunksCount,
		StartedAt:        status.StartedAt,
		CompletedAt:      status.CompletedAt,
		ErrorMessage:     status.ErrorMessage,
		CreatedAt:        status.CreatedAt,
		UpdatedAt:        status.UpdatedAt,
	}
}

// failedChunks normalizes nil failure slices so responses always carry an
// array.
func failedChunks(result *service.IngestResult) []domain.ChunkFailure {
	if result.FailedChunks == nil {
		return []domain.ChunkFailure{}
	}
	return result.FailedChunks
}
