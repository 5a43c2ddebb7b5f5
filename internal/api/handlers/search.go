package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/villadeifiori/gabi/internal/api"
	"github.com/villadeifiori/gabi/internal/openai"
	"github.com/villadeifiori/gabi/internal/service"
)

// searchDefaultMatchCount caps search results when the caller does not.
// The search endpoint returns more candidates than a chat turn consumes.
const searchDefaultMatchCount = 10

// Searcher ranks knowledge-base chunks against a query.
type Searcher interface {
	Search(ctx context.Context, input service.SearchInput) (*service.SearchOutput, error)
}

// SearchHandler handles knowledge-base search endpoints.
type SearchHandler struct {
	service Searcher
}

func NewSearchHandler(service Searcher) *SearchHandler {
	return &SearchHandler{service: service}
}

type searchRequest struct {
	Query string `json:"query"`
	// Pointer so an explicit zero (no similarity cutoff) is distinguishable
	// from an absent field.
	MatchThreshold *float64 `json:"match_threshold"`
	MatchCount     int      `json:"match_count"`
	UseHybrid      bool     `json:"use_hybrid"`
}

type searchResponse struct {
	Success bool                    `json:"success"`
	Query   string                  `json:"query"`
	Results []*service.SearchResult `json:"results"`
	Count   int                     `json:"count"`
	Usage   openai.Usage            `json:"usage"`
}

// Search handles POST /search-knowledge
func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	count := req.MatchCount
	if count <= 0 {
		count = searchDefaultMatchCount
	}

	output, err := h.service.Search(r.Context(), service.SearchInput{
		Query:          req.Query,
		MatchThreshold: req.MatchThreshold,
		MatchCount:     count,
		UseHybrid:      req.UseHybrid,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.JSON(w, http.StatusOK, searchResponse{
		Success: true,
		Query:   req.Query,
		Results: output.Results,
		Count:   len(output.Results),
		Usage:   output.Usage,
	})
}
