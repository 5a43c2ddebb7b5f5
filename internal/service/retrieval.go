package service

import (
	"context"
	"errors"
	"log"
	"strings"

	"github.com/villadeifiori/gabi/internal/domain"
	"github.com/villadeifiori/gabi/internal/openai"
	"github.com/villadeifiori/gabi/internal/telemetry"
)

const (
	// DefaultMatchThreshold is the inclusive similarity cutoff.
	DefaultMatchThreshold = 0.7
	// DefaultMatchCount caps search results when the caller does not.
	DefaultMatchCount = 5
)

// SearchResult is one retrieved chunk with its ranking score.
type SearchResult struct {
	ProcessID   string         `json:"process_id,omitempty"`
	ProcessName string         `json:"process_name,omitempty"`
	ChunkType   domain.ChunkType `json:"chunk_type"`
	Content     string         `json:"content"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	Similarity  float64        `json:"similarity"`
}

// SourceName returns the display name used for citations.
func (r *SearchResult) SourceName() string {
	if r.ProcessName != "" {
		return r.ProcessName
	}
	if r.Metadata != nil {
		if name, ok := r.Metadata["process_name"].(string); ok && name != "" {
			return name
		}
		if title, ok := r.Metadata["document_title"].(string); ok && title != "" {
			return title
		}
	}
	return "Documento"
}

// SearchRepository runs the database-side ranking functions.
type SearchRepository interface {
	SearchKnowledge(ctx context.Context, embedding []float32, threshold float64, count int) ([]*SearchResult, error)
	SearchKnowledgeHybrid(ctx context.Context, embedding []float32, queryText string, threshold float64, count int) ([]*SearchResult, error)
}

// SearchInput describes one retrieval call. A nil MatchThreshold means the
// default cutoff; an explicit zero disables filtering entirely.
type SearchInput struct {
	Query          string
	MatchThreshold *float64
	MatchCount     int
	UseHybrid      bool
}

// SearchOutput carries the ranked results and embedding token usage.
type SearchOutput struct {
	Results []*SearchResult
	Usage   openai.Usage
}

// RetrievalService embeds a query and ranks knowledge-base chunks against
// it, preferring hybrid search and falling back to vector-only search when
// the hybrid function is unavailable.
type RetrievalService struct {
	client EmbeddingClient
	repo   SearchRepository
}

func NewRetrievalService(client EmbeddingClient, repo SearchRepository) *RetrievalService {
	return &RetrievalService{client: client, repo: repo}
}

// Search returns chunks ranked by the database function, in descending
// score order. An empty result set is not an error.
func (s *RetrievalService) Search(ctx context.Context, input SearchInput) (*SearchOutput, error) {
	query := strings.TrimSpace(input.Query)
	if query == "" {
		return nil, domain.ErrEmptyQuery
	}

	threshold := DefaultMatchThreshold
	if input.MatchThreshold != nil {
		threshold = *input.MatchThreshold
	}
	count := input.MatchCount
	if count <= 0 {
		count = DefaultMatchCount
	}

	ctx, span := telemetry.StartSpan(ctx, "retrieval.search", telemetry.SpanAttributes{Operation: "search"})
	defer span.End()

	embedding, usage, err := s.client.GenerateEmbedding(ctx, query)
	if err != nil {
		span.SetError(err)
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeUpstream, "failed to embed query", err)
	}

	results, err := s.search(ctx, embedding, query, threshold, count, input.UseHybrid)
	if err != nil {
		span.SetError(err)
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeInternalError, "knowledge base search failed", err)
	}

	if results == nil {
		results = []*SearchResult{}
	}
	return &SearchOutput{Results: results, Usage: usage}, nil
}

func (s *RetrievalService) search(ctx context.Context, embedding []float32, query string, threshold float64, count int, useHybrid bool) ([]*SearchResult, error) {
	if useHybrid {
		results, err := s.repo.SearchKnowledgeHybrid(ctx, embedding, query, threshold, count)
		if err == nil {
			return results, nil
		}
		// Cancellation aborts the request; anything else downgrades to
		// vector-only search so an unavailable hybrid function never
		// surfaces to the caller.
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		log.Printf("retrieval: hybrid search unavailable, falling back to vector search: %v", err)
	}

	return s.repo.SearchKnowledge(ctx, embedding, threshold, count)
}
