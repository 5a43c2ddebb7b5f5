package service

import (
	"context"
	"log"

	"github.com/villadeifiori/gabi/internal/domain"
	"github.com/villadeifiori/gabi/internal/openai"
	"github.com/villadeifiori/gabi/internal/pagination"
	"github.com/villadeifiori/gabi/internal/telemetry"
)

// EmbeddingClient defines the interface for generating embeddings
type EmbeddingClient interface {
	GenerateEmbedding(ctx context.Context, text string) ([]float32, openai.Usage, error)
}

// ProcessRepository reads process records produced by the CRUD layer.
type ProcessRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Process, error)
	GetVersionByID(ctx context.Context, id string) (*domain.ProcessVersion, error)
}

// DocumentRepository reads documents and writes back their ingestion columns.
type DocumentRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Document, error)
	MarkIngestionProcessing(ctx context.Context, id string) error
	MarkIngestionCompleted(ctx context.Context, id string, chunksCount int) error
	MarkIngestionFailed(ctx context.Context, id string, errMsg string) error
}

// ChunkRepository persists knowledge chunks. Replace operations are atomic:
// prior chunks for the key are gone and new ones visible in one step.
type ChunkRepository interface {
	ReplaceProcessChunks(ctx context.Context, processID, versionID string, chunks []domain.KnowledgeChunk) error
	ReplaceDocumentChunks(ctx context.Context, documentID string, chunks []domain.KnowledgeChunk) error
}

// IngestionStatusRepository tracks per-(process, version) ingestion runs.
type IngestionStatusRepository interface {
	MarkProcessing(ctx context.Context, processID, versionID string) error
	MarkCompleted(ctx context.Context, processID, versionID string, chunksCount int) error
	MarkFailed(ctx context.Context, processID, versionID, errMsg string) error
	GetByKey(ctx context.Context, processID, versionID string) (*domain.IngestionStatus, error)
	ListWithCursor(ctx context.Context, cursor *pagination.Cursor, limit int) (*StatusPageResult, error)
}

// StatusPageResult is one page of ingestion status rows.
type StatusPageResult struct {
	Items      []*domain.IngestionStatus
	NextCursor string
	HasMore    bool
}

// ContentStore fetches extracted document text from object storage.
type ContentStore interface {
	GetText(ctx context.Context, key string) (string, error)
}

// IngestResult reports an ingestion run. FailedChunks lists drafts that
// could not be embedded, so callers can tell a full ingestion from a
// degraded one.
type IngestResult struct {
	ChunksIngested int
	FailedChunks   []domain.ChunkFailure
}

// IngestionService replaces the knowledge-base chunks for a process version
// or document with freshly chunked and embedded content.
type IngestionService struct {
	chunker      *Chunker
	client       EmbeddingClient
	processes    ProcessRepository
	documents    DocumentRepository
	chunks       ChunkRepository
	status       IngestionStatusRepository
	contentStore ContentStore
}

func NewIngestionService(
	chunker *Chunker,
	client EmbeddingClient,
	processes ProcessRepository,
	documents DocumentRepository,
	chunks ChunkRepository,
	status IngestionStatusRepository,
) *IngestionService {
	return &IngestionService{
		chunker:   chunker,
		client:    client,
		processes: processes,
		documents: documents,
		chunks:    chunks,
		status:    status,
	}
}

// WithContentStore configures an optional object store used to load
// document content when the row only carries a storage key.
func (s *IngestionService) WithContentStore(store ContentStore) *IngestionService {
	s.contentStore = store
	return s
}

// IngestProcess re-ingests one approved process version into the knowledge
// base. Per-chunk embedding failures are skipped and reported; anything
// else marks the status row failed.
func (s *IngestionService) IngestProcess(ctx context.Context, processID, versionID string) (*IngestResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "ingestion.process", telemetry.SpanAttributes{
		ProcessID: processID,
		Operation: "ingest_process",
	})
	defer span.End()

	process, err := s.processes.GetByID(ctx, processID)
	if err != nil {
		return nil, err
	}
	version, err := s.processes.GetVersionByID(ctx, versionID)
	if err != nil {
		return nil, err
	}
	if version.ProcessID != processID {
		return nil, domain.ErrProcessVersionNotFound
	}

	if err := s.status.MarkProcessing(ctx, processID, versionID); err != nil {
		span.SetError(err)
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeInternalError, "failed to update ingestion status", err)
	}

	if !process.IsApproved() {
		failErr := domain.NewDomainErrorWithCause(domain.ErrCodeInvalidOperation,
			"process is not approved (status: "+string(process.Status)+")", domain.ErrProcessNotApproved)
		if statusErr := s.status.MarkFailed(ctx, processID, versionID, failErr.Message); statusErr != nil {
			log.Printf("ingestion: failed to mark status failed for process %s: %v", processID, statusErr)
		}
		return nil, failErr
	}

	drafts := s.chunker.ChunkProcess(process, version)
	chunks, failures := s.embedDrafts(ctx, drafts, processID, versionID)

	if err := s.chunks.ReplaceProcessChunks(ctx, processID, versionID, chunks); err != nil {
		span.SetError(err)
		return nil, s.failProcess(ctx, processID, versionID, err)
	}

	if err := s.status.MarkCompleted(ctx, processID, versionID, len(chunks)); err != nil {
		span.SetError(err)
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeInternalError, "failed to update ingestion status", err)
	}

	return &IngestResult{ChunksIngested: len(chunks), FailedChunks: failures}, nil
}

// IngestDocument re-ingests one freeform document. Missing content is not
// an error: the run completes with zero chunks.
func (s *IngestionService) IngestDocument(ctx context.Context, documentID string) (*IngestResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "ingestion.document", telemetry.SpanAttributes{
		DocumentID: documentID,
		Operation:  "ingest_document",
	})
	defer span.End()

	doc, err := s.documents.GetByID(ctx, documentID)
	if err != nil {
		return nil, err
	}

	if err := s.documents.MarkIngestionProcessing(ctx, documentID); err != nil {
		span.SetError(err)
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeInternalError, "failed to update document status", err)
	}

	if doc.Content == "" && doc.StorageKey != "" {
		if s.contentStore == nil {
			return nil, s.failDocument(ctx, documentID, domain.NewDomainErrorWithCause(
				domain.ErrCodeConfiguration, "document content is in object storage but no store is configured", domain.ErrDocumentNoContent))
		}
		content, err := s.contentStore.GetText(ctx, doc.StorageKey)
		if err != nil {
			span.SetError(err)
			return nil, s.failDocument(ctx, documentID, domain.NewDomainErrorWithCause(
				domain.ErrCodeInternalError, "failed to load document content", err))
		}
		doc.Content = content
	}

	drafts := s.chunker.ChunkDocument(doc)
	chunks, failures := s.embedDrafts(ctx, drafts, "", "")

	if err := s.chunks.ReplaceDocumentChunks(ctx, documentID, chunks); err != nil {
		span.SetError(err)
		return nil, s.failDocument(ctx, documentID, domain.NewDomainErrorWithCause(
			domain.ErrCodeInternalError, "failed to store document chunks", err))
	}

	if err := s.documents.MarkIngestionCompleted(ctx, documentID, len(chunks)); err != nil {
		span.SetError(err)
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeInternalError, "failed to update document status", err)
	}

	return &IngestResult{ChunksIngested: len(chunks), FailedChunks: failures}, nil
}

// GetStatus returns the status row for one (process, version) pair.
func (s *IngestionService) GetStatus(ctx context.Context, processID, versionID string) (*domain.IngestionStatus, error) {
	return s.status.GetByKey(ctx, processID, versionID)
}

// ListStatuses returns a page of ingestion status rows, newest first.
func (s *IngestionService) ListStatuses(ctx context.Context, cursor *pagination.Cursor, limit int) (*StatusPageResult, error) {
	return s.status.ListWithCursor(ctx, cursor, limit)
}

// embedDrafts embeds each draft, skipping and recording failures so one bad
// chunk does not abort the run.
func (s *IngestionService) embedDrafts(ctx context.Context, drafts []domain.ChunkDraft, processID, versionID string) ([]domain.KnowledgeChunk, []domain.ChunkFailure) {
	chunks := make([]domain.KnowledgeChunk, 0, len(drafts))
	var failures []domain.ChunkFailure

	for _, draft := range drafts {
		embedding, _, err := s.client.GenerateEmbedding(ctx, draft.Content)
		if err != nil {
			log.Printf("ingestion: failed to embed chunk %d (%s): %v", draft.ChunkIndex, draft.ChunkType, err)
			failures = append(failures, domain.ChunkFailure{
				ChunkIndex: draft.ChunkIndex,
				ChunkType:  draft.ChunkType,
				Error:      err.Error(),
			})
			continue
		}

		chunks = append(chunks, domain.KnowledgeChunk{
			ProcessID:        processID,
			ProcessVersionID: versionID,
			ChunkIndex:       draft.ChunkIndex,
			ChunkType:        draft.ChunkType,
			Content:          draft.Content,
			Metadata:         draft.Metadata,
			Embedding:        embedding,
		})
	}

	return chunks, failures
}

func (s *IngestionService) failProcess(ctx context.Context, processID, versionID string, cause error) error {
	if err := s.status.MarkFailed(ctx, processID, versionID, cause.Error()); err != nil {
		log.Printf("ingestion: failed to mark status failed for process %s: %v", processID, err)
	}
	return domain.NewDomainErrorWithCause(domain.ErrCodeInternalError, "failed to store knowledge chunks", cause)
}

func (s *IngestionService) failDocument(ctx context.Context, documentID string, cause *domain.DomainError) error {
	if err := s.documents.MarkIngestionFailed(ctx, documentID, cause.Message); err != nil {
		log.Printf("ingestion: failed to mark document %s failed: %v", documentID, err)
	}
	return cause
}
