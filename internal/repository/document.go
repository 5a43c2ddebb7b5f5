package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/villadeifiori/gabi/internal/domain"
)

// DocumentRepository reads documents and writes back their ingestion
// columns.
type DocumentRepository struct {
	db dbtx
}

func NewDocumentRepository(pool *pgxpool.Pool) *DocumentRepository {
	return &DocumentRepository{db: pool}
}

func NewDocumentRepositoryWithTx(tx pgx.Tx) *DocumentRepository {
	return &DocumentRepository{db: tx}
}

func (r *DocumentRepository) GetByID(ctx context.Context, id string) (*domain.Document, error) {
	var d domain.Document
	var content, category, documentType, storageKey, ingestionError pgtype.Text
	err := r.db.QueryRow(ctx,
		`SELECT id, title, content, category, document_type, storage_key,
		        ingestion_status, chunks_count, ingested_at, ingestion_error,
		        created_at, updated_at
		 FROM documents WHERE id = $1`,
		id,
	).Scan(&d.ID, &d.Title, &content, &category, &documentType, &storageKey,
		&d.IngestionStatus, &d.ChunksCount, &d.IngestedAt, &ingestionError,
		&d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrDocumentNotFound
		}
		return nil, err
	}
	if content.Valid {
		d.Content = content.String
	}
	if category.Valid {
		d.Category = category.String
	}
	if documentType.Valid {
		d.DocumentType = documentType.String
	}
	if storageKey.Valid {
		d.StorageKey = storageKey.String
	}
	if ingestionError.Valid {
		d.IngestionError = ingestionError.String
	}
	return &d, nil
}

func (r *DocumentRepository) MarkIngestionProcessing(ctx context.Context, id string) error {
	cmdTag, err := r.db.Exec(ctx,
		`UPDATE documents
		 SET ingestion_status = $1, ingestion_error = NULL, updated_at = $2
		 WHERE id = $3`,
		domain.IngestionStateProcessing, time.Now().UTC(), id,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrDocumentNotFound
	}
	return nil
}

func (r *DocumentRepository) MarkIngestionCompleted(ctx context.Context, id string, chunksCount int) error {
	now := time.Now().UTC()
	cmdTag, err := r.db.Exec(ctx,
		`UPDATE documents
		 SET ingestion_status = $1, chunks_count = $2, ingested_at = $3,
		     ingestion_error = NULL, updated_at = $3
		 WHERE id = $4`,
		domain.IngestionStateCompleted, chunksCount, now, id,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrDocumentNotFound
	}
	return nil
}

func (r *DocumentRepository) MarkIngestionFailed(ctx context.Context, id string, errMsg string) error {
	cmdTag, err := r.db.Exec(ctx,
		`UPDATE documents
		 SET ingestion_status = $1, ingestion_error = $2, updated_at = $3
		 WHERE id = $4`,
		domain.IngestionStateFailed, nullableString(errMsg), time.Now().UTC(), id,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrDocumentNotFound
	}
	return nil
}
