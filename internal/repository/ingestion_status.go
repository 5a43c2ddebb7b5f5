package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/villadeifiori/gabi/internal/domain"
	"github.com/villadeifiori/gabi/internal/pagination"
	"github.com/villadeifiori/gabi/internal/service"
)

// IngestionStatusRepository tracks one status row per
// (process_id, process_version_id) pair.
type IngestionStatusRepository struct {
	db dbtx
}

func NewIngestionStatusRepository(pool *pgxpool.Pool) *IngestionStatusRepository {
	return &IngestionStatusRepository{db: pool}
}

func NewIngestionStatusRepositoryWithTx(tx pgx.Tx) *IngestionStatusRepository {
	return &IngestionStatusRepository{db: tx}
}

// MarkProcessing upserts the status row to processing. Rows created by an
// external trigger (pending) and direct API calls (no row yet) both land
// on the same key.
func (r *IngestionStatusRepository) MarkProcessing(ctx context.Context, processID, versionID string) error {
	now := time.Now().UTC()
	_, err := r.db.Exec(ctx,
		`INSERT INTO knowledge_base_ingestion_status
			(id, process_id, process_version_id, status, chunks_count, started_at, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, 0, $5, $5, $5)
		 ON CONFLICT (process_id, process_version_id) DO UPDATE
		 SET status = EXCLUDED.status,
		     chunks_count = 0,
		     started_at = EXCLUDED.started_at,
		     completed_at = NULL,
		     error_message = NULL,
		     updated_at = EXCLUDED.updated_at`,
		uuid.NewString(), processID, versionID, domain.IngestionStateProcessing, now,
	)
	return err
}

func (r *IngestionStatusRepository) MarkCompleted(ctx context.Context, processID, versionID string, chunksCount int) error {
	now := time.Now().UTC()
	cmdTag, err := r.db.Exec(ctx,
		`UPDATE knowledge_base_ingestion_status
		 SET status = $1, chunks_count = $2, completed_at = $3, error_message = NULL, updated_at = $3
		 WHERE process_id = $4 AND process_version_id = $5`,
		domain.IngestionStateCompleted, chunksCount, now, processID, versionID,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrIngestionStatusNotFound
	}
	return nil
}

func (r *IngestionStatusRepository) MarkFailed(ctx context.Context, processID, versionID, errMsg string) error {
	now := time.Now().UTC()
	cmdTag, err := r.db.Exec(ctx,
		`UPDATE knowledge_base_ingestion_status
		 SET status = $1, error_message = $2, completed_at = $3, updated_at = $3
		 WHERE process_id = $4 AND process_version_id = $5`,
		domain.IngestionStateFailed, nullableString(errMsg), now, processID, versionID,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrIngestionStatusNotFound
	}
	return nil
}

func (r *IngestionStatusRepository) GetByKey(ctx context.Context, processID, versionID string) (*domain.IngestionStatus, error) {
	var s domain.IngestionStatus
	var errMsg pgtype.Text
	err := r.db.QueryRow(ctx,
		`SELECT id, process_id, process_version_id, status, chunks_count,
		        started_at, completed_at, error_message, created_at, updated_at
		 FROM knowledge_base_ingestion_status
		 WHERE process_id = $1 AND process_version_id = $2`,
		processID, versionID,
	).Scan(&s.ID, &s.ProcessID, &s.ProcessVersionID, &s.Status, &s.ChunksCount,
		&s.StartedAt, &s.CompletedAt, &errMsg, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrIngestionStatusNotFound
		}
		return nil, err
	}
	if errMsg.Valid {
		s.ErrorMessage = errMsg.String
	}
	return &s, nil
}

// ListWithCursor pages status rows newest first.
func (r *IngestionStatusRepository) ListWithCursor(ctx context.Context, cursor *pagination.Cursor, limit int) (*service.StatusPageResult, error) {
	if limit <= 0 {
		limit = 20
	}

	var rows pgx.Rows
	var err error

	if cursor != nil {
		rows, err = r.db.Query(ctx,
			`SELECT id, process_id, process_version_id, status, chunks_count,
			        started_at, completed_at, error_message, created_at, updated_at
			 FROM knowledge_base_ingestion_status
			 WHERE (updated_at, id) < ($1, $2)
			 ORDER BY updated_at DESC, id DESC
			 LIMIT $3`,
			cursor.Timestamp, cursor.LastID, limit+1,
		)
	} else {
		rows, err = r.db.Query(ctx,
			`SELECT id, process_id, process_version_id, status, chunks_count,
			        started_at, completed_at, error_message, created_at, updated_at
			 FROM knowledge_base_ingestion_status
			 ORDER BY updated_at DESC, id DESC
			 LIMIT $1`,
			limit+1,
		)
	}

	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items, err := scanStatusRows(rows)
	if err != nil {
		return nil, err
	}

	hasMore := len(items) > limit
	if hasMore {
		items = items[:limit]
	}

	var nextCursor string
	if hasMore && len(items) > 0 {
		lastItem := items[len(items)-1]
		nextCursor = pagination.EncodeCursor(lastItem.ID, lastItem.UpdatedAt)
	}

	return &service.StatusPageResult{
		Items:      items,
		NextCursor: nextCursor,
		HasMore:    hasMore,
	}, nil
}

// ClaimPending flips up to limit pending rows to processing and returns
// them, skipping rows locked by other workers.
func (r *IngestionStatusRepository) ClaimPending(ctx context.Context, limit int) ([]*domain.IngestionStatus, error) {
	if limit <= 0 {
		limit = 10
	}

	now := time.Now().UTC()
	rows, err := r.db.Query(ctx,
		`WITH cte AS (
			 SELECT id
			 FROM knowledge_base_ingestion_status
			 WHERE status = $1
			 ORDER BY created_at ASC
			 FOR UPDATE SKIP LOCKED
			 LIMIT $2
		 )
		 UPDATE knowledge_base_ingestion_status s
		 SET status = $3,
		     started_at = $4,
		     error_message = NULL,
		     updated_at = $4
		 FROM cte
		 WHERE s.id = cte.id
		 RETURNING s.id, s.process_id, s.process_version_id, s.status, s.chunks_count,
		           s.started_at, s.completed_at, s.error_message, s.created_at, s.updated_at`,
		domain.IngestionStatePending, limit, domain.IngestionStateProcessing, now,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanStatusRows(rows)
}

func scanStatusRows(rows pgx.Rows) ([]*domain.IngestionStatus, error) {
	var results []*domain.IngestionStatus
	for rows.Next() {
		var s domain.IngestionStatus
		var errMsg pgtype.Text
		if err := rows.Scan(&s.ID, &s.ProcessID, &s.ProcessVersionID, &s.Status, &s.ChunksCount,
			&s.StartedAt, &s.CompletedAt, &errMsg, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, err
		}
		if errMsg.Valid {
			s.ErrorMessage = errMsg.String
		}
		results = append(results, &s)
	}
	return results, rows.Err()
}
