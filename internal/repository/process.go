package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/villadeifiori/gabi/internal/domain"
)

// ProcessRepository reads process records written by the management
// subsystem. The pipeline never mutates them.
type ProcessRepository struct {
	db dbtx
}

func NewProcessRepository(pool *pgxpool.Pool) *ProcessRepository {
	return &ProcessRepository{db: pool}
}

func NewProcessRepositoryWithTx(tx pgx.Tx) *ProcessRepository {
	return &ProcessRepository{db: tx}
}

func (r *ProcessRepository) GetByID(ctx context.Context, id string) (*domain.Process, error) {
	var p domain.Process
	var category, documentType *string
	err := r.db.QueryRow(ctx,
		`SELECT id, name, category, document_type, status, created_at, updated_at
		 FROM processes WHERE id = $1`,
		id,
	).Scan(&p.ID, &p.Name, &category, &documentType, &p.Status, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrProcessNotFound
		}
		return nil, err
	}
	if category != nil {
		p.Category = *category
	}
	if documentType != nil {
		p.DocumentType = *documentType
	}
	return &p, nil
}

func (r *ProcessRepository) GetVersionByID(ctx context.Context, id string) (*domain.ProcessVersion, error) {
	var v domain.ProcessVersion
	var raw []byte
	err := r.db.QueryRow(ctx,
		`SELECT id, process_id, version, content, created_at
		 FROM process_versions WHERE id = $1`,
		id,
	).Scan(&v.ID, &v.ProcessID, &v.Version, &raw, &v.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrProcessVersionNotFound
		}
		return nil, err
	}

	v.RawContent = raw
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &v.Content); err != nil {
			return nil, fmt.Errorf("failed to decode content for version %s: %w", id, err)
		}
	}
	return &v, nil
}
