//go:build integration

package repository

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"github.com/villadeifiori/gabi/internal/domain"
)

func insertProcess(ctx context.Context, t *testing.T, pool *pgxpool.Pool, name string, status domain.ProcessStatus) string {
	t.Helper()
	id := uuid.NewString()
	_, err := pool.Exec(ctx,
		`INSERT INTO processes (id, name, category, document_type, status)
		 VALUES ($1, $2, 'Manutenção', 'processo', $3)`,
		id, name, status,
	)
	require.NoError(t, err)
	return id
}

func insertVersion(ctx context.Context, t *testing.T, pool *pgxpool.Pool, processID, content string) string {
	t.Helper()
	id := uuid.NewString()
	_, err := pool.Exec(ctx,
		`INSERT INTO process_versions (id, process_id, version, content)
		 VALUES ($1, $2, 1, $3::jsonb)`,
		id, processID, content,
	)
	require.NoError(t, err)
	return id
}

func insertVersionN(ctx context.Context, t *testing.T, pool *pgxpool.Pool, processID string, version int) string {
	t.Helper()
	id := uuid.NewString()
	_, err := pool.Exec(ctx,
		`INSERT INTO process_versions (id, process_id, version, content)
		 VALUES ($1, $2, $3, '{}'::jsonb)`,
		id, processID, version,
	)
	require.NoError(t, err)
	return id
}

func insertDocument(ctx context.Context, t *testing.T, pool *pgxpool.Pool, title, content string) string {
	t.Helper()
	id := uuid.NewString()
	_, err := pool.Exec(ctx,
		`INSERT INTO documents (id, title, content) VALUES ($1, $2, $3)`,
		id, title, content,
	)
	require.NoError(t, err)
	return id
}

// unitEmbedding returns a 1536-dim unit vector with a 1 at the given axis.
func unitEmbedding(axis int) []float32 {
	e := make([]float32, 1536)
	e[axis] = 1
	return e
}
