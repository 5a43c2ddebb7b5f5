//go:build integration

package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/villadeifiori/gabi/internal/domain"
	"github.com/villadeifiori/gabi/internal/pagination"
	"github.com/villadeifiori/gabi/internal/testutil"
)

func TestIngestionStatusRepository_Lifecycle(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewIngestionStatusRepository(pool)
	processID := insertProcess(ctx, t, pool, "Mudanças", domain.ProcessStatusApproved)
	versionID := insertVersion(ctx, t, pool, processID, `{}`)

	require.NoError(t, repo.MarkProcessing(ctx, processID, versionID))

	status, err := repo.GetByKey(ctx, processID, versionID)
	require.NoError(t, err)
	assert.Equal(t, domain.IngestionStateProcessing, status.Status)
	assert.NotNil(t, status.StartedAt)
	assert.Nil(t, status.CompletedAt)

	require.NoError(t, repo.MarkCompleted(ctx, processID, versionID, 4))

	status, err = repo.GetByKey(ctx, processID, versionID)
	require.NoError(t, err)
	assert.Equal(t, domain.IngestionStateCompleted, status.Status)
	assert.Equal(t, 4, status.ChunksCount)
	assert.NotNil(t, status.CompletedAt)
	assert.Empty(t, status.ErrorMessage)
}

func TestIngestionStatusRepository_MarkProcessingUpserts(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewIngestionStatusRepository(pool)
	processID := insertProcess(ctx, t, pool, "Obras", domain.ProcessStatusApproved)
	versionID := insertVersion(ctx, t, pool, processID, `{}`)

	require.NoError(t, repo.MarkProcessing(ctx, processID, versionID))
	require.NoError(t, repo.MarkFailed(ctx, processID, versionID, "boom"))

	// Re-trigger: same key flips back to processing and clears the error.
	require.NoError(t, repo.MarkProcessing(ctx, processID, versionID))

	status, err := repo.GetByKey(ctx, processID, versionID)
	require.NoError(t, err)
	assert.Equal(t, domain.IngestionStateProcessing, status.Status)
	assert.Empty(t, status.ErrorMessage)
	assert.Nil(t, status.CompletedAt)

	var count int
	require.NoError(t, pool.QueryRow(ctx,
		`SELECT count(*) FROM knowledge_base_ingestion_status WHERE process_id = $1`, processID,
	).Scan(&count))
	assert.Equal(t, 1, count)
}

func TestIngestionStatusRepository_MarkFailed(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewIngestionStatusRepository(pool)
	processID := insertProcess(ctx, t, pool, "Obras", domain.ProcessStatusDraft)
	versionID := insertVersion(ctx, t, pool, processID, `{}`)

	require.NoError(t, repo.MarkProcessing(ctx, processID, versionID))
	require.NoError(t, repo.MarkFailed(ctx, processID, versionID, "process is not approved"))

	status, err := repo.GetByKey(ctx, processID, versionID)
	require.NoError(t, err)
	assert.Equal(t, domain.IngestionStateFailed, status.Status)
	assert.Equal(t, "process is not approved", status.ErrorMessage)
}

func TestIngestionStatusRepository_GetByKey_NotFound(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewIngestionStatusRepository(pool)

	_, err := repo.GetByKey(ctx, "00000000-0000-0000-0000-000000000001", "00000000-0000-0000-0000-000000000002")
	assert.ErrorIs(t, err, domain.ErrIngestionStatusNotFound)
}

func TestIngestionStatusRepository_ClaimPending(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewIngestionStatusRepository(pool)

	processID := insertProcess(ctx, t, pool, "Mudanças", domain.ProcessStatusApproved)
	pendingVersion := insertVersion(ctx, t, pool, processID, `{}`)
	failedVersion := insertVersionN(ctx, t, pool, processID, 2)

	_, err := pool.Exec(ctx,
		`INSERT INTO knowledge_base_ingestion_status (process_id, process_version_id, status)
		 VALUES ($1, $2, 'pending'), ($1, $3, 'failed')`,
		processID, pendingVersion, failedVersion,
	)
	require.NoError(t, err)

	claimed, err := repo.ClaimPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, claimed, 1)
	assert.Equal(t, pendingVersion, claimed[0].ProcessVersionID)
	assert.Equal(t, domain.IngestionStateProcessing, claimed[0].Status)

	// Failed rows are never re-claimed automatically.
	claimed, err = repo.ClaimPending(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, claimed)
}

func TestIngestionStatusRepository_ListWithCursor(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewIngestionStatusRepository(pool)

	processID := insertProcess(ctx, t, pool, "Mudanças", domain.ProcessStatusApproved)
	for i := 1; i <= 5; i++ {
		versionID := insertVersionN(ctx, t, pool, processID, i)
		require.NoError(t, repo.MarkProcessing(ctx, processID, versionID))
	}

	page, err := repo.ListWithCursor(ctx, nil, 3)
	require.NoError(t, err)
	assert.Len(t, page.Items, 3)
	assert.True(t, page.HasMore)
	require.NotEmpty(t, page.NextCursor)

	cursor, err := pagination.DecodeCursor(page.NextCursor)
	require.NoError(t, err)

	rest, err := repo.ListWithCursor(ctx, cursor, 3)
	require.NoError(t, err)
	assert.Len(t, rest.Items, 2)
	assert.False(t, rest.HasMore)
	assert.Empty(t, rest.NextCursor)

	seen := map[string]bool{}
	for _, item := range append(page.Items, rest.Items...) {
		assert.False(t, seen[item.ID], "duplicate row %s across pages", item.ID)
		seen[item.ID] = true
	}
}
