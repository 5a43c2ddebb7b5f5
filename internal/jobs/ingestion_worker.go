package jobs

import (
	"context"
	"fmt"
	"log"

	"github.com/villadeifiori/gabi/internal/domain"
	"github.com/villadeifiori/gabi/internal/service"
)

const claimBatchSize = 10

// StatusRepository claims pending ingestion runs and records terminal
// failures the ingestion service could not reach.
type StatusRepository interface {
	ClaimPending(ctx context.Context, limit int) ([]*domain.IngestionStatus, error)
	MarkFailed(ctx context.Context, processID, versionID, errMsg string) error
}

// Ingester runs one process ingestion end to end.
type Ingester interface {
	IngestProcess(ctx context.Context, processID, versionID string) (*service.IngestResult, error)
}

// IngestionWorker picks up pending ingestion status rows written by the
// approval trigger and runs them. Failed rows are left failed; re-trigger
// is external.
type IngestionWorker struct {
	repo     StatusRepository
	ingester Ingester
}

// NewIngestionWorker creates a new IngestionWorker instance
func NewIngestionWorker(repo StatusRepository, ingester Ingester) *IngestionWorker {
	return &IngestionWorker{
		repo:     repo,
		ingester: ingester,
	}
}

// ProcessJobs implements the JobProcessor interface
func (w *IngestionWorker) ProcessJobs(ctx context.Context) error {
	claimed, err := w.repo.ClaimPending(ctx, claimBatchSize)
	if err != nil {
		return fmt.Errorf("failed to claim pending ingestion runs: %w", err)
	}

	if len(claimed) == 0 {
		return nil
	}

	log.Printf("Processing %d pending ingestion runs", len(claimed))

	for _, run := range claimed {
		if err := w.processRun(ctx, run); err != nil {
			log.Printf("Error processing ingestion run %s: %v", run.ID, err)
		}
	}

	return nil
}

func (w *IngestionWorker) processRun(ctx context.Context, run *domain.IngestionStatus) error {
	log.Printf("Ingesting process %s version %s", run.ProcessID, run.ProcessVersionID)

	result, err := w.ingester.IngestProcess(ctx, run.ProcessID, run.ProcessVersionID)
	if err != nil {
		// The service marks its own failures; this covers lookups that fail
		// before the status row is touched, so the claim is not left
		// processing forever.
		if statusErr := w.repo.MarkFailed(ctx, run.ProcessID, run.ProcessVersionID, err.Error()); statusErr != nil {
			log.Printf("Failed to mark run %s failed: %v", run.ID, statusErr)
		}
		return err
	}

	if len(result.FailedChunks) > 0 {
		log.Printf("Ingestion run %s completed with %d chunks, %d failed",
			run.ID, result.ChunksIngested, len(result.FailedChunks))
	} else {
		log.Printf("Ingestion run %s completed with %d chunks", run.ID, result.ChunksIngested)
	}
	return nil
}
