package domain

import "time"

// IngestionStatus is one status row per (process_id, process_version_id).
// State machine: pending → processing → {completed|failed}. A failed run is
// only re-attempted when re-triggered externally.
type IngestionStatus struct {
	ID               string
	ProcessID        string
	ProcessVersionID string
	Status           IngestionState
	ChunksCount      int
	StartedAt        *time.Time
	CompletedAt      *time.Time
	ErrorMessage     string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}
