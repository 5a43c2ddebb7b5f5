package domain

import "time"

// Document is a user-uploaded freeform text, owned by the document
// management subsystem. The pipeline reads it and writes back the
// ingestion_status columns.
type Document struct {
	ID           string
	Title        string
	Content      string
	Category     string
	DocumentType string
	// StorageKey points at the extracted text in object storage when the
	// content column is empty.
	StorageKey      string
	IngestionStatus IngestionState
	ChunksCount     int
	IngestedAt      *time.Time
	IngestionError  string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// IngestionState is the lifecycle of an ingestion run, shared between
// document rows and process ingestion status rows.
type IngestionState string

const (
	IngestionStatePending    IngestionState = "pending"
	IngestionStateProcessing IngestionState = "processing"
	IngestionStateCompleted  IngestionState = "completed"
	IngestionStateFailed     IngestionState = "failed"
)

// IsValidIngestionState checks whether the given state is a known value.
func IsValidIngestionState(s IngestionState) bool {
	switch s {
	case IngestionStatePending, IngestionStateProcessing, IngestionStateCompleted, IngestionStateFailed:
		return true
	}
	return false
}

// IsTerminal reports whether the state is completed or failed.
func (s IngestionState) IsTerminal() bool {
	return s == IngestionStateCompleted || s == IngestionStateFailed
}
