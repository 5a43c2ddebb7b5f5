package domain

import "time"

// ChunkType labels which logical field of a process a chunk came from.
// Document chunks always use ChunkTypeContent.
type ChunkType string

const (
	ChunkTypeName        ChunkType = "name"
	ChunkTypeDescription ChunkType = "description"
	ChunkTypeWorkflow    ChunkType = "workflow"
	ChunkTypeEntities    ChunkType = "entities"
	ChunkTypeVariables   ChunkType = "variables"
	ChunkTypeRACI        ChunkType = "raci"
	ChunkTypeContent     ChunkType = "content"
)

// IsValidChunkType checks whether the given type is a known value.
func IsValidChunkType(t ChunkType) bool {
	switch t {
	case ChunkTypeName, ChunkTypeDescription, ChunkTypeWorkflow, ChunkTypeEntities,
		ChunkTypeVariables, ChunkTypeRACI, ChunkTypeContent:
		return true
	}
	return false
}

// ChunkDraft is a chunk produced by the chunker before embedding.
type ChunkDraft struct {
	ChunkIndex int
	ChunkType  ChunkType
	Content    string
	Metadata   map[string]any
}

// KnowledgeChunk is a stored, embedded chunk in the knowledge base.
// Process chunks carry ProcessID/ProcessVersionID; document chunks leave
// both empty and identify their document through metadata.
type KnowledgeChunk struct {
	ID               string
	ProcessID        string
	ProcessVersionID string
	ChunkIndex       int
	ChunkType        ChunkType
	Content          string
	Metadata         map[string]any
	Embedding        []float32
	CreatedAt        time.Time
}

// ChunkFailure describes a draft chunk that could not be embedded.
type ChunkFailure struct {
	ChunkIndex int       `json:"chunk_index"`
	ChunkType  ChunkType `json:"chunk_type"`
	Error      string    `json:"error"`
}
