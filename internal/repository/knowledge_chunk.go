package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	"github.com/villadeifiori/gabi/internal/domain"
	"github.com/villadeifiori/gabi/internal/service"
)

// KnowledgeChunkRepository persists embedded chunks and runs the
// database-side ranking functions.
type KnowledgeChunkRepository struct {
	pool *pgxpool.Pool
}

func NewKnowledgeChunkRepository(pool *pgxpool.Pool) *KnowledgeChunkRepository {
	return &KnowledgeChunkRepository{pool: pool}
}

// ReplaceProcessChunks atomically swaps the stored chunks for one process
// version. The advisory lock serializes concurrent ingestion of the same
// process; the surrounding transaction keeps readers from seeing a
// partially replaced set.
func (r *KnowledgeChunkRepository) ReplaceProcessChunks(ctx context.Context, processID, versionID string, chunks []domain.KnowledgeChunk) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, "process:"+processID); err != nil {
		return err
	}

	if _, err := tx.Exec(ctx, `DELETE FROM knowledge_base_documents WHERE process_id = $1`, processID); err != nil {
		return err
	}

	for _, c := range chunks {
		if err := insertChunk(ctx, tx, c); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

// ReplaceDocumentChunks atomically swaps the stored chunks for one freeform
// document. Document chunks carry no process reference; they are keyed by
// the document_id in their metadata.
func (r *KnowledgeChunkRepository) ReplaceDocumentChunks(ctx context.Context, documentID string, chunks []domain.KnowledgeChunk) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, "document:"+documentID); err != nil {
		return err
	}

	if _, err := tx.Exec(ctx,
		`DELETE FROM knowledge_base_documents
		 WHERE process_id IS NULL AND metadata->>'document_id' = $1`,
		documentID,
	); err != nil {
		return err
	}

	for _, c := range chunks {
		if err := insertChunk(ctx, tx, c); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

func insertChunk(ctx context.Context, db dbtx, c domain.KnowledgeChunk) error {
	id := c.ID
	if id == "" {
		id = uuid.NewString()
	}
	createdAt := c.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err := db.Exec(ctx,
		`INSERT INTO knowledge_base_documents
			(id, process_id, process_version_id, chunk_index, chunk_type, content, metadata, embedding, created_at)
		 VALUES
			($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		id,
		nullableString(c.ProcessID),
		nullableString(c.ProcessVersionID),
		c.ChunkIndex,
		c.ChunkType,
		c.Content,
		c.Metadata,
		pgvector.NewVector(c.Embedding),
		createdAt,
	)
	return err
}

// SearchKnowledge ranks chunks by cosine similarity through the
// search_knowledge_base function.
func (r *KnowledgeChunkRepository) SearchKnowledge(ctx context.Context, embedding []float32, threshold float64, count int) ([]*service.SearchResult, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT process_id, process_name, chunk_type, content, metadata, similarity
		 FROM search_knowledge_base($1, $2, $3)`,
		pgvector.NewVector(embedding), threshold, count,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanSearchResults(rows)
}

// SearchKnowledgeHybrid ranks chunks by the combined vector/text score
// through the search_knowledge_base_hybrid function.
func (r *KnowledgeChunkRepository) SearchKnowledgeHybrid(ctx context.Context, embedding []float32, queryText string, threshold float64, count int) ([]*service.SearchResult, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT process_id, process_name, chunk_type, content, metadata, similarity
		 FROM search_knowledge_base_hybrid($1, $2, $3, $4)`,
		pgvector.NewVector(embedding), queryText, threshold, count,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanSearchResults(rows)
}

func scanSearchResults(rows pgx.Rows) ([]*service.SearchResult, error) {
	var results []*service.SearchResult
	for rows.Next() {
		var result service.SearchResult
		var processID, processName pgtype.Text
		var metadata map[string]any
		if err := rows.Scan(&processID, &processName, &result.ChunkType, &result.Content, &metadata, &result.Similarity); err != nil {
			return nil, err
		}
		if processID.Valid {
			result.ProcessID = processID.String
		}
		if processName.Valid {
			result.ProcessName = processName.String
		}
		result.Metadata = metadata
		results = append(results, &result)
	}
	return results, rows.Err()
}
