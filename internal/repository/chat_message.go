package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/villadeifiori/gabi/internal/domain"
)

// ChatMessageRepository persists chat turns and their citations.
type ChatMessageRepository struct {
	db dbtx
}

func NewChatMessageRepository(pool *pgxpool.Pool) *ChatMessageRepository {
	return &ChatMessageRepository{db: pool}
}

func NewChatMessageRepositoryWithTx(tx pgx.Tx) *ChatMessageRepository {
	return &ChatMessageRepository{db: tx}
}

func (r *ChatMessageRepository) Insert(ctx context.Context, msg *domain.ChatMessage) error {
	var sources []byte
	if len(msg.Sources) > 0 {
		encoded, err := json.Marshal(msg.Sources)
		if err != nil {
			return fmt.Errorf("failed to encode sources: %w", err)
		}
		sources = encoded
	}

	_, err := r.db.Exec(ctx,
		`INSERT INTO chat_messages (id, conversation_id, user_id, role, content, sources, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		msg.ID, msg.ConversationID, msg.UserID, msg.Role, msg.Content, sources, msg.CreatedAt,
	)
	return err
}

// ListRecent returns the last limit turns of a conversation in
// chronological order.
func (r *ChatMessageRepository) ListRecent(ctx context.Context, conversationID string, limit int) ([]*domain.ChatMessage, error) {
	if limit <= 0 {
		limit = 10
	}

	rows, err := r.db.Query(ctx,
		`SELECT id, conversation_id, user_id, role, content, sources, created_at
		 FROM chat_messages
		 WHERE conversation_id = $1
		 ORDER BY created_at DESC, id DESC
		 LIMIT $2`,
		conversationID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []*domain.ChatMessage
	for rows.Next() {
		var m domain.ChatMessage
		var sources []byte
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.UserID, &m.Role, &m.Content, &sources, &m.CreatedAt); err != nil {
			return nil, err
		}
		if len(sources) > 0 {
			if err := json.Unmarshal(sources, &m.Sources); err != nil {
				return nil, fmt.Errorf("failed to decode sources for message %s: %w", m.ID, err)
			}
		}
		messages = append(messages, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Query order is newest first; callers want chronological.
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}
