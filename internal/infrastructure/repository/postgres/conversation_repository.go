package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/kirillkom/docqa/internal/core/domain"
)

type ConversationRepository struct {
	db *sql.DB
}

func NewConversationRepository(db *sql.DB) *ConversationRepository {
	return &ConversationRepository{db: db}
}

func (r *ConversationRepository) AppendTurn(ctx context.Context, turn domain.ConversationTurn) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO conversation_turns (document_id, question, answer, created_at)
VALUES ($1,$2,$3,$4)
`, turn.DocumentID, turn.Question, turn.Answer, turn.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert conversation turn: %w", err)
	}
	return nil
}

// ListRecentTurns returns up to limit most recent turns, oldest first, so
// callers can append them to a prompt in conversation order.
func (r *ConversationRepository) ListRecentTurns(ctx context.Context, documentID string, limit int) ([]domain.ConversationTurn, error) {
	if limit <= 0 {
		limit = 2
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT document_id, question, answer, created_at
FROM conversation_turns
WHERE document_id = $1
ORDER BY created_at DESC, id DESC
LIMIT $2
`, documentID, limit)
	if err != nil {
		return nil, fmt.Errorf("query conversation turns: %w", err)
	}
	defer rows.Close()

	var turns []domain.ConversationTurn
	for rows.Next() {
		var turn domain.ConversationTurn
		if err := rows.Scan(&turn.DocumentID, &turn.Question, &turn.Answer, &turn.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan conversation turn: %w", err)
		}
		turns = append(turns, turn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate conversation turns: %w", err)
	}

	// Reverse from newest-first query order to oldest-first.
	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}
	return turns, nil
}

// ClearTurns removes every turn for a document. Zero deleted rows is fine.
func (r *ConversationRepository) ClearTurns(ctx context.Context, documentID string) error {
	_, err := r.db.ExecContext(ctx, `
DELETE FROM conversation_turns
WHERE document_id = $1
`, documentID)
	if err != nil {
		return fmt.Errorf("clear conversation turns: %w", err)
	}
	return nil
}
