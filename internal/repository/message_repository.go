package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"projecthub/internal/models"
)

type MessageRepository struct {
	pool *pgxpool.Pool
}

func NewMessageRepository(pool *pgxpool.Pool) *MessageRepository {
	return &MessageRepository{pool: pool}
}

func (r *MessageRepository) Create(ctx context.Context, message models.Message) error {
	const query = `
		INSERT INTO messages (
			id, project_id, sender_id, type, content, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6
		)
	`
	_, err := r.pool.Exec(ctx, query,
		message.ID,
		message.ProjectID,
		message.SenderID,
		message.Type,
		message.Content,
		message.CreatedAt,
	)
	return err
}

// ListByProjects returns messages for the given projects, newest first. An
// empty kind matches every message type.
func (r *MessageRepository) ListByProjects(ctx context.Context, projectIDs []string, kind models.MessageType) ([]models.Message, error) {
	const query = `
		SELECT id, project_id, sender_id, type, content, created_at
		FROM messages
		WHERE project_id = ANY($1) AND ($2::text = '' OR type = $2::text)
		ORDER BY created_at DESC
	`
	rows, err := r.pool.Query(ctx, query, projectIDs, string(kind))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []models.Message
	for rows.Next() {
		var message models.Message
		if err := rows.Scan(
			&message.ID,
			&message.ProjectID,
			&message.SenderID,
			&message.Type,
			&message.Content,
			&message.CreatedAt,
		); err != nil {
			return nil, err
		}
		messages = append(messages, message)
	}
	return messages, rows.Err()
}
