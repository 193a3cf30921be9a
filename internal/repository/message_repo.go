package repository

import (
	"context"
	"time"

	"github.com/sin3107/matching-sub001/internal/models"
)

const messageColumns = `id, conversation_id, sender_id, recipient_id, content_type, content, created_at`

type MessageRepository struct {
	db DBTX
}

func NewMessageRepository(db DBTX) *MessageRepository {
	return &MessageRepository{db: db}
}

func (r *MessageRepository) Create(
	ctx context.Context,
	conversationID int64,
	senderID int64,
	recipientID int64,
	contentType string,
	content string,
) (*models.Message, error) {
	query := `
		INSERT INTO messages (conversation_id, sender_id, recipient_id, content_type, content)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING ` + messageColumns

	var m models.Message
	err := r.db.QueryRow(ctx, query,
		conversationID,
		senderID,
		recipientID,
		contentType,
		content,
	).Scan(
		&m.ID,
		&m.ConversationID,
		&m.SenderID,
		&m.RecipientID,
		&m.ContentType,
		&m.Content,
		&m.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	return &m, nil
}

// ListVisible returns one page of messages the viewer may see, newest first.
// after is the viewer's join horizon (strict lower bound); cursor, when set,
// is an exclusive upper bound on created_at.
func (r *MessageRepository) ListVisible(
	ctx context.Context,
	conversationID int64,
	after time.Time,
	cursor *time.Time,
	limit int,
) ([]models.Message, error) {
	query := `
		SELECT ` + messageColumns + `
		FROM messages
		WHERE conversation_id = $1
		  AND created_at > $2
		  AND ($3::timestamptz IS NULL OR created_at < $3)
		ORDER BY created_at DESC, id DESC
		LIMIT $4`

	return r.list(ctx, query, conversationID, after, cursor, limit)
}

// ListBefore returns every message older than the cutoff, the incremental
// sweep's deletable set.
func (r *MessageRepository) ListBefore(
	ctx context.Context,
	conversationID int64,
	cutoff time.Time,
) ([]models.Message, error) {
	query := `
		SELECT ` + messageColumns + `
		FROM messages
		WHERE conversation_id = $1 AND created_at < $2
		ORDER BY created_at ASC, id ASC`

	return r.list(ctx, query, conversationID, cutoff)
}

func (r *MessageRepository) ListByConversation(
	ctx context.Context,
	conversationID int64,
) ([]models.Message, error) {
	query := `
		SELECT ` + messageColumns + `
		FROM messages
		WHERE conversation_id = $1
		ORDER BY created_at ASC, id ASC`

	return r.list(ctx, query, conversationID)
}

func (r *MessageRepository) list(ctx context.Context, query string, args ...any) ([]models.Message, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	messages := make([]models.Message, 0)
	for rows.Next() {
		var m models.Message
		if err := rows.Scan(
			&m.ID,
			&m.ConversationID,
			&m.SenderID,
			&m.RecipientID,
			&m.ContentType,
			&m.Content,
			&m.CreatedAt,
		); err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return messages, nil
}

// DeleteBefore removes, in one batch, every message older than the cutoff.
func (r *MessageRepository) DeleteBefore(
	ctx context.Context,
	conversationID int64,
	cutoff time.Time,
) (int64, error) {
	tag, err := r.db.Exec(ctx, `
		DELETE FROM messages
		WHERE conversation_id = $1 AND created_at < $2
	`, conversationID, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *MessageRepository) DeleteByConversation(
	ctx context.Context,
	conversationID int64,
) (int64, error) {
	tag, err := r.db.Exec(ctx, `
		DELETE FROM messages
		WHERE conversation_id = $1
	`, conversationID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
