package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/sin3107/matching-sub001/internal/models"
)

const conversationColumns = `
	id, user_a_id, user_b_id, user_a_joined_at, user_b_joined_at,
	last_message_at, last_message_type, last_message_preview,
	user_a_unread, user_b_unread, created_at, updated_at`

type ConversationRepository struct {
	db DBTX
}

func NewConversationRepository(db DBTX) *ConversationRepository {
	return &ConversationRepository{db: db}
}

func scanConversation(row pgx.Row) (*models.Conversation, error) {
	var c models.Conversation
	err := row.Scan(
		&c.ID,
		&c.UserAID,
		&c.UserBID,
		&c.UserAJoinedAt,
		&c.UserBJoinedAt,
		&c.LastMessageAt,
		&c.LastMessageType,
		&c.LastMessagePreview,
		&c.UserAUnread,
		&c.UserBUnread,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// CreateOrGet inserts the conversation for a normalized participant pair
// (userA < userB) or returns the existing one. Both join horizons are set to
// now() only on first creation.
func (r *ConversationRepository) CreateOrGet(
	ctx context.Context,
	userA int64,
	userB int64,
) (*models.Conversation, error) {
	query := `
		INSERT INTO conversations (user_a_id, user_b_id, user_a_joined_at, user_b_joined_at)
		VALUES ($1, $2, NOW(), NOW())
		ON CONFLICT (user_a_id, user_b_id)
		DO UPDATE SET updated_at = conversations.updated_at
		RETURNING` + conversationColumns

	return scanConversation(r.db.QueryRow(ctx, query, userA, userB))
}

func (r *ConversationRepository) GetByID(ctx context.Context, conversationID int64) (*models.Conversation, error) {
	query := `SELECT` + conversationColumns + `
		FROM conversations
		WHERE id = $1`

	return scanConversation(r.db.QueryRow(ctx, query, conversationID))
}

// ListVisible returns the viewer's conversation-list page, newest activity
// first. A conversation is included when it has never carried a message or
// when its last message postdates the viewer's join horizon. Ordering and the
// exclusive cursor both use the activity key (last message time, or creation
// time for never-messaged conversations), so every conversation stays
// reachable under pagination.
func (r *ConversationRepository) ListVisible(
	ctx context.Context,
	viewerID int64,
	cursor *time.Time,
	limit int,
) ([]models.ConversationSummary, error) {
	query := `
		SELECT
			c.id, c.user_a_id, c.user_b_id, c.user_a_joined_at, c.user_b_joined_at,
			c.last_message_at, c.last_message_type, c.last_message_preview,
			c.user_a_unread, c.user_b_unread, c.created_at, c.updated_at,
			CASE WHEN c.user_a_id = $1 THEN c.user_b_id ELSE c.user_a_id END,
			CASE WHEN c.user_a_id = $1 THEN c.user_a_unread ELSE c.user_b_unread END
		FROM conversations c
		WHERE (c.user_a_id = $1 OR c.user_b_id = $1)
		  AND (
			c.last_message_at IS NULL
			OR c.last_message_at > CASE WHEN c.user_a_id = $1 THEN c.user_a_joined_at ELSE c.user_b_joined_at END
		  )
		  AND ($2::timestamptz IS NULL OR COALESCE(c.last_message_at, c.created_at) < $2)
		ORDER BY COALESCE(c.last_message_at, c.created_at) DESC, c.id DESC
		LIMIT $3`

	rows, err := r.db.Query(ctx, query, viewerID, cursor, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	summaries := make([]models.ConversationSummary, 0)
	for rows.Next() {
		var s models.ConversationSummary
		if err := rows.Scan(
			&s.ID,
			&s.UserAID,
			&s.UserBID,
			&s.UserAJoinedAt,
			&s.UserBJoinedAt,
			&s.LastMessageAt,
			&s.LastMessageType,
			&s.LastMessagePreview,
			&s.UserAUnread,
			&s.UserBUnread,
			&s.CreatedAt,
			&s.UpdatedAt,
			&s.PeerID,
			&s.UnreadCount,
		); err != nil {
			return nil, err
		}
		summaries = append(summaries, s)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return summaries, nil
}

// UpdateJoinedAt moves one participant's join horizon and returns the updated
// conversation. pgx.ErrNoRows means the conversation is gone or the user is
// not a participant.
func (r *ConversationRepository) UpdateJoinedAt(
	ctx context.Context,
	conversationID int64,
	userID int64,
	at time.Time,
) (*models.Conversation, error) {
	query := `
		UPDATE conversations
		SET user_a_joined_at = CASE WHEN user_a_id = $2 THEN $3 ELSE user_a_joined_at END,
		    user_b_joined_at = CASE WHEN user_b_id = $2 THEN $3 ELSE user_b_joined_at END,
		    updated_at = NOW()
		WHERE id = $1 AND (user_a_id = $2 OR user_b_id = $2)
		RETURNING` + conversationColumns

	return scanConversation(r.db.QueryRow(ctx, query, conversationID, userID, at))
}

// RecordMessage updates the last-message summary and bumps the recipient's
// unread counter.
func (r *ConversationRepository) RecordMessage(
	ctx context.Context,
	conversationID int64,
	recipientID int64,
	at time.Time,
	contentType string,
	preview string,
) error {
	_, err := r.db.Exec(ctx, `
		UPDATE conversations
		SET last_message_at = $3,
		    last_message_type = $4,
		    last_message_preview = $5,
		    user_a_unread = user_a_unread + CASE WHEN user_a_id = $2 THEN 1 ELSE 0 END,
		    user_b_unread = user_b_unread + CASE WHEN user_b_id = $2 THEN 1 ELSE 0 END,
		    updated_at = NOW()
		WHERE id = $1
	`, conversationID, recipientID, at, contentType, preview)
	return err
}

func (r *ConversationRepository) ClearUnread(
	ctx context.Context,
	conversationID int64,
	userID int64,
) error {
	_, err := r.db.Exec(ctx, `
		UPDATE conversations
		SET user_a_unread = CASE WHEN user_a_id = $2 THEN 0 ELSE user_a_unread END,
		    user_b_unread = CASE WHEN user_b_id = $2 THEN 0 ELSE user_b_unread END
		WHERE id = $1
	`, conversationID, userID)
	return err
}

// ListExpiredBefore returns conversations whose last message predates the
// threshold. Conversations that never carried a message are not candidates.
func (r *ConversationRepository) ListExpiredBefore(
	ctx context.Context,
	threshold time.Time,
) ([]models.Conversation, error) {
	query := `SELECT` + conversationColumns + `
		FROM conversations
		WHERE last_message_at IS NOT NULL AND last_message_at < $1
		ORDER BY last_message_at ASC`

	return r.listConversations(ctx, query, threshold)
}

func (r *ConversationRepository) ListForUser(ctx context.Context, userID int64) ([]models.Conversation, error) {
	query := `SELECT` + conversationColumns + `
		FROM conversations
		WHERE user_a_id = $1 OR user_b_id = $1
		ORDER BY id ASC`

	return r.listConversations(ctx, query, userID)
}

func (r *ConversationRepository) listConversations(ctx context.Context, query string, args ...any) ([]models.Conversation, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	conversations := make([]models.Conversation, 0)
	for rows.Next() {
		var c models.Conversation
		if err := rows.Scan(
			&c.ID,
			&c.UserAID,
			&c.UserBID,
			&c.UserAJoinedAt,
			&c.UserBJoinedAt,
			&c.LastMessageAt,
			&c.LastMessageType,
			&c.LastMessagePreview,
			&c.UserAUnread,
			&c.UserBUnread,
			&c.CreatedAt,
			&c.UpdatedAt,
		); err != nil {
			return nil, err
		}
		conversations = append(conversations, c)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return conversations, nil
}

// Delete removes the conversation record. Deleting an already-deleted
// conversation is a no-op.
func (r *ConversationRepository) Delete(ctx context.Context, conversationID int64) error {
	_, err := r.db.Exec(ctx, `DELETE FROM conversations WHERE id = $1`, conversationID)
	return err
}
