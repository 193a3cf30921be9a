package services

import (
	"context"
	"time"

	"github.com/sin3107/matching-sub001/internal/models"
)

type conversationStore interface {
	CreateOrGet(ctx context.Context, userA, userB int64) (*models.Conversation, error)
	GetByID(ctx context.Context, conversationID int64) (*models.Conversation, error)
	ListVisible(ctx context.Context, viewerID int64, cursor *time.Time, limit int) ([]models.ConversationSummary, error)
	UpdateJoinedAt(ctx context.Context, conversationID, userID int64, at time.Time) (*models.Conversation, error)
	RecordMessage(ctx context.Context, conversationID, recipientID int64, at time.Time, contentType, preview string) error
	ClearUnread(ctx context.Context, conversationID, userID int64) error
	ListExpiredBefore(ctx context.Context, threshold time.Time) ([]models.Conversation, error)
	ListForUser(ctx context.Context, userID int64) ([]models.Conversation, error)
	Delete(ctx context.Context, conversationID int64) error
}

type messageStore interface {
	Create(ctx context.Context, conversationID, senderID, recipientID int64, contentType, content string) (*models.Message, error)
	ListVisible(ctx context.Context, conversationID int64, after time.Time, cursor *time.Time, limit int) ([]models.Message, error)
	ListBefore(ctx context.Context, conversationID int64, cutoff time.Time) ([]models.Message, error)
	ListByConversation(ctx context.Context, conversationID int64) ([]models.Message, error)
	DeleteBefore(ctx context.Context, conversationID int64, cutoff time.Time) (int64, error)
	DeleteByConversation(ctx context.Context, conversationID int64) (int64, error)
}

// ChatStores bundles the stores one chat transaction touches. The fields are
// interface-typed so tests can run the same critical sections against
// in-memory stores.
type ChatStores struct {
	Conversations conversationStore
	Messages      messageStore
}

type transactor interface {
	InTx(ctx context.Context, fn func(stores ChatStores) error) error
}

type userReader interface {
	GetByID(ctx context.Context, id int64) (*models.User, error)
}

type userStore interface {
	userReader
	Delete(ctx context.Context, id int64) error
}
