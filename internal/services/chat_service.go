package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/sin3107/matching-sub001/internal/models"
)

const (
	ConversationPageSize = 10
	MessagePageSize      = 15
)

// Presence answers whether a user has a live realtime connection. An empty
// channel means "anywhere".
type Presence interface {
	IsPresent(userID int64, channel string) bool
}

// Emitter hands a realtime event to the transport. Delivery is best-effort.
type Emitter interface {
	Emit(userID int64, channel string, event string, payload any)
}

// PushEnqueuer queues a push notification for offline delivery.
type PushEnqueuer interface {
	EnqueuePush(ctx context.Context, userID int64, title, body string, data map[string]string) error
}

type sweeper interface {
	SweepConversation(ctx context.Context, conversationID int64) error
}

// ConversationChannel is the realtime channel scope for a single conversation.
func ConversationChannel(conversationID int64) string {
	return fmt.Sprintf("conversation:%d", conversationID)
}

type ChatService struct {
	tx            transactor
	conversations conversationStore
	users         userReader
	presence      Presence
	emitter       Emitter
	push          PushEnqueuer
	retention     sweeper
	locks         *ConversationLocks
	log           *zap.Logger
}

// MessageDelivery is what SendMessage hands back to the transport edge.
type MessageDelivery struct {
	Message     *models.Message `json:"message"`
	RecipientID int64           `json:"recipient_id"`
	Unread      int             `json:"unread"`
}

func NewChatService(
	tx transactor,
	conversations conversationStore,
	users userReader,
	presence Presence,
	emitter Emitter,
	push PushEnqueuer,
	retention sweeper,
	locks *ConversationLocks,
	log *zap.Logger,
) *ChatService {
	return &ChatService{
		tx:            tx,
		conversations: conversations,
		users:         users,
		presence:      presence,
		emitter:       emitter,
		push:          push,
		retention:     retention,
		locks:         locks,
		log:           log,
	}
}

// CreateConversation is the idempotent create-or-get for a participant pair.
// The pair is stored normalized so both orderings resolve to the same record.
func (s *ChatService) CreateConversation(
	ctx context.Context,
	actorID int64,
	peerID int64,
) (*models.Conversation, error) {
	if actorID <= 0 || peerID <= 0 {
		return nil, ErrInvalidInput
	}
	if actorID == peerID {
		return nil, ErrConflict
	}

	if _, err := s.users.GetByID(ctx, peerID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	userA, userB := actorID, peerID
	if userB < userA {
		userA, userB = userB, userA
	}

	return s.conversations.CreateOrGet(ctx, userA, userB)
}

// ListConversations returns one page of the viewer's conversation list,
// hiding threads the viewer has left that saw no activity since. The cursor
// is the last_message_at of the previous page's final item.
func (s *ChatService) ListConversations(
	ctx context.Context,
	viewerID int64,
	cursor *time.Time,
) ([]models.ConversationSummary, error) {
	if viewerID <= 0 {
		return nil, ErrInvalidInput
	}
	return s.conversations.ListVisible(ctx, viewerID, cursor, ConversationPageSize)
}

// GetMessages returns one page of messages visible to the viewer, newest
// first. The page read and the viewer's unread reset commit together, so the
// indicator never clears for messages that were not returned.
func (s *ChatService) GetMessages(
	ctx context.Context,
	viewerID int64,
	conversationID int64,
	cursor *time.Time,
) ([]models.Message, error) {
	if viewerID <= 0 || conversationID <= 0 {
		return nil, ErrInvalidInput
	}

	conversation, err := s.conversations.GetByID(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if !conversation.HasParticipant(viewerID) {
		return nil, ErrForbidden
	}

	var messages []models.Message
	err = s.tx.InTx(ctx, func(stores ChatStores) error {
		listed, err := stores.Messages.ListVisible(
			ctx,
			conversationID,
			conversation.JoinedAt(viewerID),
			cursor,
			MessagePageSize,
		)
		if err != nil {
			return err
		}
		if err := stores.Conversations.ClearUnread(ctx, conversationID, viewerID); err != nil {
			return err
		}
		messages = listed
		return nil
	})
	if err != nil {
		return nil, err
	}

	return messages, nil
}

// SendMessage persists a message and routes delivery. The insert and the
// conversation-summary update commit in one transaction inside the
// conversation's critical section: a crash can never leave a message without
// its summary, and a concurrent rejoin's sweep can never see a summary that
// is ahead of the message store.
func (s *ChatService) SendMessage(
	ctx context.Context,
	senderID int64,
	conversationID int64,
	contentType string,
	content string,
) (*MessageDelivery, error) {
	if senderID <= 0 || conversationID <= 0 {
		return nil, ErrInvalidInput
	}
	if !models.ValidContentType(contentType) {
		return nil, ErrInvalidInput
	}
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return nil, ErrInvalidInput
	}

	unlock := s.locks.Lock(conversationID)
	defer unlock()

	// Loaded under the lock: if the global sweep deleted this conversation
	// the send fails with not-found instead of resurrecting it.
	conversation, err := s.conversations.GetByID(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if !conversation.HasParticipant(senderID) {
		return nil, ErrForbidden
	}
	recipientID := conversation.PeerOf(senderID)

	preview := MessagePreview(contentType, trimmed)

	var message *models.Message
	err = s.tx.InTx(ctx, func(stores ChatStores) error {
		created, err := stores.Messages.Create(ctx, conversationID, senderID, recipientID, contentType, trimmed)
		if err != nil {
			return err
		}
		if err := stores.Conversations.RecordMessage(ctx, conversationID, recipientID, created.CreatedAt, contentType, preview); err != nil {
			return err
		}
		message = created
		return nil
	})
	if err != nil {
		return nil, err
	}

	delivery := &MessageDelivery{
		Message:     message,
		RecipientID: recipientID,
		Unread:      conversation.UnreadFor(recipientID) + 1,
	}

	s.route(ctx, delivery, preview)

	return delivery, nil
}

// route decides realtime emit vs. push fallback, plus the cross-surface
// unread signal. Everything here is best-effort; the persisted message is the
// source of truth.
func (s *ChatService) route(ctx context.Context, delivery *MessageDelivery, preview string) {
	message := delivery.Message
	channel := ConversationChannel(message.ConversationID)

	if s.presence.IsPresent(delivery.RecipientID, channel) {
		s.emitter.Emit(delivery.RecipientID, channel, "message:new", message)
	} else {
		data := map[string]string{
			"conversation_id": fmt.Sprintf("%d", message.ConversationID),
			"content_type":    message.ContentType,
		}
		if err := s.push.EnqueuePush(ctx, delivery.RecipientID, "New message", preview, data); err != nil {
			s.log.Warn("push enqueue failed",
				zap.Int64("recipient_id", delivery.RecipientID),
				zap.Int64("conversation_id", message.ConversationID),
				zap.Error(err))
		}
	}

	if s.presence.IsPresent(delivery.RecipientID, "") {
		s.emitter.Emit(delivery.RecipientID, "", "unread:changed", map[string]any{
			"conversation_id": message.ConversationID,
			"unread":          delivery.Unread,
		})
	}
}

// Rejoin moves the caller's join horizon to now and triggers the incremental
// retention sweep for the conversation. The updated record is returned so
// callers observe the new horizon.
func (s *ChatService) Rejoin(
	ctx context.Context,
	conversationID int64,
	userID int64,
) (*models.Conversation, error) {
	if userID <= 0 || conversationID <= 0 {
		return nil, ErrInvalidInput
	}

	unlock := s.locks.Lock(conversationID)

	conversation, err := s.conversations.GetByID(ctx, conversationID)
	if err != nil {
		unlock()
		return nil, err
	}
	if !conversation.HasParticipant(userID) {
		unlock()
		return nil, ErrForbidden
	}

	updated, err := s.conversations.UpdateJoinedAt(ctx, conversationID, userID, time.Now().UTC())
	unlock()
	if err != nil {
		return nil, err
	}

	if err := s.retention.SweepConversation(ctx, conversationID); err != nil {
		s.log.Error("incremental sweep failed",
			zap.Int64("conversation_id", conversationID),
			zap.Error(err))
	}

	return updated, nil
}
