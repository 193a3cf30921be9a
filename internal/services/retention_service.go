package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/sin3107/matching-sub001/internal/models"
)

// BlobDeleter removes an externally stored attachment by reference.
// Failures are advisory: callers log them and keep going.
type BlobDeleter interface {
	DeleteBlob(ctx context.Context, reference string) error
}

// RetentionService owns cleanup: the per-conversation incremental sweep run
// after a rejoin, the daily global sweep of aged-out conversations, and the
// account-deletion cascade. Record deletion is authoritative; blob deletion
// is best-effort cleanup of a separate system and never blocks it.
type RetentionService struct {
	conversations conversationStore
	messages      messageStore
	users         userStore
	blobs         BlobDeleter
	locks         *ConversationLocks
	retention     time.Duration
	log           *zap.Logger
}

func NewRetentionService(
	conversations conversationStore,
	messages messageStore,
	users userStore,
	blobs BlobDeleter,
	locks *ConversationLocks,
	retention time.Duration,
	log *zap.Logger,
) *RetentionService {
	return &RetentionService{
		conversations: conversations,
		messages:      messages,
		users:         users,
		blobs:         blobs,
		locks:         locks,
		retention:     retention,
		log:           log,
	}
}

// SweepConversation deletes every message older than the minimum join horizon
// across both participants. By the visibility invariant no participant can
// see such messages, so nothing currently visible is ever removed. Safe to
// re-run; a vanished conversation is a no-op.
func (s *RetentionService) SweepConversation(ctx context.Context, conversationID int64) error {
	unlock := s.locks.Lock(conversationID)
	defer unlock()

	conversation, err := s.conversations.GetByID(ctx, conversationID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		return err
	}

	cutoff := conversation.MinJoinedAt()

	expired, err := s.messages.ListBefore(ctx, conversationID, cutoff)
	if err != nil {
		return fmt.Errorf("collect expired messages: %w", err)
	}
	if len(expired) == 0 {
		return nil
	}

	s.deleteBlobs(ctx, expired)

	deleted, err := s.messages.DeleteBefore(ctx, conversationID, cutoff)
	if err != nil {
		return fmt.Errorf("delete expired messages: %w", err)
	}

	s.log.Info("incremental sweep completed",
		zap.Int64("conversation_id", conversationID),
		zap.Time("cutoff", cutoff),
		zap.Int64("deleted", deleted))

	return nil
}

// RunGlobalSweep tears down every conversation whose last message is older
// than the retention period. Conversations that never carried a message are
// never force-deleted. A failing conversation is logged and skipped so one
// bad row cannot abort the batch; re-running is safe because every deletion
// is idempotent.
func (s *RetentionService) RunGlobalSweep(ctx context.Context) error {
	threshold := time.Now().UTC().Add(-s.retention)

	expired, err := s.conversations.ListExpiredBefore(ctx, threshold)
	if err != nil {
		return fmt.Errorf("list expired conversations: %w", err)
	}

	swept := 0
	for _, conversation := range expired {
		if err := s.teardown(ctx, conversation.ID); err != nil {
			s.log.Error("global sweep: conversation teardown failed",
				zap.Int64("conversation_id", conversation.ID),
				zap.Error(err))
			continue
		}
		swept++
	}

	s.log.Info("global sweep completed",
		zap.Time("threshold", threshold),
		zap.Int("candidates", len(expired)),
		zap.Int("swept", swept))

	return nil
}

// PurgeUser removes every conversation and message touching the user, then
// the user record itself. Invoked by the account-deletion flow; no age
// threshold applies.
func (s *RetentionService) PurgeUser(ctx context.Context, userID int64) error {
	if userID <= 0 {
		return ErrInvalidInput
	}

	conversations, err := s.conversations.ListForUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("list conversations for user: %w", err)
	}

	var failed error
	for _, conversation := range conversations {
		if err := s.teardown(ctx, conversation.ID); err != nil {
			s.log.Error("purge: conversation teardown failed",
				zap.Int64("user_id", userID),
				zap.Int64("conversation_id", conversation.ID),
				zap.Error(err))
			failed = errors.Join(failed, err)
		}
	}
	if failed != nil {
		return failed
	}

	if err := s.users.Delete(ctx, userID); err != nil {
		return fmt.Errorf("delete user: %w", err)
	}

	s.log.Info("user purged",
		zap.Int64("user_id", userID),
		zap.Int("conversations", len(conversations)))

	return nil
}

// teardown is the full two-phase removal of one conversation: collect
// attachment references, best-effort blob deletes, then the authoritative
// record deletes (messages first, conversation last).
func (s *RetentionService) teardown(ctx context.Context, conversationID int64) error {
	unlock := s.locks.Lock(conversationID)
	defer unlock()

	messages, err := s.messages.ListByConversation(ctx, conversationID)
	if err != nil {
		return fmt.Errorf("collect messages: %w", err)
	}

	s.deleteBlobs(ctx, messages)

	if _, err := s.messages.DeleteByConversation(ctx, conversationID); err != nil {
		return fmt.Errorf("delete messages: %w", err)
	}
	if err := s.conversations.Delete(ctx, conversationID); err != nil {
		return fmt.Errorf("delete conversation: %w", err)
	}

	return nil
}

func (s *RetentionService) deleteBlobs(ctx context.Context, messages []models.Message) {
	for _, message := range messages {
		if !message.IsAttachment() {
			continue
		}
		if err := s.blobs.DeleteBlob(ctx, message.Content); err != nil {
			s.log.Warn("blob delete failed",
				zap.Int64("message_id", message.ID),
				zap.String("reference", message.Content),
				zap.Error(err))
		}
	}
}
