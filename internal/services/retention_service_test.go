package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
)

func TestSweepConversationMissingIsNoop(t *testing.T) {
	f := newChatFixture()

	if err := f.retention.SweepConversation(context.Background(), 404); err != nil {
		t.Fatalf("sweep of a vanished conversation must be a no-op, got %v", err)
	}
}

func TestSweepConversationIsIdempotent(t *testing.T) {
	f := newChatFixture()
	conversationID := f.mustCreateConversation(t, 1, 2)

	f.mustSend(t, base.Add(time.Minute), 1, conversationID, "image", "chat/1/a.jpg")
	f.mustSend(t, base.Add(2*time.Minute), 2, conversationID, "text", "caption")

	// Move both horizons past every message so the cutoff covers them all.
	now := time.Now().UTC()
	c := f.db.convs[conversationID]
	c.UserAJoinedAt = now
	c.UserBJoinedAt = now

	if err := f.retention.SweepConversation(context.Background(), conversationID); err != nil {
		t.Fatalf("first sweep: %v", err)
	}
	if err := f.retention.SweepConversation(context.Background(), conversationID); err != nil {
		t.Fatalf("second sweep: %v", err)
	}

	if got := len(f.db.msgs[conversationID]); got != 0 {
		t.Fatalf("expected no messages after sweep, got %d", got)
	}
	if len(f.blobs.deleted) != 1 {
		t.Fatalf("blob must be deleted exactly once across re-runs, got %v", f.blobs.deleted)
	}
	if _, ok := f.db.convs[conversationID]; !ok {
		t.Fatalf("incremental sweep must keep the conversation record")
	}
}

func TestSweepConversationBlobFailureDoesNotAbort(t *testing.T) {
	f := newChatFixture()
	conversationID := f.mustCreateConversation(t, 1, 2)

	f.mustSend(t, base.Add(time.Minute), 1, conversationID, "image", "chat/1/broken.jpg")
	f.mustSend(t, base.Add(2*time.Minute), 1, conversationID, "video", "chat/1/clip.mp4")
	f.blobs.failFor["chat/1/broken.jpg"] = errors.New("storage unavailable")

	now := time.Now().UTC()
	c := f.db.convs[conversationID]
	c.UserAJoinedAt = now
	c.UserBJoinedAt = now

	if err := f.retention.SweepConversation(context.Background(), conversationID); err != nil {
		t.Fatalf("sweep must not fail on a blob error: %v", err)
	}
	if got := len(f.db.msgs[conversationID]); got != 0 {
		t.Fatalf("message records must be deleted despite the blob failure, got %d", got)
	}
	if len(f.blobs.deleted) != 1 || f.blobs.deleted[0] != "chat/1/clip.mp4" {
		t.Fatalf("remaining blobs must still be deleted, got %v", f.blobs.deleted)
	}
}

// Sweeping never removes a message either participant can still see.
func TestSweepConversationKeepsVisibleMessages(t *testing.T) {
	f := newChatFixture()
	conversationID := f.mustCreateConversation(t, 1, 2)

	f.mustSend(t, base.Add(time.Minute), 1, conversationID, "text", "old")
	f.mustSend(t, base.Add(10*time.Minute), 2, conversationID, "text", "new")

	// Only one horizon moved: the cutoff stays at the other side's horizon.
	c := f.db.convs[conversationID]
	c.UserAJoinedAt = base.Add(5 * time.Minute)

	if err := f.retention.SweepConversation(context.Background(), conversationID); err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if got := len(f.db.msgs[conversationID]); got != 2 {
		t.Fatalf("messages within the peer's horizon must survive, got %d", got)
	}

	// Both horizons past the first message: only the first goes.
	c.UserBJoinedAt = base.Add(5 * time.Minute)
	if err := f.retention.SweepConversation(context.Background(), conversationID); err != nil {
		t.Fatalf("sweep: %v", err)
	}
	remaining := f.db.msgs[conversationID]
	if len(remaining) != 1 || remaining[0].Content != "new" {
		t.Fatalf("expected only the newer message to survive, got %+v", remaining)
	}
}

func TestGlobalSweepRemovesAgedConversations(t *testing.T) {
	f := newChatFixture()
	ctx := context.Background()
	now := time.Now().UTC()

	// Last message 31 days ago: past retention.
	agedID := f.mustCreateConversation(t, 1, 2)
	f.mustSend(t, now.Add(-31*24*time.Hour), 1, agedID, "image", "chat/aged/pic.jpg")

	// Last message yesterday: kept.
	freshID := f.mustCreateConversation(t, 1, 3)
	f.mustSend(t, now.Add(-24*time.Hour), 3, freshID, "text", "recent")

	// Never messaged: never force-deleted regardless of age.
	emptyID := f.mustCreateConversation(t, 1, 4)

	if err := f.retention.RunGlobalSweep(ctx); err != nil {
		t.Fatalf("RunGlobalSweep: %v", err)
	}

	if _, ok := f.db.convs[agedID]; ok {
		t.Fatalf("aged conversation must be deleted")
	}
	if got := len(f.db.msgs[agedID]); got != 0 {
		t.Fatalf("aged conversation's messages must be deleted, got %d", got)
	}
	if len(f.blobs.deleted) != 1 || f.blobs.deleted[0] != "chat/aged/pic.jpg" {
		t.Fatalf("aged attachment blob must be deleted, got %v", f.blobs.deleted)
	}
	if _, ok := f.db.convs[freshID]; !ok {
		t.Fatalf("fresh conversation must survive")
	}
	if _, ok := f.db.convs[emptyID]; !ok {
		t.Fatalf("never-messaged conversation must survive")
	}

	if _, err := f.chat.GetMessages(ctx, 1, agedID, nil); !errors.Is(err, pgx.ErrNoRows) {
		t.Fatalf("lookup of a swept conversation must be not-found, got %v", err)
	}
}

func TestGlobalSweepIsIdempotent(t *testing.T) {
	f := newChatFixture()
	ctx := context.Background()
	now := time.Now().UTC()

	agedID := f.mustCreateConversation(t, 1, 2)
	f.mustSend(t, now.Add(-45*24*time.Hour), 1, agedID, "audio", "chat/aged/note.ogg")

	if err := f.retention.RunGlobalSweep(ctx); err != nil {
		t.Fatalf("first run: %v", err)
	}
	if err := f.retention.RunGlobalSweep(ctx); err != nil {
		t.Fatalf("second run: %v", err)
	}
	if len(f.blobs.deleted) != 1 {
		t.Fatalf("re-running the sweep must not repeat work, got %v", f.blobs.deleted)
	}
}

func TestPurgeUserCascades(t *testing.T) {
	f := newChatFixture()
	ctx := context.Background()

	firstID := f.mustCreateConversation(t, 1, 2)
	secondID := f.mustCreateConversation(t, 1, 3)
	othersID := f.mustCreateConversation(t, 2, 3)

	f.mustSend(t, base.Add(time.Minute), 1, firstID, "image", "chat/1/one.jpg")
	f.mustSend(t, base.Add(2*time.Minute), 3, secondID, "text", "hey")
	f.mustSend(t, base.Add(3*time.Minute), 2, othersID, "text", "unrelated")

	if err := f.retention.PurgeUser(ctx, 1); err != nil {
		t.Fatalf("PurgeUser: %v", err)
	}

	if _, ok := f.db.convs[firstID]; ok {
		t.Fatalf("purged user's conversation must be deleted")
	}
	if _, ok := f.db.convs[secondID]; ok {
		t.Fatalf("purged user's conversation must be deleted")
	}
	if _, ok := f.db.convs[othersID]; !ok {
		t.Fatalf("unrelated conversation must survive")
	}
	if len(f.db.msgs[firstID]) != 0 || len(f.db.msgs[secondID]) != 0 {
		t.Fatalf("purged user's messages must be deleted")
	}
	if len(f.blobs.deleted) != 1 || f.blobs.deleted[0] != "chat/1/one.jpg" {
		t.Fatalf("purged attachments must be deleted, got %v", f.blobs.deleted)
	}
	if _, ok := f.db.users[1]; ok {
		t.Fatalf("user record must be deleted last")
	}
	if _, ok := f.db.users[2]; !ok {
		t.Fatalf("other users must survive")
	}
}

func TestPurgeUserRejectsBadID(t *testing.T) {
	f := newChatFixture()

	if err := f.retention.PurgeUser(context.Background(), 0); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}
