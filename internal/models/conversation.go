package models

import "time"

// Conversation is a two-party thread. Participants are stored normalized
// (UserAID < UserBID) so a pair maps to exactly one row. Each participant
// carries an independent join horizon: messages at or before it are invisible
// to that participant.
type Conversation struct {
	ID                 int64      `json:"id"`
	UserAID            int64      `json:"user_a_id"`
	UserBID            int64      `json:"user_b_id"`
	UserAJoinedAt      time.Time  `json:"user_a_joined_at"`
	UserBJoinedAt      time.Time  `json:"user_b_joined_at"`
	LastMessageAt      *time.Time `json:"last_message_at,omitempty"`
	LastMessageType    *string    `json:"last_message_type,omitempty"`
	LastMessagePreview *string    `json:"last_message_preview,omitempty"`
	UserAUnread        int        `json:"user_a_unread"`
	UserBUnread        int        `json:"user_b_unread"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

func (c *Conversation) HasParticipant(userID int64) bool {
	return c.UserAID == userID || c.UserBID == userID
}

// PeerOf returns the other participant. Callers must have checked
// HasParticipant first.
func (c *Conversation) PeerOf(userID int64) int64 {
	if c.UserAID == userID {
		return c.UserBID
	}
	return c.UserAID
}

func (c *Conversation) JoinedAt(userID int64) time.Time {
	if c.UserAID == userID {
		return c.UserAJoinedAt
	}
	return c.UserBJoinedAt
}

// MinJoinedAt is the retention cutoff: nothing at or before this instant is
// visible to any participant.
func (c *Conversation) MinJoinedAt() time.Time {
	if c.UserAJoinedAt.Before(c.UserBJoinedAt) {
		return c.UserAJoinedAt
	}
	return c.UserBJoinedAt
}

func (c *Conversation) UnreadFor(userID int64) int {
	if c.UserAID == userID {
		return c.UserAUnread
	}
	return c.UserBUnread
}

// ConversationSummary is the list-view shape: the conversation plus the
// viewer-relative fields.
type ConversationSummary struct {
	Conversation
	PeerID      int64 `json:"peer_id"`
	UnreadCount int   `json:"unread_count"`
}
