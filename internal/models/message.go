package models

import "time"

const (
	ContentTypeText  = "text"
	ContentTypeImage = "image"
	ContentTypeVideo = "video"
	ContentTypeAudio = "audio"
)

// ValidContentType reports whether t is one of the supported message kinds.
func ValidContentType(t string) bool {
	switch t {
	case ContentTypeText, ContentTypeImage, ContentTypeVideo, ContentTypeAudio:
		return true
	default:
		return false
	}
}

// IsAttachmentType reports whether messages of type t reference an externally
// stored blob in their content field.
func IsAttachmentType(t string) bool {
	return ValidContentType(t) && t != ContentTypeText
}

type Message struct {
	ID             int64     `json:"id"`
	ConversationID int64     `json:"conversation_id"`
	SenderID       int64     `json:"sender_id"`
	RecipientID    int64     `json:"recipient_id"`
	ContentType    string    `json:"content_type"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"created_at"`
}

func (m *Message) IsAttachment() bool {
	return IsAttachmentType(m.ContentType)
}
