package services

import (
	"strings"

	"github.com/sin3107/matching-sub001/internal/models"
)

const previewMaxRunes = 80

// MessagePreview derives the short summary text shown in conversation lists
// and push notifications. Attachment kinds never leak their blob reference.
func MessagePreview(contentType, content string) string {
	switch contentType {
	case models.ContentTypeImage:
		return "Sent a photo"
	case models.ContentTypeVideo:
		return "Sent a video"
	case models.ContentTypeAudio:
		return "Sent a voice message"
	default:
		trimmed := strings.TrimSpace(content)
		runes := []rune(trimmed)
		if len(runes) <= previewMaxRunes {
			return trimmed
		}
		return string(runes[:previewMaxRunes])
	}
}
