package models

import "time"

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatMessage is one conversation turn as sent to the completion service.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// MediaKind classifies non-text inbound payloads.
type MediaKind string

const (
	MediaNone      MediaKind = ""
	MediaVoice     MediaKind = "voice"
	MediaVideoNote MediaKind = "video_note"
	MediaSticker   MediaKind = "sticker"
	MediaOther     MediaKind = "other"
)

// Unsupported reports whether the media kind gets an apology instead of a reply.
func (k MediaKind) Unsupported() bool {
	switch k {
	case MediaVoice, MediaVideoNote, MediaSticker:
		return true
	}
	return false
}

// InboundMessage is a message event delivered by the messaging platform.
type InboundMessage struct {
	Handle     string    `json:"from"`
	Text       string    `json:"message"`
	Media      MediaKind `json:"media,omitempty"`
	ReceivedAt time.Time `json:"-"`
}
