// Package chat_apps connects text chat platforms to the assistant, so it can
// be used when nobody is near the microphone.
package chat_apps

import "time"

// MessageType represents the type of message.
type MessageType int

const (
	MessageTypeText MessageType = iota
	MessageTypePhoto
)

func (m MessageType) String() string {
	switch m {
	case MessageTypeText:
		return "text"
	case MessageTypePhoto:
		return "photo"
	default:
		return "unknown"
	}
}

// Platform represents a supported chat platform.
type Platform string

const PlatformTelegram Platform = "telegram"

// IncomingMessage is a message from a chat platform.
type IncomingMessage struct {
	Platform       Platform
	PlatformUserID string
	PlatformChatID string
	Type           MessageType
	Content        string
	// MediaData holds the downloaded photo for MessageTypePhoto.
	MediaData []byte
	MimeType  string
	Metadata  map[string]string
	Timestamp time.Time
}

// OutgoingMessage is a reply to send to a chat platform.
type OutgoingMessage struct {
	PlatformChatID string
	Content        string
	ParseMode      string
}
