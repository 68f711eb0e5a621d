// Package channels defines the ChatChannel interface implemented by every chat platform.
package channels

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/hrygo/aida/plugin/chat_apps"
)

// ChatChannel is a chat platform connection.
type ChatChannel interface {
	Name() chat_apps.Platform

	// Run receives messages until ctx ends, passing each to handler and
	// sending back the reply it returns.
	Run(ctx context.Context, handler MessageHandler) error

	SendMessage(ctx context.Context, msg *chat_apps.OutgoingMessage) error

	Close() error
}

// MessageHandler answers an incoming message. A nil reply sends nothing.
type MessageHandler func(ctx context.Context, msg *chat_apps.IncomingMessage) (*chat_apps.OutgoingMessage, error)

// ChannelRouter holds the registered channels.
// Concurrent-safe for Register and GetChannel operations.
type ChannelRouter struct {
	mu       sync.RWMutex
	registry map[chat_apps.Platform]ChatChannel
}

func NewChannelRouter() *ChannelRouter {
	return &ChannelRouter{registry: make(map[chat_apps.Platform]ChatChannel)}
}

func (r *ChannelRouter) Register(channel ChatChannel) {
	r.mu.Lock()
	r.registry[channel.Name()] = channel
	r.mu.Unlock()
}

// GetChannel returns the channel for a platform, or nil if not registered.
func (r *ChannelRouter) GetChannel(platform chat_apps.Platform) ChatChannel {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.registry[platform]
}

// Channels returns every registered channel.
func (r *ChannelRouter) Channels() []ChatChannel {
	r.mu.RLock()
	defer r.mu.RUnlock()
	list := make([]ChatChannel, 0, len(r.registry))
	for _, ch := range r.registry {
		list = append(list, ch)
	}
	return list
}

// SendResponse sends a reply through the platform's channel.
func (r *ChannelRouter) SendResponse(ctx context.Context, platform chat_apps.Platform, msg *chat_apps.OutgoingMessage) error {
	channel := r.GetChannel(platform)
	if channel == nil {
		return ErrNoChannelForPlatform
	}
	return channel.SendMessage(ctx, msg)
}

var (
	ErrNoChannelForPlatform = &ChannelError{Code: "NO_CHANNEL", Message: "no channel registered for platform"}
	ErrInvalidPayload       = &ChannelError{Code: "INVALID_PAYLOAD", Message: "could not parse update"}
	ErrUnauthorized         = &ChannelError{Code: "UNAUTHORIZED", Message: "chat not allowed"}
	ErrMediaDownloadFailed  = &ChannelError{Code: "MEDIA_FAILED", Message: "failed to download media"}
)

// ChannelError represents an error in channel operations.
type ChannelError struct {
	Code    string
	Message string
	Err     error
}

func (e *ChannelError) Error() string {
	if e.Err != nil {
		return e.Code + ": " + e.Message + ": " + e.Err.Error()
	}
	return e.Code + ": " + e.Message
}

func (e *ChannelError) Unwrap() error {
	return e.Err
}

// Broadcast sends content to every chat in targets. Chats on platforms without
// a registered channel are skipped with ErrNoChannelForPlatform; the other
// sends still happen.
func (r *ChannelRouter) Broadcast(ctx context.Context, targets map[chat_apps.Platform][]string, content string) error {
	var errs []error
	for platform, chats := range targets {
		for _, chatID := range chats {
			msg := &chat_apps.OutgoingMessage{PlatformChatID: chatID, Content: content}
			if err := r.SendResponse(ctx, platform, msg); err != nil {
				errs = append(errs, fmt.Errorf("%s/%s: %w", platform, chatID, err))
			}
		}
	}
	return errors.Join(errs...)
}

var _ io.Closer = (*ChannelRouter)(nil)

// Close closes all registered channels.
func (r *ChannelRouter) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var firstErr error
	for _, channel := range r.registry {
		if err := channel.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
