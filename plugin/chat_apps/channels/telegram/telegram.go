// Package telegram implements the Telegram Bot channel.
package telegram

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/hrygo/aida/plugin/chat_apps"
	"github.com/hrygo/aida/plugin/chat_apps/channels"
)

const (
	MaxPhotoSizeMB     = 20   // Telegram photo size limit
	MaxMessageRunes    = 4096 // Telegram text message limit
	DefaultPollTimeout = 30   // seconds
)

// TelegramConfig holds configuration for the Telegram channel.
type TelegramConfig struct {
	BotToken string
	// AllowedChatIDs limits who can talk to the assistant. Empty allows everyone.
	AllowedChatIDs []int64
	PollTimeout    int
}

// botAPI is the part of tgbotapi.BotAPI the channel uses.
type botAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetFileDirectURL(fileID string) (string, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// TelegramChannel implements ChatChannel with long polling.
type TelegramChannel struct {
	bot     botAPI
	config  *TelegramConfig
	allowed map[int64]bool
	client  *http.Client
}

// NewTelegramChannel creates a new Telegram channel.
func NewTelegramChannel(config *TelegramConfig) (*TelegramChannel, error) {
	bot, err := tgbotapi.NewBotAPI(config.BotToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram bot: %w", err)
	}
	slog.Info("telegram: authorized", "username", bot.Self.UserName)
	return newChannel(bot, config), nil
}

func newChannel(bot botAPI, config *TelegramConfig) *TelegramChannel {
	allowed := make(map[int64]bool, len(config.AllowedChatIDs))
	for _, id := range config.AllowedChatIDs {
		allowed[id] = true
	}
	return &TelegramChannel{
		bot:     bot,
		config:  config,
		allowed: allowed,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

// Name returns the platform name.
func (t *TelegramChannel) Name() chat_apps.Platform {
	return chat_apps.PlatformTelegram
}

// Run polls for updates until ctx ends. Each message is answered in order.
func (t *TelegramChannel) Run(ctx context.Context, handler channels.MessageHandler) error {
	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = t.config.PollTimeout
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultPollTimeout
	}
	updates := t.bot.GetUpdatesChan(cfg)
	defer t.bot.StopReceivingUpdates()

	for {
		select {
		case <-ctx.Done():
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			t.handleUpdate(ctx, update, handler)
		}
	}
}

func (t *TelegramChannel) handleUpdate(ctx context.Context, update tgbotapi.Update, handler channels.MessageHandler) {
	msg, err := t.ParseUpdate(ctx, update)
	if err != nil {
		slog.Debug("telegram: skipping update", "update_id", update.UpdateID, "error", err)
		return
	}

	slog.Debug("telegram: message", "chat_id", msg.PlatformChatID, "type", msg.Type.String())
	reply, err := handler(ctx, msg)
	if err != nil {
		slog.Error("telegram: handler failed", "chat_id", msg.PlatformChatID, "error", err)
		reply = &chat_apps.OutgoingMessage{Content: "Sorry, something went wrong: " + err.Error()}
	}
	if reply == nil || reply.Content == "" {
		return
	}
	if reply.PlatformChatID == "" {
		reply.PlatformChatID = msg.PlatformChatID
	}
	if err := t.SendMessage(ctx, reply); err != nil {
		slog.Error("telegram: failed to send reply", "chat_id", reply.PlatformChatID, "error", err)
	}
}

// ParseUpdate converts an update into an IncomingMessage. Photos are downloaded.
func (t *TelegramChannel) ParseUpdate(ctx context.Context, update tgbotapi.Update) (*chat_apps.IncomingMessage, error) {
	var tgMsg *tgbotapi.Message
	switch {
	case update.Message != nil:
		tgMsg = update.Message
	case update.EditedMessage != nil:
		tgMsg = update.EditedMessage
	default:
		return nil, channels.ErrInvalidPayload
	}
	if tgMsg.Chat == nil {
		return nil, channels.ErrInvalidPayload
	}
	if len(t.allowed) > 0 && !t.allowed[tgMsg.Chat.ID] {
		return nil, channels.ErrUnauthorized
	}

	msg := &chat_apps.IncomingMessage{
		Platform:       chat_apps.PlatformTelegram,
		PlatformChatID: strconv.FormatInt(tgMsg.Chat.ID, 10),
		Type:           chat_apps.MessageTypeText,
		Content:        tgMsg.Text,
		Timestamp:      tgMsg.Time(),
		Metadata:       map[string]string{"update_id": strconv.Itoa(update.UpdateID)},
	}
	if tgMsg.From != nil {
		msg.PlatformUserID = strconv.FormatInt(tgMsg.From.ID, 10)
		msg.Metadata["username"] = tgMsg.From.UserName
	}

	if len(tgMsg.Photo) > 0 {
		largest := tgMsg.Photo[len(tgMsg.Photo)-1]
		data, mimeType, err := t.DownloadMedia(ctx, largest.FileID)
		if err != nil {
			return nil, err
		}
		msg.Type = chat_apps.MessageTypePhoto
		msg.Content = tgMsg.Caption
		msg.MediaData = data
		msg.MimeType = mimeType
	}
	if msg.Content == "" && msg.Type == chat_apps.MessageTypeText {
		return nil, channels.ErrInvalidPayload
	}
	return msg, nil
}

// SendMessage sends a text message to Telegram. Content over MaxMessageRunes
// goes out as several messages.
func (t *TelegramChannel) SendMessage(ctx context.Context, msg *chat_apps.OutgoingMessage) error {
	chatID, err := strconv.ParseInt(msg.PlatformChatID, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid chat ID: %w", err)
	}
	for _, part := range splitMessage(msg.Content, MaxMessageRunes) {
		if err := ctx.Err(); err != nil {
			return err
		}
		tgMsg := tgbotapi.NewMessage(chatID, part)
		tgMsg.ParseMode = msg.ParseMode
		if _, err := t.bot.Send(tgMsg); err != nil {
			return err
		}
	}
	return nil
}

// splitMessage cuts text into parts of at most limit runes, preferring to
// break after a newline in the second half of a part.
func splitMessage(text string, limit int) []string {
	runes := []rune(text)
	var parts []string
	for len(runes) > limit {
		cut := limit
		for i := limit - 1; i >= limit/2; i-- {
			if runes[i] == '\n' {
				cut = i + 1
				break
			}
		}
		parts = append(parts, string(runes[:cut]))
		runes = runes[cut:]
	}
	return append(parts, string(runes))
}

// DownloadMedia downloads a file from Telegram.
func (t *TelegramChannel) DownloadMedia(ctx context.Context, fileID string) ([]byte, string, error) {
	fileURL, err := t.bot.GetFileDirectURL(fileID)
	if err != nil {
		return nil, "", &channels.ChannelError{Code: "MEDIA_FAILED", Message: "failed to get file info", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fileURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := t.client.Do(req)
	if err != nil {
		return nil, "", &channels.ChannelError{Code: "MEDIA_FAILED", Message: "failed to download media", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("%w: status %d", channels.ErrMediaDownloadFailed, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxPhotoSizeMB<<20))
	if err != nil {
		return nil, "", fmt.Errorf("failed to read response body: %w", err)
	}

	mimeType := resp.Header.Get("Content-Type")
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = http.DetectContentType(data)
	}
	slog.Debug("telegram: downloaded media", "file_id", fileID, "size", len(data), "mime_type", mimeType)
	return data, mimeType, nil
}

// Close closes the Telegram channel.
func (t *TelegramChannel) Close() error {
	return nil
}

var _ channels.ChatChannel = (*TelegramChannel)(nil)
