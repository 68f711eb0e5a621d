package telegram

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/aida/plugin/chat_apps"
	"github.com/hrygo/aida/plugin/chat_apps/channels"
)

type fakeBot struct {
	mu      sync.Mutex
	sent    []tgbotapi.MessageConfig
	updates chan tgbotapi.Update
	fileURL string
	stopped bool
}

func newFakeBot() *fakeBot {
	return &fakeBot{updates: make(chan tgbotapi.Update, 8)}
}

func (f *fakeBot) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if msg, ok := c.(tgbotapi.MessageConfig); ok {
		f.sent = append(f.sent, msg)
	}
	return tgbotapi.Message{}, nil
}

func (f *fakeBot) GetFileDirectURL(fileID string) (string, error) {
	if f.fileURL == "" {
		return "", errors.New("no such file")
	}
	return f.fileURL + "/" + fileID, nil
}

func (f *fakeBot) GetUpdatesChan(tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return f.updates
}

func (f *fakeBot) StopReceivingUpdates() {
	f.mu.Lock()
	f.stopped = true
	f.mu.Unlock()
}

func (f *fakeBot) sentTexts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, m := range f.sent {
		out = append(out, m.Text)
	}
	return out
}

func textUpdate(id int, chatID int64, text string) tgbotapi.Update {
	return tgbotapi.Update{
		UpdateID: id,
		Message: &tgbotapi.Message{
			Chat: &tgbotapi.Chat{ID: chatID},
			From: &tgbotapi.User{ID: 7, UserName: "sam"},
			Text: text,
			Date: int(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC).Unix()),
		},
	}
}

func echoHandler(ctx context.Context, msg *chat_apps.IncomingMessage) (*chat_apps.OutgoingMessage, error) {
	return &chat_apps.OutgoingMessage{Content: "you said: " + msg.Content}, nil
}

func TestParseUpdate_Text(t *testing.T) {
	ch := newChannel(newFakeBot(), &TelegramConfig{})

	msg, err := ch.ParseUpdate(context.Background(), textUpdate(3, 42, "hello"))
	require.NoError(t, err)
	assert.Equal(t, chat_apps.PlatformTelegram, msg.Platform)
	assert.Equal(t, "42", msg.PlatformChatID)
	assert.Equal(t, "7", msg.PlatformUserID)
	assert.Equal(t, "hello", msg.Content)
	assert.Equal(t, chat_apps.MessageTypeText, msg.Type)
	assert.Equal(t, "3", msg.Metadata["update_id"])
	assert.Equal(t, "sam", msg.Metadata["username"])
}

func TestParseUpdate_Rejects(t *testing.T) {
	ch := newChannel(newFakeBot(), &TelegramConfig{AllowedChatIDs: []int64{42}})

	_, err := ch.ParseUpdate(context.Background(), textUpdate(1, 99, "hello"))
	assert.ErrorIs(t, err, channels.ErrUnauthorized)

	_, err = ch.ParseUpdate(context.Background(), tgbotapi.Update{UpdateID: 2})
	assert.ErrorIs(t, err, channels.ErrInvalidPayload)

	_, err = ch.ParseUpdate(context.Background(), textUpdate(3, 42, ""))
	assert.ErrorIs(t, err, channels.ErrInvalidPayload)
}

func TestParseUpdate_PhotoDownloaded(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/big", r.URL.Path)
		w.Header().Set("Content-Type", "image/jpeg")
		_, _ = w.Write([]byte("jpeg-bytes"))
	}))
	defer srv.Close()

	bot := newFakeBot()
	bot.fileURL = srv.URL
	ch := newChannel(bot, &TelegramConfig{})

	update := textUpdate(1, 42, "")
	update.Message.Caption = "what is this?"
	update.Message.Photo = []tgbotapi.PhotoSize{{FileID: "small"}, {FileID: "big"}}

	msg, err := ch.ParseUpdate(context.Background(), update)
	require.NoError(t, err)
	assert.Equal(t, chat_apps.MessageTypePhoto, msg.Type)
	assert.Equal(t, "what is this?", msg.Content)
	assert.Equal(t, []byte("jpeg-bytes"), msg.MediaData)
	assert.Equal(t, "image/jpeg", msg.MimeType)
}

func TestDownloadMedia_Failures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	bot := newFakeBot()
	ch := newChannel(bot, &TelegramConfig{})

	_, _, err := ch.DownloadMedia(context.Background(), "x")
	var chErr *channels.ChannelError
	require.ErrorAs(t, err, &chErr)
	assert.Equal(t, "MEDIA_FAILED", chErr.Code)

	bot.fileURL = srv.URL
	_, _, err = ch.DownloadMedia(context.Background(), "x")
	assert.ErrorIs(t, err, channels.ErrMediaDownloadFailed)
}

func TestSendMessage_InvalidChatID(t *testing.T) {
	ch := newChannel(newFakeBot(), &TelegramConfig{})
	err := ch.SendMessage(context.Background(), &chat_apps.OutgoingMessage{PlatformChatID: "abc", Content: "hi"})
	assert.Error(t, err)
}

func TestSendMessage_SplitsLongText(t *testing.T) {
	bot := newFakeBot()
	ch := newChannel(bot, &TelegramConfig{})

	long := strings.Repeat("a", MaxMessageRunes-10) + "\n" + strings.Repeat("b", 20)
	require.NoError(t, ch.SendMessage(context.Background(), &chat_apps.OutgoingMessage{PlatformChatID: "1", Content: long}))

	texts := bot.sentTexts()
	require.Len(t, texts, 2)
	assert.Equal(t, strings.Repeat("a", MaxMessageRunes-10)+"\n", texts[0])
	assert.Equal(t, strings.Repeat("b", 20), texts[1])
}

func TestSplitMessage(t *testing.T) {
	assert.Equal(t, []string{"short"}, splitMessage("short", 10))
	assert.Equal(t, []string{"abcd", "efgh", "ij"}, splitMessage("abcdefghij", 4))
	assert.Equal(t, []string{"åøæ", "å"}, splitMessage("åøæå", 3))
}

func TestRun_RepliesInOrder(t *testing.T) {
	bot := newFakeBot()
	ch := newChannel(bot, &TelegramConfig{AllowedChatIDs: []int64{42}})

	bot.updates <- textUpdate(1, 42, "one")
	bot.updates <- textUpdate(2, 99, "intruder")
	bot.updates <- textUpdate(3, 42, "two")
	close(bot.updates)

	require.NoError(t, ch.Run(context.Background(), echoHandler))
	assert.Equal(t, []string{"you said: one", "you said: two"}, bot.sentTexts())
	assert.True(t, bot.stopped)
}

func TestRun_HandlerErrorIsReported(t *testing.T) {
	bot := newFakeBot()
	ch := newChannel(bot, &TelegramConfig{})

	bot.updates <- textUpdate(1, 42, "boom")
	close(bot.updates)

	failing := func(context.Context, *chat_apps.IncomingMessage) (*chat_apps.OutgoingMessage, error) {
		return nil, errors.New("model offline")
	}
	require.NoError(t, ch.Run(context.Background(), failing))
	assert.Equal(t, []string{"Sorry, something went wrong: model offline"}, bot.sentTexts())
}

func TestRun_StopsOnContext(t *testing.T) {
	bot := newFakeBot()
	ch := newChannel(bot, &TelegramConfig{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- ch.Run(ctx, echoHandler) }()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
