package main

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/hrygo/aida/plugin/chat_apps"
	"github.com/hrygo/aida/plugin/chat_apps/channels"
	"github.com/hrygo/aida/plugin/webhook"
)

const chatNotifyTimeout = 15 * time.Second

// chatNotifier forwards reminders to the allowed chats of the chat channels.
type chatNotifier struct {
	router  *channels.ChannelRouter
	targets map[chat_apps.Platform][]string
}

func newChatNotifier(router *channels.ChannelRouter, telegramChatIDs []int64) *chatNotifier {
	if len(telegramChatIDs) == 0 {
		return nil
	}
	chats := make([]string, 0, len(telegramChatIDs))
	for _, id := range telegramChatIDs {
		chats = append(chats, strconv.FormatInt(id, 10))
	}
	return &chatNotifier{
		router:  router,
		targets: map[chat_apps.Platform][]string{chat_apps.PlatformTelegram: chats},
	}
}

func (n *chatNotifier) PostAsync(payload *webhook.Payload) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), chatNotifyTimeout)
		defer cancel()
		if err := n.router.Broadcast(ctx, n.targets, payload.Text); err != nil {
			slog.Warn("failed to forward reminder to chats", "task_id", payload.TaskID, "error", err)
		}
	}()
}
