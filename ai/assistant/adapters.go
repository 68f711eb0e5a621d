package assistant

import (
	"context"
	"strings"

	"github.com/hrygo/aida/ai/agent"
	"github.com/hrygo/aida/plugin/chat_apps"
	"github.com/hrygo/aida/plugin/chat_apps/channels"
	"github.com/hrygo/aida/plugin/vision"
)

// asker sends action prompts through the conversation loop, so the answer
// becomes part of the history the user can follow up on.
type asker struct {
	loop *agent.Loop
}

func (a asker) Ask(ctx context.Context, prompt string) (string, error) {
	return a.loop.Chat(ctx, prompt, nil)
}

// DefaultImagePrompt is used for photos sent without a caption.
const DefaultImagePrompt = "Describe this image."

// ChatHandler answers chat platform messages through ProcessMessage, without speech.
// Photos are scaled down and sent to the vision model with their caption.
func (a *Assistant) ChatHandler() channels.MessageHandler {
	return func(ctx context.Context, msg *chat_apps.IncomingMessage) (*chat_apps.OutgoingMessage, error) {
		opts := ProcessOptions{Source: SourceChat}
		text := strings.TrimSpace(msg.Content)

		if msg.Type == chat_apps.MessageTypePhoto {
			image, err := vision.Prepare(msg.MediaData, vision.DefaultMaxSide)
			if err != nil {
				return nil, err
			}
			opts.Images = []string{image}
			if text == "" {
				text = DefaultImagePrompt
			}
		}
		if text == "" {
			return nil, nil
		}

		reply := a.ProcessMessage(ctx, text, opts)
		return &chat_apps.OutgoingMessage{PlatformChatID: msg.PlatformChatID, Content: reply.Text}, nil
	}
}
