package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hrygo/aida/ai/agent/registry"
	"github.com/hrygo/aida/ai/core/llm"
	"github.com/hrygo/aida/ai/metrics"
)

// DefaultMaxRounds bounds the model calls of a single Chat.
const DefaultMaxRounds = 5

// Replies used when the model cannot produce an answer.
const (
	ModelErrorReply = "Sorry, I'm having trouble reaching my language model right now."
	MaxRoundsReply  = "Sorry, I couldn't finish that request."
)

// Config configures a Loop.
type Config struct {
	SystemPrompt string
	MaxRounds    int
	Metrics      metrics.Recorder
	Callback     EventCallback
}

// Loop keeps the conversation history and drives the model through tool calls
// until it produces a plain answer.
type Loop struct {
	llm       llm.Service
	tools     *registry.Registry
	maxRounds int
	metrics   metrics.Recorder

	// chatMu serializes Chat calls. mu guards the fields below it.
	chatMu        sync.Mutex
	mu            sync.RWMutex
	history       []llm.Message
	memoryContext string
	callback      EventCallback
}

// NewLoop creates a loop whose history starts with the system prompt.
// tools may be nil.
func NewLoop(service llm.Service, tools *registry.Registry, cfg Config) *Loop {
	maxRounds := cfg.MaxRounds
	if maxRounds <= 0 {
		maxRounds = DefaultMaxRounds
	}
	return &Loop{
		llm:       service,
		tools:     tools,
		maxRounds: maxRounds,
		metrics:   metrics.OrNop(cfg.Metrics),
		history:   []llm.Message{llm.SystemPrompt(cfg.SystemPrompt)},
		callback:  cfg.Callback,
	}
}

// SetCallback replaces the event callback.
func (l *Loop) SetCallback(callback EventCallback) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.callback = callback
}

// SetMemoryContext sets the memory text injected into the system prompt. "" clears it.
func (l *Loop) SetMemoryContext(memory string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.memoryContext = memory
}

// MemoryContext returns the current memory text.
func (l *Loop) MemoryContext() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.memoryContext
}

// ClearHistory drops everything but the system prompt.
func (l *Loop) ClearHistory() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.history = l.history[:1:1]
}

// History returns a copy of the conversation history.
func (l *Loop) History() []llm.Message {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]llm.Message(nil), l.history...)
}

// LoadHistory appends earlier messages after the system prompt, replacing the current history.
func (l *Loop) LoadHistory(messages []llm.Message) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.history = append(l.history[:1:1], messages...)
}

func (l *Loop) appendHistory(messages ...llm.Message) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.history = append(l.history, messages...)
}

// buildMessages renders the history for one model call.
// The system entry carries the memory context and, unless tools are off for the round, the tool directive.
func (l *Loop) buildMessages(toolsEnabled bool) []llm.Message {
	l.mu.RLock()
	defer l.mu.RUnlock()

	messages := make([]llm.Message, len(l.history))
	copy(messages, l.history)
	if len(messages) > 0 && messages[0].Role == llm.RoleSystem {
		system := messages[0].Content
		if l.memoryContext != "" {
			system += registry.GetPromptTemplate(registry.PromptMemoryHeader) + l.memoryContext
		}
		if toolsEnabled {
			system += registry.GetPromptTemplate(registry.PromptToolDirective)
		}
		messages[0].Content = system
	}
	return messages
}

// Chat sends a user message and returns the model's final answer.
// Images switch every round of this call to the vision model with tools disabled.
// On model failure it returns ModelErrorReply together with the error.
func (l *Loop) Chat(ctx context.Context, message string, images []string) (string, error) {
	l.chatMu.Lock()
	defer l.chatMu.Unlock()

	l.mu.RLock()
	emit := SafeCallback(l.callback)
	l.mu.RUnlock()

	l.appendHistory(llm.Message{Role: llm.RoleUser, Content: message, Images: images})

	vision := len(images) > 0
	toolsEnabled := !vision && l.tools.Len() > 0
	var lastText string

	for round := 1; round <= l.maxRounds; round++ {
		if err := ctx.Err(); err != nil {
			return ModelErrorReply, err
		}
		emit(EventTypeThinking, &ThinkingEvent{Round: round, MaxRounds: l.maxRounds, Vision: vision})

		resp, err := l.complete(ctx, l.buildMessages(toolsEnabled), vision, toolsEnabled)
		if err != nil {
			emit(EventTypeError, err.Error())
			return ModelErrorReply, err
		}

		content := resp.Content
		calls := resp.ToolCalls
		manual := false
		if len(calls) == 0 {
			if call, ok := parseManualToolCall(content); ok {
				calls = []llm.ToolCall{call}
				content = ""
				manual = true
			}
		}

		l.appendHistory(llm.Message{Role: llm.RoleAssistant, Content: content, ToolCalls: calls})
		if content != "" {
			lastText = content
		}
		if len(calls) == 0 {
			emit(EventTypeAnswer, content)
			return content, nil
		}

		for _, call := range calls {
			emit(EventTypeToolUse, &ToolUseEvent{
				ID:        call.ID,
				Name:      call.Function.Name,
				Arguments: call.Function.Arguments,
				Manual:    manual,
			})
			l.appendHistory(l.runTool(ctx, call, emit))
		}
	}

	l.metrics.RecordToolLoopOverflow()
	slog.Warn("agent: tool loop exceeded max rounds", "max_rounds", l.maxRounds)
	if lastText != "" {
		return lastText, nil
	}
	return MaxRoundsReply, nil
}

func (l *Loop) complete(ctx context.Context, messages []llm.Message, vision, toolsEnabled bool) (*llm.ChatResponse, error) {
	kind := "chat"
	if vision {
		kind = "vision"
	}
	start := time.Now()

	var (
		resp  *llm.ChatResponse
		stats *llm.LLMCallStats
		err   error
	)
	switch {
	case vision:
		resp, stats, err = l.llm.ChatVision(ctx, messages)
	case toolsEnabled:
		resp, stats, err = l.llm.ChatWithTools(ctx, messages, l.tools.Descriptors())
	default:
		resp, stats, err = l.llm.ChatWithTools(ctx, messages, nil)
	}

	model := l.llm.Model()
	l.metrics.RecordLLMCall(model, kind, time.Since(start), err == nil)
	if err != nil {
		return nil, fmt.Errorf("model call failed: %w", err)
	}
	if resp == nil {
		return nil, errors.New("model returned no response")
	}
	if stats != nil {
		l.metrics.RecordLLMTokens(model, "prompt", stats.PromptTokens)
		l.metrics.RecordLLMTokens(model, "completion", stats.CompletionTokens)
	}
	return resp, nil
}

// runTool invokes one tool call and renders the tool message for the history.
func (l *Loop) runTool(ctx context.Context, call llm.ToolCall, emit SafeCallbackFunc) llm.Message {
	name := call.Function.Name
	msg := llm.Message{Role: llm.RoleTool, ToolCallID: call.ID, Name: name}

	if !l.tools.Has(name) {
		slog.Warn("agent: model requested unknown tool", "tool", name)
		l.metrics.RecordToolCall(name, 0, false, "not_found")
		msg.Content = fmt.Sprintf("Error: Tool '%s' not found.", name)
		emit(EventTypeToolResult, &ToolResultEvent{ID: call.ID, Name: name, Result: msg.Content, IsError: true})
		return msg
	}

	slog.Debug("agent: executing tool", "tool", name, "args", call.Function.Arguments)
	start := time.Now()
	result, err := l.tools.Invoke(ctx, name, call.Function.Arguments)
	latency := time.Since(start)

	if err != nil {
		slog.Warn("agent: tool failed", "tool", name, "error", err)
		l.metrics.RecordToolCall(name, latency, false, errorType(err))
		result = fmt.Sprintf("Error executing tool %s: %v", name, err)
	} else {
		l.metrics.RecordToolCall(name, latency, true, "")
	}
	emit(EventTypeToolResult, &ToolResultEvent{
		ID:         call.ID,
		Name:       name,
		Result:     result,
		IsError:    err != nil,
		DurationMs: latency.Milliseconds(),
	})

	msg.Content = registry.ToolResultMessage(name, result)
	return msg
}

func errorType(err error) string {
	var argErr *registry.ArgumentError
	switch {
	case errors.As(err, &argErr):
		return "invalid_arguments"
	case errors.Is(err, registry.ErrToolNotFound):
		return "not_found"
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "execution"
	}
}

// VisionChat asks the vision model about images in a single turn outside the history.
func (l *Loop) VisionChat(ctx context.Context, prompt string, images []string) (string, error) {
	resp, err := l.complete(ctx, []llm.Message{{Role: llm.RoleUser, Content: prompt, Images: images}}, true, false)
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}

// IsAvailable reports whether the model endpoint answers.
func (l *Loop) IsAvailable(ctx context.Context) bool {
	return l.llm.IsAvailable(ctx)
}

// Tools returns the registry offered to the model.
func (l *Loop) Tools() *registry.Registry {
	return l.tools
}
