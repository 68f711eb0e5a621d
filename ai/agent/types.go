// Package agent runs the tool-calling conversation loop against the language model.
package agent

import (
	"context"
	"log/slog"
)

// EventCallback is the callback function type for loop events.
//
// The callback receives:
//   - eventType: The type of event (e.g., "thinking", "tool_use", "tool_result", "answer")
//   - eventData: The event data (can be a struct, string, or nil)
type EventCallback func(eventType string, eventData any) error

// SafeCallbackFunc is a callback that logs errors instead of returning them.
type SafeCallbackFunc func(eventType string, eventData any)

// SafeCallback wraps an EventCallback to log errors instead of propagating them.
// A nil callback yields a no-op.
//
// Usage:
//
//	callbackSafe := SafeCallback(callback)
//	callbackSafe(EventTypeAnswer, result) // Error is logged, not returned
func SafeCallback(callback EventCallback) SafeCallbackFunc {
	if callback == nil {
		return func(string, any) {}
	}
	return func(eventType string, eventData any) {
		if err := callback(eventType, eventData); err != nil {
			slog.Default().LogAttrs(context.Background(), slog.LevelWarn,
				"callback failed (non-critical)",
				slog.String("event_type", eventType),
				slog.Any("error", err),
			)
		}
	}
}

// Event types emitted by the loop.
const (
	EventTypeThinking   = "thinking"    // Model call in flight
	EventTypeToolUse    = "tool_use"    // A tool is about to run
	EventTypeToolResult = "tool_result" // Tool execution result
	EventTypeAnswer     = "answer"      // Final answer
	EventTypeError      = "error"       // Model call failed
)

// ThinkingEvent is sent before each model call.
type ThinkingEvent struct {
	Round     int  `json:"round"`
	MaxRounds int  `json:"max_rounds"`
	Vision    bool `json:"vision"`
}

// ToolUseEvent describes a tool call requested by the model.
type ToolUseEvent struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
	// Manual is set when the call was recovered from JSON in the reply text.
	Manual bool `json:"manual,omitempty"`
}

// ToolResultEvent describes the outcome of a tool call.
type ToolResultEvent struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Result     string `json:"result"`
	IsError    bool   `json:"is_error"`
	DurationMs int64  `json:"duration_ms"`
}
