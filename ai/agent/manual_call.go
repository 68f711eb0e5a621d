package agent

import (
	"encoding/json"
	"log/slog"
	"regexp"
	"strings"

	"github.com/lithammer/shortuuid/v4"

	"github.com/hrygo/aida/ai/core/llm"
)

// ManualCallPrefix prefixes the ids of tool calls recovered from reply text.
const ManualCallPrefix = "manual_"

// manualCallPattern finds a {"name": "...", "parameters": {...}} object in free text.
var manualCallPattern = regexp.MustCompile(`(?s)\{.*"name".*".*".*"parameters".*\{.*\}.*\}`)

// parseManualToolCall is a best-effort shim for local models that print a tool
// call as JSON instead of using the structured tool-call channel.
// It returns false, leaving the text untouched, whenever the text does not hold
// exactly such an object.
func parseManualToolCall(content string) (llm.ToolCall, bool) {
	if !strings.Contains(content, "{") {
		return llm.ToolCall{}, false
	}
	raw := manualCallPattern.FindString(content)
	if raw == "" {
		return llm.ToolCall{}, false
	}

	var data map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		slog.Debug("agent: failed to parse manual tool call", "error", err)
		return llm.ToolCall{}, false
	}
	rawName, hasName := data["name"]
	params, hasParams := data["parameters"]
	if !hasName || !hasParams {
		return llm.ToolCall{}, false
	}
	var name string
	if err := json.Unmarshal(rawName, &name); err != nil || strings.TrimSpace(name) == "" {
		return llm.ToolCall{}, false
	}

	slog.Debug("agent: caught manual JSON tool call", "tool", name)
	return llm.ToolCall{
		ID:   ManualCallPrefix + shortuuid.New(),
		Type: "function",
		Function: llm.FunctionCall{
			Name:      name,
			Arguments: string(params),
		},
	}, true
}
