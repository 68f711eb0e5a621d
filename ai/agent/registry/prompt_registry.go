package registry

import (
	"fmt"
	"sync"
)

// Prompt names used by the tool-calling loop.
const (
	PromptMemoryHeader  = "memory_header"
	PromptToolDirective = "tool_directive"
	PromptToolResult    = "tool_result"
)

// PromptRegistry manages the prompt fragments the loop splices into the conversation.
type PromptRegistry struct {
	mu      sync.RWMutex
	prompts map[string]*PromptTemplate
}

// PromptTemplate represents a versioned prompt fragment.
type PromptTemplate struct {
	Name     string
	Version  string
	Template string
	Enabled  bool
}

// Global prompt registry instance.
var promptRegistry = &PromptRegistry{
	prompts: map[string]*PromptTemplate{
		PromptMemoryHeader: {
			Name:     PromptMemoryHeader,
			Version:  "1",
			Template: "\n\n## What you remember about this user:\n",
			Enabled:  true,
		},
		PromptToolDirective: {
			Name:    PromptToolDirective,
			Version: "1",
			Template: "\n\n## Available Tools:\nYou have access to tools/functions. If a user asks something " +
				"related to these tools (like searching the web, checking the news or adding tasks), " +
				"you MUST use the corresponding tool instead of guessing.",
			Enabled: true,
		},
		PromptToolResult: {
			Name:    PromptToolResult,
			Version: "1",
			// Formatted with the tool name and its result.
			Template: "RESULT FROM TOOL %s: %s\n\nINSTRUCTION: The user cannot see this result yet. " +
				"You MUST now answer the user and include the relevant information from this result in your reply.",
			Enabled: true,
		},
	},
}

// RegisterPrompt registers a prompt template. Built-in prompts may be replaced, others only added once.
func RegisterPrompt(name string, template *PromptTemplate) error {
	promptRegistry.mu.Lock()
	defer promptRegistry.mu.Unlock()

	if existing, exists := promptRegistry.prompts[name]; exists && !isBuiltin(existing.Name) {
		return fmt.Errorf("prompt already registered: %s", name)
	}

	promptRegistry.prompts[name] = template
	return nil
}

func isBuiltin(name string) bool {
	switch name {
	case PromptMemoryHeader, PromptToolDirective, PromptToolResult:
		return true
	}
	return false
}

// GetPrompt retrieves a prompt template by name.
func GetPrompt(name string) (*PromptTemplate, bool) {
	promptRegistry.mu.RLock()
	defer promptRegistry.mu.RUnlock()

	prompt, ok := promptRegistry.prompts[name]
	return prompt, ok
}

// GetPromptTemplate returns the template string for a prompt, or "" when it is missing or disabled.
func GetPromptTemplate(name string) string {
	promptRegistry.mu.RLock()
	defer promptRegistry.mu.RUnlock()

	if prompt, ok := promptRegistry.prompts[name]; ok && prompt.Enabled {
		return prompt.Template
	}
	return ""
}

// ToolResultMessage renders a successful tool result for the model.
func ToolResultMessage(tool, result string) string {
	template := GetPromptTemplate(PromptToolResult)
	if template == "" {
		return result
	}
	return fmt.Sprintf(template, tool, result)
}
