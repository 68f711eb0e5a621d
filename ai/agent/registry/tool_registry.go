// Package registry provides typed tool registration for the tool-calling loop.
//
// A tool is a Go function taking a parameter struct. The JSON schema offered
// to the model is generated from that struct, and the arguments the model
// sends back are decoded into it before the function runs.
package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/sashabaranov/go-openai/jsonschema"

	"github.com/hrygo/aida/ai/core/llm"
)

// ToolCategory represents a category for grouping tools.
type ToolCategory string

const (
	// CategoryMemory groups fact and conversation memory tools.
	CategoryMemory ToolCategory = "memory"
	// CategoryTasks groups task tools.
	CategoryTasks ToolCategory = "tasks"
	// CategorySearch groups web search and news tools.
	CategorySearch ToolCategory = "search"
	// CategoryHome groups home automation tools.
	CategoryHome ToolCategory = "home"
	// CategorySystem groups everything else.
	CategorySystem ToolCategory = "system"
)

var categoryOrder = []ToolCategory{
	CategoryMemory,
	CategoryTasks,
	CategorySearch,
	CategoryHome,
	CategorySystem,
}

// ErrToolNotFound is returned by Invoke for names that were never registered.
var ErrToolNotFound = errors.New("tool not found")

// ArgumentError reports arguments that could not be decoded into the tool's parameter struct.
type ArgumentError struct {
	Tool      string
	Arguments string
	Err       error
}

func (e *ArgumentError) Error() string {
	return fmt.Sprintf("invalid arguments for %s: %v", e.Tool, e.Err)
}

func (e *ArgumentError) Unwrap() error {
	return e.Err
}

// invoker decodes raw arguments and runs the typed handler.
type invoker func(ctx context.Context, args json.RawMessage) (string, error)

// Tool is a registered tool.
type Tool struct {
	Name        string
	Description string
	Category    ToolCategory
	Parameters  json.RawMessage

	invoke invoker
}

// Option customizes a registration.
type Option func(*Tool)

// WithCategory files the tool under a category. Uncategorized tools are inferred from the name.
func WithCategory(category ToolCategory) Option {
	return func(t *Tool) {
		t.Category = category
	}
}

// Registry holds the tools offered to the model. It is safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]*Tool
	order []string
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		tools: make(map[string]*Tool),
	}
}

// Register adds a tool whose arguments decode into P.
// Registering a name twice replaces the earlier tool and keeps its position.
func Register[P any](r *Registry, name, description string, fn func(ctx context.Context, params P) (string, error), opts ...Option) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return errors.New("tool name is required")
	}
	if fn == nil {
		return fmt.Errorf("tool %s has no handler", name)
	}

	var zero P
	schema, err := jsonschema.GenerateSchemaForType(zero)
	if err != nil {
		return fmt.Errorf("generate schema for %s: %w", name, err)
	}
	params, err := json.Marshal(schema)
	if err != nil {
		return fmt.Errorf("marshal schema for %s: %w", name, err)
	}

	tool := &Tool{
		Name:        name,
		Description: description,
		Parameters:  params,
		invoke: func(ctx context.Context, args json.RawMessage) (string, error) {
			var p P
			if err := decodeArguments(args, &p, schema.Required); err != nil {
				return "", &ArgumentError{Tool: name, Arguments: string(args), Err: err}
			}
			return fn(ctx, p)
		},
	}
	for _, opt := range opts {
		opt(tool)
	}
	if tool.Category == "" {
		tool.Category = inferCategory(name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[name]; exists {
		slog.Debug("registry: replacing tool", "tool", name)
	} else {
		r.order = append(r.order, name)
	}
	r.tools[name] = tool
	return nil
}

// MustRegister is Register for startup code, panicking on failure.
func MustRegister[P any](r *Registry, name, description string, fn func(ctx context.Context, params P) (string, error), opts ...Option) {
	if err := Register(r, name, description, fn, opts...); err != nil {
		panic(err)
	}
}

// decodeArguments accepts an object, an empty payload, or null.
// Some models send the object JSON-encoded as a string, which is unwrapped once.
// Every name in required must be present and not null.
func decodeArguments(args json.RawMessage, target any, required []string) error {
	trimmed := strings.TrimSpace(string(args))
	if strings.HasPrefix(trimmed, `"`) {
		var inner string
		if err := json.Unmarshal([]byte(trimmed), &inner); err != nil {
			return err
		}
		trimmed = strings.TrimSpace(inner)
	}
	if trimmed == "" || trimmed == "null" {
		trimmed = "{}"
	}

	if len(required) > 0 {
		var fields map[string]json.RawMessage
		if err := json.Unmarshal([]byte(trimmed), &fields); err != nil {
			return err
		}
		var missing []string
		for _, name := range required {
			if raw, ok := fields[name]; !ok || strings.TrimSpace(string(raw)) == "null" {
				missing = append(missing, name)
			}
		}
		if len(missing) > 0 {
			return fmt.Errorf("missing required arguments: %s", strings.Join(missing, ", "))
		}
	}
	return json.Unmarshal([]byte(trimmed), target)
}

// Invoke runs a tool with JSON encoded arguments.
// Handler panics are recovered and returned as errors.
func (r *Registry) Invoke(ctx context.Context, name, args string) (result string, err error) {
	r.mu.RLock()
	tool, ok := r.tools[name]
	r.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrToolNotFound, name)
	}

	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("registry: tool panicked", "tool", name, "panic", rec)
			result, err = "", fmt.Errorf("tool %s panicked: %v", name, rec)
		}
	}()
	return tool.invoke(ctx, json.RawMessage(args))
}

// Has reports whether a tool is registered.
func (r *Registry) Has(name string) bool {
	if r == nil {
		return false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.tools[name]
	return ok
}

// Get returns a registered tool.
func (r *Registry) Get(name string) (*Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tool, ok := r.tools[name]
	return tool, ok
}

// Descriptors returns the tool definitions for the model in registration order.
func (r *Registry) Descriptors() []llm.ToolDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	descriptors := make([]llm.ToolDescriptor, 0, len(r.order))
	for _, name := range r.order {
		tool := r.tools[name]
		descriptors = append(descriptors, llm.ToolDescriptor{
			Name:        tool.Name,
			Description: tool.Description,
			Parameters:  tool.Parameters,
		})
	}
	return descriptors
}

// Names returns the registered tool names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}

// ListByCategory returns the tool names of a category in registration order.
func (r *Registry) ListByCategory(category ToolCategory) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0)
	for _, name := range r.order {
		if r.tools[name].Category == category {
			names = append(names, name)
		}
	}
	return names
}

// Describe returns a formatted description of all registered tools grouped by category.
func (r *Registry) Describe() string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.tools) == 0 {
		return "No tools registered"
	}

	var sb strings.Builder
	sb.Grow(512)
	for _, cat := range categoryOrder {
		first := true
		for _, name := range r.order {
			tool := r.tools[name]
			if tool.Category != cat {
				continue
			}
			if first {
				sb.WriteString(fmt.Sprintf("\n=== %s ===\n", strings.ToUpper(string(cat))))
				first = false
			}
			sb.WriteString(fmt.Sprintf("- %s: %s\n", tool.Name, tool.Description))
		}
	}
	return sb.String()
}

// inferCategory infers a category from the tool name.
func inferCategory(name string) ToolCategory {
	switch {
	case strings.Contains(name, "memory") || strings.Contains(name, "fact"):
		return CategoryMemory
	case strings.Contains(name, "task"):
		return CategoryTasks
	case strings.Contains(name, "search") || strings.Contains(name, "news"):
		return CategorySearch
	case strings.Contains(name, "light") || strings.Contains(name, "switch") || strings.Contains(name, "home"):
		return CategoryHome
	default:
		return CategorySystem
	}
}
