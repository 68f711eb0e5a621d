package registry

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type weatherParams struct {
	City string `json:"city" description:"City to look up"`
}

type taskParams struct {
	Title    string `json:"title" description:"Task title"`
	Priority string `json:"priority,omitempty" description:"high, medium or low"`
}

type noParams struct{}

func newWeatherRegistry(t *testing.T, calls *[]string) *Registry {
	t.Helper()
	r := New()
	require.NoError(t, Register(r, "get_weather", "Current weather for a city",
		func(_ context.Context, p weatherParams) (string, error) {
			*calls = append(*calls, p.City)
			return "Sunny in " + p.City, nil
		}))
	return r
}

func TestRegisterGeneratesSchema(t *testing.T) {
	r := New()
	require.NoError(t, Register(r, "add_task", "Add a task",
		func(_ context.Context, p taskParams) (string, error) { return p.Title, nil }))

	descriptors := r.Descriptors()
	require.Len(t, descriptors, 1)
	assert.Equal(t, "add_task", descriptors[0].Name)
	assert.Equal(t, "Add a task", descriptors[0].Description)

	var schema struct {
		Type       string                    `json:"type"`
		Properties map[string]map[string]any `json:"properties"`
		Required   []string                  `json:"required"`
	}
	require.NoError(t, json.Unmarshal(descriptors[0].Parameters, &schema))
	assert.Equal(t, "object", schema.Type)
	assert.Equal(t, "string", schema.Properties["title"]["type"])
	assert.Equal(t, "Task title", schema.Properties["title"]["description"])
	assert.Contains(t, schema.Required, "title")
	assert.NotContains(t, schema.Required, "priority")
}

func TestInvoke(t *testing.T) {
	var calls []string
	r := newWeatherRegistry(t, &calls)

	tests := []struct {
		name    string
		tool    string
		args    string
		want    string
		wantErr func(t *testing.T, err error)
	}{
		{
			name: "object arguments",
			tool: "get_weather",
			args: `{"city":"Oslo"}`,
			want: "Sunny in Oslo",
		},
		{
			name: "string encoded arguments",
			tool: "get_weather",
			args: `"{\"city\":\"Bergen\"}"`,
			want: "Sunny in Bergen",
		},
		{
			name: "missing required argument",
			tool: "get_weather",
			args: "{}",
			wantErr: func(t *testing.T, err error) {
				var argErr *ArgumentError
				require.ErrorAs(t, err, &argErr)
				assert.Equal(t, "get_weather", argErr.Tool)
				assert.Contains(t, err.Error(), "missing required arguments: city")
			},
		},
		{
			name: "empty payload lacks required argument",
			tool: "get_weather",
			args: "",
			wantErr: func(t *testing.T, err error) {
				var argErr *ArgumentError
				assert.ErrorAs(t, err, &argErr)
			},
		},
		{
			name: "null required argument",
			tool: "get_weather",
			args: `{"city":null}`,
			wantErr: func(t *testing.T, err error) {
				assert.ErrorContains(t, err, "missing required arguments: city")
			},
		},
		{
			name: "unknown tool",
			tool: "get_time",
			args: "{}",
			wantErr: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, ErrToolNotFound)
				assert.Contains(t, err.Error(), "get_time")
			},
		},
		{
			name: "malformed arguments",
			tool: "get_weather",
			args: `{"city":`,
			wantErr: func(t *testing.T, err error) {
				var argErr *ArgumentError
				require.ErrorAs(t, err, &argErr)
				assert.Equal(t, "get_weather", argErr.Tool)
				assert.Equal(t, `{"city":`, argErr.Arguments)
			},
		},
		{
			name: "wrong argument type",
			tool: "get_weather",
			args: `{"city":42}`,
			wantErr: func(t *testing.T, err error) {
				var argErr *ArgumentError
				assert.ErrorAs(t, err, &argErr)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.Invoke(context.Background(), tt.tool, tt.args)
			if tt.wantErr != nil {
				require.Error(t, err)
				tt.wantErr(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
	assert.Equal(t, []string{"Oslo", "Bergen"}, calls)
}

func TestInvokeOptionalArgumentsMayBeOmitted(t *testing.T) {
	r := New()
	require.NoError(t, Register(r, "add_task", "Add a task",
		func(_ context.Context, p taskParams) (string, error) { return p.Title + "|" + p.Priority, nil }))
	require.NoError(t, Register(r, "list_tasks", "List tasks",
		func(context.Context, noParams) (string, error) { return "none", nil }))

	got, err := r.Invoke(context.Background(), "add_task", `{"title":"water plants"}`)
	require.NoError(t, err)
	assert.Equal(t, "water plants|", got)

	got, err = r.Invoke(context.Background(), "list_tasks", "")
	require.NoError(t, err)
	assert.Equal(t, "none", got)
}

func TestInvokeRecoversPanics(t *testing.T) {
	r := New()
	require.NoError(t, Register(r, "explode", "Always panics",
		func(context.Context, noParams) (string, error) { panic("boom") }))

	result, err := r.Invoke(context.Background(), "explode", "{}")
	require.Error(t, err)
	assert.Empty(t, result)
	assert.Contains(t, err.Error(), "boom")
}

func TestInvokeReturnsHandlerError(t *testing.T) {
	r := New()
	handlerErr := errors.New("service down")
	require.NoError(t, Register(r, "web_search", "Search the web",
		func(context.Context, noParams) (string, error) { return "", handlerErr }))

	_, err := r.Invoke(context.Background(), "web_search", "{}")
	assert.ErrorIs(t, err, handlerErr)
}

func TestLastRegistrationWins(t *testing.T) {
	r := New()
	require.NoError(t, Register(r, "a", "first", func(context.Context, noParams) (string, error) { return "1", nil }))
	require.NoError(t, Register(r, "b", "second", func(context.Context, noParams) (string, error) { return "2", nil }))
	require.NoError(t, Register(r, "a", "replaced", func(context.Context, noParams) (string, error) { return "3", nil }))

	assert.Equal(t, 2, r.Len())
	assert.Equal(t, []string{"a", "b"}, r.Names())
	assert.Equal(t, "replaced", r.Descriptors()[0].Description)

	got, err := r.Invoke(context.Background(), "a", "{}")
	require.NoError(t, err)
	assert.Equal(t, "3", got)
}

func TestRegisterValidation(t *testing.T) {
	r := New()
	assert.Error(t, Register(r, "  ", "blank", func(context.Context, noParams) (string, error) { return "", nil }))
	assert.Error(t, Register[noParams](r, "nil_handler", "no handler", nil))
	assert.Zero(t, r.Len())
	assert.Panics(t, func() {
		MustRegister[noParams](r, "", "blank", nil)
	})
}

func TestCategories(t *testing.T) {
	r := New()
	noop := func(context.Context, noParams) (string, error) { return "", nil }
	MustRegister(r, "remember_fact", "Remember a fact", noop)
	MustRegister(r, "add_task", "Add a task", noop)
	MustRegister(r, "web_search", "Search", noop)
	MustRegister(r, "turn_on_light", "Lights", noop)
	MustRegister(r, "get_time", "Clock", noop, WithCategory(CategorySystem))

	assert.Equal(t, []string{"remember_fact"}, r.ListByCategory(CategoryMemory))
	assert.Equal(t, []string{"add_task"}, r.ListByCategory(CategoryTasks))
	assert.Equal(t, []string{"web_search"}, r.ListByCategory(CategorySearch))
	assert.Equal(t, []string{"turn_on_light"}, r.ListByCategory(CategoryHome))

	description := r.Describe()
	assert.True(t, strings.Index(description, "=== MEMORY ===") < strings.Index(description, "=== SYSTEM ==="))
	assert.Contains(t, description, "- get_time: Clock")
	assert.Equal(t, "No tools registered", New().Describe())
}

func TestToolResultMessage(t *testing.T) {
	msg := ToolResultMessage("get_weather", "Sunny")
	assert.True(t, strings.HasPrefix(msg, "RESULT FROM TOOL get_weather: Sunny"))
	assert.Contains(t, msg, "The user cannot see this result yet")

	assert.NotEmpty(t, GetPromptTemplate(PromptToolDirective))
	require.NoError(t, RegisterPrompt("custom_note", &PromptTemplate{Name: "custom_note", Template: "note", Enabled: true}))
	assert.Error(t, RegisterPrompt("custom_note", &PromptTemplate{Name: "custom_note", Enabled: true}))
	assert.Equal(t, "note", GetPromptTemplate("custom_note"))
}
