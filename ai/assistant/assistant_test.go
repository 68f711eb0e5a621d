package assistant

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/aida/ai/agent"
	"github.com/hrygo/aida/ai/agent/registry"
	"github.com/hrygo/aida/ai/conversation"
	"github.com/hrygo/aida/ai/core/llm"
	"github.com/hrygo/aida/ai/memory"
	"github.com/hrygo/aida/ai/tasks"
	"github.com/hrygo/aida/plugin/actions"
	"github.com/hrygo/aida/plugin/chat_apps"
	"github.com/hrygo/aida/plugin/webfetch"
	"github.com/hrygo/aida/plugin/webhook"
	"github.com/hrygo/aida/store"
	"github.com/hrygo/aida/store/storetest"
)

// mockLLM replays scripted responses and records every request.
type mockLLM struct {
	mu        sync.Mutex
	responses []*llm.ChatResponse
	err       error
	calls     int
	vision    int
}

func (m *mockLLM) next(vision bool) (*llm.ChatResponse, *llm.LLMCallStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if vision {
		m.vision++
	}
	if m.err != nil {
		return nil, nil, m.err
	}
	if len(m.responses) == 0 {
		return &llm.ChatResponse{Content: "done"}, &llm.LLMCallStats{}, nil
	}
	resp := m.responses[0]
	m.responses = m.responses[1:]
	return resp, &llm.LLMCallStats{}, nil
}

func (m *mockLLM) Chat(context.Context, []llm.Message) (string, *llm.LLMCallStats, error) {
	resp, stats, err := m.next(false)
	if err != nil {
		return "", nil, err
	}
	return resp.Content, stats, nil
}

func (m *mockLLM) ChatWithTools(context.Context, []llm.Message, []llm.ToolDescriptor) (*llm.ChatResponse, *llm.LLMCallStats, error) {
	return m.next(false)
}

func (m *mockLLM) ChatVision(context.Context, []llm.Message) (*llm.ChatResponse, *llm.LLMCallStats, error) {
	return m.next(true)
}

func (m *mockLLM) IsAvailable(context.Context) bool { return m.err == nil }

func (m *mockLLM) Model() string { return "mock" }

func (m *mockLLM) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

type mockWeb struct {
	mu      sync.Mutex
	queries []string
	results []webfetch.Result
}

func (w *mockWeb) Search(_ context.Context, query string, _ int) []webfetch.Result {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.queries = append(w.queries, query)
	return w.results
}

type mockBrowser struct {
	searches []string
}

func (b *mockBrowser) Navigate(context.Context, string) error { return nil }
func (b *mockBrowser) Search(_ context.Context, q string) error {
	b.searches = append(b.searches, q)
	return nil
}
func (b *mockBrowser) Close(context.Context) error { return nil }

type mockNotifier struct {
	payloads []*webhook.Payload
}

func (n *mockNotifier) PostAsync(p *webhook.Payload) {
	n.payloads = append(n.payloads, p)
}

type fixture struct {
	assistant *Assistant
	llm       *mockLLM
	web       *mockWeb
	browser   *mockBrowser
	store     *store.Store
	memory    *memory.Manager
	tasks     *tasks.Manager
	notifier  *mockNotifier
}

func newFixture(t *testing.T, responses []*llm.ChatResponse, extra *registry.Registry) *fixture {
	t.Helper()
	s, clock := storetest.New(t)
	mem := memory.NewManager(s, nil, nil)
	taskManager := tasks.NewManager(s)
	taskManager.SetClock(clock.Now)

	f := &fixture{
		llm:      &mockLLM{responses: responses},
		web:      &mockWeb{results: []webfetch.Result{{URL: "https://yr.no", Title: "Yr", Content: "Sunny in Oslo"}}},
		browser:  &mockBrowser{},
		store:    s,
		memory:   mem,
		tasks:    taskManager,
		notifier: &mockNotifier{},
	}
	a, err := New(Config{
		WakeWord:      "Aida",
		SystemPrompt:  "You are Aida.",
		MemoryEnabled: true,
		TasksEnabled:  true,
	}, Deps{
		LLM:      f.llm,
		Memory:   mem,
		Tasks:    taskManager,
		Actions:  actions.Deps{Web: f.web, Browser: f.browser},
		Tools:    extra,
		Notifier: f.notifier,
		Now:      clock.Now,
	})
	require.NoError(t, err)
	f.assistant = a
	return f
}

func (f *fixture) sessionMessages(t *testing.T) []*store.Message {
	t.Helper()
	id := f.memory.CurrentSessionID()
	if id == "" {
		return nil
	}
	messages, err := f.store.ListMessages(context.Background(), id, 100)
	require.NoError(t, err)
	return messages
}

func TestNew_RequiresLLM(t *testing.T) {
	_, err := New(Config{}, Deps{})
	assert.Error(t, err)
}

func TestProcessMessage_EndOfConversation(t *testing.T) {
	f := newFixture(t, []*llm.ChatResponse{{Content: "Hi there!"}}, nil)
	ctx := context.Background()

	f.assistant.Activate(ctx)
	require.True(t, f.assistant.Machine().InConversation())

	reply := f.assistant.ProcessMessage(ctx, "hello aida", ProcessOptions{})
	assert.Equal(t, "Hi there!", reply.Text)
	assert.Equal(t, RouteLLM, reply.Route)
	assert.True(t, reply.Remembered)
	before := f.memory.CurrentSessionID()
	require.NotEmpty(t, before)
	assert.Len(t, f.assistant.Loop().History(), 3)

	reply = f.assistant.ProcessMessage(ctx, "Thanks, that's all", ProcessOptions{})
	assert.Equal(t, "Goodbye! Say 'Aida' when you need me again.", reply.Text)
	assert.Equal(t, RouteEnd, reply.Route)
	assert.False(t, reply.Remembered)

	assert.Equal(t, conversation.Idle, f.assistant.Machine().State())
	history := f.assistant.Loop().History()
	require.Len(t, history, 1)
	assert.Equal(t, llm.RoleSystem, history[0].Role)
	assert.Empty(t, f.assistant.Loop().MemoryContext())
	assert.NotEqual(t, before, f.memory.CurrentSessionID())
	assert.Equal(t, 1, f.llm.callCount())
}

func TestProcessMessage_TaskStageRunsBeforeFetch(t *testing.T) {
	f := newFixture(t, nil, nil)

	// "get milk tomorrow" would also match the fact lookup route.
	reply := f.assistant.ProcessMessage(context.Background(), "Remind me to get milk tomorrow", ProcessOptions{})
	assert.Equal(t, "Added task: get milk, due tomorrow", reply.Text)
	assert.Equal(t, RouteTasks, reply.Route)
	assert.False(t, reply.Remembered)

	assert.Empty(t, f.web.queries)
	assert.Zero(t, f.llm.callCount())
	assert.Empty(t, f.sessionMessages(t))

	pending, err := f.tasks.ListTasks(context.Background(), tasks.ListOptions{})
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "get milk", pending[0].Title)
}

func TestProcessMessage_ActionRouteIsRemembered(t *testing.T) {
	f := newFixture(t, nil, nil)

	reply := f.assistant.ProcessMessage(context.Background(), "look up golang generics", ProcessOptions{})
	assert.Equal(t, "I've searched for 'golang generics' in your browser.", reply.Text)
	assert.Equal(t, "search", reply.Route)
	assert.True(t, reply.Remembered)
	assert.Equal(t, []string{"golang generics"}, f.browser.searches)
	assert.Zero(t, f.llm.callCount())

	messages := f.sessionMessages(t)
	require.Len(t, messages, 2)
	assert.Equal(t, "look up golang generics", messages[0].Content)
	assert.Equal(t, reply.Text, messages[1].Content)
	assert.Equal(t, reply.Text, f.assistant.LastResponse())
}

type weatherParams struct {
	City string `json:"city" description:"City name"`
}

func TestProcessMessage_ToolRoundTrip(t *testing.T) {
	var invocations []string
	extra := registry.New()
	require.NoError(t, registry.Register(extra, "get_weather", "Current weather for a city",
		func(_ context.Context, p weatherParams) (string, error) {
			invocations = append(invocations, p.City)
			return "Sunny, 18 degrees in " + p.City, nil
		}))

	f := newFixture(t, []*llm.ChatResponse{
		{ToolCalls: []llm.ToolCall{{
			ID:       "call_1",
			Type:     "function",
			Function: llm.FunctionCall{Name: "get_weather", Arguments: `{"city":"Oslo"}`},
		}}},
		{Content: "It is sunny and 18 degrees in Oslo."},
	}, extra)

	reply := f.assistant.ProcessMessage(context.Background(), "How warm will it be in Oslo", ProcessOptions{})
	assert.Equal(t, "It is sunny and 18 degrees in Oslo.", reply.Text)
	assert.Equal(t, RouteLLM, reply.Route)
	assert.Equal(t, []string{"Oslo"}, invocations)
	assert.Equal(t, 2, f.llm.callCount())

	var toolMessages int
	for _, m := range f.assistant.Loop().History() {
		if m.Role == llm.RoleTool {
			toolMessages++
			assert.Equal(t, "call_1", m.ToolCallID)
		}
	}
	assert.Equal(t, 1, toolMessages)
	assert.True(t, reply.Remembered)
}

func TestProcessMessage_ModelFailureIsApology(t *testing.T) {
	f := newFixture(t, nil, nil)
	f.llm.err = errors.New("connection refused")

	reply := f.assistant.ProcessMessage(context.Background(), "tell me a joke please about cats and dogs", ProcessOptions{})
	assert.Equal(t, agent.ModelErrorReply, reply.Text)
	assert.Equal(t, RouteLLM, reply.Route)
}

func TestProcessMessage_ImagesGoToVision(t *testing.T) {
	f := newFixture(t, []*llm.ChatResponse{{Content: "A cat on a sofa."}}, nil)

	// Would be the webcam route without an image.
	reply := f.assistant.ProcessMessage(context.Background(), "what do you see", ProcessOptions{Images: []string{"aGVsbG8="}})
	assert.Equal(t, "A cat on a sofa.", reply.Text)
	assert.Equal(t, RouteLLM, reply.Route)
	assert.Equal(t, 1, f.llm.vision)

	messages := f.sessionMessages(t)
	require.Len(t, messages, 2)
	assert.Equal(t, []string{"aGVsbG8="}, messages[0].Images)
}

func TestProcessMessage_PublishesEvents(t *testing.T) {
	f := newFixture(t, []*llm.ChatResponse{{Content: "Hello!"}}, nil)
	events, unsubscribe := f.assistant.Events().Subscribe(32)
	defer unsubscribe()

	f.assistant.ProcessMessage(context.Background(), "hi", ProcessOptions{})

	var got []Event
	for len(events) > 0 {
		got = append(got, <-events)
	}
	require.NotEmpty(t, got)
	assert.Equal(t, EventUtterance, got[0].Type)
	assert.Equal(t, "hi", got[0].Data)

	last := got[len(got)-1]
	assert.Equal(t, EventResponse, last.Type)
	assert.Equal(t, "Hello!", last.Data)

	var statuses []any
	var agentKinds []string
	for _, ev := range got {
		switch ev.Type {
		case EventStatus:
			statuses = append(statuses, ev.Data)
		case EventAgent:
			agentKinds = append(agentKinds, ev.Data.(AgentEvent).Kind)
		}
	}
	assert.Equal(t, []any{"Thinking...", "Ready"}, statuses)
	assert.Contains(t, agentKinds, agent.EventTypeAnswer)
}

func TestMachineTransitionsArePublished(t *testing.T) {
	f := newFixture(t, nil, nil)
	events, unsubscribe := f.assistant.Events().Subscribe(8)
	defer unsubscribe()

	f.assistant.Activate(context.Background())
	ev := <-events
	require.Equal(t, EventState, ev.Type)
	transition := ev.Data.(conversation.Transition)
	assert.Equal(t, conversation.Idle, transition.From)
	assert.Equal(t, conversation.Active, transition.To)
}

func TestBuiltinTools(t *testing.T) {
	f := newFixture(t, nil, nil)
	tools := f.assistant.Loop().Tools()
	ctx := context.Background()

	assert.Equal(t, []string{"web_search", "get_latest_news", "add_task", "list_tasks", "remember_fact", "search_memory"}, tools.Names())

	out, err := tools.Invoke(ctx, "add_task", `{"title":"water plants","priority":"High","due":"tomorrow"}`)
	require.NoError(t, err)
	assert.Equal(t, "Added task: water plants (high priority), due tomorrow", out)

	_, err = tools.Invoke(ctx, "add_task", `{"title":"x","priority":"urgent"}`)
	assert.ErrorContains(t, err, "unknown priority")
	_, err = tools.Invoke(ctx, "add_task", `{"title":"x","due":"someday"}`)
	assert.ErrorContains(t, err, "due date")

	out, err = tools.Invoke(ctx, "list_tasks", `{}`)
	require.NoError(t, err)
	assert.Contains(t, out, "water plants (important)")

	out, err = tools.Invoke(ctx, "remember_fact", `{"category":"preference","key":"favorite_color","value":"blue"}`)
	require.NoError(t, err)
	assert.Equal(t, "Remembered favorite_color: blue", out)
	_, err = tools.Invoke(ctx, "remember_fact", `{"category":"gossip","key":"a","value":"b"}`)
	assert.ErrorContains(t, err, "unknown category")

	out, err = tools.Invoke(ctx, "search_memory", `{"query":"blue"}`)
	require.NoError(t, err)
	assert.Contains(t, out, "Facts:\n- favorite_color: blue")

	out, err = tools.Invoke(ctx, "search_memory", `{"query":"zebra"}`)
	require.NoError(t, err)
	assert.Equal(t, "Nothing in memory matches 'zebra'.", out)

	out, err = tools.Invoke(ctx, "web_search", `{"query":"weather oslo"}`)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "**Yr** (https://yr.no)\nSunny in Oslo"))

	_, err = tools.Invoke(ctx, "get_latest_news", `{}`)
	require.NoError(t, err)
	assert.Equal(t, []string{"weather oslo", fallbackNewsQuery}, f.web.queries)
}

func TestBuiltinTools_OnlyConfigured(t *testing.T) {
	s, _ := storetest.New(t)
	a, err := New(Config{MemoryEnabled: false, TasksEnabled: true}, Deps{
		LLM:    &mockLLM{},
		Memory: memory.NewManager(s, nil, nil),
	})
	require.NoError(t, err)
	assert.Zero(t, a.Loop().Tools().Len())
	assert.Nil(t, a.Memory())
	assert.Nil(t, a.Tasks())
}

func TestOnReminder(t *testing.T) {
	f := newFixture(t, nil, nil)
	ctx := context.Background()
	events, unsubscribe := f.assistant.Events().Subscribe(8)
	defer unsubscribe()

	due := storetest.Epoch.Add(2 * time.Hour)
	task, err := f.tasks.AddTask(ctx, &tasks.Command{Action: tasks.ActionAdd, Title: "call mom", Due: &due})
	require.NoError(t, err)

	f.assistant.OnReminder(ctx, &store.Reminder{TaskID: task.ID, TaskTitle: "call mom"})

	var responses []any
	for len(events) > 0 {
		if ev := <-events; ev.Type == EventResponse {
			responses = append(responses, ev.Data)
		}
	}
	assert.Equal(t, []any{"Reminder: call mom, due soon"}, responses)

	require.Len(t, f.notifier.payloads, 1)
	payload := f.notifier.payloads[0]
	assert.Equal(t, webhook.ActivityReminder, payload.ActivityType)
	assert.Equal(t, task.ID, payload.TaskID)
	require.NotNil(t, payload.Due)
	assert.Equal(t, due.Unix(), *payload.Due)
}

type countingWakeWord struct {
	mu      sync.Mutex
	mutes   int
	unmutes int
}

func (w *countingWakeWord) Mute() {
	w.mu.Lock()
	w.mutes++
	w.mu.Unlock()
}

func (w *countingWakeWord) Unmute() {
	w.mu.Lock()
	w.unmutes++
	w.mu.Unlock()
}

func TestProcessMessage_EndOfConversationUnmutesWithoutSpeech(t *testing.T) {
	s, _ := storetest.New(t)
	wake := &countingWakeWord{}
	speech := conversation.NewCoordinator(conversation.NewMachine(), conversation.Config{WakeWord: wake})
	a, err := New(Config{WakeWord: "Aida"}, Deps{
		LLM:     &mockLLM{},
		Memory:  memory.NewManager(s, nil, nil),
		Speech:  speech,
		Actions: actions.Deps{},
	})
	require.NoError(t, err)
	ctx := context.Background()

	a.Activate(ctx)
	reply := a.ProcessMessage(ctx, "goodbye", ProcessOptions{Source: SourceAPI})
	speech.Wait()

	assert.Equal(t, RouteEnd, reply.Route)
	assert.Equal(t, conversation.Idle, a.Machine().State())
	wake.mu.Lock()
	defer wake.mu.Unlock()
	assert.Equal(t, 1, wake.unmutes)
}

func TestResumeSession(t *testing.T) {
	f := newFixture(t, []*llm.ChatResponse{{Content: "Oslo is sunny."}}, nil)
	ctx := context.Background()

	f.assistant.ProcessMessage(ctx, "how is the weather in oslo", ProcessOptions{})
	first := f.memory.CurrentSessionID()
	f.assistant.ProcessMessage(ctx, "goodbye", ProcessOptions{})
	require.Len(t, f.assistant.Loop().History(), 1)

	found, err := f.assistant.ResumeSession(ctx, first)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, first, f.memory.CurrentSessionID())

	history := f.assistant.Loop().History()
	require.Len(t, history, 3)
	assert.Equal(t, llm.RoleSystem, history[0].Role)
	assert.Equal(t, llm.RoleUser, history[1].Role)
	assert.Equal(t, "how is the weather in oslo", history[1].Content)
	assert.Equal(t, "Oslo is sunny.", history[2].Content)

	found, err = f.assistant.ResumeSession(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestResumeSession_MemoryDisabled(t *testing.T) {
	a, err := New(Config{}, Deps{LLM: &mockLLM{}})
	require.NoError(t, err)
	_, err = a.ResumeSession(context.Background(), "any")
	assert.ErrorIs(t, err, ErrMemoryDisabled)
}

func TestOnReminder_AddedNotifier(t *testing.T) {
	f := newFixture(t, nil, nil)
	extra := &mockNotifier{}
	f.assistant.AddNotifier(extra)

	f.assistant.OnReminder(context.Background(), &store.Reminder{TaskID: 99, TaskTitle: "stretch"})

	require.Len(t, f.notifier.payloads, 1)
	require.Len(t, extra.payloads, 1)
	assert.Same(t, f.notifier.payloads[0], extra.payloads[0])
	assert.Equal(t, "stretch", extra.payloads[0].TaskTitle)
}

func TestChatHandler(t *testing.T) {
	f := newFixture(t, []*llm.ChatResponse{{Content: "Hei!"}}, nil)
	handler := f.assistant.ChatHandler()

	out, err := handler(context.Background(), &chat_apps.IncomingMessage{
		Platform:       chat_apps.PlatformTelegram,
		PlatformChatID: "42",
		Type:           chat_apps.MessageTypeText,
		Content:        "hallo",
	})
	require.NoError(t, err)
	require.NotNil(t, out)
	assert.Equal(t, "42", out.PlatformChatID)
	assert.Equal(t, "Hei!", out.Content)

	out, err = handler(context.Background(), &chat_apps.IncomingMessage{PlatformChatID: "42", Content: "  "})
	require.NoError(t, err)
	assert.Nil(t, out)

	_, err = handler(context.Background(), &chat_apps.IncomingMessage{
		PlatformChatID: "42",
		Type:           chat_apps.MessageTypePhoto,
		MediaData:      []byte("not an image"),
	})
	assert.Error(t, err)
}

func TestFormatSearchResults(t *testing.T) {
	r := &memory.SearchResults{
		Facts:    []memory.FactHit{{Key: "name", Value: "Ola"}},
		Semantic: []memory.SemanticHit{{Content: "we talked about coffee"}},
	}
	assert.Equal(t, "Facts:\n- name: Ola\n\nRelated:\n- we talked about coffee", FormatSearchResults(r))
}
