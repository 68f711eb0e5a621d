// Package assistant is the controller that takes an utterance through the
// dialogue pipeline: end phrases, task commands, the action table and
// finally the tool-calling loop, with memory on both sides.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hrygo/aida/ai/agent"
	"github.com/hrygo/aida/ai/agent/registry"
	"github.com/hrygo/aida/ai/conversation"
	"github.com/hrygo/aida/ai/core/llm"
	"github.com/hrygo/aida/ai/format"
	"github.com/hrygo/aida/ai/internal/strutil"
	"github.com/hrygo/aida/ai/memory"
	"github.com/hrygo/aida/ai/metrics"
	"github.com/hrygo/aida/ai/observability/logging"
	"github.com/hrygo/aida/ai/routing"
	"github.com/hrygo/aida/ai/tasks"
	"github.com/hrygo/aida/internal/profile"
	"github.com/hrygo/aida/plugin/actions"
	"github.com/hrygo/aida/plugin/webhook"
	"github.com/hrygo/aida/store"
)

// Interaction sources recorded in metrics.
const (
	SourceVoice = "voice"
	SourceAPI   = "api"
	SourceChat  = "chat"
)

// Route names for replies that do not come from the action table.
const (
	RouteEnd   = "end_conversation"
	RouteTasks = "tasks"
	RouteLLM   = "llm"
)

// Config holds the assistant settings taken from the profile.
type Config struct {
	WakeWord      string
	SystemPrompt  string
	MaxToolRounds int

	SpeakResponses     bool
	SpeakReminders     bool
	MemoryEnabled      bool
	IncludeSemantic    bool
	MaxSemanticResults int
	TasksEnabled       bool

	// Features gate action routes, see routing.FeatureHomeAssistant.
	Features routing.Features
}

// ConfigFromProfile maps the profile onto Config.
func ConfigFromProfile(p *profile.Profile) Config {
	return Config{
		WakeWord:           p.WakeWord,
		SystemPrompt:       p.SystemPrompt,
		MaxToolRounds:      p.MaxToolRounds,
		SpeakResponses:     p.SpeakResponses,
		SpeakReminders:     p.SpeakReminders,
		MemoryEnabled:      p.MemoryEnabled,
		IncludeSemantic:    p.IncludeSemanticContext,
		MaxSemanticResults: p.MaxSemanticResults,
		TasksEnabled:       p.TasksEnabled,
		Features:           routing.Features{routing.FeatureHomeAssistant: p.HAEnabled},
	}
}

// ReminderNotifier forwards delivered reminders, e.g. to a webhook.
type ReminderNotifier interface {
	PostAsync(payload *webhook.Payload)
}

// Deps are the collaborators of an Assistant. Only LLM is required.
type Deps struct {
	LLM llm.Service
	// Memory is nil when memory is disabled.
	Memory *memory.Manager
	// Tasks is nil when tasks are disabled.
	Tasks *tasks.Manager
	// Actions are the action collaborators. Asker, LastResponse and Status are filled in by New.
	Actions actions.Deps
	// Speech plays replies. nil runs without speech; the machine is then created here.
	Speech *conversation.Coordinator
	// Tools are extra tools offered to the model next to the built-in ones.
	Tools    *registry.Registry
	Metrics  metrics.Recorder
	Notifier ReminderNotifier
	Now      func() time.Time
}

// ProcessOptions controls one ProcessMessage call.
type ProcessOptions struct {
	// Speak plays the reply when speech is configured and enabled.
	Speak bool
	// Source labels the interaction in metrics, SourceVoice when empty.
	Source string
	// Images are base64 images sent with the message. They skip the task
	// and action stages and go to the vision model.
	Images []string
}

// Reply is the outcome of ProcessMessage.
type Reply struct {
	Text  string `json:"text"`
	Route string `json:"route"`
	// Remembered is set when the turn was stored in memory.
	Remembered bool `json:"remembered"`
}

// Assistant is safe for concurrent use; utterances are processed one at a time.
type Assistant struct {
	cfg     Config
	loop    *agent.Loop
	table   *routing.Table
	memory  *memory.Manager
	tasks   *tasks.Manager
	parser  *tasks.Parser
	machine *conversation.Machine
	speech  *conversation.Coordinator
	web     actions.Web
	feeds   actions.Feeds
	metrics metrics.Recorder
	events  *Broker
	now     func() time.Time

	// mu serializes ProcessMessage.
	mu sync.Mutex

	notifyMu  sync.RWMutex
	notifiers []ReminderNotifier

	lastMu sync.RWMutex
	last   string
}

// New wires an Assistant. It fails only when the route table or a tool cannot be built.
func New(cfg Config, d Deps) (*Assistant, error) {
	if d.LLM == nil {
		return nil, fmt.Errorf("assistant: language model is required")
	}
	if cfg.WakeWord == "" {
		cfg.WakeWord = "Aida"
	}
	if d.Now == nil {
		d.Now = time.Now
	}

	a := &Assistant{
		cfg:     cfg,
		memory:  d.Memory,
		tasks:   d.Tasks,
		parser:  tasks.NewParser(),
		speech:  d.Speech,
		web:     d.Actions.Web,
		feeds:   d.Actions.Feeds,
		metrics: metrics.OrNop(d.Metrics),
		events:  NewBroker(),
		now:     d.Now,
	}
	a.parser.SetClock(d.Now)
	if d.Notifier != nil {
		a.notifiers = append(a.notifiers, d.Notifier)
	}
	if !cfg.MemoryEnabled {
		a.memory = nil
	}
	if !cfg.TasksEnabled {
		a.tasks = nil
	}
	if d.Speech != nil {
		a.machine = d.Speech.Machine()
	} else {
		a.machine = conversation.NewMachine()
	}
	a.machine.Observe(func(t conversation.Transition) {
		a.metrics.SetConversationActive(t.To == conversation.Active)
		a.events.Publish(EventState, t)
	})

	tools := d.Tools
	if tools == nil {
		tools = registry.New()
	}
	if err := a.registerBuiltinTools(tools); err != nil {
		return nil, fmt.Errorf("assistant: register tools: %w", err)
	}
	a.loop = agent.NewLoop(d.LLM, tools, agent.Config{
		SystemPrompt: cfg.SystemPrompt,
		MaxRounds:    cfg.MaxToolRounds,
		Metrics:      a.metrics,
		Callback: func(eventType string, data any) error {
			a.events.Publish(EventAgent, AgentEvent{Kind: eventType, Data: data})
			return nil
		},
	})

	ad := d.Actions
	ad.Asker = asker{loop: a.loop}
	ad.LastResponse = a.LastResponse
	ad.Status = a.status
	ad.Now = d.Now
	table, err := routing.NewTable(
		routing.ActionRoutes(actions.New(ad)),
		routing.WithMetrics(a.metrics),
		routing.WithFeatures(cfg.Features),
	)
	if err != nil {
		return nil, fmt.Errorf("assistant: build action table: %w", err)
	}
	a.table = table
	return a, nil
}

// AddNotifier adds a destination for delivered reminders.
func (a *Assistant) AddNotifier(n ReminderNotifier) {
	a.notifyMu.Lock()
	a.notifiers = append(a.notifiers, n)
	a.notifyMu.Unlock()
}

func (a *Assistant) Events() *Broker {
	return a.events
}

func (a *Assistant) Machine() *conversation.Machine {
	return a.machine
}

func (a *Assistant) Loop() *agent.Loop {
	return a.loop
}

func (a *Assistant) Table() *routing.Table {
	return a.table
}

// Memory returns the memory manager, nil when memory is disabled.
func (a *Assistant) Memory() *memory.Manager {
	return a.memory
}

// Tasks returns the task manager, nil when tasks are disabled.
func (a *Assistant) Tasks() *tasks.Manager {
	return a.tasks
}

// LastResponse is the most recent reply, "" before the first one.
func (a *Assistant) LastResponse() string {
	a.lastMu.RLock()
	defer a.lastMu.RUnlock()
	return a.last
}

func (a *Assistant) setLast(text string) {
	a.lastMu.Lock()
	a.last = text
	a.lastMu.Unlock()
}

func (a *Assistant) status(s string) {
	a.events.Publish(EventStatus, s)
}

// Activate starts a conversation as if the wake word was heard.
func (a *Assistant) Activate(ctx context.Context) {
	if a.speech != nil {
		a.speech.OnWakeWord(ctx)
		return
	}
	a.machine.Activate("wake word")
}

// ProcessMessage answers one utterance. It never fails: errors along the
// way become apologies in the reply text and are logged.
func (a *Assistant) ProcessMessage(ctx context.Context, text string, opts ProcessOptions) Reply {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.speech != nil {
		a.speech.StopListening()
	}
	if opts.Source == "" {
		opts.Source = SourceVoice
	}
	if a.memory != nil {
		ctx = logging.WithSession(ctx, a.memory.CurrentSessionID())
	}
	log := logging.FromContext(ctx)
	log.Info("processing message", "message", strutil.Truncate(text, 120), "source", opts.Source, "images", len(opts.Images))
	a.events.Publish(EventUtterance, text)
	a.status("Thinking...")

	vision := len(opts.Images) > 0
	if !vision && routing.IsEndOfConversation(text) {
		return a.endConversation(ctx, opts)
	}

	if a.memory != nil {
		a.loop.SetMemoryContext(a.memory.ContextForMessage(ctx, text, memory.ContextOptions{
			IncludeFacts:       true,
			IncludeSemantic:    a.cfg.IncludeSemantic,
			MaxSemanticResults: a.cfg.MaxSemanticResults,
		}))
	}

	if !vision {
		if response, ok := a.handleTask(ctx, text); ok {
			reply := Reply{Text: response, Route: RouteTasks}
			a.metrics.RecordInteraction(opts.Source)
			a.respond(ctx, reply.Text, opts)
			return reply
		}
	}

	reply := Reply{Route: RouteLLM}
	if res, ok := a.dispatch(ctx, text, vision); ok {
		reply.Text, reply.Route = res.Response, res.Route
	} else {
		response, err := a.loop.Chat(ctx, text, opts.Images)
		if err != nil {
			log.Warn("language model failed", "error", err)
		}
		reply.Text = response
	}

	if a.memory != nil {
		if err := a.memory.AddInteraction(ctx, text, reply.Text, opts.Images); err != nil {
			log.Warn("failed to remember interaction", "route", reply.Route, "error", err)
		} else {
			reply.Remembered = true
		}
	}
	a.metrics.RecordInteraction(opts.Source)
	a.respond(ctx, reply.Text, opts)
	return reply
}

func (a *Assistant) dispatch(ctx context.Context, text string, vision bool) (routing.Result, bool) {
	if vision {
		return routing.Result{}, false
	}
	return a.table.Dispatch(ctx, text)
}

// handleTask runs a task command. Task replies are not stored in memory.
func (a *Assistant) handleTask(ctx context.Context, text string) (string, bool) {
	if a.tasks == nil {
		return "", false
	}
	cmd, ok := a.parser.Parse(text)
	if !ok {
		return "", false
	}
	response, err := a.tasks.Execute(ctx, cmd)
	if err != nil {
		logging.FromContext(ctx).Warn("task command failed", "action", cmd.Action, "error", err)
		return fmt.Sprintf("Sorry, I couldn't manage your tasks: %v", err), true
	}
	return response, true
}

// respond publishes the reply and speaks it. In a conversation listening resumes afterwards.
func (a *Assistant) respond(ctx context.Context, text string, opts ProcessOptions) {
	a.setLast(text)
	a.status("Ready")
	a.events.Publish(EventResponse, text)
	if a.speech == nil || !opts.Speak {
		return
	}

	// Playback outlives API requests.
	ctx = context.WithoutCancel(ctx)
	inConversation := a.machine.InConversation()
	if a.cfg.SpeakResponses {
		a.speech.Speak(ctx, format.ToSpeech(text), inConversation)
		return
	}
	a.speech.Resume(ctx, inConversation)
}

func (a *Assistant) endConversation(ctx context.Context, opts ProcessOptions) Reply {
	a.machine.End("end phrase")
	a.loop.ClearHistory()
	a.loop.SetMemoryContext("")
	if a.memory != nil {
		if _, err := a.memory.StartSession(ctx, ""); err != nil {
			logging.FromContext(ctx).Warn("failed to start a new memory session", "error", err)
		}
	}

	response := fmt.Sprintf("Goodbye! Say '%s' when you need me again.", a.cfg.WakeWord)
	a.events.Publish(EventResponse, response)
	if a.speech != nil {
		// Back in Idle the wake word listener must hear again, spoken farewell or not.
		if opts.Speak && a.cfg.SpeakResponses {
			a.speech.Speak(context.WithoutCancel(ctx), response, false)
		} else {
			a.speech.Resume(context.WithoutCancel(ctx), false)
		}
	}
	a.status(fmt.Sprintf("Listening for '%s'...", a.cfg.WakeWord))
	return Reply{Text: response, Route: RouteEnd}
}

// ResumedHistoryLength is how many stored messages a resumed session brings back into the loop.
const ResumedHistoryLength = 20

// ErrMemoryDisabled is returned by operations that need memory when it is off.
var ErrMemoryDisabled = errors.New("memory is disabled")

// ResumeSession makes a stored session the active one and loads its latest
// messages into the conversation history, so the model continues where it
// left off. It reports false when the session does not exist.
func (a *Assistant) ResumeSession(ctx context.Context, id string) (bool, error) {
	if a.memory == nil {
		return false, ErrMemoryDisabled
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	found, err := a.memory.ResumeSession(ctx, id)
	if err != nil || !found {
		return found, err
	}
	history, err := a.memory.Builder().ConversationHistory(ctx, id, ResumedHistoryLength)
	if err != nil {
		return true, fmt.Errorf("load history of session %s: %w", id, err)
	}
	a.loop.LoadHistory(history)
	a.loop.SetMemoryContext("")
	logging.FromContext(ctx).Info("resumed session", "session_id", id, "messages", len(history))
	return true, nil
}

// OnReminder announces a due reminder. It has the tasks.ReminderFunc signature.
func (a *Assistant) OnReminder(ctx context.Context, reminder *store.Reminder) {
	var task *store.Task
	if a.tasks != nil {
		t, err := a.tasks.Task(ctx, reminder.TaskID)
		if err != nil {
			logging.FromContext(ctx).Warn("failed to load reminded task", "task_id", reminder.TaskID, "error", err)
		}
		task = t
	}
	text := tasks.ReminderText(reminder, task)

	a.status("Task reminder: " + reminder.TaskTitle)
	a.events.Publish(EventResponse, text)
	a.notifyMu.RLock()
	notifiers := a.notifiers
	a.notifyMu.RUnlock()
	if len(notifiers) > 0 {
		payload := &webhook.Payload{
			ActivityType: webhook.ActivityReminder,
			Text:         text,
			TaskID:       reminder.TaskID,
			TaskTitle:    reminder.TaskTitle,
			SentAt:       a.now(),
		}
		if task != nil {
			payload.Due = task.DueTs
		}
		for _, n := range notifiers {
			n.PostAsync(payload)
		}
	}
	if a.speech != nil && a.cfg.SpeakResponses && a.cfg.SpeakReminders {
		a.speech.Speak(ctx, text, false)
	}
}

// CheckAvailability logs whether the language model answers. Turns still get
// an apology when it does not.
func (a *Assistant) CheckAvailability(ctx context.Context) bool {
	ok := a.loop.IsAvailable(ctx)
	if !ok {
		logging.FromContext(ctx).Warn("language model is not reachable, replies will be apologies until it is")
	}
	return ok
}
