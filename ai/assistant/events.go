package assistant

import (
	"sync"
	"sync/atomic"
	"time"
)

// EventType names what an Event carries.
type EventType string

const (
	// EventStatus carries a status line such as "Thinking..." or "Ready".
	EventStatus EventType = "status"
	// EventResponse carries a reply or a reminder as text.
	EventResponse EventType = "response"
	// EventState carries a conversation.Transition.
	EventState EventType = "state"
	// EventUtterance carries the text the assistant is about to process.
	EventUtterance EventType = "utterance"
	// EventAgent carries an AgentEvent from the tool-calling loop.
	EventAgent EventType = "agent"
)

// Event is published to every subscriber.
type Event struct {
	Type EventType `json:"type"`
	Data any       `json:"data"`
	Time time.Time `json:"time"`
}

// AgentEvent wraps a loop event, e.g. a tool call.
type AgentEvent struct {
	Kind string `json:"kind"`
	Data any    `json:"data,omitempty"`
}

// DefaultSubscriberBuffer is the channel size Subscribe uses for buffer <= 0.
const DefaultSubscriberBuffer = 64

// Broker fans events out to subscribers. A subscriber that falls behind
// loses events rather than blocking the assistant.
type Broker struct {
	mu      sync.RWMutex
	subs    map[uint64]chan Event
	next    uint64
	dropped atomic.Uint64
	now     func() time.Time
}

func NewBroker() *Broker {
	return &Broker{subs: make(map[uint64]chan Event), now: time.Now}
}

// Subscribe returns the event channel and a function that unsubscribes and closes it.
func (b *Broker) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = DefaultSubscriberBuffer
	}
	ch := make(chan Event, buffer)

	b.mu.Lock()
	id := b.next
	b.next++
	b.subs[id] = ch
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			close(ch)
		})
	}
}

// Publish sends an event to every subscriber without blocking.
func (b *Broker) Publish(t EventType, data any) {
	ev := Event{Type: t, Data: data, Time: b.now()}

	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default:
			b.dropped.Add(1)
		}
	}
}

// Subscribers returns the number of live subscriptions.
func (b *Broker) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Dropped returns how many deliveries were skipped because a subscriber was full.
func (b *Broker) Dropped() uint64 {
	return b.dropped.Load()
}
