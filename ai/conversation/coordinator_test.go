package conversation

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// journal records the order of side effects across fakes.
type journal struct {
	mu      sync.Mutex
	entries []string
}

func (j *journal) add(e string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries = append(j.entries, e)
}

func (j *journal) list() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]string(nil), j.entries...)
}

type fakeWakeWord struct{ j *journal }

func (f fakeWakeWord) Mute()   { f.j.add("mute") }
func (f fakeWakeWord) Unmute() { f.j.add("unmute") }

type fakeSpeaker struct {
	j   *journal
	err error
}

func (f fakeSpeaker) Speak(_ context.Context, text string) error {
	f.j.add("speak: " + text)
	return f.err
}

// fakeListener hands out scripted utterances, one per Listen call.
// Listen blocks until an utterance is available or ctx ends.
type fakeListener struct {
	j       *journal
	replies chan string
}

func newFakeListener(j *journal) *fakeListener {
	return &fakeListener{j: j, replies: make(chan string, 10)}
}

func (f *fakeListener) Listen(ctx context.Context) (string, error) {
	f.j.add("listen")
	select {
	case <-ctx.Done():
		return "late utterance", nil
	case r := <-f.replies:
		return r, nil
	}
}

func newTestCoordinator(j *journal, listener Listener, onUtterance func(context.Context, string)) *Coordinator {
	return NewCoordinator(NewMachine(), Config{
		WakeWord:    fakeWakeWord{j},
		Speaker:     fakeSpeaker{j: j},
		Listener:    listener,
		OnUtterance: onUtterance,
		SettleDelay: -1,
		EchoDelay:   -1,
		RetryDelay:  -1,
	})
}

func waitDone(t *testing.T, done <-chan struct{}) {
	t.Helper()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("speech sequence did not finish")
	}
}

func TestCoordinator_SpeakWhenIdleUnmutes(t *testing.T) {
	j := &journal{}
	c := newTestCoordinator(j, newFakeListener(j), nil)

	waitDone(t, c.Speak(context.Background(), "hello", true))
	c.Wait()

	assert.Equal(t, []string{"mute", "speak: hello", "unmute"}, j.list())
}

func TestCoordinator_SpeakInConversationRearmsListening(t *testing.T) {
	j := &journal{}
	listener := newFakeListener(j)
	got := make(chan string, 1)
	c := newTestCoordinator(j, listener, func(_ context.Context, text string) { got <- text })
	c.Machine().Activate("test")

	waitDone(t, c.Speak(context.Background(), "what else?", true))
	listener.replies <- "turn on the lights"

	select {
	case text := <-got:
		assert.Equal(t, "turn on the lights", text)
	case <-time.After(time.Second):
		t.Fatal("utterance not delivered")
	}
	c.Wait()
	assert.Equal(t, []string{"mute", "speak: what else?", "listen"}, j.list())
}

func TestCoordinator_SpeakWithoutContinueUnmutes(t *testing.T) {
	j := &journal{}
	c := newTestCoordinator(j, newFakeListener(j), nil)
	c.Machine().Activate("test")

	waitDone(t, c.Speak(context.Background(), "bye", false))
	c.Wait()
	assert.Equal(t, []string{"mute", "speak: bye", "unmute"}, j.list())
}

func TestCoordinator_ResumeWithoutContinueUnmutes(t *testing.T) {
	j := &journal{}
	c := newTestCoordinator(j, newFakeListener(j), nil)

	c.Resume(context.Background(), false)
	c.Wait()
	assert.Equal(t, []string{"unmute"}, j.list())
}

func TestCoordinator_SpeakerErrorStillUnmutes(t *testing.T) {
	j := &journal{}
	var statuses []string
	var mu sync.Mutex
	c := NewCoordinator(NewMachine(), Config{
		WakeWord: fakeWakeWord{j},
		Speaker:  fakeSpeaker{j: j, err: errors.New("no audio device")},
		OnStatus: func(s string) {
			mu.Lock()
			statuses = append(statuses, s)
			mu.Unlock()
		},
		SettleDelay: -1,
		EchoDelay:   -1,
	})

	waitDone(t, c.Speak(context.Background(), "hi", false))
	assert.Equal(t, []string{"mute", "speak: hi", "unmute"}, j.list())
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"Speaking...", "Error: no audio device", "Ready"}, statuses)
}

func TestCoordinator_StopListeningDiscardsCapture(t *testing.T) {
	j := &journal{}
	delivered := make(chan string, 1)
	c := newTestCoordinator(j, newFakeListener(j), func(_ context.Context, text string) { delivered <- text })

	c.StartListening(context.Background())
	require.Eventually(t, func() bool { return len(j.list()) == 1 }, time.Second, time.Millisecond)
	assert.True(t, c.Listening())

	c.StopListening()
	c.Wait()
	assert.False(t, c.Listening())
	assert.Empty(t, delivered)
}

func TestCoordinator_StartListeningIsSingleFlight(t *testing.T) {
	j := &journal{}
	listener := newFakeListener(j)
	c := newTestCoordinator(j, listener, func(context.Context, string) {})

	c.StartListening(context.Background())
	c.StartListening(context.Background())
	require.Eventually(t, func() bool { return len(j.list()) >= 1 }, time.Second, time.Millisecond)

	listener.replies <- "hello"
	c.Wait()
	assert.Equal(t, []string{"listen"}, j.list())
}

func TestCoordinator_EmptyCaptureRetriesInConversation(t *testing.T) {
	j := &journal{}
	listener := newFakeListener(j)
	got := make(chan string, 1)
	c := newTestCoordinator(j, listener, func(_ context.Context, text string) { got <- text })

	c.OnWakeWord(context.Background())
	assert.True(t, c.Machine().InConversation())
	listener.replies <- "   "
	listener.replies <- "what time is it"

	select {
	case text := <-got:
		assert.Equal(t, "what time is it", text)
	case <-time.After(time.Second):
		t.Fatal("utterance not delivered")
	}
	c.Wait()
	assert.Equal(t, []string{"listen", "listen"}, j.list())
}

func TestCoordinator_NoSpeakerResumesListening(t *testing.T) {
	j := &journal{}
	listener := newFakeListener(j)
	c := NewCoordinator(NewMachine(), Config{Listener: listener, RetryDelay: -1})
	c.Machine().Activate("test")

	waitDone(t, c.Speak(context.Background(), "ignored", true))
	require.Eventually(t, func() bool { return c.Listening() }, time.Second, time.Millisecond)
	c.StopListening()
	c.Wait()
	assert.Equal(t, []string{"listen"}, j.list())
}
