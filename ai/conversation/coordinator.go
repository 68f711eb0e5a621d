package conversation

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// Default delays around speech playback.
const (
	DefaultSettleDelay = 500 * time.Millisecond
	DefaultEchoDelay   = 1500 * time.Millisecond
	DefaultRetryDelay  = 500 * time.Millisecond
)

// WakeWordListener is the always-on wake word detector.
type WakeWordListener interface {
	// Mute ignores audio, discarding any recording in progress.
	Mute()
	Unmute()
}

// Speaker plays text as speech. Speak blocks until playback ends.
type Speaker interface {
	Speak(ctx context.Context, text string) error
}

// Listener captures one spoken utterance. It must return promptly when ctx is canceled.
type Listener interface {
	Listen(ctx context.Context) (string, error)
}

// Config configures a Coordinator. Zero delays use the defaults; negative delays disable the wait.
type Config struct {
	WakeWord WakeWordListener
	Speaker  Speaker
	Listener Listener
	// OnUtterance receives every non-empty captured utterance.
	OnUtterance func(ctx context.Context, text string)
	// OnStatus receives human readable status lines such as "Speaking...".
	OnStatus func(status string)

	SettleDelay time.Duration
	EchoDelay   time.Duration
	RetryDelay  time.Duration
}

// Coordinator sequences speech playback, wake word muting and follow-up listening.
type Coordinator struct {
	machine *Machine
	cfg     Config

	mu           sync.Mutex
	listening    bool
	stopListen   context.CancelFunc
	listenSerial uint64

	wg sync.WaitGroup
}

func NewCoordinator(machine *Machine, cfg Config) *Coordinator {
	cfg.SettleDelay = orDefault(cfg.SettleDelay, DefaultSettleDelay)
	cfg.EchoDelay = orDefault(cfg.EchoDelay, DefaultEchoDelay)
	cfg.RetryDelay = orDefault(cfg.RetryDelay, DefaultRetryDelay)
	return &Coordinator{machine: machine, cfg: cfg}
}

func orDefault(d, def time.Duration) time.Duration {
	switch {
	case d == 0:
		return def
	case d < 0:
		return 0
	default:
		return d
	}
}

func (c *Coordinator) Machine() *Machine {
	return c.machine
}

func (c *Coordinator) status(s string) {
	if c.cfg.OnStatus != nil {
		c.cfg.OnStatus(s)
	}
}

// OnWakeWord starts a conversation and listens for the command.
func (c *Coordinator) OnWakeWord(ctx context.Context) {
	c.machine.Activate("wake word")
	c.StartListening(ctx)
}

// StartListening captures one utterance in the background. It is a no-op
// while a capture is already running or when no Listener is configured.
func (c *Coordinator) StartListening(ctx context.Context) {
	if c.cfg.Listener == nil {
		return
	}
	c.mu.Lock()
	if c.listening {
		c.mu.Unlock()
		return
	}
	listenCtx, cancel := context.WithCancel(ctx)
	c.listening = true
	c.stopListen = cancel
	c.listenSerial++
	serial := c.listenSerial
	c.mu.Unlock()

	c.status("Listening...")
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer cancel()
		text, err := c.cfg.Listener.Listen(listenCtx)

		c.mu.Lock()
		current := c.listenSerial == serial && c.listening
		if current {
			c.listening = false
			c.stopListen = nil
		}
		c.mu.Unlock()

		// A capture stopped by StopListening is discarded, never queued.
		if !current || listenCtx.Err() != nil {
			return
		}
		if err != nil {
			slog.Warn("speech capture failed", "error", err)
			c.status("Error: " + err.Error())
			return
		}
		if strings.TrimSpace(text) == "" {
			c.status("No speech detected")
			if c.machine.InConversation() {
				c.after(ctx, c.cfg.RetryDelay, func() { c.StartListening(ctx) })
			}
			return
		}
		if c.cfg.OnUtterance != nil {
			c.cfg.OnUtterance(ctx, text)
		}
	}()
}

// StopListening aborts a capture in progress. Its result is discarded.
func (c *Coordinator) StopListening() {
	c.mu.Lock()
	stop := c.stopListen
	c.listening = false
	c.stopListen = nil
	c.mu.Unlock()
	if stop != nil {
		stop()
	}
}

// Listening reports whether a capture is in progress.
func (c *Coordinator) Listening() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.listening
}

// Speak plays text in the background. The wake word listener is muted first
// so the assistant does not hear itself. After playback and the echo delay,
// listening resumes when continueListening is set and the conversation is
// still active; otherwise the wake word listener is unmuted.
// The returned channel is closed when the sequence is over.
func (c *Coordinator) Speak(ctx context.Context, text string, continueListening bool) <-chan struct{} {
	done := make(chan struct{})
	if c.cfg.Speaker == nil {
		close(done)
		c.Resume(ctx, continueListening)
		return done
	}
	if c.cfg.WakeWord != nil {
		c.cfg.WakeWord.Mute()
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer close(done)

		c.status("Speaking...")
		sleep(ctx, c.cfg.SettleDelay)
		if err := c.cfg.Speaker.Speak(ctx, text); err != nil {
			slog.Warn("speech playback failed", "error", err)
			c.status("Error: " + err.Error())
		}
		sleep(ctx, c.cfg.EchoDelay)

		if continueListening && c.machine.InConversation() {
			c.StartListening(ctx)
			return
		}
		c.status("Ready")
		if c.cfg.WakeWord != nil {
			c.cfg.WakeWord.Unmute()
		}
	}()
	return done
}

// Resume is used when nothing is spoken: in a conversation, listening restarts
// after the retry delay; otherwise the wake word listener is unmuted.
func (c *Coordinator) Resume(ctx context.Context, continueListening bool) {
	if continueListening && c.machine.InConversation() {
		c.after(ctx, c.cfg.RetryDelay, func() { c.StartListening(ctx) })
		return
	}
	c.status("Ready")
	if c.cfg.WakeWord != nil {
		c.cfg.WakeWord.Unmute()
	}
}

func (c *Coordinator) after(ctx context.Context, d time.Duration, fn func()) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		if sleep(ctx, d) {
			fn()
		}
	}()
}

// Wait blocks until background playback and captures have finished.
func (c *Coordinator) Wait() {
	c.wg.Wait()
}

// sleep waits for d or until ctx ends. It reports whether the full delay elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
