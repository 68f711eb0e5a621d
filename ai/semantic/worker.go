package semantic

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"golang.org/x/time/rate"

	"github.com/hrygo/aida/ai/metrics"
)

// DefaultQueueSize bounds the number of messages waiting for embedding.
const DefaultQueueSize = 256

// WorkerConfig configures the embedding worker.
type WorkerConfig struct {
	QueueSize int
	// RatePerSecond limits embedding requests. Zero or less means unlimited.
	RatePerSecond float64
	Metrics       metrics.Recorder
}

// Worker indexes messages in the background. The queue is bounded; when it
// is full the oldest pending entry is discarded so recent turns win.
type Worker struct {
	index   *Index
	ids     IDWriter
	limiter *rate.Limiter
	metrics metrics.Recorder

	mu       sync.Mutex
	queue    []Entry
	capacity int
	closed   bool

	notify  chan struct{}
	stop    chan struct{}
	done    chan struct{}
	cancel  context.CancelFunc
	dropped atomic.Uint64
	indexed atomic.Uint64
}

// NewWorker creates a worker writing into index. ids, when set, receives the
// entry id of every indexed message.
func NewWorker(index *Index, ids IDWriter, cfg WorkerConfig) *Worker {
	capacity := cfg.QueueSize
	if capacity <= 0 {
		capacity = DefaultQueueSize
	}
	limit := rate.Inf
	if cfg.RatePerSecond > 0 {
		limit = rate.Limit(cfg.RatePerSecond)
	}
	return &Worker{
		index:    index,
		ids:      ids,
		limiter:  rate.NewLimiter(limit, 1),
		metrics:  metrics.OrNop(cfg.Metrics),
		queue:    make([]Entry, 0, capacity),
		capacity: capacity,
		notify:   make(chan struct{}, 1),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start launches the worker goroutine.
func (w *Worker) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	go w.run(ctx)
}

// Enqueue schedules an entry for indexing. It never blocks. It returns false
// once the worker is shut down.
func (w *Worker) Enqueue(entry Entry) bool {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return false
	}
	if len(w.queue) >= w.capacity {
		oldest := w.queue[0]
		w.queue = append(w.queue[:0], w.queue[1:]...)
		w.dropped.Add(1)
		w.metrics.RecordEmbeddingDropped()
		slog.Debug("embedding queue full, dropped oldest entry", "message_id", oldest.MessageID)
	}
	w.queue = append(w.queue, entry)
	depth := len(w.queue)
	w.mu.Unlock()

	w.metrics.SetEmbeddingQueueDepth(depth)
	select {
	case w.notify <- struct{}{}:
	default:
	}
	return true
}

// Pending returns the number of queued entries.
func (w *Worker) Pending() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.queue)
}

// Dropped returns how many entries were discarded by backpressure.
func (w *Worker) Dropped() uint64 {
	return w.dropped.Load()
}

// Indexed returns how many entries were indexed successfully.
func (w *Worker) Indexed() uint64 {
	return w.indexed.Load()
}

func (w *Worker) pop() (Entry, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.queue) == 0 {
		return Entry{}, false
	}
	entry := w.queue[0]
	w.queue = w.queue[1:]
	w.metrics.SetEmbeddingQueueDepth(len(w.queue))
	return entry, true
}

func (w *Worker) run(ctx context.Context) {
	defer close(w.done)
	for {
		w.drain(ctx)
		select {
		case <-w.notify:
		case <-w.stop:
			w.drain(ctx)
			return
		case <-ctx.Done():
			return
		}
	}
}

func (w *Worker) drain(ctx context.Context) {
	for {
		entry, ok := w.pop()
		if !ok {
			return
		}
		if err := w.limiter.Wait(ctx); err != nil {
			return
		}
		w.process(ctx, entry)
	}
}

func (w *Worker) process(ctx context.Context, entry Entry) {
	id, err := w.index.Add(ctx, entry)
	if err != nil {
		w.metrics.RecordEmbeddingIndexed(false)
		slog.Warn("failed to index message", "message_id", entry.MessageID, "error", err)
		return
	}
	w.indexed.Add(1)
	w.metrics.RecordEmbeddingIndexed(true)
	if w.ids == nil {
		return
	}
	if err := w.ids.UpdateMessageEmbeddingID(ctx, entry.MessageID, id); err != nil {
		slog.Warn("failed to link message to index entry", "message_id", entry.MessageID, "error", err)
	}
}

// Shutdown stops accepting entries and drains the queue. When ctx expires
// first, pending entries are abandoned and ctx.Err() is returned.
func (w *Worker) Shutdown(ctx context.Context) error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	w.mu.Unlock()

	if w.cancel == nil {
		return nil
	}
	close(w.stop)
	select {
	case <-w.done:
		w.cancel()
		return nil
	case <-ctx.Done():
		w.cancel()
		<-w.done
		return ctx.Err()
	}
}
