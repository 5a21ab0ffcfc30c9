package narration

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"
)

const (
	defaultTimeout = 15 * time.Second
	resultBuffer   = 8
)

// Result reports how one utterance went. Results are best effort: they may be
// dropped when nobody reads them.
type Result struct {
	Text     string
	Err      error
	Duration time.Duration
}

// Worker speaks queued text on its own goroutine. Only the newest pending
// utterance is kept, so a burst of calls never builds a backlog of names.
type Worker struct {
	sink    Sink
	logger  *slog.Logger
	timeout time.Duration

	queue   chan string
	results chan Result

	mu      sync.Mutex
	closed  bool
	cancel  context.CancelFunc
	stopped chan struct{}
}

// NewWorker creates a worker for sink. Call Start to begin speaking.
func NewWorker(sink Sink, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Worker{
		sink:    sink,
		logger:  logger,
		timeout: defaultTimeout,
		queue:   make(chan string, 1),
		results: make(chan Result, resultBuffer),
		stopped: make(chan struct{}),
	}
}

// SetTimeout bounds a single utterance.
func (w *Worker) SetTimeout(d time.Duration) {
	if d > 0 {
		w.timeout = d
	}
}

// Start runs the worker until ctx is cancelled or Close is called. It must be
// called at most once.
func (w *Worker) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	w.mu.Lock()
	w.cancel = cancel
	w.mu.Unlock()
	go w.run(ctx)
}

func (w *Worker) run(ctx context.Context) {
	defer close(w.stopped)
	for {
		select {
		case <-ctx.Done():
			return
		case text := <-w.queue:
			w.say(ctx, text)
		}
	}
}

func (w *Worker) say(ctx context.Context, text string) {
	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()
	started := time.Now()
	err := w.sink.Speak(ctx, text)
	if err != nil {
		w.logger.Warn("narration failed", "text", text, "error", err)
	}
	res := Result{Text: text, Err: err, Duration: time.Since(started)}
	select {
	case w.results <- res:
	default:
	}
}

// Speak queues text without blocking, replacing any utterance still waiting.
// It reports false once the worker is closed.
func (w *Worker) Speak(text string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return false
	}
	for {
		select {
		case w.queue <- text:
			return true
		default:
		}
		select {
		case <-w.queue:
		default:
		}
	}
}

// Results delivers completions. Reading it is optional.
func (w *Worker) Results() <-chan Result { return w.results }

// Close stops the worker and waits for the current utterance, which is
// cancelled through its context.
func (w *Worker) Close() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.closed = true
	cancel := w.cancel
	w.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-w.stopped
}
