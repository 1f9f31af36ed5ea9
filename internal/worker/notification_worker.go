package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/inkmarket-service/internal/notify"
)

var (
	// ErrQueueFull is returned when the backlog is at capacity.
	ErrQueueFull = errors.New("notification queue full")
	// ErrStopped is returned once Stop has been called.
	ErrStopped = errors.New("notification worker stopped")
)

const sendTimeout = 30 * time.Second

// NotificationWorker delivers messages in the background with a fixed pool
// of goroutines reading from a bounded queue. Failures are logged, never
// retried.
type NotificationWorker struct {
	sink    notify.Sink
	logger  *zap.Logger
	workers int

	mu      sync.RWMutex
	queue   chan notify.Message
	stopped bool
	wg      sync.WaitGroup
	onDone  func(notify.Message, error)
}

// NewNotificationWorker creates a worker. Call Start before enqueuing.
func NewNotificationWorker(sink notify.Sink, logger *zap.Logger, workers, queueSize int) *NotificationWorker {
	if workers <= 0 {
		workers = 1
	}
	if queueSize <= 0 {
		queueSize = 64
	}
	return &NotificationWorker{
		sink:    sink,
		logger:  logger,
		workers: workers,
		queue:   make(chan notify.Message, queueSize),
	}
}

// OnDone registers a callback invoked after every delivery attempt.
func (w *NotificationWorker) OnDone(fn func(notify.Message, error)) {
	w.onDone = fn
}

// Start launches the delivery goroutines.
func (w *NotificationWorker) Start() {
	for i := 0; i < w.workers; i++ {
		w.wg.Add(1)
		go w.run()
	}
	w.logger.Info("notification worker started", zap.Int("workers", w.workers), zap.Int("queue", cap(w.queue)))
}

func (w *NotificationWorker) run() {
	defer w.wg.Done()
	for msg := range w.queue {
		ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
		err := w.sink.Send(ctx, msg)
		cancel()

		if err != nil {
			w.logger.Error("notification delivery failed",
				zap.String("kind", string(msg.Kind())),
				zap.String("to", msg.Recipient()),
				zap.Error(err),
			)
		}
		if w.onDone != nil {
			w.onDone(msg, err)
		}
	}
}

// Enqueue schedules msg without blocking.
func (w *NotificationWorker) Enqueue(msg notify.Message) error {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.stopped {
		return ErrStopped
	}
	select {
	case w.queue <- msg:
		return nil
	default:
		return ErrQueueFull
	}
}

// Stop stops accepting messages and waits for the backlog to drain or for
// ctx to expire.
func (w *NotificationWorker) Stop(ctx context.Context) error {
	w.mu.Lock()
	if !w.stopped {
		w.stopped = true
		close(w.queue)
	}
	w.mu.Unlock()

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		w.logger.Info("notification worker drained")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
