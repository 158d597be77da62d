package notification

import (
	"context"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"

	"library-catalog/internal/errors"
)

// Dispatcher accepts messages for asynchronous delivery. Acceptance failures
// are returned for logging only; they never affect the caller's outcome.
type Dispatcher struct {
	queue  Queue
	logger *slog.Logger
}

func NewDispatcher(queue Queue, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		queue:  queue,
		logger: logger,
	}
}

func (d *Dispatcher) Dispatch(ctx context.Context, msg Message) error {
	if len(msg.Recipients) == 0 {
		return errors.ErrInvalidInput.WithDetails("notification has no recipients")
	}
	if msg.ID == uuid.Nil {
		msg.ID = uuid.New()
	}

	if err := d.queue.Publish(ctx, msg); err != nil {
		d.logger.Warn("Notification not accepted",
			"message_id", msg.ID,
			"category", msg.Category,
			"user_id", msg.UserID,
			"error", err)
		return err
	}

	d.logger.Debug("Notification queued", "message_id", msg.ID, "category", msg.Category, "user_id", msg.UserID)
	return nil
}

// Sender performs the actual delivery of a message.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

type SenderFunc func(ctx context.Context, msg Message) error

func (f SenderFunc) Send(ctx context.Context, msg Message) error {
	return f(ctx, msg)
}

// LogSender writes messages to the log instead of sending e-mail.
type LogSender struct {
	Logger *slog.Logger
}

func (s LogSender) Send(_ context.Context, msg Message) error {
	s.Logger.Info("Notification delivered",
		"message_id", msg.ID,
		"category", msg.Category,
		"recipients", msg.Recipients,
		"subject", msg.Subject)
	return nil
}

const (
	DefaultMaxAttempts = 3
	DefaultBackoff     = 2 * time.Second
)

// Worker drains a queue through a Sender, retrying each message a bounded
// number of times before dropping it.
type Worker struct {
	queue       Queue
	sender      Sender
	logger      *slog.Logger
	maxAttempts int
	backoff     time.Duration
}

type WorkerOption func(*Worker)

func WithMaxAttempts(n int) WorkerOption {
	return func(w *Worker) {
		if n > 0 {
			w.maxAttempts = n
		}
	}
}

func WithBackoff(d time.Duration) WorkerOption {
	return func(w *Worker) {
		if d >= 0 {
			w.backoff = d
		}
	}
}

func NewWorker(queue Queue, sender Sender, logger *slog.Logger, opts ...WorkerOption) *Worker {
	w := &Worker{
		queue:       queue,
		sender:      sender,
		logger:      logger,
		maxAttempts: DefaultMaxAttempts,
		backoff:     DefaultBackoff,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run consumes until ctx is cancelled or the queue is closed and empty.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info("Notification worker started", "max_attempts", w.maxAttempts)
	defer w.logger.Info("Notification worker stopped")

	err := w.queue.Consume(ctx, w.deliver)
	if err != nil && errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (w *Worker) deliver(ctx context.Context, msg Message) error {
	var lastErr error

	for attempt := 1; attempt <= w.maxAttempts; attempt++ {
		lastErr = w.sender.Send(ctx, msg)
		if lastErr == nil {
			return nil
		}

		w.logger.Warn("Notification delivery failed",
			"message_id", msg.ID,
			"attempt", attempt,
			"max_attempts", w.maxAttempts,
			"error", lastErr)

		if attempt == w.maxAttempts {
			break
		}

		delay := time.Duration(float64(w.backoff) * math.Pow(2, float64(attempt-1)))
		select {
		case <-ctx.Done():
			w.logger.Error("Notification dropped on shutdown", "message_id", msg.ID, "error", ctx.Err())
			return nil
		case <-time.After(delay):
		}
	}

	w.logger.Error("Notification dropped after exhausting delivery attempts",
		"message_id", msg.ID,
		"category", msg.Category,
		"user_id", msg.UserID,
		"recipients", msg.Recipients,
		"error", lastErr)
	return nil
}
