package notification

import (
	"context"
	stderrors "errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"library-catalog/internal/domain"
	"library-catalog/internal/errors"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func sampleMessage() Message {
	user := &domain.User{ID: 3, Username: "ada", Email: "ada@example.com"}
	book := &domain.Book{ID: 9, Title: "Dune"}
	return OverdueMessage(user, book, time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC))
}

func TestMessageBuilders(t *testing.T) {
	msg := sampleMessage()
	assert.Equal(t, domain.NotificationOverdue, msg.Category)
	assert.Equal(t, []string{"ada@example.com"}, msg.Recipients)
	assert.Equal(t, "Overdue Book Notification: Dune", msg.Subject)
	assert.Contains(t, msg.Body, "was due on 2024-01-15")
	assert.Equal(t, int64(3), msg.UserID)
	assert.Equal(t, int64(9), msg.BookID)

	user := &domain.User{ID: 3, Username: "ada", Email: "ada@example.com"}
	book := &domain.Book{ID: 9, Title: "Dune"}
	assert.Equal(t, "Book Returned", ReturnedMessage(user, book).Subject)
	assert.Equal(t, "Book Available: Dune", AvailableMessage(user, book).Subject)
}

func TestMemoryQueue_FullAndClosed(t *testing.T) {
	q := NewMemoryQueue(1)
	ctx := context.Background()

	require.NoError(t, q.Publish(ctx, sampleMessage()))
	assert.True(t, errors.Is(q.Publish(ctx, sampleMessage()), errors.ErrQueueFull))
	assert.Equal(t, 1, q.Len())

	require.NoError(t, q.Close())
	assert.True(t, errors.Is(q.Publish(ctx, sampleMessage()), errors.ErrQueueClosed))
	require.NoError(t, q.Close())
}

func TestDispatcher_RejectsMessageWithoutRecipients(t *testing.T) {
	d := NewDispatcher(NewMemoryQueue(1), discardLogger())

	msg := sampleMessage()
	msg.Recipients = nil
	assert.True(t, errors.Is(d.Dispatch(context.Background(), msg), errors.ErrInvalidInput))
}

func TestWorker_DeliversQueuedMessages(t *testing.T) {
	q := NewMemoryQueue(4)
	d := NewDispatcher(q, discardLogger())

	var mu sync.Mutex
	var delivered []Message
	sender := SenderFunc(func(_ context.Context, msg Message) error {
		mu.Lock()
		defer mu.Unlock()
		delivered = append(delivered, msg)
		return nil
	})

	require.NoError(t, d.Dispatch(context.Background(), sampleMessage()))
	require.NoError(t, d.Dispatch(context.Background(), sampleMessage()))
	require.NoError(t, q.Close())

	w := NewWorker(q, sender, discardLogger(), WithBackoff(0))
	require.NoError(t, w.Run(context.Background()))

	assert.Len(t, delivered, 2)
}

func TestWorker_DropsAfterMaxAttempts(t *testing.T) {
	q := NewMemoryQueue(1)
	var attempts atomic.Int32
	sender := SenderFunc(func(context.Context, Message) error {
		attempts.Add(1)
		return stderrors.New("smtp unavailable")
	})

	require.NoError(t, q.Publish(context.Background(), sampleMessage()))
	require.NoError(t, q.Close())

	w := NewWorker(q, sender, discardLogger(), WithBackoff(time.Millisecond))
	require.NoError(t, w.Run(context.Background()))

	assert.Equal(t, int32(DefaultMaxAttempts), attempts.Load())
}

func TestWorker_RetriesUntilSuccess(t *testing.T) {
	q := NewMemoryQueue(1)
	var attempts atomic.Int32
	sender := SenderFunc(func(context.Context, Message) error {
		if attempts.Add(1) < 2 {
			return stderrors.New("temporary")
		}
		return nil
	})

	require.NoError(t, q.Publish(context.Background(), sampleMessage()))
	require.NoError(t, q.Close())

	w := NewWorker(q, sender, discardLogger(), WithMaxAttempts(5), WithBackoff(time.Millisecond))
	require.NoError(t, w.Run(context.Background()))

	assert.Equal(t, int32(2), attempts.Load())
}

func TestWorker_StopsOnCancel(t *testing.T) {
	q := NewMemoryQueue(1)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- NewWorker(q, LogSender{Logger: discardLogger()}, discardLogger()).Run(ctx)
	}()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("worker did not stop")
	}
}
