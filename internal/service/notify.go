package service

import (
	"context"
	"log/slog"
	"time"

	"library-catalog/internal/domain"
	"library-catalog/internal/errors"
	"library-catalog/internal/notification"
)

// Notifier accepts messages for background delivery.
type Notifier interface {
	Dispatch(ctx context.Context, msg notification.Message) error
}

// outbox collects the messages produced inside a unit of work so they can be
// dispatched once it has committed.
type outbox struct {
	messages []notification.Message
}

func (o *outbox) reset() {
	o.messages = o.messages[:0]
}

// record writes the notification log row and queues msg when the user wants
// e-mail.
func (o *outbox) record(ctx context.Context, uow domain.UnitOfWork, user *domain.User, msg notification.Message, at time.Time) error {
	entry := domain.NewNotification(user.ID, msg.BookID, msg.Category, at)
	if err := uow.Notifications().CreateNotification(ctx, entry); err != nil {
		return err
	}
	if user.IsActive && user.EmailNotifications && user.Email != "" {
		o.messages = append(o.messages, msg)
	}
	return nil
}

func (o *outbox) flush(ctx context.Context, notifier Notifier, logger *slog.Logger) {
	for _, msg := range o.messages {
		if err := notifier.Dispatch(ctx, msg); err != nil {
			logger.Error("Failed to dispatch notification",
				"category", msg.Category,
				"user_id", msg.UserID,
				"book_id", msg.BookID,
				"error", err)
		}
	}
	o.reset()
}

// notifyWatchers records an availability notice for everyone watching book.
func notifyWatchers(ctx context.Context, uow domain.UnitOfWork, box *outbox, book *domain.Book, at time.Time) error {
	watchers, err := uow.Notifications().TakeWatchers(ctx, book.ID)
	if err != nil {
		return err
	}

	for _, userID := range watchers {
		user, err := uow.Users().GetUser(ctx, userID)
		if err != nil {
			if errors.Is(err, errors.ErrUserNotFound) {
				continue
			}
			return err
		}
		if err := box.record(ctx, uow, user, notification.AvailableMessage(user, book), at); err != nil {
			return err
		}
	}
	return nil
}
