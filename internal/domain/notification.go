package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type NotificationType string

const (
	NotificationOverdue   NotificationType = "overdue"
	NotificationReturned  NotificationType = "returned"
	NotificationAvailable NotificationType = "available"
)

// Notification is the read/unread log entry kept for a dispatched message.
type Notification struct {
	ID     uuid.UUID        `json:"id"`
	UserID int64            `json:"user_id"`
	BookID int64            `json:"book_id"`
	Type   NotificationType `json:"notification_type"`
	Date   time.Time        `json:"notification_date"`
	IsRead bool             `json:"is_read"`
}

func NewNotification(userID, bookID int64, kind NotificationType, at time.Time) *Notification {
	return &Notification{
		ID:     uuid.New(),
		UserID: userID,
		BookID: bookID,
		Type:   kind,
		Date:   at,
	}
}

type NotificationRepository interface {
	CreateNotification(ctx context.Context, n *Notification) error
	ListNotificationsByUser(ctx context.Context, userID int64) ([]Notification, error)
	MarkNotificationRead(ctx context.Context, id uuid.UUID, userID int64) error
	// AddWatch subscribes the user to an availability notice for the book.
	AddWatch(ctx context.Context, userID, bookID int64) error
	// TakeWatchers removes and returns every user watching the book.
	TakeWatchers(ctx context.Context, bookID int64) ([]int64, error)
}
