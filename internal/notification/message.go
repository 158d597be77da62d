// Package notification hands messages about circulation events to a queue
// and delivers them in the background.
package notification

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"library-catalog/internal/domain"
)

type Message struct {
	ID         uuid.UUID               `json:"id"`
	Category   domain.NotificationType `json:"category"`
	Recipients []string                `json:"recipients"`
	Subject    string                  `json:"subject"`
	Body       string                  `json:"body"`
	UserID     int64                   `json:"user_id"`
	BookID     int64                   `json:"book_id"`
	CreatedAt  time.Time               `json:"created_at"`
}

func newMessage(kind domain.NotificationType, user *domain.User, book *domain.Book, subject, body string) Message {
	return Message{
		ID:         uuid.New(),
		Category:   kind,
		Recipients: []string{user.Email},
		Subject:    subject,
		Body:       body,
		UserID:     user.ID,
		BookID:     book.ID,
		CreatedAt:  time.Now().UTC(),
	}
}

func OverdueMessage(user *domain.User, book *domain.Book, due time.Time) Message {
	return newMessage(domain.NotificationOverdue, user, book,
		fmt.Sprintf("Overdue Book Notification: %s", book.Title),
		fmt.Sprintf("Dear %s,\n\nThe book '%s' was due on %s. Please return it as soon as possible.",
			user.Username, book.Title, due.Format("2006-01-02")),
	)
}

func ReturnedMessage(user *domain.User, book *domain.Book) Message {
	return newMessage(domain.NotificationReturned, user, book,
		"Book Returned",
		fmt.Sprintf("You have successfully returned the book \"%s\". Thank you!", book.Title),
	)
}

func AvailableMessage(user *domain.User, book *domain.Book) Message {
	return newMessage(domain.NotificationAvailable, user, book,
		fmt.Sprintf("Book Available: %s", book.Title),
		fmt.Sprintf("Dear %s,\n\nThe book '%s' is now available for checkout.", user.Username, book.Title),
	)
}
