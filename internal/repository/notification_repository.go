package repository

import (
	"context"
	"log/slog"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/google/uuid"

	"library-catalog/internal/domain"
	"library-catalog/internal/errors"
)

const tableNotifications = "notifications"

type notificationRepository struct {
	db     SQLExecutor
	logger *slog.Logger
}

func NewNotificationRepository(db SQLExecutor, logger *slog.Logger) domain.NotificationRepository {
	return &notificationRepository{
		db:     db,
		logger: logger,
	}
}

func (r *notificationRepository) CreateNotification(ctx context.Context, n *domain.Notification) error {
	query := `
		INSERT INTO notifications (id, user_id, book_id, notification_type, notification_date, is_read)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.db.ExecContext(ctx, query, n.ID, n.UserID, n.BookID, string(n.Type), n.Date, n.IsRead)
	if err != nil {
		r.logger.Error("Failed to create notification", "user_id", n.UserID, "type", n.Type, "error", err)
		return internalError("failed to create notification", err)
	}

	r.logger.Debug("Notification logged", "notification_id", n.ID, "user_id", n.UserID, "type", n.Type)
	return nil
}

func (r *notificationRepository) ListNotificationsByUser(ctx context.Context, userID int64) ([]domain.Notification, error) {
	query, args, err := dialect.From(tableNotifications).
		Select("id", "user_id", "book_id", "notification_type", "notification_date", "is_read").
		Where(goqu.C("user_id").Eq(userID)).
		Order(goqu.I("notification_date").Desc()).
		Prepared(true).
		ToSQL()
	if err != nil {
		return nil, errors.NewAppError(errors.InternalError, "failed to build notification query").WithDetails(err.Error())
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list notifications", "user_id", userID, "error", err)
		return nil, internalError("failed to list notifications", err)
	}
	defer rows.Close()

	notifications := make([]domain.Notification, 0)
	for rows.Next() {
		var n domain.Notification
		var kind string
		if err := rows.Scan(&n.ID, &n.UserID, &n.BookID, &kind, &n.Date, &n.IsRead); err != nil {
			return nil, internalError("failed to scan notification", err)
		}
		n.Type = domain.NotificationType(kind)
		notifications = append(notifications, n)
	}
	if err := rows.Err(); err != nil {
		return nil, internalError("failed to list notifications", err)
	}

	return notifications, nil
}

func (r *notificationRepository) MarkNotificationRead(ctx context.Context, id uuid.UUID, userID int64) error {
	query := `UPDATE notifications SET is_read = TRUE WHERE id = $1 AND user_id = $2`

	result, err := r.db.ExecContext(ctx, query, id, userID)
	if err != nil {
		r.logger.Error("Failed to mark notification read", "notification_id", id, "error", err)
		return internalError("failed to mark notification read", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return internalError("failed to get rows affected", err)
	}
	if rowsAffected == 0 {
		return errors.ErrNotificationNotFound
	}
	return nil
}

func (r *notificationRepository) AddWatch(ctx context.Context, userID, bookID int64) error {
	query := `
		INSERT INTO book_watches (user_id, book_id, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, book_id) DO NOTHING
	`

	if _, err := r.db.ExecContext(ctx, query, userID, bookID, time.Now().UTC()); err != nil {
		if isForeignKeyViolation(err) {
			return errors.ErrBookNotFound
		}
		r.logger.Error("Failed to add watch", "user_id", userID, "book_id", bookID, "error", err)
		return internalError("failed to add watch", err)
	}
	return nil
}

func (r *notificationRepository) TakeWatchers(ctx context.Context, bookID int64) ([]int64, error) {
	query := `DELETE FROM book_watches WHERE book_id = $1 RETURNING user_id`

	rows, err := r.db.QueryContext(ctx, query, bookID)
	if err != nil {
		r.logger.Error("Failed to take watchers", "book_id", bookID, "error", err)
		return nil, internalError("failed to take watchers", err)
	}
	defer rows.Close()

	userIDs := make([]int64, 0)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, internalError("failed to scan watcher", err)
		}
		userIDs = append(userIDs, id)
	}
	if err := rows.Err(); err != nil {
		return nil, internalError("failed to take watchers", err)
	}

	return userIDs, nil
}
