package domain

import "context"

// UnitOfWork groups the repositories behind one storage backend. Repositories
// obtained from the UnitOfWork passed to WithTransaction share one atomic unit.
type UnitOfWork interface {
	Users() UserRepository
	Books() BookRepository
	Transactions() TransactionRepository
	Overdues() OverdueRepository
	Notifications() NotificationRepository
	WithTransaction(ctx context.Context, fn func(UnitOfWork) error) error
	Ping(ctx context.Context) error
}
