// Package policy holds the single authorization predicate used by the
// services.
package policy

import (
	"library-catalog/internal/domain"
	"library-catalog/internal/errors"
)

type Action string

const (
	ActionCheckout        Action = "checkout"
	ActionReturn          Action = "return"
	ActionViewTransaction Action = "view_transaction"
	ActionManageBooks     Action = "manage_books"
	ActionScanOverdue     Action = "scan_overdue"
	ActionViewOverdue     Action = "view_overdue"
	ActionPayPenalty      Action = "pay_penalty"
	ActionWatchBook       Action = "watch_book"
)

// Authorize decides whether actor may perform action on a resource owned by
// ownerID. ownerID is ignored for actions without an owner.
func Authorize(actor *domain.User, action Action, ownerID int64) error {
	if actor == nil {
		return errors.ErrUnauthorized
	}
	if !actor.IsActive {
		return errors.ErrForbidden.WithDetails("account is inactive")
	}

	switch action {
	case ActionCheckout, ActionWatchBook:
		return nil
	case ActionReturn, ActionViewTransaction:
		if actor.IsAdmin() || actor.ID == ownerID {
			return nil
		}
		return errors.ErrForbidden
	case ActionManageBooks, ActionScanOverdue, ActionViewOverdue, ActionPayPenalty:
		if actor.IsAdmin() {
			return nil
		}
		return errors.ErrForbidden.WithDetails("admin role required")
	default:
		return errors.ErrForbidden.WithDetails("unknown action")
	}
}
