package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"library-catalog/internal/domain"
	"library-catalog/internal/errors"
)

func TestAuthorize(t *testing.T) {
	admin := &domain.User{ID: 1, Role: domain.RoleAdmin, IsActive: true}
	member := &domain.User{ID: 2, Role: domain.RoleMember, IsActive: true}
	inactive := &domain.User{ID: 3, Role: domain.RoleMember}

	tests := []struct {
		name    string
		actor   *domain.User
		action  Action
		owner   int64
		wantErr *errors.AppError
	}{
		{"anonymous", nil, ActionCheckout, 0, errors.ErrUnauthorized},
		{"inactive member checkout", inactive, ActionCheckout, 0, errors.ErrForbidden},
		{"member checkout", member, ActionCheckout, 0, nil},
		{"admin checkout", admin, ActionCheckout, 0, nil},
		{"owner returns", member, ActionReturn, member.ID, nil},
		{"other member returns", member, ActionReturn, 99, errors.ErrForbidden},
		{"admin returns for member", admin, ActionReturn, member.ID, nil},
		{"member views other transaction", member, ActionViewTransaction, 99, errors.ErrForbidden},
		{"member manages books", member, ActionManageBooks, 0, errors.ErrForbidden},
		{"admin manages books", admin, ActionManageBooks, 0, nil},
		{"member scans", member, ActionScanOverdue, 0, errors.ErrForbidden},
		{"admin pays penalty", admin, ActionPayPenalty, 0, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Authorize(tt.actor, tt.action, tt.owner)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
		})
	}
}
