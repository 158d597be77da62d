package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"library-catalog/internal/domain"
	"library-catalog/internal/errors"
)

func TestIssuer_RoundTrip(t *testing.T) {
	issuer := NewIssuer("secret", time.Hour)
	user := &domain.User{ID: 7, Role: domain.RoleAdmin}

	token, expiry, err := issuer.Issue(user)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expiry, time.Second)

	claims, err := issuer.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, int64(7), claims.UserID)
	assert.Equal(t, domain.RoleAdmin, claims.Role)
}

func TestIssuer_RejectsTamperedToken(t *testing.T) {
	issuer := NewIssuer("secret", time.Hour)
	token, _, err := issuer.Issue(&domain.User{ID: 1, Role: domain.RoleMember})
	require.NoError(t, err)

	payload, sig, _ := strings.Cut(token, ".")
	forged, _, err := NewIssuer("other", time.Hour).Issue(&domain.User{ID: 1, Role: domain.RoleAdmin})
	require.NoError(t, err)
	forgedPayload, _, _ := strings.Cut(forged, ".")

	_, err = issuer.Verify(forgedPayload + "." + sig)
	assert.True(t, errors.Is(err, errors.ErrUnauthorized))

	_, err = issuer.Verify(payload)
	assert.True(t, errors.Is(err, errors.ErrUnauthorized))
}

func TestIssuer_RejectsExpiredToken(t *testing.T) {
	issuer := NewIssuer("secret", time.Minute)
	issuer.now = func() time.Time { return time.Now().Add(-2 * time.Minute) }
	token, _, err := issuer.Issue(&domain.User{ID: 1, Role: domain.RoleMember})
	require.NoError(t, err)

	issuer.now = time.Now
	_, err = issuer.Verify(token)
	assert.True(t, errors.Is(err, errors.ErrUnauthorized))
}

func TestPassword(t *testing.T) {
	_, err := HashPassword("short")
	assert.True(t, errors.Is(err, errors.ErrInvalidInput))

	hash, err := HashPassword("correct horse")
	require.NoError(t, err)
	assert.True(t, CheckPassword(hash, "correct horse"))
	assert.False(t, CheckPassword(hash, "wrong horse!"))
}
