package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"library-catalog/internal/domain"
	"library-catalog/internal/errors"
	"library-catalog/internal/service"
)

const userCacheSize = 1024

type contextKey struct{}

// Authenticator resolves bearer tokens to users. Users are cached briefly so
// role or status changes take effect within the cache TTL.
type Authenticator struct {
	users  *service.UserService
	cache  *expirable.LRU[int64, *domain.User]
	logger *slog.Logger
}

func NewAuthenticator(users *service.UserService, cacheTTL time.Duration, logger *slog.Logger) *Authenticator {
	return &Authenticator{
		users:  users,
		cache:  expirable.NewLRU[int64, *domain.User](userCacheSize, nil, cacheTTL),
		logger: logger,
	}
}

// Middleware rejects requests without a valid bearer token and stores the
// caller in the request context.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			writeError(w, errors.ErrUnauthorized)
			return
		}

		claims, err := a.users.VerifyToken(token)
		if err != nil {
			writeError(w, err)
			return
		}

		user, ok := a.cache.Get(claims.UserID)
		if !ok {
			user, err = a.users.GetUser(r.Context(), claims.UserID)
			if err != nil {
				if errors.Is(err, errors.ErrUserNotFound) {
					err = errors.ErrUnauthorized.WithDetails("user no longer exists")
				}
				writeError(w, err)
				return
			}
			a.cache.Add(user.ID, user)
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), contextKey{}, user)))
	})
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return "", false
	}
	return strings.TrimSpace(token), true
}

// UserFromContext returns the authenticated caller.
func UserFromContext(ctx context.Context) *domain.User {
	user, _ := ctx.Value(contextKey{}).(*domain.User)
	return user
}
