// Package auth issues and verifies the bearer tokens used by the HTTP API.
package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"strings"
	"time"

	"library-catalog/internal/domain"
	"library-catalog/internal/errors"
)

// Claims is the payload carried by a token.
type Claims struct {
	UserID    int64       `json:"user_id"`
	Role      domain.Role `json:"role"`
	IssuedAt  int64       `json:"iat"`
	ExpiresAt int64       `json:"exp"`
}

// Issuer signs tokens with HMAC-SHA256. A token is the base64url payload and
// signature joined by a dot.
type Issuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewIssuer(secret string, ttl time.Duration) *Issuer {
	return &Issuer{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

func (i *Issuer) Issue(user *domain.User) (string, time.Time, error) {
	now := i.now()
	expiry := now.Add(i.ttl)
	claims := Claims{
		UserID:    user.ID,
		Role:      user.Role,
		IssuedAt:  now.Unix(),
		ExpiresAt: expiry.Unix(),
	}

	payload, err := json.Marshal(claims)
	if err != nil {
		return "", time.Time{}, errors.NewAppError(errors.InternalError, "failed to encode token").WithDetails(err.Error())
	}

	encoded := base64.RawURLEncoding.EncodeToString(payload)
	return encoded + "." + i.sign(encoded), expiry, nil
}

// Verify checks the signature and expiry of token and returns its claims.
func (i *Issuer) Verify(token string) (*Claims, error) {
	encoded, signature, ok := strings.Cut(token, ".")
	if !ok || encoded == "" || signature == "" {
		return nil, errors.ErrUnauthorized.WithDetails("malformed token")
	}

	if !hmac.Equal([]byte(signature), []byte(i.sign(encoded))) {
		return nil, errors.ErrUnauthorized.WithDetails("invalid token signature")
	}

	payload, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return nil, errors.ErrUnauthorized.WithDetails("malformed token")
	}

	var claims Claims
	if err := json.Unmarshal(payload, &claims); err != nil {
		return nil, errors.ErrUnauthorized.WithDetails("malformed token")
	}

	if i.now().Unix() >= claims.ExpiresAt {
		return nil, errors.ErrUnauthorized.WithDetails("token expired")
	}

	return &claims, nil
}

func (i *Issuer) sign(encoded string) string {
	mac := hmac.New(sha256.New, i.secret)
	mac.Write([]byte(encoded))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}
