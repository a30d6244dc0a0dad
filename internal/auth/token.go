// Package auth turns upstream-issued bearer tokens into explicit
// domain.Session values. The gateway never mints tokens and does not hold
// the signing key, so claims are decoded without signature verification;
// the upstream re-checks the signature on every call we forward.
package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/hoangtm/cinebook/internal/domain"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("session expired")
)

type claims struct {
	UserID   int64    `json:"userId"`
	ID       int64    `json:"id"`
	Username string   `json:"username"`
	Email    string   `json:"email"`
	Roles    []string `json:"roles"`
	jwt.RegisteredClaims
}

// ParseSession decodes a bearer token into a Session. An expired exp claim
// is reported as ErrTokenExpired so callers can answer 401 without a round
// trip to the upstream.
func ParseSession(token string) (*domain.Session, error) {
	const op = "auth.ParseSession"

	if token == "" {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidToken)
	}

	var c claims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &c); err != nil {
		return nil, fmt.Errorf("%s: %w: %v", op, ErrInvalidToken, err)
	}

	userID := c.UserID
	if userID == 0 {
		userID = c.ID
	}
	if userID == 0 && c.Subject != "" {
		// Some upstream builds put the numeric user id in sub.
		if v, err := strconv.ParseInt(c.Subject, 10, 64); err == nil {
			userID = v
		}
	}
	if userID == 0 {
		return nil, fmt.Errorf("%s: %w: no user id claim", op, ErrInvalidToken)
	}

	sess := &domain.Session{
		UserID:   userID,
		Username: c.Username,
		Email:    c.Email,
		Roles:    c.Roles,
		Token:    token,
	}
	if sess.Username == "" {
		sess.Username = c.Subject
	}

	if c.ExpiresAt != nil {
		sess.Expires = c.ExpiresAt.Time
		if time.Now().After(sess.Expires) {
			return nil, fmt.Errorf("%s: %w", op, ErrTokenExpired)
		}
	}

	return sess, nil
}
