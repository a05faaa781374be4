// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Credity Contributors

package session

import (
	"context"
	"errors"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// CodeInvalidToken marks expired, malformed or revoked tokens.
const CodeInvalidToken = "SESSION_INVALID_TOKEN"

// ErrTokenNotFound is returned when no refresh token has the requested jti.
var ErrTokenNotFound = errors.New("refresh token not found")

// RefreshToken is the stored record of an issued refresh token.
type RefreshToken struct {
	JTI       string
	AccountID ulid.ULID
	IssuedAt  time.Time
	ExpiresAt time.Time
	RevokedAt *time.Time
}

// IsRevoked reports whether the token has been revoked.
func (t *RefreshToken) IsRevoked() bool {
	return t.RevokedAt != nil
}

// IsExpired reports whether the token expired at or before now.
func (t *RefreshToken) IsExpired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

// RefreshTokenStore tracks issued refresh tokens by jti.
type RefreshTokenStore interface {
	// Save records a newly issued token.
	Save(ctx context.Context, token *RefreshToken) error

	// Get returns the record for jti, or ErrTokenNotFound.
	Get(ctx context.Context, jti string) (*RefreshToken, error)

	// Revoke marks a single token revoked. It reports false if the token was
	// already revoked and ErrTokenNotFound if it does not exist.
	Revoke(ctx context.Context, jti string, at time.Time) (bool, error)

	// RevokeAll marks every unrevoked token of an account revoked and
	// returns how many changed.
	RevokeAll(ctx context.Context, accountID ulid.ULID, at time.Time) (int64, error)

	// DeleteExpired removes records that expired before the given time.
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

func errInvalidToken(reason string, cause error) error {
	builder := oops.Code(CodeInvalidToken).With("reason", reason)
	if cause != nil {
		return builder.Wrap(cause)
	}
	return builder.Errorf("invalid token: %s", reason)
}
