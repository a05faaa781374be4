// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Credity Contributors

// Package postgres stores refresh-token records in PostgreSQL.
package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/anerua/Credity/internal/account"
	"github.com/anerua/Credity/internal/session"
)

// DB is the subset of *pgxpool.Pool the store uses.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// RefreshTokenStore implements session.RefreshTokenStore on the
// refresh_tokens table.
type RefreshTokenStore struct {
	db DB
}

// NewRefreshTokenStore creates a new RefreshTokenStore.
func NewRefreshTokenStore(db DB) *RefreshTokenStore {
	return &RefreshTokenStore{db: db}
}

// Save records a newly issued token.
func (s *RefreshTokenStore) Save(ctx context.Context, token *session.RefreshToken) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO refresh_tokens (jti, account_id, issued_at, expires_at, revoked_at)
		VALUES ($1, $2, $3, $4, $5)
	`, token.JTI, token.AccountID.String(), token.IssuedAt, token.ExpiresAt, token.RevokedAt)
	if err == nil {
		return nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgerrcode.UniqueViolation:
			return oops.Code("REFRESH_TOKEN_EXISTS").With("jti", token.JTI).Wrap(err)
		case pgerrcode.ForeignKeyViolation:
			return oops.Code(account.CodeNotFound).
				With("id", token.AccountID.String()).
				Wrap(account.ErrNotFound)
		}
	}
	return oops.Code("REFRESH_TOKEN_SAVE_FAILED").
		With("jti", token.JTI).
		With("account_id", token.AccountID.String()).
		Wrap(err)
}

// Get returns the record for jti.
func (s *RefreshTokenStore) Get(ctx context.Context, jti string) (*session.RefreshToken, error) {
	var (
		token     session.RefreshToken
		accountID string
	)
	err := s.db.QueryRow(ctx, `
		SELECT jti, account_id, issued_at, expires_at, revoked_at
		FROM refresh_tokens
		WHERE jti = $1
	`, jti).Scan(&token.JTI, &accountID, &token.IssuedAt, &token.ExpiresAt, &token.RevokedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("REFRESH_TOKEN_NOT_FOUND").With("jti", jti).Wrap(session.ErrTokenNotFound)
	}
	if err != nil {
		return nil, oops.Code("REFRESH_TOKEN_GET_FAILED").With("jti", jti).Wrap(err)
	}

	token.AccountID, err = ulid.Parse(accountID)
	if err != nil {
		return nil, oops.Code("REFRESH_TOKEN_CORRUPT").With("jti", jti).Wrap(err)
	}
	return &token, nil
}

// Revoke marks one token revoked. The conditional update makes concurrent
// revocations of the same jti report true exactly once.
func (s *RefreshTokenStore) Revoke(ctx context.Context, jti string, at time.Time) (bool, error) {
	tag, err := s.db.Exec(ctx,
		`UPDATE refresh_tokens SET revoked_at = $2 WHERE jti = $1 AND revoked_at IS NULL`,
		jti, at)
	if err != nil {
		return false, oops.Code("REFRESH_TOKEN_REVOKE_FAILED").With("jti", jti).Wrap(err)
	}
	if tag.RowsAffected() == 1 {
		return true, nil
	}

	var exists bool
	err = s.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM refresh_tokens WHERE jti = $1)`, jti).Scan(&exists)
	if err != nil {
		return false, oops.Code("REFRESH_TOKEN_REVOKE_FAILED").With("jti", jti).Wrap(err)
	}
	if !exists {
		return false, oops.Code("REFRESH_TOKEN_NOT_FOUND").With("jti", jti).Wrap(session.ErrTokenNotFound)
	}
	return false, nil
}

// RevokeAll marks every unrevoked token of an account revoked.
func (s *RefreshTokenStore) RevokeAll(ctx context.Context, accountID ulid.ULID, at time.Time) (int64, error) {
	tag, err := s.db.Exec(ctx,
		`UPDATE refresh_tokens SET revoked_at = $2 WHERE account_id = $1 AND revoked_at IS NULL`,
		accountID.String(), at)
	if err != nil {
		return 0, oops.Code("REFRESH_TOKEN_REVOKE_FAILED").
			With("account_id", accountID.String()).
			Wrap(err)
	}
	return tag.RowsAffected(), nil
}

// DeleteExpired removes records that expired before the given time.
func (s *RefreshTokenStore) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.db.Exec(ctx, `DELETE FROM refresh_tokens WHERE expires_at < $1`, before)
	if err != nil {
		return 0, oops.Code("REFRESH_TOKEN_SWEEP_FAILED").Wrap(err)
	}
	return tag.RowsAffected(), nil
}

var _ session.RefreshTokenStore = (*RefreshTokenStore)(nil)
