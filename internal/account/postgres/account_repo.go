// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Credity Contributors

// Package postgres stores accounts in PostgreSQL.
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
)

// DB is the subset of *pgxpool.Pool the repository uses.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const accountColumns = `id, email, first_name, last_name, password_hash,
	is_staff, is_superuser, is_active, email_verified,
	failed_attempts, locked_until, date_joined, updated_at`

// AccountRepository implements account.Repository using PostgreSQL.
type AccountRepository struct {
	db DB
}

// NewAccountRepository creates a new AccountRepository.
func NewAccountRepository(db DB) *AccountRepository {
	return &AccountRepository{db: db}
}

// Create inserts a new account. A unique violation on the email index is
// reported as account.ErrDuplicateEmail.
func (r *AccountRepository) Create(ctx context.Context, acct *account.Account) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO accounts (`+accountColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`,
		acct.ID.String(),
		account.NormalizeEmail(acct.Email),
		acct.FirstName,
		acct.LastName,
		acct.PasswordHash,
		acct.IsStaff,
		acct.IsSuperuser,
		acct.IsActive,
		acct.EmailVerified,
		acct.FailedAttempts,
		acct.LockedUntil,
		acct.DateJoined,
		acct.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return oops.Code(account.CodeDuplicateEmail).
			With("email", acct.Email).
			Wrap(account.ErrDuplicateEmail)
	}
	if err != nil {
		return oops.Code("ACCOUNT_CREATE_FAILED").
			With("operation", "insert account").
			With("id", acct.ID.String()).
			Wrap(err)
	}
	return nil
}

// GetByID retrieves an account by ID.
func (r *AccountRepository) GetByID(ctx context.Context, id ulid.ULID) (*account.Account, error) {
	row := r.db.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id.String())
	acct, err := scanAccount(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code(account.CodeNotFound).With("id", id.String()).Wrap(account.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("ACCOUNT_GET_FAILED").
			With("operation", "get account by id").
			With("id", id.String()).
			Wrap(err)
	}
	return acct, nil
}

// GetByEmail retrieves an account by email, case-insensitively.
func (r *AccountRepository) GetByEmail(ctx context.Context, email string) (*account.Account, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE LOWER(email) = LOWER($1)`,
		account.NormalizeEmail(email))
	acct, err := scanAccount(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code(account.CodeNotFound).With("email", email).Wrap(account.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("ACCOUNT_GET_FAILED").
			With("operation", "get account by email").
			With("email", email).
			Wrap(err)
	}
	return acct, nil
}

// Update persists email, names and flags. The password hash, join date and
// lockout columns have their own writers.
func (r *AccountRepository) Update(ctx context.Context, acct *account.Account) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE accounts SET
			email = $2,
			first_name = $3,
			last_name = $4,
			is_staff = $5,
			is_superuser = $6,
			is_active = $7,
			email_verified = $8,
			updated_at = $9
		WHERE id = $1
	`,
		acct.ID.String(),
		account.NormalizeEmail(acct.Email),
		acct.FirstName,
		acct.LastName,
		acct.IsStaff,
		acct.IsSuperuser,
		acct.IsActive,
		acct.EmailVerified,
		acct.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return oops.Code(account.CodeDuplicateEmail).
			With("email", acct.Email).
			Wrap(account.ErrDuplicateEmail)
	}
	if err != nil {
		return oops.Code("ACCOUNT_UPDATE_FAILED").
			With("operation", "update account").
			With("id", acct.ID.String()).
			Wrap(err)
	}
	if tag.RowsAffected() == 0 {
		return oops.Code(account.CodeNotFound).With("id", acct.ID.String()).Wrap(account.ErrNotFound)
	}
	return nil
}

// UpdatePassword replaces the password hash.
func (r *AccountRepository) UpdatePassword(ctx context.Context, id ulid.ULID, passwordHash string) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE accounts SET password_hash = $2, updated_at = NOW() WHERE id = $1`,
		id.String(), passwordHash)
	if err != nil {
		return oops.Code("ACCOUNT_UPDATE_FAILED").
			With("operation", "update password").
			With("id", id.String()).
			Wrap(err)
	}
	if tag.RowsAffected() == 0 {
		return oops.Code(account.CodeNotFound).With("id", id.String()).Wrap(account.ErrNotFound)
	}
	return nil
}

// ReplacePasswordHash swaps the hash only while it still equals oldHash.
// A missing account and a changed hash both report false.
func (r *AccountRepository) ReplacePasswordHash(ctx context.Context, id ulid.ULID, oldHash, newHash string) (bool, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE accounts SET password_hash = $3, updated_at = NOW()
		WHERE id = $1 AND password_hash = $2
	`, id.String(), oldHash, newHash)
	if err != nil {
		return false, oops.Code("ACCOUNT_UPDATE_FAILED").
			With("operation", "replace password hash").
			With("id", id.String()).
			Wrap(err)
	}
	return tag.RowsAffected() == 1, nil
}

// RecordLoginFailure increments failed_attempts in the row and sets
// locked_until once the new count reaches the threshold.
func (r *AccountRepository) RecordLoginFailure(ctx context.Context, id ulid.ULID, now time.Time) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE accounts SET
			failed_attempts = failed_attempts + 1,
			locked_until = CASE WHEN failed_attempts + 1 >= $2 THEN $3::timestamptz ELSE NULL END,
			updated_at = $4
		WHERE id = $1
	`, id.String(), account.LockoutThreshold, now.Add(account.LockoutDuration), now)
	return lockoutResult(tag, err, id, "record login failure")
}

// ResetLoginFailures clears failed_attempts and locked_until.
func (r *AccountRepository) ResetLoginFailures(ctx context.Context, id ulid.ULID, now time.Time) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE accounts SET failed_attempts = 0, locked_until = NULL, updated_at = $2
		WHERE id = $1
	`, id.String(), now)
	return lockoutResult(tag, err, id, "reset login failures")
}

func lockoutResult(tag pgconn.CommandTag, err error, id ulid.ULID, operation string) error {
	if err != nil {
		return oops.Code("ACCOUNT_UPDATE_FAILED").
			With("operation", operation).
			With("id", id.String()).
			Wrap(err)
	}
	if tag.RowsAffected() == 0 {
		return oops.Code(account.CodeNotFound).With("id", id.String()).Wrap(account.ErrNotFound)
	}
	return nil
}

// Delete removes an account. Its refresh tokens go with it through the
// foreign key cascade.
func (r *AccountRepository) Delete(ctx context.Context, id ulid.ULID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM accounts WHERE id = $1`, id.String())
	if err != nil {
		return oops.Code("ACCOUNT_DELETE_FAILED").
			With("operation", "delete account").
			With("id", id.String()).
			Wrap(err)
	}
	if tag.RowsAffected() == 0 {
		return oops.Code(account.CodeNotFound).With("id", id.String()).Wrap(account.ErrNotFound)
	}
	return nil
}

func scanAccount(row pgx.Row) (*account.Account, error) {
	var (
		acct  account.Account
		idStr string
	)
	err := row.Scan(
		&idStr,
		&acct.Email,
		&acct.FirstName,
		&acct.LastName,
		&acct.PasswordHash,
		&acct.IsStaff,
		&acct.IsSuperuser,
		&acct.IsActive,
		&acct.EmailVerified,
		&acct.FailedAttempts,
		&acct.LockedUntil,
		&acct.DateJoined,
		&acct.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	acct.ID, err = ulid.Parse(idStr)
	if err != nil {
		return nil, oops.Code("ACCOUNT_CORRUPT_ID").With("id", idStr).Wrap(err)
	}
	return &acct, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}

var _ account.Repository = (*AccountRepository)(nil)
