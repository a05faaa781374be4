// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Credity Contributors

package account

import (
	"context"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Field length limits.
const (
	MaxNameLength  = 150
	MaxEmailLength = 254
)

// Account is a registered user.
type Account struct {
	ID             ulid.ULID
	Email          string
	FirstName      string
	LastName       string
	PasswordHash   string
	IsStaff        bool
	IsSuperuser    bool
	IsActive       bool
	EmailVerified  bool
	FailedAttempts int
	LockedUntil    *time.Time
	DateJoined     time.Time
	UpdatedAt      time.Time
}

// Profile is the caller-facing view of an account.
type Profile struct {
	Email     string
	FirstName string
	LastName  string
}

// Profile returns the outward projection of a.
func (a *Account) Profile() Profile {
	return Profile{Email: a.Email, FirstName: a.FirstName, LastName: a.LastName}
}

// NewAccount creates an active account with a fresh ID.
// The email is normalized; names are trimmed.
func NewAccount(email, firstName, lastName, passwordHash string, emailVerified bool, now time.Time) (*Account, error) {
	email = NormalizeEmail(email)
	firstName = strings.TrimSpace(firstName)
	lastName = strings.TrimSpace(lastName)

	fields := FieldErrors{}
	validateEmail(fields, email)
	validateNames(fields, firstName, lastName)
	if err := fields.Err(); err != nil {
		return nil, err
	}
	if passwordHash == "" {
		return nil, oops.Code("ACCOUNT_INVALID_HASH").Errorf("password hash cannot be empty")
	}

	return &Account{
		ID:            ulid.Make(),
		Email:         email,
		FirstName:     firstName,
		LastName:      lastName,
		PasswordHash:  passwordHash,
		IsActive:      true,
		EmailVerified: emailVerified,
		DateJoined:    now,
		UpdatedAt:     now,
	}, nil
}

// NormalizeEmail trims and lowercases an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validateEmail(fields FieldErrors, email string) {
	if email == "" {
		fields.Add("email", MsgBlank)
		return
	}
	if len(email) > MaxEmailLength {
		fields.Add("email", "Ensure this field has no more than 254 characters.")
		return
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || addr.Name != "" {
		fields.Add("email", MsgInvalidEmail)
	}
}

func validateNames(fields FieldErrors, firstName, lastName string) {
	for _, f := range []struct{ name, value string }{
		{"first_name", firstName},
		{"last_name", lastName},
	} {
		switch {
		case f.value == "":
			fields.Add(f.name, MsgBlank)
		case utf8.RuneCountInString(f.value) > MaxNameLength:
			fields.Add(f.name, "Ensure this field has no more than 150 characters.")
		}
	}
}

// Repository manages account persistence.
type Repository interface {
	// Create stores a new account.
	// Returns ErrDuplicateEmail if the email is already taken.
	Create(ctx context.Context, account *Account) error

	// GetByID retrieves an account by ID.
	GetByID(ctx context.Context, id ulid.ULID) (*Account, error)

	// GetByEmail retrieves an account by normalized email.
	// Returns ErrNotFound if no account has the given email.
	GetByEmail(ctx context.Context, email string) (*Account, error)

	// Update persists email, names and flags. Lockout state and the
	// password hash are left alone.
	Update(ctx context.Context, account *Account) error

	// UpdatePassword replaces only the password hash.
	UpdatePassword(ctx context.Context, id ulid.ULID, passwordHash string) error

	// ReplacePasswordHash swaps oldHash for newHash and reports whether the
	// stored hash was still oldHash.
	ReplacePasswordHash(ctx context.Context, id ulid.ULID, oldHash, newHash string) (bool, error)

	// RecordLoginFailure increments the failure counter in place and locks
	// the account once it reaches LockoutThreshold.
	RecordLoginFailure(ctx context.Context, id ulid.ULID, now time.Time) error

	// ResetLoginFailures clears the failure counter and any lockout.
	ResetLoginFailures(ctx context.Context, id ulid.ULID, now time.Time) error

	// Delete removes an account.
	Delete(ctx context.Context, id ulid.ULID) error
}
