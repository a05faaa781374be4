// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Credity Contributors

// Package memory provides in-process implementations of the account and
// refresh-token stores for development and tests.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/anerua/Credity/internal/account"
)

// AccountRepository is an account.Repository held in memory.
type AccountRepository struct {
	mu      sync.RWMutex
	byID    map[ulid.ULID]*account.Account
	byEmail map[string]ulid.ULID
}

// NewAccountRepository creates an empty repository.
func NewAccountRepository() *AccountRepository {
	return &AccountRepository{
		byID:    make(map[ulid.ULID]*account.Account),
		byEmail: make(map[string]ulid.ULID),
	}
}

// Create stores a new account.
func (r *AccountRepository) Create(_ context.Context, acct *account.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	email := account.NormalizeEmail(acct.Email)
	if _, taken := r.byEmail[email]; taken {
		return oops.Code(account.CodeDuplicateEmail).
			With("email", email).
			Wrap(account.ErrDuplicateEmail)
	}
	stored := cloneAccount(acct)
	stored.Email = email
	r.byID[acct.ID] = stored
	r.byEmail[email] = acct.ID
	return nil
}

// GetByID retrieves an account by ID.
func (r *AccountRepository) GetByID(_ context.Context, id ulid.ULID) (*account.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	acct, ok := r.byID[id]
	if !ok {
		return nil, notFound("id", id.String())
	}
	return cloneAccount(acct), nil
}

// GetByEmail retrieves an account by email.
func (r *AccountRepository) GetByEmail(_ context.Context, email string) (*account.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byEmail[account.NormalizeEmail(email)]
	if !ok {
		return nil, notFound("email", email)
	}
	return cloneAccount(r.byID[id]), nil
}

// Update stores email, names and flags. The password hash, join date and
// lockout state are kept from the stored account.
func (r *AccountRepository) Update(_ context.Context, acct *account.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.byID[acct.ID]
	if !ok {
		return notFound("id", acct.ID.String())
	}

	email := account.NormalizeEmail(acct.Email)
	if email != current.Email {
		if _, taken := r.byEmail[email]; taken {
			return oops.Code(account.CodeDuplicateEmail).
				With("email", email).
				Wrap(account.ErrDuplicateEmail)
		}
		delete(r.byEmail, current.Email)
		r.byEmail[email] = acct.ID
	}

	updated := cloneAccount(acct)
	updated.Email = email
	updated.PasswordHash = current.PasswordHash
	updated.DateJoined = current.DateJoined
	updated.FailedAttempts = current.FailedAttempts
	updated.LockedUntil = current.LockedUntil
	r.byID[acct.ID] = updated
	return nil
}

// UpdatePassword replaces the password hash.
func (r *AccountRepository) UpdatePassword(_ context.Context, id ulid.ULID, passwordHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	acct, ok := r.byID[id]
	if !ok {
		return notFound("id", id.String())
	}
	acct.PasswordHash = passwordHash
	acct.UpdatedAt = time.Now()
	return nil
}

// ReplacePasswordHash swaps the hash only while it still equals oldHash.
func (r *AccountRepository) ReplacePasswordHash(_ context.Context, id ulid.ULID, oldHash, newHash string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	acct, ok := r.byID[id]
	if !ok || acct.PasswordHash != oldHash {
		return false, nil
	}
	acct.PasswordHash = newHash
	acct.UpdatedAt = time.Now()
	return true, nil
}

// RecordLoginFailure counts a failed login under the write lock.
func (r *AccountRepository) RecordLoginFailure(_ context.Context, id ulid.ULID, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	acct, ok := r.byID[id]
	if !ok {
		return notFound("id", id.String())
	}
	acct.RecordFailure(now)
	return nil
}

// ResetLoginFailures clears the failure counter and any lockout.
func (r *AccountRepository) ResetLoginFailures(_ context.Context, id ulid.ULID, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	acct, ok := r.byID[id]
	if !ok {
		return notFound("id", id.String())
	}
	acct.RecordSuccess(now)
	return nil
}

// Delete removes an account.
func (r *AccountRepository) Delete(_ context.Context, id ulid.ULID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	acct, ok := r.byID[id]
	if !ok {
		return notFound("id", id.String())
	}
	delete(r.byEmail, acct.Email)
	delete(r.byID, id)
	return nil
}

// Len returns the number of stored accounts.
func (r *AccountRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}

func cloneAccount(a *account.Account) *account.Account {
	c := *a
	if a.LockedUntil != nil {
		until := *a.LockedUntil
		c.LockedUntil = &until
	}
	return &c
}

func notFound(key, value string) error {
	return oops.Code(account.CodeNotFound).With(key, value).Wrap(account.ErrNotFound)
}

var _ account.Repository = (*AccountRepository)(nil)
