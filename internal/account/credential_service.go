// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Credity Contributors

package account

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// SessionRevoker invalidates every outstanding refresh token of an account.
type SessionRevoker interface {
	RevokeAll(ctx context.Context, accountID ulid.ULID) error
}

// RegisterInput carries the fields of a registration request.
type RegisterInput struct {
	Email     string
	FirstName string
	LastName  string
	Password  string
}

// CredentialService handles account creation and credential changes.
type CredentialService struct {
	accounts      Repository
	hasher        PasswordHasher
	policy        *PasswordPolicy
	revoker       SessionRevoker
	logger        *slog.Logger
	emailVerified bool
	lockout       bool
	now           func() time.Time
}

// CredentialOption configures a CredentialService.
type CredentialOption func(*CredentialService)

// WithLogger sets the service logger. A nil logger is ignored.
func WithLogger(logger *slog.Logger) CredentialOption {
	return func(s *CredentialService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithEmailVerifiedDefault sets EmailVerified on newly registered accounts.
func WithEmailVerifiedDefault(verified bool) CredentialOption {
	return func(s *CredentialService) { s.emailVerified = verified }
}

// WithLockout enables or disables the failed-login lockout.
func WithLockout(enabled bool) CredentialOption {
	return func(s *CredentialService) { s.lockout = enabled }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) CredentialOption {
	return func(s *CredentialService) { s.now = now }
}

// NewCredentialService creates a CredentialService.
func NewCredentialService(
	accounts Repository,
	hasher PasswordHasher,
	policy *PasswordPolicy,
	revoker SessionRevoker,
	opts ...CredentialOption,
) (*CredentialService, error) {
	if accounts == nil {
		return nil, oops.Code("CREDENTIAL_SERVICE_INVALID").Errorf("account repository is required")
	}
	if hasher == nil {
		return nil, oops.Code("CREDENTIAL_SERVICE_INVALID").Errorf("password hasher is required")
	}
	if policy == nil {
		return nil, oops.Code("CREDENTIAL_SERVICE_INVALID").Errorf("password policy is required")
	}
	if revoker == nil {
		return nil, oops.Code("CREDENTIAL_SERVICE_INVALID").Errorf("session revoker is required")
	}
	s := &CredentialService{
		accounts:      accounts,
		hasher:        hasher,
		policy:        policy,
		revoker:       revoker,
		logger:        slog.Default(),
		emailVerified: true,
		lockout:       true,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Register creates a new active account.
func (s *CredentialService) Register(ctx context.Context, in RegisterInput) (*Account, error) {
	email := NormalizeEmail(in.Email)
	firstName := strings.TrimSpace(in.FirstName)
	lastName := strings.TrimSpace(in.LastName)

	fields := FieldErrors{}
	validateEmail(fields, email)
	validateNames(fields, firstName, lastName)
	if in.Password == "" {
		fields.Add("password", MsgBlank)
	}
	if err := fields.Err(); err != nil {
		return nil, err
	}

	_, err := s.accounts.GetByEmail(ctx, email)
	switch {
	case err == nil:
		return nil, errDuplicateEmail(email, nil)
	case !errors.Is(err, ErrNotFound):
		return nil, oops.Code("ACCOUNT_REGISTER_FAILED").
			With("operation", "get account by email").
			Wrap(err)
	}

	if err := s.policy.Check(in.Password); err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, oops.Code("ACCOUNT_REGISTER_FAILED").
			With("operation", "hash password").
			Wrap(err)
	}

	acct, err := NewAccount(email, firstName, lastName, hash, s.emailVerified, s.now())
	if err != nil {
		return nil, err
	}

	if err := s.accounts.Create(ctx, acct); err != nil {
		if errors.Is(err, ErrDuplicateEmail) {
			return nil, errDuplicateEmail(email, err)
		}
		return nil, oops.Code("ACCOUNT_REGISTER_FAILED").
			With("operation", "create account").
			Wrap(err)
	}

	s.logger.InfoContext(ctx, "account registered", "account_id", acct.ID.String())
	return acct, nil
}

// dummyPasswordHash is verified against when no account matches, so unknown
// emails cost the same as wrong passwords. It matches no password.
//
//nolint:gosec // G101: not a credential
const dummyPasswordHash = "$argon2id$v=19$m=65536,t=1,p=4$AAAAAAAAAAAAAAAAAAAAAA$AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"

// Authenticate verifies an email and password pair.
func (s *CredentialService) Authenticate(ctx context.Context, email, password string) (*Account, error) {
	email = NormalizeEmail(email)
	acct, lookupErr := s.accounts.GetByEmail(ctx, email)

	targetHash := dummyPasswordHash
	switch {
	case lookupErr == nil:
		targetHash = acct.PasswordHash
	case !errors.Is(lookupErr, ErrNotFound):
		return nil, oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "get account by email").
			Wrap(lookupErr)
	}

	valid, verifyErr := s.hasher.Verify(password, targetHash)
	if acct == nil {
		return nil, oops.Code(CodeNotFound).With("email", email).Wrap(ErrNotFound)
	}
	if verifyErr != nil {
		return nil, oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "verify password").
			With("account_id", acct.ID.String()).
			Wrap(verifyErr)
	}

	now := s.now()
	if !valid {
		if s.lockout {
			if err := s.accounts.RecordLoginFailure(ctx, acct.ID, now); err != nil {
				s.logger.WarnContext(ctx, "failed to record login failure",
					"account_id", acct.ID.String(), "error", err)
			}
		}
		return nil, errInvalidCredentials(nil)
	}

	// Lockout is checked after verification so locked and unlocked accounts
	// take the same time to reject.
	if s.lockout && acct.IsLocked(now) {
		return nil, oops.Code(CodeAccountLocked).
			With("account_id", acct.ID.String()).
			With("locked_until", acct.LockedUntil).
			Errorf("account is temporarily locked")
	}

	if !acct.IsActive {
		return nil, oops.Code(CodeInactive).
			With("account_id", acct.ID.String()).
			Errorf("account is inactive")
	}

	if s.hasher.NeedsUpgrade(acct.PasswordHash) {
		s.upgradeHash(ctx, acct, password)
	}

	if acct.FailedAttempts != 0 || acct.LockedUntil != nil {
		if err := s.accounts.ResetLoginFailures(ctx, acct.ID, now); err != nil {
			s.logger.WarnContext(ctx, "failed to reset login failures",
				"account_id", acct.ID.String(), "error", err)
		}
		acct.RecordSuccess(now)
	}

	return acct, nil
}

// upgradeHash rehashes a legacy hash. The write only lands if the stored
// hash is still the one that was verified.
func (s *CredentialService) upgradeHash(ctx context.Context, acct *Account, password string) {
	newHash, err := s.hasher.Hash(password)
	if err != nil {
		s.logger.WarnContext(ctx, "failed to hash password for upgrade",
			"account_id", acct.ID.String(), "error", err)
		return
	}
	replaced, err := s.accounts.ReplacePasswordHash(ctx, acct.ID, acct.PasswordHash, newHash)
	switch {
	case err != nil:
		s.logger.WarnContext(ctx, "failed to upgrade password hash",
			"account_id", acct.ID.String(), "error", err)
	case !replaced:
		s.logger.InfoContext(ctx, "password changed during login, hash upgrade skipped",
			"account_id", acct.ID.String())
	default:
		acct.PasswordHash = newHash
	}
}

// Profile returns the projection of an account.
func (s *CredentialService) Profile(ctx context.Context, id ulid.ULID) (Profile, error) {
	acct, err := s.load(ctx, id, "ACCOUNT_PROFILE_FAILED")
	if err != nil {
		return Profile{}, err
	}
	return acct.Profile(), nil
}

// UpdateProfile replaces the name fields of an account. All missing fields
// are reported together.
func (s *CredentialService) UpdateProfile(ctx context.Context, id ulid.ULID, firstName, lastName string) (Profile, error) {
	firstName = strings.TrimSpace(firstName)
	lastName = strings.TrimSpace(lastName)

	fields := FieldErrors{}
	validateNames(fields, firstName, lastName)
	if err := fields.Err(); err != nil {
		return Profile{}, err
	}

	acct, err := s.load(ctx, id, "ACCOUNT_UPDATE_FAILED")
	if err != nil {
		return Profile{}, err
	}

	acct.FirstName = firstName
	acct.LastName = lastName
	acct.UpdatedAt = s.now()
	if err := s.accounts.Update(ctx, acct); err != nil {
		if errors.Is(err, ErrNotFound) {
			return Profile{}, errNotFound(id.String(), err)
		}
		return Profile{}, oops.Code("ACCOUNT_UPDATE_FAILED").
			With("account_id", id.String()).
			Wrap(err)
	}
	return acct.Profile(), nil
}

// ChangePassword replaces the password after checking the current one, then
// revokes every refresh token of the account.
func (s *CredentialService) ChangePassword(ctx context.Context, id ulid.ULID, oldPassword, newPassword string) error {
	fields := FieldErrors{}
	if oldPassword == "" {
		fields.Add("old_password", MsgBlank)
	}
	if newPassword == "" {
		fields.Add("new_password", MsgBlank)
	}
	if err := fields.Err(); err != nil {
		return err
	}

	acct, err := s.load(ctx, id, "ACCOUNT_CHANGE_PASSWORD_FAILED")
	if err != nil {
		return err
	}

	valid, err := s.hasher.Verify(oldPassword, acct.PasswordHash)
	if err != nil {
		return oops.Code("ACCOUNT_CHANGE_PASSWORD_FAILED").
			With("operation", "verify password").
			With("account_id", id.String()).
			Wrap(err)
	}
	if !valid {
		return errInvalidCredentials(map[string][]string{"old_password": {MsgIncorrectPassword}})
	}

	if err := s.policy.Check(newPassword); err != nil {
		return err
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return oops.Code("ACCOUNT_CHANGE_PASSWORD_FAILED").
			With("operation", "hash password").
			Wrap(err)
	}
	if err := s.accounts.UpdatePassword(ctx, id, hash); err != nil {
		if errors.Is(err, ErrNotFound) {
			return errNotFound(id.String(), err)
		}
		return oops.Code("ACCOUNT_CHANGE_PASSWORD_FAILED").
			With("operation", "update password").
			With("account_id", id.String()).
			Wrap(err)
	}

	if err := s.revoker.RevokeAll(ctx, id); err != nil {
		return oops.Code("ACCOUNT_CHANGE_PASSWORD_FAILED").
			With("operation", "revoke sessions").
			With("account_id", id.String()).
			Wrap(err)
	}

	s.logger.InfoContext(ctx, "password changed", "account_id", id.String())
	return nil
}

// Delete removes an account.
func (s *CredentialService) Delete(ctx context.Context, id ulid.ULID) error {
	if err := s.accounts.Delete(ctx, id); err != nil {
		if errors.Is(err, ErrNotFound) {
			return errNotFound(id.String(), err)
		}
		return oops.Code("ACCOUNT_DELETE_FAILED").
			With("account_id", id.String()).
			Wrap(err)
	}
	s.logger.InfoContext(ctx, "account deleted", "account_id", id.String())
	return nil
}

func (s *CredentialService) load(ctx context.Context, id ulid.ULID, code string) (*Account, error) {
	acct, err := s.accounts.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, errNotFound(id.String(), err)
		}
		return nil, oops.Code(code).
			With("operation", "get account by id").
			With("account_id", id.String()).
			Wrap(err)
	}
	return acct, nil
}
