// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Credity Contributors

package app

import (
	"context"
	"log/slog"

	"github.com/oklog/ulid/v2"

	"github.com/anerua/Credity/internal/account"
	"github.com/anerua/Credity/internal/session"
	"github.com/anerua/Credity/pkg/errutil"
)

// Credentials is the account side of the use cases.
type Credentials interface {
	Register(ctx context.Context, in account.RegisterInput) (*account.Account, error)
	Authenticate(ctx context.Context, email, password string) (*account.Account, error)
	Profile(ctx context.Context, id ulid.ULID) (account.Profile, error)
	UpdateProfile(ctx context.Context, id ulid.ULID, firstName, lastName string) (account.Profile, error)
	ChangePassword(ctx context.Context, id ulid.ULID, oldPassword, newPassword string) error
	Delete(ctx context.Context, id ulid.ULID) error
}

// Sessions is the token side of the use cases.
type Sessions interface {
	Issue(ctx context.Context, accountID ulid.ULID) (session.TokenPair, error)
	Refresh(ctx context.Context, refreshToken string) (session.TokenPair, error)
	Revoke(ctx context.Context, refreshToken string) error
	RevokeAll(ctx context.Context, accountID ulid.ULID) error
	VerifyAccess(ctx context.Context, accessToken string) (ulid.ULID, error)
}

// EventRecorder counts use-case outcomes.
type EventRecorder interface {
	RecordAuthEvent(event, outcome string)
}

// Use-case names used as metric labels and log fields.
const (
	EventRegister       = "register"
	EventLogin          = "login"
	EventRefresh        = "refresh"
	EventLogout         = "logout"
	EventProfile        = "profile"
	EventUpdateProfile  = "update_profile"
	EventChangePassword = "change_password"
	EventDelete         = "delete"
	EventVerify         = "verify"
)

// AccountService implements the account use cases. Every error it returns
// is an *Error.
type AccountService struct {
	credentials Credentials
	sessions    Sessions
	events      EventRecorder
	logger      *slog.Logger
}

// Option configures an AccountService.
type Option func(*AccountService)

// WithEventRecorder counts outcomes into rec.
func WithEventRecorder(rec EventRecorder) Option {
	return func(s *AccountService) {
		if rec != nil {
			s.events = rec
		}
	}
}

// WithLogger sets the logger used for internal failures.
func WithLogger(logger *slog.Logger) Option {
	return func(s *AccountService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

type noEvents struct{}

func (noEvents) RecordAuthEvent(string, string) {}

// NewAccountService creates the façade.
func NewAccountService(credentials Credentials, sessions Sessions, opts ...Option) *AccountService {
	s := &AccountService{
		credentials: credentials,
		sessions:    sessions,
		events:      noEvents{},
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RegisterRequest is the input of Register.
type RegisterRequest struct {
	Email     string
	FirstName string
	LastName  string
	Password  string
}

// Register creates an account and returns its public projection.
func (s *AccountService) Register(ctx context.Context, req RegisterRequest) (account.Profile, error) {
	acct, err := s.credentials.Register(ctx, account.RegisterInput(req))
	if err != nil {
		return account.Profile{}, s.fail(ctx, EventRegister, scopeLogin, err)
	}
	s.succeed(ctx, EventRegister, "account registered", acct.ID)
	return acct.Profile(), nil
}

// Login authenticates an email and password and issues a token pair.
func (s *AccountService) Login(ctx context.Context, email, password string) (session.TokenPair, error) {
	fields := account.FieldErrors{}
	email = account.NormalizeEmail(email)
	if email == "" {
		fields.Add("email", account.MsgBlank)
	}
	if password == "" {
		fields.Add("password", account.MsgBlank)
	}
	if err := fields.Err(); err != nil {
		return session.TokenPair{}, s.fail(ctx, EventLogin, scopeLogin, err)
	}

	acct, err := s.credentials.Authenticate(ctx, email, password)
	if err != nil {
		return session.TokenPair{}, s.fail(ctx, EventLogin, scopeLogin, err)
	}
	pair, err := s.sessions.Issue(ctx, acct.ID)
	if err != nil {
		return session.TokenPair{}, s.fail(ctx, EventLogin, scopeLogin, err)
	}
	s.succeed(ctx, EventLogin, "login succeeded", acct.ID)
	return pair, nil
}

// Refresh exchanges a refresh token. The returned pair carries a refresh
// token only when rotation is enabled.
func (s *AccountService) Refresh(ctx context.Context, refreshToken string) (session.TokenPair, error) {
	if err := requireToken(refreshToken); err != nil {
		return session.TokenPair{}, s.fail(ctx, EventRefresh, scopeToken, err)
	}
	pair, err := s.sessions.Refresh(ctx, refreshToken)
	if err != nil {
		return session.TokenPair{}, s.fail(ctx, EventRefresh, scopeToken, err)
	}
	s.events.RecordAuthEvent(EventRefresh, "ok")
	return pair, nil
}

// Logout revokes a single refresh token.
func (s *AccountService) Logout(ctx context.Context, refreshToken string) error {
	if err := requireToken(refreshToken); err != nil {
		return s.fail(ctx, EventLogout, scopeToken, err)
	}
	if err := s.sessions.Revoke(ctx, refreshToken); err != nil {
		return s.fail(ctx, EventLogout, scopeToken, err)
	}
	s.events.RecordAuthEvent(EventLogout, "ok")
	return nil
}

// Authenticate resolves a Bearer access token to the account it names.
func (s *AccountService) Authenticate(ctx context.Context, accessToken string) (ulid.ULID, error) {
	if accessToken == "" {
		s.events.RecordAuthEvent(EventVerify, string(CategoryAuthentication))
		return ulid.ULID{}, NotAuthenticated()
	}
	id, err := s.sessions.VerifyAccess(ctx, accessToken)
	if err != nil {
		return ulid.ULID{}, s.fail(ctx, EventVerify, scopeAccount, err)
	}
	return id, nil
}

// Profile returns the projection of the authenticated account.
func (s *AccountService) Profile(ctx context.Context, id ulid.ULID) (account.Profile, error) {
	profile, err := s.credentials.Profile(ctx, id)
	if err != nil {
		return account.Profile{}, s.fail(ctx, EventProfile, scopeAccount, err)
	}
	return profile, nil
}

// UpdateProfile replaces the name fields of the authenticated account.
func (s *AccountService) UpdateProfile(ctx context.Context, id ulid.ULID, firstName, lastName string) (account.Profile, error) {
	profile, err := s.credentials.UpdateProfile(ctx, id, firstName, lastName)
	if err != nil {
		return account.Profile{}, s.fail(ctx, EventUpdateProfile, scopeAccount, err)
	}
	s.succeed(ctx, EventUpdateProfile, "profile updated", id)
	return profile, nil
}

// ChangePassword replaces the password of the authenticated account. The
// credential service revokes outstanding refresh tokens on success.
func (s *AccountService) ChangePassword(ctx context.Context, id ulid.ULID, oldPassword, newPassword string) error {
	if err := s.credentials.ChangePassword(ctx, id, oldPassword, newPassword); err != nil {
		return s.fail(ctx, EventChangePassword, scopeAccount, err)
	}
	s.succeed(ctx, EventChangePassword, "password changed", id)
	return nil
}

// Delete revokes every refresh token of the account and then removes it.
func (s *AccountService) Delete(ctx context.Context, id ulid.ULID) error {
	if err := s.sessions.RevokeAll(ctx, id); err != nil {
		return s.fail(ctx, EventDelete, scopeAccount, err)
	}
	if err := s.credentials.Delete(ctx, id); err != nil {
		return s.fail(ctx, EventDelete, scopeAccount, err)
	}
	s.succeed(ctx, EventDelete, "account deleted", id)
	return nil
}

func requireToken(token string) error {
	fields := account.FieldErrors{}
	if token == "" {
		fields.Add("refresh", account.MsgBlank)
	}
	return fields.Err()
}

func (s *AccountService) succeed(ctx context.Context, event, msg string, id ulid.ULID) {
	s.events.RecordAuthEvent(event, "ok")
	s.logger.DebugContext(ctx, msg, "event", event, "account_id", id.String())
}

func (s *AccountService) fail(ctx context.Context, event string, sc scope, err error) *Error {
	appErr := translate(sc, err)
	s.events.RecordAuthEvent(event, string(appErr.Category))
	if appErr.Category == CategoryInternal {
		errutil.LogErrorContext(ctx, s.logger, event+" failed", err)
	}
	return appErr
}
