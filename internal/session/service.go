// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Credity Contributors

package session

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/anerua/Credity/internal/account"
)

// Default token lifetimes.
const (
	DefaultAccessTTL  = 5 * time.Minute
	DefaultRefreshTTL = 24 * time.Hour
)

// AccountLookup resolves the account bound to a token.
type AccountLookup interface {
	GetByID(ctx context.Context, id ulid.ULID) (*account.Account, error)
}

// TokenPair is the result of issuing or refreshing tokens.
// Refresh is empty when a refresh did not rotate the refresh token.
type TokenPair struct {
	Access  string
	Refresh string
}

// Config holds token lifetimes and the rotation policy.
type Config struct {
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	RotateRefresh bool
}

// Service issues, refreshes and revokes tokens.
type Service struct {
	store    RefreshTokenStore
	accounts AccountLookup
	signer   *Signer
	cfg      Config
	logger   *slog.Logger
	now      func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the service logger. A nil logger is ignored.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock overrides the time source of the service and its signer.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
		s.signer.now = now
	}
}

// NewService creates a Service. Zero lifetimes fall back to the defaults.
func NewService(store RefreshTokenStore, accounts AccountLookup, signer *Signer, cfg Config, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, oops.Code("SESSION_SERVICE_INVALID").Errorf("refresh token store is required")
	}
	if accounts == nil {
		return nil, oops.Code("SESSION_SERVICE_INVALID").Errorf("account lookup is required")
	}
	if signer == nil {
		return nil, oops.Code("SESSION_SERVICE_INVALID").Errorf("signer is required")
	}
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = DefaultAccessTTL
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = DefaultRefreshTTL
	}
	s := &Service{
		store:    store,
		accounts: accounts,
		signer:   signer,
		cfg:      cfg,
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Issue creates a token pair for an already authenticated account.
func (s *Service) Issue(ctx context.Context, accountID ulid.ULID) (TokenPair, error) {
	now := s.now()
	access, err := s.signAccess(accountID, now)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, err := s.issueRefresh(ctx, accountID, now)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{Access: access, Refresh: refresh}, nil
}

// Refresh exchanges a refresh token for a new access token. With rotation
// enabled the presented token is revoked and a new one is returned.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	claims, err := s.signer.Parse(refreshToken, TokenTypeRefresh)
	if err != nil {
		return TokenPair{}, err
	}

	record, err := s.store.Get(ctx, claims.ID)
	if err != nil {
		if errors.Is(err, ErrTokenNotFound) {
			return TokenPair{}, errInvalidToken("token is not recognized", nil)
		}
		return TokenPair{}, oops.Code("SESSION_REFRESH_FAILED").
			With("operation", "get refresh token").
			Wrap(err)
	}
	now := s.now()
	if record.IsRevoked() {
		return TokenPair{}, errInvalidToken("token is revoked", nil)
	}
	if record.IsExpired(now) {
		return TokenPair{}, errInvalidToken("token is expired", nil)
	}

	if err := s.checkAccount(ctx, record.AccountID); err != nil {
		return TokenPair{}, err
	}

	var pair TokenPair
	if s.cfg.RotateRefresh {
		revoked, err := s.store.Revoke(ctx, record.JTI, now)
		switch {
		case errors.Is(err, ErrTokenNotFound):
			return TokenPair{}, errInvalidToken("token is not recognized", nil)
		case err != nil:
			return TokenPair{}, oops.Code("SESSION_REFRESH_FAILED").
				With("operation", "rotate refresh token").
				Wrap(err)
		case !revoked:
			// Lost a race with a concurrent refresh of the same token.
			return TokenPair{}, errInvalidToken("token is revoked", nil)
		}
		if pair.Refresh, err = s.issueRefresh(ctx, record.AccountID, now); err != nil {
			return TokenPair{}, err
		}
	}

	if pair.Access, err = s.signAccess(record.AccountID, now); err != nil {
		return TokenPair{}, err
	}
	return pair, nil
}

// Revoke revokes a single refresh token. Revoking an already revoked token
// is not an error.
func (s *Service) Revoke(ctx context.Context, refreshToken string) error {
	claims, err := s.signer.Parse(refreshToken, TokenTypeRefresh)
	if err != nil {
		return err
	}
	if _, err := s.store.Revoke(ctx, claims.ID, s.now()); err != nil {
		if errors.Is(err, ErrTokenNotFound) {
			return errInvalidToken("token is not recognized", nil)
		}
		return oops.Code("SESSION_REVOKE_FAILED").
			With("jti", claims.ID).
			Wrap(err)
	}
	return nil
}

// RevokeAll revokes every outstanding refresh token of an account.
func (s *Service) RevokeAll(ctx context.Context, accountID ulid.ULID) error {
	n, err := s.store.RevokeAll(ctx, accountID, s.now())
	if err != nil {
		return oops.Code("SESSION_REVOKE_FAILED").
			With("account_id", accountID.String()).
			Wrap(err)
	}
	s.logger.InfoContext(ctx, "refresh tokens revoked",
		"account_id", accountID.String(), "count", n)
	return nil
}

// VerifyAccess validates an access token and returns its account ID.
func (s *Service) VerifyAccess(_ context.Context, accessToken string) (ulid.ULID, error) {
	claims, err := s.signer.Parse(accessToken, TokenTypeAccess)
	if err != nil {
		return ulid.ULID{}, err
	}
	id, err := ulid.ParseStrict(claims.Subject)
	if err != nil {
		return ulid.ULID{}, errInvalidToken("subject is not an account id", err)
	}
	return id, nil
}

func (s *Service) checkAccount(ctx context.Context, id ulid.ULID) error {
	acct, err := s.accounts.GetByID(ctx, id)
	switch {
	case errors.Is(err, account.ErrNotFound):
		return oops.Code(account.CodeInactive).
			With("account_id", id.String()).
			Errorf("account no longer exists")
	case err != nil:
		return oops.Code("SESSION_REFRESH_FAILED").
			With("operation", "get account").
			With("account_id", id.String()).
			Wrap(err)
	case !acct.IsActive:
		return oops.Code(account.CodeInactive).
			With("account_id", id.String()).
			Errorf("account is inactive")
	}
	return nil
}

func (s *Service) signAccess(accountID ulid.ULID, now time.Time) (string, error) {
	return s.signer.Sign(s.claims(TokenTypeAccess, accountID, uuid.NewString(), now, s.cfg.AccessTTL))
}

func (s *Service) issueRefresh(ctx context.Context, accountID ulid.ULID, now time.Time) (string, error) {
	jti := uuid.NewString()
	token, err := s.signer.Sign(s.claims(TokenTypeRefresh, accountID, jti, now, s.cfg.RefreshTTL))
	if err != nil {
		return "", err
	}
	record := &RefreshToken{
		JTI:       jti,
		AccountID: accountID,
		IssuedAt:  now,
		ExpiresAt: now.Add(s.cfg.RefreshTTL),
	}
	if err := s.store.Save(ctx, record); err != nil {
		return "", oops.Code("SESSION_ISSUE_FAILED").
			With("operation", "save refresh token").
			With("account_id", accountID.String()).
			Wrap(err)
	}
	return token, nil
}

func (s *Service) claims(tokenType string, accountID ulid.ULID, jti string, now time.Time, ttl time.Duration) Claims {
	return Claims{
		TokenType: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   accountID.String(),
			ID:        jti,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
}

var _ account.SessionRevoker = (*Service)(nil)
