// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Credity Contributors

package memory

import (
	"context"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/anerua/Credity/internal/session"
)

// RefreshTokenStore is a session.RefreshTokenStore held in memory.
type RefreshTokenStore struct {
	mu     sync.Mutex
	tokens map[string]*session.RefreshToken
}

// NewRefreshTokenStore creates an empty store.
func NewRefreshTokenStore() *RefreshTokenStore {
	return &RefreshTokenStore{tokens: make(map[string]*session.RefreshToken)}
}

// Save records a token.
func (s *RefreshTokenStore) Save(_ context.Context, token *session.RefreshToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.tokens[token.JTI]; exists {
		return oops.Code("REFRESH_TOKEN_EXISTS").With("jti", token.JTI).Errorf("jti already recorded")
	}
	s.tokens[token.JTI] = cloneToken(token)
	return nil
}

// Get returns the record for jti.
func (s *RefreshTokenStore) Get(_ context.Context, jti string) (*session.RefreshToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	token, ok := s.tokens[jti]
	if !ok {
		return nil, oops.Code("REFRESH_TOKEN_NOT_FOUND").With("jti", jti).Wrap(session.ErrTokenNotFound)
	}
	return cloneToken(token), nil
}

// Revoke marks one token revoked.
func (s *RefreshTokenStore) Revoke(_ context.Context, jti string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	token, ok := s.tokens[jti]
	if !ok {
		return false, oops.Code("REFRESH_TOKEN_NOT_FOUND").With("jti", jti).Wrap(session.ErrTokenNotFound)
	}
	if token.RevokedAt != nil {
		return false, nil
	}
	revokedAt := at
	token.RevokedAt = &revokedAt
	return true, nil
}

// RevokeAll marks every unrevoked token of an account revoked.
func (s *RefreshTokenStore) RevokeAll(_ context.Context, accountID ulid.ULID, at time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for _, token := range s.tokens {
		if token.AccountID == accountID && token.RevokedAt == nil {
			revokedAt := at
			token.RevokedAt = &revokedAt
			n++
		}
	}
	return n, nil
}

// DeleteExpired drops records that expired before the given time.
func (s *RefreshTokenStore) DeleteExpired(_ context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for jti, token := range s.tokens {
		if token.ExpiresAt.Before(before) {
			delete(s.tokens, jti)
			n++
		}
	}
	return n, nil
}

// Len returns the number of stored records.
func (s *RefreshTokenStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tokens)
}

func cloneToken(t *session.RefreshToken) *session.RefreshToken {
	c := *t
	if t.RevokedAt != nil {
		at := *t.RevokedAt
		c.RevokedAt = &at
	}
	return &c
}

var _ session.RefreshTokenStore = (*RefreshTokenStore)(nil)
