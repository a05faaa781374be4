// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Credity Contributors

// Package redis stores refresh-token records in Redis hashes that expire
// together with the token they describe.
package redis

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/redis/go-redis/v9"
	"github.com/samber/oops"

	"github.com/anerua/Credity/internal/session"
)

// DefaultKeyPrefix namespaces every key the store writes.
const DefaultKeyPrefix = "credity"

const (
	fieldAccountID = "account_id"
	fieldIssuedAt  = "issued_at"
	fieldExpiresAt = "expires_at"
	fieldRevokedAt = "revoked_at"
)

// saveScript writes the token hash only if the jti is new and indexes it
// under its account. The account index lives as long as its longest token.
var saveScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then
	return 0
end
redis.call('HSET', KEYS[1], 'account_id', ARGV[1], 'issued_at', ARGV[2], 'expires_at', ARGV[3])
redis.call('PEXPIREAT', KEYS[1], ARGV[4])
redis.call('SADD', KEYS[2], ARGV[5])
local ttl = redis.call('PTTL', KEYS[2])
local want = tonumber(ARGV[4]) - tonumber(ARGV[6])
if ttl < want then
	redis.call('PEXPIRE', KEYS[2], want)
end
return 1
`)

// revokeScript returns -1 for an unknown jti, 0 if it was already revoked
// and 1 if this call revoked it.
var revokeScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
	return -1
end
return redis.call('HSETNX', KEYS[1], 'revoked_at', ARGV[1])
`)

// RefreshTokenStore implements session.RefreshTokenStore on Redis.
type RefreshTokenStore struct {
	client redis.UniversalClient
	prefix string
	now    func() time.Time
}

// Option configures a RefreshTokenStore.
type Option func(*RefreshTokenStore)

// WithKeyPrefix overrides DefaultKeyPrefix.
func WithKeyPrefix(prefix string) Option {
	return func(s *RefreshTokenStore) {
		if prefix != "" {
			s.prefix = prefix
		}
	}
}

// NewRefreshTokenStore creates a store on client.
func NewRefreshTokenStore(client redis.UniversalClient, opts ...Option) *RefreshTokenStore {
	s := &RefreshTokenStore{client: client, prefix: DefaultKeyPrefix, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RefreshTokenStore) tokenKey(jti string) string {
	return s.prefix + ":refresh:" + jti
}

func (s *RefreshTokenStore) accountKey(id ulid.ULID) string {
	return s.prefix + ":account:" + id.String() + ":refresh"
}

// Save records a newly issued token. The record expires at the token's
// own expiry.
func (s *RefreshTokenStore) Save(ctx context.Context, token *session.RefreshToken) error {
	keys := []string{s.tokenKey(token.JTI), s.accountKey(token.AccountID)}
	created, err := saveScript.Run(ctx, s.client, keys,
		token.AccountID.String(),
		formatTime(token.IssuedAt),
		formatTime(token.ExpiresAt),
		token.ExpiresAt.UnixMilli(),
		token.JTI,
		s.now().UnixMilli(),
	).Int()
	if err != nil {
		return oops.Code("REFRESH_TOKEN_SAVE_FAILED").
			With("jti", token.JTI).
			With("account_id", token.AccountID.String()).
			Wrap(err)
	}
	if created == 0 {
		return oops.Code("REFRESH_TOKEN_EXISTS").With("jti", token.JTI).Errorf("jti already recorded")
	}
	if token.RevokedAt != nil {
		if _, err := s.Revoke(ctx, token.JTI, *token.RevokedAt); err != nil {
			return err
		}
	}
	return nil
}

// Get returns the record for jti. Expired records have already been
// evicted by Redis and report ErrTokenNotFound.
func (s *RefreshTokenStore) Get(ctx context.Context, jti string) (*session.RefreshToken, error) {
	fields, err := s.client.HGetAll(ctx, s.tokenKey(jti)).Result()
	if err != nil {
		return nil, oops.Code("REFRESH_TOKEN_GET_FAILED").With("jti", jti).Wrap(err)
	}
	if len(fields) == 0 {
		return nil, oops.Code("REFRESH_TOKEN_NOT_FOUND").With("jti", jti).Wrap(session.ErrTokenNotFound)
	}
	token, err := decodeToken(jti, fields)
	if err != nil {
		return nil, oops.Code("REFRESH_TOKEN_CORRUPT").With("jti", jti).Wrap(err)
	}
	return token, nil
}

// Revoke marks one token revoked.
func (s *RefreshTokenStore) Revoke(ctx context.Context, jti string, at time.Time) (bool, error) {
	result, err := revokeScript.Run(ctx, s.client, []string{s.tokenKey(jti)}, formatTime(at)).Int()
	if err != nil {
		return false, oops.Code("REFRESH_TOKEN_REVOKE_FAILED").With("jti", jti).Wrap(err)
	}
	switch result {
	case -1:
		return false, oops.Code("REFRESH_TOKEN_NOT_FOUND").With("jti", jti).Wrap(session.ErrTokenNotFound)
	case 0:
		return false, nil
	default:
		return true, nil
	}
}

// RevokeAll revokes every live token indexed under the account and prunes
// index entries whose record has expired.
func (s *RefreshTokenStore) RevokeAll(ctx context.Context, accountID ulid.ULID, at time.Time) (int64, error) {
	indexKey := s.accountKey(accountID)
	jtis, err := s.client.SMembers(ctx, indexKey).Result()
	if err != nil {
		return 0, oops.Code("REFRESH_TOKEN_REVOKE_FAILED").
			With("account_id", accountID.String()).
			Wrap(err)
	}

	var (
		revoked int64
		stale   []any
	)
	for _, jti := range jtis {
		ok, err := s.Revoke(ctx, jti, at)
		switch {
		case errors.Is(err, session.ErrTokenNotFound):
			stale = append(stale, jti)
		case err != nil:
			return revoked, oops.With("account_id", accountID.String()).Wrap(err)
		case ok:
			revoked++
		}
	}
	if len(stale) > 0 {
		if err := s.client.SRem(ctx, indexKey, stale...).Err(); err != nil {
			return revoked, oops.Code("REFRESH_TOKEN_REVOKE_FAILED").
				With("account_id", accountID.String()).
				Wrap(err)
		}
	}
	return revoked, nil
}

// DeleteExpired is a no-op: Redis evicts each record at its expiry.
func (s *RefreshTokenStore) DeleteExpired(context.Context, time.Time) (int64, error) {
	return 0, nil
}

func formatTime(t time.Time) string {
	return strconv.FormatInt(t.UnixNano(), 10)
}

func parseTime(v string) (time.Time, error) {
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.Unix(0, n).UTC(), nil
}

func decodeToken(jti string, fields map[string]string) (*session.RefreshToken, error) {
	accountID, err := ulid.Parse(fields[fieldAccountID])
	if err != nil {
		return nil, err
	}
	issuedAt, err := parseTime(fields[fieldIssuedAt])
	if err != nil {
		return nil, err
	}
	expiresAt, err := parseTime(fields[fieldExpiresAt])
	if err != nil {
		return nil, err
	}
	token := &session.RefreshToken{
		JTI:       jti,
		AccountID: accountID,
		IssuedAt:  issuedAt,
		ExpiresAt: expiresAt,
	}
	if v, ok := fields[fieldRevokedAt]; ok {
		revokedAt, err := parseTime(v)
		if err != nil {
			return nil, err
		}
		token.RevokedAt = &revokedAt
	}
	return token, nil
}

var _ session.RefreshTokenStore = (*RefreshTokenStore)(nil)
