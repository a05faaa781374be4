// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Credity Contributors

package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anerua/Credity/internal/session"
	"github.com/anerua/Credity/internal/store/memory"
)

func TestRefreshTokenStore(t *testing.T) {
	ctx := context.Background()
	store := memory.NewRefreshTokenStore()
	now := time.Now()
	owner := ulid.Make()
	other := ulid.Make()

	tokens := []*session.RefreshToken{
		{JTI: "a", AccountID: owner, IssuedAt: now, ExpiresAt: now.Add(time.Hour)},
		{JTI: "b", AccountID: owner, IssuedAt: now, ExpiresAt: now.Add(time.Hour)},
		{JTI: "c", AccountID: other, IssuedAt: now, ExpiresAt: now.Add(-time.Minute)},
	}
	for _, tok := range tokens {
		require.NoError(t, store.Save(ctx, tok))
	}
	assert.Error(t, store.Save(ctx, tokens[0]), "duplicate jti")

	t.Run("get", func(t *testing.T) {
		got, err := store.Get(ctx, "a")
		require.NoError(t, err)
		assert.Equal(t, owner, got.AccountID)
		assert.False(t, got.IsRevoked())

		_, err = store.Get(ctx, "missing")
		assert.ErrorIs(t, err, session.ErrTokenNotFound)
	})

	t.Run("revoke once", func(t *testing.T) {
		ok, err := store.Revoke(ctx, "a", now)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = store.Revoke(ctx, "a", now)
		require.NoError(t, err)
		assert.False(t, ok)

		_, err = store.Revoke(ctx, "missing", now)
		assert.ErrorIs(t, err, session.ErrTokenNotFound)
	})

	t.Run("revoke all only touches the account", func(t *testing.T) {
		n, err := store.RevokeAll(ctx, owner, now)
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)

		got, err := store.Get(ctx, "c")
		require.NoError(t, err)
		assert.False(t, got.IsRevoked())
	})

	t.Run("delete expired", func(t *testing.T) {
		n, err := store.DeleteExpired(ctx, now)
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)
		assert.Equal(t, 2, store.Len())
	})
}
