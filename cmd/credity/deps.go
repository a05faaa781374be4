// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Credity Contributors

package main

import (
	"context"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/anerua/Credity/internal/config"
	"github.com/anerua/Credity/internal/store"
)

// Deps contains injectable dependencies for the serve and migrate commands.
// All fields with nil values will use their default implementations.
type Deps struct {
	// ConnectDB opens a PostgreSQL pool and waits for it to answer.
	// Default: store.Connect with store.DefaultConnectOptions
	ConnectDB func(ctx context.Context, url string, logger *slog.Logger) (*pgxpool.Pool, error)

	// MigratorFactory opens a schema migrator.
	// Default: store.NewMigrator
	MigratorFactory func(url string) (Migrator, error)

	// RedisClientFactory creates the client for the redis token store.
	// Default: redis.NewClient
	RedisClientFactory func(cfg config.RedisConfig) redis.UniversalClient
}

// Migrator wraps the methods used from store.Migrator.
type Migrator interface {
	Up() error
	Down() error
	Steps(n int) error
	Version() (uint, bool, error)
	Force(version int) error
	PendingMigrations() ([]uint, error)
	Close() error
}

func (d *Deps) withDefaults() *Deps {
	out := Deps{}
	if d != nil {
		out = *d
	}
	if out.ConnectDB == nil {
		out.ConnectDB = func(ctx context.Context, url string, logger *slog.Logger) (*pgxpool.Pool, error) {
			opts := store.DefaultConnectOptions()
			opts.Logger = logger
			return store.Connect(ctx, url, opts)
		}
	}
	if out.MigratorFactory == nil {
		out.MigratorFactory = func(url string) (Migrator, error) {
			m, err := store.NewMigrator(url)
			if err != nil {
				return nil, err
			}
			return m, nil
		}
	}
	if out.RedisClientFactory == nil {
		out.RedisClientFactory = func(cfg config.RedisConfig) redis.UniversalClient {
			return redis.NewClient(&redis.Options{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB})
		}
	}
	return &out
}
