// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Credity Contributors

package main

import (
	"bytes"
	"errors"
	"testing"

	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anerua/Credity/pkg/errutil"
)

func TestParseForceVersion(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		wantVersion int
		wantErr     bool
	}{
		{name: "valid integer", input: "3", wantVersion: 3},
		{name: "zero is valid", input: "0", wantVersion: 0},
		{name: "non-numeric returns error", input: "abc", wantErr: true},
		{name: "float parses as integer (Sscanf stops at dot)", input: "1.5", wantVersion: 1},
		{name: "trailing chars are ignored", input: "3abc", wantVersion: 3},
		{name: "negative parses; Force rejects it", input: "-1", wantVersion: -1},
		{name: "empty string returns error", input: "", wantErr: true},
		{name: "whitespace only returns error", input: "   ", wantErr: true},
		{name: "leading whitespace is handled", input: "  42", wantVersion: 42},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			version, err := parseForceVersion(tt.input)

			if tt.wantErr {
				errutil.AssertErrorCode(t, err, "INVALID_VERSION")
				assert.Equal(t, 0, version)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.wantVersion, version)
			}
		})
	}
}

func TestGetDatabaseURL(t *testing.T) {
	t.Run("returns error when database.url is not set", func(t *testing.T) {
		isolateConfig(t)
		url, err := getDatabaseURL()
		errutil.AssertErrorCode(t, err, "CONFIG_INVALID")
		assert.Empty(t, url)
	})

	t.Run("reads the environment", func(t *testing.T) {
		isolateConfig(t)
		t.Setenv("CREDITY_DATABASE__URL", "postgres://localhost:5432/testdb")
		url, err := getDatabaseURL()
		require.NoError(t, err)
		assert.Equal(t, "postgres://localhost:5432/testdb", url)
	})
}

type fakeMigrator struct {
	version  uint
	dirty    bool
	pending  []uint
	upErr    error
	calls    []string
	steps    int
	forced   int
	closed   bool
	closeErr error
}

func (f *fakeMigrator) Up() error {
	f.calls = append(f.calls, "up")
	if f.upErr != nil {
		return f.upErr
	}
	if n := len(f.pending); n > 0 {
		f.version, f.pending = f.pending[n-1], nil
	}
	return nil
}

func (f *fakeMigrator) Down() error {
	f.calls = append(f.calls, "down")
	f.version = 0
	return nil
}

func (f *fakeMigrator) Steps(n int) error {
	f.calls = append(f.calls, "steps")
	f.steps = n
	return nil
}

func (f *fakeMigrator) Version() (uint, bool, error) { return f.version, f.dirty, nil }

func (f *fakeMigrator) Force(version int) error {
	f.calls = append(f.calls, "force")
	if version < 0 {
		return oops.Code("INVALID_VERSION").Errorf("negative")
	}
	f.forced, f.version, f.dirty = version, uint(version), false
	return nil
}

func (f *fakeMigrator) PendingMigrations() ([]uint, error) { return f.pending, nil }

func (f *fakeMigrator) Close() error {
	f.closed = true
	return f.closeErr
}

func runMigrate(t *testing.T, m *fakeMigrator, args ...string) (string, error) {
	t.Helper()
	isolateConfig(t)
	t.Setenv("CREDITY_DATABASE__URL", "postgres://localhost:5432/credity")

	var gotURL string
	cmd := newMigrateCmd(&Deps{MigratorFactory: func(url string) (Migrator, error) {
		gotURL = url
		return m, nil
	}})
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	if err == nil {
		assert.Equal(t, "postgres://localhost:5432/credity", gotURL)
		assert.True(t, m.closed, "migrator closed")
	}
	return buf.String(), err
}

func TestMigrateUp(t *testing.T) {
	m := &fakeMigrator{pending: []uint{1, 2}}
	out, err := runMigrate(t, m, "up")
	require.NoError(t, err)

	assert.Equal(t, []string{"up"}, m.calls)
	assert.Contains(t, out, "applied 000001_create_accounts")
	assert.Contains(t, out, "applied 000002_create_refresh_tokens")
	assert.Contains(t, out, "Migrations completed successfully")
}

func TestMigrateUp_AlreadyCurrent(t *testing.T) {
	m := &fakeMigrator{version: 2}
	out, err := runMigrate(t, m, "up")
	require.NoError(t, err)
	assert.Empty(t, m.calls)
	assert.Contains(t, out, "Schema is up to date")
}

func TestMigrateUp_Failure(t *testing.T) {
	m := &fakeMigrator{pending: []uint{1}, upErr: oops.Code("MIGRATION_UP_FAILED").Errorf("boom")}
	_, err := runMigrate(t, m, "up")
	assert.True(t, errutil.HasCode(err, "MIGRATION_UP_FAILED") || errutil.HasCode(err, "MIGRATION_FAILED"))
	assert.True(t, m.closed, "migrator closed on failure")
}

func TestMigrateDown(t *testing.T) {
	m := &fakeMigrator{version: 2}
	_, err := runMigrate(t, m, "down")
	require.NoError(t, err)
	assert.Equal(t, -1, m.steps)

	m = &fakeMigrator{version: 2}
	_, err = runMigrate(t, m, "down", "--steps", "2")
	require.NoError(t, err)
	assert.Equal(t, -2, m.steps)

	m = &fakeMigrator{version: 2}
	out, err := runMigrate(t, m, "down", "--all")
	require.NoError(t, err)
	assert.Equal(t, []string{"down"}, m.calls)
	assert.Contains(t, out, "No migrations applied")

	_, err = runMigrate(t, &fakeMigrator{}, "down", "--steps", "0")
	errutil.AssertErrorCode(t, err, "INVALID_STEPS")
}

func TestMigrateVersion(t *testing.T) {
	m := &fakeMigrator{version: 1, pending: []uint{2}}
	out, err := runMigrate(t, m, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "Schema version: 000001_create_accounts")
	assert.Contains(t, out, "pending 000002_create_refresh_tokens")

	m = &fakeMigrator{version: 2, dirty: true}
	out, err = runMigrate(t, m, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "(dirty)")
}

func TestMigrateForce(t *testing.T) {
	m := &fakeMigrator{version: 2, dirty: true}
	out, err := runMigrate(t, m, "force", "1")
	require.NoError(t, err)
	assert.Equal(t, 1, m.forced)
	assert.NotContains(t, out, "dirty")

	_, err = runMigrate(t, &fakeMigrator{}, "force", "x")
	errutil.AssertErrorCode(t, err, "INVALID_VERSION")

	_, err = runMigrate(t, &fakeMigrator{}, "force", "--", "-1")
	errutil.AssertErrorCode(t, err, "INVALID_VERSION")
}

func TestMigrate_FactoryError(t *testing.T) {
	isolateConfig(t)
	t.Setenv("CREDITY_DATABASE__URL", "postgres://localhost:5432/credity")

	cmd := newMigrateCmd(&Deps{MigratorFactory: func(string) (Migrator, error) {
		return nil, errors.New("connection refused")
	}})
	cmd.SetOut(new(bytes.Buffer))
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetArgs([]string{"up"})
	errutil.AssertErrorCode(t, cmd.Execute(), "DB_CONNECT_FAILED")
}
