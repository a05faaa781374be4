// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Credity Contributors

package errutil_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anerua/Credity/pkg/errutil"
)

func TestLogError_WithOopsError(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	err := oops.Code("ACCOUNT_UPDATE_FAILED").
		With("account_id", "01J0000000000000000000000").
		Errorf("update failed")

	errutil.LogError(logger, "update failed", err)

	var logEntry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &logEntry))
	assert.Equal(t, "ERROR", logEntry["level"])
	assert.Equal(t, "update failed", logEntry["msg"])
	assert.Equal(t, "ACCOUNT_UPDATE_FAILED", logEntry["code"])
}

func TestLogError_WithStandardError(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	err := errors.New("standard error")

	errutil.LogError(logger, "update failed", err)

	var logEntry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &logEntry))
	assert.Equal(t, "ERROR", logEntry["level"])
	assert.Contains(t, logEntry["error"], "standard error")
}

func TestLogErrorContext_IncludesContext(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	err := oops.Code("ACCOUNT_NOT_FOUND").
		With("account_id", "01J0000000000000000000000").
		Errorf("missing")

	errutil.LogErrorContext(context.Background(), logger, "lookup failed", err)

	var logEntry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &logEntry))
	ctx, ok := logEntry["context"].(map[string]any)
	require.True(t, ok, "context attribute missing: %s", buf.String())
	assert.Equal(t, "01J0000000000000000000000", ctx["account_id"])
}

func TestCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"standard error", errors.New("plain"), ""},
		{"oops without code", oops.Errorf("plain"), ""},
		{"oops with code", oops.Code("SESSION_INVALID_TOKEN").Errorf("bad"), "SESSION_INVALID_TOKEN"},
		{"wrapped sentinel", oops.Code("ACCOUNT_NOT_FOUND").Wrap(errors.New("not found")), "ACCOUNT_NOT_FOUND"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, errutil.Code(tt.err))
		})
	}
}

func TestHasCode(t *testing.T) {
	err := oops.Code("AUTH_INVALID_CREDENTIALS").Errorf("bad")
	assert.True(t, errutil.HasCode(err, "AUTH_INVALID_CREDENTIALS"))
	assert.False(t, errutil.HasCode(err, "AUTH_ACCOUNT_LOCKED"))
	assert.False(t, errutil.HasCode(nil, ""))
}
