// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Credity Contributors

package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

// isolateConfig points config discovery at an empty directory and clears
// the --config global.
func isolateConfig(t *testing.T) {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	configFile = ""
	t.Cleanup(func() { configFile = "" })
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestRootCommand_HasExpectedSubcommands(t *testing.T) {
	output, err := execute(t, "--help")
	require.NoError(t, err)

	for _, sub := range []string{"serve", "migrate", "config", "version"} {
		assert.Contains(t, output, sub, "Help missing %q command", sub)
	}
}

func TestRootCommand_ConfigFlag(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		wantFlag string
	}{
		{
			name:     "config flag",
			args:     []string{"--config", "/path/to/config.yaml", "--help"},
			wantFlag: "/path/to/config.yaml",
		},
		{
			name:     "config flag with equals",
			args:     []string{"--config=/etc/credity.yaml", "--help"},
			wantFlag: "/etc/credity.yaml",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolateConfig(t)

			_, err := execute(t, tt.args...)
			require.NoError(t, err)
			assert.Equal(t, tt.wantFlag, configFile)
		})
	}
}

func TestRootCommand_VersionFlag(t *testing.T) {
	cmd := NewRootCmd()
	cmd.Version = "test-version"
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--version"})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), "test-version")
}

func TestVersionCommand(t *testing.T) {
	output, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, output, "credity dev")
	assert.Contains(t, output, "commit: unknown")
}

func TestConfigCommand_PrintsRedactedYAML(t *testing.T) {
	isolateConfig(t)
	t.Setenv("CREDITY_SESSIONS__SECRET", "0123456789abcdef0123456789abcdef")
	t.Setenv("CREDITY_DATABASE__URL", "postgres://credity:hunter2@db:5432/credity")

	output, err := execute(t, "config")
	require.NoError(t, err)
	assert.NotContains(t, output, "0123456789abcdef")
	assert.NotContains(t, output, "hunter2")

	var parsed map[string]any
	require.NoError(t, yaml.Unmarshal([]byte(output), &parsed))
	sessions := parsed["sessions"].(map[string]any)
	assert.Equal(t, "REDACTED", sessions["secret"])
	assert.Equal(t, "24h0m0s", sessions["refresh_ttl"])
}

func TestConfigCommand_CheckFailsOnInvalid(t *testing.T) {
	isolateConfig(t)

	_, err := execute(t, "config", "--check")
	require.Error(t, err)
}

func TestConfigCommand_ExplicitFile(t *testing.T) {
	isolateConfig(t)
	path := filepath.Join(t.TempDir(), "credity.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
storage: memory
sessions:
  backend: memory
  secret: 0123456789abcdef0123456789abcdef
`), 0o600))

	output, err := execute(t, "--config", path, "config", "--check")
	require.NoError(t, err)
	assert.Contains(t, output, "storage: memory")
	assert.Contains(t, output, "# configuration is valid")
}
