// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Credity Contributors

// Package config loads Credity's configuration from compiled defaults, an
// optional YAML file, CREDITY_* environment variables and command-line flags,
// in increasing order of precedence.
package config

import (
	"fmt"
	"net/netip"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/samber/oops"

	"github.com/anerua/Credity/internal/httpapi"
	"github.com/anerua/Credity/internal/logging"
	"github.com/anerua/Credity/internal/session"
)

// Storage backends.
const (
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
	BackendMemory   = "memory"
)

const redacted = "REDACTED"

// Config is the complete service configuration.
type Config struct {
	HTTP     HTTPConfig     `koanf:"http"`
	Metrics  MetricsConfig  `koanf:"metrics"`
	Database DatabaseConfig `koanf:"database"`
	// Storage selects where accounts live: postgres or memory.
	Storage  string         `koanf:"storage"`
	Sessions SessionsConfig `koanf:"sessions"`
	Redis    RedisConfig    `koanf:"redis"`
	Accounts AccountsConfig `koanf:"accounts"`
	Log      LogConfig      `koanf:"log"`
}

// HTTPConfig configures the account API listener.
type HTTPConfig struct {
	Addr              string          `koanf:"addr"`
	Prefix            string          `koanf:"prefix"`
	ReadHeaderTimeout time.Duration   `koanf:"read_header_timeout"`
	RateLimit         RateLimitConfig `koanf:"rate_limit"`
	// TrustedProxies are the IPs or CIDRs allowed to set X-Forwarded-For.
	// Empty means the client IP is always the connection's peer.
	TrustedProxies []string `koanf:"trusted_proxies"`
}

// RateLimitConfig throttles unauthenticated endpoints per client IP.
// A zero RPS disables throttling.
type RateLimitConfig struct {
	RPS   float64 `koanf:"rps"`
	Burst int     `koanf:"burst"`
}

// MetricsConfig configures the metrics and health endpoint. An empty Addr
// disables it.
type MetricsConfig struct {
	Addr string `koanf:"addr"`
}

// DatabaseConfig configures PostgreSQL.
type DatabaseConfig struct {
	URL         string `koanf:"url"`
	AutoMigrate bool   `koanf:"auto_migrate"`
}

// SessionsConfig configures token issuing and the revocation store.
type SessionsConfig struct {
	Backend       string        `koanf:"backend"`
	Secret        string        `koanf:"secret"`
	Issuer        string        `koanf:"issuer"`
	AccessTTL     time.Duration `koanf:"access_ttl"`
	RefreshTTL    time.Duration `koanf:"refresh_ttl"`
	RotateRefresh bool          `koanf:"rotate_refresh"`
	SweepInterval time.Duration `koanf:"sweep_interval"`
}

// RedisConfig configures the redis revocation store.
type RedisConfig struct {
	Addr     string `koanf:"addr"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db"`
}

// AccountsConfig configures registration and login behaviour.
type AccountsConfig struct {
	EmailVerifiedDefault bool `koanf:"email_verified_default"`
	Lockout              bool `koanf:"lockout"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	Format string `koanf:"format"`
	Level  string `koanf:"level"`
}

// Default returns the compiled defaults. The session secret and database URL
// have no default.
func Default() Config {
	return Config{
		HTTP: HTTPConfig{
			Addr:              ":8000",
			Prefix:            httpapi.DefaultPrefix,
			ReadHeaderTimeout: 10 * time.Second,
			RateLimit:         RateLimitConfig{RPS: 5, Burst: 10},
		},
		Metrics: MetricsConfig{Addr: "127.0.0.1:9100"},
		Storage: BackendPostgres,
		Sessions: SessionsConfig{
			Backend:       BackendPostgres,
			Issuer:        "credity",
			AccessTTL:     session.DefaultAccessTTL,
			RefreshTTL:    session.DefaultRefreshTTL,
			SweepInterval: session.DefaultSweepInterval,
		},
		Redis:    RedisConfig{Addr: "127.0.0.1:6379"},
		Accounts: AccountsConfig{EmailVerifiedDefault: true, Lockout: true},
		Log:      LogConfig{Format: logging.FormatJSON, Level: "info"},
	}
}

// Session returns the token lifetimes and rotation policy.
func (c *Config) Session() session.Config {
	return session.Config{
		AccessTTL:     c.Sessions.AccessTTL,
		RefreshTTL:    c.Sessions.RefreshTTL,
		RotateRefresh: c.Sessions.RotateRefresh,
	}
}

// Validate reports every problem with c in a single CONFIG_INVALID error.
func (c *Config) Validate() error {
	var problems []string
	add := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if c.HTTP.Addr == "" {
		add("http.addr is required")
	}
	if c.HTTP.Prefix != "" && !strings.HasPrefix(c.HTTP.Prefix, "/") {
		add("http.prefix must start with /, got %q", c.HTTP.Prefix)
	}
	if c.HTTP.ReadHeaderTimeout <= 0 {
		add("http.read_header_timeout must be positive")
	}
	if c.HTTP.RateLimit.RPS < 0 || c.HTTP.RateLimit.Burst < 0 {
		add("http.rate_limit values must not be negative")
	}
	for _, proxy := range c.HTTP.TrustedProxies {
		if !validProxy(proxy) {
			add("http.trusted_proxies entry %q is not an IP or CIDR", proxy)
		}
	}

	if !slices.Contains([]string{BackendPostgres, BackendMemory}, c.Storage) {
		add("storage must be %q or %q, got %q", BackendPostgres, BackendMemory, c.Storage)
	}
	if c.Storage == BackendPostgres && c.Database.URL == "" {
		add("database.url is required when storage is %q", BackendPostgres)
	}

	switch c.Sessions.Backend {
	case BackendPostgres:
		if c.Storage != BackendPostgres {
			add("sessions.backend %q requires storage %q", BackendPostgres, BackendPostgres)
		}
	case BackendRedis:
		if c.Redis.Addr == "" {
			add("redis.addr is required when sessions.backend is %q", BackendRedis)
		}
	case BackendMemory:
	default:
		add("sessions.backend must be %q, %q or %q, got %q",
			BackendPostgres, BackendRedis, BackendMemory, c.Sessions.Backend)
	}
	if len(c.Sessions.Secret) < session.MinSecretLength {
		add("sessions.secret must be at least %d bytes", session.MinSecretLength)
	}
	if c.Sessions.Issuer == "" {
		add("sessions.issuer is required")
	}
	if c.Sessions.AccessTTL <= 0 || c.Sessions.RefreshTTL <= 0 {
		add("sessions.access_ttl and sessions.refresh_ttl must be positive")
	}
	if c.Sessions.SweepInterval <= 0 {
		add("sessions.sweep_interval must be positive")
	}

	if c.Log.Format != logging.FormatJSON && c.Log.Format != logging.FormatText {
		add("log.format must be %q or %q, got %q", logging.FormatJSON, logging.FormatText, c.Log.Format)
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		add("log.level %q is not a level", c.Log.Level)
	}

	if len(problems) > 0 {
		return oops.Code("CONFIG_INVALID").
			With("problems", problems).
			Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

// Redacted returns c as a nested map suitable for display, with secrets
// masked and durations rendered as strings.
func (c *Config) Redacted() map[string]any {
	secret := ""
	if c.Sessions.Secret != "" {
		secret = redacted
	}
	redisPassword := ""
	if c.Redis.Password != "" {
		redisPassword = redacted
	}

	return map[string]any{
		"http": map[string]any{
			"addr":                c.HTTP.Addr,
			"prefix":              c.HTTP.Prefix,
			"read_header_timeout": c.HTTP.ReadHeaderTimeout.String(),
			"rate_limit": map[string]any{
				"rps":   c.HTTP.RateLimit.RPS,
				"burst": c.HTTP.RateLimit.Burst,
			},
			"trusted_proxies": c.HTTP.TrustedProxies,
		},
		"metrics": map[string]any{"addr": c.Metrics.Addr},
		"database": map[string]any{
			"url":          redactURL(c.Database.URL),
			"auto_migrate": c.Database.AutoMigrate,
		},
		"storage": c.Storage,
		"sessions": map[string]any{
			"backend":        c.Sessions.Backend,
			"secret":         secret,
			"issuer":         c.Sessions.Issuer,
			"access_ttl":     c.Sessions.AccessTTL.String(),
			"refresh_ttl":    c.Sessions.RefreshTTL.String(),
			"rotate_refresh": c.Sessions.RotateRefresh,
			"sweep_interval": c.Sessions.SweepInterval.String(),
		},
		"redis": map[string]any{
			"addr":     c.Redis.Addr,
			"password": redisPassword,
			"db":       c.Redis.DB,
		},
		"accounts": map[string]any{
			"email_verified_default": c.Accounts.EmailVerifiedDefault,
			"lockout":                c.Accounts.Lockout,
		},
		"log": map[string]any{
			"format": c.Log.Format,
			"level":  c.Log.Level,
		},
	}
}

func redactURL(raw string) string {
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil {
		return redacted
	}
	return u.Redacted()
}

func validProxy(s string) bool {
	if _, err := netip.ParsePrefix(s); err == nil {
		return true
	}
	_, err := netip.ParseAddr(s)
	return err == nil
}
