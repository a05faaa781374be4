// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Credity Contributors

package config

import (
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/anerua/Credity/internal/xdg"
)

// EnvPrefix prefixes every environment variable read by Load. A double
// underscore separates nesting levels: CREDITY_SESSIONS__ACCESS_TTL is
// sessions.access_ttl.
const EnvPrefix = "CREDITY_"

// FlagKeys maps command-line flag names to configuration keys. Flags not
// listed here are ignored by Load.
var FlagKeys = map[string]string{
	"addr":             "http.addr",
	"metrics-addr":     "metrics.addr",
	"database-url":     "database.url",
	"auto-migrate":     "database.auto_migrate",
	"storage":          "storage",
	"sessions-backend": "sessions.backend",
	"log-format":       "log.format",
	"log-level":        "log.level",
}

// Options selects the sources Load reads in addition to the defaults.
type Options struct {
	// File is an explicit config file. Empty means the XDG default file
	// if one exists.
	File string
	// Flags, when set, overrides keys with every changed flag in FlagKeys.
	Flags *pflag.FlagSet
	// Environ replaces the process environment, as KEY=VALUE pairs.
	Environ []string
}

// Load merges all sources into a Config. It does not validate the result.
func Load(opts Options) (*Config, error) {
	k := koanf.New(".")

	for key, value := range defaultValues() {
		if err := k.Set(key, value); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").With("key", key).Wrap(err)
		}
	}

	path := opts.File
	if path == "" {
		found, err := xdg.ExistingConfigFile()
		if err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").With("operation", "locate config file").Wrap(err)
		}
		path = found
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").With("path", path).Wrap(err)
		}
	}

	if err := loadEnv(k, opts.Environ); err != nil {
		return nil, err
	}

	if opts.Flags != nil {
		provider := posflag.ProviderWithFlag(opts.Flags, ".", k, func(f *pflag.Flag) (string, any) {
			key, ok := FlagKeys[f.Name]
			if !ok {
				return "", nil
			}
			return key, posflag.FlagVal(opts.Flags, f)
		})
		if err := k.Load(provider, nil); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").With("operation", "load flags").Wrap(err)
		}
	}

	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{DecoderConfig: decoderConfig()}); err != nil {
		return nil, oops.Code("CONFIG_LOAD_FAILED").With("operation", "decode").Wrap(err)
	}
	return &cfg, nil
}

// decoderConfig extends koanf's default hooks so comma-separated strings
// from the environment or flags decode into list keys.
func decoderConfig() *mapstructure.DecoderConfig {
	return &mapstructure.DecoderConfig{
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
		WeaklyTypedInput: true,
	}
}

func envKey(name string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(name, EnvPrefix)), "__", ".")
}

func loadEnv(k *koanf.Koanf, environ []string) error {
	if environ == nil {
		if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
			return oops.Code("CONFIG_LOAD_FAILED").With("operation", "load environment").Wrap(err)
		}
		return nil
	}
	for _, kv := range environ {
		name, value, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(name, EnvPrefix) {
			continue
		}
		if err := k.Set(envKey(name), value); err != nil {
			return oops.Code("CONFIG_LOAD_FAILED").With("variable", name).Wrap(err)
		}
	}
	return nil
}

// defaultValues flattens Default into koanf keys. Durations are set as
// strings so every source decodes the same way.
func defaultValues() map[string]any {
	d := Default()
	return map[string]any{
		"http.addr":                       d.HTTP.Addr,
		"http.prefix":                     d.HTTP.Prefix,
		"http.read_header_timeout":        d.HTTP.ReadHeaderTimeout.String(),
		"http.rate_limit.rps":             d.HTTP.RateLimit.RPS,
		"http.rate_limit.burst":           d.HTTP.RateLimit.Burst,
		"metrics.addr":                    d.Metrics.Addr,
		"database.url":                    d.Database.URL,
		"database.auto_migrate":           d.Database.AutoMigrate,
		"storage":                         d.Storage,
		"sessions.backend":                d.Sessions.Backend,
		"sessions.secret":                 d.Sessions.Secret,
		"sessions.issuer":                 d.Sessions.Issuer,
		"sessions.access_ttl":             d.Sessions.AccessTTL.String(),
		"sessions.refresh_ttl":            d.Sessions.RefreshTTL.String(),
		"sessions.rotate_refresh":         d.Sessions.RotateRefresh,
		"sessions.sweep_interval":         d.Sessions.SweepInterval.String(),
		"redis.addr":                      d.Redis.Addr,
		"redis.password":                  d.Redis.Password,
		"redis.db":                        d.Redis.DB,
		"accounts.email_verified_default": d.Accounts.EmailVerifiedDefault,
		"accounts.lockout":                d.Accounts.Lockout,
		"log.format":                      d.Log.Format,
		"log.level":                       d.Log.Level,
	}
}
