// Package config reads the service configuration from the environment.
//
// Load takes a getenv function rather than calling os.Getenv itself, so
// tests pass a map lookup and never touch the real process environment.
// Every variable has a default except the admin credential, and a value
// that is present but malformed is an error, never silently replaced.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/anuragaming1/anura-kun/internal/auth"
	"github.com/anuragaming1/anura-kun/internal/resolver"
	"github.com/anuragaming1/anura-kun/internal/secretkey"
	"github.com/anuragaming1/anura-kun/internal/service"
)

// Store drivers accepted in STORE_DRIVER.
const (
	DriverSQLite   = "sqlite"
	DriverBolt     = "bolt"
	DriverPostgres = "postgres"
)

// Log formats accepted in LOG_FORMAT.
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatTint = "tint"
)

// Defaults.
const (
	DefaultPort          = 8080
	DefaultDBPath        = "data/cloak.db"
	DefaultAdminUsername = "admin"
)

// Config is everything the server and the admin CLI need to start.
type Config struct {
	Port        int
	StoreDriver string
	DBPath      string // sqlite and bolt
	DatabaseURL string // postgres
	BaseURL     *url.URL

	AdminUsername     string
	AdminPassword     string
	AdminPasswordHash string

	SessionSecret string
	// SessionSecretGenerated is true when SESSION_SECRET was empty and a
	// random one was made up. Sessions then die with the process.
	SessionSecretGenerated bool
	SessionTTL             time.Duration
	CookieSecure           bool

	StoreTimeout time.Duration
	Resolver     resolver.Config

	LogLevel  slog.Level
	LogFormat string
}

// Load builds a Config from getenv. os.Getenv is the usual argument.
func Load(getenv func(string) string) (*Config, error) {
	get := func(key string) string { return strings.TrimSpace(getenv(key)) }

	cfg := &Config{
		Port:          DefaultPort,
		StoreDriver:   DriverSQLite,
		DBPath:        DefaultDBPath,
		DatabaseURL:   get("DATABASE_URL"),
		AdminUsername: DefaultAdminUsername,
		AdminPassword: getenv("ADMIN_PASSWORD"),
		SessionSecret: getenv("SESSION_SECRET"),
		SessionTTL:    auth.DefaultSessionTTL,
		StoreTimeout:  service.DefaultStoreTimeout,
		Resolver:      resolver.DefaultConfig(),
		LogLevel:      slog.LevelInfo,
		LogFormat:     FormatText,
	}

	var errs []error

	if v := get("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil || port < 1 || port > 65535 {
			errs = append(errs, fmt.Errorf("PORT: %q is not a valid port", v))
		}
		cfg.Port = port
	}

	if v := get("STORE_DRIVER"); v != "" {
		switch strings.ToLower(v) {
		case DriverSQLite, DriverBolt, DriverPostgres:
			cfg.StoreDriver = strings.ToLower(v)
		default:
			errs = append(errs, fmt.Errorf("STORE_DRIVER: unknown driver %q (want sqlite, bolt or postgres)", v))
		}
	}
	if v := get("DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if cfg.StoreDriver == DriverPostgres && cfg.DatabaseURL == "" {
		errs = append(errs, errors.New("DATABASE_URL: required when STORE_DRIVER=postgres"))
	}

	if v := get("BASE_URL"); v != "" {
		u, err := url.Parse(v)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			errs = append(errs, fmt.Errorf("BASE_URL: %q must be an absolute http(s) URL", v))
		} else {
			cfg.BaseURL = u
		}
	}

	if v := get("ADMIN_USERNAME"); v != "" {
		cfg.AdminUsername = v
	}
	if v := get("ADMIN_PASSWORD_HASH"); v != "" {
		if err := auth.CheckHash(v); err != nil {
			errs = append(errs, fmt.Errorf("ADMIN_PASSWORD_HASH: %w", err))
		}
		cfg.AdminPasswordHash = v
	}

	if cfg.SessionSecret == "" {
		secret, err := secretkey.New()
		if err != nil {
			errs = append(errs, fmt.Errorf("SESSION_SECRET: generating: %w", err))
		}
		cfg.SessionSecret = secret
		cfg.SessionSecretGenerated = true
	} else if len(cfg.SessionSecret) < auth.MinSecretLength {
		errs = append(errs, fmt.Errorf("SESSION_SECRET: must be at least %d characters", auth.MinSecretLength))
	}

	errs = appendDuration(errs, get("SESSION_TTL"), "SESSION_TTL", &cfg.SessionTTL)
	errs = appendDuration(errs, get("STORE_TIMEOUT"), "STORE_TIMEOUT", &cfg.StoreTimeout)

	if v := get("COOKIE_SECURE"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("COOKIE_SECURE: %q is not a boolean", v))
		}
		cfg.CookieSecure = b
	} else if cfg.BaseURL != nil {
		cfg.CookieSecure = cfg.BaseURL.Scheme == "https"
	}

	if v := getenv("PRIVILEGED_CLIENT_TAGS"); v != "" {
		cfg.Resolver.ClientTags = splitList(v)
	}
	if v := getenv("PRIVILEGED_USER_AGENTS"); v != "" {
		cfg.Resolver.UserAgentSubstrings = splitList(v)
	}

	if v := get("LOG_LEVEL"); v != "" {
		if err := cfg.LogLevel.UnmarshalText([]byte(v)); err != nil {
			errs = append(errs, fmt.Errorf("LOG_LEVEL: %q is not one of debug, info, warn, error", v))
		}
	}
	if v := get("LOG_FORMAT"); v != "" {
		switch strings.ToLower(v) {
		case FormatText, FormatJSON, FormatTint:
			cfg.LogFormat = strings.ToLower(v)
		default:
			errs = append(errs, fmt.Errorf("LOG_FORMAT: unknown format %q (want text, json or tint)", v))
		}
	}

	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// RequireAdmin checks that an admin credential is configured. The server
// needs one; the admin CLI does not.
func (c *Config) RequireAdmin() error {
	if c.AdminPassword == "" && c.AdminPasswordHash == "" {
		return errors.New("config: ADMIN_PASSWORD or ADMIN_PASSWORD_HASH must be set")
	}
	return nil
}

func appendDuration(errs []error, raw, name string, dst *time.Duration) []error {
	if raw == "" {
		return errs
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return append(errs, fmt.Errorf("%s: %q is not a positive duration", name, raw))
	}
	*dst = d
	return errs
}

// splitList splits a comma separated value, dropping blanks.
func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
