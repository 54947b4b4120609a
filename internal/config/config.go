// Package config loads service settings from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/hal9000y/email-writer/internal/api"
	"github.com/hal9000y/email-writer/internal/gemini"
	"github.com/hal9000y/email-writer/internal/reply"
)

// EnvProduction is the APP_ENV value that forbids insecure TLS.
const EnvProduction = "production"

// ErrInsecureInProduction is returned when TLS verification is disabled in production.
var ErrInsecureInProduction = errors.New("GEMINI_INSECURE_SKIP_VERIFY is not allowed when APP_ENV=production")

// Config holds everything the service reads from its environment.
type Config struct {
	AppEnv   string
	LogLevel zerolog.Level

	Gemini gemini.Config

	Workers       int
	ErrorMode     api.ErrorMode
	AllowedOrigin string

	OAuthClientID     string
	OAuthClientSecret string
}

// GmailEnabled reports whether Google OAuth credentials were provided.
func (c Config) GmailEnabled() bool {
	return c.OAuthClientID != "" && c.OAuthClientSecret != ""
}

// Load reads envFile (when set) into the process environment and builds a Config.
// Variables already present in the environment win over the file.
func Load(envFile string) (Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return Config{}, fmt.Errorf("godotenv.Load failed: %w", err)
		}
	}

	return FromEnv()
}

// FromEnv builds a Config from the current environment.
func FromEnv() (Config, error) {
	var errs []error

	cfg := Config{
		AppEnv:        env("APP_ENV", "development"),
		AllowedOrigin: env("CORS_ALLOWED_ORIGIN", "*"),
		Gemini: gemini.Config{
			BaseURL: env("GEMINI_BASE_URL", gemini.DefaultBaseURL),
			APIKey:  os.Getenv("GEMINI_API_KEY"),
			Model:   env("GEMINI_MODEL", gemini.DefaultModel),
		},
		OAuthClientID:     os.Getenv("OAUTH_GOOGLE_CLIENT_ID"),
		OAuthClientSecret: os.Getenv("OAUTH_GOOGLE_CLIENT_SECRET"),
	}

	if cfg.Gemini.APIKey == "" {
		errs = append(errs, errors.New("GEMINI_API_KEY must be set"))
	}

	var err error
	if cfg.Gemini.Timeout, err = envDuration("GEMINI_TIMEOUT", gemini.DefaultTimeout); err != nil {
		errs = append(errs, err)
	}
	if cfg.Gemini.InsecureSkipVerify, err = envBool("GEMINI_INSECURE_SKIP_VERIFY", false); err != nil {
		errs = append(errs, err)
	}
	if cfg.Workers, err = envInt("REPLY_WORKERS", reply.DefaultWorkers()); err != nil {
		errs = append(errs, err)
	}
	if cfg.ErrorMode, err = api.ParseErrorMode(os.Getenv("ERROR_MODE")); err != nil {
		errs = append(errs, fmt.Errorf("ERROR_MODE: %w", err))
	}
	if cfg.LogLevel, err = zerolog.ParseLevel(env("LOG_LEVEL", "info")); err != nil {
		errs = append(errs, fmt.Errorf("LOG_LEVEL: %w", err))
	}

	if cfg.Gemini.InsecureSkipVerify && cfg.AppEnv == EnvProduction {
		errs = append(errs, ErrInsecureInProduction)
	}

	if err := errors.Join(errs...); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func envInt(k string, def int) (int, error) {
	v := os.Getenv(k)
	if v == "" {
		return def, nil
	}

	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%s: expected a positive integer, got %q", k, v)
	}
	return n, nil
}

func envBool(k string, def bool) (bool, error) {
	v := os.Getenv(k)
	if v == "" {
		return def, nil
	}

	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s: %w", k, err)
	}
	return b, nil
}

func envDuration(k string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(k)
	if v == "" {
		return def, nil
	}

	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("%s: expected a positive duration, got %q", k, v)
	}
	return d, nil
}
