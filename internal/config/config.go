// Package config loads server settings from the environment.
//
// A .env file in the working directory is read first when present. Values
// already set in the real environment win over the file, so a deploy
// platform's settings are never shadowed by a stray local .env.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Config holds every setting the server needs.
type Config struct {
	Port int

	// DBDriver selects the user store: "postgres" (DatabaseURL) or
	// "sqlite" (DBPath).
	DBDriver    string
	DatabaseURL string
	DBPath      string

	FacebookGraphURL string
	FacebookTimeout  time.Duration

	CORSAllowedOrigins []string

	LogLevel  slog.Level
	LogFormat string // "text" or "json"
}

// Load reads the given dotenv files (".env" when none are named), then
// builds a Config from the environment. Missing dotenv files are not an
// error. Every invalid setting is reported, not just the first.
func Load(files ...string) (Config, error) {
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("config: reading env file: %w", err)
	}
	return fromEnv(os.Getenv)
}

func fromEnv(getenv func(string) string) (Config, error) {
	var errs []error

	cfg := Config{
		DatabaseURL:      getenv("DATABASE_URL"),
		DBPath:           withDefault(getenv("DB_PATH"), "data/roster.db"),
		FacebookGraphURL: getenv("FACEBOOK_GRAPH_URL"),
		LogFormat:        strings.ToLower(withDefault(getenv("LOG_FORMAT"), "text")),
	}

	port, err := strconv.Atoi(withDefault(getenv("PORT"), "3001"))
	if err != nil || port < 1 || port > 65535 {
		errs = append(errs, fmt.Errorf("PORT must be a number between 1 and 65535, got %q", getenv("PORT")))
	}
	cfg.Port = port

	cfg.DBDriver = strings.ToLower(getenv("DB_DRIVER"))
	if cfg.DBDriver == "" {
		cfg.DBDriver = DriverSQLite
		if cfg.DatabaseURL != "" {
			cfg.DBDriver = DriverPostgres
		}
	}
	switch cfg.DBDriver {
	case DriverPostgres:
		if cfg.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required when DB_DRIVER=postgres"))
		}
	case DriverSQLite:
	default:
		errs = append(errs, fmt.Errorf("DB_DRIVER must be %q or %q, got %q", DriverPostgres, DriverSQLite, cfg.DBDriver))
	}

	timeout, err := time.ParseDuration(withDefault(getenv("FACEBOOK_TIMEOUT"), "10s"))
	if err != nil || timeout <= 0 {
		errs = append(errs, fmt.Errorf("FACEBOOK_TIMEOUT must be a positive duration like 10s, got %q", getenv("FACEBOOK_TIMEOUT")))
	}
	cfg.FacebookTimeout = timeout

	for _, origin := range strings.Split(withDefault(getenv("CORS_ALLOWED_ORIGINS"), "*"), ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			cfg.CORSAllowedOrigins = append(cfg.CORSAllowedOrigins, origin)
		}
	}

	if err := cfg.LogLevel.UnmarshalText([]byte(withDefault(getenv("LOG_LEVEL"), "info"))); err != nil {
		errs = append(errs, fmt.Errorf("LOG_LEVEL must be debug, info, warn or error, got %q", getenv("LOG_LEVEL")))
	}

	if cfg.LogFormat != "text" && cfg.LogFormat != "json" {
		errs = append(errs, fmt.Errorf("LOG_FORMAT must be text or json, got %q", cfg.LogFormat))
	}

	if len(errs) > 0 {
		return Config{}, fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return cfg, nil
}

func withDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
