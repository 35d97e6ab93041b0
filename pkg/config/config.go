// Package config loads service settings from the environment.
package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"time"

	env "github.com/Netflix/go-env"
	"github.com/joho/godotenv"
)

const (
	// DriverSQLite stores metadata in a local SQLite file.
	DriverSQLite = "sqlite"
	// DriverPostgres stores metadata in PostgreSQL.
	DriverPostgres = "postgres"

	// DefaultMaxUploadBytes is the upload limit when MAX_UPLOAD_BYTES is unset (20 MiB).
	DefaultMaxUploadBytes = 20 * 1024 * 1024
)

var (
	// ErrInvalidLimit is returned when MAX_UPLOAD_BYTES is zero or negative.
	ErrInvalidLimit = errors.New("MAX_UPLOAD_BYTES must be positive")
	// ErrInvalidDriver is returned for a DB_DRIVER other than sqlite or postgres.
	ErrInvalidDriver = errors.New("DB_DRIVER must be sqlite or postgres")
	// ErrInvalidFormat is returned for a LOG_FORMAT other than console or json.
	ErrInvalidFormat = errors.New("LOG_FORMAT must be console or json")
	// ErrEmptyDir is returned when UPLOAD_DIR is blank.
	ErrEmptyDir = errors.New("UPLOAD_DIR must not be empty")
)

// Config holds every setting the service reads at startup.
type Config struct {
	ListenAddr      string        `env:"LISTEN_ADDR,default=:8080"`
	UploadDir       string        `env:"UPLOAD_DIR,default=uploads"`
	MaxUploadBytes  int64         `env:"MAX_UPLOAD_BYTES,default=20971520"`
	UIDir           string        `env:"UI_DIR,default=ui"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT,default=10s"`

	DBDriver   string `env:"DB_DRIVER,default=sqlite"`
	SQLitePath string `env:"SQLITE_PATH,default=filesvc.db"`

	PGHost     string `env:"PG_HOST,default=localhost"`
	PGPort     int    `env:"PG_PORT,default=5432"`
	PGUser     string `env:"PG_USER,default=filesvc"`
	PGPassword string `env:"PG_PASSWORD,default=filesvc"`
	PGDatabase string `env:"PG_DATABASE,default=filesvc"`
	PGSSLMode  string `env:"PG_SSLMODE,default=disable"`

	LogLevel  string `env:"LOG_LEVEL,default=info"`
	LogFormat string `env:"LOG_FORMAT,default=console"`
}

// Load reads an optional dotenv file and then the process environment.
// Variables already present in the environment win over the file.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", envFile, err)
		}
	}

	cfg := &Config{}
	if _, err := env.UnmarshalFromEnviron(cfg); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that the environment parser cannot.
func (c *Config) Validate() error {
	if c.MaxUploadBytes <= 0 {
		return ErrInvalidLimit
	}
	if c.UploadDir == "" {
		return ErrEmptyDir
	}
	switch c.DBDriver {
	case DriverSQLite, DriverPostgres:
	default:
		return fmt.Errorf("%w: got %q", ErrInvalidDriver, c.DBDriver)
	}
	switch c.LogFormat {
	case "console", "json":
	default:
		return fmt.Errorf("%w: got %q", ErrInvalidFormat, c.LogFormat)
	}
	return nil
}

// PostgresDSN returns the connection URL for the configured PostgreSQL server.
func (c *Config) PostgresDSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.PGUser, c.PGPassword),
		Host:     net.JoinHostPort(c.PGHost, strconv.Itoa(c.PGPort)),
		Path:     "/" + c.PGDatabase,
		RawQuery: url.Values{"sslmode": []string{c.PGSSLMode}}.Encode(),
	}
	return u.String()
}

// DataSource returns the driver-specific connection string.
func (c *Config) DataSource() string {
	if c.DBDriver == DriverPostgres {
		return c.PostgresDSN()
	}
	return c.SQLitePath
}
