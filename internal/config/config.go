// Package config provides centralized configuration management for the application.
// It loads configuration from environment variables with sensible defaults and
// validates all settings on startup to fail fast on misconfiguration.
package config

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/JonMunkholm/csvkit/internal/csv"
)

// Config holds all application configuration.
// All settings can be configured via environment variables.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Codec    CodecConfig
	Limits   LimitsConfig
	Cache    CacheConfig
	Security SecurityConfig
	Logging  LoggingConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" default:"8080"`

	// ReadTimeout is the maximum duration for reading the request body (default: 15s)
	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"15s"`

	// WriteTimeout is the maximum duration for writing a response (default: 30s)
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"30s"`

	// IdleTimeout is the keep-alive timeout (default: 60s)
	IdleTimeout time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout bounds graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout is the middleware timeout for requests (default: 60s)
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"60s"`
}

// DatabaseConfig holds dataset storage settings. An empty URL disables
// dataset storage; parsing and serialization keep working.
type DatabaseConfig struct {
	// URL is the PostgreSQL connection string.
	// Supports both DATABASE_URL and DB_URL env vars for compatibility
	URL string `env:"DATABASE_URL" envAlt:"DB_URL"`

	// MaxConns is the maximum number of connections in the pool (default: 10)
	MaxConns int `env:"DB_MAX_CONNS" default:"10"`

	// MinConns is the minimum number of connections to keep open (default: 1)
	MinConns int `env:"DB_MIN_CONNS" default:"1"`

	// MaxConnLifetime is the maximum lifetime of a connection (default: 1h)
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`

	// MaxConnIdleTime is the maximum idle time before a connection is closed (default: 30m)
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`

	// Retention is how long datasets are kept, 0 keeps them forever (default: 0)
	Retention time.Duration `env:"DATASET_RETENTION" default:"0s"`

	// RetentionInterval is how often expired datasets are purged (default: 1h)
	RetentionInterval time.Duration `env:"DATASET_RETENTION_INTERVAL" default:"1h"`
}

// Enabled reports whether dataset storage is configured.
func (c *DatabaseConfig) Enabled() bool {
	return c.URL != ""
}

// CodecConfig holds the default CSV dialect. Requests may override each
// setting individually.
type CodecConfig struct {
	// Delimiter is a single character or one of: comma, semicolon, tab, pipe (default: ,)
	Delimiter string `env:"CSV_DELIMITER" default:","`

	// Quote is a single character (default: ")
	Quote string `env:"CSV_QUOTE" default:"\""`

	// HasHeader treats the first record as column names (default: true)
	HasHeader bool `env:"CSV_HAS_HEADER" default:"true"`

	// NumericCoercion requires unquoted fields to be numbers (default: false)
	NumericCoercion bool `env:"CSV_NUMERIC_COERCION" default:"false"`

	// CRLF writes "\r\n" record terminators (default: false)
	CRLF bool `env:"CSV_CRLF" default:"false"`
}

// Dialect converts the settings to a codec configuration.
func (c *CodecConfig) Dialect() (csv.Config, error) {
	delim, err := ParseDialectChar(c.Delimiter)
	if err != nil {
		return csv.Config{}, fmt.Errorf("CSV_DELIMITER: %w", err)
	}
	quote, err := ParseDialectChar(c.Quote)
	if err != nil {
		return csv.Config{}, fmt.Errorf("CSV_QUOTE: %w", err)
	}

	cfg := csv.Config{
		Delimiter:       delim,
		Quote:           quote,
		HasHeader:       c.HasHeader,
		NumericCoercion: c.NumericCoercion,
		CRLF:            c.CRLF,
	}
	if err := cfg.Validate(); err != nil {
		return csv.Config{}, err
	}
	return cfg, nil
}

// ParseDialectChar accepts a single character or a well-known name.
func ParseDialectChar(s string) (rune, error) {
	switch strings.ToLower(s) {
	case "tab", `\t`:
		return '\t', nil
	case "comma":
		return ',', nil
	case "semicolon":
		return ';', nil
	case "pipe":
		return '|', nil
	}
	if utf8.RuneCountInString(s) != 1 {
		return 0, fmt.Errorf("%q must be a single character", s)
	}
	r, _ := utf8.DecodeRuneInString(s)
	return r, nil
}

// LimitsConfig bounds the work a single request may cause.
type LimitsConfig struct {
	// MaxInputSize is the maximum CSV body size in bytes (default: 10MB)
	MaxInputSize int64 `env:"MAX_INPUT_SIZE" default:"10485760"`

	// MaxConcurrent is the maximum number of parses running at once (default: 8)
	MaxConcurrent int `env:"MAX_CONCURRENT" default:"8"`

	// MaxWaitTime is how long a request waits for a free slot (default: 5s)
	MaxWaitTime time.Duration `env:"MAX_WAIT_TIME" default:"5s"`
}

// CacheConfig holds parse-result cache settings.
type CacheConfig struct {
	// Enabled turns the cache on (default: true)
	Enabled bool `env:"CACHE_ENABLED" default:"true"`

	// MaxCost is the cache budget in bytes of input text (default: 64MB)
	MaxCost int64 `env:"CACHE_MAX_COST" default:"67108864"`

	// NumCounters is the number of frequency counters, ~10x expected entries (default: 100000)
	NumCounters int64 `env:"CACHE_NUM_COUNTERS" default:"100000"`
}

// SecurityConfig holds request admission settings.
type SecurityConfig struct {
	// APIKeys is a comma-separated list of accepted X-API-Key values
	APIKeys string `env:"API_KEYS"`

	// RequireAPIKey rejects /api requests without a valid key (default: false)
	RequireAPIKey bool `env:"REQUIRE_API_KEY" default:"false"`

	// TrustedProxies is a comma-separated list of proxy CIDRs or IPs whose
	// X-Real-IP and X-Forwarded-For headers are honoured
	TrustedProxies string `env:"TRUSTED_PROXIES"`

	// RateLimit is requests per minute per client IP, 0 disables (default: 300)
	RateLimit int `env:"RATE_LIMIT_PER_MINUTE" default:"300"`
}

// Keys returns the configured API keys.
func (c *SecurityConfig) Keys() []string {
	return splitList(c.APIKeys)
}

// Proxies returns the configured trusted proxy networks.
func (c *SecurityConfig) Proxies() []string {
	return splitList(c.TrustedProxies)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}
