package dbconfig

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
)

// Config holds the Postgres settings shared by the pgx repository pool and
// the lib/pq change listener.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string

	// MaxConns caps the repository pool. Zero leaves the pgx default.
	MaxConns int
}

// NewConfigFromEnv reads DB_* environment variables, falling back to a local
// development database.
func NewConfigFromEnv() Config {
	return Config{
		Host:     getEnv("DB_HOST", "localhost"),
		Port:     getInt("DB_PORT", 5432),
		User:     getEnv("DB_USER", "postgres"),
		Password: getEnv("DB_PASSWORD", "postgres"),
		Database: getEnv("DB_NAME", "drawrelay"),
		SSLMode:  getEnv("DB_SSLMODE", "disable"),
		MaxConns: getInt("DB_MAX_CONNS", 0),
	}
}

// DSN returns a connection URL understood by both lib/pq and golang-migrate.
func (c Config) DSN() string {
	return c.url(nil).String()
}

// PoolDSN is DSN plus the pgxpool-only parameters. lib/pq would forward
// those to the server as runtime settings, so the listener must not use it.
func (c Config) PoolDSN() string {
	q := url.Values{}
	if c.MaxConns > 0 {
		q.Set("pool_max_conns", strconv.Itoa(c.MaxConns))
	}
	return c.url(q).String()
}

func (c Config) url(extra url.Values) *url.URL {
	q := url.Values{"sslmode": {c.SSLMode}}
	for k, v := range extra {
		q[k] = v
	}
	return &url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     fmt.Sprintf("%s:%d", c.Host, c.Port),
		Path:     "/" + c.Database,
		RawQuery: q.Encode(),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	n, err := strconv.Atoi(getEnv(key, strconv.Itoa(fallback)))
	if err != nil {
		return fallback
	}
	return n
}
