package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
)

// AuthScheme selects how the upstream credential is attached to outbound
// requests. The two marketing-API conventions observed in the wild are a
// custom "Klaviyo-API-Key <token>" header value and a plain bearer token;
// which one applies is an operator decision, not something the service can
// infer, so it is configurable.
type AuthScheme string

const (
	AuthSchemeAPIKey AuthScheme = "api-key" // Authorization: Klaviyo-API-Key <token>
	AuthSchemeBearer AuthScheme = "bearer"  // Authorization: Bearer <token>
)

// Config is the fully resolved application configuration, assembled once at
// startup from environment variables and passed down explicitly.
type Config struct {
	// Upstream marketing API
	UpstreamBaseURL    string
	UpstreamCredential string
	UpstreamAuthScheme AuthScheme
	UpstreamAPIRevision string

	// Rate limiting
	UpstreamMinIntervalMillis int
	UpstreamMaxConcurrent     int

	// Database
	DatabaseURL        string
	DatabaseMaxOpenConns int
	DatabaseMaxIdleConns int

	// Cache
	CacheDefaultTTL time.Duration

	// Redis (optional; enables cross-instance sync leases instead of the
	// in-memory default; the response cache is always in-memory)
	RedisAddr string

	// HTTP server
	Port int

	// Sync
	SyncMaxConcurrentEntities int

	// Logging
	LogLevel  string
	LogFormat string

	// Metrics
	MetricsEnabled bool

	Timeouts DefaultTimeouts
}

// Load assembles a Config from the process environment, applying the
// defaults documented in the external interfaces section. Only the
// upstream credential is mandatory; every other value has a sane default.
func Load() (*Config, error) {
	// A local .env file is optional and convenient outside containerized
	// deployments; its absence is not an error, only a parse failure is.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("parse .env: %w", err)
	}

	credential, err := RequireEnv("UPSTREAM_API_CREDENTIAL")
	if err != nil {
		return nil, err
	}

	scheme := AuthScheme(GetEnv("UPSTREAM_AUTH_SCHEME", string(AuthSchemeAPIKey)))
	if scheme != AuthSchemeAPIKey && scheme != AuthSchemeBearer {
		return nil, fmt.Errorf("UPSTREAM_AUTH_SCHEME must be %q or %q, got %q", AuthSchemeAPIKey, AuthSchemeBearer, scheme)
	}

	cfg := &Config{
		UpstreamBaseURL:     GetEnv("UPSTREAM_BASE_URL", "https://a.klaviyo.com/api"),
		UpstreamCredential:  credential,
		UpstreamAuthScheme:  scheme,
		UpstreamAPIRevision: GetEnv("UPSTREAM_API_REVISION", "2024-10-15"),

		UpstreamMinIntervalMillis: GetEnvInt("UPSTREAM_MIN_INTERVAL_MS", 1000),
		UpstreamMaxConcurrent:     GetEnvInt("UPSTREAM_MAX_CONCURRENT", 3),

		DatabaseURL:          GetEnv("DATABASE_URL", "postgres://localhost:5432/analytics?sslmode=disable"),
		DatabaseMaxOpenConns: GetEnvInt("DATABASE_MAX_OPEN_CONNS", 20),
		DatabaseMaxIdleConns: GetEnvInt("DATABASE_MAX_IDLE_CONNS", 5),

		CacheDefaultTTL: GetEnvDuration("CACHE_DEFAULT_TTL", 5*time.Minute),

		RedisAddr: GetEnv("REDIS_ADDR", ""),

		Port: GetPort(8080),

		SyncMaxConcurrentEntities: GetEnvInt("SYNC_MAX_CONCURRENT_ENTITIES", 4),

		LogLevel:  GetEnv("LOG_LEVEL", "info"),
		LogFormat: GetEnv("LOG_FORMAT", "json"),

		MetricsEnabled: GetEnvBool("METRICS_ENABLED", true),

		Timeouts: GetDefaultTimeouts(),
	}

	return cfg, nil
}
