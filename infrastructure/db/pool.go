// Package db owns the Postgres connection pool: dynamic sizing, per-query
// statement timeouts, slow-query logging, and live pool metrics. It is
// adapted from the teacher's infrastructure/database package, which wrapped
// a Supabase REST client instead of a direct SQL connection; the pool
// lifecycle and metrics-polling shape carries over, generalized from HTTP
// request/response counting to database/sql.DB.Stats().
package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/analytics-sync/backend/infrastructure/logging"
	"github.com/analytics-sync/backend/infrastructure/metrics"
)

// Config controls pool sizing and query behavior.
type Config struct {
	DSN               string
	MaxOpenConns      int
	MaxIdleConns      int
	ConnMaxLifetime   time.Duration
	StatementTimeout  time.Duration
	SlowQueryThreshold time.Duration
	MetricsInterval   time.Duration
}

func DefaultConfig(dsn string) Config {
	return Config{
		DSN:                dsn,
		MaxOpenConns:       20,
		MaxIdleConns:       5,
		ConnMaxLifetime:    30 * time.Minute,
		StatementTimeout:   10 * time.Second,
		SlowQueryThreshold: time.Second,
		MetricsInterval:    15 * time.Second,
	}
}

// Pool wraps *sqlx.DB with the statement-timeout and slow-query-logging
// conventions used throughout internal/repository.
type Pool struct {
	DB     *sqlx.DB
	cfg    Config
	logger *logging.Logger
}

func applyDefaults(cfg Config) Config {
	if cfg.MaxOpenConns <= 0 {
		cfg.MaxOpenConns = 20
	}
	if cfg.MaxIdleConns <= 0 {
		cfg.MaxIdleConns = 5
	}
	if cfg.StatementTimeout <= 0 {
		cfg.StatementTimeout = 10 * time.Second
	}
	if cfg.SlowQueryThreshold <= 0 {
		cfg.SlowQueryThreshold = time.Second
	}
	if cfg.MetricsInterval <= 0 {
		cfg.MetricsInterval = 15 * time.Second
	}
	return cfg
}

// Open connects to Postgres and configures pool sizing.
func Open(cfg Config, logger *logging.Logger) (*Pool, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db: DSN is required")
	}
	cfg = applyDefaults(cfg)

	sdb, err := sqlx.Connect("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("db: connect: %w", err)
	}

	sdb.SetMaxOpenConns(cfg.MaxOpenConns)
	sdb.SetMaxIdleConns(cfg.MaxIdleConns)
	sdb.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	return &Pool{DB: sdb, cfg: cfg, logger: logger}, nil
}

// WrapForTesting builds a Pool around an already-open *sqlx.DB, applying the
// same defaulting as Open. Used by repository tests against go-sqlmock,
// where there is no real DSN to connect with.
func WrapForTesting(sdb *sqlx.DB, logger *logging.Logger) *Pool {
	return &Pool{DB: sdb, cfg: applyDefaults(Config{}), logger: logger}
}

// Close releases all pooled connections.
func (p *Pool) Close() error {
	return p.DB.Close()
}

// Ping checks connectivity for the liveness/readiness endpoints.
func (p *Pool) Ping(ctx context.Context) error {
	return p.DB.PingContext(ctx)
}

// WithStatementTimeout returns a context carrying the pool's configured
// per-statement deadline, used by repositories for every query.
func (p *Pool) WithStatementTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, p.cfg.StatementTimeout)
}

// LogSlowQuery logs operation if duration exceeds the configured threshold.
func (p *Pool) LogSlowQuery(ctx context.Context, operation string, duration time.Duration) {
	if duration < p.cfg.SlowQueryThreshold {
		return
	}
	if p.logger != nil {
		p.logger.WithContext(ctx).WithFields(map[string]interface{}{
			"operation":  operation,
			"duration_ms": duration.Milliseconds(),
			"threshold_ms": p.cfg.SlowQueryThreshold.Milliseconds(),
		}).Warn("slow query")
	}
}

// StartPoolMetrics polls sql.DB.Stats() on an interval and publishes
// active/idle connection counts to Prometheus until ctx is cancelled.
func (p *Pool) StartPoolMetrics(ctx context.Context) {
	ticker := time.NewTicker(p.cfg.MetricsInterval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				stats := p.DB.Stats()
				metrics.Global().SetDatabaseConnections(stats.OpenConnections-stats.Idle, stats.Idle)
			}
		}
	}()
}
