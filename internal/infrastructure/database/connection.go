package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/atlaspay/fraud-risk-engine/internal/infrastructure/config"
)

// ConnectionPool wraps the pgx pool with lifecycle logging and health
// checks. All repositories share one pool.
type ConnectionPool struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewConnectionPool opens and verifies a connection pool from config.
func NewConnectionPool(ctx context.Context, cfg *config.DatabaseConfig, logger *zap.Logger) (*ConnectionPool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.MaxOpenConns)
	poolConfig.MinConns = int32(cfg.MaxIdleConns)
	poolConfig.MaxConnLifetime = cfg.ConnMaxLifetime
	poolConfig.HealthCheckPeriod = time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("database connection pool established",
		zap.Int32("max_conns", poolConfig.MaxConns),
		zap.Duration("max_conn_lifetime", poolConfig.MaxConnLifetime),
	)

	return &ConnectionPool{pool: pool, logger: logger}, nil
}

// Pool exposes the underlying pgx pool for repositories.
func (p *ConnectionPool) Pool() *pgxpool.Pool {
	return p.pool
}

// HealthCheck verifies the pool can reach the database.
func (p *ConnectionPool) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := p.pool.Ping(ctx); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}
	return nil
}

// Stats reports pool utilization for diagnostics.
func (p *ConnectionPool) Stats() map[string]interface{} {
	s := p.pool.Stat()
	return map[string]interface{}{
		"total_conns":    s.TotalConns(),
		"idle_conns":     s.IdleConns(),
		"acquired_conns": s.AcquiredConns(),
		"max_conns":      s.MaxConns(),
	}
}

// Close drains and closes the pool.
func (p *ConnectionPool) Close() {
	p.logger.Info("closing database connection pool")
	p.pool.Close()
}
