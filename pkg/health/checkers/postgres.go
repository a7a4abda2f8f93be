package checkers

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresChecker checks connectivity to a PostgreSQL database via a pgx pool.
type PostgresChecker struct {
	pool *pgxpool.Pool
	name string
}

// NewPostgresChecker creates a health checker for the given connection pool.
// If name is empty, defaults to "postgres".
func NewPostgresChecker(pool *pgxpool.Pool, name string) *PostgresChecker {
	if name == "" {
		name = "postgres"
	}

	return &PostgresChecker{
		pool: pool,
		name: name,
	}
}

// Name returns the name of this health check.
func (p *PostgresChecker) Name() string {
	return p.name
}

// Check pings the database.
func (p *PostgresChecker) Check(ctx context.Context) error {
	if p.pool == nil {
		return fmt.Errorf("connection pool is nil")
	}

	if err := p.pool.Ping(ctx); err != nil {
		return fmt.Errorf("postgres ping failed: %w", err)
	}

	return nil
}
