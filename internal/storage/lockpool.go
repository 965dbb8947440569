package storage

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"waterbill/internal/metrics"
)

// LockPool wraps a pgx connection pool for the batch worker: PostgreSQL
// advisory locks keep a multi-instance deployment from running the same
// billing job twice. Data access still goes through Storage; this pool
// exists only for coordination.
type LockPool struct {
	pool *pgxpool.Pool
}

func OpenLockPool(ctx context.Context, dsn string) (*LockPool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &LockPool{pool: pool}, nil
}

func (p *LockPool) Close() {
	p.pool.Close()
}

func (p *LockPool) AcquireAdvisoryLock(ctx context.Context, key int64) (bool, error) {
	var ok bool
	err := p.pool.QueryRow(ctx, "SELECT pg_try_advisory_lock($1)", key).Scan(&ok)
	return ok, err
}

func (p *LockPool) ReleaseAdvisoryLock(ctx context.Context, key int64) (bool, error) {
	var ok bool
	err := p.pool.QueryRow(ctx, "SELECT pg_advisory_unlock($1)", key).Scan(&ok)
	return ok, err
}

// ReportPoolMetrics pushes the pool's connection stats into prometheus.
func (p *LockPool) ReportPoolMetrics() {
	st := p.pool.Stat()
	metrics.UpdateDBPoolMetrics("postgres",
		float64(st.TotalConns()),
		float64(st.IdleConns()),
		float64(st.AcquiredConns()),
		uint64(st.AcquireCount()),
	)
}
