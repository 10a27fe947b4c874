package database

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/truecontent/content-review-service/internal/observability"
)

// watchdogPingTimeout bounds the liveness probe so a wedged pool cannot
// stall the watchdog loop.
const watchdogPingTimeout = 10 * time.Second

// WatchedPool is the slice of *DB the watchdog needs. Narrowed to an
// interface so tests can substitute a fake pool.
type WatchedPool interface {
	Name() string
	Ping(ctx context.Context) error
	Stats() *PoolStats
	Reset()
}

// PoolStats is a plain snapshot of pool counters. pgxpool.Stat has no
// exported constructor, so the watchdog works from this copy instead.
type PoolStats struct {
	TotalConns    int32
	AcquiredConns int32
	IdleConns     int32
	MaxConns      int32
}

// watchedDB adapts *DB to WatchedPool.
type watchedDB struct {
	db *DB
}

func (w watchedDB) Name() string                   { return w.db.Name() }
func (w watchedDB) Ping(ctx context.Context) error { return w.db.Ping(ctx) }
func (w watchedDB) Reset()                         { w.db.Reset() }

func (w watchedDB) Stats() *PoolStats {
	s := w.db.Stats()
	return &PoolStats{
		TotalConns:    s.TotalConns(),
		AcquiredConns: s.AcquiredConns(),
		IdleConns:     s.IdleConns(),
		MaxConns:      s.MaxConns(),
	}
}

// Watchdog periodically inspects a connection pool, logs its stats, probes
// liveness, and performs an emergency reset when acquired connections stay
// at or above the configured high-water mark. Long agent calls holding
// connections across slow pipeline runs can otherwise starve the pool.
type Watchdog struct {
	pool      WatchedPool
	interval  time.Duration
	highWater int32
	logger    zerolog.Logger
	metrics   *observability.Metrics
}

// NewWatchdog creates a watchdog for a database pool. A highWater of zero
// disables emergency resets; stats are still logged and exported.
func NewWatchdog(db *DB, interval time.Duration, highWater int32, logger zerolog.Logger, metrics *observability.Metrics) *Watchdog {
	return newWatchdog(watchedDB{db: db}, interval, highWater, logger, metrics)
}

func newWatchdog(pool WatchedPool, interval time.Duration, highWater int32, logger zerolog.Logger, metrics *observability.Metrics) *Watchdog {
	return &Watchdog{
		pool:      pool,
		interval:  interval,
		highWater: highWater,
		logger:    logger.With().Str("component", "pool_watchdog").Str("pool", pool.Name()).Logger(),
		metrics:   metrics,
	}
}

// Run executes the watchdog loop until ctx is cancelled.
func (w *Watchdog) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.logger.Info().
		Dur("interval", w.interval).
		Int32("high_water", w.highWater).
		Msg("pool watchdog started")

	for {
		select {
		case <-ctx.Done():
			w.logger.Info().Msg("pool watchdog stopped")
			return
		case <-ticker.C:
			w.check(ctx)
		}
	}
}

// check performs one watchdog inspection.
func (w *Watchdog) check(ctx context.Context) {
	stats := w.pool.Stats()

	w.logger.Debug().
		Int32("total_conns", stats.TotalConns).
		Int32("acquired_conns", stats.AcquiredConns).
		Int32("idle_conns", stats.IdleConns).
		Int32("max_conns", stats.MaxConns).
		Msg("pool stats")

	if w.metrics != nil {
		w.metrics.RecordPoolStats(w.pool.Name(), stats.AcquiredConns, stats.IdleConns)
	}

	pingCtx, cancel := context.WithTimeout(ctx, watchdogPingTimeout)
	err := w.pool.Ping(pingCtx)
	cancel()
	if err != nil {
		w.logger.Warn().Err(err).Msg("pool liveness probe failed")
	}

	if w.highWater > 0 && stats.AcquiredConns >= w.highWater {
		w.logger.Warn().
			Int32("acquired_conns", stats.AcquiredConns).
			Int32("high_water", w.highWater).
			Msg("acquired connections at high-water mark, resetting pool")
		w.pool.Reset()
		if w.metrics != nil {
			w.metrics.RecordPoolReset(w.pool.Name())
		}
	}
}
