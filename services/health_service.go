package services

import (
	"context"
	"time"

	"github.com/opendots/opendots-backend/logger"
	"github.com/opendots/opendots-backend/types"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// DBPinger is satisfied by *pgxpool.Pool and pgxmock pools.
type DBPinger interface {
	Ping(ctx context.Context) error
}

// RedisPinger is satisfied by *redis.Client.
type RedisPinger interface {
	Ping(ctx context.Context) *redis.StatusCmd
}

// StorePinger is satisfied by the D1 profile store.
type StorePinger interface {
	Ping(ctx context.Context) error
}

// PoolStatsFunc reports acquired and maximum pool connections.
type PoolStatsFunc func() (acquired, max int32)

const (
	dbPingAttempts     = 3
	poolDegradedRatio  = 0.8
	componentCheckWait = 3 * time.Second
)

type HealthService struct {
	db        DBPinger
	redis     RedisPinger
	d1        StorePinger
	poolStats PoolStatsFunc
	version   string
	startTime time.Time
	retryWait time.Duration
	log       *zap.SugaredLogger
}

// NewHealthService creates the health checker. redis and d1 may be nil when
// the component is not configured.
func NewHealthService(db DBPinger, redisClient RedisPinger, d1 StorePinger, version string) *HealthService {
	return &HealthService{
		db:        db,
		redis:     redisClient,
		d1:        d1,
		version:   version,
		startTime: time.Now(),
		retryWait: 200 * time.Millisecond,
		log:       logger.GetLogger(),
	}
}

// SetPoolStats enables the connection pool saturation check.
func (h *HealthService) SetPoolStats(fn PoolStatsFunc) {
	h.poolStats = fn
}

// CheckHealth reports every component. Postgres is required; Redis and D1
// only degrade the service.
func (h *HealthService) CheckHealth(ctx context.Context) types.HealthCheck {
	components := map[string]types.HealthComponent{
		"database": h.checkDatabase(ctx),
		"redis":    h.checkRedis(ctx),
		"d1":       h.checkD1(ctx),
	}

	overallStatus := types.HealthStatusUp
	for name, comp := range components {
		switch {
		case name == "database" && comp.Status == types.HealthStatusDown:
			overallStatus = types.HealthStatusDown
		case comp.Status == types.HealthStatusDown || comp.Status == types.HealthStatusDegraded:
			if overallStatus != types.HealthStatusDown {
				overallStatus = types.HealthStatusDegraded
			}
		}
	}

	return types.HealthCheck{
		Status:     overallStatus,
		Components: components,
		Version:    h.version,
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
		Uptime:     time.Since(h.startTime).Round(time.Second).String(),
	}
}

// Ready reports whether the primary store answers.
func (h *HealthService) Ready(ctx context.Context) bool {
	return h.checkDatabase(ctx).Status != types.HealthStatusDown
}

func (h *HealthService) checkDatabase(ctx context.Context) types.HealthComponent {
	start := time.Now()
	var err error
retry:
	for attempt := 1; attempt <= dbPingAttempts; attempt++ {
		pingCtx, cancel := context.WithTimeout(ctx, componentCheckWait)
		err = h.db.Ping(pingCtx)
		cancel()
		if err == nil {
			break
		}
		h.log.Warnw("Database ping failed", "attempt", attempt, "error", err)
		if attempt < dbPingAttempts {
			select {
			case <-ctx.Done():
				break retry
			case <-time.After(h.retryWait):
			}
		}
	}
	if err != nil {
		h.log.Errorw("Database health check failed", "error", err)
		return types.HealthComponent{
			Status:  types.HealthStatusDown,
			Details: "Database connection failed after multiple attempts",
		}
	}
	latency := time.Since(start).Milliseconds()

	if h.poolStats != nil {
		acquired, max := h.poolStats()
		if max > 0 && float64(acquired)/float64(max) > poolDegradedRatio {
			return types.HealthComponent{
				Status:    types.HealthStatusDegraded,
				Details:   "Connection pool near capacity",
				LatencyMs: latency,
			}
		}
	}

	return types.HealthComponent{Status: types.HealthStatusUp, LatencyMs: latency}
}

func (h *HealthService) checkRedis(ctx context.Context) types.HealthComponent {
	if h.redis == nil {
		return types.HealthComponent{Status: types.HealthStatusDisabled}
	}
	start := time.Now()
	if err := h.redis.Ping(ctx).Err(); err != nil {
		h.log.Errorw("Redis health check failed", "error", err)
		return types.HealthComponent{
			Status:  types.HealthStatusDown,
			Details: "Redis connection failed",
		}
	}
	return types.HealthComponent{Status: types.HealthStatusUp, LatencyMs: time.Since(start).Milliseconds()}
}

func (h *HealthService) checkD1(ctx context.Context) types.HealthComponent {
	if h.d1 == nil {
		return types.HealthComponent{Status: types.HealthStatusDisabled}
	}
	start := time.Now()
	pingCtx, cancel := context.WithTimeout(ctx, componentCheckWait)
	defer cancel()
	if err := h.d1.Ping(pingCtx); err != nil {
		h.log.Warnw("D1 health check failed", "error", err)
		return types.HealthComponent{
			Status:  types.HealthStatusDown,
			Details: "D1 database unreachable, serving from primary store",
		}
	}
	return types.HealthComponent{Status: types.HealthStatusUp, LatencyMs: time.Since(start).Milliseconds()}
}
