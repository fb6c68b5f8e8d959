// AngelaMos | 2026
// handler.go

package admin

import (
	"context"
	"database/sql"
	"net/http"
	"runtime"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"

	"github.com/carterperez-dev/leadboard/internal/core"
	"github.com/carterperez-dev/leadboard/internal/middleware"
	"github.com/carterperez-dev/leadboard/internal/policy"
)

type Pinger func(ctx context.Context) error

type Handler struct {
	dbStats           func() sql.DBStats
	redisStats        func() *redis.PoolStats
	dbPing            Pinger
	redisPing         Pinger
	mongoPing         Pinger
	revocationBackend string
	revocationSize    func() int
}

type HandlerConfig struct {
	DBStats           func() sql.DBStats
	RedisStats        func() *redis.PoolStats
	DBPing            Pinger
	RedisPing         Pinger
	MongoPing         Pinger
	RevocationBackend string
	// RevocationSize is set only for the in-process registry.
	RevocationSize func() int
}

func NewHandler(cfg HandlerConfig) *Handler {
	return &Handler{
		dbStats:           cfg.DBStats,
		redisStats:        cfg.RedisStats,
		dbPing:            cfg.DBPing,
		redisPing:         cfg.RedisPing,
		mongoPing:         cfg.MongoPing,
		revocationBackend: cfg.RevocationBackend,
		revocationSize:    cfg.RevocationSize,
	}
}

// RegisterRoutes mounts the stats routes on an already authenticated admin
// router.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/stats", func(r chi.Router) {
		r.Use(middleware.RequirePolicy(policy.ActionViewStats))

		r.Get("/", h.GetSystemStats)
		r.Get("/db", h.GetDatabaseStats)
		r.Get("/redis", h.GetRedisStats)
		r.Get("/runtime", h.GetRuntimeStats)
	})
}

func (h *Handler) GetSystemStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	response := SystemStatsResponse{
		Database: DatabaseStatus{
			Healthy: healthy(ctx, h.dbPing),
			Stats:   h.getDBStats(),
		},
		Redis: RedisStatus{
			Healthy: healthy(ctx, h.redisPing),
			Stats:   h.getRedisStats(),
		},
		Mongo: MongoStatus{
			Healthy: healthy(ctx, h.mongoPing),
		},
		Revocation: RevocationStatus{
			Backend: h.revocationBackend,
		},
		Runtime: readRuntimeStats(),
	}

	if h.revocationSize != nil {
		size := h.revocationSize()
		response.Revocation.Entries = &size
	}

	core.OK(w, response)
}

func (h *Handler) GetDatabaseStats(w http.ResponseWriter, _ *http.Request) {
	core.OK(w, h.getDBStats())
}

func (h *Handler) GetRedisStats(w http.ResponseWriter, _ *http.Request) {
	core.OK(w, h.getRedisStats())
}

func (h *Handler) GetRuntimeStats(w http.ResponseWriter, _ *http.Request) {
	core.OK(w, readRuntimeStats())
}

// healthy treats an unconfigured dependency as healthy.
func healthy(ctx context.Context, ping Pinger) bool {
	if ping == nil {
		return true
	}
	return ping(ctx) == nil
}

func readRuntimeStats() RuntimeStats {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	return RuntimeStats{
		GoVersion:    runtime.Version(),
		NumGoroutine: runtime.NumGoroutine(),
		NumCPU:       runtime.NumCPU(),
		MemAlloc:     memStats.Alloc,
		MemSys:       memStats.Sys,
		NumGC:        memStats.NumGC,
	}
}

func (h *Handler) getDBStats() *DBPoolStats {
	if h.dbStats == nil {
		return nil
	}

	stats := h.dbStats()
	return &DBPoolStats{
		MaxOpenConnections: stats.MaxOpenConnections,
		OpenConnections:    stats.OpenConnections,
		InUse:              stats.InUse,
		Idle:               stats.Idle,
		WaitCount:          stats.WaitCount,
		WaitDuration:       stats.WaitDuration.String(),
		MaxIdleClosed:      stats.MaxIdleClosed,
		MaxIdleTimeClosed:  stats.MaxIdleTimeClosed,
		MaxLifetimeClosed:  stats.MaxLifetimeClosed,
	}
}

func (h *Handler) getRedisStats() *RedisPoolStats {
	if h.redisStats == nil {
		return nil
	}

	stats := h.redisStats()
	if stats == nil {
		return nil
	}
	return &RedisPoolStats{
		Hits:       stats.Hits,
		Misses:     stats.Misses,
		Timeouts:   stats.Timeouts,
		TotalConns: stats.TotalConns,
		IdleConns:  stats.IdleConns,
		StaleConns: stats.StaleConns,
	}
}
