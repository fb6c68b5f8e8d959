// AngelaMos | 2026
// ratelimit.go

package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	redis_rate "github.com/go-redis/redis_rate/v10"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"github.com/carterperez-dev/leadboard/internal/core"
)

type RateLimitConfig struct {
	// Name labels the limiter in logs, e.g. "login" or "reports".
	Name       string
	Limit      redis_rate.Limit
	KeyFunc    func(*http.Request) string
	FailOpen   bool
	BypassFunc func(*http.Request) bool
	OnLimited  func(http.ResponseWriter, *http.Request, *redis_rate.Result)
}

// RateLimiter counts requests in redis so every instance shares one budget
// per key. While redis is unreachable it counts in a per-process token
// bucket instead.
type RateLimiter struct {
	limiter  *redis_rate.Limiter
	fallback *localLimiter
	degraded atomic.Bool
	config   RateLimitConfig
}

func NewRateLimiter(rdb redis.UniversalClient, cfg RateLimitConfig) *RateLimiter {
	if cfg.KeyFunc == nil {
		cfg.KeyFunc = KeyByIP
	}
	if cfg.Name == "" {
		cfg.Name = "global"
	}

	return &RateLimiter{
		limiter:  redis_rate.NewLimiter(rdb),
		fallback: newLocalLimiter(time.Now),
		config:   cfg,
	}
}

func (rl *RateLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if rl.config.BypassFunc != nil && rl.config.BypassFunc(r) {
			next.ServeHTTP(w, r)
			return
		}

		key := rl.config.KeyFunc(r)
		res, err := rl.allow(r.Context(), key)
		if err != nil {
			if rl.config.FailOpen {
				slog.Warn("rate limiter error, failing open",
					"limiter", rl.config.Name,
					"error", err,
				)
				next.ServeHTTP(w, r)
				return
			}
			core.JSONError(w, core.DependencyError(err))
			return
		}

		setRateLimitHeaders(w, res, rl.config.Limit)

		if res.Allowed == 0 {
			if rl.config.OnLimited != nil {
				rl.config.OnLimited(w, r, res)
				return
			}
			writeRateLimitExceeded(w, res)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// Degraded reports whether the last decision came from the local bucket.
func (rl *RateLimiter) Degraded() bool {
	return rl.degraded.Load()
}

func (rl *RateLimiter) allow(
	ctx context.Context,
	key string,
) (*redis_rate.Result, error) {
	res, err := rl.limiter.Allow(ctx, key, rl.config.Limit)
	if err != nil {
		if !rl.degraded.Swap(true) {
			slog.Warn("redis rate limiting unavailable, counting locally",
				"limiter", rl.config.Name,
				"error", err,
			)
		}
		return rl.fallback.allow(key, rl.config.Limit)
	}

	if rl.degraded.Swap(false) {
		slog.Info("redis rate limiting restored", "limiter", rl.config.Name)
	}

	return res, nil
}

func KeyByIP(r *http.Request) string {
	return "ratelimit:ip:" + clientIP(r)
}

// clientIP trusts the last X-Forwarded-For hop, which is the one appended by
// the proxy in front of the API.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		hops := strings.Split(xff, ",")
		return strings.TrimSpace(hops[len(hops)-1])
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}

	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

func KeyByUser(r *http.Request) string {
	if email := GetUserEmail(r.Context()); email != "" {
		return "ratelimit:user:" + email
	}
	return KeyByIP(r)
}

// KeyByIPScoped keeps a separate per-IP budget for one group of routes.
func KeyByIPScoped(scope string) func(*http.Request) string {
	return func(r *http.Request) string {
		return fmt.Sprintf("%s:scope:%s", KeyByIP(r), scope)
	}
}

func KeyByUserAndEndpoint(r *http.Request) string {
	return fmt.Sprintf("%s:endpoint:%s", KeyByUser(r), normalizeEndpoint(r.URL.Path))
}

func normalizeEndpoint(path string) string {
	parts := strings.Split(strings.Trim(path, "/"), "/")

	for i, part := range parts {
		if uuid.Validate(part) == nil || isNumeric(part) {
			parts[i] = "{id}"
		}
	}

	return "/" + strings.Join(parts, "/")
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	_, err := strconv.ParseUint(s, 10, 64)
	return err == nil
}

func setRateLimitHeaders(
	w http.ResponseWriter,
	res *redis_rate.Result,
	limit redis_rate.Limit,
) {
	h := w.Header()

	h.Set("X-RateLimit-Limit", strconv.Itoa(limit.Rate))
	h.Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
	h.Set("X-RateLimit-Reset", strconv.FormatInt(
		time.Now().Add(res.ResetAfter).Unix(), 10))

	h.Set("RateLimit-Policy",
		fmt.Sprintf(`%d;w=%d`, limit.Rate, int(limit.Period.Seconds())))
	h.Set("RateLimit",
		fmt.Sprintf(`%d;t=%d`, res.Remaining, int(res.ResetAfter.Seconds())))
}

func writeRateLimitExceeded(w http.ResponseWriter, res *redis_rate.Result) {
	retryAfter := max(int(res.RetryAfter.Seconds()), 1)

	w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
	core.JSONError(w, core.RateLimitedError(retryAfter))
}

const (
	sweepInterval = 5 * time.Minute
	entryTTL      = 10 * time.Minute
)

type limiterEntry struct {
	limiter    *rate.Limiter
	lastAccess atomic.Int64
}

// localLimiter sweeps idle buckets inline, at most once per sweepInterval,
// so it owns no goroutine.
type localLimiter struct {
	limiters  sync.Map
	lastSweep atomic.Int64
	now       func() time.Time
}

func newLocalLimiter(now func() time.Time) *localLimiter {
	l := &localLimiter{now: now}
	l.lastSweep.Store(now().Unix())
	return l
}

func (l *localLimiter) sweep(now int64) {
	last := l.lastSweep.Load()
	if now-last < int64(sweepInterval.Seconds()) ||
		!l.lastSweep.CompareAndSwap(last, now) {
		return
	}

	cutoff := now - int64(entryTTL.Seconds())
	l.limiters.Range(func(key, value any) bool {
		if entry, ok := value.(*limiterEntry); ok && entry.lastAccess.Load() < cutoff {
			l.limiters.Delete(key)
		}
		return true
	})
}

func (l *localLimiter) entry(key string, limit redis_rate.Limit, now int64) *limiterEntry {
	if existing, ok := l.limiters.Load(key); ok {
		return existing.(*limiterEntry) //nolint:forcetypeassert // only limiterEntry is stored
	}

	fresh := &limiterEntry{
		limiter: rate.NewLimiter(
			rate.Limit(float64(limit.Rate)/limit.Period.Seconds()),
			limit.Burst,
		),
	}
	fresh.lastAccess.Store(now)

	actual, _ := l.limiters.LoadOrStore(key, fresh)
	return actual.(*limiterEntry) //nolint:forcetypeassert // only limiterEntry is stored
}

func (l *localLimiter) allow(
	key string,
	limit redis_rate.Limit,
) (*redis_rate.Result, error) {
	if limit.Rate <= 0 || limit.Period <= 0 {
		return nil, fmt.Errorf("invalid rate limit %d per %s", limit.Rate, limit.Period)
	}

	now := l.now().Unix()
	l.sweep(now)

	e := l.entry(key, limit, now)
	e.lastAccess.Store(now)

	interval := time.Duration(float64(limit.Period) / float64(limit.Rate))

	res := &redis_rate.Result{
		Limit:      limit,
		Remaining:  max(int(e.limiter.Tokens()), 0),
		RetryAfter: -1,
		ResetAfter: interval,
	}

	if e.limiter.Allow() {
		res.Allowed = 1
		res.Remaining = max(int(e.limiter.Tokens()), 0)
	} else {
		res.RetryAfter = interval
	}

	return res, nil
}

func PerMinute(rate, burst int) redis_rate.Limit {
	return PerWindow(rate, burst, time.Minute)
}

// PerWindow falls back to one minute when window is not positive.
func PerWindow(rate, burst int, window time.Duration) redis_rate.Limit {
	if window <= 0 {
		window = time.Minute
	}
	return redis_rate.Limit{
		Rate:   rate,
		Burst:  burst,
		Period: window,
	}
}

