package middleware

import (
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RateLimiter is a fixed-window counter kept in Redis so every server
// instance shares the same budget. Requests are keyed by user when the auth
// middleware ran first, otherwise by remote address.
type RateLimiter struct {
	redis  *redis.Client
	scope  string
	limit  int64
	window time.Duration
}

func NewRateLimiter(redisClient *redis.Client, scope string, limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		redis:  redisClient,
		scope:  scope,
		limit:  int64(limit),
		window: window,
	}
}

func (rl *RateLimiter) key(r *http.Request) string {
	if id := GetUserID(r.Context()); id != uuid.Nil {
		return fmt.Sprintf("ratelimit:%s:user:%s", rl.scope, id)
	}
	return fmt.Sprintf("ratelimit:%s:ip:%s", rl.scope, r.RemoteAddr)
}

func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		key := rl.key(r)

		pipe := rl.redis.TxPipeline()
		incr := pipe.Incr(ctx, key)
		ttlCmd := pipe.TTL(ctx, key)
		if _, err := pipe.Exec(ctx); err != nil {
			// Fail open: losing Redis must not take the API down with it.
			log.Printf("rate limiter %s: %v", rl.scope, err)
			next.ServeHTTP(w, r)
			return
		}
		count, ttl := incr.Val(), ttlCmd.Val()

		// A new window, or a counter whose expiry was lost, gets one now.
		if ttl < 0 {
			if err := rl.redis.Expire(ctx, key, rl.window).Err(); err != nil {
				log.Printf("rate limiter %s: set expiry: %v", rl.scope, err)
			}
			ttl = rl.window
		}

		if count > rl.limit {
			w.Header().Set("Retry-After", fmt.Sprintf("%d", int(ttl.Seconds())+1))
			writeError(w, http.StatusTooManyRequests, "RATE_LIMITED", "Too many requests. Please try again later.", r)
			return
		}

		next.ServeHTTP(w, r)
	})
}
