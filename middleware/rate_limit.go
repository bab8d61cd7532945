package middleware

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/pkg/errors"

	"bastaku-campaign-api/logger"
	"bastaku-campaign-api/utils"
)

type RateLimiter struct {
	client *redis.Client
	now    func() time.Time
}

type RateLimitConfig struct {
	Requests int
	Window   time.Duration
	Message  string
}

var rateLimits = map[string]RateLimitConfig{
	"/api/login": {
		Requests: 5,
		Window:   15 * time.Minute,
		Message:  "Too many login attempts. Please try again in 15 minutes.",
	},
	"/api/register": {
		Requests: 5,
		Window:   time.Hour,
		Message:  "Too many registration attempts. Please try again later.",
	},
	"/api/campaigns/start": {
		Requests: 10,
		Window:   time.Hour,
		Message:  "Too many campaigns started. Please wait before starting another.",
	},
	"default": {
		Requests: 120,
		Window:   time.Minute,
		Message:  "Rate limit exceeded. Please slow down your requests.",
	},
}

var joinLimit = RateLimitConfig{
	Requests: 20,
	Window:   5 * time.Minute,
	Message:  "Too many campaign changes. Please wait a few minutes.",
}

// checkScript counts requests in the current window and records this one
// when it fits.
var checkScript = redis.NewScript(`
	local key = KEYS[1]
	local window_start = tonumber(ARGV[1])
	local limit = tonumber(ARGV[2])
	local now = tonumber(ARGV[3])
	local ttl = tonumber(ARGV[4])
	local member = ARGV[5]

	redis.call('ZREMRANGEBYSCORE', key, 0, window_start - 1)
	local current = redis.call('ZCARD', key)
	if current < limit then
		redis.call('ZADD', key, now, member)
		redis.call('EXPIRE', key, ttl)
		return {1, limit - current - 1}
	end
	return {0, 0}
`)

func NewRateLimiter(client *redis.Client) *RateLimiter {
	return &RateLimiter{client: client, now: time.Now}
}

// RateLimitMiddleware throttles requests per client and endpoint. Redis
// failures let the request through.
func (rl *RateLimiter) RateLimitMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			config := configForPath(r.URL.Path)
			key := rateLimitKey(r)

			allowed, remaining, resetAt, err := rl.check(r.Context(), key, config)
			if err != nil {
				logger.Get().Warnw("rate limit check failed", "key", key, "error", err)
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(config.Requests))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(resetAt.Unix(), 10))

			if !allowed {
				logger.Get().Infow("rate limit exceeded", "key", key, "path", r.URL.Path)
				w.Header().Set("Retry-After", strconv.Itoa(int(resetAt.Sub(rl.now()).Seconds())+1))
				utils.SendErrorResponse(w, http.StatusTooManyRequests, config.Message)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func configForPath(path string) RateLimitConfig {
	path = strings.TrimSuffix(path, "/")
	if config, ok := rateLimits[path]; ok {
		return config
	}
	if strings.HasPrefix(path, "/api/campaigns/") &&
		(strings.HasSuffix(path, "/join") || strings.HasSuffix(path, "/cancel")) {
		return joinLimit
	}
	return rateLimits["default"]
}

// ipKeyedPaths are always limited per client IP. A caller could otherwise
// mint a fresh bucket per attempt by sending an arbitrary bearer token.
var ipKeyedPaths = map[string]bool{
	"/api/login":    true,
	"/api/register": true,
}

// rateLimitKey identifies the caller by client IP, narrowed by the bearer
// token when one is sent to an endpoint outside ipKeyedPaths. The token is
// not validated here, so it only splits the IP's traffic and never escapes it.
func rateLimitKey(r *http.Request) string {
	path := strings.TrimSuffix(r.URL.Path, "/")
	ip := clientIP(r)
	if token, ok := bearerToken(r); ok && !ipKeyedPaths[path] {
		sum := sha256.Sum256([]byte(token))
		return "rate_limit:user:" + ip + ":" + hex.EncodeToString(sum[:8]) + ":" + path
	}
	return "rate_limit:ip:" + ip + ":" + path
}

func clientIP(r *http.Request) string {
	if ip := r.Header.Get("X-Forwarded-For"); ip != "" {
		return strings.TrimSpace(strings.Split(ip, ",")[0])
	}
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}

	ip := r.RemoteAddr
	if idx := strings.LastIndex(ip, ":"); idx != -1 {
		ip = ip[:idx]
	}
	return strings.Trim(ip, "[]")
}

func (rl *RateLimiter) check(ctx context.Context, key string, config RateLimitConfig) (bool, int, time.Time, error) {
	now := rl.now()
	windowStart := now.Truncate(config.Window)
	windowEnd := windowStart.Add(config.Window)

	result, err := checkScript.Run(ctx, rl.client, []string{key},
		windowStart.UnixMilli(), config.Requests, now.UnixMilli(), int(config.Window.Seconds())+1,
		strconv.FormatInt(now.UnixNano(), 10)).Result()
	if err != nil {
		return false, 0, time.Time{}, errors.Wrap(err, "rate limit script failed")
	}

	values, ok := result.([]interface{})
	if !ok || len(values) != 2 {
		return false, 0, time.Time{}, errors.New("unexpected rate limit result")
	}
	allowed, ok1 := values[0].(int64)
	remaining, ok2 := values[1].(int64)
	if !ok1 || !ok2 {
		return false, 0, time.Time{}, errors.New("unexpected rate limit result")
	}

	return allowed == 1, int(remaining), windowEnd, nil
}
