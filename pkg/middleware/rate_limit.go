package middleware

import (
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	apperrors "courtbook/pkg/errors"
	"courtbook/pkg/logger"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

const ActorHeader = "X-Actor-ID"

type KeyExtractor func(r *http.Request) string

type window struct {
	count   int
	resetAt time.Time
}

// ActorRateLimiter counts requests per key in fixed windows. Keys live in a bounded
// expiring LRU, so a flood of distinct keys evicts the oldest instead of growing memory.
type ActorRateLimiter struct {
	mu      sync.Mutex
	windows *expirable.LRU[string, *window]
	limit   int
	period  time.Duration
	keyFn   KeyExtractor
	exempt  map[string]struct{}
	log     *logger.Logger
	nowFn   func() time.Time
}

func NewActorRateLimiter(limit int, period time.Duration, maxKeys int, keyFn KeyExtractor, log *logger.Logger) *ActorRateLimiter {
	if keyFn == nil {
		keyFn = DefaultActorExtractor
	}
	return &ActorRateLimiter{
		windows: expirable.NewLRU[string, *window](maxKeys, nil, period),
		limit:   limit,
		period:  period,
		keyFn:   keyFn,
		exempt:  map[string]struct{}{},
		log:     log,
		nowFn:   time.Now,
	}
}

// Exempt skips limiting for an exact request path.
func (rl *ActorRateLimiter) Exempt(path string) {
	rl.exempt[path] = struct{}{}
}

// Allow records one request for key and reports whether it fits the window, plus the
// seconds until the window resets.
func (rl *ActorRateLimiter) Allow(key string) (bool, int) {
	if key == "" {
		return true, 0
	}

	now := rl.nowFn()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	w, ok := rl.windows.Get(key)
	if !ok || !now.Before(w.resetAt) {
		rl.windows.Add(key, &window{count: 1, resetAt: now.Add(rl.period)})
		return true, 0
	}

	if w.count >= rl.limit {
		return false, int(w.resetAt.Sub(now).Seconds()) + 1
	}
	w.count++
	return true, 0
}

func (rl *ActorRateLimiter) Len() int {
	return rl.windows.Len()
}

func (rl *ActorRateLimiter) Stop() {
	rl.windows.Purge()
}

func RateLimit(limiter *ActorRateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, skip := limiter.exempt[r.URL.Path]; skip {
				next.ServeHTTP(w, r)
				return
			}

			key := limiter.keyFn(r)
			allowed, retryAfter := limiter.Allow(key)
			if !allowed {
				limiter.log.Warn("Rate limit exceeded",
					"request_id", RequestID(r.Context()),
					"key", key,
					"path", r.URL.Path,
				)
				w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
				apperrors.WriteError(w, apperrors.RateLimited("Rate limit exceeded"))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// DefaultActorExtractor keys on the trusted actor header and falls back to the client address.
func DefaultActorExtractor(r *http.Request) string {
	if actor := r.Header.Get(ActorHeader); actor != "" {
		return "actor:" + actor
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return "ip:" + host
}
