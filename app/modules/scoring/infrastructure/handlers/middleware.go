package scoringhandlers

import (
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/Black-And-White-Club/ctf-bot/pkg/observability/attr"
)

const (
	// cleanupThreshold is the minimum map size before a cleanup pass runs.
	cleanupThreshold = 500
	// maxIdleAge is the duration after which an idle entry is eligible for cleanup.
	maxIdleAge = 10 * time.Minute
)

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// KeyedRateLimiter hands out one token bucket per key and prunes stale
// entries inline.
type KeyedRateLimiter struct {
	entries map[string]*limiterEntry
	mu      sync.Mutex
	r       rate.Limit
	b       int
}

// NewKeyedRateLimiter creates a limiter allowing r events per second with burst b per key.
func NewKeyedRateLimiter(r rate.Limit, b int) *KeyedRateLimiter {
	return &KeyedRateLimiter{
		entries: make(map[string]*limiterEntry),
		r:       r,
		b:       b,
	}
}

// Allow reports whether one more event for key fits in its bucket.
func (k *KeyedRateLimiter) Allow(key string) bool {
	return k.get(key).Allow()
}

func (k *KeyedRateLimiter) get(key string) *rate.Limiter {
	k.mu.Lock()
	defer k.mu.Unlock()

	if len(k.entries) > cleanupThreshold {
		cutoff := time.Now().Add(-maxIdleAge)
		for key, e := range k.entries {
			if e.lastSeen.Before(cutoff) {
				delete(k.entries, key)
			}
		}
	}

	e, ok := k.entries[key]
	if !ok {
		e = &limiterEntry{limiter: rate.NewLimiter(k.r, k.b)}
		k.entries[key] = e
	}
	e.lastSeen = time.Now()
	return e.limiter
}

// CorrelationIDMiddleware tags every request context with a correlation id,
// reusing X-Correlation-ID when the caller sent one.
func CorrelationIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := attr.WithCorrelationID(r.Context(), r.Header.Get("X-Correlation-ID"))
		w.Header().Set("X-Correlation-ID", attr.CorrelationIDFromContext(ctx))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// CORSMiddleware sets CORS headers for the configured origins. With no
// origins configured it adds nothing.
func CORSMiddleware(allowedOrigins []string) func(http.Handler) http.Handler {
	origins := make(map[string]struct{}, len(allowedOrigins))
	for _, o := range allowedOrigins {
		origins[o] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if origin := r.Header.Get("Origin"); origin != "" {
				if _, ok := origins[origin]; ok {
					w.Header().Set("Access-Control-Allow-Origin", origin)
					w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
					w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-Correlation-ID")
				}
			}

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// checkOrigin accepts same-host websocket upgrades and any explicitly
// allowed origin.
func checkOrigin(allowedOrigins []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, o := range allowedOrigins {
			if o == "*" || strings.EqualFold(o, origin) {
				return true
			}
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		return strings.EqualFold(u.Host, r.Host)
	}
}
