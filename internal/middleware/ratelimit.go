package middleware

import (
	"encoding/json"
	"net"
	"net/http"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"
)

// RateLimiter hands out one token bucket per client IP. Buckets for clients
// that go quiet expire after idle.
type RateLimiter struct {
	mu       sync.Mutex
	limiters *gocache.Cache
	rps      rate.Limit
	burst    int
	idle     time.Duration
}

func NewRateLimiter(rps float64, burst int, idle time.Duration) *RateLimiter {
	if idle <= 0 {
		idle = 30 * time.Minute
	}
	return &RateLimiter{
		limiters: gocache.New(idle, 5*time.Minute),
		rps:      rate.Limit(rps),
		burst:    burst,
		idle:     idle,
	}
}

func (rl *RateLimiter) limiterFor(ip string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if v, ok := rl.limiters.Get(ip); ok {
		lim := v.(*rate.Limiter)
		// Refresh the idle deadline.
		rl.limiters.Set(ip, lim, rl.idle)
		return lim
	}
	lim := rate.NewLimiter(rl.rps, rl.burst)
	rl.limiters.Set(ip, lim, rl.idle)
	return lim
}

// Handler rejects requests over the per-IP rate with 429.
func (rl *RateLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.limiterFor(clientIP(r)).Allow() {
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			json.NewEncoder(w).Encode(map[string]string{"message": "Too many requests."})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// clientIP returns the host part of RemoteAddr. That is the socket peer
// unless the router trusts proxy headers and ran RealIP first.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
