package api

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// TOIQueryCost is the number of tokens a POST /api/toi takes from the
// client's bucket. Every other request takes one.
const TOIQueryCost = 4

// RateLimitConfig configures the per-client token buckets
type RateLimitConfig struct {
	RequestsPerSecond float64       // Refill rate per client
	Burst             int           // Bucket size
	CleanupInterval   time.Duration // Idle buckets are forgotten after twice this
}

// DefaultRateLimitConfig allows a client about a dozen TOI queries per
// second on top of its reads.
var DefaultRateLimitConfig = RateLimitConfig{
	RequestsPerSecond: 50,
	Burst:             100,
	CleanupInterval:   5 * time.Minute,
}

type clientBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// IPRateLimiter keeps one token bucket per client address
type IPRateLimiter struct {
	cfg RateLimitConfig

	mu      sync.Mutex
	buckets map[string]*clientBucket

	done     chan struct{}
	stopOnce sync.Once

	allowed  atomic.Uint64
	rejected atomic.Uint64
}

// NewIPRateLimiter starts a limiter and its idle-bucket sweeper
func NewIPRateLimiter(cfg RateLimitConfig) *IPRateLimiter {
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = DefaultRateLimitConfig.CleanupInterval
	}
	rl := &IPRateLimiter{
		cfg:     cfg,
		buckets: make(map[string]*clientBucket),
		done:    make(chan struct{}),
	}
	go rl.sweep()
	return rl
}

// Stop ends the sweeper. It is safe to call more than once.
func (rl *IPRateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.done) })
}

func (rl *IPRateLimiter) sweep() {
	ticker := time.NewTicker(rl.cfg.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rl.done:
			return
		case now := <-ticker.C:
			rl.cleanup(now.Add(-2 * rl.cfg.CleanupInterval))
		}
	}
}

// cleanup forgets buckets idle since cutoff
func (rl *IPRateLimiter) cleanup(cutoff time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	for ip, b := range rl.buckets {
		if b.lastSeen.Before(cutoff) {
			delete(rl.buckets, ip)
		}
	}
}

// Allow takes one token from ip's bucket
func (rl *IPRateLimiter) Allow(ip string) bool {
	return rl.AllowN(ip, 1)
}

// AllowN takes cost tokens from ip's bucket. Costs above the burst are
// clamped so that a full bucket always admits the request.
func (rl *IPRateLimiter) AllowN(ip string, cost int) bool {
	now := time.Now()

	rl.mu.Lock()
	b, ok := rl.buckets[ip]
	if !ok {
		b = &clientBucket{limiter: rate.NewLimiter(rate.Limit(rl.cfg.RequestsPerSecond), rl.cfg.Burst)}
		rl.buckets[ip] = b
	}
	b.lastSeen = now
	rl.mu.Unlock()

	if b.limiter.AllowN(now, min(cost, rl.cfg.Burst)) {
		rl.allowed.Add(1)
		return true
	}
	rl.rejected.Add(1)
	return false
}

// Middleware answers 429 once a client has spent its bucket
func (rl *IPRateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.AllowN(GetClientIP(r), requestCost(r)) {
			RecordConnectionRejected("rate_limit")
			w.Header().Set("Retry-After", "1")
			writeError(w, "Too Many Requests", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func requestCost(r *http.Request) int {
	if r.Method == http.MethodPost && r.URL.Path == "/api/toi" {
		return TOIQueryCost
	}
	return 1
}

// GetStats returns allowed and rejected request counts
func (rl *IPRateLimiter) GetStats() map[string]uint64 {
	return map[string]uint64{
		"allowed":  rl.allowed.Load(),
		"rejected": rl.rejected.Load(),
	}
}

// GetClientIP returns the first X-Forwarded-For hop, then X-Real-IP, then
// the peer address. Forwarding headers are only trustworthy behind a proxy
// that sets them.
func GetClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// WebSocketRateLimiter caps concurrent stream subscribers per client
type WebSocketRateLimiter struct {
	maxPerIP int

	mu    sync.Mutex
	conns map[string]int

	rejected atomic.Uint64
}

// NewWebSocketRateLimiter creates a limiter admitting maxPerIP streams per client
func NewWebSocketRateLimiter(maxPerIP int) *WebSocketRateLimiter {
	return &WebSocketRateLimiter{maxPerIP: maxPerIP, conns: make(map[string]int)}
}

// Allow reserves a stream slot for ip if one is free
func (wrl *WebSocketRateLimiter) Allow(ip string) bool {
	wrl.mu.Lock()
	defer wrl.mu.Unlock()
	if wrl.conns[ip] >= wrl.maxPerIP {
		wrl.rejected.Add(1)
		return false
	}
	wrl.conns[ip]++
	return true
}

// Release frees a slot reserved by Allow
func (wrl *WebSocketRateLimiter) Release(ip string) {
	wrl.mu.Lock()
	defer wrl.mu.Unlock()
	switch n := wrl.conns[ip]; {
	case n > 1:
		wrl.conns[ip] = n - 1
	case n == 1:
		delete(wrl.conns, ip)
	}
}

// GetConnectionCount returns the streams ip currently holds
func (wrl *WebSocketRateLimiter) GetConnectionCount(ip string) int {
	wrl.mu.Lock()
	defer wrl.mu.Unlock()
	return wrl.conns[ip]
}

// OriginPolicy decides which browser origins may open WebSockets. Patterns
// follow go-chi/cors: a single '*' matches any run of characters, so
// "http://localhost:*" admits every local port.
type OriginPolicy struct {
	patterns []string
}

// NewOriginPolicy creates a policy from CORS-style origin patterns.
func NewOriginPolicy(origins []string) *OriginPolicy {
	return &OriginPolicy{patterns: origins}
}

// Allowed reports whether origin matches a pattern. Requests without an
// Origin header (non-browser clients) are allowed.
func (p *OriginPolicy) Allowed(origin string) bool {
	if origin == "" {
		return true
	}
	for _, pattern := range p.patterns {
		if pattern == "*" || pattern == origin {
			return true
		}
		if prefix, suffix, ok := strings.Cut(pattern, "*"); ok {
			if len(origin) >= len(prefix)+len(suffix) &&
				strings.HasPrefix(origin, prefix) && strings.HasSuffix(origin, suffix) {
				return true
			}
		}
	}
	return false
}
