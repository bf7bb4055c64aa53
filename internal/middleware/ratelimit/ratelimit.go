// Package ratelimit limits mutating requests per client IP over a one-minute window.
// Password attempts draw from a separate, smaller budget.
package ratelimit

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"
)

const (
	window  = time.Minute
	idleTTL = 10 * time.Minute
)

// Config holds rate limiter configuration
type Config struct {
	RequestsPerMinute int
	LoginPerMinute    int
	// LoginPaths are the POST endpoints that check the password.
	LoginPaths      []string
	CleanupInterval time.Duration
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		RequestsPerMinute: 60,
		LoginPerMinute:    10,
		LoginPaths:        []string{"/login", "/api/auth"},
		CleanupInterval:   5 * time.Minute,
	}
}

type bucket struct {
	opened time.Time
	seen   time.Time
	hits   int
}

// Limiter counts requests per key in fixed windows.
type Limiter struct {
	mu       sync.Mutex
	buckets  map[string]*bucket
	now      func() time.Time
	rejected atomic.Int64

	writes     int
	logins     int
	loginPaths map[string]bool

	stop     chan struct{}
	stopOnce sync.Once
}

// NewLimiter creates a new rate limiter and starts its cleanup goroutine. Call Stop
// to release it.
func NewLimiter(cfg Config) *Limiter {
	def := DefaultConfig()
	if cfg.RequestsPerMinute <= 0 {
		cfg.RequestsPerMinute = def.RequestsPerMinute
	}
	if cfg.LoginPerMinute <= 0 {
		cfg.LoginPerMinute = def.LoginPerMinute
	}
	if cfg.LoginPaths == nil {
		cfg.LoginPaths = def.LoginPaths
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = def.CleanupInterval
	}

	rl := &Limiter{
		buckets:    make(map[string]*bucket),
		now:        time.Now,
		writes:     cfg.RequestsPerMinute,
		logins:     cfg.LoginPerMinute,
		loginPaths: make(map[string]bool, len(cfg.LoginPaths)),
		stop:       make(chan struct{}),
	}
	for _, p := range cfg.LoginPaths {
		rl.loginPaths[p] = true
	}
	go rl.sweep(cfg.CleanupInterval)
	return rl
}

// take counts a hit against key and reports whether it fits within limit. When it
// does not, wait is the time left until the window reopens.
func (rl *Limiter) take(key string, limit int) (ok bool, wait time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	b := rl.buckets[key]
	if b == nil || now.Sub(b.opened) >= window {
		b = &bucket{opened: now}
		rl.buckets[key] = b
	}
	b.seen = now
	b.hits++
	if b.hits <= limit {
		return true, 0
	}
	rl.rejected.Add(1)
	return false, b.opened.Add(window).Sub(now)
}

func (rl *Limiter) sweep(every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			rl.forgetIdle()
		case <-rl.stop:
			return
		}
	}
}

func (rl *Limiter) forgetIdle() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := rl.now().Add(-idleTTL)
	for k, b := range rl.buckets {
		if b.seen.Before(cutoff) {
			delete(rl.buckets, k)
		}
	}
}

// ActiveClients returns how many buckets are tracked. A client that both writes and
// logs in counts twice.
func (rl *Limiter) ActiveClients() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.buckets)
}

// Rejected returns how many requests were refused.
func (rl *Limiter) Rejected() int64 {
	return rl.rejected.Load()
}

// Stop ends the cleanup goroutine. It is safe to call more than once.
func (rl *Limiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stop) })
}

// Middleware limits POST, PUT, PATCH and DELETE requests. Reads are never limited.
// POSTs to a login path draw from the login budget instead of the write budget.
func (rl *Limiter) Middleware(extractIP func(*http.Request) string, onLimit func(http.ResponseWriter, *http.Request)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !isMutating(r.Method) {
				next.ServeHTTP(w, r)
				return
			}

			ip := extractIP(r)
			key, limit := "w:"+ip, rl.writes
			if r.Method == http.MethodPost && rl.loginPaths[r.URL.Path] {
				key, limit = "l:"+ip, rl.logins
			}
			ok, wait := rl.take(key, limit)
			if ok {
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
			if onLimit != nil {
				onLimit(w, r)
				return
			}
			http.Error(w, "Rate limit exceeded. Please try again later.", http.StatusTooManyRequests)
		})
	}
}

func isMutating(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}
