package ratelimit

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"
)

const window = time.Minute

// Limiter counts requests per client in fixed one-minute windows. Only the
// configured methods are counted.
type Limiter struct {
	mu           sync.Mutex
	clients      map[string]*clientWindow
	stopCleanup  chan struct{}
	shutdownOnce sync.Once
	hits         atomic.Int64
	now          func() time.Time

	limit           int
	cleanupInterval time.Duration
	methods         map[string]bool
}

type clientWindow struct {
	start    time.Time
	requests int
}

// Config holds rate limiter configuration
type Config struct {
	RequestsPerMinute int
	CleanupInterval   time.Duration
	// Methods limits only these HTTP methods; empty limits every method.
	Methods []string
}

// DefaultConfig limits mutating requests to 60 per minute
func DefaultConfig() Config {
	return Config{
		RequestsPerMinute: 60,
		CleanupInterval:   5 * time.Minute,
		Methods:           []string{http.MethodPost, http.MethodDelete},
	}
}

// NewLimiter creates a limiter and starts its cleanup goroutine. Call Stop
// to release it.
func NewLimiter(config Config) *Limiter {
	if config.RequestsPerMinute <= 0 {
		config.RequestsPerMinute = DefaultConfig().RequestsPerMinute
	}
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = DefaultConfig().CleanupInterval
	}

	rl := &Limiter{
		clients:         make(map[string]*clientWindow),
		stopCleanup:     make(chan struct{}),
		now:             time.Now,
		limit:           config.RequestsPerMinute,
		cleanupInterval: config.CleanupInterval,
	}
	if len(config.Methods) > 0 {
		rl.methods = make(map[string]bool, len(config.Methods))
		for _, m := range config.Methods {
			rl.methods[m] = true
		}
	}
	go rl.runCleanup()
	return rl
}

// Allow records a request from clientIP and reports whether it fits in the
// client's current window.
func (rl *Limiter) Allow(clientIP string) bool {
	ok, _ := rl.take(clientIP)
	return ok
}

// take is Allow plus the time left until the client's window resets.
func (rl *Limiter) take(clientIP string) (bool, time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	cw, ok := rl.clients[clientIP]
	if !ok || now.Sub(cw.start) >= window {
		cw = &clientWindow{start: now}
		rl.clients[clientIP] = cw
	}

	cw.requests++
	return cw.requests <= rl.limit, cw.start.Add(window).Sub(now)
}

func (rl *Limiter) applies(method string) bool {
	return rl.methods == nil || rl.methods[method]
}

func (rl *Limiter) runCleanup() {
	ticker := time.NewTicker(rl.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanup()
		case <-rl.stopCleanup:
			return
		}
	}
}

// cleanup forgets clients whose window has expired.
func (rl *Limiter) cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := rl.now().Add(-window)
	for ip, cw := range rl.clients {
		if cw.start.Before(cutoff) {
			delete(rl.clients, ip)
		}
	}
}

// ActiveClients returns the number of currently tracked clients
func (rl *Limiter) ActiveClients() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.clients)
}

// Hits returns how many requests were rejected
func (rl *Limiter) Hits() int64 {
	return rl.hits.Load()
}

// Stop ends the cleanup goroutine. It is safe to call more than once.
func (rl *Limiter) Stop() {
	rl.shutdownOnce.Do(func() {
		close(rl.stopCleanup)
	})
}

// Middleware rejects requests over the limit with 429 and a Retry-After
// header. onLimit writes the body; nil falls back to a plain-text error.
func (rl *Limiter) Middleware(extractIP func(*http.Request) string, onLimit func(http.ResponseWriter, *http.Request)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !rl.applies(r.Method) {
				next.ServeHTTP(w, r)
				return
			}

			ok, reset := rl.take(extractIP(r))
			if !ok {
				rl.hits.Add(1)
				w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(reset.Seconds()))))
				if onLimit != nil {
					onLimit(w, r)
				} else {
					http.Error(w, "Rate limit exceeded. Please try again later.", http.StatusTooManyRequests)
				}
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
