package server

import (
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/despachantemarcelino/hookd/internal/config"
	"github.com/despachantemarcelino/hookd/internal/metrics"
	"github.com/despachantemarcelino/hookd/internal/requestctx"
	"github.com/despachantemarcelino/hookd/internal/server/handlers"
	"github.com/despachantemarcelino/hookd/internal/webhooks"
)

// RateLimiter implements token bucket algorithm for rate limiting.
type RateLimiter struct {
	mu      sync.RWMutex
	buckets map[string]*bucket
	max     int
	window  time.Duration
	cleanup *time.Ticker
	wg      sync.WaitGroup
	stopCh  chan struct{}
	once    sync.Once
}

type bucket struct {
	tokens     int
	lastRefill time.Time
	mu         sync.Mutex
}

// NewRateLimiter creates a rate limiter allowing cfg.Max requests per
// cfg.Window for each key.
func NewRateLimiter(cfg config.RateLimitConfig) *RateLimiter {
	rl := &RateLimiter{
		buckets: make(map[string]*bucket),
		max:     cfg.Max,
		window:  cfg.Window,
		cleanup: time.NewTicker(cfg.Window * 2),
		stopCh:  make(chan struct{}),
	}

	rl.wg.Add(1)
	go func() {
		defer rl.wg.Done()
		rl.cleanupLoop()
	}()

	return rl
}

// Allow checks if a request from the given key is allowed.
func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.RLock()
	b, exists := rl.buckets[key]
	rl.mu.RUnlock()

	if !exists {
		rl.mu.Lock()
		// Double-check after acquiring write lock
		b, exists = rl.buckets[key]
		if !exists {
			b = &bucket{
				tokens:     rl.max,
				lastRefill: time.Now(),
			}
			rl.buckets[key] = b
		}
		rl.mu.Unlock()
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()
	if now.Sub(b.lastRefill) >= rl.window {
		b.tokens = rl.max
		b.lastRefill = now
	}

	if b.tokens > 0 {
		b.tokens--
		return true
	}

	return false
}

func (rl *RateLimiter) cleanupLoop() {
	for {
		select {
		case <-rl.cleanup.C:
			rl.mu.Lock()
			now := time.Now()
			for key, b := range rl.buckets {
				b.mu.Lock()
				if now.Sub(b.lastRefill) > rl.window*2 {
					delete(rl.buckets, key)
				}
				b.mu.Unlock()
			}
			rl.mu.Unlock()
		case <-rl.stopCh:
			return
		}
	}
}

// Stop stops the cleanup goroutine.
func (rl *RateLimiter) Stop() {
	rl.once.Do(func() {
		close(rl.stopCh)
		rl.cleanup.Stop()
	})
	rl.wg.Wait()
}

// Middleware rate limits by client IP. Preflight requests are never limited.
// cors, when set, decorates rejections so browser senders can read them.
func (rl *RateLimiter) Middleware(next http.Handler, cors *webhooks.CORSPolicy) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}

		ip := requestctx.ClientIP(r.Context())
		if ip == "" {
			ip = requestctx.ResolveClientIP(r, nil)
		}

		if !rl.Allow(ip) {
			log.Warn().
				Str("request_id", requestctx.RequestID(r.Context())).
				Str("remote_addr", ip).
				Msg("Webhook rate limit exceeded")
			metrics.RecordWebhook("", metrics.OutcomeRateLimited)
			if cors != nil {
				cors.Apply(w, r)
			}
			handlers.JSON(w, http.StatusTooManyRequests, handlers.ErrorResponse{
				Error:   webhooks.ErrorRateLimited,
				Message: "Rate limit exceeded. Please try again later.",
			})
			return
		}

		next.ServeHTTP(w, r)
	})
}
