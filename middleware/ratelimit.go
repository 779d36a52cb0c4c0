package middleware

import (
	"context"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/upb/mailchimp-gateway/internal/observability"
	"github.com/upb/mailchimp-gateway/utils"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Decision is the outcome of one limiter check
type Decision struct {
	Allowed bool
	// RetryAfter is how long the caller should wait. 0 means unknown.
	RetryAfter time.Duration
}

// LimiterStore decides per key whether a request may proceed
type LimiterStore interface {
	Take(ctx context.Context, key string) (Decision, error)
}

// StatsEvent is one recorded limiter decision. Route is the matched chi
// route pattern, empty for denied or unmatched requests.
type StatsEvent struct {
	Key     string
	Allowed bool
	Method  string
	Route   string
	At      time.Time
}

// StatsStore persists limiter decisions. Errors are never fatal to the request.
type StatsStore interface {
	Record(ctx context.Context, ev StatsEvent) error
}

// KeyFunc extracts the limiter key from a request
type KeyFunc func(r *http.Request) string

// RejectFunc writes the response for a denied request
type RejectFunc func(w http.ResponseWriter, r *http.Request, dec Decision)

// RateLimitOptions configures the RateLimit middleware
type RateLimitOptions struct {
	Store     LimiterStore
	Stats     StatsStore
	KeyFn     KeyFunc
	KeyHeader string
	Reject    RejectFunc
	Logger    *zap.Logger
	Metrics   *observability.Metrics
}

// DefaultKeyFunc keys by keyHeader when present, else by client IP.
// RemoteAddr is expected to be rewritten by chi's RealIP beforehand.
func DefaultKeyFunc(keyHeader string) KeyFunc {
	return func(r *http.Request) string {
		if keyHeader != "" {
			if v := strings.TrimSpace(r.Header.Get(keyHeader)); v != "" {
				return v
			}
		}

		host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
		if err == nil && host != "" {
			return host
		}
		if r.RemoteAddr != "" {
			return r.RemoteAddr
		}
		return "unknown"
	}
}

// RetryAfterSeconds rounds a wait up to whole seconds, nil when unknown
func RetryAfterSeconds(d time.Duration) *int {
	if d <= 0 {
		return nil
	}
	secs := int(math.Ceil(d.Seconds()))
	return &secs
}

func defaultReject(w http.ResponseWriter, _ *http.Request, dec Decision) {
	_ = utils.WriteTooManyRequests(w, RetryAfterSeconds(dec.RetryAfter))
}

// RateLimit guards next with the configured store. Store failures let the
// request through.
func RateLimit(opts RateLimitOptions) func(next http.Handler) http.Handler {
	if opts.KeyFn == nil {
		opts.KeyFn = DefaultKeyFunc(opts.KeyHeader)
	}
	if opts.Reject == nil {
		opts.Reject = defaultReject
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if opts.Store == nil {
				next.ServeHTTP(w, r)
				return
			}

			ctx := r.Context()
			key := opts.KeyFn(r)

			dec, err := opts.Store.Take(ctx, key)
			if err != nil {
				opts.Logger.Warn("rate limiter unavailable, allowing request",
					zap.String("key", key),
					zap.Error(err))
				dec = Decision{Allowed: true}
			}

			opts.Metrics.RecordRateLimit(dec.Allowed)

			if !dec.Allowed {
				recordStats(ctx, opts, StatsEvent{Key: key, Method: r.Method, At: time.Now()})
				if secs := RetryAfterSeconds(dec.RetryAfter); secs != nil {
					w.Header().Set("Retry-After", strconv.Itoa(*secs))
				}
				opts.Logger.Info("request throttled",
					zap.String("key", key),
					zap.String("path", r.URL.Path),
					zap.Duration("retry_after", dec.RetryAfter))
				opts.Reject(w, r, dec)
				return
			}

			next.ServeHTTP(w, r)

			recordStats(ctx, opts, StatsEvent{
				Key:     key,
				Allowed: true,
				Method:  r.Method,
				Route:   routePattern(r),
				At:      time.Now(),
			})
		})
	}
}

func recordStats(ctx context.Context, opts RateLimitOptions, ev StatsEvent) {
	if opts.Stats == nil {
		return
	}
	if err := opts.Stats.Record(ctx, ev); err != nil {
		opts.Logger.Debug("failed to record rate limit stats", zap.Error(err))
	}
}

// routePattern returns the chi pattern that served r, empty when no route
// matched. Only meaningful once the router has run.
func routePattern(r *http.Request) string {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil {
		return ""
	}
	return rctx.RoutePattern()
}

// MemoryStore is a per-key token bucket on x/time/rate. Each key may spend
// limit requests at once and regains limit tokens per window.
type MemoryStore struct {
	mu           sync.Mutex
	entries      map[string]*memoryEntry
	rps          rate.Limit
	burst        int
	idleTTL      time.Duration
	cleanupEvery time.Duration
}

type memoryEntry struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// MemoryStoreOption configures a MemoryStore
type MemoryStoreOption func(*MemoryStore)

// WithIdleTTL sets how long an unused key is kept
func WithIdleTTL(d time.Duration) MemoryStoreOption {
	return func(s *MemoryStore) { s.idleTTL = d }
}

// WithCleanupEvery sets the janitor interval
func WithCleanupEvery(d time.Duration) MemoryStoreOption {
	return func(s *MemoryStore) { s.cleanupEvery = d }
}

// NewMemoryStore creates a store allowing limit requests per window
func NewMemoryStore(limit int, window time.Duration, opts ...MemoryStoreOption) *MemoryStore {
	s := &MemoryStore{
		entries:      make(map[string]*memoryEntry),
		rps:          rate.Limit(float64(limit) / window.Seconds()),
		burst:        limit,
		idleTTL:      15 * time.Minute,
		cleanupEvery: 2 * time.Minute,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.idleTTL < window {
		s.idleTTL = window
	}
	return s
}

// Take implements LimiterStore. A denied request does not consume a token.
func (s *MemoryStore) Take(_ context.Context, key string) (Decision, error) {
	now := time.Now()
	lim := s.limiter(key, now)

	res := lim.ReserveN(now, 1)
	if !res.OK() {
		return Decision{Allowed: false}, nil
	}
	delay := res.DelayFrom(now)
	if delay == 0 {
		return Decision{Allowed: true}, nil
	}
	res.CancelAt(now)
	return Decision{Allowed: false, RetryAfter: delay}, nil
}

func (s *MemoryStore) limiter(key string, now time.Time) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ent, ok := s.entries[key]; ok {
		ent.lastSeen = now
		return ent.lim
	}

	lim := rate.NewLimiter(s.rps, s.burst)
	s.entries[key] = &memoryEntry{lim: lim, lastSeen: now}
	return lim
}

// Len returns the number of tracked keys
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Cleanup drops keys idle for longer than the idle TTL
func (s *MemoryStore) Cleanup() {
	cutoff := time.Now().Add(-s.idleTTL)

	s.mu.Lock()
	defer s.mu.Unlock()

	for k, ent := range s.entries {
		if ent.lastSeen.Before(cutoff) {
			delete(s.entries, k)
		}
	}
}

// StartJanitor runs Cleanup periodically until ctx is done
func (s *MemoryStore) StartJanitor(ctx context.Context) {
	if s.cleanupEvery <= 0 {
		return
	}

	t := time.NewTicker(s.cleanupEvery)
	go func() {
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				s.Cleanup()
			}
		}
	}()
}
