package api

import (
	"context"
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethpandaops/bootstrapoor/pkg/i18n"
	"github.com/ethpandaops/bootstrapoor/pkg/metrics"
	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// FixedWindowLimiter counts requests per key in fixed windows. A window opens
// on the first request of a key and lasts ttl; once it has elapsed the next
// request opens a fresh window.
type FixedWindowLimiter struct {
	windows map[string]*window
	mu      sync.Mutex
	ttl     time.Duration
	limit   int
	now     func() time.Time
}

// window holds the counter for one key.
type window struct {
	start time.Time
	count int
}

// Decision is the outcome of a single Allow call.
type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// RetryAfter returns how long the caller should wait before the window resets.
func (d Decision) RetryAfter(now time.Time) time.Duration {
	if wait := d.ResetAt.Sub(now); wait > 0 {
		return wait
	}

	return 0
}

// LimiterOption configures a FixedWindowLimiter.
type LimiterOption func(*FixedWindowLimiter)

// WithClock overrides the limiter's time source.
func WithClock(now func() time.Time) LimiterOption {
	return func(l *FixedWindowLimiter) {
		l.now = now
	}
}

// NewFixedWindowLimiter creates a limiter allowing limit requests per ttl.
func NewFixedWindowLimiter(ttl time.Duration, limit int, opts ...LimiterOption) *FixedWindowLimiter {
	l := &FixedWindowLimiter{
		windows: make(map[string]*window, 256),
		ttl:     ttl,
		limit:   limit,
		now:     time.Now,
	}

	for _, opt := range opts {
		opt(l)
	}

	return l
}

// Allow records a request for key and reports whether it fits in the
// current window. Rejected requests do not advance the counter.
func (l *FixedWindowLimiter) Allow(key string) Decision {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	w, exists := l.windows[key]
	if !exists || !now.Before(w.start.Add(l.ttl)) {
		w = &window{start: now}
		l.windows[key] = w
	}

	decision := Decision{
		Limit:   l.limit,
		ResetAt: w.start.Add(l.ttl),
	}

	if w.count >= l.limit {
		return decision
	}

	w.count++

	decision.Allowed = true
	decision.Remaining = l.limit - w.count

	return decision
}

// Len returns the number of keys with a tracked window.
func (l *FixedWindowLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return len(l.windows)
}

// Cleanup removes windows that have expired and returns how many were removed.
func (l *FixedWindowLimiter) Cleanup() int {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0

	for key, w := range l.windows {
		if !now.Before(w.start.Add(l.ttl)) {
			delete(l.windows, key)
			removed++
		}
	}

	return removed
}

// Run periodically removes expired windows until ctx is done.
func (l *FixedWindowLimiter) Run(ctx context.Context, interval time.Duration, onCleanup func(remaining int)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.Cleanup()

			if onCleanup != nil {
				onCleanup(l.Len())
			}
		}
	}
}

// RateLimitErrorResponse is returned when the rate limit is exceeded.
type RateLimitErrorResponse struct {
	StatusCode int    `json:"statusCode" example:"429"`
	Message    string `json:"message" example:"Too many requests, please try again later."`
}

// Throttler is the HTTP middleware enforcing a FixedWindowLimiter.
type Throttler struct {
	log        logrus.FieldLogger
	limiter    *FixedWindowLimiter
	translator *i18n.Translator
	metrics    *metrics.Metrics
	stats      StatsRecorder
	keyHeader  string
	now        func() time.Time
	warn       rate.Sometimes

	// events feeds RunStats. Decisions are dropped when it is full.
	events  chan StatsEvent
	dropped atomic.Uint64
}

// ThrottlerOptions configures a Throttler.
type ThrottlerOptions struct {
	Limiter    *FixedWindowLimiter
	Translator *i18n.Translator

	// KeyHeader, when set, identifies clients by this header instead of by IP.
	KeyHeader string
	Metrics   *metrics.Metrics
	Stats     StatsRecorder

	// StatsQueueSize bounds the decisions waiting for the stats recorder.
	// Defaults to 1024.
	StatsQueueSize int
}

// NewThrottler creates the rate limiting middleware.
func NewThrottler(log logrus.FieldLogger, opts ThrottlerOptions) *Throttler {
	queueSize := opts.StatsQueueSize
	if queueSize <= 0 {
		queueSize = defaultStatsQueueSize
	}

	t := &Throttler{
		log:        log.WithField("component", "throttler"),
		limiter:    opts.Limiter,
		translator: opts.Translator,
		metrics:    opts.Metrics,
		stats:      opts.Stats,
		keyHeader:  opts.KeyHeader,
		now:        opts.Limiter.now,
		warn:       rate.Sometimes{First: 1, Interval: 10 * time.Second},
	}

	if opts.Stats != nil {
		t.events = make(chan StatsEvent, queueSize)
	}

	return t
}

// Middleware returns an HTTP middleware that enforces the limit per client.
func (t *Throttler) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := t.clientKey(r)
		decision := t.limiter.Allow(key)

		if t.metrics != nil {
			t.metrics.RecordThrottleDecision(decision.Allowed)
		}

		t.recordStats(key, r, decision.Allowed)

		now := t.now()
		reset := int64(math.Ceil(decision.RetryAfter(now).Seconds()))

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(decision.Limit))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(reset, 10))

		if !decision.Allowed {
			t.warn.Do(func() {
				t.log.WithFields(logrus.Fields{
					"client": key,
					"path":   r.URL.Path,
					"limit":  decision.Limit,
				}).Warn("Rate limit exceeded")
			})

			w.Header().Set("Retry-After", strconv.FormatInt(reset, 10))
			writeJSON(t.log, w, http.StatusTooManyRequests, RateLimitErrorResponse{
				StatusCode: http.StatusTooManyRequests,
				Message:    t.translator.Localize(r.Header.Get("Accept-Language"), i18n.KeyTooManyRequests),
			})

			return
		}

		next.ServeHTTP(w, r)
	})
}

// clientKey identifies the client. chi's RealIP middleware has already
// replaced RemoteAddr when proxy headers are trusted.
func (t *Throttler) clientKey(r *http.Request) string {
	if t.keyHeader != "" {
		if v := r.Header.Get(t.keyHeader); v != "" {
			return "header:" + v
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}

	return host
}

// recordStats queues the decision for RunStats without blocking the request.
func (t *Throttler) recordStats(key string, r *http.Request, allowed bool) {
	if t.events == nil {
		return
	}

	ev := StatsEvent{
		Key:     key,
		Method:  r.Method,
		Path:    routePattern(r),
		Allowed: allowed,
		At:      t.now(),
	}

	select {
	case t.events <- ev:
	default:
		t.dropped.Add(1)
	}
}

// Dropped returns the number of decisions discarded because the stats queue
// was full.
func (t *Throttler) Dropped() uint64 {
	return t.dropped.Load()
}

// RunStats writes queued decisions to the stats recorder until ctx is done.
// It is a no-op without a recorder.
func (t *Throttler) RunStats(ctx context.Context) {
	if t.events == nil {
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-t.events:
			recordCtx, cancel := context.WithTimeout(ctx, statsTimeout)
			err := t.stats.Record(recordCtx, ev)
			cancel()

			if err != nil {
				t.log.WithError(err).Debug("Failed to record throttle stats")
			}
		}
	}
}

// routePattern resolves the full chi route pattern of r, or "unmatched" when
// no route matches. The throttler runs before routing completes, so the
// pattern is looked up on the root router instead of read from the context.
func routePattern(r *http.Request) string {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil || rctx.Routes == nil {
		return unmatchedRoute
	}

	if pattern := rctx.Routes.Find(chi.NewRouteContext(), r.Method, r.URL.Path); pattern != "" {
		return pattern
	}

	return unmatchedRoute
}
