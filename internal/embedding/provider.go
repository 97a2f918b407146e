// Package embedding converts chunk text into fixed-length vectors.
//
// The Provider wraps an upstream embedding service with a process-local
// cache, minimum inter-call spacing, and quota back-off. It never fails:
// when the upstream is unreachable, rate limited, or absent entirely, it
// degrades to pseudo-random vectors of the same dimensionality so the
// ingestion pipeline keeps moving.
package embedding

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// Dimension is the vector length produced by Embed. It matches the
// text-embedding-004 output dimensionality configured upstream.
const Dimension int32 = 768

// DefaultMinInterval is the minimum spacing between upstream calls.
const DefaultMinInterval = time.Second

// defaultQuotaBackoff is the back-off window applied when the upstream
// rate-limit error carries no retry hint.
const defaultQuotaBackoff = 60 * time.Second

// cacheKeyLen is the number of leading characters of the input used as
// the cache key. Collisions beyond the prefix are an accepted
// approximation; the cache is memoization, not a correctness layer.
const cacheKeyLen = 100

// Client is the upstream embedding service. Implementations return the
// raw vector or an error; rate-limit errors should be classifiable by
// IsQuotaError.
type Client interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Provider is the embedding front end used by ingestion and retrieval.
// Safe for concurrent use; the rate limiter serializes the spacing
// delay across callers.
type Provider struct {
	client  Client
	limiter *rate.Limiter
	logger  *slog.Logger
	now     func() time.Time

	mocksServed atomic.Uint64

	mu         sync.Mutex
	cache      map[string][]float32
	quotaHit   bool
	quotaReset time.Time
}

// Option configures a Provider.
type Option func(*Provider)

// WithMinInterval overrides the minimum spacing between upstream calls.
// Zero disables spacing (tests).
func WithMinInterval(d time.Duration) Option {
	return func(p *Provider) {
		if d <= 0 {
			p.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		p.limiter = rate.NewLimiter(rate.Every(d), 1)
	}
}

// withClock overrides the time source. Tests only.
func withClock(now func() time.Time) Option {
	return func(p *Provider) { p.now = now }
}

// NewProvider creates a Provider over the given upstream client. A nil
// client is allowed and yields mock vectors for every call (offline
// mode).
func NewProvider(client Client, logger *slog.Logger, opts ...Option) *Provider {
	if logger == nil {
		logger = slog.Default()
	}

	p := &Provider{
		client:  client,
		limiter: rate.NewLimiter(rate.Every(DefaultMinInterval), 1),
		logger:  logger,
		now:     time.Now,
		cache:   make(map[string][]float32),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Embed returns a Dimension-length vector for text. It never returns an
// error: upstream failures degrade to pseudo-random mock vectors.
func (p *Provider) Embed(ctx context.Context, text string) []float32 {
	key := cacheKey(text)

	p.mu.Lock()
	if vec, ok := p.cache[key]; ok {
		p.mu.Unlock()
		return vec
	}
	if p.quotaHit && p.now().Before(p.quotaReset) {
		p.mu.Unlock()
		return p.mock()
	}
	p.mu.Unlock()

	if p.client == nil {
		return p.mock()
	}

	// Blocking suspension point: spacing is enforced here, one waiter
	// released per interval.
	if err := p.limiter.Wait(ctx); err != nil {
		p.logger.Debug("embedding wait canceled", "error", err)
		return p.mock()
	}

	vec, err := p.client.Embed(ctx, text)
	if err != nil {
		return p.handleError(err)
	}
	if len(vec) != int(Dimension) {
		p.logger.Warn("upstream returned unexpected dimension", "got", len(vec), "want", Dimension)
		return p.mock()
	}

	p.mu.Lock()
	p.cache[key] = vec
	p.quotaHit = false
	p.mu.Unlock()

	return vec
}

// handleError converts an upstream failure into a mock vector, updating
// quota state for rate-limit errors.
func (p *Provider) handleError(err error) []float32 {
	if !IsQuotaError(err) {
		p.logger.Warn("embedding failed, using mock vector", "error", err)
		return p.mock()
	}

	backoff := RetryDelay(err)
	if backoff <= 0 {
		backoff = defaultQuotaBackoff
	}

	p.mu.Lock()
	p.quotaHit = true
	p.quotaReset = p.now().Add(backoff)
	p.mu.Unlock()

	p.logger.Warn("embedding quota exhausted, backing off",
		"retry_after", backoff.String())
	return p.mock()
}

// mock serves a pseudo-random vector and records that one was served.
func (p *Provider) mock() []float32 {
	p.mocksServed.Add(1)
	return mockVector()
}

// MocksServed returns the total number of mock vectors served over the
// provider's lifetime. Callers snapshot it around a unit of work to
// detect whether any of that work was served degraded vectors.
func (p *Provider) MocksServed() uint64 {
	return p.mocksServed.Load()
}

// QuotaExceeded reports whether the provider is currently inside a
// quota back-off window.
func (p *Provider) QuotaExceeded() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.quotaHit && p.now().Before(p.quotaReset)
}

// QuotaResetSeconds returns the whole seconds remaining until the quota
// window expires, or 0 when no window is active.
func (p *Provider) QuotaResetSeconds() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.quotaHit {
		return 0
	}
	remaining := p.quotaReset.Sub(p.now())
	if remaining <= 0 {
		return 0
	}
	return int(remaining.Seconds()) + 1
}

// CacheLen reports the number of memoized vectors.
func (p *Provider) CacheLen() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.cache)
}

// cacheKey truncates text to its leading characters, case-sensitive.
func cacheKey(text string) string {
	runes := []rune(text)
	if len(runes) <= cacheKeyLen {
		return text
	}
	return string(runes[:cacheKeyLen])
}

// mockVector returns Dimension uniform floats in [0,1). Random rather
// than zero so degraded vectors do not all collapse onto one point in
// similarity space.
func mockVector() []float32 {
	vec := make([]float32, Dimension)
	for i := range vec {
		vec[i] = rand.Float32()
	}
	return vec
}
