package embedding

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"

	"google.golang.org/genai"

	"github.com/ragline/ragline/internal/log"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeClient is a scriptable upstream for provider tests.
type fakeClient struct {
	mu    sync.Mutex
	calls int
	err   error
	vec   []float32
}

func (f *fakeClient) Embed(_ context.Context, _ string) ([]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if f.vec != nil {
		return f.vec, nil
	}
	vec := make([]float32, Dimension)
	for i := range vec {
		vec[i] = 0.5
	}
	return vec, nil
}

func (f *fakeClient) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// fakeClock is a manually advanced time source.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestProvider(client Client, opts ...Option) *Provider {
	opts = append([]Option{WithMinInterval(0)}, opts...)
	return NewProvider(client, log.NewNop(), opts...)
}

func TestEmbedAlwaysReturnsFullDimension(t *testing.T) {
	tests := []struct {
		name   string
		client Client
		text   string
	}{
		{"nil client", nil, "some text"},
		{"nil client empty text", nil, ""},
		{"failing client", &fakeClient{err: errors.New("connection refused")}, "text"},
		{"healthy client", &fakeClient{}, "text"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestProvider(tt.client)
			vec := p.Embed(context.Background(), tt.text)
			if len(vec) != int(Dimension) {
				t.Errorf("len = %d, want %d", len(vec), Dimension)
			}
		})
	}
}

func TestEmbedMockVectorsAreNotZero(t *testing.T) {
	p := newTestProvider(nil)
	vec := p.Embed(context.Background(), "anything")

	var sum float32
	for _, v := range vec {
		sum += v
	}
	if sum == 0 {
		t.Error("mock vector is all zeros; degenerate similarity scores would follow")
	}
}

func TestEmbedCachesByPrefix(t *testing.T) {
	client := &fakeClient{}
	p := newTestProvider(client)

	p.Embed(context.Background(), "repeated question")
	p.Embed(context.Background(), "repeated question")

	if got := client.callCount(); got != 1 {
		t.Errorf("upstream calls = %d, want 1 (second call must hit cache)", got)
	}
	if p.CacheLen() != 1 {
		t.Errorf("cache len = %d, want 1", p.CacheLen())
	}
}

func TestEmbedCacheKeyTruncation(t *testing.T) {
	// Two texts sharing the first 100 characters map to one cache
	// entry. Accepted approximation of the prefix key.
	prefix := strings.Repeat("p", cacheKeyLen)
	client := &fakeClient{}
	p := newTestProvider(client)

	a := p.Embed(context.Background(), prefix+" tail one")
	b := p.Embed(context.Background(), prefix+" tail two")

	if client.callCount() != 1 {
		t.Errorf("upstream calls = %d, want 1", client.callCount())
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatal("colliding prefixes returned different vectors")
		}
	}
}

func TestEmbedCacheIsCaseSensitive(t *testing.T) {
	client := &fakeClient{}
	p := newTestProvider(client)

	p.Embed(context.Background(), "Hello")
	p.Embed(context.Background(), "hello")

	if client.callCount() != 2 {
		t.Errorf("upstream calls = %d, want 2 (keys are case-sensitive)", client.callCount())
	}
}

func TestEmbedQuotaBackoffShortCircuits(t *testing.T) {
	clock := newFakeClock()
	client := &fakeClient{err: genai.APIError{Code: 429, Message: "quota exceeded"}}
	p := newTestProvider(client, withClock(clock.Now))

	// First call hits upstream, trips the quota flag.
	p.Embed(context.Background(), "first")
	if !p.QuotaExceeded() {
		t.Fatal("quota flag not set after 429")
	}
	if client.callCount() != 1 {
		t.Fatalf("upstream calls = %d, want 1", client.callCount())
	}

	// Calls inside the window must not reach the network.
	p.Embed(context.Background(), "second")
	p.Embed(context.Background(), "third")
	if client.callCount() != 1 {
		t.Errorf("upstream calls = %d, want 1 during back-off", client.callCount())
	}

	// After the window expires the upstream is attempted again.
	client.mu.Lock()
	client.err = nil
	client.mu.Unlock()
	clock.Advance(61 * time.Second)

	p.Embed(context.Background(), "fourth")
	if client.callCount() != 2 {
		t.Errorf("upstream calls = %d, want 2 after window expiry", client.callCount())
	}
	if p.QuotaExceeded() {
		t.Error("successful call must clear the quota flag")
	}
}

func TestEmbedQuotaUsesRetryHint(t *testing.T) {
	clock := newFakeClock()
	client := &fakeClient{err: genai.APIError{
		Code:    429,
		Message: "resource exhausted",
		Details: []map[string]any{
			{
				"@type":      "type.googleapis.com/google.rpc.RetryInfo",
				"retryDelay": "30s",
			},
		},
	}}
	p := newTestProvider(client, withClock(clock.Now))

	p.Embed(context.Background(), "text")

	got := p.QuotaResetSeconds()
	if got < 29 || got > 31 {
		t.Errorf("QuotaResetSeconds = %d, want ~30 from retry hint", got)
	}
}

func TestEmbedOtherErrorsLeaveQuotaUntouched(t *testing.T) {
	client := &fakeClient{err: errors.New("tls handshake failure")}
	p := newTestProvider(client)

	vec := p.Embed(context.Background(), "text")
	if len(vec) != int(Dimension) {
		t.Fatalf("len = %d, want %d", len(vec), Dimension)
	}
	if p.QuotaExceeded() {
		t.Error("transport error must not set quota state")
	}

	// The next call still reaches the upstream.
	p.Embed(context.Background(), "other text")
	if client.callCount() != 2 {
		t.Errorf("upstream calls = %d, want 2", client.callCount())
	}
}

func TestMocksServedCounter(t *testing.T) {
	t.Run("offline provider counts every call", func(t *testing.T) {
		p := newTestProvider(nil)
		p.Embed(context.Background(), "one")
		p.Embed(context.Background(), "two")
		if got := p.MocksServed(); got != 2 {
			t.Errorf("MocksServed = %d, want 2", got)
		}
	})

	t.Run("healthy upstream serves no mocks", func(t *testing.T) {
		p := newTestProvider(&fakeClient{})
		p.Embed(context.Background(), "real")
		p.Embed(context.Background(), "real") // cache hit
		if got := p.MocksServed(); got != 0 {
			t.Errorf("MocksServed = %d, want 0", got)
		}
	})

	t.Run("upstream failure counts", func(t *testing.T) {
		p := newTestProvider(&fakeClient{err: errors.New("connection refused")})
		p.Embed(context.Background(), "text")
		if got := p.MocksServed(); got != 1 {
			t.Errorf("MocksServed = %d, want 1", got)
		}
	})

	t.Run("quota back-off counts each short-circuit", func(t *testing.T) {
		clock := newFakeClock()
		client := &fakeClient{err: genai.APIError{Code: 429, Message: "quota exceeded"}}
		p := newTestProvider(client, withClock(clock.Now))

		p.Embed(context.Background(), "first")
		p.Embed(context.Background(), "second")
		if got := p.MocksServed(); got != 2 {
			t.Errorf("MocksServed = %d, want 2", got)
		}
	})
}

func TestQuotaResetSecondsWithoutWindow(t *testing.T) {
	p := newTestProvider(&fakeClient{})
	if got := p.QuotaResetSeconds(); got != 0 {
		t.Errorf("QuotaResetSeconds = %d, want 0", got)
	}
}

func TestEmbedConcurrentCallers(t *testing.T) {
	client := &fakeClient{}
	p := newTestProvider(client)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			text := strings.Repeat("t", n+1)
			vec := p.Embed(context.Background(), text)
			if len(vec) != int(Dimension) {
				t.Errorf("len = %d, want %d", len(vec), Dimension)
			}
		}(i)
	}
	wg.Wait()
}

func TestEmbedCanceledContextStillReturnsVector(t *testing.T) {
	client := &fakeClient{}
	// Real spacing so limiter.Wait observes the canceled context.
	p := NewProvider(client, log.NewNop(), WithMinInterval(time.Hour))

	// Consume the initial token.
	p.Embed(context.Background(), "warmup")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	vec := p.Embed(ctx, "after cancel")
	if len(vec) != int(Dimension) {
		t.Errorf("len = %d, want %d", len(vec), Dimension)
	}
}

func TestIsQuotaError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"api 429", genai.APIError{Code: 429}, true},
		{"api 500", genai.APIError{Code: 500, Message: "internal"}, false},
		{"quota substring", errors.New("daily quota exhausted"), true},
		{"429 substring", errors.New("http 429 returned"), true},
		{"plain error", errors.New("connection reset"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsQuotaError(tt.err); got != tt.want {
				t.Errorf("IsQuotaError(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestRetryDelay(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want time.Duration
	}{
		{"no api error", errors.New("quota"), 0},
		{"no details", genai.APIError{Code: 429}, 0},
		{
			"retry info",
			genai.APIError{Code: 429, Details: []map[string]any{
				{"@type": "type.googleapis.com/google.rpc.RetryInfo", "retryDelay": "12s"},
			}},
			12 * time.Second,
		},
		{
			"malformed delay",
			genai.APIError{Code: 429, Details: []map[string]any{
				{"@type": "type.googleapis.com/google.rpc.RetryInfo", "retryDelay": "soon"},
			}},
			0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RetryDelay(tt.err); got != tt.want {
				t.Errorf("RetryDelay = %v, want %v", got, tt.want)
			}
		})
	}
}
