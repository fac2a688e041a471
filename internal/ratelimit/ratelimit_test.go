package ratelimit

import (
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func newTestWindow(max int, window time.Duration) (*Window, *fakeClock) {
	clock := &fakeClock{t: time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC)}
	w := NewWindow(max, window)
	w.now = clock.Now
	return w, clock
}

func TestKey(t *testing.T) {
	if got := Key("u1", "/api/speech-to-text"); got != "u1:/api/speech-to-text" {
		t.Errorf("Key() = %q", got)
	}
}

func TestNewWindowDefaults(t *testing.T) {
	w := NewWindow(0, 0)
	assert.Equal(t, DefaultRequests, w.max)
	assert.Equal(t, DefaultWindow, w.window)
}

func TestIsLimitedAfterMaxAttempts(t *testing.T) {
	w, _ := newTestWindow(3, time.Minute)
	key := Key("u1", "/api/speech-to-text")

	for i := 0; i < 3; i++ {
		require.False(t, w.IsLimited(key), "attempt %d", i)
		w.RecordAttempt(key)
	}
	assert.True(t, w.IsLimited(key))

	// Other keys are independent.
	assert.False(t, w.IsLimited(Key("u2", "/api/speech-to-text")))
}

func TestWindowExpiry(t *testing.T) {
	w, clock := newTestWindow(2, time.Minute)
	key := "k"

	assert.True(t, w.Allow(key))
	assert.True(t, w.Allow(key))
	assert.False(t, w.Allow(key))

	clock.Advance(61 * time.Second)
	assert.False(t, w.IsLimited(key))
	assert.True(t, w.Allow(key))
	assert.Equal(t, 1, w.Status(key).Limit-w.Status(key).Remaining)
}

func TestStatus(t *testing.T) {
	w, clock := newTestWindow(10, time.Minute)
	start := clock.Now()

	fresh := w.Status("k")
	assert.Equal(t, Status{Limit: 10, Remaining: 9, Reset: start.Add(time.Minute)}, fresh)

	w.RecordAttempt("k")
	clock.Advance(10 * time.Second)
	w.RecordAttempt("k")

	st := w.Status("k")
	assert.Equal(t, 8, st.Remaining)
	assert.Equal(t, start.Add(time.Minute), st.Reset)

	for i := 0; i < 20; i++ {
		w.RecordAttempt("k")
	}
	assert.Equal(t, 0, w.Status("k").Remaining)
}

func TestStatusSetHeaders(t *testing.T) {
	h := http.Header{}
	Status{Limit: 10, Remaining: 4, Reset: time.Date(2026, 10, 1, 9, 1, 0, 0, time.UTC)}.SetHeaders(h)

	assert.Equal(t, "10", h.Get("X-RateLimit-Limit"))
	assert.Equal(t, "4", h.Get("X-RateLimit-Remaining"))
	assert.Equal(t, "2026-10-01T09:01:00Z", h.Get("X-RateLimit-Reset"))
}

func TestCleanup(t *testing.T) {
	w, clock := newTestWindow(5, time.Minute)
	w.RecordAttempt("old")
	clock.Advance(30 * time.Second)
	w.RecordAttempt("new")
	clock.Advance(31 * time.Second)

	assert.Equal(t, 1, w.Cleanup())
	assert.Equal(t, 1, w.Len())
	assert.False(t, w.IsLimited("old"))
}

func TestConcurrentAllow(t *testing.T) {
	w := NewWindow(50, time.Minute)
	var wg sync.WaitGroup
	var mu sync.Mutex
	allowed := 0
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if w.Allow("shared") {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, allowed)
}

var _ Limiter = (*Window)(nil)
