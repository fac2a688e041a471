// Package ratelimit provides per-key fixed-window request limiting for the
// HTTP API.
package ratelimit

import (
	"net/http"
	"strconv"
	"sync"
	"time"
)

// Defaults applied when a Window is created with zero values.
const (
	DefaultRequests = 10
	DefaultWindow   = time.Minute
)

// Limiter decides whether a key may make another request. Window is the
// in-memory implementation; a shared store can satisfy the same interface
// when several instances serve one audience.
type Limiter interface {
	IsLimited(key string) bool
	RecordAttempt(key string)
}

// Key builds the limiter key for a user on an endpoint.
func Key(userID, endpoint string) string {
	return userID + ":" + endpoint
}

type entry struct {
	requests    int
	windowStart time.Time
}

// Window counts requests per key in fixed windows.
type Window struct {
	max    int
	window time.Duration
	now    func() time.Time

	mu      sync.Mutex
	entries map[string]*entry
}

// NewWindow creates a limiter allowing max requests per window.
func NewWindow(max int, window time.Duration) *Window {
	if max <= 0 {
		max = DefaultRequests
	}
	if window <= 0 {
		window = DefaultWindow
	}
	return &Window{max: max, window: window, now: time.Now, entries: make(map[string]*entry)}
}

// current returns the live entry for key, or nil when the key has no
// requests in the current window. Callers hold w.mu.
func (w *Window) current(key string, now time.Time) *entry {
	e := w.entries[key]
	if e == nil || now.Sub(e.windowStart) > w.window {
		return nil
	}
	return e
}

// IsLimited reports whether key has used up its current window.
func (w *Window) IsLimited(key string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	e := w.current(key, w.now())
	return e != nil && e.requests >= w.max
}

// RecordAttempt counts one request for key, opening a new window if the
// previous one has expired.
func (w *Window) RecordAttempt(key string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	now := w.now()
	if e := w.current(key, now); e != nil {
		e.requests++
		return
	}
	w.entries[key] = &entry{requests: 1, windowStart: now}
}

// Allow records an attempt for key unless it is limited. It reports whether
// the request may proceed.
func (w *Window) Allow(key string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	now := w.now()
	e := w.current(key, now)
	switch {
	case e == nil:
		w.entries[key] = &entry{requests: 1, windowStart: now}
		return true
	case e.requests >= w.max:
		return false
	default:
		e.requests++
		return true
	}
}

// Status is the quota state reported to clients.
type Status struct {
	Limit     int
	Remaining int
	Reset     time.Time
}

// Status returns the quota for key. A key with no live window reports the
// quota it would have after its next request.
func (w *Window) Status(key string) Status {
	w.mu.Lock()
	defer w.mu.Unlock()
	now := w.now()
	e := w.current(key, now)
	if e == nil {
		return Status{Limit: w.max, Remaining: w.max - 1, Reset: now.Add(w.window)}
	}
	remaining := w.max - e.requests
	if remaining < 0 {
		remaining = 0
	}
	return Status{Limit: w.max, Remaining: remaining, Reset: e.windowStart.Add(w.window)}
}

// SetHeaders writes the X-RateLimit-* headers for s.
func (s Status) SetHeaders(h http.Header) {
	h.Set("X-RateLimit-Limit", strconv.Itoa(s.Limit))
	h.Set("X-RateLimit-Remaining", strconv.Itoa(s.Remaining))
	h.Set("X-RateLimit-Reset", s.Reset.UTC().Format(time.RFC3339))
}

// Cleanup drops expired entries and returns how many were removed.
func (w *Window) Cleanup() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	now := w.now()
	removed := 0
	for key, e := range w.entries {
		if now.Sub(e.windowStart) > w.window {
			delete(w.entries, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked keys.
func (w *Window) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.entries)
}
