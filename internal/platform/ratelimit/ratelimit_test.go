package ratelimit

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"luftscan/pkg/requestcontext"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func newClock() *clock {
	return &clock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func TestLimiterSlidingWindow(t *testing.T) {
	c := newClock()
	l := New(3, time.Minute, WithClock(c.now))

	for i := range 3 {
		r := l.Allow("ip:10.0.0.1")
		require.True(t, r.Allowed, "request %d", i)
		assert.Equal(t, 2-i, r.Remaining)
	}
	r := l.Allow("ip:10.0.0.1")
	assert.False(t, r.Allowed)
	assert.Equal(t, c.t.Add(time.Minute), r.ResetAt)
	assert.Equal(t, 60, r.RetryAfter(c.t))

	assert.True(t, l.Allow("ip:10.0.0.2").Allowed, "keys are independent")

	c.t = c.t.Add(time.Minute)
	assert.True(t, l.Allow("ip:10.0.0.1").Allowed, "window slid past the first stamps")
}

func TestLimiterAllowNRecordsNothingWhenRejected(t *testing.T) {
	c := newClock()
	l := New(5, time.Minute, WithClock(c.now))

	require.True(t, l.AllowN("k", 4).Allowed)
	assert.False(t, l.AllowN("k", 2).Allowed)
	r := l.AllowN("k", 1)
	require.True(t, r.Allowed)
	assert.Zero(t, r.Remaining)
}

func TestLimiterPrune(t *testing.T) {
	c := newClock()
	l := New(1, time.Second, WithClock(c.now))
	l.Allow("a")
	c.t = c.t.Add(2 * time.Second)
	l.Prune()
	assert.Empty(t, l.windows)
}

func TestMiddleware(t *testing.T) {
	c := newClock()
	l := New(1, time.Minute, WithClock(c.now))
	h := Middleware(l, slog.New(slog.NewTextHandler(io.Discard, nil)))(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))

	send := func(remote, subject string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/scans", nil)
		req.RemoteAddr = remote
		if subject != "" {
			req = req.WithContext(requestcontext.WithSubject(req.Context(), subject))
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	first := send("192.0.2.1:5000", "")
	assert.Equal(t, http.StatusCreated, first.Code)
	assert.Equal(t, "1", first.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "0", first.Header().Get("X-RateLimit-Remaining"))

	second := send("192.0.2.1:5001", "")
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.Equal(t, "60", second.Header().Get("Retry-After"))
	assert.Contains(t, second.Body.String(), "rate_limited")

	assert.Equal(t, http.StatusCreated, send("192.0.2.1:5002", "analyst").Code, "subjects have their own window")
}
