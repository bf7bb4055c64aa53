package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func frozen(rl *Limiter) *time.Time {
	now := time.Date(2024, 1, 8, 9, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }
	return &now
}

func allow(rl *Limiter, ip string) bool {
	ok, _ := rl.take("w:"+ip, rl.writes)
	return ok
}

func allowLogin(rl *Limiter, ip string) bool {
	ok, _ := rl.take("l:"+ip, rl.logins)
	return ok
}

func TestAllow(t *testing.T) {
	rl := NewLimiter(Config{RequestsPerMinute: 3})
	defer rl.Stop()
	now := frozen(rl)

	for i := range 3 {
		assert.True(t, allow(rl, "1.1.1.1"), "request %d", i)
	}
	assert.False(t, allow(rl, "1.1.1.1"))
	assert.True(t, allow(rl, "2.2.2.2"), "clients are independent")

	*now = now.Add(time.Minute)
	assert.True(t, allow(rl, "1.1.1.1"), "window resets after a minute")
	assert.Equal(t, int64(1), rl.Rejected())
	assert.Equal(t, 2, rl.ActiveClients())
}

func TestAllow_SteadyTrafficDoesNotExtendWindow(t *testing.T) {
	rl := NewLimiter(Config{RequestsPerMinute: 2})
	defer rl.Stop()
	now := frozen(rl)

	assert.True(t, allow(rl, "ip"))
	*now = now.Add(40 * time.Second)
	assert.True(t, allow(rl, "ip"))
	*now = now.Add(40 * time.Second)
	assert.True(t, allow(rl, "ip"), "new window 80s after the first request")
}

func TestAllowLogin_SeparateBudget(t *testing.T) {
	rl := NewLimiter(Config{RequestsPerMinute: 5, LoginPerMinute: 2})
	defer rl.Stop()
	frozen(rl)

	assert.True(t, allowLogin(rl, "ip"))
	assert.True(t, allowLogin(rl, "ip"))
	assert.False(t, allowLogin(rl, "ip"))
	assert.True(t, allow(rl, "ip"), "exhausted logins leave writes alone")
}

func TestForgetIdle(t *testing.T) {
	rl := NewLimiter(DefaultConfig())
	defer rl.Stop()
	now := frozen(rl)

	allow(rl, "old")
	*now = now.Add(11 * time.Minute)
	allow(rl, "fresh")

	rl.forgetIdle()
	assert.Equal(t, 1, rl.ActiveClients())
}

func TestMiddleware_OnlyMutatingRequests(t *testing.T) {
	rl := NewLimiter(Config{RequestsPerMinute: 1})
	defer rl.Stop()
	now := frozen(rl)

	h := rl.Middleware(func(*http.Request) string { return "ip" }, nil)(
		http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) }))

	do := func(method string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(method, "/projects", nil))
		return rec
	}

	assert.Equal(t, http.StatusOK, do(http.MethodPost).Code)
	*now = now.Add(15 * time.Second)
	rec := do(http.MethodPost)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "45", rec.Header().Get("Retry-After"))
	for range 5 {
		assert.Equal(t, http.StatusOK, do(http.MethodGet).Code)
	}
	assert.Equal(t, http.StatusTooManyRequests, do(http.MethodDelete).Code)
}

func TestMiddleware_LoginPaths(t *testing.T) {
	rl := NewLimiter(Config{RequestsPerMinute: 100, LoginPerMinute: 1})
	defer rl.Stop()
	frozen(rl)

	h := rl.Middleware(func(*http.Request) string { return "ip" }, nil)(
		http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) }))

	post := func(path string) int {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, path, nil))
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, post("/api/auth"))
	assert.Equal(t, http.StatusTooManyRequests, post("/login"))
	assert.Equal(t, http.StatusOK, post("/projects"))
}

func TestStopIsIdempotent(t *testing.T) {
	rl := NewLimiter(Config{})
	rl.Stop()
	rl.Stop()
}
