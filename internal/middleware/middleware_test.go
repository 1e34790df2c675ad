package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"golang.org/x/time/rate"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func request(remoteAddr string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = remoteAddr
	return req
}

func TestRateLimiter_BurstThenReject(t *testing.T) {
	rl := NewRateLimiter(1, 2, ClientIP)
	defer rl.Shutdown()
	frozen := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return frozen }
	handler := rl.Middleware(okHandler())

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, request("10.0.0.1:5000"))
		codes = append(codes, rec.Code)
	}

	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}

func TestRateLimiter_RejectionBody(t *testing.T) {
	rl := NewRateLimiter(1, 1, ClientIP)
	defer rl.Shutdown()
	frozen := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return frozen }
	handler := rl.Middleware(okHandler())

	handler.ServeHTTP(httptest.NewRecorder(), request("10.0.0.1:5000"))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, request("10.0.0.1:5000"))

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))
	assert.JSONEq(t, `{"success":false,"error":"rate limit exceeded"}`, rec.Body.String())
}

func TestRateLimiter_KeysIgnorePort(t *testing.T) {
	rl := NewRateLimiter(1, 1, ClientIP)
	defer rl.Shutdown()
	frozen := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return frozen }

	assert.True(t, rl.allow(ClientIP(request("10.0.0.1:5000"))))
	assert.False(t, rl.allow(ClientIP(request("10.0.0.1:5001"))))
	assert.True(t, rl.allow(ClientIP(request("10.0.0.2:5000"))))
}

func TestRateLimiter_Refills(t *testing.T) {
	rl := NewRateLimiter(1, 1, ClientIP)
	defer rl.Shutdown()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	assert.True(t, rl.allow("a"))
	assert.False(t, rl.allow("a"))
	now = now.Add(time.Second)
	assert.True(t, rl.allow("a"))
}

func TestRateLimiter_CleanupAndEviction(t *testing.T) {
	rl := NewRateLimiter(float64(rate.Inf), 1, ClientIP)
	defer rl.Shutdown()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }
	rl.maxSize = 2

	rl.allow("a")
	now = now.Add(time.Second)
	rl.allow("b")
	now = now.Add(time.Second)
	rl.allow("c")

	assert.Len(t, rl.limiters, 2)
	assert.NotContains(t, rl.limiters, "a")

	now = now.Add(rl.cleanupInterval + time.Second)
	assert.Equal(t, 2, rl.cleanup())
	assert.Empty(t, rl.limiters)
}

func TestRateLimiter_ShutdownTwice(t *testing.T) {
	rl := NewRateLimiter(1, 1, nil)
	rl.Shutdown()
	assert.NotPanics(t, rl.Shutdown)
}

func TestMemberOrIP(t *testing.T) {
	mux := http.NewServeMux()
	var got string
	mux.HandleFunc("GET /api/v1/members/{memberID}/membership", func(w http.ResponseWriter, r *http.Request) {
		got = MemberOrIP(r)
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/members/m1/membership", nil)
	mux.ServeHTTP(httptest.NewRecorder(), req)
	assert.Equal(t, "member:m1", got)

	assert.Equal(t, "ip:10.0.0.1", MemberOrIP(request("10.0.0.1:5000")))
}

func TestSecurityHeaders(t *testing.T) {
	t.Run("production", func(t *testing.T) {
		rec := httptest.NewRecorder()
		NewSecurityHeaders(false).Middleware(okHandler()).ServeHTTP(rec, request("10.0.0.1:1"))

		assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
		assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
		assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
		assert.NotEmpty(t, rec.Header().Get("Strict-Transport-Security"))
	})

	t.Run("development skips HSTS", func(t *testing.T) {
		rec := httptest.NewRecorder()
		NewSecurityHeaders(true).Middleware(okHandler()).ServeHTTP(rec, request("10.0.0.1:1"))

		assert.Empty(t, rec.Header().Get("Strict-Transport-Security"))
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}
