package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"

	"github.com/pipedesk/pipedesk/pkg/models"
)

func TestRateLimiter_Allow(t *testing.T) {
	// 2 requests per minute, so the bucket holds exactly 2 tokens
	rl := NewRateLimiter(2, 60)

	limiter := rl.GetLimiter("192.168.1.1")

	assert.True(t, limiter.Allow(), "First request should be allowed")
	assert.True(t, limiter.Allow(), "Second request should be allowed")

	// Bucket exhausted, refill is far slower than the test
	assert.False(t, limiter.Allow(), "Third request should be blocked")
}

func TestRateLimiter_DifferentIPs(t *testing.T) {
	rl := NewRateLimiter(1, 60)

	limiter1 := rl.GetLimiter("192.168.1.1")
	limiter2 := rl.GetLimiter("192.168.1.2")

	// Different IPs have separate buckets
	assert.True(t, limiter1.Allow(), "IP 1 first request should be allowed")
	assert.True(t, limiter2.Allow(), "IP 2 first request should be allowed")

	assert.False(t, limiter1.Allow(), "IP 1 second request should be blocked")
	assert.False(t, limiter2.Allow(), "IP 2 second request should be blocked")
}

func TestRateLimitMiddleware(t *testing.T) {
	e := echo.New()
	rl := NewRateLimiter(1, 60)

	handler := func(c echo.Context) error {
		return c.String(http.StatusOK, "success")
	}

	wrappedHandler := rl.RateLimitMiddleware()(handler)

	req1 := httptest.NewRequest(http.MethodGet, "/test", nil)
	req1.RemoteAddr = "192.168.1.1:12345"
	rec1 := httptest.NewRecorder()
	c1 := e.NewContext(req1, rec1)

	err := wrappedHandler(c1)
	assert.NoError(t, err)
	assert.Equal(t, http.StatusOK, rec1.Code)

	req2 := httptest.NewRequest(http.MethodGet, "/test", nil)
	req2.RemoteAddr = "192.168.1.1:12346"
	rec2 := httptest.NewRecorder()
	c2 := e.NewContext(req2, rec2)

	err = wrappedHandler(c2)
	assert.NoError(t, err)
	assert.Equal(t, http.StatusTooManyRequests, rec2.Code)
}

func TestRequireAdmin(t *testing.T) {
	e := echo.New()

	handler := func(c echo.Context) error {
		return c.String(http.StatusOK, "success")
	}
	wrapped := RequireAdmin()(handler)

	tests := []struct {
		name     string
		role     interface{}
		wantCode int
	}{
		{"admin passes", models.RoleAdmin, http.StatusOK},
		{"regular user forbidden", models.RoleUser, http.StatusForbidden},
		{"missing role unauthorized", nil, http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/admin/users", nil)
			rec := httptest.NewRecorder()
			c := e.NewContext(req, rec)
			if tt.role != nil {
				c.Set("user_role", tt.role)
			}

			err := wrapped(c)
			assert.NoError(t, err)
			assert.Equal(t, tt.wantCode, rec.Code)
		})
	}
}
