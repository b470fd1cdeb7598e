package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func limitedRouter(rl *RateLimiter) *gin.Engine {
	r := gin.New()
	r.GET("/ping", rl.Limit(), func(c *gin.Context) {
		c.String(http.StatusOK, "pong")
	})
	return r
}

func hitFrom(r *gin.Engine, remoteAddr string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.RemoteAddr = remoteAddr
	r.ServeHTTP(w, req)
	return w
}

func TestRateLimiterEnforcesBurst(t *testing.T) {
	r := limitedRouter(NewRateLimiter(3))

	for i := 0; i < 3; i++ {
		w := hitFrom(r, "203.0.113.7:1234")
		assert.Equal(t, http.StatusOK, w.Code, "request %d should pass", i+1)
	}

	w := hitFrom(r, "203.0.113.7:1234")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Contains(t, w.Body.String(), "Rate limit exceeded")
}

func TestRateLimiterTracksClientsSeparately(t *testing.T) {
	r := limitedRouter(NewRateLimiter(1))

	assert.Equal(t, http.StatusOK, hitFrom(r, "203.0.113.7:1234").Code)
	assert.Equal(t, http.StatusTooManyRequests, hitFrom(r, "203.0.113.7:1234").Code)

	// A different client still has its own full bucket.
	assert.Equal(t, http.StatusOK, hitFrom(r, "198.51.100.4:5678").Code)
}

func TestCreateRateLimiters(t *testing.T) {
	limiters := CreateRateLimiters()

	assert.Len(t, limiters, 3)
	assert.Equal(t, 3, limiters["runs"].burst)
	assert.Equal(t, 5, limiters["auth"].burst)
	assert.Equal(t, 60, limiters["general"].burst)
}
