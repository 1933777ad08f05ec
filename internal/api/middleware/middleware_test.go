package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRouter(handlers ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(handlers...)
	router.GET("/test", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "success"})
	})
	return router
}

func get(router http.Handler, method, remote, origin string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, "/test", nil)
	if remote != "" {
		req.RemoteAddr = remote
	}
	if origin != "" {
		req.Header.Set("Origin", origin)
		req.Header.Set("Access-Control-Request-Method", "GET")
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestCORS(t *testing.T) {
	router := setupTestRouter(CORS(CORSConfig{AllowOrigins: []string{"http://localhost:3000"}, MaxAge: time.Hour}))

	tests := []struct {
		name       string
		method     string
		origin     string
		wantStatus int
		wantOrigin string
	}{
		{"allowed origin", http.MethodGet, "http://localhost:3000", http.StatusOK, "http://localhost:3000"},
		{"preflight", http.MethodOptions, "http://localhost:3000", http.StatusNoContent, "http://localhost:3000"},
		{"no origin header", http.MethodGet, "", http.StatusOK, ""},
		{"foreign origin", http.MethodGet, "http://evil.example", http.StatusForbidden, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := get(router, tt.method, "", tt.origin)
			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, tt.wantOrigin, w.Header().Get("Access-Control-Allow-Origin"))
		})
	}
}

func TestCORSDisabledWithoutOrigins(t *testing.T) {
	assert.Nil(t, CORS(CORSConfig{}))
	assert.NotNil(t, CORS(DefaultCORSConfig()))
}

func TestRateLimit(t *testing.T) {
	router := setupTestRouter(RateLimit(RateLimitConfig{RequestsPerSecond: 2, Burst: 2}))

	for i := range 2 {
		w := get(router, http.MethodGet, "192.168.1.1:1234", "")
		assert.Equal(t, http.StatusOK, w.Code, "request %d", i+1)
	}

	w := get(router, http.MethodGet, "192.168.1.1:1234", "")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "1", w.Header().Get("Retry-After"))

	w = get(router, http.MethodGet, "192.168.1.2:1234", "")
	assert.Equal(t, http.StatusOK, w.Code, "other clients have their own bucket")
}

func TestRateLimitDisabled(t *testing.T) {
	router := setupTestRouter(RateLimit(RateLimitConfig{}))
	for range 10 {
		assert.Equal(t, http.StatusOK, get(router, http.MethodGet, "10.0.0.1:1", "").Code)
	}
}

func TestRateLimiterForgetsIdleClients(t *testing.T) {
	l := NewRateLimiter(RateLimitConfig{RequestsPerSecond: 1, Burst: 1, IdleAfter: time.Minute})
	now := time.Unix(1000, 0)
	l.now = func() time.Time { return now }

	ok, _ := l.Allow("10.0.0.1")
	require.True(t, ok)
	ok, wait := l.Allow("10.0.0.1")
	assert.False(t, ok)
	assert.Equal(t, time.Second, wait)

	now = now.Add(2 * time.Minute)
	l.mu.Lock()
	l.prune(now)
	l.mu.Unlock()
	assert.Zero(t, l.Len())
}

func TestDefaultRateLimitConfig(t *testing.T) {
	cfg := DefaultRateLimitConfig()
	assert.Equal(t, 50.0, cfg.RequestsPerSecond)
	assert.Equal(t, 100, cfg.Burst)
}
