package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRouter(mw gin.HandlerFunc, handler gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(mw)
	router.GET("/", handler)
	return router
}

func get(router *gin.Engine, ip string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = ip + ":1234"
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestRateLimiterPerIP(t *testing.T) {
	m := NewManager(&Config{Enabled: true, RequestsPerSecond: 1, Burst: 2, MaxConcurrent: 10})
	defer m.Stop()
	router := newRouter(m.Middleware(), func(c *gin.Context) { c.Status(http.StatusOK) })

	assert.Equal(t, http.StatusOK, get(router, "10.0.0.1").Code)
	assert.Equal(t, http.StatusOK, get(router, "10.0.0.1").Code)

	w := get(router, "10.0.0.1")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "1", w.Header().Get("Retry-After"))

	// Another client has its own bucket
	assert.Equal(t, http.StatusOK, get(router, "10.0.0.2").Code)
}

func TestEvictDropsIdleVisitors(t *testing.T) {
	rl := NewRateLimiter(1, 1)
	defer rl.Stop()

	rl.Allow("a")
	rl.evict(time.Now().Add(time.Minute))

	rl.mu.Lock()
	defer rl.mu.Unlock()
	assert.Empty(t, rl.visitors)
}

func TestThrottlerRejectsWhenFull(t *testing.T) {
	th := NewThrottler(1)

	release, ok := th.Acquire()
	require.True(t, ok)

	_, ok = th.Acquire()
	assert.False(t, ok)

	release()
	release, ok = th.Acquire()
	assert.True(t, ok)
	release()
}

func TestManagerThrottlesConcurrentRequests(t *testing.T) {
	m := NewManager(&Config{Enabled: true, RequestsPerSecond: 100, Burst: 100, MaxConcurrent: 1})
	defer m.Stop()
	entered := make(chan struct{})
	unblock := make(chan struct{})
	router := newRouter(m.Middleware(), func(c *gin.Context) {
		entered <- struct{}{}
		<-unblock
		c.Status(http.StatusOK)
	})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		get(router, "10.0.0.1")
	}()
	<-entered

	assert.Equal(t, http.StatusServiceUnavailable, get(router, "10.0.0.2").Code)
	close(unblock)
	wg.Wait()
}

func TestManagerWhitelistAndDisabled(t *testing.T) {
	m := NewManager(&Config{
		Enabled:           true,
		RequestsPerSecond: 1,
		Burst:             1,
		MaxConcurrent:     10,
		WhitelistedIPs:    []string{"127.0.0.1"},
	})
	defer m.Stop()
	router := newRouter(m.Middleware(), func(c *gin.Context) { c.Status(http.StatusOK) })

	for i := 0; i < 5; i++ {
		assert.Equal(t, http.StatusOK, get(router, "127.0.0.1").Code)
	}
	assert.Equal(t, http.StatusOK, get(router, "10.0.0.9").Code)
	assert.Equal(t, http.StatusTooManyRequests, get(router, "10.0.0.9").Code)

	off := NewManager(&Config{Enabled: false})
	router = newRouter(off.Middleware(), func(c *gin.Context) { c.Status(http.StatusOK) })
	for i := 0; i < 5; i++ {
		assert.Equal(t, http.StatusOK, get(router, "10.0.0.9").Code)
	}
}
