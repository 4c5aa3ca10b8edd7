package ratelimit

import (
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

const visitorTTL = time.Hour

// RateLimiter keeps one token bucket per client IP
type RateLimiter struct {
	rps      int
	burst    int
	visitors map[string]*Visitor
	mu       sync.Mutex
	once     sync.Once
	stopOnce sync.Once
	stop     chan struct{}
	logger   zerolog.Logger
}

// Visitor represents a visitor with rate limiting info
type Visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter creates a limiter allowing rps requests per second per IP
func NewRateLimiter(rps, burst int) *RateLimiter {
	if rps <= 0 {
		rps = 1
	}
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{
		rps:      rps,
		burst:    burst,
		visitors: make(map[string]*Visitor),
		stop:     make(chan struct{}),
		logger:   zerolog.New(os.Stdout).With().Timestamp().Str("component", "ratelimit").Logger(),
	}
}

// Allow reports whether key may make a request now
func (rl *RateLimiter) Allow(key string) (bool, *rate.Limiter) {
	rl.once.Do(func() { go rl.cleanupVisitors() })

	limiter := rl.getLimiter(key)
	return limiter.Allow(), limiter
}

// check applies the limiter and aborts the request when it is over the limit
func (rl *RateLimiter) check(c *gin.Context) bool {
	ip := c.ClientIP()
	ok, limiter := rl.Allow(ip)
	if !ok {
		rl.logger.Warn().Str("ip", ip).Msg("Rate limit exceeded")
		c.Header("Retry-After", "1")
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"code": http.StatusTooManyRequests,
			"msg":  "请求过于频繁，请稍后再试",
		})
		return false
	}

	// Add rate limit headers
	c.Header("X-RateLimit-Limit", strconv.Itoa(rl.rps))
	c.Header("X-RateLimit-Remaining", strconv.Itoa(int(limiter.Tokens())))
	return true
}

// getLimiter gets or creates a limiter for a visitor
func (rl *RateLimiter) getLimiter(ip string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	v, exists := rl.visitors[ip]
	if !exists {
		limiter := rate.NewLimiter(rate.Limit(rl.rps), rl.burst)
		rl.visitors[ip] = &Visitor{
			limiter:  limiter,
			lastSeen: time.Now(),
		}
		return limiter
	}

	v.lastSeen = time.Now()
	return v.limiter
}

// cleanupVisitors removes visitors idle for longer than visitorTTL
func (rl *RateLimiter) cleanupVisitors() {
	ticker := time.NewTicker(visitorTTL / 4)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.evict(time.Now().Add(-visitorTTL))
		case <-rl.stop:
			return
		}
	}
}

func (rl *RateLimiter) evict(before time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	for ip, v := range rl.visitors {
		if v.lastSeen.Before(before) {
			delete(rl.visitors, ip)
		}
	}
}

// Stop ends the cleanup loop
func (rl *RateLimiter) Stop() {
	rl.once.Do(func() {})
	rl.stopOnce.Do(func() { close(rl.stop) })
}

// Throttler caps the number of requests served at once
type Throttler struct {
	requests chan struct{}
	logger   zerolog.Logger
}

// NewThrottler creates a new throttler
func NewThrottler(maxConcurrent int) *Throttler {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &Throttler{
		requests: make(chan struct{}, maxConcurrent),
		logger:   zerolog.New(os.Stdout).With().Timestamp().Str("component", "throttle").Logger(),
	}
}

// Acquire takes a slot without waiting; release must be called when it succeeds
func (t *Throttler) Acquire() (release func(), ok bool) {
	select {
	case t.requests <- struct{}{}:
		return func() { <-t.requests }, true
	default:
		return nil, false
	}
}

func (t *Throttler) acquireOrReject(c *gin.Context) (func(), bool) {
	release, ok := t.Acquire()
	if !ok {
		t.logger.Warn().Msg("Server overloaded")
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{
			"code": http.StatusServiceUnavailable,
			"msg":  "服务器繁忙，请稍后再试",
		})
	}
	return release, ok
}

// IPWhitelist represents a whitelist of IPs that bypass rate limiting
type IPWhitelist struct {
	ips map[string]bool
	mu  sync.RWMutex
}

// NewIPWhitelist creates a new IP whitelist
func NewIPWhitelist() *IPWhitelist {
	return &IPWhitelist{
		ips: make(map[string]bool),
	}
}

// Add adds an IP to the whitelist
func (w *IPWhitelist) Add(ip string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.ips[ip] = true
}

// Contains checks if an IP is in the whitelist
func (w *IPWhitelist) Contains(ip string) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.ips[ip]
}

// Config represents rate limiting configuration
type Config struct {
	Enabled           bool
	RequestsPerSecond int
	Burst             int
	MaxConcurrent     int
	WhitelistedIPs    []string
}

// Manager combines the per-IP limiter, the concurrency cap and the whitelist
type Manager struct {
	rateLimiter *RateLimiter
	throttler   *Throttler
	whitelist   *IPWhitelist
	config      *Config
}

// NewManager creates a new rate limiting manager
func NewManager(config *Config) *Manager {
	m := &Manager{
		config:    config,
		whitelist: NewIPWhitelist(),
	}

	if config.Enabled {
		m.rateLimiter = NewRateLimiter(config.RequestsPerSecond, config.Burst)
		m.throttler = NewThrottler(config.MaxConcurrent)

		// Add whitelisted IPs
		for _, ip := range config.WhitelistedIPs {
			m.whitelist.Add(ip)
		}
	}

	return m
}

// Middleware returns the appropriate middleware based on configuration
func (m *Manager) Middleware() gin.HandlerFunc {
	if !m.config.Enabled {
		return func(c *gin.Context) { c.Next() }
	}

	return func(c *gin.Context) {
		// Check whitelist first
		if m.whitelist.Contains(c.ClientIP()) {
			c.Next()
			return
		}

		release, ok := m.throttler.acquireOrReject(c)
		if !ok {
			return
		}
		defer release()

		if !m.rateLimiter.check(c) {
			return
		}
		c.Next()
	}
}

// Stop releases background resources
func (m *Manager) Stop() {
	if m.rateLimiter != nil {
		m.rateLimiter.Stop()
	}
}
