package monitor

import (
	"net/http"
	"os"
	"runtime"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"video-parser/pkg/models"
)

const namespace = "video_parser"

// Metrics represents all the application metrics
type Metrics struct {
	// Parse metrics
	ParsesTotal   *prometheus.CounterVec
	ParseDuration *prometheus.HistogramVec
	ActiveParses  prometheus.Gauge

	// Upstream metrics
	UpstreamRequests *prometheus.CounterVec
	UpstreamDuration *prometheus.HistogramVec
	StrategyHits     *prometheus.CounterVec

	// Proxy metrics
	ProxyRequests *prometheus.CounterVec
	ProxyBytes    *prometheus.CounterVec

	// HTTP metrics
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	// System metrics
	Goroutines  prometheus.Gauge
	MemoryUsage prometheus.Gauge
}

// NewMetrics registers the application metrics with reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ParsesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "parses_total",
				Help:      "Parse requests by platform and outcome",
			},
			[]string{"platform", "outcome"},
		),

		ParseDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "parse_duration_seconds",
				Help:      "Time spent parsing a share link",
				Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
			[]string{"platform"},
		),

		ActiveParses: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_parses",
			Help:      "Number of parses in flight",
		}),

		UpstreamRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "upstream_requests_total",
				Help:      "Requests to platform hosts by stage and result",
			},
			[]string{"platform", "stage", "result"},
		),

		UpstreamDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "upstream_duration_seconds",
				Help:      "Time spent on requests to platform hosts",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"platform", "stage"},
		),

		StrategyHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "strategy_hits_total",
				Help:      "Extraction strategy that produced the record, none when all missed",
			},
			[]string{"platform", "source"},
		),

		ProxyRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "proxy_requests_total",
				Help:      "Proxied media requests by upstream host and status",
			},
			[]string{"host", "status"},
		),

		ProxyBytes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "proxy_bytes_total",
				Help:      "Bytes streamed through the media proxy",
			},
			[]string{"host"},
		),

		HTTPRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "API requests by route and status",
			},
			[]string{"method", "route", "status"},
		),

		HTTPDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "API request latency",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),

		Goroutines: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "goroutines",
			Help:      "Number of goroutines",
		}),

		MemoryUsage: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "memory_usage_bytes",
			Help:      "Memory usage in bytes",
		}),
	}
}

// Monitor records parse, upstream and proxy metrics on its own registry
type Monitor struct {
	registry *prometheus.Registry
	metrics  *Metrics
	logger   zerolog.Logger
	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewMonitor creates a new monitor instance
func NewMonitor() *Monitor {
	reg := prometheus.NewRegistry()
	return &Monitor{
		registry: reg,
		metrics:  NewMetrics(reg),
		logger:   zerolog.New(os.Stdout).With().Timestamp().Str("component", "monitor").Logger(),
		stopChan: make(chan struct{}),
	}
}

// Start starts the system metrics collector
func (m *Monitor) Start() {
	m.wg.Add(1)
	go m.collectSystemMetrics()

	m.logger.Info().Msg("Monitoring system started")
}

// Stop stops the collector. It is safe to call more than once.
func (m *Monitor) Stop() {
	m.stopOnce.Do(func() {
		close(m.stopChan)
		m.wg.Wait()
		m.logger.Info().Msg("Monitoring system stopped")
	})
}

// collectSystemMetrics collects system metrics periodically
func (m *Monitor) collectSystemMetrics() {
	defer m.wg.Done()

	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	m.sampleSystem()
	for {
		select {
		case <-ticker.C:
			m.sampleSystem()
		case <-m.stopChan:
			return
		}
	}
}

func (m *Monitor) sampleSystem() {
	m.metrics.Goroutines.Set(float64(runtime.NumGoroutine()))

	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)
	m.metrics.MemoryUsage.Set(float64(memStats.Alloc))
}

// ObserveFetch records an upstream call
func (m *Monitor) ObserveFetch(platform models.Platform, stage string, ok bool, elapsed time.Duration) {
	result := "ok"
	if !ok {
		result = "error"
	}
	m.metrics.UpstreamRequests.WithLabelValues(string(platform), stage, result).Inc()
	m.metrics.UpstreamDuration.WithLabelValues(string(platform), stage).Observe(elapsed.Seconds())
}

// ObserveStrategy records which extraction strategy produced a record
func (m *Monitor) ObserveStrategy(platform models.Platform, source string) {
	if source == "" {
		source = "none"
	}
	m.metrics.StrategyHits.WithLabelValues(string(platform), source).Inc()
}

// ParseStarted marks a parse in flight
func (m *Monitor) ParseStarted() {
	m.metrics.ActiveParses.Inc()
}

// RecordParse records a finished parse. A nil err counts as success.
func (m *Monitor) RecordParse(platform models.Platform, err error, duration time.Duration) {
	outcome := "success"
	if err != nil {
		outcome = string(models.KindOf(err))
	}
	m.metrics.ActiveParses.Dec()
	m.metrics.ParsesTotal.WithLabelValues(string(platform), outcome).Inc()
	m.metrics.ParseDuration.WithLabelValues(string(platform)).Observe(duration.Seconds())
}

// RecordProxy records one proxied response and the bytes streamed for it
func (m *Monitor) RecordProxy(host string, status int, bytes int64) {
	m.metrics.ProxyRequests.WithLabelValues(host, strconv.Itoa(status)).Inc()
	if bytes > 0 {
		m.metrics.ProxyBytes.WithLabelValues(host).Add(float64(bytes))
	}
}

// RecordHTTPRequest records an API request
func (m *Monitor) RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	m.metrics.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.metrics.HTTPDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// GetMetrics returns all metrics
func (m *Monitor) GetMetrics() *Metrics {
	return m.metrics
}

// Registry returns the registry the metrics live on
func (m *Monitor) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format
func (m *Monitor) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// SetLogger sets the logger
func (m *Monitor) SetLogger(logger zerolog.Logger) {
	m.logger = logger
}

// HealthCheck reports runtime statistics
func (m *Monitor) HealthCheck() map[string]interface{} {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	return map[string]interface{}{
		"goroutines":   runtime.NumGoroutine(),
		"memory_usage": memStats.Alloc,
		"memory_sys":   memStats.Sys,
		"gc_cycles":    memStats.NumGC,
	}
}

// Middleware records API request metrics for a gin router
type Middleware struct {
	monitor *Monitor
}

// NewMiddleware creates a new monitoring middleware
func NewMiddleware(monitor *Monitor) *Middleware {
	return &Middleware{
		monitor: monitor,
	}
}

// Handler returns the gin handler. Routes are labeled by their pattern, not the raw path.
func (mw *Middleware) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		mw.monitor.RecordHTTPRequest(c.Request.Method, route, c.Writer.Status(), time.Since(start))
	}
}
