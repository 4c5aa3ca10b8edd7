package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"video-parser/internal/monitor"
	"video-parser/internal/proxy"
	"video-parser/internal/ratelimit"
	"video-parser/internal/registry"
	"video-parser/internal/share"
	"video-parser/pkg/models"
)

// Version is reported by the health endpoint
const Version = "1.0.0"

// Server represents the API server
type Server struct {
	config       *models.Config
	registry     *registry.Registry
	monitor      *monitor.Monitor
	rateLimitMgr *ratelimit.Manager
	proxy        *proxy.Handler
	httpServer   *http.Server
	logger       zerolog.Logger
}

// NewServer creates a new API server. The registry's parsers should report to mon.
func NewServer(cfg *models.Config, reg *registry.Registry, mon *monitor.Monitor) *Server {
	// Set Gin mode
	if cfg.Log.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	// Create rate limit manager
	rateLimitConfig := &ratelimit.Config{
		Enabled:           cfg.RateLimit.Enabled,
		RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
		Burst:             cfg.RateLimit.Burst,
		MaxConcurrent:     cfg.RateLimit.MaxConcurrent,
		WhitelistedIPs:    cfg.RateLimit.WhitelistedIPs,
	}

	return &Server{
		config:       cfg,
		registry:     reg,
		monitor:      mon,
		rateLimitMgr: ratelimit.NewManager(rateLimitConfig),
		proxy:        proxy.NewHandler(cfg.ExtractorConfig(""), proxy.WithRecorder(mon)),
		logger:       zerolog.New(os.Stdout).With().Timestamp().Str("component", "server").Logger(),
	}
}

// SetLogger sets the logger for the server and the components it owns
func (s *Server) SetLogger(logger zerolog.Logger) {
	s.logger = logger.With().Str("component", "server").Logger()
	s.proxy.SetLogger(logger)
}

// Router builds the gin engine with every route and middleware attached
func (s *Server) Router() *gin.Engine {
	router := gin.New()

	router.Use(s.requestLogger())
	router.Use(gin.CustomRecovery(s.recoverPanic))
	router.Use(s.corsMiddleware())
	router.Use(monitor.NewMiddleware(s.monitor).Handler())

	s.setupRoutes(router)
	return router
}

// Start starts the API server
func (s *Server) Start() error {
	s.monitor.Start()

	// Create HTTP server
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port),
		Handler:      s.Router(),
		ReadTimeout:  time.Duration(s.config.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(s.config.Server.WriteTimeout) * time.Second,
	}

	// Start server
	go func() {
		s.logger.Info().Str("address", s.httpServer.Addr).Msg("Starting API server")
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Fatal().Err(err).Msg("Error starting server")
		}
	}()

	return nil
}

// Stop stops the API server
func (s *Server) Stop() error {
	s.logger.Info().Msg("Stopping API server...")

	// Create context with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	s.monitor.Stop()
	s.rateLimitMgr.Stop()

	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.logger.Error().Err(err).Msg("Error shutting down server")
			return err
		}
	}

	s.logger.Info().Msg("API server stopped")
	return nil
}

// Run runs the server with signal handling
func (s *Server) Run() error {
	// Start server
	if err := s.Start(); err != nil {
		return err
	}

	// Set up signal handling
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Wait for signal
	<-sigChan

	// Stop server
	return s.Stop()
}

// setupRoutes sets up the API routes
func (s *Server) setupRoutes(router *gin.Engine) {
	// Health check
	router.GET("/health", s.healthCheck)

	// Metrics endpoint
	router.GET("/metrics", gin.WrapH(s.monitor.Handler()))

	// Apply rate limiting to all API routes
	api := router.Group("/api")
	api.Use(s.rateLimitMgr.Middleware())
	{
		for _, p := range models.AllPlatforms {
			api.GET("/"+string(p), s.parsePlatform(p))
		}
		api.GET("/parse", s.parseText)
		api.GET("/platforms", s.listPlatforms)

		api.GET("/proxy", s.proxy.Serve)
		api.OPTIONS("/proxy", s.proxy.Options)
	}
}

// Health check handler
func (s *Server) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"timestamp": time.Now().Unix(),
		"version":   Version,
		"platforms": s.registry.Count(),
		"runtime":   s.monitor.HealthCheck(),
	})
}

// parsePlatform serves GET /api/<platform>?url=
func (s *Server) parsePlatform(p models.Platform) gin.HandlerFunc {
	return func(c *gin.Context) {
		parser, err := s.registry.GetParser(p)
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{
				"code":     http.StatusNotFound,
				"msg":      "平台未启用",
				"platform": p,
			})
			return
		}
		s.respond(c, parser, c.Query("url"))
	}
}

// parseText serves GET /api/parse?text=, detecting the platform from share text
func (s *Server) parseText(c *gin.Context) {
	text := c.Query("text")
	if text == "" {
		text = c.Query("url")
	}
	if text == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"code": http.StatusBadRequest,
			"msg":  "未提供 text 参数",
		})
		return
	}

	parser, _, err := s.registry.GetParserForText(text)
	if err != nil {
		s.logger.Debug().Err(err).Msg("No parser for share text")
		c.JSON(http.StatusBadRequest, gin.H{
			"code": http.StatusBadRequest,
			"msg":  "未找到支持的分享链接",
		})
		return
	}
	s.respond(c, parser, share.ExtractURL(text))
}

// respond runs one parse and writes the platform's envelope. A panic inside
// the parser becomes the platform's internal reply.
func (s *Server) respond(c *gin.Context, parser models.Parser, rawURL string) {
	p := parser.Platform()
	codes := parser.Codes()

	if rawURL == "" {
		status, resp := codes.Respond(nil, models.ErrMissingURL)
		c.JSON(status, resp)
		return
	}

	s.monitor.ParseStarted()
	start := time.Now()

	data, err := s.safeParse(c.Request.Context(), parser, rawURL)
	s.monitor.RecordParse(p, err, time.Since(start))

	if err != nil {
		s.logger.Warn().Err(err).Str("platform", string(p)).Str("url", rawURL).
			Str("kind", string(models.KindOf(err))).Msg("Parse failed")
	}

	status, resp := codes.Respond(data, err)
	c.JSON(status, resp)
}

func (s *Server) safeParse(ctx context.Context, parser models.Parser, rawURL string) (data interface{}, err error) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().Str("platform", string(parser.Platform())).Interface("panic", r).Msg("Parser panicked")
			data = nil
			err = models.NewParseError(models.KindInternal, parser.Platform(), rawURL, fmt.Sprint(r))
		}
	}()
	return parser.Parse(ctx, rawURL)
}

// listPlatforms returns the registered platforms and their link patterns
func (s *Server) listPlatforms(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"code": http.StatusOK,
		"msg":  "success",
		"data": s.registry.GetPlatformInfo(),
	})
}

// recoverPanic answers requests whose handler panicked outside a parse
func (s *Server) recoverPanic(c *gin.Context, recovered interface{}) {
	s.logger.Error().Interface("panic", recovered).Str("path", c.Request.URL.Path).Msg("Handler panicked")
	c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
		"code": http.StatusInternalServerError,
		"msg":  "服务器错误",
	})
}

// requestLogger writes one line per request
func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		s.logger.Debug().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Str("ip", c.ClientIP()).
			Msg("Request")
	}
}

// CORS middleware
func (s *Server) corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Range")
		c.Header("Access-Control-Expose-Headers", "Content-Length, Content-Range, Content-Disposition")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
