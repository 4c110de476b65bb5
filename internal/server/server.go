// Package server
//
// @title Morning AI API
// @version 1.0
// @description Control plane API for monitoring and approving automated infrastructure decisions
// @host localhost:8080
// @BasePath /
package server

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/morningai/morningai/internal/assert"
	"github.com/morningai/morningai/internal/audit"
	"github.com/morningai/morningai/internal/auth"
	"github.com/morningai/morningai/internal/cache"
	"github.com/morningai/morningai/internal/config"
	"github.com/morningai/morningai/internal/database"
	"github.com/morningai/morningai/internal/decisions"
	"github.com/morningai/morningai/internal/mailer"
	"github.com/morningai/morningai/internal/metrics"
	"github.com/morningai/morningai/internal/models"
	"github.com/morningai/morningai/internal/sysinfo"
	"github.com/morningai/morningai/internal/tasks"
	"github.com/morningai/morningai/internal/tokens"
	"github.com/morningai/morningai/internal/twofactor"
	"github.com/morningai/morningai/internal/users"
	"github.com/morningai/morningai/internal/verification"
)

// Deps are the external resources a Server runs on
type Deps struct {
	DB *gorm.DB
	// Optional. Enables the blacklist fast path and the readiness probe.
	Redis *redis.Client
	// Optional. Without it, overdue decisions wait for the worker's sweep.
	Scheduler decisions.Scheduler
	// Optional. Defaults to reading /proc and the working directory's filesystem.
	SysInfo *sysinfo.Reader
	// Optional. Defaults to SMTP from cfg.Mail, or logging when no host is set.
	Mailer mailer.Mailer
}

// Server represents the HTTP server
type Server struct {
	router      *gin.Engine
	db          *gorm.DB
	redis       *redis.Client
	config      *config.Config
	logger      zerolog.Logger
	asynqClient *asynq.Client
	version     string
	startedAt   time.Time
	now         func() time.Time

	tokens    *auth.TokenManager
	users     *users.Service
	blacklist *tokens.Service
	audit     *audit.Service
	verify    *verification.Service
	decisions *decisions.Service
	metrics   *metrics.Metrics
	sysinfo   *sysinfo.Reader
	stats     *requestStats
}

// New opens the database and Redis from cfg and creates a server on them
func New(cfg *config.Config, zlog zerolog.Logger, version string) (*Server, error) {
	db, err := database.Open(cfg.Database, zlog)
	if err != nil {
		return nil, err
	}

	deps := Deps{DB: db}

	redisClient, err := cache.NewRedisClient(context.Background(), cfg.Redis)
	if err != nil {
		// The API still works without Redis; the blacklist falls back to the database
		zlog.Warn().Err(err).Str("address", cfg.Redis.Address).Msg("Redis unavailable - running without cache")
	} else {
		deps.Redis = redisClient
	}

	// Initialize Asynq client for enqueueing tasks
	asynqClient := asynq.NewClient(asynq.RedisClientOpt{
		Addr:     cfg.Redis.Address,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	deps.Scheduler = tasks.NewScheduler(asynqClient)

	server, err := NewWithDeps(cfg, zlog, version, deps)
	if err != nil {
		_ = asynqClient.Close()
		return nil, err
	}
	server.asynqClient = asynqClient
	return server, nil
}

// NewWithDeps creates a server on already opened resources
func NewWithDeps(cfg *config.Config, zlog zerolog.Logger, version string, deps Deps) (*Server, error) {
	if deps.DB == nil {
		return nil, errors.New("server requires a database")
	}

	secret, err := resolveJWTSecret(deps.DB, cfg.Auth.JWTSecret, zlog)
	if err != nil {
		return nil, err
	}

	var blacklistCache tokens.Cache
	if deps.Redis != nil {
		blacklistCache = tokens.NewRedisCache(deps.Redis)
	}

	sysReader := deps.SysInfo
	if sysReader == nil {
		sysReader = sysinfo.NewReader(".")
	}

	mail := deps.Mailer
	if mail == nil {
		mail = mailer.New(cfg.Mail, zlog)
	}

	issuer := cfg.Auth.TOTPIssuer
	if issuer == "" {
		issuer = "MorningAI"
	}

	registerValidators()

	server := &Server{
		db:        deps.DB,
		redis:     deps.Redis,
		config:    cfg,
		logger:    zlog,
		version:   version,
		startedAt: time.Now(),
		now:       time.Now,
		tokens:    auth.NewTokenManager(secret, cfg.Auth.TokenExpiration),
		users:     users.NewService(deps.DB, twofactor.NewService(issuer), zlog),
		blacklist: tokens.NewService(deps.DB, blacklistCache, zlog),
		audit:     audit.NewService(deps.DB, zlog),
		verify:    verification.NewService(deps.DB, mail, cfg.Mail.PublicURL, cfg.Mail.VerificationTTL, zlog),
		decisions: decisions.NewService(deps.DB, deps.Scheduler, zlog),
		metrics:   metrics.New(),
		sysinfo:   sysReader,
		stats:     &requestStats{},
	}

	// Setup router
	server.setupRouter()

	return server, nil
}

// resolveJWTSecret prefers the configured secret, then the persisted one,
// and generates and persists a new one on first boot
func resolveJWTSecret(db *gorm.DB, configured string, zlog zerolog.Logger) (string, error) {
	if configured != "" {
		return configured, nil
	}

	var cfg models.Config
	err := db.First(&cfg).Error
	if err == nil && cfg.JWTSecret != "" {
		zlog.Debug().Msg("Loaded JWT secret from database")
		return cfg.JWTSecret, nil
	}
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return "", fmt.Errorf("failed to load config: %w", err)
	}

	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate JWT secret: %w", err)
	}
	cfg.JWTSecret = hex.EncodeToString(buf)
	assert.Length("generated JWT secret", cfg.JWTSecret, 64)
	if err := db.Save(&cfg).Error; err != nil {
		return "", fmt.Errorf("failed to persist JWT secret: %w", err)
	}

	zlog.Info().Msg("Generated and persisted a new JWT secret")
	return cfg.JWTSecret, nil
}

// setupRouter configures the Gin router with routes and middleware
func (s *Server) setupRouter() {
	// Set Gin mode based on environment
	gin.SetMode(gin.ReleaseMode)

	s.router = gin.New()

	// Add middleware
	s.router.Use(gin.Recovery())
	s.router.Use(s.requestMiddleware())
	s.router.Use(s.metricsMiddleware())

	origins := s.config.Server.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:5173"}
	}
	s.router.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Length", "Content-Type", "Authorization", requestIDHeader},
		ExposeHeaders:    []string{"Content-Length", requestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	// Probes (no auth required)
	s.router.GET("/health", s.healthCheck)
	s.router.GET("/readiness", s.readinessCheck)
	s.router.GET("/metrics", gin.WrapH(s.metrics.Handler()))

	// Public auth endpoints (no auth required)
	s.router.POST("/api/register", s.register)
	s.router.POST("/api/login", s.login)
	s.router.GET("/api/auth/verify/:token", s.verifyEmail)
	s.router.GET("/api/auth/verify", s.verifyEmail)

	// Authenticated API routes (JWT required)
	api := s.router.Group("/api")
	api.Use(JWTAuthMiddleware(s.tokens, s.blacklist, s.db, s.logger))
	{
		// Session
		api.GET("/verify", s.verifyToken)
		api.GET("/profile", s.getProfile)
		api.PUT("/profile", s.updateProfile)
		api.POST("/auth/logout", s.logout)
		api.POST("/auth/logout-all", s.logoutAll)
		api.POST("/auth/revoke-token", s.revokeToken)

		// Email verification
		api.POST("/auth/send-verification", s.sendVerification)
		api.GET("/auth/email-status", s.emailStatus)

		// Two-factor authentication
		api.POST("/auth/2fa/setup", s.setupTwoFactor)
		api.POST("/auth/2fa/enable", s.enableTwoFactor)
		api.POST("/auth/2fa/disable", s.disableTwoFactor)
		api.GET("/auth/2fa/status", s.twoFactorStatus)

		// Dashboard
		api.GET("/system/metrics", s.getSystemMetrics)

		api.GET("/audit-logs/my", s.myAuditLogs)

		// Decision approval
		api.GET("/decisions", s.listDecisions)
		api.GET("/decisions/:id", s.getDecision)
		api.POST("/decisions", AdminOnlyMiddleware(s.logger), s.createDecision)
		api.POST("/decisions/:id/approve", s.approveDecision)
		api.POST("/decisions/:id/reject", s.rejectDecision)

		// Administration
		admin := api.Group("/admin")
		admin.Use(AdminOnlyMiddleware(s.logger))
		{
			admin.GET("/users", s.listUsers)
			admin.GET("/users/:id", s.getUser)
			admin.PUT("/users/:id/role", s.updateUserRole)
			admin.PUT("/users/:id/status", s.updateUserStatus)

			admin.GET("/blacklist", s.listBlacklist)
			admin.POST("/blacklist/cleanup", s.cleanupBlacklist)

			admin.GET("/audit-logs", s.listAuditLogs)
			admin.GET("/audit-logs/stats", s.auditStats)
			admin.POST("/audit-logs/cleanup", s.cleanupAuditLogs)
			admin.POST("/audit-logs/export", s.exportAuditLogs)
		}
	}
}

// @Router /health [get]
// @Success 200 {object} map[string]interface{}
func (s *Server) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "online",
		"timestamp": time.Now().UTC(),
		"service":   "morningai-api",
		"version":   s.version,
	})
}

// @Summary Readiness probe
// @Description Checks the database and, when configured, Redis in parallel
// @Tags system
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 503 {object} map[string]interface{}
// @Router /readiness [get]
func (s *Server) readinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	checks := map[string]string{"database": "ok"}
	var dbErr, redisErr error

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		sqlDB, err := s.db.DB()
		if err == nil {
			err = sqlDB.PingContext(gctx)
		}
		dbErr = err
		return err
	})
	if s.redis != nil {
		checks["redis"] = "ok"
		g.Go(func() error {
			redisErr = s.redis.Ping(gctx).Err()
			return redisErr
		})
	}

	if err := g.Wait(); err != nil {
		if dbErr != nil {
			checks["database"] = dbErr.Error()
		}
		if redisErr != nil {
			checks["redis"] = redisErr.Error()
		}
		s.logger.Warn().Err(err).Msg("Readiness check failed")
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready", "checks": checks})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ready", "checks": checks})
}

// Router exposes the HTTP handler, mainly for tests
func (s *Server) Router() http.Handler {
	return s.router
}

// GetDB returns the database connection for use by workers
func (s *Server) GetDB() *gorm.DB {
	return s.db
}

// Start starts the HTTP server and blocks until SIGINT or SIGTERM
func (s *Server) Start() error {
	port := ":" + s.config.Server.Port

	// Setup signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	srv := &http.Server{
		Addr:              port,
		Handler:           s.router,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// Start server in goroutine
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("port", port).Msg("Starting HTTP server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error().Err(err).Msg("HTTP server error")
			errCh <- err
		}
	}()

	// Wait for shutdown signal
	select {
	case <-sigChan:
		s.logger.Info().Msg("Received shutdown signal, shutting down gracefully...")
	case err := <-errCh:
		s.Close()
		return err
	}

	// Shutdown HTTP server with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	s.logger.Info().Msg("Shutting down HTTP server...")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.logger.Error().Err(err).Msg("Error shutting down HTTP server")
		return err
	}

	s.Close()
	s.logger.Info().Msg("Server shutdown complete")
	return nil
}

// Close releases the queue client, Redis and the database
func (s *Server) Close() {
	if s.asynqClient != nil {
		if err := s.asynqClient.Close(); err != nil {
			s.logger.Warn().Err(err).Msg("Error closing Asynq client")
		}
	}
	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			s.logger.Warn().Err(err).Msg("Error closing Redis client")
		}
	}

	// Close database connection to flush WAL writes
	s.logger.Info().Msg("Closing database connection...")
	if err := database.Close(s.db); err != nil {
		s.logger.Error().Err(err).Msg("Error closing database")
	}
}
