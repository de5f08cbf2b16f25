package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dafibh/loanbook/loanbook-backend/internal/config"
	"github.com/dafibh/loanbook/loanbook-backend/internal/domain"
	"github.com/dafibh/loanbook/loanbook-backend/internal/handler"
	"github.com/dafibh/loanbook/loanbook-backend/internal/middleware"
	"github.com/dafibh/loanbook/loanbook-backend/internal/repository/failover"
	"github.com/dafibh/loanbook/loanbook-backend/internal/repository/memory"
	"github.com/dafibh/loanbook/loanbook-backend/internal/repository/postgres"
	"github.com/dafibh/loanbook/loanbook-backend/internal/repository/sqlite"
	"github.com/dafibh/loanbook/loanbook-backend/internal/repository/storage"
	"github.com/dafibh/loanbook/loanbook-backend/internal/service"
	"github.com/dafibh/loanbook/loanbook-backend/internal/websocket"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// @title Loanbook API
// @version 1.0
// @description Loan ledger API: loans, payments, penalties and live loan events.
// @host localhost:8080
// @BasePath /api
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and the access token.
func main() {
	// Initialize zerolog
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if os.Getenv("ENV") != "production" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Open the durable store, if any
	primary, unavailable, closePrimary := openPrimary(cfg)
	defer closePrimary()

	// Route storage calls to the primary while it is healthy, otherwise to memory
	var monitor *failover.Monitor
	var health failover.HealthReporter
	if primary != nil {
		monitor = failover.NewMonitor(primary, log.Logger, failover.MonitorConfig{
			Interval: cfg.StorageCheckInterval,
		})
		monitor.Check(context.Background())
		monitor.Start(context.Background())
		health = monitor
	}
	loanStore := failover.NewStore(primary, cfg.PrimaryBackend(), memory.NewLoanRepository(), "memory", health, unavailable)
	log.Info().Str("backend", loanStore.Backend()).Msg("Storage ready")

	// Optional archive of deleted loans
	var archiver domain.LoanArchiver
	if cfg.ArchiveEnabled() {
		archive, err := storage.NewS3LoanArchive(context.Background(), cfg.S3)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize loan archive")
		}
		archiver = archive
		log.Info().Str("bucket", cfg.S3.Bucket).Msg("Loan archive enabled")
	}

	// Live loan events
	hub := websocket.NewHub()

	// Initialize services
	loanService := service.NewLoanService(loanStore, archiver)
	loanService.SetEventPublisher(hub)

	// Rate limiter for mutating routes
	rateLimiter := middleware.NewRateLimiterWithConfig(cfg.RateLimit.PerMinute, cfg.RateLimit.Burst)
	defer rateLimiter.Stop()

	// Initialize auth middleware when configured
	var authMiddleware *middleware.AuthMiddleware
	if cfg.AuthEnabled() {
		authMiddleware, err = middleware.NewAuthMiddleware(cfg.Auth0Domain, cfg.Auth0Audience)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create auth middleware")
		}
	} else {
		log.Warn().Msg("Auth0 not configured, mutating routes are open")
	}

	// Initialize handlers
	healthHandler := handler.NewHealthHandler(loanStore)
	openAPIHandler := handler.NewOpenAPIHandler(cfg.PublicURLs)
	loanHandler := handler.NewLoanHandler(loanService)
	wsHandler := handler.NewWebSocketHandler(hub, cfg.CORSOrigins)

	// Create Echo instance
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Request ID middleware
	e.Use(echomiddleware.RequestID())

	// CORS middleware
	e.Use(echomiddleware.CORSWithConfig(echomiddleware.CORSConfig{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	// Security headers middleware
	e.Use(echomiddleware.SecureWithConfig(echomiddleware.SecureConfig{
		XSSProtection:      "1; mode=block",
		ContentTypeNosniff: "nosniff",
		XFrameOptions:      "DENY",
		HSTSMaxAge:         31536000,
		ReferrerPolicy:     "strict-origin-when-cross-origin",
	}))

	// Request logging middleware
	e.Use(middleware.RequestLogger(log.Logger))

	// Recovery middleware
	e.Use(echomiddleware.Recover())

	// Register API routes
	handler.RegisterRoutes(e, authMiddleware, rateLimiter, healthHandler, openAPIHandler, loanHandler, wsHandler)

	// Start server in goroutine
	go func() {
		log.Info().Str("port", cfg.Port).Msg("Starting server")
		if err := e.Start(":" + cfg.Port); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	if monitor != nil {
		monitor.Stop()
	}

	log.Info().Msg("Server exited")
}

// openPrimary opens the configured durable store. An unreachable store is
// still returned; the monitor routes around it until it answers.
func openPrimary(cfg *config.Config) (domain.LoanRepository, failover.Classifier, func()) {
	switch cfg.PrimaryBackend() {
	case "postgres":
		pool, err := pgxpool.New(context.Background(), cfg.DatabaseURL)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to parse database configuration")
		}
		repo := postgres.NewLoanRepository(pool)

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := repo.EnsureSchema(ctx); err != nil {
			log.Warn().Err(err).Msg("Postgres unreachable at startup, serving from memory")
		} else {
			log.Info().Msg("Connected to database")
		}
		return repo, postgres.IsUnavailable, pool.Close

	case "sqlite":
		repo, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			log.Fatal().Err(err).Str("path", cfg.SQLitePath).Msg("Failed to open SQLite database")
		}
		log.Info().Str("path", cfg.SQLitePath).Msg("Opened SQLite database")
		return repo, sqlite.IsUnavailable, func() {
			if err := repo.Close(); err != nil {
				log.Error().Err(err).Msg("Failed to close SQLite database")
			}
		}

	default:
		log.Warn().Msg("No database configured, loans are kept in memory only")
		return nil, nil, func() {}
	}
}
