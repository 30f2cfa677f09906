// ===========================================
// Shortlink - Main Entry Point
// ===========================================
// This is where everything comes together.
//
// RESPONSIBILITY:
// 1. Load configuration
// 2. Initialize dependencies (DB, Redis, upstreams)
// 3. Set up HTTP server with middleware
// 4. Start background jobs
// 5. Handle graceful shutdown
//
// DESIGN PRINCIPLE: "Fail Fast at Startup"
// If any critical dependency fails, crash immediately.
// Better to fail during deployment than serve broken requests.
// ===========================================

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/user/shortlink/internal/auth"
	"github.com/user/shortlink/internal/captcha"
	"github.com/user/shortlink/internal/clientip"
	"github.com/user/shortlink/internal/config"
	"github.com/user/shortlink/internal/database"
	"github.com/user/shortlink/internal/geoip"
	"github.com/user/shortlink/internal/handler"
	"github.com/user/shortlink/internal/limiter"
	"github.com/user/shortlink/internal/middleware"
	"github.com/user/shortlink/internal/repository"
	"github.com/user/shortlink/internal/service"
	"github.com/user/shortlink/internal/useragent"
	"github.com/user/shortlink/internal/validate"
)

// Version is set at build time using ldflags.
// go build -ldflags "-X main.Version=1.0.0"
var Version = "dev"

func main() {
	// ===========================================
	// Step 0: Load .env File
	// ===========================================
	// Silently ignored if .env doesn't exist (production).
	_ = godotenv.Load()

	// ===========================================
	// Step 1: Load Configuration & Logger
	// ===========================================
	cfg := config.Load()

	logger, err := newLogger(cfg)
	if err != nil {
		panic(err)
	}
	defer logger.Sync() //nolint:errcheck

	logger.Info("starting shortlink",
		zap.String("version", Version),
		zap.String("port", cfg.Server.Port),
		zap.String("environment", cfg.Environment),
	)

	// ===========================================
	// Step 2: Initialize PostgreSQL
	// ===========================================
	// If we can't connect within 30 seconds, something is wrong.
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	postgres, err := database.NewPostgresDB(ctx, cfg.Database)
	if err != nil {
		logger.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer postgres.Close()
	logger.Info("postgres connected")

	if err := database.Migrate(cfg.Database.URL, logger); err != nil {
		logger.Fatal("failed to run migrations", zap.Error(err))
	}

	// ===========================================
	// Step 3: Initialize Redis
	// ===========================================
	redis, err := database.NewRedisDB(ctx, cfg.Redis)
	if err != nil {
		logger.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer redis.Close()
	logger.Info("redis connected")

	// ===========================================
	// Step 4: Initialize Repositories
	// ===========================================
	linkRepo := repository.NewLinkRepository(postgres.Pool)
	analyticsRepo := repository.NewAnalyticsRepository(postgres.Pool)

	// ===========================================
	// Step 5: Initialize Upstream Clients
	// ===========================================
	addrResolver := clientip.NewResolver(!cfg.IsProduction())
	rateLimiter := limiter.New(redis, cfg.RateLimit.Window, cfg.RateLimit.MaxRequests)
	geoClient := geoip.NewClient(cfg.Geo.Endpoint, cfg.Geo.Timeout)
	livenessChecker := validate.NewLivenessChecker()
	captchaVerifier := captcha.NewVerifier(cfg.Captcha.VerifyURL, cfg.Captcha.Secret)
	authProvider := auth.NewProvider(cfg.Auth.Endpoint)

	// ===========================================
	// Step 6: Initialize Services
	// ===========================================
	resolverService := service.NewResolverService(
		linkRepo,
		analyticsRepo,
		geoClient,
		rateLimiter,
		addrResolver,
		redis,
		useragent.Classify,
		cfg.Shortener.NotFoundURL,
		cfg.Redis.CacheTTL,
		logger,
	)
	linkService := service.NewLinkService(linkRepo, redis, livenessChecker, cfg.Shortener, logger)
	analyticsService := service.NewAnalyticsService(analyticsRepo, linkRepo, cfg.Shortener.PageSize, logger)

	// ===========================================
	// Step 7: Initialize Handlers & Middleware
	// ===========================================
	redirectHandler := handler.NewRedirectHandler(resolverService, logger)
	linkHandler := handler.NewLinkHandler(linkService)
	analyticsHandler := handler.NewAnalyticsHandler(analyticsService)
	authHandler := handler.NewAuthHandler(authProvider, captchaVerifier, logger)
	healthHandler := handler.NewHealthHandler(postgres, redis, Version)

	apiRateLimit := middleware.NewRateLimiter(rateLimiter, addrResolver, logger)
	sessionAuth := middleware.NewSessionAuth(authProvider)

	// ===========================================
	// Step 8: Set Up Gin Router
	// ===========================================
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(gin.Logger())
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.CORS(middleware.CORSConfig{
		AllowedOrigin:  cfg.Shortener.AllowedOrigin,
		AllowedMethods: []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
	}))

	// ===========================================
	// Health Check Routes (no auth required)
	// ===========================================
	router.GET("/health", healthHandler.Health)
	router.GET("/ready", healthHandler.Ready)
	router.GET("/live", healthHandler.Live)

	// ===========================================
	// Redirect Route
	// ===========================================
	// The main feature. Rate limiting happens inside the pipeline so
	// the budget check sits exactly between address resolution and
	// the link lookup.
	router.GET("/:shortCode", redirectHandler.Redirect)

	// ===========================================
	// API Routes (rate limited; most require a session)
	// ===========================================
	api := router.Group("/api")
	api.Use(apiRateLimit.Middleware())
	{
		// Registration is captcha-gated instead of session-gated.
		api.POST("/register", authHandler.Register)

		protected := api.Group("")
		protected.Use(sessionAuth.RequireSession())
		{
			protected.POST("/links", linkHandler.Create)
			protected.GET("/links", linkHandler.List)
			protected.PATCH("/links/:id", linkHandler.Update)
			protected.DELETE("/links/:id", linkHandler.Delete)

			protected.GET("/analytics/:id", analyticsHandler.Summary)
			protected.GET("/analytics/:id/series", analyticsHandler.Series)
		}
	}

	// ===========================================
	// Step 9: Create HTTP Server
	// ===========================================
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// ===========================================
	// Step 10: Start Background Jobs
	// ===========================================
	bgCtx, bgCancel := context.WithCancel(context.Background())
	defer bgCancel()

	go runCleanupJob(bgCtx, linkRepo, logger, 10*time.Minute)

	// ===========================================
	// Step 11: Start Server (non-blocking)
	// ===========================================
	go func() {
		logger.Info("server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	// ===========================================
	// Step 12: Wait for Shutdown Signal
	// ===========================================
	// Graceful shutdown ensures in-flight requests complete.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}

	bgCancel()

	logger.Info("server stopped")
}

// newLogger builds the process logger. Production gets JSON output,
// development gets the console encoder.
func newLogger(cfg *config.Config) (*zap.Logger, error) {
	if cfg.IsProduction() {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}

// ===========================================
// Background Jobs
// ===========================================

// runCleanupJob periodically removes expired links.
// Runs until context is cancelled.
func runCleanupJob(ctx context.Context, repo *repository.LinkRepository, logger *zap.Logger, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("cleanup job stopped")
			return
		case <-ticker.C:
			cleanupCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
			count, err := repo.DeleteExpired(cleanupCtx)
			cancel()

			if err != nil {
				logger.Error("cleanup failed", zap.Error(err))
			} else if count > 0 {
				logger.Info("cleaned up expired links", zap.Int64("count", count))
			}
		}
	}
}
