package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/DukeRupert/forgea/internal"
	"github.com/DukeRupert/forgea/internal/docstore"
	"github.com/DukeRupert/forgea/internal/handler"
	"github.com/DukeRupert/forgea/internal/identity"
	"github.com/DukeRupert/forgea/internal/metrics"
	"github.com/DukeRupert/forgea/internal/middleware"
	"github.com/DukeRupert/forgea/internal/repository"
	"github.com/DukeRupert/forgea/internal/service"
	"github.com/DukeRupert/forgea/internal/templ/shared"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
)

func run() error {
	ctx := context.Background()

	// Load configuration
	cfg, err := internal.NewConfig()
	if err != nil {
		return fmt.Errorf("config initialization failed: %w", err)
	}

	// Configure logger
	logger := internal.NewLogger(os.Stdout, cfg.Env, cfg.LogLevel)

	// Initialize database connection (only when a backend needs it)
	var db *sql.DB
	var queries *repository.Queries
	if cfg.NeedsDatabase() {
		db, err = sql.Open("pgx", cfg.DatabaseUrl)
		if err != nil {
			return fmt.Errorf("database connection failed: %w", err)
		}
		defer db.Close()

		if err := db.PingContext(ctx); err != nil {
			return fmt.Errorf("database ping failed: %w", err)
		}

		// Run migrations
		if err := internal.RunMigrations(db, logger); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
		logger.Info("Database ready")

		queries = repository.New(db)
	}

	// ==========================================================================
	// Backends
	// ==========================================================================

	var provider identity.Provider
	switch cfg.IdentityProvider {
	case internal.ProviderMemory:
		logger.Warn("Using in-memory identity provider; accounts are lost on restart")
		provider = identity.NewMemoryProvider(identity.BcryptCost)
	default:
		provider = identity.NewPostgresProvider(queries, logger)
	}

	store, err := newDocumentStore(cfg, queries, logger)
	if err != nil {
		return fmt.Errorf("document store initialization failed: %w", err)
	}
	logger.Info("Document store ready", "provider", cfg.StoreProvider)

	signInLimiter, signUpLimiter, closeLimiters, err := newLimiters(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("rate limiter initialization failed: %w", err)
	}
	defer closeLimiters()

	tokens := identity.NewTokenIssuer([]byte(cfg.TokenSecret), cfg.TokenTTL)

	theme, err := shared.ThemeFor(cfg.Theme)
	if err != nil {
		return err
	}

	// Initialize services
	authService := service.NewAuthService(provider, store, cfg.AccountEmailDomain, logger)

	// Initialize middleware
	isSecure := !cfg.IsDevelopment()
	authMw := middleware.NewAuthMiddleware(tokens, logger, isSecure)
	clientIPs, err := middleware.NewClientIPResolver(cfg.TrustedProxies)
	if err != nil {
		return err
	}
	authLimiter := middleware.NewAuthRateLimiter(signInLimiter, signUpLimiter, clientIPs, logger)
	loggingMw := middleware.NewRequestLoggingMiddleware(clientIPs, logger)
	securityMw := middleware.NewSecurityHeadersMiddleware(isSecure)
	metricsAuth := middleware.NewMetricsAuthMiddleware(cfg.MetricsUsername, cfg.MetricsPassword)
	if !metricsAuth.Enabled() {
		logger.Warn("Metrics endpoint is not protected; set METRICS_USERNAME and METRICS_PASSWORD")
	}

	// Initialize handlers
	authHandler := handler.NewAuthHandler(handler.AuthHandlerConfig{
		Service:      authService,
		Guard:        service.NewSubmissionGuard(),
		Tokens:       tokens,
		CookieMaxAge: int(tokens.TTL().Seconds()),
		Limiter:      authLimiter,
		Theme:        theme,
		Logger:       logger,
		IsSecure:     isSecure,
	})

	var pinger handler.Pinger
	if db != nil {
		pinger = db
	}
	healthHandler := handler.NewHealthHandler(pinger, logger)

	// ==========================================================================
	// Create router and register routes
	// ==========================================================================

	mux := http.NewServeMux()

	// Static files (Tailwind output is built into web/static/css)
	staticFS := http.FileServer(http.Dir("web/static"))
	mux.Handle("GET /static/", http.StripPrefix("/static/", staticFS))

	// Health check and metrics
	mux.Handle("GET /health", healthHandler)
	mux.Handle("GET /metrics", metricsAuth.Handler(promhttp.Handler()))

	// Auth routes (public - no auth required)
	authHandler.RegisterRoutes(mux, authLimiter.LimitSignIn, authLimiter.LimitSignUp)

	// Personal info (requires a signed-in student)
	mux.Handle("GET /personal-info", authMw.RequireStudent(http.HandlerFunc(authHandler.PersonalInfo)))

	// Every route sees the verified student, if any. Logging and metrics
	// read the matched pattern, so nothing between them and the mux may
	// replace the request.
	app := middleware.Stack(
		securityMw.Handler,
		authMw.WithStudent,
		loggingMw.Handler,
		metrics.Middleware,
	)(mux)

	// ==========================================================================
	// Start server
	// ==========================================================================

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           app,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Channel to listen for interrupt signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	// Start server in goroutine
	go func() {
		logger.Info("Server started", "address", server.Addr, "env", cfg.Env)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Server failed", "error", err)
		}
	}()

	// Wait for interrupt signal
	<-sigChan
	logger.Info("Shutdown signal received, initiating graceful shutdown...")

	// Create shutdown context with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error", "error", err)
	}

	logger.Info("Graceful shutdown complete")
	return nil
}

// newDocumentStore builds the profile store selected by STORE_PROVIDER.
func newDocumentStore(cfg *internal.Config, queries *repository.Queries, logger *slog.Logger) (docstore.Store, error) {
	switch cfg.StoreProvider {
	case internal.ProviderMemory:
		logger.Warn("Using in-memory document store; profiles are lost on restart")
		return docstore.NewMemoryStore(), nil
	case internal.ProviderR2:
		return docstore.NewObjectStore(docstore.R2Config{
			AccountID:       cfg.R2AccountID,
			AccessKeyID:     cfg.R2AccessKeyID,
			SecretAccessKey: cfg.R2SecretAccessKey,
			BucketName:      cfg.R2BucketName,
			Endpoint:        cfg.R2Endpoint,
		}, logger)
	default:
		return docstore.NewPostgresStore(queries, logger), nil
	}
}

// newLimiters builds the sign-in and sign-up limiters selected by
// RATE_LIMIT_BACKEND. The returned func releases their resources.
func newLimiters(ctx context.Context, cfg *internal.Config, logger *slog.Logger) (signIn, signUp middleware.Limiter, closeFn func(), err error) {
	if cfg.RateLimitBackend == internal.ProviderRedis {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("invalid REDIS_URL: %w", err)
		}
		client := redis.NewClient(opts)
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, nil, fmt.Errorf("redis ping failed: %w", err)
		}
		logger.Info("Rate limiter ready", "backend", "redis")

		signIn = middleware.NewRedisLimiter(client, "signin", cfg.SignInMaxAttempts, cfg.SignInWindow, logger)
		signUp = middleware.NewRedisLimiter(client, "signup", cfg.SignUpMaxAttempts, cfg.SignUpWindow, logger)
		return signIn, signUp, func() { _ = client.Close() }, nil
	}

	logger.Info("Rate limiter ready", "backend", "memory")
	signIn = middleware.NewRateLimiter(cfg.SignInMaxAttempts, cfg.SignInWindow, logger)
	signUp = middleware.NewRateLimiter(cfg.SignUpMaxAttempts, cfg.SignUpWindow, logger)
	return signIn, signUp, func() {}, nil
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}
