// Microloan USSD - menu-driven short-code banking service
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/natnaelb/microloan-ussd/internal/api"
	"github.com/natnaelb/microloan-ussd/internal/catalog"
	"github.com/natnaelb/microloan-ussd/internal/config"
	"github.com/natnaelb/microloan-ussd/internal/menu"
	"github.com/natnaelb/microloan-ussd/internal/metrics"
	"github.com/natnaelb/microloan-ussd/internal/middleware"
	"github.com/natnaelb/microloan-ussd/internal/session"
	"github.com/natnaelb/microloan-ussd/internal/store"
)

// demoPINs matches the demo callers the reference deployment ships with.
var demoPINs = map[string]string{
	"+251900000001": "1234",
	"+251900000002": "5678",
	"+251900000003": "4321",
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("Starting server", "port", cfg.Port, "session_timeout", cfg.SessionTimeout)

	cat, err := catalog.Load(cfg.CatalogPath)
	if err != nil {
		slog.Error("Failed to load loan catalog", "error", err)
		os.Exit(1)
	}
	slog.Info("Loan catalog loaded", "banks", len(cat.Banks()))

	repo, err := store.NewSQLite(cfg.DBPath)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			slog.Error("Failed to close repository", "error", closeErr)
		}
	}()

	if err := repo.Ping(context.Background()); err != nil {
		slog.Error("Database health check failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Database connected")

	if cfg.SeedDemoData {
		if err := repo.SeedPINs(context.Background(), demoPINs); err != nil {
			slog.Error("Failed to seed demo PINs", "error", err)
			os.Exit(1)
		}
		slog.Info("Demo PINs seeded", "callers", len(demoPINs))
	}

	sessions := session.NewStore(cfg.SessionTimeout)
	sessions.OnEvict(api.ReleaseSessionLock)
	metrics.RegisterActiveSessions(sessions.Len)

	engine := menu.New(repo, cat, menu.Config{
		MaxPINAttempts: cfg.MaxPINAttempts,
		DefaultPIN:     cfg.DefaultPIN,
		InterestRate:   cfg.InterestRate,
		PageSize:       cfg.PageSize,
		HistoryLimit:   cfg.HistoryLimit,
	})

	handler := api.NewHandler(sessions, engine, repo)

	// Setup router.
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/health"))
	if cfg.RateLimit.Enabled {
		r.Use(middleware.RateLimit(middleware.NewRateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst)))
	}

	handler.RegisterRoutes(r)
	r.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Expiry is lazy per request; the sweeper only reclaims memory for
	// sessions that never come back.
	sessions.StartSweeper(ctx, cfg.SweepInterval)

	go func() {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	stop()

	slog.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("Server stopped successfully")
}
