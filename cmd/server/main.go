package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/timbro-mach/stock-simulator-backend/internal/api"
	"github.com/timbro-mach/stock-simulator-backend/internal/auth"
	"github.com/timbro-mach/stock-simulator-backend/internal/config"
	"github.com/timbro-mach/stock-simulator-backend/internal/ledger"
	"github.com/timbro-mach/stock-simulator-backend/internal/oracle"
	"github.com/timbro-mach/stock-simulator-backend/internal/snapshot"
	"github.com/timbro-mach/stock-simulator-backend/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel(cfg.LogLevel),
	}))
	slog.SetDefault(logger)

	// --- Initialize store ---
	var st store.Store
	var cleanup []func()

	if cfg.DatabaseURL != "" {
		pool, err := pgxpool.New(context.Background(), cfg.DatabaseURL)
		if err != nil {
			slog.Error("database connection failed", "err", err)
			os.Exit(1)
		}
		cleanup = append(cleanup, pool.Close)
		st = store.NewPostgresStore(pool)
		slog.Info("connected to PostgreSQL")
	} else {
		slog.Warn("DATABASE_URL not set, using in-memory store (data will not persist)")
		st = store.NewMemoryStore()
	}

	defer func() {
		for _, fn := range cleanup {
			fn()
		}
	}()

	// --- Price oracle ---
	var prices oracle.Oracle
	if cfg.AlphaVantageKey != "" {
		baseURL := cfg.AlphaVantageURL
		if baseURL == "" {
			baseURL = oracle.DefaultBaseURL
		}
		prices = oracle.NewAlphaVantage(cfg.AlphaVantageKey, baseURL, cfg.QuoteTimeout)
		slog.Info("Alpha Vantage oracle configured")
	} else {
		slog.Warn("ALPHA_VANTAGE_API_KEY not set, using static price fixtures")
		prices = oracle.NewStatic(nil)
	}

	// Wrap with Redis read-through quote cache if configured.
	if cfg.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			slog.Error("invalid REDIS_URL", "err", err)
			os.Exit(1)
		}
		rdb := redis.NewClient(opt)
		cleanup = append(cleanup, func() { rdb.Close() })
		prices = oracle.NewCached(prices, rdb, cfg.QuoteTTL)
		slog.Info("Redis quote cache enabled")
	}

	// --- Ledger kernel ---
	svc := ledger.NewService(st, prices)

	// --- Daily snapshot job ---
	loc, err := time.LoadLocation(cfg.MarketTimezone)
	if err != nil {
		slog.Error("invalid market timezone", "err", err)
		os.Exit(1)
	}
	snap := snapshot.New(st, svc, loc)
	if err := snap.Start(cfg.SnapshotSchedule); err != nil {
		slog.Error("snapshot schedule failed", "err", err)
		os.Exit(1)
	}
	defer snap.Stop()

	// --- WebSocket hub ---
	hub := api.NewHub()
	go hub.Run()

	// --- HTTP API ---
	tokens := auth.NewManager(cfg.JWTSecret, cfg.TokenTTL)
	apiSvc := api.NewService(svc, tokens, hub, nil)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      apiSvc.Router(),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	go func() {
		slog.Info("stock-simulator listening", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	slog.Info("shutting down stock-simulator...")
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("shutdown error", "err", err)
	}
	fmt.Println("stock-simulator stopped")
}

func logLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}
