// Package main is the entry point for the SkyKeeper API server.
//
// It loads configuration (with SSM secret resolution outside local mode),
// connects the Postgres pool, wires the auth and weather subsystems into the
// core chassis, and serves HTTP with graceful shutdown on SIGINT/SIGTERM.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"

	"skykeeper/internal/api/handlers"
	"skykeeper/internal/auth"
	"skykeeper/internal/config"
	"skykeeper/internal/core"
	"skykeeper/internal/db"
	"skykeeper/internal/weather"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// run encapsulates the startup lifecycle so that main() can cleanly exit on
// error.
func run() error {
	// SSM resolution is bypassed when APP_ENV=local; the provider region is
	// picked up from the environment during the loader's resolution pass.
	cfg, err := config.LoadConfig(config.NewSSMProvider(os.Getenv("AWS_REGION")))
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := newLogger(cfg.LogLevel)
	logger.Info("skykeeper API starting",
		"environment", cfg.Environment,
		"version", cfg.Build.Version,
		"commit", cfg.Build.Commit,
		"port", cfg.Server.Port,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Database pool.
	pool, err := db.NewPool(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connecting database: %w", err)
	}
	defer pool.Close()

	userRepo := db.NewUserRepository(pool)
	snapshotRepo := db.NewSnapshotRepository(pool)

	// Auth subsystem. The token service doubles as the chassis Authenticator.
	tokenService := auth.NewTokenService(cfg.Auth.JWTSecret.Unmask(), cfg.Auth.TokenTTL, nil)
	authService := auth.NewService(userRepo, tokenService, cfg.Auth.BcryptCost, nil, logger)

	// Server-side weather provider proxy.
	weatherClient := weather.NewOpenWeatherClient(cfg.Weather, logger)

	// Chassis.
	srv, err := core.NewServer(cfg, logger)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}
	srv.Authenticator = tokenService

	if cfg.Observability.MetricsEnabled {
		metrics, err := newCloudWatchMetrics(ctx, cfg, logger)
		if err != nil {
			return fmt.Errorf("initializing metrics: %w", err)
		}
		srv.Metrics = metrics
	}

	srv.HealthProbes = append(srv.HealthProbes, core.ProbeFunc{
		ProbeName: "database",
		CheckFunc: pool.Ping,
	})

	// Domain handlers.
	authHandler := handlers.NewAuthHandler(authService, srv.Validator, logger)
	weatherHandler := handlers.NewWeatherHandler(snapshotRepo, weatherClient, srv.Validator, logger, nil)

	srv.APIRouteRegistrars = append(srv.APIRouteRegistrars,
		authHandler.RegisterRoutes,
		weatherHandler.RegisterRoutes,
	)

	srv.MountRoutes()

	return runHTTPServer(ctx, srv, cfg, logger)
}

// newCloudWatchMetrics builds the CloudWatch-backed metrics collector. A
// non-empty endpoint URL points the client at LocalStack for local runs.
func newCloudWatchMetrics(ctx context.Context, cfg *config.Config, logger *slog.Logger) (core.MetricsCollector, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWS.Region))
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}

	client := cloudwatch.NewFromConfig(awsCfg, func(o *cloudwatch.Options) {
		if cfg.AWS.EndpointURL != "" {
			o.BaseEndpoint = &cfg.AWS.EndpointURL
		}
	})

	return core.NewCloudWatchMetrics(client, cfg.Observability.MetricsNamespace, logger), nil
}

// runHTTPServer starts the server with graceful shutdown on context cancel.
func runHTTPServer(ctx context.Context, srv *core.Server, cfg *config.Config, logger *slog.Logger) error {
	addr := ":" + cfg.Server.Port

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	serverErr := make(chan error, 1)

	go func() {
		logger.Info("HTTP server listening", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	// Graceful shutdown with a 10-second deadline.
	logger.Info("initiating graceful shutdown")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
	}

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server resource shutdown error", "error", err)
		return fmt.Errorf("server shutdown: %w", err)
	}

	logger.Info("server stopped cleanly")
	return nil
}

// newLogger creates a structured slog.Logger configured for the given level.
func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	return slog.New(handler)
}
