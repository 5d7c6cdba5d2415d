package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/seo-optimizer/segment-architect/api"
	"github.com/seo-optimizer/segment-architect/config"
	"github.com/seo-optimizer/segment-architect/logging"
	"github.com/seo-optimizer/segment-architect/middleware"
	"github.com/seo-optimizer/segment-architect/oracle"
	"github.com/seo-optimizer/segment-architect/probe"
	"github.com/seo-optimizer/segment-architect/session"
	"github.com/seo-optimizer/segment-architect/stats"
)

const (
	shutdownTimeout = 15 * time.Second
	retainMonths    = 12
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	envFile := config.LoadEnvFiles()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.LogLevel, cfg.DevMode)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if envFile == "" {
		logger.Info("No .env file found, using environment variables")
	} else {
		logger.Info("Loaded environment file", zap.String("file", envFile))
	}

	if err := cfg.Validate(); err != nil {
		logger.Error("Invalid configuration", zap.Error(err))
		return err
	}

	gin.SetMode(cfg.GinMode)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize statistics
	usage, err := stats.NewStorage(cfg.DataDir, logger.Named("stats"))
	if err != nil {
		return err
	}
	defer usage.Shutdown()
	usage.Cleanup(retainMonths)

	statistics, err := logging.NewStatistics(filepath.Join(cfg.DataDir, "statistics.json"), cfg.DevMode)
	if err != nil {
		logger.Warn("Could not load existing statistics", zap.Error(err))
	}
	defer func() {
		if err := statistics.Save(); err != nil {
			logger.Warn("Failed to save statistics", zap.Error(err))
		}
	}()

	// Initialize services
	oracleOpts := []oracle.Option{oracle.WithLogger(logger.Named("oracle"))}
	if cfg.ProbeEnabled {
		prober := probe.New(probe.Options{
			Timeout:  cfg.ProbeTimeout,
			Recorder: usage,
			Logger:   logger.Named("probe"),
		})
		defer prober.Close()
		oracleOpts = append(oracleOpts, oracle.WithHints(prober))
	}

	gemini, err := oracle.NewGemini(ctx, cfg.Oracle, oracleOpts...)
	if err != nil {
		return err
	}

	registry := session.NewRegistry(gemini, cfg.SessionTTL,
		session.WithTimeout(cfg.Oracle.Timeout),
		session.WithRecorder(usage),
		session.WithLogger(logger.Named("session")))
	defer registry.Close()

	rateLimiter := middleware.NewRateLimiter(cfg.RateLimit, cfg.RateBurst)

	router := api.NewRouter(api.Deps{
		Sessions:   registry,
		Statistics: statistics,
		Usage:      usage,
		Limiter:    rateLimiter,
		Logger:     logger,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Server starting",
			zap.String("addr", "http://localhost:"+cfg.Port),
			zap.String("model", cfg.Oracle.Model),
			zap.Bool("probe", cfg.ProbeEnabled))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		rateLimiter.PruneEvery(gctx, time.Minute, 10*time.Minute)
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server stopped with error", zap.Error(err))
		return err
	}
	return nil
}
