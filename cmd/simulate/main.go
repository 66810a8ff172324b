package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/onnwee/particle-dynamics/internal/config"
	"github.com/onnwee/particle-dynamics/internal/errorreporting"
	"github.com/onnwee/particle-dynamics/internal/logger"
	"github.com/onnwee/particle-dynamics/internal/metrics"
	"github.com/onnwee/particle-dynamics/internal/server"
	"github.com/onnwee/particle-dynamics/internal/simulation"
	"github.com/onnwee/particle-dynamics/internal/tracing"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file found, using environment variables")
	}
	os.Exit(run())
}

func run() int {
	// Load configuration
	cfg := config.Load()

	// Initialize structured logging
	logger.Init(cfg.LogLevel)
	logger.Info("Initializing simulation", "version", cfg.SentryRelease, "log_level", cfg.LogLevel)

	// Initialize error reporting
	if err := errorreporting.Init(errorreporting.Settings{
		DSN:         cfg.SentryDSN,
		Environment: cfg.SentryEnvironment,
		Release:     cfg.SentryRelease,
		SampleRate:  cfg.SentrySampleRate,
	}); err != nil {
		logger.Warn("Failed to initialize error reporting", "error", err)
	} else if errorreporting.Enabled() {
		logger.Info("Error reporting initialized", "environment", cfg.SentryEnvironment)
		defer func() {
			logger.Info("Flushing error reports...")
			errorreporting.Flush(2 * time.Second)
		}()
	}

	// Initialize tracing
	shutdownTracing, err := tracing.Init(tracing.Settings{
		ServiceName: "particle-dynamics",
		Version:     cfg.SentryRelease,
		Enabled:     cfg.OTELEnabled,
		Endpoint:    cfg.OTELEndpoint,
		SampleRate:  cfg.OTELSampleRate,
	})
	if err != nil {
		logger.Warn("Failed to initialize tracing", "error", err)
	} else if cfg.OTELEnabled {
		logger.Info("Tracing initialized", "endpoint", cfg.OTELEndpoint, "sample_rate", cfg.OTELSampleRate)
		defer func() {
			logger.Info("Shutting down tracer...")
			if err := shutdownTracing(context.Background()); err != nil {
				logger.Error("Failed to shutdown tracer", "error", err)
			}
		}()
	}

	sim, err := simulation.New(cfg, os.Stderr)
	if err != nil {
		logger.Error("Failed to set up simulation", "error", err)
		return 2
	}
	defer sim.Close()

	// Stop between steps on SIGINT/SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logger.ContextWithRunID(ctx, sim.RunID())

	hub := sim.Hub()
	go hub.Run(ctx)

	if c := sim.Cache(); c != nil {
		collector := metrics.NewCollector(c, 30*time.Second)
		go collector.Start(ctx)
		defer collector.Stop()
	}

	var serverDone chan error
	if cfg.StatusAddr != "" {
		var snapshots server.Snapshots
		if store := sim.Store(); store != nil {
			snapshots = store
		}
		srv := server.New(server.Options{
			Addr:           cfg.StatusAddr,
			RateLimit:      cfg.RateLimitGlobal,
			RateLimitBurst: cfg.RateLimitGlobalBurst,
		}, hub, snapshots)
		serverDone = make(chan error, 1)
		go func() { serverDone <- srv.ListenAndServe(ctx) }()
	}

	runErr := sim.Run(ctx)
	stop()
	if serverDone != nil {
		if err := <-serverDone; err != nil {
			logger.Error("Status server error", "error", err)
		}
	}

	switch {
	case runErr == nil:
		return 0
	case errors.Is(runErr, context.Canceled):
		logger.Warn("Simulation interrupted", "error", runErr)
		return 130
	default:
		return 1
	}
}
