package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/onnwee/particle-dynamics/internal/utils"
)

// Config holds run configuration derived from environment variables.
type Config struct {
	// Initial condition
	Particles     int
	Seed          int64
	PositionSigma float64
	VelocitySigma float64
	// Integration
	Steps    int
	TimeStep float64
	Workers  int  // 0 means GOMAXPROCS
	Rollback bool // restore state when a step fails
	// Pair potential constants
	Attracting float64
	Repelling  float64
	ForceCap   float64
	// External trap, cleared once simulated time passes TrapReleaseTime
	TrapKx, TrapKy, TrapKz float64
	TrapReleaseTime        float64
	// Progress reporting
	Progress         bool
	ProgressInterval time.Duration
	// Checkpoints
	CheckpointEvery   int // steps between checkpoints, 0 disables
	CheckpointCacheMB int64
	CheckpointEntries int64
	// Status server
	StatusAddr           string // empty disables the server
	RateLimitGlobal      float64
	RateLimitGlobalBurst int
	// Observability settings
	LogLevel          string  // log level: debug, info, warn, error
	OTELEnabled       bool    // enable OpenTelemetry tracing
	OTELEndpoint      string  // OpenTelemetry collector endpoint
	OTELSampleRate    float64 // trace sampling rate (0.0 to 1.0)
	SentryDSN         string  // Sentry DSN for error reporting
	SentryEnvironment string  // Sentry environment (dev, staging, production)
	SentryRelease     string  // Sentry release version
	SentrySampleRate  float64 // Sentry error sampling rate (0.0 to 1.0)
}

var cached *Config

// Load reads env vars once and caches them.
func Load() *Config {
	if cached != nil {
		return cached
	}
	cached = &Config{
		Particles:     utils.GetEnvAsInt("SIM_PARTICLES", 500),
		Seed:          utils.GetEnvAsInt64("SIM_SEED", 1),
		PositionSigma: utils.GetEnvAsFloat("SIM_POSITION_SIGMA", 10),
		VelocitySigma: utils.GetEnvAsFloat("SIM_VELOCITY_SIGMA", 1),
		Steps:         utils.GetEnvAsInt("SIM_STEPS", 5001),
		TimeStep:      utils.GetEnvAsFloat("SIM_TIME_STEP", 0.01),
		Workers:       utils.GetEnvAsInt("SIM_WORKERS", 0),
		Rollback:      utils.GetEnvAsBool("SIM_ROLLBACK", false),
		Attracting:    utils.GetEnvAsFloat("POTENTIAL_ATTRACTING", 1),
		Repelling:     utils.GetEnvAsFloat("POTENTIAL_REPELLING", 1),
		ForceCap:      utils.GetEnvAsFloat("POTENTIAL_FORCE_CAP", 3),
		// Trap constants match the default scenario
		TrapKx:          utils.GetEnvAsFloat("SIM_TRAP_KX", 0.01),
		TrapKy:          utils.GetEnvAsFloat("SIM_TRAP_KY", 0.03),
		TrapKz:          utils.GetEnvAsFloat("SIM_TRAP_KZ", 0.01),
		TrapReleaseTime: utils.GetEnvAsFloat("SIM_TRAP_RELEASE_TIME", 10),
		// Progress reporting
		Progress:         utils.GetEnvAsBool("SIM_PROGRESS", true),
		ProgressInterval: utils.GetEnvAsMillis("SIM_PROGRESS_INTERVAL_MS", 250*time.Millisecond),
		// Checkpoints
		CheckpointEvery:   utils.GetEnvAsInt("SIM_CHECKPOINT_EVERY", 500),
		CheckpointCacheMB: utils.GetEnvAsInt64("CHECKPOINT_CACHE_MB", 64),
		CheckpointEntries: utils.GetEnvAsInt64("CHECKPOINT_CACHE_ENTRIES", 256),
		// Status server
		StatusAddr:           utils.GetEnv("STATUS_ADDR", ""),
		RateLimitGlobal:      utils.GetEnvAsFloat("RATE_LIMIT_GLOBAL", 50),
		RateLimitGlobalBurst: utils.GetEnvAsInt("RATE_LIMIT_GLOBAL_BURST", 100),
		// Observability settings
		LogLevel:          strings.ToLower(utils.GetEnv("LOG_LEVEL", "info")),
		OTELEnabled:       utils.GetEnvAsBool("OTEL_ENABLED", false),
		OTELEndpoint:      utils.GetEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		OTELSampleRate:    utils.GetEnvAsFloat("OTEL_TRACE_SAMPLE_RATE", 0.1),
		SentryDSN:         utils.GetEnv("SENTRY_DSN", ""),
		SentryEnvironment: utils.GetEnv("SENTRY_ENVIRONMENT", utils.GetEnv("ENV", "development")),
		SentryRelease:     utils.GetEnv("SENTRY_RELEASE", ""),
		SentrySampleRate:  utils.GetEnvAsFloat("SENTRY_SAMPLE_RATE", 1.0),
	}
	return cached
}

// ResetForTest clears cached config; for use in tests only.
func ResetForTest() { cached = nil }

// Validate reports settings that cannot produce a run.
func (c *Config) Validate() error {
	var errs []error
	if c.Particles < 0 {
		errs = append(errs, fmt.Errorf("SIM_PARTICLES must be >= 0, got %d", c.Particles))
	}
	if c.Steps < 0 {
		errs = append(errs, fmt.Errorf("SIM_STEPS must be >= 0, got %d", c.Steps))
	}
	if c.TimeStep <= 0 {
		errs = append(errs, fmt.Errorf("SIM_TIME_STEP must be > 0, got %g", c.TimeStep))
	}
	if c.ForceCap < 0 {
		errs = append(errs, fmt.Errorf("POTENTIAL_FORCE_CAP must be >= 0, got %g", c.ForceCap))
	}
	if c.CheckpointEvery < 0 {
		errs = append(errs, fmt.Errorf("SIM_CHECKPOINT_EVERY must be >= 0, got %d", c.CheckpointEvery))
	}
	if c.CheckpointEvery > 0 && c.CheckpointCacheMB <= 0 {
		errs = append(errs, errors.New("CHECKPOINT_CACHE_MB must be > 0 when checkpoints are enabled"))
	}
	return errors.Join(errs...)
}
