// Package tracing exports simulation spans over OTLP/HTTP.
package tracing

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/onnwee/particle-dynamics/internal/numeric"
)

// DefaultEndpoint is the local OTLP/HTTP collector.
const DefaultEndpoint = "localhost:4318"

// Span attribute keys shared by the driver, integrator and force kernel.
const (
	AttrParticles = attribute.Key("sim.particles")
	AttrTimeStep  = attribute.Key("sim.h")
	AttrSteps     = attribute.Key("sim.steps")
	AttrWorkers   = attribute.Key("sim.workers")
)

var tracer trace.Tracer

// Settings controls the OTLP exporter.
type Settings struct {
	ServiceName string
	Version     string
	Enabled     bool
	// Endpoint is "host:port" without a scheme.
	Endpoint string
	// SampleRate is clamped to [0, 1].
	SampleRate float64
}

func (s Settings) endpoint() string {
	if s.Endpoint == "" {
		return DefaultEndpoint
	}
	return s.Endpoint
}

func (s Settings) version() string {
	if s.Version == "" {
		return "dev"
	}
	return s.Version
}

func (s Settings) sampler() sdktrace.Sampler {
	// every step and force evaluation opens a span, so keep sampling low
	return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(numeric.Clamp(s.SampleRate, 0, 1)))
}

// Init installs a tracer provider. When tracing is disabled it returns a
// no-op shutdown function and spans go to the global no-op tracer.
func Init(s Settings) (func(context.Context) error, error) {
	if !s.Enabled {
		return func(context.Context) error { return nil }, nil
	}
	ctx := context.Background()

	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpoint(s.endpoint()),
		otlptracehttp.WithInsecure(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceNameKey.String(s.ServiceName),
			semconv.ServiceVersionKey.String(s.version()),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(s.sampler()),
	)
	otel.SetTracerProvider(tp)
	tracer = tp.Tracer(s.ServiceName)

	return func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		return tp.Shutdown(ctx)
	}, nil
}

// Tracer returns the installed tracer, or a no-op tracer before Init.
func Tracer() trace.Tracer {
	if tracer == nil {
		return otel.Tracer("noop")
	}
	return tracer
}

// StartSpan starts a span tagged with the given attributes.
func StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return Tracer().Start(ctx, name, trace.WithAttributes(attrs...))
}

// Particles tags a span with the system size.
func Particles(n int) attribute.KeyValue { return AttrParticles.Int(n) }

// TimeStep tags a span with the step size.
func TimeStep(h float64) attribute.KeyValue { return AttrTimeStep.Float64(h) }
