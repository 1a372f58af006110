package otelx

import (
	"context"
	"time"

	"github.com/md-rashed-zaman/webcalendar/libs/config"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
)

type Config struct {
	Enabled      bool
	ServiceName  string
	OTLPEndpoint string // host:port of an OTLP gRPC collector
	SampleRatio  float64
	Environment  string
}

// ConfigFromEnv reads OTEL_ENABLED, OTEL_EXPORTER_OTLP_ENDPOINT, OTEL_SAMPLING_RATIO and
// DEPLOYMENT_ENVIRONMENT. Tracing is off unless OTEL_ENABLED is set.
func ConfigFromEnv(serviceName string) (Config, error) {
	ratio, err := config.Float("OTEL_SAMPLING_RATIO", 1, 0, 1)
	if err != nil {
		return Config{}, err
	}
	return Config{
		Enabled:      config.Bool("OTEL_ENABLED", false),
		ServiceName:  serviceName,
		OTLPEndpoint: config.String("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
		SampleRatio:  ratio,
		Environment:  config.String("DEPLOYMENT_ENVIRONMENT", "development"),
	}, nil
}

// Setup installs the W3C propagators and, when enabled, a batching OTLP tracer provider.
// Call the returned shutdown func during graceful shutdown.
func Setup(ctx context.Context, cfg Config) (func(context.Context) error, error) {
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	if !cfg.Enabled {
		return func(context.Context) error { return nil }, nil
	}

	exp, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(cfg.OTLPEndpoint),
		otlptracegrpc.WithInsecure(),
		otlptracegrpc.WithTimeout(3*time.Second),
	)
	if err != nil {
		return nil, err
	}

	res := resource.NewSchemaless(
		semconv.ServiceName(cfg.ServiceName),
		semconv.DeploymentEnvironment(cfg.Environment),
	)

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRatio))),
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	return tp.Shutdown, nil
}
