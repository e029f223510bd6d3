// Package observe wires OpenTelemetry metrics and tracing for the cache.
package observe

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

// InstrumentationName names the meter and tracer used by the cache.
const InstrumentationName = "github.com/mmcdole/reel/internal/cache"

// Exporter names
const (
	ExporterNone   = "none"
	ExporterStdout = "stdout"
	ExporterOTLP   = "otlp"
)

// Config selects telemetry exporters.
type Config struct {
	ServiceName string
	Version     string
	Metrics     string // none|stdout|otlp
	Tracing     string // none|stdout|otlp

	// Writer receives stdout exporter output. Defaults to io.Discard.
	Writer io.Writer
}

// Provider holds the configured telemetry primitives.
type Provider struct {
	meter  metric.Meter
	tracer trace.Tracer

	meterProvider  *sdkmetric.MeterProvider
	tracerProvider *sdktrace.TracerProvider
}

// Setup creates metric and trace providers for the configured exporters.
// Disabled signals get noop implementations.
func Setup(ctx context.Context, cfg Config) (*Provider, error) {
	if cfg.Writer == nil {
		cfg.Writer = io.Discard
	}

	p := &Provider{
		meter:  noop.NewMeterProvider().Meter(InstrumentationName),
		tracer: tracenoop.NewTracerProvider().Tracer(InstrumentationName),
	}

	if isDisabled(cfg.Metrics) && isDisabled(cfg.Tracing) {
		return p, nil
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.Version),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	if !isDisabled(cfg.Metrics) {
		reader, err := newMetricsReader(ctx, cfg.Metrics, cfg.Writer)
		if err != nil {
			return nil, err
		}
		p.meterProvider = sdkmetric.NewMeterProvider(
			sdkmetric.WithResource(res),
			sdkmetric.WithReader(reader),
		)
		p.meter = p.meterProvider.Meter(InstrumentationName)
	}

	if !isDisabled(cfg.Tracing) {
		exporter, err := newTracingExporter(ctx, cfg.Tracing, cfg.Writer)
		if err != nil {
			return nil, err
		}
		p.tracerProvider = sdktrace.NewTracerProvider(
			sdktrace.WithResource(res),
			sdktrace.WithBatcher(exporter),
		)
		p.tracer = p.tracerProvider.Tracer(InstrumentationName)
	}

	return p, nil
}

// Meter returns the configured meter.
func (p *Provider) Meter() metric.Meter { return p.meter }

// Tracer returns the configured tracer.
func (p *Provider) Tracer() trace.Tracer { return p.tracer }

// Shutdown flushes and stops the providers.
func (p *Provider) Shutdown(ctx context.Context) error {
	var errs []error
	if p.tracerProvider != nil {
		errs = append(errs, p.tracerProvider.Shutdown(ctx))
	}
	if p.meterProvider != nil {
		errs = append(errs, p.meterProvider.Shutdown(ctx))
	}
	return errors.Join(errs...)
}

func isDisabled(name string) bool {
	return name == "" || name == ExporterNone
}

func newMetricsReader(ctx context.Context, name string, w io.Writer) (sdkmetric.Reader, error) {
	switch name {
	case ExporterStdout:
		exp, err := stdoutmetric.New(stdoutmetric.WithWriter(w))
		if err != nil {
			return nil, fmt.Errorf("failed to create stdout metrics exporter: %w", err)
		}
		return sdkmetric.NewPeriodicReader(exp), nil

	case ExporterOTLP:
		// Endpoint comes from OTEL_EXPORTER_OTLP_* environment variables
		exp, err := otlpmetricgrpc.New(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to create OTLP metrics exporter: %w", err)
		}
		return sdkmetric.NewPeriodicReader(exp), nil

	default:
		return nil, fmt.Errorf("unknown metrics exporter: %q", name)
	}
}

func newTracingExporter(ctx context.Context, name string, w io.Writer) (sdktrace.SpanExporter, error) {
	switch name {
	case ExporterStdout:
		return stdouttrace.New(stdouttrace.WithWriter(w))

	case ExporterOTLP:
		return otlptracegrpc.New(ctx)

	default:
		return nil, fmt.Errorf("unknown tracing exporter: %q", name)
	}
}
