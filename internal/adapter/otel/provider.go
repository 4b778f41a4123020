package otel

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// Exporter names accepted in Config.Exporter.
const (
	ExporterStdout = "stdout"
	ExporterOTLP   = "otlp"
	ExporterNone   = "none"
)

// Config holds OpenTelemetry provider configuration.
type Config struct {
	ServiceName    string `mapstructure:"service_name"`
	ServiceVersion string `mapstructure:"service_version"`
	Environment    string `mapstructure:"environment"`
	Exporter       string `mapstructure:"exporter"`
	Insecure       bool   `mapstructure:"insecure"` // plain HTTP for OTLP
	// MetricInterval is the periodic reader push interval. Zero keeps the SDK default.
	MetricInterval time.Duration `mapstructure:"metric_interval"`
}

func (c Config) exporter() (string, error) {
	switch c.Exporter {
	case ExporterStdout, ExporterOTLP, ExporterNone:
		return c.Exporter, nil
	case "":
		return ExporterNone, nil
	}
	return "", fmt.Errorf("unsupported exporter: %q (use %q, %q or %q)",
		c.Exporter, ExporterStdout, ExporterOTLP, ExporterNone)
}

// Providers holds the registered providers and their shutdown function.
type Providers struct {
	Tracer   *trace.TracerProvider
	Meter    *metric.MeterProvider
	Shutdown func(ctx context.Context) error
}

// Setup builds the tracer and meter providers for the configured exporter
// and registers them globally. With ExporterNone spans and instruments
// still work in-process but nothing leaves it. Shutdown must be called on
// exit to flush pending telemetry.
func Setup(ctx context.Context, cfg Config) (*Providers, error) {
	kind, err := cfg.exporter()
	if err != nil {
		return nil, err
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
			semconv.DeploymentEnvironment(cfg.Environment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("creating otel resource: %w", err)
	}

	traceOpts := []trace.TracerProviderOption{trace.WithResource(res)}
	spans, err := spanExporter(ctx, kind, cfg.Insecure)
	if err != nil {
		return nil, fmt.Errorf("creating span exporter: %w", err)
	}
	if spans != nil {
		traceOpts = append(traceOpts, trace.WithBatcher(spans))
	}

	meterOpts := []metric.Option{metric.WithResource(res)}
	metrics, err := metricExporter(ctx, kind, cfg.Insecure)
	if err != nil {
		return nil, fmt.Errorf("creating metric exporter: %w", err)
	}
	if metrics != nil {
		var readerOpts []metric.PeriodicReaderOption
		if cfg.MetricInterval > 0 {
			readerOpts = append(readerOpts, metric.WithInterval(cfg.MetricInterval))
		}
		meterOpts = append(meterOpts, metric.WithReader(metric.NewPeriodicReader(metrics, readerOpts...)))
	}

	tp := trace.NewTracerProvider(traceOpts...)
	mp := metric.NewMeterProvider(meterOpts...)

	otel.SetTracerProvider(tp)
	otel.SetMeterProvider(mp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	shutdown := func(ctx context.Context) error {
		err := errors.Join(
			wrapShutdown("tracer", tp.Shutdown(ctx)),
			wrapShutdown("meter", mp.Shutdown(ctx)),
		)
		if err != nil {
			return fmt.Errorf("otel shutdown: %w", err)
		}
		return nil
	}

	return &Providers{Tracer: tp, Meter: mp, Shutdown: shutdown}, nil
}

// spanExporter returns nil for ExporterNone.
func spanExporter(ctx context.Context, kind string, insecure bool) (trace.SpanExporter, error) {
	switch kind {
	case ExporterOTLP:
		var opts []otlptracehttp.Option
		if insecure {
			opts = append(opts, otlptracehttp.WithInsecure())
		}
		return otlptracehttp.New(ctx, opts...)
	case ExporterStdout:
		return stdouttrace.New(stdouttrace.WithPrettyPrint())
	}
	return nil, nil
}

// metricExporter returns nil for ExporterNone.
func metricExporter(ctx context.Context, kind string, insecure bool) (metric.Exporter, error) {
	switch kind {
	case ExporterOTLP:
		var opts []otlpmetrichttp.Option
		if insecure {
			opts = append(opts, otlpmetrichttp.WithInsecure())
		}
		return otlpmetrichttp.New(ctx, opts...)
	case ExporterStdout:
		return stdoutmetric.New()
	}
	return nil, nil
}

func wrapShutdown(name string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s shutdown: %w", name, err)
}
