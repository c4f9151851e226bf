// Package otel wires the agent's OpenTelemetry providers (traces, metrics and logs, exported over
// OTLP gRPC) and the OTel-log sink for security events.
package otel

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.39.0"
	"go.uber.org/zap"
)

// DefaultMetricInterval is how often metrics are pushed when Config.MetricInterval is zero.
const DefaultMetricInterval = 10 * time.Second

// ErrEndpoint is returned for an OTLP endpoint that cannot be dialed.
var ErrEndpoint = errors.New("otel: invalid OTLP endpoint")

// Config selects the collector and identifies this installation.
type Config struct {
	Endpoint       string
	ServiceName    string
	ServiceVersion string
	Environment    string
	// Insecure forces plaintext gRPC even for https endpoints.
	Insecure       bool
	MetricInterval time.Duration
}

// Providers bundles the three SDK providers. Shutdown flushes and stops them in reverse order.
type Providers struct {
	TracerProvider *sdktrace.TracerProvider
	MeterProvider  *metric.MeterProvider
	LoggerProvider *sdklog.LoggerProvider

	shutdown []func(context.Context) error
	logger   *zap.Logger
}

// target is a parsed collector address.
type target struct {
	hostPort string
	insecure bool
}

// parseEndpoint accepts host:port or a URL; any path is dropped since the gRPC exporters dial
// host:port only. Plaintext is used unless the scheme is https.
func parseEndpoint(raw string, forceInsecure bool) (target, error) {
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return target{}, fmt.Errorf("%w %q: %v", ErrEndpoint, raw, err)
	}
	if u.Host == "" {
		return target{}, fmt.Errorf("%w %q: missing host", ErrEndpoint, raw)
	}
	return target{hostPort: u.Host, insecure: forceInsecure || u.Scheme != "https"}, nil
}

// NewProviders builds the providers. With an empty endpoint nothing is exported and Shutdown is a
// no-op; the providers still exist so instrumentation can be wired unconditionally.
func NewProviders(ctx context.Context, cfg Config, logger *zap.Logger) (*Providers, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &Providers{logger: logger}

	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		p.TracerProvider = sdktrace.NewTracerProvider()
		p.MeterProvider = metric.NewMeterProvider()
		p.LoggerProvider = sdklog.NewLoggerProvider()
		return p, nil
	}

	tgt, err := parseEndpoint(endpoint, cfg.Insecure)
	if err != nil {
		return nil, err
	}
	res, err := newResource(cfg)
	if err != nil {
		return nil, err
	}

	if err := p.startTraces(ctx, tgt, res); err != nil {
		return nil, err
	}
	if err := p.startMetrics(ctx, tgt, res, cfg.MetricInterval); err != nil {
		_ = p.Shutdown(ctx)
		return nil, err
	}
	if err := p.startLogs(ctx, tgt, res); err != nil {
		_ = p.Shutdown(ctx)
		return nil, err
	}
	logger.Info("telemetry exporting", zap.String("endpoint", tgt.hostPort), zap.Bool("insecure", tgt.insecure))
	return p, nil
}

func newResource(cfg Config) (*resource.Resource, error) {
	attrs := []resource.Option{
		resource.WithAttributes(
			semconv.ServiceNameKey.String(cfg.ServiceName),
			semconv.ServiceVersionKey.String(cfg.ServiceVersion),
		),
	}
	if cfg.Environment != "" {
		attrs = append(attrs, resource.WithAttributes(semconv.DeploymentEnvironmentNameKey.String(cfg.Environment)))
	}
	own, err := resource.New(context.Background(), append(attrs, resource.WithSchemaURL(semconv.SchemaURL))...)
	if err != nil {
		return nil, err
	}
	return resource.Merge(resource.Default(), own)
}

func (p *Providers) startTraces(ctx context.Context, tgt target, res *resource.Resource) error {
	opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(tgt.hostPort)}
	if tgt.insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}
	exp, err := otlptracegrpc.New(ctx, opts...)
	if err != nil {
		return fmt.Errorf("otel: trace exporter: %w", err)
	}
	p.TracerProvider = sdktrace.NewTracerProvider(sdktrace.WithBatcher(exp), sdktrace.WithResource(res))
	p.shutdown = append(p.shutdown, p.TracerProvider.Shutdown)
	return nil
}

func (p *Providers) startMetrics(ctx context.Context, tgt target, res *resource.Resource, every time.Duration) error {
	if every <= 0 {
		every = DefaultMetricInterval
	}
	opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(tgt.hostPort)}
	if tgt.insecure {
		opts = append(opts, otlpmetricgrpc.WithInsecure())
	}
	exp, err := otlpmetricgrpc.New(ctx, opts...)
	if err != nil {
		return fmt.Errorf("otel: metric exporter: %w", err)
	}
	p.MeterProvider = metric.NewMeterProvider(
		metric.WithResource(res),
		metric.WithReader(metric.NewPeriodicReader(exp, metric.WithInterval(every))),
	)
	p.shutdown = append(p.shutdown, p.MeterProvider.Shutdown)
	return nil
}

func (p *Providers) startLogs(ctx context.Context, tgt target, res *resource.Resource) error {
	opts := []otlploggrpc.Option{otlploggrpc.WithEndpoint(tgt.hostPort)}
	if tgt.insecure {
		opts = append(opts, otlploggrpc.WithInsecure())
	}
	exp, err := otlploggrpc.New(ctx, opts...)
	if err != nil {
		return fmt.Errorf("otel: log exporter: %w", err)
	}
	p.LoggerProvider = sdklog.NewLoggerProvider(
		sdklog.WithProcessor(sdklog.NewBatchProcessor(exp)),
		sdklog.WithResource(res),
	)
	p.shutdown = append(p.shutdown, p.LoggerProvider.Shutdown)
	return nil
}

// Shutdown flushes and stops every exporting provider, newest first, and joins their errors.
func (p *Providers) Shutdown(ctx context.Context) error {
	var errs []error
	for i := len(p.shutdown) - 1; i >= 0; i-- {
		if err := p.shutdown[i](ctx); err != nil {
			p.logger.Warn("telemetry provider shutdown failed", zap.Error(err))
			errs = append(errs, err)
		}
	}
	p.shutdown = nil
	return errors.Join(errs...)
}

// SetGlobal installs the tracer and meter providers for instrumentation such as otelgrpc.
// The logger provider stays local to the security event sink.
func (p *Providers) SetGlobal() {
	otel.SetTracerProvider(p.TracerProvider)
	otel.SetMeterProvider(p.MeterProvider)
}
