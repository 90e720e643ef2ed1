// Package telemetry traces and counts what the referee does: every chat
// platform call gets a span, every verdict and death is counted.
//
// Nothing is exported unless Settings.Enabled is set (config key
// otel.enabled, env GT_OTEL_ENABLED). With otel.stdout spans and metrics are
// printed for local runs; with otel.endpoint they go to an OTLP/HTTP
// collector such as Jaeger, Tempo or Honeycomb.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

const instrumentationScope = "github.com/toppings/giveandtake"

// DefaultMetricInterval is how often metrics are pushed to an exporter.
const DefaultMetricInterval = 30 * time.Second

// Settings selects exporters and describes the running bot.
type Settings struct {
	Enabled         bool
	Stdout          bool      // pretty-print spans and metrics
	Writer          io.Writer // stdout exporter sink, os.Stdout when nil
	Endpoint        string    // OTLP/HTTP host:port for traces and metrics
	MetricsEndpoint string    // overrides Endpoint for metrics only
	MetricInterval  time.Duration
	SampleRatio     float64 // fraction of traces kept; <= 0 or >= 1 keeps all

	ServiceName    string
	Version        string
	ScoringChannel string
	ChatChannel    string
	RosterSize     int
}

var (
	enabled atomic.Bool

	mu          sync.Mutex
	shutdownFns []func(context.Context) error
)

// Enabled reports whether Init installed real providers.
func Enabled() bool {
	return enabled.Load()
}

// Init installs the global tracer and meter providers. When s.Enabled is
// false it installs no-op providers and WrapPlatform becomes a passthrough.
func Init(ctx context.Context, s Settings) error {
	if !s.Enabled {
		enabled.Store(false)
		otel.SetTracerProvider(tracenoop.NewTracerProvider())
		otel.SetMeterProvider(metricnoop.NewMeterProvider())
		return nil
	}

	res, err := newResource(ctx, s)
	if err != nil {
		return fmt.Errorf("telemetry: resource: %w", err)
	}

	tp, err := buildTraceProvider(ctx, s, res)
	if err != nil {
		return fmt.Errorf("telemetry: trace provider: %w", err)
	}
	mp, err := buildMetricProvider(ctx, s, res)
	if err != nil {
		_ = tp.Shutdown(ctx)
		return fmt.Errorf("telemetry: metric provider: %w", err)
	}

	otel.SetTracerProvider(tp)
	otel.SetMeterProvider(mp)

	mu.Lock()
	shutdownFns = append(shutdownFns, tp.Shutdown, mp.Shutdown)
	mu.Unlock()
	enabled.Store(true)
	return nil
}

// newResource describes this bot instance: which game it referees and how
// many items the roster had at startup.
func newResource(ctx context.Context, s Settings) (*resource.Resource, error) {
	name := s.ServiceName
	if name == "" {
		name = "giveandtake"
	}
	attrs := []attribute.KeyValue{
		semconv.ServiceName(name),
		semconv.ServiceVersion(s.Version),
	}
	if s.ScoringChannel != "" {
		attrs = append(attrs, attribute.String("giveandtake.scoring_channel", s.ScoringChannel))
	}
	if s.ChatChannel != "" {
		attrs = append(attrs, attribute.String("giveandtake.chat_channel", s.ChatChannel))
	}
	if s.RosterSize > 0 {
		attrs = append(attrs, attribute.Int("giveandtake.roster_size", s.RosterSize))
	}
	res, err := resource.New(ctx,
		resource.WithAttributes(attrs...),
		resource.WithHost(),
		resource.WithProcessPID(),
		resource.WithProcessRuntimeVersion(),
	)
	// A detector that fails (no hostname in a sandbox) still leaves the rest.
	if errors.Is(err, resource.ErrPartialResource) {
		return res, nil
	}
	return res, err
}

func sampler(ratio float64) sdktrace.Sampler {
	if ratio <= 0 || ratio >= 1 {
		return sdktrace.AlwaysSample()
	}
	return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))
}

func buildTraceProvider(ctx context.Context, s Settings, res *resource.Resource) (*sdktrace.TracerProvider, error) {
	opts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler(s.SampleRatio)),
	}

	// With no exporter configured, enabling telemetry still prints spans.
	if s.Stdout || s.Endpoint == "" {
		var stdoutOpts []stdouttrace.Option
		if s.Writer != nil {
			stdoutOpts = append(stdoutOpts, stdouttrace.WithWriter(s.Writer))
		}
		exp, err := stdouttrace.New(append(stdoutOpts, stdouttrace.WithPrettyPrint())...)
		if err != nil {
			return nil, err
		}
		// Synchronous so local runs show the span as soon as the call ends.
		opts = append(opts, sdktrace.WithSyncer(exp))
	}

	if s.Endpoint != "" {
		exp, err := buildOTLPTraceExporter(ctx, s.Endpoint)
		if err != nil {
			return nil, fmt.Errorf("otlp trace exporter: %w", err)
		}
		opts = append(opts, sdktrace.WithBatcher(exp))
	}
	return sdktrace.NewTracerProvider(opts...), nil
}

func buildMetricProvider(ctx context.Context, s Settings, res *resource.Resource) (*sdkmetric.MeterProvider, error) {
	interval := s.MetricInterval
	if interval <= 0 {
		interval = DefaultMetricInterval
	}
	opts := []sdkmetric.Option{sdkmetric.WithResource(res)}

	if s.Stdout {
		var stdoutOpts []stdoutmetric.Option
		if s.Writer != nil {
			stdoutOpts = append(stdoutOpts, stdoutmetric.WithWriter(s.Writer))
		}
		exp, err := stdoutmetric.New(stdoutOpts...)
		if err != nil {
			return nil, err
		}
		opts = append(opts, sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exp, sdkmetric.WithInterval(interval))))
	}

	if endpoint := firstNonEmpty(s.MetricsEndpoint, s.Endpoint); endpoint != "" {
		exp, err := buildOTLPMetricExporter(ctx, endpoint)
		if err != nil {
			return nil, fmt.Errorf("otlp metric exporter: %w", err)
		}
		opts = append(opts, sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exp, sdkmetric.WithInterval(interval))))
	}
	return sdkmetric.NewMeterProvider(opts...), nil
}

// Tracer returns a tracer with the given instrumentation name (or the global scope).
func Tracer(name string) trace.Tracer {
	if name == "" {
		name = instrumentationScope
	}
	return otel.Tracer(name)
}

// Meter returns a meter with the given instrumentation name (or the global scope).
func Meter(name string) metric.Meter {
	if name == "" {
		name = instrumentationScope
	}
	return otel.Meter(name)
}

// Shutdown flushes pending spans and metrics and stops the providers.
func Shutdown(ctx context.Context) error {
	mu.Lock()
	fns := shutdownFns
	shutdownFns = nil
	mu.Unlock()

	var errs []error
	for _, fn := range fns {
		errs = append(errs, fn(ctx))
	}
	enabled.Store(false)
	return errors.Join(errs...)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
