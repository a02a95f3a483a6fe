// Package telemetry exports the probe's own delivery metrics through
// OpenTelemetry. When disabled, instruments are backed by a provider with no
// reader so callers never need nil checks.
package telemetry

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"github.com/vitalis-app/probe/internal/config"
)

const (
	serviceName = "vitalis-probe"
	meterName   = "github.com/vitalis-app/probe"
)

// Exporter names accepted in TelemetryConfig.Exporter.
const (
	ExporterStdout   = "stdout"
	ExporterOTLPHTTP = "otlp-http"
)

// Metrics records delivery outcomes, dropped reports and backlog size.
type Metrics struct {
	enabled  bool
	provider *sdkmetric.MeterProvider
	meter    metric.Meter

	delivered metric.Int64Counter
	failed    metric.Int64Counter
	dropped   metric.Int64Counter
}

// New builds the metrics pipeline described by cfg.
func New(ctx context.Context, cfg config.TelemetryConfig, version string) (*Metrics, error) {
	if !cfg.Enabled {
		return fromProvider(sdkmetric.NewMeterProvider(), false)
	}

	exporter, err := newExporter(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics exporter: %w", err)
	}

	res, err := newResource(version)
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics resource: %w", err)
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter)),
		sdkmetric.WithResource(res),
	)
	return fromProvider(mp, true)
}

func newExporter(ctx context.Context, cfg config.TelemetryConfig) (sdkmetric.Exporter, error) {
	switch cfg.Exporter {
	case ExporterStdout, "":
		return stdoutmetric.New()

	case ExporterOTLPHTTP:
		var opts []otlpmetrichttp.Option
		switch {
		case strings.Contains(cfg.Endpoint, "://"):
			opts = append(opts, otlpmetrichttp.WithEndpointURL(cfg.Endpoint))
		case cfg.Endpoint != "":
			opts = append(opts, otlpmetrichttp.WithEndpoint(cfg.Endpoint))
		}
		if cfg.Insecure {
			opts = append(opts, otlpmetrichttp.WithInsecure())
		}
		return otlpmetrichttp.New(ctx, opts...)

	default:
		return nil, fmt.Errorf("unknown exporter type: %s", cfg.Exporter)
	}
}

func newResource(version string) (*resource.Resource, error) {
	attrs := []attribute.KeyValue{semconv.ServiceName(serviceName)}
	if version != "" {
		attrs = append(attrs, semconv.ServiceVersion(version))
	}
	return resource.Merge(
		resource.Default(),
		resource.NewWithAttributes("", attrs...),
	)
}

func fromProvider(mp *sdkmetric.MeterProvider, enabled bool) (*Metrics, error) {
	m := &Metrics{
		enabled:  enabled,
		provider: mp,
		meter:    mp.Meter(meterName),
	}
	if err := m.registerInstruments(); err != nil {
		return nil, fmt.Errorf("failed to register metric instruments: %w", err)
	}
	return m, nil
}

func (m *Metrics) registerInstruments() error {
	var err error

	m.delivered, err = m.meter.Int64Counter(
		"probe.reports.delivered",
		metric.WithDescription("Reports accepted by the collector"),
	)
	if err != nil {
		return fmt.Errorf("delivered counter: %w", err)
	}

	m.failed, err = m.meter.Int64Counter(
		"probe.reports.failed",
		metric.WithDescription("Failed delivery attempts by kind"),
	)
	if err != nil {
		return fmt.Errorf("failed counter: %w", err)
	}

	m.dropped, err = m.meter.Int64Counter(
		"probe.reports.dropped",
		metric.WithDescription("Reports removed from the backlog without delivery"),
	)
	if err != nil {
		return fmt.Errorf("dropped counter: %w", err)
	}

	return nil
}

// Enabled reports whether metrics are exported anywhere.
func (m *Metrics) Enabled() bool { return m.enabled }

// DeliverySucceeded counts one accepted report.
func (m *Metrics) DeliverySucceeded() {
	m.delivered.Add(context.Background(), 1)
}

// DeliveryFailed counts one failed attempt of the given kind.
func (m *Metrics) DeliveryFailed(kind string) {
	m.failed.Add(context.Background(), 1, metric.WithAttributes(attribute.String("kind", kind)))
}

// ReportsDropped counts n reports discarded for reason.
func (m *Metrics) ReportsDropped(reason string, n int) {
	if n <= 0 {
		return
	}
	m.dropped.Add(context.Background(), int64(n), metric.WithAttributes(attribute.String("reason", reason)))
}

// ObserveBacklog registers a gauge reporting size() at each collection.
func (m *Metrics) ObserveBacklog(size func() int) error {
	_, err := m.meter.Int64ObservableGauge(
		"probe.backlog.size",
		metric.WithDescription("Reports waiting in the retry backlog"),
		metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
			o.Observe(int64(size()))
			return nil
		}),
	)
	if err != nil {
		return fmt.Errorf("backlog gauge: %w", err)
	}
	return nil
}

// Shutdown flushes pending metrics and stops the exporter.
func (m *Metrics) Shutdown(ctx context.Context) error {
	return m.provider.Shutdown(ctx)
}
