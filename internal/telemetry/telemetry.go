package telemetry

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/trace"
)

// Telemetry holds the meter, tracer, and the client's business instruments.
// A nil *Telemetry is valid and turns every recording call into a no-op.
type Telemetry struct {
	tracer   trace.Tracer
	meter    metric.Meter
	exporter *prometheus.Exporter

	downloadsStarted   metric.Int64Counter
	downloadsCompleted metric.Int64Counter
	notificationsSent  metric.Int64Counter
	downloadsActive    metric.Int64Gauge
	queueDepth         metric.Int64Gauge

	httpRequestsTotal   metric.Int64Counter
	httpRequestDuration metric.Float64Histogram
}

// Config holds telemetry configuration.
type Config struct {
	Enabled        bool
	ServiceName    string
	ServiceVersion string
}

// New creates a telemetry instance backed by a Prometheus exporter. Returns
// nil (not an error) when telemetry is disabled.
func New(cfg Config) (*Telemetry, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	exporter, err := prometheus.New()
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}

	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	otel.SetMeterProvider(provider)

	t := &Telemetry{
		tracer:   otel.Tracer(cfg.ServiceName),
		meter:    provider.Meter(cfg.ServiceName, metric.WithInstrumentationVersion(cfg.ServiceVersion)),
		exporter: exporter,
	}

	if err := t.initInstruments(); err != nil {
		return nil, err
	}

	return t, nil
}

func (t *Telemetry) initInstruments() error {
	var err error

	if t.downloadsStarted, err = t.meter.Int64Counter("downloads_started_total",
		metric.WithDescription("Download requests admitted to the engine")); err != nil {
		return err
	}

	if t.downloadsCompleted, err = t.meter.Int64Counter("downloads_completed_total",
		metric.WithDescription("Downloads that reached completed status")); err != nil {
		return err
	}

	if t.notificationsSent, err = t.meter.Int64Counter("notifications_sent_total",
		metric.WithDescription("Completion notifications attempted")); err != nil {
		return err
	}

	if t.downloadsActive, err = t.meter.Int64Gauge("downloads_active",
		metric.WithDescription("Records currently occupying a concurrency slot")); err != nil {
		return err
	}

	if t.queueDepth, err = t.meter.Int64Gauge("queue_depth",
		metric.WithDescription("Requests waiting for a free slot")); err != nil {
		return err
	}

	if t.httpRequestsTotal, err = t.meter.Int64Counter("http_requests_total",
		metric.WithDescription("Control API requests")); err != nil {
		return err
	}

	if t.httpRequestDuration, err = t.meter.Float64Histogram("http_request_duration_seconds",
		metric.WithDescription("Control API request duration")); err != nil {
		return err
	}

	return nil
}

// Tracer returns the tracer for manual span creation.
func (t *Telemetry) Tracer() trace.Tracer {
	if t == nil {
		return otel.Tracer("noop")
	}

	return t.tracer
}

// PrometheusHandler serves the scrape endpoint.
func (t *Telemetry) PrometheusHandler() http.Handler {
	return promhttp.Handler()
}

func (t *Telemetry) RecordDownloadStarted(ctx context.Context) {
	if t == nil {
		return
	}

	t.downloadsStarted.Add(ctx, 1)
}

func (t *Telemetry) RecordDownloadCompleted(ctx context.Context) {
	if t == nil {
		return
	}

	t.downloadsCompleted.Add(ctx, 1)
}

func (t *Telemetry) RecordNotification(ctx context.Context) {
	if t == nil {
		return
	}

	t.notificationsSent.Add(ctx, 1)
}

// ObserveQueue records the current admission state after a mutation.
func (t *Telemetry) ObserveQueue(ctx context.Context, active, queued int) {
	if t == nil {
		return
	}

	t.downloadsActive.Record(ctx, int64(active))
	t.queueDepth.Record(ctx, int64(queued))
}

// RecordHTTPRequest records one control API request.
func (t *Telemetry) RecordHTTPRequest(ctx context.Context, method, path, statusClass string, duration time.Duration) {
	if t == nil {
		return
	}

	attrs := metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("path", path),
		attribute.String("status_class", statusClass),
	)

	t.httpRequestsTotal.Add(ctx, 1, attrs)
	t.httpRequestDuration.Record(ctx, duration.Seconds(), attrs)
}
