package observability

import (
	"context"
	"log"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"
)

// Observability owns the OTel meter provider feeding the Prometheus
// registry behind /metrics. Per-job counters live in
// internal/common/metrics; this side only publishes process-level series
// that are sampled at scrape time.
type Observability struct {
	meterProvider *metric.MeterProvider
}

func New(serviceName string) *Observability {
	exporter, err := prometheus.New()
	if err != nil {
		log.Printf("Failed to create Prometheus exporter: %v", err)
		return &Observability{}
	}

	provider := metric.NewMeterProvider(metric.WithReader(exporter))
	otel.SetMeterProvider(provider)

	meter := provider.Meter(serviceName)
	started := time.Now()

	up, _ := meter.Int64ObservableGauge(
		"process.up",
		otelmetric.WithDescription("1 while the worker manager is running"),
	)
	uptime, _ := meter.Float64ObservableGauge(
		"process.uptime",
		otelmetric.WithDescription("Seconds since the worker manager started"),
		otelmetric.WithUnit("s"),
	)

	attrs := otelmetric.WithAttributes(attribute.String("service", serviceName))
	_, err = meter.RegisterCallback(func(_ context.Context, o otelmetric.Observer) error {
		o.ObserveInt64(up, 1, attrs)
		o.ObserveFloat64(uptime, time.Since(started).Seconds(), attrs)
		return nil
	}, up, uptime)
	if err != nil {
		log.Printf("Failed to register process gauges: %v", err)
	}

	return &Observability{meterProvider: provider}
}

func (o *Observability) Shutdown() {
	if o.meterProvider != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		o.meterProvider.Shutdown(ctx)
	}
}
