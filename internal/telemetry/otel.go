package telemetry

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/roach88/tap/internal/tap"
)

// OTelObserver counts runtime events through an OpenTelemetry meter.
type OTelObserver struct {
	events metric.Int64Counter
}

// NewOTelObserver creates the event counter on meter.
func NewOTelObserver(meter metric.Meter) (*OTelObserver, error) {
	events, err := meter.Int64Counter(
		eventsMetric,
		metric.WithDescription("Runtime events by kind and resource"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s counter: %w", eventsMetric, err)
	}
	return &OTelObserver{events: events}, nil
}

// Observe implements tap.Observer.
func (o *OTelObserver) Observe(e tap.Event) {
	o.events.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("kind", string(e.Kind)),
		attribute.String("resource", e.Resource),
	))
}

// OTelCollector owns an in-process meter provider with a manual reader, for
// callers that want OpenTelemetry counts without an exporter.
type OTelCollector struct {
	reader   *sdkmetric.ManualReader
	provider *sdkmetric.MeterProvider
	observer *OTelObserver
}

// NewOTelCollector creates a provider, a meter named "tap" and its observer.
func NewOTelCollector() (*OTelCollector, error) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	obs, err := NewOTelObserver(provider.Meter("tap"))
	if err != nil {
		provider.Shutdown(context.Background())
		return nil, err
	}
	return &OTelCollector{reader: reader, provider: provider, observer: obs}, nil
}

// Observer returns the observer feeding this collector.
func (c *OTelCollector) Observer() *OTelObserver {
	return c.observer
}

// Counts collects the event counter, sorted by kind then resource.
func (c *OTelCollector) Counts(ctx context.Context) ([]Count, error) {
	var rm metricdata.ResourceMetrics
	if err := c.reader.Collect(ctx, &rm); err != nil {
		return nil, fmt.Errorf("collect metrics: %w", err)
	}

	var counts []Count
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != eventsMetric {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				slog.Warn("unexpected metric data", "metric", m.Name, "type", fmt.Sprintf("%T", m.Data))
				continue
			}
			for _, dp := range sum.DataPoints {
				kind, _ := dp.Attributes.Value("kind")
				res, _ := dp.Attributes.Value("resource")
				counts = append(counts, Count{
					Kind:     kind.AsString(),
					Resource: res.AsString(),
					Value:    dp.Value,
				})
			}
		}
	}
	sortCounts(counts)
	return counts, nil
}

// Shutdown releases the provider.
func (c *OTelCollector) Shutdown(ctx context.Context) error {
	return c.provider.Shutdown(ctx)
}
