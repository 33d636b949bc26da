package telemetry

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/roach88/tap/internal/tap"
)

const eventsMetric = "tap_events_total"

// PrometheusObserver counts runtime events in a Prometheus counter vector
// labelled by kind and resource.
type PrometheusObserver struct {
	events *prometheus.CounterVec
}

// NewPrometheusObserver registers the event counter with reg.
func NewPrometheusObserver(reg prometheus.Registerer) *PrometheusObserver {
	return &PrometheusObserver{
		events: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: eventsMetric,
			Help: "Runtime events by kind and resource",
		}, []string{"kind", "resource"}),
	}
}

// Observe implements tap.Observer.
func (o *PrometheusObserver) Observe(e tap.Event) {
	o.events.WithLabelValues(string(e.Kind), e.Resource).Inc()
}

// PrometheusCounts reads the event counter back from g, sorted by kind then
// resource.
func PrometheusCounts(g prometheus.Gatherer) ([]Count, error) {
	families, err := g.Gather()
	if err != nil {
		return nil, fmt.Errorf("gather metrics: %w", err)
	}

	var counts []Count
	for _, mf := range families {
		if mf.GetName() != eventsMetric {
			continue
		}
		for _, m := range mf.GetMetric() {
			c := Count{Value: int64(m.GetCounter().GetValue())}
			for _, lp := range m.GetLabel() {
				switch lp.GetName() {
				case "kind":
					c.Kind = lp.GetValue()
				case "resource":
					c.Resource = lp.GetValue()
				}
			}
			counts = append(counts, c)
		}
	}
	sortCounts(counts)
	return counts, nil
}
