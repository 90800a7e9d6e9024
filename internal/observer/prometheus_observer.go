package observer

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusObserver exports extraction metrics
type PrometheusObserver struct {
	extractions *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	tokens      *prometheus.CounterVec
	inFlight    prometheus.Gauge
}

// NewPrometheusObserver registers its collectors on reg.
func NewPrometheusObserver(reg prometheus.Registerer) (*PrometheusObserver, error) {
	o := &PrometheusObserver{
		extractions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pod",
			Name:      "extractions_total",
			Help:      "POD extractions by outcome and model.",
		}, []string{"outcome", "model"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "pod",
			Name:      "extraction_duration_seconds",
			Help:      "Wall time of a POD extraction, including the image download.",
			Buckets:   []float64{0.5, 1, 2, 4, 8, 15, 30, 60, 120},
		}, []string{"outcome"}),
		tokens: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pod",
			Name:      "model_tokens_total",
			Help:      "Tokens reported by the model provider.",
		}, []string{"model", "direction"}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "pod",
			Name:      "extractions_in_flight",
			Help:      "Extractions currently waiting on the model.",
		}),
	}

	for _, c := range []prometheus.Collector{o.extractions, o.duration, o.tokens, o.inFlight} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return o, nil
}

// OnEvent handles extraction events by updating collectors
func (o *PrometheusObserver) OnEvent(ctx context.Context, event ExtractionEvent) {
	if event.EventType == ExtractionStarted {
		o.inFlight.Inc()
		return
	}

	outcome := event.EventType.Outcome()
	if outcome == "" {
		return
	}
	o.inFlight.Dec()
	o.extractions.WithLabelValues(outcome, event.Model).Inc()
	o.duration.WithLabelValues(outcome).Observe(event.ProcessingTime.Seconds())

	if event.Tokens != nil {
		o.tokens.WithLabelValues(event.Model, "request").Add(float64(event.Tokens.RequestTokens))
		o.tokens.WithLabelValues(event.Model, "response").Add(float64(event.Tokens.ResponseTokens))
	}
}

// Synchronous keeps the in-flight gauge's increments and decrements in order.
func (o *PrometheusObserver) Synchronous() bool {
	return true
}

// GetObserverName returns the observer name
func (o *PrometheusObserver) GetObserverName() string {
	return "prometheus_observer"
}
