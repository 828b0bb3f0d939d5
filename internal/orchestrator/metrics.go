package orchestrator

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ShayCichocki/taskflow/pkg/models"
)

// Metrics collects instruction and step metrics in its own registry.
type Metrics struct {
	registry  *prometheus.Registry
	namespace string

	instructions *prometheus.CounterVec
	steps        *prometheus.CounterVec
	stepErrors   *prometheus.CounterVec
	stepDuration *prometheus.HistogramVec
	inFlight     prometheus.Gauge
}

// NewMetrics creates metrics under namespace, default "taskflow".
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "taskflow"
	}

	m := &Metrics{
		registry:  prometheus.NewRegistry(),
		namespace: namespace,
		instructions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "instructions_total",
				Help:      "Instructions handled, by outcome status",
			},
			[]string{"status"},
		),
		steps: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "steps_total",
				Help:      "Plan steps, by tool and step status",
			},
			[]string{"tool", "status"},
		),
		stepErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "step_errors_total",
				Help:      "Failed or skipped steps, by tool and error kind",
			},
			[]string{"tool", "kind"},
		),
		stepDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "step_duration_seconds",
				Help:      "Duration of dispatched steps in seconds",
				Buckets:   []float64{.005, .01, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"tool"},
		),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "instructions_in_flight",
			Help:      "Instructions currently being handled",
		}),
	}

	m.registry.MustRegister(
		m.instructions,
		m.steps,
		m.stepErrors,
		m.stepDuration,
		m.inFlight,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// TrackTokens exports classifier token usage. usage is read on every scrape.
func (m *Metrics) TrackTokens(usage func() (input, output int64)) {
	for _, direction := range []string{"input", "output"} {
		m.registry.MustRegister(prometheus.NewCounterFunc(
			prometheus.CounterOpts{
				Namespace:   m.namespace,
				Name:        "classifier_tokens_total",
				Help:        "Tokens used by the Claude classifier, by direction",
				ConstLabels: prometheus.Labels{"direction": direction},
			},
			func() float64 {
				in, out := usage()
				if direction == "input" {
					return float64(in)
				}
				return float64(out)
			},
		))
	}
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns an HTTP handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

func (m *Metrics) begin() {
	if m != nil {
		m.inFlight.Inc()
	}
}

func (m *Metrics) observeStep(r models.StepResult, dispatched bool) {
	if m == nil {
		return
	}
	m.steps.WithLabelValues(r.Tool, string(r.Status)).Inc()
	if r.Error != nil {
		m.stepErrors.WithLabelValues(r.Tool, r.Error.Kind).Inc()
	}
	if dispatched {
		m.stepDuration.WithLabelValues(r.Tool).Observe(r.Duration.Seconds())
	}
}

func (m *Metrics) finish(status models.OutcomeStatus) {
	if m == nil {
		return
	}
	m.inFlight.Dec()
	m.instructions.WithLabelValues(string(status)).Inc()
}
