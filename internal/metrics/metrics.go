// Package metrics exposes Prometheus collectors for TerraPipe.
//
// Collectors live on a private registry so tests can build independent
// instances. All Recorder methods are safe to call on a nil receiver.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels
const (
	OutcomeAccepted = "accepted"
	OutcomeRejected = "rejected"
	OutcomeSuccess  = "success"
	OutcomeFailure  = "failure"
)

// Recorder groups the application collectors.
type Recorder struct {
	registry       *prometheus.Registry
	submissions    *prometheus.CounterVec
	gatewayCalls   *prometheus.CounterVec
	lookupDuration *prometheus.HistogramVec
	legalQuestions *prometheus.CounterVec
}

// New creates a Recorder with its own registry, including Go runtime collectors.
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		submissions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "terrapipe_submissions_total",
				Help: "Questionnaire submissions by step and outcome",
			},
			[]string{"step", "outcome"},
		),
		gatewayCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "terrapipe_gateway_calls_total",
				Help: "Completion gateway calls by purpose and outcome",
			},
			[]string{"purpose", "outcome"},
		),
		lookupDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "terrapipe_lookup_duration_seconds",
				Help:    "Duration of external location lookups",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"kind"},
		),
		legalQuestions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "terrapipe_legal_questions_total",
				Help: "Legal assistant questions by outcome",
			},
			[]string{"outcome"},
		),
	}
	r.registry.MustRegister(
		r.submissions, r.gatewayCalls, r.lookupDuration, r.legalQuestions,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

func (r *Recorder) ObserveSubmission(step, outcome string) {
	if r == nil {
		return
	}
	r.submissions.WithLabelValues(step, outcome).Inc()
}

func (r *Recorder) ObserveGatewayCall(purpose, outcome string) {
	if r == nil {
		return
	}
	r.gatewayCalls.WithLabelValues(purpose, outcome).Inc()
}

func (r *Recorder) ObserveLookup(kind string, d time.Duration) {
	if r == nil {
		return
	}
	r.lookupDuration.WithLabelValues(kind).Observe(d.Seconds())
}

func (r *Recorder) ObserveLegalQuestion(outcome string) {
	if r == nil {
		return
	}
	r.legalQuestions.WithLabelValues(outcome).Inc()
}
