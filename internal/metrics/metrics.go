// Package metrics exposes Prometheus collectors for solve runs.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the solver collectors. A nil *Metrics ignores observations.
type Metrics struct {
	Registry *prometheus.Registry

	Questions       *prometheus.CounterVec
	Attempts        *prometheus.CounterVec
	LimiterWait     prometheus.Histogram
	RunDuration     prometheus.Histogram
	Images          *prometheus.CounterVec
	HTTPRequests    *prometheus.CounterVec
	ProgressClients prometheus.Gauge
}

// New registers the collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(prometheus.NewGoCollector(), prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))
	f := promauto.With(reg)
	return &Metrics{
		Registry: reg,
		Questions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "mcqsolver_questions_total",
			Help: "Questions processed by outcome",
		}, []string{"outcome"}),
		Attempts: f.NewCounterVec(prometheus.CounterOpts{
			Name: "mcqsolver_inference_attempts_total",
			Help: "Inference attempts by result kind",
		}, []string{"result"}),
		LimiterWait: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "mcqsolver_ratelimit_wait_seconds",
			Help:    "Time callers were told to wait for a rate limit slot",
			Buckets: []float64{0.5, 1, 5, 10, 30, 60},
		}),
		RunDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "mcqsolver_solve_duration_seconds",
			Help:    "Wall time of solve runs",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10),
		}),
		Images: f.NewCounterVec(prometheus.CounterOpts{
			Name: "mcqsolver_remediated_images_total",
			Help: "Cross-origin images replaced before capture",
		}, []string{"via"}),
		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "mcqsolver_http_requests_total",
			Help: "Control surface requests",
		}, []string{"method", "path", "status"}),
		ProgressClients: f.NewGauge(prometheus.GaugeOpts{
			Name: "mcqsolver_progress_clients",
			Help: "Connected progress stream clients",
		}),
	}
}

func (m *Metrics) Question(ok bool) {
	if m == nil {
		return
	}
	outcome := "success"
	if !ok {
		outcome = "failure"
	}
	m.Questions.WithLabelValues(outcome).Inc()
}

func (m *Metrics) Attempt(result string) {
	if m == nil {
		return
	}
	m.Attempts.WithLabelValues(result).Inc()
}

// ObserveWait has the ratelimit.Observer signature.
func (m *Metrics) ObserveWait(d time.Duration) {
	if m == nil {
		return
	}
	m.LimiterWait.Observe(d.Seconds())
}

func (m *Metrics) Run(d time.Duration) {
	if m == nil {
		return
	}
	m.RunDuration.Observe(d.Seconds())
}

func (m *Metrics) Remediated(relayed, placeholders int) {
	if m == nil {
		return
	}
	m.Images.WithLabelValues("relay").Add(float64(relayed))
	m.Images.WithLabelValues("placeholder").Add(float64(placeholders))
}
