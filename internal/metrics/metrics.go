// Package metrics exposes dispatch instrumentation as Prometheus metrics.
package metrics

import (
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/maauso/genspace-api/internal/generator"
)

const namespace = "genspace"

// Result label values of genspace_generations_total.
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)

// Compile-time check that Prometheus implements generator.Observer.
var _ generator.Observer = (*Prometheus)(nil)

// Prometheus records dispatch attempts, poll ticks and generation outcomes.
type Prometheus struct {
	registry    *prometheus.Registry
	attempts    *prometheus.CounterVec
	generations *prometheus.CounterVec
	pollTicks   *prometheus.CounterVec
	duration    *prometheus.HistogramVec
}

// New creates the collectors and registers them, together with the Go
// runtime and process collectors, on a dedicated registry.
func New() (*Prometheus, error) {
	p := &Prometheus{
		registry: prometheus.NewRegistry(),
		attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dispatch_attempts_total",
			Help:      "Credential attempts made by the dispatcher, by outcome.",
		}, []string{"modality", "outcome"}),
		generations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generations_total",
			Help:      "Finished generations, by result.",
		}, []string{"modality", "result"}),
		pollTicks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "poll_ticks_total",
			Help:      "Long-running operation status fetches.",
		}, []string{"modality"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "generation_duration_seconds",
			Help:      "Wall time of a dispatch from validation to result.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 20, 40, 80, 160, 320},
		}, []string{"modality"}),
	}

	cs := []prometheus.Collector{
		p.attempts,
		p.generations,
		p.pollTicks,
		p.duration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	}
	for _, c := range cs {
		if err := p.registry.Register(c); err != nil {
			var already prometheus.AlreadyRegisteredError
			if errors.As(err, &already) {
				continue
			}
			return nil, err
		}
	}
	return p, nil
}

// ObserveAttempt counts one credential attempt.
func (p *Prometheus) ObserveAttempt(m generator.Modality, outcome string) {
	p.attempts.WithLabelValues(string(m), outcome).Inc()
}

// ObservePollTick counts one operation fetch.
func (p *Prometheus) ObservePollTick(m generator.Modality) {
	p.pollTicks.WithLabelValues(string(m)).Inc()
}

// ObserveResult counts a finished dispatch and records its duration.
func (p *Prometheus) ObserveResult(res generator.Result, elapsed time.Duration) {
	result := ResultSuccess
	if !res.Success {
		result = ResultFailure
	}
	p.generations.WithLabelValues(string(res.Modality), result).Inc()
	p.duration.WithLabelValues(string(res.Modality)).Observe(elapsed.Seconds())
}

// Handler serves the registry in the Prometheus exposition format.
func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{Registry: p.registry})
}

// Registry returns the underlying registry.
func (p *Prometheus) Registry() *prometheus.Registry {
	return p.registry
}
