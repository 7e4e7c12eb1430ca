// Package metrics holds the Prometheus collectors for the driver and
// session. A nil *Metrics is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	commands       *prometheus.CounterVec
	commandLatency *prometheus.HistogramVec
	retries        *prometheus.CounterVec
	discarded      prometheus.Counter
	state          *prometheus.GaugeVec

	stepsDone  prometheus.Gauge
	stepsTotal prometheus.Gauge
	jobs       *prometheus.CounterVec
}

// New creates the collectors and registers them with reg. A nil reg skips
// registration.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		commands: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "plotter_commands_total",
				Help: "Device commands by kind and outcome.",
			},
			[]string{"kind", "outcome"},
		),
		commandLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "plotter_command_seconds",
				Help:    "Time from writing a command to its acknowledgment.",
				Buckets: prometheus.ExponentialBuckets(0.001, 2, 14),
			},
			[]string{"kind"},
		),
		retries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "plotter_command_retries_total",
				Help: "Commands resent after a timeout.",
			},
			[]string{"kind"},
		),
		discarded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "plotter_discarded_lines_total",
			Help: "Device lines that matched no pending command.",
		}),
		state: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "plotter_connection_state",
				Help: "1 for the current connection state, 0 otherwise.",
			},
			[]string{"state"},
		),
		stepsDone: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "plotter_job_steps_completed",
			Help: "Acknowledged steps of the running job.",
		}),
		stepsTotal: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "plotter_job_steps_total",
			Help: "Steps in the running job.",
		}),
		jobs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "plotter_jobs_total",
				Help: "Finished jobs by outcome.",
			},
			[]string{"outcome"},
		),
	}
	if reg != nil {
		reg.MustRegister(m.commands, m.commandLatency, m.retries, m.discarded, m.state, m.stepsDone, m.stepsTotal, m.jobs)
	}
	return m
}

// Command records a finished exchange.
func (m *Metrics) Command(kind, outcome string, latency time.Duration) {
	if m == nil {
		return
	}
	m.commands.WithLabelValues(kind, outcome).Inc()
	if outcome == "ok" {
		m.commandLatency.WithLabelValues(kind).Observe(latency.Seconds())
	}
}

func (m *Metrics) Retry(kind string) {
	if m == nil {
		return
	}
	m.retries.WithLabelValues(kind).Inc()
}

func (m *Metrics) Discarded() {
	if m == nil {
		return
	}
	m.discarded.Inc()
}

// State marks current as the active connection state among all.
func (m *Metrics) State(current string, all []string) {
	if m == nil {
		return
	}
	for _, s := range all {
		v := 0.0
		if s == current {
			v = 1
		}
		m.state.WithLabelValues(s).Set(v)
	}
}

func (m *Metrics) Progress(done, total int) {
	if m == nil {
		return
	}
	m.stepsDone.Set(float64(done))
	m.stepsTotal.Set(float64(total))
}

func (m *Metrics) Job(outcome string) {
	if m == nil {
		return
	}
	m.jobs.WithLabelValues(outcome).Inc()
}
