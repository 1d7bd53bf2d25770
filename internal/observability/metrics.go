// Package observability exposes prometheus metrics, a liveness probe and
// optional pprof endpoints over HTTP.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Metrics holds the crosspromo collectors on a private registry. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	reg *prometheus.Registry

	commands       *prometheus.CounterVec
	lookups        *prometheus.CounterVec
	snapshotWrites *prometheus.CounterVec
	jobRuns        *prometheus.CounterVec
	jobDuration    *prometheus.HistogramVec
}

// NewMetrics registers every collector. channels reports the live
// registry size for the crosspromo_channels gauge; it may be nil.
func NewMetrics(channels func() int) *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "crosspromo_commands_total",
			Help: "Operator registry commands, by action and outcome.",
		}, []string{"action", "outcome"}),
		lookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "crosspromo_metadata_lookups_total",
			Help: "Channel metadata lookups, by result.",
		}, []string{"result"}),
		snapshotWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "crosspromo_snapshot_writes_total",
			Help: "Registry snapshot writes, by result.",
		}, []string{"result"}),
		jobRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "crosspromo_job_runs_total",
			Help: "Scheduled maintenance job runs, by job and result.",
		}, []string{"job", "result"}),
		jobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "crosspromo_job_duration_seconds",
			Help:    "Duration of scheduled maintenance jobs.",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 60, 300, 900, 1800},
		}, []string{"job"}),
	}
	m.reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.commands, m.lookups, m.snapshotWrites, m.jobRuns, m.jobDuration,
	)
	if channels != nil {
		m.reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "crosspromo_channels",
			Help: "Channels currently in the registry.",
		}, func() float64 { return float64(channels()) }))
	}
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.reg
}

func (m *Metrics) Command(action, outcome string) {
	if m == nil {
		return
	}
	m.commands.WithLabelValues(action, outcome).Inc()
}

func (m *Metrics) Lookup(ok bool) {
	if m == nil {
		return
	}
	m.lookups.WithLabelValues(result(ok)).Inc()
}

func (m *Metrics) SnapshotWrite(ok bool) {
	if m == nil {
		return
	}
	m.snapshotWrites.WithLabelValues(result(ok)).Inc()
}

func (m *Metrics) JobDone(job string, took time.Duration, err error) {
	if m == nil {
		return
	}
	m.jobRuns.WithLabelValues(job, result(err == nil)).Inc()
	m.jobDuration.WithLabelValues(job).Observe(took.Seconds())
}

func result(ok bool) string {
	if ok {
		return "ok"
	}
	return "error"
}
