package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Recorder collects per-tenant batch outcomes. It registers on its own
// registry so a run can be exported as a node-exporter textfile.
type Recorder struct {
	registry *prometheus.Registry
	results  *prometheus.CounterVec
	duration prometheus.Histogram
	lastRun  prometheus.Gauge
}

func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		results: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "zonesync_tenant_results_total",
			Help: "Tenant reconciliations by outcome.",
		}, []string{"outcome"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "zonesync_tenant_duration_seconds",
			Help:    "Time spent on one tenant, auth and fetch included.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
		}),
		lastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "zonesync_last_run_timestamp_seconds",
			Help: "Unix time the last batch finished.",
		}),
	}
	r.registry.MustRegister(r.results, r.duration, r.lastRun)
	return r
}

// ObserveTenant records one tenant. outcome is "ok" or an error kind.
func (r *Recorder) ObserveTenant(outcome string, d time.Duration) {
	r.results.WithLabelValues(outcome).Inc()
	r.duration.Observe(d.Seconds())
}

// Finish stamps the end of a batch.
func (r *Recorder) Finish(at time.Time) {
	r.lastRun.Set(float64(at.Unix()))
}

func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// WriteTextfile writes all metrics to path atomically.
func (r *Recorder) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, r.registry)
}
