package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ContainersTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "lockc_containers_total",
			Help: "Total number of registered containers by policy level",
		},
		[]string{"policy_level"},
	)

	ProcessesTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "lockc_processes_total",
			Help: "Total number of tracked processes across all containers",
		},
	)

	HookDecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lockc_hook_decisions_total",
			Help: "Total number of LSM hook decisions by hook and outcome",
		},
		[]string{"hook", "decision"},
	)

	RuntimeInterceptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lockc_runtime_intercepts_total",
			Help: "Total number of runtime invocations intercepted by action",
		},
		[]string{"action"},
	)

	PolicyResolutionDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "lockc_policy_resolution_duration_seconds",
			Help:    "Time taken to resolve a new container's policy level",
			Buckets: prometheus.DefBuckets,
		},
	)

	ResolutionFallbacksTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "lockc_policy_resolution_fallbacks_total",
			Help: "Total number of policy resolutions that fell back to baseline on error",
		},
	)

	ControlPlaneQueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "lockc_control_plane_queue_depth",
			Help: "Number of commands currently queued for the control-plane maintainer",
		},
	)

	ControlPlaneCommandDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "lockc_control_plane_command_duration_seconds",
			Help:    "Time taken to apply a control-plane command, by op",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"op"},
	)
)

func init() {
	prometheus.MustRegister(ContainersTotal)
	prometheus.MustRegister(ProcessesTotal)
	prometheus.MustRegister(HookDecisionsTotal)
	prometheus.MustRegister(RuntimeInterceptsTotal)
	prometheus.MustRegister(PolicyResolutionDuration)
	prometheus.MustRegister(ResolutionFallbacksTotal)
	prometheus.MustRegister(ControlPlaneQueueDepth)
	prometheus.MustRegister(ControlPlaneCommandDuration)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	duration := time.Since(t.start).Seconds()
	histogram.Observe(duration)
}

// ObserveDurationVec records the duration to a histogram vec with labels
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	duration := time.Since(t.start).Seconds()
	histogram.WithLabelValues(labels...).Observe(duration)
}

// Duration returns the elapsed time since timer started
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
