// Package metrics defines VURM's Prometheus instrumentation: a
// namespace/subsystem/name vec layout with enabled-gated recording helpers
// for the allocation pipeline.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	clustersTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "vurm",
			Subsystem: "controller",
			Name:      "clusters_total",
			Help:      "Number of virtual clusters currently registered.",
		},
		[]string{},
	)

	nodesTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "vurm",
			Subsystem: "controller",
			Name:      "nodes_total",
			Help:      "Number of nodes across all virtual clusters, by lifecycle state.",
		},
		[]string{"state"},
	)

	allocateDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "vurm",
			Subsystem: "controller",
			Name:      "allocate_duration_seconds",
			Help:      "Duration of CreateVirtualCluster requests in seconds.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 10),
		},
		[]string{"result"},
	)

	reconfigureFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vurm",
			Subsystem: "controller",
			Name:      "reconfigure_failures_total",
			Help:      "Total number of scheduler reconfigure hook failures.",
		},
		[]string{},
	)

	provisionerNodesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vurm",
			Subsystem: "provisioner",
			Name:      "nodes_acquired_total",
			Help:      "Total number of nodes acquired from a provisioner, by outcome.",
		},
		[]string{"provisioner", "outcome"},
	)
)

// Registry collects VURM's collectors for registration with a
// prometheus.Registerer. Call MustRegister once at process startup.
var Registry = []prometheus.Collector{
	clustersTotal,
	nodesTotal,
	allocateDuration,
	reconfigureFailuresTotal,
	provisionerNodesTotal,
}

// MustRegister registers every VURM collector with reg.
func MustRegister(reg prometheus.Registerer) {
	for _, c := range Registry {
		reg.MustRegister(c)
	}
}

// Recorder gates every recording call behind an enabled flag, so callers
// don't need to repeat the check at every call site.
type Recorder struct {
	enabled bool
}

// NewRecorder returns a Recorder that records only when enabled is true.
func NewRecorder(enabled bool) Recorder {
	return Recorder{enabled: enabled}
}

// SetClustersTotal records the current cluster registry size.
func (r Recorder) SetClustersTotal(n int) {
	if !r.enabled {
		return
	}
	clustersTotal.With(prometheus.Labels{}).Set(float64(n))
}

// SetNodesTotal records the current node count in the given lifecycle
// state.
func (r Recorder) SetNodesTotal(state string, n int) {
	if !r.enabled {
		return
	}
	nodesTotal.WithLabelValues(state).Set(float64(n))
}

// ObserveAllocate records one CreateVirtualCluster request's duration and
// outcome ("success" or "failure").
func (r Recorder) ObserveAllocate(result string, d time.Duration) {
	if !r.enabled {
		return
	}
	allocateDuration.WithLabelValues(result).Observe(d.Seconds())
}

// IncReconfigureFailure records one reconfigure-hook failure.
func (r Recorder) IncReconfigureFailure() {
	if !r.enabled {
		return
	}
	reconfigureFailuresTotal.With(prometheus.Labels{}).Inc()
}

// IncProvisionerNodes records count nodes acquired from provisioner with
// the given outcome ("acquired" or "released").
func (r Recorder) IncProvisionerNodes(provisioner, outcome string, count int) {
	if !r.enabled || count == 0 {
		return
	}
	provisionerNodesTotal.WithLabelValues(provisioner, outcome).Add(float64(count))
}
