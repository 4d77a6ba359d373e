package metrics

import (
	"runtime"
	"runtime/debug"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registry = prometheus.NewRegistry()

	snapshotDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "leakwatch",
		Name:      "snapshot_duration_seconds",
		Help:      "Time spent assembling a full snapshot.",
	})

	leaksDetected = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "leakwatch",
		Name:      "leaks_detected_total",
		Help:      "Total leaks detected, partitioned by kind.",
	}, []string{"kind"})

	processReady = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "leakwatch",
		Name:      "process_ready",
		Help:      "Readiness state of supervised processes (1=ready, 0=not ready).",
	}, []string{"process"})

	killEscalations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "leakwatch",
		Name:      "kill_escalations_total",
		Help:      "Terminations that had to escalate from SIGTERM to SIGKILL.",
	}, []string{"process"})

	buildInfo = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "leakwatch",
		Name:      "build_info",
		Help:      "Build metadata for the running leakwatch binary.",
	}, []string{"go_version", "vcs_revision", "vcs_time"})

	buildInfoOnce sync.Once
)

func init() {
	registry.MustRegister(snapshotDuration, leaksDetected, processReady, killEscalations, buildInfo)
}

// Registry returns the Prometheus registry containing all leakwatch metrics.
func Registry() *prometheus.Registry {
	return registry
}

// ObserveSnapshotDuration records how long one snapshot took to assemble.
func ObserveSnapshotDuration(d time.Duration) {
	snapshotDuration.Observe(d.Seconds())
}

// AddLeaks counts detected leaks of the given kind ("orphan" or "port").
func AddLeaks(kind string, n int) {
	if kind == "" || n <= 0 {
		return
	}
	leaksDetected.WithLabelValues(kind).Add(float64(n))
}

// SetProcessReady records the readiness state of a supervised process.
func SetProcessReady(process string, ready bool) {
	if process == "" {
		return
	}
	value := 0.0
	if ready {
		value = 1.0
	}
	processReady.WithLabelValues(process).Set(value)
}

// IncrementKillEscalation counts a SIGTERM grace period expiring.
func IncrementKillEscalation(process string) {
	if process == "" {
		process = "unknown"
	}
	killEscalations.WithLabelValues(process).Inc()
}

// ResetProcess clears per-process series once a handle is released.
func ResetProcess(process string) {
	if process == "" {
		return
	}
	processReady.DeleteLabelValues(process)
	killEscalations.DeleteLabelValues(process)
}

// EmitBuildInfo publishes build metadata about the running binary.
func EmitBuildInfo() {
	buildInfoOnce.Do(func() {
		labels := prometheus.Labels{
			"go_version":   runtime.Version(),
			"vcs_revision": "",
			"vcs_time":     "",
		}
		if info, ok := debug.ReadBuildInfo(); ok {
			if info.GoVersion != "" {
				labels["go_version"] = info.GoVersion
			}
			for _, setting := range info.Settings {
				switch setting.Key {
				case "vcs.revision":
					labels["vcs_revision"] = setting.Value
				case "vcs.time":
					labels["vcs_time"] = setting.Value
				}
			}
		}
		buildInfo.With(labels).Set(1)
	})
}
