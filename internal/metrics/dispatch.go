package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// dispatchMetrics wraps the Prometheus collectors fed from
// dispatch.Executor.Snapshot(), registered against the default
// registerer so dispatchctl's metrics work without any separate setup.
//
// The underlying Statistics counters are monotonically non-decreasing for
// the executor's lifetime, so Gauges set directly to the snapshot value
// behave identically to Counters here while letting one Set call push an
// entire per-agent/per-type snapshot without needing Add deltas.
type dispatchMetrics struct {
	submitted   *prometheus.GaugeVec
	executed    *prometheus.GaugeVec
	failed      *prometheus.GaugeVec
	rateLimited *prometheus.GaugeVec
	unhandled   *prometheus.GaugeVec
	queueDepth  prometheus.Gauge
	routerDepth prometheus.Gauge
}

var (
	dispatchOnce sync.Once
	dm           *dispatchMetrics
)

func registerer() prometheus.Registerer {
	return prometheus.DefaultRegisterer
}

// InitDispatchMetrics registers the dispatch fabric's Prometheus
// collectors. Safe to call once per process; subsequent calls are no-ops.
func InitDispatchMetrics(namespace string) {
	dispatchOnce.Do(func() {
		if namespace == "" {
			namespace = "nova"
		}
		dm = &dispatchMetrics{
			submitted: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Namespace: namespace, Subsystem: "dispatch", Name: "agent_submitted",
				Help: "Commands submitted per agent.",
			}, []string{"agent"}),
			executed: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Namespace: namespace, Subsystem: "dispatch", Name: "agent_executed",
				Help: "Commands successfully executed per agent.",
			}, []string{"agent"}),
			failed: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Namespace: namespace, Subsystem: "dispatch", Name: "agent_failed",
				Help: "Commands that errored, panicked, or were lost at callback, per agent.",
			}, []string{"agent"}),
			rateLimited: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Namespace: namespace, Subsystem: "dispatch", Name: "agent_rate_limited",
				Help: "Commands rejected by the per-agent rate limiter.",
			}, []string{"agent"}),
			unhandled: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Namespace: namespace, Subsystem: "dispatch", Name: "agent_unhandled",
				Help: "Commands submitted for a type with no registered handler.",
			}, []string{"agent"}),
			queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: namespace, Subsystem: "dispatch", Name: "command_queue_depth",
				Help: "Approximate number of commands awaiting dispatch.",
			}),
			routerDepth: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: namespace, Subsystem: "dispatch", Name: "callback_router_depth",
				Help: "Approximate number of callback envelopes awaiting delivery.",
			}),
		}
		registerer().MustRegister(
			dm.submitted, dm.executed, dm.failed, dm.rateLimited, dm.unhandled,
			dm.queueDepth, dm.routerDepth,
		)
	})
}

// DispatchAgentSnapshot is the minimal per-agent shape
// RecordDispatchSnapshot needs, matching dispatch.AgentCounters without
// this package importing internal/dispatch (metrics stays a leaf
// package; dispatch depends on nothing here).
type DispatchAgentSnapshot struct {
	Submitted   uint64
	Executed    uint64
	Failed      uint64
	RateLimited uint64
	Unhandled   uint64
}

// RecordDispatchSnapshot pushes one polled Statistics snapshot into the
// registered Gauges. The host's main loop calls this periodically (e.g.
// once per tick, or on a ticker) after InitDispatchMetrics.
func RecordDispatchSnapshot(agents map[string]DispatchAgentSnapshot, queueDepth, routerDepth int) {
	if dm == nil {
		return
	}
	for agent, c := range agents {
		dm.submitted.WithLabelValues(agent).Set(float64(c.Submitted))
		dm.executed.WithLabelValues(agent).Set(float64(c.Executed))
		dm.failed.WithLabelValues(agent).Set(float64(c.Failed))
		dm.rateLimited.WithLabelValues(agent).Set(float64(c.RateLimited))
		dm.unhandled.WithLabelValues(agent).Set(float64(c.Unhandled))
	}
	dm.queueDepth.Set(float64(queueDepth))
	dm.routerDepth.Set(float64(routerDepth))
}
