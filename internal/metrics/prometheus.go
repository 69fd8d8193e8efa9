package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for the collector process.
var (
	ticksTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "vextel_sampler_ticks_total",
			Help: "Total sampling ticks executed",
		},
	)

	tickDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "vextel_sampler_tick_duration_seconds",
			Help:    "Wall-clock duration of one sampling tick",
			Buckets: []float64{0.01, 0.05, 0.1, 0.2, 0.5, 1.0, 2.5},
		},
	)

	tickOverruns = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "vextel_sampler_tick_overruns_total",
			Help: "Ticks whose processing exceeded the target interval",
		},
	)

	recordsEmitted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "vextel_records_emitted_total",
			Help: "Sample records handed to the record sink",
		},
	)

	probeFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vextel_probe_failures_total",
			Help: "Failed metric probe reads, by probe kind",
		},
		[]string{"kind"},
	)

	rttTimeouts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "vextel_rtt_timeouts_total",
			Help: "Latency probes that timed out or lost their echo",
		},
	)

	flowCommandsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vextel_flow_commands_total",
			Help: "Flow start commands issued by the scheduler",
		},
		[]string{"status"},
	)

	schedulerCycles = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "vextel_scheduler_cycles_total",
			Help: "Completed scenario cycles",
		},
	)

	activeEndpoints = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "vextel_active_endpoints",
			Help: "Endpoints in the current scenario's active set",
		},
	)

	uplinkQueueDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "vextel_uplink_queue_depth_packets",
			Help: "Most recent queue depth of each zone uplink",
		},
		[]string{"zone"},
	)
)

// RecordTick records one completed sampling tick.
func RecordTick(duration time.Duration, overran bool) {
	ticksTotal.Inc()
	tickDuration.Observe(duration.Seconds())
	if overran {
		tickOverruns.Inc()
	}
}

// RecordRecords counts records handed to the sink.
func RecordRecords(n int) {
	recordsEmitted.Add(float64(n))
}

// RecordProbeFailure counts a failed probe read of the given kind
// ("counters" or "queue").
func RecordProbeFailure(kind string) {
	probeFailures.With(prometheus.Labels{"kind": kind}).Inc()
}

// RecordRTTTimeout counts a lost latency probe.
func RecordRTTTimeout() {
	rttTimeouts.Inc()
}

// RecordFlowCommand counts one flow start command by outcome.
func RecordFlowCommand(accepted bool) {
	status := "accepted"
	if !accepted {
		status = "rejected"
	}
	flowCommandsTotal.With(prometheus.Labels{"status": status}).Inc()
}

// RecordSchedulerCycle counts a started scenario cycle.
func RecordSchedulerCycle() {
	schedulerCycles.Inc()
}

// UpdateTrafficState mirrors the latest traffic snapshot into gauges.
func UpdateTrafficState(active int) {
	activeEndpoints.Set(float64(active))
}

// UpdateUplinkDepth mirrors the latest uplink queue depth for a zone.
func UpdateUplinkDepth(zone string, depth int) {
	uplinkQueueDepth.With(prometheus.Labels{"zone": zone}).Set(float64(depth))
}
