package probe

import (
	"context"
	"time"

	"github.com/v2xlab/vextel/internal/topology"
)

// LinkCounters are raw monotonic interface counters as read from the
// emulated node. Values only ever decrease when the underlying counter
// resets; consumers must clamp derived deltas at zero.
type LinkCounters struct {
	TxBytes uint64
	RxBytes uint64
	Drops   uint64
}

// QueueStats is a point-in-time read of an interface's qdisc: current
// backlog in packets and the cumulative drop counter.
type QueueStats struct {
	Depth int
	Drops uint64
}

// MetricProbe reads raw telemetry from the emulated network. A failed
// read returns an error; the sampling loop substitutes zero values and
// keeps going, so implementations should bound their own latency (the
// RTT probe timeout is enforced by the probe, not its caller).
type MetricProbe interface {
	ReadLinkCounters(node, intf string) (LinkCounters, error)
	ReadQueueStats(node, intf string) (QueueStats, error)

	// ProbeLatency sends one echo from node to target. ok is false on
	// timeout or loss, in which case rttMs is meaningless.
	ProbeLatency(ctx context.Context, node, target string, timeout time.Duration) (rttMs float64, ok bool)
}

// FlowDriver is the flow command channel: fire-and-forget traffic
// starts against an endpoint. A returned error means the command was
// rejected; there is no completion callback and no retry.
type FlowDriver interface {
	StartFlow(ctx context.Context, ep topology.Endpoint, rateMbps float64, duration time.Duration) error
}
