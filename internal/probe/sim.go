package probe

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/iti/rngstream"

	"github.com/v2xlab/vextel/internal/topology"
)

// SimNetwork is a synthetic stand-in for the emulated network: it
// implements both MetricProbe and FlowDriver against a closed-form
// traffic model, so the collector can produce a full dataset without a
// running emulator. Flow commands accumulate offered load per
// endpoint; interface counters advance lazily on read according to the
// load active since the previous read, and zone uplinks saturate at
// their configured bandwidth, growing queue depth and drops under
// overload.
type SimNetwork struct {
	mu      sync.Mutex
	topo    *topology.Topology
	uplinks map[topology.Zone]topology.Uplink
	flows   map[string][]simFlow
	ifaces  map[string]*simIface
	rng     *rngstream.RngStream
	now     func() time.Time
}

type simFlow struct {
	rateMbps float64
	until    time.Time
}

type simIface struct {
	txBytes uint64
	rxBytes uint64
	drops   uint64
	depth   int
	last    time.Time
}

const simPacketBytes = 1500

// NewSimNetwork builds a simulated network over the given topology.
// The rng stream drives only the loss jitter of latency probes; flow
// dynamics are deterministic in the issued commands.
func NewSimNetwork(topo *topology.Topology) (*SimNetwork, error) {
	uplinks, err := topo.ResolveUplinks()
	if err != nil {
		return nil, err
	}
	return &SimNetwork{
		topo:    topo,
		uplinks: uplinks,
		flows:   make(map[string][]simFlow),
		ifaces:  make(map[string]*simIface),
		rng:     rngstream.New("simnet"),
		now:     time.Now,
	}, nil
}

// StartFlow registers an offered-load flow on the endpoint. Rejects
// non-positive rates and durations, mirroring a command channel that
// refuses malformed invocations.
func (s *SimNetwork) StartFlow(_ context.Context, ep topology.Endpoint, rateMbps float64, duration time.Duration) error {
	if rateMbps <= 0 || duration <= 0 {
		return fmt.Errorf("simnet: rejected flow on %s: rate=%.1f dur=%s", ep.Name, rateMbps, duration)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flows[ep.Name] = append(s.flows[ep.Name], simFlow{
		rateMbps: rateMbps,
		until:    s.now().Add(duration),
	})
	return nil
}

// offeredMbps sums the rates of flows still active at t, pruning
// expired ones in place.
func (s *SimNetwork) offeredMbps(name string, t time.Time) float64 {
	var total float64
	kept := s.flows[name][:0]
	for _, f := range s.flows[name] {
		if f.until.After(t) {
			total += f.rateMbps
			kept = append(kept, f)
		}
	}
	s.flows[name] = kept
	return total
}

func (s *SimNetwork) zoneOfferedMbps(z topology.Zone, t time.Time) float64 {
	var total float64
	for _, ep := range s.topo.EndpointsInZone(z) {
		total += s.offeredMbps(ep.Name, t)
	}
	return total
}

func (s *SimNetwork) iface(node, intf string) *simIface {
	key := node + "/" + intf
	fc, ok := s.ifaces[key]
	if !ok {
		fc = &simIface{last: s.now()}
		s.ifaces[key] = fc
	}
	return fc
}

// advance integrates carried and dropped traffic over the time since
// the interface was last read.
func (fc *simIface) advance(t time.Time, carriedMbps, droppedMbps float64, depth int) {
	dt := t.Sub(fc.last).Seconds()
	if dt > 0 {
		fc.txBytes += uint64(carriedMbps * 1e6 / 8 * dt)
		fc.rxBytes += uint64(carriedMbps * 1e6 / 8 * dt / 50) // ack trickle
		fc.drops += uint64(droppedMbps * 1e6 / 8 * dt / simPacketBytes)
		fc.last = t
	}
	fc.depth = depth
}

// uplinkLoad computes the carried rate, drop rate, and queue depth of
// the zone uplink under its configured capacity.
func (s *SimNetwork) uplinkLoad(z topology.Zone, t time.Time) (carried, dropped float64, depth int) {
	const capacityMbps = 100.0
	const queueLen = 500

	offered := s.zoneOfferedMbps(z, t)
	carried = offered
	if offered > capacityMbps {
		carried = capacityMbps
		dropped = offered - capacityMbps
	}
	// Queue builds as the link approaches saturation.
	util := offered / capacityMbps
	switch {
	case util >= 1:
		depth = queueLen
	case util > 0.7:
		depth = int((util - 0.7) / 0.3 * queueLen)
	}
	return carried, dropped, depth
}

func (s *SimNetwork) endpointLoad(ep topology.Endpoint, t time.Time) (carried, dropped float64, depth int) {
	capacity := 80.0
	switch ep.Zone {
	case topology.ZoneUrban:
		capacity = 40.0
	case topology.ZoneSuburb:
		capacity = 30.0
	}
	const queueLen = 200

	offered := s.offeredMbps(ep.Name, t)
	carried = offered
	if offered > capacity {
		carried = capacity
		dropped = offered - capacity
		depth = queueLen
	}
	return carried, dropped, depth
}

func (s *SimNetwork) zoneOfSwitch(node string) (topology.Zone, bool) {
	for z, sw := range s.topo.ZoneSwitches {
		if sw == node {
			return z, true
		}
	}
	return "", false
}

// ReadLinkCounters returns the monotonic counters of the interface,
// advanced to the current simulated instant.
func (s *SimNetwork) ReadLinkCounters(node, intf string) (LinkCounters, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := s.now()
	fc := s.iface(node, intf)
	if z, ok := s.zoneOfSwitch(node); ok {
		carried, dropped, depth := s.uplinkLoad(z, t)
		fc.advance(t, carried, dropped, depth)
	} else if ep, ok := s.topo.EndpointByName(node); ok {
		carried, dropped, depth := s.endpointLoad(ep, t)
		fc.advance(t, carried, dropped, depth)
	} else {
		return LinkCounters{}, fmt.Errorf("simnet: unknown node %q", node)
	}
	return LinkCounters{TxBytes: fc.txBytes, RxBytes: fc.rxBytes, Drops: fc.drops}, nil
}

// ReadQueueStats reports the interface's current backlog and its
// cumulative drop counter.
func (s *SimNetwork) ReadQueueStats(node, intf string) (QueueStats, error) {
	if _, err := s.ReadLinkCounters(node, intf); err != nil {
		return QueueStats{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	fc := s.iface(node, intf)
	return QueueStats{Depth: fc.depth, Drops: fc.drops}, nil
}

// ProbeLatency models RTT as propagation plus a queueing term on the
// endpoint's zone uplink. Echoes are lost with rising probability as
// the uplink saturates.
func (s *SimNetwork) ProbeLatency(_ context.Context, node, _ string, timeout time.Duration) (float64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ep, ok := s.topo.EndpointByName(node)
	if !ok {
		return 0, false
	}
	t := s.now()
	_, _, depth := s.uplinkLoad(ep.Zone, t)

	const baseRTTMs = 10.0
	// Each queued packet adds its serialization delay at uplink rate.
	queueingMs := float64(depth) * simPacketBytes * 8 / 100e6 * 1000

	lossP := 0.0
	if depth >= 500 {
		lossP = 0.4
	} else if depth > 0 {
		lossP = 0.05
	}
	if lossP > 0 && s.rng.RandU01() < lossP {
		return 0, false
	}

	rtt := baseRTTMs + queueingMs
	if rtt > float64(timeout)/float64(time.Millisecond) {
		return 0, false
	}
	return rtt, true
}

// SetClock overrides the simulated wall clock. Tests use it to advance
// time deterministically.
func (s *SimNetwork) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}
