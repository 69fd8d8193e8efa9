package sampler

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/v2xlab/vextel/internal/metrics"
	"github.com/v2xlab/vextel/internal/probe"
	"github.com/v2xlab/vextel/internal/topology"
	"github.com/v2xlab/vextel/internal/traffic"
)

// Config holds the sampling loop's timing parameters.
type Config struct {
	// RunDuration is the total wall-clock budget of the run.
	RunDuration time.Duration

	// Interval is the target tick period. When a tick overruns it, the
	// loop sleeps MinSleep instead and lets the next dt reflect the
	// longer actual interval; dt accuracy matters more than hitting
	// the nominal period.
	Interval time.Duration

	// RTTTimeout bounds each latency probe.
	RTTTimeout time.Duration

	// MinSleep is the floor slept after an overrunning tick.
	MinSleep time.Duration
}

// DefaultConfig returns the stock sampling parameters.
func DefaultConfig() Config {
	return Config{
		RunDuration: 120 * time.Second,
		Interval:    200 * time.Millisecond,
		RTTTimeout:  100 * time.Millisecond,
		MinSleep:    10 * time.Millisecond,
	}
}

// counterSnap remembers the previous tick's raw counters for one
// interface. Owned exclusively by the sampling loop.
type counterSnap struct {
	txBytes uint64
	rxBytes uint64
	qDrops  uint64
	ts      time.Time
	seen    bool
}

// uplinkSample is a zone uplink's contribution to the current tick,
// broadcast to every endpoint record in the zone.
type uplinkSample struct {
	depth     int
	dropDelta uint64
}

// Sampler is the foreground collection loop: every tick it polls each
// zone uplink once and every endpoint once, converts raw counters to
// rates and deltas, joins in the traffic-state snapshot as the label,
// and emits one record per endpoint to the sink.
type Sampler struct {
	logger  *zap.Logger
	cfg     Config
	topo    *topology.Topology
	uplinks map[topology.Zone]topology.Uplink
	probe   probe.MetricProbe
	state   *traffic.State
	sink    RecordSink

	endpointSnaps map[string]*counterSnap
	uplinkSnaps   map[topology.Zone]*counterSnap

	// failLog throttles probe-failure logging so a dead probe cannot
	// flood the log at tick rate.
	failLog *rate.Limiter
}

// New builds a sampler over resolved uplinks. The uplink map must be
// complete; resolution failures are fatal upstream.
func New(
	logger *zap.Logger,
	cfg Config,
	topo *topology.Topology,
	uplinks map[topology.Zone]topology.Uplink,
	p probe.MetricProbe,
	state *traffic.State,
	sink RecordSink,
) *Sampler {
	if cfg.MinSleep <= 0 {
		cfg.MinSleep = 10 * time.Millisecond
	}
	return &Sampler{
		logger:        logger,
		cfg:           cfg,
		topo:          topo,
		uplinks:       uplinks,
		probe:         p,
		state:         state,
		sink:          sink,
		endpointSnaps: make(map[string]*counterSnap),
		uplinkSnaps:   make(map[topology.Zone]*counterSnap),
		failLog:       rate.NewLimiter(rate.Every(time.Second), 1),
	}
}

// Run executes the sampling loop until the run duration elapses or ctx
// is cancelled. Cancellation is observed at the top of a tick: the
// in-flight tick always completes and its records are written.
func (s *Sampler) Run(ctx context.Context) error {
	start := time.Now()
	// The first tick has no real predecessor; backdating lastTick by
	// one interval gives its records a nominal dt instead of the
	// near-zero gap to loop entry.
	lastTick := start.Add(-s.cfg.Interval)

	s.logger.Info("Sampling loop starting",
		zap.Duration("runDuration", s.cfg.RunDuration),
		zap.Duration("interval", s.cfg.Interval),
		zap.Int("endpoints", len(s.topo.Endpoints)))

	ticks := 0
	for {
		if ctx.Err() != nil {
			s.logger.Info("Sampling loop cancelled", zap.Int("ticks", ticks))
			return nil
		}

		// time.Now carries a monotonic reading, so both elapsed and dt
		// are immune to wall-clock adjustments.
		now := time.Now()
		if now.Sub(start) >= s.cfg.RunDuration {
			break
		}

		dt := now.Sub(lastTick).Seconds()
		if dt <= 0 {
			dt = s.cfg.Interval.Seconds()
		}
		lastTick = now

		s.tick(ctx, now.Sub(start), dt, now)
		ticks++

		tickDur := time.Since(now)
		sleep := s.cfg.Interval - tickDur
		overran := sleep < s.cfg.MinSleep
		if overran {
			// No catch-up pacing: the next dt simply reflects the
			// longer interval.
			sleep = s.cfg.MinSleep
		}
		metrics.RecordTick(tickDur, overran)

		timer := time.NewTimer(sleep)
		select {
		case <-ctx.Done():
			timer.Stop()
		case <-timer.C:
		}
	}

	s.logger.Info("Sampling loop finished", zap.Int("ticks", ticks))
	return nil
}

// tick performs one collection pass: one traffic snapshot, one poll
// per uplink, one poll per endpoint, one batch to the sink.
func (s *Sampler) tick(ctx context.Context, elapsed time.Duration, dt float64, now time.Time) {
	// One snapshot per tick, not per endpoint, so records within a
	// tick cannot tear across a scenario transition.
	snap := s.state.Snapshot()
	metrics.UpdateTrafficState(len(snap.Active))

	uplinkStats := s.pollUplinks(now)

	recs := make([]Record, 0, len(s.topo.Endpoints))
	for _, ep := range s.topo.Endpoints {
		recs = append(recs, s.sampleEndpoint(ctx, ep, snap, uplinkStats[ep.Zone], elapsed, dt, now))
	}

	if err := s.sink.WriteBatch(recs); err != nil {
		s.logger.Error("Record sink write failed", zap.Error(err))
		return
	}
	metrics.RecordRecords(len(recs))
}

// pollUplinks reads each zone uplink's queue once per tick and derives
// the drop delta against the previous tick.
func (s *Sampler) pollUplinks(now time.Time) map[topology.Zone]uplinkSample {
	out := make(map[topology.Zone]uplinkSample, len(s.uplinks))
	for zone, up := range s.uplinks {
		qs, err := s.probe.ReadQueueStats(up.Switch, up.Intf)
		if err != nil {
			metrics.RecordProbeFailure("queue")
			if s.failLog.Allow() {
				s.logger.Warn("Uplink queue probe failed",
					zap.String("switch", up.Switch),
					zap.String("intf", up.Intf),
					zap.Error(err))
			}
			qs = probe.QueueStats{}
		}

		prev, ok := s.uplinkSnaps[zone]
		if !ok {
			prev = &counterSnap{}
			s.uplinkSnaps[zone] = prev
		}
		var delta uint64
		if prev.seen {
			delta = DropDelta(prev.qDrops, qs.Drops)
		}
		prev.qDrops = qs.Drops
		prev.ts = now
		prev.seen = true

		metrics.UpdateUplinkDepth(string(zone), qs.Depth)
		out[zone] = uplinkSample{depth: qs.Depth, dropDelta: delta}
	}
	return out
}

// sampleEndpoint probes one endpoint and assembles its record for this
// tick.
func (s *Sampler) sampleEndpoint(
	ctx context.Context,
	ep topology.Endpoint,
	snap traffic.Snapshot,
	uplink uplinkSample,
	elapsed time.Duration,
	dt float64,
	now time.Time,
) Record {
	rec := Record{
		Timestamp:            elapsed.Seconds(),
		Dt:                   dt,
		Endpoint:             ep.Name,
		Zone:                 string(ep.Zone),
		UplinkQueueDepth:     uplink.depth,
		UplinkQueueDropDelta: uplink.dropDelta,
		Scenario:             snap.Scenario,
		// An endpoint only counts as active while a scenario is live;
		// leftovers in the raw active set during "done"/idle windows
		// are labeled idle.
		Active: snap.IsActive(ep.Name) && snap.Scenario != traffic.ScenarioIdle,
	}

	if rtt, ok := s.probe.ProbeLatency(ctx, ep.Name, s.topo.MECIP, s.cfg.RTTTimeout); ok {
		rec.RTTMs = &rtt
	} else {
		rec.RTTLoss = true
		metrics.RecordRTTTimeout()
	}

	counters, err := s.probe.ReadLinkCounters(ep.Name, ep.Intf)
	if err != nil {
		metrics.RecordProbeFailure("counters")
		if s.failLog.Allow() {
			s.logger.Warn("Interface counter probe failed",
				zap.String("endpoint", ep.Name),
				zap.String("intf", ep.Intf),
				zap.Error(err))
		}
		counters = probe.LinkCounters{}
	}

	qs, err := s.probe.ReadQueueStats(ep.Name, ep.Intf)
	if err != nil {
		metrics.RecordProbeFailure("queue")
		qs = probe.QueueStats{}
	}
	rec.HostQueueDepth = qs.Depth

	prev, ok := s.endpointSnaps[ep.Name]
	if !ok {
		prev = &counterSnap{}
		s.endpointSnaps[ep.Name] = prev
	}
	if prev.seen {
		// Rates use the per-endpoint interval since this endpoint was
		// last read, which can differ slightly from the tick dt.
		epDt := now.Sub(prev.ts).Seconds()
		rec.TxMbps = RateMbps(prev.txBytes, counters.TxBytes, epDt)
		rec.RxMbps = RateMbps(prev.rxBytes, counters.RxBytes, epDt)
		rec.HostQueueDropDelta = DropDelta(prev.qDrops, qs.Drops)
	}

	prev.txBytes = counters.TxBytes
	prev.rxBytes = counters.RxBytes
	prev.qDrops = qs.Drops
	prev.ts = now
	prev.seen = true

	return rec
}
