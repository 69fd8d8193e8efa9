package traffic

import (
	"context"
	"time"

	"github.com/iti/rngstream"
	"go.uber.org/zap"

	"github.com/v2xlab/vextel/internal/metrics"
	"github.com/v2xlab/vextel/internal/probe"
	"github.com/v2xlab/vextel/internal/topology"
)

// Range is a closed interval parameters are drawn from, uniformly.
type Range struct {
	Min float64 `yaml:"min"`
	Max float64 `yaml:"max"`
}

// PhaseAConfig parameterizes the highway chain: each highway endpoint
// starts one flow in order, separated by a randomized gap that lets
// flows overlap.
type PhaseAConfig struct {
	BandwidthMbps Range `yaml:"bandwidth_mbps"`
	DurationSec   Range `yaml:"duration_sec"`
	GapSec        Range `yaml:"gap_sec"`
}

// PhaseBConfig parameterizes the urban center burst and its diffusion
// to a random subset of neighbors.
type PhaseBConfig struct {
	CenterBandwidthMbps   Range `yaml:"center_bandwidth_mbps"`
	CenterDurationSec     Range `yaml:"center_duration_sec"`
	NeighborBandwidthMbps Range `yaml:"neighbor_bandwidth_mbps"`
	NeighborDurationSec   Range `yaml:"neighbor_duration_sec"`
	DiffuseDelaySec       Range `yaml:"diffuse_delay_sec"`
}

// PhaseCConfig parameterizes the suburb low-load phase.
type PhaseCConfig struct {
	BandwidthMbps Range `yaml:"bandwidth_mbps"`
	DurationSec   Range `yaml:"duration_sec"`
	MaxActive     int   `yaml:"max_active"`
}

// ScenarioConfig holds the scheduler's timing and per-phase parameter
// ranges.
type ScenarioConfig struct {
	// Budget limits the scheduler's total runtime. Zero means it runs
	// until its context is cancelled.
	Budget time.Duration

	// StartupDelay lets the emulated network settle before the first
	// cycle.
	StartupDelay time.Duration

	// GracePeriod is added to longest-flow waits at the end of phases
	// B and C.
	GracePeriod time.Duration

	SettleAfterA time.Duration
	SettleAfterB time.Duration
	SettleAfterC time.Duration

	PhaseA PhaseAConfig `yaml:"phase_a"`
	PhaseB PhaseBConfig `yaml:"phase_b"`
	PhaseC PhaseCConfig `yaml:"phase_c"`
}

// DefaultScenarioConfig returns the stock parameter ranges.
func DefaultScenarioConfig() ScenarioConfig {
	return ScenarioConfig{
		StartupDelay: 3 * time.Second,
		GracePeriod:  1 * time.Second,
		SettleAfterA: 2 * time.Second,
		SettleAfterB: 2 * time.Second,
		SettleAfterC: 3 * time.Second,
		PhaseA: PhaseAConfig{
			BandwidthMbps: Range{Min: 60, Max: 100},
			DurationSec:   Range{Min: 4, Max: 10},
			GapSec:        Range{Min: 2, Max: 6},
		},
		PhaseB: PhaseBConfig{
			CenterBandwidthMbps:   Range{Min: 30, Max: 80},
			CenterDurationSec:     Range{Min: 6, Max: 15},
			NeighborBandwidthMbps: Range{Min: 10, Max: 50},
			NeighborDurationSec:   Range{Min: 4, Max: 12},
			DiffuseDelaySec:       Range{Min: 1, Max: 3},
		},
		PhaseC: PhaseCConfig{
			BandwidthMbps: Range{Min: 10, Max: 60},
			DurationSec:   Range{Min: 3, Max: 10},
			MaxActive:     3,
		},
	}
}

// Scheduler cycles the three traffic phases in a background goroutine,
// publishing the current scenario and active set to the shared State.
// All randomness comes from a single named rngstream, so the sequence
// of drawn parameters is fully determined by the master seed.
type Scheduler struct {
	logger *zap.Logger
	state  *State
	locks  *EndpointLocks
	driver probe.FlowDriver
	cfg    ScenarioConfig

	highway  []topology.Endpoint
	center   topology.Endpoint
	neighbors []topology.Endpoint
	suburb   []topology.Endpoint

	rng   *rngstream.RngStream
	sleep func(ctx context.Context, d time.Duration) bool
	done  chan struct{}
}

// NewScheduler wires a scheduler over the topology's zone membership:
// the highway chain is the highway zone in index order, the urban
// center is the second urban endpoint with the rest as neighbors, and
// the suburb pool is the suburb zone.
func NewScheduler(
	logger *zap.Logger,
	state *State,
	locks *EndpointLocks,
	driver probe.FlowDriver,
	topo *topology.Topology,
	cfg ScenarioConfig,
) *Scheduler {
	urban := topo.EndpointsInZone(topology.ZoneUrban)
	centerIdx := 0
	if len(urban) > 1 {
		centerIdx = 1
	}
	var neighbors []topology.Endpoint
	for i, ep := range urban {
		if i != centerIdx {
			neighbors = append(neighbors, ep)
		}
	}

	return &Scheduler{
		logger:    logger,
		state:     state,
		locks:     locks,
		driver:    driver,
		cfg:       cfg,
		highway:   topo.EndpointsInZone(topology.ZoneHighway),
		center:    urban[centerIdx],
		neighbors: neighbors,
		suburb:    topo.EndpointsInZone(topology.ZoneSuburb),
		rng:       rngstream.New("scheduler"),
		sleep:     waitFor,
		done:      make(chan struct{}),
	}
}

// Done is closed when the scheduler has reached its terminal state.
func (s *Scheduler) Done() <-chan struct{} {
	return s.done
}

// Run executes scenario cycles until the budget elapses or ctx is
// cancelled. Any fault inside a cycle is caught here: the scheduler
// logs it and proceeds to the stopped terminal state without touching
// the sampling loop.
func (s *Scheduler) Run(ctx context.Context) {
	defer close(s.done)
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Scenario scheduler fault", zap.Any("panic", r))
		}
		s.state.SetScenario(ScenarioStopped, nil)
		s.state.MarkRunning(false)
		s.logger.Info("Traffic scheduler finished",
			zap.Int("cycles", s.state.Snapshot().Cycle))
	}()

	s.logger.Info("Traffic scheduler starting",
		zap.Duration("startupDelay", s.cfg.StartupDelay),
		zap.Duration("budget", s.cfg.Budget))

	if !s.sleep(ctx, s.cfg.StartupDelay) {
		return
	}
	s.state.MarkRunning(true)

	start := time.Now()
	for {
		if ctx.Err() != nil {
			return
		}
		if s.cfg.Budget > 0 && time.Since(start) > s.cfg.Budget {
			s.logger.Info("Traffic scheduler budget elapsed")
			return
		}

		cycle := s.state.IncrementCycle()
		metrics.RecordSchedulerCycle()
		s.logger.Info("Starting scenario cycle", zap.Int("cycle", cycle))

		if !s.runPhaseA(ctx) || !s.runPhaseB(ctx) || !s.runPhaseC(ctx) {
			return
		}
	}
}

// runPhaseA starts one flow per highway endpoint in fixed order with a
// randomized inter-start gap, growing the published active set by one
// endpoint per start.
func (s *Scheduler) runPhaseA(ctx context.Context) bool {
	active := make([]string, 0, len(s.highway))
	for _, ep := range s.highway {
		if ctx.Err() != nil {
			return false
		}
		bw := s.uniform(s.cfg.PhaseA.BandwidthMbps)
		dur := s.uniformDur(s.cfg.PhaseA.DurationSec)
		gap := s.uniformDur(s.cfg.PhaseA.GapSec)

		active = append(active, ep.Name)
		s.state.SetScenario(ScenarioHighway, active)
		s.startFlow(ctx, ep, bw, dur)

		if !s.sleep(ctx, gap) {
			return false
		}
	}
	s.state.SetScenario(ScenarioHighway+doneSuffix, nil)
	return s.sleep(ctx, s.cfg.SettleAfterA)
}

// runPhaseB bursts the urban center, then after a short randomized
// delay diffuses flows to a random non-empty neighbor subset, and
// blocks until the longest flow just started has drained.
func (s *Scheduler) runPhaseB(ctx context.Context) bool {
	if ctx.Err() != nil {
		return false
	}

	var maxDur time.Duration

	bw := s.uniform(s.cfg.PhaseB.CenterBandwidthMbps)
	dur := s.uniformDur(s.cfg.PhaseB.CenterDurationSec)
	maxDur = dur

	active := []string{s.center.Name}
	s.state.SetScenario(ScenarioUrban, active)
	s.startFlow(ctx, s.center, bw, dur)

	if !s.sleep(ctx, s.uniformDur(s.cfg.PhaseB.DiffuseDelaySec)) {
		return false
	}

	for _, ep := range s.subset(s.neighbors, len(s.neighbors)) {
		if ctx.Err() != nil {
			return false
		}
		bw := s.uniform(s.cfg.PhaseB.NeighborBandwidthMbps)
		dur := s.uniformDur(s.cfg.PhaseB.NeighborDurationSec)
		if dur > maxDur {
			maxDur = dur
		}

		active = append(active, ep.Name)
		s.state.SetScenario(ScenarioUrban, active)
		s.startFlow(ctx, ep, bw, dur)
	}

	// Synchronization point: the phase is not complete until the
	// longest flow has run its course.
	if !s.sleep(ctx, maxDur+s.cfg.GracePeriod) {
		return false
	}
	s.state.SetScenario(ScenarioUrban+doneSuffix, nil)
	return s.sleep(ctx, s.cfg.SettleAfterB)
}

// runPhaseC starts low-to-medium flows on a small random suburb subset
// and waits out the longest one.
func (s *Scheduler) runPhaseC(ctx context.Context) bool {
	if ctx.Err() != nil {
		return false
	}

	limit := s.cfg.PhaseC.MaxActive
	if limit <= 0 || limit > len(s.suburb) {
		limit = len(s.suburb)
	}
	targets := s.subset(s.suburb, limit)

	active := make([]string, 0, len(targets))
	for _, ep := range targets {
		active = append(active, ep.Name)
	}
	s.state.SetScenario(ScenarioSuburb, active)

	var maxDur time.Duration
	for _, ep := range targets {
		if ctx.Err() != nil {
			return false
		}
		bw := s.uniform(s.cfg.PhaseC.BandwidthMbps)
		dur := s.uniformDur(s.cfg.PhaseC.DurationSec)
		if dur > maxDur {
			maxDur = dur
		}
		s.startFlow(ctx, ep, bw, dur)
	}

	if !s.sleep(ctx, maxDur+s.cfg.GracePeriod) {
		return false
	}
	s.state.SetScenario(ScenarioSuburb+doneSuffix, nil)
	return s.sleep(ctx, s.cfg.SettleAfterC)
}

// startFlow dispatches one fire-and-forget flow command under the
// endpoint's lock. A rejection is logged and the phase moves on; there
// is no retry.
func (s *Scheduler) startFlow(ctx context.Context, ep topology.Endpoint, bwMbps float64, dur time.Duration) {
	mu, ok := s.locks.Get(ep.Name)
	if !ok {
		s.logger.Warn("Flow target outside lock registry", zap.String("endpoint", ep.Name))
		return
	}

	mu.Lock()
	err := s.driver.StartFlow(ctx, ep, bwMbps, dur)
	mu.Unlock()

	if err != nil {
		metrics.RecordFlowCommand(false)
		s.logger.Warn("Flow command rejected",
			zap.String("endpoint", ep.Name),
			zap.Float64("bandwidthMbps", bwMbps),
			zap.Duration("duration", dur),
			zap.Error(err))
		return
	}
	metrics.RecordFlowCommand(true)
	s.logger.Debug("Flow started",
		zap.String("endpoint", ep.Name),
		zap.Float64("bandwidthMbps", bwMbps),
		zap.Duration("duration", dur))
}

func (s *Scheduler) uniform(r Range) float64 {
	return r.Min + (r.Max-r.Min)*s.rng.RandU01()
}

func (s *Scheduler) uniformDur(r Range) time.Duration {
	return time.Duration(s.uniform(r) * float64(time.Second))
}

// subset draws a random non-empty sample of up to limit endpoints,
// preserving determinism by consuming only the scheduler's stream.
func (s *Scheduler) subset(pool []topology.Endpoint, limit int) []topology.Endpoint {
	if len(pool) == 0 || limit <= 0 {
		return nil
	}
	k := s.rng.RandInt(1, limit)

	// Partial Fisher-Yates over a copy: the first k slots are the sample.
	picked := make([]topology.Endpoint, len(pool))
	copy(picked, pool)
	for i := 0; i < k; i++ {
		j := s.rng.RandInt(i, len(picked)-1)
		picked[i], picked[j] = picked[j], picked[i]
	}
	return picked[:k]
}

// waitFor sleeps for d unless ctx is cancelled first. Returns false on
// cancellation.
func waitFor(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
