package traffic

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/iti/rngstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/v2xlab/vextel/internal/topology"
)

type flowCall struct {
	Endpoint string
	Bw       float64
	Dur      time.Duration
	Scenario string
	Active   int
}

// recordingDriver captures every flow command together with the
// scenario state visible at dispatch time.
type recordingDriver struct {
	state *State
	calls []flowCall
	err   error
}

func (d *recordingDriver) StartFlow(_ context.Context, ep topology.Endpoint, rateMbps float64, dur time.Duration) error {
	snap := d.state.Snapshot()
	d.calls = append(d.calls, flowCall{
		Endpoint: ep.Name,
		Bw:       rateMbps,
		Dur:      dur,
		Scenario: snap.Scenario,
		Active:   len(snap.Active),
	})
	return d.err
}

func newTestScheduler(t *testing.T, driverErr error) (*Scheduler, *recordingDriver) {
	t.Helper()

	topo, err := topology.New(topology.DefaultParams())
	require.NoError(t, err)

	state := NewState()
	driver := &recordingDriver{state: state, err: driverErr}
	s := NewScheduler(zap.NewNop(), state, NewEndpointLocks(topo.Endpoints), driver, topo, DefaultScenarioConfig())

	// Tests never wait real time.
	s.sleep = func(ctx context.Context, _ time.Duration) bool {
		return ctx.Err() == nil
	}
	return s, driver
}

func TestPhaseAStartsHighwayChainInOrder(t *testing.T) {
	s, driver := newTestScheduler(t, nil)

	require.True(t, s.runPhaseA(context.Background()))
	require.Len(t, driver.calls, 4)

	for i, call := range driver.calls {
		assert.Equal(t, s.highway[i].Name, call.Endpoint, "chain order is fixed")
		assert.Equal(t, ScenarioHighway, call.Scenario)
		assert.Equal(t, i+1, call.Active, "active set grows one endpoint per start")
		assert.GreaterOrEqual(t, call.Bw, 60.0)
		assert.LessOrEqual(t, call.Bw, 100.0)
		assert.GreaterOrEqual(t, call.Dur, 4*time.Second)
		assert.LessOrEqual(t, call.Dur, 10*time.Second)
	}

	snap := s.state.Snapshot()
	assert.Equal(t, ScenarioHighway+doneSuffix, snap.Scenario)
	assert.Empty(t, snap.Active)
}

func TestPhaseBBurstsCenterThenDiffuses(t *testing.T) {
	s, driver := newTestScheduler(t, nil)

	require.True(t, s.runPhaseB(context.Background()))
	require.NotEmpty(t, driver.calls)

	center := driver.calls[0]
	assert.Equal(t, s.center.Name, center.Endpoint)
	assert.Equal(t, ScenarioUrban, center.Scenario)
	assert.GreaterOrEqual(t, center.Bw, 30.0)
	assert.LessOrEqual(t, center.Bw, 80.0)

	neighbors := driver.calls[1:]
	require.NotEmpty(t, neighbors, "diffusion always reaches at least one neighbor")
	seen := map[string]bool{s.center.Name: true}
	for _, call := range neighbors {
		assert.False(t, seen[call.Endpoint], "neighbor %s started twice", call.Endpoint)
		seen[call.Endpoint] = true
		assert.Equal(t, ScenarioUrban, call.Scenario)
		assert.GreaterOrEqual(t, call.Bw, 10.0)
		assert.LessOrEqual(t, call.Bw, 50.0)
		assert.GreaterOrEqual(t, call.Dur, 4*time.Second)
		assert.LessOrEqual(t, call.Dur, 12*time.Second)
	}
	assert.LessOrEqual(t, len(neighbors), len(s.neighbors))

	assert.Equal(t, ScenarioUrban+doneSuffix, s.state.Snapshot().Scenario)
}

func TestPhaseCLimitsActiveSuburbEndpoints(t *testing.T) {
	s, driver := newTestScheduler(t, nil)

	require.True(t, s.runPhaseC(context.Background()))
	require.NotEmpty(t, driver.calls)
	assert.LessOrEqual(t, len(driver.calls), s.cfg.PhaseC.MaxActive)

	seen := map[string]bool{}
	for _, call := range driver.calls {
		assert.False(t, seen[call.Endpoint])
		seen[call.Endpoint] = true
		assert.Equal(t, ScenarioSuburb, call.Scenario)
		assert.Equal(t, len(driver.calls), call.Active, "full subset is published before the first start")
		assert.GreaterOrEqual(t, call.Bw, 10.0)
		assert.LessOrEqual(t, call.Bw, 60.0)
	}
	for name := range seen {
		found := false
		for _, ep := range s.suburb {
			if ep.Name == name {
				found = true
			}
		}
		assert.True(t, found, "%s is not a suburb endpoint", name)
	}

	assert.Equal(t, ScenarioSuburb+doneSuffix, s.state.Snapshot().Scenario)
}

func TestSchedulerIsDeterministicUnderMasterSeed(t *testing.T) {
	runOnce := func() []flowCall {
		rngstream.SetRngStreamMasterSeed(42)
		s, driver := newTestScheduler(t, nil)
		ctx := context.Background()
		require.True(t, s.runPhaseA(ctx))
		require.True(t, s.runPhaseB(ctx))
		require.True(t, s.runPhaseC(ctx))
		return driver.calls
	}

	first := runOnce()
	second := runOnce()
	assert.Equal(t, first, second)
}

func TestRejectedFlowDoesNotAbortPhase(t *testing.T) {
	s, driver := newTestScheduler(t, errors.New("port busy"))

	require.True(t, s.runPhaseA(context.Background()))
	assert.Len(t, driver.calls, 4, "every endpoint is still attempted")
}

func TestRunReachesStoppedStateOnCancel(t *testing.T) {
	s, _ := newTestScheduler(t, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s.Run(ctx)

	select {
	case <-s.Done():
	default:
		t.Fatal("Done channel not closed after Run returned")
	}

	snap := s.state.Snapshot()
	assert.Equal(t, ScenarioStopped, snap.Scenario)
	assert.False(t, snap.Running)
	assert.Empty(t, snap.Active)
}
