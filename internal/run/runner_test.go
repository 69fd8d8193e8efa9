package run

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/v2xlab/vextel/internal/config"
	"github.com/v2xlab/vextel/internal/traffic"
)

func shortRunConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Load()
	require.NoError(t, err)

	cfg.Run.Seed = 7
	cfg.Server.Enabled = false
	cfg.Sinks.CSV.Path = filepath.Join(t.TempDir(), "dataset.csv")
	cfg.Sampling.RunDuration = "200ms"
	cfg.Sampling.Interval = "20ms"
	cfg.Sampling.RTTTimeout = "10ms"
	cfg.Sampling.MinSleep = "1ms"
	cfg.Scenario.StartupDelay = "10ms"
	cfg.Scenario.GracePeriod = "10ms"
	cfg.Scenario.SettleAfterA = "10ms"
	cfg.Scenario.SettleAfterB = "10ms"
	cfg.Scenario.SettleAfterC = "10ms"

	require.NoError(t, cfg.Validate())
	return cfg
}

func TestRunProducesDataset(t *testing.T) {
	cfg := shortRunConfig(t)

	r := New(zap.NewNop(), cfg)
	require.NoError(t, r.Run(context.Background()))

	f, err := os.Open(cfg.Sinks.CSV.Path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Greater(t, len(rows), 1, "header plus at least one tick")

	// Every data row carries all 14 columns and one of the known
	// scenario labels.
	labels := map[string]bool{
		"idle": true, "stopped": true,
		"A-Highway": true, "A-Highway-done": true,
		"B-Urban": true, "B-Urban-done": true,
		"C-Suburb": true, "C-Suburb-done": true,
	}
	for _, row := range rows[1:] {
		require.Len(t, row, 14)
		assert.True(t, labels[row[11]], "unknown scenario label %q", row[11])
	}

	// 14 endpoints per tick.
	assert.Zero(t, (len(rows)-1)%14)
}

func TestRunWithAllFlowsRejectedStillCompletes(t *testing.T) {
	cfg := shortRunConfig(t)

	// Zero-bandwidth draws are rejected by the flow driver, so the
	// scheduler never gets a flow running; the dataset must still be
	// complete, with no traffic measured anywhere.
	zero := traffic.Range{}
	cfg.Scenario.PhaseA.BandwidthMbps = zero
	cfg.Scenario.PhaseB.CenterBandwidthMbps = zero
	cfg.Scenario.PhaseB.NeighborBandwidthMbps = zero
	cfg.Scenario.PhaseC.BandwidthMbps = zero
	require.NoError(t, cfg.Validate())

	r := New(zap.NewNop(), cfg)
	require.NoError(t, r.Run(context.Background()))

	f, err := os.Open(cfg.Sinks.CSV.Path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Greater(t, len(rows), 1)

	for _, row := range rows[1:] {
		assert.Equal(t, "0.000", row[5], "tx_mbps must stay zero")
		assert.Equal(t, "0.000", row[6], "rx_mbps must stay zero")
	}
}

func TestRunFailsOnUnwritableDataset(t *testing.T) {
	cfg := shortRunConfig(t)
	cfg.Sinks.CSV.Path = filepath.Join(t.TempDir(), "missing", "dataset.csv")

	r := New(zap.NewNop(), cfg)
	require.Error(t, r.Run(context.Background()))
}
