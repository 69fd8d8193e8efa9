package run

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/iti/rngstream"
	"go.uber.org/zap"

	"github.com/v2xlab/vextel/internal/api"
	"github.com/v2xlab/vextel/internal/config"
	"github.com/v2xlab/vextel/internal/probe"
	"github.com/v2xlab/vextel/internal/report"
	"github.com/v2xlab/vextel/internal/sampler"
	"github.com/v2xlab/vextel/internal/sink"
	"github.com/v2xlab/vextel/internal/timeseries"
	"github.com/v2xlab/vextel/internal/topology"
	"github.com/v2xlab/vextel/internal/traffic"
)

// Runner assembles a collection run from configuration and drives it to
// completion: topology and uplink resolution, traffic scheduler in the
// background, sampling loop in the foreground, sinks drained on the way
// out.
type Runner struct {
	logger *zap.Logger
	cfg    *config.Config
}

// New creates a runner. The config must already be validated.
func New(logger *zap.Logger, cfg *config.Config) *Runner {
	return &Runner{logger: logger, cfg: cfg}
}

// Run executes one full collection run. It returns once the sampling
// loop has finished (or ctx was cancelled) and every sink is closed.
func (r *Runner) Run(ctx context.Context) error {
	samplingCfg, err := r.cfg.SamplerConfig()
	if err != nil {
		return err
	}
	scenarioCfg, err := r.cfg.ScenarioConfig()
	if err != nil {
		return err
	}

	if seed := r.cfg.Run.Seed; seed != 0 {
		rngstream.SetRngStreamMasterSeed(seed)
		r.logger.Info("Seeded random streams", zap.Uint64("seed", seed))
	}

	runID := uuid.NewString()
	logger := r.logger.With(zap.String("runId", runID))

	topo, err := topology.New(r.cfg.TopologyParams())
	if err != nil {
		return fmt.Errorf("build topology: %w", err)
	}

	// Uplink resolution is the run's precondition: a zone whose
	// bottleneck cannot be located would silently produce a dataset
	// with no congestion signal for that zone.
	uplinks, err := topo.ResolveUplinks()
	if err != nil {
		return fmt.Errorf("resolve zone uplinks: %w", err)
	}
	for _, z := range topology.Zones {
		up := uplinks[z]
		logger.Info("Resolved zone uplink",
			zap.String("zone", string(z)),
			zap.String("switch", up.Switch),
			zap.String("intf", up.Intf))
	}

	simnet, err := probe.NewSimNetwork(topo)
	if err != nil {
		return fmt.Errorf("build network model: %w", err)
	}

	state := traffic.NewState()
	locks := traffic.NewEndpointLocks(topo.Endpoints)
	store := timeseries.NewStore(r.cfg.Sinks.HistoryPoints)
	summary := report.NewSummary()

	sinks, err := r.buildSinks(runID, store, summary)
	if err != nil {
		return err
	}

	var server *api.Server
	var httpServer *http.Server
	if r.cfg.Server.Enabled {
		server = api.NewServer(logger, state, store, runID)
		server.Start()
		sinks = append(sinks, api.NewStreamSink(server.Hub()))

		httpServer = &http.Server{
			Addr:    r.cfg.Server.Addr,
			Handler: server.Handler(),
		}
		go func() {
			logger.Info("Status server starting", zap.String("addr", r.cfg.Server.Addr))
			if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("Status server failed", zap.Error(err))
			}
		}()
	}

	multi := sink.NewMulti(sinks...)

	schedCtx, cancelSched := context.WithCancel(ctx)
	defer cancelSched()
	scheduler := traffic.NewScheduler(logger, state, locks, simnet, topo, scenarioCfg)
	go scheduler.Run(schedCtx)

	s := sampler.New(logger, samplingCfg, topo, uplinks, simnet, state, multi)
	runErr := s.Run(ctx)

	// Sampling is done: stop the scheduler and wait for it to publish
	// its terminal state before the sinks close.
	cancelSched()
	select {
	case <-scheduler.Done():
	case <-time.After(5 * time.Second):
		logger.Warn("Traffic scheduler did not stop in time")
	}

	if httpServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("Status server shutdown failed", zap.Error(err))
		}
		shutdownCancel()
		server.Stop()
	}

	if err := multi.Close(); err != nil {
		logger.Error("Sink close failed", zap.Error(err))
	}
	summary.Log(logger)

	return runErr
}

// buildSinks assembles the configured record destinations. The series
// store and summary always participate; files and databases are opt-in.
func (r *Runner) buildSinks(runID string, store *timeseries.Store, summary *report.Summary) ([]sink.Sink, error) {
	sinks := []sink.Sink{timeseries.NewSinkAdapter(store), summary}

	if r.cfg.Sinks.CSV.Enabled {
		csvSink, err := sink.NewCSVSink(r.cfg.Sinks.CSV.Path)
		if err != nil {
			return nil, err
		}
		r.logger.Info("Dataset file opened", zap.String("path", r.cfg.Sinks.CSV.Path))
		sinks = append(sinks, csvSink)
	}

	if r.cfg.Sinks.Postgres.Enabled {
		pgSink, err := sink.OpenPostgresSink(r.cfg.Sinks.Postgres.ConnString, r.cfg.Sinks.Postgres.Table, runID)
		if err != nil {
			return nil, err
		}
		r.logger.Info("Postgres sink connected", zap.String("table", r.cfg.Sinks.Postgres.Table))
		sinks = append(sinks, pgSink)
	}

	return sinks, nil
}
