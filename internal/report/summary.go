package report

import (
	"sync"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/v2xlab/vextel/internal/sampler"
)

// Summary accumulates per-zone distributions over the run and logs
// them on shutdown, a quick sanity check that a dataset actually
// contains congestion events before it is shipped to training.
type Summary struct {
	mu      sync.Mutex
	records int
	zoneTx  map[string][]float64
	zoneRTT map[string][]float64
}

// NewSummary returns an empty accumulator.
func NewSummary() *Summary {
	return &Summary{
		zoneTx:  make(map[string][]float64),
		zoneRTT: make(map[string][]float64),
	}
}

func (s *Summary) Name() string { return "summary" }

// WriteBatch folds one tick's records into the distributions.
func (s *Summary) WriteBatch(recs []sampler.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, rec := range recs {
		s.records++
		s.zoneTx[rec.Zone] = append(s.zoneTx[rec.Zone], rec.TxMbps)
		if rec.RTTMs != nil {
			s.zoneRTT[rec.Zone] = append(s.zoneRTT[rec.Zone], *rec.RTTMs)
		}
	}
	return nil
}

func (s *Summary) Close() error { return nil }

// Log writes the per-zone summary statistics.
func (s *Summary) Log(logger *zap.Logger) {
	s.mu.Lock()
	defer s.mu.Unlock()

	logger.Info("Run summary", zap.Int("records", s.records))
	for zone, tx := range s.zoneTx {
		fields := []zap.Field{
			zap.String("zone", zone),
			zap.Float64("txMeanMbps", stat.Mean(tx, nil)),
			zap.Float64("txStdMbps", stat.StdDev(tx, nil)),
			zap.Float64("txMaxMbps", floats.Max(tx)),
		}
		if rtts := s.zoneRTT[zone]; len(rtts) > 0 {
			fields = append(fields,
				zap.Float64("rttMeanMs", stat.Mean(rtts, nil)),
				zap.Float64("rttMaxMs", floats.Max(rtts)))
		}
		logger.Info("Zone summary", fields...)
	}
}
