package timeseries

import (
	"fmt"
	"time"

	"github.com/v2xlab/vextel/internal/sampler"
)

// SinkAdapter feeds emitted records into the ring store so the status
// API can serve recent rate history without touching the dataset
// files.
type SinkAdapter struct {
	store *Store
	start time.Time
}

// NewSinkAdapter wraps the store as a record sink.
func NewSinkAdapter(store *Store) *SinkAdapter {
	return &SinkAdapter{store: store, start: time.Now()}
}

func (a *SinkAdapter) Name() string { return "timeseries" }

// WriteBatch stores the per-endpoint rates and RTTs of one tick.
func (a *SinkAdapter) WriteBatch(recs []sampler.Record) error {
	for _, rec := range recs {
		t := a.start.Add(time.Duration(rec.Timestamp * float64(time.Second)))
		a.store.Upsert(EndpointKey(rec.Endpoint, "tx_mbps")).Add(Point{T: t, V: rec.TxMbps})
		a.store.Upsert(EndpointKey(rec.Endpoint, "rx_mbps")).Add(Point{T: t, V: rec.RxMbps})
		if rec.RTTMs != nil {
			a.store.Upsert(EndpointKey(rec.Endpoint, "rtt_ms")).Add(Point{T: t, V: *rec.RTTMs})
		}
		a.store.Upsert(ZoneKey(rec.Zone, "uplink_queue_depth")).Add(Point{T: t, V: float64(rec.UplinkQueueDepth)})
	}
	return nil
}

func (a *SinkAdapter) Close() error { return nil }

// EndpointKey names a per-endpoint series.
func EndpointKey(endpoint, metric string) string {
	return fmt.Sprintf("endpoint.%s.%s", endpoint, metric)
}

// ZoneKey names a per-zone series.
func ZoneKey(zone, metric string) string {
	return fmt.Sprintf("zone.%s.%s", zone, metric)
}
