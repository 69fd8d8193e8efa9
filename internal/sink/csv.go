package sink

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"

	"github.com/v2xlab/vextel/internal/sampler"
)

// csvHeader matches the dataset layout downstream training pipelines
// consume.
var csvHeader = []string{
	"timestamp",
	"dt",
	"host",
	"zone",
	"rtt_ms",
	"tx_mbps",
	"rx_mbps",
	"host_queue_depth",
	"host_queue_drops",
	"uplink_queue_depth",
	"uplink_queue_drops",
	"scenario",
	"is_active",
	"rtt_loss",
}

// CSVSink appends one CSV row per record to a dataset file.
type CSVSink struct {
	f *os.File
	w *csv.Writer
}

// NewCSVSink creates (or truncates) the dataset file and writes the
// header row.
func NewCSVSink(path string) (*CSVSink, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create dataset file: %w", err)
	}
	w := csv.NewWriter(f)
	if err := w.Write(csvHeader); err != nil {
		f.Close()
		return nil, fmt.Errorf("write dataset header: %w", err)
	}
	return &CSVSink{f: f, w: w}, nil
}

func (c *CSVSink) Name() string { return "csv" }

// WriteBatch appends the tick's records and flushes, so a partial run
// still leaves a readable dataset.
func (c *CSVSink) WriteBatch(recs []sampler.Record) error {
	for _, rec := range recs {
		if err := c.w.Write(csvRow(rec)); err != nil {
			return fmt.Errorf("write dataset row: %w", err)
		}
	}
	c.w.Flush()
	return c.w.Error()
}

// Close flushes pending rows and closes the file.
func (c *CSVSink) Close() error {
	c.w.Flush()
	if err := c.w.Error(); err != nil {
		c.f.Close()
		return err
	}
	return c.f.Close()
}

func csvRow(rec sampler.Record) []string {
	rtt := "nan"
	if rec.RTTMs != nil {
		rtt = strconv.FormatFloat(*rec.RTTMs, 'f', 3, 64)
	}
	return []string{
		strconv.FormatFloat(rec.Timestamp, 'f', 3, 64),
		strconv.FormatFloat(rec.Dt, 'f', 4, 64),
		rec.Endpoint,
		rec.Zone,
		rtt,
		strconv.FormatFloat(rec.TxMbps, 'f', 3, 64),
		strconv.FormatFloat(rec.RxMbps, 'f', 3, 64),
		strconv.Itoa(rec.HostQueueDepth),
		strconv.FormatUint(rec.HostQueueDropDelta, 10),
		strconv.Itoa(rec.UplinkQueueDepth),
		strconv.FormatUint(rec.UplinkQueueDropDelta, 10),
		rec.Scenario,
		boolFlag(rec.Active),
		boolFlag(rec.RTTLoss),
	}
}

func boolFlag(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
