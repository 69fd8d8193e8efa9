package sink

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/v2xlab/vextel/internal/sampler"
)

func TestCSVSinkWritesHeaderAndRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dataset.csv")

	s, err := NewCSVSink(path)
	require.NoError(t, err)

	rtt := 14.2
	recs := []sampler.Record{
		{
			Timestamp: 1.2, Dt: 0.2, Endpoint: "h3", Zone: "highway",
			RTTMs: &rtt, TxMbps: 72.512, RxMbps: 0.9,
			HostQueueDepth: 12, HostQueueDropDelta: 3,
			UplinkQueueDepth: 140, UplinkQueueDropDelta: 9,
			Scenario: "A-Highway", Active: true,
		},
		{
			Timestamp: 1.2, Dt: 0.2, Endpoint: "h12", Zone: "suburb",
			RTTLoss: true, Scenario: "A-Highway",
		},
	}
	require.NoError(t, s.WriteBatch(recs))
	require.NoError(t, s.Close())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, csvHeader, rows[0])
	assert.Equal(t, []string{
		"1.200", "0.2000", "h3", "highway", "14.200", "72.512", "0.900",
		"12", "3", "140", "9", "A-Highway", "1", "0",
	}, rows[1])

	// A lost probe is written as nan with the loss flag set.
	assert.Equal(t, "nan", rows[2][4])
	assert.Equal(t, "1", rows[2][13])
	assert.Equal(t, "0", rows[2][12], "idle endpoint is not active")
}

func TestCSVSinkRejectsUnwritablePath(t *testing.T) {
	_, err := NewCSVSink(filepath.Join(t.TempDir(), "missing", "dataset.csv"))
	require.Error(t, err)
}

func TestCSVSinkEmptyBatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dataset.csv")
	s, err := NewCSVSink(path)
	require.NoError(t, err)
	require.NoError(t, s.WriteBatch(nil))
	require.NoError(t, s.Close())
}
