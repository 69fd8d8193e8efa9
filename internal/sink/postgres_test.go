package sink

import (
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/v2xlab/vextel/internal/sampler"
)

func TestPostgresSinkInsertsBatch(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	s := NewPostgresSink(db, "telemetry", "run-1")

	rtt := 9.7
	recs := []sampler.Record{
		{Timestamp: 0.2, Dt: 0.2, Endpoint: "h1", Zone: "highway", RTTMs: &rtt, TxMbps: 64.1, Active: true, Scenario: "A-Highway"},
		{Timestamp: 0.2, Dt: 0.2, Endpoint: "h11", Zone: "suburb", RTTLoss: true, Scenario: "A-Highway"},
	}

	mock.ExpectExec("INSERT INTO telemetry").
		WithArgs(
			"run-1", 0.2, 0.2, "h1", "highway", 9.7, 64.1, 0.0, 0, uint64(0), 0, uint64(0), "A-Highway", true,
			"run-1", 0.2, 0.2, "h11", "suburb", nil, 0.0, 0.0, 0, uint64(0), 0, uint64(0), "A-Highway", false,
		).
		WillReturnResult(sqlmock.NewResult(0, 2))

	require.NoError(t, s.WriteBatch(recs))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSinkSkipsEmptyBatch(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	s := NewPostgresSink(db, "telemetry", "run-1")
	require.NoError(t, s.WriteBatch(nil))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSinkWrapsInsertError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	s := NewPostgresSink(db, "telemetry", "run-1")

	mock.ExpectExec("INSERT INTO telemetry").
		WillReturnError(errors.New("relation does not exist"))

	err = s.WriteBatch([]sampler.Record{{Endpoint: "h1", Zone: "highway"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insert records")
}

func TestMultiFansOutAndJoinsErrors(t *testing.T) {
	good := &captureSink{}
	bad := &captureSink{err: errors.New("disk full")}

	m := NewMulti(good, bad)
	err := m.WriteBatch([]sampler.Record{{Endpoint: "h1"}})
	require.Error(t, err)
	assert.Len(t, good.batches, 1, "healthy sinks still receive the batch")

	require.Error(t, m.Close())
}

type captureSink struct {
	batches [][]sampler.Record
	err     error
}

func (c *captureSink) Name() string { return "capture" }

func (c *captureSink) WriteBatch(recs []sampler.Record) error {
	c.batches = append(c.batches, recs)
	return c.err
}

func (c *captureSink) Close() error { return c.err }
