package sink

import (
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/lib/pq"

	"github.com/v2xlab/vextel/internal/sampler"
)

const pgColumns = 14

// PostgresSink writes records into a PostgreSQL/TimescaleDB table with
// multi-row inserts, one statement per tick. Rows carry the run id so
// datasets from repeated runs can share a table.
type PostgresSink struct {
	db    *sql.DB
	table string
	runID string
}

// OpenPostgresSink connects to the database and wraps it in a sink.
func OpenPostgresSink(connString, table, runID string) (*PostgresSink, error) {
	db, err := sql.Open("postgres", connString)
	if err != nil {
		return nil, fmt.Errorf("open postgres sink: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres sink: %w", err)
	}
	return NewPostgresSink(db, table, runID), nil
}

// NewPostgresSink wraps an existing connection. Tests inject a mocked
// *sql.DB here.
func NewPostgresSink(db *sql.DB, table, runID string) *PostgresSink {
	return &PostgresSink{db: db, table: table, runID: runID}
}

func (p *PostgresSink) Name() string { return "postgres" }

// WriteBatch inserts the tick's records in one statement.
func (p *PostgresSink) WriteBatch(recs []sampler.Record) error {
	if len(recs) == 0 {
		return nil
	}

	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(p.table)
	b.WriteString(" (run_id, ts, dt, host, zone, rtt_ms, tx_mbps, rx_mbps," +
		" host_queue_depth, host_queue_drops, uplink_queue_depth, uplink_queue_drops," +
		" scenario, is_active) VALUES ")

	args := make([]any, 0, len(recs)*pgColumns)
	for i, rec := range recs {
		if i > 0 {
			b.WriteString(",")
		}
		b.WriteString("(")
		for j := 0; j < pgColumns; j++ {
			if j > 0 {
				b.WriteString(",")
			}
			fmt.Fprintf(&b, "$%d", len(args)+j+1)
		}
		b.WriteString(")")

		var rtt any
		if rec.RTTMs != nil {
			rtt = *rec.RTTMs
		}
		args = append(args,
			p.runID,
			rec.Timestamp,
			rec.Dt,
			rec.Endpoint,
			rec.Zone,
			rtt,
			rec.TxMbps,
			rec.RxMbps,
			rec.HostQueueDepth,
			rec.HostQueueDropDelta,
			rec.UplinkQueueDepth,
			rec.UplinkQueueDropDelta,
			rec.Scenario,
			rec.Active,
		)
	}

	if _, err := p.db.Exec(b.String(), args...); err != nil {
		return fmt.Errorf("insert records: %w", err)
	}
	return nil
}

// Close releases the database connection.
func (p *PostgresSink) Close() error {
	return p.db.Close()
}
