package sink

import (
	"errors"

	"github.com/v2xlab/vextel/internal/sampler"
)

// Sink is a durable destination for sample records. WriteBatch
// receives the records of one tick in endpoint order.
type Sink interface {
	sampler.RecordSink
	Name() string
	Close() error
}

// Multi fans every batch out to several sinks. A failing sink does not
// stop the others; errors are joined.
type Multi struct {
	sinks []Sink
}

// NewMulti combines the given sinks.
func NewMulti(sinks ...Sink) *Multi {
	return &Multi{sinks: sinks}
}

func (m *Multi) Name() string { return "multi" }

// WriteBatch writes the batch to every sink.
func (m *Multi) WriteBatch(recs []sampler.Record) error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.WriteBatch(recs); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close closes every sink, collecting errors.
func (m *Multi) Close() error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
