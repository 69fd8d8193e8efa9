package api

import (
	"github.com/v2xlab/vextel/internal/sampler"
)

// StreamMessage is the payload broadcast to stream clients for each
// sampling tick.
type StreamMessage struct {
	Type    string           `json:"type"`
	Records []sampler.Record `json:"records"`
}

// StreamSink adapts the hub into a record sink so each tick's batch is
// pushed to connected dashboards.
type StreamSink struct {
	hub *Hub
}

// NewStreamSink wraps the hub.
func NewStreamSink(hub *Hub) *StreamSink {
	return &StreamSink{hub: hub}
}

func (s *StreamSink) Name() string { return "stream" }

// WriteBatch broadcasts the batch; it never blocks the sampling loop.
func (s *StreamSink) WriteBatch(recs []sampler.Record) error {
	s.hub.Broadcast(StreamMessage{Type: "records", Records: recs})
	return nil
}

func (s *StreamSink) Close() error { return nil }
