package sampler

// Record is one emitted telemetry row: one endpoint's view of one
// sampling tick, labeled with the scenario active when the tick's
// traffic-state snapshot was taken. Records are immutable once emitted;
// ownership passes to the record sink.
type Record struct {
	// Timestamp is seconds since the run started; Dt is the measured
	// length of the interval the rates were computed over.
	Timestamp float64 `json:"timestamp"`
	Dt        float64 `json:"dt"`

	Endpoint string `json:"endpoint"`
	Zone     string `json:"zone"`

	// RTTMs is nil when the latency probe timed out or lost its echo,
	// in which case RTTLoss is set.
	RTTMs   *float64 `json:"rtt_ms"`
	RTTLoss bool     `json:"rtt_loss"`

	TxMbps float64 `json:"tx_mbps"`
	RxMbps float64 `json:"rx_mbps"`

	HostQueueDepth     int    `json:"host_queue_depth"`
	HostQueueDropDelta uint64 `json:"host_queue_drop_delta"`

	// Uplink metrics are shared by every endpoint in the zone: the
	// zone uplink is the common bottleneck.
	UplinkQueueDepth     int    `json:"uplink_queue_depth"`
	UplinkQueueDropDelta uint64 `json:"uplink_queue_drop_delta"`

	Scenario string `json:"scenario"`
	Active   bool   `json:"is_active"`
}

// RecordSink receives one record per endpoint per tick, in tick order
// and in endpoint order within a tick. Implementations own durable
// storage; the sampler only hands batches over.
type RecordSink interface {
	WriteBatch(recs []Record) error
}
