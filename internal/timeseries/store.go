package timeseries

import (
	"sort"
	"sync"
	"time"
)

// Point is one observation of a metric.
type Point struct {
	T time.Time `json:"t"`
	V float64   `json:"v"`
}

// Series is a fixed-capacity ring of recent points for one metric.
type Series struct {
	mu   sync.RWMutex
	ring []Point
	head int
	full bool
}

// NewSeries allocates a ring holding the most recent capacity points.
func NewSeries(capacity int) *Series {
	if capacity <= 0 {
		capacity = 1
	}
	return &Series{ring: make([]Point, capacity)}
}

// Add appends a point, evicting the oldest when the ring is full.
func (s *Series) Add(p Point) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ring[s.head] = p
	s.head = (s.head + 1) % len(s.ring)
	if s.head == 0 {
		s.full = true
	}
}

// Points returns the buffered points, oldest first.
func (s *Series) Points() []Point {
	s.mu.RLock()
	defer s.mu.RUnlock()

	size := s.head
	start := 0
	if s.full {
		size = len(s.ring)
		start = s.head
	}

	out := make([]Point, 0, size)
	for i := 0; i < size; i++ {
		out = append(out, s.ring[(start+i)%len(s.ring)])
	}
	return out
}

// Store keeps one ring per metric key, e.g. "endpoint.h3.tx_mbps".
// The sampling loop writes, the status API reads.
type Store struct {
	mu       sync.RWMutex
	capacity int
	series   map[string]*Series
}

// NewStore creates a store whose series each hold capacity points.
func NewStore(capacity int) *Store {
	return &Store{
		capacity: capacity,
		series:   make(map[string]*Series),
	}
}

// Upsert returns the series for key, creating it on first use.
func (st *Store) Upsert(key string) *Series {
	st.mu.Lock()
	defer st.mu.Unlock()

	s, ok := st.series[key]
	if !ok {
		s = NewSeries(st.capacity)
		st.series[key] = s
	}
	return s
}

// Get returns the series for key if it exists.
func (st *Store) Get(key string) (*Series, bool) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	s, ok := st.series[key]
	return s, ok
}

// Keys returns all series keys, sorted.
func (st *Store) Keys() []string {
	st.mu.RLock()
	defer st.mu.RUnlock()

	keys := make([]string, 0, len(st.series))
	for k := range st.series {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
