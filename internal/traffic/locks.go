package traffic

import (
	"sync"

	"github.com/v2xlab/vextel/internal/topology"
)

// EndpointLocks serializes command dispatch per endpoint: two scenario
// phases may overlap in time, but a single endpoint never has two
// in-flight flow commands racing on its command channel. The table is
// pre-populated from the static endpoint set at construction, so no
// lock guards lazy creation.
type EndpointLocks struct {
	locks map[string]*sync.Mutex
}

// NewEndpointLocks builds the registry for the given endpoints.
func NewEndpointLocks(endpoints []topology.Endpoint) *EndpointLocks {
	locks := make(map[string]*sync.Mutex, len(endpoints))
	for _, ep := range endpoints {
		locks[ep.Name] = &sync.Mutex{}
	}
	return &EndpointLocks{locks: locks}
}

// Get returns the lock for the named endpoint, or false for an
// endpoint outside the registered set.
func (e *EndpointLocks) Get(name string) (*sync.Mutex, bool) {
	mu, ok := e.locks[name]
	return mu, ok
}
