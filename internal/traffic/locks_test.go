package traffic

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/v2xlab/vextel/internal/topology"
)

func TestEndpointLocks(t *testing.T) {
	topo, err := topology.New(topology.DefaultParams())
	require.NoError(t, err)

	locks := NewEndpointLocks(topo.Endpoints)

	mu, ok := locks.Get("h1")
	require.True(t, ok)
	require.NotNil(t, mu)

	again, ok := locks.Get("h1")
	require.True(t, ok)
	assert.Same(t, mu, again, "lock identity is stable per endpoint")

	_, ok = locks.Get("h99")
	assert.False(t, ok)
}
