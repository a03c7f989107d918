package client

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMakeOlricConfig(t *testing.T) {
	c, err := makeOlricConfig(OlricConfig{})
	require.NoError(t, err)
	assert.Equal(t, olricBindAddr, c.BindAddr)
	assert.NotZero(t, c.BindPort)
	assert.Equal(t, uint64(5), c.PartitionCount)

	c, err = makeOlricConfig(OlricConfig{DiscoveryMode: OlricModeCloud, Namespace: "bids", ReplicaCount: 3})
	require.NoError(t, err)
	assert.Equal(t, 3, c.ReplicaCount)
	assert.Equal(t, uint64(12), c.PartitionCount)
	assert.Equal(t, int32(3), c.MemberCountQuorum)
	assert.Contains(t, c.ServiceDiscovery["args"], "namespace=bids")

	_, err = makeOlricConfig(OlricConfig{DiscoveryMode: OlricModeCloud})
	assert.ErrorContains(t, err, "NAMESPACE")

	_, err = makeOlricConfig(OlricConfig{DiscoveryMode: "wan"})
	assert.ErrorContains(t, err, "unknown olric discovery mode")
}
