package topoaffinity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/railtopo/railtopo/internal/models"
)

func node(name, topologyBlock string, cache models.ImageCacheStatus) *models.NodeInfo {
	return &models.NodeInfo{Name: name, TopologyBlock: topologyBlock, ImageCacheStatus: cache}
}

func TestCoreWeaveSelectorUsesLeafgroup(t *testing.T) {
	n := &models.NodeInfo{CoreWeave: &models.CoreWeavePayload{Leafgroup: "lg1"}}
	key, ok := coreWeaveSelector{}.TopologyKey(n)
	assert.True(t, ok)
	assert.Equal(t, "lg1", key)
}

func TestGKESelectorUsesTopologyBlock(t *testing.T) {
	n := &models.NodeInfo{TopologyBlock: "zone-a"}
	key, ok := gkeSelector{}.TopologyKey(n)
	assert.True(t, ok)
	assert.Equal(t, "zone-a", key)
}

func TestSelectPairPrefersSameTopologyOverSize(t *testing.T) {
	nodes := []*models.NodeInfo{
		node("node1", "lg1", models.ImageUnknown),
		node("node2", "lg1", models.ImageUnknown),
		node("node3", "lg2", models.ImageUnknown),
	}
	pair, ok := SelectPair(genericSelector{}, "RoCE", nodes)
	require.True(t, ok)
	assert.Equal(t, "node1", pair.NodeA.Name)
	assert.Equal(t, "node2", pair.NodeB.Name)
	assert.Contains(t, pair.Reason, "Optimal same-topology")
}

func TestSelectPairFallsBackWhenNoSharedTopology(t *testing.T) {
	nodes := []*models.NodeInfo{
		node("node1", "zone-a", models.ImageUnknown),
		node("node2", "zone-b", models.ImageUnknown),
	}
	pair, ok := SelectPair(gkeSelector{}, "GKE RDMA", nodes)
	require.True(t, ok)
	assert.Contains(t, pair.Reason, "fallback")
}

func TestSelectPairPrefersCacheCoLocation(t *testing.T) {
	nodes := []*models.NodeInfo{
		node("node1", "lg1", models.ImageCached),
		node("node2", "lg1", models.ImageNotCached),
		node("node3", "lg1", models.ImageCached),
	}
	pair, ok := SelectPair(genericSelector{}, "RoCE", nodes)
	require.True(t, ok)
	assert.Equal(t, "node1", pair.NodeA.Name)
	assert.Equal(t, "node3", pair.NodeB.Name)
	assert.Equal(t, 3, pair.CacheScore)
	assert.Contains(t, pair.Reason, "cache score: 3")
}

func TestSelectPairReturnsFalseForSingleNode(t *testing.T) {
	_, ok := SelectPair(genericSelector{}, "RoCE", []*models.NodeInfo{node("node1", "lg1", models.ImageUnknown)})
	assert.False(t, ok)
}
