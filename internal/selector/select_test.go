package selector

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"sigs.k8s.io/yaml"

	"github.com/railtopo/railtopo/internal/models"
)

func rdmaNode(name string, gpus int, topologyBlock, rdmaResource string) models.NodeInfo {
	g := gpus
	return models.NodeInfo{
		Name:           name,
		RDMACapability: models.RDMACapable,
		RDMAType:       "InfiniBand",
		RDMAResource:   rdmaResource,
		GPUCount:       &g,
		TopologyBlock:  topologyBlock,
	}
}

func TestSelectNodesDefaultTakesFirstTwo(t *testing.T) {
	report := &models.ClusterReport{
		Platform: models.PlatformGeneric,
		Nodes: []models.NodeInfo{
			rdmaNode("node1", 8, "zone-a", "rdma/ib: 1"),
			rdmaNode("node2", 8, "zone-a", "rdma/ib: 1"),
			rdmaNode("node3", 8, "zone-b", "rdma/ib: 1"),
		},
	}

	sel, err := SelectNodes(report, models.NodeSelectionParams{})
	require.NoError(t, err)
	assert.Equal(t, 2, sel.Summary.TotalNodes)
	assert.Equal(t, "node1", sel.Nodes[0].Name)
	assert.Equal(t, "node2", sel.Nodes[1].Name)
}

func TestSelectNodesPreferSameBlockGroups(t *testing.T) {
	report := &models.ClusterReport{
		Platform: models.PlatformGeneric,
		Nodes: []models.NodeInfo{
			rdmaNode("node1", 8, "zone-a", "rdma/ib: 1"),
			rdmaNode("node2", 8, "zone-b", "rdma/ib: 1"),
			rdmaNode("node3", 8, "zone-b", "rdma/ib: 1"),
		},
	}

	sel, err := SelectNodes(report, models.NodeSelectionParams{NumNodes: intPtr(2), PreferSameBlock: true})
	require.NoError(t, err)
	assert.True(t, sel.Topology.AllSameBlock)
	for _, n := range sel.Nodes {
		assert.Equal(t, "zone-b", n.TopologyBlock)
	}
}

func TestSelectNodesNoRDMACapableErrors(t *testing.T) {
	report := &models.ClusterReport{Platform: models.PlatformGeneric, Nodes: []models.NodeInfo{
		{Name: "node1", RDMACapability: models.RDMANotCapable},
	}}
	_, err := SelectNodes(report, models.NodeSelectionParams{})
	assert.Error(t, err)
}

func TestSelectNodesIBOnlyFiltersNonIB(t *testing.T) {
	report := &models.ClusterReport{
		Platform: models.PlatformGeneric,
		Nodes: []models.NodeInfo{
			rdmaNode("node1", 8, "zone-a", "rdma/roce_gdr: 1"),
			rdmaNode("node2", 8, "zone-a", "rdma/ib: 1"),
		},
	}
	_, err := SelectNodes(report, models.NodeSelectionParams{NumNodes: intPtr(2), IBOnly: true})
	assert.Error(t, err, "only one IB-resource node available, should fail to find 2")
}

func TestSelectNodesOptimizeModePicksLargerGPUBucket(t *testing.T) {
	report := &models.ClusterReport{
		Platform: models.PlatformGeneric,
		Nodes: []models.NodeInfo{
			rdmaNode("node1", 8, "zone-a", "rdma/ib: 1"),
			rdmaNode("node2", 8, "zone-a", "rdma/ib: 1"),
			rdmaNode("node3", 4, "zone-a", "rdma/ib: 1"),
			rdmaNode("node4", 4, "zone-a", "rdma/ib: 1"),
			rdmaNode("node5", 4, "zone-a", "rdma/ib: 1"),
			rdmaNode("node6", 4, "zone-a", "rdma/ib: 1"),
		},
	}

	sel, err := SelectNodes(report, models.NodeSelectionParams{TotalGPUs: intPtr(16)})
	require.NoError(t, err)
	assert.Equal(t, 2, sel.Summary.TotalNodes)
	assert.Equal(t, 8, sel.Summary.GPUsPerNode)
}

func TestRenderShellAndJSONAndYAML(t *testing.T) {
	report := &models.ClusterReport{
		Platform: models.PlatformGeneric,
		Nodes: []models.NodeInfo{
			rdmaNode("node1", 8, "zone-a", "rdma/ib: 1"),
			rdmaNode("node2", 8, "zone-a", "rdma/ib: 1"),
		},
	}
	sel, err := SelectNodes(report, models.NodeSelectionParams{})
	require.NoError(t, err)

	shell := RenderShell(sel)
	assert.Contains(t, shell, "export RAILTOPO_NUM_NODES=2")
	assert.Contains(t, shell, "export RAILTOPO_NODE_0=\"node1\"")

	js, err := RenderJSON(sel)
	require.NoError(t, err)
	assert.Contains(t, js, "\"total_nodes\": 2")

	y, err := RenderYAML(sel)
	require.NoError(t, err)
	assert.Contains(t, y, "allSameBlock: true")
}

func TestRenderYAMLRoundTripsTopology(t *testing.T) {
	report := &models.ClusterReport{
		Platform: models.PlatformGeneric,
		Nodes: []models.NodeInfo{
			rdmaNode("node1", 8, "zone-a", "rdma/ib: 1"),
			rdmaNode("node2", 8, "zone-a", "rdma/ib: 1"),
		},
	}
	sel, err := SelectNodes(report, models.NodeSelectionParams{PreferSameBlock: true})
	require.NoError(t, err)

	out, err := RenderYAML(sel)
	require.NoError(t, err)

	var parsed helmValues
	require.NoError(t, yaml.Unmarshal([]byte(out), &parsed))
	assert.Equal(t, sel.Topology.AllSameBlock, parsed.Topology.AllSameBlock)
	assert.Equal(t, sel.Topology.Blocks, parsed.Topology.Blocks)
	assert.Equal(t, sel.Topology.Reason, parsed.Topology.Reason)
}

func coreWeaveNode(name, leafgroup string, gpus int) models.NodeInfo {
	n := rdmaNode(name, gpus, "", "rdma/ib: 1")
	n.Platform = models.PlatformCoreWeave
	n.CoreWeave = &models.CoreWeavePayload{Leafgroup: leafgroup}
	return n
}

func TestSelectNodesCoreWeaveOptimizePrefersLeafgroupThatFits(t *testing.T) {
	report := &models.ClusterReport{
		Platform: models.PlatformCoreWeave,
		Nodes: []models.NodeInfo{
			coreWeaveNode("a1", "371", 8),
			coreWeaveNode("a2", "371", 8),
			coreWeaveNode("a3", "371", 8),
			coreWeaveNode("a4", "371", 8),
			coreWeaveNode("b1", "372", 8),
			coreWeaveNode("b2", "372", 8),
		},
	}

	sel, err := SelectNodes(report, models.NodeSelectionParams{TotalGPUs: intPtr(32), PreferSameBlock: true})
	require.NoError(t, err)
	assert.Equal(t, 4, sel.Summary.TotalNodes)
	assert.Equal(t, 32, sel.Summary.TotalGPUs)
	assert.Equal(t, 32, sel.Summary.WorldSize)
	assert.True(t, sel.Topology.AllSameBlock)
	for _, n := range sel.Nodes {
		assert.Equal(t, "371", n.TopologyBlock)
	}
}

func TestSelectNodesOptimizeInfeasibleTotalErrors(t *testing.T) {
	report := &models.ClusterReport{
		Platform: models.PlatformGeneric,
		Nodes: []models.NodeInfo{
			rdmaNode("node1", 8, "zone-a", "rdma/ib: 1"),
			rdmaNode("node2", 8, "zone-a", "rdma/ib: 1"),
		},
	}
	_, err := SelectNodes(report, models.NodeSelectionParams{TotalGPUs: intPtr(7)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "7")
}
