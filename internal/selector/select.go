package selector

import (
	"fmt"
	"sort"
	"strings"

	"github.com/railtopo/railtopo/internal/models"
	"github.com/railtopo/railtopo/internal/topoaffinity"
)

const unknownTopologyKey = "unknown"

// SelectNodes runs the full topology-aware node selection pipeline over a
// cluster report: resolve the requested shape, filter RDMA-capable
// candidates, apply ib-only/min-gpu/gpu-split filters, group by topology,
// and pick the final set.
func SelectNodes(report *models.ClusterReport, params models.NodeSelectionParams) (*models.NodeSelection, error) {
	target, err := resolveParams(params)
	if err != nil {
		return nil, err
	}
	numNodes := target.numNodes

	candidates := make([]models.NodeInfo, 0, len(report.Nodes))
	for _, n := range report.Nodes {
		if n.RDMACapability == models.RDMACapable {
			candidates = append(candidates, n)
		}
	}
	if len(candidates) == 0 {
		return nil, fmt.Errorf("no RDMA-capable nodes found in cluster")
	}

	if params.IBOnly {
		candidates = filterSlice(candidates, func(n models.NodeInfo) bool {
			return strings.Contains(n.RDMAResource, "ib") || strings.Contains(n.RDMAResource, "IB")
		})
	}

	if params.MinGPUsPerNode != nil {
		min := *params.MinGPUsPerNode
		candidates = filterSlice(candidates, func(n models.NodeInfo) bool {
			return gpuCountOf(n) >= min
		})
	}

	if target.gpusPerNode != nil {
		gpus := *target.gpusPerNode
		if numNodes == 0 {
			n, g, ok := bestGPUSplit(candidates, gpus)
			if !ok {
				return nil, fmt.Errorf("cannot satisfy %d total GPUs with available nodes", gpus)
			}
			numNodes = n
			candidates = filterSlice(candidates, func(node models.NodeInfo) bool {
				return gpuCountOf(node) == g
			})
		} else {
			candidates = filterSlice(candidates, func(node models.NodeInfo) bool {
				return gpuCountOf(node) == gpus
			})
		}
	}

	if len(candidates) == 0 {
		return nil, fmt.Errorf("no nodes match the specified criteria")
	}

	affinity := topoaffinity.For(report.Platform)
	groups := map[string][]models.NodeInfo{}
	for _, n := range candidates {
		key, ok := affinity.TopologyKey(&n)
		if !ok {
			key = unknownTopologyKey
		}
		groups[key] = append(groups[key], n)
	}

	var selected []models.NodeInfo
	if params.PreferSameBlock {
		selected = selectFromBestGroup(groups, numNodes)
	} else {
		if numNodes <= len(candidates) {
			selected = append(selected, candidates[:numNodes]...)
		} else {
			selected = append(selected, candidates...)
		}
	}

	if len(selected) < numNodes {
		return nil, fmt.Errorf("only found %d nodes matching criteria, need %d", len(selected), numNodes)
	}

	return assembleSelection(selected, report.Platform, affinity), nil
}

func filterSlice(nodes []models.NodeInfo, keep func(models.NodeInfo) bool) []models.NodeInfo {
	out := make([]models.NodeInfo, 0, len(nodes))
	for _, n := range nodes {
		if keep(n) {
			out = append(out, n)
		}
	}
	return out
}

func gpuCountOf(n models.NodeInfo) int {
	if n.GPUCount == nil {
		return 0
	}
	return *n.GPUCount
}

// bestGPUSplit picks the largest exact gpu-count bucket that evenly divides
// totalGPUs and has enough nodes on hand, preferring fewer nodes with more
// GPUs each.
func bestGPUSplit(candidates []models.NodeInfo, totalGPUs int) (numNodes, gpuCount int, ok bool) {
	byCount := map[int][]models.NodeInfo{}
	for _, n := range candidates {
		if n.GPUCount == nil {
			continue
		}
		byCount[*n.GPUCount] = append(byCount[*n.GPUCount], n)
	}

	counts := make([]int, 0, len(byCount))
	for c := range byCount {
		counts = append(counts, c)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(counts)))

	for _, c := range counts {
		if c == 0 || totalGPUs%c != 0 {
			continue
		}
		needed := totalGPUs / c
		if len(byCount[c]) >= needed {
			return needed, c, true
		}
	}
	return 0, 0, false
}

// selectFromBestGroup prefers the largest topology group that alone can
// satisfy numNodes; otherwise it pulls from the largest groups in
// descending size until numNodes is reached.
func selectFromBestGroup(groups map[string][]models.NodeInfo, numNodes int) []models.NodeInfo {
	keys := make([]string, 0, len(groups))
	for key := range groups {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if len(groups[keys[i]]) != len(groups[keys[j]]) {
			return len(groups[keys[i]]) > len(groups[keys[j]])
		}
		return keys[i] < keys[j]
	})

	for _, key := range keys {
		if len(groups[key]) >= numNodes {
			return append([]models.NodeInfo{}, groups[key][:numNodes]...)
		}
	}

	var selected []models.NodeInfo
	for _, key := range keys {
		for _, n := range groups[key] {
			if len(selected) >= numNodes {
				break
			}
			selected = append(selected, n)
		}
		if len(selected) >= numNodes {
			break
		}
	}
	return selected
}

func assembleSelection(selected []models.NodeInfo, platformType models.Platform, affinity topoaffinity.Selector) *models.NodeSelection {
	nodes := make([]models.SelectedNode, 0, len(selected))
	totalGPUs := 0
	for rank, n := range selected {
		key, _ := affinity.TopologyKey(&n)
		gpus := gpuCountOf(n)
		totalGPUs += gpus
		nodes = append(nodes, models.SelectedNode{
			Name:          n.Name,
			Rank:          rank,
			GPUCount:      gpus,
			TopologyBlock: key,
			RDMAType:      n.RDMAType,
		})
	}

	gpusPerNode := 0
	allSame := true
	for _, n := range nodes {
		if n.GPUCount != nodes[0].GPUCount {
			allSame = false
		}
	}
	if allSame && len(nodes) > 0 {
		gpusPerNode = nodes[0].GPUCount
	} else if len(nodes) > 0 {
		gpusPerNode = totalGPUs / len(nodes)
	}

	blocks := map[string]int{}
	for _, n := range nodes {
		block := n.TopologyBlock
		if block == "" {
			block = unknownTopologyKey
		}
		blocks[block]++
	}

	_, hasUnknown := blocks[unknownTopologyKey]
	allSameBlock := len(blocks) == 1 && !hasUnknown

	var reason string
	switch {
	case allSameBlock:
		var blockName string
		for b := range blocks {
			blockName = b
		}
		reason = fmt.Sprintf("All %d nodes in same topology block '%s' for optimal locality", len(nodes), blockName)
	case len(blocks) == 1:
		reason = fmt.Sprintf("All %d nodes selected (topology unknown)", len(nodes))
	default:
		reason = fmt.Sprintf("%d nodes across %d topology blocks", len(nodes), len(blocks))
	}

	rdmaType := ""
	if len(nodes) > 0 {
		rdmaType = nodes[0].RDMAType
	}

	return &models.NodeSelection{
		Nodes: nodes,
		Summary: models.SelectionSummary{
			TotalNodes:  len(nodes),
			TotalGPUs:   totalGPUs,
			GPUsPerNode: gpusPerNode,
			WorldSize:   totalGPUs,
		},
		Topology: models.TopologyInfo{
			AllSameBlock: allSameBlock,
			Blocks:       blocks,
			Reason:       reason,
		},
		Platform: platformType,
		RDMAType: rdmaType,
	}
}
