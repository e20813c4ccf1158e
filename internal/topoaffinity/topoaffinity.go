// Package topoaffinity implements the Topology Selector (M2): per-platform
// topology keys, selection-reason strings, and the image-cache co-location
// pair-scoring algorithm used to pick the best two nodes for a self-test run.
package topoaffinity

import (
	"fmt"

	"github.com/railtopo/railtopo/internal/models"
)

// Selector exposes the per-platform topology key a node belongs to and the
// human-readable reason string for a chosen pair.
type Selector interface {
	TopologyKey(node *models.NodeInfo) (string, bool)
	SelectionReason(rdmaType, topologyKey string, isFallback bool) string
}

type coreWeaveSelector struct{}

func (coreWeaveSelector) TopologyKey(node *models.NodeInfo) (string, bool) {
	if node.Leafgroup() == "" {
		return "", false
	}
	return node.Leafgroup(), true
}

func (coreWeaveSelector) SelectionReason(rdmaType, topologyKey string, isFallback bool) string {
	if isFallback {
		return fmt.Sprintf("CoreWeave fallback: %s RDMA nodes (topology may differ)", rdmaType)
	}
	return fmt.Sprintf("Optimal CoreWeave same-topology: %s RDMA within leafgroup '%s'", rdmaType, topologyKey)
}

type gkeSelector struct{}

func (gkeSelector) TopologyKey(node *models.NodeInfo) (string, bool) {
	if node.TopologyBlock == "" {
		return "", false
	}
	return node.TopologyBlock, true
}

func (gkeSelector) SelectionReason(rdmaType, topologyKey string, isFallback bool) string {
	if isFallback {
		return fmt.Sprintf("GKE fallback: %s RDMA nodes (topology may differ)", rdmaType)
	}
	return fmt.Sprintf("Optimal GKE same-topology: %s RDMA within '%s'", rdmaType, topologyKey)
}

type openShiftSelector struct{}

func (openShiftSelector) TopologyKey(node *models.NodeInfo) (string, bool) {
	if node.TopologyBlock == "" {
		return "", false
	}
	return node.TopologyBlock, true
}

func (openShiftSelector) SelectionReason(rdmaType, topologyKey string, isFallback bool) string {
	if isFallback {
		return fmt.Sprintf("OpenShift fallback: %s RDMA nodes (topology may differ)", rdmaType)
	}
	return fmt.Sprintf("Optimal OpenShift same-topology: %s RDMA within '%s'", rdmaType, topologyKey)
}

type genericSelector struct{}

func (genericSelector) TopologyKey(node *models.NodeInfo) (string, bool) {
	if node.TopologyBlock == "" {
		return "", false
	}
	return node.TopologyBlock, true
}

func (genericSelector) SelectionReason(rdmaType, topologyKey string, isFallback bool) string {
	if isFallback {
		return fmt.Sprintf("Generic fallback: %s RDMA nodes (topology may differ)", rdmaType)
	}
	return fmt.Sprintf("Optimal same-topology: %s RDMA within '%s'", rdmaType, topologyKey)
}

// For selects the Selector matching a platform.
func For(platformType models.Platform) Selector {
	switch platformType {
	case models.PlatformCoreWeave:
		return coreWeaveSelector{}
	case models.PlatformGKE:
		return gkeSelector{}
	case models.PlatformOpenShift:
		return openShiftSelector{}
	default:
		return genericSelector{}
	}
}

// Pair is the result of SelectPair: the two chosen nodes and the reason they
// were chosen.
type Pair struct {
	NodeA      *models.NodeInfo
	NodeB      *models.NodeInfo
	Reason     string
	CacheScore int
}

// cacheScore rates a candidate pair 3/2/1 by how many endpoints report a
// cached self-test image; Unknown counts as not cached.
func cacheScore(a, b *models.NodeInfo) int {
	aCached := a.ImageCacheStatus == models.ImageCached
	bCached := b.ImageCacheStatus == models.ImageCached
	switch {
	case aCached && bCached:
		return 3
	case aCached || bCached:
		return 2
	default:
		return 1
	}
}

func anyCacheInfoKnown(nodes []*models.NodeInfo) bool {
	for _, n := range nodes {
		if n.ImageCacheStatus != models.ImageUnknown {
			return true
		}
	}
	return false
}

// SelectPair runs the pair-scoring algorithm: partition a group of
// same-RDMA-type nodes by topology key, enumerate unordered pairs within
// every partition holding ≥2 nodes, and keep the best-scoring pair by
// image-cache co-location. Falls back to any two nodes in the group (with a
// fallback reason) when no partition has ≥2 members.
func SelectPair(selector Selector, rdmaType string, nodes []*models.NodeInfo) (*Pair, bool) {
	if len(nodes) < 2 {
		return nil, false
	}

	partitions := map[string][]*models.NodeInfo{}
	for _, n := range nodes {
		key, ok := selector.TopologyKey(n)
		if !ok {
			continue
		}
		partitions[key] = append(partitions[key], n)
	}

	var best *Pair
	for key, group := range partitions {
		if len(group) < 2 {
			continue
		}
		for i := 0; i < len(group); i++ {
			for j := i + 1; j < len(group); j++ {
				score := cacheScore(group[i], group[j])
				if best == nil || score > best.CacheScore {
					best = &Pair{
						NodeA:      group[i],
						NodeB:      group[j],
						Reason:     selector.SelectionReason(rdmaType, key, false),
						CacheScore: score,
					}
				}
			}
		}
	}

	if best != nil {
		if anyCacheInfoKnown([]*models.NodeInfo{best.NodeA, best.NodeB}) {
			best.Reason = fmt.Sprintf("%s (cache score: %d)", best.Reason, best.CacheScore)
		}
		return best, true
	}

	reason := selector.SelectionReason(rdmaType, "unknown", true)
	return &Pair{NodeA: nodes[0], NodeB: nodes[1], Reason: reason}, true
}
