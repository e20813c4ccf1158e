package cluster

import (
	"time"

	corev1 "k8s.io/api/core/v1"

	"github.com/railtopo/railtopo/internal/models"
	"github.com/railtopo/railtopo/internal/platform"
)

// BuildReportInput bundles everything BuildReport needs: the live node and
// pod lists, the detail level for label retention, an optional custom
// topology rule, and an optional image reference to check for cache
// presence.
type BuildReportInput struct {
	Nodes        []*corev1.Node
	Pods         []*corev1.Pod
	Detail       DetailLevel
	TopologyRule string
	ImageToCheck string
}

// BuildReport runs the full Cluster Analyzer pipeline: classify the
// cluster's dominant platform, compute the cluster-wide topology strategy,
// analyze every node, aggregate GPU/CPU/memory allocation from pods, and
// check image-cache presence. Per-node analysis is independent and could
// run in parallel; aggregation into the report is serialized here since the
// node count in realistic clusters makes that unnecessary complexity.
func BuildReport(in BuildReportInput) *models.ClusterReport {
	if len(in.Nodes) == 0 {
		return models.NewEmptyClusterReport(models.PlatformGeneric)
	}

	clusterPlatform := dominantPlatform(in.Nodes)
	strategy := DetermineClusterTopologyStrategy(in.Nodes, clusterPlatform)

	rawByName := make(map[string]*corev1.Node, len(in.Nodes))
	nodeInfos := make([]models.NodeInfo, 0, len(in.Nodes))
	var ruleErrors []string

	var cacheCheckedAt *time.Time
	if in.ImageToCheck != "" {
		t := Now()
		cacheCheckedAt = &t
	}

	for _, raw := range in.Nodes {
		rawByName[raw.Name] = raw
		ni := AnalyzeNode(raw, in.Detail, strategy, in.TopologyRule)
		if ni.TopologyRuleError != "" {
			ruleErrors = append(ruleErrors, ni.Name+": "+ni.TopologyRuleError)
		}
		ni.ImageCacheStatus = DetectImageCacheStatus(raw, in.ImageToCheck)
		ni.CacheCheckTimestamp = cacheCheckedAt
		nodeInfos = append(nodeInfos, ni)
	}

	PopulateGPUAllocations(nodeInfos, in.Pods, rawByName)
	PopulateResourceAllocations(nodeInfos, in.Pods, rawByName)

	report := assembleReport(nodeInfos, clusterPlatform, strategy, in.ImageToCheck != "", ruleErrors)
	report.CacheCheckTimestamp = cacheCheckedAt
	return report
}

// dominantPlatform classifies every node with the same per-node classifier
// AnalyzeNode uses and returns whichever platform the most nodes belong to,
// so a mixed-label scan still reports one coherent cluster platform.
func dominantPlatform(nodes []*corev1.Node) models.Platform {
	counts := map[models.Platform]int{}
	for _, n := range nodes {
		labels := n.Labels
		if labels == nil {
			labels = map[string]string{}
		}
		counts[platform.Classify(labels).Type()]++
	}

	best := models.PlatformGeneric
	bestCount := -1
	for p, c := range counts {
		if c > bestCount {
			best = p
			bestCount = c
		}
	}
	return best
}

func assembleReport(nodes []models.NodeInfo, clusterPlatform models.Platform, strategy *models.TopologyStrategy, imageChecked bool, ruleErrors []string) *models.ClusterReport {
	report := models.NewEmptyClusterReport(clusterPlatform)
	report.TotalNodes = len(nodes)
	report.TopologyStrategy = strategy
	report.Nodes = nodes
	report.ImageChecked = imageChecked

	if len(ruleErrors) > 0 {
		report.TopologyRuleError = joinErrors(ruleErrors)
	}

	rdmaTypeSeen := map[string]bool{}
	fabricSeen := map[string]bool{}
	superpodSeen := map[string]bool{}
	leafgroupSeen := map[string]bool{}

	for _, n := range nodes {
		if n.RDMACapability == models.RDMACapable {
			report.RDMANodes++
			if n.RDMAType != "" && !rdmaTypeSeen[n.RDMAType] {
				rdmaTypeSeen[n.RDMAType] = true
				report.RDMATypes = append(report.RDMATypes, n.RDMAType)
			}
		}
		if n.GPUCount != nil && *n.GPUCount > 0 {
			report.GPUNodes++
			report.TotalGPUs += *n.GPUCount
		}
		if n.TopologyBlock != "" {
			report.TopologyBlocks[n.TopologyBlock]++
			if n.GPUCount != nil {
				report.TopologyGPUCounts[n.TopologyBlock] += *n.GPUCount
			}
		}
		if n.CoreWeave != nil {
			if n.CoreWeave.IBFabric != "" && !fabricSeen[n.CoreWeave.IBFabric] {
				fabricSeen[n.CoreWeave.IBFabric] = true
				report.IBFabrics = append(report.IBFabrics, n.CoreWeave.IBFabric)
			}
			if n.CoreWeave.Superpod != "" && !superpodSeen[n.CoreWeave.Superpod] {
				superpodSeen[n.CoreWeave.Superpod] = true
				report.Superpods = append(report.Superpods, n.CoreWeave.Superpod)
			}
			if n.CoreWeave.Leafgroup != "" && !leafgroupSeen[n.CoreWeave.Leafgroup] {
				leafgroupSeen[n.CoreWeave.Leafgroup] = true
				report.Leafgroups = append(report.Leafgroups, n.CoreWeave.Leafgroup)
			}
		}
	}

	return report
}

func joinErrors(errs []string) string {
	out := errs[0]
	for _, e := range errs[1:] {
		out += "; " + e
	}
	return out
}
