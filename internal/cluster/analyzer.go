// Package cluster implements the Cluster Analyzer (M1): orchestrating the
// platform classifier/detectors and the topology rule evaluator over every
// node, computing the cluster-wide topology strategy first, and aggregating
// GPU/CPU/memory allocation from running pods.
package cluster

import (
	"sort"
	"strconv"
	"strings"
	"time"

	corev1 "k8s.io/api/core/v1"

	"github.com/railtopo/railtopo/internal/models"
	"github.com/railtopo/railtopo/internal/platform"
	"github.com/railtopo/railtopo/internal/topologyrule"
)

// DetailLevel controls how much of a node's label set is retained on the
// resulting NodeInfo.
type DetailLevel int

const (
	DetailBasic DetailLevel = iota
	DetailDetailed
)

// AnalyzeNode converts one raw *corev1.Node into a normalized NodeInfo.
// clusterStrategy, when non-nil, takes precedence over per-node topology
// detection for platforms it governs (currently GKE only). topologyRule,
// when non-empty, supersedes both the cluster strategy and per-platform
// detection.
func AnalyzeNode(node *corev1.Node, detail DetailLevel, clusterStrategy *models.TopologyStrategy, topologyRule string) models.NodeInfo {
	labels := node.Labels
	if labels == nil {
		labels = map[string]string{}
	}

	detector := platform.Classify(labels)
	platformType := detector.Type()

	capable, rdmaType, rdmaResource := detector.DetectRDMA(node)

	gpuCount, gpuType := extractGPUInfo(node, labels)

	var topologyBlock string
	var detection *models.TopologyDetection
	var ruleErr string

	if topologyRule != "" {
		block, ok, err := topologyrule.Evaluate(node.Name, labels, topologyRule)
		if err != nil {
			ruleErr = err.Error()
		} else if ok {
			topologyBlock = block
			detection = topologyrule.Detection(topologyRule)
		}
	} else if clusterStrategy != nil {
		topologyBlock, detection = detectTopologyBlockWithStrategy(node, platformType, clusterStrategy)
	} else {
		topologyBlock, detection = detector.DetectTopologyBlock(node)
	}

	info := detector.ExtractPlatformInfo(node)

	var mellanoxNICs []models.MellanoxNIC
	if detail == DetailDetailed {
		mellanoxNICs = findMellanoxNICs(labels)
	}

	ni := models.NodeInfo{
		Name:              node.Name,
		Platform:          platformType,
		RDMAType:          rdmaType,
		RDMAResource:      rdmaResource,
		TopologyBlock:     topologyBlock,
		TopologyDetection: detection,
		GPUCount:          gpuCount,
		GPUType:           gpuType,
		CoreWeave:         info.CoreWeave,
		GKE:               info.GKE,
		TopologyRuleError: ruleErr,
		Labels:            filterLabels(labels, detail),
		ImageCacheStatus:  models.ImageUnknown,
	}
	if capable {
		ni.RDMACapability = models.RDMACapable
	} else {
		ni.RDMACapability = models.RDMANotCapable
	}
	if detail == DetailDetailed && ni.CoreWeave != nil {
		ni.CoreWeave.MellanoxNICs = mellanoxNICs
	}
	return ni
}

// extractGPUInfo reads the nvidia.com/gpu capacity and resolves a model
// name through the label fallback chain: product label, class label, GKE
// accelerator label, else a generic name.
func extractGPUInfo(node *corev1.Node, labels map[string]string) (*int, string) {
	q, ok := node.Status.Capacity["nvidia.com/gpu"]
	if !ok {
		return nil, ""
	}
	count, err := strconv.Atoi(q.String())
	if err != nil {
		count = 0
	}

	model := labels["nvidia.com/gpu.product"]
	if model == "" {
		model = labels["gpu.nvidia.com/class"]
	}
	if model == "" {
		model = labels["cloud.google.com/gke-accelerator"]
	}
	if model == "" {
		model = "NVIDIA GPU"
	}

	return &count, model
}

// DetermineClusterTopologyStrategy computes a single strategy over the
// whole node list before any per-node topology detection runs. Only GKE
// currently needs this: if any node carries an RDMA fabric domain, the
// entire scan uses Hardware topology (excluding non-fabric nodes from
// topology blocks rather than mixing in a zone fallback); otherwise GKE
// falls back cluster-wide to Zone topology. Other platforms return nil,
// leaving per-node detection authoritative.
func DetermineClusterTopologyStrategy(nodes []*corev1.Node, platformType models.Platform) *models.TopologyStrategy {
	if platformType != models.PlatformGKE {
		return nil
	}

	hasFabricDomain := false
	for _, node := range nodes {
		labels := node.Labels
		if labels == nil {
			labels = map[string]string{}
		}
		detector := platform.Classify(labels)
		gke, ok := detector.(interface{ HasFabricDomain(*corev1.Node) bool })
		if !ok {
			continue
		}
		if gke.HasFabricDomain(node) {
			hasFabricDomain = true
			break
		}
	}

	if hasFabricDomain {
		return &models.TopologyStrategy{
			Type:       models.TopologyHardware,
			Method:     "GKE RDMA fabric domain analysis",
			Confidence: models.ConfidenceHigh,
		}
	}
	return &models.TopologyStrategy{
		Type:       models.TopologyZone,
		Method:     "GKE zone+nodepool topology",
		Confidence: models.ConfidenceMedium,
	}
}

func detectTopologyBlockWithStrategy(node *corev1.Node, platformType models.Platform, strategy *models.TopologyStrategy) (string, *models.TopologyDetection) {
	if platformType != models.PlatformGKE {
		return platform.Classify(node.Labels).DetectTopologyBlock(node)
	}

	labels := node.Labels
	if labels == nil {
		labels = map[string]string{}
	}

	detectionTag := &models.TopologyDetection{
		Type:            strategy.Type,
		DetectionMethod: strategy.Method,
		Confidence:      strategy.Confidence,
	}

	switch strategy.Type {
	case models.TopologyHardware:
		info := platform.Classify(labels).ExtractPlatformInfo(node)
		if info.GKE != nil && info.GKE.FabricDomain != "" {
			return info.GKE.FabricDomain, detectionTag
		}
		// Non-GPU/non-fabric nodes are excluded from hardware topology
		// rather than falling back to a zone, to avoid mixing schemes.
		return "", detectionTag
	case models.TopologyZone:
		zone := labels["topology.gke.io/zone"]
		if zone == "" {
			zone = labels["topology.kubernetes.io/zone"]
		}
		nodepool := labels["cloud.google.com/gke-nodepool"]
		if zone != "" && nodepool != "" {
			return zone + "-" + nodepool, detectionTag
		}
	}

	return platform.Classify(labels).DetectTopologyBlock(node)
}

func findMellanoxNICs(labels map[string]string) []models.MellanoxNIC {
	const prefix = "net.coreweave.cloud/mellanox."

	interfaces := map[string]struct{}{}
	for k := range labels {
		if !strings.HasPrefix(k, prefix) {
			continue
		}
		rest := strings.TrimPrefix(k, prefix)
		iface := strings.SplitN(rest, ".", 2)[0]
		interfaces[iface] = struct{}{}
	}

	names := make([]string, 0, len(interfaces))
	for iface := range interfaces {
		names = append(names, iface)
	}
	sort.Strings(names)

	nics := make([]models.MellanoxNIC, 0, len(names))
	for _, iface := range names {
		nics = append(nics, models.MellanoxNIC{
			Interface:  iface,
			PartNumber: labels[prefix+iface+".part_number"],
			Firmware:   labels[prefix+iface+".firmware"],
		})
	}
	return nics
}

var basicLabelPrefixes = []string{
	"k8s.ovn.org/",
	"topology.kubernetes.io/",
	"failure-domain.beta.kubernetes.io/",
	"ib.coreweave.cloud/leafgroup",
	"topology.gke.io/",
	"cloud.google.com/gke-nodepool",
	"cloud.google.com/gce-topology-",
}

var detailedLabelPrefixes = []string{
	"ib.coreweave.cloud/",
	"net.coreweave.cloud/mellanox",
	"backend.coreweave.cloud/",
	"feature.node.kubernetes.io/rdma",
	"feature.node.kubernetes.io/pci-15b3",
	"node.openshift.io/",
	"network.nvidia.com/",
	"k8s.ovn.org/",
	"topology.kubernetes.io/",
	"failure-domain.beta.kubernetes.io/",
	"cloud.google.com/gke-",
	"cloud.google.com/gce-topology-",
	"topology.gke.io/",
}

var detailedLabelSubstrings = []string{"rdma", "roce", "infiniband", "topology"}

// filterLabels retains only labels relevant to selection, per the detail
// level: Basic keeps a short allowlist of topology-relevant prefixes;
// Detailed additionally keeps vendor namespaces and anything mentioning
// RDMA/RoCE/InfiniBand/topology.
func filterLabels(labels map[string]string, detail DetailLevel) map[string]string {
	prefixes := basicLabelPrefixes
	if detail == DetailDetailed {
		prefixes = detailedLabelPrefixes
	}

	out := map[string]string{}
	for k, v := range labels {
		keep := false
		for _, p := range prefixes {
			if strings.HasPrefix(k, p) {
				keep = true
				break
			}
		}
		if !keep && detail == DetailDetailed {
			for _, sub := range detailedLabelSubstrings {
				if strings.Contains(k, sub) {
					keep = true
					break
				}
			}
		}
		if keep {
			out[k] = v
		}
	}
	return out
}

// imageMatches reports whether two image references refer to the same
// image after stripping an `@sha256:...` digest suffix, treating either
// side being a prefix of the other as a match.
func imageMatches(a, b string) bool {
	a = stripDigest(a)
	b = stripDigest(b)
	if a == b {
		return true
	}
	return strings.HasPrefix(a, b) || strings.HasPrefix(b, a)
}

func stripDigest(image string) string {
	if idx := strings.Index(image, "@sha256:"); idx >= 0 {
		return image[:idx]
	}
	return image
}

// DetectImageCacheStatus walks a node's reported image list looking for a
// match against imageToCheck.
func DetectImageCacheStatus(node *corev1.Node, imageToCheck string) models.ImageCacheStatus {
	if imageToCheck == "" {
		return models.ImageUnknown
	}
	for _, img := range node.Status.Images {
		for _, name := range img.Names {
			if imageMatches(name, imageToCheck) {
				return models.ImageCached
			}
		}
	}
	return models.ImageNotCached
}

// Now holds the wall-clock time used for CacheCheckTimestamp; extracted so
// tests can be deterministic.
var Now = time.Now
