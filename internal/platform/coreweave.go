package platform

import (
	"fmt"
	"sort"
	"strings"

	corev1 "k8s.io/api/core/v1"

	"github.com/railtopo/railtopo/internal/models"
)

type coreWeaveDetector struct{}

func (coreWeaveDetector) Type() models.Platform { return models.PlatformCoreWeave }

func (coreWeaveDetector) matches(labels map[string]string) bool {
	for k := range labels {
		if strings.HasPrefix(k, "ib.coreweave.cloud/") {
			return true
		}
	}
	return false
}

func (coreWeaveDetector) DetectRDMA(node *corev1.Node) (bool, string, string) {
	labels := nodeLabels(node)
	capacity := node.Status.Capacity

	speedIsZero := labels["ib.coreweave.cloud/speed"] == "0G"

	if q, ok := capacity["rdma/roce_gdr"]; ok {
		if speedIsZero {
			return false, "", ""
		}
		return true, "RoCE GPU Direct", fmt.Sprintf("rdma/roce_gdr: %s", q.String())
	}
	if q, ok := capacity["rdma/ib"]; ok {
		if speedIsZero {
			return false, "", ""
		}
		return true, "InfiniBand", fmt.Sprintf("rdma/ib: %s", q.String())
	}
	return false, "", ""
}

func (coreWeaveDetector) DetectTopologyBlock(node *corev1.Node) (string, *models.TopologyDetection) {
	labels := nodeLabels(node)
	leafgroup, ok := labels["ib.coreweave.cloud/leafgroup"]
	if !ok {
		return "", nil
	}
	return leafgroup, &models.TopologyDetection{
		Type:            models.TopologyLeafGroup,
		DetectionMethod: "CoreWeave leafgroup label",
		Confidence:      models.ConfidenceHigh,
	}
}

func (coreWeaveDetector) ExtractPlatformInfo(node *corev1.Node) PlatformInfo {
	labels := nodeLabels(node)

	var neighbors []string
	for k, v := range labels {
		if strings.HasPrefix(k, "ib.coreweave.cloud/neighbors.current.ibp") {
			neighbors = append(neighbors, fmt.Sprintf("%s=%s", k, v))
		}
	}
	sort.Strings(neighbors)

	return PlatformInfo{
		CoreWeave: &models.CoreWeavePayload{
			IBSpeed:   labels["ib.coreweave.cloud/speed"],
			IBFabric:  labels["ib.coreweave.cloud/fabric"],
			Leafgroup: labels["ib.coreweave.cloud/leafgroup"],
			Superpod:  labels["ib.coreweave.cloud/superpod"],
			Neighbors: neighbors,
		},
	}
}
