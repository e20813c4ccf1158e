package platform

import (
	"fmt"

	corev1 "k8s.io/api/core/v1"

	"github.com/railtopo/railtopo/internal/models"
)

type genericDetector struct{}

func (genericDetector) Type() models.Platform { return models.PlatformGeneric }

// matches is the unconditional fallback: it always returns true, so it only
// ever applies after OpenShift, CoreWeave, and GKE have all declined.
func (genericDetector) matches(labels map[string]string) bool { return true }

func (genericDetector) DetectRDMA(node *corev1.Node) (bool, string, string) {
	capacity := node.Status.Capacity
	labels := nodeLabels(node)

	if q, ok := capacity["rdma/roce_gdr"]; ok {
		return true, "RoCE GPU Direct", fmt.Sprintf("rdma/roce_gdr: %s", q.String())
	}
	if q, ok := capacity["rdma/ib"]; ok {
		return true, "InfiniBand", fmt.Sprintf("rdma/ib: %s", q.String())
	}
	if labels["feature.node.kubernetes.io/rdma.capable"] == "true" {
		return true, "Generic RDMA", "feature.node.kubernetes.io/rdma.capable: true"
	}
	return false, "", ""
}

func (genericDetector) DetectTopologyBlock(node *corev1.Node) (string, *models.TopologyDetection) {
	return detectZoneRackIPBlock(node)
}

func (genericDetector) ExtractPlatformInfo(node *corev1.Node) PlatformInfo {
	return PlatformInfo{}
}
