package platform

import (
	"fmt"

	corev1 "k8s.io/api/core/v1"

	"github.com/railtopo/railtopo/internal/models"
)

type openShiftDetector struct{}

func (openShiftDetector) Type() models.Platform { return models.PlatformOpenShift }

func (openShiftDetector) matches(labels map[string]string) bool {
	_, ok := labels["node.openshift.io/os_id"]
	return ok
}

func (openShiftDetector) DetectRDMA(node *corev1.Node) (bool, string, string) {
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

func (openShiftDetector) DetectTopologyBlock(node *corev1.Node) (string, *models.TopologyDetection) {
	return detectZoneRackIPBlock(node)
}

func (openShiftDetector) ExtractPlatformInfo(node *corev1.Node) PlatformInfo {
	return PlatformInfo{}
}
