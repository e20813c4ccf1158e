// Package platform implements the Platform Classifier (L1) and the
// per-variant Platform Detectors (L2): turning a raw *corev1.Node into
// RDMA capability, topology block, and platform-specific payload fields.
package platform

import (
	corev1 "k8s.io/api/core/v1"

	"github.com/railtopo/railtopo/internal/models"
)

// Detector is the capability set every platform variant exposes. It is a
// pure value: no I/O beyond reading the already-fetched node object.
type Detector interface {
	Type() models.Platform
	matches(labels map[string]string) bool
	DetectRDMA(node *corev1.Node) (capable bool, rdmaType, rdmaResource string)
	DetectTopologyBlock(node *corev1.Node) (block string, detection *models.TopologyDetection)
	ExtractPlatformInfo(node *corev1.Node) PlatformInfo
}

// PlatformInfo is the variant-specific payload extracted by a Detector.
// Only the fields relevant to the detected platform are populated.
type PlatformInfo struct {
	CoreWeave *models.CoreWeavePayload
	GKE       *models.GKEPayload
}

// matches, in fixed precedence order: OpenShift, CoreWeave, GKE, Generic.
// Ordering matters — see Classify.
var detectors = []Detector{
	openShiftDetector{},
	coreWeaveDetector{},
	gkeDetector{},
	genericDetector{},
}

// Classify inspects a node's label set and returns the Detector for the
// platform it belongs to. Matching order is fixed: OpenShift (label
// `node.openshift.io/os_id` present) takes precedence over CoreWeave (any
// `ib.coreweave.cloud/` label) over GKE (any `cloud.google.com/gke-`
// label), with Generic as the unconditional fallback. OpenShift clusters
// can carry otherwise-generic Kubernetes labels, and a CoreWeave-prefixed
// label is only meaningful on CoreWeave itself, so classification must
// check OpenShift first.
func Classify(labels map[string]string) Detector {
	for _, d := range detectors {
		if d.matches(labels) {
			return d
		}
	}
	return genericDetector{}
}

func nodeLabels(node *corev1.Node) map[string]string {
	if node.Labels == nil {
		return map[string]string{}
	}
	return node.Labels
}

func nodeAnnotations(node *corev1.Node) map[string]string {
	if node.Annotations == nil {
		return map[string]string{}
	}
	return node.Annotations
}
