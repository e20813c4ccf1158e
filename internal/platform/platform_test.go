package platform

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/api/resource"

	"github.com/railtopo/railtopo/internal/models"
)

func TestClassifyPrecedenceOpenShiftBeatsCoreWeave(t *testing.T) {
	labels := map[string]string{
		"node.openshift.io/os_id":  "rhcos",
		"ib.coreweave.cloud/speed": "400G",
	}
	assert.Equal(t, models.PlatformOpenShift, Classify(labels).Type())
}

func TestClassifyPrecedenceCoreWeaveBeatsGKE(t *testing.T) {
	labels := map[string]string{
		"ib.coreweave.cloud/speed":      "400G",
		"cloud.google.com/gke-nodepool": "pool",
	}
	assert.Equal(t, models.PlatformCoreWeave, Classify(labels).Type())
}

func TestClassifyFallsBackToGeneric(t *testing.T) {
	assert.Equal(t, models.PlatformGeneric, Classify(map[string]string{}).Type())
}

func TestCoreWeaveSpeedZeroOverridesRDMA(t *testing.T) {
	node := &corev1.Node{Status: corev1.NodeStatus{
		Capacity: corev1.ResourceList{"rdma/roce_gdr": resource.MustParse("1")},
	}}
	node.Labels = map[string]string{"ib.coreweave.cloud/speed": "0G"}

	capable, rdmaType, _ := coreWeaveDetector{}.DetectRDMA(node)
	assert.False(t, capable)
	assert.Equal(t, "", rdmaType)
}

func TestCoreWeaveNonZeroSpeedIsCapable(t *testing.T) {
	node := &corev1.Node{Status: corev1.NodeStatus{
		Capacity: corev1.ResourceList{"rdma/ib": resource.MustParse("1")},
	}}
	node.Labels = map[string]string{"ib.coreweave.cloud/speed": "400G"}

	capable, rdmaType, resourceStr := coreWeaveDetector{}.DetectRDMA(node)
	assert.True(t, capable)
	assert.Equal(t, "InfiniBand", rdmaType)
	assert.Contains(t, resourceStr, "rdma/ib")
}

func TestGKETopologyBlockCascade(t *testing.T) {
	detector := gkeDetector{}

	blockNode := &corev1.Node{}
	blockNode.Labels = map[string]string{"cloud.google.com/gce-topology-block": "block-id-1234567890"}
	block, detection := detector.DetectTopologyBlock(blockNode)
	require.NotNil(t, detection)
	assert.Equal(t, "block-block-id", block)
	assert.Equal(t, models.ConfidenceHigh, detection.Confidence)

	subblockNode := &corev1.Node{}
	subblockNode.Labels = map[string]string{"cloud.google.com/gce-topology-subblock": "sub-id-1234567"}
	block, detection = detector.DetectTopologyBlock(subblockNode)
	require.NotNil(t, detection)
	assert.Equal(t, "subblock-sub-id-1", block)
	assert.Equal(t, models.ConfidenceMedium, detection.Confidence)

	fabricNode := &corev1.Node{}
	fabricNode.Annotations = map[string]string{
		"networking.gke.io/networks": `[{"name":"rdma-0","cidrs":["10.0.1.0/24"]}]`,
	}
	block, detection = detector.DetectTopologyBlock(fabricNode)
	require.NotNil(t, detection)
	assert.Equal(t, "fabric-10.0.1", block)

	zoneNodepoolNode := &corev1.Node{}
	zoneNodepoolNode.Labels = map[string]string{
		"topology.gke.io/zone":          "us-central1-a",
		"cloud.google.com/gke-nodepool": "gpu-pool",
	}
	block, detection = detector.DetectTopologyBlock(zoneNodepoolNode)
	require.NotNil(t, detection)
	assert.Equal(t, "us-central1-a-gpu-pool", block)
	assert.Equal(t, models.TopologyZone, detection.Type)

	zoneOnlyNode := &corev1.Node{}
	zoneOnlyNode.Labels = map[string]string{"topology.gke.io/zone": "us-central1-a"}
	block, detection = detector.DetectTopologyBlock(zoneOnlyNode)
	require.NotNil(t, detection)
	assert.Equal(t, "gke-zone-us-central1-a", block)

	bareNode := &corev1.Node{}
	block, detection = detector.DetectTopologyBlock(bareNode)
	assert.Equal(t, "", block)
	assert.Nil(t, detection)
}

func TestGKERDMADetectionFallsBackToGvnicLabel(t *testing.T) {
	node := &corev1.Node{}
	node.Labels = map[string]string{"cloud.google.com/gke-gvnic": "true"}

	capable, rdmaType, _ := gkeDetector{}.DetectRDMA(node)
	assert.True(t, capable)
	assert.Equal(t, "gVNIC (Google Virtual NIC)", rdmaType)
}

func TestOpenShiftIPTopologyFallback(t *testing.T) {
	node := &corev1.Node{
		Status: corev1.NodeStatus{
			Addresses: []corev1.NodeAddress{
				{Type: corev1.NodeInternalIP, Address: "10.1.2.43"},
			},
		},
	}
	block, detection := openShiftDetector{}.DetectTopologyBlock(node)
	require.NotNil(t, detection)
	assert.Equal(t, "ip-range-10.1.2.40-49", block)
	assert.Equal(t, models.TopologyIPRange, detection.Type)
}

func TestGenericRackFallback(t *testing.T) {
	node := &corev1.Node{}
	node.Labels = map[string]string{"topology.kubernetes.io/rack": "r12"}
	block, detection := genericDetector{}.DetectTopologyBlock(node)
	require.NotNil(t, detection)
	assert.Equal(t, "rack-r12", block)
	assert.Equal(t, models.TopologyRack, detection.Type)
}

func TestCapableNodesAlwaysCarryTypeAndResource(t *testing.T) {
	node := &corev1.Node{}
	node.Labels = map[string]string{"feature.node.kubernetes.io/rdma.capable": "true"}

	for _, d := range []Detector{openShiftDetector{}, genericDetector{}} {
		capable, rdmaType, rdmaResource := d.DetectRDMA(node)
		assert.True(t, capable)
		assert.NotEmpty(t, rdmaType)
		assert.NotEmpty(t, rdmaResource)
	}
}
