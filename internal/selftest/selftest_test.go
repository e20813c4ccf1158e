package selftest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/railtopo/railtopo/internal/models"
)

func TestConfigWithDefaultsFillsZeroValues(t *testing.T) {
	cfg := Config{}.withDefaults()
	assert.Equal(t, 5*time.Second, cfg.PollInterval)
	assert.Equal(t, 5*time.Second, cfg.AttachDelay)
	assert.Equal(t, 2*time.Second, cfg.DrainGrace)
}

func TestConfigWithDefaultsPreservesExplicitValues(t *testing.T) {
	cfg := Config{PollInterval: 1 * time.Second}.withDefaults()
	assert.Equal(t, 1*time.Second, cfg.PollInterval)
	assert.Equal(t, 5*time.Second, cfg.AttachDelay)
}

func TestRDMAInterfacesFromNodeNotCapableReturnsNil(t *testing.T) {
	node := &models.NodeInfo{RDMACapability: models.RDMANotCapable}
	assert.Nil(t, RDMAInterfacesFromNode(node))
}

func TestRDMAInterfacesFromNodeCoreWeaveUsesMellanoxNICs(t *testing.T) {
	node := &models.NodeInfo{
		RDMACapability: models.RDMACapable,
		Platform:       models.PlatformCoreWeave,
		CoreWeave: &models.CoreWeavePayload{
			IBSpeed: "400G",
			MellanoxNICs: []models.MellanoxNIC{
				{Interface: "mlx5_0"},
				{Interface: "mlx5_1"},
			},
		},
	}
	ifaces := RDMAInterfacesFromNode(node)
	assert.Len(t, ifaces, 2)
	assert.Equal(t, "mlx5_1", ifaces[1].Name)
	assert.Equal(t, "400G", ifaces[0].Speed)
}

func TestRDMAInterfacesFromNodeCoreWeaveFallsBackWithoutNICs(t *testing.T) {
	node := &models.NodeInfo{
		RDMACapability: models.RDMACapable,
		Platform:       models.PlatformCoreWeave,
		CoreWeave:      &models.CoreWeavePayload{IBSpeed: "400G"},
	}
	ifaces := RDMAInterfacesFromNode(node)
	assert.Equal(t, []models.RdmaInterface{{Name: "mlx5_0", Speed: "400G", Index: 0}}, ifaces)
}

func TestGkeDeviceNameExtractsDigitFromBirthName(t *testing.T) {
	assert.Equal(t, "mlx5_2", gkeDeviceName("gpu2rdma0"))
	assert.Equal(t, "mlx5_0", gkeDeviceName("eth0"))
}

func TestOpenShiftInterfacesDetectsMellanoxFeatureLabel(t *testing.T) {
	node := &models.NodeInfo{
		RDMACapability: models.RDMACapable,
		Platform:       models.PlatformOpenShift,
		Labels: map[string]string{
			"feature.node.kubernetes.io/pci-15b3.present": "true",
		},
	}
	ifaces := RDMAInterfacesFromNode(node)
	assert.Equal(t, "mlx5_0", ifaces[0].Name)
}

func TestSelectSriovNetworkPrefersNameMatch(t *testing.T) {
	networks := []sriovNetwork{
		{Name: "generic-net", ResourceName: "openshift.io/generic"},
		{Name: "rdma-net", ResourceName: "openshift.io/mlnx_rdma"},
	}
	name, ok := selectSriovNetwork(networks)
	assert.True(t, ok)
	assert.Equal(t, "rdma-net", name)
}

func TestSelectSriovNetworkFallsBackToResourceNameMatch(t *testing.T) {
	networks := []sriovNetwork{
		{Name: "net-a", ResourceName: "openshift.io/generic"},
		{Name: "net-b", ResourceName: "openshift.io/mlnx_roce"},
	}
	name, ok := selectSriovNetwork(networks)
	assert.True(t, ok)
	assert.Equal(t, "net-b", name)
}

func TestSelectSriovNetworkFallsBackToFirstAvailable(t *testing.T) {
	networks := []sriovNetwork{
		{Name: "net-a", ResourceName: "openshift.io/generic"},
		{Name: "net-b", ResourceName: "openshift.io/other"},
	}
	name, ok := selectSriovNetwork(networks)
	assert.True(t, ok)
	assert.Equal(t, "net-a", name)
}

func TestSelectSriovNetworkEmptyReturnsNotFound(t *testing.T) {
	_, ok := selectSriovNetwork(nil)
	assert.False(t, ok)
}

func TestErrNoSriovNetworkNamesNamespace(t *testing.T) {
	err := errNoSriovNetwork("rdma-tests")
	assert.ErrorContains(t, err, "rdma-tests")
	assert.ErrorContains(t, err, "--sriov-network")
}
