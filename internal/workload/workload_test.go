package workload

import (
	"strings"
	"testing"

	batchv1 "k8s.io/api/batch/v1"
	corev1 "k8s.io/api/core/v1"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestByNameFindsCatalogEntry(t *testing.T) {
	d, ok := ByName("nixl-transfer")
	require.True(t, ok)
	assert.Equal(t, "nixl-transfer", d.Name)
	assert.NotEmpty(t, d.Script)

	_, ok = ByName("does-not-exist")
	assert.False(t, ok)
}

func TestAllReturnsEveryDescriptor(t *testing.T) {
	all := All()
	assert.Len(t, all, len(catalog))
}

func TestBuildRDMAInfoInfiniBand(t *testing.T) {
	info := BuildRDMAInfo("rdma/ib: 1", RDMAConfig{RequiresGPU: true})
	assert.Equal(t, "rdma/ib", info.RDMAResourceType)
	assert.Equal(t, "0", info.UCXGIDIndex)
	assert.Contains(t, info.UCXTransports, "gdr_copy")
	assert.Empty(t, info.SriovNetwork)
}

func TestBuildRDMAInfoRoCEUsesDetectedNetworkAndConservativeTLS(t *testing.T) {
	info := BuildRDMAInfo("rdma/roce_gdr: 1", RDMAConfig{
		DetectedSriovNetwork: "roce-rdma-net",
		RequiresGPU:          false,
	})
	assert.Equal(t, "rdma/roce_gdr", info.RDMAResourceType)
	assert.Equal(t, "roce-rdma-net", info.SriovNetwork)
	assert.Equal(t, "rc,tcp", info.UCXTransports)
	assert.NotContains(t, info.UCXTransports, "ud")
}

func TestBuildRDMAInfoRoCEOverrideTakesPrecedenceOverDetected(t *testing.T) {
	info := BuildRDMAInfo("rdma/roce_gdr: 1", RDMAConfig{
		SriovNetworkOverride: "operator-choice",
		DetectedSriovNetwork: "auto-detected",
	})
	assert.Equal(t, "operator-choice", info.SriovNetwork)
}

func TestBuildResourcesRequiresTestID(t *testing.T) {
	d, _ := ByName("nixl-transfer")
	_, err := BuildResources(d, RenderContext{})
	assert.Error(t, err)
}

func TestBuildResourcesProducesConfigMapServiceAndTwoJobs(t *testing.T) {
	d, _ := ByName("ib-write-bw")
	ctx := RenderContext{
		TestID:    "abcd1234",
		Namespace: "rdma-test",
		Image:     "",
		Server:    RenderNode{Name: "node-a", RDMADevice: "mlx5_0"},
		Client:    RenderNode{Name: "node-b", RDMADevice: "mlx5_1"},
		RDMA: RDMAInfo{
			RDMAResourceType: "rdma/ib",
			UCXTransports:    "rc,ud,dc,tcp",
			UCXGIDIndex:      "0",
		},
	}

	resources, err := BuildResources(d, ctx)
	require.NoError(t, err)
	require.Len(t, resources, 4)

	cm, ok := resources[0].(*corev1.ConfigMap)
	require.True(t, ok)
	assert.Equal(t, ScriptConfigMapName("abcd1234"), cm.Name)
	assert.Equal(t, d.Script, cm.Data["run.sh"])

	svc, ok := resources[1].(*corev1.Service)
	require.True(t, ok)
	assert.Equal(t, corev1.ClusterIPNone, svc.Spec.ClusterIP)

	serverJob, ok := resources[2].(*batchv1.Job)
	require.True(t, ok)
	assert.Equal(t, "node-a", serverJob.Spec.Template.Spec.NodeName)
	assert.Equal(t, JobName("abcd1234", "server"), serverJob.Name)

	clientJob, ok := resources[3].(*batchv1.Job)
	require.True(t, ok)
	assert.Equal(t, "node-b", clientJob.Spec.Template.Spec.NodeName)

	var peerHostEnv string
	for _, e := range clientJob.Spec.Template.Spec.Containers[0].Env {
		if e.Name == "PEER_HOST" {
			peerHostEnv = e.Value
		}
	}
	assert.Equal(t, ServiceName("abcd1234"), peerHostEnv)
}

func TestBuildResourcesAppliesGPURequest(t *testing.T) {
	d, _ := ByName("deepep-internode")
	ctx := RenderContext{
		TestID:     "gpu12345",
		Namespace:  "default",
		Server:     RenderNode{Name: "node-a"},
		Client:     RenderNode{Name: "node-b"},
		GPURequest: 4,
	}
	resources, err := BuildResources(d, ctx)
	require.NoError(t, err)

	serverJob := resources[2].(*batchv1.Job)
	qty := serverJob.Spec.Template.Spec.Containers[0].Resources.Limits["nvidia.com/gpu"]
	assert.Equal(t, "4", qty.String())
}

func TestBuildResourcesAttachesSriovNetworkAnnotation(t *testing.T) {
	d, _ := ByName("ib-write-bw")
	ctx := RenderContext{
		TestID:    "roce0001",
		Namespace: "default",
		Server:    RenderNode{Name: "node-a"},
		Client:    RenderNode{Name: "node-b"},
		RDMA: RDMAInfo{
			RDMAResourceType: "rdma/roce_gdr",
			SriovNetwork:     "roce-p2",
		},
	}
	resources, err := BuildResources(d, ctx)
	require.NoError(t, err)

	serverJob := resources[2].(*batchv1.Job)
	assert.Equal(t, "roce-p2", serverJob.Spec.Template.Annotations["k8s.v1.cni.cncf.io/networks"])
}

func TestRenderYAMLStreamJoinsDocumentsWithSeparator(t *testing.T) {
	d, _ := ByName("ib-write-bw")
	ctx := RenderContext{
		TestID:    "yaml0001",
		Namespace: "default",
		Server:    RenderNode{Name: "node-a"},
		Client:    RenderNode{Name: "node-b"},
	}
	resources, err := BuildResources(d, ctx)
	require.NoError(t, err)

	out, err := RenderYAMLStream(resources)
	require.NoError(t, err)
	assert.Equal(t, 3, strings.Count(out, "\n---\n"))
	assert.Contains(t, out, "kind: ConfigMap")
	assert.Contains(t, out, "kind: Job")
}
