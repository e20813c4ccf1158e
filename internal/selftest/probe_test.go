package selftest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes/fake"
)

func TestProbePodNameIncludesRoleAndTestID(t *testing.T) {
	assert.Equal(t, "railtopo-probe-server-abcd1234", probePodName("abcd1234", "server"))
	assert.Equal(t, "railtopo-probe-client-abcd1234", probePodName("abcd1234", "client"))
}

func TestBuildProbePodUsesHostNetworkAndPinsNode(t *testing.T) {
	pod := buildProbePod("railtopo-probe-server-abcd1234", "node-a", "quay.io/example/hca-probe:v1", "abcd1234")

	assert.True(t, pod.Spec.HostNetwork)
	assert.True(t, pod.Spec.HostPID)
	assert.Equal(t, "node-a", pod.Spec.NodeName)
	assert.Equal(t, corev1.RestartPolicyNever, pod.Spec.RestartPolicy)
	assert.Equal(t, "abcd1234", pod.Labels["test-id"])
	assert.Equal(t, "true", pod.Labels[createdLabelKey])

	require.Len(t, pod.Spec.Containers, 1)
	container := pod.Spec.Containers[0]
	assert.Equal(t, "quay.io/example/hca-probe:v1", container.Image)
	require.NotNil(t, container.SecurityContext)
	require.NotNil(t, container.SecurityContext.Privileged)
	assert.True(t, *container.SecurityContext.Privileged)
}

func TestBuildProbePodCarriesDefaultProbeImage(t *testing.T) {
	pod := buildProbePod("name", "node-a", defaultProbeImage, "id")
	assert.Equal(t, defaultProbeImage, pod.Spec.Containers[0].Image)
}

func newFakePodWithPhase(name string, phase corev1.PodPhase) *corev1.Pod {
	return &corev1.Pod{
		ObjectMeta: metav1.ObjectMeta{Name: name, Namespace: "default"},
		Status:     corev1.PodStatus{Phase: phase},
	}
}

func TestWaitForProbePodsClassifiesSucceededAndFailed(t *testing.T) {
	client := fake.NewSimpleClientset(
		newFakePodWithPhase("probe-server", corev1.PodSucceeded),
		newFakePodWithPhase("probe-client", corev1.PodFailed),
	)

	deployments := []probeDeployment{
		{role: "server", node: "node-a", pod: "probe-server"},
		{role: "client", node: "node-b", pod: "probe-client"},
	}

	var warnings []string
	succeeded := waitForProbePods(context.Background(), client, "default", deployments, &warnings)

	assert.True(t, succeeded["probe-server"])
	assert.False(t, succeeded["probe-client"])
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "probe-client")
	assert.Contains(t, warnings[0], "failed")
}

func TestCleanupProbePodsIgnoresNotFound(t *testing.T) {
	client := fake.NewSimpleClientset()
	deployments := []probeDeployment{{role: "server", node: "node-a", pod: "does-not-exist"}}

	assert.NotPanics(t, func() {
		cleanupProbePods(context.Background(), client, "default", deployments)
	})
}
