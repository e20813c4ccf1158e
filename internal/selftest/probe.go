package selftest

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"

	"github.com/railtopo/railtopo/internal/hcaprobe"
)

// defaultProbeImage is the separate RDMA-probing binary's image. That
// binary is an external interface; this package only consumes its JSON
// log output.
const defaultProbeImage = "ghcr.io/railtopo/hca-probe:latest"

const probeTimeout = 60 * time.Second
const probePollInterval = 2 * time.Second

// createdLabelKey mirrors internal/workload's marker label so probe pods
// are identifiable alongside the main test's resources.
const createdLabelKey = "railtopo.io/self-test"

func probePodName(testID, role string) string {
	return fmt.Sprintf("railtopo-probe-%s-%s", role, testID)
}

// probeDeployment tracks one node's HCA-probe pod.
type probeDeployment struct {
	role string
	node string
	pod  string
}

// runHCAProbes deploys one HCA-probe pod per node in nodesByRole, waits for
// each to reach a terminal phase, reads back its JSON log output, and
// returns the cross-node aggregate plus any warnings encountered along the
// way. Probe pods are always cleaned up before returning.
func runHCAProbes(ctx context.Context, client kubernetes.Interface, namespace, testID, image string, nodesByRole map[string]string) (hcaprobe.Aggregate, []string) {
	if image == "" {
		image = defaultProbeImage
	}

	var deployments []probeDeployment
	var warnings []string

	for role, nodeName := range nodesByRole {
		podName := probePodName(testID, role)
		pod := buildProbePod(podName, nodeName, image, testID)
		if _, err := client.CoreV1().Pods(namespace).Create(ctx, pod, metav1.CreateOptions{}); err != nil {
			warnings = append(warnings, fmt.Sprintf("deploy hca probe on %s: %v", nodeName, err))
			continue
		}
		deployments = append(deployments, probeDeployment{role: role, node: nodeName, pod: podName})
	}

	defer cleanupProbePods(context.Background(), client, namespace, deployments)

	succeeded := waitForProbePods(ctx, client, namespace, deployments, &warnings)

	var reports []*hcaprobe.Report
	for _, d := range deployments {
		if !succeeded[d.pod] {
			continue
		}
		raw, err := readProbeLogs(ctx, client, namespace, d.pod)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("read hca probe logs for %s: %v", d.pod, err))
			continue
		}
		report, err := hcaprobe.Parse(raw)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("parse hca probe output for %s: %v", d.pod, err))
			continue
		}
		reports = append(reports, report)
	}

	merged := &hcaprobe.Report{}
	for _, r := range reports {
		merged.Namespaces = append(merged.Namespaces, r.Namespaces...)
	}
	return merged.Aggregate(), warnings
}

// waitForProbePods polls each deployment's pod phase until it reaches
// Succeeded/Failed or probeTimeout elapses, appending a warning for every
// pod that fails or times out.
func waitForProbePods(ctx context.Context, client kubernetes.Interface, namespace string, deployments []probeDeployment, warnings *[]string) map[string]bool {
	succeeded := map[string]bool{}
	pending := append([]probeDeployment{}, deployments...)
	deadline := time.Now().Add(probeTimeout)

	for len(pending) > 0 && time.Now().Before(deadline) {
		var still []probeDeployment
		for _, d := range pending {
			pod, err := client.CoreV1().Pods(namespace).Get(ctx, d.pod, metav1.GetOptions{})
			if err != nil {
				still = append(still, d)
				continue
			}
			switch pod.Status.Phase {
			case corev1.PodSucceeded:
				succeeded[d.pod] = true
			case corev1.PodFailed:
				*warnings = append(*warnings, fmt.Sprintf("hca probe pod %s failed on node %s", d.pod, d.node))
			default:
				still = append(still, d)
			}
		}
		pending = still
		if len(pending) > 0 {
			time.Sleep(probePollInterval)
		}
	}
	for _, d := range pending {
		*warnings = append(*warnings, fmt.Sprintf("hca probe pod %s timed out on node %s", d.pod, d.node))
	}
	return succeeded
}

// readProbeLogs reads the full (non-following) log output of a completed
// probe pod.
func readProbeLogs(ctx context.Context, client kubernetes.Interface, namespace, podName string) (string, error) {
	req := client.CoreV1().Pods(namespace).GetLogs(podName, &corev1.PodLogOptions{})
	stream, err := req.Stream(ctx)
	if err != nil {
		return "", err
	}
	defer stream.Close()

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, stream); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// cleanupProbePods deletes every deployed probe pod, ignoring not-found
// errors, independent of the main test's --no-cleanup setting: these pods
// are pre-flight infrastructure, not part of the recorded test result.
func cleanupProbePods(ctx context.Context, client kubernetes.Interface, namespace string, deployments []probeDeployment) {
	for _, d := range deployments {
		_ = client.CoreV1().Pods(namespace).Delete(ctx, d.pod, metav1.DeleteOptions{})
	}
}

// buildProbePod constructs the host-network, host-PID probe pod spec that
// runs the external HCA-probe binary on one node. The probe binary's own
// internals are out of scope here; only the pod shape needed to run it and
// read its output back is reproduced.
func buildProbePod(podName, nodeName, image, testID string) *corev1.Pod {
	privileged := true
	return &corev1.Pod{
		TypeMeta: metav1.TypeMeta{Kind: "Pod", APIVersion: "v1"},
		ObjectMeta: metav1.ObjectMeta{
			Name: podName,
			Labels: map[string]string{
				createdLabelKey: "true",
				"test-id":       testID,
				"app":           "hca-probe",
			},
		},
		Spec: corev1.PodSpec{
			HostNetwork:   true,
			HostPID:       true,
			RestartPolicy: corev1.RestartPolicyNever,
			NodeName:      nodeName,
			Containers: []corev1.Container{
				{
					Name:    "hca-probe",
					Image:   image,
					Command: []string{"/usr/local/bin/hca-probe"},
					Args:    []string{"--format", "json"},
					SecurityContext: &corev1.SecurityContext{
						Privileged: &privileged,
					},
				},
			},
		},
	}
}
