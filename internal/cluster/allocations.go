package cluster

import (
	corev1 "k8s.io/api/core/v1"

	"github.com/railtopo/railtopo/internal/models"
)

// schedulablePod reports whether a pod's resource requests should count
// toward a node's allocation: it must be assigned to a node and not yet
// terminal.
func schedulablePod(pod *corev1.Pod) bool {
	if pod.Spec.NodeName == "" {
		return false
	}
	return pod.Status.Phase == corev1.PodRunning || pod.Status.Phase == corev1.PodPending
}

// PopulateGPUAllocations sums `nvidia.com/gpu` requests across every
// container of every running-or-pending pod bound to a node, and records
// (allocatable, allocated) onto each matching NodeInfo.
func PopulateGPUAllocations(nodes []models.NodeInfo, pods []*corev1.Pod, rawNodes map[string]*corev1.Node) {
	perNode := map[string]int64{}
	for _, pod := range pods {
		if !schedulablePod(pod) {
			continue
		}
		for _, c := range pod.Spec.Containers {
			if q, ok := c.Resources.Requests["nvidia.com/gpu"]; ok {
				perNode[pod.Spec.NodeName] += q.Value()
			}
		}
	}

	for i := range nodes {
		allocated := int(perNode[nodes[i].Name])
		nodes[i].GPUAllocated = &allocated

		if raw, ok := rawNodes[nodes[i].Name]; ok {
			if q, ok := raw.Status.Allocatable["nvidia.com/gpu"]; ok {
				allocatable := int(q.Value())
				nodes[i].GPUAllocatable = &allocatable
			}
		}
	}
}

// PopulateResourceAllocations accumulates CPU and memory requests the same
// way PopulateGPUAllocations sums GPUs, using the lossy quantity arithmetic
// so each node's total is rendered in the dominant unit of its inputs.
func PopulateResourceAllocations(nodes []models.NodeInfo, pods []*corev1.Pod, rawNodes map[string]*corev1.Node) {
	perNodeCPU := map[string]string{}
	perNodeMemory := map[string]string{}

	for _, pod := range pods {
		if !schedulablePod(pod) {
			continue
		}
		name := pod.Spec.NodeName
		for _, c := range pod.Spec.Containers {
			if q, ok := c.Resources.Requests[corev1.ResourceCPU]; ok {
				perNodeCPU[name] = models.AddCPUQuantities(perNodeCPU[name], q.String())
			}
			if q, ok := c.Resources.Requests[corev1.ResourceMemory]; ok {
				perNodeMemory[name] = models.AddMemoryQuantities(perNodeMemory[name], q.String())
			}
		}
	}

	for i := range nodes {
		nodes[i].CPUAllocated = orZero(perNodeCPU[nodes[i].Name])
		nodes[i].MemoryAllocated = orZero(perNodeMemory[nodes[i].Name])

		if raw, ok := rawNodes[nodes[i].Name]; ok {
			if q, ok := raw.Status.Allocatable[corev1.ResourceCPU]; ok {
				nodes[i].CPUAllocatable = q.String()
			}
			if q, ok := raw.Status.Allocatable[corev1.ResourceMemory]; ok {
				nodes[i].MemoryAllocatable = q.String()
			}
		}
	}
}

func orZero(s string) string {
	if s == "" {
		return "0"
	}
	return s
}
