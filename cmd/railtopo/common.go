package main

import (
	"context"
	"fmt"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"

	"github.com/railtopo/railtopo/internal/cluster"
	"github.com/railtopo/railtopo/internal/models"
)

// listNodesAndPods fetches the live cluster state BuildReport needs.
func listNodesAndPods(ctx context.Context, client kubernetes.Interface) ([]*corev1.Node, []*corev1.Pod, error) {
	nodeList, err := client.CoreV1().Nodes().List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, nil, fmt.Errorf("list nodes: %w", err)
	}
	podList, err := client.CoreV1().Pods("").List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, nil, fmt.Errorf("list pods: %w", err)
	}

	nodes := make([]*corev1.Node, len(nodeList.Items))
	for i := range nodeList.Items {
		nodes[i] = &nodeList.Items[i]
	}
	pods := make([]*corev1.Pod, len(podList.Items))
	for i := range podList.Items {
		pods[i] = &podList.Items[i]
	}
	return nodes, pods, nil
}

// buildReport runs the Cluster Analyzer over the live cluster, optionally
// checking image-cache presence and evaluating a custom topology rule.
func buildReport(ctx context.Context, client kubernetes.Interface, detail cluster.DetailLevel, topologyRule, imageToCheck string) (*models.ClusterReport, error) {
	nodes, pods, err := listNodesAndPods(ctx, client)
	if err != nil {
		return nil, err
	}

	return cluster.BuildReport(cluster.BuildReportInput{
		Nodes:        nodes,
		Pods:         pods,
		Detail:       detail,
		TopologyRule: topologyRule,
		ImageToCheck: imageToCheck,
	}), nil
}
