package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/railtopo/railtopo/internal/cluster"
	"github.com/railtopo/railtopo/internal/kube"
	"github.com/railtopo/railtopo/internal/models"
	"github.com/railtopo/railtopo/internal/selector"
)

func runSelect(args []string) error {
	fs := flag.NewFlagSet("select", flag.ExitOnError)
	kubeconfig := fs.String("kubeconfig", "", "path to kubeconfig (defaults to in-cluster config or standard resolution)")
	topologyRule := fs.String("topology-rule", "", "custom topology rule (regex:<pattern> or a CEL expression)")
	numNodes := fs.Int("num-nodes", 0, "number of nodes to select (mutually resolved with --total-gpus)")
	totalGPUs := fs.Int("total-gpus", 0, "total GPUs required across the selection")
	gpusPerNode := fs.Int("gpus-per-node", 0, "GPUs required per selected node")
	minGPUsPerNode := fs.Int("min-gpus-per-node", 0, "minimum GPUs a candidate node must have")
	ibOnly := fs.Bool("ib-only", false, "restrict candidates to InfiniBand-backed RDMA")
	preferSameBlock := fs.Bool("prefer-same-block", true, "prefer nodes within the same topology block")
	format := fs.String("output", "json", "output format: json, shell, or yaml")
	timeout := fs.Duration("timeout", 30*time.Second, "API call timeout")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := kube.NewClient(*kubeconfig)
	if err != nil {
		return fmt.Errorf("build kube client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	report, err := buildReport(ctx, client, cluster.DetailBasic, *topologyRule, "")
	if err != nil {
		return err
	}

	params := models.NodeSelectionParams{
		IBOnly:          *ibOnly,
		PreferSameBlock: *preferSameBlock,
	}
	if *numNodes > 0 {
		params.NumNodes = numNodes
	}
	if *totalGPUs > 0 {
		params.TotalGPUs = totalGPUs
	}
	if *gpusPerNode > 0 {
		params.GPUsPerNode = gpusPerNode
	}
	if *minGPUsPerNode > 0 {
		params.MinGPUsPerNode = minGPUsPerNode
	}

	sel, err := selector.SelectNodes(report, params)
	if err != nil {
		return fmt.Errorf("select nodes: %w", err)
	}

	var out string
	switch *format {
	case "json":
		out, err = selector.RenderJSON(sel)
	case "shell":
		out = selector.RenderShell(sel)
	case "yaml":
		out, err = selector.RenderYAML(sel)
	default:
		return fmt.Errorf("unknown --output format %q (want json, shell, or yaml)", *format)
	}
	if err != nil {
		return fmt.Errorf("render selection: %w", err)
	}

	fmt.Fprintln(os.Stdout, out)
	return nil
}
