package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/railtopo/railtopo/internal/cluster"
	"github.com/railtopo/railtopo/internal/kube"
)

func runAnalyze(args []string) error {
	fs := flag.NewFlagSet("analyze", flag.ExitOnError)
	kubeconfig := fs.String("kubeconfig", "", "path to kubeconfig (defaults to in-cluster config or standard resolution)")
	topologyRule := fs.String("topology-rule", "", "custom topology rule (regex:<pattern> or a CEL expression)")
	imageToCheck := fs.String("check-image", "", "container image to check for cache presence across nodes")
	detailed := fs.Bool("detailed", false, "retain full node label sets in the report")
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

	detail := cluster.DetailBasic
	if *detailed {
		detail = cluster.DetailDetailed
	}

	report, err := buildReport(ctx, client, detail, *topologyRule, *imageToCheck)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}
