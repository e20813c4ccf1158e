package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/types"
	corev1client "k8s.io/client-go/kubernetes/typed/core/v1"

	"github.com/railtopo/railtopo/internal/kube"
	"sigs.k8s.io/yaml"
)

// topologyFile is the shape of --file for "railtopo topology apply": a
// single topology label key plus one value per node, the way
// railtopo would seed topology keys for RDMA locality on a cluster that
// doesn't yet carry them natively.
type topologyFile struct {
	LabelKey string            `json:"labelKey"`
	Nodes    map[string]string `json:"nodes"`
}

func runTopology(args []string) error {
	if len(args) == 0 || args[0] != "apply" {
		return fmt.Errorf(`usage: railtopo topology apply --file=<path> [flags]`)
	}

	fs := flag.NewFlagSet("topology apply", flag.ExitOnError)
	kubeconfig := fs.String("kubeconfig", "", "path to kubeconfig (defaults to in-cluster config or standard resolution)")
	filePath := fs.String("file", "", "path to a YAML/JSON topology file (labelKey + node->value map)")
	timeout := fs.Duration("timeout", 30*time.Second, "API call timeout")
	if err := fs.Parse(args[1:]); err != nil {
		return err
	}
	if *filePath == "" {
		return fmt.Errorf("--file is required")
	}

	raw, err := os.ReadFile(*filePath)
	if err != nil {
		return fmt.Errorf("read topology file: %w", err)
	}

	var topo topologyFile
	if err := yaml.Unmarshal(raw, &topo); err != nil {
		return fmt.Errorf("parse topology file: %w", err)
	}
	if strings.TrimSpace(topo.LabelKey) == "" {
		return fmt.Errorf("topology file: labelKey is required")
	}

	client, err := kube.NewClient(*kubeconfig)
	if err != nil {
		return fmt.Errorf("build kube client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	nodeNames := make([]string, 0, len(topo.Nodes))
	for name := range topo.Nodes {
		nodeNames = append(nodeNames, name)
	}
	sort.Strings(nodeNames)

	var patched int
	var errs []string
	for _, name := range nodeNames {
		value := strings.TrimSpace(topo.Nodes[name])
		if value == "" {
			errs = append(errs, fmt.Sprintf("%s: empty value for %q", name, topo.LabelKey))
			continue
		}
		if err := patchNodeLabel(ctx, client.CoreV1().Nodes(), name, topo.LabelKey, value); err != nil {
			errs = append(errs, err.Error())
			continue
		}
		patched++
	}

	fmt.Fprintf(os.Stdout, "patched %d/%d nodes with label %q\n", patched, len(nodeNames), topo.LabelKey)
	for _, e := range errs {
		fmt.Fprintln(os.Stderr, e)
	}
	if len(errs) > 0 {
		return fmt.Errorf("%d node(s) failed to patch", len(errs))
	}
	return nil
}

func patchNodeLabel(ctx context.Context, nodes corev1client.NodeInterface, name, key, value string) error {
	payload := map[string]interface{}{"metadata": map[string]interface{}{"labels": map[string]string{key: value}}}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("%s: marshal patch: %w", name, err)
	}
	if _, err := nodes.Patch(ctx, name, types.MergePatchType, data, metav1.PatchOptions{}); err != nil {
		return fmt.Errorf("%s: patch node labels: %w", name, err)
	}
	return nil
}
