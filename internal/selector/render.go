package selector

import (
	"encoding/json"
	"fmt"
	"strings"

	"sigs.k8s.io/yaml"

	"github.com/railtopo/railtopo/internal/models"
)

// RenderJSON marshals a NodeSelection the same way the rest of this project
// renders API-facing structures: pretty-printed, two-space indent.
func RenderJSON(sel *models.NodeSelection) (string, error) {
	data, err := json.MarshalIndent(sel, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal node selection: %w", err)
	}
	return string(data), nil
}

// RenderShell produces `export VAR=value` lines for consumption by shell
// scripts driving a self-test run.
func RenderShell(sel *models.NodeSelection) string {
	var b strings.Builder

	names := make([]string, len(sel.Nodes))
	for i, n := range sel.Nodes {
		names[i] = n.Name
	}

	fmt.Fprintf(&b, "export RAILTOPO_NODES=%q\n", strings.Join(names, ","))
	fmt.Fprintf(&b, "export RAILTOPO_NUM_NODES=%d\n", sel.Summary.TotalNodes)
	fmt.Fprintf(&b, "export RAILTOPO_TOTAL_GPUS=%d\n", sel.Summary.TotalGPUs)
	fmt.Fprintf(&b, "export RAILTOPO_GPUS_PER_NODE=%d\n", sel.Summary.GPUsPerNode)
	fmt.Fprintf(&b, "export RAILTOPO_WORLD_SIZE=%d\n", sel.Summary.WorldSize)
	fmt.Fprintf(&b, "export RAILTOPO_RDMA_TYPE=%q\n", sel.RDMAType)
	fmt.Fprintf(&b, "export RAILTOPO_PLATFORM=%q\n", string(sel.Platform))

	if len(sel.Nodes) > 0 && sel.Nodes[0].TopologyBlock != "" {
		fmt.Fprintf(&b, "export RAILTOPO_TOPOLOGY_BLOCK=%q\n", sel.Nodes[0].TopologyBlock)
	}

	fmt.Fprintf(&b, "export RAILTOPO_ALL_SAME_BLOCK=%t\n", sel.Topology.AllSameBlock)

	for i, n := range sel.Nodes {
		fmt.Fprintf(&b, "export RAILTOPO_NODE_%d=%q\n", i, n.Name)
	}

	return b.String()
}

// helmValues is the shape RenderYAML marshals: a thin, template-friendly
// view of a NodeSelection for a downstream Helm values file.
type helmValues struct {
	Topology helmTopology `json:"topology"`
}

type helmTopology struct {
	Nodes         []helmNode              `json:"nodes"`
	Summary       models.SelectionSummary `json:"summary"`
	RDMAType      string                  `json:"rdmaType,omitempty"`
	Platform      models.Platform         `json:"platform"`
	AllSameBlock  bool                    `json:"allSameBlock"`
	Blocks        map[string]int          `json:"blocks,omitempty"`
	Reason        string                  `json:"reason,omitempty"`
	TopologyBlock string                  `json:"topologyBlock,omitempty"`
}

type helmNode struct {
	Name          string `json:"name"`
	GPUs          int    `json:"gpus"`
	Rank          int    `json:"rank"`
	TopologyBlock string `json:"topologyBlock,omitempty"`
}

// RenderYAML marshals a NodeSelection into a downstream templating
// consumer's values file, via the same sigs.k8s.io/yaml round-trip used
// elsewhere in this project for config rendering.
func RenderYAML(sel *models.NodeSelection) (string, error) {
	nodes := make([]helmNode, len(sel.Nodes))
	for i, n := range sel.Nodes {
		nodes[i] = helmNode{Name: n.Name, GPUs: n.GPUCount, Rank: n.Rank, TopologyBlock: n.TopologyBlock}
	}

	topologyBlock := ""
	if len(sel.Nodes) > 0 {
		topologyBlock = sel.Nodes[0].TopologyBlock
	}

	values := helmValues{Topology: helmTopology{
		Nodes:         nodes,
		Summary:       sel.Summary,
		RDMAType:      sel.RDMAType,
		Platform:      sel.Platform,
		AllSameBlock:  sel.Topology.AllSameBlock,
		Blocks:        sel.Topology.Blocks,
		Reason:        sel.Topology.Reason,
		TopologyBlock: topologyBlock,
	}}

	data, err := yaml.Marshal(values)
	if err != nil {
		return "", fmt.Errorf("marshal node selection to yaml: %w", err)
	}
	return string(data), nil
}
