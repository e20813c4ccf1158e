// Package selector implements the Node Selector (M3): resolving user-facing
// selection parameters into a concrete node count/GPU split, filtering
// RDMA-capable candidates, and grouping survivors by topology for locality.
package selector

import (
	"fmt"

	"github.com/railtopo/railtopo/internal/models"
)

// resolved is the internal (num_nodes, gpus_per_node) pair Resolve produces.
// numNodes == 0 signals optimize mode: let the selection pipeline pick the
// node/GPU split from totalGPUs.
type resolved struct {
	numNodes    int
	gpusPerNode *int
}

// resolveParams turns the user-facing triple (num_nodes, total_gpus,
// gpus_per_node) into a concrete selection target, covering every
// combination of which fields are set.
func resolveParams(p models.NodeSelectionParams) (resolved, error) {
	switch {
	case p.NumNodes != nil && p.TotalGPUs != nil:
		return resolved{}, fmt.Errorf("cannot specify both num-nodes and total-gpus")

	case p.NumNodes != nil && p.GPUsPerNode != nil:
		return resolved{numNodes: *p.NumNodes, gpusPerNode: p.GPUsPerNode}, nil

	case p.TotalGPUs != nil && p.GPUsPerNode != nil:
		total, g := *p.TotalGPUs, *p.GPUsPerNode
		if g == 0 || total%g != 0 {
			return resolved{}, fmt.Errorf("total-gpus (%d) not evenly divisible by gpus-per-node (%d)", total, g)
		}
		return resolved{numNodes: total / g, gpusPerNode: p.GPUsPerNode}, nil

	case p.NumNodes != nil:
		return resolved{numNodes: *p.NumNodes}, nil

	case p.TotalGPUs != nil:
		return resolved{numNodes: 0, gpusPerNode: p.TotalGPUs}, nil

	case p.GPUsPerNode != nil:
		return resolved{}, fmt.Errorf("gpus-per-node requires either num-nodes or total-gpus")

	default:
		return resolved{numNodes: 2}, nil
	}
}
