package workload

import "strings"

// RDMAInfo is the UCX/SR-IOV configuration derived from a node pair's
// detected RDMA resource, handed to BuildResources so the rendered pods
// request the right transports and (on RoCE/OpenShift) the right SR-IOV
// network attachment.
type RDMAInfo struct {
	RDMAResourceType string
	SriovNetwork     string
	UCXTransports    string
	UCXGIDIndex      string
}

// RDMAConfig carries the pieces of self-test configuration BuildRDMAInfo
// needs: an operator-specified SR-IOV network override, an auto-detected
// fallback network, a GID index override, and whether the workload requires
// a GPU (which adds the CUDA UCX transports).
type RDMAConfig struct {
	SriovNetworkOverride string
	DetectedSriovNetwork string
	UCXGIDIndexOverride  string
	RequiresGPU          bool
}

// BuildRDMAInfo extracts the resource type (e.g. "rdma/roce_gdr") from the
// raw "rdma/ib: 1"-style resource string, then picks a conservative
// RoCE/SR-IOV transport list or the fuller InfiniBand list.
func BuildRDMAInfo(rdmaResource string, cfg RDMAConfig) RDMAInfo {
	resourceType := "rdma/ib"
	if rdmaResource != "" {
		if parsed := strings.TrimSpace(strings.SplitN(rdmaResource, ":", 2)[0]); parsed != "" {
			resourceType = parsed
		}
	}

	if strings.Contains(resourceType, "roce") {
		network := cfg.SriovNetworkOverride
		if network == "" {
			network = cfg.DetectedSriovNetwork
		}
		if network == "" {
			network = "roce-p2"
		}

		tls := "rc,tcp"
		if cfg.RequiresGPU {
			tls = "rc,tcp,cuda_copy,cuda_ipc"
		}

		return RDMAInfo{
			RDMAResourceType: resourceType,
			SriovNetwork:     network,
			UCXTransports:    tls,
			UCXGIDIndex:      cfg.UCXGIDIndexOverride,
		}
	}

	tls := "rc,ud,dc,tcp"
	if cfg.RequiresGPU {
		tls = "rc,ud,dc,tcp,cuda_copy,cuda_ipc,gdr_copy"
	}

	gidIndex := cfg.UCXGIDIndexOverride
	if gidIndex == "" {
		gidIndex = "0"
	}

	return RDMAInfo{
		RDMAResourceType: resourceType,
		UCXTransports:    tls,
		UCXGIDIndex:      gidIndex,
	}
}
