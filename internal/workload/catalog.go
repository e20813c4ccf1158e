// Package workload implements the Workload Renderer (H1): a catalog of
// named RDMA/GPU probe workloads and the typed ConfigMap/Service/Job objects
// that run one of them across a selected node pair.
package workload

import "time"

// Descriptor is one runnable probe workload. RequiredGPUsPerNode of 0 means
// the workload runs without a GPU request.
type Descriptor struct {
	Name                string
	Description         string
	ExpectedDuration    time.Duration
	RequiredGPUsPerNode int
	DefaultImage        string
	SuccessCriteria     []string
	Script              string
}

const defaultProbeImage = "quay.io/wseaton/netdebug:latest"

var catalog = []Descriptor{
	{
		Name:             "nixl-transfer",
		Description:      "Two-node NIXL data transfer test using UCX backend",
		ExpectedDuration: 180 * time.Second,
		DefaultImage:     defaultProbeImage,
		SuccessCriteria: []string{
			"NIXL agents initialized successfully",
			"Memory registration completed",
			"Agent metadata exchanged",
			"Data transfer completed",
		},
		Script: nixlTransferScript,
	},
	{
		Name:             "deepgemm-minimal",
		Description:      "DeepGEMM library availability test on two nodes",
		ExpectedDuration: 120 * time.Second,
		DefaultImage:     defaultProbeImage,
		SuccessCriteria: []string{
			"DeepGEMM library imported successfully",
			"CUDA available and working",
			"FP8 tensor operations supported",
		},
		Script: deepgemmMinimalScript,
	},
	{
		Name:             "deepgemm-simple",
		Description:      "DeepGEMM simple FP8 GEMM and M-grouped tests on two nodes",
		ExpectedDuration: 180 * time.Second,
		DefaultImage:     defaultProbeImage,
		SuccessCriteria: []string{
			"Library import successful",
			"Basic FP8 GEMM test passed",
			"M-grouped FP8 GEMM test passed",
		},
		Script: deepgemmSimpleScript,
	},
	{
		Name:             "pplx-kernels",
		Description:      "pplx-kernels all-to-all communication benchmark on two nodes",
		ExpectedDuration: 300 * time.Second,
		DefaultImage:     defaultProbeImage,
		SuccessCriteria: []string{
			"Repository cloned successfully",
			"Dependencies installed",
			"All-to-all benchmark completed",
		},
		Script: pplxKernelsScript,
	},
	{
		Name:                "deepep-internode",
		Description:         "DeepEP internode MoE expert parallel test across two nodes with RDMA",
		ExpectedDuration:    1200 * time.Second,
		RequiredGPUsPerNode: 2,
		DefaultImage:        defaultProbeImage,
		SuccessCriteria: []string{
			"Repository cloned successfully",
			"GPU detection successful",
			"DeepEP internode test completed",
		},
		Script: deepepInternodeScript,
	},
	{
		Name:             "deepep-intranode",
		Description:      "DeepEP intranode MoE expert parallel test on two nodes",
		ExpectedDuration: 300 * time.Second,
		DefaultImage:     defaultProbeImage,
		SuccessCriteria: []string{
			"Repository cloned successfully",
			"GPU detection successful",
			"DeepEP intranode test completed",
		},
		Script: deepepIntranodeScript,
	},
	{
		Name:             "deepep-low-latency",
		Description:      "DeepEP low latency MoE expert parallel test on two nodes",
		ExpectedDuration: 240 * time.Second,
		DefaultImage:     defaultProbeImage,
		SuccessCriteria: []string{
			"Repository cloned successfully",
			"GPU detection successful",
			"DeepEP low latency test completed",
		},
		Script: deepepLowLatencyScript,
	},
	{
		Name:             "ib-write-bw",
		Description:      "Two-node RDMA write bandwidth test using ib_write_bw",
		ExpectedDuration: 120 * time.Second,
		DefaultImage:     defaultProbeImage,
		SuccessCriteria: []string{
			"ib_write_bw server started",
			"ib_write_bw client connected",
			"Bandwidth measurement completed",
		},
		Script: ibWriteBwScript,
	},
}

// All returns every registered workload descriptor.
func All() []Descriptor {
	return catalog
}

// ByName looks up a workload descriptor by its catalog name.
func ByName(name string) (Descriptor, bool) {
	for _, d := range catalog {
		if d.Name == name {
			return d, true
		}
	}
	return Descriptor{}, false
}
