// Package models holds the normalized data types that flow between the
// platform, cluster, selector, workload, and self-test packages: NodeInfo,
// ClusterReport, NodeSelection, and TestExecution.
package models

import "time"

// Platform identifies which variant's detection rules produced a NodeInfo.
type Platform string

const (
	PlatformCoreWeave Platform = "CoreWeave"
	PlatformOpenShift Platform = "OpenShift"
	PlatformGKE       Platform = "GKE"
	PlatformGeneric   Platform = "Generic"
)

// RDMACapability is the coarse capable/not-capable classification a node
// receives from its platform detector.
type RDMACapability string

const (
	RDMACapable    RDMACapability = "Capable"
	RDMANotCapable RDMACapability = "NotCapable"
)

// TopologyType names how a node's topology_block was derived.
type TopologyType string

const (
	TopologyLeafGroup TopologyType = "LeafGroup"
	TopologyZone      TopologyType = "Zone"
	TopologyRack      TopologyType = "Rack"
	TopologyIPRange   TopologyType = "IpRange"
	TopologySubnet    TopologyType = "Subnet"
	TopologyHardware  TopologyType = "Hardware"
	TopologyGkeBlock  TopologyType = "GkeBlock"
	TopologyCustom    TopologyType = "Custom"
	TopologyUnknown   TopologyType = "Unknown"
)

// Confidence grades how strongly a detection method should be trusted.
type Confidence string

const (
	ConfidenceHigh   Confidence = "High"
	ConfidenceMedium Confidence = "Medium"
	ConfidenceLow    Confidence = "Low"
)

// ImageCacheStatus records whether a probe-relevant image was found already
// pulled onto a node.
type ImageCacheStatus string

const (
	ImageCached    ImageCacheStatus = "Cached"
	ImageNotCached ImageCacheStatus = "NotCached"
	ImageUnknown   ImageCacheStatus = "Unknown"
)

// TopologyDetection tags how a node's topology block was computed.
type TopologyDetection struct {
	Type            TopologyType `json:"type"`
	DetectionMethod string       `json:"detection_method"`
	Confidence      Confidence   `json:"confidence"`
}

// TopologyStrategy is computed once over the whole node list, before
// per-node topology detection runs, to keep a cluster's topology scheme
// coherent across sibling nodes.
type TopologyStrategy struct {
	Type       TopologyType `json:"type"`
	Method     string       `json:"method"`
	Confidence Confidence   `json:"confidence"`
}

// CoreWeavePayload carries CoreWeave-specific fields extracted by the L2
// detector. Zero value means "not on CoreWeave" / "not found".
type CoreWeavePayload struct {
	IBSpeed      string        `json:"ib_speed,omitempty"`
	IBFabric     string        `json:"ib_fabric,omitempty"`
	Leafgroup    string        `json:"leafgroup,omitempty"`
	Superpod     string        `json:"superpod,omitempty"`
	Neighbors    []string      `json:"neighbors,omitempty"`
	MellanoxNICs []MellanoxNIC `json:"mellanox_nics,omitempty"`
}

// MellanoxNIC is one `net.coreweave.cloud/mellanox.<iface>.*` NIC record.
type MellanoxNIC struct {
	Interface  string `json:"interface"`
	PartNumber string `json:"part_number,omitempty"`
	Firmware   string `json:"firmware,omitempty"`
}

// GKERdmaInterface is one RDMA-capable NIC parsed out of the
// `networking.gke.io/nic-info` annotation.
type GKERdmaInterface struct {
	NetworkName string `json:"network_name"`
	PCIAddress  string `json:"pci_address"`
	BirthName   string `json:"birth_name"`
	IPAddress   string `json:"ip_address"`
	Subnet      string `json:"subnet"`
}

// GKEPayload carries GKE-specific fields extracted by the L2 detector.
type GKEPayload struct {
	Nodepool         string             `json:"nodepool,omitempty"`
	Zone             string             `json:"zone,omitempty"`
	MachineFamily    string             `json:"machine_family,omitempty"`
	RdmaInterfaces   []GKERdmaInterface `json:"rdma_interfaces,omitempty"`
	FabricDomain     string             `json:"fabric_domain,omitempty"`
	TopologyBlock    string             `json:"topology_block,omitempty"`
	TopologySubblock string             `json:"topology_subblock,omitempty"`
	TopologyHost     string             `json:"topology_host,omitempty"`
	PCITopology      string             `json:"pci_topology,omitempty"`
}

// NodeInfo is the normalized, platform-independent view of one cluster node.
type NodeInfo struct {
	Name           string         `json:"name"`
	Platform       Platform       `json:"platform"`
	RDMACapability RDMACapability `json:"rdma_capability"`
	RDMAType       string         `json:"rdma_type,omitempty"`
	RDMAResource   string         `json:"rdma_resource,omitempty"`

	TopologyBlock     string             `json:"topology_block,omitempty"`
	TopologyDetection *TopologyDetection `json:"topology_detection,omitempty"`

	GPUCount       *int    `json:"gpu_count,omitempty"`
	GPUType        string  `json:"gpu_type,omitempty"`
	GPUAllocatable *int    `json:"gpu_allocatable,omitempty"`
	GPUAllocated   *int    `json:"gpu_allocated,omitempty"`

	CPUAllocatable    string `json:"cpu_allocatable,omitempty"`
	CPUAllocated      string `json:"cpu_allocated,omitempty"`
	MemoryAllocatable string `json:"memory_allocatable,omitempty"`
	MemoryAllocated   string `json:"memory_allocated,omitempty"`

	CoreWeave *CoreWeavePayload `json:"coreweave,omitempty"`
	GKE       *GKEPayload       `json:"gke,omitempty"`

	ImageCacheStatus    ImageCacheStatus `json:"image_cache_status"`
	CacheCheckTimestamp *time.Time       `json:"cache_check_timestamp,omitempty"`

	TopologyRuleError string `json:"topology_rule_error,omitempty"`

	Labels map[string]string `json:"node_labels,omitempty"`
}

// FreeGPUs returns allocatable minus allocated, never negative, treating an
// unknown allocation as zero free capacity.
func (n *NodeInfo) FreeGPUs() int {
	if n.GPUAllocatable == nil {
		return 0
	}
	if n.GPUAllocated == nil {
		return 0
	}
	free := *n.GPUAllocatable - *n.GPUAllocated
	if free < 0 {
		return 0
	}
	return free
}

// Leafgroup returns the CoreWeave leafgroup, or empty string off-platform.
func (n *NodeInfo) Leafgroup() string {
	if n.CoreWeave == nil {
		return ""
	}
	return n.CoreWeave.Leafgroup
}
