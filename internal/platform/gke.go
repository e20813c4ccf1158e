package platform

import (
	"encoding/json"
	"fmt"
	"strings"

	corev1 "k8s.io/api/core/v1"

	"github.com/railtopo/railtopo/internal/models"
)

type gkeDetector struct{}

func (gkeDetector) Type() models.Platform { return models.PlatformGKE }

func (gkeDetector) matches(labels map[string]string) bool {
	for k := range labels {
		if strings.HasPrefix(k, "cloud.google.com/gke-") {
			return true
		}
	}
	return false
}

func (gkeDetector) DetectRDMA(node *corev1.Node) (bool, string, string) {
	capacity := node.Status.Capacity
	labels := nodeLabels(node)

	rdmaCount := 0
	for k := range capacity {
		if strings.HasPrefix(string(k), "networking.gke.io.networks/rdma-") && !strings.HasSuffix(string(k), ".IP") {
			rdmaCount++
		}
	}
	if rdmaCount > 0 {
		return true, "GKE RDMA", fmt.Sprintf("%d RDMA interfaces", rdmaCount)
	}

	gvnicCount := 0
	for k := range capacity {
		if strings.HasPrefix(string(k), "networking.gke.io.networks/gvnic-") && !strings.HasSuffix(string(k), ".IP") {
			gvnicCount++
		}
	}
	if gvnicCount > 0 {
		return true, "gVNIC (Google Virtual NIC)", fmt.Sprintf("%d gVNIC interfaces", gvnicCount)
	}

	if labels["cloud.google.com/gke-gvnic"] == "true" {
		return true, "gVNIC (Google Virtual NIC)", "gVNIC enabled"
	}

	return false, "", ""
}

func (gkeDetector) DetectTopologyBlock(node *corev1.Node) (string, *models.TopologyDetection) {
	labels := nodeLabels(node)
	annotations := nodeAnnotations(node)

	if block, ok := labels["cloud.google.com/gce-topology-block"]; ok {
		return "block-" + truncate(block, 8), &models.TopologyDetection{
			Type:            models.TopologyGkeBlock,
			DetectionMethod: "GKE cloud.google.com/gce-topology-block label",
			Confidence:      models.ConfidenceHigh,
		}
	}

	if subblock, ok := labels["cloud.google.com/gce-topology-subblock"]; ok {
		return "subblock-" + truncate(subblock, 8), &models.TopologyDetection{
			Type:            models.TopologyGkeBlock,
			DetectionMethod: "GKE cloud.google.com/gce-topology-subblock label",
			Confidence:      models.ConfidenceMedium,
		}
	}

	if fabricDomain, ok := extractGKEFabricDomain(annotations); ok {
		return fabricDomain, &models.TopologyDetection{
			Type:            models.TopologyHardware,
			DetectionMethod: "GKE RDMA fabric domain analysis",
			Confidence:      models.ConfidenceHigh,
		}
	}

	zone, hasZone := labels["topology.gke.io/zone"]
	if !hasZone {
		zone, hasZone = labels["topology.kubernetes.io/zone"]
	}
	if nodepool, hasNodepool := labels["cloud.google.com/gke-nodepool"]; hasZone && hasNodepool {
		return fmt.Sprintf("%s-%s", zone, nodepool), &models.TopologyDetection{
			Type:            models.TopologyZone,
			DetectionMethod: "GKE zone+nodepool topology",
			Confidence:      models.ConfidenceMedium,
		}
	}

	if zone, ok := labels["topology.gke.io/zone"]; ok {
		return "gke-zone-" + zone, &models.TopologyDetection{
			Type:            models.TopologyZone,
			DetectionMethod: "GKE topology.gke.io/zone label",
			Confidence:      models.ConfidenceMedium,
		}
	}

	return "", nil
}

func (gkeDetector) ExtractPlatformInfo(node *corev1.Node) PlatformInfo {
	labels := nodeLabels(node)
	annotations := nodeAnnotations(node)

	rdmaInterfaces, pciTopology := parseGKENetworkingInfo(annotations)
	fabricDomain, _ := extractGKEFabricDomain(annotations)

	return PlatformInfo{
		GKE: &models.GKEPayload{
			Nodepool:         labels["cloud.google.com/gke-nodepool"],
			MachineFamily:    labels["cloud.google.com/machine-family"],
			Zone:             labels["topology.gke.io/zone"],
			TopologyBlock:    labels["cloud.google.com/gce-topology-block"],
			TopologySubblock: labels["cloud.google.com/gce-topology-subblock"],
			TopologyHost:     labels["cloud.google.com/gce-topology-host"],
			RdmaInterfaces:   rdmaInterfaces,
			PCITopology:      pciTopology,
			FabricDomain:     fabricDomain,
		},
	}
}

// HasFabricDomain reports whether this node's annotations carry a GKE RDMA
// fabric domain, used by the Cluster Analyzer to decide the cluster-wide
// topology strategy before any per-node detection runs.
func (gkeDetector) HasFabricDomain(node *corev1.Node) bool {
	_, ok := extractGKEFabricDomain(nodeAnnotations(node))
	return ok
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func extractGKEFabricDomain(annotations map[string]string) (string, bool) {
	networksJSON, ok := annotations["networking.gke.io/networks"]
	if !ok {
		return "", false
	}
	var networks []struct {
		Name  string   `json:"name"`
		CIDRs []string `json:"cidrs"`
	}
	if err := json.Unmarshal([]byte(networksJSON), &networks); err != nil {
		return "", false
	}
	for _, network := range networks {
		if network.Name != "rdma-0" || len(network.CIDRs) == 0 {
			continue
		}
		ip := strings.SplitN(network.CIDRs[0], "/", 2)[0]
		parts := strings.Split(ip, ".")
		if len(parts) < 3 {
			continue
		}
		return fmt.Sprintf("fabric-%s.%s.%s", parts[0], parts[1], parts[2]), true
	}
	return "", false
}

func parseGKENetworkingInfo(annotations map[string]string) ([]models.GKERdmaInterface, string) {
	nicInfoJSON, ok := annotations["networking.gke.io/nic-info"]
	if !ok {
		return nil, ""
	}

	var nics []struct {
		BirthName  string `json:"birthName"`
		PCIAddress string `json:"pciAddress"`
		BirthIP    string `json:"birthIP"`
	}
	if err := json.Unmarshal([]byte(nicInfoJSON), &nics); err != nil {
		return nil, ""
	}

	var interfaces []models.GKERdmaInterface
	for _, nic := range nics {
		if nic.BirthName == "" || nic.PCIAddress == "" || nic.BirthIP == "" {
			continue
		}
		if !strings.Contains(nic.BirthName, "rdma") {
			continue
		}

		networkName := nic.BirthName
		if strings.HasPrefix(nic.BirthName, "gpu") && len(nic.BirthName) > 3 {
			// gpu0rdma0 -> rdma-0: the GPU index character sits right after
			// the "gpu" prefix.
			networkName = fmt.Sprintf("rdma-%c", nic.BirthName[3])
		}

		subnet := nic.BirthIP
		if idx := strings.LastIndex(nic.BirthIP, "."); idx >= 0 {
			subnet = nic.BirthIP[:idx]
		}

		interfaces = append(interfaces, models.GKERdmaInterface{
			NetworkName: networkName,
			PCIAddress:  nic.PCIAddress,
			BirthName:   nic.BirthName,
			IPAddress:   nic.BirthIP,
			Subnet:      subnet,
		})
	}

	pciTopology := ""
	if len(interfaces) > 0 {
		buses := map[string]struct{}{}
		for _, iface := range interfaces {
			parts := strings.Split(iface.PCIAddress, ":")
			bus := "00"
			if len(parts) > 1 {
				bus = parts[1]
			}
			buses[bus] = struct{}{}
		}
		pciTopology = fmt.Sprintf("pci-buses-%d", len(buses))
	}

	return interfaces, pciTopology
}
