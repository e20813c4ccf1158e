package platform

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	corev1 "k8s.io/api/core/v1"

	"github.com/railtopo/railtopo/internal/models"
)

// detectZoneRackIPBlock is the shared topology fallback chain for platforms
// without vendor topology labels: zone label, legacy zone label, rack label,
// then IP-derived grouping.
func detectZoneRackIPBlock(node *corev1.Node) (string, *models.TopologyDetection) {
	labels := nodeLabels(node)

	if zone, ok := labels["topology.kubernetes.io/zone"]; ok {
		return "zone-" + zone, &models.TopologyDetection{
			Type:            models.TopologyZone,
			DetectionMethod: "Kubernetes topology.kubernetes.io/zone label",
			Confidence:      models.ConfidenceHigh,
		}
	}
	if zone, ok := labels["failure-domain.beta.kubernetes.io/zone"]; ok {
		return "zone-" + zone, &models.TopologyDetection{
			Type:            models.TopologyZone,
			DetectionMethod: "Kubernetes failure-domain.beta.kubernetes.io/zone label",
			Confidence:      models.ConfidenceHigh,
		}
	}
	if rack, ok := labels["topology.kubernetes.io/rack"]; ok {
		return "rack-" + rack, &models.TopologyDetection{
			Type:            models.TopologyRack,
			DetectionMethod: "Kubernetes topology.kubernetes.io/rack label",
			Confidence:      models.ConfidenceHigh,
		}
	}

	if block, ok := extractIPTopologyBlock(node); ok {
		typ := models.TopologySubnet
		if strings.HasPrefix(block, "ip-range") {
			typ = models.TopologyIPRange
		}
		return block, &models.TopologyDetection{
			Type:            typ,
			DetectionMethod: "IP address pattern analysis",
			Confidence:      models.ConfidenceMedium,
		}
	}

	return "", nil
}

// extractIPTopologyBlock groups a node's InternalIP by tens of its last
// octet, falling back to the OVN transit-switch annotation's /24 subnet.
// Malformed annotations resolve to ok=false rather than an error, per the
// platform detectors' "never fail" contract.
func extractIPTopologyBlock(node *corev1.Node) (string, bool) {
	for _, addr := range node.Status.Addresses {
		if addr.Type != corev1.NodeInternalIP {
			continue
		}
		parts := strings.Split(addr.Address, ".")
		if len(parts) < 4 {
			continue
		}
		lastOctet, err := strconv.Atoi(parts[3])
		if err != nil {
			continue
		}
		group := lastOctet / 10
		return fmt.Sprintf("ip-range-%s.%s.%s.%d-%d", parts[0], parts[1], parts[2], group*10, (group+1)*10-1), true
	}

	annotations := nodeAnnotations(node)
	transitJSON, ok := annotations["k8s.ovn.org/node-transit-switch-port-ifaddr"]
	if !ok {
		return "", false
	}
	var parsed struct {
		IPv4 string `json:"ipv4"`
	}
	if err := json.Unmarshal([]byte(transitJSON), &parsed); err != nil || parsed.IPv4 == "" {
		return "", false
	}
	ipPart := strings.SplitN(parsed.IPv4, "/", 2)[0]
	parts := strings.Split(ipPart, ".")
	if len(parts) < 3 {
		return "", false
	}
	return fmt.Sprintf("subnet-%s.%s.%s", parts[0], parts[1], parts[2]), true
}
