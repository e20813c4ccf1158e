package selftest

import (
	"strings"

	"github.com/railtopo/railtopo/internal/models"
)

// RDMAInterfacesFromNode builds a richer per-NIC view of a node's RDMA
// capability, one helper per platform. The orchestrator uses the first
// entry's name as the RDMA device handed to that node's Job.
func RDMAInterfacesFromNode(node *models.NodeInfo) []models.RdmaInterface {
	if node.RDMACapability != models.RDMACapable {
		return nil
	}

	switch node.Platform {
	case models.PlatformCoreWeave:
		return coreWeaveInterfaces(node)
	case models.PlatformGKE:
		return gkeInterfaces(node)
	case models.PlatformOpenShift:
		return openShiftInterfaces(node)
	default:
		return genericInterfaces(node)
	}
}

func coreWeaveInterfaces(node *models.NodeInfo) []models.RdmaInterface {
	if node.CoreWeave == nil || len(node.CoreWeave.MellanoxNICs) == 0 {
		return []models.RdmaInterface{{Name: "mlx5_0", Speed: speedOf(node), Index: 0}}
	}

	out := make([]models.RdmaInterface, 0, len(node.CoreWeave.MellanoxNICs))
	for i, nic := range node.CoreWeave.MellanoxNICs {
		out = append(out, models.RdmaInterface{
			Name:  nic.Interface,
			Speed: speedOf(node),
			Index: i,
		})
	}
	return out
}

func speedOf(node *models.NodeInfo) string {
	if node.CoreWeave == nil {
		return ""
	}
	return node.CoreWeave.IBSpeed
}

func gkeInterfaces(node *models.NodeInfo) []models.RdmaInterface {
	if node.GKE == nil || len(node.GKE.RdmaInterfaces) == 0 {
		return []models.RdmaInterface{{Name: "mlx5_0", Speed: "100G", Index: 0}}
	}

	out := make([]models.RdmaInterface, 0, len(node.GKE.RdmaInterfaces))
	for i, iface := range node.GKE.RdmaInterfaces {
		out = append(out, models.RdmaInterface{
			Name:   gkeDeviceName(iface.BirthName),
			Speed:  "100G",
			Fabric: iface.Subnet,
			Index:  i,
		})
	}
	return out
}

// gkeDeviceName converts a GKE birth name like "gpu0rdma0" into an
// mlx5-style device name: find the first digit in the birth name and use it
// as the device suffix.
func gkeDeviceName(birthName string) string {
	if !strings.Contains(birthName, "rdma") {
		return "mlx5_0"
	}
	for _, r := range birthName {
		if r >= '0' && r <= '9' {
			return "mlx5_" + string(r)
		}
	}
	return "mlx5_0"
}

func openShiftInterfaces(node *models.NodeInfo) []models.RdmaInterface {
	for key := range node.Labels {
		if strings.HasPrefix(key, "feature.node.kubernetes.io/pci-15b3") {
			name := "mlx5_0"
			if strings.Contains(key, "mlx4") {
				name = "mlx4_0"
			}
			return []models.RdmaInterface{{Name: name, Index: 0}}
		}
	}

	return []models.RdmaInterface{{Name: "mlx5_0", Index: 0}}
}

func genericInterfaces(node *models.NodeInfo) []models.RdmaInterface {
	return []models.RdmaInterface{{Name: "mlx5_0", Index: 0}}
}
