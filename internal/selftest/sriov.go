package selftest

import (
	"context"
	"fmt"
	"strings"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/client-go/dynamic"
)

// sriovOperatorNamespace is where the SR-IOV network operator's
// SriovNetwork custom resources live, regardless of the workload's target
// namespace.
const sriovOperatorNamespace = "openshift-sriov-network-operator"

var sriovNetworkGVR = schema.GroupVersionResource{
	Group:    "sriovnetwork.openshift.io",
	Version:  "v1",
	Resource: "sriovnetworks",
}

// sriovNetwork is the handful of SriovNetwork CRD fields the orchestrator
// needs, read off the dynamic client's unstructured response. There is no
// generated Go client for this operator's CRD in the pack, so this is read
// via client-go's dynamic client rather than a fabricated typed client.
type sriovNetwork struct {
	Name             string
	NetworkNamespace string
	ResourceName     string
}

// discoverSriovNetworks lists SriovNetwork resources in the operator
// namespace and returns those whose networkNamespace targets targetNamespace.
// A cluster without the SR-IOV operator installed (list fails, e.g. CRD not
// registered) is treated as "zero networks found" rather than an error.
func discoverSriovNetworks(ctx context.Context, client dynamic.Interface, targetNamespace string) []sriovNetwork {
	list, err := client.Resource(sriovNetworkGVR).Namespace(sriovOperatorNamespace).List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil
	}

	var out []sriovNetwork
	for _, item := range list.Items {
		netNS, _, _ := unstructured.NestedString(item.Object, "spec", "networkNamespace")
		if netNS != targetNamespace {
			continue
		}
		resourceName, _, _ := unstructured.NestedString(item.Object, "spec", "resourceName")
		out = append(out, sriovNetwork{
			Name:             item.GetName(),
			NetworkNamespace: netNS,
			ResourceName:     resourceName,
		})
	}
	return out
}

// selectSriovNetwork prefers a network whose name contains "rdma"/"roce",
// else one whose resourceName contains one of "rdma"/"roce"/"mlnx", else the
// first available.
func selectSriovNetwork(networks []sriovNetwork) (string, bool) {
	if len(networks) == 0 {
		return "", false
	}

	for _, n := range networks {
		lower := strings.ToLower(n.Name)
		if strings.Contains(lower, "rdma") || strings.Contains(lower, "roce") {
			return n.Name, true
		}
	}
	for _, n := range networks {
		lower := strings.ToLower(n.ResourceName)
		if strings.Contains(lower, "rdma") || strings.Contains(lower, "roce") || strings.Contains(lower, "mlnx") {
			return n.Name, true
		}
	}
	return networks[0].Name, true
}

// errNoSriovNetwork is returned when RoCE requires SR-IOV and discovery
// found nothing usable, before any cluster-mutating call is made.
func errNoSriovNetwork(namespace string) error {
	return fmt.Errorf(
		"no SR-IOV network found for namespace %q: RoCE RDMA requires an SR-IOV network; "+
			"configure one in the %s namespace with networkNamespace: %q, or pass --sriov-network",
		namespace, sriovOperatorNamespace, namespace,
	)
}
