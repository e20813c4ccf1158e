package workload

import (
	"bytes"
	"fmt"
	"strings"

	batchv1 "k8s.io/api/batch/v1"
	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/api/resource"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/util/intstr"
	"sigs.k8s.io/yaml"
)

// RenderNode is the subset of a selected node the renderer needs: its name
// and the RDMA device to bind the probe container to.
type RenderNode struct {
	Name       string
	RDMADevice string
}

// RenderContext bundles everything BuildResources needs to produce a
// deployable ConfigMap + Service + Job×2 stream for one workload run: the
// short test id, the selected node pair, the target namespace/image, and the
// RDMA configuration computed by BuildRDMAInfo.
type RenderContext struct {
	TestID     string
	Namespace  string
	Image      string
	Server     RenderNode
	Client     RenderNode
	RDMA       RDMAInfo
	GPURequest int
}

const createdLabelKey = "railtopo.io/self-test"

// ScriptConfigMapName, ServiceName, and JobName derive a run's resource
// names from its short test id, generalized to any catalog entry. Exported
// so the orchestrator's cleanup step can address the same resources by name
// without re-deriving them.
func ScriptConfigMapName(testID string) string { return fmt.Sprintf("railtopo-test-script-%s", testID) }
func ServiceName(testID string) string         { return fmt.Sprintf("railtopo-test-%s", testID) }
func JobName(testID, role string) string       { return fmt.Sprintf("railtopo-test-%s-%s", role, testID) }

// BuildResources renders a workload descriptor plus a RenderContext into the
// multi-document resource stream the Self-Test Orchestrator deploys:
// one ConfigMap carrying the probe script, one headless Service fronting
// the server pod, and one Job per side of the pair.
func BuildResources(d Descriptor, ctx RenderContext) ([]Resource, error) {
	if ctx.TestID == "" {
		return nil, fmt.Errorf("render: test id is required")
	}

	labels := map[string]string{
		createdLabelKey: "true",
		"test-id":       ctx.TestID,
		"workload":      d.Name,
	}

	cm := &corev1.ConfigMap{
		TypeMeta:   metav1.TypeMeta{Kind: "ConfigMap", APIVersion: "v1"},
		ObjectMeta: metav1.ObjectMeta{Name: ScriptConfigMapName(ctx.TestID), Namespace: ctx.Namespace, Labels: labels},
		Data: map[string]string{
			"run.sh": d.Script,
		},
	}

	svc := &corev1.Service{
		TypeMeta:   metav1.TypeMeta{Kind: "Service", APIVersion: "v1"},
		ObjectMeta: metav1.ObjectMeta{Name: ServiceName(ctx.TestID), Namespace: ctx.Namespace, Labels: labels},
		Spec: corev1.ServiceSpec{
			ClusterIP: corev1.ClusterIPNone,
			Selector:  map[string]string{"test-id": ctx.TestID, "role": "server"},
			Ports: []corev1.ServicePort{
				{Name: "probe", Port: 12345, TargetPort: intstr.FromInt32(12345)},
			},
		},
	}

	serverJob := d.buildJob(ctx, "server", ctx.Server, "")
	clientJob := d.buildJob(ctx, "client", ctx.Client, ServiceName(ctx.TestID))

	return []Resource{cm, svc, serverJob, clientJob}, nil
}

// buildJob constructs the Job for one side of a node pair: scheduled onto
// the named node via nodeName, running the workload script from the
// ConfigMap, with RDMA env vars and resource requests injected.
func (d Descriptor) buildJob(ctx RenderContext, role string, node RenderNode, peerHost string) *batchv1.Job {
	labels := map[string]string{
		createdLabelKey: "true",
		"test-id":       ctx.TestID,
		"workload":      d.Name,
		"role":          role,
	}

	env := []corev1.EnvVar{
		{Name: "ROLE", Value: role},
		{Name: "PEER_HOST", Value: peerHost},
		{Name: "RDMA_DEVICE", Value: node.RDMADevice},
		{Name: "UCX_TLS", Value: ctx.RDMA.UCXTransports},
		{Name: "UCX_GID_INDEX", Value: ctx.RDMA.UCXGIDIndex},
	}

	resources := corev1.ResourceRequirements{}
	gpus := d.RequiredGPUsPerNode
	if ctx.GPURequest > 0 {
		gpus = ctx.GPURequest
	}
	// GKE-style descriptive resource strings ("2 RDMA interfaces") are not
	// schedulable resource names; only slash-qualified names become limits.
	rdmaResourceName := ""
	if strings.Contains(ctx.RDMA.RDMAResourceType, "/") {
		rdmaResourceName = ctx.RDMA.RDMAResourceType
	}
	if gpus > 0 || rdmaResourceName != "" {
		limits := corev1.ResourceList{}
		if gpus > 0 {
			limits[corev1.ResourceName("nvidia.com/gpu")] = *resource.NewQuantity(int64(gpus), resource.DecimalSI)
		}
		if rdmaResourceName != "" {
			limits[corev1.ResourceName(rdmaResourceName)] = *resource.NewQuantity(1, resource.DecimalSI)
		}
		resources.Limits = limits
		resources.Requests = limits
	}

	annotations := map[string]string{}
	if ctx.RDMA.SriovNetwork != "" {
		annotations["k8s.v1.cni.cncf.io/networks"] = ctx.RDMA.SriovNetwork
	}

	image := d.DefaultImage
	if ctx.Image != "" {
		image = ctx.Image
	}

	backoff := int32(0)
	completions := int32(1)
	parallelism := int32(1)

	job := &batchv1.Job{
		TypeMeta:   metav1.TypeMeta{Kind: "Job", APIVersion: "batch/v1"},
		ObjectMeta: metav1.ObjectMeta{Name: JobName(ctx.TestID, role), Namespace: ctx.Namespace, Labels: labels},
		Spec: batchv1.JobSpec{
			BackoffLimit: &backoff,
			Completions:  &completions,
			Parallelism:  &parallelism,
			Template: corev1.PodTemplateSpec{
				ObjectMeta: metav1.ObjectMeta{Labels: labels, Annotations: annotations},
				Spec: corev1.PodSpec{
					RestartPolicy: corev1.RestartPolicyNever,
					NodeName:      node.Name,
					Volumes: []corev1.Volume{
						{
							Name: "script",
							VolumeSource: corev1.VolumeSource{
								ConfigMap: &corev1.ConfigMapVolumeSource{
									LocalObjectReference: corev1.LocalObjectReference{Name: ScriptConfigMapName(ctx.TestID)},
									DefaultMode:          int32Ptr(0o755),
								},
							},
						},
					},
					Containers: []corev1.Container{
						{
							Name:      "probe",
							Image:     image,
							Command:   []string{"/bin/sh", "/scripts/run.sh"},
							Env:       env,
							Resources: resources,
							VolumeMounts: []corev1.VolumeMount{
								{Name: "script", MountPath: "/scripts"},
							},
						},
					},
				},
			},
		},
	}

	return job
}

func int32Ptr(v int32) *int32 { return &v }

// Resource is deliberately `interface{}`: BuildResources's callers only
// ever marshal these through RenderYAMLStream or hand them straight to a
// typed client-go Create call keyed by their concrete type, so no shared
// method set is needed.
type Resource interface{}

// RenderYAMLStream marshals the resources BuildResources produced into a
// single "---"-delimited multi-document YAML stream. The orchestrator prints
// it in dry-run mode; its deploy step creates the typed objects directly.
func RenderYAMLStream(objs []Resource) (string, error) {
	var buf bytes.Buffer
	for i, obj := range objs {
		data, err := yaml.Marshal(obj)
		if err != nil {
			return "", fmt.Errorf("marshal resource %d: %w", i, err)
		}
		if i > 0 {
			buf.WriteString("---\n")
		}
		buf.Write(data)
	}
	return buf.String(), nil
}
