package selftest

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	batchv1 "k8s.io/api/batch/v1"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/dynamic"
	"k8s.io/client-go/kubernetes"

	"github.com/railtopo/railtopo/internal/cluster"
	"github.com/railtopo/railtopo/internal/logmux"
	"github.com/railtopo/railtopo/internal/models"
	"github.com/railtopo/railtopo/internal/topoaffinity"
	"github.com/railtopo/railtopo/internal/workload"
)

// Orchestrator runs one self-test end to end: analyze, select, render,
// deploy, watch, cleanup. Its TestExecution is the one piece of shared
// mutable state, held behind a single mutex.
type Orchestrator struct {
	Client  kubernetes.Interface
	Dynamic dynamic.Interface
	Config  Config
	Log     zerolog.Logger

	mu          sync.Mutex
	exec        *models.TestExecution
	cleanupOnce sync.Once
	cleanupDone chan struct{}
}

// NewOrchestrator builds an Orchestrator ready to Run.
func NewOrchestrator(client kubernetes.Interface, dyn dynamic.Interface, cfg Config, logger zerolog.Logger) *Orchestrator {
	return &Orchestrator{
		Client:      client,
		Dynamic:     dyn,
		Config:      cfg.withDefaults(),
		Log:         logger,
		cleanupDone: make(chan struct{}),
	}
}

// snapshotExecution returns a copy of the current TestExecution for readers
// (the signal handler, status queries) without holding the lock past the
// copy.
func (o *Orchestrator) snapshotExecution() *models.TestExecution {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.exec == nil {
		return nil
	}
	cp := *o.exec
	return &cp
}

func (o *Orchestrator) setExecution(e *models.TestExecution) {
	o.mu.Lock()
	o.exec = e
	o.mu.Unlock()
}

func (o *Orchestrator) transition(status models.TestStatus) {
	o.mu.Lock()
	if o.exec != nil {
		o.exec.Status = status
	}
	o.mu.Unlock()
}

// Run executes the full H2 state machine and returns the final
// TestExecution. Configuration and discovery errors are returned before any
// cluster-mutating call is made.
func (o *Orchestrator) Run(ctx context.Context) (*models.TestExecution, error) {
	descriptor, ok := workload.ByName(o.Config.Workload)
	if !ok {
		return nil, fmt.Errorf("unknown workload %q", o.Config.Workload)
	}

	ctx, cancelSignal := context.WithCancel(ctx)
	defer cancelSignal()
	o.installSignalHandler(ctx)

	report, err := o.analyzeCluster(ctx, descriptor)
	if err != nil {
		return nil, fmt.Errorf("cluster analysis: %w", err)
	}

	pair, nodeA, nodeB, err := o.selectPair(report)
	if err != nil {
		return nil, fmt.Errorf("node selection: %w", err)
	}
	o.Log.Info().Str("server", nodeA.Name).Str("client", nodeB.Name).Str("reason", pair.Reason).Msg("selected node pair")

	requiresGPU := descriptor.RequiredGPUsPerNode > 0
	if o.Config.GPUsPerNode != nil {
		requiresGPU = *o.Config.GPUsPerNode > 0
	}

	sriovNetwork := ""
	isRoCE := strings.Contains(strings.ToLower(nodeA.RDMAResource), "roce")
	if isRoCE && o.Config.SriovNetworkOverride == "" {
		networks := discoverSriovNetworks(ctx, o.Dynamic, o.Config.Namespace)
		selected, found := selectSriovNetwork(networks)
		if !found {
			return nil, errNoSriovNetwork(o.Config.Namespace)
		}
		sriovNetwork = selected
		o.Log.Info().Str("network", selected).Msg("auto-selected SR-IOV network")
	}

	testID := uuid.New().String()[:8]
	exec := &models.TestExecution{
		TestID: testID,
		NodePair: models.NodePair{
			Server:          nodeA.Name,
			Client:          nodeB.Name,
			SelectionReason: pair.Reason,
		},
		WorkloadName: descriptor.Name,
		Status:       models.TestPending,
		StartTime:    now(),
		PodLogs:      map[string][]string{},
		Results:      models.TestResults{Errors: []string{}},
	}
	o.setExecution(exec)

	rdmaInfo := workload.BuildRDMAInfo(nodeA.RDMAResource, workload.RDMAConfig{
		SriovNetworkOverride: o.Config.SriovNetworkOverride,
		DetectedSriovNetwork: sriovNetwork,
		UCXGIDIndexOverride:  o.Config.UCXGIDIndexOverride,
		RequiresGPU:          requiresGPU,
	})

	image := o.Config.Image
	if image == "" {
		image = descriptor.DefaultImage
	}

	gpuRequest := 0
	if o.Config.GPUsPerNode != nil {
		gpuRequest = *o.Config.GPUsPerNode
	}

	renderCtx := workload.RenderContext{
		TestID:     testID,
		Namespace:  o.Config.Namespace,
		Image:      image,
		Server:     workload.RenderNode{Name: nodeA.Name, RDMADevice: firstDeviceName(RDMAInterfacesFromNode(&nodeA))},
		Client:     workload.RenderNode{Name: nodeB.Name, RDMADevice: firstDeviceName(RDMAInterfacesFromNode(&nodeB))},
		RDMA:       rdmaInfo,
		GPURequest: gpuRequest,
	}

	resources, err := workload.BuildResources(descriptor, renderCtx)
	if err != nil {
		return nil, fmt.Errorf("render resources: %w", err)
	}

	if o.Config.DryRun {
		out, err := workload.RenderYAMLStream(resources)
		if err != nil {
			return nil, fmt.Errorf("render yaml: %w", err)
		}
		fmt.Println(out)
		o.transition(models.TestCompleted)
		endExecution(exec, true)
		return exec, nil
	}

	if !o.Config.SkipHCAProbe {
		o.runPreflightProbe(ctx, exec, nodeA.Name, nodeB.Name)
	}

	o.transition(models.TestDeploying)
	if err := o.deploy(ctx, resources); err != nil {
		o.cleanup(context.Background())
		return nil, fmt.Errorf("deploy: %w", err)
	}

	o.transition(models.TestRunning)

	o.monitor(ctx, exec, descriptor.ExpectedDuration)

	if !o.Config.NoCleanup {
		o.cleanup(context.Background())
	}

	return exec, nil
}

// runPreflightProbe deploys an HCA-probe pod on each side of the selected
// pair, reads back its JSON output, and records the aggregated HCA/GID
// state on exec.Results before the main workload is deployed. Probe
// failures are recorded as warnings, not as a reason to abort: the test
// still runs even if the pre-flight scan came back incomplete.
func (o *Orchestrator) runPreflightProbe(ctx context.Context, exec *models.TestExecution, serverNode, clientNode string) {
	nodesByRole := map[string]string{"server": serverNode, "client": clientNode}
	agg, warnings := runHCAProbes(ctx, o.Client, o.Config.Namespace, exec.TestID, o.Config.ProbeImage, nodesByRole)

	o.mu.Lock()
	defer o.mu.Unlock()
	for _, w := range warnings {
		o.Log.Warn().Str("test_id", exec.TestID).Msg(w)
		exec.Results.Errors = append(exec.Results.Errors, w)
	}
	if len(agg.ActiveHCAs) > 0 {
		if exec.Results.Metrics == nil {
			exec.Results.Metrics = map[string]string{}
		}
		exec.Results.Metrics["hca_active_hcas"] = strings.Join(agg.ActiveHCAs, ",")
		exec.Results.Metrics["hca_nccl_hcas"] = strings.Join(agg.NCCLHCAs, ",")
		exec.Results.Metrics["hca_ucx_hcas"] = strings.Join(agg.UCXHCAs, ",")
		exec.Results.RDMAConnected = true
	}
	if agg.MismatchedGID {
		exec.Results.Errors = append(exec.Results.Errors, "hca probe: GID index mismatch detected across namespaces")
	}
}

func firstDeviceName(ifaces []models.RdmaInterface) string {
	if len(ifaces) == 0 {
		return "mlx5_0"
	}
	return ifaces[0].Name
}

func endExecution(exec *models.TestExecution, success bool) {
	t := now()
	exec.EndTime = &t
	exec.Results.Success = success
}

// analyzeCluster lists nodes and pods and runs the Cluster Analyzer over
// them, optionally checking image-cache presence for the workload's image.
func (o *Orchestrator) analyzeCluster(ctx context.Context, descriptor workload.Descriptor) (*models.ClusterReport, error) {
	nodeList, err := o.Client.CoreV1().Nodes().List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("list nodes: %w", err)
	}
	podList, err := o.Client.CoreV1().Pods("").List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("list pods: %w", err)
	}

	nodes := make([]*corev1.Node, len(nodeList.Items))
	for i := range nodeList.Items {
		nodes[i] = &nodeList.Items[i]
	}
	pods := make([]*corev1.Pod, len(podList.Items))
	for i := range podList.Items {
		pods[i] = &podList.Items[i]
	}

	imageToCheck := o.Config.CacheCheckImage
	if imageToCheck == "" {
		imageToCheck = o.Config.Image
	}
	if imageToCheck == "" {
		imageToCheck = descriptor.DefaultImage
	}

	report := cluster.BuildReport(cluster.BuildReportInput{
		Nodes:        nodes,
		Pods:         pods,
		Detail:       cluster.DetailDetailed,
		TopologyRule: o.Config.TopologyRule,
		ImageToCheck: imageToCheck,
	})
	return report, nil
}

// selectPair groups RDMA-capable nodes by RDMA type and hands the largest
// same-type group to the topology pair selector.
func (o *Orchestrator) selectPair(report *models.ClusterReport) (*topoaffinity.Pair, models.NodeInfo, models.NodeInfo, error) {
	byType := map[string][]*models.NodeInfo{}
	for i := range report.Nodes {
		n := &report.Nodes[i]
		if n.RDMACapability != models.RDMACapable {
			continue
		}
		rdmaType := n.RDMAType
		if rdmaType == "" {
			rdmaType = "unknown"
		}
		byType[rdmaType] = append(byType[rdmaType], n)
	}

	var bestType string
	var bestGroup []*models.NodeInfo
	for t, nodes := range byType {
		if len(nodes) >= 2 && len(nodes) > len(bestGroup) {
			bestType = t
			bestGroup = nodes
		}
	}

	if len(bestGroup) < 2 {
		total := 0
		for _, nodes := range byType {
			total += len(nodes)
		}
		return nil, models.NodeInfo{}, models.NodeInfo{}, fmt.Errorf("need at least 2 RDMA-capable nodes with a shared RDMA type, found %d RDMA-capable nodes total", total)
	}

	selector := topoaffinity.For(report.Platform)
	pair, ok := topoaffinity.SelectPair(selector, bestType, bestGroup)
	if !ok {
		return nil, models.NodeInfo{}, models.NodeInfo{}, fmt.Errorf("no suitable node pair found among %d %s-capable nodes", len(bestGroup), bestType)
	}

	return pair, *pair.NodeA, *pair.NodeB, nil
}

// deploy creates every rendered resource, dispatched to its resource API by
// concrete type.
func (o *Orchestrator) deploy(ctx context.Context, resources []workload.Resource) error {
	for _, res := range resources {
		var err error
		switch obj := res.(type) {
		case *corev1.ConfigMap:
			_, err = o.Client.CoreV1().ConfigMaps(o.Config.Namespace).Create(ctx, obj, metav1.CreateOptions{})
		case *corev1.Service:
			_, err = o.Client.CoreV1().Services(o.Config.Namespace).Create(ctx, obj, metav1.CreateOptions{})
		case *batchv1.Job:
			_, err = o.Client.BatchV1().Jobs(o.Config.Namespace).Create(ctx, obj, metav1.CreateOptions{})
		default:
			err = fmt.Errorf("unsupported resource kind %T", res)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// monitor starts log/event multiplexing and polls job status until a
// terminal state is reached or the workload's expected duration elapses.
func (o *Orchestrator) monitor(ctx context.Context, exec *models.TestExecution, expectedDuration time.Duration) {
	muxCtx, cancelMux := context.WithCancel(ctx)

	go func() {
		time.Sleep(o.Config.AttachDelay)
		sup := logmux.NewSupervisor(o.Client, o.Config.Namespace, exec.TestID)
		printer := logmux.NewPrinter(os.Stdout, !isatty.IsTerminal(os.Stdout.Fd()))
		go printer.Drain(sup.Lines())
		_ = sup.Run(muxCtx)
	}()

	deadline := now().Add(expectedDuration)
	status := models.TestRunning

	for now().Before(deadline) {
		completed, failed, err := o.jobStatuses(ctx, exec.TestID)
		if err != nil {
			o.Log.Warn().Err(err).Msg("check job status")
		} else if failed {
			status = models.TestFailed
			break
		} else if completed {
			status = models.TestCompleted
			break
		}
		time.Sleep(o.Config.PollInterval)
	}
	if status == models.TestRunning {
		status = models.TestTimedOut
	}

	o.transition(status)
	o.mu.Lock()
	endExecution(exec, status == models.TestCompleted)
	o.mu.Unlock()

	time.Sleep(o.Config.DrainGrace)
	cancelMux()
}

// jobStatuses reports whether every test Job has succeeded≥1 (completed) or
// any has failed≥1.
func (o *Orchestrator) jobStatuses(ctx context.Context, testID string) (completed, failed bool, err error) {
	list, err := o.Client.BatchV1().Jobs(o.Config.Namespace).List(ctx, metav1.ListOptions{
		LabelSelector: fmt.Sprintf("test-id=%s", testID),
	})
	if err != nil {
		return false, false, err
	}
	if len(list.Items) == 0 {
		return false, false, nil
	}

	allSucceeded := true
	for _, j := range list.Items {
		if j.Status.Failed > 0 {
			return false, true, nil
		}
		if j.Status.Succeeded < 1 {
			allSucceeded = false
		}
	}
	return allSucceeded, false, nil
}

// installSignalHandler handles SIGINT: if cleanup-on-signal applies, run
// cleanup synchronously (through the same one-shot guard as the normal
// path) and exit 130.
func (o *Orchestrator) installSignalHandler(ctx context.Context) {
	if !o.Config.CleanupSignal || o.Config.DryRun {
		return
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)

	go func() {
		select {
		case <-sigCh:
		case <-ctx.Done():
			return
		}

		fmt.Fprintln(os.Stderr, "\nreceived interrupt, cleaning up test resources...")
		o.cleanup(context.Background())
		fmt.Fprintln(os.Stderr, "cleanup complete")
		os.Exit(130)
	}()
}

// cleanup deletes the test's Job×2, Service, and ConfigMap, ignoring
// not-found errors. Guarded by a sync.Once so the signal path and the
// normal exit path can never both run it.
func (o *Orchestrator) cleanup(ctx context.Context) {
	o.cleanupOnce.Do(func() {
		exec := o.snapshotExecution()
		if exec == nil {
			close(o.cleanupDone)
			return
		}
		Cleanup(ctx, o.Client, o.Config.Namespace, exec.TestID, o.Log)
		close(o.cleanupDone)
	})
}

func now() time.Time { return time.Now() }
