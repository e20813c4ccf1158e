// Package selftest implements the self-test orchestrator: a bounded state
// machine that analyzes the cluster, picks a node pair, renders and deploys
// a probe workload, streams its logs and events, waits for a terminal job
// state, and guarantees cleanup.
package selftest

import "time"

// Config is the orchestrator's run configuration.
type Config struct {
	Namespace string
	Workload  string // catalog name, e.g. "nixl-transfer"
	Image     string // overrides the workload's default image when set

	DryRun        bool // render manifests only, skip deploy/watch/cleanup
	NoCleanup     bool // skip cleanup on normal exit
	CleanupSignal bool // run cleanup synchronously on SIGINT

	GPUsPerNode          *int // overrides the workload's RequiredGPUsPerNode
	SriovNetworkOverride string
	UCXGIDIndexOverride  string
	TopologyRule         string

	CacheCheckImage string // image to check for cache presence; "" falls back to Image, then the workload's default image
	ProbeImage      string // HCA-probe binary image; "" uses defaultProbeImage
	SkipHCAProbe    bool   // skip the pre-flight HCA-probe deploy/read step

	PollInterval time.Duration // job-status poll interval; defaults to 5s
	AttachDelay  time.Duration // delay before attaching log followers; defaults to 5s
	DrainGrace   time.Duration // grace period for final logs after terminal state; defaults to 2s
}

// withDefaults fills in the zero-value timing knobs with the orchestrator's
// default pacing constants.
func (c Config) withDefaults() Config {
	if c.PollInterval == 0 {
		c.PollInterval = 5 * time.Second
	}
	if c.AttachDelay == 0 {
		c.AttachDelay = 5 * time.Second
	}
	if c.DrainGrace == 0 {
		c.DrainGrace = 2 * time.Second
	}
	return c
}
