package models

import "time"

// TestStatus is the Self-Test Orchestrator's state machine position.
type TestStatus string

const (
	TestPending   TestStatus = "Pending"
	TestDeploying TestStatus = "Deploying"
	TestRunning   TestStatus = "Running"
	TestCompleted TestStatus = "Completed"
	TestFailed    TestStatus = "Failed"
	TestTimedOut  TestStatus = "TimedOut"
)

// NodePair is the two nodes a self-test deploys its probe workload across,
// plus the human-readable reason the pair was chosen.
type NodePair struct {
	Server          string `json:"server"`
	Client          string `json:"client"`
	SelectionReason string `json:"selection_reason"`
}

// TestResults is the terminal outcome of a self-test run.
type TestResults struct {
	Success       bool              `json:"success"`
	LatencyMs     *float64          `json:"latency_ms,omitempty"`
	BandwidthGbps *float64          `json:"bandwidth_gbps,omitempty"`
	Errors        []string          `json:"errors"`
	RDMAConnected bool              `json:"rdma_connected"`
	PacketLoss    *float64          `json:"packet_loss,omitempty"`
	Metrics       map[string]string `json:"metrics,omitempty"`
}

// TestExecution is the orchestrator's single piece of shared mutable state:
// created at start, mutated only by the orchestrator under its lock,
// discarded after cleanup.
type TestExecution struct {
	TestID       string              `json:"test_id"`
	NodePair     NodePair            `json:"node_pair"`
	WorkloadName string              `json:"workload_name"`
	Status       TestStatus          `json:"status"`
	StartTime    time.Time           `json:"start_time"`
	EndTime      *time.Time          `json:"end_time,omitempty"`
	PodLogs      map[string][]string `json:"pod_logs"`
	Results      TestResults         `json:"results"`
}

// RdmaInterface describes one RDMA-capable NIC discovered on a node; the
// orchestrator picks the RDMA device for each side of the pair from these.
type RdmaInterface struct {
	Name   string `json:"name"`
	Speed  string `json:"speed,omitempty"`
	Fabric string `json:"fabric,omitempty"`
	Index  int    `json:"index"`
}
