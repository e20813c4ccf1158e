// Package hcaprobe parses the JSON output of the separate RDMA-probing
// binary that railtopo deploys as a pod and reads back out of its pod logs:
// a per-namespace HCA configuration, with ANSI-escape stripping and support
// for the legacy single-namespace (no top-level "namespaces" array) output
// shape.
package hcaprobe

import (
	"encoding/json"
	"fmt"
	"regexp"
)

// NamespaceType identifies which kind of Linux namespace a probe run
// executed in.
type NamespaceType string

const (
	NamespaceHost    NamespaceType = "Host"
	NamespacePod     NamespaceType = "Pod"
	NamespaceNetwork NamespaceType = "NetworkNamespace"
)

// HCADetail is one HCA's reported state within a namespace's config.
type HCADetail struct {
	Name      string `json:"name"`
	PortState string `json:"port_state"`
	HasRoCEv2 bool   `json:"has_roce_v2"`
	GIDIndex  *int   `json:"gid_index,omitempty"`
	GIDValue  string `json:"gid_value,omitempty"`
	NetDev    string `json:"netdev,omitempty"`
}

// Config is the per-namespace HCA configuration block.
type Config struct {
	ActiveHCAs     []string    `json:"active_hcas"`
	NCCLHCAs       []string    `json:"nccl_hcas"`
	UCXHCAs        []string    `json:"ucx_hcas"`
	GIDIndex       *int        `json:"gid_index,omitempty"`
	GIDIndexCounts map[int]int `json:"gid_index_counts"`
	HCADetails     []HCADetail `json:"hca_details"`
}

// Namespace is one entry of the probe's "namespaces" array.
type Namespace struct {
	NamespaceType NamespaceType `json:"namespace_type"`
	NamespaceID   string        `json:"namespace_id"`
	PodName       string        `json:"pod_name,omitempty"`
	PodNamespace  string        `json:"pod_namespace,omitempty"`
	PID           *int          `json:"pid,omitempty"`
	Config        Config        `json:"config"`
}

// Report is the top-level decoded probe output.
type Report struct {
	Namespaces []Namespace `json:"namespaces"`
}

// legacyReport is the pre-multi-namespace schema: a bare Config plus an
// optional namespace_id/namespace_pid pair, accepted for backward
// compatibility.
type legacyReport struct {
	NamespaceID  *string `json:"namespace_id"`
	NamespacePID *int    `json:"namespace_pid"`
	Config
}

// ansiEscape matches terminal color/cursor escape sequences that can end up
// interleaved in captured pod logs.
var ansiEscape = regexp.MustCompile("\x1b\\[[0-9;]*[a-zA-Z]")

// StripANSI removes terminal escape sequences from raw pod log text before
// JSON parsing.
func StripANSI(s string) string {
	return ansiEscape.ReplaceAllString(s, "")
}

// Parse decodes a probe pod's log output (after ANSI stripping) into a
// Report, accepting both the current multi-namespace schema and the legacy
// single-namespace shape.
func Parse(raw string) (*Report, error) {
	clean := StripANSI(raw)

	var multi Report
	if err := json.Unmarshal([]byte(clean), &multi); err == nil && len(multi.Namespaces) > 0 {
		return &multi, nil
	}

	var legacy legacyReport
	if err := json.Unmarshal([]byte(clean), &legacy); err != nil {
		return nil, fmt.Errorf("parse hca probe output: %w", err)
	}

	ns := Namespace{NamespaceType: NamespaceHost, Config: legacy.Config}
	if legacy.NamespaceID != nil {
		ns.NamespaceID = *legacy.NamespaceID
	}
	ns.PID = legacy.NamespacePID

	return &Report{Namespaces: []Namespace{ns}}, nil
}

// Aggregate merges every namespace's Config in a Report into one, deduplicating
// HCA names and summing GID index counts. MismatchedGID is set when two
// namespaces disagree on their selected GID index.
type Aggregate struct {
	ActiveHCAs     []string
	NCCLHCAs       []string
	UCXHCAs        []string
	GIDIndexCounts map[int]int
	MismatchedGID  bool
}

// Aggregate combines every namespace's HCA configuration into a single
// deduplicated view, flagging a GID index disagreement across namespaces.
func (r *Report) Aggregate() Aggregate {
	agg := Aggregate{GIDIndexCounts: map[int]int{}}

	activeSeen := map[string]bool{}
	ncclSeen := map[string]bool{}
	ucxSeen := map[string]bool{}

	var firstGID *int
	for _, ns := range r.Namespaces {
		for _, h := range ns.Config.ActiveHCAs {
			if !activeSeen[h] {
				activeSeen[h] = true
				agg.ActiveHCAs = append(agg.ActiveHCAs, h)
			}
		}
		for _, h := range ns.Config.NCCLHCAs {
			if !ncclSeen[h] {
				ncclSeen[h] = true
				agg.NCCLHCAs = append(agg.NCCLHCAs, h)
			}
		}
		for _, h := range ns.Config.UCXHCAs {
			if !ucxSeen[h] {
				ucxSeen[h] = true
				agg.UCXHCAs = append(agg.UCXHCAs, h)
			}
		}
		for idx, count := range ns.Config.GIDIndexCounts {
			agg.GIDIndexCounts[idx] += count
		}
		if ns.Config.GIDIndex != nil {
			if firstGID == nil {
				firstGID = ns.Config.GIDIndex
			} else if *firstGID != *ns.Config.GIDIndex {
				agg.MismatchedGID = true
			}
		}
	}

	return agg
}
