// Command railtopo analyzes a GPU cluster's RDMA topology, selects nodes
// for a distributed workload, and runs two-node RDMA self-tests.
package main

import (
	"fmt"
	"os"

	"github.com/railtopo/railtopo/internal/log"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	var err error
	switch cmd {
	case "analyze":
		err = runAnalyze(args)
	case "select":
		err = runSelect(args)
	case "self-test":
		err = runSelfTest(args)
	case "topology":
		err = runTopology(args)
	case "-h", "--help", "help":
		usage()
		return
	default:
		fmt.Fprintf(os.Stderr, "railtopo: unknown subcommand %q\n", cmd)
		usage()
		os.Exit(2)
	}

	if err != nil {
		logger := log.New("info")
		logger.Error().Err(err).Msg("railtopo: command failed")
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `railtopo — RDMA topology analysis and node selection for GPU clusters

Usage:
  railtopo analyze [flags]        scan the cluster and print a topology report
  railtopo select [flags]         select nodes for a distributed workload
  railtopo self-test [flags]      run a two-node RDMA self-test
  railtopo topology apply [flags] seed node topology labels from a file

Run "railtopo <subcommand> -h" for subcommand flags.`)
}
