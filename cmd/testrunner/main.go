// Command testrunner drives the end-to-end scenarios against a running ascendd.
package main

import (
	"flag"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/lawnchairsociety/ascend/server/internal/scenario"
)

func main() {
	addr := flag.String("addr", "http://localhost:8080", "base URL of the ascendd HTTP listener")
	flag.BoolVar(&scenario.Verbose, "v", false, "log each scenario step")
	flag.Parse()

	base := strings.TrimRight(*addr, "/")
	fmt.Fprintf(os.Stderr, "Running %d scenarios against %s\n\n", len(scenario.All), base)

	results := scenario.RunAllTests(base)
	scenario.PrintResults(os.Stdout, results)

	if slices.ContainsFunc(results, func(r scenario.TestResult) bool { return !r.Passed }) {
		os.Exit(1)
	}
}
