// Package scenario holds end-to-end checks that run against a live server
// through testclient.
package scenario

import (
	"fmt"
	"io"
	"math"
	"strings"
	"sync/atomic"
	"time"
)

// Verbose prints each scenario step as it happens.
var Verbose = false

// nameSeq seeds from the clock so reruns against one database pick fresh
// account and character names.
var nameSeq atomic.Uint64

func init() {
	nameSeq.Store(uint64(time.Now().UnixMilli() % (26 * 26 * 26 * 26)))
}

// uniqueName appends a letters-only suffix; character names reject digits.
func uniqueName(base string) string {
	return base + counterToLetters(nameSeq.Add(1))
}

// counterToLetters writes n in bijective base 26: 1=a, 26=z, 27=aa. Zero is "a".
func counterToLetters(n uint64) string {
	if n == 0 {
		return "a"
	}
	var buf [16]byte
	i := len(buf)
	for n > 0 {
		n--
		i--
		buf[i] = byte('a' + n%26)
		n /= 26
	}
	return string(buf[i:])
}

// TestResult is the outcome of one scenario.
type TestResult struct {
	Name     string
	Passed   bool
	Message  string
	Duration time.Duration
}

func pass(name, msg string) TestResult {
	return TestResult{Name: name, Passed: true, Message: msg}
}

func fail(name, format string, args ...any) TestResult {
	return TestResult{Name: name, Message: fmt.Sprintf(format, args...)}
}

func logAction(scenario, action string) {
	if Verbose {
		fmt.Printf("  [%s] %s\n", scenario, action)
	}
}

func logResult(scenario string, ok bool, detail string) {
	if !Verbose {
		return
	}
	mark := "OK"
	if !ok {
		mark = "FAIL"
	}
	fmt.Printf("  [%s] %s: %s\n", scenario, mark, detail)
}

func near(a, b float64) bool {
	return math.Abs(a-b) < 1e-6
}

// Scenario is one end-to-end check.
type Scenario func(baseURL string) TestResult

// All lists every scenario in run order.
var All = []Scenario{
	// accounts
	TestHealth,
	TestAccountSystem,
	TestCharacterOwnership,

	// progression
	TestLevelUp,
	TestAllocateAndTierUp,
	TestGearBigNumbers,
	TestPrestigeAndParagon,
	TestPreview,

	// push socket
	TestSheetPush,
}

// RunAllTests runs every scenario in order against baseURL.
func RunAllTests(baseURL string) []TestResult {
	results := make([]TestResult, 0, len(All))
	for _, run := range All {
		start := time.Now()
		r := run(baseURL)
		r.Duration = time.Since(start)
		results = append(results, r)
	}
	return results
}

// PrintResults writes one line per result and a pass/fail tally.
func PrintResults(out io.Writer, results []TestResult) {
	rule := strings.Repeat("=", 60)
	fmt.Fprintf(out, "%s\nScenario Results\n%s\n\n", rule, rule)

	failed := 0
	for _, r := range results {
		mark := "PASS"
		if !r.Passed {
			mark = "FAIL"
			failed++
		}
		fmt.Fprintf(out, "[%s] %-24s %6s  %s\n", mark, r.Name, r.Duration.Round(time.Millisecond), r.Message)
	}

	fmt.Fprintf(out, "\n%s\nTotal: %d | Passed: %d | Failed: %d\n",
		strings.Repeat("-", 60), len(results), len(results)-failed, failed)
}
