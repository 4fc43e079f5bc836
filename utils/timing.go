package utils

import (
	"fmt"
	"io"
	"os"
	"time"
)

// Verbose controls whether timing statistics are printed.
// Set to false to suppress output.
var Verbose = true

// Output is the writer where timing statistics are printed.
// Defaults to os.Stdout.
var Output io.Writer = os.Stdout

// TimingStats holds timing information for the phases of a check run
type TimingStats struct {
	TotalTime       time.Duration
	BackendInitTime time.Duration
	GraphBuildTime  time.Duration
	EvalTime        time.Duration
	RevealTime      time.Duration
	CompareTime     time.Duration
}

// Add accumulates another run's timings into s.
func (s *TimingStats) Add(o *TimingStats) {
	s.TotalTime += o.TotalTime
	s.BackendInitTime += o.BackendInitTime
	s.GraphBuildTime += o.GraphBuildTime
	s.EvalTime += o.EvalTime
	s.RevealTime += o.RevealTime
	s.CompareTime += o.CompareTime
}

// PrintTimingStats prints detailed timing statistics.
// Respects the Verbose flag - does nothing if Verbose is false.
func PrintTimingStats(stats *TimingStats, cases int) {
	if !Verbose {
		return
	}
	fmt.Fprintln(Output, "\n=== TIMING STATISTICS ===")
	fmt.Fprintf(Output, "Total time: %v\n", stats.TotalTime)
	fmt.Fprintf(Output, "Average time per case: %v\n", stats.TotalTime/time.Duration(cases))
	fmt.Fprintf(Output, "Cases completed: %d\n", cases)
	fmt.Fprintln(Output, "\nBreakdown by phase:")
	fmt.Fprintf(Output, "  Backend init: %v (%.1f%%)\n", stats.BackendInitTime, float64(stats.BackendInitTime)/float64(stats.TotalTime)*100)
	fmt.Fprintf(Output, "  Graph build: %v (%.1f%%)\n", stats.GraphBuildTime, float64(stats.GraphBuildTime)/float64(stats.TotalTime)*100)
	fmt.Fprintf(Output, "  Evaluation: %v (%.1f%%)\n", stats.EvalTime, float64(stats.EvalTime)/float64(stats.TotalTime)*100)
	fmt.Fprintf(Output, "  Reveal: %v (%.1f%%)\n", stats.RevealTime, float64(stats.RevealTime)/float64(stats.TotalTime)*100)
	fmt.Fprintf(Output, "  Compare: %v (%.1f%%)\n", stats.CompareTime, float64(stats.CompareTime)/float64(stats.TotalTime)*100)
}

// DurationUS converts any time.Duration to micro-seconds as float64
func DurationUS(d time.Duration) float64 {
	return float64(d.Nanoseconds()) / 1_000.0
}
