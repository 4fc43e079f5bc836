package utils

import (
	"bytes"
	"math"
	"strings"
	"testing"
	"time"
)

func TestDurationUS(t *testing.T) {
	d := 1234*time.Microsecond + 567*time.Nanosecond
	got := DurationUS(d)
	if math.Abs(got-1234.567) > 0.001 {
		t.Fatalf("want 1234.567µs, got %.3f", got)
	}
}

func TestTimingStatsAdd(t *testing.T) {
	a := &TimingStats{TotalTime: time.Second, EvalTime: 300 * time.Millisecond}
	b := &TimingStats{TotalTime: 2 * time.Second, RevealTime: 100 * time.Millisecond}
	a.Add(b)
	if a.TotalTime != 3*time.Second {
		t.Fatalf("total: got %v", a.TotalTime)
	}
	if a.EvalTime != 300*time.Millisecond || a.RevealTime != 100*time.Millisecond {
		t.Fatalf("phases: got %v / %v", a.EvalTime, a.RevealTime)
	}
}

func TestPrintTimingStatsRespectsVerbose(t *testing.T) {
	oldVerbose, oldOut := Verbose, Output
	defer func() { Verbose, Output = oldVerbose, oldOut }()

	var buf bytes.Buffer
	Output = &buf
	stats := &TimingStats{TotalTime: time.Second, EvalTime: time.Second / 2}

	Verbose = false
	PrintTimingStats(stats, 3)
	if buf.Len() != 0 {
		t.Fatalf("expected no output when Verbose=false, got %q", buf.String())
	}

	Verbose = true
	PrintTimingStats(stats, 3)
	if !strings.Contains(buf.String(), "TIMING STATISTICS") {
		t.Fatalf("missing header in %q", buf.String())
	}
}
