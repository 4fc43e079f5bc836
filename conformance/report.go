package conformance

import (
	"fmt"
	"io"
	"math"

	"mpcten/tensor"
)

// CheckGrads compares revealed gradients against expected ones
// elementwise with an absolute tolerance. A length or shape mismatch is
// a failure, not an error: a protocol that reveals the wrong number of
// gradients has failed the check.
func CheckGrads(expected, actual []*tensor.Tensor, tol float64) (bool, float64) {
	if len(expected) != len(actual) {
		return false, math.Inf(1)
	}
	maxDiff := 0.0
	ok := true
	for i := range expected {
		e, a := expected[i], actual[i]
		if e.Size() != a.Size() {
			return false, math.Inf(1)
		}
		for j := range e.Data {
			d := math.Abs(e.Data[j] - a.Data[j])
			if d > maxDiff {
				maxDiff = d
			}
			if d > tol || math.IsNaN(d) {
				ok = false
			}
		}
	}
	return ok, maxDiff
}

// PrintCheckResult writes the per-case verdict line.
func PrintCheckResult(w io.Writer, ok bool) {
	if ok {
		fmt.Fprintln(w, "Pass")
	} else {
		fmt.Fprintln(w, "Fail")
	}
}

// Summary aggregates the results of a run.
type Summary struct {
	Results []Result
}

// OK reports whether every case passed and none errored.
func (s *Summary) OK() bool {
	for _, r := range s.Results {
		if r.Err != nil || !r.Pass {
			return false
		}
	}
	return true
}

// Failed returns the results that did not pass.
func (s *Summary) Failed() []Result {
	var out []Result
	for _, r := range s.Results {
		if r.Err != nil || !r.Pass {
			out = append(out, r)
		}
	}
	return out
}

// Print writes a per-case table followed by the overall verdict.
func (s *Summary) Print(w io.Writer) {
	for _, r := range s.Results {
		if r.Err != nil {
			fmt.Fprintf(w, "%-24s error: %v\n", r.Case.Name, r.Err)
			continue
		}
		fmt.Fprintf(w, "%-24s max|diff|=%.2e ", r.Case.Name, r.MaxDiff)
		PrintCheckResult(w, r.Pass)
	}
	fmt.Fprintf(w, "%d/%d cases passed\n", len(s.Results)-len(s.Failed()), len(s.Results))
}
