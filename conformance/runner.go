package conformance

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"mpcten/engine"
	"mpcten/mpc"
	"mpcten/tensor"
	"mpcten/utils"
)

// Default tolerances per protocol family. Fixed-point secret sharing is
// accurate to well under one ulp at 16 fractional bits; CKKS carries
// approximation noise and gets a looser bound.
const (
	DefaultTolerance     = 1e-3
	DefaultCKKSTolerance = 1e-2
)

// Runner executes conformance cases. The zero value runs with default
// tolerances and writes to os.Stdout.
type Runner struct {
	Tolerance float64 // 0 means per-protocol default
	Verbose   bool
	Out       io.Writer
	LogDir    string // non-empty: write a graph trace per case
	Stats     *utils.TimingStats
}

// Result is the outcome of one case.
type Result struct {
	Case     Case
	Revealed []*tensor.Tensor
	MaxDiff  float64
	Pass     bool
	Err      error
}

func (r *Runner) out() io.Writer {
	if r.Out != nil {
		return r.Out
	}
	return os.Stdout
}

func (r *Runner) tolerance(protocol string) float64 {
	if r.Tolerance > 0 {
		return r.Tolerance
	}
	if strings.EqualFold(protocol, "CKKS") {
		return DefaultCKKSTolerance
	}
	return DefaultTolerance
}

// Run executes one case under a fresh backend and session: build the
// graph, take the gradient of the secure mean with respect to the input
// variable, reveal it, and compare against the case's expected gradient.
func (r *Runner) Run(c Case) Result {
	res := Result{Case: c}
	stats := &utils.TimingStats{}
	start := time.Now()
	defer func() {
		stats.TotalTime = time.Since(start)
		if r.Stats != nil {
			r.Stats.Add(stats)
		}
	}()

	t0 := time.Now()
	backend, err := mpc.Open(c.Protocol)
	stats.BackendInitTime = time.Since(t0)
	if err != nil {
		res.Err = fmt.Errorf("open %s: %w", c.Protocol, err)
		return res
	}
	defer backend.Close()

	t0 = time.Now()
	g := engine.NewGraph()
	x := g.Variable("X", c.Fixture)
	mean, err := g.SecureMean(x, c.Axis)
	if err != nil {
		res.Err = err
		return res
	}
	v, err := engine.VarOf(mean)
	if err != nil {
		res.Err = err
		return res
	}
	grads, err := g.Gradients(mean, []*engine.Node{v})
	if err != nil {
		res.Err = fmt.Errorf("gradients: %w", err)
		return res
	}
	reveals := make([]*engine.Node, len(grads))
	for i, gn := range grads {
		reveals[i] = g.SecureReveal(gn)
	}
	stats.GraphBuildTime = time.Since(t0)

	sess := engine.NewSession(g, backend)
	defer sess.Close()
	if err := sess.InitVariables(); err != nil {
		res.Err = err
		return res
	}

	t0 = time.Now()
	revealed := make([]*tensor.Tensor, len(reveals))
	for i, rn := range reveals {
		out, err := sess.RunTensor(rn)
		if err != nil {
			res.Err = fmt.Errorf("reveal gradient %d: %w", i, err)
			return res
		}
		revealed[i] = out
	}
	stats.EvalTime = time.Since(t0)
	res.Revealed = revealed

	expected := c.Expected
	if expected == nil {
		expected, err = ReferenceGrad(c.Fixture.Shape, c.Axis)
		if err != nil {
			res.Err = fmt.Errorf("reference gradient: %w", err)
			return res
		}
	}

	t0 = time.Now()
	res.Pass, res.MaxDiff = CheckGrads([]*tensor.Tensor{expected}, revealed, r.tolerance(c.Protocol))
	stats.CompareTime = time.Since(t0)

	if r.LogDir != "" {
		name := strings.NewReplacer("/", "_", "=", "_", ",", "").Replace(c.Name)
		if _, err := g.WriteTrace(r.LogDir, name); err != nil && r.Verbose {
			fmt.Fprintf(r.out(), "trace %s: %v\n", c.Name, err)
		}
	}
	if r.Verbose {
		fmt.Fprintf(r.out(), "%-24s max|diff|=%.2e ", c.Name, res.MaxDiff)
		PrintCheckResult(r.out(), res.Pass)
	}
	return res
}

// RunAll executes every case in order and aggregates the results.
func (r *Runner) RunAll(cases []Case) *Summary {
	s := &Summary{}
	for _, c := range cases {
		s.Results = append(s.Results, r.Run(c))
	}
	return s
}
