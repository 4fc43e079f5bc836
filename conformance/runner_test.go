package conformance

import (
	"bytes"
	"math"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"mpcten/tensor"
	"mpcten/utils"
)

func TestTableCasesPass(t *testing.T) {
	cases := Cases()
	require.Len(t, cases, 18)

	stats := &utils.TimingStats{}
	r := &Runner{Stats: stats}
	summary := r.RunAll(cases)
	for _, res := range summary.Results {
		require.NoError(t, res.Err, res.Case.Name)
		require.Truef(t, res.Pass, "%s: max|diff|=%g", res.Case.Name, res.MaxDiff)
	}
	require.True(t, summary.OK())
	require.Empty(t, summary.Failed())
	require.Positive(t, stats.TotalTime)
}

func TestCKKSCasesPass(t *testing.T) {
	if testing.Short() {
		t.Skip("CKKS key generation is slow")
	}
	r := &Runner{}
	summary := r.RunAll(CasesFor([]string{"CKKS"}))
	for _, res := range summary.Results {
		require.NoError(t, res.Err, res.Case.Name)
		require.Truef(t, res.Pass, "%s: max|diff|=%g", res.Case.Name, res.MaxDiff)
	}
}

func TestReferenceMatchesTable(t *testing.T) {
	for _, row := range rows() {
		ref, err := ReferenceGrad(row.fixture.Shape, row.axis)
		require.NoError(t, err, row.name)
		require.Equal(t, row.expected.Shape, ref.Shape, row.name)
		for i := range ref.Data {
			require.InDelta(t, row.expected.Data[i], ref.Data[i], 1e-12, row.name)
		}
	}
}

func TestNumericGradMatchesReference(t *testing.T) {
	x := tensor.NewWithShape([]float64{21.34, -11.43, 6.291, 6.311}, 2, 2)
	for _, spec := range []tensor.AxisSpec{
		tensor.ReduceAll(), tensor.Axis(0), tensor.Axis(1), tensor.Axes(0, 1),
	} {
		ref, err := ReferenceGrad(x.Shape, spec)
		require.NoError(t, err)
		num, err := NumericGrad(x, spec, 1e-5)
		require.NoError(t, err)
		for i := range ref.Data {
			require.InDelta(t, ref.Data[i], num.Data[i], 1e-6, "axis=%s", spec)
		}
	}

	_, err := NumericGrad(x, tensor.ReduceAll(), 0)
	require.Error(t, err)
}

func TestCheckGrads(t *testing.T) {
	a := tensor.NewWithData([]float64{0.25, 0.25})
	b := tensor.NewWithData([]float64{0.25, 0.2504})

	ok, diff := CheckGrads([]*tensor.Tensor{a}, []*tensor.Tensor{b}, 1e-3)
	require.True(t, ok)
	require.InDelta(t, 4e-4, diff, 1e-9)

	ok, _ = CheckGrads([]*tensor.Tensor{a}, []*tensor.Tensor{b}, 1e-5)
	require.False(t, ok)

	// A missing or extra gradient is a failed check.
	ok, diff = CheckGrads([]*tensor.Tensor{a}, nil, 1e-3)
	require.False(t, ok)
	require.True(t, math.IsInf(diff, 1))

	shapeMismatch := tensor.NewWithData([]float64{0.25})
	ok, _ = CheckGrads([]*tensor.Tensor{a}, []*tensor.Tensor{shapeMismatch}, 1e-3)
	require.False(t, ok)
}

func TestSummaryOKRequiresAllPass(t *testing.T) {
	s := &Summary{Results: []Result{
		{Case: Case{Name: "a"}, Pass: true},
		{Case: Case{Name: "b"}, Pass: false},
	}}
	require.False(t, s.OK())
	require.Len(t, s.Failed(), 1)

	var buf bytes.Buffer
	s.Print(&buf)
	require.Contains(t, buf.String(), "1/2 cases passed")
}

func TestUnknownProtocolErrors(t *testing.T) {
	r := &Runner{}
	res := r.Run(Case{
		Name:     "X/axis=none/Wolverine",
		Fixture:  tensor.NewWithData([]float64{0.77}),
		Axis:     tensor.ReduceAll(),
		Protocol: "Wolverine",
	})
	require.Error(t, res.Err)
	require.False(t, res.Pass)
}

func TestRunnerWritesTrace(t *testing.T) {
	dir := t.TempDir()
	var buf bytes.Buffer
	r := &Runner{LogDir: dir, Verbose: true, Out: &buf}
	res := r.Run(CasesFor([]string{"SecureNN"})[0])
	require.NoError(t, res.Err)
	require.True(t, res.Pass)
	require.Contains(t, buf.String(), "Pass")

	matches, err := filepath.Glob(filepath.Join(dir, "*.dot"))
	require.NoError(t, err)
	require.NotEmpty(t, matches)
}

func TestCaseFileRoundTrip(t *testing.T) {
	file := TableFile()
	path := filepath.Join(t.TempDir(), "cases.json")
	require.NoError(t, SaveCases(path, file))

	loaded, err := LoadCases(path)
	require.NoError(t, err)
	expanded, err := loaded.Expand()
	require.NoError(t, err)

	// The file expands per fixture, the built-in table per protocol;
	// the same cases come out either way.
	byName := map[string]Case{}
	for _, c := range Cases() {
		byName[c.Name] = c
	}
	require.Len(t, expanded, len(byName))
	for _, c := range expanded {
		want, ok := byName[c.Name]
		require.Truef(t, ok, "unexpected case %s", c.Name)
		require.Equal(t, want.Fixture.Data, c.Fixture.Data, c.Name)
	}

	// Loaded cases run exactly like the built-in table.
	r := &Runner{}
	summary := r.RunAll(expanded[:2])
	require.True(t, summary.OK())
}

func TestLoadCasesRejectsBadData(t *testing.T) {
	_, err := LoadCases(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)

	bad := &CaseFile{Version: "1", Cases: []CaseData{{
		Name:    "bad",
		Fixture: TensorData{Shape: []int{2}, Data: []float64{1}},
	}}}
	_, err = bad.Expand()
	require.Error(t, err)
	require.True(t, strings.Contains(err.Error(), "bad"))
}
