package mpc

import (
	"math"
	"reflect"
	"testing"

	"mpcten/tensor"
)

const shareTol = 1e-3

func sharingBackends(t *testing.T) []Backend {
	t.Helper()
	snn, err := NewSecureNN(nil)
	if err != nil {
		t.Fatal(err)
	}
	hlx, err := NewHelix(nil)
	if err != nil {
		t.Fatal(err)
	}
	return []Backend{snn, hlx}
}

func requireClose(t *testing.T, got, want *tensor.Tensor, tol float64) {
	t.Helper()
	if len(got.Data) != len(want.Data) {
		t.Fatalf("size %d, want %d", len(got.Data), len(want.Data))
	}
	for i := range want.Data {
		if math.Abs(got.Data[i]-want.Data[i]) > tol {
			t.Fatalf("at %d: got %v, want %v (tol %v)", i, got.Data[i], want.Data[i], tol)
		}
	}
}

func TestShareRevealRoundTrip(t *testing.T) {
	for _, b := range sharingBackends(t) {
		t.Run(b.Name(), func(t *testing.T) {
			defer b.Close()
			x := tensor.NewWithShape([]float64{21.34, -11.43, 6.291, 6.311}, 2, 2)
			st, err := b.Share(x)
			if err != nil {
				t.Fatal(err)
			}
			got, err := b.Reveal(st)
			if err != nil {
				t.Fatal(err)
			}
			requireClose(t, got, x, shareTol)
		})
	}
}

func TestSumAxesMatchesPlaintext(t *testing.T) {
	x := tensor.NewWithShape([]float64{1.5, -2.25, 3.75, 0.5}, 2, 2)
	specs := []tensor.AxisSpec{tensor.ReduceAll(), tensor.Axis(0), tensor.Axis(1), tensor.Axes(0, 1)}
	for _, b := range sharingBackends(t) {
		t.Run(b.Name(), func(t *testing.T) {
			defer b.Close()
			for _, spec := range specs {
				want, err := tensor.SumAxes(x, spec)
				if err != nil {
					t.Fatal(err)
				}
				st, err := b.Share(x)
				if err != nil {
					t.Fatal(err)
				}
				sum, err := b.SumAxes(st, spec)
				if err != nil {
					t.Fatal(err)
				}
				got, err := b.Reveal(sum)
				if err != nil {
					t.Fatal(err)
				}
				requireClose(t, got, want, shareTol)
			}
		})
	}
}

func TestMeanMatchesPlaintext(t *testing.T) {
	x := tensor.NewWithShape([]float64{21.34, -11.43, 6.291, 6.311}, 2, 2)
	specs := []tensor.AxisSpec{tensor.ReduceAll(), tensor.Axis(0), tensor.Axis(1), tensor.Axes(0, 1)}
	for _, b := range sharingBackends(t) {
		t.Run(b.Name(), func(t *testing.T) {
			defer b.Close()
			for _, spec := range specs {
				want, err := tensor.MeanAxes(x, spec)
				if err != nil {
					t.Fatal(err)
				}
				st, err := b.Share(x)
				if err != nil {
					t.Fatal(err)
				}
				m, err := Mean(b, st, spec)
				if err != nil {
					t.Fatal(err)
				}
				got, err := b.Reveal(m)
				if err != nil {
					t.Fatal(err)
				}
				requireClose(t, got, want, shareTol)
			}
		})
	}
}

func TestScaleConstNegative(t *testing.T) {
	x := tensor.NewWithData([]float64{4.5, -3.25})
	for _, b := range sharingBackends(t) {
		t.Run(b.Name(), func(t *testing.T) {
			defer b.Close()
			st, err := b.Share(x)
			if err != nil {
				t.Fatal(err)
			}
			scaled, err := b.ScaleConst(st, -0.5)
			if err != nil {
				t.Fatal(err)
			}
			got, err := b.Reveal(scaled)
			if err != nil {
				t.Fatal(err)
			}
			requireClose(t, got, tensor.NewWithData([]float64{-2.25, 1.625}), shareTol)
		})
	}
}

func TestCrossBackendRevealRejected(t *testing.T) {
	bs := sharingBackends(t)
	defer bs[0].Close()
	defer bs[1].Close()
	st, err := bs[0].Share(tensor.NewWithData([]float64{1}))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := bs[1].Reveal(st); err == nil {
		t.Fatal("expected ownership error")
	}
}

func TestClosedBackend(t *testing.T) {
	b, err := NewSecureNN(nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := b.Close(); err != nil {
		t.Fatal(err)
	}
	if _, err := b.Share(tensor.NewWithData([]float64{1})); err == nil {
		t.Fatal("expected closed-backend error")
	}
	// Closing twice is fine.
	if err := b.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestBadAxisRejectedBeforeParties(t *testing.T) {
	for _, b := range sharingBackends(t) {
		t.Run(b.Name(), func(t *testing.T) {
			defer b.Close()
			st, err := b.Share(tensor.NewWithShape([]float64{1, 2, 3, 4}, 2, 2))
			if err != nil {
				t.Fatal(err)
			}
			if _, err := b.SumAxes(st, tensor.Axis(5)); err == nil {
				t.Fatal("expected axis range error")
			}
			// Backend must still be usable afterwards.
			got, err := b.Reveal(st)
			if err != nil {
				t.Fatal(err)
			}
			if got.Size() != 4 {
				t.Fatalf("got %d elements", got.Size())
			}
		})
	}
}

func TestRegistry(t *testing.T) {
	for _, name := range []string{"Helix", "helix", "SecureNN", "securenn", "CKKS"} {
		if name == "CKKS" && testing.Short() {
			continue
		}
		b, err := Open(name)
		if err != nil {
			t.Fatalf("Open(%q): %v", name, err)
		}
		b.Close()
	}
	if _, err := Open("Wolverine"); err == nil {
		t.Fatal("expected unknown protocol error")
	}
	want := []string{"CKKS", "Helix", "SecureNN"}
	if got := Protocols(); !reflect.DeepEqual(got, want) {
		t.Fatalf("Protocols() = %v, want %v", got, want)
	}
}

// Two backends opened in sequence must be independent: closing the first
// cannot affect tensors shared under the second.
func TestBackendIsolation(t *testing.T) {
	first, err := Open("SecureNN")
	if err != nil {
		t.Fatal(err)
	}
	second, err := Open("Helix")
	if err != nil {
		t.Fatal(err)
	}
	defer second.Close()

	st, err := second.Share(tensor.NewWithData([]float64{0.77}))
	if err != nil {
		t.Fatal(err)
	}
	first.Close()
	got, err := second.Reveal(st)
	if err != nil {
		t.Fatal(err)
	}
	requireClose(t, got, tensor.NewWithData([]float64{0.77}), shareTol)
}
