package tensor

import (
	"fmt"
	"sort"
)

// AxisSpec selects which dimensions a reduction folds. A zero-value
// AxisSpec (or ReduceAll) folds every dimension, matching the axis=None
// convention of numeric frameworks.
type AxisSpec struct {
	axes []int
	all  bool
}

// ReduceAll folds every dimension.
func ReduceAll() AxisSpec {
	return AxisSpec{all: true}
}

// Axis folds a single dimension.
func Axis(i int) AxisSpec {
	return AxisSpec{axes: []int{i}}
}

// Axes folds the given dimensions.
func Axes(is ...int) AxisSpec {
	return AxisSpec{axes: append([]int(nil), is...)}
}

// All reports whether the spec folds every dimension.
func (a AxisSpec) All() bool {
	return a.all || len(a.axes) == 0
}

// List returns the folded axes, or nil for a reduce-all spec.
func (a AxisSpec) List() []int {
	if a.All() {
		return nil
	}
	return append([]int(nil), a.axes...)
}

// String renders the spec the way it is written in config files:
// "none", "0", or "0,1".
func (a AxisSpec) String() string {
	if a.All() {
		return "none"
	}
	s := ""
	for i, ax := range a.axes {
		if i > 0 {
			s += ","
		}
		s += fmt.Sprintf("%d", ax)
	}
	return s
}

// normalize resolves the spec against a rank: returns the sorted, unique
// folded axes. A reduce-all spec folds every axis of the rank.
func (a AxisSpec) normalize(rank int) ([]int, error) {
	if a.All() {
		axes := make([]int, rank)
		for i := range axes {
			axes[i] = i
		}
		return axes, nil
	}
	seen := make(map[int]bool, len(a.axes))
	axes := make([]int, 0, len(a.axes))
	for _, ax := range a.axes {
		if ax < 0 || ax >= rank {
			return nil, fmt.Errorf("axis %d out of range for rank %d", ax, rank)
		}
		if seen[ax] {
			return nil, fmt.Errorf("duplicate axis %d", ax)
		}
		seen[ax] = true
		axes = append(axes, ax)
	}
	sort.Ints(axes)
	return axes, nil
}

// ReducedShape returns the shape after folding the spec's axes out of
// shape. Folding every axis yields the scalar shape [1].
func (a AxisSpec) ReducedShape(shape []int) ([]int, error) {
	axes, err := a.normalize(len(shape))
	if err != nil {
		return nil, err
	}
	folded := make(map[int]bool, len(axes))
	for _, ax := range axes {
		folded[ax] = true
	}
	out := make([]int, 0, len(shape))
	for i, d := range shape {
		if !folded[i] {
			out = append(out, d)
		}
	}
	if len(out) == 0 {
		out = []int{1}
	}
	return out, nil
}

// ReduceCount returns the number of input elements folded into each
// output element.
func (a AxisSpec) ReduceCount(shape []int) (int, error) {
	axes, err := a.normalize(len(shape))
	if err != nil {
		return 0, err
	}
	n := 1
	for _, ax := range axes {
		n *= shape[ax]
	}
	return n, nil
}

// IndexMap returns, for each flat input index, the flat output index it
// folds into, together with the reduced shape. Shared by SumAxes and
// BroadcastAxes so the two stay exact inverses; protocol parties use it
// to fold share vectors without decoding them.
func (a AxisSpec) IndexMap(shape []int) ([]int, []int, error) {
	outShape, err := a.ReducedShape(shape)
	if err != nil {
		return nil, nil, err
	}
	axes, _ := a.normalize(len(shape))
	folded := make(map[int]bool, len(axes))
	for _, ax := range axes {
		folded[ax] = true
	}

	// Strides of the kept dimensions inside the output tensor.
	outStride := make([]int, len(shape))
	stride := 1
	for i := len(shape) - 1; i >= 0; i-- {
		if !folded[i] {
			outStride[i] = stride
			stride *= shape[i]
		}
	}

	total := 1
	for _, d := range shape {
		total *= d
	}
	idxMap := make([]int, total)
	idx := make([]int, len(shape))
	for flat := 0; flat < total; flat++ {
		out := 0
		for i := range idx {
			if !folded[i] {
				out += idx[i] * outStride[i]
			}
		}
		idxMap[flat] = out
		// Advance the multi-index, last dimension fastest.
		for i := len(idx) - 1; i >= 0; i-- {
			idx[i]++
			if idx[i] < shape[i] {
				break
			}
			idx[i] = 0
		}
	}
	return idxMap, outShape, nil
}

// SumAxes folds the spec's axes of t by summation.
func SumAxes(t *Tensor, a AxisSpec) (*Tensor, error) {
	idxMap, outShape, err := a.IndexMap(t.Shape)
	if err != nil {
		return nil, err
	}
	out := New(outShape...)
	for i, v := range t.Data {
		out.Data[idxMap[i]] += v
	}
	return out, nil
}

// MeanAxes folds the spec's axes of t by arithmetic mean.
func MeanAxes(t *Tensor, a AxisSpec) (*Tensor, error) {
	sum, err := SumAxes(t, a)
	if err != nil {
		return nil, err
	}
	n, _ := a.ReduceCount(t.Shape)
	return Scale(sum, 1/float64(n)), nil
}

// BroadcastAxes expands a reduced tensor g back to inShape: every input
// position receives the value of the output position it folded into.
// This is the adjoint of SumAxes, which makes the mean gradient
// BroadcastAxes(upstream)/ReduceCount.
func BroadcastAxes(g *Tensor, inShape []int, a AxisSpec) (*Tensor, error) {
	idxMap, outShape, err := a.IndexMap(inShape)
	if err != nil {
		return nil, err
	}
	if gsz, osz := g.Size(), sizeOf(outShape); gsz != osz {
		return nil, fmt.Errorf("broadcast source has %d elements, reduction of %v has %d", gsz, inShape, osz)
	}
	out := New(inShape...)
	for i := range out.Data {
		out.Data[i] = g.Data[idxMap[i]]
	}
	return out, nil
}

func sizeOf(shape []int) int {
	n := 1
	for _, d := range shape {
		n *= d
	}
	return n
}
