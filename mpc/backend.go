package mpc

import (
	"fmt"
	"sort"
	"strings"

	"mpcten/tensor"
)

// SecureTensor is a tensor whose values are protocol-protected until
// revealed. The payload is owned by the backend that produced it.
type SecureTensor struct {
	shape   []int
	backend string
	payload interface{}
}

// Shape returns a copy of the tensor's shape.
func (st *SecureTensor) Shape() []int {
	return append([]int(nil), st.shape...)
}

// Backend is a secure tensor backend: one cryptographic protocol's view
// of sharing, evaluating and revealing tensors. Backends are values; two
// open backends never share state, so switching protocols between test
// cases cannot leak.
type Backend interface {
	Name() string
	// Share protects a plaintext tensor.
	Share(t *tensor.Tensor) (*SecureTensor, error)
	// Reveal reconstructs the plaintext of a secure tensor.
	Reveal(st *SecureTensor) (*tensor.Tensor, error)
	// SumAxes folds the spec's axes of a secure tensor by summation.
	SumAxes(st *SecureTensor, spec tensor.AxisSpec) (*SecureTensor, error)
	// ScaleConst multiplies a secure tensor by a public constant.
	ScaleConst(st *SecureTensor, c float64) (*SecureTensor, error)
	// Close releases the backend's parties and keys.
	Close() error
}

// Mean computes the secure mean over the spec's axes: a sum fold scaled
// by the reciprocal of the fold count.
func Mean(b Backend, st *SecureTensor, spec tensor.AxisSpec) (*SecureTensor, error) {
	n, err := spec.ReduceCount(st.Shape())
	if err != nil {
		return nil, err
	}
	sum, err := b.SumAxes(st, spec)
	if err != nil {
		return nil, err
	}
	return b.ScaleConst(sum, 1/float64(n))
}

// checkOwned verifies a secure tensor belongs to the given backend.
func checkOwned(b Backend, st *SecureTensor) error {
	if st.backend != b.Name() {
		return fmt.Errorf("tensor shared under %q, not %q", st.backend, b.Name())
	}
	return nil
}

// Factory constructs a fresh backend instance.
type Factory func() (Backend, error)

type registered struct {
	name    string
	factory Factory
}

var registry = map[string]registered{}

// Register adds a protocol under its canonical name.
func Register(name string, f Factory) {
	registry[strings.ToLower(name)] = registered{name: name, factory: f}
}

// Open constructs a backend for the named protocol. Names are matched
// case-insensitively.
func Open(name string) (Backend, error) {
	r, ok := registry[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("unknown protocol %q (have %s)", name, strings.Join(Protocols(), ", "))
	}
	return r.factory()
}

// Protocols returns the registered protocol names in their canonical
// spelling, sorted.
func Protocols() []string {
	names := make([]string, 0, len(registry))
	for _, r := range registry {
		names = append(names, r.name)
	}
	sort.Strings(names)
	return names
}
