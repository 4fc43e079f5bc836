package conformance

import (
	"fmt"

	"gonum.org/v1/gonum/floats"

	"mpcten/tensor"
)

// ReferenceGrad is the closed-form gradient of the mean reduction,
// seeded with ones on the output. Every input element feeds exactly one
// output element, so the gradient is uniform: 1/count where count is
// the number of elements folded into each output slot.
func ReferenceGrad(shape []int, spec tensor.AxisSpec) (*tensor.Tensor, error) {
	count, err := spec.ReduceCount(shape)
	if err != nil {
		return nil, err
	}
	grad := tensor.Ones(shape...)
	floats.Scale(1/float64(count), grad.Data)
	return grad, nil
}

// NumericGrad estimates the same gradient by central differences on the
// plaintext mean, summing the output to match the ones seed. It is the
// independent cross-check for ReferenceGrad in tests.
func NumericGrad(x *tensor.Tensor, spec tensor.AxisSpec, eps float64) (*tensor.Tensor, error) {
	if eps <= 0 {
		return nil, fmt.Errorf("eps must be positive, got %g", eps)
	}
	loss := func(t *tensor.Tensor) (float64, error) {
		m, err := tensor.MeanAxes(t, spec)
		if err != nil {
			return 0, err
		}
		return floats.Sum(m.Data), nil
	}
	grad := tensor.New(x.Shape...)
	probe := x.Clone()
	for i := range x.Data {
		probe.Data[i] = x.Data[i] + eps
		up, err := loss(probe)
		if err != nil {
			return nil, err
		}
		probe.Data[i] = x.Data[i] - eps
		down, err := loss(probe)
		if err != nil {
			return nil, err
		}
		probe.Data[i] = x.Data[i]
		grad.Data[i] = (up - down) / (2 * eps)
	}
	return grad, nil
}
