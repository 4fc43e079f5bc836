package engine

import (
	"fmt"

	"mpcten/mpc"
	"mpcten/tensor"
)

// op evaluates one node given its input values. Values are either
// *tensor.Tensor (plaintext) or *mpc.SecureTensor.
type op interface {
	kind() string
	exec(s *Session, n *Node, inputs []interface{}) (interface{}, error)
}

// differentiable ops contribute gradient nodes for their inputs given
// the gradient node of their output.
type differentiable interface {
	backward(g *Graph, n *Node, gradOut *Node) ([]*Node, error)
}

type opVariable struct {
	initial *tensor.Tensor
}

func (o *opVariable) kind() string { return "Variable" }

func (o *opVariable) exec(s *Session, n *Node, _ []interface{}) (interface{}, error) {
	v, ok := s.vars[n]
	if !ok {
		return nil, fmt.Errorf("variable %s is not initialized; run InitVariables first", n.name)
	}
	return v, nil
}

type opConst struct {
	value *tensor.Tensor
}

func (o *opConst) kind() string { return "Const" }

func (o *opConst) exec(_ *Session, _ *Node, _ []interface{}) (interface{}, error) {
	return o.value.Clone(), nil
}

type opSecureMean struct {
	spec tensor.AxisSpec
}

func (o *opSecureMean) kind() string { return "SecureMean" }

func (o *opSecureMean) exec(s *Session, n *Node, inputs []interface{}) (interface{}, error) {
	st, err := asSecure(s, inputs[0])
	if err != nil {
		return nil, fmt.Errorf("%s: %w", n.name, err)
	}
	return mpc.Mean(s.backend, st, o.spec)
}

// backward: the mean distributes its upstream gradient evenly across the
// elements it folded, so each input element receives upstream/count.
func (o *opSecureMean) backward(g *Graph, n *Node, gradOut *Node) ([]*Node, error) {
	x := n.inputs[0]
	gx := g.add(
		&opMeanGrad{spec: o.spec, inShape: x.Shape()},
		fmt.Sprintf("SecureMeanGrad(%s)", x.name),
		x.shape,
		gradOut,
	)
	return []*Node{gx}, nil
}

// opMeanGrad broadcasts the upstream gradient back to the input shape
// and scales by the reciprocal fold count, under the session's backend
// so the produced gradient is a secure tensor.
type opMeanGrad struct {
	spec    tensor.AxisSpec
	inShape []int
}

func (o *opMeanGrad) kind() string { return "SecureMeanGrad" }

func (o *opMeanGrad) exec(s *Session, n *Node, inputs []interface{}) (interface{}, error) {
	up, ok := inputs[0].(*tensor.Tensor)
	if !ok {
		return nil, fmt.Errorf("%s: secure upstream gradients are not supported", n.name)
	}
	bcast, err := tensor.BroadcastAxes(up, o.inShape, o.spec)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", n.name, err)
	}
	st, err := s.backend.Share(bcast)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", n.name, err)
	}
	count, err := o.spec.ReduceCount(o.inShape)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", n.name, err)
	}
	return s.backend.ScaleConst(st, 1/float64(count))
}

type opSecureReveal struct{}

func (o *opSecureReveal) kind() string { return "SecureReveal" }

func (o *opSecureReveal) exec(s *Session, n *Node, inputs []interface{}) (interface{}, error) {
	st, ok := inputs[0].(*mpc.SecureTensor)
	if !ok {
		// Revealing an already-plain tensor is a no-op.
		return inputs[0], nil
	}
	return s.backend.Reveal(st)
}

// asSecure shares a plaintext value under the session's backend, or
// passes a secure tensor through.
func asSecure(s *Session, v interface{}) (*mpc.SecureTensor, error) {
	switch t := v.(type) {
	case *mpc.SecureTensor:
		return t, nil
	case *tensor.Tensor:
		return s.backend.Share(t)
	default:
		return nil, fmt.Errorf("unsupported value type %T", v)
	}
}
