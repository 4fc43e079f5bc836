// Package engine is a small computation-graph executor for secure
// tensor operations: variables, a secure mean reduction, reverse-mode
// gradients, and reveal. Graphs are built symbolically and evaluated by
// a Session bound to an mpc.Backend, so the protocol is an explicit
// per-session value rather than process state.
package engine

import (
	"fmt"

	"mpcten/tensor"
)

// Node is one vertex of a computation graph.
type Node struct {
	id     int
	op     op
	inputs []*Node
	shape  []int
	name   string
}

// Shape returns a copy of the node's static shape.
func (n *Node) Shape() []int {
	return append([]int(nil), n.shape...)
}

// Name returns the node's display name.
func (n *Node) Name() string {
	return n.name
}

// Graph owns a set of nodes. It is not safe for concurrent mutation.
type Graph struct {
	nodes []*Node
}

// NewGraph creates an empty graph.
func NewGraph() *Graph {
	return &Graph{}
}

func (g *Graph) add(o op, name string, shape []int, inputs ...*Node) *Node {
	n := &Node{
		id:     len(g.nodes),
		op:     o,
		inputs: inputs,
		shape:  append([]int(nil), shape...),
		name:   name,
	}
	g.nodes = append(g.nodes, n)
	return n
}

// Variable adds a trainable variable holding an initial plaintext value.
// Sessions reset it to this value in InitVariables.
func (g *Graph) Variable(name string, initial *tensor.Tensor) *Node {
	return g.add(&opVariable{initial: initial}, name, initial.Shape)
}

// Const adds a constant plaintext node.
func (g *Graph) Const(name string, value *tensor.Tensor) *Node {
	return g.add(&opConst{value: value}, name, value.Shape)
}

// SecureMean adds a secure mean reduction of x over the spec's axes.
// Plaintext inputs are shared under the session's backend first.
func (g *Graph) SecureMean(x *Node, spec tensor.AxisSpec) (*Node, error) {
	outShape, err := spec.ReducedShape(x.shape)
	if err != nil {
		return nil, fmt.Errorf("SecureMean(%s): %w", x.name, err)
	}
	return g.add(&opSecureMean{spec: spec}, fmt.Sprintf("SecureMean(%s)", x.name), outShape, x), nil
}

// SecureReveal adds a node decrypting a secure tensor to plaintext.
func (g *Graph) SecureReveal(x *Node) *Node {
	return g.add(&opSecureReveal{}, fmt.Sprintf("SecureReveal(%s)", x.name), x.shape, x)
}

// contains reports whether n belongs to g.
func (g *Graph) contains(n *Node) bool {
	return n != nil && n.id < len(g.nodes) && g.nodes[n.id] == n
}

// VarOf returns the variable node feeding n: n itself if it is a
// variable, otherwise the first variable found walking its inputs. This
// mirrors unwrapping a framework-wrapped secure tensor back to its
// underlying differentiable variable.
func VarOf(n *Node) (*Node, error) {
	if n == nil {
		return nil, fmt.Errorf("nil node")
	}
	if _, ok := n.op.(*opVariable); ok {
		return n, nil
	}
	for _, in := range n.inputs {
		if v, err := VarOf(in); err == nil {
			return v, nil
		}
	}
	return nil, fmt.Errorf("no variable feeds %s", n.name)
}

// Gradients builds reverse-mode gradient nodes of y with respect to each
// of xs, seeded with ones of y's shape. The returned slice is parallel
// to xs.
func (g *Graph) Gradients(y *Node, xs []*Node) ([]*Node, error) {
	if !g.contains(y) {
		return nil, fmt.Errorf("output node not in graph")
	}

	// Reverse topological order from y.
	order := []*Node{}
	seen := map[*Node]bool{}
	var visit func(n *Node)
	visit = func(n *Node) {
		if seen[n] {
			return
		}
		seen[n] = true
		for _, in := range n.inputs {
			visit(in)
		}
		order = append(order, n)
	}
	visit(y)

	grads := map[*Node]*Node{
		y: g.Const(fmt.Sprintf("ones_like(%s)", y.name), tensor.Ones(y.shape...)),
	}
	for i := len(order) - 1; i >= 0; i-- {
		n := order[i]
		gOut, ok := grads[n]
		if !ok {
			continue
		}
		d, ok := n.op.(differentiable)
		if !ok {
			if len(n.inputs) > 0 {
				return nil, fmt.Errorf("%s is not differentiable", n.name)
			}
			continue
		}
		inGrads, err := d.backward(g, n, gOut)
		if err != nil {
			return nil, err
		}
		for j, in := range n.inputs {
			if inGrads[j] == nil {
				continue
			}
			if grads[in] != nil {
				return nil, fmt.Errorf("%s: multiple gradient paths are not supported", in.name)
			}
			grads[in] = inGrads[j]
		}
	}

	out := make([]*Node, len(xs))
	for i, x := range xs {
		gx, ok := grads[x]
		if !ok {
			return nil, fmt.Errorf("no gradient path from %s to %s", y.name, x.name)
		}
		out[i] = gx
	}
	return out, nil
}
