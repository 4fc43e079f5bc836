package engine

import (
	"fmt"

	"mpcten/mpc"
	"mpcten/tensor"
)

// Session executes a graph under one backend. Exactly one session should
// be live per test case; Close releases its cached values so protocol
// state never leaks into the next case.
type Session struct {
	graph   *Graph
	backend mpc.Backend
	vars    map[*Node]*tensor.Tensor
	values  map[*Node]interface{}
	closed  bool
}

// NewSession binds a graph to a backend.
func NewSession(g *Graph, backend mpc.Backend) *Session {
	return &Session{
		graph:   g,
		backend: backend,
		vars:    make(map[*Node]*tensor.Tensor),
		values:  make(map[*Node]interface{}),
	}
}

// Backend returns the backend this session executes under.
func (s *Session) Backend() mpc.Backend {
	return s.backend
}

// InitVariables resets every variable in the graph to its initial value
// and drops all cached node values.
func (s *Session) InitVariables() error {
	if s.closed {
		return fmt.Errorf("session closed")
	}
	s.values = make(map[*Node]interface{})
	for _, n := range s.graph.nodes {
		if v, ok := n.op.(*opVariable); ok {
			s.vars[n] = v.initial.Clone()
		}
	}
	return nil
}

// Run evaluates the graph up to n and returns its value: a
// *tensor.Tensor for plaintext nodes or an *mpc.SecureTensor for
// protocol-protected ones. Values are memoized for the session's
// lifetime.
func (s *Session) Run(n *Node) (interface{}, error) {
	if s.closed {
		return nil, fmt.Errorf("session closed")
	}
	if !s.graph.contains(n) {
		return nil, fmt.Errorf("node not in this session's graph")
	}
	return s.eval(n)
}

// RunTensor evaluates n and requires a plaintext result.
func (s *Session) RunTensor(n *Node) (*tensor.Tensor, error) {
	v, err := s.Run(n)
	if err != nil {
		return nil, err
	}
	t, ok := v.(*tensor.Tensor)
	if !ok {
		return nil, fmt.Errorf("%s evaluates to a secure tensor; reveal it first", n.name)
	}
	return t, nil
}

func (s *Session) eval(n *Node) (interface{}, error) {
	if v, ok := s.values[n]; ok {
		return v, nil
	}
	inputs := make([]interface{}, len(n.inputs))
	for i, in := range n.inputs {
		v, err := s.eval(in)
		if err != nil {
			return nil, err
		}
		inputs[i] = v
	}
	v, err := n.op.exec(s, n, inputs)
	if err != nil {
		return nil, err
	}
	s.values[n] = v
	return v, nil
}

// Close releases the session. The backend stays open; it is owned by
// the caller.
func (s *Session) Close() error {
	s.closed = true
	s.values = nil
	s.vars = nil
	return nil
}
