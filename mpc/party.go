package mpc

import (
	"fmt"
	"io"
	"sync"

	"mpcten/core/fixedpoint"
	"mpcten/tensor"
)

// TruncRole selects which side of the pairwise truncation a share vector
// takes when a public-constant multiply shifts out the extra fractional
// bits. Exactly one vector of a sharing truncates with TruncLower; the
// rest use TruncUpper so the truncated shares still sum to the shifted
// value up to a few ulps.
type TruncRole int

const (
	TruncLower TruncRole = iota
	TruncUpper
)

type storedShare struct {
	shape   []int
	vectors [][]uint64
}

// party is one simulated protocol participant. It owns its share store
// and serves coordinator messages until MsgDone; it never sees another
// party's vectors.
type party struct {
	id    int
	roles []TruncRole // role per held vector
	codec *fixedpoint.Codec
	proto *Protocol
	store map[uint64]storedShare

	// The pipe is synchronous, so a party may only write while the
	// coordinator is reading, i.e. while answering a reveal. Failures in
	// share or op messages are recorded here and surfaced then.
	deferred error
}

func (p *party) serve() {
	for {
		msg, err := p.proto.Receive()
		if err != nil {
			// Pipe closed by the coordinator.
			return
		}
		switch msg.Type {
		case MsgShare:
			sp, ok := msg.Payload.(SharePayload)
			if !ok {
				p.fail(fmt.Errorf("party %d: bad share payload", p.id))
				continue
			}
			p.store[sp.ID] = storedShare{shape: sp.Shape, vectors: sp.Vectors}
		case MsgOp:
			op, ok := msg.Payload.(OpPayload)
			if !ok {
				p.fail(fmt.Errorf("party %d: bad op payload", p.id))
				continue
			}
			if err := p.apply(op); err != nil {
				p.fail(fmt.Errorf("party %d: %w", p.id, err))
			}
		case MsgReveal:
			rp, ok := msg.Payload.(RevealPayload)
			if !ok {
				p.proto.SendError(fmt.Errorf("party %d: bad reveal payload", p.id))
				continue
			}
			if p.deferred != nil {
				p.proto.SendError(p.deferred)
				continue
			}
			s, ok := p.store[rp.ID]
			if !ok {
				p.proto.SendError(fmt.Errorf("party %d: unknown tensor %d", p.id, rp.ID))
				continue
			}
			p.proto.Send(&Message{
				Type:    MsgShareValue,
				Payload: ShareValuePayload{ID: rp.ID, Party: p.id, Vectors: s.vectors},
			})
		case MsgDone:
			return
		}
	}
}

func (p *party) fail(err error) {
	if p.deferred == nil {
		p.deferred = err
	}
}

func (p *party) apply(op OpPayload) error {
	in, ok := p.store[op.ID]
	if !ok {
		return fmt.Errorf("unknown tensor %d", op.ID)
	}
	switch op.Kind {
	case OpSumAxes:
		spec := tensor.ReduceAll()
		if !op.ReduceAll {
			spec = tensor.Axes(op.Axes...)
		}
		idxMap, outShape, err := spec.IndexMap(in.shape)
		if err != nil {
			return err
		}
		total := 1
		for _, d := range outShape {
			total *= d
		}
		outs := make([][]uint64, len(in.vectors))
		for vi, vec := range in.vectors {
			out := make([]uint64, total)
			for i, v := range vec {
				out[idxMap[i]] += v
			}
			outs[vi] = out
		}
		p.store[op.OutID] = storedShare{shape: outShape, vectors: outs}
	case OpScaleTrunc:
		outs := make([][]uint64, len(in.vectors))
		for vi, vec := range in.vectors {
			out := make([]uint64, len(vec))
			for i, v := range vec {
				prod := v * op.Factor
				if p.roles[vi] == TruncLower {
					out[i] = p.codec.TruncLower(prod)
				} else {
					out[i] = p.codec.TruncUpper(prod)
				}
			}
			outs[vi] = out
		}
		p.store[op.OutID] = storedShare{shape: in.shape, vectors: outs}
	case OpScaleMul:
		outs := make([][]uint64, len(in.vectors))
		for vi, vec := range in.vectors {
			out := make([]uint64, len(vec))
			for i, v := range vec {
				out[i] = v * op.Factor
			}
			outs[vi] = out
		}
		p.store[op.OutID] = storedShare{shape: in.shape, vectors: outs}
	default:
		return fmt.Errorf("unknown op kind %d", op.Kind)
	}
	return nil
}

// LocalMesh wires a coordinator to a set of in-process parties over
// io.Pipe pairs, speaking the gob message protocol in both directions.
type LocalMesh struct {
	links   []*Protocol // coordinator side, one per party
	writers []*io.PipeWriter
	wg      sync.WaitGroup
}

// newLocalMesh starts one goroutine per party. roles[i] gives party i's
// truncation role per held share vector.
func newLocalMesh(codec *fixedpoint.Codec, roles [][]TruncRole) *LocalMesh {
	m := &LocalMesh{}
	for i := range roles {
		c2pR, c2pW := io.Pipe()
		p2cR, p2cW := io.Pipe()
		m.links = append(m.links, NewProtocol(p2cR, c2pW))
		m.writers = append(m.writers, c2pW, p2cW)
		pt := &party{
			id:    i,
			roles: roles[i],
			codec: codec,
			proto: NewProtocol(c2pR, p2cW),
			store: make(map[uint64]storedShare),
		}
		m.wg.Add(1)
		go func() {
			defer m.wg.Done()
			pt.serve()
		}()
	}
	return m
}

// Parties returns the number of connected parties.
func (m *LocalMesh) Parties() int {
	return len(m.links)
}

// Send delivers a message to one party.
func (m *LocalMesh) Send(partyID int, msg *Message) error {
	return m.links[partyID].Send(msg)
}

// Broadcast delivers a message to every party in order.
func (m *LocalMesh) Broadcast(msg *Message) error {
	for i, l := range m.links {
		if err := l.Send(msg); err != nil {
			return fmt.Errorf("party %d: %w", i, err)
		}
	}
	return nil
}

// CollectShares asks every party for its vectors of the given tensor and
// returns the responses indexed by party.
func (m *LocalMesh) CollectShares(id uint64) ([][][]uint64, error) {
	out := make([][][]uint64, len(m.links))
	for i, l := range m.links {
		if err := l.SendReveal(id); err != nil {
			return nil, fmt.Errorf("party %d: %w", i, err)
		}
		sv, err := l.ReceiveShareValue()
		if err != nil {
			return nil, fmt.Errorf("party %d: %w", i, err)
		}
		out[i] = sv.Vectors
	}
	return out, nil
}

// Close shuts the parties down and waits for their goroutines.
func (m *LocalMesh) Close() error {
	for _, l := range m.links {
		l.SendDone()
	}
	m.wg.Wait()
	for _, w := range m.writers {
		w.Close()
	}
	return nil
}
