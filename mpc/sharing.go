package mpc

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"

	"mpcten/core/fixedpoint"
	"mpcten/tensor"
)

// ssBackend is a secret-sharing backend over the fixed-point ring. The
// concrete protocol is fixed by its share layout (which additive share
// vectors each party holds) and by how public-constant scaling handles
// the extra fractional bits.
type ssBackend struct {
	name    string
	codec   *fixedpoint.Codec
	mesh    *LocalMesh
	layout  [][]int // party -> global share indices held
	nshares int
	// truncOnScale: parties run pairwise truncation after the multiply.
	// Only sound with exactly two share vectors; layouts with more defer
	// the rescale to reveal instead.
	truncOnScale bool
	nextID       uint64
	closed       bool
}

// ssPayload identifies a tensor stored at the parties. extraScales
// counts deferred rescales: each one leaves FracBits additional
// fractional bits in the ring values.
type ssPayload struct {
	id          uint64
	extraScales uint
}

// NewSecureNN opens a SecureNN-style backend: two compute parties
// holding additive shares of every tensor, plus an assist party that
// stays on the mesh but holds no arithmetic share. Scaling by a public
// constant uses pairwise truncation.
func NewSecureNN(codec *fixedpoint.Codec) (Backend, error) {
	return newSharing("SecureNN", codec, [][]int{{0}, {1}, {}}, true)
}

// NewHelix opens a Helix-style backend: three parties with 2-of-3
// replicated sharing, each holding two of the three additive shares.
// Scaling multiplies in the ring and defers the rescale to reveal,
// where reconstruction is exact.
func NewHelix(codec *fixedpoint.Codec) (Backend, error) {
	return newSharing("Helix", codec, [][]int{{0, 1}, {1, 2}, {2, 0}}, false)
}

func newSharing(name string, codec *fixedpoint.Codec, layout [][]int, truncOnScale bool) (Backend, error) {
	if codec == nil {
		var err error
		codec, err = fixedpoint.NewCodec(fixedpoint.DefaultFracBits)
		if err != nil {
			return nil, err
		}
	}
	nshares := 0
	roles := make([][]TruncRole, len(layout))
	for p, held := range layout {
		roles[p] = make([]TruncRole, 0, len(held))
		for _, g := range held {
			if g+1 > nshares {
				nshares = g + 1
			}
			// Share 0 truncates with the lower rule; every replica of a
			// share must use the same rule or reconstruction breaks.
			if g == 0 {
				roles[p] = append(roles[p], TruncLower)
			} else {
				roles[p] = append(roles[p], TruncUpper)
			}
		}
	}
	return &ssBackend{
		name:         name,
		codec:        codec,
		mesh:         newLocalMesh(codec, roles),
		layout:       layout,
		nshares:      nshares,
		truncOnScale: truncOnScale,
		nextID:       1,
	}, nil
}

func (b *ssBackend) Name() string {
	return b.name
}

// randRing draws a uniform ring element.
func randRing() (uint64, error) {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(buf[:]), nil
}

func (b *ssBackend) Share(t *tensor.Tensor) (*SecureTensor, error) {
	if b.closed {
		return nil, fmt.Errorf("%s: backend closed", b.name)
	}
	enc := b.codec.EncodeSlice(t.Data)

	// Split into nshares additive vectors over the ring.
	vectors := make([][]uint64, b.nshares)
	for s := 0; s < b.nshares-1; s++ {
		vectors[s] = make([]uint64, len(enc))
		for i := range enc {
			r, err := randRing()
			if err != nil {
				return nil, fmt.Errorf("%s: sampling share: %w", b.name, err)
			}
			vectors[s][i] = r
		}
	}
	last := make([]uint64, len(enc))
	for i, v := range enc {
		x := v
		for s := 0; s < b.nshares-1; s++ {
			x -= vectors[s][i]
		}
		last[i] = x
	}
	vectors[b.nshares-1] = last

	id := b.nextID
	b.nextID++
	shape := append([]int(nil), t.Shape...)
	for p, held := range b.layout {
		mine := make([][]uint64, len(held))
		for k, g := range held {
			mine[k] = vectors[g]
		}
		if err := b.mesh.links[p].SendShare(id, shape, mine); err != nil {
			return nil, fmt.Errorf("%s: distributing shares: %w", b.name, err)
		}
	}
	return &SecureTensor{shape: shape, backend: b.name, payload: ssPayload{id: id}}, nil
}

func (b *ssBackend) Reveal(st *SecureTensor) (*tensor.Tensor, error) {
	if b.closed {
		return nil, fmt.Errorf("%s: backend closed", b.name)
	}
	if err := checkOwned(b, st); err != nil {
		return nil, err
	}
	pl := st.payload.(ssPayload)
	responses, err := b.mesh.CollectShares(pl.id)
	if err != nil {
		return nil, fmt.Errorf("%s: reveal: %w", b.name, err)
	}

	// Reconstruct using each global share exactly once; replicated
	// layouts hold duplicates that must not be double counted.
	shape := st.Shape()
	total := 1
	for _, d := range shape {
		total *= d
	}
	sum := make([]uint64, total)
	for g := 0; g < b.nshares; g++ {
		vec, err := b.pickShare(responses, g)
		if err != nil {
			return nil, err
		}
		if len(vec) != total {
			return nil, fmt.Errorf("%s: share %d has %d elements, want %d", b.name, g, len(vec), total)
		}
		for i, v := range vec {
			sum[i] += v
		}
	}
	frac := b.codec.FracBits() * (1 + pl.extraScales)
	return tensor.NewWithShape(b.codec.DecodeSliceAt(sum, frac), shape...), nil
}

// pickShare finds global share g in the responses of the first party
// holding it.
func (b *ssBackend) pickShare(responses [][][]uint64, g int) ([]uint64, error) {
	for p, held := range b.layout {
		for k, gi := range held {
			if gi == g {
				return responses[p][k], nil
			}
		}
	}
	return nil, fmt.Errorf("%s: no party holds share %d", b.name, g)
}

func (b *ssBackend) SumAxes(st *SecureTensor, spec tensor.AxisSpec) (*SecureTensor, error) {
	if b.closed {
		return nil, fmt.Errorf("%s: backend closed", b.name)
	}
	if err := checkOwned(b, st); err != nil {
		return nil, err
	}
	// Validate the spec before asking the parties to fold.
	_, outShape, err := spec.IndexMap(st.shape)
	if err != nil {
		return nil, fmt.Errorf("%s: sum axes: %w", b.name, err)
	}
	pl := st.payload.(ssPayload)
	id := b.nextID
	b.nextID++
	op := OpPayload{
		ID:        pl.id,
		OutID:     id,
		Kind:      OpSumAxes,
		ReduceAll: spec.All(),
		Axes:      spec.List(),
	}
	if err := b.mesh.Broadcast(&Message{Type: MsgOp, Payload: op}); err != nil {
		return nil, fmt.Errorf("%s: sum axes: %w", b.name, err)
	}
	return &SecureTensor{
		shape:   outShape,
		backend: b.name,
		payload: ssPayload{id: id, extraScales: pl.extraScales},
	}, nil
}

func (b *ssBackend) ScaleConst(st *SecureTensor, c float64) (*SecureTensor, error) {
	if b.closed {
		return nil, fmt.Errorf("%s: backend closed", b.name)
	}
	if err := checkOwned(b, st); err != nil {
		return nil, err
	}
	pl := st.payload.(ssPayload)
	id := b.nextID
	b.nextID++
	op := OpPayload{
		ID:     pl.id,
		OutID:  id,
		Factor: b.codec.Encode(c),
	}
	extra := pl.extraScales
	if b.truncOnScale {
		op.Kind = OpScaleTrunc
	} else {
		op.Kind = OpScaleMul
		extra++
		// Each deferred rescale spends FracBits of the 64-bit ring;
		// reject chains the ring cannot absorb.
		if (1+extra)*b.codec.FracBits() > 62 {
			return nil, fmt.Errorf("%s: too many deferred rescales", b.name)
		}
	}
	if err := b.mesh.Broadcast(&Message{Type: MsgOp, Payload: op}); err != nil {
		return nil, fmt.Errorf("%s: scale: %w", b.name, err)
	}
	return &SecureTensor{
		shape:   st.Shape(),
		backend: b.name,
		payload: ssPayload{id: id, extraScales: extra},
	}, nil
}

func (b *ssBackend) Close() error {
	if b.closed {
		return nil
	}
	b.closed = true
	return b.mesh.Close()
}

func init() {
	Register("Helix", func() (Backend, error) { return NewHelix(nil) })
	Register("SecureNN", func() (Backend, error) { return NewSecureNN(nil) })
}
