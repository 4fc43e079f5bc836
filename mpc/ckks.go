package mpc

import (
	"fmt"

	"github.com/tuneinsight/lattigo/v5/core/rlwe"
	"github.com/tuneinsight/lattigo/v5/he/hefloat"

	"mpcten/core/ckkswrapper"
	"mpcten/tensor"
)

// MaxCKKSTensorSize bounds the tensors the CKKS backend accepts; the
// rotation key set is generated for offsets within this range.
const MaxCKKSTensorSize = 16

// ckksBackend protects tensors by CKKS encryption: Share encrypts the
// flat data into slots, reductions move slot values with rotate/mask/
// accumulate, and Reveal decrypts. One party, no secret sharing; the
// conformance semantics are identical to the sharing protocols up to
// the scheme's approximation noise.
type ckksBackend struct {
	he     *ckkswrapper.HeContext
	eval   *hefloat.Evaluator
	closed bool
}

type ckksPayload struct {
	ct *rlwe.Ciphertext
}

// NewCKKS opens a CKKS-encrypted backend.
func NewCKKS() (Backend, error) {
	he, err := ckkswrapper.NewHeContext()
	if err != nil {
		return nil, err
	}
	// Keys for every slot move a reduction over a tensor of up to
	// MaxCKKSTensorSize elements can ask for.
	rots := make([]int, 0, 2*(MaxCKKSTensorSize-1))
	for d := 1; d < MaxCKKSTensorSize; d++ {
		rots = append(rots, d, -d)
	}
	return &ckksBackend{he: he, eval: he.GenEvaluator(rots)}, nil
}

func (b *ckksBackend) Name() string {
	return "CKKS"
}

func (b *ckksBackend) Share(t *tensor.Tensor) (*SecureTensor, error) {
	if b.closed {
		return nil, fmt.Errorf("CKKS: backend closed")
	}
	if t.Size() > MaxCKKSTensorSize {
		return nil, fmt.Errorf("CKKS: tensor of %d elements exceeds %d", t.Size(), MaxCKKSTensorSize)
	}
	ct, err := b.he.EncryptVector(t.Data)
	if err != nil {
		return nil, fmt.Errorf("CKKS: share: %w", err)
	}
	return &SecureTensor{
		shape:   append([]int(nil), t.Shape...),
		backend: "CKKS",
		payload: ckksPayload{ct: ct},
	}, nil
}

func (b *ckksBackend) Reveal(st *SecureTensor) (*tensor.Tensor, error) {
	if b.closed {
		return nil, fmt.Errorf("CKKS: backend closed")
	}
	if err := checkOwned(b, st); err != nil {
		return nil, err
	}
	shape := st.Shape()
	total := 1
	for _, d := range shape {
		total *= d
	}
	vals, err := b.he.DecryptVector(st.payload.(ckksPayload).ct, total)
	if err != nil {
		return nil, fmt.Errorf("CKKS: reveal: %w", err)
	}
	return tensor.NewWithShape(vals, shape...), nil
}

// SumAxes folds axes by moving every input slot onto the output slot it
// reduces into: slots sharing a rotation offset are isolated with a
// plaintext mask, rotated in one step, and accumulated.
func (b *ckksBackend) SumAxes(st *SecureTensor, spec tensor.AxisSpec) (*SecureTensor, error) {
	if b.closed {
		return nil, fmt.Errorf("CKKS: backend closed")
	}
	if err := checkOwned(b, st); err != nil {
		return nil, err
	}
	idxMap, outShape, err := spec.IndexMap(st.shape)
	if err != nil {
		return nil, fmt.Errorf("CKKS: sum axes: %w", err)
	}
	ct := st.payload.(ckksPayload).ct

	// Group input slots by rotation offset.
	groups := make(map[int][]int)
	for i, j := range idxMap {
		d := i - j
		groups[d] = append(groups[d], i)
	}

	var acc *rlwe.Ciphertext
	for d, slots := range groups {
		mask := make([]float64, len(idxMap))
		for _, i := range slots {
			mask[i] = 1
		}
		pt, err := b.he.EncodeAt(mask, ct.Level())
		if err != nil {
			return nil, fmt.Errorf("CKKS: sum axes: %w", err)
		}
		term, err := b.eval.MulNew(ct, pt)
		if err != nil {
			return nil, fmt.Errorf("CKKS: sum axes: %w", err)
		}
		if err := b.eval.Rescale(term, term); err != nil {
			return nil, fmt.Errorf("CKKS: sum axes: %w", err)
		}
		if d != 0 {
			if term, err = b.eval.RotateNew(term, d); err != nil {
				return nil, fmt.Errorf("CKKS: sum axes: %w", err)
			}
		}
		if acc == nil {
			acc = term
			continue
		}
		if acc, err = b.eval.AddNew(acc, term); err != nil {
			return nil, fmt.Errorf("CKKS: sum axes: %w", err)
		}
	}
	return &SecureTensor{shape: outShape, backend: "CKKS", payload: ckksPayload{ct: acc}}, nil
}

func (b *ckksBackend) ScaleConst(st *SecureTensor, c float64) (*SecureTensor, error) {
	if b.closed {
		return nil, fmt.Errorf("CKKS: backend closed")
	}
	if err := checkOwned(b, st); err != nil {
		return nil, err
	}
	shape := st.Shape()
	total := 1
	for _, d := range shape {
		total *= d
	}
	ct := st.payload.(ckksPayload).ct

	// Scaling only the live slots also clears whatever earlier rotations
	// left behind in the rest of the vector.
	cvec := make([]float64, total)
	for i := range cvec {
		cvec[i] = c
	}
	pt, err := b.he.EncodeAt(cvec, ct.Level())
	if err != nil {
		return nil, fmt.Errorf("CKKS: scale: %w", err)
	}
	out, err := b.eval.MulNew(ct, pt)
	if err != nil {
		return nil, fmt.Errorf("CKKS: scale: %w", err)
	}
	if err := b.eval.Rescale(out, out); err != nil {
		return nil, fmt.Errorf("CKKS: scale: %w", err)
	}
	return &SecureTensor{shape: shape, backend: "CKKS", payload: ckksPayload{ct: out}}, nil
}

func (b *ckksBackend) Close() error {
	b.closed = true
	return nil
}

func init() {
	Register("CKKS", func() (Backend, error) { return NewCKKS() })
}
