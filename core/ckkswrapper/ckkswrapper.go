// Package ckkswrapper wraps the lattigo CKKS scheme behind a small
// context type: parameter setup, key generation, slot-vector
// encryption/decryption, and evaluator construction with the rotation
// keys a caller asks for.
package ckkswrapper

import (
	"fmt"

	"github.com/tuneinsight/lattigo/v5/core/rlwe"
	"github.com/tuneinsight/lattigo/v5/he/hefloat"
)

// DefaultLogN keeps key generation fast enough for tests while leaving
// enough levels for a masked reduction plus a rescaled constant multiply.
const DefaultLogN = 12

// HeContext holds the CKKS parameters and keys for one backend instance.
type HeContext struct {
	Params    hefloat.Parameters
	Encoder   *hefloat.Encoder
	Encryptor *rlwe.Encryptor
	Decryptor *rlwe.Decryptor

	sk   *rlwe.SecretKey
	pk   *rlwe.PublicKey
	kgen *rlwe.KeyGenerator
}

// NewHeContext creates a context with the default ring dimension.
func NewHeContext() (*HeContext, error) {
	return NewHeContextWithLogN(DefaultLogN)
}

// NewHeContextWithLogN creates a context with ring dimension 2^logN.
func NewHeContextWithLogN(logN int) (*HeContext, error) {
	params, err := hefloat.NewParametersFromLiteral(hefloat.ParametersLiteral{
		LogN:            logN,
		LogQ:            []int{50, 40, 40, 40},
		LogP:            []int{60},
		LogDefaultScale: 40,
	})
	if err != nil {
		return nil, fmt.Errorf("ckks parameters: %w", err)
	}
	kgen := hefloat.NewKeyGenerator(params)
	sk, pk := kgen.GenKeyPairNew()
	return &HeContext{
		Params:    params,
		Encoder:   hefloat.NewEncoder(params),
		Encryptor: hefloat.NewEncryptor(params, pk),
		Decryptor: hefloat.NewDecryptor(params, sk),
		sk:        sk,
		pk:        pk,
		kgen:      kgen,
	}, nil
}

// GenEvaluator builds an evaluator carrying the relinearization key and
// galois keys for the given slot rotations.
func (h *HeContext) GenEvaluator(rots []int) *hefloat.Evaluator {
	galEls := make([]uint64, len(rots))
	for i, r := range rots {
		galEls[i] = h.Params.GaloisElement(r)
	}
	rlk := h.kgen.GenRelinearizationKeyNew(h.sk)
	gks := h.kgen.GenGaloisKeysNew(galEls, h.sk)
	evk := rlwe.NewMemEvaluationKeySet(rlk, gks...)
	return hefloat.NewEvaluator(h.Params, evk)
}

// EncryptVector encrypts vals into the first len(vals) slots of a fresh
// ciphertext at the maximum level.
func (h *HeContext) EncryptVector(vals []float64) (*rlwe.Ciphertext, error) {
	if len(vals) > h.Params.MaxSlots() {
		return nil, fmt.Errorf("%d values exceed %d slots", len(vals), h.Params.MaxSlots())
	}
	pt := hefloat.NewPlaintext(h.Params, h.Params.MaxLevel())
	if err := h.Encoder.Encode(vals, pt); err != nil {
		return nil, fmt.Errorf("encoding: %w", err)
	}
	ct, err := h.Encryptor.EncryptNew(pt)
	if err != nil {
		return nil, fmt.Errorf("encrypting: %w", err)
	}
	return ct, nil
}

// DecryptVector decrypts the first n slots of a ciphertext.
func (h *HeContext) DecryptVector(ct *rlwe.Ciphertext, n int) ([]float64, error) {
	pt := h.Decryptor.DecryptNew(ct)
	vals := make([]float64, h.Params.MaxSlots())
	if err := h.Encoder.Decode(pt, vals); err != nil {
		return nil, fmt.Errorf("decoding: %w", err)
	}
	return vals[:n], nil
}

// EncodeAt encodes vals into a plaintext at the given level with the
// default scale, for plaintext-ciphertext multiplies.
func (h *HeContext) EncodeAt(vals []float64, level int) (*rlwe.Plaintext, error) {
	pt := hefloat.NewPlaintext(h.Params, level)
	if err := h.Encoder.Encode(vals, pt); err != nil {
		return nil, fmt.Errorf("encoding: %w", err)
	}
	return pt, nil
}
