// Package fixedpoint encodes float64 values into a 64-bit ring for
// secret-sharing arithmetic. A value x is represented as the ring element
// round(x * 2^frac) taken modulo 2^64, with negative values in two's
// complement, so additive shares of encoded values sum to the encoding of
// the plaintext sum.
package fixedpoint

import (
	"fmt"
	"math"
)

// DefaultFracBits is the default number of fractional bits.
const DefaultFracBits = 16

// Codec converts between float64 and ring elements with a fixed number
// of fractional bits.
type Codec struct {
	frac uint
}

// NewCodec returns a codec with the given fractional precision.
// frac must leave headroom for the integer part; values in (0, 62).
func NewCodec(frac uint) (*Codec, error) {
	if frac == 0 || frac >= 62 {
		return nil, fmt.Errorf("fractional bits must be in (0, 62), got %d", frac)
	}
	return &Codec{frac: frac}, nil
}

// FracBits returns the codec's fractional precision.
func (c *Codec) FracBits() uint {
	return c.frac
}

// Ulp returns the magnitude of one unit in the last place, 2^-frac.
func (c *Codec) Ulp() float64 {
	return math.Ldexp(1, -int(c.frac))
}

// Encode maps a float64 to its ring representation.
func (c *Codec) Encode(x float64) uint64 {
	return uint64(int64(math.Round(x * math.Ldexp(1, int(c.frac)))))
}

// Decode maps a ring element back to float64, interpreting the high bit
// as the sign (two's complement).
func (c *Codec) Decode(v uint64) float64 {
	return float64(int64(v)) / math.Ldexp(1, int(c.frac))
}

// EncodeSlice encodes every element of xs.
func (c *Codec) EncodeSlice(xs []float64) []uint64 {
	out := make([]uint64, len(xs))
	for i, x := range xs {
		out[i] = c.Encode(x)
	}
	return out
}

// DecodeAt maps a ring element carrying frac fractional bits back to
// float64. Multiplying two encodings without truncating yields 2*frac
// fractional bits; protocols that defer truncation to reveal decode with
// the accumulated precision.
func (c *Codec) DecodeAt(v uint64, frac uint) float64 {
	return float64(int64(v)) / math.Ldexp(1, int(frac))
}

// DecodeSliceAt decodes every element of vs at the given precision.
func (c *Codec) DecodeSliceAt(vs []uint64, frac uint) []float64 {
	out := make([]float64, len(vs))
	for i, v := range vs {
		out[i] = c.DecodeAt(v, frac)
	}
	return out
}

// DecodeSlice decodes every element of vs.
func (c *Codec) DecodeSlice(vs []uint64) []float64 {
	out := make([]float64, len(vs))
	for i, v := range vs {
		out[i] = c.Decode(v)
	}
	return out
}

// TruncLower truncates a ring element by frac bits the way the first
// party of a two-party truncation does: an arithmetic shift of the
// signed interpretation.
func (c *Codec) TruncLower(v uint64) uint64 {
	return uint64(int64(v) >> c.frac)
}

// TruncUpper truncates a ring element the way the second party does:
// negate, arithmetic-shift, negate. The sum of TruncLower(a) and
// TruncUpper(b) reconstructs (a+b)>>frac up to one ulp.
func (c *Codec) TruncUpper(v uint64) uint64 {
	return uint64(-(int64(-v) >> c.frac))
}
