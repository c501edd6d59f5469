// Package bigfloat provides arbitrary-precision real arithmetic for deep-zoom
// fractal computation.
//
// Float wraps math/big with a declared precision in bits and an immutable,
// value-style API: every operation allocates its result at the receiver's
// precision. The GPU never sees these values directly; they are narrowed to
// float32 after the high-precision stages (reference orbit, delta grid), and
// the perturbation delta absorbs the narrowing error.
package bigfloat

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"math/big"
)

// MinPrecision is the smallest precision any Float carries, matching the
// mantissa width of a float64.
const MinPrecision = 53

// ErrParse is returned when a base-10 value cannot be parsed.
var ErrParse = errors.New("bigfloat: invalid base-10 value")

// Float is an arbitrary-precision real number with a declared precision.
//
// The zero value is usable and represents 0 at MinPrecision. Float values
// are immutable; arithmetic methods return new values and never mutate the
// receiver or their arguments.
type Float struct {
	v *big.Float
}

// New returns x as a Float with the given precision in bits.
// Precisions below MinPrecision are raised to MinPrecision.
func New(prec uint, x float64) Float {
	return Float{v: newBig(prec).SetFloat64(x)}
}

// Parse reads a base-10 value at the given precision.
func Parse(prec uint, s string) (Float, error) {
	v, _, err := big.ParseFloat(s, 10, clampPrec(prec), big.ToNearestEven)
	if err != nil {
		return Float{}, fmt.Errorf("%w: %q: %v", ErrParse, s, err)
	}
	return Float{v: v}, nil
}

// Pow2 returns 2^exp at the given precision. The exponent may be any real
// value; the fractional part is resolved in float64, which is exact for the
// integer exponents used by zoom scaling and deterministic otherwise.
func Pow2(prec uint, exp float64) Float {
	ipart, frac := math.Modf(exp)
	// SetMantExp computes mant * 2^exp over the full value of mant, so the
	// integer part goes in directly; no need to read the exponent back.
	v := newBig(prec).SetFloat64(math.Exp2(frac))
	v.SetMantExp(v, int(ipart))
	return Float{v: v}
}

func newBig(prec uint) *big.Float {
	return new(big.Float).SetPrec(clampPrec(prec))
}

func clampPrec(prec uint) uint {
	if prec < MinPrecision {
		return MinPrecision
	}
	return prec
}

func (f Float) big() *big.Float {
	if f.v == nil {
		return newBig(MinPrecision)
	}
	return f.v
}

// Prec returns the declared precision in bits.
func (f Float) Prec() uint { return f.big().Prec() }

// IsSet reports whether the value was explicitly constructed or decoded,
// as opposed to the zero value. Both compare as 0 at MinPrecision.
func (f Float) IsSet() bool { return f.v != nil }

// WithPrec returns f rounded (or extended) to the given precision.
func (f Float) WithPrec(prec uint) Float {
	return Float{v: newBig(prec).Set(f.big())}
}

// Add returns f+g at f's precision.
func (f Float) Add(g Float) Float {
	return Float{v: newBig(f.Prec()).Add(f.big(), g.big())}
}

// Sub returns f-g at f's precision.
func (f Float) Sub(g Float) Float {
	return Float{v: newBig(f.Prec()).Sub(f.big(), g.big())}
}

// Mul returns f*g at f's precision.
func (f Float) Mul(g Float) Float {
	return Float{v: newBig(f.Prec()).Mul(f.big(), g.big())}
}

// Quo returns f/g at f's precision.
func (f Float) Quo(g Float) Float {
	return Float{v: newBig(f.Prec()).Quo(f.big(), g.big())}
}

// Neg returns -f.
func (f Float) Neg() Float {
	return Float{v: newBig(f.Prec()).Neg(f.big())}
}

// MulFloat64 returns f*x at f's precision.
func (f Float) MulFloat64(x float64) Float {
	return f.Mul(New(f.Prec(), x))
}

// AddFloat64 returns f+x at f's precision.
func (f Float) AddFloat64(x float64) Float {
	return f.Add(New(f.Prec(), x))
}

// Float32 narrows to float32, rounding to nearest.
func (f Float) Float32() float32 {
	x, _ := f.big().Float32()
	return x
}

// Float64 narrows to float64, rounding to nearest.
func (f Float) Float64() float64 {
	x, _ := f.big().Float64()
	return x
}

// Sign returns -1, 0, or +1.
func (f Float) Sign() int { return f.big().Sign() }

// Cmp compares f and g, ignoring precision.
func (f Float) Cmp(g Float) int { return f.big().Cmp(g.big()) }

// Equal reports whether f and g carry the same value at the same declared
// precision. This is the bit-for-bit equality used by Image comparison.
func (f Float) Equal(g Float) bool {
	return f.Prec() == g.Prec() && f.Cmp(g) == 0
}

// String formats f in base 10 with enough digits to round-trip every bit of
// the declared precision.
func (f Float) String() string {
	return f.big().Text('e', decimalDigits(f.Prec()))
}

// decimalDigits returns the number of significant decimal digits needed to
// represent prec bits without loss: ceil(prec * log10(2)) + 1 guard digit.
func decimalDigits(prec uint) int {
	return int(math.Ceil(float64(prec)*math.Ln2/math.Ln10)) + 1
}

// jsonFloat is the on-disk form: a base-10 value preserving all bits of the
// stored precision, plus the precision itself.
type jsonFloat struct {
	Value     string `json:"value"`
	Precision uint32 `json:"precision"`
}

// MarshalJSON encodes f as {"value": "...", "precision": n}.
func (f Float) MarshalJSON() ([]byte, error) {
	return json.Marshal(jsonFloat{
		Value:     f.String(),
		Precision: uint32(f.Prec()),
	})
}

// UnmarshalJSON decodes the {"value", "precision"} document.
func (f *Float) UnmarshalJSON(data []byte) error {
	var j jsonFloat
	if err := json.Unmarshal(data, &j); err != nil {
		return err
	}
	parsed, err := Parse(uint(j.Precision), j.Value)
	if err != nil {
		return err
	}
	*f = parsed
	return nil
}
