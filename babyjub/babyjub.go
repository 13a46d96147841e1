// Package babyjub implements the twisted-Edwards Baby Jubjub group used
// throughout the MACI voter core: point representation, addition,
// scalar multiplication, and subgroup membership.
//
// Point arithmetic is delegated to github.com/iden3/go-iden3-crypto/babyjub,
// the canonical Go implementation of this exact curve used across the
// iden3/circomlib zk-SNARK ecosystem (confirmed by
// other_examples/14b4ae2e_privacy-ethereum-privacy-precompiles__babyjubjub-eddsa-eddsa.go.go),
// rather than re-deriving the Edwards addition formulas by hand.
package babyjub

import (
	"errors"
	"math/big"

	iden3babyjub "github.com/iden3/go-iden3-crypto/babyjub"
	"github.com/kysee/maci-voter-core/field"
)

// ErrZeroScalar is returned by Mul when the scalar reduces to zero mod
// the subgroup order r — per spec, callers must treat this as an error
// rather than receiving the curve's identity element silently.
var ErrZeroScalar = errors.New("babyjub: scalar is zero mod r")

// ErrNotInSubgroup is returned when a point fails the prime-order
// subgroup check.
var ErrNotInSubgroup = errors.New("babyjub: point not in prime-order subgroup")

// SubOrder is r, the prime order of the Baby Jubjub subgroup this core
// operates in.
func SubOrder() *big.Int {
	return iden3babyjub.SubOrder
}

// Scalar is an integer in [1, r). The zero value is NOT a valid Scalar;
// construct with NewScalar or the key-derivation/ECDH packages.
type Scalar struct {
	v *big.Int
}

// NewScalar reduces x modulo r. Returns ErrZeroScalar if the reduction
// is zero.
func NewScalar(x *big.Int) (Scalar, error) {
	r := SubOrder()
	v := new(big.Int).Mod(x, r)
	if v.Sign() == 0 {
		return Scalar{}, ErrZeroScalar
	}
	return Scalar{v: v}, nil
}

// BigInt returns the scalar's integer value.
func (s Scalar) BigInt() *big.Int {
	return new(big.Int).Set(s.v)
}

// Point is a pair of field elements believed to lie on the curve. Use
// InSubgroup to confirm subgroup membership before trusting a point
// that arrived from outside the program (wire input, persisted state).
type Point struct {
	X, Y field.Element
}

// G is the base point of the prime-order subgroup (iden3's B8,
// the generator circomlib's EdDSA-Poseidon circuits use).
func G() Point {
	return fromIden3(iden3babyjub.B8)
}

// Identity returns the curve's neutral element (0, 1) in twisted
// Edwards affine coordinates.
func Identity() Point {
	return Point{X: field.Zero(), Y: field.One()}
}

func fromIden3(p *iden3babyjub.Point) Point {
	return Point{
		X: field.NewFromBigInt(p.X),
		Y: field.NewFromBigInt(p.Y),
	}
}

func (p Point) toIden3() *iden3babyjub.Point {
	return &iden3babyjub.Point{X: p.X.BigInt(), Y: p.Y.BigInt()}
}

// Add returns a+b on the curve.
func Add(a, b Point) Point {
	out := iden3babyjub.NewPoint()
	out.Add(a.toIden3(), b.toIden3())
	return fromIden3(out)
}

// Mul returns scalar*point. Returns ErrZeroScalar if scalar is zero mod
// r — per spec §4.3, scalar multiplication by zero is a caller error,
// never a silent identity result.
func Mul(p Point, s Scalar) (Point, error) {
	if s.v == nil || s.v.Sign() == 0 {
		return Point{}, ErrZeroScalar
	}
	out := iden3babyjub.NewPoint()
	out.Mul(s.v, p.toIden3())
	return fromIden3(out), nil
}

// InCurve reports whether p satisfies the Baby Jubjub curve equation.
func InCurve(p Point) bool {
	return p.toIden3().InCurve()
}

// InSubgroup reports whether p lies in the prime-order subgroup.
func InSubgroup(p Point) bool {
	return p.toIden3().InSubGroup()
}

// Equal reports whether a and b are the same point.
func Equal(a, b Point) bool {
	return field.Equal(a.X, b.X) && field.Equal(a.Y, b.Y)
}

// KeyPair is a Baby Jubjub scalar/point pair with pk = sk*G.
type KeyPair struct {
	SK Scalar
	PK Point
}

// DerivePublic computes sk*G.
func DerivePublic(sk Scalar) (Point, error) {
	return Mul(G(), sk)
}
