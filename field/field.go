// Package field implements canonical modular arithmetic over the BN254
// scalar field, the field every FieldElement in the MACI voter core is
// drawn from.
package field

import (
	"errors"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
)

// ErrZeroInverse is returned by Inverse when called on the zero element.
var ErrZeroInverse = errors.New("field: inverse of zero")

// Element is a canonical residue in [0, p) where p is the BN254 scalar
// field prime. The zero value is the field element 0.
type Element struct {
	v fr.Element
}

// Modulus returns p, the BN254 scalar field prime.
func Modulus() *big.Int {
	return fr.Modulus()
}

// Zero returns the additive identity.
func Zero() Element { return Element{} }

// One returns the multiplicative identity.
func One() Element {
	var e Element
	e.v.SetOne()
	return e
}

// NewFromUint64 builds an Element from a small unsigned integer.
func NewFromUint64(v uint64) Element {
	var e Element
	e.v.SetUint64(v)
	return e
}

// NewFromBigInt reduces x modulo p and returns the resulting Element.
func NewFromBigInt(x *big.Int) Element {
	var e Element
	e.v.SetBigInt(x)
	return e
}

// FromBytesLE interprets b as a little-endian integer and reduces it
// modulo p.
func FromBytesLE(b []byte) Element {
	be := reversed(b)
	var e Element
	e.v.SetBytes(be)
	return e
}

// BytesLE returns the canonical little-endian encoding of e, always
// 32 bytes.
func (e Element) BytesLE() [32]byte {
	be := e.v.Bytes() // big-endian, canonical, 32 bytes
	var le [32]byte
	for i := range be {
		le[i] = be[31-i]
	}
	return le
}

// BigInt returns the canonical non-negative representative of e.
func (e Element) BigInt() *big.Int {
	var x big.Int
	e.v.BigInt(&x)
	return &x
}

func reversed(b []byte) []byte {
	out := make([]byte, len(b))
	for i, c := range b {
		out[len(b)-1-i] = c
	}
	return out
}

// Add returns a+b mod p.
func Add(a, b Element) Element {
	var e Element
	e.v.Add(&a.v, &b.v)
	return e
}

// Sub returns a-b mod p.
func Sub(a, b Element) Element {
	var e Element
	e.v.Sub(&a.v, &b.v)
	return e
}

// Mul returns a*b mod p.
func Mul(a, b Element) Element {
	var e Element
	e.v.Mul(&a.v, &b.v)
	return e
}

// Neg returns -a mod p.
func Neg(a Element) Element {
	var e Element
	e.v.Neg(&a.v)
	return e
}

// Inverse returns a^-1 mod p, or ErrZeroInverse if a is zero.
func Inverse(a Element) (Element, error) {
	if a.v.IsZero() {
		return Element{}, ErrZeroInverse
	}
	var e Element
	e.v.Inverse(&a.v)
	return e, nil
}

// Exp returns a^n mod p.
func Exp(a Element, n uint64) Element {
	var e Element
	e.v.Exp(a.v, new(big.Int).SetUint64(n))
	return e
}

// Equal reports whether a and b are the same residue.
func Equal(a, b Element) bool {
	return a.v.Equal(&b.v)
}

// IsZero reports whether e is the additive identity.
func (e Element) IsZero() bool {
	return e.v.IsZero()
}

// String renders the canonical decimal representation.
func (e Element) String() string {
	return e.v.String()
}
