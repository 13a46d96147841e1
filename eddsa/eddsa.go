// Package eddsa implements EdDSA-Poseidon signing and verification on
// Baby Jubjub, matching the clamped-scalar convention used by the
// iden3/circomlib verification circuits (spec.md §4.7). This is a
// different sk-to-pk convention than the generic babyjub.DerivePublic:
// here the 32-byte value is a seed that is itself hashed and split,
// not the discrete-log scalar directly — mirroring iden3's
// babyjub.PrivateKey convention
// (other_examples/14b4ae2e_privacy-ethereum-privacy-precompiles__babyjubjub-eddsa-eddsa.go.go).
package eddsa

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/dchest/blake512"
	"github.com/kysee/maci-voter-core/babyjub"
	"github.com/kysee/maci-voter-core/field"
	"github.com/kysee/maci-voter-core/poseidon"
)

// ErrInvalidSignature is returned by Verify for any rejected signature:
// S >= r, R outside the subgroup, or a failed curve equation check.
var ErrInvalidSignature = errors.New("eddsa: invalid signature")

// PrivateKeySeed is the 32-byte voter identity seed. It is hashed with
// BLAKE-512 and split into hL||hR before use; it is never itself a
// discrete-log scalar.
type PrivateKeySeed [32]byte

// Signature is a Baby Jubjub EdDSA-Poseidon signature.
type Signature struct {
	R babyjub.Point
	S *big.Int
}

func splitHash(seed PrivateKeySeed) (hL, hR []byte) {
	h := blake512.New()
	h.Write(seed[:])
	digest := h.Sum(nil)
	return digest[:32], digest[32:]
}

// clampedScalar reduces hL>>3, interpreted as a little-endian integer,
// modulo the subgroup order r per spec.md §4.7's clamped-scalar
// convention.
func clampedScalar(hL []byte) (babyjub.Scalar, error) {
	le := make([]byte, len(hL))
	for i, b := range hL {
		le[len(hL)-1-i] = b
	}
	x := new(big.Int).SetBytes(le)
	x.Rsh(x, 3)
	return babyjub.NewScalar(x)
}

// Prv2Pub derives the EdDSA public key for a voter identity seed:
// (hL>>3)*G.
func Prv2Pub(sk PrivateKeySeed) (babyjub.Point, error) {
	hL, _ := splitHash(sk)
	s, err := clampedScalar(hL)
	if err != nil {
		return babyjub.Point{}, fmt.Errorf("eddsa: prv2pub: %w", err)
	}
	return babyjub.DerivePublic(s)
}

func challenge(r, pk babyjub.Point, m field.Element) (field.Element, error) {
	return poseidon.HashN([]field.Element{r.X, r.Y, pk.X, pk.Y, m})
}

// Sign produces a deterministic EdDSA-Poseidon signature over the
// single field element m (typically a command hash).
func Sign(m field.Element, sk PrivateKeySeed) (Signature, error) {
	hL, hR := splitHash(sk)
	clamped, err := clampedScalar(hL)
	if err != nil {
		return Signature{}, fmt.Errorf("eddsa: sign: %w", err)
	}
	pk, err := babyjub.DerivePublic(clamped)
	if err != nil {
		return Signature{}, fmt.Errorf("eddsa: sign: deriving public key: %w", err)
	}

	mBytes := m.BytesLE()
	rh := blake512.New()
	rh.Write(hR)
	rh.Write(mBytes[:])
	digest := rh.Sum(nil)
	rBig := new(big.Int).Mod(new(big.Int).SetBytes(digest), babyjub.SubOrder())
	if rBig.Sign() == 0 {
		return Signature{}, fmt.Errorf("eddsa: sign: nonce reduced to zero")
	}
	rScalar, err := babyjub.NewScalar(rBig)
	if err != nil {
		return Signature{}, fmt.Errorf("eddsa: sign: %w", err)
	}
	R, err := babyjub.DerivePublic(rScalar)
	if err != nil {
		return Signature{}, fmt.Errorf("eddsa: sign: deriving R: %w", err)
	}

	k, err := challenge(R, pk, m)
	if err != nil {
		return Signature{}, fmt.Errorf("eddsa: sign: computing challenge: %w", err)
	}

	r := babyjub.SubOrder()
	s := new(big.Int).Mul(k.BigInt(), clamped.BigInt())
	s.Add(s, rScalar.BigInt())
	s.Mod(s, r)

	return Signature{R: R, S: s}, nil
}

// Verify reports whether sig is a valid signature over m under pk. It
// rejects S >= r and R outside the prime-order subgroup before
// checking the curve equation, per spec.md §4.7.
func Verify(m field.Element, sig Signature, pk babyjub.Point) error {
	r := babyjub.SubOrder()
	if sig.S == nil || sig.S.Sign() < 0 || sig.S.Cmp(r) >= 0 {
		return fmt.Errorf("%w: S out of range", ErrInvalidSignature)
	}
	if !babyjub.InSubgroup(sig.R) {
		return fmt.Errorf("%w: R not in subgroup", ErrInvalidSignature)
	}

	k, err := challenge(sig.R, pk, m)
	if err != nil {
		return fmt.Errorf("eddsa: verify: computing challenge: %w", err)
	}

	sScalar, err := babyjub.NewScalar(sig.S)
	if err != nil {
		return fmt.Errorf("%w: S reduces to zero", ErrInvalidSignature)
	}
	lhs, err := babyjub.Mul(babyjub.G(), sScalar)
	if err != nil {
		return fmt.Errorf("eddsa: verify: %w", err)
	}

	kScalar, err := babyjub.NewScalar(k.BigInt())
	if err != nil {
		// k == 0: rhs degenerates to sig.R alone.
		if !babyjub.Equal(lhs, sig.R) {
			return ErrInvalidSignature
		}
		return nil
	}
	kpk, err := babyjub.Mul(pk, kScalar)
	if err != nil {
		return fmt.Errorf("eddsa: verify: %w", err)
	}
	rhs := babyjub.Add(sig.R, kpk)

	if !babyjub.Equal(lhs, rhs) {
		return ErrInvalidSignature
	}
	return nil
}
