// Package keyderivation turns a 32-byte seed, or raw system randomness,
// into a Baby Jubjub scalar suitable for use as a private key.
package keyderivation

import (
	"crypto/rand"
	"fmt"
	"io"
	"math/big"

	"github.com/dchest/blake512"
	"github.com/kysee/maci-voter-core/babyjub"
)

// DerivePrivateKey computes BLAKE-512(seed), interprets the first 32
// bytes as a little-endian integer, and reduces modulo r. On the
// vanishingly unlikely event the reduction is zero, it retries with a
// one-byte tweak appended to the seed, per spec.md §4.4.
func DerivePrivateKey(seed [32]byte) (babyjub.Scalar, error) {
	tweak := byte(0)
	for {
		h := blake512.New()
		h.Write(seed[:])
		if tweak != 0 {
			h.Write([]byte{tweak})
		}
		digest := h.Sum(nil)

		lo := digest[:32]
		le := make([]byte, 32)
		for i := range lo {
			le[i] = lo[31-i]
		}
		x := new(big.Int).SetBytes(le)

		sc, err := babyjub.NewScalar(x)
		if err == nil {
			return sc, nil
		}
		if tweak == 255 {
			return babyjub.Scalar{}, fmt.Errorf("keyderivation: exhausted tweak space")
		}
		tweak++
	}
}

// GenerateRandomPrivateKey draws 32 bytes from rng with rejection
// sampling against the subgroup order r, avoiding modular bias, and
// never returns the zero scalar.
func GenerateRandomPrivateKey(rng io.Reader) (babyjub.Scalar, error) {
	if rng == nil {
		rng = rand.Reader
	}
	r := babyjub.SubOrder()
	for {
		buf := make([]byte, 32)
		if _, err := io.ReadFull(rng, buf); err != nil {
			return babyjub.Scalar{}, fmt.Errorf("keyderivation: reading randomness: %w", err)
		}
		x := new(big.Int).SetBytes(buf)
		// Rejection sampling: only accept values strictly below the
		// largest multiple of r that fits in 256 bits, so every
		// accepted residue mod r is equally likely.
		limit := new(big.Int).Lsh(big.NewInt(1), 256)
		maxMultiple := new(big.Int).Sub(limit, new(big.Int).Mod(limit, r))
		if x.Cmp(maxMultiple) >= 0 {
			continue
		}
		sc, err := babyjub.NewScalar(x)
		if err != nil {
			continue // zero scalar, resample
		}
		return sc, nil
	}
}
