// Package sponge implements the Poseidon duplex-sponge authenticated
// encryption scheme used to encrypt voter commands: rate 3, capacity 1,
// state width T=4 (spec.md §4.6). This construction is MACI's own; it
// is not a published standard, so there is no library to delegate to —
// it is built directly on poseidon.Permute.
package sponge

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"math/big"

	"github.com/kysee/maci-voter-core/field"
	"github.com/kysee/maci-voter-core/poseidon"
)

// ErrAuthenticationFailed is returned by Decrypt when the recomputed
// tag does not match the ciphertext's trailing element.
var ErrAuthenticationFailed = errors.New("sponge: authentication tag mismatch")

const (
	rate     = 3
	capacity = 1
	width    = rate + capacity
)

// two128 is the domain separator T4 = 2^128 named in spec.md §3.
var two128 = new(big.Int).Lsh(big.NewInt(1), 128)

// Key is the raw two-element ECDH shared point, consumed directly
// without hashing (spec.md §4.5/§4.6).
type Key struct {
	X, Y field.Element
}

func initialState(key Key, nonce *big.Int, length int) []field.Element {
	iv := new(big.Int).Add(nonce, new(big.Int).Mul(big.NewInt(int64(length)), two128))
	return []field.Element{
		field.Zero(),
		key.X,
		key.Y,
		field.NewFromBigInt(iv),
	}
}

func padTo3(plaintext []field.Element) []field.Element {
	n := len(plaintext)
	padded := n
	if padded%rate != 0 {
		padded += rate - (padded % rate)
	}
	out := make([]field.Element, padded)
	copy(out, plaintext)
	for i := n; i < padded; i++ {
		out[i] = field.Zero()
	}
	return out
}

// Encrypt implements spec.md §4.6's encryption procedure. The result
// has length 3*ceil(len(plaintext)/3) + 1 (ciphertext blocks plus the
// trailing authentication tag).
func Encrypt(plaintext []field.Element, key Key, nonce *big.Int) ([]field.Element, error) {
	l := len(plaintext)
	padded := padTo3(plaintext)
	state := initialState(key, nonce, l)

	ciphertext := make([]field.Element, 0, len(padded)+1)
	for i := 0; i < len(padded); i += rate {
		if err := poseidon.Permute(state); err != nil {
			return nil, fmt.Errorf("sponge: encrypt: %w", err)
		}
		state[1] = field.Add(state[1], padded[i])
		state[2] = field.Add(state[2], padded[i+1])
		state[3] = field.Add(state[3], padded[i+2])
		ciphertext = append(ciphertext, state[1], state[2], state[3])
	}
	if err := poseidon.Permute(state); err != nil {
		return nil, fmt.Errorf("sponge: encrypt: final permute: %w", err)
	}
	ciphertext = append(ciphertext, state[1])
	return ciphertext, nil
}

// Decrypt reverses Encrypt and verifies the authentication tag in
// constant time. length is the caller's claimed plaintext length L; a
// mismatch between the recomputed tag and ciphertext's tag — including
// one caused by a forged length — returns ErrAuthenticationFailed.
func Decrypt(ciphertext []field.Element, key Key, nonce *big.Int, length int) ([]field.Element, error) {
	if len(ciphertext) < 1 || (len(ciphertext)-1)%rate != 0 {
		return nil, fmt.Errorf("%w: malformed ciphertext length %d", ErrAuthenticationFailed, len(ciphertext))
	}
	blocks := (len(ciphertext) - 1) / rate
	state := initialState(key, nonce, length)

	plaintext := make([]field.Element, 0, blocks*rate)
	for i := 0; i < blocks; i++ {
		if err := poseidon.Permute(state); err != nil {
			return nil, fmt.Errorf("sponge: decrypt: %w", err)
		}
		c1, c2, c3 := ciphertext[i*rate], ciphertext[i*rate+1], ciphertext[i*rate+2]
		p1 := field.Sub(c1, state[1])
		p2 := field.Sub(c2, state[2])
		p3 := field.Sub(c3, state[3])
		plaintext = append(plaintext, p1, p2, p3)
		state[1], state[2], state[3] = c1, c2, c3
	}
	if err := poseidon.Permute(state); err != nil {
		return nil, fmt.Errorf("sponge: decrypt: final permute: %w", err)
	}
	wantTag := ciphertext[len(ciphertext)-1].BytesLE()
	gotTag := state[1].BytesLE()
	if subtle.ConstantTimeCompare(wantTag[:], gotTag[:]) != 1 {
		return nil, ErrAuthenticationFailed
	}
	if length < 0 || length > len(plaintext) {
		return nil, fmt.Errorf("%w: claimed length %d exceeds decrypted block count", ErrAuthenticationFailed, length)
	}
	return plaintext[:length], nil
}
