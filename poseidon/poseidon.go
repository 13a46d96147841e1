// Package poseidon implements the Poseidon permutation and the
// fixed-arity hash functions built on top of it, over the BN254 scalar
// field (package field).
package poseidon

import (
	"fmt"
	"math/big"

	iden3poseidon "github.com/iden3/go-iden3-crypto/poseidon"
	"github.com/kysee/maci-voter-core/field"
)

var (
	constantsCache = map[int][]field.Element{}
	mdsCache       = map[int][][]field.Element{}
)

func constantsFor(t int) ([]field.Element, [][]field.Element) {
	c, ok := constantsCache[t]
	if !ok {
		c = roundConstants(t)
		constantsCache[t] = c
	}
	m, ok := mdsCache[t]
	if !ok {
		m = mdsMatrix(t)
		mdsCache[t] = m
	}
	return c, m
}

// Permute runs the full Poseidon permutation in place over state, whose
// length fixes the state width t (t must be 3 or 4).
func Permute(state []field.Element) error {
	t := len(state)
	if _, ok := partialRounds[t]; !ok {
		return fmt.Errorf("poseidon: unsupported state width %d", t)
	}
	rc, mds := constantsFor(t)
	rp := partialRounds[t]
	totalRounds := fullRounds + rp
	halfFull := fullRounds / 2

	round := 0
	for ; round < halfFull; round++ {
		addRoundConstants(state, rc, round, t)
		sboxFull(state)
		mix(state, mds)
	}
	for ; round < halfFull+rp; round++ {
		addRoundConstants(state, rc, round, t)
		sboxPartial(state)
		mix(state, mds)
	}
	for ; round < totalRounds; round++ {
		addRoundConstants(state, rc, round, t)
		sboxFull(state)
		mix(state, mds)
	}
	return nil
}

func addRoundConstants(state []field.Element, rc []field.Element, round, t int) {
	for i := range state {
		state[i] = field.Add(state[i], rc[round*t+i])
	}
}

// sboxFull raises every cell to the 5th power.
func sboxFull(state []field.Element) {
	for i := range state {
		state[i] = field.Exp(state[i], 5)
	}
}

// sboxPartial raises only the first cell to the 5th power, the
// Poseidon optimization that keeps the non-linear layer cheap during
// the partial rounds.
func sboxPartial(state []field.Element) {
	state[0] = field.Exp(state[0], 5)
}

func mix(state []field.Element, mds [][]field.Element) {
	t := len(state)
	next := make([]field.Element, t)
	for i := 0; i < t; i++ {
		acc := field.Zero()
		for j := 0; j < t; j++ {
			acc = field.Add(acc, field.Mul(mds[i][j], state[j]))
		}
		next[i] = acc
	}
	copy(state, next)
}

// HashWithCap builds the state [cap, inputs[0], ..., inputs[t-2]], runs
// the t-width permutation, and returns the full output state. This is
// the sponge-construction primitive DuplexSponge is built on; no
// published Go package exposes it, so it always runs through the
// hand-rolled Permute above rather than any third-party Poseidon.
func HashWithCap(cap field.Element, inputs []field.Element) ([]field.Element, error) {
	t := len(inputs) + 1
	if _, ok := partialRounds[t]; !ok {
		return nil, fmt.Errorf("poseidon: unsupported arity for HashWithCap: %d inputs", len(inputs))
	}
	state := make([]field.Element, t)
	state[0] = cap
	copy(state[1:], inputs)
	if err := Permute(state); err != nil {
		return nil, err
	}
	return state, nil
}

// HashN computes the fixed-arity Poseidon hash of inputs (capacity 0),
// delegating to github.com/iden3/go-iden3-crypto/poseidon.Hash — the
// real circomlib-compatible implementation — so command hashes and the
// §8 reference vectors (hash([1]), hash([1,2]), hash([1,2,3,4])) are
// bit-exact with the verification circuit.
func HashN(inputs []field.Element) (field.Element, error) {
	bigInputs := make([]*big.Int, len(inputs))
	for i, in := range inputs {
		bigInputs[i] = in.BigInt()
	}
	out, err := iden3poseidon.Hash(bigInputs)
	if err != nil {
		return field.Element{}, fmt.Errorf("poseidon: hash_n: %w", err)
	}
	return field.NewFromBigInt(out), nil
}
