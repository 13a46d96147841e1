// Package ecdh implements ephemeral Baby Jubjub keypair generation and
// raw shared-point derivation for the MACI message-encryption pipeline.
package ecdh

import (
	"fmt"
	"io"

	"github.com/kysee/maci-voter-core/babyjub"
	"github.com/kysee/maci-voter-core/keyderivation"
)

// EphemeralKeypair draws a fresh scalar from rng (nil selects
// crypto/rand) and returns the corresponding keypair. Ephemeral
// keypairs are used exactly once and never persisted — see
// spec.md §3's Ephemeral keypair lifecycle.
func EphemeralKeypair(rng io.Reader) (babyjub.KeyPair, error) {
	sk, err := keyderivation.GenerateRandomPrivateKey(rng)
	if err != nil {
		return babyjub.KeyPair{}, fmt.Errorf("ecdh: generating ephemeral key: %w", err)
	}
	pk, err := babyjub.DerivePublic(sk)
	if err != nil {
		return babyjub.KeyPair{}, fmt.Errorf("ecdh: deriving ephemeral public key: %w", err)
	}
	return babyjub.KeyPair{SK: sk, PK: pk}, nil
}

// SharedPoint returns mySk*theirPk without hashing. The raw coordinates
// feed the duplex sponge directly as key material (spec.md §4.5); both
// parties reach the same point because mySk*theirPk = mySk*theirSk*G =
// theirSk*myPk.
func SharedPoint(mySk babyjub.Scalar, theirPk babyjub.Point) (babyjub.Point, error) {
	p, err := babyjub.Mul(theirPk, mySk)
	if err != nil {
		return babyjub.Point{}, fmt.Errorf("ecdh: shared point: %w", err)
	}
	return p, nil
}
