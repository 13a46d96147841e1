// Package message implements the ten-step vote/key-change message
// assembly pipeline (spec.md §4.9): pack, hash, sign, lay out the
// plaintext, encrypt, and pad to the fixed wire length.
package message

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"math/big"

	"github.com/kysee/maci-voter-core/babyjub"
	"github.com/kysee/maci-voter-core/command"
	"github.com/kysee/maci-voter-core/ecdh"
	"github.com/kysee/maci-voter-core/eddsa"
	"github.com/kysee/maci-voter-core/field"
	"github.com/kysee/maci-voter-core/sponge"
)

// zeroNonce returns the sponge nonce fixed to 0 for every message:
// freshness is guaranteed by the per-message ephemeral key, not by the
// sponge nonce (spec.md §4.9 step 8).
func zeroNonce() *big.Int { return big.NewInt(0) }

func effectiveRNG(rng io.Reader) io.Reader {
	if rng == nil {
		return rand.Reader
	}
	return rng
}

// FixedMsgLen is the wire-fixed ciphertext length every EncryptedMessage
// is padded to, regardless of how many plaintext blocks the sponge
// actually produced.
const FixedMsgLen = 10

// plaintextLen is the length of the 7-element plaintext laid out in
// step 6 of spec.md §4.9.
const plaintextLen = 7

// ErrBudgetExceeded is returned when weight^2 exceeds the voter's
// remaining voice credits.
var ErrBudgetExceeded = errors.New("message: vote weight exceeds remaining voice credits")

// ErrOverflow is returned when the sponge ciphertext exceeds
// FixedMsgLen and cannot be padded to fit the wire format.
var ErrOverflow = errors.New("message: ciphertext exceeds fixed message length")

// Encrypted is the wire-exact encrypted message: a fixed-length
// ciphertext plus the ephemeral public key used to derive the shared
// encryption key.
type Encrypted struct {
	EncMessage             [FixedMsgLen]field.Element
	EncPubKeyX, EncPubKeyY field.Element
}

// Proposal describes the external state BuildVoteMessage /
// BuildKeyChangeMessage read from: the coordinator's encryption key and
// the voter's assigned state index.
type Proposal struct {
	CoordPubKey babyjub.Point
	StateIndex  uint64
	PollID      uint64
}

// Ballot is the caller-supplied view of the voter's current ballot
// state that this package consumes and updates; it mirrors
// ballot.Record's protocol-relevant fields without importing package
// ballot, keeping message free of ballot's storage concerns.
type Ballot struct {
	NextNonce      uint64
	BoundPublicKey babyjub.Point
}

// VoteSummary is the UI-facing record of the most recent vote cast,
// not security-critical (spec.md §4.10).
type VoteSummary struct {
	Choice uint64
	Weight uint64
	Cost   uint64
}

// Result bundles the encrypted message with the proposed ballot state
// and bookkeeping the caller must persist. Ballot here is *not yet
// committed*: per spec.md §5, the nonce increment and (for key
// changes) the bound-key update must only become observable through
// ballot.Store after Publisher.PublishMessage succeeds, never before.
type Result struct {
	Encrypted Encrypted
	Ballot    Ballot
	LastVote  VoteSummary
	// NewSecretKey is set only by BuildKeyChangeMessage: the freshly
	// generated identity key the caller must persist via secretstore
	// before publishing, per spec.md §4.9.
	NewSecretKey *eddsa.PrivateKeySeed
}

func assemble(
	proposal Proposal,
	voterSK eddsa.PrivateKeySeed,
	b Ballot,
	newPK babyjub.Point,
	voteOptionIndex, newVoteWeight uint64,
	rng io.Reader,
) (Encrypted, Ballot, error) {
	if b.NextNonce < 1 {
		return Encrypted{}, Ballot{}, fmt.Errorf("message: ballot.next_nonce must be >= 1, got %d", b.NextNonce)
	}

	salt, err := command.Salt(rng)
	if err != nil {
		return Encrypted{}, Ballot{}, fmt.Errorf("message: drawing salt: %w", err)
	}

	packed, err := command.Pack(command.Command{
		StateIndex:      proposal.StateIndex,
		VoteOptionIndex: voteOptionIndex,
		NewVoteWeight:   newVoteWeight,
		Nonce:           b.NextNonce,
		PollID:          proposal.PollID,
	})
	if err != nil {
		return Encrypted{}, Ballot{}, fmt.Errorf("message: packing command: %w", err)
	}

	cmdHash, err := command.Hash(packed, newPK.X, newPK.Y, salt)
	if err != nil {
		return Encrypted{}, Ballot{}, fmt.Errorf("message: hashing command: %w", err)
	}

	sig, err := eddsa.Sign(cmdHash, voterSK)
	if err != nil {
		return Encrypted{}, Ballot{}, fmt.Errorf("message: signing command: %w", err)
	}

	plaintext := [plaintextLen]field.Element{
		packed, newPK.X, newPK.Y, salt, sig.R.X, sig.R.Y, field.NewFromBigInt(sig.S),
	}

	eph, err := ecdh.EphemeralKeypair(rng)
	if err != nil {
		return Encrypted{}, Ballot{}, fmt.Errorf("message: generating ephemeral key: %w", err)
	}
	shared, err := ecdh.SharedPoint(eph.SK, proposal.CoordPubKey)
	if err != nil {
		return Encrypted{}, Ballot{}, fmt.Errorf("message: deriving shared point: %w", err)
	}

	ct, err := sponge.Encrypt(plaintext[:], sponge.Key{X: shared.X, Y: shared.Y}, zeroNonce())
	if err != nil {
		return Encrypted{}, Ballot{}, fmt.Errorf("message: encrypting: %w", err)
	}
	if len(ct) > FixedMsgLen {
		return Encrypted{}, Ballot{}, fmt.Errorf("%w: ciphertext length %d", ErrOverflow, len(ct))
	}

	var encMessage [FixedMsgLen]field.Element
	copy(encMessage[:], ct)

	encrypted := Encrypted{
		EncMessage: encMessage,
		EncPubKeyX: eph.PK.X,
		EncPubKeyY: eph.PK.Y,
	}
	updated := Ballot{NextNonce: b.NextNonce + 1, BoundPublicKey: b.BoundPublicKey}
	return encrypted, updated, nil
}

// BuildVoteMessage implements spec.md §4.9's ten-step pipeline for a
// plain vote: choice must be a valid vote-option index for the
// proposal, and weight^2 must not exceed remainingVoiceCredits.
func BuildVoteMessage(
	proposal Proposal,
	voterSK eddsa.PrivateKeySeed,
	b Ballot,
	choice, weight, remainingVoiceCredits uint64,
	rng io.Reader,
) (Result, error) {
	cost := weight * weight
	if cost > remainingVoiceCredits {
		return Result{}, fmt.Errorf("%w: weight %d costs %d, remaining %d", ErrBudgetExceeded, weight, cost, remainingVoiceCredits)
	}

	encrypted, updated, err := assemble(proposal, voterSK, b, b.BoundPublicKey, choice, weight, rng)
	if err != nil {
		return Result{}, err
	}

	return Result{
		Encrypted: encrypted,
		Ballot:    updated,
		LastVote:  VoteSummary{Choice: choice, Weight: weight, Cost: cost},
	}, nil
}

// BuildKeyChangeMessage implements spec.md §4.9's key-change variant:
// voteOptionIndex and newVoteWeight are forced to zero, a fresh
// identity key is generated, and the new secret key is returned for
// the caller to persist via secretstore before publishing.
func BuildKeyChangeMessage(
	proposal Proposal,
	voterSK eddsa.PrivateKeySeed,
	b Ballot,
	rng io.Reader,
) (Result, error) {
	var newSK eddsa.PrivateKeySeed
	if _, err := io.ReadFull(effectiveRNG(rng), newSK[:]); err != nil {
		return Result{}, fmt.Errorf("message: generating new identity key: %w", err)
	}
	newPK, err := eddsa.Prv2Pub(newSK)
	if err != nil {
		return Result{}, fmt.Errorf("message: deriving new public key: %w", err)
	}

	encrypted, updated, err := assemble(proposal, voterSK, b, newPK, 0, 0, rng)
	if err != nil {
		return Result{}, err
	}
	updated.BoundPublicKey = newPK

	return Result{
		Encrypted:    encrypted,
		Ballot:       updated,
		NewSecretKey: &newSK,
	}, nil
}
