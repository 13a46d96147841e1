// Package command implements the voter command bit-layout (§4.8): five
// 50-bit fields packed into a single BN254 field element, plus the
// Poseidon command hash voters sign.
package command

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"math/big"

	"github.com/kysee/maci-voter-core/field"
	"github.com/kysee/maci-voter-core/poseidon"
)

// ErrFieldOverflow is returned by Pack when any of the five fields
// does not fit in 50 bits.
var ErrFieldOverflow = errors.New("command: field exceeds 50 bits")

// ErrShortForm is reserved for callers that sniff an externally
// received command encoding before calling Unpack: some source code
// paths pack key-changes as a bare stateIndex with no bit-shifted
// fields at all (spec.md Open Question b). That raw form is
// indistinguishable, once encoded, from this layout's legitimate
// stateIndex-only command, so Unpack itself always decodes the
// mandated full bit-layout; an ingest boundary that knows it is
// talking to a source emitting the short form should reject it with
// this error before the bytes ever reach Unpack.
var ErrShortForm = errors.New("command: short-form key-change packing is not accepted")

const (
	fieldBits = 50
	fieldMask = (uint64(1) << fieldBits) - 1

	shiftStateIndex      = 0
	shiftVoteOptionIndex = 50
	shiftNewVoteWeight   = 100
	shiftNonce           = 150
	shiftPollID          = 200
)

// Command is the unpacked five-field voter command.
type Command struct {
	StateIndex      uint64
	VoteOptionIndex uint64
	NewVoteWeight   uint64
	Nonce           uint64
	PollID          uint64
}

func checkRange(name string, v uint64) error {
	if v > fieldMask {
		return fmt.Errorf("%w: %s=%d does not fit in %d bits", ErrFieldOverflow, name, v, fieldBits)
	}
	return nil
}

// Pack encodes cmd into the single-field-element layout of spec.md
// §4.8. Returns ErrFieldOverflow if any field exceeds 50 bits.
func Pack(cmd Command) (field.Element, error) {
	if err := checkRange("stateIndex", cmd.StateIndex); err != nil {
		return field.Element{}, err
	}
	if err := checkRange("voteOptionIndex", cmd.VoteOptionIndex); err != nil {
		return field.Element{}, err
	}
	if err := checkRange("newVoteWeight", cmd.NewVoteWeight); err != nil {
		return field.Element{}, err
	}
	if err := checkRange("nonce", cmd.Nonce); err != nil {
		return field.Element{}, err
	}
	if err := checkRange("pollId", cmd.PollID); err != nil {
		return field.Element{}, err
	}

	packed := new(big.Int)
	packed.Or(packed, new(big.Int).Lsh(big.NewInt(int64(cmd.StateIndex)), shiftStateIndex))
	packed.Or(packed, new(big.Int).Lsh(big.NewInt(int64(cmd.VoteOptionIndex)), shiftVoteOptionIndex))
	packed.Or(packed, new(big.Int).Lsh(big.NewInt(int64(cmd.NewVoteWeight)), shiftNewVoteWeight))
	packed.Or(packed, new(big.Int).Lsh(big.NewInt(int64(cmd.Nonce)), shiftNonce))
	packed.Or(packed, new(big.Int).Lsh(big.NewInt(int64(cmd.PollID)), shiftPollID))

	return field.NewFromBigInt(packed), nil
}

// Unpack decodes a packed field element back into its five components,
// masking 50 bits at each of the layout's shift positions. It always
// decodes the mandated full bit-layout of spec.md §4.8 — see
// ErrShortForm's doc comment for the short-form packing this does not
// (and cannot) detect on its own.
func Unpack(packed field.Element) (Command, error) {
	x := packed.BigInt()
	mask := new(big.Int).SetUint64(fieldMask)

	extract := func(shift uint) uint64 {
		shifted := new(big.Int).Rsh(x, shift)
		shifted.And(shifted, mask)
		return shifted.Uint64()
	}

	cmd := Command{
		StateIndex:      extract(shiftStateIndex),
		VoteOptionIndex: extract(shiftVoteOptionIndex),
		NewVoteWeight:   extract(shiftNewVoteWeight),
		Nonce:           extract(shiftNonce),
		PollID:          extract(shiftPollID),
	}

	return cmd, nil
}

// Salt draws a 31-byte random value from rng (nil selects crypto/rand)
// and reduces it modulo p, per spec.md §4.8. The test suite this codec
// was built against only asserts salt < p; spec.md flags that stricter
// distribution requirements from the on-chain circuit remain an open
// question (Open Question a).
func Salt(rng io.Reader) (field.Element, error) {
	if rng == nil {
		rng = rand.Reader
	}
	buf := make([]byte, 31)
	if _, err := io.ReadFull(rng, buf); err != nil {
		return field.Element{}, fmt.Errorf("command: drawing salt: %w", err)
	}
	return field.FromBytesLE(buf), nil
}

// Hash computes Poseidon.hash([packed, newPkX, newPkY, salt]), the
// command hash voters sign with EdDSA.
func Hash(packed, newPkX, newPkY, salt field.Element) (field.Element, error) {
	h, err := poseidon.HashN([]field.Element{packed, newPkX, newPkY, salt})
	if err != nil {
		return field.Element{}, fmt.Errorf("command: hash: %w", err)
	}
	return h, nil
}
