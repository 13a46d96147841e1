package message

import (
	"math/big"
	"testing"

	"github.com/kysee/maci-voter-core/babyjub"
	"github.com/kysee/maci-voter-core/ecdh"
	"github.com/kysee/maci-voter-core/eddsa"
	"github.com/kysee/maci-voter-core/sponge"
	"github.com/stretchr/testify/require"
)

func testVoterSK() eddsa.PrivateKeySeed {
	var sk eddsa.PrivateKeySeed
	for i := range sk {
		sk[i] = byte(i + 7)
	}
	return sk
}

func testProposal(t *testing.T) (Proposal, babyjub.Scalar) {
	coordSK, err := babyjub.NewScalar(big.NewInt(12345))
	require.NoError(t, err)
	coordPK, err := babyjub.DerivePublic(coordSK)
	require.NoError(t, err)
	return Proposal{CoordPubKey: coordPK, StateIndex: 3, PollID: 1}, coordSK
}

func TestBuildVoteMessageProducesFixedLengthCiphertext(t *testing.T) {
	proposal, _ := testProposal(t)
	voterSK := testVoterSK()
	pk, err := eddsa.Prv2Pub(voterSK)
	require.NoError(t, err)

	b := Ballot{NextNonce: 1, BoundPublicKey: pk}
	res, err := BuildVoteMessage(proposal, voterSK, b, 1, 3, 100, nil)
	require.NoError(t, err)
	require.Equal(t, FixedMsgLen, len(res.Encrypted.EncMessage))
	require.Equal(t, uint64(2), res.Ballot.NextNonce)
	require.Equal(t, uint64(9), res.LastVote.Cost)
	require.Nil(t, res.NewSecretKey)
}

func TestBuildVoteMessageRejectsBudgetOverrun(t *testing.T) {
	proposal, _ := testProposal(t)
	voterSK := testVoterSK()
	pk, err := eddsa.Prv2Pub(voterSK)
	require.NoError(t, err)

	b := Ballot{NextNonce: 1, BoundPublicKey: pk}
	_, err = BuildVoteMessage(proposal, voterSK, b, 1, 20, 100, nil)
	require.ErrorIs(t, err, ErrBudgetExceeded)
}

func TestBuildVoteMessageRejectsZeroNonce(t *testing.T) {
	proposal, _ := testProposal(t)
	voterSK := testVoterSK()
	pk, err := eddsa.Prv2Pub(voterSK)
	require.NoError(t, err)

	b := Ballot{NextNonce: 0, BoundPublicKey: pk}
	_, err = BuildVoteMessage(proposal, voterSK, b, 1, 3, 100, nil)
	require.Error(t, err)
}

func TestBuildKeyChangeMessageReturnsNewSecretKey(t *testing.T) {
	proposal, _ := testProposal(t)
	voterSK := testVoterSK()
	pk, err := eddsa.Prv2Pub(voterSK)
	require.NoError(t, err)

	b := Ballot{NextNonce: 1, BoundPublicKey: pk}
	res, err := BuildKeyChangeMessage(proposal, voterSK, b, nil)
	require.NoError(t, err)
	require.NotNil(t, res.NewSecretKey)
	require.False(t, babyjub.Equal(res.Ballot.BoundPublicKey, pk))
}

func TestEncryptedMessageDecryptsUnderCoordinatorKey(t *testing.T) {
	proposal, coordSK := testProposal(t)
	voterSK := testVoterSK()
	pk, err := eddsa.Prv2Pub(voterSK)
	require.NoError(t, err)

	b := Ballot{NextNonce: 1, BoundPublicKey: pk}
	res, err := BuildVoteMessage(proposal, voterSK, b, 1, 3, 100, nil)
	require.NoError(t, err)

	ephPK := babyjub.Point{X: res.Encrypted.EncPubKeyX, Y: res.Encrypted.EncPubKeyY}
	shared, err := ecdh.SharedPoint(coordSK, ephPK)
	require.NoError(t, err)

	pt, err := sponge.Decrypt(res.Encrypted.EncMessage[:], sponge.Key{X: shared.X, Y: shared.Y}, zeroNonce(), plaintextLen)
	require.NoError(t, err)
	require.Len(t, pt, plaintextLen)
}
