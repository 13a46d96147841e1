package ecdh

import (
	"math/big"
	"testing"

	"github.com/kysee/maci-voter-core/babyjub"
	"github.com/stretchr/testify/require"
)

func TestEphemeralKeypairProducesValidPoint(t *testing.T) {
	kp, err := EphemeralKeypair(nil)
	require.NoError(t, err)
	require.True(t, babyjub.InCurve(kp.PK))
	require.True(t, babyjub.InSubgroup(kp.PK))
}

func TestEphemeralKeypairsDiffer(t *testing.T) {
	kp1, err := EphemeralKeypair(nil)
	require.NoError(t, err)
	kp2, err := EphemeralKeypair(nil)
	require.NoError(t, err)
	require.False(t, babyjub.Equal(kp1.PK, kp2.PK))
}

func TestSharedPointAgreesBothDirections(t *testing.T) {
	skA, err := babyjub.NewScalar(big.NewInt(111))
	require.NoError(t, err)
	pkA, err := babyjub.DerivePublic(skA)
	require.NoError(t, err)

	skB, err := babyjub.NewScalar(big.NewInt(222))
	require.NoError(t, err)
	pkB, err := babyjub.DerivePublic(skB)
	require.NoError(t, err)

	sharedA, err := SharedPoint(skA, pkB)
	require.NoError(t, err)
	sharedB, err := SharedPoint(skB, pkA)
	require.NoError(t, err)

	require.True(t, babyjub.Equal(sharedA, sharedB))
}

func TestSharedPointRejectsZeroScalar(t *testing.T) {
	pk := babyjub.G()
	_, err := SharedPoint(babyjub.Scalar{}, pk)
	require.ErrorIs(t, err, babyjub.ErrZeroScalar)
}
