package babyjub

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewScalarRejectsZeroModR(t *testing.T) {
	_, err := NewScalar(SubOrder())
	require.ErrorIs(t, err, ErrZeroScalar)
}

func TestNewScalarReducesModR(t *testing.T) {
	r := SubOrder()
	over := new(big.Int).Add(r, big.NewInt(5))
	s, err := NewScalar(over)
	require.NoError(t, err)
	require.Equal(t, big.NewInt(5), s.BigInt())
}

func TestGIsOnCurveAndInSubgroup(t *testing.T) {
	g := G()
	require.True(t, InCurve(g))
	require.True(t, InSubgroup(g))
}

func TestIdentityIsIdentityForAdd(t *testing.T) {
	g := G()
	sum := Add(g, Identity())
	require.True(t, Equal(sum, g))
}

func TestMulRejectsZeroScalar(t *testing.T) {
	_, err := Mul(G(), Scalar{})
	require.ErrorIs(t, err, ErrZeroScalar)
}

func TestMulIsConsistentWithDerivePublic(t *testing.T) {
	s, err := NewScalar(big.NewInt(12345))
	require.NoError(t, err)

	p1, err := Mul(G(), s)
	require.NoError(t, err)
	p2, err := DerivePublic(s)
	require.NoError(t, err)
	require.True(t, Equal(p1, p2))
}

func TestMulByDifferentScalarsGivesDifferentPoints(t *testing.T) {
	s1, err := NewScalar(big.NewInt(3))
	require.NoError(t, err)
	s2, err := NewScalar(big.NewInt(7))
	require.NoError(t, err)

	p1, err := Mul(G(), s1)
	require.NoError(t, err)
	p2, err := Mul(G(), s2)
	require.NoError(t, err)
	require.False(t, Equal(p1, p2))
}

func TestEqualDistinguishesPoints(t *testing.T) {
	require.False(t, Equal(G(), Identity()))
	require.True(t, Equal(G(), G()))
}
