package field

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInverseOfZeroFails(t *testing.T) {
	_, err := Inverse(Zero())
	require.ErrorIs(t, err, ErrZeroInverse)
}

func TestInverseRoundTrip(t *testing.T) {
	a := NewFromUint64(12345)
	inv, err := Inverse(a)
	require.NoError(t, err)
	require.True(t, Equal(Mul(a, inv), One()))
}

func TestBytesLERoundTrip(t *testing.T) {
	a := NewFromUint64(0xdeadbeef)
	b := a.BytesLE()
	got := FromBytesLE(b[:])
	require.True(t, Equal(a, got))
}

func TestAddSubInverse(t *testing.T) {
	a := NewFromUint64(7)
	b := NewFromUint64(19)
	require.True(t, Equal(Sub(Add(a, b), b), a))
}

func TestReductionIsCanonical(t *testing.T) {
	p := Modulus()
	over := new(big.Int).Add(p, big.NewInt(5))
	e := NewFromBigInt(over)
	require.Equal(t, big.NewInt(5), e.BigInt())
}
