package keyderivation

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDerivePrivateKeyIsDeterministic(t *testing.T) {
	var seed [32]byte
	for i := range seed {
		seed[i] = byte(i + 1)
	}
	sc1, err := DerivePrivateKey(seed)
	require.NoError(t, err)
	sc2, err := DerivePrivateKey(seed)
	require.NoError(t, err)
	require.Equal(t, sc1.BigInt(), sc2.BigInt())
}

func TestDerivePrivateKeyDiffersAcrossSeeds(t *testing.T) {
	var seedA, seedB [32]byte
	seedA[0] = 1
	seedB[0] = 2
	scA, err := DerivePrivateKey(seedA)
	require.NoError(t, err)
	scB, err := DerivePrivateKey(seedB)
	require.NoError(t, err)
	require.NotEqual(t, scA.BigInt(), scB.BigInt())
}

func TestGenerateRandomPrivateKeyUsesSystemRandByDefault(t *testing.T) {
	sc, err := GenerateRandomPrivateKey(nil)
	require.NoError(t, err)
	require.NotNil(t, sc.BigInt())
}

func TestGenerateRandomPrivateKeyIsDeterministicWithSeededSource(t *testing.T) {
	rng := SeededRNG{Seed: []byte("a fixed deterministic test seed")}
	sc1, err := GenerateRandomPrivateKey(rng.Reader())
	require.NoError(t, err)
	sc2, err := GenerateRandomPrivateKey(rng.Reader())
	require.NoError(t, err)
	require.Equal(t, sc1.BigInt(), sc2.BigInt())
}

func TestSeededRNGProducesRepeatableStream(t *testing.T) {
	rng := SeededRNG{Seed: []byte("stream-seed")}
	buf1 := make([]byte, 64)
	_, err := io.ReadFull(rng.Reader(), buf1)
	require.NoError(t, err)

	buf2 := make([]byte, 64)
	_, err = io.ReadFull(rng.Reader(), buf2)
	require.NoError(t, err)

	require.True(t, bytes.Equal(buf1, buf2))
}

func TestSystemRNGReaderProducesNonZeroBytes(t *testing.T) {
	buf := make([]byte, 32)
	_, err := io.ReadFull(SystemRNG{}.Reader(), buf)
	require.NoError(t, err)
	require.NotEqual(t, make([]byte, 32), buf)
}
