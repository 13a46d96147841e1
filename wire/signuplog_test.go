package wire

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/require"

	"github.com/kysee/maci-voter-core/field"
)

func buildSignUpLog(t *testing.T, stateIndex uint64, pubKeyX, pubKeyY *big.Int) gethtypes.Log {
	t.Helper()
	event := signUpEvent.Events["SignUp"]
	data, err := event.Inputs.NonIndexed().Pack(pubKeyX, pubKeyY)
	require.NoError(t, err)

	return gethtypes.Log{
		Topics: []common.Hash{event.ID, common.BigToHash(new(big.Int).SetUint64(stateIndex))},
		Data:   data,
	}
}

func TestDecodeSignUpLogRoundTrip(t *testing.T) {
	log := buildSignUpLog(t, 42, big.NewInt(111), big.NewInt(222))

	stateIndex, x, y, err := DecodeSignUpLog(log)
	require.NoError(t, err)
	require.Equal(t, uint64(42), stateIndex)
	require.True(t, field.Equal(x, field.NewFromBigInt(big.NewInt(111))))
	require.True(t, field.Equal(y, field.NewFromBigInt(big.NewInt(222))))
}

func TestDecodeSignUpLogRejectsWrongEvent(t *testing.T) {
	log := gethtypes.Log{
		Topics: []common.Hash{common.HexToHash("0xdeadbeef")},
		Data:   nil,
	}
	_, _, _, err := DecodeSignUpLog(log)
	require.ErrorIs(t, err, ErrNotASignUpLog)
}

func TestDecodeSignUpLogRejectsMissingTopic(t *testing.T) {
	event := signUpEvent.Events["SignUp"]
	log := gethtypes.Log{
		Topics: []common.Hash{event.ID},
		Data:   nil,
	}
	_, _, _, err := DecodeSignUpLog(log)
	require.Error(t, err)
}
