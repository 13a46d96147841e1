package publisher

import (
	"context"
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/kysee/maci-voter-core/field"
	"github.com/stretchr/testify/require"
)

func TestMockPublishMessageRecordsCall(t *testing.T) {
	m := NewMock()
	var enc [10]field.Element
	enc[0] = field.NewFromUint64(1)

	receipt, err := m.PublishMessage(context.Background(), common.HexToAddress("0x1"), enc, field.NewFromUint64(2), field.NewFromUint64(3))
	require.NoError(t, err)
	require.NotEqual(t, common.Hash{}, receipt.TxHash)
	require.Len(t, m.PublishCalls, 1)
	require.True(t, field.Equal(m.PublishCalls[0].EncMessage[0], enc[0]))
}

func TestMockSignUpAssignsSequentialIndices(t *testing.T) {
	m := NewMock()
	idx1, err := m.SignUp(context.Background(), field.NewFromUint64(1), field.NewFromUint64(2), nil, nil)
	require.NoError(t, err)
	idx2, err := m.SignUp(context.Background(), field.NewFromUint64(3), field.NewFromUint64(4), nil, nil)
	require.NoError(t, err)

	require.Equal(t, uint64(1), idx1)
	require.Equal(t, uint64(2), idx2)
}

func TestMockPublishFailureWrapsAsPublisherError(t *testing.T) {
	m := NewMock()
	m.FailPublish = errors.New("rpc timeout")
	var enc [10]field.Element

	_, err := m.PublishMessage(context.Background(), common.HexToAddress("0x1"), enc, field.Element{}, field.Element{})
	require.Error(t, err)
	var perr *Error
	require.ErrorAs(t, err, &perr)
	require.Equal(t, "publish_message", perr.Op)
}
