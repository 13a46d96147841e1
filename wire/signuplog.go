package wire

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	gethtypes "github.com/ethereum/go-ethereum/core/types"

	"github.com/kysee/maci-voter-core/field"
)

// signUpEventABI is the minimal ABI fragment for a poll contract's
// SignUp event. It exists only to decode the state index the external
// registration log assigns a freshly registered public key (spec.md
// §4.10: "state_index: assigned by the external registration log") —
// this package never builds or submits a signup transaction itself,
// only decodes the receipt publisher.EthClient.SignUp gets back.
const signUpEventABI = `[{"anonymous":false,"inputs":[{"indexed":true,"name":"stateIndex","type":"uint256"},{"indexed":false,"name":"pubKeyX","type":"uint256"},{"indexed":false,"name":"pubKeyY","type":"uint256"}],"name":"SignUp","type":"event"}]`

var signUpEvent abi.ABI

func init() {
	parsed, err := abi.JSON(strings.NewReader(signUpEventABI))
	if err != nil {
		panic(fmt.Sprintf("wire: parsing SignUp event ABI: %v", err))
	}
	signUpEvent = parsed
}

// ErrNotASignUpLog is returned when a log's topic0 doesn't match the
// SignUp event signature.
var ErrNotASignUpLog = errors.New("wire: log does not match the SignUp event signature")

// DecodeSignUpLog extracts the freshly assigned state index and
// registered public key from a SignUp event log emitted by a poll
// contract's registration transaction.
func DecodeSignUpLog(log gethtypes.Log) (stateIndex uint64, pubKeyX, pubKeyY field.Element, err error) {
	event := signUpEvent.Events["SignUp"]
	if len(log.Topics) == 0 || log.Topics[0] != event.ID {
		return 0, field.Element{}, field.Element{}, ErrNotASignUpLog
	}
	if len(log.Topics) < 2 {
		return 0, field.Element{}, field.Element{}, fmt.Errorf("wire: SignUp log missing indexed stateIndex topic")
	}
	stateIndex = new(big.Int).SetBytes(log.Topics[1].Bytes()).Uint64()

	var decoded struct {
		PubKeyX *big.Int
		PubKeyY *big.Int
	}
	if err := signUpEvent.UnpackIntoInterface(&decoded, "SignUp", log.Data); err != nil {
		return 0, field.Element{}, field.Element{}, fmt.Errorf("wire: unpacking SignUp log data: %w", err)
	}
	return stateIndex, field.NewFromBigInt(decoded.PubKeyX), field.NewFromBigInt(decoded.PubKeyY), nil
}
