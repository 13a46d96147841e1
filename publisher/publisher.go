// Package publisher abstracts the on-chain calls the core needs from
// the outside world: publishing an encrypted message and registering a
// voter's signup (spec.md §4.12). The core never touches network
// semantics directly; any failure here surfaces as a Publisher error,
// never as a crypto error.
package publisher

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/kysee/maci-voter-core/field"
	"github.com/kysee/maci-voter-core/wire"
)

// Error wraps a failure from the Publisher boundary, tagged with the
// operation that failed so callers can distinguish RPC/wallet
// rejection from every other error class in the core (spec.md §7).
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string { return fmt.Sprintf("publisher: %s: %v", e.Op, e.Err) }
func (e *Error) Unwrap() error { return e.Err }

// TxReceipt is the minimal confirmation the core needs back from
// publish_message: enough to prove the call landed.
type TxReceipt struct {
	TxHash common.Hash
}

// Publisher is the two-operation contract spec.md §4.12 requires.
type Publisher interface {
	// PublishMessage submits an encrypted message for pollAddr. Idempotent
	// from the core's perspective; retries are the caller's business.
	PublishMessage(ctx context.Context, pollAddr common.Address, encMessage [10]field.Element, ephPubKeyX, ephPubKeyY field.Element) (TxReceipt, error)

	// SignUp registers a public key and returns the freshly assigned
	// state index from the registration event.
	SignUp(ctx context.Context, pubKeyX, pubKeyY field.Element, gateData, creditData []byte) (uint64, error)
}

// EthClient is a concrete Publisher backed by go-ethereum's ethclient
// and accounts/abi/bind, grounded on the teacher's own go-ethereum
// usage (test/helpers_test.go's types/rawdb/trie imports) and on
// provers/relayer.go's RPCEndpoint-driven construction.
type EthClient struct {
	client  *ethclient.Client
	opts    *bind.TransactOpts
	pollABI PollBinding
}

// PollBinding is the narrow slice of a generated poll-contract binding
// this package needs: the two ABI methods backing Publisher. A real
// deployment wires in the abigen-generated contract binding here; it is
// left as an interface so EthClient does not depend on a specific
// generated package. SignUp returns the submitted transaction, not a
// state index directly — an abigen transactor method only ever returns
// a *types.Transaction; the assigned state index is emitted as a
// SignUp event and only exists once the transaction is mined, which is
// exactly what wire.DecodeSignUpLog extracts from the receipt.
type PollBinding interface {
	PublishMessage(opts *bind.TransactOpts, pollAddr common.Address, encMessage [10]*big.Int, ephPubKeyX, ephPubKeyY *big.Int) (*common.Hash, error)
	SignUp(opts *bind.TransactOpts, pubKeyX, pubKeyY *big.Int, gateData, creditData []byte) (*gethtypes.Transaction, error)
}

// NewEthClient dials rpcEndpoint and returns an EthClient ready to
// publish through binding using opts for transaction signing.
func NewEthClient(ctx context.Context, rpcEndpoint string, opts *bind.TransactOpts, binding PollBinding) (*EthClient, error) {
	client, err := ethclient.DialContext(ctx, rpcEndpoint)
	if err != nil {
		return nil, &Error{Op: "dial", Err: err}
	}
	return &EthClient{client: client, opts: opts, pollABI: binding}, nil
}

// PublishMessage packs the ten field elements into a uint256[10] ABI
// argument, the same fixed-width big-endian packing
// CreateProofData uses for Solidity proof bytes in the teacher's
// types/lightclient.go.
func (c *EthClient) PublishMessage(ctx context.Context, pollAddr common.Address, encMessage [10]field.Element, ephPubKeyX, ephPubKeyY field.Element) (TxReceipt, error) {
	var packed [10]*big.Int
	for i, e := range encMessage {
		packed[i] = e.BigInt()
	}
	opts := *c.opts
	opts.Context = ctx

	hash, err := c.pollABI.PublishMessage(&opts, pollAddr, packed, ephPubKeyX.BigInt(), ephPubKeyY.BigInt())
	if err != nil {
		return TxReceipt{}, &Error{Op: "publish_message", Err: err}
	}
	return TxReceipt{TxHash: *hash}, nil
}

// SignUp registers pubKey, waits for the transaction to be mined, and
// decodes the assigned state index from the SignUp event the
// registration log emits (spec.md §4.10).
func (c *EthClient) SignUp(ctx context.Context, pubKeyX, pubKeyY field.Element, gateData, creditData []byte) (uint64, error) {
	opts := *c.opts
	opts.Context = ctx

	tx, err := c.pollABI.SignUp(&opts, pubKeyX.BigInt(), pubKeyY.BigInt(), gateData, creditData)
	if err != nil {
		return 0, &Error{Op: "sign_up", Err: err}
	}

	receipt, err := bind.WaitMined(ctx, c.client, tx)
	if err != nil {
		return 0, &Error{Op: "sign_up_wait_mined", Err: err}
	}

	for _, log := range receipt.Logs {
		stateIndex, decodedX, decodedY, err := wire.DecodeSignUpLog(*log)
		if err != nil {
			continue
		}
		if !field.Equal(decodedX, pubKeyX) || !field.Equal(decodedY, pubKeyY) {
			continue
		}
		return stateIndex, nil
	}
	return 0, &Error{Op: "sign_up", Err: fmt.Errorf("no matching SignUp event in receipt logs")}
}

// Mock is an in-memory Publisher for tests, playing the role
// FileFetcher plays for Fetcher in the teacher: a deterministic
// stand-in that records every call it received.
type Mock struct {
	mu sync.Mutex

	NextStateIndex uint64
	FailPublish    error
	FailSignUp     error

	PublishCalls []MockPublishCall
	SignUpCalls  []MockSignUpCall
}

// MockPublishCall records one PublishMessage invocation.
type MockPublishCall struct {
	PollAddr               common.Address
	EncMessage             [10]field.Element
	EphPubKeyX, EphPubKeyY field.Element
}

// MockSignUpCall records one SignUp invocation.
type MockSignUpCall struct {
	PubKeyX, PubKeyY     field.Element
	GateData, CreditData []byte
}

// NewMock returns a Mock whose first assigned state index is 1.
func NewMock() *Mock {
	return &Mock{NextStateIndex: 1}
}

// PublishMessage records the call and returns a synthetic receipt, or
// FailPublish if set.
func (m *Mock) PublishMessage(_ context.Context, pollAddr common.Address, encMessage [10]field.Element, ephPubKeyX, ephPubKeyY field.Element) (TxReceipt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailPublish != nil {
		return TxReceipt{}, &Error{Op: "publish_message", Err: m.FailPublish}
	}
	m.PublishCalls = append(m.PublishCalls, MockPublishCall{
		PollAddr: pollAddr, EncMessage: encMessage, EphPubKeyX: ephPubKeyX, EphPubKeyY: ephPubKeyY,
	})
	return TxReceipt{TxHash: common.BigToHash(big.NewInt(int64(len(m.PublishCalls))))}, nil
}

// SignUp records the call and returns the next sequential state index,
// or FailSignUp if set.
func (m *Mock) SignUp(_ context.Context, pubKeyX, pubKeyY field.Element, gateData, creditData []byte) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailSignUp != nil {
		return 0, &Error{Op: "sign_up", Err: m.FailSignUp}
	}
	m.SignUpCalls = append(m.SignUpCalls, MockSignUpCall{
		PubKeyX: pubKeyX, PubKeyY: pubKeyY, GateData: gateData, CreditData: creditData,
	})
	idx := m.NextStateIndex
	m.NextStateIndex++
	return idx, nil
}
