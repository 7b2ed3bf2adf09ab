// Package eth implements the Ethereum client surface used by the watcher.
//
// This package contains:
//   - Provider: the full client surface (chain queries, signing, sending)
//   - DirectClient: a go-ethereum backed Provider with an operator key
//   - Multiplexer: first-success failover over an ordered list of providers
//   - Mock: an in-memory Provider for tests
//   - EventClient: decodes contract logs into priority and admin operations
package eth

import (
	"context"
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

var (
	// ErrAllProvidersFailed is returned by the Multiplexer when every provider failed a call.
	ErrAllProvidersFailed = errors.New("all providers failed")

	// ErrNoProviders is returned by the Multiplexer when it has nothing to delegate to.
	ErrNoProviders = errors.New("no providers configured")

	// ErrNoSigner is returned by signing operations of a client without an operator key.
	ErrNoSigner = errors.New("no operator key configured")
)

// TxOptions overrides fields of a prepared transaction. Nil fields are
// filled from the network.
type TxOptions struct {
	Nonce    *uint64
	GasPrice *big.Int
	GasLimit uint64
	Value    *big.Int
}

// SignedCallResult is a signed transaction ready to be sent.
type SignedCallResult struct {
	RawTx    []byte
	GasPrice *big.Int
	Nonce    uint64
	Hash     common.Hash
}

// ExecutedTxStatus describes a mined transaction.
type ExecutedTxStatus struct {
	Confirmations uint64
	Success       bool
	Receipt       *types.Receipt
}

// Provider defines the full client surface of an Ethereum backend.
type Provider interface {
	// BlockNumber returns the chain head as seen by this provider
	BlockNumber(ctx context.Context) (uint64, error)

	// Logs returns the logs matching the filter, in emission order
	Logs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error)

	PendingNonce(ctx context.Context) (uint64, error)
	CurrentNonce(ctx context.Context) (uint64, error)
	GasPrice(ctx context.Context) (*big.Int, error)

	// SenderBalance returns the balance of the operator account
	SenderBalance(ctx context.Context) (*big.Int, error)
	Balance(ctx context.Context, addr common.Address) (*big.Int, error)

	// SignPreparedTx signs a call to the main contract
	SignPreparedTx(ctx context.Context, data []byte, opts TxOptions) (*SignedCallResult, error)
	SignPreparedTxForAddr(ctx context.Context, data []byte, to common.Address, opts TxOptions) (*SignedCallResult, error)
	SendRawTx(ctx context.Context, raw []byte) (common.Hash, error)

	// TxReceipt returns nil without error for unknown transactions
	TxReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error)
	TxStatus(ctx context.Context, hash common.Hash) (*ExecutedTxStatus, error)

	// CallMainContract calls a view method of the main contract. A nil block means latest.
	CallMainContract(ctx context.Context, method string, args []any, block *big.Int) ([]any, error)

	// EncodeTxData packs a main contract call. It does not touch the network.
	EncodeTxData(method string, args ...any) ([]byte, error)
}

var (
	_ Provider = (*DirectClient)(nil)
	_ Provider = (*Multiplexer)(nil)
	_ Provider = (*Mock)(nil)
)
