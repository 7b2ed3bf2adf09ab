package eth

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
)

const defaultGasLimit uint64 = 500_000

// DirectClient talks to a single Ethereum node through go-ethereum's
// ethclient and signs transactions with the operator key.
type DirectClient struct {
	name     string
	client   *ethclient.Client
	contract *Contract
	chainID  *big.Int
	key      *ecdsa.PrivateKey
	sender   common.Address
	timeout  time.Duration
}

// DirectConfig holds the settings of a DirectClient.
type DirectConfig struct {
	Name    string
	URL     string
	ChainID uint64
	// PrivateKey is the hex encoded operator key. Empty disables signing.
	PrivateKey string
	Timeout    time.Duration
}

// NewDirectClient dials the node at cfg.URL.
func NewDirectClient(ctx context.Context, cfg DirectConfig, contract *Contract) (*DirectClient, error) {
	client, err := ethclient.DialContext(ctx, cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", cfg.Name, err)
	}

	c := &DirectClient{
		name:     cfg.Name,
		client:   client,
		contract: contract,
		chainID:  new(big.Int).SetUint64(cfg.ChainID),
		timeout:  cfg.Timeout,
	}

	if cfg.PrivateKey != "" {
		key, err := crypto.HexToECDSA(trimHexPrefix(cfg.PrivateKey))
		if err != nil {
			client.Close()
			return nil, fmt.Errorf("parse operator key: %w", err)
		}
		c.key = key
		c.sender = crypto.PubkeyToAddress(key.PublicKey)
	}

	return c, nil
}

func trimHexPrefix(s string) string {
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		return s[2:]
	}
	return s
}

// Name returns the provider name.
func (c *DirectClient) Name() string {
	return c.name
}

// Close closes the underlying RPC connection.
func (c *DirectClient) Close() {
	c.client.Close()
}

func (c *DirectClient) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.timeout)
}

func (c *DirectClient) BlockNumber(ctx context.Context) (uint64, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	n, err := c.client.BlockNumber(ctx)
	if err != nil {
		return 0, fmt.Errorf("eth_blockNumber failed: %w", err)
	}
	return n, nil
}

func (c *DirectClient) Logs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	logs, err := c.client.FilterLogs(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("eth_getLogs failed: %w", err)
	}
	return logs, nil
}

func (c *DirectClient) PendingNonce(ctx context.Context) (uint64, error) {
	if c.key == nil {
		return 0, ErrNoSigner
	}
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	nonce, err := c.client.PendingNonceAt(ctx, c.sender)
	if err != nil {
		return 0, fmt.Errorf("pending nonce: %w", err)
	}
	return nonce, nil
}

func (c *DirectClient) CurrentNonce(ctx context.Context) (uint64, error) {
	if c.key == nil {
		return 0, ErrNoSigner
	}
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	nonce, err := c.client.NonceAt(ctx, c.sender, nil)
	if err != nil {
		return 0, fmt.Errorf("current nonce: %w", err)
	}
	return nonce, nil
}

func (c *DirectClient) GasPrice(ctx context.Context) (*big.Int, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	price, err := c.client.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("gas price: %w", err)
	}
	return price, nil
}

func (c *DirectClient) SenderBalance(ctx context.Context) (*big.Int, error) {
	if c.key == nil {
		return nil, ErrNoSigner
	}
	return c.Balance(ctx, c.sender)
}

func (c *DirectClient) Balance(ctx context.Context, addr common.Address) (*big.Int, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	balance, err := c.client.BalanceAt(ctx, addr, nil)
	if err != nil {
		return nil, fmt.Errorf("balance of %s: %w", addr.Hex(), err)
	}
	return balance, nil
}

func (c *DirectClient) SignPreparedTx(ctx context.Context, data []byte, opts TxOptions) (*SignedCallResult, error) {
	return c.SignPreparedTxForAddr(ctx, data, c.contract.Address(), opts)
}

func (c *DirectClient) SignPreparedTxForAddr(
	ctx context.Context,
	data []byte,
	to common.Address,
	opts TxOptions,
) (*SignedCallResult, error) {
	if c.key == nil {
		return nil, ErrNoSigner
	}

	var nonce uint64
	if opts.Nonce != nil {
		nonce = *opts.Nonce
	} else {
		n, err := c.PendingNonce(ctx)
		if err != nil {
			return nil, err
		}
		nonce = n
	}

	gasPrice := opts.GasPrice
	if gasPrice == nil {
		p, err := c.GasPrice(ctx)
		if err != nil {
			return nil, err
		}
		gasPrice = p
	}

	gasLimit := opts.GasLimit
	if gasLimit == 0 {
		gasLimit = defaultGasLimit
	}

	value := opts.Value
	if value == nil {
		value = new(big.Int)
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		GasPrice: gasPrice,
		Gas:      gasLimit,
		To:       &to,
		Value:    value,
		Data:     data,
	})

	signed, err := types.SignTx(tx, types.LatestSignerForChainID(c.chainID), c.key)
	if err != nil {
		return nil, fmt.Errorf("sign tx: %w", err)
	}

	raw, err := signed.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("encode signed tx: %w", err)
	}

	return &SignedCallResult{
		RawTx:    raw,
		GasPrice: gasPrice,
		Nonce:    nonce,
		Hash:     signed.Hash(),
	}, nil
}

func (c *DirectClient) SendRawTx(ctx context.Context, raw []byte) (common.Hash, error) {
	var tx types.Transaction
	if err := tx.UnmarshalBinary(raw); err != nil {
		return common.Hash{}, fmt.Errorf("decode raw tx: %w", err)
	}

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	if err := c.client.SendTransaction(ctx, &tx); err != nil {
		return common.Hash{}, fmt.Errorf("send tx: %w", err)
	}
	return tx.Hash(), nil
}

func (c *DirectClient) TxReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	receipt, err := c.client.TransactionReceipt(ctx, hash)
	if errors.Is(err, ethereum.NotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("tx receipt %s: %w", hash.Hex(), err)
	}
	return receipt, nil
}

// TxStatus returns nil for transactions that are not mined yet.
func (c *DirectClient) TxStatus(ctx context.Context, hash common.Hash) (*ExecutedTxStatus, error) {
	receipt, err := c.TxReceipt(ctx, hash)
	if err != nil || receipt == nil {
		return nil, err
	}

	head, err := c.BlockNumber(ctx)
	if err != nil {
		return nil, err
	}

	status := &ExecutedTxStatus{
		Success: receipt.Status == types.ReceiptStatusSuccessful,
		Receipt: receipt,
	}
	if receipt.BlockNumber != nil && head >= receipt.BlockNumber.Uint64() {
		status.Confirmations = head - receipt.BlockNumber.Uint64()
	}
	return status, nil
}

func (c *DirectClient) CallMainContract(ctx context.Context, method string, args []any, block *big.Int) ([]any, error) {
	data, err := c.contract.Pack(method, args...)
	if err != nil {
		return nil, err
	}

	to := c.contract.Address()
	msg := ethereum.CallMsg{To: &to, Data: data}
	if c.key != nil {
		msg.From = c.sender
	}

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	out, err := c.client.CallContract(ctx, msg, block)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", method, err)
	}
	return c.contract.Unpack(method, out)
}

func (c *DirectClient) EncodeTxData(method string, args ...any) ([]byte, error) {
	return c.contract.Pack(method, args...)
}
