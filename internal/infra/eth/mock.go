package eth

import (
	"context"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// Mock is an in-memory Provider. It serves logs appended with AddLog and a
// head set with SetHead, and fails every call while Err is set.
type Mock struct {
	mu       sync.Mutex
	head     uint64
	logs     []types.Log
	err      error
	calls    map[string]int
	contract *Contract
	sent     [][]byte
}

// NewMock creates a Mock for the given contract.
func NewMock(contract *Contract) *Mock {
	return &Mock{
		contract: contract,
		calls:    make(map[string]int),
	}
}

// SetHead sets the block number returned by BlockNumber.
func (m *Mock) SetHead(head uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.head = head
}

// SetErr makes every following call fail with err. A nil err restores normal operation.
func (m *Mock) SetErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// AddLog appends a log to the mock chain.
func (m *Mock) AddLog(l types.Log) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logs = append(m.logs, l)
}

// Calls returns how many times method was invoked.
func (m *Mock) Calls(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[method]
}

// TotalCalls returns the number of invocations across all methods.
func (m *Mock) TotalCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	total := 0
	for _, n := range m.calls {
		total += n
	}
	return total
}

// Sent returns the raw transactions passed to SendRawTx.
func (m *Mock) Sent() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][]byte(nil), m.sent...)
}

func (m *Mock) enter(method string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls[method]++
	return m.err
}

func (m *Mock) BlockNumber(ctx context.Context) (uint64, error) {
	if err := m.enter("BlockNumber"); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.head, nil
}

func (m *Mock) Logs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error) {
	if err := m.enter("Logs"); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	from := uint64(0)
	if q.FromBlock != nil {
		from = m.resolve(q.FromBlock)
	}
	to := m.head
	if q.ToBlock != nil {
		to = m.resolve(q.ToBlock)
	}

	var out []types.Log
	for _, l := range m.logs {
		if l.BlockNumber < from || l.BlockNumber > to {
			continue
		}
		if !matchAddress(q.Addresses, l.Address) || !matchTopics(q.Topics, l.Topics) {
			continue
		}
		out = append(out, l)
	}
	return out, nil
}

// resolve maps negative block tags (latest, pending, ...) to the head.
func (m *Mock) resolve(n *big.Int) uint64 {
	if n.Sign() < 0 {
		return m.head
	}
	return n.Uint64()
}

func matchAddress(addrs []common.Address, addr common.Address) bool {
	if len(addrs) == 0 {
		return true
	}
	for _, a := range addrs {
		if a == addr {
			return true
		}
	}
	return false
}

func matchTopics(filter [][]common.Hash, topics []common.Hash) bool {
	for i, alternatives := range filter {
		if len(alternatives) == 0 {
			continue
		}
		if i >= len(topics) {
			return false
		}
		found := false
		for _, t := range alternatives {
			if t == topics[i] {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func (m *Mock) PendingNonce(ctx context.Context) (uint64, error) {
	if err := m.enter("PendingNonce"); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return uint64(len(m.sent)), nil
}

func (m *Mock) CurrentNonce(ctx context.Context) (uint64, error) {
	if err := m.enter("CurrentNonce"); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return uint64(len(m.sent)), nil
}

func (m *Mock) GasPrice(ctx context.Context) (*big.Int, error) {
	if err := m.enter("GasPrice"); err != nil {
		return nil, err
	}
	return big.NewInt(1_000_000_000), nil
}

func (m *Mock) SenderBalance(ctx context.Context) (*big.Int, error) {
	if err := m.enter("SenderBalance"); err != nil {
		return nil, err
	}
	return new(big.Int), nil
}

func (m *Mock) Balance(ctx context.Context, addr common.Address) (*big.Int, error) {
	if err := m.enter("Balance"); err != nil {
		return nil, err
	}
	return new(big.Int), nil
}

func (m *Mock) SignPreparedTx(ctx context.Context, data []byte, opts TxOptions) (*SignedCallResult, error) {
	return m.SignPreparedTxForAddr(ctx, data, m.contract.Address(), opts)
}

// SignPreparedTxForAddr returns the call data itself as the "signed" transaction.
func (m *Mock) SignPreparedTxForAddr(ctx context.Context, data []byte, to common.Address, opts TxOptions) (*SignedCallResult, error) {
	if err := m.enter("SignPreparedTxForAddr"); err != nil {
		return nil, err
	}
	nonce := uint64(0)
	if opts.Nonce != nil {
		nonce = *opts.Nonce
	}
	gasPrice := opts.GasPrice
	if gasPrice == nil {
		gasPrice = big.NewInt(1_000_000_000)
	}
	raw := append([]byte(nil), data...)
	return &SignedCallResult{RawTx: raw, GasPrice: gasPrice, Nonce: nonce, Hash: common.BytesToHash(raw)}, nil
}

func (m *Mock) SendRawTx(ctx context.Context, raw []byte) (common.Hash, error) {
	if err := m.enter("SendRawTx"); err != nil {
		return common.Hash{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, append([]byte(nil), raw...))
	return common.BytesToHash(raw), nil
}

func (m *Mock) TxReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	if err := m.enter("TxReceipt"); err != nil {
		return nil, err
	}
	return nil, nil
}

func (m *Mock) TxStatus(ctx context.Context, hash common.Hash) (*ExecutedTxStatus, error) {
	if err := m.enter("TxStatus"); err != nil {
		return nil, err
	}
	return nil, nil
}

func (m *Mock) CallMainContract(ctx context.Context, method string, args []any, block *big.Int) ([]any, error) {
	if err := m.enter("CallMainContract"); err != nil {
		return nil, err
	}
	return nil, nil
}

func (m *Mock) EncodeTxData(method string, args ...any) ([]byte, error) {
	if err := m.enter("EncodeTxData"); err != nil {
		return nil, err
	}
	return m.contract.Pack(method, args...)
}
