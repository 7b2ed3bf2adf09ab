package eth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/vietddude/ethwatch/internal/indexing/metrics"
)

// FailureHook observes every individual provider failure.
type FailureHook func(provider, method string, err error)

type namedProvider struct {
	name     string
	provider Provider
	monitor  *ProviderMonitor
}

// Multiplexer is a Provider that forwards each call to its providers in
// order and returns the first success. Results of different providers are
// never compared: this is failover, not a quorum.
//
// Providers are added once at startup. After that the Multiplexer is
// read-only and safe for concurrent use.
type Multiplexer struct {
	providers []namedProvider
	onFailure FailureHook
	log       *slog.Logger
}

// MultiplexerOption configures a Multiplexer.
type MultiplexerOption func(*Multiplexer)

// WithFailureHook registers a hook called for each failed provider attempt.
func WithFailureHook(hook FailureHook) MultiplexerOption {
	return func(m *Multiplexer) { m.onFailure = hook }
}

// WithMultiplexerLogger sets the logger used to report provider failures.
func WithMultiplexerLogger(log *slog.Logger) MultiplexerOption {
	return func(m *Multiplexer) { m.log = log }
}

// NewMultiplexer creates an empty Multiplexer.
func NewMultiplexer(opts ...MultiplexerOption) *Multiplexer {
	m := &Multiplexer{log: slog.Default().With("component", "eth_multiplexer")}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// AddProvider appends a provider to the failover order.
func (m *Multiplexer) AddProvider(name string, p Provider) *Multiplexer {
	m.providers = append(m.providers, namedProvider{
		name:     name,
		provider: p,
		monitor:  NewProviderMonitor(),
	})
	return m
}

// Len returns the number of providers.
func (m *Multiplexer) Len() int {
	return len(m.providers)
}

// Stats returns monitoring statistics per provider, in failover order.
func (m *Multiplexer) Stats() []MonitorStats {
	stats := make([]MonitorStats, 0, len(m.providers))
	for _, np := range m.providers {
		s := np.monitor.GetStats()
		s.Name = np.name
		stats = append(stats, s)
	}
	return stats
}

// multipleCall makes one pass over the providers. The aggregate error
// carries every provider error so callers can still inspect them.
func multipleCall[T any](
	ctx context.Context,
	m *Multiplexer,
	method string,
	call func(ctx context.Context, p Provider) (T, error),
) (T, error) {
	var zero T
	if len(m.providers) == 0 {
		return zero, ErrNoProviders
	}

	errs := make([]error, 0, len(m.providers))
	for _, np := range m.providers {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}

		start := time.Now()
		res, err := call(ctx, np.provider)
		metrics.ProviderCallsTotal.WithLabelValues(np.name, method).Inc()
		if err == nil {
			np.monitor.RecordRequest(time.Since(start))
			return res, nil
		}

		np.monitor.RecordFailure(err)
		metrics.ProviderErrorsTotal.WithLabelValues(np.name, method).Inc()
		m.log.Error("Error in provider", "provider", np.name, "method", method, "error", err)
		if m.onFailure != nil {
			m.onFailure(np.name, method, err)
		}
		errs = append(errs, fmt.Errorf("%s: %w", np.name, err))
	}

	return zero, fmt.Errorf("%w: %w", ErrAllProvidersFailed, errors.Join(errs...))
}

func (m *Multiplexer) BlockNumber(ctx context.Context) (uint64, error) {
	return multipleCall(ctx, m, "BlockNumber", func(ctx context.Context, p Provider) (uint64, error) {
		return p.BlockNumber(ctx)
	})
}

func (m *Multiplexer) Logs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error) {
	return multipleCall(ctx, m, "Logs", func(ctx context.Context, p Provider) ([]types.Log, error) {
		return p.Logs(ctx, q)
	})
}

func (m *Multiplexer) PendingNonce(ctx context.Context) (uint64, error) {
	return multipleCall(ctx, m, "PendingNonce", func(ctx context.Context, p Provider) (uint64, error) {
		return p.PendingNonce(ctx)
	})
}

func (m *Multiplexer) CurrentNonce(ctx context.Context) (uint64, error) {
	return multipleCall(ctx, m, "CurrentNonce", func(ctx context.Context, p Provider) (uint64, error) {
		return p.CurrentNonce(ctx)
	})
}

func (m *Multiplexer) GasPrice(ctx context.Context) (*big.Int, error) {
	return multipleCall(ctx, m, "GasPrice", func(ctx context.Context, p Provider) (*big.Int, error) {
		return p.GasPrice(ctx)
	})
}

func (m *Multiplexer) SenderBalance(ctx context.Context) (*big.Int, error) {
	return multipleCall(ctx, m, "SenderBalance", func(ctx context.Context, p Provider) (*big.Int, error) {
		return p.SenderBalance(ctx)
	})
}

func (m *Multiplexer) Balance(ctx context.Context, addr common.Address) (*big.Int, error) {
	return multipleCall(ctx, m, "Balance", func(ctx context.Context, p Provider) (*big.Int, error) {
		return p.Balance(ctx, addr)
	})
}

func (m *Multiplexer) SignPreparedTx(ctx context.Context, data []byte, opts TxOptions) (*SignedCallResult, error) {
	return multipleCall(ctx, m, "SignPreparedTx", func(ctx context.Context, p Provider) (*SignedCallResult, error) {
		return p.SignPreparedTx(ctx, data, opts)
	})
}

func (m *Multiplexer) SignPreparedTxForAddr(
	ctx context.Context,
	data []byte,
	to common.Address,
	opts TxOptions,
) (*SignedCallResult, error) {
	return multipleCall(ctx, m, "SignPreparedTxForAddr", func(ctx context.Context, p Provider) (*SignedCallResult, error) {
		return p.SignPreparedTxForAddr(ctx, data, to, opts)
	})
}

func (m *Multiplexer) SendRawTx(ctx context.Context, raw []byte) (common.Hash, error) {
	return multipleCall(ctx, m, "SendRawTx", func(ctx context.Context, p Provider) (common.Hash, error) {
		return p.SendRawTx(ctx, raw)
	})
}

func (m *Multiplexer) TxReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	return multipleCall(ctx, m, "TxReceipt", func(ctx context.Context, p Provider) (*types.Receipt, error) {
		return p.TxReceipt(ctx, hash)
	})
}

func (m *Multiplexer) TxStatus(ctx context.Context, hash common.Hash) (*ExecutedTxStatus, error) {
	return multipleCall(ctx, m, "TxStatus", func(ctx context.Context, p Provider) (*ExecutedTxStatus, error) {
		return p.TxStatus(ctx, hash)
	})
}

func (m *Multiplexer) CallMainContract(ctx context.Context, method string, args []any, block *big.Int) ([]any, error) {
	return multipleCall(ctx, m, "CallMainContract", func(ctx context.Context, p Provider) ([]any, error) {
		return p.CallMainContract(ctx, method, args, block)
	})
}

// EncodeTxData always uses the first provider: encoding does not depend on network state.
func (m *Multiplexer) EncodeTxData(method string, args ...any) ([]byte, error) {
	if len(m.providers) == 0 {
		return nil, ErrNoProviders
	}
	return m.providers[0].provider.EncodeTxData(method, args...)
}
