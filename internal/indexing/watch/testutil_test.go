package watch

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/vietddude/ethwatch/internal/core/domain"
)

// costOp is an op payload with an arbitrary chunk cost.
type costOp int

func (c costOp) Type() domain.OpType { return domain.OpTypeDeposit }
func (c costOp) Chunks() int         { return int(c) }

func testOp(id domain.SerialID, block uint64, cost int) domain.PriorityOp {
	return domain.PriorityOp{
		SerialID: id,
		Data:     costOp(cost),
		EthHash:  common.BigToHash(common.Big1),
		EthBlock: block,
	}
}

type rangeCall struct {
	method   string
	from, to rpc.BlockNumber
}

// fakeClient serves stored events by block. It fails the queries marked in
// failing, and BlockNumber while headErr is set. The next headErrN
// BlockNumber calls fail with a connection error.
type fakeClient struct {
	mu       sync.Mutex
	head     uint64
	advance  bool
	headErr  error
	headErrN int
	err      error
	failing  map[string]bool

	ops    []domain.PriorityOp
	tokens []domain.AddTokenOp
	users  []domain.RegUserOp

	headCalls int
	calls     []rangeCall
}

func newFakeClient(head uint64) *fakeClient {
	return &fakeClient{head: head, failing: make(map[string]bool)}
}

func (f *fakeClient) setHead(h uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.head = h
}

func (f *fakeClient) fail(method string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
	f.failing[method] = err != nil
}

func (f *fakeClient) BlockNumber(ctx context.Context) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.headCalls++
	if f.headErrN > 0 {
		f.headErrN--
		return 0, errors.New("dial tcp: connection refused")
	}
	if f.headErr != nil {
		return 0, f.headErr
	}
	if f.advance {
		f.head++
	}
	return f.head, nil
}

func (f *fakeClient) record(method string, from, to rpc.BlockNumber) (uint64, uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, rangeCall{method: method, from: from, to: to})
	if f.failing[method] {
		return 0, 0, f.err
	}
	upper := uint64(to.Int64())
	if to < 0 {
		upper = f.head
	}
	return uint64(from.Int64()), upper, nil
}

func (f *fakeClient) GetPriorityOpEvents(ctx context.Context, from, to rpc.BlockNumber) ([]domain.PriorityOp, error) {
	lo, hi, err := f.record("priority", from, to)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.PriorityOp
	for _, op := range f.ops {
		if op.EthBlock >= lo && op.EthBlock <= hi {
			out = append(out, op)
		}
	}
	return out, nil
}

func (f *fakeClient) GetNewTokenEvents(ctx context.Context, from, to rpc.BlockNumber) ([]domain.AddTokenOp, error) {
	lo, hi, err := f.record("token", from, to)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.AddTokenOp
	for _, op := range f.tokens {
		if op.EthBlock >= lo && op.EthBlock <= hi {
			out = append(out, op)
		}
	}
	return out, nil
}

func (f *fakeClient) GetRegisterUserEvents(ctx context.Context, from, to rpc.BlockNumber) ([]domain.RegUserOp, error) {
	lo, hi, err := f.record("user", from, to)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.RegUserOp
	for _, op := range f.users {
		if op.EthBlock >= lo && op.EthBlock <= hi {
			out = append(out, op)
		}
	}
	return out, nil
}

// takeCalls returns the recorded ranges of method and forgets them.
func (f *fakeClient) takeCalls(method string) [][2]int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out [][2]int64
	var rest []rangeCall
	for _, c := range f.calls {
		if c.method == method {
			out = append(out, [2]int64{c.from.Int64(), c.to.Int64()})
		} else {
			rest = append(rest, c)
		}
	}
	f.calls = rest
	return out
}

func (f *fakeClient) totalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.headCalls + len(f.calls)
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Add(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))
