// Package watch turns main contract events into a finality-respecting view of
// priority operations and serves queries against it.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum/rpc"
	"github.com/sethvargo/go-retry"

	"github.com/vietddude/ethwatch/internal/core/domain"
	"github.com/vietddude/ethwatch/internal/indexing/metrics"
)

// RateLimitDelay is how long polling stays suspended after a rate limit, and
// the delay between head queries at startup.
const RateLimitDelay = 30 * time.Second

// Client is the chain query surface the watcher depends on. The to bound of a
// range may be rpc.LatestBlockNumber.
type Client interface {
	BlockNumber(ctx context.Context) (uint64, error)
	GetPriorityOpEvents(ctx context.Context, from, to rpc.BlockNumber) ([]domain.PriorityOp, error)
	GetNewTokenEvents(ctx context.Context, from, to rpc.BlockNumber) ([]domain.AddTokenOp, error)
	GetRegisterUserEvents(ctx context.Context, from, to rpc.BlockNumber) ([]domain.RegUserOp, error)
}

// Accepted describes what a committed poll folded in.
type Accepted struct {
	Head        uint64              `json:"head"`
	FromBlock   uint64              `json:"from_block"`
	ToBlock     uint64              `json:"to_block"`
	PriorityOps []domain.PriorityOp `json:"priority_ops"`
	AddTokenOps []domain.AddTokenOp `json:"add_token_ops"`
	RegUserOps  []domain.RegUserOp  `json:"reg_user_ops"`
}

// Notifier receives the accepted events of every committed poll.
type Notifier interface {
	NotifyAccepted(ctx context.Context, accepted Accepted) error
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithNotifier sets the notifier called after each committed poll.
func WithNotifier(n Notifier) Option {
	return func(w *Watcher) { w.notifier = n }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(w *Watcher) { w.log = l.With("component", "eth_watch") }
}

// WithClock replaces time.Now for backoff bookkeeping.
func WithClock(now func() time.Time) Option {
	return func(w *Watcher) { w.now = now }
}

// WithRetryDelay sets the backoff window and the startup retry delay.
func WithRetryDelay(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.retryDelay = d
		}
	}
}

// Watcher owns the confirmation state. All of its fields are touched only by
// the goroutine running Run.
type Watcher struct {
	client        Client
	confirmations uint64
	notifier      Notifier
	log           *slog.Logger
	now           func() time.Time
	retryDelay    time.Duration

	state *State
	mode  mode
	done  chan struct{}
}

// New creates a watcher over client that treats events as final once
// confirmations blocks sit on top of them.
func New(client Client, confirmations uint64, opts ...Option) *Watcher {
	w := &Watcher{
		client:        client,
		confirmations: confirmations,
		log:           slog.Default().With("component", "eth_watch"),
		now:           time.Now,
		retryDelay:    RateLimitDelay,
		state:         NewState(0, nil, nil),
		done:          make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Done is closed when Run returns.
func (w *Watcher) Done() <-chan struct{} {
	return w.done
}

// Run restores the state from the chain and then serves requests until ctx
// is cancelled or reqs is closed. It returns an error only when the state
// cannot be restored once the chain head is known. Run must be called once.
func (w *Watcher) Run(ctx context.Context, reqs <-chan Request) error {
	defer close(w.done)

	if err := w.restoreStateFromEth(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case req, ok := <-reqs:
			if !ok {
				return nil
			}
			w.handle(ctx, req)
		}
	}
}

func (w *Watcher) handle(ctx context.Context, req Request) {
	switch r := req.(type) {
	case PollETHNode:
		w.pollETHNode(ctx)
	case GetPriorityQueueOps:
		reply(r.Resp, w.state.priorityRequests(r.OpStartID, r.MaxChunks))
	case GetStatus:
		reply(r.Resp, w.status())
	default:
		w.log.Warn("Unknown request", "type", fmt.Sprintf("%T", req))
	}
}

// reply never blocks. A caller that stopped listening loses the answer.
func reply[T any](ch chan<- T, v T) {
	select {
	case ch <- v:
	default:
	}
}

func (w *Watcher) status() Status {
	st := Status{
		Mode:              ModeWorking,
		LastEthereumBlock: w.state.LastEthereumBlock(),
		Confirmations:     w.confirmations,
		PriorityQueueSize: w.state.PriorityQueueLen(),
		UnconfirmedOps:    w.state.UnconfirmedQueue(),
	}
	if w.mode.backoff {
		st.Mode = ModeBackoff
		until := w.mode.until
		st.BackoffUntil = &until
	}
	return st
}

// waitForHead queries the chain head until it succeeds or ctx is done.
func (w *Watcher) waitForHead(ctx context.Context) (uint64, error) {
	var head uint64
	err := retry.Do(ctx, retry.NewConstant(w.retryDelay), func(ctx context.Context) error {
		n, err := w.client.BlockNumber(ctx)
		if err != nil {
			w.log.Warn("Failed to get chain head, retrying", "error", err, "retry_in", w.retryDelay)
			return retry.RetryableError(err)
		}
		head = n
		return nil
	})
	return head, err
}

func (w *Watcher) restoreStateFromEth(ctx context.Context) error {
	head, err := w.waitForHead(ctx)
	if err != nil {
		return fmt.Errorf("wait for chain head: %w", err)
	}
	metrics.ChainHeadBlock.Set(float64(head))

	to := satSub(head, w.confirmations)
	from := satSub(to, domain.PriorityExpiration)

	res, err := w.fetch(ctx, from, to, head)
	if err != nil {
		return fmt.Errorf("restore state from eth at block %d: %w", head, err)
	}

	queue := w.merge(nil, res.priorityOps, head)
	w.setState(NewState(head, res.unconfirmed, queue))

	w.log.Debug("Restored state from Ethereum",
		"block", head,
		"accepted_from", from,
		"accepted_to", to,
		"priority_queue", len(queue),
	)
	return nil
}

func (w *Watcher) pollETHNode(ctx context.Context) {
	if !w.pollingAllowed() {
		w.log.Debug("Polling suspended", "until", w.mode.until)
		return
	}

	start := time.Now()
	err := w.processNewBlocks(ctx)
	metrics.PollDuration.Observe(time.Since(start).Seconds())

	if err == nil {
		return
	}
	if IsBackoffRequested(err) {
		metrics.PollErrorsTotal.WithLabelValues("rate_limit").Inc()
		w.enterBackoff(err)
		return
	}
	metrics.PollErrorsTotal.WithLabelValues("other").Inc()
	w.log.Error("Failed to process new blocks", "error", err)
}

// processNewBlocks folds the blocks that became final since the last poll.
// The state is left untouched on any error.
func (w *Watcher) processNewBlocks(ctx context.Context) error {
	head, err := w.client.BlockNumber(ctx)
	if err != nil {
		return fmt.Errorf("get block number: %w", err)
	}
	metrics.ChainHeadBlock.Set(float64(head))

	last := w.state.LastEthereumBlock()
	if head <= last {
		return nil
	}

	blockDifference := head - last
	to := satSub(head, w.confirmations)
	from := satSub(to, blockDifference) + 1

	res, err := w.fetch(ctx, from, to, head)
	if err != nil {
		return err
	}

	queue := w.merge(w.state.priorityQueue, res.priorityOps, head)
	w.setState(NewState(head, res.unconfirmed, queue))

	if w.notifier != nil && from <= to {
		accepted := Accepted{
			Head:        head,
			FromBlock:   from,
			ToBlock:     to,
			PriorityOps: res.priorityOps,
			AddTokenOps: res.addTokenOps,
			RegUserOps:  res.regUserOps,
		}
		if err := w.notifier.NotifyAccepted(ctx, accepted); err != nil {
			w.log.Warn("Failed to notify accepted events", "block", head, "error", err)
		}
	}
	return nil
}

type fetchResult struct {
	unconfirmed []domain.PriorityOp
	priorityOps []domain.PriorityOp
	addTokenOps []domain.AddTokenOp
	regUserOps  []domain.RegUserOp
}

// fetch queries the accepted range [from, to] and the unconfirmed range
// above it up to head. Empty ranges are not queried.
func (w *Watcher) fetch(ctx context.Context, from, to, head uint64) (fetchResult, error) {
	var res fetchResult
	var err error

	unconfirmedFrom := satSub(head, w.confirmations) + 1
	if unconfirmedFrom <= head {
		res.unconfirmed, err = w.client.GetPriorityOpEvents(ctx, blockNumber(unconfirmedFrom), blockNumber(head))
		if err != nil {
			return fetchResult{}, fmt.Errorf("get unconfirmed priority ops [%d, %d]: %w", unconfirmedFrom, head, err)
		}
	}

	if from > to {
		return res, nil
	}
	res.priorityOps, err = w.client.GetPriorityOpEvents(ctx, blockNumber(from), blockNumber(to))
	if err != nil {
		return fetchResult{}, fmt.Errorf("get priority ops [%d, %d]: %w", from, to, err)
	}
	res.addTokenOps, err = w.client.GetNewTokenEvents(ctx, blockNumber(from), blockNumber(to))
	if err != nil {
		return fetchResult{}, fmt.Errorf("get new token events [%d, %d]: %w", from, to, err)
	}
	res.regUserOps, err = w.client.GetRegisterUserEvents(ctx, blockNumber(from), blockNumber(to))
	if err != nil {
		return fetchResult{}, fmt.Errorf("get register user events [%d, %d]: %w", from, to, err)
	}
	return res, nil
}

// merge expires old entries against head and inserts ops. An op already in
// the queue keeps its original receive time.
func (w *Watcher) merge(
	old map[domain.SerialID]ReceivedPriorityOp,
	ops []domain.PriorityOp,
	head uint64,
) map[domain.SerialID]ReceivedPriorityOp {
	queue := siftOutdatedOps(old, head)
	now := w.now()
	for _, op := range ops {
		received := ReceivedPriorityOp{Op: op, ReceivedAt: now}
		if received.isExpired(head) {
			continue
		}
		if prev, ok := queue[op.SerialID]; ok {
			received.ReceivedAt = prev.ReceivedAt
		}
		queue[op.SerialID] = received
	}
	return queue
}

func (w *Watcher) setState(s *State) {
	w.state = s
	metrics.LastProcessedBlock.Set(float64(s.LastEthereumBlock()))
	metrics.PriorityQueueSize.Set(float64(s.PriorityQueueLen()))
	metrics.UnconfirmedPriorityOps.Set(float64(len(s.unconfirmedQueue)))
}

func satSub(a, b uint64) uint64 {
	if b > a {
		return 0
	}
	return a - b
}

func blockNumber(n uint64) rpc.BlockNumber {
	return rpc.BlockNumber(int64(n))
}
