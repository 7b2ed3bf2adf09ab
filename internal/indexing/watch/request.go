package watch

import (
	"context"
	"errors"
	"time"

	"github.com/vietddude/ethwatch/internal/core/domain"
)

// DefaultQueueCapacity is the capacity of the request queue built by NewRequestQueue.
const DefaultQueueCapacity = 256

// ErrWatcherStopped is returned by Handle when the watcher no longer
// consumes requests.
var ErrWatcherStopped = errors.New("eth watcher stopped")

// Request is a message consumed by the watcher. Requests are handled one at
// a time, in arrival order.
type Request interface {
	isRequest()
}

// PollETHNode asks the watcher to poll the Ethereum node. It has no reply.
type PollETHNode struct{}

// GetPriorityQueueOps asks for accepted priority ops starting at OpStartID.
// Resp should be buffered: the watcher never blocks on a reply.
type GetPriorityQueueOps struct {
	OpStartID uint64
	MaxChunks int
	Resp      chan<- []domain.PriorityOp
}

// GetStatus asks for a snapshot of the watcher state.
type GetStatus struct {
	Resp chan<- Status
}

func (PollETHNode) isRequest()         {}
func (GetPriorityQueueOps) isRequest() {}
func (GetStatus) isRequest()           {}

// Mode is the watcher running mode.
type Mode string

const (
	ModeWorking Mode = "working"
	ModeBackoff Mode = "backoff"
)

// Status is a value snapshot of the watcher.
type Status struct {
	Mode              Mode                `json:"mode"`
	BackoffUntil      *time.Time          `json:"backoff_until,omitempty"` // nil while working
	LastEthereumBlock uint64              `json:"last_ethereum_block"`
	Confirmations     uint64              `json:"confirmations"`
	PriorityQueueSize int                 `json:"priority_queue_size"`
	UnconfirmedOps    []domain.PriorityOp `json:"unconfirmed_ops"`
}

// NewRequestQueue creates the bounded queue that feeds a watcher.
func NewRequestQueue(capacity int) chan Request {
	if capacity <= 0 {
		capacity = DefaultQueueCapacity
	}
	return make(chan Request, capacity)
}

// Handle is the producer side of the request queue. It is safe for
// concurrent use.
type Handle struct {
	reqs chan<- Request
	done <-chan struct{}
}

// NewHandle wraps the sending side of a request queue. done, if not nil, is
// closed when the watcher stops so that waiting callers give up.
func NewHandle(reqs chan<- Request, done <-chan struct{}) *Handle {
	return &Handle{reqs: reqs, done: done}
}

func (h *Handle) send(ctx context.Context, req Request) error {
	select {
	case h.reqs <- req:
		return nil
	case <-h.done:
		return ErrWatcherStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Poll enqueues a PollETHNode request, blocking while the queue is full.
func (h *Handle) Poll(ctx context.Context) error {
	return h.send(ctx, PollETHNode{})
}

// PriorityQueueOps returns up to maxChunks worth of consecutive accepted ops
// starting at startID.
func (h *Handle) PriorityQueueOps(ctx context.Context, startID uint64, maxChunks int) ([]domain.PriorityOp, error) {
	resp := make(chan []domain.PriorityOp, 1)
	if err := h.send(ctx, GetPriorityQueueOps{OpStartID: startID, MaxChunks: maxChunks, Resp: resp}); err != nil {
		return nil, err
	}
	return awaitReply(ctx, h.done, resp)
}

// Status returns a snapshot of the watcher.
func (h *Handle) Status(ctx context.Context) (Status, error) {
	resp := make(chan Status, 1)
	if err := h.send(ctx, GetStatus{Resp: resp}); err != nil {
		return Status{}, err
	}
	return awaitReply(ctx, h.done, resp)
}

func awaitReply[T any](ctx context.Context, done <-chan struct{}, resp <-chan T) (T, error) {
	var zero T
	select {
	case v := <-resp:
		return v, nil
	case <-done:
		// The reply may have been sent just before the watcher stopped.
		select {
		case v := <-resp:
			return v, nil
		default:
			return zero, ErrWatcherStopped
		}
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}
