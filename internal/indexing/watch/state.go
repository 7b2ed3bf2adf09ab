package watch

import (
	"math"

	"github.com/vietddude/ethwatch/internal/core/domain"
)

// State is the observed state of the contract on Ethereum.
//
// A State is never modified after construction. The watcher replaces it as a
// whole, so a reader never sees the last block of one poll together with the
// priority queue of another.
type State struct {
	lastEthereumBlock uint64
	unconfirmedQueue  []domain.PriorityOp
	priorityQueue     map[domain.SerialID]ReceivedPriorityOp
}

// NewState takes ownership of unconfirmed and queue.
func NewState(
	lastEthereumBlock uint64,
	unconfirmed []domain.PriorityOp,
	queue map[domain.SerialID]ReceivedPriorityOp,
) *State {
	if queue == nil {
		queue = make(map[domain.SerialID]ReceivedPriorityOp)
	}
	return &State{
		lastEthereumBlock: lastEthereumBlock,
		unconfirmedQueue:  unconfirmed,
		priorityQueue:     queue,
	}
}

// LastEthereumBlock returns the last block known to the watcher.
func (s *State) LastEthereumBlock() uint64 {
	return s.lastEthereumBlock
}

// PriorityOp returns the accepted op with the given serial id.
func (s *State) PriorityOp(id domain.SerialID) (ReceivedPriorityOp, bool) {
	op, ok := s.priorityQueue[id]
	return op, ok
}

// PriorityQueueLen returns the number of accepted ops.
func (s *State) PriorityQueueLen() int {
	return len(s.priorityQueue)
}

// UnconfirmedQueue returns a copy of the ops seen in unconfirmed blocks.
func (s *State) UnconfirmedQueue() []domain.PriorityOp {
	out := make([]domain.PriorityOp, len(s.unconfirmedQueue))
	for i, op := range s.unconfirmedQueue {
		out[i] = op.Clone()
	}
	return out
}

// priorityRequests returns the longest run of consecutive serial ids starting
// at firstSerialID whose chunks fit in maxChunks.
func (s *State) priorityRequests(firstSerialID domain.SerialID, maxChunks int) []domain.PriorityOp {
	var result []domain.PriorityOp
	usedChunks := 0

	for id := firstSerialID; ; id++ {
		op, ok := s.priorityQueue[id]
		if !ok {
			break
		}
		chunks := op.Op.Chunks()
		if usedChunks+chunks > maxChunks {
			break
		}
		result = append(result, op.Op.Clone())
		usedChunks += chunks
		if id == math.MaxUint64 {
			break
		}
	}

	return result
}
