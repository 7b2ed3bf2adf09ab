package watch

import (
	"time"

	"github.com/vietddude/ethwatch/internal/core/domain"
)

// ReceivedPriorityOp is a priority operation that cleared the confirmation depth.
type ReceivedPriorityOp struct {
	Op         domain.PriorityOp
	ReceivedAt time.Time
}

// isExpired reports whether the op is older than the expiration window at head.
func (r ReceivedPriorityOp) isExpired(head uint64) bool {
	return r.Op.EthBlock+domain.PriorityExpiration <= head
}

// siftOutdatedOps returns a new map holding the ops of queue that are still
// eligible at head. The input map is not modified.
func siftOutdatedOps(queue map[domain.SerialID]ReceivedPriorityOp, head uint64) map[domain.SerialID]ReceivedPriorityOp {
	out := make(map[domain.SerialID]ReceivedPriorityOp, len(queue))
	for id, op := range queue {
		if !op.isExpired(head) {
			out[id] = op
		}
	}
	return out
}
