package watch

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vietddude/ethwatch/internal/core/domain"
)

func serialIDs(ops []domain.PriorityOp) []uint64 {
	ids := make([]uint64, 0, len(ops))
	for _, op := range ops {
		ids = append(ids, op.SerialID)
	}
	return ids
}

func queueOf(ops ...domain.PriorityOp) map[domain.SerialID]ReceivedPriorityOp {
	q := make(map[domain.SerialID]ReceivedPriorityOp, len(ops))
	for _, op := range ops {
		q[op.SerialID] = ReceivedPriorityOp{Op: op}
	}
	return q
}

func TestState_PriorityRequests(t *testing.T) {
	state := NewState(100, nil, queueOf(
		testOp(5, 1, 3),
		testOp(6, 2, 4),
		testOp(7, 3, 5),
		testOp(9, 4, 1),
	))

	tests := []struct {
		name      string
		start     uint64
		maxChunks int
		want      []uint64
	}{
		{"stops before budget overflow", 5, 10, []uint64{5, 6}},
		{"stops at missing id", 5, 100, []uint64{5, 6, 7}},
		{"exact fit", 5, 12, []uint64{5, 6, 7}},
		{"first op too large", 7, 4, []uint64{}},
		{"missing start", 8, 100, []uint64{}},
		{"single", 9, 1, []uint64{9}},
		{"zero budget", 5, 0, []uint64{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := state.priorityRequests(tt.start, tt.maxChunks)
			assert.Equal(t, tt.want, serialIDs(got))
		})
	}
}

func TestState_ZeroCostOpsFitAnyBudget(t *testing.T) {
	state := NewState(1, nil, queueOf(testOp(1, 1, 0), testOp(2, 1, 0)))
	assert.Equal(t, []uint64{1, 2}, serialIDs(state.priorityRequests(1, 0)))
}

func TestState_RepliesDoNotShareMemory(t *testing.T) {
	op := domain.PriorityOp{
		SerialID: 1,
		Data:     domain.Deposit{PubData: []byte{1, 2, 3}},
		EthBlock: 10,
	}
	state := NewState(20, []domain.PriorityOp{op}, queueOf(op))

	got := state.priorityRequests(1, 6)
	require.Len(t, got, 1)
	got[0].Data.(domain.Deposit).PubData[0] = 9

	unconfirmed := state.UnconfirmedQueue()
	unconfirmed[0].Data.(domain.Deposit).PubData[1] = 9

	again := state.priorityRequests(1, 6)
	assert.Equal(t, []byte{1, 2, 3}, again[0].Data.(domain.Deposit).PubData)
	assert.Equal(t, []byte{1, 2, 3}, state.UnconfirmedQueue()[0].Data.(domain.Deposit).PubData)
}

func TestNewState_Empty(t *testing.T) {
	state := NewState(0, nil, nil)
	assert.Equal(t, uint64(0), state.LastEthereumBlock())
	assert.Equal(t, 0, state.PriorityQueueLen())
	assert.Empty(t, state.UnconfirmedQueue())
	_, ok := state.PriorityOp(1)
	assert.False(t, ok)
}

func TestSiftOutdatedOps(t *testing.T) {
	now := time.Now()
	queue := map[domain.SerialID]ReceivedPriorityOp{
		1: {Op: testOp(1, 100, 6), ReceivedAt: now},
		2: {Op: testOp(2, 101, 6), ReceivedAt: now},
	}
	head := 100 + domain.PriorityExpiration

	got := siftOutdatedOps(queue, head)

	assert.Len(t, got, 1)
	assert.Contains(t, got, uint64(2))
	assert.Len(t, queue, 2, "input must not be modified")
}

func TestReceivedPriorityOp_IsExpired(t *testing.T) {
	op := ReceivedPriorityOp{Op: testOp(1, 50, 6)}
	assert.False(t, op.isExpired(50+domain.PriorityExpiration-1))
	assert.True(t, op.isExpired(50+domain.PriorityExpiration))
	assert.False(t, op.isExpired(0))
}
