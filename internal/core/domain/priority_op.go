package domain

import (
	"encoding/json"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// SerialID is the contract-assigned sequence number of a priority operation.
type SerialID = uint64

// OpType is the operation code carried by a NewPriorityRequest event.
type OpType uint8

const (
	OpTypeDeposit  OpType = 1
	OpTypeFullExit OpType = 6
)

const (
	DepositChunks  = 6
	FullExitChunks = 6
)

func (t OpType) String() string {
	switch t {
	case OpTypeDeposit:
		return "deposit"
	case OpTypeFullExit:
		return "full_exit"
	default:
		return "unknown"
	}
}

// OpData is the payload of a priority operation. Chunks is the cost of the
// operation in block chunks, used by batching downstream.
type OpData interface {
	Type() OpType
	Chunks() int
}

// Deposit moves funds from Ethereum into the network.
type Deposit struct {
	Sender  common.Address
	PubData []byte
}

func (d Deposit) Type() OpType { return OpTypeDeposit }
func (d Deposit) Chunks() int  { return DepositChunks }

// FullExit withdraws the whole balance of an account back to Ethereum.
type FullExit struct {
	Sender  common.Address
	PubData []byte
}

func (f FullExit) Type() OpType { return OpTypeFullExit }
func (f FullExit) Chunks() int  { return FullExitChunks }

// PriorityOp is a priority operation observed in a NewPriorityRequest log.
type PriorityOp struct {
	SerialID      SerialID
	Data          OpData
	DeadlineBlock uint64
	EthHash       common.Hash
	EthBlock      uint64
}

// Chunks returns the chunk cost of the operation. An op without payload costs nothing.
func (op PriorityOp) Chunks() int {
	if op.Data == nil {
		return 0
	}
	return op.Data.Chunks()
}

// Clone returns a copy that shares no memory with op.
func (op PriorityOp) Clone() PriorityOp {
	switch d := op.Data.(type) {
	case Deposit:
		d.PubData = append([]byte(nil), d.PubData...)
		op.Data = d
	case FullExit:
		d.PubData = append([]byte(nil), d.PubData...)
		op.Data = d
	}
	return op
}

type priorityOpJSON struct {
	SerialID      uint64         `json:"serial_id"`
	OpType        string         `json:"op_type"`
	Chunks        int            `json:"chunks"`
	Sender        common.Address `json:"sender"`
	PubData       hexutil.Bytes  `json:"pub_data,omitempty"`
	DeadlineBlock uint64         `json:"deadline_block"`
	EthHash       common.Hash    `json:"eth_hash"`
	EthBlock      uint64         `json:"eth_block"`
}

// MarshalJSON flattens the payload variant into the op.
func (op PriorityOp) MarshalJSON() ([]byte, error) {
	out := priorityOpJSON{
		SerialID:      op.SerialID,
		Chunks:        op.Chunks(),
		DeadlineBlock: op.DeadlineBlock,
		EthHash:       op.EthHash,
		EthBlock:      op.EthBlock,
	}
	if op.Data != nil {
		out.OpType = op.Data.Type().String()
	}
	switch d := op.Data.(type) {
	case Deposit:
		out.Sender, out.PubData = d.Sender, d.PubData
	case FullExit:
		out.Sender, out.PubData = d.Sender, d.PubData
	}
	return json.Marshal(out)
}
