package eth

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/vietddude/ethwatch/internal/core/domain"
)

// Event names of the main contract.
const (
	EventNewPriorityRequest = "NewPriorityRequest"
	EventNewToken           = "NewToken"
	EventRegisterUser       = "RegisterUser"
)

// MainContractABI is the subset of the rollup contract the watcher and its
// collaborators use.
const MainContractABI = `[
	{"type":"event","name":"NewPriorityRequest","anonymous":false,"inputs":[
		{"name":"sender","type":"address","indexed":false},
		{"name":"serialId","type":"uint64","indexed":false},
		{"name":"opType","type":"uint8","indexed":false},
		{"name":"pubData","type":"bytes","indexed":false},
		{"name":"expirationBlock","type":"uint256","indexed":false}]},
	{"type":"event","name":"NewToken","anonymous":false,"inputs":[
		{"name":"token","type":"address","indexed":false},
		{"name":"tokenId","type":"uint16","indexed":false}]},
	{"type":"event","name":"RegisterUser","anonymous":false,"inputs":[
		{"name":"ethAddr","type":"address","indexed":false},
		{"name":"userId","type":"uint16","indexed":false},
		{"name":"bjjPubkey","type":"bytes32","indexed":false}]},
	{"type":"function","name":"totalOpenPriorityRequests","stateMutability":"view","inputs":[],
		"outputs":[{"name":"","type":"uint64"}]},
	{"type":"function","name":"commitBlock","stateMutability":"nonpayable","inputs":[
		{"name":"blockNumber","type":"uint32"},
		{"name":"newRoot","type":"bytes32"}],"outputs":[]}
]`

// Contract binds the main contract ABI to its deployed address.
type Contract struct {
	abi     abi.ABI
	address common.Address
}

// NewContract parses the main contract ABI.
func NewContract(address common.Address) (*Contract, error) {
	parsed, err := abi.JSON(strings.NewReader(MainContractABI))
	if err != nil {
		return nil, fmt.Errorf("parse contract abi: %w", err)
	}
	return &Contract{abi: parsed, address: address}, nil
}

// Address returns the deployed contract address.
func (c *Contract) Address() common.Address {
	return c.address
}

// EventID returns the topic of the named event.
func (c *Contract) EventID(name string) (common.Hash, error) {
	ev, ok := c.abi.Events[name]
	if !ok {
		return common.Hash{}, fmt.Errorf("unknown event %q", name)
	}
	return ev.ID, nil
}

// Pack encodes a method call.
func (c *Contract) Pack(method string, args ...any) ([]byte, error) {
	data, err := c.abi.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	return data, nil
}

// Unpack decodes the return values of a method call.
func (c *Contract) Unpack(method string, data []byte) ([]any, error) {
	out, err := c.abi.Unpack(method, data)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	return out, nil
}

// NewLog builds a log of the named event emitted by the contract.
func (c *Contract) NewLog(event string, block uint64, txHash common.Hash, args ...any) (types.Log, error) {
	ev, ok := c.abi.Events[event]
	if !ok {
		return types.Log{}, fmt.Errorf("unknown event %q", event)
	}
	data, err := ev.Inputs.Pack(args...)
	if err != nil {
		return types.Log{}, fmt.Errorf("pack %s: %w", event, err)
	}
	return types.Log{
		Address:     c.address,
		Topics:      []common.Hash{ev.ID},
		Data:        data,
		BlockNumber: block,
		TxHash:      txHash,
	}, nil
}

// ParsePriorityOp decodes a NewPriorityRequest log.
func (c *Contract) ParsePriorityOp(l types.Log) (domain.PriorityOp, error) {
	if err := checkLog(l); err != nil {
		return domain.PriorityOp{}, err
	}

	var ev struct {
		Sender          common.Address
		SerialId        uint64
		OpType          uint8
		PubData         []byte
		ExpirationBlock *big.Int
	}
	if err := c.abi.UnpackIntoInterface(&ev, EventNewPriorityRequest, l.Data); err != nil {
		return domain.PriorityOp{}, fmt.Errorf("decode %s: %w", EventNewPriorityRequest, err)
	}

	var data domain.OpData
	switch domain.OpType(ev.OpType) {
	case domain.OpTypeDeposit:
		data = domain.Deposit{Sender: ev.Sender, PubData: ev.PubData}
	case domain.OpTypeFullExit:
		data = domain.FullExit{Sender: ev.Sender, PubData: ev.PubData}
	default:
		return domain.PriorityOp{}, fmt.Errorf("unsupported priority op type %d", ev.OpType)
	}

	op := domain.PriorityOp{
		SerialID: ev.SerialId,
		Data:     data,
		EthHash:  l.TxHash,
		EthBlock: l.BlockNumber,
	}
	if ev.ExpirationBlock != nil && ev.ExpirationBlock.IsUint64() {
		op.DeadlineBlock = ev.ExpirationBlock.Uint64()
	}
	return op, nil
}

// ParseAddToken decodes a NewToken log.
func (c *Contract) ParseAddToken(l types.Log) (domain.AddTokenOp, error) {
	if err := checkLog(l); err != nil {
		return domain.AddTokenOp{}, err
	}

	var ev struct {
		Token   common.Address
		TokenId uint16
	}
	if err := c.abi.UnpackIntoInterface(&ev, EventNewToken, l.Data); err != nil {
		return domain.AddTokenOp{}, fmt.Errorf("decode %s: %w", EventNewToken, err)
	}

	return domain.AddTokenOp{
		Token:    ev.Token,
		TokenID:  ev.TokenId,
		EthHash:  l.TxHash,
		EthBlock: l.BlockNumber,
	}, nil
}

// ParseRegUser decodes a RegisterUser log.
func (c *Contract) ParseRegUser(l types.Log) (domain.RegUserOp, error) {
	if err := checkLog(l); err != nil {
		return domain.RegUserOp{}, err
	}

	var ev struct {
		EthAddr   common.Address
		UserId    uint16
		BjjPubkey [32]byte
	}
	if err := c.abi.UnpackIntoInterface(&ev, EventRegisterUser, l.Data); err != nil {
		return domain.RegUserOp{}, fmt.Errorf("decode %s: %w", EventRegisterUser, err)
	}

	return domain.RegUserOp{
		EthAddr:   ev.EthAddr,
		UserID:    ev.UserId,
		BjjPubkey: common.Hash(ev.BjjPubkey),
		EthHash:   l.TxHash,
		EthBlock:  l.BlockNumber,
	}, nil
}

// checkLog rejects logs without a transaction hash, such as pending logs.
func checkLog(l types.Log) error {
	if l.TxHash == (common.Hash{}) {
		return fmt.Errorf("event transaction hash is missing")
	}
	return nil
}
