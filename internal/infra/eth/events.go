package eth

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/vietddude/ethwatch/internal/core/domain"
)

// EventClient answers chain queries for the main contract on top of any
// Provider. It keeps no state between calls.
type EventClient struct {
	provider Provider
	contract *Contract
}

// NewEventClient creates an EventClient. In production p is a Multiplexer.
func NewEventClient(p Provider, contract *Contract) *EventClient {
	return &EventClient{provider: p, contract: contract}
}

// BlockNumber returns the current chain head.
func (c *EventClient) BlockNumber(ctx context.Context) (uint64, error) {
	return c.provider.BlockNumber(ctx)
}

// GetPriorityOpEvents returns the priority operations emitted in [from, to].
func (c *EventClient) GetPriorityOpEvents(ctx context.Context, from, to rpc.BlockNumber) ([]domain.PriorityOp, error) {
	logs, err := c.logs(ctx, EventNewPriorityRequest, from, to)
	if err != nil {
		return nil, err
	}
	return decodeAll(logs, c.contract.ParsePriorityOp)
}

// GetNewTokenEvents returns the token registrations emitted in [from, to].
func (c *EventClient) GetNewTokenEvents(ctx context.Context, from, to rpc.BlockNumber) ([]domain.AddTokenOp, error) {
	logs, err := c.logs(ctx, EventNewToken, from, to)
	if err != nil {
		return nil, err
	}
	return decodeAll(logs, c.contract.ParseAddToken)
}

// GetRegisterUserEvents returns the user registrations emitted in [from, to].
func (c *EventClient) GetRegisterUserEvents(ctx context.Context, from, to rpc.BlockNumber) ([]domain.RegUserOp, error) {
	logs, err := c.logs(ctx, EventRegisterUser, from, to)
	if err != nil {
		return nil, err
	}
	return decodeAll(logs, c.contract.ParseRegUser)
}

func (c *EventClient) logs(ctx context.Context, event string, from, to rpc.BlockNumber) ([]types.Log, error) {
	// Nodes reject inverted ranges; an empty range has no events.
	if to >= 0 && from > to {
		return nil, nil
	}

	topic, err := c.contract.EventID(event)
	if err != nil {
		return nil, err
	}

	q := ethereum.FilterQuery{
		FromBlock: big.NewInt(from.Int64()),
		Addresses: []common.Address{c.contract.Address()},
		Topics:    [][]common.Hash{{topic}},
	}
	// A nil upper bound is "latest" for both ethclient and the mock.
	if to >= 0 {
		q.ToBlock = big.NewInt(to.Int64())
	}

	logs, err := c.provider.Logs(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("get %s logs: %w", event, err)
	}
	return logs, nil
}

func decodeAll[T any](logs []types.Log, parse func(types.Log) (T, error)) ([]T, error) {
	out := make([]T, 0, len(logs))
	for _, l := range logs {
		v, err := parse(l)
		if err != nil {
			return nil, fmt.Errorf("block %d tx %s: %w", l.BlockNumber, l.TxHash.Hex(), err)
		}
		out = append(out, v)
	}
	return out, nil
}
