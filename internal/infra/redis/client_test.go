package redis

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vietddude/ethwatch/internal/core/domain"
	"github.com/vietddude/ethwatch/internal/indexing/watch"
)

func TestEncodeAccepted(t *testing.T) {
	accepted := watch.Accepted{
		Head:      145,
		FromBlock: 131,
		ToBlock:   135,
		PriorityOps: []domain.PriorityOp{{
			SerialID: 3,
			Data:     domain.FullExit{Sender: common.HexToAddress("0x02"), PubData: []byte{0xab}},
			EthBlock: 133,
		}},
		AddTokenOps: []domain.AddTokenOp{{Token: common.HexToAddress("0x03"), TokenID: 2, EthBlock: 131}},
	}

	b, err := encodeAccepted(accepted)
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(b, &got))
	assert.EqualValues(t, 1, got["version"])
	assert.EqualValues(t, 145, got["head"])
	assert.EqualValues(t, 131, got["from_block"])
	assert.EqualValues(t, 135, got["to_block"])

	ops := got["priority_ops"].([]any)
	require.Len(t, ops, 1)
	op := ops[0].(map[string]any)
	assert.Equal(t, "full_exit", op["op_type"])
	assert.Equal(t, "0xab", op["pub_data"])
	assert.Len(t, got["add_token_ops"], 1)
	assert.Nil(t, got["reg_user_ops"])
}

func TestNewClient_InvalidURL(t *testing.T) {
	_, err := NewClient(Config{URL: "not-a-url"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse redis URL")
}

func TestLastBlockKey(t *testing.T) {
	assert.Equal(t, "ethwatch:accepted:last_block", lastBlockKey(DefaultChannel))
}

func TestNotifyAccepted_PublishesAndRecordsHead(t *testing.T) {
	mr := miniredis.RunT(t)
	c, err := NewClient(Config{URL: "redis://" + mr.Addr()})
	require.NoError(t, err)
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	sub := c.rdb.Subscribe(ctx, DefaultChannel)
	defer sub.Close()
	_, err = sub.Receive(ctx) // subscription confirmation
	require.NoError(t, err)

	accepted := watch.Accepted{
		Head:        145,
		FromBlock:   131,
		ToBlock:     135,
		PriorityOps: []domain.PriorityOp{{SerialID: 3, Data: domain.FullExit{}, EthBlock: 133}},
	}
	require.NoError(t, c.NotifyAccepted(ctx, accepted))

	select {
	case msg := <-sub.Channel():
		var got map[string]any
		require.NoError(t, json.Unmarshal([]byte(msg.Payload), &got))
		assert.EqualValues(t, 1, got["version"])
		assert.EqualValues(t, 145, got["head"])
		assert.Len(t, got["priority_ops"], 1)
	case <-ctx.Done():
		t.Fatal("no message published")
	}

	head, err := mr.Get(lastBlockKey(DefaultChannel))
	require.NoError(t, err)
	assert.Equal(t, "145", head)
}

func TestNotifyAccepted_CustomChannel(t *testing.T) {
	mr := miniredis.RunT(t)
	c, err := NewClient(Config{URL: "redis://" + mr.Addr(), Channel: "zk:events"})
	require.NoError(t, err)
	defer c.Close()

	require.NoError(t, c.NotifyAccepted(context.Background(), watch.Accepted{Head: 7}))

	head, err := mr.Get("zk:events:last_block")
	require.NoError(t, err)
	assert.Equal(t, "7", head)
	assert.False(t, mr.Exists(lastBlockKey(DefaultChannel)))
}

func TestNotifyAccepted_ServerDown(t *testing.T) {
	mr := miniredis.RunT(t)
	c, err := NewClient(Config{URL: "redis://" + mr.Addr()})
	require.NoError(t, err)
	defer c.Close()

	mr.Close()
	err = c.NotifyAccepted(context.Background(), watch.Accepted{Head: 1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "publish accepted events")
}
