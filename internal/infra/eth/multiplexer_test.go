package eth

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failureRecorder struct {
	mu       sync.Mutex
	failures []string
}

func (r *failureRecorder) hook(provider, method string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures = append(r.failures, provider+"/"+method)
}

func TestMultiplexer_FirstSuccessWins(t *testing.T) {
	contract := newTestContract(t)
	a, b, c := NewMock(contract), NewMock(contract), NewMock(contract)
	a.SetErr(errors.New("connection refused"))
	b.SetHead(42)
	c.SetHead(99)

	rec := &failureRecorder{}
	m := NewMultiplexer(WithFailureHook(rec.hook)).
		AddProvider("a", a).
		AddProvider("b", b).
		AddProvider("c", c)

	head, err := m.BlockNumber(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(42), head)

	assert.Equal(t, 1, a.Calls("BlockNumber"))
	assert.Equal(t, 1, b.Calls("BlockNumber"))
	assert.Equal(t, 0, c.TotalCalls(), "provider after the first success must not be called")
	assert.Equal(t, []string{"a/BlockNumber"}, rec.failures)
}

func TestMultiplexer_AllProvidersFailed(t *testing.T) {
	contract := newTestContract(t)
	a, b := NewMock(contract), NewMock(contract)
	a.SetErr(errors.New("timeout"))
	b.SetErr(errors.New("429 Too Many Requests"))

	rec := &failureRecorder{}
	m := NewMultiplexer(WithFailureHook(rec.hook)).AddProvider("a", a).AddProvider("b", b)

	_, err := m.BlockNumber(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAllProvidersFailed)
	assert.Contains(t, err.Error(), "a: timeout")
	assert.Contains(t, err.Error(), "b: 429 Too Many Requests")
	assert.Equal(t, []string{"a/BlockNumber", "b/BlockNumber"}, rec.failures)

	stats := m.Stats()
	require.Len(t, stats, 2)
	assert.Equal(t, "a", stats[0].Name)
	assert.Equal(t, 1, stats[0].Failures)
	assert.Equal(t, "throttled", stats[1].Status)
}

func TestMultiplexer_NoRetryBeyondOnePass(t *testing.T) {
	contract := newTestContract(t)
	a := NewMock(contract)
	a.SetErr(errors.New("boom"))

	m := NewMultiplexer().AddProvider("a", a)

	_, err := m.GasPrice(context.Background())
	require.Error(t, err)
	assert.Equal(t, 1, a.Calls("GasPrice"))
}

func TestMultiplexer_NoProviders(t *testing.T) {
	m := NewMultiplexer()

	_, err := m.BlockNumber(context.Background())
	assert.ErrorIs(t, err, ErrNoProviders)

	_, err = m.EncodeTxData("totalOpenPriorityRequests")
	assert.ErrorIs(t, err, ErrNoProviders)
}

func TestMultiplexer_EncodeUsesFirstProvider(t *testing.T) {
	contract := newTestContract(t)
	a, b := NewMock(contract), NewMock(contract)

	m := NewMultiplexer().AddProvider("a", a).AddProvider("b", b)

	data, err := m.EncodeTxData("totalOpenPriorityRequests")
	require.NoError(t, err)
	assert.Len(t, data, 4)
	assert.Equal(t, 1, a.Calls("EncodeTxData"))
	assert.Equal(t, 0, b.Calls("EncodeTxData"))
}

func TestMultiplexer_StopsOnCancelledContext(t *testing.T) {
	contract := newTestContract(t)
	a := NewMock(contract)

	m := NewMultiplexer().AddProvider("a", a)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := m.BlockNumber(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, a.TotalCalls())
}

func TestMultiplexer_DelegatesSendingSurface(t *testing.T) {
	contract := newTestContract(t)
	a, b := NewMock(contract), NewMock(contract)
	a.SetErr(errors.New("down"))

	m := NewMultiplexer().AddProvider("a", a).AddProvider("b", b)
	ctx := context.Background()

	data, err := m.EncodeTxData("totalOpenPriorityRequests")
	require.Error(t, err, "encoding does not fail over")
	assert.True(t, strings.Contains(err.Error(), "down"))

	data, err = contract.Pack("totalOpenPriorityRequests")
	require.NoError(t, err)

	signed, err := m.SignPreparedTx(ctx, data, TxOptions{})
	require.NoError(t, err)

	hash, err := m.SendRawTx(ctx, signed.RawTx)
	require.NoError(t, err)
	assert.Equal(t, signed.Hash, hash)
	assert.Len(t, b.Sent(), 1)
	assert.Empty(t, a.Sent())
}

func TestMultiplexer_LogsFailuresWithInjectedLogger(t *testing.T) {
	contract := newTestContract(t)
	a, b := NewMock(contract), NewMock(contract)
	a.SetErr(errors.New("connection refused"))
	b.SetHead(7)

	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, nil))
	m := NewMultiplexer(WithMultiplexerLogger(log)).
		AddProvider("primary", a).
		AddProvider("fallback", b)

	head, err := m.BlockNumber(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(7), head)

	out := buf.String()
	assert.Contains(t, out, "provider=primary")
	assert.Contains(t, out, "connection refused")
	assert.NotContains(t, out, "provider=fallback")
}
