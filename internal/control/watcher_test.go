package control

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/vietddude/ethwatch/internal/core/config"
	"github.com/vietddude/ethwatch/internal/core/domain"
	"github.com/vietddude/ethwatch/internal/infra/eth"
)

var testContractAddr = common.HexToAddress("0x00000000000000000000000000000000000000c0")

func TestWatcher_Lifecycle(t *testing.T) {
	contract, err := eth.NewContract(testContractAddr)
	if err != nil {
		t.Fatalf("NewContract failed: %v", err)
	}

	mock := eth.NewMock(contract)
	mock.SetHead(140)
	l, err := contract.NewLog(
		eth.EventNewPriorityRequest,
		100,
		common.HexToHash("0x01"),
		common.HexToAddress("0xbeef"),
		uint64(0),
		uint8(domain.OpTypeDeposit),
		[]byte{0x01},
		big.NewInt(100+int64(domain.PriorityExpiration)),
	)
	if err != nil {
		t.Fatalf("NewLog failed: %v", err)
	}
	mock.AddLog(l)

	cfg := Config{
		Port:          0, // Random port
		Confirmations: 10,
		PollInterval:  10 * time.Millisecond,
		QueueCapacity: 16,
		ContractAddr:  testContractAddr,
	}
	w := assemble(cfg, eth.NewMultiplexer().AddProvider("mock", mock), contract)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errc := make(chan error, 1)
	go func() { errc <- w.Run(ctx) }()

	queryCtx, queryCancel := context.WithTimeout(ctx, 2*time.Second)
	defer queryCancel()
	ops, err := w.Handle().PriorityQueueOps(queryCtx, 0, 100)
	if err != nil {
		t.Fatalf("PriorityQueueOps failed: %v", err)
	}
	if len(ops) != 1 || ops[0].EthBlock != 100 {
		t.Errorf("expected the op of block 100, got %+v", ops)
	}

	mock.SetHead(150)
	deadline := time.Now().Add(2 * time.Second)
	for {
		st, err := w.Handle().Status(queryCtx)
		if err != nil {
			t.Fatalf("Status failed: %v", err)
		}
		if st.LastEthereumBlock == 150 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("poll driver did not advance the watcher, last block %d", st.LastEthereumBlock)
		}
		time.Sleep(5 * time.Millisecond)
	}

	cancel()
	select {
	case err := <-errc:
		if err != nil {
			t.Errorf("Run returned error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop")
	}
	w.Close()
}

func TestWatcher_RunFailsOnBrokenRestore(t *testing.T) {
	contract, err := eth.NewContract(testContractAddr)
	if err != nil {
		t.Fatalf("NewContract failed: %v", err)
	}
	mock := eth.NewMock(contract)
	mock.SetHead(140)
	// Logs without a transaction hash cannot be decoded.
	l, err := contract.NewLog(eth.EventNewToken, 100, common.HexToHash("0x01"), common.HexToAddress("0x01"), uint16(1))
	if err != nil {
		t.Fatalf("NewLog failed: %v", err)
	}
	l.TxHash = common.Hash{}
	mock.AddLog(l)

	w := assemble(Config{Confirmations: 10, PollInterval: time.Second}, eth.NewMultiplexer().AddProvider("mock", mock), contract)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := w.Run(ctx); err == nil {
		t.Fatal("expected fatal restore error")
	}
}

func TestNewGateway(t *testing.T) {
	contract, err := eth.NewContract(testContractAddr)
	if err != nil {
		t.Fatalf("NewContract failed: %v", err)
	}

	if _, _, err := NewGateway(context.Background(), Config{}, contract); !errors.Is(err, eth.ErrNoProviders) {
		t.Errorf("expected ErrNoProviders, got %v", err)
	}

	cfg := Config{
		ChainID: 1,
		Providers: []config.ProviderConfig{
			{Name: "primary", URL: "http://127.0.0.1:1"},
			{Name: "fallback", URL: "http://127.0.0.1:2"},
		},
		RequestTimeout: time.Second,
	}
	gateway, clients, err := NewGateway(context.Background(), cfg, contract)
	if err != nil {
		t.Fatalf("NewGateway failed: %v", err)
	}
	defer closeAll(clients)

	if gateway.Len() != 2 {
		t.Errorf("expected 2 providers, got %d", gateway.Len())
	}
	stats := gateway.Stats()
	if stats[0].Name != "primary" || stats[1].Name != "fallback" {
		t.Errorf("expected providers in config order, got %+v", stats)
	}
}

func TestFromAppConfig(t *testing.T) {
	app := &config.AppConfig{}
	app.Server.Port = 9000
	depth := uint64(12)
	app.EthWatch.ConfirmationsForEthEvent = &depth
	app.Contracts.ContractAddr = testContractAddr.Hex()

	cfg := FromAppConfig(app)
	if cfg.Port != 9000 || cfg.Confirmations != 12 || cfg.ContractAddr != testContractAddr {
		t.Errorf("unexpected config: %+v", cfg)
	}
}
