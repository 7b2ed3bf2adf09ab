// Package control assembles and runs the eth watcher service.
package control

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/sync/errgroup"

	"github.com/vietddude/ethwatch/internal/core/config"
	"github.com/vietddude/ethwatch/internal/indexing/health"
	"github.com/vietddude/ethwatch/internal/indexing/watch"
	"github.com/vietddude/ethwatch/internal/infra/eth"
	redisclient "github.com/vietddude/ethwatch/internal/infra/redis"
)

// Watcher is the main application struct that manages the service lifecycle.
type Watcher struct {
	cfg          Config
	gateway      *eth.Multiplexer
	clients      []*eth.DirectClient
	watcher      *watch.Watcher
	driver       *watch.PollDriver
	handle       *watch.Handle
	reqs         chan watch.Request
	healthServer *health.Server
	redisClient  *redisclient.Client
	log          *slog.Logger
}

// Config holds the application configuration.
type Config struct {
	Port           int
	Confirmations  uint64
	PollInterval   time.Duration
	QueueCapacity  int
	ContractAddr   common.Address
	ChainID        uint64
	Providers      []config.ProviderConfig
	OperatorKey    string
	RequestTimeout time.Duration
	Redis          redisclient.Config
}

// FromAppConfig maps the file configuration onto Config.
func FromAppConfig(cfg *config.AppConfig) Config {
	return Config{
		Port:           cfg.Server.Port,
		Confirmations:  cfg.EthWatch.Confirmations(),
		PollInterval:   cfg.EthWatch.PollInterval,
		QueueCapacity:  cfg.EthWatch.QueueCapacity,
		ContractAddr:   common.HexToAddress(cfg.Contracts.ContractAddr),
		ChainID:        cfg.EthClient.ChainID,
		Providers:      cfg.EthClient.Providers,
		OperatorKey:    cfg.EthClient.OperatorPrivateKey,
		RequestTimeout: cfg.EthClient.RequestTimeout,
		Redis:          cfg.Redis,
	}
}

// NewGateway dials every configured provider and chains them in order.
func NewGateway(ctx context.Context, cfg Config, contract *eth.Contract) (*eth.Multiplexer, []*eth.DirectClient, error) {
	if len(cfg.Providers) == 0 {
		return nil, nil, eth.ErrNoProviders
	}

	gateway := eth.NewMultiplexer(eth.WithMultiplexerLogger(slog.Default().With("component", "eth_gateway")))
	clients := make([]*eth.DirectClient, 0, len(cfg.Providers))
	for _, p := range cfg.Providers {
		c, err := eth.NewDirectClient(ctx, eth.DirectConfig{
			Name:       p.Name,
			URL:        p.URL,
			ChainID:    cfg.ChainID,
			PrivateKey: cfg.OperatorKey,
			Timeout:    cfg.RequestTimeout,
		}, contract)
		if err != nil {
			closeAll(clients)
			return nil, nil, fmt.Errorf("failed to init provider %s: %w", p.Name, err)
		}
		clients = append(clients, c)
		gateway.AddProvider(p.Name, c)
		slog.Info("Registered Ethereum provider", "name", p.Name)
	}
	return gateway, clients, nil
}

func closeAll(clients []*eth.DirectClient) {
	for _, c := range clients {
		c.Close()
	}
}

// NewWatcher creates a new Watcher instance with all dependencies initialized.
func NewWatcher(ctx context.Context, cfg Config) (*Watcher, error) {
	contract, err := eth.NewContract(cfg.ContractAddr)
	if err != nil {
		return nil, fmt.Errorf("failed to load contract abi: %w", err)
	}

	gateway, clients, err := NewGateway(ctx, cfg, contract)
	if err != nil {
		return nil, err
	}

	var opts []watch.Option
	var redisClient *redisclient.Client
	if cfg.Redis.URL != "" {
		redisClient, err = redisclient.NewClient(cfg.Redis)
		if err != nil {
			closeAll(clients)
			return nil, fmt.Errorf("failed to init redis: %w", err)
		}
		opts = append(opts, watch.WithNotifier(redisClient))
		slog.Info("Publishing accepted events to Redis", "channel", cfg.Redis.Channel)
	}

	w := assemble(cfg, gateway, contract, opts...)
	w.clients = clients
	w.redisClient = redisClient
	return w, nil
}

// assemble wires the watcher loop, its driver and the health server around
// an already built gateway.
func assemble(cfg Config, gateway *eth.Multiplexer, contract *eth.Contract, opts ...watch.Option) *Watcher {
	reqs := watch.NewRequestQueue(cfg.QueueCapacity)
	watcher := watch.New(eth.NewEventClient(gateway, contract), cfg.Confirmations, opts...)
	handle := watch.NewHandle(reqs, watcher.Done())
	monitor := health.NewMonitor(handle, gateway, 2*time.Second)

	return &Watcher{
		cfg:          cfg,
		gateway:      gateway,
		watcher:      watcher,
		driver:       watch.NewPollDriver(cfg.PollInterval, reqs),
		handle:       handle,
		reqs:         reqs,
		healthServer: health.NewServer(monitor, handle, cfg.Port),
		log:          slog.Default(),
	}
}

// Handle returns the request handle of the watcher loop.
func (w *Watcher) Handle() *watch.Handle {
	return w.handle
}

// Run starts all components and blocks until ctx is cancelled or one of
// them fails.
func (w *Watcher) Run(ctx context.Context) error {
	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := w.watcher.Run(gCtx, w.reqs); err != nil {
			return fmt.Errorf("eth watcher: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return w.driver.Run(gCtx)
	})
	g.Go(func() error {
		if err := w.healthServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("health server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return w.healthServer.Stop(shutdownCtx)
	})

	w.log.Info("Watcher started",
		"providers", w.gateway.Len(),
		"confirmations", w.cfg.Confirmations,
		"poll_interval", w.cfg.PollInterval,
		"port", w.cfg.Port,
	)
	return g.Wait()
}

// Close releases provider and Redis connections.
func (w *Watcher) Close() {
	w.log.Info("Stopping Watcher...")
	closeAll(w.clients)

	if w.redisClient != nil {
		if err := w.redisClient.Close(); err != nil {
			w.log.Warn("Failed to close Redis", "error", err)
		}
	}
}
