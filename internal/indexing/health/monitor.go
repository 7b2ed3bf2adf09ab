package health

import (
	"context"
	"sync"
	"time"

	"github.com/vietddude/ethwatch/internal/indexing/watch"
	"github.com/vietddude/ethwatch/internal/infra/eth"
)

// DefaultStatusTimeout bounds how long a report waits on the watcher loop.
const DefaultStatusTimeout = time.Second

// StatusSource answers watcher status queries.
type StatusSource interface {
	Status(ctx context.Context) (watch.Status, error)
}

// ProviderStatsSource reports per-provider call statistics.
type ProviderStatsSource interface {
	Stats() []eth.MonitorStats
}

// Monitor aggregates health status from the watcher and the gateway.
type Monitor struct {
	watcher    StatusSource
	providers  ProviderStatsSource
	cacheTTL   time.Duration
	timeout    time.Duration
	lastCheck  time.Time
	lastReport *HealthReport
	mu         sync.Mutex
}

// NewMonitor creates a new health monitor. Reports are reused for cacheTTL
// so that frequent health checks do not flood the watcher queue.
func NewMonitor(watcher StatusSource, providers ProviderStatsSource, cacheTTL time.Duration) *Monitor {
	return &Monitor{
		watcher:   watcher,
		providers: providers,
		cacheTTL:  cacheTTL,
		timeout:   DefaultStatusTimeout,
	}
}

// CheckHealth builds a health report.
func (m *Monitor) CheckHealth(ctx context.Context) HealthReport {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.lastReport != nil && time.Since(m.lastCheck) < m.cacheTTL {
		return *m.lastReport
	}

	report := HealthReport{
		SystemStatus: StatusHealthy,
		Watcher:      m.watcherHealth(ctx),
	}
	if m.providers != nil {
		report.Providers = m.providers.Stats()
	}

	switch {
	case report.Watcher.Status == StatusCritical:
		report.SystemStatus = StatusCritical
	case report.Watcher.Status == StatusDegraded:
		report.SystemStatus = StatusDegraded
	default:
		for _, p := range report.Providers {
			if p.Status != eth.StatusHealthy.String() {
				report.SystemStatus = StatusDegraded
				break
			}
		}
	}

	m.lastCheck = time.Now()
	m.lastReport = &report
	return report
}

func (m *Monitor) watcherHealth(ctx context.Context) WatcherHealth {
	// The loop does not answer while it restores state or sits in a long
	// poll; a report with no deadline would hold m.mu until it does.
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	st, err := m.watcher.Status(ctx)
	if err != nil {
		// The loop is stopped or stuck behind a long poll.
		return WatcherHealth{Status: StatusCritical, Error: err.Error()}
	}

	h := WatcherHealth{
		Status:            StatusHealthy,
		Mode:              string(st.Mode),
		LastEthereumBlock: st.LastEthereumBlock,
		Confirmations:     st.Confirmations,
		PriorityQueueSize: st.PriorityQueueSize,
		UnconfirmedOps:    st.UnconfirmedOps,
	}
	if st.Mode == watch.ModeBackoff {
		h.BackoffUntil = st.BackoffUntil
		h.Status = StatusDegraded
	}
	return h
}
