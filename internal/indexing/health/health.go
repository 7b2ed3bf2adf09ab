// Package health provides system health monitoring and status reporting.
package health

import (
	"time"

	"github.com/vietddude/ethwatch/internal/core/domain"
	"github.com/vietddude/ethwatch/internal/infra/eth"
)

// SystemStatus represents the overall health state of the system or a component.
type SystemStatus string

const (
	StatusHealthy  SystemStatus = "healthy"
	StatusDegraded SystemStatus = "degraded"
	StatusCritical SystemStatus = "critical"
)

// WatcherHealth is the health of the watcher loop.
type WatcherHealth struct {
	Status            SystemStatus        `json:"status"`
	Mode              string              `json:"mode"`
	BackoffUntil      *time.Time          `json:"backoff_until,omitempty"`
	LastEthereumBlock uint64              `json:"last_ethereum_block"`
	Confirmations     uint64              `json:"confirmations"`
	PriorityQueueSize int                 `json:"priority_queue_size"`
	UnconfirmedOps    []domain.PriorityOp `json:"unconfirmed_ops"`
	Error             string              `json:"error,omitempty"`
}

// HealthReport contains the full system health report.
type HealthReport struct {
	SystemStatus SystemStatus       `json:"system_status"`
	Watcher      WatcherHealth      `json:"watcher"`
	Providers    []eth.MonitorStats `json:"providers"`
}
