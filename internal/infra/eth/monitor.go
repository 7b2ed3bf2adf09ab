package eth

import (
	"strings"
	"sync"
	"time"
)

// ProviderStatus represents the health state of a provider.
type ProviderStatus int

const (
	StatusHealthy   ProviderStatus = iota // Provider is working normally
	StatusDegraded                        // Provider is failing part of its calls
	StatusThrottled                       // Provider is rate limiting
)

func (s ProviderStatus) String() string {
	switch s {
	case StatusHealthy:
		return "healthy"
	case StatusDegraded:
		return "degraded"
	case StatusThrottled:
		return "throttled"
	default:
		return "unknown"
	}
}

// MonitorStats holds monitoring statistics for a provider.
type MonitorStats struct {
	Name           string        `json:"name"`
	Status         string        `json:"status"`
	Successes      int           `json:"successes"`
	Failures       int           `json:"failures"`
	ThrottleCount  int           `json:"throttle_count"`
	AverageLatency time.Duration `json:"average_latency"`
	LastError      string        `json:"last_error,omitempty"`
	LastFailureAt  time.Time     `json:"last_failure_at,omitempty"`
}

// ProviderMonitor tracks the outcome of calls made through one provider.
type ProviderMonitor struct {
	mu sync.RWMutex

	recentLatencies  []time.Duration
	maxLatencyWindow int

	successCount     int
	failureCount     int
	consecutiveFails int
	throttleCount    int
	throttlePatterns []string
	lastThrottleTime time.Time
	lastFailureAt    time.Time
	lastError        string

	throttleWindow time.Duration
	now            func() time.Time
}

// NewProviderMonitor creates a new monitor with default settings.
func NewProviderMonitor() *ProviderMonitor {
	return &ProviderMonitor{
		recentLatencies:  make([]time.Duration, 0, 100),
		maxLatencyWindow: 100,
		throttlePatterns: []string{
			"429",
			"too many requests",
			"rate limit exceeded",
			"daily request count exceeded",
			"project rate limit",
		},
		throttleWindow: time.Minute,
		now:            time.Now,
	}
}

// RecordRequest records a successful request with its latency.
func (pm *ProviderMonitor) RecordRequest(latency time.Duration) {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	pm.successCount++
	pm.consecutiveFails = 0

	pm.recentLatencies = append(pm.recentLatencies, latency)
	if len(pm.recentLatencies) > pm.maxLatencyWindow {
		pm.recentLatencies = pm.recentLatencies[1:]
	}
}

// RecordFailure records a failed request.
func (pm *ProviderMonitor) RecordFailure(err error) {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	now := pm.now()
	pm.failureCount++
	pm.consecutiveFails++
	pm.lastFailureAt = now
	if err != nil {
		pm.lastError = err.Error()
		if pm.detectThrottlePattern(pm.lastError) {
			pm.throttleCount++
			pm.lastThrottleTime = now
		}
	}
}

func (pm *ProviderMonitor) detectThrottlePattern(message string) bool {
	lowerMsg := strings.ToLower(message)
	for _, pattern := range pm.throttlePatterns {
		if strings.Contains(lowerMsg, pattern) {
			return true
		}
	}
	return false
}

// CheckProviderStatus returns the current status of the provider.
func (pm *ProviderMonitor) CheckProviderStatus() ProviderStatus {
	pm.mu.RLock()
	defer pm.mu.RUnlock()
	return pm.status()
}

func (pm *ProviderMonitor) status() ProviderStatus {
	if pm.throttleCount > 0 && pm.now().Sub(pm.lastThrottleTime) < pm.throttleWindow {
		return StatusThrottled
	}
	if pm.consecutiveFails > 0 {
		return StatusDegraded
	}
	return StatusHealthy
}

// GetStats returns current monitoring statistics.
func (pm *ProviderMonitor) GetStats() MonitorStats {
	pm.mu.RLock()
	defer pm.mu.RUnlock()

	stats := MonitorStats{
		Status:        pm.status().String(),
		Successes:     pm.successCount,
		Failures:      pm.failureCount,
		ThrottleCount: pm.throttleCount,
		LastError:     pm.lastError,
		LastFailureAt: pm.lastFailureAt,
	}

	if len(pm.recentLatencies) > 0 {
		var total time.Duration
		for _, lat := range pm.recentLatencies {
			total += lat
		}
		stats.AverageLatency = total / time.Duration(len(pm.recentLatencies))
	}

	return stats
}
