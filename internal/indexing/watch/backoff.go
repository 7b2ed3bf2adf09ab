package watch

import (
	"strings"
	"time"

	"github.com/vietddude/ethwatch/internal/indexing/metrics"
)

const rateLimitPattern = "429 Too Many Requests"

// IsBackoffRequested reports whether err carries a provider rate limit.
func IsBackoffRequested(err error) bool {
	return err != nil && strings.Contains(err.Error(), rateLimitPattern)
}

// mode is working when backoff is false.
type mode struct {
	backoff bool
	until   time.Time
}

func (w *Watcher) enterBackoff(err error) {
	w.mode = mode{backoff: true, until: w.now().Add(w.retryDelay)}
	metrics.BackoffEnteredTotal.Inc()
	w.log.Warn("Rate limited by provider, suspending polls",
		"until", w.mode.until,
		"error", err,
	)
}

// pollingAllowed switches back to working once the backoff window elapsed.
func (w *Watcher) pollingAllowed() bool {
	if !w.mode.backoff {
		return true
	}
	if w.now().Before(w.mode.until) {
		return false
	}
	w.mode = mode{}
	w.log.Info("Backoff elapsed, resuming polls")
	return true
}
