package watch

import (
	"context"
	"log/slog"
	"time"
)

// PollDriver feeds PollETHNode requests into a watcher queue at a fixed
// interval. The first poll is sent immediately.
type PollDriver struct {
	interval time.Duration
	reqs     chan<- Request
	log      *slog.Logger
}

// NewPollDriver creates a driver writing into reqs.
func NewPollDriver(interval time.Duration, reqs chan<- Request) *PollDriver {
	return &PollDriver{
		interval: interval,
		reqs:     reqs,
		log:      slog.Default().With("component", "poll_driver"),
	}
}

// Run blocks until ctx is cancelled. A full queue delays the next tick.
func (d *PollDriver) Run(ctx context.Context) error {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	d.log.Info("Poll driver started", "interval", d.interval)
	for {
		select {
		case d.reqs <- PollETHNode{}:
		case <-ctx.Done():
			return nil
		}

		select {
		case <-ticker.C:
		case <-ctx.Done():
			return nil
		}
	}
}
