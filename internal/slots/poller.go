package slots

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
)

// DefaultInterval is how often an open context is re-polled.
const DefaultInterval = 2 * time.Second

// Poller re-polls a Tracker on a fixed interval and on demand.
type Poller struct {
	tracker  *Tracker
	interval time.Duration
	timeout  time.Duration
	refresh  chan struct{}
	log      logrus.FieldLogger
}

// NewPoller builds a poller.  A zero interval uses DefaultInterval; a zero
// timeout leaves each fetch bounded only by the Run context.
func NewPoller(t *Tracker, interval, timeout time.Duration, log logrus.FieldLogger) *Poller {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Poller{
		tracker:  t,
		interval: interval,
		timeout:  timeout,
		refresh:  make(chan struct{}, 1),
		log:      log,
	}
}

// Refresh asks for a poll as soon as possible.  Requests made while one is
// already queued are coalesced.
func (p *Poller) Refresh() {
	select {
	case p.refresh <- struct{}{}:
	default:
	}
}

// Run polls until ctx is cancelled.
func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.poll(ctx)
		case <-p.refresh:
			p.poll(ctx)
		}
	}
}

func (p *Poller) poll(ctx context.Context) {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}
	err := p.tracker.Poll(ctx)
	if errors.Is(err, ErrPollInFlight) {
		p.log.Debug("slot poll skipped, previous still in flight")
	}
}
