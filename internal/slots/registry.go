package slots

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// DefaultIdle is how long a theater/date is kept polled after its last
// viewer.
const DefaultIdle = 2 * time.Minute

// RegistryConfig configures a Registry.
type RegistryConfig struct {
	Interval time.Duration // poll interval per open theater/date
	Timeout  time.Duration // per-fetch timeout
	Idle     time.Duration // stop polling after this long without a viewer
	Options  []Option      // applied to every tracker
}

type entry struct {
	tracker  *Tracker
	poller   *Poller
	stop     context.CancelFunc
	lastSeen time.Time
}

// Registry keeps one polled Tracker per open theater/date and retires
// them once nobody has looked at them for a while.
type Registry struct {
	fetch     Fetcher
	cfg       RegistryConfig
	log       logrus.FieldLogger
	listeners []Listener
	now       func() time.Time

	mu      sync.Mutex
	entries map[string]*entry
}

// NewRegistry returns an empty registry.  Listeners are subscribed to every
// tracker it creates.
func NewRegistry(fetch Fetcher, cfg RegistryConfig, log logrus.FieldLogger, listeners ...Listener) *Registry {
	if cfg.Idle <= 0 {
		cfg.Idle = DefaultIdle
	}
	return &Registry{
		fetch:     fetch,
		cfg:       cfg,
		log:       log,
		listeners: listeners,
		now:       time.Now,
		entries:   make(map[string]*entry),
	}
}

func registryKey(theater, date string) string {
	return strings.ToLower(strings.TrimSpace(theater)) + "|" + strings.TrimSpace(date)
}

// Open returns the tracker for a theater/date, starting its poller on first
// use.  A tracker that has not completed a poll yet is polled once with ctx
// before returning.
func (r *Registry) Open(ctx context.Context, theater, date string) *Tracker {
	key := registryKey(theater, date)

	r.mu.Lock()
	e, ok := r.entries[key]
	if !ok {
		t := NewTracker(r.fetch, r.log, r.cfg.Options...)
		for _, l := range r.listeners {
			t.Subscribe(l)
		}
		t.Watch(theater, date)
		pctx, stop := context.WithCancel(context.Background())
		e = &entry{tracker: t, poller: NewPoller(t, r.cfg.Interval, r.cfg.Timeout, r.log), stop: stop}
		r.entries[key] = e
		go e.poller.Run(pctx)
		r.log.WithFields(logrus.Fields{"theater": theater, "date": date}).Debug("slot polling started")
	}
	e.lastSeen = r.now()
	r.mu.Unlock()

	if !e.tracker.Primed() {
		if r.cfg.Timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, r.cfg.Timeout)
			defer cancel()
		}
		_ = e.tracker.Poll(ctx)
	}
	return e.tracker
}

// Refresh requests an immediate poll of a theater/date if it is open.  It
// reports whether anything was open.
func (r *Registry) Refresh(theater, date string) bool {
	r.mu.Lock()
	e, ok := r.entries[registryKey(theater, date)]
	r.mu.Unlock()
	if ok {
		e.poller.Refresh()
	}
	return ok
}

// Sweep stops polling every theater/date idle for longer than the idle
// window and returns how many were retired.
func (r *Registry) Sweep() int {
	cutoff := r.now().Add(-r.cfg.Idle)
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for key, e := range r.entries {
		if e.lastSeen.Before(cutoff) {
			e.stop()
			delete(r.entries, key)
			n++
		}
	}
	return n
}

// Len reports how many theater/date pairs are being polled.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Run sweeps idle entries until ctx is cancelled, then stops every poller.
func (r *Registry) Run(ctx context.Context) {
	ticker := time.NewTicker(r.cfg.Idle / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.Close()
			return
		case <-ticker.C:
			if n := r.Sweep(); n > 0 {
				r.log.WithField("retired", n).Debug("idle slot pollers stopped")
			}
		}
	}
}

// Close stops every poller.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for key, e := range r.entries {
		e.stop()
		delete(r.entries, key)
	}
}

// Selectable reports whether v may choose label on a theater/date.  A label
// missing from the known slot list is not rejected; labels drift between
// portal versions and the store decides in the end.
func (r *Registry) Selectable(ctx context.Context, theater, date, label string, v Viewer) bool {
	for _, view := range r.Open(ctx, theater, date).Slots(v) {
		if sameLabel(view.Label, label) {
			return view.Selectable
		}
	}
	return true
}
