// Package slots tracks which time slots of a theater are taken on a date.
//
// A Tracker is bound to one theater/date at a time and refreshed by polling
// the slot store.  Polls never overlap, results for a theater/date that is
// no longer watched are discarded, and listeners only hear about a poll when
// the set of taken slots actually changed.
package slots

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/theater-booking/internal/model"
)

// ErrPollInFlight is returned by Poll when the previous poll has not
// finished.  The skipped poll is not retried.
var ErrPollInFlight = errors.New("slot poll already in flight")

// Fetcher reads the slot list of a theater on a date.
type Fetcher interface {
	Slots(ctx context.Context, theater, date string) ([]model.TimeSlot, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, theater, date string) ([]model.TimeSlot, error)

func (f FetcherFunc) Slots(ctx context.Context, theater, date string) ([]model.TimeSlot, error) {
	return f(ctx, theater, date)
}

// Change lists the slots whose taken state flipped between two polls.
type Change struct {
	Theater     string   `json:"theater"`
	Date        string   `json:"date"`
	NewlyBooked []string `json:"newlyBooked"`
	NewlyFreed  []string `json:"newlyFreed"`
}

// Listener is told about slot changes.  It is called outside the
// tracker's lock and must not block for long.
type Listener interface {
	SlotsChanged(ctx context.Context, c Change)
}

// ListenerFunc adapts a function to Listener.
type ListenerFunc func(ctx context.Context, c Change)

func (f ListenerFunc) SlotsChanged(ctx context.Context, c Change) { f(ctx, c) }

// Mode selects how slots whose start time has passed are shown.
type Mode int

const (
	// ModeEditor is used while editing an existing booking.  Past slots stay
	// selectable so staff can record bookings after the fact.
	ModeEditor Mode = iota
	// ModeManual is used for a new walk-in booking.  Past slots are expired.
	ModeManual
)

// ParseMode maps "manual" to ModeManual and anything else to ModeEditor.
func ParseMode(s string) Mode {
	if strings.EqualFold(strings.TrimSpace(s), "manual") {
		return ModeManual
	}
	return ModeEditor
}

// State is how a slot is presented to one viewer.
type State string

const (
	StateAvailable State = "available"
	StateBooked    State = "booked"
	StateOwn       State = "own"
	StateExpired   State = "expired"
)

// View is one slot as shown to a viewer.
type View struct {
	Label      string           `json:"label"`
	Status     model.SlotStatus `json:"bookingStatus"`
	State      State            `json:"state"`
	Selectable bool             `json:"selectable"`
}

// Viewer describes who is looking at the slots.
type Viewer struct {
	BookingID string   // booking being edited, "" for a new booking
	Time      string   // slot label that booking currently holds
	Mode      Mode     // editor or manual
	Fallback  []string // labels shown when no poll has succeeded yet
}

// Option customizes a Tracker.
type Option func(*Tracker)

// WithClock overrides the time source used for expiry.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

// WithLocation sets the zone slot labels are expressed in.
func WithLocation(loc *time.Location) Option {
	return func(t *Tracker) { t.loc = loc }
}

// Tracker holds the latest known slot state for one theater/date.
type Tracker struct {
	fetch Fetcher
	log   logrus.FieldLogger
	now   func() time.Time
	loc   *time.Location

	mu        sync.Mutex
	theater   string
	date      string
	gen       uint64
	inFlight  bool
	cancel    context.CancelFunc
	slots     []model.TimeSlot
	taken     map[string]bool
	primed    bool
	listeners []Listener
}

// NewTracker returns a tracker that is not watching anything yet.
func NewTracker(fetch Fetcher, log logrus.FieldLogger, opts ...Option) *Tracker {
	t := &Tracker{fetch: fetch, log: log, now: time.Now, loc: time.Local}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Subscribe registers l for future changes.
func (t *Tracker) Subscribe(l Listener) {
	t.mu.Lock()
	t.listeners = append(t.listeners, l)
	t.mu.Unlock()
}

// Watch points the tracker at a theater/date.  Switching to a different
// pair abandons any poll in flight and forgets the previous state.
func (t *Tracker) Watch(theater, date string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.theater == theater && t.date == date {
		return
	}
	if t.cancel != nil {
		t.cancel()
		t.cancel = nil
	}
	t.gen++
	t.theater, t.date = theater, date
	t.inFlight = false
	t.slots = nil
	t.taken = nil
	t.primed = false
}

// Watching returns the current theater/date.
func (t *Tracker) Watching() (theater, date string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.theater, t.date
}

// Primed reports whether a poll has completed for the current pair.
func (t *Tracker) Primed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.primed
}

// Poll fetches the slot list once.  A failed fetch shows every slot as
// available until the next successful poll; the last known taken set is
// kept so the recovery poll does not report spurious changes.
func (t *Tracker) Poll(ctx context.Context) error {
	t.mu.Lock()
	if t.inFlight {
		t.mu.Unlock()
		return ErrPollInFlight
	}
	if t.theater == "" || t.date == "" {
		t.mu.Unlock()
		return nil
	}
	gen, theater, date := t.gen, t.theater, t.date
	fctx, cancel := context.WithCancel(ctx)
	t.inFlight = true
	t.cancel = cancel
	t.mu.Unlock()

	slots, err := t.fetch.Slots(fctx, theater, date)
	cancel()

	t.mu.Lock()
	if gen != t.gen {
		t.mu.Unlock()
		return nil
	}
	t.inFlight = false
	t.cancel = nil
	entry := t.log.WithFields(logrus.Fields{"theater": theater, "date": date})

	if err != nil {
		for i := range t.slots {
			t.slots[i].Status = model.SlotAvailable
			t.slots[i].BookingID = ""
		}
		t.mu.Unlock()
		entry.WithError(err).Warn("slot poll failed, showing all slots available")
		return err
	}

	next := takenSet(slots)
	prev, primed := t.taken, t.primed
	t.slots = slots
	t.taken = next
	t.primed = true
	listeners := append([]Listener(nil), t.listeners...)
	t.mu.Unlock()

	if !primed {
		return nil
	}
	change := diff(theater, date, slots, prev, next)
	if len(change.NewlyBooked) == 0 && len(change.NewlyFreed) == 0 {
		return nil
	}
	entry.WithFields(logrus.Fields{
		"newly_booked": change.NewlyBooked,
		"newly_freed":  change.NewlyFreed,
	}).Debug("slot availability changed")
	for _, l := range listeners {
		l.SlotsChanged(ctx, change)
	}
	return nil
}

// Slots classifies the last known slot list for a viewer.
func (t *Tracker) Slots(v Viewer) []View {
	t.mu.Lock()
	slots := append([]model.TimeSlot(nil), t.slots...)
	date := t.date
	t.mu.Unlock()

	if len(slots) == 0 {
		for _, label := range v.Fallback {
			slots = append(slots, model.TimeSlot{Label: label, Status: model.SlotNone})
		}
	}
	now := t.now().In(t.loc)
	out := make([]View, 0, len(slots))
	for _, s := range slots {
		out = append(out, t.classify(s, v, date, now))
	}
	return out
}

func (t *Tracker) classify(s model.TimeSlot, v Viewer, date string, now time.Time) View {
	view := View{Label: s.Label, Status: s.Status}
	taken := s.Status == model.SlotBooked || (s.Status == model.SlotGoing && v.Mode == ModeManual)
	switch {
	case taken && ownedBy(s, v):
		view.State, view.Selectable = StateOwn, true
	case taken:
		view.State = StateBooked
	case v.Mode == ModeManual && t.started(date, s.Label, now):
		view.State = StateExpired
	default:
		view.State, view.Selectable = StateAvailable, true
	}
	return view
}

func (t *Tracker) started(date, label string, now time.Time) bool {
	start, ok := SlotStart(date, label, t.loc)
	return ok && !start.After(now)
}

// ownedBy matches on the store's booking id when it has one, else on the
// slot label the viewer's booking holds.
func ownedBy(s model.TimeSlot, v Viewer) bool {
	if v.BookingID == "" {
		return false
	}
	if s.BookingID != "" {
		return s.BookingID == v.BookingID
	}
	return sameLabel(s.Label, v.Time)
}

func sameLabel(a, b string) bool {
	norm := func(s string) string { return strings.Join(strings.Fields(strings.ToLower(s)), " ") }
	return a != "" && norm(a) == norm(b)
}

func takenSet(slots []model.TimeSlot) map[string]bool {
	out := make(map[string]bool)
	for _, s := range slots {
		if s.Taken() {
			out[s.Label] = true
		}
	}
	return out
}

func diff(theater, date string, slots []model.TimeSlot, prev, next map[string]bool) Change {
	order := make(map[string]int, len(slots))
	for i, s := range slots {
		order[s.Label] = i
	}
	c := Change{Theater: theater, Date: date}
	for label := range next {
		if !prev[label] {
			c.NewlyBooked = append(c.NewlyBooked, label)
		}
	}
	for label := range prev {
		if !next[label] {
			c.NewlyFreed = append(c.NewlyFreed, label)
		}
	}
	byOrder := func(labels []string) {
		sort.Slice(labels, func(i, j int) bool {
			oi, iok := order[labels[i]]
			oj, jok := order[labels[j]]
			if iok != jok {
				return iok
			}
			if oi != oj {
				return oi < oj
			}
			return labels[i] < labels[j]
		})
	}
	byOrder(c.NewlyBooked)
	byOrder(c.NewlyFreed)
	return c
}
