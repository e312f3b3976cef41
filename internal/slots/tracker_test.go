package slots

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/theater-booking/internal/model"
)

type scripted struct {
	mu    sync.Mutex
	slots []model.TimeSlot
	err   error
	calls int32
}

func (s *scripted) set(slots []model.TimeSlot, err error) {
	s.mu.Lock()
	s.slots, s.err = slots, err
	s.mu.Unlock()
}

func (s *scripted) Slots(ctx context.Context, theater, date string) ([]model.TimeSlot, error) {
	atomic.AddInt32(&s.calls, 1)
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.TimeSlot(nil), s.slots...), s.err
}

type recorder struct {
	mu      sync.Mutex
	changes []Change
}

func (r *recorder) SlotsChanged(_ context.Context, c Change) {
	r.mu.Lock()
	r.changes = append(r.changes, c)
	r.mu.Unlock()
}

func (r *recorder) all() []Change {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Change(nil), r.changes...)
}

func slotList(statuses ...model.SlotStatus) []model.TimeSlot {
	labels := []string{"10:00 AM - 1:00 PM", "1:30 PM - 4:30 PM", "5:00 PM - 8:00 PM"}
	out := make([]model.TimeSlot, len(statuses))
	for i, st := range statuses {
		out[i] = model.TimeSlot{Label: labels[i], Status: st}
	}
	return out
}

func newTestTracker(f Fetcher, opts ...Option) *Tracker {
	log, _ := logtest.NewNullLogger()
	return NewTracker(f, log, opts...)
}

func TestPollEmitsOnlyOnChange(t *testing.T) {
	f := &scripted{}
	f.set(slotList(model.SlotBooked, model.SlotNone, model.SlotNone), nil)
	rec := &recorder{}
	tr := newTestTracker(f)
	tr.Subscribe(rec)
	tr.Watch("Lounge", "2024-05-01")

	require.NoError(t, tr.Poll(context.Background()))
	require.NoError(t, tr.Poll(context.Background()))
	assert.Empty(t, rec.all())

	f.set(slotList(model.SlotNone, model.SlotBooked, model.SlotGoing), nil)
	require.NoError(t, tr.Poll(context.Background()))

	changes := rec.all()
	require.Len(t, changes, 1)
	assert.Equal(t, "Lounge", changes[0].Theater)
	assert.Equal(t, []string{"1:30 PM - 4:30 PM", "5:00 PM - 8:00 PM"}, changes[0].NewlyBooked)
	assert.Equal(t, []string{"10:00 AM - 1:00 PM"}, changes[0].NewlyFreed)

	require.NoError(t, tr.Poll(context.Background()))
	assert.Len(t, rec.all(), 1)
}

func TestPollFailureShowsAvailableWithoutSpuriousChange(t *testing.T) {
	f := &scripted{}
	f.set(slotList(model.SlotBooked, model.SlotNone), nil)
	rec := &recorder{}
	tr := newTestTracker(f)
	tr.Subscribe(rec)
	tr.Watch("Lounge", "2024-05-01")
	require.NoError(t, tr.Poll(context.Background()))

	f.set(nil, errors.New("store down"))
	assert.Error(t, tr.Poll(context.Background()))
	for _, v := range tr.Slots(Viewer{}) {
		assert.Equal(t, StateAvailable, v.State, v.Label)
		assert.True(t, v.Selectable)
	}

	f.set(slotList(model.SlotBooked, model.SlotNone), nil)
	require.NoError(t, tr.Poll(context.Background()))
	assert.Empty(t, rec.all())
	assert.Equal(t, StateBooked, tr.Slots(Viewer{})[0].State)
}

func TestFallbackLabelsBeforeFirstPoll(t *testing.T) {
	f := &scripted{}
	f.set(nil, errors.New("timeout"))
	tr := newTestTracker(f)
	tr.Watch("Lounge", "2024-05-01")
	_ = tr.Poll(context.Background())

	views := tr.Slots(Viewer{Fallback: []string{"A", "B"}})
	require.Len(t, views, 2)
	assert.True(t, views[0].Selectable)
	assert.False(t, tr.Primed())
}

func TestOwnSlotIsSelectable(t *testing.T) {
	f := &scripted{}
	slots := slotList(model.SlotBooked, model.SlotBooked, model.SlotNone)
	slots[1].BookingID = "BK-2"
	f.set(slots, nil)
	tr := newTestTracker(f)
	tr.Watch("Lounge", "2024-05-01")
	require.NoError(t, tr.Poll(context.Background()))

	views := tr.Slots(Viewer{BookingID: "BK-1", Time: "10:00 am -  1:00 pm"})
	assert.Equal(t, StateOwn, views[0].State)
	assert.True(t, views[0].Selectable)
	assert.Equal(t, StateBooked, views[1].State)
	assert.False(t, views[1].Selectable)
	assert.Equal(t, StateAvailable, views[2].State)

	views = tr.Slots(Viewer{BookingID: "BK-2", Time: "10:00 AM - 1:00 PM"})
	assert.Equal(t, StateOwn, views[1].State)

	// a new booking owns nothing
	views = tr.Slots(Viewer{Time: "10:00 AM - 1:00 PM"})
	assert.False(t, views[0].Selectable)
}

func TestExpiryOnlyInManualMode(t *testing.T) {
	loc := time.UTC
	now := time.Date(2024, 5, 1, 14, 0, 0, 0, loc)
	f := &scripted{}
	f.set(slotList(model.SlotNone, model.SlotGoing, model.SlotNone), nil)
	tr := newTestTracker(f, WithClock(func() time.Time { return now }), WithLocation(loc))
	tr.Watch("Lounge", "2024-05-01")
	require.NoError(t, tr.Poll(context.Background()))

	manual := tr.Slots(Viewer{Mode: ModeManual})
	assert.Equal(t, StateExpired, manual[0].State)
	assert.False(t, manual[0].Selectable)
	assert.Equal(t, StateBooked, manual[1].State)
	assert.Equal(t, StateAvailable, manual[2].State)

	editor := tr.Slots(Viewer{Mode: ModeEditor})
	for _, v := range editor {
		assert.Equal(t, StateAvailable, v.State, v.Label)
	}
}

type blocking struct {
	entered chan struct{}
	release chan struct{}
	slots   []model.TimeSlot
}

func (b *blocking) Slots(ctx context.Context, theater, date string) ([]model.TimeSlot, error) {
	b.entered <- struct{}{}
	<-b.release
	return b.slots, nil
}

func TestPollInFlightGuard(t *testing.T) {
	b := &blocking{entered: make(chan struct{}, 1), release: make(chan struct{}), slots: slotList(model.SlotBooked)}
	tr := newTestTracker(b)
	tr.Watch("Lounge", "2024-05-01")

	done := make(chan error, 1)
	go func() { done <- tr.Poll(context.Background()) }()
	<-b.entered

	assert.ErrorIs(t, tr.Poll(context.Background()), ErrPollInFlight)
	close(b.release)
	require.NoError(t, <-done)
	assert.True(t, tr.Primed())
}

func TestStaleResultDiscardedAfterWatchChange(t *testing.T) {
	b := &blocking{entered: make(chan struct{}, 1), release: make(chan struct{}), slots: slotList(model.SlotBooked)}
	tr := newTestTracker(b)
	tr.Watch("Lounge", "2024-05-01")

	done := make(chan error, 1)
	go func() { done <- tr.Poll(context.Background()) }()
	<-b.entered

	tr.Watch("Lounge", "2024-05-02")
	close(b.release)
	require.NoError(t, <-done)

	assert.False(t, tr.Primed())
	assert.Empty(t, tr.Slots(Viewer{}))
	theater, date := tr.Watching()
	assert.Equal(t, "Lounge", theater)
	assert.Equal(t, "2024-05-02", date)
}

func TestSlotStart(t *testing.T) {
	loc := time.UTC
	got, ok := SlotStart("2024-05-01", "10:30 AM - 1:00 PM", loc)
	require.True(t, ok)
	assert.Equal(t, time.Date(2024, 5, 1, 10, 30, 0, 0, loc), got)

	got, ok = SlotStart("Wednesday, May 1, 2024", "18:00-21:00", loc)
	require.True(t, ok)
	assert.Equal(t, 18, got.Hour())

	got, ok = SlotStart("2024/05/01", "7 PM - 10 PM", loc)
	require.True(t, ok)
	assert.Equal(t, time.Date(2024, 5, 1, 19, 0, 0, 0, loc), got)

	_, ok = SlotStart("someday", "10:00 AM - 1:00 PM", loc)
	assert.False(t, ok)
	_, ok = SlotStart("2024-05-01", "Morning", loc)
	assert.False(t, ok)
}

func TestPollerRefresh(t *testing.T) {
	f := &scripted{}
	f.set(slotList(model.SlotNone), nil)
	tr := newTestTracker(f)
	tr.Watch("Lounge", "2024-05-01")
	log, _ := logtest.NewNullLogger()
	p := NewPoller(tr, time.Hour, time.Second, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Run(ctx)

	p.Refresh()
	require.Eventually(t, tr.Primed, time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(1), atomic.LoadInt32(&f.calls))
}

func TestRegistryOpenRefreshSweep(t *testing.T) {
	f := &scripted{}
	f.set(slotList(model.SlotBooked), nil)
	log, _ := logtest.NewNullLogger()
	r := NewRegistry(f, RegistryConfig{Interval: time.Hour, Idle: time.Minute}, log)
	defer r.Close()

	clock := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return clock }

	tr := r.Open(context.Background(), "Lounge", "2024-05-01")
	assert.True(t, tr.Primed())
	assert.Same(t, tr, r.Open(context.Background(), " lounge ", "2024-05-01"))
	assert.Equal(t, 1, r.Len())

	assert.True(t, r.Refresh("LOUNGE", "2024-05-01"))
	assert.False(t, r.Refresh("Lounge", "2024-05-09"))

	clock = clock.Add(2 * time.Minute)
	assert.Equal(t, 1, r.Sweep())
	assert.Equal(t, 0, r.Len())
}
