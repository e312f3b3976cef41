// Package reconcile owns booking edit sessions.
//
// A session loads a stored booking through the legacy shape adapter,
// applies staff edits one at a time (pricing, occasion, services, slot) and
// writes the whole reconciled booking back on save.  Nothing outside a
// session mutates its booking; the calculator and ledger return new values
// that the session commits before any save is attempted.
package reconcile

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/theater-booking/internal/model"
	"github.com/iliyamo/theater-booking/internal/occasion"
	"github.com/iliyamo/theater-booking/internal/slots"
)

// Source fetches a stored booking in whatever shape it was written.
type Source interface {
	FetchBooking(ctx context.Context, bookingID string) (*model.Document, error)
}

// Saver persists a booking payload.  The returned document, when non-nil,
// is the stored booking after the write.
type Saver interface {
	SaveBooking(ctx context.Context, bookingID string, payload *model.Document) (*model.Document, error)
}

// CatalogReader provides the read-only catalogs.
type CatalogReader interface {
	Theaters(ctx context.Context) ([]model.Theater, error)
	ServiceCategories(ctx context.Context) ([]model.ServiceCategory, error)
	Occasions(ctx context.Context) ([]model.OccasionDefinition, error)
	PricingDefaults(ctx context.Context) (model.PricingDefaults, error)
}

// Notifier is told about successful saves.
type Notifier interface {
	BookingSaved(ctx context.Context, b *model.Booking)
}

// SlotChecker answers whether a booking may take a time slot.  It is
// satisfied by *slots.Registry.
type SlotChecker interface {
	Selectable(ctx context.Context, theater, date, label string, v slots.Viewer) bool
}

// SaveError is the single human-readable failure returned by a save.  The
// session is left exactly as it was before the attempt.
type SaveError struct {
	BookingID string
	Message   string
	Err       error
}

func (e *SaveError) Error() string { return e.Message }

func (e *SaveError) Unwrap() error { return e.Err }

func newSaveError(id string, err error) *SaveError {
	return &SaveError{
		BookingID: id,
		Message:   fmt.Sprintf("Booking %s could not be saved, please try again (%v)", id, err),
		Err:       err,
	}
}

// Option customizes a Reconciler.
type Option func(*Reconciler)

// WithNotifier registers a save notifier.
func WithNotifier(n Notifier) Option {
	return func(r *Reconciler) { r.notifier = n }
}

// WithSlotChecker rejects slot choices the checker reports as taken.
// Without one every slot is accepted.
func WithSlotChecker(c SlotChecker) Option {
	return func(r *Reconciler) { r.slots = c }
}

// WithSynonyms passes extra occasion field synonyms to every adapter.
func WithSynonyms(opts ...occasion.Option) Option {
	return func(r *Reconciler) { r.synonyms = append(r.synonyms, opts...) }
}

// Reconciler opens edit sessions.
type Reconciler struct {
	source   Source
	saver    Saver
	catalog  CatalogReader
	notifier Notifier
	slots    SlotChecker
	synonyms []occasion.Option
	log      logrus.FieldLogger
}

// New wires a Reconciler.
func New(source Source, saver Saver, catalog CatalogReader, log logrus.FieldLogger, opts ...Option) *Reconciler {
	r := &Reconciler{source: source, saver: saver, catalog: catalog, log: log}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Catalogs loads every catalog.  A catalog that fails to load is logged
// and left empty so editing can continue with what the booking carries.
func (r *Reconciler) Catalogs(ctx context.Context) model.Catalogs {
	var c model.Catalogs
	var err error
	if c.Theaters, err = r.catalog.Theaters(ctx); err != nil {
		r.log.WithError(err).Warn("theater catalog unavailable")
	}
	if c.Services, err = r.catalog.ServiceCategories(ctx); err != nil {
		r.log.WithError(err).Warn("service catalog unavailable")
	}
	if c.Occasions, err = r.catalog.Occasions(ctx); err != nil {
		r.log.WithError(err).Warn("occasion catalog unavailable")
	}
	if c.Defaults, err = r.catalog.PricingDefaults(ctx); err != nil {
		r.log.WithError(err).Warn("pricing defaults unavailable")
	}
	return c
}

// Adapter returns a legacy shape adapter over the current catalogs.
func (r *Reconciler) Adapter(ctx context.Context) *Adapter {
	return NewAdapter(r.Catalogs(ctx), r.synonyms...)
}

// Open loads a booking and starts a session on it.
func (r *Reconciler) Open(ctx context.Context, bookingID string) (*Session, error) {
	raw, err := r.source.FetchBooking(ctx, bookingID)
	if err != nil {
		return nil, fmt.Errorf("fetch booking %s: %w", bookingID, err)
	}
	s := r.session(r.Adapter(ctx), raw)
	if s.booking.BookingID == "" {
		s.booking.BookingID = bookingID
	}
	return s, nil
}

// NewManual starts a session for a walk-in booking that does not exist in
// the store yet.  It is assigned a fresh booking id.  A slot that is taken
// or already started fails with ErrSlotTaken.
func (r *Reconciler) NewManual(ctx context.Context, theater, date, slot string) (*Session, error) {
	raw := model.NewDocument()
	raw.Set(bookingIDKeys[0], uuid.NewString())
	raw.Set(theaterKeys[0], theater)
	raw.Set(dateKeys[0], date)
	raw.Set("isManualBooking", true)
	s := r.session(r.Adapter(ctx), raw)
	s.manual = true
	if err := s.SetSlot(ctx, date, slot); err != nil {
		return nil, err
	}
	return s, nil
}

func (r *Reconciler) session(a *Adapter, raw *model.Document) *Session {
	n := a.Normalize(raw)
	s := &Session{
		r:       r,
		adapter: a,
		log:     r.log.WithField("booking_id", n.Booking.BookingID),
	}
	s.load(n)
	return s
}
