package reconcile

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/theater-booking/internal/ledger"
	"github.com/iliyamo/theater-booking/internal/model"
	"github.com/iliyamo/theater-booking/internal/occasion"
	"github.com/iliyamo/theater-booking/internal/pricing"
	"github.com/iliyamo/theater-booking/internal/slots"
)

var (
	// ErrUnknownService is returned when a toggled item is not in the
	// service catalog.
	ErrUnknownService = errors.New("service item not in catalog")
	// ErrServiceNotSelected is returned when removing an entry that is not
	// selected.
	ErrServiceNotSelected = errors.New("service item not selected")
	// ErrInvalidCategory is returned for a custom entry whose category name
	// yields no usable field key.
	ErrInvalidCategory = errors.New("service category name is empty")
	// ErrSlotTaken is returned when choosing a slot held by another booking
	// or, for a new booking, one that has already started.
	ErrSlotTaken = errors.New("time slot is not available")
)

// Session is one staff member's edit of one booking.  Mutations are applied
// to local state synchronously and in call order; a save always carries
// the complete state that results from them.
type Session struct {
	r       *Reconciler
	adapter *Adapter
	log     logrus.FieldLogger

	mu      sync.Mutex
	booking *model.Booking
	res     occasion.Resolution
	fields  []occasion.Field
	ledger  *ledger.Ledger
	shape   StoredShape
	manual  bool
}

func (s *Session) load(n Normalized) {
	s.booking = n.Booking
	s.res = n.Resolution
	s.fields = n.Fields
	s.ledger = ledger.New(n.Booking.Services)
	s.shape = n.Shape
}

// Booking returns a copy of the current booking.
func (s *Session) Booking() *model.Booking {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneBooking(s.booking)
}

// Pricing returns the current pricing breakdown.
func (s *Session) Pricing() model.PricingState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.booking.Pricing
}

// Manual reports whether the session was opened for a booking that has not
// been saved yet.
func (s *Session) Manual() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.manual
}

func (s *Session) calc() *pricing.Calculator { return s.adapter.calc }

func (s *Session) price(fn func(model.PricingState) model.PricingState) model.PricingState {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.booking.Pricing = fn(s.booking.Pricing)
	s.booking.Guests = s.booking.Pricing.GuestCount
	return s.booking.Pricing
}

// SetTotal records a total entered directly.
func (s *Session) SetTotal(raw any) model.PricingState {
	return s.price(func(p model.PricingState) model.PricingState { return s.calc().SetTotal(p, raw) })
}

// SetAdvance records the advance paid.
func (s *Session) SetAdvance(raw any) model.PricingState {
	return s.price(func(p model.PricingState) model.PricingState { return s.calc().SetAdvance(p, raw) })
}

// SetVenuePayment records the amount due at the venue.
func (s *Session) SetVenuePayment(raw any) model.PricingState {
	return s.price(func(p model.PricingState) model.PricingState { return s.calc().SetVenuePayment(p, raw) })
}

// SetAdminDiscount records the admin discount.
func (s *Session) SetAdminDiscount(raw any) model.PricingState {
	return s.price(func(p model.PricingState) model.PricingState { return s.calc().SetAdminDiscount(p, raw) })
}

// SetGenericDiscount records the generic discount.
func (s *Session) SetGenericDiscount(raw any) model.PricingState {
	return s.price(func(p model.PricingState) model.PricingState { return s.calc().SetGenericDiscount(p, raw) })
}

// SetCoupon records a coupon code and its discount.
func (s *Session) SetCoupon(code string, raw any) model.PricingState {
	return s.price(func(p model.PricingState) model.PricingState { return s.calc().SetCoupon(p, code, raw) })
}

// SetPenalty records penalty charges and their reason.
func (s *Session) SetPenalty(raw any, reason string) model.PricingState {
	return s.price(func(p model.PricingState) model.PricingState { return s.calc().SetPenalty(p, raw, reason) })
}

// SetDecorationFee changes the base decoration fee.
func (s *Session) SetDecorationFee(raw any) model.PricingState {
	return s.price(func(p model.PricingState) model.PricingState { return s.calc().SetDecorationFee(p, raw) })
}

// ToggleDecoration applies or removes decoration.
func (s *Session) ToggleDecoration(on bool) model.PricingState {
	return s.price(func(p model.PricingState) model.PricingState { return s.calc().ToggleDecoration(p, on) })
}

// SetGuestCount changes the head count, clamped to the theater capacity.
func (s *Session) SetGuestCount(raw any) model.PricingState {
	return s.price(func(p model.PricingState) model.PricingState { return s.calc().SetGuestCount(p, raw) })
}

// SetTheater switches the booking to another theater, refreshing base price
// and capacity when the theater is in the catalog.
func (s *Session) SetTheater(name string) model.PricingState {
	s.mu.Lock()
	defer s.mu.Unlock()
	name = strings.TrimSpace(name)
	t, ok := s.adapter.catalogs.Theater(name)
	if !ok {
		s.booking.Theater = name
		return s.booking.Pricing
	}
	s.booking.Theater = t.Name
	s.booking.Pricing = s.calc().SelectTheater(s.booking.Pricing, t)
	s.booking.Guests = s.booking.Pricing.GuestCount
	return s.booking.Pricing
}

// SetSlot moves the booking to another date and time slot.  The slot is
// checked against live availability; the booking's own slot always passes.
func (s *Session) SetSlot(ctx context.Context, date, slot string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	date, slot = strings.TrimSpace(date), strings.TrimSpace(slot)
	if s.r.slots != nil && date != "" && slot != "" {
		v := slots.Viewer{BookingID: s.booking.BookingID, Mode: slots.ModeEditor}
		if s.manual {
			v.Mode = slots.ModeManual
		}
		if date == s.booking.Date {
			v.Time = s.booking.Time
		}
		if !s.r.slots.Selectable(ctx, s.booking.Theater, date, slot, v) {
			s.log.WithFields(logrus.Fields{"date": date, "slot": slot}).Info("slot choice rejected")
			return fmt.Errorf("%w: %s on %s", ErrSlotTaken, slot, date)
		}
	}
	s.booking.Date = date
	s.booking.Time = slot
	return nil
}

// SetCustomer updates contact details.  Empty arguments leave the current
// value in place.
func (s *Session) SetCustomer(name, email, phone string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v := strings.TrimSpace(name); v != "" {
		s.booking.Name = v
	}
	if v := strings.TrimSpace(email); v != "" {
		s.booking.Email = v
	}
	if v := strings.TrimSpace(phone); v != "" {
		s.booking.Phone = v
	}
}

// SetStatus updates the booking and payment status.  Empty arguments leave
// the current value in place.
func (s *Session) SetStatus(status, payment string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if strings.TrimSpace(status) != "" {
		s.booking.Status = model.ParseBookingStatus(status)
	}
	if strings.TrimSpace(payment) != "" {
		s.booking.PaymentStatus = model.ParsePaymentStatus(payment)
	}
}

// SetOccasion changes the occasion and re-resolves its fields from the
// values entered so far and the original record.  Clearing the occasion
// removes any applied decoration fee; an occasion with no catalog
// definition leaves pricing untouched.
func (s *Session) SetOccasion(name string) model.PricingState {
	s.mu.Lock()
	defer s.mu.Unlock()
	name = strings.TrimSpace(name)

	current := s.booking.OccasionData
	fields := make([]occasion.Field, 0, current.Len()+len(s.fields))
	for _, k := range current.Keys() {
		fields = append(fields, occasion.Field{Key: k, Value: current.String(k), FromOccasionData: true})
	}
	fields = append(fields, s.fields...)

	res := occasion.Resolution{Data: model.NewDocument()}
	if name != "" {
		res = s.adapter.resolver.Resolve(name, occasion.Input{Direct: current, Fields: fields})
	}
	s.booking.Occasion = name
	s.booking.OccasionData = res.Data
	s.res = res

	switch {
	case name == "":
		s.booking.Pricing = s.calc().SetOccasion(s.booking.Pricing, nil, 0)
	case res.Definition != nil:
		var fee int64
		if t, ok := s.adapter.catalogs.Theater(s.booking.Theater); ok {
			fee = t.DecorationFee
		}
		s.booking.Pricing = s.calc().SetOccasion(s.booking.Pricing, res.Definition, fee)
	}
	return s.booking.Pricing
}

// SetOccasionField stores one occasion field value.
func (s *Session) SetOccasionField(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.booking.OccasionData == nil {
		s.booking.OccasionData = model.NewDocument()
	}
	s.booking.OccasionData.Set(strings.TrimSpace(key), strings.TrimSpace(value))
}

// MissingFields lists required occasion fields that are still empty.
func (s *Session) MissingFields() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.missing()
}

func (s *Session) missing() []string {
	if s.res.Definition == nil {
		return nil
	}
	var out []string
	for _, k := range s.res.Definition.RequiredFields {
		if strings.TrimSpace(s.booking.OccasionData.String(k)) == "" {
			out = append(out, k)
		}
	}
	return out
}

// FieldLabels returns the display label of every occasion field shown.
func (s *Session) FieldLabels() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.adapter.resolver.Labels(s.res.Definition, s.booking.OccasionData)
}

// ToggleService adds or removes a catalog item.  The item is looked up by
// id, then by name, within the category.
func (s *Session) ToggleService(category, item string) (ledger.Mutation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	it, ok := s.findItem(category, item)
	if !ok {
		return ledger.Mutation{}, ErrUnknownService
	}
	m := s.ledger.Toggle(category, it)
	s.commit(m)
	return m, nil
}

// ConfirmVariant settles a pending variant choice.
func (s *Session) ConfirmVariant(variant string, quantity any) (ledger.Mutation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, err := s.ledger.ConfirmVariant(variant, pricing.ParseCount(quantity))
	if err != nil {
		return m, err
	}
	s.commit(m)
	return m, nil
}

// CancelVariant drops a pending variant choice.
func (s *Session) CancelVariant() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ledger.CancelVariant()
}

// PendingVariant returns the open variant choice, if any.
func (s *Session) PendingVariant() *ledger.VariantChoice {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ledger.Pending()
}

// AddCustomService adds a free-form entry to a category.
func (s *Session) AddCustomService(category, name string, unitPrice, quantity any) (ledger.Mutation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !ledger.IsCategoryKey(ledger.FieldKey(category)) {
		return ledger.Mutation{}, fmt.Errorf("%w: %q", ErrInvalidCategory, category)
	}
	m := s.ledger.AddCustom(category, name, unitPrice, quantity)
	s.commit(m)
	return m, nil
}

// RemoveService removes one specific selected entry.
func (s *Session) RemoveService(category, id string) (ledger.Mutation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.ledger.Remove(category, id)
	if !ok {
		return m, ErrServiceNotSelected
	}
	s.commit(m)
	return m, nil
}

func (s *Session) commit(m ledger.Mutation) {
	if s.booking.Services == nil {
		s.booking.Services = make(map[string][]model.ServiceSelection)
	}
	// An emptied category stays as an empty list so the next save clears
	// it in the store.
	items := make([]model.ServiceSelection, len(m.Items))
	copy(items, m.Items)
	s.booking.Services[m.Category] = items
	if m.Delta != 0 {
		s.booking.Pricing = s.calc().ApplyServiceDelta(s.booking.Pricing, m.Delta)
	}
}

func (s *Session) findItem(category, item string) (model.ServiceItem, bool) {
	key := ledger.FieldKey(category)
	item = strings.TrimSpace(item)
	for _, cat := range s.adapter.catalogs.Services {
		if ledger.FieldKey(cat.Name) != key {
			continue
		}
		for _, it := range cat.Items {
			if it.ID != "" && it.ID == item {
				return it, true
			}
		}
		for _, it := range cat.Items {
			if strings.EqualFold(it.Name, item) {
				return it, true
			}
		}
	}
	return model.ServiceItem{}, false
}

// Payload renders the full save document for the current state.
func (s *Session) Payload() *model.Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.payload()
}

func (s *Session) payload() *model.Document {
	d := Payload(s.booking)
	s.shape.apply(d)
	return d
}

// Save writes the whole booking (last write wins).  When the store echoes
// the saved record back it becomes the session's new state, normalized the
// same way as on load.  On failure the session is unchanged.
func (s *Session) Save(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.booking.BookingID
	echo, err := s.r.saver.SaveBooking(ctx, id, s.payload())
	if err != nil {
		s.log.WithError(err).Error("booking save failed")
		return newSaveError(id, err)
	}
	if echo.Len() > 0 {
		n := s.adapter.Normalize(echo)
		if n.Booking.BookingID == "" {
			n.Booking.BookingID = id
		}
		s.load(n)
	}
	s.manual = false
	s.log.WithField("total", s.booking.Pricing.TotalAmount).Info("booking saved")
	if s.r.notifier != nil {
		s.r.notifier.BookingSaved(ctx, cloneBooking(s.booking))
	}
	return nil
}

// Autosave writes a single service category plus the recomputed totals.
// The store's echo is ignored; local state stays authoritative until the
// next full save.
func (s *Session) Autosave(ctx context.Context, category string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.booking.BookingID
	key := ledger.FieldKey(category)
	if _, err := s.r.saver.SaveBooking(ctx, id, AutosavePayload(s.booking, key)); err != nil {
		s.log.WithError(err).WithField("category", key).Warn("service autosave failed")
		return newSaveError(id, err)
	}
	return nil
}

// View is the presentable state of a session.
type View struct {
	Booking        *model.Document       `json:"booking"`
	MissingFields  []string              `json:"missingFields"`
	FieldLabels    map[string]string     `json:"fieldLabels"`
	CustomOccasion bool                  `json:"customOccasion"`
	Categories     map[string]string     `json:"categories"`
	PendingVariant *ledger.VariantChoice `json:"pendingVariant,omitempty"`
}

// View renders the session for display.
func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	cats := make(map[string]string)
	for _, c := range s.adapter.catalogs.Services {
		cats[ledger.FieldKey(c.Name)] = c.Name
	}
	for k := range s.booking.Services {
		if _, ok := cats[k]; !ok {
			cats[k] = ledger.DisplayName(k)
		}
	}
	return View{
		Booking:        Payload(s.booking),
		MissingFields:  s.missing(),
		FieldLabels:    s.adapter.resolver.Labels(s.res.Definition, s.booking.OccasionData),
		CustomOccasion: s.res.Custom(),
		Categories:     cats,
		PendingVariant: s.ledger.Pending(),
	}
}

func cloneBooking(b *model.Booking) *model.Booking {
	c := *b
	c.OccasionData = b.OccasionData.Clone()
	c.Services = make(map[string][]model.ServiceSelection, len(b.Services))
	for k, items := range b.Services {
		c.Services[k] = make([]model.ServiceSelection, len(items))
		copy(c.Services[k], items)
	}
	return &c
}
