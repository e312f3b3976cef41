// Package pricing owns the derived monetary fields of a booking.
//
// Every operation takes the current PricingState by value and returns a new,
// fully consistent one.  Discount, decoration, penalty, guest and service
// edits move the total by the change in their own term rather than summing
// all components again: staff routinely override the total by hand and a
// full recompute would silently drop those overrides.  Because each delta
// reads the previous state, operations are order dependent and must be
// applied one at a time, in the order they were issued.
package pricing

import (
	"strings"

	"github.com/iliyamo/theater-booking/internal/model"
)

// Calculator applies price edits.  Defaults supply the decoration and
// extra-guest fees when neither the booking nor the theater carries one.
type Calculator struct {
	defaults model.PricingDefaults
}

// NewCalculator returns a Calculator using the given fallbacks.
func NewCalculator(defaults model.PricingDefaults) *Calculator {
	return &Calculator{defaults: defaults}
}

// Defaults returns the fallbacks the calculator was built with.
func (c *Calculator) Defaults() model.PricingDefaults { return c.defaults }

// Expected evaluates the component equation for s:
//
//	max(0, base + extraGuest + appliedDecoration + penalty + services
//	       - adminDiscount - discount - couponDiscount)
func Expected(s model.PricingState) int64 {
	return floor0(s.BasePrice + s.ExtraGuestCharge + s.AppliedDecorationFee +
		s.PenaltyCharges + s.ServiceItemsTotal -
		s.AdminDiscount - s.GenericDiscount - s.CouponDiscount)
}

func withVenue(s model.PricingState) model.PricingState {
	s.VenuePayment = floor0(s.TotalAmount - s.AdvancePayment)
	if s.BasePrice > 0 {
		s.ExtraChargesAboveBase = floor0(s.TotalAmount - s.BasePrice)
	}
	return s
}

func shift(s model.PricingState, delta int64) model.PricingState {
	s.TotalAmount = floor0(s.TotalAmount + delta)
	return withVenue(s)
}

// SetTotal records a total typed directly by staff.  The total is taken as
// given; only the venue payment follows it.
func (c *Calculator) SetTotal(s model.PricingState, raw any) model.PricingState {
	s.TotalAmount = ParseAmount(raw)
	return withVenue(s)
}

// SetAdvance records the advance paid.  The total does not move.
func (c *Calculator) SetAdvance(s model.PricingState, raw any) model.PricingState {
	s.AdvancePayment = ParseAmount(raw)
	return withVenue(s)
}

// SetVenuePayment records the amount still due at the venue.  Staff enter
// it as the authoritative remainder, so it drives the total:
// total = advance + venue payment.
func (c *Calculator) SetVenuePayment(s model.PricingState, raw any) model.PricingState {
	s.VenuePayment = ParseAmount(raw)
	s.TotalAmount = s.AdvancePayment + s.VenuePayment
	if s.BasePrice > 0 {
		s.ExtraChargesAboveBase = floor0(s.TotalAmount - s.BasePrice)
	}
	return s
}

// SetAdminDiscount moves the total by the change in admin discount.
func (c *Calculator) SetAdminDiscount(s model.PricingState, raw any) model.PricingState {
	next := ParseAmount(raw)
	delta := next - s.AdminDiscount
	s.AdminDiscount = next
	return shift(s, -delta)
}

// SetGenericDiscount moves the total by the change in the generic discount.
func (c *Calculator) SetGenericDiscount(s model.PricingState, raw any) model.PricingState {
	next := ParseAmount(raw)
	delta := next - s.GenericDiscount
	s.GenericDiscount = next
	return shift(s, -delta)
}

// SetCoupon records a coupon code and its discount.  An empty code clears
// the coupon discount.
func (c *Calculator) SetCoupon(s model.PricingState, code string, raw any) model.PricingState {
	s.CouponCode = strings.TrimSpace(code)
	next := ParseAmount(raw)
	if s.CouponCode == "" {
		next = 0
	}
	delta := next - s.CouponDiscount
	s.CouponDiscount = next
	return shift(s, -delta)
}

// SetPenalty records penalty charges and their reason, moving the total by
// the change in charges.
func (c *Calculator) SetPenalty(s model.PricingState, raw any, reason string) model.PricingState {
	next := ParseAmount(raw)
	delta := next - s.PenaltyCharges
	s.PenaltyCharges = next
	s.PenaltyReason = strings.TrimSpace(reason)
	return shift(s, delta)
}

func applyDecoration(s model.PricingState, base int64, applied bool) model.PricingState {
	old := s.AppliedDecorationFee
	s.DecorationFeeBase = base
	s.DecorationApplied = applied
	s.AppliedDecorationFee = 0
	if applied {
		s.AppliedDecorationFee = base
	}
	return shift(s, s.AppliedDecorationFee-old)
}

// SetDecorationFee changes the base decoration fee.  The total only moves
// when decoration is currently applied.
func (c *Calculator) SetDecorationFee(s model.PricingState, raw any) model.PricingState {
	return applyDecoration(s, ParseAmount(raw), s.DecorationApplied)
}

// ToggleDecoration applies or removes the decoration fee.  Turning it on
// with no known base fee falls back to the global default.
func (c *Calculator) ToggleDecoration(s model.PricingState, on bool) model.PricingState {
	base := s.DecorationFeeBase
	if on && base == 0 {
		base = c.defaults.DecorationFee
	}
	return applyDecoration(s, base, on)
}

// SetOccasion reacts to the occasion changing.  A nil definition means the
// occasion was cleared: any applied decoration fee leaves the total and the
// decoration input is zeroed.  An occasion that takes part in decoration
// pricing (re)applies the base fee, preferring the booking's own fee, then
// catalogFee, then the global default.  An occasion outside decoration
// pricing keeps the base fee but stops applying it.
func (c *Calculator) SetOccasion(s model.PricingState, def *model.OccasionDefinition, catalogFee int64) model.PricingState {
	if def == nil {
		return applyDecoration(s, 0, false)
	}
	if !def.IncludesDecoration {
		return applyDecoration(s, s.DecorationFeeBase, false)
	}
	fee := s.DecorationFeeBase
	if fee == 0 {
		fee = catalogFee
	}
	if fee == 0 {
		fee = c.defaults.DecorationFee
	}
	if fee == 0 {
		return s
	}
	return applyDecoration(s, fee, true)
}

// SetGuestCount clamps the head count to the theater's capacity and moves
// the total by the change in extra-guest charge.  While the capacity is
// unknown (no theater resolved) nobody counts as an extra guest.
func (c *Calculator) SetGuestCount(s model.PricingState, raw any) model.PricingState {
	n := ParseCount(raw)
	if s.CapacityMax > 0 && n > s.CapacityMax {
		n = s.CapacityMax
	}
	if n < s.CapacityMin {
		n = s.CapacityMin
	}
	extra := 0
	if s.CapacityMin > 0 || s.CapacityMax > 0 {
		extra = n - s.CapacityMin
		if extra < 0 {
			extra = 0
		}
	}
	if s.ExtraGuestFee == 0 {
		s.ExtraGuestFee = c.defaults.ExtraGuestFee
	}
	old := s.ExtraGuestCharge
	s.GuestCount = n
	s.ExtraGuestCount = extra
	s.ExtraGuestCharge = s.ExtraGuestFee * int64(extra)
	return shift(s, s.ExtraGuestCharge-old)
}

// ApplyServiceDelta folds a ledger mutation into the breakdown.
func (c *Calculator) ApplyServiceDelta(s model.PricingState, delta int64) model.PricingState {
	s.ServiceItemsTotal = floor0(s.ServiceItemsTotal + delta)
	return shift(s, delta)
}

// SelectTheater refreshes the base price, capacity and per-head fee from a
// theater.  The total moves by the change in base price and the guest count
// is re-clamped against the new capacity.
func (c *Calculator) SelectTheater(s model.PricingState, t model.Theater) model.PricingState {
	delta := t.BasePrice - s.BasePrice
	s.BasePrice = t.BasePrice
	s.CapacityMin = t.Capacity.Min
	s.CapacityMax = t.Capacity.Max
	if t.ExtraGuestFee > 0 {
		s.ExtraGuestFee = t.ExtraGuestFee
	}
	s = shift(s, delta)
	return c.SetGuestCount(s, s.GuestCount)
}

// Reprice derives every component and sets the total from the full
// equation.  It discards manual overrides and is only used for bookings
// that have never been priced.
func (c *Calculator) Reprice(s model.PricingState) model.PricingState {
	s.AppliedDecorationFee = 0
	if s.DecorationApplied {
		s.AppliedDecorationFee = s.DecorationFeeBase
	}
	s.ExtraGuestCharge = 0
	s = c.SetGuestCount(s, s.GuestCount)
	s.TotalAmount = Expected(s)
	return withVenue(s)
}
