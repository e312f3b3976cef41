package pricing

import (
	"strings"

	"github.com/iliyamo/theater-booking/internal/model"
)

// Alias lists for the pricing snapshot.  The first name of each list is the
// canonical key; the rest were written by older portal versions and are
// still read by the invoice and reporting jobs.
var (
	totalKeys             = []string{"totalAmount", "total", "finalAmount"}
	advanceKeys           = []string{"advancePayment", "advanceAmount", "advance"}
	venueKeys             = []string{"venuePayment", "venueAmount", "remainingAmount", "balanceAmount"}
	decorationFeeKeys     = []string{"decorationFee", "decorationFees", "decorationCharge"}
	appliedDecorationKeys = []string{"appliedDecorationFee"}
	decorationOnKeys      = []string{"decorationApplied", "includeDecoration"}
	penaltyKeys           = []string{"penaltyCharges", "penaltyCharge", "penalty"}
	penaltyReasonKeys     = []string{"penaltyReason"}
	discountKeys          = []string{"discount", "genericDiscount", "discountAmount"}
	adminDiscountKeys     = []string{"adminDiscount", "adminDiscountAmount"}
	couponDiscountKeys    = []string{"couponDiscount", "couponDiscountAmount"}
	couponCodeKeys        = []string{"couponCode", "appliedCouponCode"}
	extraGuestFeeKeys     = []string{"extraGuestFee", "extraGuestFeePerHead"}
	extraGuestChargeKeys  = []string{"extraGuestCharge", "extraGuestCharges", "extraGuestsCharge"}
	extraGuestCountKeys   = []string{"extraGuestCount", "extraGuests"}
	basePriceKeys         = []string{"basePrice", "theaterBasePrice"}
	serviceTotalKeys      = []string{"serviceItemsTotal", "servicesTotal"}
	aboveBaseKeys         = []string{"extraChargesAboveBase"}
)

// Snapshot renders s as the pricingData map written on every save.  Every
// alias of every field is written with the same value so that consumers
// reading any historical name agree.  The output depends only on s, which
// makes the explicit save and the service autosave byte-identical for the
// same state.
func Snapshot(s model.PricingState) *model.Document {
	d := model.NewDocument()
	put := func(keys []string, v any) {
		for _, k := range keys {
			d.Set(k, v)
		}
	}
	put(basePriceKeys, s.BasePrice)
	put(totalKeys, s.TotalAmount)
	put(advanceKeys, s.AdvancePayment)
	put(venueKeys, s.VenuePayment)
	put(decorationFeeKeys, s.DecorationFeeBase)
	put(decorationOnKeys, s.DecorationApplied)
	put(appliedDecorationKeys, s.AppliedDecorationFee)
	put(penaltyKeys, s.PenaltyCharges)
	put(penaltyReasonKeys, s.PenaltyReason)
	put(discountKeys, s.GenericDiscount)
	put(adminDiscountKeys, s.AdminDiscount)
	put(couponDiscountKeys, s.CouponDiscount)
	put(couponCodeKeys, s.CouponCode)
	put(extraGuestFeeKeys, s.ExtraGuestFee)
	put(extraGuestCountKeys, int64(s.ExtraGuestCount))
	put(extraGuestChargeKeys, s.ExtraGuestCharge)
	put(serviceTotalKeys, s.ServiceItemsTotal)
	put(aboveBaseKeys, s.ExtraChargesAboveBase)
	return d
}

// ReadSnapshot extracts a PricingState from a stored pricingData map,
// falling back to the same aliases on the booking root for records that
// predate the nested map.  For each field the first alias present wins.
// Capacity and guest count are not part of the snapshot and are left zero.
func ReadSnapshot(pricingData, root *model.Document) model.PricingState {
	lookup := func(keys []string) (any, bool) {
		for _, src := range []*model.Document{pricingData, root} {
			for _, k := range keys {
				if v, ok := src.Get(k); ok && v != nil {
					return v, true
				}
			}
		}
		return nil, false
	}
	amount := func(keys []string) int64 {
		v, _ := lookup(keys)
		return ParseAmount(v)
	}
	text := func(keys []string) string {
		v, _ := lookup(keys)
		return strings.TrimSpace(model.AsString(v))
	}

	s := model.PricingState{
		BasePrice:             amount(basePriceKeys),
		TotalAmount:           amount(totalKeys),
		AdvancePayment:        amount(advanceKeys),
		DecorationFeeBase:     amount(decorationFeeKeys),
		AppliedDecorationFee:  amount(appliedDecorationKeys),
		PenaltyCharges:        amount(penaltyKeys),
		PenaltyReason:         text(penaltyReasonKeys),
		GenericDiscount:       amount(discountKeys),
		AdminDiscount:         amount(adminDiscountKeys),
		CouponDiscount:        amount(couponDiscountKeys),
		CouponCode:            text(couponCodeKeys),
		ExtraGuestFee:         amount(extraGuestFeeKeys),
		ExtraGuestCharge:      amount(extraGuestChargeKeys),
		ExtraGuestCount:       int(amount(extraGuestCountKeys)),
		ServiceItemsTotal:     amount(serviceTotalKeys),
		ExtraChargesAboveBase: amount(aboveBaseKeys),
	}

	if v, ok := lookup(decorationOnKeys); ok {
		s.DecorationApplied = truthy(v)
	} else {
		s.DecorationApplied = s.AppliedDecorationFee > 0
	}
	if _, ok := lookup(appliedDecorationKeys); !ok && s.DecorationApplied {
		s.AppliedDecorationFee = s.DecorationFeeBase
	}

	if v, ok := lookup(venueKeys); ok {
		s.VenuePayment = ParseAmount(v)
	} else {
		s.VenuePayment = floor0(s.TotalAmount - s.AdvancePayment)
	}
	return s
}

// HasTotal reports whether a stored record carries any total alias.
func HasTotal(pricingData, root *model.Document) bool {
	for _, src := range []*model.Document{pricingData, root} {
		for _, k := range totalKeys {
			if v, ok := src.Get(k); ok && v != nil && model.AsString(v) != "" {
				return true
			}
		}
	}
	return false
}

func truthy(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "true", "yes", "1", "on":
			return true
		}
		return false
	default:
		return ParseAmount(v) > 0
	}
}

var snapshotKeys = func() map[string]bool {
	out := make(map[string]bool)
	for _, keys := range [][]string{
		totalKeys, advanceKeys, venueKeys, decorationFeeKeys, appliedDecorationKeys,
		decorationOnKeys, penaltyKeys, penaltyReasonKeys, discountKeys, adminDiscountKeys,
		couponDiscountKeys, couponCodeKeys, extraGuestFeeKeys, extraGuestChargeKeys,
		extraGuestCountKeys, basePriceKeys, serviceTotalKeys, aboveBaseKeys,
	} {
		for _, k := range keys {
			out[k] = true
		}
	}
	return out
}()

// IsSnapshotKey reports whether k is one of the pricing aliases, which
// older records also kept on the booking root.
func IsSnapshotKey(k string) bool { return snapshotKeys[k] }
