package reconcile

import (
	"sort"

	"github.com/iliyamo/theater-booking/internal/model"
	"github.com/iliyamo/theater-booking/internal/pricing"
)

// Payload renders a booking as the full save document.  Only canonical
// root names are written; pricing aliases live in pricingData.  Every
// required occasion key is written, empty or not, so that feeding the
// payload back through Normalize yields the same occasionData.  A category
// emptied during the session is written as an empty list.
func Payload(b *model.Booking) *model.Document {
	d := model.NewDocument()
	d.Set(bookingIDKeys[0], b.BookingID)
	d.Set(nameKeys[0], b.Name)
	d.Set(emailKeys[0], b.Email)
	d.Set(phoneKeys[0], b.Phone)
	d.Set(theaterKeys[0], b.Theater)
	d.Set(dateKeys[0], b.Date)
	d.Set(timeKeys[0], b.Time)
	d.Set(guestKeys[0], int64(b.Guests))
	d.Set(occasionKeys[0], b.Occasion)
	d.Set(keyOccasionData, b.OccasionData.Clone())
	d.Set(statusKeys[0], string(b.Status))
	d.Set(paymentKeys[0], string(b.PaymentStatus))

	cats := make([]string, 0, len(b.Services))
	for k := range b.Services {
		cats = append(cats, k)
	}
	sort.Strings(cats)
	for _, k := range cats {
		items := make([]model.ServiceSelection, len(b.Services[k]))
		copy(items, b.Services[k])
		d.Set(k, items)
	}

	putPricing(d, b.Pricing)
	return d
}

// AutosavePayload is the lightweight document written when one service
// category changes: the category itself plus recomputed totals.  Its
// pricingData is identical to what Payload writes for the same state.
func AutosavePayload(b *model.Booking, category string) *model.Document {
	d := model.NewDocument()
	d.Set(bookingIDKeys[0], b.BookingID)
	items := make([]model.ServiceSelection, len(b.Services[category]))
	copy(items, b.Services[category])
	d.Set(category, items)
	putPricing(d, b.Pricing)
	return d
}

func putPricing(d *model.Document, s model.PricingState) {
	d.Set(keyPricingData, pricing.Snapshot(s))
	d.Set("totalAmount", s.TotalAmount)
	d.Set("advancePayment", s.AdvancePayment)
	d.Set("venuePayment", s.VenuePayment)
}
