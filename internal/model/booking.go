package model

import "strings"

// BookingStatus is the lifecycle state of a booking.
type BookingStatus string

const (
	StatusPending   BookingStatus = "pending"
	StatusConfirmed BookingStatus = "confirmed"
	StatusCompleted BookingStatus = "completed"
	StatusCancelled BookingStatus = "cancelled"
)

// ParseBookingStatus maps stored text onto a BookingStatus.  Unknown or
// empty values fall back to StatusPending.
func ParseBookingStatus(s string) BookingStatus {
	switch v := BookingStatus(strings.ToLower(strings.TrimSpace(s))); v {
	case StatusPending, StatusConfirmed, StatusCompleted, StatusCancelled:
		return v
	case "canceled":
		return StatusCancelled
	}
	return StatusPending
}

// PaymentStatus tracks how much of the booking has been paid.
type PaymentStatus string

const (
	PaymentUnpaid   PaymentStatus = "unpaid"
	PaymentAdvance  PaymentStatus = "advance"
	PaymentPaid     PaymentStatus = "paid"
	PaymentRefunded PaymentStatus = "refunded"
)

// ParsePaymentStatus maps stored text onto a PaymentStatus.  Unknown or
// empty values fall back to PaymentUnpaid.
func ParsePaymentStatus(s string) PaymentStatus {
	switch v := PaymentStatus(strings.ToLower(strings.TrimSpace(s))); v {
	case PaymentUnpaid, PaymentAdvance, PaymentPaid, PaymentRefunded:
		return v
	case "pending":
		return PaymentUnpaid
	case "partial", "advance-paid", "advance_paid":
		return PaymentAdvance
	case "completed", "success":
		return PaymentPaid
	}
	return PaymentUnpaid
}

// Booking is the canonical, normalized booking held by an edit session.
// Services is keyed by the field key derived from the service category's
// display name (cakes, decor, selectedPhotoShoot, ...).
type Booking struct {
	BookingID     string
	StoreID       string
	Name          string
	Email         string
	Phone         string
	Theater       string
	Date          string
	Time          string
	Guests        int
	Occasion      string
	OccasionData  *Document
	Status        BookingStatus
	PaymentStatus PaymentStatus
	Pricing       PricingState
	Services      map[string][]ServiceSelection
}

// PricingState is the monetary breakdown of a booking.  All amounts are whole
// currency units and never negative.  It holds no reference types so a copy
// is a full snapshot.
type PricingState struct {
	BasePrice             int64
	TotalAmount           int64
	AdvancePayment        int64
	VenuePayment          int64
	DecorationFeeBase     int64
	DecorationApplied     bool
	AppliedDecorationFee  int64
	PenaltyCharges        int64
	PenaltyReason         string
	GenericDiscount       int64
	AdminDiscount         int64
	CouponDiscount        int64
	CouponCode            string
	ExtraGuestFee         int64
	ExtraGuestCount       int
	ExtraGuestCharge      int64
	GuestCount            int
	CapacityMin           int
	CapacityMax           int
	ServiceItemsTotal     int64
	ExtraChargesAboveBase int64
}

// ServiceSelection is one selected catalog (or custom) item within a
// service category.
type ServiceSelection struct {
	ID        string `json:"id,omitempty"`
	Name      string `json:"name"`
	Variant   string `json:"variant,omitempty"`
	UnitPrice int64  `json:"price"`
	Quantity  int    `json:"quantity"`
	FoodType  string `json:"foodType,omitempty"`
	Custom    bool   `json:"isCustom,omitempty"`
}

// LineTotal is unit price times quantity.
func (s ServiceSelection) LineTotal() int64 {
	q := s.Quantity
	if q < 1 {
		q = 1
	}
	return s.UnitPrice * int64(q)
}
