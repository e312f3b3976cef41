// Package queue defines message payloads exchanged over the message broker
// and the consumer that turns slot events into immediate refreshes.
package queue

import (
	"time"

	"github.com/google/uuid"
)

// SlotsChangedEvent is broadcast when an instance sees the booked slots of
// a theater/date change.  Every other instance polling the same theater/date
// refreshes at once instead of waiting for its next tick.
type SlotsChangedEvent struct {
	EventID     string   `json:"event_id"`
	Origin      string   `json:"origin"` // instance that observed the change
	Theater     string   `json:"theater"`
	Date        string   `json:"date"`
	NewlyBooked []string `json:"newly_booked"`
	NewlyFreed  []string `json:"newly_freed"`
	OccurredAt  string   `json:"occurred_at"`
}

// BookingSavedEvent is published after a booking edit has been persisted.
// It carries the figures downstream consumers (receipts, accounting) need
// without reading the booking store.
type BookingSavedEvent struct {
	EventID       string `json:"event_id"`
	BookingID     string `json:"booking_id"`
	Theater       string `json:"theater"`
	Date          string `json:"date"`
	Time          string `json:"time"`
	Status        string `json:"status"`
	PaymentStatus string `json:"payment_status"`
	TotalAmount   int64  `json:"total_amount"`
	AdvancePaid   int64  `json:"advance_paid"`
	VenuePayment  int64  `json:"venue_payment"`
	SavedAt       string `json:"saved_at"`
}

// NewEventID returns a fresh event identifier.
func NewEventID() string { return uuid.NewString() }

// Timestamp formats t the way every event does.
func Timestamp(t time.Time) string { return t.UTC().Format(time.RFC3339) }
