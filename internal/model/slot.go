package model

import "strings"

// SlotStatus is the booking status reported by the slot store.
type SlotStatus string

const (
	SlotAvailable SlotStatus = "available"
	SlotBooked    SlotStatus = "booked"
	SlotGoing     SlotStatus = "going"
	SlotNone      SlotStatus = "none"
)

// ParseSlotStatus maps the store's bookingStatus onto a SlotStatus.  An
// absent status means the slot is free.
func ParseSlotStatus(s string) SlotStatus {
	switch v := SlotStatus(strings.ToLower(strings.TrimSpace(s))); v {
	case SlotBooked, SlotGoing:
		return v
	case "":
		return SlotNone
	}
	return SlotAvailable
}

// TimeSlot is one bookable window of a theater on a date.  BookingID is set
// when the store knows which booking holds it.
type TimeSlot struct {
	Label     string     `json:"label"`
	Status    SlotStatus `json:"bookingStatus"`
	BookingID string     `json:"bookingId,omitempty"`
}

// Taken reports whether the store considers the slot unavailable.
func (s TimeSlot) Taken() bool {
	return s.Status == SlotBooked || s.Status == SlotGoing
}
