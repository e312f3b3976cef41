// Package repository holds the data access code for bookings, catalogs and
// time slots.  Bookings live either in SQL (one JSON document per row plus
// a few denormalized columns used by the slot query) or in a MongoDB
// collection; catalogs and slots are always read from SQL.
//
// The sentinel errors below let higher layers tell failure kinds apart.
// Handlers translate ErrBookingNotFound into an HTTP 404.
package repository

import "errors"

// ErrBookingNotFound is returned when no stored booking has the requested
// booking id.
var ErrBookingNotFound = errors.New("booking not found")

// ErrInvalidDocument is returned when a stored booking cannot be decoded
// as a JSON object.
var ErrInvalidDocument = errors.New("stored booking is not a JSON object")
