package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/theater-booking/internal/model"
)

// SlotRepo reads the time slots of a theater on a date together with the
// booking holding each one.  It is the slot tracker's fetcher.
type SlotRepo struct {
	db *sqlx.DB
}

// NewSlotRepo returns a slot reader.
func NewSlotRepo(db *sqlx.DB) *SlotRepo {
	return &SlotRepo{db: db}
}

type slotRow struct {
	Label     string `db:"label"`
	Status    string `db:"slot_status"`
	BookingID string `db:"booking_id"`
}

// Slots lists the theater's slots in display order.  A slot held by more
// than one booking is reported once, for the first booking found.
func (r *SlotRepo) Slots(ctx context.Context, theater, date string) ([]model.TimeSlot, error) {
	q := r.db.Rebind(`SELECT s.label, COALESCE(b.slot_status, '') AS slot_status, COALESCE(b.booking_id, '') AS booking_id
		FROM theater_slots s
		LEFT JOIN bookings b
			ON b.theater_name = s.theater_name
			AND b.booking_date = ?
			AND b.time_slot = s.label
			AND b.slot_status IN ('booked', 'going')
		WHERE LOWER(s.theater_name) = LOWER(?)
		ORDER BY s.position, b.booking_id`)
	var rows []slotRow
	if err := r.db.SelectContext(ctx, &rows, q, date, theater); err != nil {
		return nil, fmt.Errorf("select slots %s/%s: %w", theater, date, err)
	}
	out := make([]model.TimeSlot, 0, len(rows))
	seen := make(map[string]bool, len(rows))
	for _, row := range rows {
		if seen[row.Label] {
			continue
		}
		seen[row.Label] = true
		out = append(out, model.TimeSlot{
			Label:     row.Label,
			Status:    model.ParseSlotStatus(row.Status),
			BookingID: row.BookingID,
		})
	}
	return out, nil
}
