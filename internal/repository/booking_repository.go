package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/theater-booking/internal/model"
)

// BookingRepo keeps bookings in SQL.  The whole booking is stored as a JSON
// document so that legacy shapes survive untouched; the slot query reads
// the denormalized columns next to it.
//
//	CREATE TABLE bookings (
//	    booking_id     VARCHAR(64)  PRIMARY KEY,
//	    theater_name   VARCHAR(128) NOT NULL DEFAULT '',
//	    booking_date   VARCHAR(32)  NOT NULL DEFAULT '',
//	    time_slot      VARCHAR(64)  NOT NULL DEFAULT '',
//	    booking_status VARCHAR(32)  NOT NULL DEFAULT '',
//	    slot_status    VARCHAR(16)  NOT NULL DEFAULT '',
//	    document       TEXT         NOT NULL,
//	    updated_at     TIMESTAMP    NOT NULL
//	);
type BookingRepo struct {
	db  *sqlx.DB
	log logrus.FieldLogger
	now func() time.Time
}

// NewBookingRepo returns a SQL booking store.
func NewBookingRepo(db *sqlx.DB, log logrus.FieldLogger) *BookingRepo {
	return &BookingRepo{db: db, log: log, now: time.Now}
}

// FetchBooking loads the stored document of a booking.
func (r *BookingRepo) FetchBooking(ctx context.Context, bookingID string) (*model.Document, error) {
	var raw []byte
	q := r.db.Rebind(`SELECT document FROM bookings WHERE booking_id = ?`)
	if err := r.db.GetContext(ctx, &raw, q, bookingID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrBookingNotFound
		}
		return nil, fmt.Errorf("select booking %s: %w", bookingID, err)
	}
	return decodeDocument(raw)
}

// SaveBooking merges payload over the stored document (inserting a new row
// for bookings that do not exist yet) and returns the stored result.  The
// row is locked for the read-merge-write so concurrent saves of the same
// booking apply one after the other.
func (r *BookingRepo) SaveBooking(ctx context.Context, bookingID string, payload *model.Document) (*model.Document, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin save %s: %w", bookingID, err)
	}
	defer func() { _ = tx.Rollback() }()

	stored := model.NewDocument()
	exists := true
	var raw []byte
	err = tx.GetContext(ctx, &raw, tx.Rebind(`SELECT document FROM bookings WHERE booking_id = ? FOR UPDATE`), bookingID)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		exists = false
	case err != nil:
		return nil, fmt.Errorf("lock booking %s: %w", bookingID, err)
	default:
		if stored, err = decodeDocument(raw); err != nil {
			return nil, err
		}
	}

	stored.Merge(payload)
	body, err := json.Marshal(stored)
	if err != nil {
		return nil, fmt.Errorf("encode booking %s: %w", bookingID, err)
	}
	cols := columnsOf(stored)
	now := r.now().UTC()

	if exists {
		_, err = tx.ExecContext(ctx, tx.Rebind(`UPDATE bookings
			SET theater_name = ?, booking_date = ?, time_slot = ?, booking_status = ?, slot_status = ?, document = ?, updated_at = ?
			WHERE booking_id = ?`),
			cols.theater, cols.date, cols.slot, cols.status, cols.slotStatus, string(body), now, bookingID)
	} else {
		_, err = tx.ExecContext(ctx, tx.Rebind(`INSERT INTO bookings
			(booking_id, theater_name, booking_date, time_slot, booking_status, slot_status, document, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`),
			bookingID, cols.theater, cols.date, cols.slot, cols.status, cols.slotStatus, string(body), now)
	}
	if err != nil {
		return nil, fmt.Errorf("write booking %s: %w", bookingID, err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit booking %s: %w", bookingID, err)
	}

	r.log.WithFields(logrus.Fields{"booking_id": bookingID, "created": !exists}).Debug("booking stored")
	return decodeDocument(body)
}

// bookingColumns are the values copied out of the document into their own
// columns.
type bookingColumns struct {
	theater, date, slot, status, slotStatus string
}

func columnsOf(d *model.Document) bookingColumns {
	c := bookingColumns{
		theater: firstText(d, "theaterName", "theater"),
		date:    firstText(d, "date", "bookingDate"),
		slot:    firstText(d, "time", "timeSlot"),
		status:  strings.ToLower(firstText(d, "status", "bookingStatus")),
	}
	// The check-in desk writes slotStatus=going directly; everything else
	// holds its slot until it is cancelled.
	switch s := strings.ToLower(firstText(d, "slotStatus")); {
	case s != "":
		c.slotStatus = s
	case c.status == string(model.StatusCancelled) || c.status == "canceled":
		c.slotStatus = string(model.SlotNone)
	default:
		c.slotStatus = string(model.SlotBooked)
	}
	return c
}

func firstText(d *model.Document, keys ...string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(d.String(k)); v != "" {
			return v
		}
	}
	return ""
}

func decodeDocument(raw []byte) (*model.Document, error) {
	var d model.Document
	if err := json.Unmarshal(raw, &d); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	return &d, nil
}
