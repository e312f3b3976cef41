package handler

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/theater-booking/internal/middleware"
	"github.com/iliyamo/theater-booking/internal/reconcile"
	"github.com/iliyamo/theater-booking/internal/repository"
)

// BookingHandler serves the booking edit endpoints.  Every request works
// on a fresh session: the booking is loaded, the submitted operations are
// applied in order, and the result is optionally saved.
type BookingHandler struct {
	Reconciler *reconcile.Reconciler
	Log        logrus.FieldLogger
}

// NewBookingHandler constructs a BookingHandler and panics on a nil reconciler.
func NewBookingHandler(rec *reconcile.Reconciler, log logrus.FieldLogger) *BookingHandler {
	if rec == nil {
		panic("nil reconciler passed to NewBookingHandler")
	}
	return &BookingHandler{Reconciler: rec, Log: log}
}

type editRequest struct {
	Ops  []reconcile.Op `json:"ops"`
	Save bool           `json:"save"`
}

type manualRequest struct {
	Theater string         `json:"theater"`
	Date    string         `json:"date"`
	Time    string         `json:"time"`
	Ops     []reconcile.Op `json:"ops"`
	Save    bool           `json:"save"`
}

// Get handles GET /v1/bookings/:id and returns the normalized booking.
func (h *BookingHandler) Get(c echo.Context) error {
	s, err := h.open(c)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, s.View())
}

// Edit handles POST /v1/bookings/:id/edits.
func (h *BookingHandler) Edit(c echo.Context) error {
	var body editRequest
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	s, err := h.open(c)
	if err != nil {
		return writeError(c, err)
	}
	return h.finish(c, s, body.Ops, body.Save)
}

// CreateManual handles POST /v1/bookings/manual: a walk-in booking started
// from a theater, date and slot.
func (h *BookingHandler) CreateManual(c echo.Context) error {
	var body manualRequest
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	if strings.TrimSpace(body.Theater) == "" || strings.TrimSpace(body.Date) == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "theater and date are required"})
	}
	s, err := h.Reconciler.NewManual(c.Request().Context(), body.Theater, body.Date, body.Time)
	if err != nil {
		return c.JSON(http.StatusConflict, map[string]string{"error": err.Error()})
	}
	h.logger(c).WithField("booking_id", s.Booking().BookingID).Info("manual booking started")
	return h.finish(c, s, body.Ops, body.Save)
}

// Autosave handles POST /v1/bookings/:id/services/:category/autosave.  The
// operations are service mutations in that category; only the category and
// the recomputed totals are written.
func (h *BookingHandler) Autosave(c echo.Context) error {
	category, err := url.PathUnescape(c.Param("category"))
	if err != nil || strings.TrimSpace(category) == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid category"})
	}
	var body editRequest
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	s, err := h.open(c)
	if err != nil {
		return writeError(c, err)
	}
	for i := range body.Ops {
		if body.Ops[i].Category == "" {
			body.Ops[i].Category = category
		}
	}
	if err := apply(c, s, body.Ops); err != nil {
		return writeError(c, err)
	}
	if err := s.Autosave(c.Request().Context(), category); err != nil {
		return h.saveFailed(c, err)
	}
	return c.JSON(http.StatusOK, s.View())
}

func (h *BookingHandler) open(c echo.Context) (*reconcile.Session, error) {
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		return nil, newAPIError(http.StatusBadRequest, "invalid id")
	}
	s, err := h.Reconciler.Open(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrBookingNotFound) {
			return nil, newAPIError(http.StatusNotFound, "booking not found")
		}
		h.logger(c).WithError(err).WithField("booking_id", id).Error("booking load failed")
		return nil, newAPIError(http.StatusInternalServerError, "could not load booking")
	}
	return s, nil
}

func (h *BookingHandler) finish(c echo.Context, s *reconcile.Session, ops []reconcile.Op, save bool) error {
	if err := apply(c, s, ops); err != nil {
		return writeError(c, err)
	}
	if save {
		if err := s.Save(c.Request().Context()); err != nil {
			return h.saveFailed(c, err)
		}
		h.logger(c).WithField("booking_id", s.Booking().BookingID).Info("booking edited")
	}
	return c.JSON(http.StatusOK, s.View())
}

// apply runs ops in order and stops at the first rejected one.  The
// response names the failing index so the client can correct it.  A slot
// held by someone else is a conflict rather than a bad request.
func apply(c echo.Context, s *reconcile.Session, ops []reconcile.Op) error {
	for i, op := range ops {
		if err := s.Apply(c.Request().Context(), op); err != nil {
			status := http.StatusUnprocessableEntity
			if errors.Is(err, reconcile.ErrSlotTaken) {
				status = http.StatusConflict
			}
			return &apiError{status: status, body: map[string]any{
				"error": err.Error(),
				"index": i,
				"op":    op.Op,
			}}
		}
	}
	return nil
}

func (h *BookingHandler) saveFailed(c echo.Context, err error) error {
	var se *reconcile.SaveError
	if errors.As(err, &se) {
		return c.JSON(http.StatusBadGateway, map[string]string{"error": se.Message})
	}
	return c.JSON(http.StatusInternalServerError, map[string]string{"error": "save failed"})
}

func (h *BookingHandler) logger(c echo.Context) logrus.FieldLogger {
	return h.Log.WithField("staff_id", middleware.StaffID(c))
}
