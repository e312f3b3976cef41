package handler

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/theater-booking/internal/model"
	"github.com/iliyamo/theater-booking/internal/slots"
)

// TheaterLister provides the theater catalog used for fallback slot labels.
type TheaterLister interface {
	Theaters(ctx context.Context) ([]model.Theater, error)
}

// SlotHandler serves live slot availability.
type SlotHandler struct {
	Registry *slots.Registry
	Theaters TheaterLister
	Log      logrus.FieldLogger
}

func NewSlotHandler(reg *slots.Registry, theaters TheaterLister, log logrus.FieldLogger) *SlotHandler {
	return &SlotHandler{Registry: reg, Theaters: theaters, Log: log}
}

// List handles GET /v1/theaters/:name/slots?date=&booking=&time=&mode=.
// booking and time identify the booking being edited so its own slot stays
// selectable; mode is "editor" (default) or "manual".
func (h *SlotHandler) List(c echo.Context) error {
	name, err := url.PathUnescape(c.Param("name"))
	if err != nil || strings.TrimSpace(name) == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid theater"})
	}
	date := strings.TrimSpace(c.QueryParam("date"))
	if date == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "date is required"})
	}
	ctx := c.Request().Context()

	var fallback []string
	if ts, err := h.Theaters.Theaters(ctx); err != nil {
		h.Log.WithError(err).Warn("theater catalog unavailable for slot fallback")
	} else if t, ok := (model.Catalogs{Theaters: ts}).Theater(name); ok {
		fallback = t.Slots
	}

	tracker := h.Registry.Open(ctx, name, date)
	views := tracker.Slots(slots.Viewer{
		BookingID: c.QueryParam("booking"),
		Time:      c.QueryParam("time"),
		Mode:      slots.ParseMode(c.QueryParam("mode")),
		Fallback:  fallback,
	})
	return c.JSON(http.StatusOK, echo.Map{
		"theater": name,
		"date":    date,
		"live":    tracker.Primed(),
		"slots":   views,
	})
}
