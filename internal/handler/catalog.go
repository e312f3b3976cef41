package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

// Invalidator drops cached catalogs.
type Invalidator interface {
	Invalidate(ctx context.Context) error
}

// CatalogHandler exposes catalog maintenance to admins.
type CatalogHandler struct {
	Cache Invalidator
	Log   logrus.FieldLogger
}

// Invalidate handles POST /v1/catalogs/invalidate.  Catalog edits made
// directly in the database become visible on the next booking load.
func (h *CatalogHandler) Invalidate(c echo.Context) error {
	if err := h.Cache.Invalidate(c.Request().Context()); err != nil {
		h.Log.WithError(err).Error("catalog cache invalidation failed")
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "could not invalidate catalogs"})
	}
	return c.NoContent(http.StatusNoContent)
}
