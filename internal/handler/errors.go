package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
)

// apiError is a response decided below the handler that still needs writing.
type apiError struct {
	status int
	body   any
}

func newAPIError(status int, msg string) *apiError {
	return &apiError{status: status, body: map[string]string{"error": msg}}
}

func (e *apiError) Error() string { return http.StatusText(e.status) }

// writeError renders an apiError, passing anything else to echo's error
// handler.
func writeError(c echo.Context, err error) error {
	var ae *apiError
	if errors.As(err, &ae) {
		return c.JSON(ae.status, ae.body)
	}
	return err
}
