package server

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"vendorrisk/internal/core"
	"vendorrisk/internal/portal"
)

// handleError is the echo error handler. It converts portal errors to the
// failure envelope; anything unrecognized becomes a generic 500.
func handleError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	var apiErr *core.APIError
	var httpErr *echo.HTTPError
	switch {
	case errors.As(err, &apiErr):
	case errors.Is(err, portal.ErrNotFound):
		apiErr = core.NewNotFoundError("Not found")
	case errors.Is(err, portal.ErrConflict):
		apiErr = core.NewConflictError("Already exists")
	case errors.As(err, &httpErr):
		apiErr = fromHTTPError(httpErr)
	default:
		apiErr = core.NewInternalError("Internal Server Error", err)
	}

	status := apiErr.HTTPStatusCode()
	if status >= http.StatusInternalServerError {
		attrs := append([]any{
			"method", c.Request().Method,
			"path", c.Path(),
			"error", err,
		}, core.LogAttrs(c.Request().Context())...)
		slog.Error("request failed", attrs...)
	}

	if c.Request().Method == http.MethodHead {
		err = c.NoContent(status)
	} else {
		err = c.JSON(status, apiErr.ToJSON())
	}
	if err != nil {
		slog.Warn("failed to write error response", "error", err)
	}
}

func fromHTTPError(he *echo.HTTPError) *core.APIError {
	message := fmt.Sprint(he.Message)
	switch he.Code {
	case http.StatusNotFound:
		return core.NewNotFoundError("Route not found")
	case http.StatusUnauthorized:
		return core.NewAuthenticationError(message)
	case http.StatusForbidden:
		return core.NewForbiddenError(message)
	}
	if he.Code >= http.StatusInternalServerError {
		return core.NewInternalError("Internal Server Error", he)
	}
	return &core.APIError{
		Type:       core.ErrorTypeInvalidRequest,
		Message:    message,
		StatusCode: he.Code,
		Err:        he,
	}
}
