package api

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/monarch-xyz/sentinel/pkg/compile"
	"github.com/monarch-xyz/sentinel/pkg/store"
)

// mapServiceError maps a domain error to an Echo HTTPError: a
// *compile.ValidationError becomes a 400 with the offending field
// path, store.ErrNotFound becomes a 404, and anything else is logged
// and collapsed to a 500 so internal detail never leaks to a client.
func mapServiceError(err error) *echo.HTTPError {
	var verr *compile.ValidationError
	if errors.As(err, &verr) {
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("field=%s error=%s", verr.Field, verr.Error()))
	}
	if errors.Is(err, store.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "signal not found")
	}

	slog.Error("api: internal error", "error", err)
	return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
}
