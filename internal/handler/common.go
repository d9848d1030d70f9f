// Package handler contains the HTTP endpoints.  Handlers bind and validate
// requests, call into the service layer and translate domain errors into
// HTTP status codes; they hold no business rules of their own.
package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/gym-credit-booking/internal/ledger"
	"github.com/iliyamo/gym-credit-booking/internal/repository"
)

// currentUserID extracts the authenticated user's ID that the JWT middleware
// stored in the context.  JWT numeric claims decode as float64; string
// subjects are parsed as a fallback.
func currentUserID(c echo.Context) (uint64, bool) {
	switch v := c.Get("user_id").(type) {
	case float64:
		return uint64(v), true
	case uint64:
		return v, true
	case string:
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			return n, true
		}
	}
	return 0, false
}

// pathID parses a numeric path parameter.
func pathID(c echo.Context, name string) (uint64, bool) {
	n, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || n == 0 {
		return 0, false
	}
	return n, true
}

// writeDomainError maps service and ledger errors onto HTTP responses.  The
// mapping is shared by every handler so the same failure always produces
// the same status and error code.
func writeDomainError(c echo.Context, err error) error {
	var insufficient *ledger.InsufficientCreditsError
	if errors.As(err, &insufficient) {
		return c.JSON(http.StatusPaymentRequired, echo.Map{
			"error":     "insufficient credits",
			"required":  insufficient.Required,
			"available": insufficient.Available,
			"pool":      insufficient.Pool,
		})
	}
	switch {
	case errors.Is(err, repository.ErrSessionNotFound),
		errors.Is(err, repository.ErrBookingNotFound),
		errors.Is(err, repository.ErrUserNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": err.Error()})
	case errors.Is(err, repository.ErrSessionFull),
		errors.Is(err, repository.ErrSessionCancelled),
		errors.Is(err, repository.ErrSessionStarted),
		errors.Is(err, repository.ErrAlreadyBooked),
		errors.Is(err, repository.ErrAlreadyCancelled):
		return c.JSON(http.StatusConflict, echo.Map{"error": err.Error()})
	case errors.Is(err, repository.ErrBalanceConflict):
		// The optimistic retries were exhausted; the client may simply try
		// again.
		return c.JSON(http.StatusConflict, echo.Map{"error": err.Error()})
	case errors.Is(err, repository.ErrInvalidAdjustment),
		errors.Is(err, ledger.ErrNegativeAmount):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	case errors.Is(err, repository.ErrForbidden):
		return c.JSON(http.StatusForbidden, echo.Map{"error": err.Error()})
	}
	c.Logger().Errorf("internal error: %v", err)
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
}
