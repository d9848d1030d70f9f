package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/gym-credit-booking/internal/service"
)

// BookingHandler exposes the member-facing booking endpoints.
type BookingHandler struct {
	Bookings *service.BookingService
}

func NewBookingHandler(b *service.BookingService) *BookingHandler {
	return &BookingHandler{Bookings: b}
}

// Book reserves a slot on a session for the current user.
// POST /v1/sessions/:id/book
func (h *BookingHandler) Book(c echo.Context) error {
	uid, ok := currentUserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	sessionID, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid session id"})
	}
	res, err := h.Bookings.Book(c.Request().Context(), uid, sessionID)
	if err != nil {
		return writeDomainError(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"booking": res.Booking,
		"balance": res.Balance,
	})
}

// Cancel cancels one of the current user's bookings, refunding credits
// minus the time-based fee.
// POST /v1/bookings/:id/cancel
func (h *BookingHandler) Cancel(c echo.Context) error {
	uid, ok := currentUserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	bookingID, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid booking id"})
	}
	res, err := h.Bookings.Cancel(c.Request().Context(), uid, bookingID)
	if err != nil {
		return writeDomainError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"booking":  res.Booking,
		"refunded": res.Refunded,
		"fee":      res.Fee,
		"balance":  res.Balance,
	})
}

// List returns the current user's booking history, newest first.
// GET /v1/my-bookings
func (h *BookingHandler) List(c echo.Context) error {
	uid, ok := currentUserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	bookings, err := h.Bookings.ListBookings(c.Request().Context(), uid)
	if err != nil {
		return writeDomainError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"bookings": bookings})
}
