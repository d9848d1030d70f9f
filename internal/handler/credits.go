package handler

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/gym-credit-booking/internal/service"
)

// CreditHandler exposes the member-facing balance and history endpoints.
type CreditHandler struct {
	Credits *service.CreditService
}

func NewCreditHandler(s *service.CreditService) *CreditHandler {
	return &CreditHandler{Credits: s}
}

// Balance returns the current user's pool balances.
// GET /v1/credits
func (h *CreditHandler) Balance(c echo.Context) error {
	uid, ok := currentUserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	bal, err := h.Credits.GetBalance(c.Request().Context(), uid)
	if err != nil {
		return writeDomainError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"balance": bal})
}

// Transactions returns a page of the current user's ledger entries, newest
// first.  limit and offset come from the query string.
// GET /v1/credits/transactions
func (h *CreditHandler) Transactions(c echo.Context) error {
	uid, ok := currentUserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	limit, offset := pageParams(c)
	entries, err := h.Credits.GetTransactions(c.Request().Context(), uid, limit, offset)
	if err != nil {
		return writeDomainError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"transactions": entries})
}

// pageParams reads limit/offset query parameters; the repository applies
// the defaults and clamps.
func pageParams(c echo.Context) (limit, offset int) {
	if n, err := strconv.Atoi(c.QueryParam("limit")); err == nil {
		limit = n
	}
	if n, err := strconv.Atoi(c.QueryParam("offset")); err == nil {
		offset = n
	}
	return limit, offset
}
