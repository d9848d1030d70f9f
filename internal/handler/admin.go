package handler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/gym-credit-booking/internal/model"
	"github.com/iliyamo/gym-credit-booking/internal/repository"
	"github.com/iliyamo/gym-credit-booking/internal/service"
)

// AdminHandler exposes the privileged credit operations: manual adjustments,
// monthly resets and per-user ledger inspection.
type AdminHandler struct {
	Credits *service.CreditService
	Txlog   *repository.TransactionRepo
}

func NewAdminHandler(credits *service.CreditService, txlog *repository.TransactionRepo) *AdminHandler {
	return &AdminHandler{Credits: credits, Txlog: txlog}
}

type adjustReq struct {
	Amount int64  `json:"amount"` // signed; positive adds, negative removes
	Pool   string `json:"pool"`   // gym | interval
	Reason string `json:"reason"`
}

// Adjust applies a manual credit change to one pool of the target user.
// POST /v1/admin/users/:id/credits/adjust
func (h *AdminHandler) Adjust(c echo.Context) error {
	adminID, ok := currentUserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	targetID, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid user id"})
	}
	var req adjustReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	pool := model.CreditPool(strings.ToLower(strings.TrimSpace(req.Pool)))

	bal, err := h.Credits.Adjust(c.Request().Context(), adminID, targetID, req.Amount, pool)
	if err != nil {
		return writeDomainError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"balance": bal})
}

// Reset refills the target user's pools to the configured monthly amounts.
// POST /v1/admin/users/:id/credits/reset
func (h *AdminHandler) Reset(c echo.Context) error {
	adminID, ok := currentUserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	targetID, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid user id"})
	}
	bal, err := h.Credits.Reset(c.Request().Context(), adminID, targetID)
	if err != nil {
		return writeDomainError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"balance": bal})
}

// Balance returns any user's stored balance.
// GET /v1/admin/users/:id/credits
func (h *AdminHandler) Balance(c echo.Context) error {
	targetID, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid user id"})
	}
	bal, err := h.Credits.GetBalance(c.Request().Context(), targetID)
	if err != nil {
		return writeDomainError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"balance": bal})
}

// Transactions returns a page of any user's ledger entries, newest first.
// GET /v1/admin/users/:id/credits/transactions
func (h *AdminHandler) Transactions(c echo.Context) error {
	targetID, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid user id"})
	}
	limit, offset := pageParams(c)
	entries, err := h.Credits.GetTransactions(c.Request().Context(), targetID, limit, offset)
	if err != nil {
		return writeDomainError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"transactions": entries})
}

// Verify cross-checks a user's stored balance against the transaction log:
// the summed amounts must equal the stored total, and the snapshot on the
// newest entry must match the stored per-pool split.
// GET /v1/admin/users/:id/credits/verify
func (h *AdminHandler) Verify(c echo.Context) error {
	targetID, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid user id"})
	}
	ctx := c.Request().Context()

	bal, err := h.Credits.GetBalance(ctx, targetID)
	if err != nil {
		return writeDomainError(c, err)
	}
	replayed, err := h.Txlog.ReplayTotal(ctx, targetID)
	if err != nil {
		return writeDomainError(c, err)
	}
	latest, err := h.Txlog.Latest(ctx, targetID)
	if err != nil {
		return writeDomainError(c, err)
	}

	consistent := replayed == bal.Total()
	if latest != nil {
		consistent = consistent &&
			latest.GymAfter == bal.GymCredits &&
			latest.IntervalAfter == bal.IntervalCredits
	}
	return c.JSON(http.StatusOK, echo.Map{
		"balance":        bal,
		"replayed_total": replayed,
		"latest_entry":   latest,
		"consistent":     consistent,
	})
}
