package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/gym-credit-booking/internal/model"
	"github.com/iliyamo/gym-credit-booking/internal/repository"
	"github.com/iliyamo/gym-credit-booking/internal/service"
)

// SessionHandler exposes the public schedule plus the instructor's session
// management endpoints.
type SessionHandler struct {
	Sessions *repository.SessionRepo
	Bookings *service.BookingService
}

func NewSessionHandler(sessions *repository.SessionRepo, bookings *service.BookingService) *SessionHandler {
	return &SessionHandler{Sessions: sessions, Bookings: bookings}
}

type createSessionReq struct {
	Title      string    `json:"title"`
	StartsAt   time.Time `json:"starts_at"`
	EndsAt     time.Time `json:"ends_at"`
	Capacity   uint32    `json:"capacity"`
	CreditCost int64     `json:"credit_cost"`
	CreditPool string    `json:"credit_pool"` // gym | interval
}

// Create publishes a new session on the schedule, owned by the calling
// instructor.
// POST /v1/instructor/sessions
func (h *SessionHandler) Create(c echo.Context) error {
	uid, ok := currentUserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req createSessionReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Title = strings.TrimSpace(req.Title)
	pool := model.CreditPool(strings.ToLower(strings.TrimSpace(req.CreditPool)))
	switch {
	case req.Title == "":
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "title required"})
	case req.Capacity == 0:
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "capacity must be positive"})
	case req.CreditCost <= 0:
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "credit_cost must be positive"})
	case !pool.Valid():
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "credit_pool must be gym or interval"})
	case !req.StartsAt.After(time.Now().UTC()):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "starts_at must be in the future"})
	case !req.EndsAt.After(req.StartsAt):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "ends_at must be after starts_at"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	sess := &model.Session{
		InstructorID: uid,
		Title:        req.Title,
		StartsAt:     req.StartsAt.UTC(),
		EndsAt:       req.EndsAt.UTC(),
		Capacity:     req.Capacity,
		CreditCost:   req.CreditCost,
		CreditPool:   pool,
		Status:       model.SessionScheduled,
	}
	if err := h.Sessions.Create(ctx, sess); err != nil {
		return writeDomainError(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"session": sess})
}

// ListMine returns every session owned by the calling instructor.
// GET /v1/instructor/sessions
func (h *SessionHandler) ListMine(c echo.Context) error {
	uid, ok := currentUserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	sessions, err := h.Sessions.ListByInstructor(c.Request().Context(), uid)
	if err != nil {
		return writeDomainError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"sessions": sessions})
}

// Cancel cancels a session owned by the calling instructor and refunds all
// enrolled members in full.
// POST /v1/instructor/sessions/:id/cancel
func (h *SessionHandler) Cancel(c echo.Context) error {
	uid, ok := currentUserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	sessionID, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid session id"})
	}
	refunded, err := h.Bookings.CancelSession(c.Request().Context(), uid, sessionID)
	if err != nil {
		return writeDomainError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"refunded_bookings": refunded})
}

// Browse lists upcoming scheduled sessions, soonest first.
// GET /v1/sessions
func (h *SessionHandler) Browse(c echo.Context) error {
	limit, offset := pageParams(c)
	sessions, err := h.Sessions.ListUpcoming(c.Request().Context(), time.Now().UTC(), limit, offset)
	if err != nil {
		return writeDomainError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"sessions": sessions})
}

// Get returns one session with its remaining capacity.
// GET /v1/sessions/:id
func (h *SessionHandler) Get(c echo.Context) error {
	sessionID, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid session id"})
	}
	sess, err := h.Sessions.GetByID(c.Request().Context(), sessionID)
	if err != nil {
		return writeDomainError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"session":         sess,
		"slots_remaining": sess.Capacity - sess.EnrolledCount,
	})
}
