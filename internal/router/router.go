// Package router defines how the API's HTTP routes are registered.  Routes
// are grouped by the role that may call them; each group applies the JWT and
// role middleware once so individual handlers never re-check roles.
package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/gym-credit-booking/internal/handler"
	"github.com/iliyamo/gym-credit-booking/internal/middleware"
	"github.com/iliyamo/gym-credit-booking/internal/model"
)

// RegisterRoutes registers routes that require no authentication.  Currently
// it exposes only a health check, used by load balancers to verify the
// service is up.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
}

// RegisterAuth registers the authentication endpoints.  Unauthenticated
// operations live under /v1/auth; /v1/me requires a valid access token.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string) {
	g := e.Group("/v1/auth")
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
	g.POST("/refresh", a.Refresh)
	// Logout accepts either a refresh token in the body or a bearer access
	// token; no middleware so a client with only a refresh token can still
	// end its session.
	g.POST("/logout", a.Logout)

	auth := e.Group("/v1")
	auth.Use(middleware.JWTAuth(jwtSecret))
	auth.GET("/me", a.Me)
}

// RegisterPublic registers the unauthenticated schedule browse endpoints.
// cache may be nil when the response cache is disabled.
func RegisterPublic(e *echo.Echo, s *handler.SessionHandler, cache echo.MiddlewareFunc) {
	g := e.Group("/v1/sessions")
	if cache != nil {
		g.Use(cache)
	}
	g.GET("", s.Browse)
	g.GET("/:id", s.Get)
}

// RegisterClient registers the member-facing booking and credit endpoints.
func RegisterClient(e *echo.Echo, b *handler.BookingHandler, cr *handler.CreditHandler, jwtSecret string) {
	g := e.Group("/v1")
	g.Use(middleware.JWTAuth(jwtSecret))
	g.Use(middleware.RequireRole(model.RoleClient, model.RoleAdmin))

	g.POST("/sessions/:id/book", b.Book)
	g.POST("/bookings/:id/cancel", b.Cancel)
	g.GET("/my-bookings", b.List)
	g.GET("/credits", cr.Balance)
	g.GET("/credits/transactions", cr.Transactions)
}

// RegisterInstructor registers session management for instructors.
func RegisterInstructor(e *echo.Echo, s *handler.SessionHandler, jwtSecret string) {
	g := e.Group("/v1/instructor")
	g.Use(middleware.JWTAuth(jwtSecret))
	g.Use(middleware.RequireRole(model.RoleInstructor, model.RoleAdmin))

	g.POST("/sessions", s.Create)
	g.GET("/sessions", s.ListMine)
	g.POST("/sessions/:id/cancel", s.Cancel)
}

// RegisterAdmin registers the privileged credit operations.
func RegisterAdmin(e *echo.Echo, a *handler.AdminHandler, jwtSecret string) {
	g := e.Group("/v1/admin")
	g.Use(middleware.JWTAuth(jwtSecret))
	g.Use(middleware.RequireRole(model.RoleAdmin))

	g.POST("/users/:id/credits/adjust", a.Adjust)
	g.POST("/users/:id/credits/reset", a.Reset)
	g.GET("/users/:id/credits", a.Balance)
	g.GET("/users/:id/credits/transactions", a.Transactions)
	g.GET("/users/:id/credits/verify", a.Verify)
}
