package main

import (
	"log"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/gym-credit-booking/internal/config"
	"github.com/iliyamo/gym-credit-booking/internal/database"
	"github.com/iliyamo/gym-credit-booking/internal/handler"
	"github.com/iliyamo/gym-credit-booking/internal/middleware"
	"github.com/iliyamo/gym-credit-booking/internal/queue"
	"github.com/iliyamo/gym-credit-booking/internal/repository"
	"github.com/iliyamo/gym-credit-booking/internal/router"
	"github.com/iliyamo/gym-credit-booking/internal/service"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()
	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database connect failed: %v", err)
	}
	defer db.Close()

	// Repositories
	users := repository.NewUserRepo(db)
	tokens := repository.NewTokenRepo(db)
	credits := repository.NewCreditRepo(db)
	sessions := repository.NewSessionRepo(db)
	bookings := repository.NewBookingRepo(db)
	txlog := repository.NewTransactionRepo(db)

	// Services
	events := queue.NewPublisher()
	bookingSvc := service.NewBookingService(db, sessions, bookings, credits, txlog, events)
	creditSvc := service.NewCreditService(db, credits, txlog, cfg.MonthlyGymCredits, cfg.MonthlyIntervalCredits)

	// Handlers
	authH := handler.NewAuthHandler(cfg, db, users, tokens, credits)
	bookingH := handler.NewBookingHandler(bookingSvc)
	creditH := handler.NewCreditHandler(creditSvc)
	sessionH := handler.NewSessionHandler(sessions, bookingSvc)
	adminH := handler.NewAdminHandler(creditSvc, txlog)

	e := echo.New()

	// Redis-backed rate limiting and public-schedule caching; both turn
	// into no-ops when Redis is unreachable.
	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Printf("redis unavailable; rate limiting and response caching disabled")
	}
	e.Use(middleware.RateLimit(config.LoadRateLimitConfig(), rdb))
	var cache echo.MiddlewareFunc
	if rdb != nil {
		cache = middleware.ResponseCache(config.LoadCacheConfig(), rdb)
	}

	router.RegisterRoutes(e)
	router.RegisterAuth(e, authH, cfg.JWTSecret)
	router.RegisterPublic(e, sessionH, cache)
	router.RegisterClient(e, bookingH, creditH, cfg.JWTSecret)
	router.RegisterInstructor(e, sessionH, cfg.JWTSecret)
	router.RegisterAdmin(e, adminH, cfg.JWTSecret)

	// Booking events are consumed in-process and appended to logs/booking.log.
	go func() {
		if err := queue.StartBookingConsumer(); err != nil {
			log.Printf("booking consumer stopped: %v", err)
		}
	}()

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)
	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
