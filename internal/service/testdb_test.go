package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"github.com/iliyamo/gym-credit-booking/internal/model"
	"github.com/iliyamo/gym-credit-booking/internal/repository"
)

// The service tests run against an in-memory SQLite database.  The repo SQL
// sticks to the dialect subset MySQL and SQLite share (? placeholders,
// timestamps passed in from Go), so the same queries run under both.
const testSchema = `
CREATE TABLE users (
    id            INTEGER PRIMARY KEY AUTOINCREMENT,
    email         TEXT NOT NULL UNIQUE,
    password_hash TEXT NOT NULL,
    role          TEXT NOT NULL DEFAULT 'CLIENT',
    is_active     INTEGER NOT NULL DEFAULT 1,
    created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE user_credits (
    user_id          INTEGER PRIMARY KEY,
    gym_credits      INTEGER NOT NULL DEFAULT 0,
    interval_credits INTEGER NOT NULL DEFAULT 0,
    last_refilled    DATETIME,
    next_refill_date DATETIME,
    updated_at       DATETIME NOT NULL
);

CREATE TABLE sessions (
    id             INTEGER PRIMARY KEY AUTOINCREMENT,
    instructor_id  INTEGER NOT NULL,
    title          TEXT NOT NULL,
    starts_at      DATETIME NOT NULL,
    ends_at        DATETIME NOT NULL,
    capacity       INTEGER NOT NULL,
    enrolled_count INTEGER NOT NULL DEFAULT 0,
    credit_cost    INTEGER NOT NULL,
    credit_pool    TEXT NOT NULL,
    status         TEXT NOT NULL DEFAULT 'SCHEDULED',
    created_at     DATETIME NOT NULL,
    updated_at     DATETIME NOT NULL
);

CREATE TABLE bookings (
    id                INTEGER PRIMARY KEY AUTOINCREMENT,
    user_id           INTEGER NOT NULL,
    session_id        INTEGER NOT NULL,
    credits_cost      INTEGER NOT NULL,
    credit_pool       TEXT NOT NULL,
    status            TEXT NOT NULL DEFAULT 'CONFIRMED',
    booking_date      DATETIME NOT NULL,
    cancellation_date DATETIME,
    cancellation_fee  INTEGER
);

CREATE TABLE transactions (
    seq                INTEGER PRIMARY KEY AUTOINCREMENT,
    id                 TEXT NOT NULL UNIQUE,
    user_id            INTEGER NOT NULL,
    amount             INTEGER NOT NULL,
    pool               TEXT NOT NULL,
    category           TEXT NOT NULL,
    related_session_id INTEGER,
    adjusted_by        INTEGER,
    gym_after          INTEGER NOT NULL,
    interval_after     INTEGER NOT NULL,
    created_at         DATETIME NOT NULL
);
`

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	// A single connection keeps every query on the same in-memory database
	// and serializes concurrent transactions.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(testSchema); err != nil {
		t.Fatalf("create schema: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

// testEnv bundles the repositories and services under test around one
// database, with the clock pinned to testNow.
type testEnv struct {
	db       *sql.DB
	sessions *repository.SessionRepo
	bookings *repository.BookingRepo
	credits  *repository.CreditRepo
	txlog    *repository.TransactionRepo

	booking *BookingService
	credit  *CreditService
}

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := setupTestDB(t)
	env := &testEnv{
		db:       db,
		sessions: repository.NewSessionRepo(db),
		bookings: repository.NewBookingRepo(db),
		credits:  repository.NewCreditRepo(db),
		txlog:    repository.NewTransactionRepo(db),
	}
	env.booking = NewBookingService(db, env.sessions, env.bookings, env.credits, env.txlog, nil)
	env.booking.now = func() time.Time { return testNow }
	env.credit = NewCreditService(db, env.credits, env.txlog, 10, 4)
	env.credit.now = func() time.Time { return testNow }
	return env
}

// createUser inserts a user row plus its balance row and returns the ID.
func (e *testEnv) createUser(t *testing.T, email string, gym, interval int64) uint64 {
	t.Helper()
	res, err := e.db.Exec(
		"INSERT INTO users (email, password_hash, role) VALUES (?, 'x', 'CLIENT')", email)
	if err != nil {
		t.Fatalf("insert user: %v", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		t.Fatalf("user id: %v", err)
	}
	_, err = e.db.Exec(
		"INSERT INTO user_credits (user_id, gym_credits, interval_credits, updated_at) VALUES (?, ?, ?, ?)",
		id, gym, interval, testNow)
	if err != nil {
		t.Fatalf("insert balance: %v", err)
	}
	return uint64(id)
}

// createSession inserts a session starting startsIn after the pinned clock.
func (e *testEnv) createSession(t *testing.T, instructorID uint64, pool model.CreditPool,
	cost int64, capacity uint32, startsIn time.Duration) uint64 {
	t.Helper()
	s := &model.Session{
		InstructorID: instructorID,
		Title:        "Test Class",
		StartsAt:     testNow.Add(startsIn),
		EndsAt:       testNow.Add(startsIn + time.Hour),
		Capacity:     capacity,
		CreditCost:   cost,
		CreditPool:   pool,
		Status:       model.SessionScheduled,
	}
	if err := e.sessions.Create(context.Background(), s); err != nil {
		t.Fatalf("create session: %v", err)
	}
	return s.ID
}

// balance fetches the stored balance, failing the test on error.
func (e *testEnv) balance(t *testing.T, userID uint64) *model.CreditBalance {
	t.Helper()
	bal, err := e.credits.GetByUser(context.Background(), userID)
	if err != nil {
		t.Fatalf("get balance: %v", err)
	}
	return bal
}

// session fetches a session, failing the test on error.
func (e *testEnv) session(t *testing.T, id uint64) *model.Session {
	t.Helper()
	s, err := e.sessions.GetByID(context.Background(), id)
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	return s
}

// entries returns all of a user's ledger entries, newest first.
func (e *testEnv) entries(t *testing.T, userID uint64) []model.Transaction {
	t.Helper()
	out, err := e.txlog.ListByUser(context.Background(), userID, 200, 0)
	if err != nil {
		t.Fatalf("list transactions: %v", err)
	}
	return out
}

// assertLedgerConsistent cross-checks the stored balance against the log the
// same way the admin verify endpoint does.
func (e *testEnv) assertLedgerConsistent(t *testing.T, userID uint64, seededTotal int64) {
	t.Helper()
	ctx := context.Background()
	bal := e.balance(t, userID)
	replayed, err := e.txlog.ReplayTotal(ctx, userID)
	if err != nil {
		t.Fatalf("replay total: %v", err)
	}
	if got, want := seededTotal+replayed, bal.Total(); got != want {
		t.Errorf("replayed total = %d, stored total = %d", got, want)
	}
	latest, err := e.txlog.Latest(ctx, userID)
	if err != nil {
		t.Fatalf("latest entry: %v", err)
	}
	if latest == nil {
		return
	}
	if latest.GymAfter != bal.GymCredits || latest.IntervalAfter != bal.IntervalCredits {
		t.Errorf("latest snapshot = %d/%d, stored balance = %d/%d",
			latest.GymAfter, latest.IntervalAfter, bal.GymCredits, bal.IntervalCredits)
	}
}
