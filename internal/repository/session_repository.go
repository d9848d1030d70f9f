package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/iliyamo/gym-credit-booking/internal/model"
)

// SessionRepo provides persistence for the gym schedule.  The enrollment
// counter is only ever changed through ReserveSlotTx and ReleaseSlotTx,
// both single conditional UPDATEs, so the capacity invariant holds even
// when concurrent bookings race for the last slot.
type SessionRepo struct {
	db *sql.DB
}

// NewSessionRepo returns a SessionRepo bound to the given database.
func NewSessionRepo(db *sql.DB) *SessionRepo { return &SessionRepo{db: db} }

// DB exposes the underlying handle so callers can open transactions that
// span several repositories.
func (r *SessionRepo) DB() *sql.DB { return r.db }

// Create inserts a new session and populates its generated ID and
// timestamps on the passed struct.
func (r *SessionRepo) Create(ctx context.Context, s *model.Session) error {
	now := time.Now().UTC()
	s.CreatedAt = now
	s.UpdatedAt = now
	if s.Status == "" {
		s.Status = model.SessionScheduled
	}
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO sessions
		 (instructor_id, title, starts_at, ends_at, capacity, enrolled_count, credit_cost, credit_pool, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.InstructorID, s.Title, s.StartsAt, s.EndsAt, s.Capacity, s.EnrolledCount,
		s.CreditCost, string(s.CreditPool), s.Status, s.CreatedAt, s.UpdatedAt)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	s.ID = uint64(id)
	return nil
}

const sessionColumns = `id, instructor_id, title, starts_at, ends_at, capacity, enrolled_count,
	credit_cost, credit_pool, status, created_at, updated_at`

func scanSession(scan func(dest ...any) error) (*model.Session, error) {
	var s model.Session
	var pool string
	err := scan(&s.ID, &s.InstructorID, &s.Title, &s.StartsAt, &s.EndsAt, &s.Capacity,
		&s.EnrolledCount, &s.CreditCost, &pool, &s.Status, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	s.CreditPool = model.CreditPool(pool)
	return &s, nil
}

// GetByID returns a session by its identifier.  ErrSessionNotFound is
// returned when no such session exists.
func (r *SessionRepo) GetByID(ctx context.Context, id uint64) (*model.Session, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+sessionColumns+" FROM sessions WHERE id = ?", id)
	return scanSession(row.Scan)
}

// GetTx is GetByID within the caller's transaction.
func (r *SessionRepo) GetTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Session, error) {
	row := tx.QueryRowContext(ctx, "SELECT "+sessionColumns+" FROM sessions WHERE id = ?", id)
	return scanSession(row.Scan)
}

// ListUpcoming returns scheduled sessions starting after the given instant,
// soonest first.
func (r *SessionRepo) ListUpcoming(ctx context.Context, after time.Time, limit, offset int) ([]model.Session, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+sessionColumns+` FROM sessions
		 WHERE status = ? AND starts_at > ?
		 ORDER BY starts_at ASC LIMIT ? OFFSET ?`,
		model.SessionScheduled, after, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectSessions(rows)
}

// ListByInstructor returns all sessions owned by an instructor, newest
// schedule first.
func (r *SessionRepo) ListByInstructor(ctx context.Context, instructorID uint64) ([]model.Session, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+sessionColumns+" FROM sessions WHERE instructor_id = ? ORDER BY starts_at DESC",
		instructorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectSessions(rows)
}

func collectSessions(rows *sql.Rows) ([]model.Session, error) {
	out := make([]model.Session, 0)
	for rows.Next() {
		s, err := scanSession(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

// ReserveSlotTx atomically claims one slot on a scheduled session.  The
// capacity check and the increment are a single conditional UPDATE, so the
// counter can never pass capacity no matter how many bookings race.  Zero
// affected rows means the session was full (the caller has already
// established that the session exists and is scheduled).
func (r *SessionRepo) ReserveSlotTx(ctx context.Context, tx *sql.Tx, id uint64) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE sessions SET enrolled_count = enrolled_count + 1, updated_at = ?
		 WHERE id = ? AND status = ? AND enrolled_count < capacity`,
		time.Now().UTC(), id, model.SessionScheduled)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrSessionFull
	}
	return nil
}

// ReleaseSlotTx returns one slot to the session.  The decrement is guarded
// by enrolled_count > 0; zero affected rows is reported as
// ErrEnrollmentUnderflow because a correctly paired reserve/release can
// never drive the counter below zero.
func (r *SessionRepo) ReleaseSlotTx(ctx context.Context, tx *sql.Tx, id uint64) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE sessions SET enrolled_count = enrolled_count - 1, updated_at = ?
		 WHERE id = ? AND enrolled_count > 0`,
		time.Now().UTC(), id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrEnrollmentUnderflow
	}
	return nil
}

// CancelTx marks a scheduled session CANCELLED.  Zero affected rows means
// the session was already cancelled or completed.
func (r *SessionRepo) CancelTx(ctx context.Context, tx *sql.Tx, id uint64) error {
	res, err := tx.ExecContext(ctx,
		"UPDATE sessions SET status = ?, updated_at = ? WHERE id = ? AND status = ?",
		model.SessionCancelled, time.Now().UTC(), id, model.SessionScheduled)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrAlreadyCancelled
	}
	return nil
}
