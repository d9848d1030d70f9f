package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/iliyamo/gym-credit-booking/internal/model"
)

// BookingRepo provides persistence for bookings.  Rows are never deleted;
// cancellation flips the status and stamps the fee, keeping the full
// booking history available for audits and refund lookups.  Each booking
// cycle gets a fresh auto-increment ID — re-booking a session after a
// cancellation creates a new row rather than reviving the old one.
type BookingRepo struct {
	db *sql.DB
}

// NewBookingRepo returns a BookingRepo bound to the given database.
func NewBookingRepo(db *sql.DB) *BookingRepo { return &BookingRepo{db: db} }

// CreateTx inserts a CONFIRMED booking within the caller's transaction and
// populates the generated ID.
func (r *BookingRepo) CreateTx(ctx context.Context, tx *sql.Tx, b *model.Booking) error {
	if b.Status == "" {
		b.Status = model.BookingConfirmed
	}
	res, err := tx.ExecContext(ctx,
		`INSERT INTO bookings
		 (user_id, session_id, credits_cost, credit_pool, status, booking_date)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		b.UserID, b.SessionID, b.CreditsCost, string(b.CreditPool), b.Status, b.BookingDate)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	b.ID = uint64(id)
	return nil
}

const bookingColumns = "id, user_id, session_id, credits_cost, credit_pool, status, booking_date, cancellation_date, cancellation_fee"

func scanBooking(scan func(dest ...any) error) (*model.Booking, error) {
	var b model.Booking
	var pool string
	var cancelled sql.NullTime
	var fee sql.NullInt64
	err := scan(&b.ID, &b.UserID, &b.SessionID, &b.CreditsCost, &pool, &b.Status,
		&b.BookingDate, &cancelled, &fee)
	if err != nil {
		return nil, err
	}
	b.CreditPool = model.CreditPool(pool)
	if cancelled.Valid {
		t := cancelled.Time
		b.CancellationDate = &t
	}
	if fee.Valid {
		v := fee.Int64
		b.CancellationFee = &v
	}
	return &b, nil
}

// GetTx loads a booking by ID within the caller's transaction.  The raw
// sql.ErrNoRows is passed through; the service translates it into
// ErrBookingNotFound together with ownership failures.
func (r *BookingRepo) GetTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Booking, error) {
	row := tx.QueryRowContext(ctx, "SELECT "+bookingColumns+" FROM bookings WHERE id = ?", id)
	return scanBooking(row.Scan)
}

// ActiveByUserAndSessionTx returns the user's CONFIRMED booking on a
// session, or nil when there is none.  At most one can exist at a time;
// the booking flow checks this inside the same transaction that inserts.
func (r *BookingRepo) ActiveByUserAndSessionTx(ctx context.Context, tx *sql.Tx, userID, sessionID uint64) (*model.Booking, error) {
	row := tx.QueryRowContext(ctx,
		"SELECT "+bookingColumns+" FROM bookings WHERE user_id = ? AND session_id = ? AND status = ? LIMIT 1",
		userID, sessionID, model.BookingConfirmed)
	b, err := scanBooking(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return b, nil
}

// CancelTx flips a CONFIRMED booking to CANCELLED, stamping the fee and
// cancellation time.  Zero affected rows means the booking was already
// cancelled.
func (r *BookingRepo) CancelTx(ctx context.Context, tx *sql.Tx, id uint64, fee int64, at time.Time) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE bookings SET status = ?, cancellation_date = ?, cancellation_fee = ?
		 WHERE id = ? AND status = ?`,
		model.BookingCancelled, at, fee, id, model.BookingConfirmed)
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

// ListConfirmedBySessionTx returns every CONFIRMED booking on a session,
// used when an instructor cancels the whole session and each enrolled user
// is refunded in turn.
func (r *BookingRepo) ListConfirmedBySessionTx(ctx context.Context, tx *sql.Tx, sessionID uint64) ([]model.Booking, error) {
	rows, err := tx.QueryContext(ctx,
		"SELECT "+bookingColumns+" FROM bookings WHERE session_id = ? AND status = ? ORDER BY id",
		sessionID, model.BookingConfirmed)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Booking, 0)
	for rows.Next() {
		b, err := scanBooking(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, *b)
	}
	return out, rows.Err()
}

// ListByUser returns the user's booking history, newest first, including
// cancelled rows.
func (r *BookingRepo) ListByUser(ctx context.Context, userID uint64) ([]model.Booking, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+bookingColumns+" FROM bookings WHERE user_id = ? ORDER BY id DESC",
		userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Booking, 0)
	for rows.Next() {
		b, err := scanBooking(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, *b)
	}
	return out, rows.Err()
}
