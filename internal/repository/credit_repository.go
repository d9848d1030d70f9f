package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/iliyamo/gym-credit-booking/internal/model"
)

// CreditRepo provides access to the `user_credits` table, which holds one
// row per user with both pool balances.  Mutations go through ApplyTx, an
// optimistic compare-and-set guarded by the previously read balances, so
// two concurrent writers can never both apply against the same snapshot.
// The ledger policy that decides the new values lives in internal/ledger.
type CreditRepo struct {
	db *sql.DB
}

// NewCreditRepo returns a CreditRepo bound to the given database.
func NewCreditRepo(db *sql.DB) *CreditRepo { return &CreditRepo{db: db} }

// DB exposes the underlying handle so callers can open transactions that
// span several repositories.
func (r *CreditRepo) DB() *sql.DB { return r.db }

// CreateTx seeds a zero balance row for a new user inside the caller's
// transaction.  Registration calls this so every user has a balance row
// from the start.
func (r *CreditRepo) CreateTx(ctx context.Context, tx *sql.Tx, userID uint64) error {
	_, err := tx.ExecContext(ctx,
		"INSERT INTO user_credits (user_id, gym_credits, interval_credits, updated_at) VALUES (?, 0, 0, ?)",
		userID, time.Now().UTC())
	return err
}

const creditColumns = "user_id, gym_credits, interval_credits, last_refilled, next_refill_date, updated_at"

func scanBalance(row *sql.Row) (*model.CreditBalance, error) {
	var b model.CreditBalance
	var refilled, next sql.NullTime
	err := row.Scan(&b.UserID, &b.GymCredits, &b.IntervalCredits, &refilled, &next, &b.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	if refilled.Valid {
		t := refilled.Time
		b.LastRefilled = &t
	}
	if next.Valid {
		t := next.Time
		b.NextRefillDate = &t
	}
	return &b, nil
}

// GetByUser returns the current balance for a user.  ErrUserNotFound is
// returned when no balance row exists.
func (r *CreditRepo) GetByUser(ctx context.Context, userID uint64) (*model.CreditBalance, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+creditColumns+" FROM user_credits WHERE user_id = ?", userID)
	return scanBalance(row)
}

// GetTx is GetByUser within the caller's transaction.
func (r *CreditRepo) GetTx(ctx context.Context, tx *sql.Tx, userID uint64) (*model.CreditBalance, error) {
	row := tx.QueryRowContext(ctx,
		"SELECT "+creditColumns+" FROM user_credits WHERE user_id = ?", userID)
	return scanBalance(row)
}

// ApplyTx writes new pool balances guarded by the values the caller read.
// It returns false when the guard missed, meaning another writer got in
// between the read and this write; the caller rolls back and retries the
// whole operation against a fresh snapshot.
func (r *CreditRepo) ApplyTx(ctx context.Context, tx *sql.Tx, userID uint64, oldGym, oldInterval, newGym, newInterval int64) (bool, error) {
	res, err := tx.ExecContext(ctx,
		`UPDATE user_credits SET gym_credits = ?, interval_credits = ?, updated_at = ?
		 WHERE user_id = ? AND gym_credits = ? AND interval_credits = ?`,
		newGym, newInterval, time.Now().UTC(), userID, oldGym, oldInterval)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// SetRefillTx stamps the refill bookkeeping fields after a monthly reset.
func (r *CreditRepo) SetRefillTx(ctx context.Context, tx *sql.Tx, userID uint64, refilled, next time.Time) error {
	_, err := tx.ExecContext(ctx,
		"UPDATE user_credits SET last_refilled = ?, next_refill_date = ? WHERE user_id = ?",
		refilled, next, userID)
	return err
}
