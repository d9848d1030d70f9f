package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/gym-credit-booking/internal/model"
)

// TransactionRepo provides append and query access to the append-only
// `transactions` table.  Rows are written exactly once per balance mutation
// and never updated or deleted afterwards.  The auto-increment seq column
// fixes a total order over entries, breaking ties between equal timestamps
// by insertion order.
type TransactionRepo struct {
	db *sql.DB
}

// NewTransactionRepo returns a TransactionRepo bound to the given database.
func NewTransactionRepo(db *sql.DB) *TransactionRepo { return &TransactionRepo{db: db} }

// AppendTx inserts a ledger entry within the caller's transaction.  A UUID
// is minted when the entry carries none, CreatedAt defaults to now, and the
// generated seq is populated on the entry.
func (r *TransactionRepo) AppendTx(ctx context.Context, tx *sql.Tx, t *model.Transaction) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	res, err := tx.ExecContext(ctx,
		`INSERT INTO transactions
		 (id, user_id, amount, pool, category, related_session_id, adjusted_by, gym_after, interval_after, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.UserID, t.Amount, string(t.Pool), string(t.Category),
		t.RelatedSessionID, t.AdjustedBy, t.GymAfter, t.IntervalAfter, t.CreatedAt)
	if err != nil {
		return err
	}
	seq, err := res.LastInsertId()
	if err != nil {
		return err
	}
	t.Seq = uint64(seq)
	return nil
}

// ListByUser returns a user's entries newest-first.  limit caps the page
// size (defaulting to 50 and clamped to 200) and offset skips entries, so
// the sequence is finite and restartable from any point.
func (r *TransactionRepo) ListByUser(ctx context.Context, userID uint64, limit, offset int) ([]model.Transaction, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT seq, id, user_id, amount, pool, category, related_session_id, adjusted_by,
		        gym_after, interval_after, created_at
		 FROM transactions WHERE user_id = ?
		 ORDER BY seq DESC LIMIT ? OFFSET ?`,
		userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Transaction, 0)
	for rows.Next() {
		var t model.Transaction
		var pool, category string
		var sessionID, adjustedBy sql.NullInt64
		if err := rows.Scan(&t.Seq, &t.ID, &t.UserID, &t.Amount, &pool, &category,
			&sessionID, &adjustedBy, &t.GymAfter, &t.IntervalAfter, &t.CreatedAt); err != nil {
			return nil, err
		}
		t.Pool = model.CreditPool(pool)
		t.Category = model.TransactionCategory(category)
		if sessionID.Valid {
			v := uint64(sessionID.Int64)
			t.RelatedSessionID = &v
		}
		if adjustedBy.Valid {
			v := uint64(adjustedBy.Int64)
			t.AdjustedBy = &v
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// ReplayTotal reconstructs the derived total balance (gym + interval) by
// summing every signed amount from a zero starting point.  Per-pool splits
// cannot be replayed from amounts alone because interval bookings may have
// borrowed gym credits; the per-pool truth is carried by the snapshot on
// the newest entry (see Latest).  The user_credits row stays the source of
// truth in normal operation; replay exists for integrity checks.
func (r *TransactionRepo) ReplayTotal(ctx context.Context, userID uint64) (int64, error) {
	var total int64
	err := r.db.QueryRowContext(ctx,
		"SELECT COALESCE(SUM(amount), 0) FROM transactions WHERE user_id = ?",
		userID).Scan(&total)
	return total, err
}

// Latest returns the newest entry for a user, or nil when the user has no
// entries yet.  Its GymAfter/IntervalAfter snapshot must match the stored
// balance row whenever the ledger is consistent.
func (r *TransactionRepo) Latest(ctx context.Context, userID uint64) (*model.Transaction, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT seq, id, user_id, amount, pool, category, related_session_id, adjusted_by,
		        gym_after, interval_after, created_at
		 FROM transactions WHERE user_id = ?
		 ORDER BY seq DESC LIMIT 1`,
		userID)
	var t model.Transaction
	var pool, category string
	var sessionID, adjustedBy sql.NullInt64
	err := row.Scan(&t.Seq, &t.ID, &t.UserID, &t.Amount, &pool, &category,
		&sessionID, &adjustedBy, &t.GymAfter, &t.IntervalAfter, &t.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	t.Pool = model.CreditPool(pool)
	t.Category = model.TransactionCategory(category)
	if sessionID.Valid {
		v := uint64(sessionID.Int64)
		t.RelatedSessionID = &v
	}
	if adjustedBy.Valid {
		v := uint64(adjustedBy.Int64)
		t.AdjustedBy = &v
	}
	return &t, nil
}
