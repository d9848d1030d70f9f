package model

import "time"

// TransactionCategory classifies why a balance changed.  The set is closed;
// repositories reject rows with unknown categories at the service boundary.
type TransactionCategory string

const (
	CategoryBooking         TransactionCategory = "booking"
	CategoryCancellation    TransactionCategory = "cancellation"
	CategoryAdminAdjustment TransactionCategory = "admin_adjustment"
	CategoryMonthlyReset    TransactionCategory = "monthly_reset"
)

// Valid reports whether c is one of the known categories.
func (c TransactionCategory) Valid() bool {
	switch c {
	case CategoryBooking, CategoryCancellation, CategoryAdminAdjustment, CategoryMonthlyReset:
		return true
	}
	return false
}

// Transaction is an immutable, append-only ledger entry.  Exactly one entry
// is written per balance mutation and entries are never updated or deleted.
// Seq is the insertion-order sequence used to break timestamp ties; ID is
// the public identifier exposed to clients.
//
// Fields:
//  Seq              – auto-increment insertion order (transactions.seq).
//  ID               – UUID exposed to API clients.
//  UserID           – owner of the balance that changed.
//  Amount           – signed delta; negative means a deduction.
//  Pool             – the designated pool of the operation.  A booking that
//                     borrowed gym credits for an interval session still
//                     records pool=interval; the *After snapshots carry the
//                     exact per-pool outcome.
//  Category         – why the balance changed.
//  RelatedSessionID – session the entry refers to, when booking-related.
//  AdjustedBy       – admin who performed a manual adjustment, when applicable.
//  GymAfter         – gym pool snapshot after the mutation.
//  IntervalAfter    – interval pool snapshot after the mutation.
//  CreatedAt        – UTC timestamp of the mutation.
type Transaction struct {
	Seq              uint64              `json:"-"`
	ID               string              `json:"id"`
	UserID           uint64              `json:"user_id"`
	Amount           int64               `json:"amount"`
	Pool             CreditPool          `json:"pool"`
	Category         TransactionCategory `json:"category"`
	RelatedSessionID *uint64             `json:"related_session_id,omitempty"`
	AdjustedBy       *uint64             `json:"adjusted_by,omitempty"`
	GymAfter         int64               `json:"gym_after"`
	IntervalAfter    int64               `json:"interval_after"`
	CreatedAt        time.Time           `json:"created_at"`
}
