package model

import "time"

// Booking status values.  A booking moves CONFIRMED -> CANCELLED and never
// back; re-booking the same session creates a fresh row.
const (
	BookingConfirmed = "CONFIRMED"
	BookingCancelled = "CANCELLED"
)

// Booking records one booking cycle of a user on a session.  Rows are never
// physically deleted; cancelled bookings stay behind for audit and refund
// lookups.  CreditsCost and CreditPool are captured at booking time so that
// later session edits cannot change what a cancellation refunds.
//
// Fields:
//  ID               – primary key identifier, one per booking cycle.
//  UserID           – user who booked.
//  SessionID        – session booked.
//  CreditsCost      – credits charged when the booking was made.
//  CreditPool       – the session's designated pool at booking time; refunds
//                     go entirely to this pool.
//  Status           – CONFIRMED or CANCELLED.
//  BookingDate      – when the booking was made.
//  CancellationDate – when it was cancelled (null while confirmed).
//  CancellationFee  – credits withheld at cancellation (null while confirmed).
type Booking struct {
	ID               uint64     `json:"id"`
	UserID           uint64     `json:"user_id"`
	SessionID        uint64     `json:"session_id"`
	CreditsCost      int64      `json:"credits_cost"`
	CreditPool       CreditPool `json:"credit_pool"`
	Status           string     `json:"status"`
	BookingDate      time.Time  `json:"booking_date"`
	CancellationDate *time.Time `json:"cancellation_date,omitempty"`
	CancellationFee  *int64     `json:"cancellation_fee,omitempty"`
}
