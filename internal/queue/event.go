// Package queue defines message payloads exchanged over the message broker
// and the publisher/consumer that move them.
package queue

// BookingConfirmedEvent is published when a booking commits.  It carries
// enough for downstream consumers to log, notify or feed analytics without
// querying the primary database.
type BookingConfirmedEvent struct {
	BookingID       uint64 `json:"booking_id"`
	UserID          uint64 `json:"user_id"`
	SessionID       uint64 `json:"session_id"`
	CreditsCost     int64  `json:"credits_cost"`
	CreditPool      string `json:"credit_pool"`
	GymBalance      int64  `json:"gym_balance"`
	IntervalBalance int64  `json:"interval_balance"`
	ConfirmedAt     string `json:"confirmed_at"`
}

// BookingCancelledEvent is published when a cancellation commits.
type BookingCancelledEvent struct {
	BookingID   uint64 `json:"booking_id"`
	UserID      uint64 `json:"user_id"`
	SessionID   uint64 `json:"session_id"`
	Refunded    int64  `json:"refunded"`
	Fee         int64  `json:"fee"`
	CreditPool  string `json:"credit_pool"`
	CancelledAt string `json:"cancelled_at"`
}
