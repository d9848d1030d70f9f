package model

import "time"

// CreditPool identifies which of the two credit pools an amount belongs to.
// Gym credits are the general-purpose pool; interval credits are restricted
// to interval-type sessions and can never be spent on gym-pool sessions.
type CreditPool string

const (
	PoolGym      CreditPool = "gym"      // general-purpose credits
	PoolInterval CreditPool = "interval" // restricted to interval sessions
)

// Valid reports whether p is one of the two known pools.
func (p CreditPool) Valid() bool {
	return p == PoolGym || p == PoolInterval
}

// CreditBalance mirrors the `user_credits` table.  Each user has exactly one
// row holding both pool balances.  The total is always derived from the two
// pools and never stored, so the balances cannot drift apart from their sum.
//
// Fields:
//  UserID          – owner of the balance (users.id).
//  GymCredits      – general-purpose pool, never negative.
//  IntervalCredits – restricted pool, never negative.
//  LastRefilled    – when the monthly refill last ran (null before first refill).
//  NextRefillDate  – when the next monthly refill is due (null before first refill).
//  UpdatedAt       – timestamp of the last balance mutation.
type CreditBalance struct {
	UserID          uint64     `json:"user_id"`
	GymCredits      int64      `json:"gym_credits"`
	IntervalCredits int64      `json:"interval_credits"`
	LastRefilled    *time.Time `json:"last_refilled,omitempty"`
	NextRefillDate  *time.Time `json:"next_refill_date,omitempty"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// Total returns the derived sum of both pools.
func (b CreditBalance) Total() int64 {
	return b.GymCredits + b.IntervalCredits
}
