package model

import "time"

// Session status values.  Stored as uppercase strings in the `sessions`
// table, matching the enum column definition.
const (
	SessionScheduled = "SCHEDULED"
	SessionCancelled = "CANCELLED"
	SessionCompleted = "COMPLETED"
)

// Session represents a bookable class on the gym schedule.  EnrolledCount is
// mutated only through SessionRepo.ReserveSlotTx/ReleaseSlotTx so that it can
// never exceed Capacity or drop below zero.
//
// Fields:
//  ID            – primary key identifier.
//  InstructorID  – user who runs the session.
//  Title         – display name of the class.
//  StartsAt      – when the session begins (UTC).
//  EndsAt        – when the session ends (must be after StartsAt).
//  Capacity      – maximum enrollment, always > 0.
//  EnrolledCount – current enrollment, 0 <= EnrolledCount <= Capacity.
//  CreditCost    – credits charged per booking, always > 0.
//  CreditPool    – which pool the session draws from.
//  Status        – SCHEDULED, CANCELLED or COMPLETED.
//  CreatedAt     – creation timestamp.
//  UpdatedAt     – last update timestamp.
type Session struct {
	ID            uint64     `json:"id"`
	InstructorID  uint64     `json:"instructor_id"`
	Title         string     `json:"title"`
	StartsAt      time.Time  `json:"starts_at"`
	EndsAt        time.Time  `json:"ends_at"`
	Capacity      uint32     `json:"capacity"`
	EnrolledCount uint32     `json:"enrolled_count"`
	CreditCost    int64      `json:"credit_cost"`
	CreditPool    CreditPool `json:"credit_pool"`
	Status        string     `json:"status"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}
