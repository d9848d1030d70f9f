// Package repository defines error types that are reused across multiple
// repositories and the service layer. These sentinel values allow higher
// layers such as handlers to distinguish between different failure
// scenarios and map them onto HTTP status codes without string matching.
package repository

import "errors"

// ErrSessionNotFound is returned when the referenced session does not exist.
var ErrSessionNotFound = errors.New("session not found")

// ErrSessionFull is returned when a booking races for a slot on a session
// whose enrollment already reached capacity.
var ErrSessionFull = errors.New("session full")

// ErrSessionCancelled is returned when booking a session that an instructor
// has cancelled.
var ErrSessionCancelled = errors.New("session cancelled")

// ErrSessionStarted is returned when an operation requires a session that
// has not yet started (booking it, or cancelling it wholesale).
var ErrSessionStarted = errors.New("session already started")

// ErrAlreadyBooked is returned when the user already holds a CONFIRMED
// booking for the session.
var ErrAlreadyBooked = errors.New("already booked")

// ErrBookingNotFound is returned when the booking does not exist or is not
// owned by the calling user. Ownership failures deliberately look identical
// to missing rows so bookings cannot be probed across accounts.
var ErrBookingNotFound = errors.New("booking not found")

// ErrAlreadyCancelled is returned when cancelling a booking (or session)
// that is already CANCELLED.
var ErrAlreadyCancelled = errors.New("already cancelled")

// ErrInvalidAdjustment is returned for admin adjustments with a zero amount
// or an unknown pool.
var ErrInvalidAdjustment = errors.New("invalid adjustment")

// ErrUserNotFound is returned when the target user or their credit balance
// row does not exist.
var ErrUserNotFound = errors.New("user not found")

// ErrForbidden is returned when the caller attempts an operation on a
// resource they do not own, such as an instructor cancelling another
// instructor's session. Handlers translate this into HTTP 403.
var ErrForbidden = errors.New("forbidden")

// ErrEnrollmentUnderflow signals that a slot release found enrolled_count
// already at zero. Reserve and release are always paired inside the same
// booking flow, so an underflow means an atomicity guarantee broke
// elsewhere; callers log it distinctly instead of clamping silently.
var ErrEnrollmentUnderflow = errors.New("enrollment count underflow")

// ErrBalanceConflict is returned when the optimistic balance update kept
// losing against concurrent writers and the bounded retry was exhausted.
var ErrBalanceConflict = errors.New("balance update conflict")
