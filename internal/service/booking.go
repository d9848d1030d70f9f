// Package service implements the booking and credit orchestrators.  Each
// operation runs as a single SQL transaction composing the repository layer
// with the ledger policy, so credits, enrollment counters, booking rows and
// transaction-log entries change together or not at all.
package service

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"time"

	"github.com/iliyamo/gym-credit-booking/internal/ledger"
	"github.com/iliyamo/gym-credit-booking/internal/model"
	"github.com/iliyamo/gym-credit-booking/internal/queue"
	"github.com/iliyamo/gym-credit-booking/internal/repository"
)

// maxBalanceRetries bounds how often an operation is replayed when the
// optimistic balance update loses against a concurrent writer for the same
// user.
const maxBalanceRetries = 3

// BookingService orchestrates booking and cancellation.  All five booking
// checks plus the mutation run inside one transaction; the slot guard and
// the balance guard are conditional UPDATEs, so no outcome is observable
// where credits moved but the slot did not, or vice versa.
type BookingService struct {
	db       *sql.DB
	sessions *repository.SessionRepo
	bookings *repository.BookingRepo
	credits  *repository.CreditRepo
	txlog    *repository.TransactionRepo
	events   *queue.Publisher

	// now is swapped out by tests to pin the clock.
	now func() time.Time
}

// NewBookingService wires the orchestrator.  events may be nil, in which
// case no broker messages are published.
func NewBookingService(db *sql.DB, sessions *repository.SessionRepo, bookings *repository.BookingRepo,
	credits *repository.CreditRepo, txlog *repository.TransactionRepo, events *queue.Publisher) *BookingService {
	if db == nil || sessions == nil || bookings == nil || credits == nil || txlog == nil {
		panic("nil dependency passed to NewBookingService")
	}
	return &BookingService{
		db:       db,
		sessions: sessions,
		bookings: bookings,
		credits:  credits,
		txlog:    txlog,
		events:   events,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// BookingResult is returned on a successful booking.
type BookingResult struct {
	Booking *model.Booking
	Balance *model.CreditBalance
}

// CancellationResult is returned on a successful cancellation.
type CancellationResult struct {
	Booking  *model.Booking
	Refunded int64
	Fee      int64
	Balance  *model.CreditBalance
}

// Book books sessionID for userID, deducting the session's credit cost by
// the ledger policy and claiming a slot.  The operation retries from
// scratch when the balance guard detects a concurrent write for the same
// user, and fails with ErrBalanceConflict once the retries are exhausted.
func (s *BookingService) Book(ctx context.Context, userID, sessionID uint64) (*BookingResult, error) {
	for attempt := 0; attempt < maxBalanceRetries; attempt++ {
		res, conflict, err := s.bookOnce(ctx, userID, sessionID)
		if err != nil {
			return nil, err
		}
		if conflict {
			continue
		}
		if s.events != nil {
			s.events.BookingConfirmed(ctx, res.Booking, res.Balance)
		}
		return res, nil
	}
	return nil, repository.ErrBalanceConflict
}

func (s *BookingService) bookOnce(ctx context.Context, userID, sessionID uint64) (*BookingResult, bool, error) {
	now := s.now()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	sess, err := s.sessions.GetTx(ctx, tx, sessionID)
	if err != nil {
		return nil, false, err
	}
	switch sess.Status {
	case model.SessionCancelled:
		return nil, false, repository.ErrSessionCancelled
	case model.SessionCompleted:
		return nil, false, repository.ErrSessionStarted
	}
	if !sess.StartsAt.After(now) {
		return nil, false, repository.ErrSessionStarted
	}
	active, err := s.bookings.ActiveByUserAndSessionTx(ctx, tx, userID, sessionID)
	if err != nil {
		return nil, false, err
	}
	if active != nil {
		return nil, false, repository.ErrAlreadyBooked
	}
	if sess.EnrolledCount >= sess.Capacity {
		return nil, false, repository.ErrSessionFull
	}

	bal, err := s.credits.GetTx(ctx, tx, userID)
	if err != nil {
		return nil, false, err
	}
	ded, err := ledger.Deduct(bal.GymCredits, bal.IntervalCredits, sess.CreditCost, sess.CreditPool)
	if err != nil {
		return nil, false, err
	}
	applied, err := s.credits.ApplyTx(ctx, tx, userID,
		bal.GymCredits, bal.IntervalCredits, ded.GymAfter, ded.IntervalAfter)
	if err != nil {
		return nil, false, err
	}
	if !applied {
		return nil, true, nil
	}

	// The capacity pre-check above only produces a friendly early error;
	// this conditional UPDATE is the guard that actually holds under
	// concurrent bookings.
	if err := s.sessions.ReserveSlotTx(ctx, tx, sessionID); err != nil {
		return nil, false, err
	}

	booking := &model.Booking{
		UserID:      userID,
		SessionID:   sessionID,
		CreditsCost: sess.CreditCost,
		CreditPool:  sess.CreditPool,
		Status:      model.BookingConfirmed,
		BookingDate: now,
	}
	if err := s.bookings.CreateTx(ctx, tx, booking); err != nil {
		return nil, false, err
	}
	entry := &model.Transaction{
		UserID:           userID,
		Amount:           -sess.CreditCost,
		Pool:             sess.CreditPool,
		Category:         model.CategoryBooking,
		RelatedSessionID: &sessionID,
		GymAfter:         ded.GymAfter,
		IntervalAfter:    ded.IntervalAfter,
		CreatedAt:        now,
	}
	if err := s.txlog.AppendTx(ctx, tx, entry); err != nil {
		return nil, false, err
	}
	if err := tx.Commit(); err != nil {
		return nil, false, err
	}
	committed = true

	newBal := *bal
	newBal.GymCredits = ded.GymAfter
	newBal.IntervalCredits = ded.IntervalAfter
	return &BookingResult{Booking: booking, Balance: &newBal}, false, nil
}

// ListBookings returns the user's booking history, newest first, cancelled
// rows included.
func (s *BookingService) ListBookings(ctx context.Context, userID uint64) ([]model.Booking, error) {
	return s.bookings.ListByUser(ctx, userID)
}

// Cancel cancels a booking owned by userID, refunding the cost minus the
// time-based cancellation fee to the booking's designated pool.  The fee
// applies when less than ledger.FeeWindow remains before the session
// starts; refunds of cross-pool deductions go entirely to the designated
// pool recorded on the booking.
func (s *BookingService) Cancel(ctx context.Context, userID, bookingID uint64) (*CancellationResult, error) {
	for attempt := 0; attempt < maxBalanceRetries; attempt++ {
		res, conflict, err := s.cancelOnce(ctx, userID, bookingID)
		if err != nil {
			return nil, err
		}
		if conflict {
			continue
		}
		if s.events != nil {
			s.events.BookingCancelled(ctx, res.Booking, res.Refunded, res.Fee)
		}
		return res, nil
	}
	return nil, repository.ErrBalanceConflict
}

func (s *BookingService) cancelOnce(ctx context.Context, userID, bookingID uint64) (*CancellationResult, bool, error) {
	now := s.now()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	booking, err := s.bookings.GetTx(ctx, tx, bookingID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, repository.ErrBookingNotFound
		}
		return nil, false, err
	}
	if booking.UserID != userID {
		return nil, false, repository.ErrBookingNotFound
	}
	if booking.Status == model.BookingCancelled {
		return nil, false, repository.ErrAlreadyCancelled
	}
	sess, err := s.sessions.GetTx(ctx, tx, booking.SessionID)
	if err != nil {
		return nil, false, err
	}

	fee := ledger.CancellationFee(booking.CreditsCost, sess.StartsAt.Sub(now))
	refund := booking.CreditsCost - fee

	res, conflict, err := s.refundBookingTx(ctx, tx, booking, refund, fee, now)
	if err != nil || conflict {
		return nil, conflict, err
	}
	if err := tx.Commit(); err != nil {
		return nil, false, err
	}
	committed = true
	return res, false, nil
}

// refundBookingTx applies one booking refund inside tx: balance update,
// slot release, booking status flip and the cancellation ledger entry.
// It reports conflict=true when the balance guard missed.
func (s *BookingService) refundBookingTx(ctx context.Context, tx *sql.Tx, booking *model.Booking,
	refund, fee int64, now time.Time) (*CancellationResult, bool, error) {
	bal, err := s.credits.GetTx(ctx, tx, booking.UserID)
	if err != nil {
		return nil, false, err
	}
	gymAfter, intervalAfter, err := ledger.Add(bal.GymCredits, bal.IntervalCredits, refund, booking.CreditPool)
	if err != nil {
		return nil, false, err
	}
	applied, err := s.credits.ApplyTx(ctx, tx, booking.UserID,
		bal.GymCredits, bal.IntervalCredits, gymAfter, intervalAfter)
	if err != nil {
		return nil, false, err
	}
	if !applied {
		return nil, true, nil
	}
	if err := s.sessions.ReleaseSlotTx(ctx, tx, booking.SessionID); err != nil {
		if !errors.Is(err, repository.ErrEnrollmentUnderflow) {
			return nil, false, err
		}
		// Broken reserve/release pairing somewhere else; surface loudly
		// but let the member's refund go through.
		log.Printf("booking-service: CONSISTENCY enrollment underflow session=%d booking=%d",
			booking.SessionID, booking.ID)
	}
	if err := s.bookings.CancelTx(ctx, tx, booking.ID, fee, now); err != nil {
		return nil, false, err
	}
	entry := &model.Transaction{
		UserID:           booking.UserID,
		Amount:           refund,
		Pool:             booking.CreditPool,
		Category:         model.CategoryCancellation,
		RelatedSessionID: &booking.SessionID,
		GymAfter:         gymAfter,
		IntervalAfter:    intervalAfter,
		CreatedAt:        now,
	}
	if err := s.txlog.AppendTx(ctx, tx, entry); err != nil {
		return nil, false, err
	}

	cancelled := *booking
	cancelled.Status = model.BookingCancelled
	cancelled.CancellationDate = &now
	cancelled.CancellationFee = &fee
	newBal := *bal
	newBal.GymCredits = gymAfter
	newBal.IntervalCredits = intervalAfter
	return &CancellationResult{Booking: &cancelled, Refunded: refund, Fee: fee, Balance: &newBal}, false, nil
}

// CancelSession cancels a whole scheduled session on behalf of its
// instructor and refunds every enrolled member in full (no fee, the member
// did not choose to cancel).  The session flip and all refunds commit as
// one transaction.
func (s *BookingService) CancelSession(ctx context.Context, instructorID, sessionID uint64) (int, error) {
	for attempt := 0; attempt < maxBalanceRetries; attempt++ {
		refunded, conflict, err := s.cancelSessionOnce(ctx, instructorID, sessionID)
		if err != nil {
			return 0, err
		}
		if conflict {
			continue
		}
		return refunded, nil
	}
	return 0, repository.ErrBalanceConflict
}

func (s *BookingService) cancelSessionOnce(ctx context.Context, instructorID, sessionID uint64) (int, bool, error) {
	now := s.now()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, false, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	sess, err := s.sessions.GetTx(ctx, tx, sessionID)
	if err != nil {
		return 0, false, err
	}
	if sess.InstructorID != instructorID {
		return 0, false, repository.ErrForbidden
	}
	if sess.Status != model.SessionScheduled {
		return 0, false, repository.ErrAlreadyCancelled
	}
	if !sess.StartsAt.After(now) {
		return 0, false, repository.ErrSessionStarted
	}

	confirmed, err := s.bookings.ListConfirmedBySessionTx(ctx, tx, sessionID)
	if err != nil {
		return 0, false, err
	}
	for i := range confirmed {
		b := confirmed[i]
		_, conflict, err := s.refundBookingTx(ctx, tx, &b, b.CreditsCost, 0, now)
		if err != nil {
			return 0, false, err
		}
		if conflict {
			return 0, true, nil
		}
	}
	if err := s.sessions.CancelTx(ctx, tx, sessionID); err != nil {
		return 0, false, err
	}
	if err := tx.Commit(); err != nil {
		return 0, false, err
	}
	committed = true
	return len(confirmed), false, nil
}
