package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/iliyamo/gym-credit-booking/internal/ledger"
	"github.com/iliyamo/gym-credit-booking/internal/model"
	"github.com/iliyamo/gym-credit-booking/internal/repository"
)

func TestBookDeductsFromDesignatedPool(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	instructor := env.createUser(t, "coach@gym.test", 0, 0)
	user := env.createUser(t, "member@gym.test", 10, 4)
	sessionID := env.createSession(t, instructor, model.PoolGym, 3, 5, 48*time.Hour)

	res, err := env.booking.Book(ctx, user, sessionID)
	if err != nil {
		t.Fatalf("Book: %v", err)
	}
	if res.Booking.Status != model.BookingConfirmed {
		t.Errorf("booking status = %q, want CONFIRMED", res.Booking.Status)
	}
	bal := env.balance(t, user)
	if bal.GymCredits != 7 || bal.IntervalCredits != 4 {
		t.Errorf("balance = %d/%d, want 7/4", bal.GymCredits, bal.IntervalCredits)
	}
	if got := env.session(t, sessionID).EnrolledCount; got != 1 {
		t.Errorf("enrolled_count = %d, want 1", got)
	}

	entries := env.entries(t, user)
	if len(entries) != 1 {
		t.Fatalf("got %d ledger entries, want 1", len(entries))
	}
	e := entries[0]
	if e.Amount != -3 || e.Pool != model.PoolGym || e.Category != model.CategoryBooking {
		t.Errorf("entry = %+d %s %s, want -3 gym booking", e.Amount, e.Pool, e.Category)
	}
	if e.RelatedSessionID == nil || *e.RelatedSessionID != sessionID {
		t.Errorf("related_session_id = %v, want %d", e.RelatedSessionID, sessionID)
	}
	env.assertLedgerConsistent(t, user, 14)
}

func TestBookIntervalBorrowsFromGym(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	instructor := env.createUser(t, "coach@gym.test", 0, 0)
	user := env.createUser(t, "member@gym.test", 10, 2)
	sessionID := env.createSession(t, instructor, model.PoolInterval, 3, 5, 48*time.Hour)

	if _, err := env.booking.Book(ctx, user, sessionID); err != nil {
		t.Fatalf("Book: %v", err)
	}
	bal := env.balance(t, user)
	if bal.GymCredits != 9 || bal.IntervalCredits != 0 {
		t.Errorf("balance = %d/%d, want 9/0 after borrowing", bal.GymCredits, bal.IntervalCredits)
	}
	// The entry records the designated pool and the full amount, with the
	// split carried by the balance snapshot.
	entries := env.entries(t, user)
	if len(entries) != 1 || entries[0].Pool != model.PoolInterval || entries[0].Amount != -3 {
		t.Fatalf("entry = %+v, want one interval entry of -3", entries)
	}
	env.assertLedgerConsistent(t, user, 12)
}

func TestBookGymPoolNeverBorrows(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	instructor := env.createUser(t, "coach@gym.test", 0, 0)
	user := env.createUser(t, "member@gym.test", 1, 50)
	sessionID := env.createSession(t, instructor, model.PoolGym, 5, 5, 48*time.Hour)

	_, err := env.booking.Book(ctx, user, sessionID)
	var insufficient *ledger.InsufficientCreditsError
	if !errors.As(err, &insufficient) {
		t.Fatalf("Book err = %v, want InsufficientCreditsError", err)
	}
	if insufficient.Available != 1 {
		t.Errorf("available = %d, want 1 (interval credits excluded)", insufficient.Available)
	}
	// Nothing changed.
	bal := env.balance(t, user)
	if bal.GymCredits != 1 || bal.IntervalCredits != 50 {
		t.Errorf("balance = %d/%d, want unchanged 1/50", bal.GymCredits, bal.IntervalCredits)
	}
	if got := env.session(t, sessionID).EnrolledCount; got != 0 {
		t.Errorf("enrolled_count = %d, want 0", got)
	}
	if got := len(env.entries(t, user)); got != 0 {
		t.Errorf("got %d ledger entries, want none on failed booking", got)
	}
}

func TestBookFullSessionChargesNothing(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	instructor := env.createUser(t, "coach@gym.test", 0, 0)
	first := env.createUser(t, "first@gym.test", 10, 0)
	second := env.createUser(t, "second@gym.test", 10, 0)
	sessionID := env.createSession(t, instructor, model.PoolGym, 2, 1, 48*time.Hour)

	if _, err := env.booking.Book(ctx, first, sessionID); err != nil {
		t.Fatalf("first Book: %v", err)
	}
	if _, err := env.booking.Book(ctx, second, sessionID); !errors.Is(err, repository.ErrSessionFull) {
		t.Fatalf("second Book err = %v, want ErrSessionFull", err)
	}
	if bal := env.balance(t, second); bal.GymCredits != 10 {
		t.Errorf("loser balance = %d, want untouched 10", bal.GymCredits)
	}
	if got := len(env.entries(t, second)); got != 0 {
		t.Errorf("got %d ledger entries for failed booking, want 0", got)
	}
}

func TestBookRejectsDuplicateActiveBooking(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	instructor := env.createUser(t, "coach@gym.test", 0, 0)
	user := env.createUser(t, "member@gym.test", 10, 0)
	sessionID := env.createSession(t, instructor, model.PoolGym, 2, 5, 48*time.Hour)

	if _, err := env.booking.Book(ctx, user, sessionID); err != nil {
		t.Fatalf("Book: %v", err)
	}
	if _, err := env.booking.Book(ctx, user, sessionID); !errors.Is(err, repository.ErrAlreadyBooked) {
		t.Fatalf("second Book err = %v, want ErrAlreadyBooked", err)
	}
}

func TestBookRejectsUnbookableSessions(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	instructor := env.createUser(t, "coach@gym.test", 0, 0)
	user := env.createUser(t, "member@gym.test", 10, 0)

	started := env.createSession(t, instructor, model.PoolGym, 2, 5, -time.Hour)
	if _, err := env.booking.Book(ctx, user, started); !errors.Is(err, repository.ErrSessionStarted) {
		t.Errorf("Book started session err = %v, want ErrSessionStarted", err)
	}

	cancelled := env.createSession(t, instructor, model.PoolGym, 2, 5, 48*time.Hour)
	if _, err := env.booking.CancelSession(ctx, instructor, cancelled); err != nil {
		t.Fatalf("CancelSession: %v", err)
	}
	if _, err := env.booking.Book(ctx, user, cancelled); !errors.Is(err, repository.ErrSessionCancelled) {
		t.Errorf("Book cancelled session err = %v, want ErrSessionCancelled", err)
	}

	if _, err := env.booking.Book(ctx, user, 9999); !errors.Is(err, repository.ErrSessionNotFound) {
		t.Errorf("Book missing session err = %v, want ErrSessionNotFound", err)
	}
}

func TestCancelOutsideFeeWindowRefundsInFull(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	instructor := env.createUser(t, "coach@gym.test", 0, 0)
	user := env.createUser(t, "member@gym.test", 10, 0)
	// Exactly 24h before start counts as outside the window.
	sessionID := env.createSession(t, instructor, model.PoolGym, 4, 5, 24*time.Hour)

	booked, err := env.booking.Book(ctx, user, sessionID)
	if err != nil {
		t.Fatalf("Book: %v", err)
	}
	res, err := env.booking.Cancel(ctx, user, booked.Booking.ID)
	if err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if res.Fee != 0 || res.Refunded != 4 {
		t.Errorf("fee=%d refunded=%d, want 0/4", res.Fee, res.Refunded)
	}
	if bal := env.balance(t, user); bal.GymCredits != 10 {
		t.Errorf("balance = %d, want restored 10", bal.GymCredits)
	}
	if got := env.session(t, sessionID).EnrolledCount; got != 0 {
		t.Errorf("enrolled_count = %d, want 0 after cancellation", got)
	}

	entries := env.entries(t, user)
	if len(entries) != 2 {
		t.Fatalf("got %d ledger entries, want booking + cancellation", len(entries))
	}
	if entries[0].Category != model.CategoryCancellation || entries[0].Amount != 4 {
		t.Errorf("newest entry = %s %+d, want cancellation +4", entries[0].Category, entries[0].Amount)
	}
	env.assertLedgerConsistent(t, user, 10)
}

func TestCancelInsideFeeWindowWithholdsHalfRoundedUp(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	instructor := env.createUser(t, "coach@gym.test", 0, 0)
	user := env.createUser(t, "member@gym.test", 10, 0)
	sessionID := env.createSession(t, instructor, model.PoolGym, 5, 5, 6*time.Hour)

	booked, err := env.booking.Book(ctx, user, sessionID)
	if err != nil {
		t.Fatalf("Book: %v", err)
	}
	res, err := env.booking.Cancel(ctx, user, booked.Booking.ID)
	if err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	// Half of 5 rounds up to 3 withheld, 2 back.
	if res.Fee != 3 || res.Refunded != 2 {
		t.Errorf("fee=%d refunded=%d, want 3/2", res.Fee, res.Refunded)
	}
	if bal := env.balance(t, user); bal.GymCredits != 7 {
		t.Errorf("balance = %d, want 7", bal.GymCredits)
	}
	if res.Booking.CancellationFee == nil || *res.Booking.CancellationFee != 3 {
		t.Errorf("stored fee = %v, want 3", res.Booking.CancellationFee)
	}
	env.assertLedgerConsistent(t, user, 10)
}

func TestCancelCrossPoolRefundGoesToDesignatedPool(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	instructor := env.createUser(t, "coach@gym.test", 0, 0)
	user := env.createUser(t, "member@gym.test", 10, 2)
	sessionID := env.createSession(t, instructor, model.PoolInterval, 3, 5, 48*time.Hour)

	booked, err := env.booking.Book(ctx, user, sessionID)
	if err != nil {
		t.Fatalf("Book: %v", err)
	}
	if _, err := env.booking.Cancel(ctx, user, booked.Booking.ID); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	// The deduction took 2 interval + 1 gym; the refund lands entirely in
	// the designated interval pool.  Totals are conserved.
	bal := env.balance(t, user)
	if bal.GymCredits != 9 || bal.IntervalCredits != 3 {
		t.Errorf("balance = %d/%d, want 9/3", bal.GymCredits, bal.IntervalCredits)
	}
	if bal.Total() != 12 {
		t.Errorf("total = %d, want conserved 12", bal.Total())
	}
	env.assertLedgerConsistent(t, user, 12)
}

func TestCancelTwiceFails(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	instructor := env.createUser(t, "coach@gym.test", 0, 0)
	user := env.createUser(t, "member@gym.test", 10, 0)
	sessionID := env.createSession(t, instructor, model.PoolGym, 2, 5, 48*time.Hour)

	booked, err := env.booking.Book(ctx, user, sessionID)
	if err != nil {
		t.Fatalf("Book: %v", err)
	}
	if _, err := env.booking.Cancel(ctx, user, booked.Booking.ID); err != nil {
		t.Fatalf("first Cancel: %v", err)
	}
	if _, err := env.booking.Cancel(ctx, user, booked.Booking.ID); !errors.Is(err, repository.ErrAlreadyCancelled) {
		t.Fatalf("second Cancel err = %v, want ErrAlreadyCancelled", err)
	}
	// No double refund.
	if bal := env.balance(t, user); bal.GymCredits != 10 {
		t.Errorf("balance = %d, want 10", bal.GymCredits)
	}
}

func TestCancelForeignBookingLooksMissing(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	instructor := env.createUser(t, "coach@gym.test", 0, 0)
	owner := env.createUser(t, "owner@gym.test", 10, 0)
	other := env.createUser(t, "other@gym.test", 10, 0)
	sessionID := env.createSession(t, instructor, model.PoolGym, 2, 5, 48*time.Hour)

	booked, err := env.booking.Book(ctx, owner, sessionID)
	if err != nil {
		t.Fatalf("Book: %v", err)
	}
	if _, err := env.booking.Cancel(ctx, other, booked.Booking.ID); !errors.Is(err, repository.ErrBookingNotFound) {
		t.Fatalf("Cancel err = %v, want ErrBookingNotFound", err)
	}
}

func TestRebookAfterCancellation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	instructor := env.createUser(t, "coach@gym.test", 0, 0)
	user := env.createUser(t, "member@gym.test", 10, 0)
	sessionID := env.createSession(t, instructor, model.PoolGym, 2, 5, 48*time.Hour)

	first, err := env.booking.Book(ctx, user, sessionID)
	if err != nil {
		t.Fatalf("Book: %v", err)
	}
	if _, err := env.booking.Cancel(ctx, user, first.Booking.ID); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	second, err := env.booking.Book(ctx, user, sessionID)
	if err != nil {
		t.Fatalf("rebook: %v", err)
	}
	if second.Booking.ID == first.Booking.ID {
		t.Errorf("rebooking reused booking row %d, want a fresh row", first.Booking.ID)
	}
	history, err := env.booking.ListBookings(ctx, user)
	if err != nil {
		t.Fatalf("ListBookings: %v", err)
	}
	if len(history) != 2 {
		t.Errorf("history length = %d, want both cycles kept", len(history))
	}
}

func TestConcurrentBookingsNeverExceedCapacity(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	instructor := env.createUser(t, "coach@gym.test", 0, 0)
	const members = 8
	const capacity = 3

	users := make([]uint64, members)
	for i := range users {
		users[i] = env.createUser(t, fmt.Sprintf("member%d@gym.test", i), 10, 0)
	}
	sessionID := env.createSession(t, instructor, model.PoolGym, 2, capacity, 48*time.Hour)

	var wg sync.WaitGroup
	errs := make([]error, members)
	for i := range users {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = env.booking.Book(ctx, users[i], sessionID)
		}(i)
	}
	wg.Wait()

	var won, full int
	for _, err := range errs {
		switch {
		case err == nil:
			won++
		case errors.Is(err, repository.ErrSessionFull):
			full++
		default:
			t.Errorf("unexpected booking error: %v", err)
		}
	}
	if won != capacity {
		t.Errorf("%d bookings succeeded, want exactly %d", won, capacity)
	}
	if full != members-capacity {
		t.Errorf("%d bookings rejected full, want %d", full, members-capacity)
	}
	if got := env.session(t, sessionID).EnrolledCount; got != capacity {
		t.Errorf("enrolled_count = %d, want %d", got, capacity)
	}
}

func TestCancelSessionRefundsEveryoneInFull(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	instructor := env.createUser(t, "coach@gym.test", 0, 0)
	userA := env.createUser(t, "a@gym.test", 10, 0)
	userB := env.createUser(t, "b@gym.test", 10, 0)
	// Inside the fee window: member-initiated cancellation would charge a
	// fee, instructor-initiated must not.
	sessionID := env.createSession(t, instructor, model.PoolGym, 4, 5, 6*time.Hour)

	if _, err := env.booking.Book(ctx, userA, sessionID); err != nil {
		t.Fatalf("Book A: %v", err)
	}
	if _, err := env.booking.Book(ctx, userB, sessionID); err != nil {
		t.Fatalf("Book B: %v", err)
	}

	refunded, err := env.booking.CancelSession(ctx, instructor, sessionID)
	if err != nil {
		t.Fatalf("CancelSession: %v", err)
	}
	if refunded != 2 {
		t.Errorf("refunded %d bookings, want 2", refunded)
	}
	if got := env.session(t, sessionID).Status; got != model.SessionCancelled {
		t.Errorf("session status = %q, want CANCELLED", got)
	}
	for _, uid := range []uint64{userA, userB} {
		if bal := env.balance(t, uid); bal.GymCredits != 10 {
			t.Errorf("user %d balance = %d, want full refund to 10", uid, bal.GymCredits)
		}
		env.assertLedgerConsistent(t, uid, 10)
	}
}

func TestCancelSessionRequiresOwnership(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	instructor := env.createUser(t, "coach@gym.test", 0, 0)
	impostor := env.createUser(t, "impostor@gym.test", 0, 0)
	sessionID := env.createSession(t, instructor, model.PoolGym, 2, 5, 48*time.Hour)

	if _, err := env.booking.CancelSession(ctx, impostor, sessionID); !errors.Is(err, repository.ErrForbidden) {
		t.Fatalf("CancelSession err = %v, want ErrForbidden", err)
	}
	if got := env.session(t, sessionID).Status; got != model.SessionScheduled {
		t.Errorf("session status = %q, want still SCHEDULED", got)
	}
}
