package service

import (
	"context"
	"errors"
	"testing"

	"github.com/iliyamo/gym-credit-booking/internal/ledger"
	"github.com/iliyamo/gym-credit-booking/internal/model"
	"github.com/iliyamo/gym-credit-booking/internal/repository"
)

func TestAdjustAddsToNamedPool(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	admin := env.createUser(t, "admin@gym.test", 0, 0)
	user := env.createUser(t, "member@gym.test", 5, 2)

	bal, err := env.credit.Adjust(ctx, admin, user, 3, model.PoolInterval)
	if err != nil {
		t.Fatalf("Adjust: %v", err)
	}
	if bal.GymCredits != 5 || bal.IntervalCredits != 5 {
		t.Errorf("balance = %d/%d, want 5/5", bal.GymCredits, bal.IntervalCredits)
	}

	entries := env.entries(t, user)
	if len(entries) != 1 {
		t.Fatalf("got %d ledger entries, want 1", len(entries))
	}
	e := entries[0]
	if e.Category != model.CategoryAdminAdjustment || e.Amount != 3 || e.Pool != model.PoolInterval {
		t.Errorf("entry = %s %+d %s, want admin_adjustment +3 interval", e.Category, e.Amount, e.Pool)
	}
	if e.AdjustedBy == nil || *e.AdjustedBy != admin {
		t.Errorf("adjusted_by = %v, want %d", e.AdjustedBy, admin)
	}
	env.assertLedgerConsistent(t, user, 7)
}

func TestAdjustRemovesStrictlyFromNamedPool(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	admin := env.createUser(t, "admin@gym.test", 0, 0)
	user := env.createUser(t, "member@gym.test", 5, 2)

	if _, err := env.credit.Adjust(ctx, admin, user, -4, model.PoolGym); err != nil {
		t.Fatalf("Adjust: %v", err)
	}
	bal := env.balance(t, user)
	if bal.GymCredits != 1 || bal.IntervalCredits != 2 {
		t.Errorf("balance = %d/%d, want 1/2", bal.GymCredits, bal.IntervalCredits)
	}

	// Removal never borrows across pools, even when the combined balance
	// would cover it.
	_, err := env.credit.Adjust(ctx, admin, user, -3, model.PoolInterval)
	var insufficient *ledger.InsufficientCreditsError
	if !errors.As(err, &insufficient) {
		t.Fatalf("Adjust err = %v, want InsufficientCreditsError", err)
	}
	if insufficient.Available != 2 {
		t.Errorf("available = %d, want 2", insufficient.Available)
	}
	if got := env.balance(t, user); got.GymCredits != 1 || got.IntervalCredits != 2 {
		t.Errorf("balance changed on failed adjustment: %d/%d", got.GymCredits, got.IntervalCredits)
	}
}

func TestAdjustRejectsZeroAndUnknownPool(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	admin := env.createUser(t, "admin@gym.test", 0, 0)
	user := env.createUser(t, "member@gym.test", 5, 2)

	if _, err := env.credit.Adjust(ctx, admin, user, 0, model.PoolGym); !errors.Is(err, repository.ErrInvalidAdjustment) {
		t.Errorf("zero amount err = %v, want ErrInvalidAdjustment", err)
	}
	if _, err := env.credit.Adjust(ctx, admin, user, 5, model.CreditPool("platinum")); !errors.Is(err, repository.ErrInvalidAdjustment) {
		t.Errorf("unknown pool err = %v, want ErrInvalidAdjustment", err)
	}
	if got := len(env.entries(t, user)); got != 0 {
		t.Errorf("got %d ledger entries from rejected adjustments, want 0", got)
	}
}

func TestAdjustUnknownUser(t *testing.T) {
	env := newTestEnv(t)
	admin := env.createUser(t, "admin@gym.test", 0, 0)

	if _, err := env.credit.Adjust(context.Background(), admin, 9999, 5, model.PoolGym); !errors.Is(err, repository.ErrUserNotFound) {
		t.Fatalf("Adjust err = %v, want ErrUserNotFound", err)
	}
}

func TestResetRefillsToMonthlyAmounts(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	admin := env.createUser(t, "admin@gym.test", 0, 0)
	// Below the monthly values in one pool, above in the other; the service
	// was built with monthly values 10 gym / 4 interval.
	user := env.createUser(t, "member@gym.test", 3, 7)

	bal, err := env.credit.Reset(ctx, admin, user)
	if err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if bal.GymCredits != 10 || bal.IntervalCredits != 4 {
		t.Errorf("balance = %d/%d, want 10/4", bal.GymCredits, bal.IntervalCredits)
	}
	if bal.LastRefilled == nil || !bal.LastRefilled.Equal(testNow) {
		t.Errorf("last_refilled = %v, want %v", bal.LastRefilled, testNow)
	}
	if bal.NextRefillDate == nil || !bal.NextRefillDate.Equal(testNow.AddDate(0, 1, 0)) {
		t.Errorf("next_refill_date = %v, want one month out", bal.NextRefillDate)
	}

	// One entry per pool that changed: +7 gym, -3 interval.
	entries := env.entries(t, user)
	if len(entries) != 2 {
		t.Fatalf("got %d ledger entries, want 2", len(entries))
	}
	byPool := map[model.CreditPool]int64{}
	for _, e := range entries {
		if e.Category != model.CategoryMonthlyReset {
			t.Errorf("entry category = %s, want monthly_reset", e.Category)
		}
		byPool[e.Pool] = e.Amount
	}
	if byPool[model.PoolGym] != 7 || byPool[model.PoolInterval] != -3 {
		t.Errorf("reset deltas = %v, want gym +7 interval -3", byPool)
	}
	env.assertLedgerConsistent(t, user, 10)
}

func TestResetAtMonthlyValuesWritesNoEntries(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	admin := env.createUser(t, "admin@gym.test", 0, 0)
	user := env.createUser(t, "member@gym.test", 10, 4)

	if _, err := env.credit.Reset(ctx, admin, user); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if got := len(env.entries(t, user)); got != 0 {
		t.Errorf("got %d ledger entries from no-op reset, want 0", got)
	}
}

func TestTransactionHistoryIsNewestFirstAndPaged(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	admin := env.createUser(t, "admin@gym.test", 0, 0)
	user := env.createUser(t, "member@gym.test", 0, 0)

	for i := 0; i < 5; i++ {
		if _, err := env.credit.Adjust(ctx, admin, user, 1, model.PoolGym); err != nil {
			t.Fatalf("Adjust #%d: %v", i, err)
		}
	}
	page, err := env.credit.GetTransactions(ctx, user, 2, 0)
	if err != nil {
		t.Fatalf("GetTransactions: %v", err)
	}
	if len(page) != 2 {
		t.Fatalf("page length = %d, want 2", len(page))
	}
	if page[0].Seq < page[1].Seq {
		t.Errorf("page not newest-first: seq %d before %d", page[0].Seq, page[1].Seq)
	}
	rest, err := env.credit.GetTransactions(ctx, user, 10, 2)
	if err != nil {
		t.Fatalf("GetTransactions offset: %v", err)
	}
	if len(rest) != 3 {
		t.Errorf("remaining entries = %d, want 3", len(rest))
	}
	env.assertLedgerConsistent(t, user, 0)
}
