package service

import (
	"context"
	"database/sql"
	"time"

	"github.com/iliyamo/gym-credit-booking/internal/ledger"
	"github.com/iliyamo/gym-credit-booking/internal/model"
	"github.com/iliyamo/gym-credit-booking/internal/repository"
)

// CreditService exposes balance reads, the transaction history and the two
// privileged mutations that live outside the booking flow: manual admin
// adjustments and the monthly refill.  Both still write ledger entries, so
// every balance change remains reconstructible from the log.
type CreditService struct {
	db      *sql.DB
	credits *repository.CreditRepo
	txlog   *repository.TransactionRepo

	monthlyGym      int64
	monthlyInterval int64

	now func() time.Time
}

// NewCreditService wires the credit service.  monthlyGym and
// monthlyInterval are the pool values a monthly reset refills to.
func NewCreditService(db *sql.DB, credits *repository.CreditRepo, txlog *repository.TransactionRepo,
	monthlyGym, monthlyInterval int64) *CreditService {
	if db == nil || credits == nil || txlog == nil {
		panic("nil dependency passed to NewCreditService")
	}
	return &CreditService{
		db:              db,
		credits:         credits,
		txlog:           txlog,
		monthlyGym:      monthlyGym,
		monthlyInterval: monthlyInterval,
		now:             func() time.Time { return time.Now().UTC() },
	}
}

// GetBalance returns the stored balance for a user.
func (s *CreditService) GetBalance(ctx context.Context, userID uint64) (*model.CreditBalance, error) {
	return s.credits.GetByUser(ctx, userID)
}

// GetTransactions returns a page of the user's ledger entries, newest
// first.
func (s *CreditService) GetTransactions(ctx context.Context, userID uint64, limit, offset int) ([]model.Transaction, error) {
	return s.txlog.ListByUser(ctx, userID, limit, offset)
}

// Adjust applies a manual credit change to the named pool of the target
// user.  amount must be nonzero: positive adds, negative removes from that
// pool only (admin removals never borrow across pools).  Exactly one
// admin_adjustment ledger entry records the change and who made it.
func (s *CreditService) Adjust(ctx context.Context, adminID, targetUserID uint64, amount int64, pool model.CreditPool) (*model.CreditBalance, error) {
	if amount == 0 || !pool.Valid() {
		return nil, repository.ErrInvalidAdjustment
	}
	for attempt := 0; attempt < maxBalanceRetries; attempt++ {
		bal, conflict, err := s.adjustOnce(ctx, adminID, targetUserID, amount, pool)
		if err != nil {
			return nil, err
		}
		if conflict {
			continue
		}
		return bal, nil
	}
	return nil, repository.ErrBalanceConflict
}

func (s *CreditService) adjustOnce(ctx context.Context, adminID, targetUserID uint64, amount int64, pool model.CreditPool) (*model.CreditBalance, bool, error) {
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

	bal, err := s.credits.GetTx(ctx, tx, targetUserID)
	if err != nil {
		return nil, false, err
	}
	var gymAfter, intervalAfter int64
	if amount > 0 {
		gymAfter, intervalAfter, err = ledger.Add(bal.GymCredits, bal.IntervalCredits, amount, pool)
	} else {
		gymAfter, intervalAfter, err = ledger.Remove(bal.GymCredits, bal.IntervalCredits, -amount, pool)
	}
	if err != nil {
		return nil, false, err
	}
	applied, err := s.credits.ApplyTx(ctx, tx, targetUserID,
		bal.GymCredits, bal.IntervalCredits, gymAfter, intervalAfter)
	if err != nil {
		return nil, false, err
	}
	if !applied {
		return nil, true, nil
	}
	entry := &model.Transaction{
		UserID:        targetUserID,
		Amount:        amount,
		Pool:          pool,
		Category:      model.CategoryAdminAdjustment,
		AdjustedBy:    &adminID,
		GymAfter:      gymAfter,
		IntervalAfter: intervalAfter,
		CreatedAt:     now,
	}
	if err := s.txlog.AppendTx(ctx, tx, entry); err != nil {
		return nil, false, err
	}
	if err := tx.Commit(); err != nil {
		return nil, false, err
	}
	committed = true

	newBal := *bal
	newBal.GymCredits = gymAfter
	newBal.IntervalCredits = intervalAfter
	return &newBal, false, nil
}

// Reset refills the target user's pools to the configured monthly amounts,
// stamping the refill bookkeeping fields.  One monthly_reset ledger entry
// is written per pool whose balance actually changed; a reset that changes
// nothing writes no entries.
func (s *CreditService) Reset(ctx context.Context, adminID, targetUserID uint64) (*model.CreditBalance, error) {
	for attempt := 0; attempt < maxBalanceRetries; attempt++ {
		bal, conflict, err := s.resetOnce(ctx, adminID, targetUserID)
		if err != nil {
			return nil, err
		}
		if conflict {
			continue
		}
		return bal, nil
	}
	return nil, repository.ErrBalanceConflict
}

func (s *CreditService) resetOnce(ctx context.Context, adminID, targetUserID uint64) (*model.CreditBalance, bool, error) {
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

	bal, err := s.credits.GetTx(ctx, tx, targetUserID)
	if err != nil {
		return nil, false, err
	}
	// A balance already at the monthly values only needs its refill dates
	// stamped; skipping ApplyTx avoids a no-op UPDATE, whose zero affected
	// rows would be indistinguishable from a lost guard.
	if bal.GymCredits != s.monthlyGym || bal.IntervalCredits != s.monthlyInterval {
		applied, err := s.credits.ApplyTx(ctx, tx, targetUserID,
			bal.GymCredits, bal.IntervalCredits, s.monthlyGym, s.monthlyInterval)
		if err != nil {
			return nil, false, err
		}
		if !applied {
			return nil, true, nil
		}
	}
	next := now.AddDate(0, 1, 0)
	if err := s.credits.SetRefillTx(ctx, tx, targetUserID, now, next); err != nil {
		return nil, false, err
	}
	deltas := []struct {
		pool  model.CreditPool
		delta int64
	}{
		{model.PoolGym, s.monthlyGym - bal.GymCredits},
		{model.PoolInterval, s.monthlyInterval - bal.IntervalCredits},
	}
	for _, d := range deltas {
		if d.delta == 0 {
			continue
		}
		entry := &model.Transaction{
			UserID:        targetUserID,
			Amount:        d.delta,
			Pool:          d.pool,
			Category:      model.CategoryMonthlyReset,
			AdjustedBy:    &adminID,
			GymAfter:      s.monthlyGym,
			IntervalAfter: s.monthlyInterval,
			CreatedAt:     now,
		}
		if err := s.txlog.AppendTx(ctx, tx, entry); err != nil {
			return nil, false, err
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, false, err
	}
	committed = true

	newBal := *bal
	newBal.GymCredits = s.monthlyGym
	newBal.IntervalCredits = s.monthlyInterval
	newBal.LastRefilled = &now
	newBal.NextRefillDate = &next
	return &newBal, false, nil
}
