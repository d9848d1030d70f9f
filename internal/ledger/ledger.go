// Package ledger implements the credit-pool deduction, refund and
// cancellation-fee policy as pure functions.  It performs no I/O; the
// service layer applies the results inside a database transaction.
package ledger

import (
	"errors"
	"fmt"
	"time"

	"github.com/iliyamo/gym-credit-booking/internal/model"
)

// Cancellation fee policy: cancelling closer than FeeWindow to the session
// start withholds FeeNumerator/FeeDenominator of the booking cost, rounded up.
const (
	FeeWindow      = 24 * time.Hour
	feeNumerator   = 1
	feeDenominator = 2
)

// ErrNegativeAmount is returned when a caller passes a negative amount to an
// operation that only accepts non-negative ones.  Amount signs are a boundary
// concern; the policy functions refuse to guess what a negative input meant.
var ErrNegativeAmount = errors.New("ledger: negative amount")

// InsufficientCreditsError reports a deduction that could not be covered.
// Required is the amount requested; Available is what the relevant pool (or
// pool combination, when borrowing applies) actually held.
type InsufficientCreditsError struct {
	Required  int64
	Available int64
	Pool      model.CreditPool
}

func (e *InsufficientCreditsError) Error() string {
	return fmt.Sprintf("insufficient credits: required %d, available %d in %s pool",
		e.Required, e.Available, e.Pool)
}

// Deduction describes how a deduction was split across the two pools and
// what each pool holds afterwards.
type Deduction struct {
	GymAfter      int64
	IntervalAfter int64
	FromGym       int64
	FromInterval  int64
}

// Deduct computes a deduction of amount credits against the given balances,
// honouring the designated pool of the session being paid for.
//
// Policy: when the designated pool covers the full amount, only that pool is
// touched.  Interval-pool deductions may borrow the shortfall from gym
// credits after exhausting the interval pool.  Gym-pool deductions never
// borrow from interval credits; the restricted pool stays reserved for
// interval-type activities.
//
// Deduct fails without partial results when funds do not cover: for an
// interval-pool deduction when gym+interval < amount, for a gym-pool
// deduction when gym < amount.
func Deduct(gym, interval, amount int64, pool model.CreditPool) (Deduction, error) {
	if amount < 0 {
		return Deduction{}, ErrNegativeAmount
	}
	if !pool.Valid() {
		return Deduction{}, fmt.Errorf("ledger: unknown pool %q", pool)
	}
	switch pool {
	case model.PoolGym:
		if gym < amount {
			return Deduction{}, &InsufficientCreditsError{Required: amount, Available: gym, Pool: pool}
		}
		return Deduction{
			GymAfter:      gym - amount,
			IntervalAfter: interval,
			FromGym:       amount,
		}, nil
	default: // model.PoolInterval
		if interval >= amount {
			return Deduction{
				GymAfter:      gym,
				IntervalAfter: interval - amount,
				FromInterval:  amount,
			}, nil
		}
		if gym+interval < amount {
			return Deduction{}, &InsufficientCreditsError{Required: amount, Available: gym + interval, Pool: pool}
		}
		shortfall := amount - interval
		return Deduction{
			GymAfter:      gym - shortfall,
			IntervalAfter: 0,
			FromGym:       shortfall,
			FromInterval:  interval,
		}, nil
	}
}

// Remove deducts amount strictly from the named pool with no cross-pool
// borrowing.  Used by the admin adjuster, where the operator names the exact
// pool to change.
func Remove(gym, interval, amount int64, pool model.CreditPool) (gymAfter, intervalAfter int64, err error) {
	if amount < 0 {
		return 0, 0, ErrNegativeAmount
	}
	switch pool {
	case model.PoolGym:
		if gym < amount {
			return 0, 0, &InsufficientCreditsError{Required: amount, Available: gym, Pool: pool}
		}
		return gym - amount, interval, nil
	case model.PoolInterval:
		if interval < amount {
			return 0, 0, &InsufficientCreditsError{Required: amount, Available: interval, Pool: pool}
		}
		return gym, interval - amount, nil
	default:
		return 0, 0, fmt.Errorf("ledger: unknown pool %q", pool)
	}
}

// Add credits amount to the named pool unconditionally.  Used for refunds,
// admin additions and monthly resets.  amount must be non-negative, which
// the boundaries enforce before calling; balances therefore never go
// negative through Add.
func Add(gym, interval, amount int64, pool model.CreditPool) (gymAfter, intervalAfter int64, err error) {
	if amount < 0 {
		return 0, 0, ErrNegativeAmount
	}
	switch pool {
	case model.PoolGym:
		return gym + amount, interval, nil
	case model.PoolInterval:
		return gym, interval + amount, nil
	default:
		return 0, 0, fmt.Errorf("ledger: unknown pool %q", pool)
	}
}

// CancellationFee returns the credits withheld when cancelling a booking of
// the given cost with untilStart remaining before the session begins.
// Cancellations at least FeeWindow in advance are free; later ones forfeit
// half the cost, rounded up.
func CancellationFee(cost int64, untilStart time.Duration) int64 {
	if untilStart >= FeeWindow {
		return 0
	}
	if cost <= 0 {
		return 0
	}
	return (cost*feeNumerator + feeDenominator - 1) / feeDenominator
}
