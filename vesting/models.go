// Package vesting holds the per-account two-tranche lock records and the
// arithmetic for merging new allocations and releasing vested tokens.
package vesting

import (
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/xraph/dcolock/id"
	"github.com/xraph/dcolock/types"
)

// Tranche is a bitmask of release portions.
type Tranche uint8

const (
	// TrancheSevenMonth is the half released at the seven-month mark.
	TrancheSevenMonth Tranche = 1 << iota
	// TrancheOneYear is the half released at the one-year mark.
	TrancheOneYear

	// TrancheNone means nothing was released.
	TrancheNone Tranche = 0
	// TrancheBoth means both portions were released together.
	TrancheBoth = TrancheSevenMonth | TrancheOneYear
)

// Has reports whether t includes other.
func (t Tranche) Has(other Tranche) bool { return t&other == other && other != 0 }

func (t Tranche) String() string {
	var parts []string
	if t.Has(TrancheSevenMonth) {
		parts = append(parts, "seven_month")
	}
	if t.Has(TrancheOneYear) {
		parts = append(parts, "one_year")
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "+")
}

// Lock is the vesting record of one account. It is created on the first
// allocation and never deleted.
type Lock struct {
	types.Entity

	ID                id.LockID      `json:"id"`
	Account           common.Address `json:"account"`
	TotalAmount       types.Amount   `json:"total_amount"`
	SevenMonthAmount  types.Amount   `json:"seven_month_amount"`
	OneYearAmount     types.Amount   `json:"one_year_amount"`
	SevenMonthClaimed types.Amount   `json:"seven_month_claimed"`
	OneYearClaimed    types.Amount   `json:"one_year_claimed"`
	LockTimestamp     time.Time      `json:"lock_timestamp"`
}

// NewLock returns an empty lock for account. Merge initializes it.
func NewLock(account common.Address) *Lock {
	return &Lock{
		ID:      id.NewLockID(),
		Account: account,
	}
}

// Clone returns an independent copy.
func (l *Lock) Clone() *Lock {
	c := *l
	return &c
}

// IsEmpty reports whether nothing was ever locked.
func (l *Lock) IsEmpty() bool { return l.TotalAmount.IsZero() }

// Merge adds amount to the lock: floor(amount/2) to the seven-month tranche
// and the remainder to the one-year tranche. The first merge stamps
// LockTimestamp with now; later merges leave it untouched.
//
// ok is false if any counter would overflow, in which case l is unchanged.
func (l *Lock) Merge(amount types.Amount, now time.Time) (ok bool) {
	seven := amount.Half()
	oneYear, _ := amount.Sub(seven)

	total, o1 := l.TotalAmount.Add(amount)
	sevenTotal, o2 := l.SevenMonthAmount.Add(seven)
	oneYearTotal, o3 := l.OneYearAmount.Add(oneYear)
	if o1 || o2 || o3 {
		return false
	}

	if l.IsEmpty() && l.LockTimestamp.IsZero() {
		l.LockTimestamp = now.UTC()
	}
	l.TotalAmount = total
	l.SevenMonthAmount = sevenTotal
	l.OneYearAmount = oneYearTotal
	return true
}

// Remaining returns the unclaimed amount of each tranche.
func (l *Lock) Remaining() (sevenMonth, oneYear types.Amount) {
	return l.SevenMonthAmount.SaturatingSub(l.SevenMonthClaimed),
		l.OneYearAmount.SaturatingSub(l.OneYearClaimed)
}

// Outstanding returns the total locked but not yet claimed.
func (l *Lock) Outstanding() types.Amount {
	seven, oneYear := l.Remaining()
	sum, _ := seven.Add(oneYear)
	return sum
}

// Claimable returns what may be released at now given the tranche marks,
// and which tranches contribute to it.
func (l *Lock) Claimable(now, sevenMonthMark, oneYearMark time.Time) (types.Amount, Tranche) {
	seven, oneYear := l.Remaining()

	var (
		amount   types.Amount
		tranches Tranche
	)
	if !now.Before(sevenMonthMark) && !seven.IsZero() {
		amount = seven
		tranches |= TrancheSevenMonth
	}
	if !now.Before(oneYearMark) && !oneYear.IsZero() {
		amount, _ = amount.Add(oneYear)
		tranches |= TrancheOneYear
	}
	return amount, tranches
}

// Release marks the given tranches fully claimed.
func (l *Lock) Release(tranches Tranche) {
	if tranches.Has(TrancheSevenMonth) {
		l.SevenMonthClaimed = l.SevenMonthAmount
	}
	if tranches.Has(TrancheOneYear) {
		l.OneYearClaimed = l.OneYearAmount
	}
}
