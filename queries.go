package dcolock

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/xraph/dcolock/access"
	"github.com/xraph/dcolock/event"
	"github.com/xraph/dcolock/sale"
	"github.com/xraph/dcolock/types"
	"github.com/xraph/dcolock/vesting"
)

// Countdown is the time left until each lifecycle mark, zero once passed.
type Countdown struct {
	SaleEnd    time.Duration `json:"sale_end"`
	SevenMonth time.Duration `json:"seven_month"`
	OneYear    time.Duration `json:"one_year"`
}

// State returns a copy of the sale state.
func (l *Ledger) State(ctx context.Context) (*sale.State, error) {
	var st *sale.State
	err := l.view(ctx, func(context.Context) error {
		st = l.state.Clone()
		return nil
	})
	return st, err
}

// TokenPrice returns the current token price.
func (l *Ledger) TokenPrice(ctx context.Context) (types.Amount, error) {
	st, err := l.State(ctx)
	if err != nil {
		return types.Amount{}, err
	}
	return st.TokenPrice, nil
}

// TokenSold returns the cumulative allocated tokens.
func (l *Ledger) TokenSold(ctx context.Context) (types.Amount, error) {
	st, err := l.State(ctx)
	if err != nil {
		return types.Amount{}, err
	}
	return st.TokenSold, nil
}

// Available returns the held tokens not committed to buyers or charity.
func (l *Ledger) Available(ctx context.Context) (types.Amount, error) {
	var available types.Amount
	err := l.view(ctx, func(ctx context.Context) error {
		bal, err := l.balance(ctx)
		if err != nil {
			return err
		}
		available = l.state.Available(bal)
		return nil
	})
	return available, err
}

// GetLock returns the lock of account or ErrLockNotFound.
func (l *Ledger) GetLock(ctx context.Context, account common.Address) (*vesting.Lock, error) {
	var lk *vesting.Lock
	err := l.view(ctx, func(ctx context.Context) error {
		var err error
		lk, err = l.store.GetLock(ctx, account)
		return err
	})
	return lk, err
}

// ListLocks pages through locks in creation order.
func (l *Ledger) ListLocks(ctx context.Context, opts vesting.ListOpts) ([]*vesting.Lock, error) {
	var locks []*vesting.Lock
	err := l.view(ctx, func(ctx context.Context) error {
		var err error
		locks, err = l.store.ListLocks(ctx, opts)
		return err
	})
	return locks, err
}

// Claimable returns what a claim by account would release now.
func (l *Ledger) Claimable(ctx context.Context, account common.Address) (types.Amount, vesting.Tranche, error) {
	var (
		amount   types.Amount
		tranches vesting.Tranche
	)
	err := l.view(ctx, func(ctx context.Context) error {
		lk, err := l.lock(ctx, account)
		if err != nil || lk == nil {
			return err
		}
		amount, tranches = lk.Claimable(l.clock.Now(), l.state.SevenMonthMark, l.state.OneYearMark)
		return nil
	})
	return amount, tranches, err
}

// TimeUntilVest returns the time left until the sale ends and until each
// tranche vests.
func (l *Ledger) TimeUntilVest(ctx context.Context) (Countdown, error) {
	var c Countdown
	err := l.view(ctx, func(context.Context) error {
		now := l.clock.Now()
		until := func(t time.Time) time.Duration {
			return max(t.Sub(now), 0)
		}
		c = Countdown{
			SaleEnd:    until(l.state.SaleEndTime),
			SevenMonth: until(l.state.SevenMonthMark),
			OneYear:    until(l.state.OneYearMark),
		}
		return nil
	})
	return c, err
}

// HasRole reports whether account holds role.
func (l *Ledger) HasRole(ctx context.Context, role access.Role, account common.Address) (bool, error) {
	var ok bool
	err := l.view(ctx, func(context.Context) error {
		ok = l.roles.Has(role, account)
		return nil
	})
	return ok, err
}

// Members lists the accounts holding role.
func (l *Ledger) Members(ctx context.Context, role access.Role) ([]common.Address, error) {
	var members []common.Address
	err := l.view(ctx, func(context.Context) error {
		members = l.roles.Members(role)
		return nil
	})
	return members, err
}

// Events returns the persisted event log filtered by opts.
func (l *Ledger) Events(ctx context.Context, opts event.ListOpts) ([]*event.Event, error) {
	var events []*event.Event
	err := l.view(ctx, func(ctx context.Context) error {
		var err error
		events, err = l.store.ListEvents(ctx, opts)
		return err
	})
	return events, err
}
