package dcolock

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	"github.com/xraph/dcolock/access"
	"github.com/xraph/dcolock/event"
	"github.com/xraph/dcolock/types"
	"github.com/xraph/dcolock/vesting"
)

// Claim is the outcome of a vested-token release.
type Claim struct {
	Account common.Address `json:"account"`
	Amount  types.Amount   `json:"amount"`

	// Stage is StageOneYear once the one-year mark has passed and
	// StageSevenMonth before it. Tranches lists the portions paid.
	Stage    uint8           `json:"stage"`
	Tranches vesting.Tranche `json:"tranches"`

	Lock *vesting.Lock `json:"lock"`
}

// Claim releases every vested and unclaimed tranche of the caller's lock
// and transfers it to the caller.
func (l *Ledger) Claim(ctx context.Context) (*Claim, error) {
	var out *Claim
	err := l.run(ctx, OpClaim, func(t *txn) error {
		caller, ok := access.CallerFrom(ctx)
		if !ok || caller == (common.Address{}) {
			return &RoleError{Account: caller}
		}

		prior, err := l.lock(t.ctx, caller)
		if err != nil {
			return err
		}
		if prior == nil || prior.IsEmpty() {
			return ErrNothingLocked
		}

		st := t.state
		if t.now.Before(st.SevenMonthMark) {
			return &TimeError{Err: ErrSevenMonthLockActive, Now: t.now, Until: st.SevenMonthMark}
		}
		amount, tranches := prior.Claimable(t.now, st.SevenMonthMark, st.OneYearMark)
		if tranches == vesting.TrancheNone {
			if t.now.Before(st.OneYearMark) {
				return &TimeError{Err: ErrOneYearLockActive, Now: t.now, Until: st.OneYearMark}
			}
			return ErrNothingToWithdraw
		}

		bal, err := l.balance(t.ctx)
		if err != nil {
			return err
		}
		if amount.Gt(bal) {
			l.logger.Error("dcolock: claimable exceeds held balance",
				"account", caller.Hex(),
				"claimable", amount.String(),
				"balance", bal.String(),
			)
			return amountErr(ErrInsufficientContractBalance, "claimable", amount, bal)
		}

		lk := prior.Clone()
		lk.Release(tranches)
		t.put(lk, prior)
		if st.TotalClaimed, err = add("total_claimed", st.TotalClaimed, amount); err != nil {
			return err
		}

		stage := event.StageSevenMonth
		if !t.now.Before(st.OneYearMark) {
			stage = event.StageOneYear
		}
		evt := t.emit(event.TypeTokensClaimed, lk)
		evt.Account = caller
		evt.Amount = amount
		evt.Stage = stage
		evt.Tranches = tranches

		t.transfer = func(ctx context.Context) error {
			return l.token.TransferOut(ctx, caller, amount)
		}
		out = &Claim{
			Account:  caller,
			Amount:   amount,
			Stage:    stage,
			Tranches: tranches,
			Lock:     lk.Clone(),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Withdraw sends amount of the unallocated inventory to the calling owner.
// It is only allowed after the sale has ended.
func (l *Ledger) Withdraw(ctx context.Context, amount types.Amount) error {
	return l.run(ctx, OpWithdraw, func(t *txn) error {
		_, err := l.withdraw(t, func(available types.Amount) (types.Amount, error) {
			if amount.IsZero() {
				return types.Amount{}, ErrInvalidAmount
			}
			if amount.Gt(available) {
				return types.Amount{}, amountErr(ErrInsufficientAvailable, "amount", amount, available)
			}
			return amount, nil
		})
		return err
	})
}

// WithdrawAll sends all unallocated inventory to the calling owner and
// returns the amount sent.
func (l *Ledger) WithdrawAll(ctx context.Context) (types.Amount, error) {
	var sent types.Amount
	err := l.run(ctx, OpWithdrawAll, func(t *txn) error {
		var err error
		sent, err = l.withdraw(t, func(available types.Amount) (types.Amount, error) {
			if available.IsZero() {
				return types.Amount{}, ErrNothingAvailable
			}
			return available, nil
		})
		return err
	})
	if err != nil {
		return types.Amount{}, err
	}
	return sent, nil
}

func (l *Ledger) withdraw(t *txn, pick func(available types.Amount) (types.Amount, error)) (types.Amount, error) {
	owner, err := l.authorize(t.ctx, access.RoleOwner)
	if err != nil {
		return types.Amount{}, err
	}
	st := t.state
	if !st.Ended(t.now) {
		return types.Amount{}, &TimeError{Err: ErrSaleStillActive, Now: t.now, Until: st.SaleEndTime}
	}

	bal, err := l.balance(t.ctx)
	if err != nil {
		return types.Amount{}, err
	}
	amount, err := pick(st.Available(bal))
	if err != nil {
		return types.Amount{}, err
	}
	if st.OwnerWithdrawn, err = add("owner_withdrawn", st.OwnerWithdrawn, amount); err != nil {
		return types.Amount{}, err
	}

	evt := t.emit(event.TypeOwnerWithdrawal, nil)
	evt.Account = owner
	evt.Amount = amount
	t.transfer = func(ctx context.Context) error {
		return l.token.TransferOut(ctx, owner, amount)
	}
	return amount, nil
}

// FlushDonations sends the pending donation balance to the charity and
// returns the amount sent. The caller must hold the releaser role.
func (l *Ledger) FlushDonations(ctx context.Context) (types.Amount, error) {
	var sent types.Amount
	err := l.run(ctx, OpFlushDonations, func(t *txn) error {
		if _, err := l.authorize(ctx, access.RoleReleaser); err != nil {
			return err
		}
		st := t.state
		if st.TotalDonations.IsZero() {
			return ErrNoDonations
		}
		charity := st.Charity
		if charity == (common.Address{}) {
			return ErrInvalidAddress
		}

		bal, err := l.balance(t.ctx)
		if err != nil {
			return err
		}
		amount := st.TotalDonations
		if amount.Gt(bal) {
			l.logger.Error("dcolock: pending donations exceed held balance",
				"donations", amount.String(),
				"balance", bal.String(),
			)
			return amountErr(ErrInsufficientContractBalance, "total_donations", amount, bal)
		}
		if st.TotalFlushed, err = add("total_flushed", st.TotalFlushed, amount); err != nil {
			return err
		}
		st.TotalDonations = types.Amount{}

		evt := t.emit(event.TypeDonationsFlushed, nil)
		evt.Account = charity
		evt.Amount = amount
		t.transfer = func(ctx context.Context) error {
			return l.token.TransferOut(ctx, charity, amount)
		}
		sent = amount
		return nil
	})
	if err != nil {
		return types.Amount{}, err
	}
	return sent, nil
}

// Deposit pulls amount of sale inventory from the calling wallet supplier.
func (l *Ledger) Deposit(ctx context.Context, amount types.Amount) error {
	return l.run(ctx, OpDeposit, func(t *txn) error {
		supplier, err := l.authorize(ctx, access.RoleWalletSupplier)
		if err != nil {
			return err
		}
		if amount.IsZero() {
			return ErrInvalidAmount
		}

		evt := t.emit(event.TypeTokensDeposited, nil)
		evt.Account = supplier
		evt.Amount = amount
		t.transfer = func(ctx context.Context) error {
			return l.token.TransferIn(ctx, supplier, amount)
		}
		return nil
	})
}
