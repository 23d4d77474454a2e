package dcolock

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/xraph/dcolock/access"
	"github.com/xraph/dcolock/event"
	"github.com/xraph/dcolock/sale"
	"github.com/xraph/dcolock/types"
	"github.com/xraph/dcolock/vesting"
)

// Allocation is the outcome of a recorded purchase.
type Allocation struct {
	Account        common.Address `json:"account"`
	PurchaseTokens types.Amount   `json:"purchase_tokens"`
	DonationTokens types.Amount   `json:"donation_tokens"`

	// Price is the price the tokens were computed at. NewPrice is the price
	// after repricing, equal to Price if no threshold was crossed.
	Price        types.Amount `json:"price"`
	NewPrice     types.Amount `json:"new_price"`
	PriceUpdates int          `json:"price_updates"`

	// Lock is the buyer's lock after the merge, nil for a donation only.
	Lock *vesting.Lock `json:"lock,omitempty"`
}

// Quote converts reference-currency amounts into tokens at the current price.
// The purchase part is clamped so the sum never exceeds what is available.
// The donation part is never reduced; when it alone exceeds what is available
// the quote fails with ErrInsufficientSupply.
func (l *Ledger) Quote(ctx context.Context, purchase, donation types.Amount) (purchaseTokens, donationTokens types.Amount, err error) {
	if purchase.IsZero() && donation.IsZero() {
		return types.Amount{}, types.Amount{}, nil
	}

	var buy, gift types.Amount
	err = l.view(ctx, func(ctx context.Context) error {
		st := l.state
		if st.TokenPrice.IsZero() {
			return ErrInvalidPrice
		}
		var err error
		if buy, err = l.tokensFor(st, purchase); err != nil {
			return err
		}
		if gift, err = l.tokensFor(st, donation); err != nil {
			return err
		}

		bal, err := l.balance(ctx)
		if err != nil {
			return err
		}
		available := st.Available(bal)
		if gift.Gt(available) {
			return amountErr(ErrInsufficientSupply, "donation_tokens", gift, available)
		}
		if total, overflow := buy.Add(gift); overflow || total.Gt(available) {
			buy = available.SaturatingSub(gift)
		}
		return nil
	})
	if err != nil {
		return types.Amount{}, types.Amount{}, err
	}
	return buy, gift, nil
}

// Allocate records a purchase of purchase reference units for buyer and a
// donation of donation reference units. The purchased tokens are locked for
// the buyer; the donated tokens are earmarked for the charity. Crossing
// price thresholds reprices the sale after the tokens are computed.
//
// The caller must hold the releaser role.
func (l *Ledger) Allocate(ctx context.Context, buyer common.Address, purchase, donation types.Amount) (*Allocation, error) {
	var out *Allocation
	err := l.run(ctx, OpAllocate, func(t *txn) error {
		if _, err := l.authorize(ctx, access.RoleReleaser); err != nil {
			return err
		}
		st := t.state
		switch {
		case st.Ended(t.now):
			return &TimeError{Err: ErrSaleInactive, Now: t.now, Until: st.SaleEndTime}
		case purchase.IsZero() && donation.IsZero():
			return ErrInvalidAmount
		case buyer == (common.Address{}):
			return ErrInvalidAddress
		}

		bal, err := l.balance(t.ctx)
		if err != nil {
			return err
		}
		if bal.IsZero() {
			return ErrNoSupply
		}
		if st.TokenPrice.IsZero() {
			return ErrInvalidPrice
		}

		buyTokens, err := l.tokensFor(st, purchase)
		if err != nil {
			return err
		}
		giftTokens, err := l.tokensFor(st, donation)
		if err != nil {
			return err
		}
		total, err := add("tokens", buyTokens, giftTokens)
		if err != nil {
			return err
		}
		if available := st.Available(bal); total.Gt(available) {
			return amountErr(ErrInsufficientSupply, "tokens", total, available)
		}

		refTotal, err := add("ref_amount", purchase, donation)
		if err != nil {
			return err
		}
		if st.TokenSold, err = add("token_sold", st.TokenSold, total); err != nil {
			return err
		}
		if st.TotalUsdGathered, err = add("total_usd_gathered", st.TotalUsdGathered, refTotal); err != nil {
			return err
		}

		out = &Allocation{
			Account:        buyer,
			PurchaseTokens: buyTokens,
			DonationTokens: giftTokens,
			Price:          st.TokenPrice,
		}
		if out.PriceUpdates, err = l.reprice(t); err != nil {
			return err
		}
		out.NewPrice = st.TokenPrice

		if !buyTokens.IsZero() {
			lk, err := l.merge(t, buyer, buyTokens)
			if err != nil {
				return err
			}
			allocated := t.emit(event.TypeTokensAllocated, lk)
			allocated.Account = buyer
			allocated.Amount = buyTokens
			allocated.RefAmount = purchase
			allocated.Price = out.Price

			locked := t.emit(event.TypeTokensLocked, lk)
			locked.Account = buyer
			locked.Amount = buyTokens
			out.Lock = lk.Clone()
		}

		if !giftTokens.IsZero() {
			if st.TotalDonations, err = add("total_donations", st.TotalDonations, giftTokens); err != nil {
				return err
			}
			if st.TotalDonated, err = add("total_donated", st.TotalDonated, giftTokens); err != nil {
				return err
			}
			evt := t.emit(event.TypeDonationRecorded, nil)
			evt.Account = buyer
			evt.Amount = giftTokens
			evt.RefAmount = donation
			evt.Price = out.Price
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// LockTokens locks amount of the held inventory for beneficiary without a
// purchase. The caller must hold the wallet-supplier role.
func (l *Ledger) LockTokens(ctx context.Context, beneficiary common.Address, amount types.Amount) (*vesting.Lock, error) {
	var out *vesting.Lock
	err := l.run(ctx, OpLockTokens, func(t *txn) error {
		if _, err := l.authorize(ctx, access.RoleWalletSupplier); err != nil {
			return err
		}
		st := t.state
		switch {
		case st.Ended(t.now):
			return &TimeError{Err: ErrSaleInactive, Now: t.now, Until: st.SaleEndTime}
		case amount.IsZero():
			return ErrInvalidAmount
		case beneficiary == (common.Address{}):
			return ErrInvalidAddress
		}

		bal, err := l.balance(t.ctx)
		if err != nil {
			return err
		}
		if bal.IsZero() {
			return ErrNoSupply
		}
		if available := st.Available(bal); amount.Gt(available) {
			return amountErr(ErrInsufficientSupply, "tokens", amount, available)
		}
		if st.TokenSold, err = add("token_sold", st.TokenSold, amount); err != nil {
			return err
		}

		lk, err := l.merge(t, beneficiary, amount)
		if err != nil {
			return err
		}
		evt := t.emit(event.TypeTokensLocked, lk)
		evt.Account = beneficiary
		evt.Amount = amount
		out = lk.Clone()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// merge adds amount to the lock of account, creating it if needed.
func (l *Ledger) merge(t *txn, account common.Address, amount types.Amount) (*vesting.Lock, error) {
	prior, err := l.lock(t.ctx, account)
	if err != nil {
		return nil, err
	}

	var lk *vesting.Lock
	if prior == nil {
		lk = vesting.NewLock(account)
	} else {
		lk = prior.Clone()
	}
	if !lk.Merge(amount, t.now) {
		return nil, amountErr(ErrOverflowDetected, "lock_amount", lk.TotalAmount, amount)
	}
	t.put(lk, prior)
	return lk, nil
}

// reprice steps the price up for every threshold the normalized gathered
// amount has reached. It returns the number of steps taken.
func (l *Ledger) reprice(t *txn) (int, error) {
	st := t.state
	steps := 0
	for !st.TotalUsdGathered.Div(l.config.UsdNormalizer).Lt(st.Threshold) {
		if err := l.stepPrice(st); err != nil {
			return steps, err
		}
		steps++

		evt := t.emit(event.TypePriceUpdated, nil)
		evt.Price = st.TokenPrice
		evt.Threshold = st.Threshold
	}
	return steps, nil
}

func (l *Ledger) stepPrice(st *sale.State) error {
	price, err := add("token_price", st.TokenPrice, st.PriceStep)
	if err != nil {
		return err
	}
	threshold, err := add("threshold", st.Threshold, st.IncrementThreshold)
	if err != nil {
		return err
	}
	if st.IncrementThreshold.IsZero() {
		return fmt.Errorf("%w: repricing cannot advance", ErrInvalidIncrementThreshold)
	}

	st.TokenPrice = price
	st.Threshold = threshold
	if step, ok := l.config.Schedule.Landing(price); ok {
		st.PriceStep = step
	}
	return nil
}
