package dcolock

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	"github.com/xraph/dcolock/access"
	"github.com/xraph/dcolock/event"
	"github.com/xraph/dcolock/types"
)

// ──────────────────────────────────────────────────
// Pricing parameters (releaser)
// ──────────────────────────────────────────────────

// SetThreshold replaces the normalized amount that triggers the next price step.
func (l *Ledger) SetThreshold(ctx context.Context, v types.Amount) error {
	return l.run(ctx, OpSetThreshold, func(t *txn) error {
		if _, err := l.authorize(ctx, access.RoleReleaser); err != nil {
			return err
		}
		if v.IsZero() {
			return ErrInvalidThreshold
		}
		t.state.Threshold = v

		evt := t.emit(event.TypeThresholdUpdated, nil)
		evt.Threshold = v
		return nil
	})
}

// SetIncrementThreshold replaces the amount added to the threshold on each
// price step. Zero is rejected since repricing could then never stop.
func (l *Ledger) SetIncrementThreshold(ctx context.Context, v types.Amount) error {
	return l.run(ctx, OpSetIncrementThreshold, func(t *txn) error {
		if _, err := l.authorize(ctx, access.RoleReleaser); err != nil {
			return err
		}
		if v.IsZero() {
			return ErrInvalidIncrementThreshold
		}
		t.state.IncrementThreshold = v

		evt := t.emit(event.TypeIncrementThresholdUpdated, nil)
		evt.Threshold = v
		return nil
	})
}

// SetTokenPrice moves the price to v. The price never decreases.
func (l *Ledger) SetTokenPrice(ctx context.Context, v types.Amount) error {
	return l.run(ctx, OpSetTokenPrice, func(t *txn) error {
		if _, err := l.authorize(ctx, access.RoleReleaser); err != nil {
			return err
		}
		st := t.state
		if v.IsZero() {
			return ErrInvalidPrice
		}
		if v.Lt(st.TokenPrice) {
			return amountErr(ErrPriceDecrease, "token_price", v, st.TokenPrice)
		}
		st.TokenPrice = v
		if step, ok := l.config.Schedule.Landing(v); ok {
			st.PriceStep = step
		}

		evt := t.emit(event.TypePriceUpdated, nil)
		evt.Price = v
		evt.Threshold = st.Threshold
		return nil
	})
}

// ──────────────────────────────────────────────────
// Owner administration
// ──────────────────────────────────────────────────

// SetCharity sets the address donations are flushed to.
func (l *Ledger) SetCharity(ctx context.Context, charity common.Address) error {
	return l.run(ctx, OpSetCharity, func(t *txn) error {
		if _, err := l.authorize(ctx, access.RoleOwner); err != nil {
			return err
		}
		if charity == (common.Address{}) {
			return ErrInvalidAddress
		}
		t.state.Charity = charity

		evt := t.emit(event.TypeCharityUpdated, nil)
		evt.Account = charity
		return nil
	})
}

// GrantRole gives account the role.
func (l *Ledger) GrantRole(ctx context.Context, role access.Role, account common.Address) error {
	return l.run(ctx, OpGrantRole, func(t *txn) error {
		owner, err := l.authorize(ctx, access.RoleOwner)
		if err != nil {
			return err
		}
		switch {
		case !role.Valid():
			return ErrInvalidRole
		case account == (common.Address{}):
			return ErrInvalidAddress
		case l.roles.Has(role, account):
			return ErrRoleAlreadyGranted
		}
		t.grant(role, account, owner)
		return nil
	})
}

// RevokeRole takes the role from account. An owner cannot revoke its own
// owner role, nor the last remaining one.
func (l *Ledger) RevokeRole(ctx context.Context, role access.Role, account common.Address) error {
	return l.run(ctx, OpRevokeRole, func(t *txn) error {
		owner, err := l.authorize(ctx, access.RoleOwner)
		if err != nil {
			return err
		}
		if !role.Valid() {
			return ErrInvalidRole
		}
		g := l.roles.Get(role, account)
		if g == nil {
			return ErrRoleNotGranted
		}
		if role == access.RoleOwner && (account == owner || l.roles.Count(access.RoleOwner) <= 1) {
			return ErrLastOwner
		}
		t.revoked = append(t.revoked, g)

		evt := t.emit(event.TypeRoleRevoked, nil)
		evt.Account = account
		evt.Role = role
		return nil
	})
}
