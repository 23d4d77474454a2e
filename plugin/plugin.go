// Package plugin provides an extensible plugin system for dcolock.
// Plugins hook into ledger lifecycle and domain events to extend
// functionality without touching the engine.
package plugin

import (
	"context"

	"github.com/xraph/dcolock/event"
	"github.com/xraph/dcolock/sale"
	"github.com/xraph/dcolock/vesting"
)

// Plugin is the base interface that all plugins must implement.
type Plugin interface {
	Name() string
}

// ──────────────────────────────────────────────────
// Lifecycle hooks
// ──────────────────────────────────────────────────

// OnInit is called once the ledger has loaded or initialized its state.
type OnInit interface {
	Plugin
	OnInit(ctx context.Context, state *sale.State) error
}

// OnShutdown is called when the ledger is stopping.
type OnShutdown interface {
	Plugin
	OnShutdown(ctx context.Context) error
}

// ──────────────────────────────────────────────────
// Event hooks
// ──────────────────────────────────────────────────

// OnEvent is called for every committed event, before the typed hooks.
type OnEvent interface {
	Plugin
	OnEvent(ctx context.Context, evt *event.Event) error
}

// OnPriceUpdated is called for each price step, whether from the
// repricing loop or an explicit price change.
type OnPriceUpdated interface {
	Plugin
	OnPriceUpdated(ctx context.Context, evt *event.Event) error
}

// ──────────────────────────────────────────────────
// Allocation hooks
// ──────────────────────────────────────────────────

// OnTokensAllocated is called when purchase tokens are allocated to a buyer.
type OnTokensAllocated interface {
	Plugin
	OnTokensAllocated(ctx context.Context, lock *vesting.Lock, evt *event.Event) error
}

// OnTokensLocked is called when tokens are merged into a lock.
type OnTokensLocked interface {
	Plugin
	OnTokensLocked(ctx context.Context, lock *vesting.Lock, evt *event.Event) error
}

// OnDonationRecorded is called when donation tokens are earmarked.
type OnDonationRecorded interface {
	Plugin
	OnDonationRecorded(ctx context.Context, evt *event.Event) error
}

// ──────────────────────────────────────────────────
// Withdrawal hooks
// ──────────────────────────────────────────────────

// OnTokensClaimed is called after a buyer claims vested tokens.
type OnTokensClaimed interface {
	Plugin
	OnTokensClaimed(ctx context.Context, lock *vesting.Lock, evt *event.Event) error
}

// OnOwnerWithdrawal is called after the owner withdraws unsold inventory.
type OnOwnerWithdrawal interface {
	Plugin
	OnOwnerWithdrawal(ctx context.Context, evt *event.Event) error
}

// OnDonationsFlushed is called after pending donations reach the charity.
type OnDonationsFlushed interface {
	Plugin
	OnDonationsFlushed(ctx context.Context, evt *event.Event) error
}

// OnTokensDeposited is called after a wallet supplier funds the ledger.
type OnTokensDeposited interface {
	Plugin
	OnTokensDeposited(ctx context.Context, evt *event.Event) error
}

// ──────────────────────────────────────────────────
// Administration hooks
// ──────────────────────────────────────────────────

// OnParameterChanged is called when a threshold or the charity changes.
type OnParameterChanged interface {
	Plugin
	OnParameterChanged(ctx context.Context, evt *event.Event) error
}

// OnRoleChanged is called when a role is granted or revoked.
type OnRoleChanged interface {
	Plugin
	OnRoleChanged(ctx context.Context, evt *event.Event) error
}

// OnOperationFailed is called when a ledger operation is rejected.
// Rejected operations commit nothing and emit no events.
type OnOperationFailed interface {
	Plugin
	OnOperationFailed(ctx context.Context, op string, err error) error
}
