// Package observability provides a metrics extension for dcolock that
// records ledger event counts and sizes through a MetricFactory.
package observability

import (
	"context"
	"errors"

	"github.com/xraph/dcolock"
	"github.com/xraph/dcolock/event"
	"github.com/xraph/dcolock/plugin"
	"github.com/xraph/dcolock/sale"
	"github.com/xraph/dcolock/vesting"
)

// Ensure MetricsExtension implements required interfaces.
var (
	_ plugin.Plugin             = (*MetricsExtension)(nil)
	_ plugin.OnInit             = (*MetricsExtension)(nil)
	_ plugin.OnPriceUpdated     = (*MetricsExtension)(nil)
	_ plugin.OnTokensAllocated  = (*MetricsExtension)(nil)
	_ plugin.OnTokensLocked     = (*MetricsExtension)(nil)
	_ plugin.OnDonationRecorded = (*MetricsExtension)(nil)
	_ plugin.OnTokensClaimed    = (*MetricsExtension)(nil)
	_ plugin.OnOwnerWithdrawal  = (*MetricsExtension)(nil)
	_ plugin.OnDonationsFlushed = (*MetricsExtension)(nil)
	_ plugin.OnTokensDeposited  = (*MetricsExtension)(nil)
	_ plugin.OnParameterChanged = (*MetricsExtension)(nil)
	_ plugin.OnRoleChanged      = (*MetricsExtension)(nil)
	_ plugin.OnOperationFailed  = (*MetricsExtension)(nil)
)

// Counter interface for metric counters.
type Counter interface {
	Inc()
	Add(float64)
}

// Histogram interface for metric histograms.
type Histogram interface {
	Observe(float64)
}

// Gauge interface for metric gauges.
type Gauge interface {
	Set(float64)
}

// MetricFactory creates metrics.
type MetricFactory interface {
	Counter(name string) Counter
	Histogram(name string) Histogram
	Gauge(name string) Gauge
}

// MetricsExtension records ledger metrics.
// Register it as a ledger plugin to track sale activity automatically.
type MetricsExtension struct {
	factory MetricFactory

	// Pricing metrics
	PriceUpdated Counter
	TokenPrice   Gauge

	// Allocation metrics
	TokensAllocated  Counter
	AllocationSize   Histogram
	TokensLocked     Counter
	DonationRecorded Counter
	DonationSize     Histogram

	// Withdrawal metrics
	TokensClaimed      Counter
	ClaimSize          Histogram
	ClaimsBothTranches Counter
	OwnerWithdrawals   Counter
	DonationsFlushed   Counter
	TokensDeposited    Counter

	// Administration metrics
	ParameterChanges Counter
	RoleChanges      Counter

	// Error metrics
	OperationsRejected    Counter
	AuthorizationFailures Counter
	ConsistencyFailures   Counter
}

// NewMetricsExtension creates a MetricsExtension with the provided MetricFactory.
func NewMetricsExtension(factory MetricFactory) *MetricsExtension {
	return &MetricsExtension{
		factory: factory,

		// Pricing metrics
		PriceUpdated: factory.Counter("dcolock.price.updated"),
		TokenPrice:   factory.Gauge("dcolock.price.current"),

		// Allocation metrics
		TokensAllocated:  factory.Counter("dcolock.tokens.allocated"),
		AllocationSize:   factory.Histogram("dcolock.tokens.allocated.size"),
		TokensLocked:     factory.Counter("dcolock.tokens.locked"),
		DonationRecorded: factory.Counter("dcolock.donation.recorded"),
		DonationSize:     factory.Histogram("dcolock.donation.recorded.size"),

		// Withdrawal metrics
		TokensClaimed:      factory.Counter("dcolock.tokens.claimed"),
		ClaimSize:          factory.Histogram("dcolock.tokens.claimed.size"),
		ClaimsBothTranches: factory.Counter("dcolock.tokens.claimed.both_tranches"),
		OwnerWithdrawals:   factory.Counter("dcolock.owner.withdrawals"),
		DonationsFlushed:   factory.Counter("dcolock.donations.flushed"),
		TokensDeposited:    factory.Counter("dcolock.tokens.deposited"),

		// Administration metrics
		ParameterChanges: factory.Counter("dcolock.parameter.changes"),
		RoleChanges:      factory.Counter("dcolock.role.changes"),

		// Error metrics
		OperationsRejected:    factory.Counter("dcolock.operations.rejected"),
		AuthorizationFailures: factory.Counter("dcolock.operations.unauthorized"),
		ConsistencyFailures:   factory.Counter("dcolock.operations.inconsistent"),
	}
}

// Name implements plugin.Plugin.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

// OnInit implements plugin.OnInit.
func (m *MetricsExtension) OnInit(_ context.Context, state *sale.State) error {
	if state != nil {
		m.TokenPrice.Set(state.TokenPrice.Float64())
	}
	return nil
}

// ──────────────────────────────────────────────────
// Pricing and allocation hooks
// ──────────────────────────────────────────────────

// OnPriceUpdated implements plugin.OnPriceUpdated.
func (m *MetricsExtension) OnPriceUpdated(_ context.Context, evt *event.Event) error {
	m.PriceUpdated.Inc()
	m.TokenPrice.Set(evt.Price.Float64())
	return nil
}

// OnTokensAllocated implements plugin.OnTokensAllocated.
func (m *MetricsExtension) OnTokensAllocated(_ context.Context, _ *vesting.Lock, evt *event.Event) error {
	m.TokensAllocated.Inc()
	m.AllocationSize.Observe(evt.Amount.Float64())
	return nil
}

// OnTokensLocked implements plugin.OnTokensLocked.
func (m *MetricsExtension) OnTokensLocked(_ context.Context, _ *vesting.Lock, _ *event.Event) error {
	m.TokensLocked.Inc()
	return nil
}

// OnDonationRecorded implements plugin.OnDonationRecorded.
func (m *MetricsExtension) OnDonationRecorded(_ context.Context, evt *event.Event) error {
	m.DonationRecorded.Inc()
	m.DonationSize.Observe(evt.Amount.Float64())
	return nil
}

// ──────────────────────────────────────────────────
// Withdrawal hooks
// ──────────────────────────────────────────────────

// OnTokensClaimed implements plugin.OnTokensClaimed.
func (m *MetricsExtension) OnTokensClaimed(_ context.Context, _ *vesting.Lock, evt *event.Event) error {
	m.TokensClaimed.Inc()
	m.ClaimSize.Observe(evt.Amount.Float64())
	if evt.Tranches == vesting.TrancheBoth {
		m.ClaimsBothTranches.Inc()
	}
	return nil
}

// OnOwnerWithdrawal implements plugin.OnOwnerWithdrawal.
func (m *MetricsExtension) OnOwnerWithdrawal(_ context.Context, _ *event.Event) error {
	m.OwnerWithdrawals.Inc()
	return nil
}

// OnDonationsFlushed implements plugin.OnDonationsFlushed.
func (m *MetricsExtension) OnDonationsFlushed(_ context.Context, _ *event.Event) error {
	m.DonationsFlushed.Inc()
	return nil
}

// OnTokensDeposited implements plugin.OnTokensDeposited.
func (m *MetricsExtension) OnTokensDeposited(_ context.Context, _ *event.Event) error {
	m.TokensDeposited.Inc()
	return nil
}

// ──────────────────────────────────────────────────
// Administration hooks
// ──────────────────────────────────────────────────

// OnParameterChanged implements plugin.OnParameterChanged.
func (m *MetricsExtension) OnParameterChanged(_ context.Context, _ *event.Event) error {
	m.ParameterChanges.Inc()
	return nil
}

// OnRoleChanged implements plugin.OnRoleChanged.
func (m *MetricsExtension) OnRoleChanged(_ context.Context, _ *event.Event) error {
	m.RoleChanges.Inc()
	return nil
}

// OnOperationFailed implements plugin.OnOperationFailed.
func (m *MetricsExtension) OnOperationFailed(_ context.Context, _ string, err error) error {
	m.OperationsRejected.Inc()
	switch {
	case dcolock.IsAuthorization(err):
		m.AuthorizationFailures.Inc()
	case errors.Is(err, dcolock.ErrInsufficientContractBalance):
		m.ConsistencyFailures.Inc()
	}
	return nil
}
