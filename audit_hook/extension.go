// Package audithook bridges dcolock ledger events to an audit trail backend.
//
// It defines a local Recorder interface so the package does not import any
// audit backend directly. Callers inject a RecorderFunc adapter at wiring
// time.
package audithook

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/xraph/dcolock"
	"github.com/xraph/dcolock/event"
	"github.com/xraph/dcolock/plugin"
	"github.com/xraph/dcolock/vesting"
)

// Compile-time interface checks.
var (
	_ plugin.Plugin             = (*Extension)(nil)
	_ plugin.OnPriceUpdated     = (*Extension)(nil)
	_ plugin.OnTokensAllocated  = (*Extension)(nil)
	_ plugin.OnTokensLocked     = (*Extension)(nil)
	_ plugin.OnDonationRecorded = (*Extension)(nil)
	_ plugin.OnTokensClaimed    = (*Extension)(nil)
	_ plugin.OnOwnerWithdrawal  = (*Extension)(nil)
	_ plugin.OnDonationsFlushed = (*Extension)(nil)
	_ plugin.OnTokensDeposited  = (*Extension)(nil)
	_ plugin.OnParameterChanged = (*Extension)(nil)
	_ plugin.OnRoleChanged      = (*Extension)(nil)
	_ plugin.OnOperationFailed  = (*Extension)(nil)
)

// Recorder is the interface that audit backends must implement.
type Recorder interface {
	Record(ctx context.Context, event *AuditEvent) error
}

// AuditEvent is a local representation of an audit event.
type AuditEvent struct {
	Action     string         `json:"action"`
	Resource   string         `json:"resource"`
	Category   string         `json:"category"`
	ResourceID string         `json:"resource_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Outcome    string         `json:"outcome"`
	Severity   string         `json:"severity"`
	Reason     string         `json:"reason,omitempty"`
}

// RecorderFunc is an adapter to use a plain function as a Recorder.
type RecorderFunc func(ctx context.Context, event *AuditEvent) error

// Record implements Recorder.
func (f RecorderFunc) Record(ctx context.Context, event *AuditEvent) error {
	return f(ctx, event)
}

// Extension bridges ledger events to an audit trail backend.
type Extension struct {
	recorder Recorder
	enabled  map[string]bool // nil = all enabled
	logger   *slog.Logger
}

// New creates an Extension that emits audit events through the provided Recorder.
func New(r Recorder, opts ...Option) *Extension {
	e := &Extension{
		recorder: r,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements plugin.Plugin.
func (e *Extension) Name() string { return "audit-hook" }

// ──────────────────────────────────────────────────
// Pricing and allocation hooks
// ──────────────────────────────────────────────────

// OnPriceUpdated implements plugin.OnPriceUpdated.
func (e *Extension) OnPriceUpdated(ctx context.Context, evt *event.Event) error {
	return e.record(ctx, ActionPriceUpdated, SeverityInfo, OutcomeSuccess,
		ResourceSale, evt.ID.String(), CategoryPricing, nil,
		"sequence", evt.Sequence,
		"price", evt.Price.String(),
		"threshold", evt.Threshold.String(),
	)
}

// OnTokensAllocated implements plugin.OnTokensAllocated.
func (e *Extension) OnTokensAllocated(ctx context.Context, lock *vesting.Lock, evt *event.Event) error {
	return e.record(ctx, ActionTokensAllocated, SeverityInfo, OutcomeSuccess,
		ResourceLock, lockID(lock), CategoryAllocation, nil,
		"sequence", evt.Sequence,
		"account", evt.Account.Hex(),
		"tokens", evt.Amount.String(),
		"ref_amount", evt.RefAmount.String(),
		"price", evt.Price.String(),
	)
}

// OnTokensLocked implements plugin.OnTokensLocked.
func (e *Extension) OnTokensLocked(ctx context.Context, lock *vesting.Lock, evt *event.Event) error {
	kv := []any{
		"sequence", evt.Sequence,
		"account", evt.Account.Hex(),
		"tokens", evt.Amount.String(),
	}
	if lock != nil {
		kv = append(kv, "total_locked", lock.TotalAmount.String())
	}
	return e.record(ctx, ActionTokensLocked, SeverityInfo, OutcomeSuccess,
		ResourceLock, lockID(lock), CategoryVesting, nil, kv...)
}

// OnDonationRecorded implements plugin.OnDonationRecorded.
func (e *Extension) OnDonationRecorded(ctx context.Context, evt *event.Event) error {
	return e.record(ctx, ActionDonationRecorded, SeverityInfo, OutcomeSuccess,
		ResourceCharity, evt.ID.String(), CategoryAllocation, nil,
		"sequence", evt.Sequence,
		"account", evt.Account.Hex(),
		"tokens", evt.Amount.String(),
		"ref_amount", evt.RefAmount.String(),
	)
}

// ──────────────────────────────────────────────────
// Withdrawal hooks
// ──────────────────────────────────────────────────

// OnTokensClaimed implements plugin.OnTokensClaimed.
func (e *Extension) OnTokensClaimed(ctx context.Context, lock *vesting.Lock, evt *event.Event) error {
	return e.record(ctx, ActionTokensClaimed, SeverityInfo, OutcomeSuccess,
		ResourceLock, lockID(lock), CategoryVesting, nil,
		"sequence", evt.Sequence,
		"account", evt.Account.Hex(),
		"tokens", evt.Amount.String(),
		"stage", evt.Stage,
		"tranches", evt.Tranches.String(),
	)
}

// OnOwnerWithdrawal implements plugin.OnOwnerWithdrawal.
func (e *Extension) OnOwnerWithdrawal(ctx context.Context, evt *event.Event) error {
	return e.record(ctx, ActionOwnerWithdrawal, SeverityWarning, OutcomeSuccess,
		ResourceToken, evt.ID.String(), CategoryTreasury, nil,
		"sequence", evt.Sequence,
		"owner", evt.Account.Hex(),
		"tokens", evt.Amount.String(),
	)
}

// OnDonationsFlushed implements plugin.OnDonationsFlushed.
func (e *Extension) OnDonationsFlushed(ctx context.Context, evt *event.Event) error {
	return e.record(ctx, ActionDonationsFlushed, SeverityInfo, OutcomeSuccess,
		ResourceCharity, evt.ID.String(), CategoryTreasury, nil,
		"sequence", evt.Sequence,
		"charity", evt.Account.Hex(),
		"tokens", evt.Amount.String(),
	)
}

// OnTokensDeposited implements plugin.OnTokensDeposited.
func (e *Extension) OnTokensDeposited(ctx context.Context, evt *event.Event) error {
	return e.record(ctx, ActionTokensDeposited, SeverityInfo, OutcomeSuccess,
		ResourceToken, evt.ID.String(), CategoryTreasury, nil,
		"sequence", evt.Sequence,
		"supplier", evt.Account.Hex(),
		"tokens", evt.Amount.String(),
	)
}

// ──────────────────────────────────────────────────
// Administration hooks
// ──────────────────────────────────────────────────

// OnParameterChanged implements plugin.OnParameterChanged.
func (e *Extension) OnParameterChanged(ctx context.Context, evt *event.Event) error {
	action := ActionThresholdUpdated
	kv := []any{"sequence", evt.Sequence}
	switch evt.Type {
	case event.TypeIncrementThresholdUpdated:
		action = ActionIncrementThresholdUpdated
		kv = append(kv, "increment_threshold", evt.Threshold.String())
	case event.TypeCharityUpdated:
		action = ActionCharityUpdated
		kv = append(kv, "charity", evt.Account.Hex())
	default:
		kv = append(kv, "threshold", evt.Threshold.String())
	}
	return e.record(ctx, action, SeverityWarning, OutcomeSuccess,
		ResourceSale, evt.ID.String(), CategoryPricing, nil, kv...)
}

// OnRoleChanged implements plugin.OnRoleChanged.
func (e *Extension) OnRoleChanged(ctx context.Context, evt *event.Event) error {
	action := ActionRoleGranted
	if evt.Type == event.TypeRoleRevoked {
		action = ActionRoleRevoked
	}
	return e.record(ctx, action, SeverityWarning, OutcomeSuccess,
		ResourceRole, string(evt.Role), CategoryAccess, nil,
		"sequence", evt.Sequence,
		"role", string(evt.Role),
		"account", evt.Account.Hex(),
	)
}

// OnOperationFailed implements plugin.OnOperationFailed. Authorization
// failures are recorded as errors and balance inconsistencies as critical.
func (e *Extension) OnOperationFailed(ctx context.Context, op string, opErr error) error {
	severity := SeverityInfo
	switch {
	case errors.Is(opErr, dcolock.ErrInsufficientContractBalance):
		severity = SeverityCritical
	case dcolock.IsAuthorization(opErr), errors.Is(opErr, dcolock.ErrReentrantCall):
		severity = SeverityError
	}
	return e.record(ctx, ActionOperationRejected, severity, OutcomeFailure,
		ResourceSale, op, categoryFor(op), opErr,
		"operation", op,
	)
}

// ──────────────────────────────────────────────────
// Internal helpers
// ──────────────────────────────────────────────────

func lockID(l *vesting.Lock) string {
	if l == nil {
		return ""
	}
	return l.ID.String()
}

// categoryFor maps an operation name to its audit category.
func categoryFor(op string) string {
	switch op {
	case "allocate", "lock_tokens":
		return CategoryAllocation
	case "claim":
		return CategoryVesting
	case "withdraw", "withdraw_all", "flush_donations", "deposit":
		return CategoryTreasury
	case "grant_role", "revoke_role":
		return CategoryAccess
	default:
		return CategoryPricing
	}
}

// record builds and sends an audit event if the action is enabled.
func (e *Extension) record(
	ctx context.Context,
	action, severity, outcome string,
	resource, resourceID, category string,
	err error,
	kvPairs ...any,
) error {
	if e.enabled != nil && !e.enabled[action] {
		return nil
	}

	meta := make(map[string]any, len(kvPairs)/2+1)
	for i := 0; i+1 < len(kvPairs); i += 2 {
		key, ok := kvPairs[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", kvPairs[i])
		}
		meta[key] = kvPairs[i+1]
	}

	var reason string
	if err != nil {
		reason = err.Error()
		meta["error"] = err.Error()
	}

	evt := &AuditEvent{
		Action:     action,
		Resource:   resource,
		Category:   category,
		ResourceID: resourceID,
		Metadata:   meta,
		Outcome:    outcome,
		Severity:   severity,
		Reason:     reason,
	}

	if recErr := e.recorder.Record(ctx, evt); recErr != nil {
		e.logger.Warn("audit_hook: failed to record audit event",
			"action", action,
			"resource_id", resourceID,
			"error", recErr,
		)
	}
	return nil
}
