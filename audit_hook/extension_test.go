package audithook_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/dcolock"
	audithook "github.com/xraph/dcolock/audit_hook"
	"github.com/xraph/dcolock/event"
	"github.com/xraph/dcolock/types"
	"github.com/xraph/dcolock/vesting"
)

type captured struct {
	events []*audithook.AuditEvent
}

func (c *captured) recorder() audithook.RecorderFunc {
	return func(_ context.Context, e *audithook.AuditEvent) error {
		c.events = append(c.events, e)
		return nil
	}
}

var buyer = common.HexToAddress("0x00000000000000000000000000000000000a11ce")

func TestTokensClaimedRecord(t *testing.T) {
	var c captured
	ext := audithook.New(c.recorder())
	assert.Equal(t, "audit-hook", ext.Name())

	lock := vesting.NewLock(buyer)
	evt := event.New(event.TypeTokensClaimed, 7, time.Now())
	evt.Account = buyer
	evt.Amount = types.NewAmount(50)
	evt.Stage = event.StageSevenMonth
	evt.Tranches = vesting.TrancheSevenMonth

	require.NoError(t, ext.OnTokensClaimed(context.Background(), lock, evt))
	require.Len(t, c.events, 1)

	got := c.events[0]
	assert.Equal(t, audithook.ActionTokensClaimed, got.Action)
	assert.Equal(t, audithook.ResourceLock, got.Resource)
	assert.Equal(t, lock.ID.String(), got.ResourceID)
	assert.Equal(t, audithook.OutcomeSuccess, got.Outcome)
	assert.Equal(t, "50", got.Metadata["tokens"])
	assert.Equal(t, "seven_month", got.Metadata["tranches"])
}

func TestParameterChangedActions(t *testing.T) {
	tests := []struct {
		typ  event.Type
		want string
	}{
		{event.TypeThresholdUpdated, audithook.ActionThresholdUpdated},
		{event.TypeIncrementThresholdUpdated, audithook.ActionIncrementThresholdUpdated},
		{event.TypeCharityUpdated, audithook.ActionCharityUpdated},
	}

	for _, tt := range tests {
		t.Run(string(tt.typ), func(t *testing.T) {
			var c captured
			ext := audithook.New(c.recorder())
			require.NoError(t, ext.OnParameterChanged(context.Background(), event.New(tt.typ, 1, time.Now())))
			require.Len(t, c.events, 1)
			assert.Equal(t, tt.want, c.events[0].Action)
		})
	}
}

func TestOperationFailedSeverity(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"timing", dcolock.ErrSevenMonthLockActive, audithook.SeverityInfo},
		{"role", &dcolock.RoleError{Role: "owner", Account: buyer}, audithook.SeverityError},
		{"balance", fmt.Errorf("claim: %w", dcolock.ErrInsufficientContractBalance), audithook.SeverityCritical},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var c captured
			ext := audithook.New(c.recorder())
			require.NoError(t, ext.OnOperationFailed(context.Background(), "claim", tt.err))
			require.Len(t, c.events, 1)

			got := c.events[0]
			assert.Equal(t, audithook.ActionOperationRejected, got.Action)
			assert.Equal(t, audithook.OutcomeFailure, got.Outcome)
			assert.Equal(t, audithook.CategoryVesting, got.Category)
			assert.Equal(t, tt.want, got.Severity)
			assert.Equal(t, tt.err.Error(), got.Reason)
		})
	}
}

func TestEnabledAndDisabledActions(t *testing.T) {
	ctx := context.Background()
	evt := event.New(event.TypeOwnerWithdrawal, 1, time.Now())

	var only captured
	ext := audithook.New(only.recorder(), audithook.WithEnabledActions(audithook.ActionTokensDeposited))
	require.NoError(t, ext.OnOwnerWithdrawal(ctx, evt))
	assert.Empty(t, only.events)

	var skip captured
	ext = audithook.New(skip.recorder(), audithook.WithDisabledActions(audithook.ActionOwnerWithdrawal))
	require.NoError(t, ext.OnOwnerWithdrawal(ctx, evt))
	require.NoError(t, ext.OnTokensDeposited(ctx, event.New(event.TypeTokensDeposited, 2, time.Now())))
	require.Len(t, skip.events, 1)
	assert.Equal(t, audithook.ActionTokensDeposited, skip.events[0].Action)
}

func TestRecorderFailureIsSwallowed(t *testing.T) {
	failing := audithook.RecorderFunc(func(context.Context, *audithook.AuditEvent) error {
		return errors.New("backend down")
	})
	ext := audithook.New(failing, audithook.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	assert.NoError(t, ext.OnDonationsFlushed(context.Background(), event.New(event.TypeDonationsFlushed, 1, time.Now())))
}
