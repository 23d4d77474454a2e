package observability_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/dcolock"
	"github.com/xraph/dcolock/observability"
	"github.com/xraph/dcolock/store/memory"
	tokenmem "github.com/xraph/dcolock/token/memory"
	"github.com/xraph/dcolock/types"
)

var (
	owner    = common.HexToAddress("0x01")
	releaser = common.HexToAddress("0x02")
	vault    = common.HexToAddress("0xd0c0")
	buyer    = common.HexToAddress("0x0a")
)

// gathered returns the value of the named metric in reg, or -1 if missing.
func gathered(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		m := mf.GetMetric()[0]
		switch {
		case m.GetCounter() != nil:
			return m.GetCounter().GetValue()
		case m.GetGauge() != nil:
			return m.GetGauge().GetValue()
		case m.GetHistogram() != nil:
			return float64(m.GetHistogram().GetSampleCount())
		}
	}
	return -1
}

func TestMetricsFollowLedger(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := observability.NewMetricsExtension(observability.NewPrometheusFactory(reg))

	saleEnd := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	cfg := dcolock.DefaultConfig()
	cfg.SaleEnd = saleEnd
	cfg.Owner = owner
	cfg.Releasers = []common.Address{releaser}
	cfg.Threshold = types.NewAmount(1)
	cfg.IncrementThreshold = types.NewAmount(1)

	clk := clock.NewMock()
	clk.Set(saleEnd.AddDate(0, -1, 0))
	tok := tokenmem.New(vault)
	require.NoError(t, tok.Mint(vault, dcolock.MustParseAmount("1000000000000000000000000")))

	l, err := dcolock.New(memory.New(), tok,
		dcolock.WithConfig(cfg),
		dcolock.WithClock(clk),
		dcolock.WithPlugin(metrics),
		dcolock.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, l.Start(ctx))
	defer func() { _ = l.Stop() }()

	assert.Equal(t, 500.0, gathered(t, reg, "dcolock_price_current"))
	assert.Equal(t, 2.0, gathered(t, reg, "dcolock_role_changes_total"))

	_, err = l.Allocate(dcolock.WithCaller(ctx, releaser), buyer,
		dcolock.NewAmount(1_000_000), dcolock.NewAmount(1_000_000))
	require.NoError(t, err)

	assert.Equal(t, 2.0, gathered(t, reg, "dcolock_price_updated_total"))
	assert.Equal(t, 510.0, gathered(t, reg, "dcolock_price_current"))
	assert.Equal(t, 1.0, gathered(t, reg, "dcolock_tokens_allocated_total"))
	assert.Equal(t, 1.0, gathered(t, reg, "dcolock_tokens_allocated_size"))
	assert.Equal(t, 1.0, gathered(t, reg, "dcolock_tokens_locked_total"))
	assert.Equal(t, 1.0, gathered(t, reg, "dcolock_donation_recorded_total"))

	_, err = l.Claim(dcolock.WithCaller(ctx, buyer))
	require.Error(t, err)
	err = l.SetCharity(dcolock.WithCaller(ctx, buyer), buyer)
	require.Error(t, err)

	assert.Equal(t, 2.0, gathered(t, reg, "dcolock_operations_rejected_total"))
	assert.Equal(t, 1.0, gathered(t, reg, "dcolock_operations_unauthorized_total"))
}

func TestOperationFailedClassification(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := observability.NewMetricsExtension(observability.NewPrometheusFactory(reg))
	ctx := context.Background()

	require.NoError(t, metrics.OnOperationFailed(ctx, dcolock.OpClaim, dcolock.ErrInsufficientContractBalance))
	require.NoError(t, metrics.OnOperationFailed(ctx, dcolock.OpGrantRole, dcolock.ErrLastOwner))
	require.NoError(t, metrics.OnOperationFailed(ctx, dcolock.OpAllocate, errors.New("boom")))

	assert.Equal(t, 3.0, gathered(t, reg, "dcolock_operations_rejected_total"))
	assert.Equal(t, 1.0, gathered(t, reg, "dcolock_operations_unauthorized_total"))
	assert.Equal(t, 1.0, gathered(t, reg, "dcolock_operations_inconsistent_total"))
}

func TestPrometheusFactoryReusesCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	f := observability.NewPrometheusFactory(reg)

	f.Counter("dcolock.tokens.claimed").Inc()
	f.Counter("dcolock.tokens.claimed").Add(2)
	assert.Equal(t, 3.0, gathered(t, reg, "dcolock_tokens_claimed_total"))

	// A second factory on the same registry shares the collector.
	g := observability.NewPrometheusFactory(reg)
	g.Counter("dcolock.tokens.claimed").Inc()
	assert.Equal(t, 4.0, gathered(t, reg, "dcolock_tokens_claimed_total"))
}
