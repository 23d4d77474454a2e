package main

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/dcolock/event"
	"github.com/xraph/dcolock/types"
)

const scenarioYAML = `
start: 2025-05-01T00:00:00Z
steps:
  - op: allocate
    caller: "0x0000000000000000000000000000000000000002"
    account: "0x000000000000000000000000000000000000000a"
    amount: "1000000"
  - op: claim
    caller: "0x000000000000000000000000000000000000000a"
  - op: claim
    at: 2026-01-01T00:00:00Z
    caller: "0x000000000000000000000000000000000000000a"
  - op: withdraw_all
    caller: "0x0000000000000000000000000000000000000001"
  - op: explode
`

func testConfig() *Config {
	cfg := defaultConfig()
	cfg.Sale.SaleEnd = time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	cfg.Sale.Owner = common.HexToAddress("0x01")
	cfg.Sale.Releasers = []common.Address{common.HexToAddress("0x02")}
	return cfg
}

func TestSimulate(t *testing.T) {
	sc, err := LoadScenario(strings.NewReader(scenarioYAML))
	require.NoError(t, err)
	require.Len(t, sc.Steps, 5)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	report, err := Simulate(context.Background(), testConfig(), sc, logger)
	require.NoError(t, err)
	require.Len(t, report.Steps, 5)

	assert.Empty(t, report.Steps[0].Error)
	assert.Contains(t, report.Steps[1].Error, "seven-month lock still active")
	assert.Empty(t, report.Steps[2].Error)
	assert.Equal(t, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), report.Steps[2].At)
	assert.Empty(t, report.Steps[3].Error)
	assert.Contains(t, report.Steps[4].Error, "unknown op")

	var kinds []event.Type
	for _, e := range report.Events {
		kinds = append(kinds, e.Type)
	}
	assert.Equal(t, []event.Type{
		event.TypeRoleGranted, event.TypeRoleGranted,
		event.TypeTokensAllocated, event.TypeTokensLocked,
		event.TypeTokensClaimed,
		event.TypeOwnerWithdrawal,
	}, kinds)
}

func TestLoadScenarioRejectsUnknownFields(t *testing.T) {
	_, err := LoadScenario(strings.NewReader("steps:\n  - op: claim\n    bogus: 1\n"))
	assert.Error(t, err)
}

func TestQuote(t *testing.T) {
	res, err := Quote(context.Background(), defaultConfig(), types.NewAmount(1_000_000), types.NewAmount(500))
	require.NoError(t, err)
	assert.Equal(t, types.NewAmount(500), res.Price)
	assert.Equal(t, "2000000000000000000000", res.PurchaseTokens.String())
	assert.Equal(t, "1000000000000000000", res.DonationTokens.String())
}

func TestLoadConfigEnvironment(t *testing.T) {
	t.Setenv("DCOLOCK_SUPPLY", "42")
	t.Setenv("DCOLOCK_SALE_END", "2025-06-01T00:00:00Z")
	t.Setenv("DCOLOCK_OWNER", "0x0000000000000000000000000000000000000001")

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, types.NewAmount(42), cfg.Supply)
	assert.Equal(t, DefaultVault, cfg.Vault)
	assert.Equal(t, time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC), cfg.Sale.SaleEnd)
	assert.Equal(t, common.HexToAddress("0x01"), cfg.Sale.Owner)
}
