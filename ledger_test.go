package dcolock_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/xraph/dcolock"
	"github.com/xraph/dcolock/access"
	"github.com/xraph/dcolock/event"
	"github.com/xraph/dcolock/store/memory"
	tokenmem "github.com/xraph/dcolock/token/memory"
	"github.com/xraph/dcolock/types"
	"github.com/xraph/dcolock/vesting"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var (
	owner    = common.HexToAddress("0x0000000000000000000000000000000000000001")
	releaser = common.HexToAddress("0x0000000000000000000000000000000000000002")
	supplier = common.HexToAddress("0x0000000000000000000000000000000000000003")
	charity  = common.HexToAddress("0x0000000000000000000000000000000000000004")
	vault    = common.HexToAddress("0x000000000000000000000000000000000000d0c0")
	buyerA   = common.HexToAddress("0x000000000000000000000000000000000000000a")
	buyerB   = common.HexToAddress("0x000000000000000000000000000000000000000b")

	saleStart = time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	saleEnd   = time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	sevenMark = saleEnd.AddDate(0, 7, 0)
	yearMark  = saleEnd.AddDate(1, 0, 0)
)

// scaled returns n whole tokens at 18 decimals.
func scaled(n uint64) types.Amount {
	a, _ := types.NewAmount(n).Mul(types.Pow10(18))
	return a
}

type fixture struct {
	l     *dcolock.Ledger
	clk   *clock.Mock
	tok   *tokenmem.Token
	store *memory.Store
}

func newFixture(t *testing.T, tune ...func(*dcolock.Config)) *fixture {
	t.Helper()

	cfg := dcolock.DefaultConfig()
	cfg.SaleEnd = saleEnd
	cfg.Owner = owner
	cfg.Charity = charity
	cfg.Releasers = []common.Address{releaser}
	cfg.WalletSuppliers = []common.Address{supplier}
	for _, fn := range tune {
		fn(&cfg)
	}

	clk := clock.NewMock()
	clk.Set(saleStart)
	st := memory.New()
	tok := tokenmem.New(vault)
	require.NoError(t, tok.Mint(vault, scaled(1_000_000)))

	l, err := dcolock.New(st, tok,
		dcolock.WithConfig(cfg),
		dcolock.WithClock(clk),
		dcolock.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	require.NoError(t, err)
	require.NoError(t, l.Start(context.Background()))
	t.Cleanup(func() { _ = l.Stop() })

	return &fixture{l: l, clk: clk, tok: tok, store: st}
}

func as(account common.Address) context.Context {
	return dcolock.WithCaller(context.Background(), account)
}

func (f *fixture) balance(t *testing.T, holder common.Address) types.Amount {
	t.Helper()
	bal, err := f.tok.BalanceOf(context.Background(), holder)
	require.NoError(t, err)
	return bal
}

func (f *fixture) events(t *testing.T) []*event.Event {
	t.Helper()
	evts, err := f.l.Events(context.Background(), event.ListOpts{})
	require.NoError(t, err)
	return evts
}

func eventTypes(evts []*event.Event) []event.Type {
	out := make([]event.Type, 0, len(evts))
	for _, e := range evts {
		out = append(out, e.Type)
	}
	return out
}

// ──────────────────────────────────────────────────
// Lifecycle
// ──────────────────────────────────────────────────

func TestNewRejectsInvalidConfig(t *testing.T) {
	tok := tokenmem.New(vault)

	_, err := dcolock.New(memory.New(), tok)
	assert.ErrorIs(t, err, dcolock.ErrInvalidConfig)

	cfg := dcolock.DefaultConfig()
	cfg.SaleEnd = saleEnd
	cfg.Owner = owner
	cfg.OneYearMark = saleEnd.AddDate(0, 1, 0)
	_, err = dcolock.New(memory.New(), tok, dcolock.WithConfig(cfg))
	assert.ErrorIs(t, err, dcolock.ErrInvalidConfig)
}

func TestOperationsRequireStart(t *testing.T) {
	cfg := dcolock.DefaultConfig()
	cfg.SaleEnd = saleEnd
	cfg.Owner = owner
	l, err := dcolock.New(memory.New(), tokenmem.New(vault), dcolock.WithConfig(cfg))
	require.NoError(t, err)

	_, err = l.Allocate(as(releaser), buyerA, types.NewAmount(1), types.Amount{})
	assert.ErrorIs(t, err, dcolock.ErrNotStarted)
	_, err = l.State(context.Background())
	assert.ErrorIs(t, err, dcolock.ErrNotStarted)
}

func TestStartBootstrapsRoles(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, tc := range []struct {
		role    access.Role
		account common.Address
	}{
		{access.RoleOwner, owner},
		{access.RoleReleaser, releaser},
		{access.RoleWalletSupplier, supplier},
	} {
		ok, err := f.l.HasRole(ctx, tc.role, tc.account)
		require.NoError(t, err)
		assert.True(t, ok, "%s %s", tc.role, tc.account.Hex())
	}

	evts := f.events(t)
	require.Len(t, evts, 3)
	for i, e := range evts {
		assert.Equal(t, event.TypeRoleGranted, e.Type)
		assert.Equal(t, uint64(i+1), e.Sequence)
	}

	st, err := f.l.State(ctx)
	require.NoError(t, err)
	assert.Equal(t, types.NewAmount(500), st.TokenPrice)
	assert.Equal(t, sevenMark, st.SevenMonthMark)
	assert.Equal(t, yearMark, st.OneYearMark)
	assert.Equal(t, uint64(3), st.EventSeq)
}

// ──────────────────────────────────────────────────
// Quote and allocation
// ──────────────────────────────────────────────────

func TestQuote(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	buy, gift, err := f.l.Quote(ctx, types.Amount{}, types.Amount{})
	require.NoError(t, err)
	assert.True(t, buy.IsZero())
	assert.True(t, gift.IsZero())

	buy, gift, err = f.l.Quote(ctx, types.NewAmount(1_000_000), types.NewAmount(500))
	require.NoError(t, err)
	assert.Equal(t, scaled(2000), buy)
	assert.Equal(t, scaled(1), gift)

	// 600M reference units buy 1.2M tokens; only 1M are held.
	buy, gift, err = f.l.Quote(ctx, types.NewAmount(600_000_000), types.NewAmount(1_000_000))
	require.NoError(t, err)
	assert.Equal(t, scaled(2000), gift)
	assert.Equal(t, scaled(998_000), buy)

	// A donation of exactly what is held leaves nothing to purchase.
	buy, gift, err = f.l.Quote(ctx, types.NewAmount(1), types.NewAmount(500_000_000))
	require.NoError(t, err)
	assert.True(t, buy.IsZero())
	assert.Equal(t, scaled(1_000_000), gift)

	_, _, err = f.l.Quote(ctx, types.NewAmount(1), types.NewAmount(600_000_000))
	require.ErrorIs(t, err, dcolock.ErrInsufficientSupply)
	var amt *dcolock.AmountError
	require.ErrorAs(t, err, &amt)
	assert.Equal(t, "donation_tokens", amt.Field)
	assert.Equal(t, scaled(1_200_000), amt.Value)
	assert.Equal(t, scaled(1_000_000), amt.Limit)
}

func TestAllocateReferenceScenario(t *testing.T) {
	f := newFixture(t)

	before, err := f.l.TokenSold(context.Background())
	require.NoError(t, err)

	alloc, err := f.l.Allocate(as(releaser), buyerA, types.NewAmount(1_000_000), types.Amount{})
	require.NoError(t, err)

	want := scaled(2000)
	assert.Equal(t, want, alloc.PurchaseTokens)
	assert.True(t, alloc.DonationTokens.IsZero())
	assert.Equal(t, 0, alloc.PriceUpdates)

	lock, err := f.l.GetLock(context.Background(), buyerA)
	require.NoError(t, err)
	assert.Equal(t, want, lock.TotalAmount)
	assert.Equal(t, scaled(1000), lock.SevenMonthAmount)
	assert.Equal(t, scaled(1000), lock.OneYearAmount)
	assert.Equal(t, saleStart, lock.LockTimestamp)

	after, err := f.l.TokenSold(context.Background())
	require.NoError(t, err)
	sum, _ := before.Add(want)
	assert.Equal(t, sum, after)

	evts := f.events(t)
	assert.Equal(t, []event.Type{
		event.TypeRoleGranted, event.TypeRoleGranted, event.TypeRoleGranted,
		event.TypeTokensAllocated, event.TypeTokensLocked,
	}, eventTypes(evts))
	assert.Equal(t, types.NewAmount(1_000_000), evts[3].RefAmount)
	assert.Equal(t, types.NewAmount(500), evts[3].Price)
}

func TestAllocateTopUpKeepsTimestamp(t *testing.T) {
	f := newFixture(t)

	_, err := f.l.Allocate(as(releaser), buyerA, types.NewAmount(1_000_000), types.Amount{})
	require.NoError(t, err)
	f.clk.Add(24 * time.Hour)
	alloc, err := f.l.Allocate(as(releaser), buyerA, types.NewAmount(500_000), types.Amount{})
	require.NoError(t, err)

	assert.Equal(t, scaled(3000), alloc.Lock.TotalAmount)
	assert.Equal(t, scaled(1500), alloc.Lock.SevenMonthAmount)
	assert.Equal(t, scaled(1500), alloc.Lock.OneYearAmount)
	assert.Equal(t, saleStart, alloc.Lock.LockTimestamp)
}

func TestAllocateWithDonation(t *testing.T) {
	f := newFixture(t)

	alloc, err := f.l.Allocate(as(releaser), buyerA, types.NewAmount(1_000_000), types.NewAmount(500_000))
	require.NoError(t, err)
	assert.Equal(t, scaled(1000), alloc.DonationTokens)

	st, err := f.l.State(context.Background())
	require.NoError(t, err)
	assert.Equal(t, scaled(3000), st.TokenSold)
	assert.Equal(t, scaled(1000), st.TotalDonations)
	assert.Equal(t, types.NewAmount(1_500_000), st.TotalUsdGathered)

	evts := f.events(t)
	last := evts[len(evts)-1]
	assert.Equal(t, event.TypeDonationRecorded, last.Type)
	assert.Equal(t, scaled(1000), last.Amount)
}

func TestAllocateRepricing(t *testing.T) {
	f := newFixture(t, func(c *dcolock.Config) {
		c.InitialPrice = types.NewAmount(990)
		c.Threshold = types.NewAmount(1)
		c.IncrementThreshold = types.NewAmount(1)
	})

	// 3M reference units normalize to 3: three thresholds crossed.
	alloc, err := f.l.Allocate(as(releaser), buyerA, types.NewAmount(3_000_000), types.Amount{})
	require.NoError(t, err)
	assert.Equal(t, 3, alloc.PriceUpdates)
	assert.Equal(t, types.NewAmount(990), alloc.Price)
	assert.Equal(t, types.NewAmount(1010), alloc.NewPrice)

	st, err := f.l.State(context.Background())
	require.NoError(t, err)
	assert.Equal(t, types.NewAmount(4), st.Threshold)
	assert.Equal(t, types.NewAmount(10), st.PriceStep)

	var prices []types.Amount
	var kinds []event.Type
	for _, e := range f.events(t)[3:] {
		kinds = append(kinds, e.Type)
		if e.Type == event.TypePriceUpdated {
			prices = append(prices, e.Price)
		}
	}
	assert.Equal(t, []event.Type{
		event.TypePriceUpdated, event.TypePriceUpdated, event.TypePriceUpdated,
		event.TypeTokensAllocated, event.TypeTokensLocked,
	}, kinds)
	assert.Equal(t, []types.Amount{types.NewAmount(995), types.NewAmount(1000), types.NewAmount(1010)}, prices)
}

func TestAllocateRejections(t *testing.T) {
	tests := []struct {
		name     string
		caller   common.Address
		buyer    common.Address
		purchase types.Amount
		donation types.Amount
		prepare  func(*testing.T, *fixture)
		want     error
	}{
		{"not releaser", buyerA, buyerA, types.NewAmount(1), types.Amount{}, nil, dcolock.ErrUnauthorized},
		{"sale inactive", releaser, buyerA, types.NewAmount(1), types.Amount{}, func(_ *testing.T, f *fixture) {
			f.clk.Set(saleEnd.Add(time.Second))
		}, dcolock.ErrSaleInactive},
		{"zero amounts", releaser, buyerA, types.Amount{}, types.Amount{}, nil, dcolock.ErrInvalidAmount},
		{"null buyer", releaser, common.Address{}, types.NewAmount(1), types.Amount{}, nil, dcolock.ErrInvalidAddress},
		{"no supply", releaser, buyerA, types.NewAmount(1), types.Amount{}, func(t *testing.T, f *fixture) {
			require.NoError(t, f.tok.TransferOut(context.Background(), owner, scaled(1_000_000)))
		}, dcolock.ErrNoSupply},
		{"insufficient supply", releaser, buyerA, types.NewAmount(600_000_000), types.Amount{}, nil, dcolock.ErrInsufficientSupply},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			if tt.prepare != nil {
				tt.prepare(t, f)
			}
			before, err := f.l.State(context.Background())
			require.NoError(t, err)
			beforeEvents := len(f.events(t))

			_, err = f.l.Allocate(as(tt.caller), tt.buyer, tt.purchase, tt.donation)
			require.ErrorIs(t, err, tt.want)

			after, err := f.l.State(context.Background())
			require.NoError(t, err)
			assert.Equal(t, before, after)
			assert.Len(t, f.events(t), beforeEvents)

			_, err = f.l.GetLock(context.Background(), tt.buyer)
			assert.ErrorIs(t, err, dcolock.ErrLockNotFound)
		})
	}
}

func TestInsufficientSupplyCarriesLimit(t *testing.T) {
	f := newFixture(t)

	_, err := f.l.Allocate(as(releaser), buyerA, types.NewAmount(600_000_000), types.Amount{})
	var amountErr *dcolock.AmountError
	require.ErrorAs(t, err, &amountErr)
	assert.Equal(t, scaled(1_200_000), amountErr.Value)
	assert.Equal(t, scaled(1_000_000), amountErr.Limit)
	assert.True(t, dcolock.IsRetryable(err))
}

func TestLockTokens(t *testing.T) {
	f := newFixture(t)

	lock, err := f.l.LockTokens(as(supplier), buyerB, types.NewAmount(11))
	require.NoError(t, err)
	assert.Equal(t, types.NewAmount(5), lock.SevenMonthAmount)
	assert.Equal(t, types.NewAmount(6), lock.OneYearAmount)

	sold, err := f.l.TokenSold(context.Background())
	require.NoError(t, err)
	assert.Equal(t, types.NewAmount(11), sold)

	_, err = f.l.LockTokens(as(releaser), buyerB, types.NewAmount(1))
	assert.True(t, dcolock.IsAuthorization(err))
}

// ──────────────────────────────────────────────────
// Claims
// ──────────────────────────────────────────────────

func TestClaimTimeline(t *testing.T) {
	f := newFixture(t)
	_, err := f.l.Allocate(as(releaser), buyerA, types.NewAmount(1_000_000), types.Amount{})
	require.NoError(t, err)

	_, err = f.l.Claim(as(buyerA))
	require.ErrorIs(t, err, dcolock.ErrSevenMonthLockActive)
	assert.True(t, dcolock.IsTimingError(err))

	f.clk.Set(sevenMark)
	claim, err := f.l.Claim(as(buyerA))
	require.NoError(t, err)
	assert.Equal(t, scaled(1000), claim.Amount)
	assert.Equal(t, event.StageSevenMonth, claim.Stage)
	assert.Equal(t, vesting.TrancheSevenMonth, claim.Tranches)
	assert.Equal(t, claim.Lock.SevenMonthAmount, claim.Lock.SevenMonthClaimed)
	assert.Equal(t, scaled(1000), f.balance(t, buyerA))

	_, err = f.l.Claim(as(buyerA))
	require.ErrorIs(t, err, dcolock.ErrNothingToWithdraw)
	assert.ErrorIs(t, err, dcolock.ErrOneYearLockActive)

	f.clk.Set(yearMark)
	claim, err = f.l.Claim(as(buyerA))
	require.NoError(t, err)
	assert.Equal(t, scaled(1000), claim.Amount)
	assert.Equal(t, event.StageOneYear, claim.Stage)
	assert.Equal(t, vesting.TrancheOneYear, claim.Tranches)
	assert.Equal(t, scaled(2000), f.balance(t, buyerA))

	_, err = f.l.Claim(as(buyerA))
	require.ErrorIs(t, err, dcolock.ErrNothingToWithdraw)
	assert.NotErrorIs(t, err, dcolock.ErrOneYearLockActive)

	lock, err := f.l.GetLock(context.Background(), buyerA)
	require.NoError(t, err)
	assert.Equal(t, lock.SevenMonthAmount, lock.SevenMonthClaimed)
	assert.Equal(t, lock.OneYearAmount, lock.OneYearClaimed)
}

func TestClaimBothTranchesAtOnce(t *testing.T) {
	f := newFixture(t)
	_, err := f.l.Allocate(as(releaser), buyerA, types.NewAmount(1_000_001), types.Amount{})
	require.NoError(t, err)

	f.clk.Set(yearMark.Add(time.Hour))
	claim, err := f.l.Claim(as(buyerA))
	require.NoError(t, err)
	assert.Equal(t, vesting.TrancheBoth, claim.Tranches)
	assert.Equal(t, event.StageOneYear, claim.Stage)
	assert.Equal(t, claim.Lock.TotalAmount, claim.Amount)

	st, err := f.l.State(context.Background())
	require.NoError(t, err)
	assert.Equal(t, claim.Amount, st.TotalClaimed)
}

func TestClaimNothingLocked(t *testing.T) {
	f := newFixture(t)
	f.clk.Set(yearMark)
	_, err := f.l.Claim(as(buyerB))
	assert.ErrorIs(t, err, dcolock.ErrNothingLocked)
}

func TestClaimWithoutCaller(t *testing.T) {
	f := newFixture(t)
	f.clk.Set(yearMark)

	_, err := f.l.Claim(context.Background())
	require.ErrorIs(t, err, dcolock.ErrUnauthorized)
	var roleErr *dcolock.RoleError
	require.ErrorAs(t, err, &roleErr)
	assert.Equal(t, common.Address{}, roleErr.Account)

	_, err = f.l.Claim(as(common.Address{}))
	assert.ErrorIs(t, err, dcolock.ErrUnauthorized)
}

func TestClaimRollsBackFailedTransfer(t *testing.T) {
	f := newFixture(t)
	_, err := f.l.Allocate(as(releaser), buyerA, types.NewAmount(1_000_000), types.Amount{})
	require.NoError(t, err)
	f.clk.Set(sevenMark)

	before, err := f.l.State(context.Background())
	require.NoError(t, err)
	beforeEvents := len(f.events(t))

	errToken := errors.New("token paused")
	f.tok.FailNext(errToken)
	_, err = f.l.Claim(as(buyerA))
	require.ErrorIs(t, err, errToken)

	after, err := f.l.State(context.Background())
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assert.Len(t, f.events(t), beforeEvents)

	lock, err := f.store.GetLock(context.Background(), buyerA)
	require.NoError(t, err)
	assert.True(t, lock.SevenMonthClaimed.IsZero())
	assert.True(t, f.balance(t, buyerA).IsZero())

	claim, err := f.l.Claim(as(buyerA))
	require.NoError(t, err)
	assert.Equal(t, scaled(1000), claim.Amount)
}

func TestReentrantCallsAreRejected(t *testing.T) {
	f := newFixture(t)
	_, err := f.l.Allocate(as(releaser), buyerA, types.NewAmount(1_000_000), types.Amount{})
	require.NoError(t, err)
	f.clk.Set(yearMark)

	var (
		mu      sync.Mutex
		claimed error
		read    error
	)
	f.tok.OnTransfer(func(ctx context.Context, _, _ common.Address, _ types.Amount) error {
		_, cErr := f.l.Claim(ctx)
		_, rErr := f.l.State(ctx)
		mu.Lock()
		claimed, read = cErr, rErr
		mu.Unlock()
		return nil
	})

	claim, err := f.l.Claim(as(buyerA))
	require.NoError(t, err)
	assert.Equal(t, scaled(2000), claim.Amount)

	mu.Lock()
	defer mu.Unlock()
	assert.ErrorIs(t, claimed, dcolock.ErrReentrantCall)
	assert.ErrorIs(t, read, dcolock.ErrReentrantCall)
	assert.Equal(t, scaled(2000), f.balance(t, buyerA))
}

func TestReentrantCallsWithFreshContextAreRejected(t *testing.T) {
	f := newFixture(t)
	_, err := f.l.Allocate(as(releaser), buyerA, types.NewAmount(1_000_000), types.Amount{})
	require.NoError(t, err)
	f.clk.Set(yearMark)

	var (
		mu      sync.Mutex
		claimed error
		read    error
	)
	f.tok.OnTransfer(func(context.Context, common.Address, common.Address, types.Amount) error {
		fresh := dcolock.WithCaller(context.Background(), buyerA)
		_, cErr := f.l.Claim(fresh)
		_, rErr := f.l.State(fresh)
		mu.Lock()
		claimed, read = cErr, rErr
		mu.Unlock()
		return nil
	})

	done := make(chan error, 1)
	go func() {
		_, err := f.l.Claim(as(buyerA))
		done <- err
	}()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("claim did not return")
	}

	mu.Lock()
	assert.ErrorIs(t, claimed, dcolock.ErrReentrantCall)
	assert.ErrorIs(t, read, dcolock.ErrReentrantCall)
	mu.Unlock()

	// The ledger accepts calls again once the transfer is done.
	_, err = f.l.State(as(buyerA))
	require.NoError(t, err)
	assert.Equal(t, scaled(2000), f.balance(t, buyerA))
}

func TestClaimableAndCountdown(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.l.Allocate(as(releaser), buyerA, types.NewAmount(1_000_000), types.Amount{})
	require.NoError(t, err)

	amount, tranches, err := f.l.Claimable(ctx, buyerA)
	require.NoError(t, err)
	assert.True(t, amount.IsZero())
	assert.Equal(t, vesting.TrancheNone, tranches)

	c, err := f.l.TimeUntilVest(ctx)
	require.NoError(t, err)
	assert.Equal(t, saleEnd.Sub(saleStart), c.SaleEnd)
	assert.Equal(t, sevenMark.Sub(saleStart), c.SevenMonth)

	f.clk.Set(sevenMark.Add(time.Minute))
	amount, tranches, err = f.l.Claimable(ctx, buyerA)
	require.NoError(t, err)
	assert.Equal(t, scaled(1000), amount)
	assert.Equal(t, vesting.TrancheSevenMonth, tranches)

	c, err = f.l.TimeUntilVest(ctx)
	require.NoError(t, err)
	assert.Zero(t, c.SaleEnd)
	assert.Zero(t, c.SevenMonth)
	assert.Equal(t, yearMark.Sub(sevenMark.Add(time.Minute)), c.OneYear)
}

// ──────────────────────────────────────────────────
// Owner withdrawal and donations
// ──────────────────────────────────────────────────

func TestWithdrawAllScenario(t *testing.T) {
	f := newFixture(t)
	_, err := f.l.Allocate(as(releaser), buyerA, types.NewAmount(1_000_000), types.NewAmount(500_000))
	require.NoError(t, err)

	_, err = f.l.WithdrawAll(as(owner))
	require.ErrorIs(t, err, dcolock.ErrSaleStillActive)

	f.clk.Set(saleEnd.Add(time.Second))
	st, err := f.l.State(context.Background())
	require.NoError(t, err)
	bal := f.balance(t, vault)
	want := bal.SaturatingSub(st.TotalDonations).SaturatingSub(st.TokenSold)
	assert.Equal(t, scaled(996_000), want)

	sent, err := f.l.WithdrawAll(as(owner))
	require.NoError(t, err)
	assert.Equal(t, want, sent)
	assert.Equal(t, want, f.balance(t, owner))

	_, err = f.l.WithdrawAll(as(owner))
	assert.ErrorIs(t, err, dcolock.ErrNothingAvailable)
}

func TestWithdraw(t *testing.T) {
	f := newFixture(t)
	f.clk.Set(saleEnd.Add(time.Second))

	require.ErrorIs(t, f.l.Withdraw(as(releaser), scaled(1)), dcolock.ErrUnauthorized)
	require.ErrorIs(t, f.l.Withdraw(as(owner), types.Amount{}), dcolock.ErrInvalidAmount)
	require.ErrorIs(t, f.l.Withdraw(as(owner), scaled(1_000_001)), dcolock.ErrInsufficientAvailable)

	require.NoError(t, f.l.Withdraw(as(owner), scaled(10)))
	assert.Equal(t, scaled(10), f.balance(t, owner))

	available, err := f.l.Available(context.Background())
	require.NoError(t, err)
	assert.Equal(t, scaled(999_990), available)
}

func TestFlushDonationsReportsAmount(t *testing.T) {
	f := newFixture(t, func(c *dcolock.Config) { c.TokenDecimals = 1 })

	// 250,000 reference units at price 500 and scale 10 are 5000 tokens.
	_, err := f.l.Allocate(as(releaser), buyerA, types.Amount{}, types.NewAmount(250_000))
	require.NoError(t, err)

	sent, err := f.l.FlushDonations(as(releaser))
	require.NoError(t, err)
	assert.Equal(t, types.NewAmount(5000), sent)
	assert.Equal(t, types.NewAmount(5000), f.balance(t, charity))

	evts := f.events(t)
	last := evts[len(evts)-1]
	assert.Equal(t, event.TypeDonationsFlushed, last.Type)
	assert.Equal(t, types.NewAmount(5000), last.Amount)
	assert.Equal(t, charity, last.Account)

	st, err := f.l.State(context.Background())
	require.NoError(t, err)
	assert.True(t, st.TotalDonations.IsZero())
	assert.Equal(t, types.NewAmount(5000), st.TotalFlushed)

	_, err = f.l.FlushDonations(as(releaser))
	assert.ErrorIs(t, err, dcolock.ErrNoDonations)
}

func TestDeposit(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.tok.Mint(supplier, scaled(50)))

	require.NoError(t, f.l.Deposit(as(supplier), scaled(50)))
	assert.Equal(t, scaled(1_000_050), f.balance(t, vault))
	assert.True(t, f.balance(t, supplier).IsZero())

	assert.ErrorIs(t, f.l.Deposit(as(buyerA), scaled(1)), dcolock.ErrUnauthorized)

	// A failing pull leaves no event behind.
	before := len(f.events(t))
	assert.Error(t, f.l.Deposit(as(supplier), scaled(1)))
	assert.Len(t, f.events(t), before)
}

// ──────────────────────────────────────────────────
// Administration
// ──────────────────────────────────────────────────

func TestPricingSetters(t *testing.T) {
	f := newFixture(t)
	ctx := as(releaser)

	assert.ErrorIs(t, f.l.SetThreshold(ctx, types.Amount{}), dcolock.ErrInvalidThreshold)
	assert.ErrorIs(t, f.l.SetIncrementThreshold(ctx, types.Amount{}), dcolock.ErrInvalidIncrementThreshold)
	assert.ErrorIs(t, f.l.SetTokenPrice(ctx, types.Amount{}), dcolock.ErrInvalidPrice)
	assert.ErrorIs(t, f.l.SetTokenPrice(ctx, types.NewAmount(499)), dcolock.ErrPriceDecrease)
	assert.ErrorIs(t, f.l.SetThreshold(as(owner), types.NewAmount(1)), dcolock.ErrUnauthorized)

	require.NoError(t, f.l.SetThreshold(ctx, types.NewAmount(7)))
	require.NoError(t, f.l.SetIncrementThreshold(ctx, types.NewAmount(9)))
	require.NoError(t, f.l.SetTokenPrice(ctx, types.NewAmount(1000)))

	st, err := f.l.State(context.Background())
	require.NoError(t, err)
	assert.Equal(t, types.NewAmount(7), st.Threshold)
	assert.Equal(t, types.NewAmount(9), st.IncrementThreshold)
	assert.Equal(t, types.NewAmount(1000), st.TokenPrice)
	assert.Equal(t, types.NewAmount(10), st.PriceStep)

	assert.Equal(t, []event.Type{
		event.TypeThresholdUpdated,
		event.TypeIncrementThresholdUpdated,
		event.TypePriceUpdated,
	}, eventTypes(f.events(t)[3:]))
}

func TestSetCharity(t *testing.T) {
	f := newFixture(t)
	next := common.HexToAddress("0x0000000000000000000000000000000000000c4a")

	assert.ErrorIs(t, f.l.SetCharity(as(owner), common.Address{}), dcolock.ErrInvalidAddress)
	assert.ErrorIs(t, f.l.SetCharity(as(releaser), next), dcolock.ErrUnauthorized)
	require.NoError(t, f.l.SetCharity(as(owner), next))

	st, err := f.l.State(context.Background())
	require.NoError(t, err)
	assert.Equal(t, next, st.Charity)
}

func TestRoleManagement(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.l.GrantRole(as(owner), access.RoleReleaser, buyerB))
	ok, err := f.l.HasRole(ctx, access.RoleReleaser, buyerB)
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = f.l.Allocate(as(buyerB), buyerA, types.NewAmount(1), types.Amount{})
	require.NoError(t, err)

	assert.ErrorIs(t, f.l.GrantRole(as(owner), access.RoleReleaser, buyerB), dcolock.ErrRoleAlreadyGranted)
	assert.ErrorIs(t, f.l.GrantRole(as(owner), access.Role("auditor"), buyerB), dcolock.ErrInvalidRole)
	assert.ErrorIs(t, f.l.GrantRole(as(buyerB), access.RoleOwner, buyerB), dcolock.ErrUnauthorized)
	assert.ErrorIs(t, f.l.RevokeRole(as(owner), access.RoleOwner, owner), dcolock.ErrLastOwner)
	assert.ErrorIs(t, f.l.RevokeRole(as(owner), access.RoleWalletSupplier, buyerB), dcolock.ErrRoleNotGranted)

	require.NoError(t, f.l.RevokeRole(as(owner), access.RoleReleaser, buyerB))
	ok, err = f.l.HasRole(ctx, access.RoleReleaser, buyerB)
	require.NoError(t, err)
	assert.False(t, ok)

	grants, err := f.store.ListGrants(ctx)
	require.NoError(t, err)
	assert.Len(t, grants, 3)

	members, err := f.l.Members(ctx, access.RoleReleaser)
	require.NoError(t, err)
	assert.Equal(t, []common.Address{releaser}, members)
}

// ──────────────────────────────────────────────────
// Plugins
// ──────────────────────────────────────────────────

type eventLog struct {
	mu     sync.Mutex
	events []event.Type
	failed []string
}

func (p *eventLog) Name() string { return "event-log" }

func (p *eventLog) OnEvent(_ context.Context, e *event.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e.Type)
	return nil
}

func (p *eventLog) OnOperationFailed(_ context.Context, op string, _ error) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failed = append(p.failed, op)
	return nil
}

func TestPluginsSeeCommittedEvents(t *testing.T) {
	cfg := dcolock.DefaultConfig()
	cfg.SaleEnd = saleEnd
	cfg.Owner = owner
	cfg.Releasers = []common.Address{releaser}

	clk := clock.NewMock()
	clk.Set(saleStart)
	tok := tokenmem.New(vault)
	require.NoError(t, tok.Mint(vault, scaled(10)))

	rec := &eventLog{}
	l, err := dcolock.New(memory.New(), tok,
		dcolock.WithConfig(cfg),
		dcolock.WithClock(clk),
		dcolock.WithPlugin(rec),
		dcolock.WithPluginTimeout(time.Second),
		dcolock.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	require.NoError(t, err)
	require.NoError(t, l.Start(context.Background()))
	defer func() { _ = l.Stop() }()

	_, err = l.Allocate(as(releaser), buyerA, types.NewAmount(1000), types.Amount{})
	require.NoError(t, err)
	_, err = l.Claim(as(buyerA))
	require.Error(t, err)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	assert.Equal(t, []event.Type{
		event.TypeRoleGranted, event.TypeRoleGranted,
		event.TypeTokensAllocated, event.TypeTokensLocked,
	}, rec.events)
	assert.Equal(t, []string{dcolock.OpClaim}, rec.failed)
}
