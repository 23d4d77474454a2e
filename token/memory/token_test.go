package memory_test

import (
	"context"
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/dcolock/token"
	"github.com/xraph/dcolock/token/memory"
	"github.com/xraph/dcolock/types"
)

var (
	vault = common.HexToAddress("0x000000000000000000000000000000000000d0c0")
	alice = common.HexToAddress("0x00000000000000000000000000000000000a11ce")
)

func TestTransfers(t *testing.T) {
	ctx := context.Background()
	tok := memory.New(vault)
	require.NoError(t, tok.Mint(alice, types.NewAmount(100)))

	require.NoError(t, tok.TransferIn(ctx, alice, types.NewAmount(60)))
	require.NoError(t, tok.TransferOut(ctx, alice, types.NewAmount(10)))

	bal, err := tok.BalanceOf(ctx, vault)
	require.NoError(t, err)
	assert.Equal(t, types.NewAmount(50), bal)

	bal, err = tok.BalanceOf(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, types.NewAmount(50), bal)
}

func TestTransferInsufficient(t *testing.T) {
	tok := memory.New(vault)
	err := tok.TransferOut(context.Background(), alice, types.NewAmount(1))
	assert.ErrorIs(t, err, token.ErrInsufficientBalance)
}

func TestHookRevertsOnError(t *testing.T) {
	ctx := context.Background()
	tok := memory.New(vault)
	require.NoError(t, tok.Mint(vault, types.NewAmount(10)))

	errHook := errors.New("rejected")
	var seen types.Amount
	tok.OnTransfer(func(_ context.Context, from, to common.Address, amount types.Amount) error {
		seen = amount
		assert.Equal(t, vault, from)
		assert.Equal(t, alice, to)
		return errHook
	})

	err := tok.TransferOut(ctx, alice, types.NewAmount(4))
	assert.ErrorIs(t, err, errHook)
	assert.Equal(t, types.NewAmount(4), seen)

	bal, _ := tok.BalanceOf(ctx, vault)
	assert.Equal(t, types.NewAmount(10), bal)
}

func TestHookReceivesContext(t *testing.T) {
	type key struct{}
	ctx := context.WithValue(context.Background(), key{}, "marker")

	tok := memory.New(vault)
	require.NoError(t, tok.Mint(vault, types.NewAmount(1)))

	var got any
	tok.OnTransfer(func(ctx context.Context, _, _ common.Address, _ types.Amount) error {
		got = ctx.Value(key{})
		return nil
	})

	require.NoError(t, tok.TransferOut(ctx, alice, types.NewAmount(1)))
	assert.Equal(t, "marker", got)
}

func TestFailNext(t *testing.T) {
	ctx := context.Background()
	tok := memory.New(vault)
	require.NoError(t, tok.Mint(vault, types.NewAmount(5)))

	boom := errors.New("boom")
	tok.FailNext(boom)
	assert.ErrorIs(t, tok.TransferOut(ctx, alice, types.NewAmount(1)), boom)
	assert.NoError(t, tok.TransferOut(ctx, alice, types.NewAmount(1)))
}
