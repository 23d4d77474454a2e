// Package token defines the fungible-token transfer capability the ledger
// moves inventory with.
package token

import (
	"context"
	"errors"

	"github.com/ethereum/go-ethereum/common"

	"github.com/xraph/dcolock/types"
)

// ErrInsufficientBalance is returned when a holder cannot cover a transfer.
var ErrInsufficientBalance = errors.New("token: insufficient balance")

// Token moves tokens into and out of the ledger's holding account.
//
// Implementations must pass ctx through to any callback they trigger so the
// ledger can recognize re-entrant calls.
type Token interface {
	// Address is the ledger's own holding account.
	Address() common.Address
	// BalanceOf returns the balance held by holder.
	BalanceOf(ctx context.Context, holder common.Address) (types.Amount, error)
	// TransferIn pulls amount from from into the holding account.
	TransferIn(ctx context.Context, from common.Address, amount types.Amount) error
	// TransferOut sends amount from the holding account to to.
	TransferOut(ctx context.Context, to common.Address, amount types.Amount) error
}
