// Package memory provides an in-process ERC-20 style token for tests and
// simulation. Transfers can trigger hooks, which makes it possible to
// exercise re-entrant callers the way a hook-bearing token contract would.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/xraph/dcolock/token"
	"github.com/xraph/dcolock/types"
)

// compile-time interface check
var _ token.Token = (*Token)(nil)

// Hook runs after a transfer has been applied. Returning an error reverts
// the transfer and fails it with that error.
type Hook func(ctx context.Context, from, to common.Address, amount types.Amount) error

// Token is a balance map guarded by a mutex.
type Token struct {
	mu       sync.Mutex
	self     common.Address
	balances map[common.Address]types.Amount
	hooks    []Hook
	failNext error
}

// New creates a token whose holding account is self.
func New(self common.Address) *Token {
	return &Token{
		self:     self,
		balances: make(map[common.Address]types.Amount),
	}
}

// Address implements token.Token.
func (t *Token) Address() common.Address { return t.self }

// Mint credits amount to holder.
func (t *Token) Mint(holder common.Address, amount types.Amount) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	next, overflow := t.balances[holder].Add(amount)
	if overflow {
		return fmt.Errorf("token: mint overflows balance of %s", holder.Hex())
	}
	t.balances[holder] = next
	return nil
}

// OnTransfer registers a hook invoked after every transfer.
func (t *Token) OnTransfer(h Hook) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.hooks = append(t.hooks, h)
}

// FailNext makes the next transfer fail with err without moving funds.
func (t *Token) FailNext(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.failNext = err
}

// BalanceOf implements token.Token.
func (t *Token) BalanceOf(_ context.Context, holder common.Address) (types.Amount, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.balances[holder], nil
}

// TransferIn implements token.Token.
func (t *Token) TransferIn(ctx context.Context, from common.Address, amount types.Amount) error {
	return t.transfer(ctx, from, t.self, amount)
}

// TransferOut implements token.Token.
func (t *Token) TransferOut(ctx context.Context, to common.Address, amount types.Amount) error {
	return t.transfer(ctx, t.self, to, amount)
}

func (t *Token) transfer(ctx context.Context, from, to common.Address, amount types.Amount) error {
	t.mu.Lock()
	if err := t.failNext; err != nil {
		t.failNext = nil
		t.mu.Unlock()
		return err
	}
	if err := t.move(from, to, amount); err != nil {
		t.mu.Unlock()
		return err
	}
	hooks := t.hooks
	t.mu.Unlock()

	// Hooks run unlocked so they may query balances or call back into
	// whoever initiated the transfer.
	for _, h := range hooks {
		if err := h(ctx, from, to, amount); err != nil {
			t.mu.Lock()
			_ = t.move(to, from, amount) //nolint:errcheck // reverting a transfer that just succeeded
			t.mu.Unlock()
			return err
		}
	}
	return nil
}

func (t *Token) move(from, to common.Address, amount types.Amount) error {
	debited, underflow := t.balances[from].Sub(amount)
	if underflow {
		return fmt.Errorf("%w: %s holds %s, needs %s",
			token.ErrInsufficientBalance, from.Hex(), t.balances[from], amount)
	}
	if from == to {
		return nil
	}
	credited, overflow := t.balances[to].Add(amount)
	if overflow {
		return fmt.Errorf("token: transfer overflows balance of %s", to.Hex())
	}
	t.balances[from] = debited
	t.balances[to] = credited
	return nil
}
