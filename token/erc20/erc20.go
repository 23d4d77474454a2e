// Package erc20 implements token.Token against a deployed ERC-20 contract
// through go-ethereum's bound-contract bindings.
package erc20

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/xraph/dcolock/token"
	"github.com/xraph/dcolock/types"
)

// ABI is the subset of the EIP-20 interface the adapter calls.
const ABI = `[
	{"type":"function","name":"balanceOf","stateMutability":"view",
	 "inputs":[{"name":"account","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"decimals","stateMutability":"view",
	 "inputs":[],"outputs":[{"name":"","type":"uint8"}]},
	{"type":"function","name":"transfer","stateMutability":"nonpayable",
	 "inputs":[{"name":"to","type":"address"},{"name":"value","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]},
	{"type":"function","name":"transferFrom","stateMutability":"nonpayable",
	 "inputs":[{"name":"from","type":"address"},{"name":"to","type":"address"},{"name":"value","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]}
]`

// ErrTransactionReverted is returned when a mined transfer has failed status.
var ErrTransactionReverted = errors.New("erc20: transaction reverted")

// compile-time interface check
var _ token.Token = (*Token)(nil)

// Backend is what the adapter needs from a node connection.
// *ethclient.Client satisfies it.
type Backend interface {
	bind.ContractBackend
	bind.DeployBackend
}

// Token is an ERC-20 contract seen from the ledger's holding account.
type Token struct {
	contract *bind.BoundContract
	backend  Backend
	auth     *bind.TransactOpts
}

// ParseABI parses the adapter's ABI.
func ParseABI() (abi.ABI, error) {
	return abi.JSON(strings.NewReader(ABI))
}

// New binds the contract at address. auth signs transfers and its From is
// the ledger's holding account; it must hold an allowance for TransferIn.
func New(address common.Address, backend Backend, auth *bind.TransactOpts) (*Token, error) {
	if auth == nil {
		return nil, errors.New("erc20: transactor is required")
	}
	parsed, err := ParseABI()
	if err != nil {
		return nil, fmt.Errorf("erc20: parse abi: %w", err)
	}
	return &Token{
		contract: bind.NewBoundContract(address, parsed, backend, backend, backend),
		backend:  backend,
		auth:     auth,
	}, nil
}

// Dial connects to rawURL and binds the contract at address.
func Dial(ctx context.Context, rawURL string, address common.Address, auth *bind.TransactOpts) (*Token, error) {
	client, err := ethclient.DialContext(ctx, rawURL)
	if err != nil {
		return nil, fmt.Errorf("erc20: dial %s: %w", rawURL, err)
	}
	return New(address, client, auth)
}

// Address implements token.Token.
func (t *Token) Address() common.Address { return t.auth.From }

// Decimals reads the token's decimal places.
func (t *Token) Decimals(ctx context.Context) (uint8, error) {
	var out []any
	if err := t.contract.Call(&bind.CallOpts{Context: ctx}, &out, "decimals"); err != nil {
		return 0, fmt.Errorf("erc20: decimals: %w", err)
	}
	return *abi.ConvertType(out[0], new(uint8)).(*uint8), nil
}

// BalanceOf implements token.Token.
func (t *Token) BalanceOf(ctx context.Context, holder common.Address) (types.Amount, error) {
	var out []any
	if err := t.contract.Call(&bind.CallOpts{Context: ctx}, &out, "balanceOf", holder); err != nil {
		return types.Amount{}, fmt.Errorf("erc20: balanceOf %s: %w", holder.Hex(), err)
	}
	raw := abi.ConvertType(out[0], new(big.Int)).(*big.Int)
	bal, ok := types.AmountFromBig(raw)
	if !ok {
		return types.Amount{}, fmt.Errorf("erc20: balance %s out of range", raw)
	}
	return bal, nil
}

// TransferIn implements token.Token with transferFrom(from, self, amount).
func (t *Token) TransferIn(ctx context.Context, from common.Address, amount types.Amount) error {
	return t.transact(ctx, "transferFrom", from, t.auth.From, amount.Big())
}

// TransferOut implements token.Token with transfer(to, amount).
func (t *Token) TransferOut(ctx context.Context, to common.Address, amount types.Amount) error {
	return t.transact(ctx, "transfer", to, amount.Big())
}

// transact sends the call and waits until it is mined.
func (t *Token) transact(ctx context.Context, method string, params ...any) error {
	opts := *t.auth
	opts.Context = ctx

	tx, err := t.contract.Transact(&opts, method, params...)
	if err != nil {
		return fmt.Errorf("erc20: %s: %w", method, err)
	}
	receipt, err := bind.WaitMined(ctx, t.backend, tx)
	if err != nil {
		return fmt.Errorf("erc20: wait %s %s: %w", method, tx.Hash().Hex(), err)
	}
	if receipt.Status != gethtypes.ReceiptStatusSuccessful {
		return fmt.Errorf("%w: %s %s", ErrTransactionReverted, method, tx.Hash().Hex())
	}
	return nil
}
