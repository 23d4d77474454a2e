package vesting

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
)

// Store reads persisted locks.
type Store interface {
	GetLock(ctx context.Context, account common.Address) (*Lock, error)
	ListLocks(ctx context.Context, opts ListOpts) ([]*Lock, error)
}

// ListOpts pages through locks ordered by creation time.
type ListOpts struct {
	Limit  int
	Offset int
}
