package event

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
)

// Store reads the persisted event log.
type Store interface {
	// ListEvents returns events ordered by ascending sequence.
	ListEvents(ctx context.Context, opts ListOpts) ([]*Event, error)
}

// ListOpts filters the event log. Zero fields do not filter.
type ListOpts struct {
	Type          Type
	Account       common.Address
	AfterSequence uint64
	Limit         int
}

// Match reports whether e passes the filter, ignoring Limit.
func (o ListOpts) Match(e *Event) bool {
	if o.Type != "" && e.Type != o.Type {
		return false
	}
	if o.Account != (common.Address{}) && e.Account != o.Account {
		return false
	}
	return e.Sequence > o.AfterSequence
}
