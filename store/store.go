// Package store defines the aggregate persistence interface of the ledger
// and the atomic changeset every operation commits.
package store

import (
	"context"

	"github.com/xraph/dcolock/access"
	"github.com/xraph/dcolock/event"
	"github.com/xraph/dcolock/id"
	"github.com/xraph/dcolock/sale"
	"github.com/xraph/dcolock/vesting"
)

// Store is the unified storage interface for all ledger entities.
type Store interface {
	sale.Store
	vesting.Store
	access.Store
	event.Store

	// Commit persists a changeset, revocations before grants. Only the
	// memory store applies it atomically; the grove-backed stores write it
	// statement by statement and may keep a prefix of a failed commit.
	Commit(ctx context.Context, cs *Changeset) error

	// Core methods
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}

// Changeset is everything one ledger operation writes.
type Changeset struct {
	// State replaces the sale state singleton when non-nil.
	State *sale.State
	// Locks are upserted by account.
	Locks []*vesting.Lock
	// Grants are upserted by (role, account).
	Grants []*access.Grant
	// Revoked grants are deleted by (role, account).
	Revoked []*access.Grant
	// Events are appended to the log.
	Events []*event.Event
	// Retract removes previously appended events. It is only used to undo
	// an operation whose token transfer failed after its commit.
	Retract []id.EventID
}

// IsEmpty reports whether the changeset writes nothing.
func (cs *Changeset) IsEmpty() bool {
	return cs.State == nil &&
		len(cs.Locks) == 0 &&
		len(cs.Grants) == 0 &&
		len(cs.Revoked) == 0 &&
		len(cs.Events) == 0 &&
		len(cs.Retract) == 0
}

// EventIDs returns the IDs of the changeset's events.
func (cs *Changeset) EventIDs() []id.EventID {
	ids := make([]id.EventID, 0, len(cs.Events))
	for _, e := range cs.Events {
		ids = append(ids, e.ID)
	}
	return ids
}
