// Package memory is an in-process store. Commits are atomic and every read
// returns a copy, so callers never alias stored records.
package memory

import (
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/xraph/dcolock"
	"github.com/xraph/dcolock/access"
	"github.com/xraph/dcolock/event"
	"github.com/xraph/dcolock/id"
	"github.com/xraph/dcolock/sale"
	"github.com/xraph/dcolock/store"
	"github.com/xraph/dcolock/vesting"
)

// compile-time interface check
var _ store.Store = (*Store)(nil)

type grantKey struct {
	role    access.Role
	account common.Address
}

type Store struct {
	mu     sync.RWMutex
	closed bool

	state *sale.State

	// Lock storage, in creation order
	locks     map[common.Address]*vesting.Lock
	lockOrder []common.Address

	// Grant storage
	grants map[grantKey]*access.Grant

	// Event log, ordered by sequence
	events []*event.Event
}

func New() *Store {
	return &Store{
		locks:  make(map[common.Address]*vesting.Lock),
		grants: make(map[grantKey]*access.Grant),
	}
}

// GetState implements sale.Store.
func (s *Store) GetState(_ context.Context) (*sale.State, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, dcolock.ErrStoreClosed
	}
	if s.state == nil {
		return nil, dcolock.ErrStateNotFound
	}
	return s.state.Clone(), nil
}

// GetLock implements vesting.Store.
func (s *Store) GetLock(_ context.Context, account common.Address) (*vesting.Lock, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, dcolock.ErrStoreClosed
	}
	if l, ok := s.locks[account]; ok {
		return l.Clone(), nil
	}
	return nil, dcolock.ErrLockNotFound
}

// ListLocks implements vesting.Store.
func (s *Store) ListLocks(_ context.Context, opts vesting.ListOpts) ([]*vesting.Lock, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, dcolock.ErrStoreClosed
	}

	// Apply limit/offset
	start := min(opts.Offset, len(s.lockOrder))
	end := start + opts.Limit
	if opts.Limit == 0 || end > len(s.lockOrder) {
		end = len(s.lockOrder)
	}

	result := make([]*vesting.Lock, 0, end-start)
	for _, account := range s.lockOrder[start:end] {
		result = append(result, s.locks[account].Clone())
	}
	return result, nil
}

// ListGrants implements access.Store.
func (s *Store) ListGrants(_ context.Context) ([]*access.Grant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, dcolock.ErrStoreClosed
	}

	result := make([]*access.Grant, 0, len(s.grants))
	for _, g := range s.grants {
		c := *g
		result = append(result, &c)
	}
	slices.SortFunc(result, func(a, b *access.Grant) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		if a.Role != b.Role {
			return strings.Compare(string(a.Role), string(b.Role))
		}
		return a.Account.Cmp(b.Account)
	})
	return result, nil
}

// ListEvents implements event.Store.
func (s *Store) ListEvents(_ context.Context, opts event.ListOpts) ([]*event.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, dcolock.ErrStoreClosed
	}

	result := make([]*event.Event, 0)
	for _, e := range s.events {
		if !opts.Match(e) {
			continue
		}
		c := *e
		result = append(result, &c)
		if opts.Limit > 0 && len(result) == opts.Limit {
			break
		}
	}
	return result, nil
}

// Commit implements store.Store. Either every part of cs is applied or none.
func (s *Store) Commit(_ context.Context, cs *store.Changeset) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return dcolock.ErrStoreClosed
	}

	// Validate before mutating anything.
	retract := make(map[string]struct{}, len(cs.Retract))
	for _, eid := range cs.Retract {
		retract[eid.String()] = struct{}{}
	}
	for _, e := range cs.Events {
		if s.hasEvent(e.ID) {
			if _, undone := retract[e.ID.String()]; !undone {
				return dcolock.ErrAlreadyExists
			}
		}
	}

	if cs.State != nil {
		s.state = cs.State.Clone()
	}
	for _, l := range cs.Locks {
		if _, ok := s.locks[l.Account]; !ok {
			s.lockOrder = append(s.lockOrder, l.Account)
		}
		s.locks[l.Account] = l.Clone()
	}
	for _, g := range cs.Revoked {
		delete(s.grants, grantKey{g.Role, g.Account})
	}
	for _, g := range cs.Grants {
		c := *g
		s.grants[grantKey{g.Role, g.Account}] = &c
	}
	if len(retract) > 0 {
		s.events = slices.DeleteFunc(s.events, func(e *event.Event) bool {
			_, ok := retract[e.ID.String()]
			return ok
		})
	}
	for _, e := range cs.Events {
		c := *e
		s.events = append(s.events, &c)
	}
	return nil
}

func (s *Store) hasEvent(eid id.EventID) bool {
	for _, e := range s.events {
		if e.ID.String() == eid.String() {
			return true
		}
	}
	return false
}

// Migrate implements store.Store.
func (s *Store) Migrate(_ context.Context) error { return nil }

// Ping implements store.Store.
func (s *Store) Ping(_ context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return dcolock.ErrStoreClosed
	}
	return nil
}

// Close implements store.Store.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	return nil
}
