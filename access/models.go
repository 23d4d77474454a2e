// Package access models the three privileged roles of a sale and the
// caller identity carried through a request context.
package access

import (
	"context"
	"slices"

	"github.com/ethereum/go-ethereum/common"

	"github.com/xraph/dcolock/id"
	"github.com/xraph/dcolock/types"
)

// Role is a privileged capability independently grantable by the owner.
type Role string

const (
	// RoleOwner may withdraw inventory, set the charity and manage roles.
	RoleOwner Role = "owner"
	// RoleReleaser records purchases and donations and adjusts pricing.
	RoleReleaser Role = "releaser"
	// RoleWalletSupplier deposits sale inventory and locks tokens directly.
	RoleWalletSupplier Role = "wallet_supplier"
)

// Roles lists every known role.
func Roles() []Role {
	return []Role{RoleOwner, RoleReleaser, RoleWalletSupplier}
}

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return slices.Contains(Roles(), r)
}

// Grant records that Account holds Role.
type Grant struct {
	types.Entity

	ID        id.GrantID     `json:"id"`
	Role      Role           `json:"role"`
	Account   common.Address `json:"account"`
	GrantedBy common.Address `json:"granted_by"`
}

// Set is an in-memory index of grants. The zero value is not usable; use NewSet.
type Set struct {
	grants map[Role]map[common.Address]*Grant
}

// NewSet indexes the given grants.
func NewSet(grants ...*Grant) *Set {
	s := &Set{grants: make(map[Role]map[common.Address]*Grant)}
	for _, g := range grants {
		s.Add(g)
	}
	return s
}

// Has reports whether account holds role.
func (s *Set) Has(role Role, account common.Address) bool {
	_, ok := s.grants[role][account]
	return ok
}

// Get returns the grant for role and account, or nil.
func (s *Set) Get(role Role, account common.Address) *Grant {
	return s.grants[role][account]
}

// Add indexes g, replacing any grant for the same role and account.
func (s *Set) Add(g *Grant) {
	members, ok := s.grants[g.Role]
	if !ok {
		members = make(map[common.Address]*Grant)
		s.grants[g.Role] = members
	}
	members[g.Account] = g
}

// Remove drops the grant for role and account.
func (s *Set) Remove(role Role, account common.Address) {
	delete(s.grants[role], account)
}

// Members returns the accounts holding role, sorted by address.
func (s *Set) Members(role Role) []common.Address {
	out := make([]common.Address, 0, len(s.grants[role]))
	for addr := range s.grants[role] {
		out = append(out, addr)
	}
	slices.SortFunc(out, func(a, b common.Address) int { return a.Cmp(b) })
	return out
}

// Count returns how many accounts hold role.
func (s *Set) Count(role Role) int {
	return len(s.grants[role])
}

type callerKey struct{}

// WithCaller returns a context carrying the calling account.
func WithCaller(ctx context.Context, caller common.Address) context.Context {
	return context.WithValue(ctx, callerKey{}, caller)
}

// CallerFrom returns the calling account carried by ctx.
func CallerFrom(ctx context.Context) (common.Address, bool) {
	caller, ok := ctx.Value(callerKey{}).(common.Address)
	return caller, ok
}
