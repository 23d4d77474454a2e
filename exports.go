package dcolock

import (
	"github.com/xraph/dcolock/access"
	"github.com/xraph/dcolock/types"
)

// Re-export common types for convenience so users don't have to import the
// types and access packages.

// Amount is re-exported from types package.
type Amount = types.Amount

// Entity is re-exported from types package.
type Entity = types.Entity

// Role is re-exported from access package.
type Role = access.Role

// Re-export Amount constructors
var (
	NewAmount       = types.NewAmount
	ParseAmount     = types.ParseAmount
	MustParseAmount = types.MustParseAmount
)

// Re-export roles
const (
	RoleOwner          = access.RoleOwner
	RoleReleaser       = access.RoleReleaser
	RoleWalletSupplier = access.RoleWalletSupplier
)

// WithCaller returns a context identifying the account calling the ledger.
var WithCaller = access.WithCaller
