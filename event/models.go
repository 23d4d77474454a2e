// Package event defines the domain events emitted for every state change.
// Off-chain observers can rebuild ledger history from the event log alone.
package event

import (
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/xraph/dcolock/access"
	"github.com/xraph/dcolock/id"
	"github.com/xraph/dcolock/types"
	"github.com/xraph/dcolock/vesting"
)

// Type names an event kind.
type Type string

const (
	TypePriceUpdated              Type = "price.updated"
	TypeTokensAllocated           Type = "tokens.allocated"
	TypeTokensLocked              Type = "tokens.locked"
	TypeDonationRecorded          Type = "donation.recorded"
	TypeTokensClaimed             Type = "tokens.claimed"
	TypeOwnerWithdrawal           Type = "owner.withdrawal"
	TypeDonationsFlushed          Type = "donations.flushed"
	TypeTokensDeposited           Type = "tokens.deposited"
	TypeThresholdUpdated          Type = "threshold.updated"
	TypeIncrementThresholdUpdated Type = "increment_threshold.updated"
	TypeCharityUpdated            Type = "charity.updated"
	TypeRoleGranted               Type = "role.granted"
	TypeRoleRevoked               Type = "role.revoked"
)

// Release stages reported on claim events.
const (
	StageSevenMonth uint8 = 1
	StageOneYear    uint8 = 2
)

// Event is one entry of the ledger's append-only log. Fields that do not
// apply to a given Type are left zero.
type Event struct {
	ID        id.EventID     `json:"id"`
	Sequence  uint64         `json:"sequence"`
	Type      Type           `json:"type"`
	Account   common.Address `json:"account"`
	Amount    types.Amount   `json:"amount"`
	RefAmount types.Amount   `json:"ref_amount"`
	Price     types.Amount   `json:"price"`
	Threshold types.Amount   `json:"threshold"`

	// Stage is the release-type tag of a claim: StageOneYear once the
	// one-year mark has passed, StageSevenMonth before. Tranches says
	// precisely which portions the claim paid.
	Stage    uint8           `json:"stage,omitempty"`
	Tranches vesting.Tranche `json:"tranches,omitempty"`

	Role      access.Role `json:"role,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// New returns an event of type t with a fresh ID.
func New(t Type, seq uint64, at time.Time) *Event {
	return &Event{
		ID:        id.NewEventID(),
		Sequence:  seq,
		Type:      t,
		Timestamp: at.UTC(),
	}
}

// IsParameterChange reports whether the event records a configuration change.
func (e *Event) IsParameterChange() bool {
	switch e.Type {
	case TypeThresholdUpdated, TypeIncrementThresholdUpdated, TypeCharityUpdated:
		return true
	default:
		return false
	}
}

// IsRoleChange reports whether the event records a grant or revocation.
func (e *Event) IsRoleChange() bool {
	return e.Type == TypeRoleGranted || e.Type == TypeRoleRevoked
}
