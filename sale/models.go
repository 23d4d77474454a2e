// Package sale holds the global sale state and the tiered repricing schedule.
package sale

import (
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/xraph/dcolock/types"
)

// SchemaVersion is the current version of the persisted State layout.
// Bump it whenever a field is added, removed or changes meaning.
const SchemaVersion = 1

// State is the singleton ledger state. It is mutated only through ledger
// operations; stores persist it as a single row or document.
type State struct {
	types.Entity

	SchemaVersion int `json:"schema_version"`

	// Pricing.
	TokenPrice         types.Amount `json:"token_price"`
	PriceStep          types.Amount `json:"price_step"`
	Threshold          types.Amount `json:"threshold"`
	IncrementThreshold types.Amount `json:"increment_threshold"`

	// Cumulative counters.
	TokenSold        types.Amount `json:"token_sold"`
	TotalUsdGathered types.Amount `json:"total_usd_gathered"`
	TotalDonated     types.Amount `json:"total_donated"`
	TotalClaimed     types.Amount `json:"total_claimed"`
	TotalFlushed     types.Amount `json:"total_flushed"`
	OwnerWithdrawn   types.Amount `json:"owner_withdrawn"`

	// TotalDonations is the pending charity balance, reset by a flush.
	TotalDonations types.Amount `json:"total_donations"`

	SaleEndTime    time.Time      `json:"sale_end_time"`
	SevenMonthMark time.Time      `json:"seven_month_mark"`
	OneYearMark    time.Time      `json:"one_year_mark"`
	Charity        common.Address `json:"charity"`

	// EventSeq is the sequence number of the last emitted event.
	EventSeq uint64 `json:"event_seq"`
}

// Clone returns an independent copy.
func (s *State) Clone() *State {
	c := *s
	return &c
}

// Active reports whether the sale accepts allocations at now.
// The end time itself is still inside the sale.
func (s *State) Active(now time.Time) bool {
	return !now.After(s.SaleEndTime)
}

// Ended reports whether the sale is over at now.
func (s *State) Ended(now time.Time) bool {
	return now.After(s.SaleEndTime)
}

// Committed returns the tokens held back from owner withdrawal: every token
// ever allocated that has not left the ledger, plus the pending donation
// balance on top. Donation tokens are counted in TokenSold as well, so a
// pending donation is reserved twice until it is flushed.
func (s *State) Committed() types.Amount {
	remaining := s.TokenSold.SaturatingSub(s.TotalClaimed).SaturatingSub(s.TotalFlushed)
	owed, _ := remaining.Add(s.TotalDonations)
	return owed
}

// Available returns the part of balance not committed to buyers or charity.
// It never underflows.
func (s *State) Available(balance types.Amount) types.Amount {
	return balance.SaturatingSub(s.Committed())
}

// NextSeq advances and returns the event sequence.
func (s *State) NextSeq() uint64 {
	s.EventSeq++
	return s.EventSeq
}
