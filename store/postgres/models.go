package postgres

import (
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/xraph/grove"

	"github.com/xraph/dcolock/access"
	"github.com/xraph/dcolock/event"
	"github.com/xraph/dcolock/id"
	"github.com/xraph/dcolock/sale"
	"github.com/xraph/dcolock/types"
	"github.com/xraph/dcolock/vesting"
)

// stateKey is the primary key of the single sale state row.
const stateKey = "sale"

// ==================== State model ====================

type stateModel struct {
	grove.BaseModel `grove:"table:dcolock_state"`

	ID                 string    `grove:"id,pk"`
	SchemaVersion      int       `grove:"schema_version"`
	TokenPrice         string    `grove:"token_price"`
	PriceStep          string    `grove:"price_step"`
	Threshold          string    `grove:"threshold"`
	IncrementThreshold string    `grove:"increment_threshold"`
	TokenSold          string    `grove:"token_sold"`
	TotalUsdGathered   string    `grove:"total_usd_gathered"`
	TotalDonated       string    `grove:"total_donated"`
	TotalClaimed       string    `grove:"total_claimed"`
	TotalFlushed       string    `grove:"total_flushed"`
	OwnerWithdrawn     string    `grove:"owner_withdrawn"`
	TotalDonations     string    `grove:"total_donations"`
	SaleEndTime        time.Time `grove:"sale_end_time"`
	SevenMonthMark     time.Time `grove:"seven_month_mark"`
	OneYearMark        time.Time `grove:"one_year_mark"`
	Charity            string    `grove:"charity"`
	EventSeq           int64     `grove:"event_seq"`
	CreatedAt          time.Time `grove:"created_at"`
	UpdatedAt          time.Time `grove:"updated_at"`
}

func toStateModel(s *sale.State) *stateModel {
	return &stateModel{
		ID:                 stateKey,
		SchemaVersion:      s.SchemaVersion,
		TokenPrice:         s.TokenPrice.String(),
		PriceStep:          s.PriceStep.String(),
		Threshold:          s.Threshold.String(),
		IncrementThreshold: s.IncrementThreshold.String(),
		TokenSold:          s.TokenSold.String(),
		TotalUsdGathered:   s.TotalUsdGathered.String(),
		TotalDonated:       s.TotalDonated.String(),
		TotalClaimed:       s.TotalClaimed.String(),
		TotalFlushed:       s.TotalFlushed.String(),
		OwnerWithdrawn:     s.OwnerWithdrawn.String(),
		TotalDonations:     s.TotalDonations.String(),
		SaleEndTime:        s.SaleEndTime,
		SevenMonthMark:     s.SevenMonthMark,
		OneYearMark:        s.OneYearMark,
		Charity:            s.Charity.Hex(),
		EventSeq:           int64(s.EventSeq),
		CreatedAt:          s.CreatedAt,
		UpdatedAt:          s.UpdatedAt,
	}
}

func fromStateModel(m *stateModel) (*sale.State, error) {
	var d decoder
	s := &sale.State{
		Entity: types.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		SchemaVersion:      m.SchemaVersion,
		TokenPrice:         d.amount("token_price", m.TokenPrice),
		PriceStep:          d.amount("price_step", m.PriceStep),
		Threshold:          d.amount("threshold", m.Threshold),
		IncrementThreshold: d.amount("increment_threshold", m.IncrementThreshold),
		TokenSold:          d.amount("token_sold", m.TokenSold),
		TotalUsdGathered:   d.amount("total_usd_gathered", m.TotalUsdGathered),
		TotalDonated:       d.amount("total_donated", m.TotalDonated),
		TotalClaimed:       d.amount("total_claimed", m.TotalClaimed),
		TotalFlushed:       d.amount("total_flushed", m.TotalFlushed),
		OwnerWithdrawn:     d.amount("owner_withdrawn", m.OwnerWithdrawn),
		TotalDonations:     d.amount("total_donations", m.TotalDonations),
		SaleEndTime:        m.SaleEndTime.UTC(),
		SevenMonthMark:     m.SevenMonthMark.UTC(),
		OneYearMark:        m.OneYearMark.UTC(),
		Charity:            common.HexToAddress(m.Charity),
		EventSeq:           uint64(m.EventSeq),
	}
	if d.err != nil {
		return nil, d.err
	}
	if s.SchemaVersion > sale.SchemaVersion {
		return nil, fmt.Errorf("dcolock/postgres: state schema version %d is newer than %d", s.SchemaVersion, sale.SchemaVersion)
	}
	return s, nil
}

// ==================== Lock models ====================

type lockModel struct {
	grove.BaseModel `grove:"table:dcolock_locks"`

	Account           string    `grove:"account,pk"`
	ID                string    `grove:"id"`
	TotalAmount       string    `grove:"total_amount"`
	SevenMonthAmount  string    `grove:"seven_month_amount"`
	OneYearAmount     string    `grove:"one_year_amount"`
	SevenMonthClaimed string    `grove:"seven_month_claimed"`
	OneYearClaimed    string    `grove:"one_year_claimed"`
	LockTimestamp     time.Time `grove:"lock_timestamp"`
	CreatedAt         time.Time `grove:"created_at"`
	UpdatedAt         time.Time `grove:"updated_at"`
}

func toLockModel(l *vesting.Lock) *lockModel {
	return &lockModel{
		Account:           l.Account.Hex(),
		ID:                l.ID.String(),
		TotalAmount:       l.TotalAmount.String(),
		SevenMonthAmount:  l.SevenMonthAmount.String(),
		OneYearAmount:     l.OneYearAmount.String(),
		SevenMonthClaimed: l.SevenMonthClaimed.String(),
		OneYearClaimed:    l.OneYearClaimed.String(),
		LockTimestamp:     l.LockTimestamp,
		CreatedAt:         l.CreatedAt,
		UpdatedAt:         l.UpdatedAt,
	}
}

func fromLockModel(m *lockModel) (*vesting.Lock, error) {
	lockID, err := id.ParseLockID(m.ID)
	if err != nil {
		return nil, err
	}
	var d decoder
	l := &vesting.Lock{
		Entity: types.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:                lockID,
		Account:           common.HexToAddress(m.Account),
		TotalAmount:       d.amount("total_amount", m.TotalAmount),
		SevenMonthAmount:  d.amount("seven_month_amount", m.SevenMonthAmount),
		OneYearAmount:     d.amount("one_year_amount", m.OneYearAmount),
		SevenMonthClaimed: d.amount("seven_month_claimed", m.SevenMonthClaimed),
		OneYearClaimed:    d.amount("one_year_claimed", m.OneYearClaimed),
		LockTimestamp:     m.LockTimestamp.UTC(),
	}
	if d.err != nil {
		return nil, d.err
	}
	return l, nil
}

// ==================== Grant models ====================

type grantModel struct {
	grove.BaseModel `grove:"table:dcolock_grants"`

	ID        string    `grove:"id,pk"`
	Role      string    `grove:"role"`
	Account   string    `grove:"account"`
	GrantedBy string    `grove:"granted_by"`
	CreatedAt time.Time `grove:"created_at"`
	UpdatedAt time.Time `grove:"updated_at"`
}

func toGrantModel(g *access.Grant) *grantModel {
	return &grantModel{
		ID:        g.ID.String(),
		Role:      string(g.Role),
		Account:   g.Account.Hex(),
		GrantedBy: g.GrantedBy.Hex(),
		CreatedAt: g.CreatedAt,
		UpdatedAt: g.UpdatedAt,
	}
}

func fromGrantModel(m *grantModel) (*access.Grant, error) {
	grantID, err := id.ParseGrantID(m.ID)
	if err != nil {
		return nil, err
	}
	return &access.Grant{
		Entity: types.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:        grantID,
		Role:      access.Role(m.Role),
		Account:   common.HexToAddress(m.Account),
		GrantedBy: common.HexToAddress(m.GrantedBy),
	}, nil
}

// ==================== Event models ====================

type eventModel struct {
	grove.BaseModel `grove:"table:dcolock_events"`

	ID        string    `grove:"id,pk"`
	Seq       int64     `grove:"seq"`
	Type      string    `grove:"type"`
	Account   string    `grove:"account"`
	Amount    string    `grove:"amount"`
	RefAmount string    `grove:"ref_amount"`
	Price     string    `grove:"price"`
	Threshold string    `grove:"threshold"`
	Stage     int       `grove:"stage"`
	Tranches  int       `grove:"tranches"`
	Role      string    `grove:"role"`
	Timestamp time.Time `grove:"timestamp"`
}

func toEventModel(e *event.Event) *eventModel {
	return &eventModel{
		ID:        e.ID.String(),
		Seq:       int64(e.Sequence),
		Type:      string(e.Type),
		Account:   e.Account.Hex(),
		Amount:    e.Amount.String(),
		RefAmount: e.RefAmount.String(),
		Price:     e.Price.String(),
		Threshold: e.Threshold.String(),
		Stage:     int(e.Stage),
		Tranches:  int(e.Tranches),
		Role:      string(e.Role),
		Timestamp: e.Timestamp,
	}
}

func fromEventModel(m *eventModel) (*event.Event, error) {
	eventID, err := id.ParseEventID(m.ID)
	if err != nil {
		return nil, err
	}
	var d decoder
	e := &event.Event{
		ID:        eventID,
		Sequence:  uint64(m.Seq),
		Type:      event.Type(m.Type),
		Account:   common.HexToAddress(m.Account),
		Amount:    d.amount("amount", m.Amount),
		RefAmount: d.amount("ref_amount", m.RefAmount),
		Price:     d.amount("price", m.Price),
		Threshold: d.amount("threshold", m.Threshold),
		Stage:     uint8(m.Stage),
		Tranches:  vesting.Tranche(m.Tranches),
		Role:      access.Role(m.Role),
		Timestamp: m.Timestamp.UTC(),
	}
	if d.err != nil {
		return nil, d.err
	}
	return e, nil
}

// decoder parses decimal amount columns, keeping the first failure.
type decoder struct{ err error }

func (d *decoder) amount(column, s string) types.Amount {
	if d.err != nil {
		return types.Amount{}
	}
	a, err := types.ParseAmount(s)
	if err != nil {
		d.err = fmt.Errorf("dcolock/postgres: column %s: %w", column, err)
	}
	return a
}
