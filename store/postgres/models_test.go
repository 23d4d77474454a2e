package postgres

import (
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/dcolock/event"
	"github.com/xraph/dcolock/sale"
	"github.com/xraph/dcolock/types"
	"github.com/xraph/dcolock/vesting"
)

func TestStateModelKeepsFullWidthAmounts(t *testing.T) {
	big := types.MustParseAmount("115792089237316195423570985008687907853269984665640564039457584007913129639935")
	st := &sale.State{
		SchemaVersion: sale.SchemaVersion,
		TokenPrice:    types.NewAmount(500),
		TokenSold:     big,
		SaleEndTime:   time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
		Charity:       common.HexToAddress("0xc0ffee"),
		EventSeq:      42,
	}

	m := toStateModel(st)
	assert.Equal(t, stateKey, m.ID)

	got, err := fromStateModel(m)
	require.NoError(t, err)
	assert.Equal(t, big, got.TokenSold)
	assert.Equal(t, st.Charity, got.Charity)
	assert.Equal(t, uint64(42), got.EventSeq)
}

func TestStateModelRejectsNewerSchema(t *testing.T) {
	m := toStateModel(&sale.State{SchemaVersion: sale.SchemaVersion + 1})
	_, err := fromStateModel(m)
	assert.Error(t, err)
}

func TestStateModelRejectsBadAmount(t *testing.T) {
	m := toStateModel(&sale.State{})
	m.TokenSold = "not-a-number"
	_, err := fromStateModel(m)
	assert.ErrorContains(t, err, "token_sold")
}

func TestLockAndEventModels(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	l := vesting.NewLock(common.HexToAddress("0xa11ce"))
	require.True(t, l.Merge(types.NewAmount(7), now))

	gotLock, err := fromLockModel(toLockModel(l))
	require.NoError(t, err)
	assert.Equal(t, l.ID.String(), gotLock.ID.String())
	assert.Equal(t, types.NewAmount(3), gotLock.SevenMonthAmount)
	assert.Equal(t, types.NewAmount(4), gotLock.OneYearAmount)

	e := event.New(event.TypeTokensClaimed, 9, now)
	e.Stage = event.StageOneYear
	e.Tranches = vesting.TrancheBoth
	gotEvent, err := fromEventModel(toEventModel(e))
	require.NoError(t, err)
	assert.Equal(t, uint64(9), gotEvent.Sequence)
	assert.Equal(t, vesting.TrancheBoth, gotEvent.Tranches)
	assert.Equal(t, event.StageOneYear, gotEvent.Stage)
}
