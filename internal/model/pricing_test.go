package model

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPriceChanges_ValueScan(t *testing.T) {
	in := PriceChanges{PriceField: {Old: decimal.NewFromInt(1000), New: decimal.NewFromInt(1200)}}

	v, err := in.Value()
	require.NoError(t, err)

	var out PriceChanges
	require.NoError(t, out.Scan([]byte(v.(string))))
	require.Contains(t, out, PriceField)
	assert.True(t, out[PriceField].Old.Equal(decimal.NewFromInt(1000)))
	assert.True(t, out[PriceField].New.Equal(decimal.NewFromInt(1200)))

	assert.Error(t, out.Scan(42))
}

func TestPriceAuditRecord_RejectsEmptyChanges(t *testing.T) {
	r := PriceAuditRecord{MerchantID: "m", SubProductID: "p", Reason: "promo", ChangedBy: "u"}
	assert.ErrorContains(t, r.Validate(), "changes")

	r.Changes = PriceChanges{PriceField: {Old: decimal.Zero, New: decimal.NewFromInt(5)}}
	assert.NoError(t, r.Validate())
}

func TestScheduleStatusTerminal(t *testing.T) {
	assert.False(t, SchedulePending.Terminal())
	assert.False(t, ScheduleProcessing.Terminal())
	assert.True(t, ScheduleApplied.Terminal())
	assert.True(t, ScheduleCancelled.Terminal())
	assert.True(t, ScheduleFailed.Terminal())
}
