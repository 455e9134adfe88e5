package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func validEntry() StockLedgerEntry {
	return StockLedgerEntry{
		ID:                "e1",
		MerchantID:        "m1",
		SizeID:            "s1",
		SubProductID:      "p1",
		Seq:               1,
		MovementType:      MovementSale,
		Direction:         DirectionOut,
		Quantity:          3,
		PriorQuantity:     5,
		ResultingQuantity: 2,
		Reason:            "order",
		PerformedBy:       "u1",
		OccurredAt:        time.Now().UTC(),
	}
}

func TestStockLedgerEntry_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(e *StockLedgerEntry)
		wantErr string
	}{
		{name: "valid", mutate: func(e *StockLedgerEntry) {}},
		{name: "zero quantity", mutate: func(e *StockLedgerEntry) { e.Quantity = 0 }, wantErr: "greater than zero"},
		{name: "unknown type", mutate: func(e *StockLedgerEntry) { e.MovementType = "gift" }, wantErr: "unknown movement type"},
		{name: "blank reason", mutate: func(e *StockLedgerEntry) { e.Reason = "  " }, wantErr: "reason"},
		{name: "wrong arithmetic", mutate: func(e *StockLedgerEntry) { e.ResultingQuantity = 3 }, wantErr: "does not match"},
		{
			name: "underflow",
			mutate: func(e *StockLedgerEntry) {
				e.PriorQuantity = 1
				e.ResultingQuantity = -2
			},
			wantErr: "negative",
		},
		{
			name: "sale cannot move in",
			mutate: func(e *StockLedgerEntry) {
				e.Direction = DirectionIn
				e.ResultingQuantity = 8
			},
			wantErr: "always moves out",
		},
		{
			name: "adjustment without direction",
			mutate: func(e *StockLedgerEntry) {
				e.MovementType = MovementAdjustment
				e.Direction = ""
			},
			wantErr: "requires direction",
		},
		{
			name: "adjustment up",
			mutate: func(e *StockLedgerEntry) {
				e.MovementType = MovementAdjustment
				e.Direction = DirectionIn
				e.ResultingQuantity = 8
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := validEntry()
			tt.mutate(&e)
			err := e.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestEntryDelta(t *testing.T) {
	e := validEntry()
	assert.Equal(t, int64(-3), e.Delta())

	e.MovementType = MovementReturn
	e.Direction = DirectionIn
	assert.Equal(t, int64(3), e.Delta())
}
