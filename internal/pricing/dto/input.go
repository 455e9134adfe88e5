package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

type AdjustPriceInput struct {
	MerchantID   string
	SubProductID string
	NewPrice     decimal.Decimal
	Reason       string
	UserID       string
}

type SchedulePriceChangeInput struct {
	MerchantID string
	// ProductID is the id of the price-bearing sub-product.
	ProductID   string
	NewPrice    decimal.Decimal
	EffectiveAt time.Time
	UserID      string
}

type CancelScheduleInput struct {
	MerchantID string
	ScheduleID string
	UserID     string
}
