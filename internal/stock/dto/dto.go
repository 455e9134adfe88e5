package dto

import (
	"time"

	"github.com/fekuna/omnipos-ledger-service/internal/model"
)

type MovementFilters struct {
	MerchantID   string
	SizeID       string
	SubProductID string
	MovementType string
	ReferenceID  string
	StartDate    *time.Time
	EndDate      *time.Time
	Page         int
	PageSize     int
}

type ReconcileResult struct {
	Key      model.StockKey
	Quantity int64
	LastSeq  int64
	// Discrepancy is set when the counter disagreed with the ledger and was healed.
	Discrepancy *model.StockDiscrepancy
}

type ReconcileSummary struct {
	Checked int `json:"checked"`
	Healed  int `json:"healed"`
}
