package dto

import "github.com/fekuna/omnipos-ledger-service/internal/model"

type RecordMovementInput struct {
	MerchantID   string
	SizeID       string
	SubProductID string
	MovementType model.MovementType
	// Direction is required for adjustments and must match the fixed direction otherwise.
	Direction   model.Direction
	Quantity    int64
	Reason      string
	ReferenceID string
	UserID      string
}

func (in *RecordMovementInput) Key() model.StockKey {
	return model.StockKey{MerchantID: in.MerchantID, SizeID: in.SizeID, SubProductID: in.SubProductID}
}
