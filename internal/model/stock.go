package model

import (
	"fmt"
	"strings"
	"time"
)

type MovementType string

const (
	MovementIncrease   MovementType = "increase"
	MovementDecrease   MovementType = "decrease"
	MovementAdjustment MovementType = "adjustment"
	MovementSale       MovementType = "sale"
	MovementReturn     MovementType = "return"
	MovementDamaged    MovementType = "damaged"
	MovementTransfer   MovementType = "transfer"
)

type Direction string

const (
	DirectionIn  Direction = "in"
	DirectionOut Direction = "out"
)

// fixedDirections holds every movement type whose direction is implied by the type itself.
// Adjustments are absent on purpose: the caller states their direction.
var fixedDirections = map[MovementType]Direction{
	MovementIncrease: DirectionIn,
	MovementReturn:   DirectionIn,
	MovementDecrease: DirectionOut,
	MovementSale:     DirectionOut,
	MovementDamaged:  DirectionOut,
	MovementTransfer: DirectionOut,
}

func (t MovementType) Valid() bool {
	if t == MovementAdjustment {
		return true
	}
	_, ok := fixedDirections[t]
	return ok
}

// ResolveDirection returns the direction a movement of this type moves stock in.
// For adjustments the requested direction is used and must be set.
func (t MovementType) ResolveDirection(requested Direction) (Direction, error) {
	if !t.Valid() {
		return "", fmt.Errorf("unknown movement type %q", t)
	}
	if t == MovementAdjustment {
		if !requested.Valid() {
			return "", fmt.Errorf("adjustment requires direction in or out")
		}
		return requested, nil
	}
	fixed := fixedDirections[t]
	if requested != "" && requested != fixed {
		return "", fmt.Errorf("movement type %s always moves %s", t, fixed)
	}
	return fixed, nil
}

func (d Direction) Valid() bool {
	return d == DirectionIn || d == DirectionOut
}

// Apply returns the quantity after moving qty units from prior in direction d.
func (d Direction) Apply(prior, qty int64) int64 {
	if d == DirectionOut {
		return prior - qty
	}
	return prior + qty
}

type StockLedgerEntry struct {
	ID                string       `db:"id" json:"id"`
	MerchantID        string       `db:"merchant_id" json:"merchant_id"`
	SizeID            string       `db:"size_id" json:"size_id"`
	SubProductID      string       `db:"sub_product_id" json:"sub_product_id"`
	Seq               int64        `db:"seq" json:"seq"`
	MovementType      MovementType `db:"movement_type" json:"movement_type"`
	Direction         Direction    `db:"direction" json:"direction"`
	Quantity          int64        `db:"quantity" json:"quantity"`
	PriorQuantity     int64        `db:"prior_quantity" json:"prior_quantity"`
	ResultingQuantity int64        `db:"resulting_quantity" json:"resulting_quantity"`
	Reason            string       `db:"reason" json:"reason"`
	ReferenceID       *string      `db:"reference_id" json:"reference_id,omitempty"`
	PerformedBy       string       `db:"performed_by" json:"performed_by"`
	OccurredAt        time.Time    `db:"occurred_at" json:"occurred_at"`
}

// Validate checks the entry is internally consistent before it is appended.
func (e *StockLedgerEntry) Validate() error {
	switch {
	case e.MerchantID == "" || e.SizeID == "" || e.SubProductID == "":
		return fmt.Errorf("merchant, size and sub-product are required")
	case e.Seq <= 0:
		return fmt.Errorf("seq must be positive")
	case e.Quantity <= 0:
		return fmt.Errorf("quantity must be greater than zero")
	case strings.TrimSpace(e.Reason) == "":
		return fmt.Errorf("reason is required")
	case e.PerformedBy == "":
		return fmt.Errorf("performed_by is required")
	case e.PriorQuantity < 0:
		return fmt.Errorf("prior quantity cannot be negative")
	}

	dir, err := e.MovementType.ResolveDirection(e.Direction)
	if err != nil {
		return err
	}
	if e.Direction != dir {
		return fmt.Errorf("direction must be %s for %s", dir, e.MovementType)
	}
	if want := dir.Apply(e.PriorQuantity, e.Quantity); e.ResultingQuantity != want {
		return fmt.Errorf("resulting quantity %d does not match %d %s %d",
			e.ResultingQuantity, e.PriorQuantity, dir, e.Quantity)
	}
	if e.ResultingQuantity < 0 {
		return fmt.Errorf("resulting quantity cannot be negative")
	}
	return nil
}

// Delta is the signed change this entry applied.
func (e *StockLedgerEntry) Delta() int64 {
	if e.Direction == DirectionOut {
		return -e.Quantity
	}
	return e.Quantity
}

type StockCounter struct {
	MerchantID        string    `db:"merchant_id" json:"merchant_id"`
	SizeID            string    `db:"size_id" json:"size_id"`
	SubProductID      string    `db:"sub_product_id" json:"sub_product_id"`
	CurrentQuantity   int64     `db:"current_quantity" json:"current_quantity"`
	LastLedgerEntryID string    `db:"last_ledger_entry_id" json:"last_ledger_entry_id"`
	LastSeq           int64     `db:"last_seq" json:"last_seq"`
	Version           int64     `db:"version" json:"version"`
	UpdatedAt         time.Time `db:"updated_at" json:"updated_at"`
}

type StockCheckpoint struct {
	ID           string    `db:"id" json:"id"`
	MerchantID   string    `db:"merchant_id" json:"merchant_id"`
	SizeID       string    `db:"size_id" json:"size_id"`
	SubProductID string    `db:"sub_product_id" json:"sub_product_id"`
	Seq          int64     `db:"seq" json:"seq"`
	Quantity     int64     `db:"quantity" json:"quantity"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// StockDiscrepancy records a counter that disagreed with its ledger replay.
// The ledger is authoritative; the counter was healed when this was written.
type StockDiscrepancy struct {
	ID              string    `db:"id" json:"id"`
	MerchantID      string    `db:"merchant_id" json:"merchant_id"`
	SizeID          string    `db:"size_id" json:"size_id"`
	SubProductID    string    `db:"sub_product_id" json:"sub_product_id"`
	CounterQuantity int64     `db:"counter_quantity" json:"counter_quantity"`
	LedgerQuantity  int64     `db:"ledger_quantity" json:"ledger_quantity"`
	CounterSeq      int64     `db:"counter_seq" json:"counter_seq"`
	LedgerSeq       int64     `db:"ledger_seq" json:"ledger_seq"`
	Detail          string    `db:"detail" json:"detail"`
	DetectedAt      time.Time `db:"detected_at" json:"detected_at"`
}

// StockKey identifies one stock-bearing pair inside a merchant.
type StockKey struct {
	MerchantID   string `db:"merchant_id"`
	SizeID       string `db:"size_id"`
	SubProductID string `db:"sub_product_id"`
}

func (k StockKey) String() string {
	return k.MerchantID + ":" + k.SizeID + ":" + k.SubProductID
}
