package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type ScheduleStatus string

const (
	SchedulePending   ScheduleStatus = "pending"
	ScheduleApplied   ScheduleStatus = "applied"
	ScheduleCancelled ScheduleStatus = "cancelled"
	ScheduleFailed    ScheduleStatus = "failed"

	// ScheduleProcessing marks an item claimed by a sweep worker. It is never terminal:
	// the worker moves it on to applied or failed, or a stale claim is released back to pending.
	ScheduleProcessing ScheduleStatus = "processing"
)

func (s ScheduleStatus) Terminal() bool {
	return s == ScheduleApplied || s == ScheduleCancelled || s == ScheduleFailed
}

// SchedulerActor is recorded as the actor of every price change the sweep applies.
const SchedulerActor = "scheduler"

type ScheduledPriceChange struct {
	ID           string          `db:"id" json:"id"`
	MerchantID   string          `db:"merchant_id" json:"merchant_id"`
	ProductID    string          `db:"product_id" json:"product_id"`
	CurrentPrice decimal.Decimal `db:"current_price" json:"current_price"`
	NewPrice     decimal.Decimal `db:"new_price" json:"new_price"`
	EffectiveAt  time.Time       `db:"effective_at" json:"effective_at"`
	ScheduledBy  string          `db:"scheduled_by" json:"scheduled_by"`
	Status       ScheduleStatus  `db:"status" json:"status"`
	ClaimToken   *string         `db:"claim_token" json:"-"`
	ClaimedAt    *time.Time      `db:"claimed_at" json:"-"`
	AppliedAt    *time.Time      `db:"applied_at" json:"applied_at,omitempty"`
	AppliedBy    *string         `db:"applied_by" json:"applied_by,omitempty"`
	CancelledAt  *time.Time      `db:"cancelled_at" json:"cancelled_at,omitempty"`
	CancelledBy  *string         `db:"cancelled_by" json:"cancelled_by,omitempty"`
	Error        *string         `db:"error" json:"error,omitempty"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time       `db:"updated_at" json:"updated_at"`
}

type AuditSource string

const (
	AuditSourceManual    AuditSource = "manual"
	AuditSourceScheduled AuditSource = "scheduled"
)

// PriceField is the only field the pricing write path mutates.
const PriceField = "price"

type FieldChange struct {
	Old decimal.Decimal `json:"old"`
	New decimal.Decimal `json:"new"`
}

// PriceChanges maps a field name to its before/after values. Stored as JSON text.
type PriceChanges map[string]FieldChange

func (c PriceChanges) Value() (driver.Value, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func (c *PriceChanges) Scan(src interface{}) error {
	var data []byte
	switch v := src.(type) {
	case string:
		data = []byte(v)
	case []byte:
		data = v
	case nil:
		*c = nil
		return nil
	default:
		return fmt.Errorf("price changes: unsupported type %T", src)
	}
	return json.Unmarshal(data, c)
}

type PriceAuditRecord struct {
	ID           string       `db:"id" json:"id"`
	MerchantID   string       `db:"merchant_id" json:"merchant_id"`
	SubProductID string       `db:"sub_product_id" json:"sub_product_id"`
	Changes      PriceChanges `db:"changes" json:"changes"`
	Reason       string       `db:"reason" json:"reason"`
	ChangedBy    string       `db:"changed_by" json:"changed_by"`
	Source       AuditSource  `db:"source" json:"source"`
	ScheduleID   *string      `db:"schedule_id" json:"schedule_id,omitempty"`
	ChangedAt    time.Time    `db:"changed_at" json:"changed_at"`
}

func (r *PriceAuditRecord) Validate() error {
	switch {
	case r.MerchantID == "" || r.SubProductID == "":
		return fmt.Errorf("merchant and sub-product are required")
	case len(r.Changes) == 0:
		return fmt.Errorf("changes must not be empty")
	case strings.TrimSpace(r.Reason) == "":
		return fmt.Errorf("reason is required")
	case r.ChangedBy == "":
		return fmt.Errorf("changed_by is required")
	}
	return nil
}
