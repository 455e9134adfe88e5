package dto

import "time"

type ScheduleFilters struct {
	MerchantID string
	ProductID  string
	Status     string
	Page       int
	PageSize   int
}

type AuditFilters struct {
	MerchantID   string
	SubProductID string
	Source       string
	StartDate    *time.Time
	EndDate      *time.Time
	Page         int
	PageSize     int
}

// SweepResult counts what one scheduler run did.
type SweepResult struct {
	Applied int `json:"applied"`
	Failed  int `json:"failed"`
	// Skipped items were due but claimed by another worker first.
	Skipped int `json:"skipped"`
}
