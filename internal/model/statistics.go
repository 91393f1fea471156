package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// StatusTotals aggregates the invoices of one status
type StatusTotals struct {
	Status      string          `json:"status"`
	Count       int64           `json:"count"`
	Subtotal    decimal.Decimal `json:"subtotal"`
	TaxAmount   decimal.Decimal `json:"tax_amount"`
	TotalAmount decimal.Decimal `json:"total_amount"`
}

// DashboardSummary is the organization dashboard for a time window
type DashboardSummary struct {
	ByStatus           []StatusTotals  `json:"by_status"`
	TotalInvoices      int64           `json:"total_invoices"`
	SubmittedTaxAmount decimal.Decimal `json:"submitted_tax_amount"`
	TimeRangeStartDate time.Time       `json:"time_range_start_date"`
	TimeRangeEndDate   time.Time       `json:"time_range_end_date"`
}
