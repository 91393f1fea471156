package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Invoice status values
const (
	InvoiceStatusDraft     = "draft"
	InvoiceStatusValidated = "validated"
	InvoiceStatusSubmitted = "submitted"
	InvoiceStatusFailed    = "failed"
)

// Invoice source values
const (
	InvoiceSourceSingle = "single"
	InvoiceSourceBulk   = "bulk"
	InvoiceSourceUpload = "upload"
)

// Invoice is a sales tax invoice prepared for the FBR Digital Invoicing gateway.
// Totals are the sums of the item lines and are recomputed whenever lines change.
type Invoice struct {
	ID                    uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	OrganizationID        uuid.UUID       `gorm:"type:uuid;not null;index" json:"organization_id"`
	CreatedBy             *uuid.UUID      `gorm:"type:uuid" json:"created_by"`
	InvoiceType           string          `gorm:"type:varchar(30);not null;default:'Sale Invoice'" json:"invoice_type"`
	InvoiceDate           string          `gorm:"type:varchar(20)" json:"invoice_date"` // yyyy-mm-dd as sent to FBR
	InvoiceRefNo          string          `gorm:"type:varchar(50);index" json:"invoice_ref_no"`
	ScenarioID            string          `gorm:"type:varchar(20)" json:"scenario_id"`
	BuyerNTNCNIC          string          `gorm:"column:buyer_ntn_cnic;type:varchar(20)" json:"buyer_ntn_cnic"`
	BuyerBusinessName     string          `gorm:"type:varchar(255)" json:"buyer_business_name"`
	BuyerProvince         string          `gorm:"type:varchar(100)" json:"buyer_province"`
	BuyerAddress          string          `gorm:"type:text" json:"buyer_address"`
	BuyerRegistrationType string          `gorm:"type:varchar(20)" json:"buyer_registration_type"`
	Subtotal              decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0" json:"subtotal"`
	TaxAmount             decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0" json:"tax_amount"`
	TotalAmount           decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0" json:"total_amount"`
	Status                string          `gorm:"type:varchar(20);not null;default:'draft';index" json:"status"`
	Source                string          `gorm:"type:varchar(20);not null;default:'single'" json:"source"`
	FBRInvoiceNumber      string          `gorm:"column:fbr_invoice_number;type:varchar(100)" json:"fbr_invoice_number"` // IRN issued on submission
	FBRStatusCode         string          `gorm:"column:fbr_status_code;type:varchar(10)" json:"fbr_status_code"`
	FBRErrors             string          `gorm:"column:fbr_errors;type:text" json:"fbr_errors"` // newline separated messages from the last check
	ValidatedAt           *time.Time      `json:"validated_at"`
	SubmittedAt           *time.Time      `json:"submitted_at"`
	Items                 []InvoiceItem   `gorm:"foreignKey:InvoiceID;constraint:OnDelete:CASCADE" json:"items"`
	CreatedAt             time.Time       `gorm:"index" json:"created_at"`
	UpdatedAt             time.Time       `json:"updated_at"`
}

func (i *Invoice) BeforeCreate(*gorm.DB) error {
	assignID(&i.ID)
	return nil
}

// Editable reports whether header and lines may still change.
func (i *Invoice) Editable() bool {
	return i.Status == InvoiceStatusDraft || i.Status == InvoiceStatusFailed
}

// InvoiceItem is one normalized line. Position keeps the order lines were supplied in.
type InvoiceItem struct {
	ID                              uuid.UUID           `gorm:"type:uuid;primaryKey" json:"id"`
	InvoiceID                       uuid.UUID           `gorm:"type:uuid;not null;index" json:"invoice_id"`
	Position                        int                 `gorm:"not null" json:"position"`
	ItemDescription                 string              `gorm:"type:varchar(255)" json:"item_description"`
	HSCode                          string              `gorm:"column:hs_code;type:varchar(20)" json:"hs_code"`
	Rate                            string              `gorm:"type:varchar(30)" json:"rate"`
	UoM                             string              `gorm:"column:uom;type:varchar(100)" json:"uom"`
	SaleType                        string              `gorm:"type:varchar(255)" json:"sale_type"`
	SroScheduleNo                   string              `gorm:"type:varchar(100)" json:"sro_schedule_no"`
	SroItemSerialNo                 string              `gorm:"type:varchar(100)" json:"sro_item_serial_no"`
	Quantity                        decimal.Decimal     `gorm:"type:decimal(18,4);not null;default:0" json:"quantity"`
	ValueSalesExcludingST           decimal.Decimal     `gorm:"column:value_sales_excluding_st;type:decimal(18,4);not null;default:0" json:"value_sales_excluding_st"`
	SalesTaxApplicable              decimal.Decimal     `gorm:"type:decimal(18,4);not null;default:0" json:"sales_tax_applicable"` // percent
	ExtraTax                        decimal.Decimal     `gorm:"type:decimal(18,4);not null;default:0" json:"extra_tax"`
	TotalValues                     decimal.NullDecimal `gorm:"type:decimal(18,4)" json:"total_values"`
	FixedNotifiedValueOrRetailPrice decimal.NullDecimal `gorm:"type:decimal(18,4)" json:"fixed_notified_value_or_retail_price"`
	SalesTaxWithheldAtSource        decimal.NullDecimal `gorm:"type:decimal(18,4)" json:"sales_tax_withheld_at_source"`
	FurtherTax                      decimal.NullDecimal `gorm:"type:decimal(18,4)" json:"further_tax"`
	FedPayable                      decimal.NullDecimal `gorm:"type:decimal(18,4)" json:"fed_payable"`
	Discount                        decimal.NullDecimal `gorm:"type:decimal(18,4)" json:"discount"`
	LineSubtotal                    decimal.Decimal     `gorm:"type:decimal(18,4);not null;default:0" json:"line_subtotal"`
	LineTax                         decimal.Decimal     `gorm:"type:decimal(18,4);not null;default:0" json:"line_tax"`
	LineTotal                       decimal.Decimal     `gorm:"type:decimal(18,4);not null;default:0" json:"line_total"`
	CreatedAt                       time.Time           `json:"created_at"`
}

func (it *InvoiceItem) BeforeCreate(*gorm.DB) error {
	assignID(&it.ID)
	return nil
}
