package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	ActionRegisterOrganization = "REGISTER_ORGANIZATION"
	ActionUpdateOrganization   = "UPDATE_ORGANIZATION"
	ActionCreateUser           = "CREATE_USER"
	ActionDeleteUser           = "DELETE_USER"

	ActionCreateInvoice     = "CREATE_INVOICE"
	ActionBulkCreateInvoice = "BULK_CREATE_INVOICES"
	ActionUploadInvoices    = "UPLOAD_INVOICES"
	ActionUpdateInvoice     = "UPDATE_INVOICE"
	ActionDeleteInvoice     = "DELETE_INVOICE"
	ActionValidateInvoice   = "VALIDATE_INVOICE"
	ActionSubmitInvoice     = "SUBMIT_INVOICE"

	ActionCreateBuyer        = "CREATE_BUYER"
	ActionUpdateBuyer        = "UPDATE_BUYER"
	ActionDeleteBuyer        = "DELETE_BUYER"
	ActionRefreshBuyerStatus = "REFRESH_BUYER_STATUS"
)

// AuditLog tracks Who, What, and When for critical system changes
type AuditLog struct {
	ID             uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	OrganizationID *uuid.UUID `gorm:"type:uuid;index" json:"organization_id"`
	UserID         *uuid.UUID `gorm:"type:uuid;index" json:"user_id"` // Nullable gracefully if automated bot
	User           *User      `gorm:"foreignKey:UserID" json:"user"`
	Action         string     `gorm:"type:varchar(50);not null;index" json:"action"`
	EntityID       string     `gorm:"type:varchar(50);index" json:"entity_id"`        // Reference string (uuid/code)
	EntityName     string     `gorm:"type:varchar(255)" json:"entity_name,omitempty"` // Human readable name
	Details        string     `gorm:"type:jsonb" json:"details"`                      // Serialized JSON payload of the action
	CreatedAt      time.Time  `gorm:"index" json:"created_at"`
}

func (a *AuditLog) BeforeCreate(*gorm.DB) error {
	assignID(&a.ID)
	return nil
}
