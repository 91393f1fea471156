package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Registration types reported by the FBR registration lookup.
const (
	RegistrationRegistered   = "Registered"
	RegistrationUnregistered = "Unregistered"
)

// Buyer is a customer saved by an organization for reuse on invoices
type Buyer struct {
	ID               uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	OrganizationID   uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_buyer_org_ntn" json:"organization_id"`
	NTNCNIC          string     `gorm:"column:ntn_cnic;type:varchar(20);not null;uniqueIndex:idx_buyer_org_ntn" json:"ntn_cnic"`
	BusinessName     string     `gorm:"type:varchar(255);not null" json:"business_name"`
	Province         string     `gorm:"type:varchar(100)" json:"province"`
	Address          string     `gorm:"type:text" json:"address"`
	RegistrationType string     `gorm:"type:varchar(20)" json:"registration_type"` // Registered, Unregistered or empty until checked
	StatusCheckedAt  *time.Time `json:"status_checked_at"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

func (b *Buyer) BeforeCreate(*gorm.DB) error {
	assignID(&b.ID)
	return nil
}
