package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Organization is the seller: every user and invoice belongs to one.
type Organization struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	BusinessName string    `gorm:"type:varchar(255);not null" json:"business_name"`
	NTNCNIC      string    `gorm:"column:ntn_cnic;type:varchar(20);not null;uniqueIndex" json:"ntn_cnic"`
	Province     string    `gorm:"type:varchar(100)" json:"province"`
	Address      string    `gorm:"type:text" json:"address"`
	FBRToken     string    `gorm:"column:fbr_token;type:text" json:"-"` // Bearer token issued by FBR for this seller
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (o *Organization) BeforeCreate(*gorm.DB) error {
	assignID(&o.ID)
	return nil
}
