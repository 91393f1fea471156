package repository

import (
	"context"
	"strings"

	"einvoice/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type BuyerRepository interface {
	Create(ctx context.Context, buyer *model.Buyer) error
	Update(ctx context.Context, buyer *model.Buyer) error
	Delete(ctx context.Context, orgID, id uuid.UUID) error
	FindByID(ctx context.Context, orgID, id uuid.UUID) (*model.Buyer, error)
	FindByNTNCNIC(ctx context.Context, orgID uuid.UUID, ntnCnic string) (*model.Buyer, error)
	List(ctx context.Context, orgID uuid.UUID, search string, page, limit int) ([]model.Buyer, int64, error)
}

type buyerRepository struct {
	db *gorm.DB
}

func NewBuyerRepository(db *gorm.DB) BuyerRepository {
	return &buyerRepository{db: db}
}

func (r *buyerRepository) Create(ctx context.Context, buyer *model.Buyer) error {
	return GetDB(ctx, r.db).Create(buyer).Error
}

func (r *buyerRepository) Update(ctx context.Context, buyer *model.Buyer) error {
	return GetDB(ctx, r.db).Save(buyer).Error
}

func (r *buyerRepository) Delete(ctx context.Context, orgID, id uuid.UUID) error {
	res := GetDB(ctx, r.db).Where("organization_id = ? AND id = ?", orgID, id).Delete(&model.Buyer{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *buyerRepository) FindByID(ctx context.Context, orgID, id uuid.UUID) (*model.Buyer, error) {
	var buyer model.Buyer
	if err := GetDB(ctx, r.db).First(&buyer, "organization_id = ? AND id = ?", orgID, id).Error; err != nil {
		return nil, err
	}
	return &buyer, nil
}

func (r *buyerRepository) FindByNTNCNIC(ctx context.Context, orgID uuid.UUID, ntnCnic string) (*model.Buyer, error) {
	var buyer model.Buyer
	if err := GetDB(ctx, r.db).First(&buyer, "organization_id = ? AND ntn_cnic = ?", orgID, ntnCnic).Error; err != nil {
		return nil, err
	}
	return &buyer, nil
}

func (r *buyerRepository) List(ctx context.Context, orgID uuid.UUID, search string, page, limit int) ([]model.Buyer, int64, error) {
	var buyers []model.Buyer
	var total int64

	scope := func(db *gorm.DB) *gorm.DB {
		db = db.Where("organization_id = ?", orgID)
		if search != "" {
			pattern := likePattern(strings.ToLower(search))
			db = db.Where("(LOWER(business_name) LIKE ? OR ntn_cnic LIKE ?)", pattern, pattern)
		}
		return db
	}

	db := GetDB(ctx, r.db)
	if err := db.Model(&model.Buyer{}).Scopes(scope).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	if err := db.Scopes(scope).Order("business_name").Offset(offset).Limit(limit).Find(&buyers).Error; err != nil {
		return nil, 0, err
	}

	return buyers, total, nil
}
