package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"einvoice/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrInvoiceSubmitted is returned by Update and Delete when the stored row
// was submitted after the caller read it.
var ErrInvoiceSubmitted = errors.New("invoice already submitted")

// InvoiceListFilter narrows an organization's invoice list.
type InvoiceListFilter struct {
	OrganizationID uuid.UUID
	Status         string
	Search         string // matches ref no, buyer name, buyer NTN/CNIC or IRN
	Page           int
	Limit          int
}

type InvoiceRepository interface {
	Create(ctx context.Context, invoice *model.Invoice) error
	FindByID(ctx context.Context, orgID, id uuid.UUID) (*model.Invoice, error)
	List(ctx context.Context, filter InvoiceListFilter) ([]model.Invoice, int64, error)
	Update(ctx context.Context, invoice *model.Invoice) error
	ReplaceItems(ctx context.Context, invoiceID uuid.UUID, items []model.InvoiceItem) error
	Delete(ctx context.Context, orgID, id uuid.UUID) error
	SummaryByStatus(ctx context.Context, orgID uuid.UUID, start, end time.Time) ([]model.StatusTotals, error)
}

type invoiceRepository struct {
	db *gorm.DB
}

func NewInvoiceRepository(db *gorm.DB) InvoiceRepository {
	return &invoiceRepository{db: db}
}

// Create inserts the invoice together with its items.
func (r *invoiceRepository) Create(ctx context.Context, invoice *model.Invoice) error {
	return GetDB(ctx, r.db).Create(invoice).Error
}

func (r *invoiceRepository) FindByID(ctx context.Context, orgID, id uuid.UUID) (*model.Invoice, error) {
	var invoice model.Invoice
	err := GetDB(ctx, r.db).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("position") }).
		First(&invoice, "organization_id = ? AND id = ?", orgID, id).Error
	if err != nil {
		return nil, err
	}
	return &invoice, nil
}

func (r *invoiceRepository) List(ctx context.Context, filter InvoiceListFilter) ([]model.Invoice, int64, error) {
	var invoices []model.Invoice
	var total int64

	scope := func(db *gorm.DB) *gorm.DB {
		db = db.Where("organization_id = ?", filter.OrganizationID)
		if filter.Status != "" {
			db = db.Where("status = ?", filter.Status)
		}
		if filter.Search != "" {
			pattern := likePattern(strings.ToLower(filter.Search))
			db = db.Where("(LOWER(invoice_ref_no) LIKE ? OR LOWER(buyer_business_name) LIKE ? OR buyer_ntn_cnic LIKE ? OR LOWER(fbr_invoice_number) LIKE ?)",
				pattern, pattern, pattern, pattern)
		}
		return db
	}

	db := GetDB(ctx, r.db)
	if err := db.Model(&model.Invoice{}).Scopes(scope).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (filter.Page - 1) * filter.Limit
	if err := db.Scopes(scope).Order("created_at desc").Offset(offset).Limit(filter.Limit).Find(&invoices).Error; err != nil {
		return nil, 0, err
	}

	return invoices, total, nil
}

// Update saves header columns only; lines go through ReplaceItems. A row
// that is already submitted in the database is never overwritten.
func (r *invoiceRepository) Update(ctx context.Context, invoice *model.Invoice) error {
	db := GetDB(ctx, r.db)
	res := db.Model(invoice).
		Where("status <> ?", model.InvoiceStatusSubmitted).
		Select("*").
		Omit(clause.Associations).
		Updates(invoice)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return r.missingOrSubmitted(db, invoice.OrganizationID, invoice.ID)
	}
	return nil
}

func (r *invoiceRepository) ReplaceItems(ctx context.Context, invoiceID uuid.UUID, items []model.InvoiceItem) error {
	db := GetDB(ctx, r.db)
	if err := db.Where("invoice_id = ?", invoiceID).Delete(&model.InvoiceItem{}).Error; err != nil {
		return err
	}
	if len(items) == 0 {
		return nil
	}
	for i := range items {
		items[i].InvoiceID = invoiceID
	}
	return db.Create(&items).Error
}

func (r *invoiceRepository) Delete(ctx context.Context, orgID, id uuid.UUID) error {
	db := GetDB(ctx, r.db)
	res := db.Where("organization_id = ? AND id = ? AND status <> ?", orgID, id, model.InvoiceStatusSubmitted).
		Delete(&model.Invoice{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return r.missingOrSubmitted(db, orgID, id)
	}
	return db.Where("invoice_id = ?", id).Delete(&model.InvoiceItem{}).Error
}

func (r *invoiceRepository) missingOrSubmitted(db *gorm.DB, orgID, id uuid.UUID) error {
	var count int64
	if err := db.Model(&model.Invoice{}).Where("organization_id = ? AND id = ?", orgID, id).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return gorm.ErrRecordNotFound
	}
	return ErrInvoiceSubmitted
}

func (r *invoiceRepository) SummaryByStatus(ctx context.Context, orgID uuid.UUID, start, end time.Time) ([]model.StatusTotals, error) {
	var rows []model.StatusTotals
	err := GetDB(ctx, r.db).Model(&model.Invoice{}).
		Select("status, COUNT(*) AS count, COALESCE(SUM(subtotal), 0) AS subtotal, COALESCE(SUM(tax_amount), 0) AS tax_amount, COALESCE(SUM(total_amount), 0) AS total_amount").
		Where("organization_id = ? AND created_at >= ? AND created_at <= ?", orgID, start, end).
		Group("status").
		Order("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
