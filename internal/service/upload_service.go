package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"strings"
	"time"

	"einvoice/internal/logger"
	"einvoice/internal/model"
	"einvoice/internal/sheet"
	"einvoice/internal/storage"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// MaxUploadSize bounds spreadsheet uploads.
const MaxUploadSize = 10 << 20

type UploadResult struct {
	BulkCreateResult
	FileKey string `json:"file_key"`
	Rows    int    `json:"rows"`
}

// UploadService turns an uploaded spreadsheet into draft invoices.
type UploadService interface {
	ImportSpreadsheet(ctx context.Context, actor Actor, filename string, r io.Reader) (UploadResult, error)
	Template() ([]byte, error)
}

type uploadService struct {
	invoices InvoiceService
	store    storage.Driver
	now      func() time.Time
}

func NewUploadService(invoices InvoiceService, store storage.Driver) UploadService {
	return &uploadService{invoices: invoices, store: store, now: time.Now}
}

// ImportSpreadsheet checks the header contract, hands the grouped rows to
// the bulk importer and archives the original file once the invoices are
// stored. A header mismatch comes back as *sheet.HeaderMismatchError before
// anything is created.
func (s *uploadService) ImportSpreadsheet(ctx context.Context, actor Actor, filename string, r io.Reader) (UploadResult, error) {
	orgID, err := actor.orgID()
	if err != nil {
		return UploadResult{}, err
	}

	data, err := io.ReadAll(io.LimitReader(r, MaxUploadSize+1))
	if err != nil {
		return UploadResult{}, fmt.Errorf("failed to read upload: %w", err)
	}
	if len(data) > MaxUploadSize {
		return UploadResult{}, fmt.Errorf("%w: file exceeds %d MB", ErrInvalidRequest, MaxUploadSize>>20)
	}

	rows, err := sheet.Read(filename, bytes.NewReader(data))
	if err != nil {
		return UploadResult{}, err
	}

	groups := sheet.GroupInvoices(rows)
	inputs := make([]InvoiceInput, 0, len(groups))
	for _, g := range groups {
		inputs = append(inputs, InvoiceInput{
			InvoiceType:       g.InvoiceType,
			InvoiceDate:       g.InvoiceDate,
			InvoiceRefNo:      g.RefNo,
			BuyerNTNCNIC:      g.BuyerNTNCNIC,
			BuyerBusinessName: g.BuyerBusinessName,
			BuyerProvince:     g.BuyerProvince,
			BuyerAddress:      g.BuyerAddress,
			Lines:             g.Lines,
		})
	}

	result, err := s.invoices.ImportInvoices(ctx, actor, model.InvoiceSourceUpload, inputs)
	if err != nil {
		return UploadResult{}, err
	}

	var key string
	if s.store != nil {
		key = s.archiveKey(orgID, filename)
		if err := s.store.Save(ctx, key, bytes.NewReader(data), contentType(filename)); err != nil {
			// the invoices are already stored; only the archive copy is lost
			logger.FromContext(ctx).Warn("failed to archive upload", zap.String("key", key), zap.Error(err))
			key = ""
		}
	}
	return UploadResult{BulkCreateResult: result, FileKey: key, Rows: len(rows)}, nil
}

func (s *uploadService) Template() ([]byte, error) {
	return sheet.TemplateBytes()
}

func (s *uploadService) archiveKey(orgID uuid.UUID, filename string) string {
	base := path.Base(strings.ReplaceAll(filename, "\\", "/"))
	return path.Join("invoice-uploads", orgID.String(), s.now().UTC().Format("2006/01/02"), uuid.NewString()+"-"+base)
}

func contentType(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xlsx":
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case ".csv":
		return "text/csv"
	}
	return "application/octet-stream"
}
