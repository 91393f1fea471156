package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"einvoice/internal/cache"
	"einvoice/internal/fbr"
	"einvoice/internal/lineitem"
	"einvoice/internal/logger"
	"einvoice/internal/metrics"
	"einvoice/internal/model"
	"einvoice/internal/repository"
	"einvoice/internal/websocket"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// --- DTOs ---

// InvoiceInput is one invoice as sent by a client or read from a spreadsheet.
// Field names follow the FBR payload. Lines are taken from "lines", falling
// back to "items"; neither present means an invoice without lines.
type InvoiceInput struct {
	InvoiceType           string                 `json:"invoiceType"`
	InvoiceDate           string                 `json:"invoiceDate"`
	InvoiceRefNo          string                 `json:"invoiceRefNo"`
	ScenarioID            string                 `json:"scenarioId"`
	BuyerNTNCNIC          string                 `json:"buyerNTNCNIC"`
	BuyerBusinessName     string                 `json:"buyerBusinessName"`
	BuyerProvince         string                 `json:"buyerProvince"`
	BuyerAddress          string                 `json:"buyerAddress"`
	BuyerRegistrationType string                 `json:"buyerRegistrationType"`
	Lines                 []lineitem.RawLineItem `json:"lines"`
	Items                 []lineitem.RawLineItem `json:"items"`
}

// RawLines returns the lines to normalize and whether any were supplied.
func (in InvoiceInput) RawLines() ([]lineitem.RawLineItem, bool) {
	if in.Lines != nil {
		return in.Lines, true
	}
	if in.Items != nil {
		return in.Items, true
	}
	return nil, false
}

type BulkCreateRequest struct {
	Invoices []InvoiceInput `json:"invoices"`
}

type BulkCreateResult struct {
	Created  int               `json:"created"`
	Lines    int               `json:"lines"`
	Invoices []InvoiceResponse `json:"invoices"`
}

type InvoiceFilter struct {
	Status string // draft, validated, submitted, failed or empty for all
	Search string // partial match on ref no, buyer, NTN/CNIC or IRN
	Page   int
	Limit  int
}

type InvoiceItemResponse struct {
	ID                              string  `json:"id"`
	Position                        int     `json:"position"`
	ItemDescription                 string  `json:"item_description"`
	HSCode                          string  `json:"hs_code"`
	Rate                            string  `json:"rate"`
	UoM                             string  `json:"uom"`
	SaleType                        string  `json:"sale_type"`
	SroScheduleNo                   string  `json:"sro_schedule_no"`
	SroItemSerialNo                 string  `json:"sro_item_serial_no"`
	Quantity                        string  `json:"quantity"`
	ValueSalesExcludingST           string  `json:"value_sales_excluding_st"`
	SalesTaxApplicable              string  `json:"sales_tax_applicable"`
	ExtraTax                        string  `json:"extra_tax"`
	TotalValues                     *string `json:"total_values"`
	FixedNotifiedValueOrRetailPrice *string `json:"fixed_notified_value_or_retail_price"`
	SalesTaxWithheldAtSource        *string `json:"sales_tax_withheld_at_source"`
	FurtherTax                      *string `json:"further_tax"`
	FedPayable                      *string `json:"fed_payable"`
	Discount                        *string `json:"discount"`
	LineSubtotal                    string  `json:"line_subtotal"`
	LineTax                         string  `json:"line_tax"`
	LineTotal                       string  `json:"line_total"`
}

type InvoiceResponse struct {
	ID                    string                `json:"id"`
	InvoiceType           string                `json:"invoice_type"`
	InvoiceDate           string                `json:"invoice_date"`
	InvoiceRefNo          string                `json:"invoice_ref_no"`
	ScenarioID            string                `json:"scenario_id"`
	BuyerNTNCNIC          string                `json:"buyer_ntn_cnic"`
	BuyerBusinessName     string                `json:"buyer_business_name"`
	BuyerProvince         string                `json:"buyer_province"`
	BuyerAddress          string                `json:"buyer_address"`
	BuyerRegistrationType string                `json:"buyer_registration_type"`
	Subtotal              string                `json:"subtotal"`
	TaxAmount             string                `json:"tax_amount"`
	TotalAmount           string                `json:"total_amount"`
	Status                string                `json:"status"`
	Source                string                `json:"source"`
	FBRInvoiceNumber      string                `json:"fbr_invoice_number"`
	FBRStatusCode         string                `json:"fbr_status_code"`
	FBRErrors             []string              `json:"fbr_errors"`
	ValidatedAt           *string               `json:"validated_at"`
	SubmittedAt           *string               `json:"submitted_at"`
	ItemCount             int                   `json:"item_count,omitempty"`
	Items                 []InvoiceItemResponse `json:"items,omitempty"`
	CreatedAt             string                `json:"created_at"`
	UpdatedAt             string                `json:"updated_at"`
}

// --- Interface ---

type InvoiceService interface {
	CreateInvoice(ctx context.Context, actor Actor, in InvoiceInput) (InvoiceResponse, error)
	BulkCreateInvoices(ctx context.Context, actor Actor, invoices []InvoiceInput) (BulkCreateResult, error)
	ImportInvoices(ctx context.Context, actor Actor, source string, invoices []InvoiceInput) (BulkCreateResult, error)
	ListInvoices(ctx context.Context, actor Actor, filter InvoiceFilter) ([]InvoiceResponse, int64, error)
	GetInvoice(ctx context.Context, actor Actor, id uuid.UUID) (InvoiceResponse, error)
	UpdateInvoice(ctx context.Context, actor Actor, id uuid.UUID, in InvoiceInput) (InvoiceResponse, error)
	DeleteInvoice(ctx context.Context, actor Actor, id uuid.UUID) error
	ValidateInvoice(ctx context.Context, actor Actor, id uuid.UUID) (InvoiceResponse, error)
	SubmitInvoice(ctx context.Context, actor Actor, id uuid.UUID) (InvoiceResponse, error)
}

// FBRClient is the part of the gateway client the services use.
type FBRClient interface {
	ValidateInvoice(ctx context.Context, token string, payload fbr.InvoicePayload) (*fbr.Response, error)
	PostInvoice(ctx context.Context, token string, payload fbr.InvoicePayload) (*fbr.Response, error)
	RegistrationType(ctx context.Context, token, ntnCnic string, date time.Time) (string, error)
}

// EventPublisher pushes organization-scoped events; implemented by the websocket hub.
type EventPublisher interface {
	Publish(orgID uuid.UUID, event string, data any)
}

type invoiceService struct {
	invoiceRepo repository.InvoiceRepository
	orgRepo     repository.OrganizationRepository
	buyerRepo   repository.BuyerRepository
	txManager   repository.TransactionManager
	fbr         FBRClient
	locks       cache.Store
	publisher   EventPublisher
	metrics     *metrics.Metrics
	audit       auditor
	now         func() time.Time
}

// InvoiceDeps groups the collaborators of the invoice service.
type InvoiceDeps struct {
	Invoices     repository.InvoiceRepository
	Organization repository.OrganizationRepository
	Buyers       repository.BuyerRepository
	Audit        repository.AuditRepository
	TxManager    repository.TransactionManager
	FBR          FBRClient
	Locks        cache.Store
	Publisher    EventPublisher
	Metrics      *metrics.Metrics
}

func NewInvoiceService(deps InvoiceDeps) InvoiceService {
	locks := deps.Locks
	if locks == nil {
		locks = cache.NewMemory()
	}
	return &invoiceService{
		invoiceRepo: deps.Invoices,
		orgRepo:     deps.Organization,
		buyerRepo:   deps.Buyers,
		txManager:   deps.TxManager,
		fbr:         deps.FBR,
		locks:       locks,
		publisher:   deps.Publisher,
		metrics:     deps.Metrics,
		audit:       auditor{repo: deps.Audit},
		now:         time.Now,
	}
}

const invoiceLockTTL = 2 * time.Minute

// lockInvoice serializes FBR calls and edits on one invoice across requests.
// The caller must run the returned release.
func (s *invoiceService) lockInvoice(ctx context.Context, id uuid.UUID) (func(), error) {
	key := "invoice-lock:" + id.String()
	token, ok, err := s.locks.TryLock(ctx, key, invoiceLockTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire invoice lock: %w", err)
	}
	if !ok {
		return nil, ErrSubmissionInProgress
	}
	return func() { _ = s.locks.Unlock(context.WithoutCancel(ctx), key, token) }, nil
}

// storeError maps a write that lost the race against a submission.
func storeError(err error) error {
	if errors.Is(err, repository.ErrInvoiceSubmitted) {
		return ErrAlreadySubmitted
	}
	return err
}

// --- Implementation ---

func (s *invoiceService) CreateInvoice(ctx context.Context, actor Actor, in InvoiceInput) (InvoiceResponse, error) {
	orgID, err := actor.orgID()
	if err != nil {
		return InvoiceResponse{}, err
	}

	invoice := buildInvoice(orgID, actor, in, model.InvoiceSourceSingle)

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.invoiceRepo.Create(txCtx, invoice); err != nil {
			return fmt.Errorf("failed to create invoice: %w", err)
		}
		if err := s.audit.write(txCtx, actor, model.ActionCreateInvoice, invoice.ID.String(), invoice.InvoiceRefNo, map[string]interface{}{
			"lines":        len(invoice.Items),
			"total_amount": invoice.TotalAmount.StringFixed(4),
		}); err != nil {
			return fmt.Errorf("failed to write audit log: %w", err)
		}
		repository.AfterCommit(txCtx, func() {
			s.metrics.RecordInvoicesCreated(model.InvoiceSourceSingle, 1, len(invoice.Items))
			s.publish(orgID, websocket.EventInvoiceCreated, map[string]interface{}{"id": invoice.ID})
		})
		return nil
	})
	if err != nil {
		return InvoiceResponse{}, err
	}

	return toInvoiceResponse(invoice, true), nil
}

// BulkCreateInvoices persists a batch sent as JSON.
func (s *invoiceService) BulkCreateInvoices(ctx context.Context, actor Actor, invoices []InvoiceInput) (BulkCreateResult, error) {
	return s.ImportInvoices(ctx, actor, model.InvoiceSourceBulk, invoices)
}

// ImportInvoices normalizes and stores every invoice of a batch as a draft.
// The batch is rejected before any line is looked at when it is empty or the
// caller has no organization. All invoices are written in one transaction.
func (s *invoiceService) ImportInvoices(ctx context.Context, actor Actor, source string, invoices []InvoiceInput) (BulkCreateResult, error) {
	if len(invoices) == 0 {
		return BulkCreateResult{}, ErrEmptyBatch
	}
	orgID, err := actor.orgID()
	if err != nil {
		return BulkCreateResult{}, err
	}

	built := make([]*model.Invoice, 0, len(invoices))
	lines := 0
	for _, in := range invoices {
		invoice := buildInvoice(orgID, actor, in, source)
		lines += len(invoice.Items)
		built = append(built, invoice)
	}

	action := model.ActionBulkCreateInvoice
	if source == model.InvoiceSourceUpload {
		action = model.ActionUploadInvoices
	}

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		for _, invoice := range built {
			if err := s.invoiceRepo.Create(txCtx, invoice); err != nil {
				return fmt.Errorf("invoice %q: %w", invoice.InvoiceRefNo, err)
			}
		}
		if err := s.audit.write(txCtx, actor, action, "", fmt.Sprintf("%d invoices", len(built)), map[string]interface{}{
			"invoices": len(built),
			"lines":    lines,
			"source":   source,
		}); err != nil {
			return fmt.Errorf("audit: %w", err)
		}
		repository.AfterCommit(txCtx, func() {
			s.metrics.RecordInvoicesCreated(source, len(built), lines)
			s.publish(orgID, websocket.EventInvoicesBulkCreated, map[string]interface{}{"count": len(built), "source": source})
		})
		return nil
	})
	if err != nil {
		logger.FromContext(ctx).Error("bulk invoice create failed",
			zap.String("source", source),
			zap.Int("invoices", len(built)),
			zap.Error(err),
		)
		return BulkCreateResult{}, ErrBulkCreateFailed
	}

	result := BulkCreateResult{Created: len(built), Lines: lines, Invoices: make([]InvoiceResponse, 0, len(built))}
	for _, invoice := range built {
		result.Invoices = append(result.Invoices, toInvoiceResponse(invoice, false))
	}
	return result, nil
}

func (s *invoiceService) ListInvoices(ctx context.Context, actor Actor, filter InvoiceFilter) ([]InvoiceResponse, int64, error) {
	orgID, err := actor.orgID()
	if err != nil {
		return nil, 0, err
	}
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.Limit <= 0 {
		filter.Limit = 20
	}
	if filter.Status != "" && !validStatus(filter.Status) {
		return nil, 0, fmt.Errorf("%w: unknown status %q", ErrInvalidRequest, filter.Status)
	}

	invoices, total, err := s.invoiceRepo.List(ctx, repository.InvoiceListFilter{
		OrganizationID: orgID,
		Status:         filter.Status,
		Search:         strings.TrimSpace(filter.Search),
		Page:           filter.Page,
		Limit:          filter.Limit,
	})
	if err != nil {
		return nil, 0, err
	}

	res := make([]InvoiceResponse, 0, len(invoices))
	for i := range invoices {
		res = append(res, toInvoiceResponse(&invoices[i], false))
	}
	return res, total, nil
}

func (s *invoiceService) GetInvoice(ctx context.Context, actor Actor, id uuid.UUID) (InvoiceResponse, error) {
	invoice, err := s.find(ctx, actor, id)
	if err != nil {
		return InvoiceResponse{}, err
	}
	return toInvoiceResponse(invoice, true), nil
}

// UpdateInvoice replaces the header fields and, when lines are supplied, the
// lines and totals. The invoice goes back to draft.
func (s *invoiceService) UpdateInvoice(ctx context.Context, actor Actor, id uuid.UUID, in InvoiceInput) (InvoiceResponse, error) {
	release, err := s.lockInvoice(ctx, id)
	if err != nil {
		return InvoiceResponse{}, err
	}
	defer release()

	invoice, err := s.find(ctx, actor, id)
	if err != nil {
		return InvoiceResponse{}, err
	}
	if !invoice.Editable() {
		return InvoiceResponse{}, ErrNotEditable
	}

	applyHeader(invoice, in)
	invoice.Status = model.InvoiceStatusDraft
	invoice.FBRStatusCode = ""
	invoice.FBRErrors = ""
	invoice.ValidatedAt = nil

	raw, replace := in.RawLines()
	if replace {
		normalized, totals := lineitem.Aggregate(raw)
		invoice.Items = toItems(normalized)
		setTotals(invoice, totals)
	}

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.invoiceRepo.Update(txCtx, invoice); err != nil {
			return fmt.Errorf("failed to update invoice: %w", err)
		}
		if replace {
			if err := s.invoiceRepo.ReplaceItems(txCtx, invoice.ID, invoice.Items); err != nil {
				return fmt.Errorf("failed to replace invoice lines: %w", err)
			}
		}
		if err := s.audit.write(txCtx, actor, model.ActionUpdateInvoice, invoice.ID.String(), invoice.InvoiceRefNo, map[string]interface{}{
			"lines_replaced": replace,
			"total_amount":   invoice.TotalAmount.StringFixed(4),
		}); err != nil {
			return fmt.Errorf("failed to write audit log: %w", err)
		}
		repository.AfterCommit(txCtx, func() {
			s.publish(invoice.OrganizationID, websocket.EventInvoiceUpdated, map[string]interface{}{"id": invoice.ID})
		})
		return nil
	})
	if err != nil {
		return InvoiceResponse{}, storeError(err)
	}

	return toInvoiceResponse(invoice, true), nil
}

// DeleteInvoice removes any invoice that has not been submitted to FBR.
func (s *invoiceService) DeleteInvoice(ctx context.Context, actor Actor, id uuid.UUID) error {
	release, err := s.lockInvoice(ctx, id)
	if err != nil {
		return err
	}
	defer release()

	invoice, err := s.find(ctx, actor, id)
	if err != nil {
		return err
	}
	if invoice.Status == model.InvoiceStatusSubmitted {
		return ErrAlreadySubmitted
	}

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.invoiceRepo.Delete(txCtx, invoice.OrganizationID, invoice.ID); err != nil {
			return fmt.Errorf("failed to delete invoice: %w", err)
		}
		if err := s.audit.write(txCtx, actor, model.ActionDeleteInvoice, invoice.ID.String(), invoice.InvoiceRefNo, map[string]interface{}{
			"status": invoice.Status,
		}); err != nil {
			return fmt.Errorf("failed to write audit log: %w", err)
		}
		repository.AfterCommit(txCtx, func() {
			s.publish(invoice.OrganizationID, websocket.EventInvoiceDeleted, map[string]interface{}{"id": invoice.ID})
		})
		return nil
	})
	return storeError(err)
}

// ValidateInvoice runs the local required-field checks and then asks FBR to
// validate. The outcome is stored on the invoice: validated, or failed with
// the messages that explain why.
func (s *invoiceService) ValidateInvoice(ctx context.Context, actor Actor, id uuid.UUID) (InvoiceResponse, error) {
	release, err := s.lockInvoice(ctx, id)
	if err != nil {
		return InvoiceResponse{}, err
	}
	defer release()

	invoice, seller, err := s.prepareForFBR(ctx, actor, id)
	if err != nil {
		return InvoiceResponse{}, err
	}

	if problems := MissingFields(invoice); len(problems) > 0 {
		s.markFailed(invoice, "", problems)
		return s.saveOutcome(ctx, actor, invoice, model.ActionValidateInvoice, websocket.EventInvoiceValidated)
	}
	if seller.FBRToken == "" {
		return InvoiceResponse{}, ErrFBRTokenMissing
	}

	resp, err := s.fbr.ValidateInvoice(ctx, seller.FBRToken, fbr.FromInvoice(invoice, seller))
	if err != nil {
		return InvoiceResponse{}, gatewayError(err)
	}

	vr := resp.ValidationResponse
	if vr.Valid() {
		now := s.now()
		invoice.Status = model.InvoiceStatusValidated
		invoice.FBRStatusCode = vr.StatusCode
		invoice.FBRErrors = ""
		invoice.ValidatedAt = &now
	} else {
		s.markFailed(invoice, vr.StatusCode, rejectionMessages(vr))
	}
	return s.saveOutcome(ctx, actor, invoice, model.ActionValidateInvoice, websocket.EventInvoiceValidated)
}

// SubmitInvoice posts the invoice to FBR. On acceptance the IRN is stored and
// the invoice is final. While it runs, other submits, validations and edits
// of the same invoice are refused so FBR never issues two IRNs for it.
func (s *invoiceService) SubmitInvoice(ctx context.Context, actor Actor, id uuid.UUID) (InvoiceResponse, error) {
	release, err := s.lockInvoice(ctx, id)
	if err != nil {
		return InvoiceResponse{}, err
	}
	defer release()

	invoice, seller, err := s.prepareForFBR(ctx, actor, id)
	if err != nil {
		return InvoiceResponse{}, err
	}

	if problems := MissingFields(invoice); len(problems) > 0 {
		s.markFailed(invoice, "", problems)
		return s.saveOutcome(ctx, actor, invoice, model.ActionSubmitInvoice, websocket.EventInvoiceSubmitted)
	}
	if seller.FBRToken == "" {
		return InvoiceResponse{}, ErrFBRTokenMissing
	}

	resp, err := s.fbr.PostInvoice(ctx, seller.FBRToken, fbr.FromInvoice(invoice, seller))
	if err != nil {
		return InvoiceResponse{}, gatewayError(err)
	}

	vr := resp.ValidationResponse
	if vr.Valid() && resp.InvoiceNumber != "" {
		now := s.now()
		invoice.Status = model.InvoiceStatusSubmitted
		invoice.FBRStatusCode = vr.StatusCode
		invoice.FBRInvoiceNumber = resp.InvoiceNumber
		invoice.FBRErrors = ""
		invoice.SubmittedAt = &now
		if invoice.ValidatedAt == nil {
			invoice.ValidatedAt = &now
		}
	} else {
		messages := rejectionMessages(vr)
		if vr.Valid() {
			messages = []string{"FBR accepted the invoice but returned no invoice number"}
		}
		s.markFailed(invoice, vr.StatusCode, messages)
	}
	return s.saveOutcome(ctx, actor, invoice, model.ActionSubmitInvoice, websocket.EventInvoiceSubmitted)
}

func (s *invoiceService) find(ctx context.Context, actor Actor, id uuid.UUID) (*model.Invoice, error) {
	orgID, err := actor.orgID()
	if err != nil {
		return nil, err
	}
	invoice, err := s.invoiceRepo.FindByID(ctx, orgID, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("invoice %w", ErrNotFound)
		}
		return nil, err
	}
	return invoice, nil
}

// prepareForFBR loads the invoice and its seller, and fills the buyer
// registration type from the buyer registry when the invoice has none.
func (s *invoiceService) prepareForFBR(ctx context.Context, actor Actor, id uuid.UUID) (*model.Invoice, *model.Organization, error) {
	invoice, err := s.find(ctx, actor, id)
	if err != nil {
		return nil, nil, err
	}
	if invoice.Status == model.InvoiceStatusSubmitted {
		return nil, nil, ErrAlreadySubmitted
	}

	seller, err := s.orgRepo.FindByID(ctx, invoice.OrganizationID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load seller organization: %w", err)
	}

	if invoice.BuyerRegistrationType == "" && invoice.BuyerNTNCNIC != "" && s.buyerRepo != nil {
		if buyer, err := s.buyerRepo.FindByNTNCNIC(ctx, invoice.OrganizationID, invoice.BuyerNTNCNIC); err == nil {
			invoice.BuyerRegistrationType = buyer.RegistrationType
		}
	}
	return invoice, seller, nil
}

func (s *invoiceService) markFailed(invoice *model.Invoice, statusCode string, messages []string) {
	invoice.Status = model.InvoiceStatusFailed
	invoice.FBRStatusCode = statusCode
	invoice.FBRErrors = strings.Join(messages, "\n")
	invoice.ValidatedAt = nil
}

func (s *invoiceService) saveOutcome(ctx context.Context, actor Actor, invoice *model.Invoice, action, event string) (InvoiceResponse, error) {
	if err := s.invoiceRepo.Update(ctx, invoice); err != nil {
		if errors.Is(err, repository.ErrInvoiceSubmitted) {
			return InvoiceResponse{}, ErrAlreadySubmitted
		}
		return InvoiceResponse{}, fmt.Errorf("failed to store FBR outcome: %w", err)
	}
	s.audit.record(ctx, actor, action, invoice.ID.String(), invoice.InvoiceRefNo, map[string]interface{}{
		"status":             invoice.Status,
		"fbr_status_code":    invoice.FBRStatusCode,
		"fbr_invoice_number": invoice.FBRInvoiceNumber,
	})
	s.publish(invoice.OrganizationID, event, map[string]interface{}{"id": invoice.ID, "status": invoice.Status})
	return toInvoiceResponse(invoice, true), nil
}

func (s *invoiceService) publish(orgID uuid.UUID, event string, data any) {
	if s.publisher != nil {
		s.publisher.Publish(orgID, event, data)
	}
}

func gatewayError(err error) error {
	switch {
	case errors.Is(err, fbr.ErrMissingToken):
		return ErrFBRTokenMissing
	case errors.Is(err, fbr.ErrUnauthorized):
		return fmt.Errorf("%w: the organization's FBR token was rejected", ErrFBRUnavailable)
	default:
		return fmt.Errorf("%w: %v", ErrFBRUnavailable, err)
	}
}

func rejectionMessages(vr fbr.ValidationResponse) []string {
	if msgs := vr.Messages(); len(msgs) > 0 {
		return msgs
	}
	return []string{fmt.Sprintf("FBR rejected the invoice (status %q)", vr.StatusCode)}
}

// MissingFields lists the fields FBR requires that the invoice lacks.
func MissingFields(invoice *model.Invoice) []string {
	var problems []string
	require := func(value, name string) {
		if strings.TrimSpace(value) == "" {
			problems = append(problems, name+" is required")
		}
	}
	require(invoice.InvoiceDate, "invoice date")
	require(invoice.BuyerNTNCNIC, "buyer NTN/CNIC")
	require(invoice.BuyerBusinessName, "buyer business name")
	require(invoice.BuyerProvince, "buyer province")

	if len(invoice.Items) == 0 {
		problems = append(problems, "at least one line is required")
	}
	for _, item := range invoice.Items {
		prefix := fmt.Sprintf("line %d: ", item.Position)
		if strings.TrimSpace(item.HSCode) == "" {
			problems = append(problems, prefix+"HS code is required")
		}
		if strings.TrimSpace(item.UoM) == "" {
			problems = append(problems, prefix+"UoM is required")
		}
		if strings.TrimSpace(item.SaleType) == "" {
			problems = append(problems, prefix+"sale type is required")
		}
	}
	return problems
}

func validStatus(status string) bool {
	switch status {
	case model.InvoiceStatusDraft, model.InvoiceStatusValidated, model.InvoiceStatusSubmitted, model.InvoiceStatusFailed:
		return true
	}
	return false
}

func buildInvoice(orgID uuid.UUID, actor Actor, in InvoiceInput, source string) *model.Invoice {
	raw, _ := in.RawLines()
	normalized, totals := lineitem.Aggregate(raw)

	invoice := &model.Invoice{
		OrganizationID: orgID,
		CreatedBy:      actor.userRef(),
		Status:         model.InvoiceStatusDraft,
		Source:         source,
		Items:          toItems(normalized),
	}
	applyHeader(invoice, in)
	setTotals(invoice, totals)
	return invoice
}

func applyHeader(invoice *model.Invoice, in InvoiceInput) {
	invoice.InvoiceType = strings.TrimSpace(in.InvoiceType)
	if invoice.InvoiceType == "" {
		invoice.InvoiceType = "Sale Invoice"
	}
	invoice.InvoiceDate = NormalizeDate(in.InvoiceDate)
	invoice.InvoiceRefNo = strings.TrimSpace(in.InvoiceRefNo)
	invoice.ScenarioID = strings.TrimSpace(in.ScenarioID)
	invoice.BuyerNTNCNIC = strings.TrimSpace(in.BuyerNTNCNIC)
	invoice.BuyerBusinessName = strings.TrimSpace(in.BuyerBusinessName)
	invoice.BuyerProvince = strings.TrimSpace(in.BuyerProvince)
	invoice.BuyerAddress = strings.TrimSpace(in.BuyerAddress)
	invoice.BuyerRegistrationType = strings.TrimSpace(in.BuyerRegistrationType)
}

func setTotals(invoice *model.Invoice, totals lineitem.InvoiceTotals) {
	invoice.Subtotal = totals.Subtotal
	invoice.TaxAmount = totals.TaxAmount
	invoice.TotalAmount = totals.TotalAmount
}

func toItems(lines []lineitem.NormalizedLineItem) []model.InvoiceItem {
	items := make([]model.InvoiceItem, 0, len(lines))
	for i, l := range lines {
		items = append(items, model.InvoiceItem{
			Position:                        i + 1,
			ItemDescription:                 l.ItemDescription,
			HSCode:                          l.HSCode,
			Rate:                            l.Rate,
			UoM:                             l.UoM,
			SaleType:                        l.SaleType,
			SroScheduleNo:                   l.SroScheduleNo,
			SroItemSerialNo:                 l.SroItemSerialNo,
			Quantity:                        l.Quantity,
			ValueSalesExcludingST:           l.ValueSalesExcludingST,
			SalesTaxApplicable:              l.SalesTaxApplicable,
			ExtraTax:                        l.ExtraTax,
			TotalValues:                     l.TotalValues,
			FixedNotifiedValueOrRetailPrice: l.FixedNotifiedValueOrRetailPrice,
			SalesTaxWithheldAtSource:        l.SalesTaxWithheldAtSource,
			FurtherTax:                      l.FurtherTax,
			FedPayable:                      l.FedPayable,
			Discount:                        l.Discount,
			LineSubtotal:                    l.LineSubtotal,
			LineTax:                         l.LineTax,
			LineTotal:                       l.LineTotal,
		})
	}
	return items
}

func fixed(d decimal.Decimal) string {
	return d.StringFixed(4)
}

func nullableFixed(d decimal.NullDecimal) *string {
	if !d.Valid {
		return nil
	}
	s := d.Decimal.StringFixed(4)
	return &s
}

func formatTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(time.RFC3339)
	return &s
}

func toInvoiceResponse(inv *model.Invoice, withItems bool) InvoiceResponse {
	res := InvoiceResponse{
		ID:                    inv.ID.String(),
		InvoiceType:           inv.InvoiceType,
		InvoiceDate:           inv.InvoiceDate,
		InvoiceRefNo:          inv.InvoiceRefNo,
		ScenarioID:            inv.ScenarioID,
		BuyerNTNCNIC:          inv.BuyerNTNCNIC,
		BuyerBusinessName:     inv.BuyerBusinessName,
		BuyerProvince:         inv.BuyerProvince,
		BuyerAddress:          inv.BuyerAddress,
		BuyerRegistrationType: inv.BuyerRegistrationType,
		Subtotal:              fixed(inv.Subtotal),
		TaxAmount:             fixed(inv.TaxAmount),
		TotalAmount:           fixed(inv.TotalAmount),
		Status:                inv.Status,
		Source:                inv.Source,
		FBRInvoiceNumber:      inv.FBRInvoiceNumber,
		FBRStatusCode:         inv.FBRStatusCode,
		FBRErrors:             []string{},
		ValidatedAt:           formatTime(inv.ValidatedAt),
		SubmittedAt:           formatTime(inv.SubmittedAt),
		ItemCount:             len(inv.Items),
		CreatedAt:             inv.CreatedAt.Format(time.RFC3339),
		UpdatedAt:             inv.UpdatedAt.Format(time.RFC3339),
	}
	if inv.FBRErrors != "" {
		res.FBRErrors = strings.Split(inv.FBRErrors, "\n")
	}
	if withItems {
		res.Items = make([]InvoiceItemResponse, 0, len(inv.Items))
		for _, it := range inv.Items {
			res.Items = append(res.Items, InvoiceItemResponse{
				ID:                              it.ID.String(),
				Position:                        it.Position,
				ItemDescription:                 it.ItemDescription,
				HSCode:                          it.HSCode,
				Rate:                            it.Rate,
				UoM:                             it.UoM,
				SaleType:                        it.SaleType,
				SroScheduleNo:                   it.SroScheduleNo,
				SroItemSerialNo:                 it.SroItemSerialNo,
				Quantity:                        fixed(it.Quantity),
				ValueSalesExcludingST:           fixed(it.ValueSalesExcludingST),
				SalesTaxApplicable:              fixed(it.SalesTaxApplicable),
				ExtraTax:                        fixed(it.ExtraTax),
				TotalValues:                     nullableFixed(it.TotalValues),
				FixedNotifiedValueOrRetailPrice: nullableFixed(it.FixedNotifiedValueOrRetailPrice),
				SalesTaxWithheldAtSource:        nullableFixed(it.SalesTaxWithheldAtSource),
				FurtherTax:                      nullableFixed(it.FurtherTax),
				FedPayable:                      nullableFixed(it.FedPayable),
				Discount:                        nullableFixed(it.Discount),
				LineSubtotal:                    fixed(it.LineSubtotal),
				LineTax:                         fixed(it.LineTax),
				LineTotal:                       fixed(it.LineTotal),
			})
		}
	}
	return res
}
