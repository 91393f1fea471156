package handler

import (
	"net/http"

	"einvoice/internal/middleware"
	"einvoice/internal/service"
	"einvoice/pkg/pagination"
	"einvoice/pkg/response"

	"github.com/gin-gonic/gin"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type InvoiceHandler struct {
	invoiceService service.InvoiceService
	uploadService  service.UploadService
	auth           *middleware.Authenticator
}

func NewInvoiceHandler(invoiceService service.InvoiceService, uploadService service.UploadService, auth *middleware.Authenticator) *InvoiceHandler {
	return &InvoiceHandler{
		invoiceService: invoiceService,
		uploadService:  uploadService,
		auth:           auth,
	}
}

func (h *InvoiceHandler) RegisterRoutes(router *gin.RouterGroup) {
	invoices := router.Group("/api/invoices")
	invoices.Use(h.auth.RequireRole(anyRole...))
	{
		invoices.POST("", h.CreateInvoice)
		invoices.POST("/bulk", h.BulkCreateInvoices)
		invoices.POST("/upload", h.UploadInvoices)
		invoices.GET("/template", h.DownloadTemplate)
		invoices.GET("", h.ListInvoices)
		invoices.GET("/:id", h.GetInvoice)
		invoices.PUT("/:id", h.UpdateInvoice)
		invoices.DELETE("/:id", h.DeleteInvoice)
		invoices.POST("/:id/validate", h.ValidateInvoice)
		invoices.POST("/:id/submit", h.SubmitInvoice)
	}
}

// CreateInvoice creates one draft invoice
// @Summary      Create invoice
// @Description  Normalizes the lines, computes totals and stores a draft invoice
// @Tags         invoices
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.InvoiceInput  true  "Invoice"
// @Success      201      {object}  response.Response{data=service.InvoiceResponse}
// @Failure      400      {object}  response.Response
// @Router       /api/invoices [post]
func (h *InvoiceHandler) CreateInvoice(c *gin.Context) {
	var req service.InvoiceInput
	if err := decodeJSON(c.Request.Body, &req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	invoice, err := h.invoiceService.CreateInvoice(c.Request.Context(), actorFrom(c), req)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, invoice))
}

// BulkCreateInvoices stores a batch of draft invoices in one transaction
// @Summary      Bulk create invoices
// @Description  Each invoice carries its lines under "lines" (or "items"). The whole batch is rejected when invoices is missing, empty or not an array.
// @Tags         invoices
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.BulkCreateRequest  true  "Invoices"
// @Success      201      {object}  response.Response{data=service.BulkCreateResult}
// @Failure      400      {object}  response.Response
// @Failure      403      {object}  response.Response
// @Failure      500      {object}  response.Response
// @Router       /api/invoices/bulk [post]
func (h *InvoiceHandler) BulkCreateInvoices(c *gin.Context) {
	var req service.BulkCreateRequest
	if err := decodeJSON(c.Request.Body, &req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	result, err := h.invoiceService.BulkCreateInvoices(c.Request.Context(), actorFrom(c), req.Invoices)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, result))
}

// UploadInvoices imports invoices from a spreadsheet
// @Summary      Upload invoice spreadsheet
// @Description  Accepts .xlsx or .csv with the template header. A header mismatch returns 400 with the expected and found columns in details.
// @Tags         invoices
// @Security     BearerAuth
// @Accept       multipart/form-data
// @Produce      json
// @Param        file  formData  file  true  "Spreadsheet"
// @Success      201   {object}  response.Response{data=service.UploadResult}
// @Failure      400   {object}  response.Response{details=sheet.HeaderMismatchError}
// @Router       /api/invoices/upload [post]
func (h *InvoiceHandler) UploadInvoices(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "file is required"))
		return
	}
	if fileHeader.Size > service.MaxUploadSize {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "file is too large"))
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "failed to read file"))
		return
	}
	defer file.Close()

	result, err := h.uploadService.ImportSpreadsheet(c.Request.Context(), actorFrom(c), fileHeader.Filename, file)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, result))
}

// DownloadTemplate streams the header-only upload template
// @Summary      Download upload template
// @Tags         invoices
// @Security     BearerAuth
// @Produce      application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Success      200
// @Router       /api/invoices/template [get]
func (h *InvoiceHandler) DownloadTemplate(c *gin.Context) {
	data, err := h.uploadService.Template()
	if err != nil {
		writeError(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="invoice-template.xlsx"`)
	c.Data(http.StatusOK, xlsxContentType, data)
}

// ListInvoices returns a paginated list of the organization's invoices
// @Summary      List invoices
// @Tags         invoices
// @Security     BearerAuth
// @Produce      json
// @Param        status  query     string  false  "draft, validated, submitted or failed"
// @Param        q       query     string  false  "Search ref no, buyer, NTN/CNIC or IRN"
// @Param        page    query     int     false  "Page number (default 1)"
// @Param        limit   query     int     false  "Number of items per page (default 20)"
// @Success      200     {object}  response.Response{data=response.Page}
// @Failure      400     {object}  response.Response
// @Router       /api/invoices [get]
func (h *InvoiceHandler) ListInvoices(c *gin.Context) {
	p := pagination.Parse(c)
	filter := service.InvoiceFilter{
		Status: c.Query("status"),
		Search: c.Query("q"),
		Page:   p.Page,
		Limit:  p.Limit,
	}

	invoices, total, err := h.invoiceService.ListInvoices(c.Request.Context(), actorFrom(c), filter)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, p.Result(invoices, total)))
}

// GetInvoice returns one invoice with its lines in order
// @Summary      Get invoice
// @Tags         invoices
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Invoice ID"
// @Success      200  {object}  response.Response{data=service.InvoiceResponse}
// @Failure      404  {object}  response.Response
// @Router       /api/invoices/{id} [get]
func (h *InvoiceHandler) GetInvoice(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	invoice, err := h.invoiceService.GetInvoice(c.Request.Context(), actorFrom(c), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, invoice))
}

// UpdateInvoice replaces the header and, when sent, the lines of a draft or failed invoice
// @Summary      Update invoice
// @Tags         invoices
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                true  "Invoice ID"
// @Param        payload  body      service.InvoiceInput  true  "Invoice"
// @Success      200      {object}  response.Response{data=service.InvoiceResponse}
// @Failure      409      {object}  response.Response
// @Router       /api/invoices/{id} [put]
func (h *InvoiceHandler) UpdateInvoice(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req service.InvoiceInput
	if err := decodeJSON(c.Request.Body, &req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	invoice, err := h.invoiceService.UpdateInvoice(c.Request.Context(), actorFrom(c), id, req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, invoice))
}

// DeleteInvoice removes an invoice that was not submitted
// @Summary      Delete invoice
// @Tags         invoices
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Invoice ID"
// @Success      200  {object}  response.Response
// @Failure      409  {object}  response.Response
// @Router       /api/invoices/{id} [delete]
func (h *InvoiceHandler) DeleteInvoice(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	if err := h.invoiceService.DeleteInvoice(c.Request.Context(), actorFrom(c), id); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, "Invoice deleted successfully"))
}

// ValidateInvoice checks the invoice locally and against FBR
// @Summary      Validate invoice
// @Description  The outcome is stored on the invoice: validated, or failed with fbr_errors
// @Tags         invoices
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Invoice ID"
// @Success      200  {object}  response.Response{data=service.InvoiceResponse}
// @Failure      422  {object}  response.Response
// @Failure      502  {object}  response.Response
// @Router       /api/invoices/{id}/validate [post]
func (h *InvoiceHandler) ValidateInvoice(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	invoice, err := h.invoiceService.ValidateInvoice(c.Request.Context(), actorFrom(c), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, invoice))
}

// SubmitInvoice posts the invoice to FBR and stores the issued invoice number
// @Summary      Submit invoice
// @Tags         invoices
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Invoice ID"
// @Success      200  {object}  response.Response{data=service.InvoiceResponse}
// @Failure      409  {object}  response.Response
// @Failure      422  {object}  response.Response
// @Failure      502  {object}  response.Response
// @Router       /api/invoices/{id}/submit [post]
func (h *InvoiceHandler) SubmitInvoice(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	invoice, err := h.invoiceService.SubmitInvoice(c.Request.Context(), actorFrom(c), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, invoice))
}
