package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"einvoice/internal/config"
	"einvoice/internal/lineitem"
	"einvoice/internal/middleware"
	"einvoice/internal/service"
	"einvoice/internal/sheet"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeInvoiceService struct {
	service.InvoiceService

	bulkCalls int
	gotActor  service.Actor
	gotBatch  []service.InvoiceInput
	bulkErr   error
	submitErr error
}

func (f *fakeInvoiceService) BulkCreateInvoices(_ context.Context, actor service.Actor, invoices []service.InvoiceInput) (service.BulkCreateResult, error) {
	f.bulkCalls++
	f.gotActor = actor
	f.gotBatch = invoices
	if len(invoices) == 0 {
		return service.BulkCreateResult{}, service.ErrEmptyBatch
	}
	if f.bulkErr != nil {
		return service.BulkCreateResult{}, f.bulkErr
	}
	return service.BulkCreateResult{Created: len(invoices)}, nil
}

func (f *fakeInvoiceService) SubmitInvoice(_ context.Context, _ service.Actor, id uuid.UUID) (service.InvoiceResponse, error) {
	if f.submitErr != nil {
		return service.InvoiceResponse{}, f.submitErr
	}
	return service.InvoiceResponse{ID: id.String(), Status: "submitted"}, nil
}

type fakeUploadService struct {
	err      error
	filename string
	body     string
}

func (f *fakeUploadService) ImportSpreadsheet(_ context.Context, _ service.Actor, filename string, r io.Reader) (service.UploadResult, error) {
	data, _ := io.ReadAll(r)
	f.filename, f.body = filename, string(data)
	if f.err != nil {
		return service.UploadResult{}, f.err
	}
	return service.UploadResult{Rows: 1}, nil
}

func (f *fakeUploadService) Template() ([]byte, error) {
	return []byte("xlsx-bytes"), nil
}

var (
	testUserID = uuid.New()
	testOrgID  = uuid.New()
)

func newAuthenticator() *middleware.Authenticator {
	return middleware.NewAuthenticator(config.AuthConfig{
		JWTSecret:         "test-secret",
		AccessTokenTTL:    time.Hour,
		RefreshTokenTTL:   time.Hour,
		AccessCookieName:  "access_token",
		RefreshCookieName: "refresh_token",
	})
}

func bearer(t *testing.T, auth *middleware.Authenticator, role string) string {
	t.Helper()
	token, err := auth.IssueAccessToken(testUserID, role, &testOrgID)
	require.NoError(t, err)
	return "Bearer " + token
}

func newInvoiceRouter(invoices *fakeInvoiceService, uploads *fakeUploadService) (*gin.Engine, *middleware.Authenticator) {
	gin.SetMode(gin.TestMode)
	auth := newAuthenticator()
	r := gin.New()
	NewInvoiceHandler(invoices, uploads, auth).RegisterRoutes(r.Group(""))
	return r, auth
}

type envelope struct {
	Status     string          `json:"status"`
	StatusCode int             `json:"status_code"`
	Data       json.RawMessage `json:"data"`
	Error      string          `json:"error"`
	Details    json.RawMessage `json:"details"`
}

func doJSON(t *testing.T, r http.Handler, method, path, authz, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if authz != "" {
		req.Header.Set("Authorization", authz)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var env envelope
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	}
	return w, env
}

func TestBulkCreate_RequiresToken(t *testing.T) {
	invoices := &fakeInvoiceService{}
	r, _ := newInvoiceRouter(invoices, nil)

	w, _ := doJSON(t, r, http.MethodPost, "/api/invoices/bulk", "", `{"invoices":[{}]}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Zero(t, invoices.bulkCalls)
}

func TestBulkCreate_PassesBatchWithExactNumbers(t *testing.T) {
	invoices := &fakeInvoiceService{}
	r, auth := newInvoiceRouter(invoices, nil)

	body := `{"invoices":[
		{"invoiceRefNo":"INV-1","lines":[{"valueSalesExcludingST":100.10,"salesTaxApplicable":"18%"}]},
		{"invoiceRefNo":"INV-2","items":[{"valueSalesExcludingST":5}]},
		{"invoiceRefNo":"INV-3"}
	]}`
	w, env := doJSON(t, r, http.MethodPost, "/api/invoices/bulk", bearer(t, auth, "user"), body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, "success", env.Status)

	require.Len(t, invoices.gotBatch, 3)
	assert.Equal(t, testUserID, invoices.gotActor.UserID)
	assert.Equal(t, testOrgID, *invoices.gotActor.OrganizationID)

	line := invoices.gotBatch[0].Lines[0]
	assert.Equal(t, json.Number("100.10"), line[lineitem.KeyValueSalesExcludingST])
	assert.Equal(t, "18%", line[lineitem.KeySalesTaxApplicable])

	_, totals := lineitem.Aggregate(invoices.gotBatch[0].Lines)
	assert.Equal(t, "118.118", totals.TotalAmount.String())

	raw, ok := invoices.gotBatch[1].RawLines()
	assert.True(t, ok)
	assert.Len(t, raw, 1)
}

func TestBulkCreate_ToleratesNonObjectLines(t *testing.T) {
	invoices := &fakeInvoiceService{}
	r, auth := newInvoiceRouter(invoices, nil)

	body := `{"invoices":[{"invoiceRefNo":"A","lines":[42,{"valueSalesExcludingST":10},"x"]}]}`
	w, _ := doJSON(t, r, http.MethodPost, "/api/invoices/bulk", bearer(t, auth, "user"), body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	require.Len(t, invoices.gotBatch, 1)
	lines := invoices.gotBatch[0].Lines
	require.Len(t, lines, 3)
	assert.Empty(t, lines[0])
	assert.Equal(t, json.Number("10"), lines[1][lineitem.KeyValueSalesExcludingST])
	assert.Empty(t, lines[2])
}

func TestBulkCreate_RejectsMalformedBatches(t *testing.T) {
	cases := map[string]string{
		"missing invoices":    `{}`,
		"empty invoices":      `{"invoices":[]}`,
		"null invoices":       `{"invoices":null}`,
		"invoices not array":  `{"invoices":{"invoiceRefNo":"A"}}`,
		"lines not array":     `{"invoices":[{"invoiceRefNo":"A","lines":{"hsCode":"1"}}]}`,
		"lines is a string":   `{"invoices":[{"invoiceRefNo":"A","lines":"none"}]}`,
		"body is not json":    `invoices`,
		"invoice not object":  `{"invoices":["A"]}`,
		"items not array":     `{"invoices":[{"items":true}]}`,
		"trailing array form": `[{"invoiceRefNo":"A"}]`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			invoices := &fakeInvoiceService{}
			r, auth := newInvoiceRouter(invoices, nil)

			w, env := doJSON(t, r, http.MethodPost, "/api/invoices/bulk", bearer(t, auth, "admin"), body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, "error", env.Status)
			assert.Empty(t, invoices.gotBatch)
		})
	}
}

func TestBulkCreate_ErrorMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
		msg    string
	}{
		{service.ErrNoOrganization, http.StatusForbidden, service.ErrNoOrganization.Error()},
		{service.ErrBulkCreateFailed, http.StatusInternalServerError, "bulk create failed"},
		{errors.New("pq: connection refused"), http.StatusInternalServerError, "Internal server error"},
	}
	for _, tc := range cases {
		invoices := &fakeInvoiceService{bulkErr: tc.err}
		r, auth := newInvoiceRouter(invoices, nil)

		w, env := doJSON(t, r, http.MethodPost, "/api/invoices/bulk", bearer(t, auth, "admin"), `{"invoices":[{}]}`)
		assert.Equal(t, tc.status, w.Code)
		assert.Equal(t, tc.msg, env.Error)
	}
}

func TestSubmitInvoice_StatusCodes(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{nil, http.StatusOK},
		{fmt.Errorf("invoice %w", service.ErrNotFound), http.StatusNotFound},
		{service.ErrSubmissionInProgress, http.StatusConflict},
		{service.ErrAlreadySubmitted, http.StatusConflict},
		{service.ErrFBRTokenMissing, http.StatusUnprocessableEntity},
		{fmt.Errorf("%w: timeout", service.ErrFBRUnavailable), http.StatusBadGateway},
	}
	for _, tc := range cases {
		invoices := &fakeInvoiceService{submitErr: tc.err}
		r, auth := newInvoiceRouter(invoices, nil)

		w, _ := doJSON(t, r, http.MethodPost, "/api/invoices/"+uuid.NewString()+"/submit", bearer(t, auth, "user"), "")
		assert.Equal(t, tc.status, w.Code, "%v", tc.err)
	}

	r, auth := newInvoiceRouter(&fakeInvoiceService{}, nil)
	w, _ := doJSON(t, r, http.MethodPost, "/api/invoices/not-a-uuid/submit", bearer(t, auth, "user"), "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func multipartUpload(t *testing.T, filename, content string) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	part, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return body, mw.FormDataContentType()
}

func TestUploadInvoices(t *testing.T) {
	uploads := &fakeUploadService{}
	r, auth := newInvoiceRouter(&fakeInvoiceService{}, uploads)

	body, contentType := multipartUpload(t, "march.csv", "Invoice Ref No,...")
	req := httptest.NewRequest(http.MethodPost, "/api/invoices/upload", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", bearer(t, auth, "user"))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, "march.csv", uploads.filename)
	assert.Equal(t, "Invoice Ref No,...", uploads.body)
}

func TestUploadInvoices_HeaderMismatchDetails(t *testing.T) {
	mismatch := &sheet.HeaderMismatchError{
		Expected: sheet.Columns,
		Found:    []string{"Ref"},
		Missing:  sheet.Columns,
	}
	r, auth := newInvoiceRouter(&fakeInvoiceService{}, &fakeUploadService{err: mismatch})

	body, contentType := multipartUpload(t, "bad.xlsx", "x")
	req := httptest.NewRequest(http.MethodPost, "/api/invoices/upload", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", bearer(t, auth, "user"))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusBadRequest, w.Code)
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))

	var details sheet.HeaderMismatchError
	require.NoError(t, json.Unmarshal(env.Details, &details))
	assert.Equal(t, sheet.Columns, details.Expected)
	assert.Equal(t, []string{"Ref"}, details.Found)
}

func TestUploadInvoices_MissingFile(t *testing.T) {
	r, auth := newInvoiceRouter(&fakeInvoiceService{}, &fakeUploadService{})

	w, env := doJSON(t, r, http.MethodPost, "/api/invoices/upload", bearer(t, auth, "user"), "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "file is required", env.Error)
}

func TestDownloadTemplate(t *testing.T) {
	r, auth := newInvoiceRouter(&fakeInvoiceService{}, &fakeUploadService{})

	req := httptest.NewRequest(http.MethodGet, "/api/invoices/template", nil)
	req.Header.Set("Authorization", bearer(t, auth, "user"))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, xlsxContentType, w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "invoice-template.xlsx")
	assert.Equal(t, "xlsx-bytes", w.Body.String())
}
