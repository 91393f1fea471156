package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"io"
	"io/fs"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"einvoice/internal/model"
	"einvoice/internal/sheet"
	"einvoice/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func csvUpload(t *testing.T, header []string, rows ...[]string) *bytes.Buffer {
	t.Helper()
	buf := &bytes.Buffer{}
	w := csv.NewWriter(buf)
	require.NoError(t, w.Write(header))
	require.NoError(t, w.WriteAll(rows))
	return buf
}

func sheetRow(ref, desc, value, rate string) []string {
	row := make([]string, len(sheet.Columns))
	row[0] = ref
	row[2] = "15/01/2025"
	row[3] = "7654321"
	row[4] = "Buyer Co"
	row[5] = "Sindh"
	row[8] = desc
	row[13] = value
	row[15] = rate
	return row
}

func TestImportSpreadsheet(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	store, err := storage.NewLocalDriver(t.TempDir(), "")
	require.NoError(t, err)

	svc := NewUploadService(e.invoices, store).(*uploadService)
	svc.now = func() time.Time { return time.Date(2025, 1, 15, 9, 0, 0, 0, time.UTC) }

	body := csvUpload(t, sheet.Columns,
		sheetRow("INV-1", "A", "100", "18"),
		sheetRow("INV-2", "C", "10", "0"),
		sheetRow("INV-1", "B", "50", "0"),
	)
	res, err := svc.ImportSpreadsheet(ctx, e.actor, "january.csv", body)
	require.NoError(t, err)

	assert.Equal(t, 3, res.Rows)
	assert.Equal(t, 2, res.Created)
	assert.Equal(t, 3, res.Lines)
	require.Len(t, res.Invoices, 2)
	assert.Equal(t, "INV-1", res.Invoices[0].InvoiceRefNo)
	assert.Equal(t, "168.0000", res.Invoices[0].TotalAmount)
	assert.Equal(t, "2025-01-15", res.Invoices[0].InvoiceDate)
	assert.Equal(t, "Sale Invoice", res.Invoices[0].InvoiceType)
	assert.Equal(t, model.InvoiceSourceUpload, res.Invoices[1].Source)

	assert.True(t, strings.HasPrefix(res.FileKey, "invoice-uploads/"+e.org.ID.String()+"/2025/01/15/"))
	assert.True(t, strings.HasSuffix(res.FileKey, "-january.csv"))
	rc, ct, err := store.Get(ctx, res.FileKey)
	require.NoError(t, err)
	defer rc.Close()
	archived, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Contains(t, string(archived), "INV-2")
	assert.Equal(t, "text/csv", ct)

	_, total, err := e.auditRepo.List(ctx, e.org.ID, model.ActionUploadInvoices, 1, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
}

func TestImportSpreadsheet_HeaderMismatch(t *testing.T) {
	e := newEnv(t)
	svc := NewUploadService(e.invoices, nil)

	header := append([]string{}, sheet.Columns...)
	header[3], header[4] = header[4], header[3]

	_, err := svc.ImportSpreadsheet(context.Background(), e.actor, "bad.csv", csvUpload(t, header, sheetRow("INV-1", "A", "1", "0")))
	var mismatch *sheet.HeaderMismatchError
	require.True(t, errors.As(err, &mismatch))
	assert.Zero(t, e.countInvoices(t))
}

func archivedFiles(t *testing.T, dir string) int {
	t.Helper()
	n := 0
	require.NoError(t, filepath.WalkDir(dir, func(_ string, d fs.DirEntry, err error) error {
		if err == nil && !d.IsDir() {
			n++
		}
		return err
	}))
	return n
}

func TestImportSpreadsheet_NoDataRows(t *testing.T) {
	e := newEnv(t)
	dir := t.TempDir()
	store, err := storage.NewLocalDriver(dir, "")
	require.NoError(t, err)
	svc := NewUploadService(e.invoices, store)

	_, err = svc.ImportSpreadsheet(context.Background(), e.actor, "empty.csv", csvUpload(t, sheet.Columns))
	assert.ErrorIs(t, err, ErrEmptyBatch)
	assert.Zero(t, archivedFiles(t, dir))
}

func TestImportSpreadsheet_FailedImportIsNotArchived(t *testing.T) {
	e := newEnv(t)
	dir := t.TempDir()
	store, err := storage.NewLocalDriver(dir, "")
	require.NoError(t, err)
	svc := NewUploadService(e.invoices, store)

	require.NoError(t, e.db.Migrator().DropTable(&model.InvoiceItem{}))

	_, err = svc.ImportSpreadsheet(context.Background(), e.actor, "january.csv",
		csvUpload(t, sheet.Columns, sheetRow("INV-1", "A", "100", "18")))
	assert.ErrorIs(t, err, ErrBulkCreateFailed)
	assert.Zero(t, e.countInvoices(t))
	assert.Zero(t, archivedFiles(t, dir))
}

func TestImportSpreadsheet_TooLarge(t *testing.T) {
	e := newEnv(t)
	svc := NewUploadService(e.invoices, nil)

	_, err := svc.ImportSpreadsheet(context.Background(), e.actor, "big.csv", io.LimitReader(zeroReader{}, MaxUploadSize+10))
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

type zeroReader struct{}

func (zeroReader) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = '0'
	}
	return len(p), nil
}

func TestTemplate(t *testing.T) {
	svc := NewUploadService(nil, nil)
	data, err := svc.Template()
	require.NoError(t, err)

	rows, err := sheet.Read("template.xlsx", bytes.NewReader(data))
	require.NoError(t, err)
	assert.Empty(t, rows)
}
