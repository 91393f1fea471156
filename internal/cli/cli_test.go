package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"einvoice/internal/sheet"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func csvRow(values map[string]string) string {
	cells := make([]string, len(sheet.Columns))
	for i, col := range sheet.Columns {
		cells[i] = values[col]
	}
	return strings.Join(cells, ",")
}

func writeSheet(t *testing.T, rows ...map[string]string) string {
	t.Helper()
	lines := []string{strings.Join(sheet.Columns, ",")}
	for _, r := range rows {
		lines = append(lines, csvRow(r))
	}
	path := filepath.Join(t.TempDir(), "invoices.csv")
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644))
	return path
}

func sampleSheet(t *testing.T) string {
	return writeSheet(t,
		map[string]string{
			sheet.ColInvoiceRefNo: "INV-1", sheet.ColBuyerBusinessName: "Acme",
			sheet.ColValueSalesExcludingST: "100", sheet.ColSalesTaxApplicable: "18",
		},
		map[string]string{
			sheet.ColInvoiceRefNo: "INV-2", sheet.ColBuyerBusinessName: "Beta",
			sheet.ColValueSalesExcludingST: "200", sheet.ColSalesTaxApplicable: "17",
		},
		map[string]string{
			sheet.ColInvoiceRefNo: "INV-1", sheet.ColBuyerBusinessName: "Ignored",
			sheet.ColValueSalesExcludingST: "50",
		},
	)
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := NewRootCmd(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestCheck_GroupsAndTotals(t *testing.T) {
	f, err := os.Open(sampleSheet(t))
	require.NoError(t, err)
	defer f.Close()

	report, err := Check("invoices.csv", f)
	require.NoError(t, err)

	assert.Equal(t, 3, report.Rows)
	require.Len(t, report.Invoices, 2)

	first := report.Invoices[0]
	assert.Equal(t, "INV-1", first.RefNo)
	assert.Equal(t, "Acme", first.Buyer)
	assert.Equal(t, []int{2, 4}, first.Rows)
	assert.Equal(t, 2, first.Lines)
	assert.Equal(t, "150.00", first.Subtotal)
	assert.Equal(t, "18.00", first.TaxAmount)
	assert.Equal(t, "168.00", first.TotalAmount)

	assert.Equal(t, "234.00", report.Invoices[1].TotalAmount)
	assert.Equal(t, "350.00", report.Subtotal)
	assert.Equal(t, "52.00", report.TaxAmount)
	assert.Equal(t, "402.00", report.TotalAmount)
}

func TestCheckCmd_Formats(t *testing.T) {
	path := sampleSheet(t)

	out, err := run(t, "check", path)
	require.NoError(t, err)
	assert.Contains(t, out, "invoices.csv: 3 rows, 2 invoices")
	assert.Contains(t, out, "INV-1")
	assert.Contains(t, out, "402.00")

	out, err = run(t, "check", path, "-o", "json")
	require.NoError(t, err)
	var fromJSON Report
	require.NoError(t, json.Unmarshal([]byte(out), &fromJSON))
	assert.Len(t, fromJSON.Invoices, 2)
	assert.Equal(t, "402.00", fromJSON.TotalAmount)

	out, err = run(t, "check", path, "--output", "yaml")
	require.NoError(t, err)
	var fromYAML Report
	require.NoError(t, yaml.Unmarshal([]byte(out), &fromYAML))
	assert.Equal(t, "INV-2", fromYAML.Invoices[1].RefNo)
	assert.Equal(t, []int{3}, fromYAML.Invoices[1].Rows)
}

func TestCheckCmd_Errors(t *testing.T) {
	bad := filepath.Join(t.TempDir(), "bad.csv")
	require.NoError(t, os.WriteFile(bad, []byte("Invoice Ref No,Buyer\nINV-1,Acme\n"), 0o644))

	_, err := run(t, "check", bad)
	var mismatch *sheet.HeaderMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Contains(t, mismatch.Unexpected, "Buyer")

	txt := filepath.Join(t.TempDir(), "invoices.txt")
	require.NoError(t, os.WriteFile(txt, []byte("x"), 0o644))
	_, err = run(t, "check", txt)
	assert.ErrorIs(t, err, sheet.ErrUnsupportedFormat)

	_, err = run(t, "check", sampleSheet(t), "-o", "xml")
	assert.ErrorContains(t, err, "unsupported output format")

	_, err = run(t, "check")
	assert.Error(t, err)
}

func TestTemplateCmd(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "template.xlsx")

	out, err := run(t, "template", dest)
	require.NoError(t, err)
	assert.Contains(t, out, "24 columns")

	f, err := os.Open(dest)
	require.NoError(t, err)
	defer f.Close()
	rows, err := sheet.Read("template.xlsx", f)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestVersionCmd(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "invoicectl")
	assert.Contains(t, out, "Version:    dev")
}
