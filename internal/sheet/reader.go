package sheet

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"einvoice/internal/lineitem"

	"github.com/xuri/excelize/v2"
)

var (
	ErrEmptySheet        = errors.New("spreadsheet has no header row")
	ErrUnsupportedFormat = errors.New("unsupported file type: expected .xlsx or .csv")
)

// Row is one data row keyed by column name. Number is the 1-based row number
// as shown by spreadsheet software.
type Row struct {
	Number int
	Values map[string]string
}

// Read picks the parser from the file name extension.
func Read(filename string, r io.Reader) ([]Row, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xlsx":
		return ReadXLSX(r)
	case ".csv":
		return ReadCSV(r)
	default:
		return nil, ErrUnsupportedFormat
	}
}

// ReadXLSX reads the first sheet of a workbook. The header is checked before
// any data row is returned.
func ReadXLSX(r io.Reader) ([]Row, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	sheetName := f.GetSheetName(0)
	if sheetName == "" {
		return nil, ErrEmptySheet
	}

	records, err := f.GetRows(sheetName)
	if err != nil {
		return nil, fmt.Errorf("failed to read rows: %w", err)
	}
	return toRows(records)
}

// ReadCSV reads a comma separated file with the same header contract.
func ReadCSV(r io.Reader) ([]Row, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse csv: %w", err)
	}
	if len(records) > 0 && len(records[0]) > 0 {
		records[0][0] = strings.TrimPrefix(records[0][0], "\ufeff")
	}
	return toRows(records)
}

func toRows(records [][]string) ([]Row, error) {
	if len(records) == 0 {
		return nil, ErrEmptySheet
	}
	if err := CheckHeader(records[0]); err != nil {
		return nil, err
	}

	rows := make([]Row, 0, len(records)-1)
	for i, record := range records[1:] {
		if isRowEmpty(record) {
			continue
		}
		values := make(map[string]string, len(Columns))
		for col, name := range Columns {
			values[name] = getCell(record, col)
		}
		rows = append(rows, Row{Number: i + 2, Values: values})
	}
	return rows, nil
}

func getCell(row []string, index int) string {
	if index < 0 || index >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[index])
}

func isRowEmpty(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

// InvoiceRows is one invoice assembled from consecutive or repeated rows that
// share an Invoice Ref No. Header fields come from the first row seen.
type InvoiceRows struct {
	RefNo             string                 `json:"invoiceRefNo"`
	InvoiceType       string                 `json:"invoiceType"`
	InvoiceDate       string                 `json:"invoiceDate"`
	BuyerNTNCNIC      string                 `json:"buyerNTNCNIC"`
	BuyerBusinessName string                 `json:"buyerBusinessName"`
	BuyerProvince     string                 `json:"buyerProvince"`
	BuyerAddress      string                 `json:"buyerAddress"`
	Rows              []int                  `json:"rows"`
	Lines             []lineitem.RawLineItem `json:"lines"`
}

// GroupInvoices groups rows by Invoice Ref No in order of first appearance.
// A row with a blank ref always starts an invoice of its own.
func GroupInvoices(rows []Row) []InvoiceRows {
	invoices := make([]InvoiceRows, 0)
	index := make(map[string]int)

	for _, row := range rows {
		ref := row.Values[ColInvoiceRefNo]
		pos, seen := index[ref]
		if ref == "" || !seen {
			invoices = append(invoices, InvoiceRows{
				RefNo:             ref,
				InvoiceType:       row.Values[ColInvoiceType],
				InvoiceDate:       row.Values[ColInvoiceDate],
				BuyerNTNCNIC:      row.Values[ColBuyerNTNCNIC],
				BuyerBusinessName: row.Values[ColBuyerBusinessName],
				BuyerProvince:     row.Values[ColBuyerProvince],
				BuyerAddress:      row.Values[ColBuyerAddress],
			})
			pos = len(invoices) - 1
			if ref != "" {
				index[ref] = pos
			}
		}
		invoices[pos].Rows = append(invoices[pos].Rows, row.Number)
		invoices[pos].Lines = append(invoices[pos].Lines, toRawLine(row))
	}
	return invoices
}

func toRawLine(row Row) lineitem.RawLineItem {
	raw := make(lineitem.RawLineItem, len(lineColumns))
	for col, key := range lineColumns {
		if v := row.Values[col]; v != "" {
			raw[key] = v
		}
	}
	return raw
}

// TemplateSheet is the sheet name used by Template.
const TemplateSheet = "Invoices"

// Template builds an empty workbook carrying only the header row.
func Template() (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName(f.GetSheetName(0), TemplateSheet); err != nil {
		_ = f.Close()
		return nil, err
	}

	header := make([]interface{}, len(Columns))
	for i, c := range Columns {
		header[i] = c
	}
	if err := f.SetSheetRow(TemplateSheet, "A1", &header); err != nil {
		_ = f.Close()
		return nil, err
	}

	style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err == nil {
		last, _ := excelize.CoordinatesToCellName(len(Columns), 1)
		_ = f.SetCellStyle(TemplateSheet, "A1", last, style)
	}
	lastCol, _ := excelize.ColumnNumberToName(len(Columns))
	_ = f.SetColWidth(TemplateSheet, "A", lastCol, 22)
	return f, nil
}

// TemplateBytes renders Template as xlsx bytes.
func TemplateBytes() ([]byte, error) {
	f, err := Template()
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
