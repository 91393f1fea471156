package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"einvoice/internal/lineitem"
	"einvoice/internal/sheet"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// InvoicePreview is one invoice as the API would create it from the sheet.
type InvoicePreview struct {
	RefNo       string `json:"invoice_ref_no" yaml:"invoice_ref_no"`
	Buyer       string `json:"buyer" yaml:"buyer"`
	Rows        []int  `json:"rows" yaml:"rows"`
	Lines       int    `json:"lines" yaml:"lines"`
	Subtotal    string `json:"subtotal" yaml:"subtotal"`
	TaxAmount   string `json:"tax_amount" yaml:"tax_amount"`
	TotalAmount string `json:"total_amount" yaml:"total_amount"`
}

// Report summarizes a checked sheet.
type Report struct {
	File        string           `json:"file" yaml:"file"`
	Rows        int              `json:"rows" yaml:"rows"`
	Invoices    []InvoicePreview `json:"invoices" yaml:"invoices"`
	Subtotal    string           `json:"subtotal" yaml:"subtotal"`
	TaxAmount   string           `json:"tax_amount" yaml:"tax_amount"`
	TotalAmount string           `json:"total_amount" yaml:"total_amount"`
}

func newCheckCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "check <file>",
		Short: "Verify a sheet header and preview its invoices",
		Long: `check parses the sheet the same way the upload endpoint does. A header
that does not match the template exactly is reported column by column.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			report, err := Check(filepath.Base(args[0]), f)
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), opts.output, report)
		},
	}
}

// Check reads a sheet and computes the invoices and totals it would produce.
func Check(filename string, r io.Reader) (*Report, error) {
	rows, err := sheet.Read(filename, r)
	if err != nil {
		return nil, err
	}

	report := &Report{File: filename, Rows: len(rows), Invoices: make([]InvoicePreview, 0)}
	var grand lineitem.InvoiceTotals
	for _, inv := range sheet.GroupInvoices(rows) {
		lines, totals := lineitem.Aggregate(inv.Lines)
		for _, line := range lines {
			grand.Add(line)
		}
		report.Invoices = append(report.Invoices, InvoicePreview{
			RefNo:       inv.RefNo,
			Buyer:       inv.BuyerBusinessName,
			Rows:        inv.Rows,
			Lines:       len(lines),
			Subtotal:    amount(totals.Subtotal),
			TaxAmount:   amount(totals.TaxAmount),
			TotalAmount: amount(totals.TotalAmount),
		})
	}
	report.Subtotal = amount(grand.Subtotal)
	report.TaxAmount = amount(grand.TaxAmount)
	report.TotalAmount = amount(grand.TotalAmount)
	return report, nil
}

func amount(d decimal.Decimal) string {
	return d.StringFixed(2)
}

func render(w io.Writer, format string, report *Report) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(report); err != nil {
			return err
		}
		return enc.Close()
	default:
		return renderTable(w, report)
	}
}

func renderTable(w io.Writer, report *Report) error {
	fmt.Fprintf(w, "%s: %d rows, %d invoices\n\n", report.File, report.Rows, len(report.Invoices))

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "REF NO\tBUYER\tROWS\tLINES\tSUBTOTAL\tTAX\tTOTAL\t")
	for _, inv := range report.Invoices {
		ref := inv.RefNo
		if ref == "" {
			ref = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\t%s\t\n",
			ref, inv.Buyer, joinInts(inv.Rows), inv.Lines, inv.Subtotal, inv.TaxAmount, inv.TotalAmount)
	}
	fmt.Fprintf(tw, "TOTAL\t\t\t\t%s\t%s\t%s\t\n", report.Subtotal, report.TaxAmount, report.TotalAmount)
	return tw.Flush()
}

func joinInts(v []int) string {
	parts := make([]string, len(v))
	for i, n := range v {
		parts[i] = fmt.Sprint(n)
	}
	return strings.Join(parts, ",")
}
