// Package sheet reads invoice spreadsheets (xlsx or csv) laid out with the
// fixed bulk upload header and groups their rows into invoices.
package sheet

import (
	"fmt"
	"slices"
	"strings"

	"einvoice/internal/lineitem"
)

// Header names, in upload order.
const (
	ColInvoiceRefNo                    = "Invoice Ref No"
	ColInvoiceType                     = "Invoice Type"
	ColInvoiceDate                     = "Invoice Date"
	ColBuyerNTNCNIC                    = "Buyer NTN/CNIC"
	ColBuyerBusinessName               = "Buyer Business Name"
	ColBuyerProvince                   = "Buyer Province"
	ColBuyerAddress                    = "Buyer Address"
	ColHSCode                          = "HS Code"
	ColProductDescription              = "Product Description"
	ColRate                            = "Rate"
	ColUoM                             = "UoM"
	ColQuantity                        = "Quantity"
	ColTotalValues                     = "Total Values"
	ColValueSalesExcludingST           = "Value Sales Excluding ST"
	ColFixedNotifiedValueOrRetailPrice = "Fixed Notified Value or Retail Price"
	ColSalesTaxApplicable              = "Sales Tax Applicable"
	ColSalesTaxWithheldAtSource        = "Sales Tax Withheld at Source"
	ColExtraTax                        = "Extra Tax"
	ColFurtherTax                      = "Further Tax"
	ColSroScheduleNo                   = "SRO Schedule No"
	ColFedPayable                      = "FED Payable"
	ColDiscount                        = "Discount"
	ColSaleType                        = "Sale Type"
	ColSroItemSerialNo                 = "SRO Item Serial No"
)

// Columns is the header every uploaded sheet must carry, exactly and in order.
var Columns = []string{
	ColInvoiceRefNo,
	ColInvoiceType,
	ColInvoiceDate,
	ColBuyerNTNCNIC,
	ColBuyerBusinessName,
	ColBuyerProvince,
	ColBuyerAddress,
	ColHSCode,
	ColProductDescription,
	ColRate,
	ColUoM,
	ColQuantity,
	ColTotalValues,
	ColValueSalesExcludingST,
	ColFixedNotifiedValueOrRetailPrice,
	ColSalesTaxApplicable,
	ColSalesTaxWithheldAtSource,
	ColExtraTax,
	ColFurtherTax,
	ColSroScheduleNo,
	ColFedPayable,
	ColDiscount,
	ColSaleType,
	ColSroItemSerialNo,
}

// lineColumns maps the per-line columns onto line item keys.
var lineColumns = map[string]string{
	ColHSCode:                          lineitem.KeyHSCode,
	ColProductDescription:              lineitem.KeyProductDescription,
	ColRate:                            lineitem.KeyRate,
	ColUoM:                             lineitem.KeyUoM,
	ColQuantity:                        lineitem.KeyQuantity,
	ColTotalValues:                     lineitem.KeyTotalValues,
	ColValueSalesExcludingST:           lineitem.KeyValueSalesExcludingST,
	ColFixedNotifiedValueOrRetailPrice: lineitem.KeyFixedNotifiedValueOrRetailPrice,
	ColSalesTaxApplicable:              lineitem.KeySalesTaxApplicable,
	ColSalesTaxWithheldAtSource:        lineitem.KeySalesTaxWithheldAtSource,
	ColExtraTax:                        lineitem.KeyExtraTax,
	ColFurtherTax:                      lineitem.KeyFurtherTax,
	ColSroScheduleNo:                   lineitem.KeySroScheduleNo,
	ColFedPayable:                      lineitem.KeyFedPayable,
	ColDiscount:                        lineitem.KeyDiscount,
	ColSaleType:                        lineitem.KeySaleType,
	ColSroItemSerialNo:                 lineitem.KeySroItemSerialNo,
}

// HeaderMismatchError reports how an uploaded header differs from Columns.
type HeaderMismatchError struct {
	Expected   []string `json:"expected"`
	Found      []string `json:"found"`
	Missing    []string `json:"missing"`
	Unexpected []string `json:"unexpected"`
}

func (e *HeaderMismatchError) Error() string {
	var b strings.Builder
	b.WriteString("spreadsheet header mismatch")
	if len(e.Missing) > 0 {
		fmt.Fprintf(&b, "; missing: %s", strings.Join(e.Missing, ", "))
	}
	if len(e.Unexpected) > 0 {
		fmt.Fprintf(&b, "; unexpected: %s", strings.Join(e.Unexpected, ", "))
	}
	if len(e.Missing) == 0 && len(e.Unexpected) == 0 {
		b.WriteString("; columns are out of order")
	}
	return b.String()
}

// CheckHeader compares a header row with Columns. Cells are trimmed and
// trailing blank cells ignored; anything else must match name for name.
func CheckHeader(found []string) error {
	cleaned := make([]string, len(found))
	for i, cell := range found {
		cleaned[i] = strings.TrimSpace(cell)
	}
	for len(cleaned) > 0 && cleaned[len(cleaned)-1] == "" {
		cleaned = cleaned[:len(cleaned)-1]
	}

	if slices.Equal(cleaned, Columns) {
		return nil
	}

	foundSet := make(map[string]bool, len(cleaned))
	for _, c := range cleaned {
		foundSet[c] = true
	}
	expectedSet := make(map[string]bool, len(Columns))
	for _, c := range Columns {
		expectedSet[c] = true
	}

	mismatch := &HeaderMismatchError{
		Expected:   append([]string(nil), Columns...),
		Found:      cleaned,
		Missing:    []string{},
		Unexpected: []string{},
	}
	for _, c := range Columns {
		if !foundSet[c] {
			mismatch.Missing = append(mismatch.Missing, c)
		}
	}
	for _, c := range cleaned {
		if c != "" && !expectedSet[c] {
			mismatch.Unexpected = append(mismatch.Unexpected, c)
		}
	}
	return mismatch
}
