// Package lineitem turns loosely typed invoice lines (JSON objects or
// spreadsheet rows) into canonical line items and folds them into invoice
// totals. Nothing in this package fails on bad input: malformed cells are
// defaulted so that one bad value never rejects a whole import.
package lineitem

import (
	"bytes"
	"encoding/json"

	"github.com/shopspring/decimal"
)

// Keys recognised on a RawLineItem. They follow the FBR Digital Invoicing
// item field names.
const (
	KeyProductDescription              = "productDescription"
	KeyItemDescription                 = "itemDescription"
	KeyHSCode                          = "hsCode"
	KeyRate                            = "rate"
	KeyUoM                             = "uoM"
	KeyQuantity                        = "quantity"
	KeyTotalValues                     = "totalValues"
	KeyValueSalesExcludingST           = "valueSalesExcludingST"
	KeyFixedNotifiedValueOrRetailPrice = "fixedNotifiedValueOrRetailPrice"
	KeySalesTaxApplicable              = "salesTaxApplicable"
	KeySalesTaxWithheldAtSource        = "salesTaxWithheldAtSource"
	KeyExtraTax                        = "extraTax"
	KeyFurtherTax                      = "furtherTax"
	KeySroScheduleNo                   = "sroScheduleNo"
	KeyFedPayable                      = "fedPayable"
	KeyDiscount                        = "discount"
	KeySaleType                        = "saleType"
	KeySroItemSerialNo                 = "sroItemSerialNo"
)

// DefaultDescription is used when a line carries no description at all.
const DefaultDescription = "Item"

var hundred = decimal.NewFromInt(100)

// RawLineItem is one untrusted invoice line. Values may be strings, numbers
// or missing altogether.
type RawLineItem map[string]any

// UnmarshalJSON keeps numbers as json.Number. A line that is not a JSON
// object decodes to an empty line instead of failing the request.
func (r *RawLineItem) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	if len(data) == 0 || data[0] != '{' {
		*r = RawLineItem{}
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var fields map[string]any
	if err := dec.Decode(&fields); err != nil {
		return err
	}
	*r = fields
	return nil
}

// NormalizedLineItem is the canonical form of a line. Core amounts default to
// zero; auxiliary amounts are null when not provided (or provided as zero).
type NormalizedLineItem struct {
	ItemDescription string `json:"itemDescription"`
	HSCode          string `json:"hsCode"`
	Rate            string `json:"rate"`
	UoM             string `json:"uoM"`
	SaleType        string `json:"saleType"`
	SroScheduleNo   string `json:"sroScheduleNo"`
	SroItemSerialNo string `json:"sroItemSerialNo"`

	Quantity              decimal.Decimal `json:"quantity"`
	ValueSalesExcludingST decimal.Decimal `json:"valueSalesExcludingST"`
	SalesTaxApplicable    decimal.Decimal `json:"salesTaxApplicable"` // percent
	ExtraTax              decimal.Decimal `json:"extraTax"`

	TotalValues                     decimal.NullDecimal `json:"totalValues"`
	FixedNotifiedValueOrRetailPrice decimal.NullDecimal `json:"fixedNotifiedValueOrRetailPrice"`
	SalesTaxWithheldAtSource        decimal.NullDecimal `json:"salesTaxWithheldAtSource"`
	FurtherTax                      decimal.NullDecimal `json:"furtherTax"`
	FedPayable                      decimal.NullDecimal `json:"fedPayable"`
	Discount                        decimal.NullDecimal `json:"discount"`

	LineSubtotal decimal.Decimal `json:"lineSubtotal"`
	LineTax      decimal.Decimal `json:"lineTax"`
	LineTotal    decimal.Decimal `json:"lineTotal"`
}

// InvoiceTotals accumulates line amounts for one invoice.
type InvoiceTotals struct {
	Subtotal    decimal.Decimal `json:"subtotal"`
	TaxAmount   decimal.Decimal `json:"taxAmount"`
	TotalAmount decimal.Decimal `json:"totalAmount"`
}

// Normalize coerces raw into a NormalizedLineItem and derives the line
// amounts. Quantity is informational: the subtotal is the value of sales
// excluding tax as supplied. TotalValues is carried as given and is not
// reconciled with LineTotal.
func Normalize(raw RawLineItem) NormalizedLineItem {
	n := NormalizedLineItem{
		ItemDescription: description(raw),
		HSCode:          toText(raw[KeyHSCode]),
		Rate:            toText(raw[KeyRate]),
		UoM:             toText(raw[KeyUoM]),
		SaleType:        toText(raw[KeySaleType]),
		SroScheduleNo:   toText(raw[KeySroScheduleNo]),
		SroItemSerialNo: toText(raw[KeySroItemSerialNo]),

		Quantity:              orZero(raw[KeyQuantity]),
		ValueSalesExcludingST: orZero(raw[KeyValueSalesExcludingST]),
		SalesTaxApplicable:    orZero(raw[KeySalesTaxApplicable]),
		ExtraTax:              orZero(raw[KeyExtraTax]),

		TotalValues:                     orAbsent(raw[KeyTotalValues]),
		FixedNotifiedValueOrRetailPrice: orAbsent(raw[KeyFixedNotifiedValueOrRetailPrice]),
		SalesTaxWithheldAtSource:        orAbsent(raw[KeySalesTaxWithheldAtSource]),
		FurtherTax:                      orAbsent(raw[KeyFurtherTax]),
		FedPayable:                      orAbsent(raw[KeyFedPayable]),
		Discount:                        orAbsent(raw[KeyDiscount]),
	}

	n.LineSubtotal = n.ValueSalesExcludingST
	n.LineTax = n.LineSubtotal.Mul(n.SalesTaxApplicable).Div(hundred)
	n.LineTotal = n.LineSubtotal.Add(n.LineTax)
	return n
}

func description(raw RawLineItem) string {
	if d := toText(raw[KeyProductDescription]); d != "" {
		return d
	}
	if d := toText(raw[KeyItemDescription]); d != "" {
		return d
	}
	return DefaultDescription
}

// Add folds one normalized line into the totals.
func (t *InvoiceTotals) Add(line NormalizedLineItem) {
	t.Subtotal = t.Subtotal.Add(line.LineSubtotal)
	t.TaxAmount = t.TaxAmount.Add(line.LineTax)
	t.TotalAmount = t.TotalAmount.Add(line.LineTotal)
}

// Aggregate normalizes lines in order and returns them with the invoice
// totals. An empty input yields an empty slice and zero totals.
func Aggregate(lines []RawLineItem) ([]NormalizedLineItem, InvoiceTotals) {
	totals := InvoiceTotals{}
	normalized := make([]NormalizedLineItem, 0, len(lines))
	for _, raw := range lines {
		line := Normalize(raw)
		normalized = append(normalized, line)
		totals.Add(line)
	}
	return normalized, totals
}
