package lineitem

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestNormalize_DerivesLineAmounts(t *testing.T) {
	cases := []struct {
		name  string
		value any
		rate  any
		tax   string
		total string
	}{
		{"numbers", 100.0, 18.0, "18", "118"},
		{"strings", "250.50", "17", "42.585", "293.085"},
		{"zero rate", 50, 0, "0", "50"},
		{"fractional rate", "1000", "0.5", "5", "1005"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			line := Normalize(RawLineItem{
				KeyValueSalesExcludingST: tc.value,
				KeySalesTaxApplicable:    tc.rate,
			})
			assert.True(t, line.LineTax.Equal(dec(tc.tax)), "tax = %s", line.LineTax)
			assert.True(t, line.LineTotal.Equal(dec(tc.total)), "total = %s", line.LineTotal)
			assert.True(t, line.LineTotal.Equal(line.LineSubtotal.Add(line.LineTax)))
		})
	}
}

func TestNormalize_QuantityIsNotMultipliedIntoSubtotal(t *testing.T) {
	line := Normalize(RawLineItem{
		KeyQuantity:              5,
		KeyValueSalesExcludingST: "100",
	})
	assert.True(t, line.Quantity.Equal(dec("5")))
	assert.True(t, line.LineSubtotal.Equal(dec("100")))
}

func TestNormalize_DefaultAsymmetry(t *testing.T) {
	line := Normalize(RawLineItem{})

	assert.True(t, line.Quantity.IsZero())
	assert.True(t, line.ValueSalesExcludingST.IsZero())
	assert.True(t, line.SalesTaxApplicable.IsZero())
	assert.True(t, line.ExtraTax.IsZero())

	assert.False(t, line.FixedNotifiedValueOrRetailPrice.Valid)
	assert.False(t, line.TotalValues.Valid)
	assert.False(t, line.SalesTaxWithheldAtSource.Valid)
	assert.False(t, line.FurtherTax.Valid)
	assert.False(t, line.FedPayable.Valid)
	assert.False(t, line.Discount.Valid)
}

func TestNormalize_AuxiliaryZeroIsAbsent(t *testing.T) {
	line := Normalize(RawLineItem{
		KeyDiscount:    "0",
		KeyFurtherTax:  0,
		KeyFedPayable:  "abc",
		KeyTotalValues: "118",
	})
	assert.False(t, line.Discount.Valid)
	assert.False(t, line.FurtherTax.Valid)
	assert.False(t, line.FedPayable.Valid)
	require.True(t, line.TotalValues.Valid)
	assert.True(t, line.TotalValues.Decimal.Equal(dec("118")))
}

func TestNormalize_TotalValuesIsNotReconciled(t *testing.T) {
	line := Normalize(RawLineItem{
		KeyValueSalesExcludingST: 100,
		KeySalesTaxApplicable:    18,
		KeyTotalValues:           500,
	})
	require.True(t, line.TotalValues.Valid)
	assert.True(t, line.TotalValues.Decimal.Equal(dec("500")))
	assert.True(t, line.LineTotal.Equal(dec("118")))
}

func TestNormalize_Coercion(t *testing.T) {
	cases := []struct {
		name string
		in   any
		want string
	}{
		{"nil", nil, "0"},
		{"empty string", "   ", "0"},
		{"garbage", "n/a", "0"},
		{"padded", " 10.5 ", "10.5"},
		{"prefix", "12kg", "12"},
		{"exponent", "1e2", "100"},
		{"int", 7, "7"},
		{"json number", json.Number("3.25"), "3.25"},
		{"nan", math.NaN(), "0"},
		{"inf", math.Inf(1), "0"},
		{"bool", true, "0"},
		{"negative", "-100", "0"},
		{"negative number", -4.5, "0"},
		{"tiny exponent", "1e-400000000", "0"},
		{"huge exponent", json.Number("1e400000000"), "0"},
		{"prefix with huge exponent", "9e99999999kg", "0"},
		{"too many digits", "123456789012345678901234567890123456789", "0"},
		{"small fraction", "0.0001", "0.0001"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			line := Normalize(RawLineItem{KeyQuantity: tc.in})
			assert.True(t, line.Quantity.Equal(dec(tc.want)), "got %s", line.Quantity)
		})
	}
}

func TestNormalize_NegativeAuxiliaryIsAbsent(t *testing.T) {
	line := Normalize(RawLineItem{
		KeyDiscount:    "-5",
		KeyTotalValues: "1e-90",
	})
	assert.False(t, line.Discount.Valid)
	assert.False(t, line.TotalValues.Valid)
}

func TestAggregate_OutOfRangeCellsAreBounded(t *testing.T) {
	done := make(chan InvoiceTotals, 1)
	go func() {
		_, totals := Aggregate([]RawLineItem{
			{KeyValueSalesExcludingST: "1e-400000000", KeySalesTaxApplicable: "18"},
			{KeyValueSalesExcludingST: "100", KeySalesTaxApplicable: json.Number("1e400000000")},
			{KeyValueSalesExcludingST: "100", KeySalesTaxApplicable: "18"},
		})
		done <- totals
	}()

	select {
	case totals := <-done:
		assert.True(t, totals.Subtotal.Equal(dec("200")), "subtotal = %s", totals.Subtotal)
		assert.True(t, totals.TaxAmount.Equal(dec("18")), "tax = %s", totals.TaxAmount)
	case <-time.After(5 * time.Second):
		t.Fatal("Aggregate did not return")
	}
}

func TestAggregate_NegativeLinesNeverDecreaseTotal(t *testing.T) {
	lines, totals := Aggregate([]RawLineItem{
		{KeyValueSalesExcludingST: "100", KeySalesTaxApplicable: "18"},
		{KeyValueSalesExcludingST: "-100", KeySalesTaxApplicable: "18", KeyExtraTax: "-3"},
		{KeyValueSalesExcludingST: "50", KeySalesTaxApplicable: "-10"},
	})
	require.Len(t, lines, 3)
	assert.True(t, lines[1].LineTotal.IsZero())
	assert.True(t, lines[1].ExtraTax.IsZero())
	assert.True(t, lines[2].LineTax.IsZero())
	assert.True(t, totals.TotalAmount.Equal(dec("168")), "total = %s", totals.TotalAmount)
}

func TestNormalize_DescriptionFallback(t *testing.T) {
	assert.Equal(t, "Widget", Normalize(RawLineItem{KeyItemDescription: "Widget"}).ItemDescription)
	assert.Equal(t, "Bolt", Normalize(RawLineItem{
		KeyProductDescription: "Bolt",
		KeyItemDescription:    "Widget",
	}).ItemDescription)
	assert.Equal(t, "Widget", Normalize(RawLineItem{
		KeyProductDescription: "  ",
		KeyItemDescription:    "Widget",
	}).ItemDescription)
	assert.Equal(t, DefaultDescription, Normalize(RawLineItem{}).ItemDescription)
}

func TestNormalize_TextFields(t *testing.T) {
	line := Normalize(RawLineItem{
		KeyHSCode:          " 0101.2100 ",
		KeyRate:            "18%",
		KeyUoM:             "Numbers, pieces, units",
		KeySaleType:        "Goods at standard rate (default)",
		KeySroItemSerialNo: 12.0,
	})
	assert.Equal(t, "0101.2100", line.HSCode)
	assert.Equal(t, "18%", line.Rate)
	assert.Equal(t, "Numbers, pieces, units", line.UoM)
	assert.Equal(t, "Goods at standard rate (default)", line.SaleType)
	assert.Equal(t, "12", line.SroItemSerialNo)
}

func TestAggregate_Empty(t *testing.T) {
	lines, totals := Aggregate(nil)
	assert.NotNil(t, lines)
	assert.Empty(t, lines)
	assert.True(t, totals.Subtotal.IsZero())
	assert.True(t, totals.TaxAmount.IsZero())
	assert.True(t, totals.TotalAmount.IsZero())
}

func TestAggregate_TwoLineInvoice(t *testing.T) {
	lines, totals := Aggregate([]RawLineItem{
		{KeyValueSalesExcludingST: 100, KeySalesTaxApplicable: 18, KeyQuantity: 2},
		{KeyValueSalesExcludingST: 50, KeySalesTaxApplicable: 0, KeyQuantity: 1},
	})

	require.Len(t, lines, 2)
	assert.True(t, totals.Subtotal.Equal(dec("150")))
	assert.True(t, totals.TaxAmount.Equal(dec("18")))
	assert.True(t, totals.TotalAmount.Equal(dec("168")))
}

func TestAggregate_SumsAndOrder(t *testing.T) {
	raw := []RawLineItem{
		{KeyProductDescription: "a", KeyValueSalesExcludingST: "10.10", KeySalesTaxApplicable: "17"},
		{KeyProductDescription: "b", KeyValueSalesExcludingST: "n/a", KeySalesTaxApplicable: 18},
		{KeyProductDescription: "c", KeyValueSalesExcludingST: 33.333, KeySalesTaxApplicable: "5"},
		{KeyProductDescription: "d"},
	}

	lines, totals := Aggregate(raw)
	require.Len(t, lines, len(raw))

	var sub, tax, total decimal.Decimal
	previous := decimal.Zero
	running := InvoiceTotals{}
	for i, line := range lines {
		assert.Equal(t, raw[i][KeyProductDescription], line.ItemDescription)
		sub = sub.Add(line.LineSubtotal)
		tax = tax.Add(line.LineTax)
		total = total.Add(line.LineTotal)

		running.Add(line)
		assert.True(t, running.TotalAmount.GreaterThanOrEqual(previous))
		previous = running.TotalAmount
	}

	assert.True(t, totals.Subtotal.Equal(sub))
	assert.True(t, totals.TaxAmount.Equal(tax))
	assert.True(t, totals.TotalAmount.Equal(total))
	assert.True(t, totals.TotalAmount.Equal(totals.Subtotal.Add(totals.TaxAmount)))
}

func TestRawLineItem_UnmarshalJSON(t *testing.T) {
	var lines []RawLineItem
	require.NoError(t, json.Unmarshal([]byte(`[42, "x", {"valueSalesExcludingST": 100.10, "salesTaxApplicable": "18"}, null, []]`), &lines))
	require.Len(t, lines, 5)

	assert.Empty(t, lines[0])
	assert.Empty(t, lines[1])
	assert.Equal(t, json.Number("100.10"), lines[2][KeyValueSalesExcludingST])
	assert.Empty(t, lines[3])
	assert.Empty(t, lines[4])

	normalized, totals := Aggregate(lines)
	require.Len(t, normalized, 5)
	assert.Equal(t, DefaultDescription, normalized[0].ItemDescription)
	assert.True(t, totals.TotalAmount.Equal(dec("118.118")), "total = %s", totals.TotalAmount)
}

func TestNormalizedLineItem_JSONUsesNullForAbsent(t *testing.T) {
	out, err := json.Marshal(Normalize(RawLineItem{KeyQuantity: 1}))
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(out, &decoded))
	assert.Nil(t, decoded[KeyFixedNotifiedValueOrRetailPrice])
	assert.Equal(t, "1", decoded[KeyQuantity])
}
