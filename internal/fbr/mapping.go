package fbr

import (
	"einvoice/internal/model"

	"github.com/shopspring/decimal"
)

// FromInvoice builds the gateway payload for a stored invoice and its seller.
// The gateway's salesTaxApplicable is an amount, so the computed line tax is
// sent there; the stored percentage travels in rate when no rate text was given.
func FromInvoice(inv *model.Invoice, seller *model.Organization) InvoicePayload {
	p := InvoicePayload{
		InvoiceType:           inv.InvoiceType,
		InvoiceDate:           inv.InvoiceDate,
		SellerNTNCNIC:         seller.NTNCNIC,
		SellerBusinessName:    seller.BusinessName,
		SellerProvince:        seller.Province,
		SellerAddress:         seller.Address,
		BuyerNTNCNIC:          inv.BuyerNTNCNIC,
		BuyerBusinessName:     inv.BuyerBusinessName,
		BuyerProvince:         inv.BuyerProvince,
		BuyerAddress:          inv.BuyerAddress,
		BuyerRegistrationType: inv.BuyerRegistrationType,
		InvoiceRefNo:          inv.InvoiceRefNo,
		ScenarioID:            inv.ScenarioID,
		Items:                 make([]ItemPayload, 0, len(inv.Items)),
	}
	if p.BuyerRegistrationType == "" {
		p.BuyerRegistrationType = model.RegistrationUnregistered
	}

	for _, it := range inv.Items {
		rate := it.Rate
		if rate == "" {
			rate = it.SalesTaxApplicable.String() + "%"
		}
		p.Items = append(p.Items, ItemPayload{
			HSCode:                          it.HSCode,
			ProductDescription:              it.ItemDescription,
			Rate:                            rate,
			UoM:                             it.UoM,
			Quantity:                        Amount(it.Quantity),
			TotalValues:                     nullable(it.TotalValues),
			ValueSalesExcludingST:           Amount(it.ValueSalesExcludingST),
			FixedNotifiedValueOrRetailPrice: nullable(it.FixedNotifiedValueOrRetailPrice),
			SalesTaxApplicable:              Amount(it.LineTax.Round(2)),
			SalesTaxWithheldAtSource:        nullable(it.SalesTaxWithheldAtSource),
			ExtraTax:                        Amount(it.ExtraTax),
			FurtherTax:                      nullable(it.FurtherTax),
			SroScheduleNo:                   it.SroScheduleNo,
			FedPayable:                      nullable(it.FedPayable),
			Discount:                        nullable(it.Discount),
			SaleType:                        it.SaleType,
			SroItemSerialNo:                 it.SroItemSerialNo,
		})
	}
	return p
}

func nullable(d decimal.NullDecimal) Amount {
	if !d.Valid {
		return Amount(decimal.Zero)
	}
	return Amount(d.Decimal)
}
