package fbr

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Amount is a decimal that encodes as a bare JSON number, which is what the
// gateway expects for item amounts.
type Amount decimal.Decimal

func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(decimal.Decimal(a).String()), nil
}

func (a *Amount) UnmarshalJSON(b []byte) error {
	var d decimal.Decimal
	if err := d.UnmarshalJSON(b); err != nil {
		return err
	}
	*a = Amount(d)
	return nil
}

// InvoicePayload is the body of the validate and post endpoints.
type InvoicePayload struct {
	InvoiceType           string        `json:"invoiceType"`
	InvoiceDate           string        `json:"invoiceDate"`
	SellerNTNCNIC         string        `json:"sellerNTNCNIC"`
	SellerBusinessName    string        `json:"sellerBusinessName"`
	SellerProvince        string        `json:"sellerProvince"`
	SellerAddress         string        `json:"sellerAddress"`
	BuyerNTNCNIC          string        `json:"buyerNTNCNIC"`
	BuyerBusinessName     string        `json:"buyerBusinessName"`
	BuyerProvince         string        `json:"buyerProvince"`
	BuyerAddress          string        `json:"buyerAddress"`
	BuyerRegistrationType string        `json:"buyerRegistrationType"`
	InvoiceRefNo          string        `json:"invoiceRefNo"`
	ScenarioID            string        `json:"scenarioId,omitempty"`
	Items                 []ItemPayload `json:"items"`
}

type ItemPayload struct {
	HSCode                          string `json:"hsCode"`
	ProductDescription              string `json:"productDescription"`
	Rate                            string `json:"rate"`
	UoM                             string `json:"uoM"`
	Quantity                        Amount `json:"quantity"`
	TotalValues                     Amount `json:"totalValues"`
	ValueSalesExcludingST           Amount `json:"valueSalesExcludingST"`
	FixedNotifiedValueOrRetailPrice Amount `json:"fixedNotifiedValueOrRetailPrice"`
	SalesTaxApplicable              Amount `json:"salesTaxApplicable"` // tax amount, not the percentage
	SalesTaxWithheldAtSource        Amount `json:"salesTaxWithheldAtSource"`
	ExtraTax                        Amount `json:"extraTax"`
	FurtherTax                      Amount `json:"furtherTax"`
	SroScheduleNo                   string `json:"sroScheduleNo"`
	FedPayable                      Amount `json:"fedPayable"`
	Discount                        Amount `json:"discount"`
	SaleType                        string `json:"saleType"`
	SroItemSerialNo                 string `json:"sroItemSerialNo"`
}

// Response is returned by both validate and post.
type Response struct {
	InvoiceNumber      string             `json:"invoiceNumber"` // IRN, only set by a successful post
	Dated              string             `json:"dated"`
	ValidationResponse ValidationResponse `json:"validationResponse"`
}

type ValidationResponse struct {
	StatusCode      string       `json:"statusCode"`
	Status          string       `json:"status"`
	ErrorCode       string       `json:"errorCode"`
	Error           string       `json:"error"`
	InvoiceStatuses []ItemStatus `json:"invoiceStatuses"`
}

type ItemStatus struct {
	ItemSNo    string `json:"itemSNo"`
	StatusCode string `json:"statusCode"`
	Status     string `json:"status"`
	InvoiceNo  string `json:"invoiceNo"`
	ErrorCode  string `json:"errorCode"`
	Error      string `json:"error"`
}

// StatusValid is the gateway status code for an accepted invoice.
const StatusValid = "00"

// Valid reports whether the gateway accepted the invoice and every item.
func (v ValidationResponse) Valid() bool {
	if v.StatusCode != StatusValid {
		return false
	}
	for _, s := range v.InvoiceStatuses {
		if s.StatusCode != "" && s.StatusCode != StatusValid {
			return false
		}
	}
	return true
}

// Messages flattens invoice and item level errors.
func (v ValidationResponse) Messages() []string {
	var out []string
	if msg := strings.TrimSpace(v.Error); msg != "" {
		out = append(out, withCode(v.ErrorCode, msg))
	}
	for _, s := range v.InvoiceStatuses {
		if msg := strings.TrimSpace(s.Error); msg != "" {
			out = append(out, "item "+s.ItemSNo+": "+withCode(s.ErrorCode, msg))
		}
	}
	return out
}

func withCode(code, msg string) string {
	if code == "" {
		return msg
	}
	return "[" + code + "] " + msg
}

type registrationRequest struct {
	RegistrationNo string `json:"Registration_No"`
	Date           string `json:"date"`
}

type registrationResponse struct {
	StatusCode       string `json:"statuscode"`
	RegistrationNo   string `json:"REGISTRATION_NO"`
	RegistrationType string `json:"REGISTRATION_TYPE"`
}
