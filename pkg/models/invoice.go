package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// SupplierCategory routes an invoice to a ledger sheet
type SupplierCategory string

const (
	SupplierCategoryMaintenance SupplierCategory = "maintenance"
	SupplierCategoryCleaning    SupplierCategory = "cleaning"
	SupplierCategorySecurity    SupplierCategory = "security"
	SupplierCategoryUtilities   SupplierCategory = "utilities"
	SupplierCategoryGeneric     SupplierCategory = "generic"
)

// InvoiceRecord is a structured invoice extracted from a supplier document.
// Optional fields are pointers; absence is not an error at this layer.
type InvoiceRecord struct {
	InvoiceNumber  string           `json:"invoice_number"`
	Supplier       string           `json:"supplier"`
	Category       SupplierCategory `json:"category"`
	StoreName      string           `json:"store_name,omitempty"`
	StoreNumber    string           `json:"store_number,omitempty"`
	NetAmount      decimal.Decimal  `json:"net_amount"`
	TaxAmount      *decimal.Decimal `json:"tax_amount,omitempty"`
	TotalAmount    *decimal.Decimal `json:"total_amount,omitempty"`
	InvoiceDate    *time.Time       `json:"invoice_date,omitempty"`
	POReference    string           `json:"po_reference,omitempty"`
	QuoteReference string           `json:"quote_reference,omitempty"`
	AuthorizedBy   string           `json:"authorized_by,omitempty"`
	WorkType       string           `json:"work_type,omitempty"`
	SourceFile     string           `json:"source_file,omitempty"`
}

// HasPOReference reports whether any purchase order reference was extracted
func (inv *InvoiceRecord) HasPOReference() bool {
	return inv.POReference != ""
}
