package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// RowRef identifies a single ledger row at the time it was read.
// Row is the 1-based workbook row index.
type RowRef struct {
	Sheet string `json:"sheet"`
	Row   int    `json:"row"`
}

// LedgerRow is one purchase-order line read from the ledger workbook.
// Settled* fields are populated once an invoice has been written back.
type LedgerRow struct {
	Ref              RowRef           `json:"ref"`
	PONumber         string           `json:"po_number"`
	StoreName        string           `json:"store_name,omitempty"`
	Brand            string           `json:"brand,omitempty"`
	JobDescription   string           `json:"job_description,omitempty"`
	QuoteReference   string           `json:"quote_reference,omitempty"`
	AuthorizedBy     string           `json:"authorized_by,omitempty"`
	SettledInvoiceNo string           `json:"settled_invoice_no,omitempty"`
	SettledAmount    *decimal.Decimal `json:"settled_amount,omitempty"`
	SettledDate      *time.Time       `json:"settled_date,omitempty"`
	CostCode         string           `json:"cost_code,omitempty"`
}

// IsSettled reports whether an invoice number has already been written to the row
func (r *LedgerRow) IsSettled() bool {
	return r.SettledInvoiceNo != ""
}

// IsEmpty reports whether the row carries no usable data at all.
// Empty rows are excluded from candidate scans.
func (r *LedgerRow) IsEmpty() bool {
	return r.PONumber == "" && r.StoreName == "" && r.Brand == "" &&
		r.JobDescription == "" && r.SettledInvoiceNo == ""
}

// CandidateScore holds the weighted blend for one scanned row
type CandidateScore struct {
	Row           *LedgerRow `json:"row"`
	Score         float64    `json:"score"`
	StoreScore    float64    `json:"store_score"`
	SupplierScore float64    `json:"supplier_score"`
	AmountScore   float64    `json:"amount_score"`
}
