package models

import (
	"encoding/json"
	"time"
)

// RunStatus constants
const (
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
)

// ReconciliationRun is one batch pass over a set of invoices
type ReconciliationRun struct {
	ID          string     `json:"id" db:"id"`
	Status      string     `json:"status" db:"status"`
	LedgerPath  string     `json:"ledger_path" db:"ledger_path"`
	DryRun      bool       `json:"dry_run" db:"dry_run"`
	Total       int        `json:"total" db:"total"`
	AutoUpdated int        `json:"auto_updated" db:"auto_updated"`
	NeedsReview int        `json:"needs_review" db:"needs_review"`
	Failed      int        `json:"failed" db:"failed"`
	StartedAt   time.Time  `json:"started_at" db:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty" db:"completed_at"`
}

// StoredResult is the persisted form of a ReconciliationResult
type StoredResult struct {
	ID            string          `json:"id" db:"id"`
	RunID         string          `json:"run_id" db:"run_id"`
	InvoiceNumber string          `json:"invoice_number" db:"invoice_number"`
	Supplier      string          `json:"supplier" db:"supplier"`
	Disposition   string          `json:"disposition" db:"disposition"`
	MatchStrategy string          `json:"match_strategy" db:"match_strategy"`
	MatchScore    float64         `json:"match_score" db:"match_score"`
	Sheet         *string         `json:"sheet,omitempty" db:"sheet"`
	RowIndex      *int            `json:"row_index,omitempty" db:"row_index"`
	Outcomes      json.RawMessage `json:"outcomes" db:"outcomes"`
	Settled       bool            `json:"settled" db:"settled"`
	CreatedAt     time.Time       `json:"created_at" db:"created_at"`
}

// ReviewDecision status constants
const (
	ReviewDecisionApproved = "approved"
	ReviewDecisionRejected = "rejected"
)

// ReviewDecision records a human ruling on a needs-review result
type ReviewDecision struct {
	ID        string    `json:"id" db:"id"`
	ResultID  string    `json:"result_id" db:"result_id"`
	Decision  string    `json:"decision" db:"decision"`
	DecidedBy string    `json:"decided_by" db:"decided_by"`
	Note      *string   `json:"note,omitempty" db:"note"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// NominalCodeMapping maps a supplier (optionally narrowed by work type)
// to the ledger cost code written on settlement
type NominalCodeMapping struct {
	ID        string    `json:"id" db:"id"`
	Supplier  string    `json:"supplier" db:"supplier"`
	WorkType  *string   `json:"work_type,omitempty" db:"work_type"`
	Code      string    `json:"code" db:"code"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// ReconcileRequest is the API payload for a single-invoice reconcile
type ReconcileRequest struct {
	InvoiceNumber  string  `json:"invoice_number" validate:"required"`
	Supplier       string  `json:"supplier" validate:"required"`
	Category       string  `json:"category" validate:"required"`
	StoreName      string  `json:"store_name,omitempty"`
	StoreNumber    string  `json:"store_number,omitempty"`
	NetAmount      string  `json:"net_amount" validate:"required"`
	TaxAmount      *string `json:"tax_amount,omitempty"`
	TotalAmount    *string `json:"total_amount,omitempty"`
	InvoiceDate    *string `json:"invoice_date,omitempty"`
	POReference    string  `json:"po_reference,omitempty"`
	QuoteReference string  `json:"quote_reference,omitempty"`
	AuthorizedBy   string  `json:"authorized_by,omitempty"`
	WorkType       string  `json:"work_type,omitempty"`
}

// SettlementRequest is the API payload for an explicit settle of a result
type SettlementRequest struct {
	ResultID  string `json:"result_id" validate:"required"`
	Confirmed bool   `json:"confirmed"`
	DecidedBy string `json:"decided_by,omitempty"`
}

// ReviewDecisionRequest records an approve/reject ruling
type ReviewDecisionRequest struct {
	Decision  string  `json:"decision" validate:"required,oneof=approved rejected"`
	DecidedBy string  `json:"decided_by" validate:"required"`
	Note      *string `json:"note,omitempty"`
}

// CreateNominalCodeRequest creates or replaces a nominal-code mapping
type CreateNominalCodeRequest struct {
	Supplier string  `json:"supplier" validate:"required"`
	WorkType *string `json:"work_type,omitempty"`
	Code     string  `json:"code" validate:"required"`
}

// RunListResponse is the response for listing reconciliation runs
type RunListResponse struct {
	Items      []ReconciliationRun `json:"items"`
	TotalCount int                 `json:"total_count"`
	Page       int                 `json:"page"`
	PageSize   int                 `json:"page_size"`
}
