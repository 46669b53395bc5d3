package models

import "time"

// Severity classifies how an outcome affects the final disposition
type Severity string

const (
	SeverityBlocking      Severity = "blocking"
	SeverityAdvisory      Severity = "advisory"
	SeverityInformational Severity = "informational"
)

// MatchStrategy identifies which step of the match cascade produced a result
type MatchStrategy string

const (
	MatchStrategyPOKey         MatchStrategy = "po_key"
	MatchStrategyInvoiceNumber MatchStrategy = "settled_invoice_number"
	MatchStrategyFuzzy         MatchStrategy = "fuzzy"
	MatchStrategyNone          MatchStrategy = "none"
)

// Outcome is a single check result. The disposition is derived purely
// from the ordered outcome list, never from side state.
type Outcome struct {
	Check    string   `json:"check"`
	Passed   bool     `json:"passed"`
	Severity Severity `json:"severity"`
	Expected string   `json:"expected,omitempty"`
	Actual   string   `json:"actual,omitempty"`
	Message  string   `json:"message"`
}

// IsBlockingFailure reports a failed outcome that forces the failed disposition
func (o Outcome) IsBlockingFailure() bool {
	return !o.Passed && o.Severity == SeverityBlocking
}

// IsAdvisoryFailure reports a failed outcome that forces review
func (o Outcome) IsAdvisoryFailure() bool {
	return !o.Passed && o.Severity == SeverityAdvisory
}

// Disposition is the terminal state of a reconciled invoice
type Disposition string

const (
	DispositionAutoUpdate  Disposition = "auto_update"
	DispositionNeedsReview Disposition = "needs_review"
	DispositionFailed      Disposition = "failed"
)

// MatchResult is the product of the match cascade for one invoice.
// Row is nil when no strategy matched.
type MatchResult struct {
	Strategy MatchStrategy `json:"strategy"`
	Row      *LedgerRow    `json:"row,omitempty"`
	Score    float64       `json:"score"`
	Outcomes []Outcome     `json:"outcomes"`
}

// Matched reports whether the cascade landed on a ledger row
func (m *MatchResult) Matched() bool {
	return m != nil && m.Row != nil
}

// ReconciliationResult is the one-per-invoice record of a reconcile pass
type ReconciliationResult struct {
	ID          string        `json:"id"`
	Invoice     InvoiceRecord `json:"invoice"`
	Match       *MatchResult  `json:"match,omitempty"`
	Outcomes    []Outcome     `json:"outcomes"`
	Disposition Disposition   `json:"disposition"`
	Error       string        `json:"error,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
}

// FirstFailure returns the first failed outcome, or nil when all passed
func (r *ReconciliationResult) FirstFailure() *Outcome {
	for i := range r.Outcomes {
		if !r.Outcomes[i].Passed {
			return &r.Outcomes[i]
		}
	}
	return nil
}
