// Package matching resolves invoices to ledger rows through a
// strategy cascade: PO key, settled invoice number, then a weighted
// fuzzy scan
package matching

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Gobusters/ectologger"

	"github.com/samuelblakek/invoice-automation/pkg/ledger"
	"github.com/samuelblakek/invoice-automation/pkg/models"
	"github.com/samuelblakek/invoice-automation/pkg/normalizers"
)

// Check names surfaced in outcomes
const (
	CheckPOKeyMatch       = "po_key_match"
	CheckSettledInvoice   = "settled_invoice_match"
	CheckFuzzyMatch       = "fuzzy_match"
	CheckNoMatch          = "no_match"
	CheckLedgerSheet      = "ledger_sheet"
	CheckDuplicateInvoice = "duplicate_invoice"
	CheckStoreIdentity    = "store_identity"
)

// nearMissLimit caps how many close candidates a no-match outcome names
const nearMissLimit = 3

// Thresholds are the tunable score cutoffs of the cascade
type Thresholds struct {
	// Accept is the minimum fuzzy score that lands a match
	Accept float64
	// HighConfidence splits informational fuzzy matches from advisory ones
	HighConfidence float64
	// StoreInfo is the store-identity score treated as confirmed
	StoreInfo float64
	// StoreBlock is the store-identity score below which the match is rejected
	StoreBlock float64
}

// DefaultThresholds returns the standard cutoffs
func DefaultThresholds() Thresholds {
	return Thresholds{
		Accept:         40,
		HighConfidence: 60,
		StoreInfo:      70,
		StoreBlock:     50,
	}
}

// LedgerIndex is the slice of the ledger the matcher reads
type LedgerIndex interface {
	FindByPONumber(ctx context.Context, category models.SupplierCategory, poRef string) (*models.LedgerRow, error)
	FindBySettledInvoiceNumber(ctx context.Context, category models.SupplierCategory, invoiceNo string) (*models.LedgerRow, error)
	FindCandidates(ctx context.Context, invoice *models.InvoiceRecord) ([]models.CandidateScore, error)
}

// Matcher runs the strategy cascade and the post-match row checks
type Matcher struct {
	index      LedgerIndex
	thresholds Thresholds
	logger     ectologger.Logger
}

// New creates a Matcher
func New(index LedgerIndex, thresholds Thresholds, logger ectologger.Logger) *Matcher {
	return &Matcher{
		index:      index,
		thresholds: thresholds,
		logger:     logger,
	}
}

// Match resolves one invoice against the ledger. A failed lookup is a
// result with outcomes, never an error; errors are reserved for the
// index itself misbehaving.
func (m *Matcher) Match(ctx context.Context, invoice *models.InvoiceRecord) (*models.MatchResult, error) {
	log := m.logger.WithContext(ctx).WithField("invoice_no", invoice.InvoiceNumber)

	result, err := m.runCascade(ctx, invoice)
	if err != nil {
		if errors.Is(err, ledger.ErrUnknownCategory) {
			return &models.MatchResult{
				Strategy: models.MatchStrategyNone,
				Outcomes: []models.Outcome{{
					Check:    CheckLedgerSheet,
					Passed:   false,
					Severity: models.SeverityBlocking,
					Actual:   string(invoice.Category),
					Message:  fmt.Sprintf("no ledger sheet is mapped for supplier category %q", invoice.Category),
				}},
			}, nil
		}
		return nil, err
	}

	if result.Matched() {
		log.WithFields(map[string]interface{}{
			"strategy": string(result.Strategy),
			"sheet":    result.Row.Ref.Sheet,
			"row":      result.Row.Ref.Row,
			"score":    result.Score,
		}).Debug("invoice matched to ledger row")

		if dup := m.duplicateOutcome(invoice, result.Row); dup != nil {
			result.Outcomes = append(result.Outcomes, *dup)
			return result, nil
		}
		if store := m.storeIdentityOutcome(invoice, result.Row); store != nil {
			result.Outcomes = append(result.Outcomes, *store)
		}
	} else {
		log.Debug("invoice did not match any ledger row")
	}

	return result, nil
}

func (m *Matcher) runCascade(ctx context.Context, invoice *models.InvoiceRecord) (*models.MatchResult, error) {
	if invoice.HasPOReference() {
		row, err := m.index.FindByPONumber(ctx, invoice.Category, invoice.POReference)
		if err != nil {
			return nil, err
		}
		if row != nil {
			return &models.MatchResult{
				Strategy: models.MatchStrategyPOKey,
				Row:      row,
				Score:    100,
				Outcomes: []models.Outcome{{
					Check:    CheckPOKeyMatch,
					Passed:   true,
					Severity: models.SeverityInformational,
					Expected: invoice.POReference,
					Actual:   row.PONumber,
					Message:  fmt.Sprintf("PO reference %q matched row %d on %s", invoice.POReference, row.Ref.Row, row.Ref.Sheet),
				}},
			}, nil
		}
	}

	row, err := m.index.FindBySettledInvoiceNumber(ctx, invoice.Category, invoice.InvoiceNumber)
	if err != nil {
		return nil, err
	}
	if row != nil {
		return &models.MatchResult{
			Strategy: models.MatchStrategyInvoiceNumber,
			Row:      row,
			Score:    100,
			Outcomes: []models.Outcome{{
				Check:    CheckSettledInvoice,
				Passed:   true,
				Severity: models.SeverityInformational,
				Expected: invoice.InvoiceNumber,
				Actual:   row.SettledInvoiceNo,
				Message:  fmt.Sprintf("invoice number found in settled column of row %d on %s", row.Ref.Row, row.Ref.Sheet),
			}},
		}, nil
	}

	candidates, err := m.index.FindCandidates(ctx, invoice)
	if err != nil {
		return nil, err
	}
	return m.fuzzyResult(invoice, candidates), nil
}

func (m *Matcher) fuzzyResult(invoice *models.InvoiceRecord, candidates []models.CandidateScore) *models.MatchResult {
	if len(candidates) == 0 || candidates[0].Score < m.thresholds.Accept {
		return &models.MatchResult{
			Strategy: models.MatchStrategyNone,
			Outcomes: []models.Outcome{{
				Check:    CheckNoMatch,
				Passed:   false,
				Severity: models.SeverityBlocking,
				Message:  noMatchMessage(candidates),
			}},
		}
	}

	best := candidates[0]
	result := &models.MatchResult{
		Strategy: models.MatchStrategyFuzzy,
		Row:      best.Row,
		Score:    best.Score,
	}

	detail := fmt.Sprintf("fuzzy match to row %d on %s scored %.1f (store %.1f, supplier %.1f, amount %.1f)",
		best.Row.Ref.Row, best.Row.Ref.Sheet, best.Score, best.StoreScore, best.SupplierScore, best.AmountScore)

	if best.Score >= m.thresholds.HighConfidence {
		result.Outcomes = append(result.Outcomes, models.Outcome{
			Check:    CheckFuzzyMatch,
			Passed:   true,
			Severity: models.SeverityInformational,
			Message:  detail,
		})
	} else {
		result.Outcomes = append(result.Outcomes, models.Outcome{
			Check:    CheckFuzzyMatch,
			Passed:   false,
			Severity: models.SeverityAdvisory,
			Message:  detail + "; below the high-confidence cutoff, review required",
		})
	}

	if !invoice.HasPOReference() {
		result.Outcomes = append(result.Outcomes, models.Outcome{
			Check:    CheckFuzzyMatch,
			Passed:   false,
			Severity: models.SeverityAdvisory,
			Message:  "matched without a PO reference on the invoice, review required",
		})
	}
	return result
}

func noMatchMessage(candidates []models.CandidateScore) string {
	if len(candidates) == 0 {
		return "no ledger row resembles this invoice"
	}
	limit := len(candidates)
	if limit > nearMissLimit {
		limit = nearMissLimit
	}
	parts := make([]string, 0, limit)
	for _, c := range candidates[:limit] {
		parts = append(parts, fmt.Sprintf("%s row %d (PO %s) scored %.1f", c.Row.Ref.Sheet, c.Row.Ref.Row, c.Row.PONumber, c.Score))
	}
	return "no ledger row matched; closest: " + strings.Join(parts, ", ")
}

// duplicateOutcome flags any matched row that already carries a
// settled invoice number. This is terminal; later checks are skipped.
func (m *Matcher) duplicateOutcome(invoice *models.InvoiceRecord, row *models.LedgerRow) *models.Outcome {
	if !row.IsSettled() {
		return nil
	}

	// Same number means the invoice was resubmitted; a different one
	// means the row was settled by another invoice.
	resubmitted := false
	want := normalizers.NormalizeInvoiceNumber(invoice.InvoiceNumber)
	if want != "" {
		for _, part := range normalizers.SplitMultiValue(row.SettledInvoiceNo) {
			if normalizers.NormalizeInvoiceNumber(part) == want {
				resubmitted = true
				break
			}
		}
	}

	message := fmt.Sprintf("%s row %d is already settled under invoice %s", row.Ref.Sheet, row.Ref.Row, row.SettledInvoiceNo)
	if resubmitted {
		message = fmt.Sprintf("invoice %s is already settled on %s row %d", invoice.InvoiceNumber, row.Ref.Sheet, row.Ref.Row)
	}

	return &models.Outcome{
		Check:    CheckDuplicateInvoice,
		Passed:   false,
		Severity: models.SeverityBlocking,
		Actual:   row.SettledInvoiceNo,
		Message:  message,
	}
}

// storeIdentityOutcome compares the invoice's store to the matched
// row's. Skipped when either side is missing.
func (m *Matcher) storeIdentityOutcome(invoice *models.InvoiceRecord, row *models.LedgerRow) *models.Outcome {
	invoiceStore := invoice.StoreName
	if invoiceStore == "" {
		invoiceStore = invoice.StoreNumber
	}
	if invoiceStore == "" || row.StoreName == "" {
		return nil
	}

	score := normalizers.Similarity(
		normalizers.NormalizeStoreName(invoiceStore),
		normalizers.NormalizeStoreName(row.StoreName),
	)

	outcome := &models.Outcome{
		Check:    CheckStoreIdentity,
		Expected: invoiceStore,
		Actual:   row.StoreName,
	}
	switch {
	case score >= m.thresholds.StoreInfo:
		outcome.Passed = true
		outcome.Severity = models.SeverityInformational
		outcome.Message = fmt.Sprintf("store identity confirmed (%.1f)", score)
	case score >= m.thresholds.StoreBlock:
		outcome.Passed = true
		outcome.Severity = models.SeverityAdvisory
		outcome.Message = fmt.Sprintf("store identity uncertain (%.1f)", score)
	default:
		outcome.Passed = false
		outcome.Severity = models.SeverityBlocking
		outcome.Message = fmt.Sprintf("invoice store %q does not resemble row store %q (%.1f)", invoiceStore, row.StoreName, score)
	}
	return outcome
}
