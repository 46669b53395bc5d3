// Package engine ties the matcher and the policy validators into a
// single reconcile pass and gates settlement writes on its verdict
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"

	"github.com/samuelblakek/invoice-automation/pkg/ledger"
	"github.com/samuelblakek/invoice-automation/pkg/matching"
	"github.com/samuelblakek/invoice-automation/pkg/metrics"
	"github.com/samuelblakek/invoice-automation/pkg/models"
	"github.com/samuelblakek/invoice-automation/pkg/validation"
)

var (
	// ErrNoMatchedRow is returned when settling a result without a ledger row
	ErrNoMatchedRow = errors.New("result has no matched ledger row")
	// ErrSettlementBlocked is returned when settling a failed result
	ErrSettlementBlocked = errors.New("failed results cannot be settled")
	// ErrConfirmationRequired is returned when a needs-review result is settled without approval
	ErrConfirmationRequired = errors.New("needs-review results require explicit confirmation")
)

// Matcher resolves an invoice to a ledger row
type Matcher interface {
	Match(ctx context.Context, invoice *models.InvoiceRecord) (*models.MatchResult, error)
}

// Settler writes settlements back to the ledger
type Settler interface {
	ApplySettlement(ctx context.Context, ref models.RowRef, s ledger.Settlement) error
}

// NominalCodes resolves the cost code written on settlement.
// An unmapped supplier resolves to the empty string.
type NominalCodes interface {
	Resolve(ctx context.Context, supplier, workType string) (string, error)
}

// Emitter publishes reconciliation lifecycle events
type Emitter interface {
	InvoiceReconciled(ctx context.Context, result *models.ReconciliationResult)
	SettlementApplied(ctx context.Context, result *models.ReconciliationResult, s ledger.Settlement)
}

// Dependencies wires an Engine. NominalCodes and Emitter are optional.
type Dependencies struct {
	Matcher      Matcher
	Validators   []validation.Validator
	Settler      Settler
	NominalCodes NominalCodes
	Emitter      Emitter
	Logger       ectologger.Logger
}

// Engine runs the reconcile pass. Reconcile never mutates the ledger;
// Settle is the only write path and is gated on the disposition.
type Engine struct {
	matcher      Matcher
	validators   []validation.Validator
	settler      Settler
	nominalCodes NominalCodes
	emitter      Emitter
	logger       ectologger.Logger
}

// New creates an Engine
func New(deps Dependencies) *Engine {
	return &Engine{
		matcher:      deps.Matcher,
		validators:   deps.Validators,
		settler:      deps.Settler,
		nominalCodes: deps.NominalCodes,
		emitter:      deps.Emitter,
		logger:       deps.Logger,
	}
}

// Reconcile matches and validates one invoice. It always returns a
// result; matcher errors and panics become a failed result so one bad
// invoice never takes down a batch.
func (e *Engine) Reconcile(ctx context.Context, invoice *models.InvoiceRecord) (result *models.ReconciliationResult) {
	started := time.Now()
	result = &models.ReconciliationResult{
		ID:        uuid.New().String(),
		Invoice:   *invoice,
		CreatedAt: started,
	}

	defer func() {
		if r := recover(); r != nil {
			e.logger.WithContext(ctx).Errorf("reconcile panic for invoice %s: %v", invoice.InvoiceNumber, r)
			result.Error = fmt.Sprintf("reconcile panic: %v", r)
			result.Disposition = models.DispositionFailed
		}
		strategy := string(models.MatchStrategyNone)
		if result.Match != nil {
			strategy = string(result.Match.Strategy)
		}
		metrics.RecordReconciliation(string(result.Disposition), strategy, time.Since(started).Seconds())
		if e.emitter != nil {
			e.emitter.InvoiceReconciled(ctx, result)
		}
	}()

	match, err := e.matcher.Match(ctx, invoice)
	if err != nil {
		e.logger.WithContext(ctx).WithError(err).Errorf("match failed for invoice %s", invoice.InvoiceNumber)
		result.Error = err.Error()
		result.Disposition = models.DispositionFailed
		return result
	}

	result.Match = match
	result.Outcomes = append(result.Outcomes, match.Outcomes...)

	// Validators only run against a matched, unsettled row; an
	// unmatched or duplicate invoice already failed.
	if match.Matched() && !isDuplicate(match.Outcomes) {
		for _, v := range e.validators {
			result.Outcomes = append(result.Outcomes, v.Validate(ctx, invoice, match.Row)...)
		}
	}

	result.Disposition = Derive(result.Match, result.Outcomes)

	e.logger.WithContext(ctx).WithFields(map[string]interface{}{
		"invoice_no":  invoice.InvoiceNumber,
		"disposition": string(result.Disposition),
		"outcomes":    len(result.Outcomes),
	}).Info("invoice reconciled")

	return result
}

// Derive computes the disposition purely from the match and the
// ordered outcome list: any blocking failure fails the invoice, any
// advisory failure or missing match sends it to review, everything
// else auto-updates.
func Derive(match *models.MatchResult, outcomes []models.Outcome) models.Disposition {
	for _, o := range outcomes {
		if o.IsBlockingFailure() {
			return models.DispositionFailed
		}
	}
	if !match.Matched() {
		return models.DispositionFailed
	}
	for _, o := range outcomes {
		if o.IsAdvisoryFailure() {
			return models.DispositionNeedsReview
		}
	}
	return models.DispositionAutoUpdate
}

// isDuplicate reports whether the match already settled this invoice.
// Policy validators are skipped in that case.
func isDuplicate(outcomes []models.Outcome) bool {
	for _, o := range outcomes {
		if o.Check == matching.CheckDuplicateInvoice && !o.Passed {
			return true
		}
	}
	return false
}

// Settle writes a reconciled invoice back to the ledger. Auto-update
// results settle directly; needs-review results require confirmed;
// failed results never settle.
func (e *Engine) Settle(ctx context.Context, result *models.ReconciliationResult, confirmed bool) (ledger.Settlement, error) {
	if !result.Match.Matched() {
		return ledger.Settlement{}, ErrNoMatchedRow
	}
	switch result.Disposition {
	case models.DispositionFailed:
		return ledger.Settlement{}, ErrSettlementBlocked
	case models.DispositionNeedsReview:
		if !confirmed {
			return ledger.Settlement{}, ErrConfirmationRequired
		}
	}

	invoice := &result.Invoice
	settlement := ledger.Settlement{
		InvoiceNo: invoice.InvoiceNumber,
		Amount:    invoice.NetAmount,
		Date:      time.Now().UTC(),
	}
	if invoice.InvoiceDate != nil {
		settlement.Date = *invoice.InvoiceDate
	}

	if e.nominalCodes != nil {
		code, err := e.nominalCodes.Resolve(ctx, invoice.Supplier, invoice.WorkType)
		if err != nil {
			e.logger.WithContext(ctx).WithError(err).Warnf("nominal code lookup failed for supplier %q", invoice.Supplier)
		} else {
			settlement.CostCode = code
		}
	}

	if err := e.settler.ApplySettlement(ctx, result.Match.Row.Ref, settlement); err != nil {
		metrics.RecordSettlement("error")
		return ledger.Settlement{}, fmt.Errorf("apply settlement for invoice %s: %w", invoice.InvoiceNumber, err)
	}
	metrics.RecordSettlement("written")

	if e.emitter != nil {
		e.emitter.SettlementApplied(ctx, result, settlement)
	}
	return settlement, nil
}
