// Package processor runs the batch reconciliation pipeline: extract
// each document, reconcile it against the ledger and settle the clean
// matches. One bad document never stops the batch.
package processor

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"

	"github.com/samuelblakek/invoice-automation/pkg/engine"
	"github.com/samuelblakek/invoice-automation/pkg/extract"
	"github.com/samuelblakek/invoice-automation/pkg/metrics"
	"github.com/samuelblakek/invoice-automation/pkg/models"
	"github.com/samuelblakek/invoice-automation/pkg/redis"
	"github.com/samuelblakek/invoice-automation/pkg/tracing"
)

// ErrLedgerBusy is returned when another run holds the ledger lock
var ErrLedgerBusy = errors.New("ledger is locked by another run")

// RunStore persists runs and their results. Optional; a nil store
// keeps the pipeline in-memory only.
type RunStore interface {
	CreateRun(ctx context.Context, run *models.ReconciliationRun) (*models.ReconciliationRun, error)
	CompleteRun(ctx context.Context, run *models.ReconciliationRun) error
	CreateResult(ctx context.Context, result *models.StoredResult) (*models.StoredResult, error)
}

// Options controls one batch run
type Options struct {
	// DryRun reconciles without writing settlements to the ledger
	DryRun bool
	// LockTTL bounds how long the ledger lock is held
	LockTTL time.Duration
	// LockTimeout bounds how long to wait for the ledger lock
	LockTimeout time.Duration
}

// Result is the outcome of one batch run
type Result struct {
	Run     *models.ReconciliationRun
	Results []*models.ReconciliationResult
}

// Processor drives extract, reconcile and settle for a batch of documents
type Processor struct {
	extractor  extract.Extractor
	engine     *engine.Engine
	store      RunStore
	locker     *redis.Locker
	ledgerPath string
	logger     ectologger.Logger
}

// New creates a Processor. store and locker are optional.
func New(extractor extract.Extractor, eng *engine.Engine, store RunStore, locker *redis.Locker, ledgerPath string, logger ectologger.Logger) *Processor {
	return &Processor{
		extractor:  extractor,
		engine:     eng,
		store:      store,
		locker:     locker,
		ledgerPath: ledgerPath,
		logger:     logger,
	}
}

// ProcessBatch reconciles a batch of documents against the ledger.
// The ledger lock is held for the whole batch so concurrent runs
// cannot interleave settlement writes.
func (p *Processor) ProcessBatch(ctx context.Context, docs []extract.Document, opts Options) (*Result, error) {
	ctx, span := tracing.StartSpan(ctx, "processor.Processor.ProcessBatch")
	defer span.End()

	if opts.LockTTL == 0 {
		opts.LockTTL = time.Minute
	}
	if opts.LockTimeout == 0 {
		opts.LockTimeout = 10 * time.Second
	}

	run := &models.ReconciliationRun{
		Status:     models.RunStatusRunning,
		LedgerPath: p.ledgerPath,
		DryRun:     opts.DryRun,
		StartedAt:  time.Now().UTC(),
	}
	if p.store != nil {
		created, err := p.store.CreateRun(ctx, run)
		if err != nil {
			return nil, err
		}
		run = created
	}

	if p.locker != nil && !opts.DryRun {
		lock, err := p.locker.TryAcquire(ctx, p.ledgerPath, opts.LockTTL, opts.LockTimeout)
		if err != nil {
			p.failRun(ctx, run)
			if errors.Is(err, redis.ErrLockNotAcquired) {
				return nil, ErrLedgerBusy
			}
			return nil, err
		}
		defer func() {
			if err := lock.Release(context.WithoutCancel(ctx)); err != nil {
				p.logger.WithContext(ctx).WithError(err).Warn("Failed to release ledger lock")
			}
		}()
	}

	results := make([]*models.ReconciliationResult, 0, len(docs))
	for _, doc := range docs {
		result := p.processDocument(ctx, doc, run.ID, opts.DryRun)
		results = append(results, result)

		run.Total++
		switch result.Disposition {
		case models.DispositionAutoUpdate:
			run.AutoUpdated++
		case models.DispositionNeedsReview:
			run.NeedsReview++
		default:
			run.Failed++
		}
	}

	run.Status = models.RunStatusCompleted
	if p.store != nil {
		if err := p.store.CompleteRun(ctx, run); err != nil {
			p.logger.WithContext(ctx).WithError(err).Error("Failed to complete run")
		}
	}
	metrics.RunsTotal.WithLabelValues(string(run.Status)).Inc()

	p.logger.WithContext(ctx).WithFields(map[string]any{
		"run_id":       run.ID,
		"total":        run.Total,
		"auto_updated": run.AutoUpdated,
		"needs_review": run.NeedsReview,
		"failed":       run.Failed,
		"dry_run":      run.DryRun,
	}).Info("Batch run completed")

	return &Result{Run: run, Results: results}, nil
}

// failRun marks a run failed before any document was processed
func (p *Processor) failRun(ctx context.Context, run *models.ReconciliationRun) {
	run.Status = models.RunStatusFailed
	if p.store != nil {
		if err := p.store.CompleteRun(ctx, run); err != nil {
			p.logger.WithContext(ctx).WithError(err).Error("Failed to mark run failed")
		}
	}
	metrics.RunsTotal.WithLabelValues(string(run.Status)).Inc()
}

// processDocument handles one document end to end. Extraction and
// settlement errors become failed results rather than batch errors.
func (p *Processor) processDocument(ctx context.Context, doc extract.Document, runID string, dryRun bool) *models.ReconciliationResult {
	invoice, err := p.extractor.Extract(ctx, doc)
	if err != nil {
		p.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"file": doc.Filename}).Warn("Extraction failed")
		result := &models.ReconciliationResult{
			ID:          uuid.New().String(),
			Invoice:     models.InvoiceRecord{SourceFile: doc.Filename},
			Disposition: models.DispositionFailed,
			Error:       err.Error(),
			CreatedAt:   time.Now().UTC(),
		}
		p.storeResult(ctx, runID, result, false)
		return result
	}

	result := p.engine.Reconcile(ctx, invoice)

	settled := false
	if result.Disposition == models.DispositionAutoUpdate && !dryRun {
		if _, err := p.engine.Settle(ctx, result, false); err != nil {
			p.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
				"invoice_no": invoice.InvoiceNumber,
			}).Error("Settlement failed")
			result.Error = err.Error()
			result.Disposition = models.DispositionFailed
		} else {
			settled = true
		}
	}

	p.storeResult(ctx, runID, result, settled)
	return result
}

// storeResult persists a result when a store is configured
func (p *Processor) storeResult(ctx context.Context, runID string, result *models.ReconciliationResult, settled bool) {
	if p.store == nil {
		return
	}

	outcomes, err := json.Marshal(result.Outcomes)
	if err != nil {
		outcomes = []byte("[]")
	}

	stored := &models.StoredResult{
		ID:            result.ID,
		RunID:         runID,
		InvoiceNumber: result.Invoice.InvoiceNumber,
		Supplier:      result.Invoice.Supplier,
		Disposition:   string(result.Disposition),
		MatchStrategy: string(models.MatchStrategyNone),
		Outcomes:      outcomes,
		Settled:       settled,
		CreatedAt:     result.CreatedAt,
	}
	if result.Match != nil {
		stored.MatchStrategy = string(result.Match.Strategy)
		stored.MatchScore = result.Match.Score
		if result.Match.Matched() {
			sheet := result.Match.Row.Ref.Sheet
			row := result.Match.Row.Ref.Row
			stored.Sheet = &sheet
			stored.RowIndex = &row
		}
	}

	if _, err := p.store.CreateResult(ctx, stored); err != nil {
		p.logger.WithContext(ctx).WithError(err).Error("Failed to store result")
	}
}
