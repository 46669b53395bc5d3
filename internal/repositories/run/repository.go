// Package run persists reconciliation runs, their per-invoice results
// and human review decisions
package run

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"github.com/huandu/go-sqlbuilder"

	"github.com/samuelblakek/invoice-automation/internal/database"
	"github.com/samuelblakek/invoice-automation/pkg/models"
	"github.com/samuelblakek/invoice-automation/pkg/tracing"
)

// Repository handles run and result persistence
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new run repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// CreateRun records the start of a batch run
func (r *Repository) CreateRun(ctx context.Context, run *models.ReconciliationRun) (*models.ReconciliationRun, error) {
	ctx, span := tracing.StartSpan(ctx, "run.Repository.CreateRun")
	defer span.End()

	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	run.Status = models.RunStatusRunning
	run.StartedAt = time.Now().UTC()

	sb := sqlbuilder.PostgreSQL.NewInsertBuilder()
	sb.InsertInto("reconciliation_runs")
	sb.Cols("id", "status", "ledger_path", "dry_run", "total", "auto_updated", "needs_review", "failed", "started_at")
	sb.Values(run.ID, run.Status, run.LedgerPath, run.DryRun, run.Total, run.AutoUpdated, run.NeedsReview, run.Failed, run.StartedAt)

	query, args := sb.Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to create reconciliation run")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to create run")
	}

	return run, nil
}

// CompleteRun stores the final status and counters of a run
func (r *Repository) CompleteRun(ctx context.Context, run *models.ReconciliationRun) error {
	ctx, span := tracing.StartSpan(ctx, "run.Repository.CompleteRun")
	defer span.End()

	now := time.Now().UTC()
	run.CompletedAt = &now

	sb := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	sb.Update("reconciliation_runs")
	sb.Set(
		sb.Assign("status", run.Status),
		sb.Assign("total", run.Total),
		sb.Assign("auto_updated", run.AutoUpdated),
		sb.Assign("needs_review", run.NeedsReview),
		sb.Assign("failed", run.Failed),
		sb.Assign("completed_at", run.CompletedAt),
	)
	sb.Where(sb.Equal("id", run.ID))

	query, args := sb.Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"run_id": run.ID}).Error("Failed to complete reconciliation run")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to complete run")
	}
	return nil
}

// GetRun retrieves one run by ID
func (r *Repository) GetRun(ctx context.Context, id string) (*models.ReconciliationRun, error) {
	ctx, span := tracing.StartSpan(ctx, "run.Repository.GetRun")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("id", "status", "ledger_path", "dry_run", "total", "auto_updated", "needs_review", "failed", "started_at", "completed_at")
	sb.From("reconciliation_runs")
	sb.Where(sb.Equal("id", id))

	query, args := sb.Build()
	var run models.ReconciliationRun
	if err := r.db.GetContext(ctx, &run, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, httperror.NewHTTPError(http.StatusNotFound, fmt.Sprintf("run %s not found", id))
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to get reconciliation run")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get run")
	}
	return &run, nil
}

// ListRuns pages through run history, newest first
func (r *Repository) ListRuns(ctx context.Context, page, pageSize int) ([]models.ReconciliationRun, int, error) {
	ctx, span := tracing.StartSpan(ctx, "run.Repository.ListRuns")
	defer span.End()

	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	countSb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	countSb.Select("COUNT(*)")
	countSb.From("reconciliation_runs")
	query, args := countSb.Build()

	var total int
	if err := r.db.GetContext(ctx, &total, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to count reconciliation runs")
		return nil, 0, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list runs")
	}

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("id", "status", "ledger_path", "dry_run", "total", "auto_updated", "needs_review", "failed", "started_at", "completed_at")
	sb.From("reconciliation_runs")
	sb.OrderBy("started_at").Desc()
	sb.Limit(pageSize)
	sb.Offset((page - 1) * pageSize)

	query, args = sb.Build()
	runs := []models.ReconciliationRun{}
	if err := r.db.SelectContext(ctx, &runs, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list reconciliation runs")
		return nil, 0, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list runs")
	}
	return runs, total, nil
}

// CreateResult stores one per-invoice result
func (r *Repository) CreateResult(ctx context.Context, result *models.StoredResult) (*models.StoredResult, error) {
	ctx, span := tracing.StartSpan(ctx, "run.Repository.CreateResult")
	defer span.End()

	if result.ID == "" {
		result.ID = uuid.New().String()
	}
	if result.CreatedAt.IsZero() {
		result.CreatedAt = time.Now().UTC()
	}

	sb := sqlbuilder.PostgreSQL.NewInsertBuilder()
	sb.InsertInto("reconciliation_results")
	sb.Cols("id", "run_id", "invoice_number", "supplier", "disposition", "match_strategy", "match_score", "sheet", "row_index", "outcomes", "settled", "created_at")
	sb.Values(result.ID, result.RunID, result.InvoiceNumber, result.Supplier, result.Disposition, result.MatchStrategy, result.MatchScore, result.Sheet, result.RowIndex, result.Outcomes, result.Settled, result.CreatedAt)

	query, args := sb.Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"result_id": result.ID}).Error("Failed to create result")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to create result")
	}
	return result, nil
}

// GetResult retrieves one stored result by ID
func (r *Repository) GetResult(ctx context.Context, id string) (*models.StoredResult, error) {
	ctx, span := tracing.StartSpan(ctx, "run.Repository.GetResult")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("id", "run_id", "invoice_number", "supplier", "disposition", "match_strategy", "match_score", "sheet", "row_index", "outcomes", "settled", "created_at")
	sb.From("reconciliation_results")
	sb.Where(sb.Equal("id", id))

	query, args := sb.Build()
	var result models.StoredResult
	if err := r.db.GetContext(ctx, &result, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, httperror.NewHTTPError(http.StatusNotFound, fmt.Sprintf("result %s not found", id))
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to get result")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get result")
	}
	return &result, nil
}

// ListResults returns every result of a run in insertion order
func (r *Repository) ListResults(ctx context.Context, runID string) ([]models.StoredResult, error) {
	ctx, span := tracing.StartSpan(ctx, "run.Repository.ListResults")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("id", "run_id", "invoice_number", "supplier", "disposition", "match_strategy", "match_score", "sheet", "row_index", "outcomes", "settled", "created_at")
	sb.From("reconciliation_results")
	sb.Where(sb.Equal("run_id", runID))
	sb.OrderBy("created_at")

	query, args := sb.Build()
	results := []models.StoredResult{}
	if err := r.db.SelectContext(ctx, &results, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list results")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list results")
	}
	return results, nil
}

// MarkSettled flips the settled flag after a ledger write
func (r *Repository) MarkSettled(ctx context.Context, resultID string) error {
	ctx, span := tracing.StartSpan(ctx, "run.Repository.MarkSettled")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	sb.Update("reconciliation_results")
	sb.Set(sb.Assign("settled", true))
	sb.Where(sb.Equal("id", resultID))

	query, args := sb.Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"result_id": resultID}).Error("Failed to mark result settled")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to mark result settled")
	}
	return nil
}

// CreateReviewDecision records a human ruling on a result
func (r *Repository) CreateReviewDecision(ctx context.Context, decision *models.ReviewDecision) (*models.ReviewDecision, error) {
	ctx, span := tracing.StartSpan(ctx, "run.Repository.CreateReviewDecision")
	defer span.End()

	if decision.ID == "" {
		decision.ID = uuid.New().String()
	}
	decision.CreatedAt = time.Now().UTC()

	sb := sqlbuilder.PostgreSQL.NewInsertBuilder()
	sb.InsertInto("review_decisions")
	sb.Cols("id", "result_id", "decision", "decided_by", "note", "created_at")
	sb.Values(decision.ID, decision.ResultID, decision.Decision, decision.DecidedBy, decision.Note, decision.CreatedAt)

	query, args := sb.Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"result_id": decision.ResultID}).Error("Failed to create review decision")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to create review decision")
	}
	return decision, nil
}
