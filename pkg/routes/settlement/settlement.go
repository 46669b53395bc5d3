// Package settlement exposes the explicit settle endpoint. Auto-update
// results settle directly; needs-review results settle only with an
// explicit confirmation, which is recorded as a review decision.
package settlement

import (
	"context"
	"errors"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/samuelblakek/invoice-automation/pkg/engine"
	"github.com/samuelblakek/invoice-automation/pkg/ledger"
	"github.com/samuelblakek/invoice-automation/pkg/models"
	"github.com/samuelblakek/invoice-automation/pkg/tracing"
)

var validate = validator.New()

// Store persists the settle outcome. Optional.
type Store interface {
	MarkSettled(ctx context.Context, resultID string) error
	CreateReviewDecision(ctx context.Context, decision *models.ReviewDecision) (*models.ReviewDecision, error)
}

// Handler handles settlement requests
type Handler struct {
	engine *engine.Engine
	cache  *engine.ResultCache
	store  Store
	logger ectologger.Logger
}

// NewHandler creates a settlement handler
func NewHandler(eng *engine.Engine, cache *engine.ResultCache, store Store, logger ectologger.Logger) *Handler {
	return &Handler{
		engine: eng,
		cache:  cache,
		store:  store,
		logger: logger,
	}
}

// RegisterRoutes registers settlement routes
func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.POST("", h.Settle)
}

// SettleResponse is the settle endpoint response
type SettleResponse struct {
	ResultID   string            `json:"result_id"`
	Settlement ledger.Settlement `json:"settlement"`
	Row        models.RowRef     `json:"row"`
}

// Settle writes one reconciled invoice back to the ledger
func (h *Handler) Settle(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "settlement_handler.Settle")
	defer span.End()

	var req models.SettlementRequest
	if err := c.Bind(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := validate.Struct(req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	result := h.cache.Get(req.ResultID)
	if result == nil {
		return httperror.NewHTTPError(http.StatusNotFound, "result not found; reconcile the invoice again")
	}

	settlement, err := h.engine.Settle(ctx, result, req.Confirmed)
	if err != nil {
		switch {
		case errors.Is(err, engine.ErrConfirmationRequired):
			return httperror.NewHTTPError(http.StatusConflict, "result needs review; set confirmed to settle")
		case errors.Is(err, engine.ErrSettlementBlocked):
			return httperror.NewHTTPError(http.StatusConflict, "failed results cannot be settled")
		case errors.Is(err, engine.ErrNoMatchedRow):
			return httperror.NewHTTPError(http.StatusConflict, "result has no matched ledger row")
		case errors.Is(err, ledger.ErrRowConflict):
			return httperror.NewHTTPError(http.StatusConflict, "ledger row was settled by another invoice")
		}
		return err
	}

	if h.store != nil {
		// An approval is only recorded once the ledger write went through
		if result.Disposition == models.DispositionNeedsReview && req.Confirmed {
			decision := &models.ReviewDecision{
				ResultID:  req.ResultID,
				Decision:  models.ReviewDecisionApproved,
				DecidedBy: req.DecidedBy,
			}
			if _, err := h.store.CreateReviewDecision(ctx, decision); err != nil {
				h.logger.WithContext(ctx).WithError(err).Warn("Failed to record review decision")
			}
		}
		if err := h.store.MarkSettled(ctx, req.ResultID); err != nil {
			h.logger.WithContext(ctx).WithError(err).Warn("Failed to mark result settled")
		}
	}

	return c.JSON(http.StatusOK, SettleResponse{
		ResultID:   req.ResultID,
		Settlement: settlement,
		Row:        result.Match.Row.Ref,
	})
}
