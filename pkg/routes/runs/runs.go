// Package runs exposes run history and review decision endpoints
package runs

import (
	"context"
	"net/http"
	"strconv"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/samuelblakek/invoice-automation/pkg/models"
	"github.com/samuelblakek/invoice-automation/pkg/tracing"
)

var validate = validator.New()

// Store is the persistence surface the handlers read from
type Store interface {
	GetRun(ctx context.Context, id string) (*models.ReconciliationRun, error)
	ListRuns(ctx context.Context, page, pageSize int) ([]models.ReconciliationRun, int, error)
	ListResults(ctx context.Context, runID string) ([]models.StoredResult, error)
	GetResult(ctx context.Context, id string) (*models.StoredResult, error)
	CreateReviewDecision(ctx context.Context, decision *models.ReviewDecision) (*models.ReviewDecision, error)
}

// Handler handles run history requests
type Handler struct {
	store Store
}

// NewHandler creates a runs handler
func NewHandler(store Store) *Handler {
	return &Handler{store: store}
}

// RegisterRoutes registers run and result routes
func (h *Handler) RegisterRoutes(api *echo.Group) {
	runs := api.Group("/runs")
	runs.GET("", h.List)
	runs.GET("/:id", h.Get)
	runs.GET("/:id/results", h.ListResults)

	results := api.Group("/results")
	results.GET("/:id", h.GetResult)
	results.POST("/:id/review", h.Review)
}

// List returns run history, newest first
func (h *Handler) List(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "runs_handler.List")
	defer span.End()

	page, _ := strconv.Atoi(c.QueryParam("page"))
	pageSize, _ := strconv.Atoi(c.QueryParam("page_size"))
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}

	items, totalCount, err := h.store.ListRuns(ctx, page, pageSize)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, models.RunListResponse{
		Items:      items,
		TotalCount: totalCount,
		Page:       page,
		PageSize:   pageSize,
	})
}

// Get returns one run
func (h *Handler) Get(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "runs_handler.Get")
	defer span.End()

	run, err := h.store.GetRun(ctx, c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, run)
}

// ListResults returns every result of a run
func (h *Handler) ListResults(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "runs_handler.ListResults")
	defer span.End()

	results, err := h.store.ListResults(ctx, c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, results)
}

// GetResult returns one stored result
func (h *Handler) GetResult(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "runs_handler.GetResult")
	defer span.End()

	result, err := h.store.GetResult(ctx, c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, result)
}

// Review records an approve or reject ruling on a needs-review result
func (h *Handler) Review(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "runs_handler.Review")
	defer span.End()

	var req models.ReviewDecisionRequest
	if err := c.Bind(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := validate.Struct(req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	result, err := h.store.GetResult(ctx, c.Param("id"))
	if err != nil {
		return err
	}
	if result.Disposition != string(models.DispositionNeedsReview) {
		return httperror.NewHTTPErrorf(http.StatusConflict, "result is %s; only needs-review results take decisions", result.Disposition)
	}

	decision := &models.ReviewDecision{
		ResultID:  result.ID,
		Decision:  req.Decision,
		DecidedBy: req.DecidedBy,
		Note:      req.Note,
	}
	created, err := h.store.CreateReviewDecision(ctx, decision)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusCreated, created)
}
