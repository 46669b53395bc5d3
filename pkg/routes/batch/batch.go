// Package batch exposes the batch reconciliation endpoint
package batch

import (
	"errors"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/samuelblakek/invoice-automation/pkg/extract"
	"github.com/samuelblakek/invoice-automation/pkg/models"
	"github.com/samuelblakek/invoice-automation/pkg/processor"
	"github.com/samuelblakek/invoice-automation/pkg/tracing"
)

var validate = validator.New()

// Handler handles batch run requests
type Handler struct {
	processor *processor.Processor
}

// NewHandler creates a batch handler
func NewHandler(p *processor.Processor) *Handler {
	return &Handler{processor: p}
}

// RegisterRoutes registers the batch run route
func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/runs", h.Run)
}

// DocumentPayload is one invoice document in a batch request
type DocumentPayload struct {
	Filename string `json:"filename"`
	Text     string `json:"text" validate:"required"`
}

// RunRequest starts a batch run over raw invoice documents
type RunRequest struct {
	DryRun    bool              `json:"dry_run"`
	Documents []DocumentPayload `json:"documents" validate:"required,min=1,dive"`
}

// RunResponse is the batch run response
type RunResponse struct {
	Run     *models.ReconciliationRun      `json:"run"`
	Results []*models.ReconciliationResult `json:"results"`
}

// Run extracts, reconciles and settles a batch of invoice documents
func (h *Handler) Run(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "batch_handler.Run")
	defer span.End()

	var req RunRequest
	if err := c.Bind(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := validate.Struct(req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	docs := make([]extract.Document, 0, len(req.Documents))
	for _, d := range req.Documents {
		docs = append(docs, extract.Document{Filename: d.Filename, Text: d.Text})
	}

	result, err := h.processor.ProcessBatch(ctx, docs, processor.Options{DryRun: req.DryRun})
	if err != nil {
		if errors.Is(err, processor.ErrLedgerBusy) {
			return httperror.NewHTTPError(http.StatusConflict, "another run holds the ledger lock; retry shortly")
		}
		return err
	}

	return c.JSON(http.StatusOK, RunResponse{Run: result.Run, Results: result.Results})
}
