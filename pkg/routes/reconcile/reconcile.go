// Package reconcile exposes the single-invoice reconcile endpoint
package reconcile

import (
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/samuelblakek/invoice-automation/pkg/engine"
	"github.com/samuelblakek/invoice-automation/pkg/extract"
	"github.com/samuelblakek/invoice-automation/pkg/models"
	"github.com/samuelblakek/invoice-automation/pkg/tracing"
)

var validate = validator.New()

// Handler handles reconcile requests
type Handler struct {
	engine *engine.Engine
	cache  *engine.ResultCache
}

// NewHandler creates a reconcile handler
func NewHandler(eng *engine.Engine, cache *engine.ResultCache) *Handler {
	return &Handler{
		engine: eng,
		cache:  cache,
	}
}

// RegisterRoutes registers reconcile routes
func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.POST("", h.Reconcile)
}

// Reconcile matches and validates one invoice without touching the ledger
func (h *Handler) Reconcile(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "reconcile_handler.Reconcile")
	defer span.End()

	var req models.ReconcileRequest
	if err := c.Bind(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := validate.Struct(req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	invoice, err := toInvoiceRecord(&req)
	if err != nil {
		return err
	}

	result := h.engine.Reconcile(ctx, invoice)
	h.cache.Put(result)

	return c.JSON(http.StatusOK, result)
}

// toInvoiceRecord parses the string amounts and date of an API payload
func toInvoiceRecord(req *models.ReconcileRequest) (*models.InvoiceRecord, error) {
	net, err := extract.ParseAmount(req.NetAmount)
	if err != nil {
		return nil, httperror.NewHTTPErrorf(http.StatusBadRequest, "invalid net_amount %q", req.NetAmount)
	}

	invoice := &models.InvoiceRecord{
		InvoiceNumber:  req.InvoiceNumber,
		Supplier:       req.Supplier,
		Category:       models.SupplierCategory(req.Category),
		StoreName:      req.StoreName,
		StoreNumber:    req.StoreNumber,
		NetAmount:      net,
		POReference:    req.POReference,
		QuoteReference: req.QuoteReference,
		AuthorizedBy:   req.AuthorizedBy,
		WorkType:       req.WorkType,
	}

	if req.TaxAmount != nil {
		tax, err := extract.ParseAmount(*req.TaxAmount)
		if err != nil {
			return nil, httperror.NewHTTPErrorf(http.StatusBadRequest, "invalid tax_amount %q", *req.TaxAmount)
		}
		invoice.TaxAmount = &tax
	}
	if req.TotalAmount != nil {
		total, err := extract.ParseAmount(*req.TotalAmount)
		if err != nil {
			return nil, httperror.NewHTTPErrorf(http.StatusBadRequest, "invalid total_amount %q", *req.TotalAmount)
		}
		invoice.TotalAmount = &total
	}
	if req.InvoiceDate != nil {
		date, err := extract.ParseDate(*req.InvoiceDate)
		if err != nil {
			return nil, httperror.NewHTTPErrorf(http.StatusBadRequest, "invalid invoice_date %q", *req.InvoiceDate)
		}
		invoice.InvoiceDate = &date
	}

	return invoice, nil
}
