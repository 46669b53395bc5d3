// Package nominalcode exposes the cost code mapping endpoints
package nominalcode

import (
	"context"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/samuelblakek/invoice-automation/pkg/models"
	"github.com/samuelblakek/invoice-automation/pkg/tracing"
)

var validate = validator.New()

// Store is the persistence surface for nominal code mappings
type Store interface {
	Upsert(ctx context.Context, mapping *models.NominalCodeMapping) (*models.NominalCodeMapping, error)
	List(ctx context.Context) ([]models.NominalCodeMapping, error)
	Delete(ctx context.Context, id string) error
}

// Handler handles nominal code mapping requests
type Handler struct {
	store Store
}

// NewHandler creates a nominal code handler
func NewHandler(store Store) *Handler {
	return &Handler{store: store}
}

// RegisterRoutes registers nominal code routes
func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.GET("", h.List)
	g.PUT("", h.Upsert)
	g.DELETE("/:id", h.Delete)
}

// List returns every mapping
func (h *Handler) List(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "nominalcode_handler.List")
	defer span.End()

	mappings, err := h.store.List(ctx)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, mappings)
}

// Upsert creates or replaces the mapping for a supplier and work type
func (h *Handler) Upsert(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "nominalcode_handler.Upsert")
	defer span.End()

	var req models.CreateNominalCodeRequest
	if err := c.Bind(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := validate.Struct(req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	mapping := &models.NominalCodeMapping{
		Supplier: req.Supplier,
		WorkType: req.WorkType,
		Code:     req.Code,
	}
	created, err := h.store.Upsert(ctx, mapping)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, created)
}

// Delete removes one mapping
func (h *Handler) Delete(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "nominalcode_handler.Delete")
	defer span.End()

	if err := h.store.Delete(ctx, c.Param("id")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
