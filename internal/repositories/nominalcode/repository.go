// Package nominalcode maps suppliers and work types to nominal ledger codes
package nominalcode

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

// Repository handles nominal code mapping persistence
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new nominal code repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// Upsert creates or replaces the mapping for a supplier and work type
func (r *Repository) Upsert(ctx context.Context, mapping *models.NominalCodeMapping) (*models.NominalCodeMapping, error) {
	ctx, span := tracing.StartSpan(ctx, "nominalcode.Repository.Upsert")
	defer span.End()

	if mapping.ID == "" {
		mapping.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	mapping.CreatedAt = now
	mapping.UpdatedAt = now

	sb := sqlbuilder.PostgreSQL.NewInsertBuilder()
	sb.InsertInto("nominal_code_mappings")
	sb.Cols("id", "supplier", "work_type", "code", "created_at", "updated_at")
	sb.Values(mapping.ID, mapping.Supplier, mapping.WorkType, mapping.Code, mapping.CreatedAt, mapping.UpdatedAt)
	sb.SQL("ON CONFLICT (supplier, work_type) DO UPDATE SET code = EXCLUDED.code, updated_at = EXCLUDED.updated_at")

	query, args := sb.Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"supplier": mapping.Supplier}).Error("Failed to upsert nominal code mapping")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to upsert nominal code mapping")
	}
	return mapping, nil
}

// Resolve finds the nominal code for a supplier, preferring an exact
// work type match over the supplier-wide default. A miss is not an
// error; settlement proceeds without a cost code.
func (r *Repository) Resolve(ctx context.Context, supplier, workType string) (string, error) {
	ctx, span := tracing.StartSpan(ctx, "nominalcode.Repository.Resolve")
	defer span.End()

	if workType != "" {
		code, err := r.lookup(ctx, supplier, &workType)
		if err != nil {
			return "", err
		}
		if code != "" {
			return code, nil
		}
	}
	return r.lookup(ctx, supplier, nil)
}

func (r *Repository) lookup(ctx context.Context, supplier string, workType *string) (string, error) {
	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("code")
	sb.From("nominal_code_mappings")
	sb.Where(sb.Equal("supplier", supplier))
	if workType != nil {
		sb.Where(sb.Equal("work_type", *workType))
	} else {
		sb.Where(sb.IsNull("work_type"))
	}

	query, args := sb.Build()
	var code string
	if err := r.db.GetContext(ctx, &code, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to resolve nominal code")
		return "", httperror.NewHTTPError(http.StatusInternalServerError, "failed to resolve nominal code")
	}
	return code, nil
}

// List returns every mapping ordered by supplier
func (r *Repository) List(ctx context.Context) ([]models.NominalCodeMapping, error) {
	ctx, span := tracing.StartSpan(ctx, "nominalcode.Repository.List")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("id", "supplier", "work_type", "code", "created_at", "updated_at")
	sb.From("nominal_code_mappings")
	sb.OrderBy("supplier", "work_type")

	query, args := sb.Build()
	mappings := []models.NominalCodeMapping{}
	if err := r.db.SelectContext(ctx, &mappings, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list nominal code mappings")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list nominal code mappings")
	}
	return mappings, nil
}

// Delete removes one mapping by ID
func (r *Repository) Delete(ctx context.Context, id string) error {
	ctx, span := tracing.StartSpan(ctx, "nominalcode.Repository.Delete")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewDeleteBuilder()
	sb.DeleteFrom("nominal_code_mappings")
	sb.Where(sb.Equal("id", id))

	query, args := sb.Build()
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to delete nominal code mapping")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to delete nominal code mapping")
	}
	if rows, err := result.RowsAffected(); err == nil && rows == 0 {
		return httperror.NewHTTPError(http.StatusNotFound, fmt.Sprintf("nominal code mapping %s not found", id))
	}
	return nil
}
