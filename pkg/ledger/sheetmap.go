package ledger

import (
	"fmt"

	"github.com/samuelblakek/invoice-automation/pkg/models"
)

// SheetMap routes supplier categories to workbook sheet names.
// The mapping is fixed configuration; an unmapped category is a
// configuration error, not a lookup miss.
type SheetMap map[models.SupplierCategory]string

// DefaultSheetMap returns the standard category routing
func DefaultSheetMap() SheetMap {
	return SheetMap{
		models.SupplierCategoryMaintenance: "MAINTENANCE",
		models.SupplierCategoryCleaning:    "CLEANING",
		models.SupplierCategorySecurity:    "SECURITY",
		models.SupplierCategoryUtilities:   "UTILITIES",
		models.SupplierCategoryGeneric:     "GENERAL",
	}
}

// SheetFor resolves the sheet name for a category
func (m SheetMap) SheetFor(category models.SupplierCategory) (string, error) {
	sheet, ok := m[category]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownCategory, category)
	}
	return sheet, nil
}
