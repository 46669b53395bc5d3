// Package extract turns supplier document text into structured
// invoice records
package extract

import (
	"strings"

	"github.com/samuelblakek/invoice-automation/pkg/models"
)

// SupplierRule identifies one supplier by markers in the document
// text or the source filename
type SupplierRule struct {
	Supplier    string
	Category    models.SupplierCategory
	TextMarkers []string
	FileMarkers []string
}

// SupplierRegistry resolves documents to suppliers. Rules are checked
// in registration order; the first hit wins and everything else falls
// through to the generic supplier.
type SupplierRegistry struct {
	rules []SupplierRule
}

// NewSupplierRegistry creates a registry with the given rules
func NewSupplierRegistry(rules []SupplierRule) *SupplierRegistry {
	return &SupplierRegistry{rules: rules}
}

// DefaultSupplierRules returns the built-in supplier set
func DefaultSupplierRules() []SupplierRule {
	return []SupplierRule{
		{
			Supplier:    "Cornerstone Maintenance",
			Category:    models.SupplierCategoryMaintenance,
			TextMarkers: []string{"cornerstone maintenance", "cornerstone property services"},
			FileMarkers: []string{"cornerstone", "cjl"},
		},
		{
			Supplier:    "Brightway Cleaning",
			Category:    models.SupplierCategoryCleaning,
			TextMarkers: []string{"brightway cleaning"},
			FileMarkers: []string{"brightway"},
		},
		{
			Supplier:    "Sentinel Security Group",
			Category:    models.SupplierCategorySecurity,
			TextMarkers: []string{"sentinel security"},
			FileMarkers: []string{"sentinel"},
		},
	}
}

// Register appends a rule to the registry
func (r *SupplierRegistry) Register(rule SupplierRule) {
	r.rules = append(r.rules, rule)
}

// Detect resolves the supplier for a document. Text markers are
// checked before filename markers; unmatched documents resolve to the
// generic supplier rather than failing.
func (r *SupplierRegistry) Detect(text, filename string) (string, models.SupplierCategory) {
	lowerText := strings.ToLower(text)
	lowerFile := strings.ToLower(filename)

	for _, rule := range r.rules {
		for _, marker := range rule.TextMarkers {
			if strings.Contains(lowerText, marker) {
				return rule.Supplier, rule.Category
			}
		}
	}
	for _, rule := range r.rules {
		for _, marker := range rule.FileMarkers {
			if marker != "" && strings.Contains(lowerFile, marker) {
				return rule.Supplier, rule.Category
			}
		}
	}
	return "", models.SupplierCategoryGeneric
}
