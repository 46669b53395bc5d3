package extract

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Gobusters/ectologger"

	"github.com/samuelblakek/invoice-automation/pkg/models"
)

// ErrExtractionIncomplete is returned when required fields are missing
var ErrExtractionIncomplete = errors.New("document is missing required invoice fields")

// Document is the text of one supplier document. OCR and PDF decoding
// happen upstream; this layer only sees text.
type Document struct {
	Text     string
	Filename string
}

// Extractor turns a document into a structured invoice record
type Extractor interface {
	Extract(ctx context.Context, doc Document) (*models.InvoiceRecord, error)
}

// Logical fields a pattern set can extract
const (
	FieldInvoiceNumber = "invoice_number"
	FieldNetAmount     = "net_amount"
	FieldTaxAmount     = "tax_amount"
	FieldTotalAmount   = "total_amount"
	FieldInvoiceDate   = "invoice_date"
	FieldPOReference   = "po_reference"
	FieldQuoteRef      = "quote_reference"
	FieldStoreName     = "store_name"
	FieldWorkType      = "work_type"
)

// PatternSet maps logical fields to ordered regex alternatives. Each
// pattern captures the field value in group 1; the first pattern that
// hits wins.
type PatternSet map[string][]string

// DefaultPatterns covers the layouts common across supplier documents
func DefaultPatterns() PatternSet {
	return PatternSet{
		FieldInvoiceNumber: {
			`(?i)invoice\s*(?:no|number|#)[:.\s]*([A-Za-z0-9][A-Za-z0-9/-]+)`,
			`(?i)\b(INV[-/]?\d{3,8})\b`,
		},
		FieldNetAmount: {
			`(?i)(?:net|sub\s*total)[^\d£$€-]*([£$€]?\s*-?[\d,]+(?:\.\d{1,2})?)`,
		},
		FieldTaxAmount: {
			`(?i)(?:vat|tax)(?:\s*@?\s*\d{1,2}(?:\.\d+)?%)?[^\d£$€-]*([£$€]?\s*-?[\d,]+(?:\.\d{1,2})?)`,
		},
		FieldTotalAmount: {
			`(?i)(?:total\s*due|amount\s*due|invoice\s*total|total)[^\d£$€-]*([£$€]?\s*-?[\d,]+(?:\.\d{1,2})?)`,
		},
		FieldInvoiceDate: {
			`(?i)(?:invoice\s*)?date[:.\s]*(\d{1,2}[/.\-]\d{1,2}[/.\-]\d{2,4})`,
			`(?i)date[:.\s]*(\d{1,2}(?:st|nd|rd|th)?\s+[A-Za-z]+\s+\d{4})`,
		},
		FieldPOReference: {
			`(?i)(?:purchase\s*order|po)\s*(?:no|number|ref|#)?[:.\s]*([A-Za-z]{2,4}[-\s]?\d{2,6})`,
		},
		FieldQuoteRef: {
			`(?i)quote\s*(?:ref(?:erence)?)?[:.\s]*([A-Za-z0-9-]{2,20})`,
		},
		FieldStoreName: {
			`(?i)(?:site|store|branch|location)[:.\s]*([^\n]+)`,
		},
		FieldWorkType: {
			`(?i)(?:work\s*type|job\s*type|description\s*of\s*works)[:.\s]*([^\n]+)`,
		},
	}
}

// GenericExtractor extracts invoices with per-supplier pattern sets,
// falling back to the default set field by field
type GenericExtractor struct {
	registry *SupplierRegistry
	patterns map[string]PatternSet
	defaults PatternSet
	cache    *PatternCache
	logger   ectologger.Logger
}

// NewGenericExtractor creates an extractor. supplierPatterns keys are
// supplier names as resolved by the registry; nil is allowed.
func NewGenericExtractor(registry *SupplierRegistry, supplierPatterns map[string]PatternSet, logger ectologger.Logger) *GenericExtractor {
	return &GenericExtractor{
		registry: registry,
		patterns: supplierPatterns,
		defaults: DefaultPatterns(),
		cache:    NewPatternCache(),
		logger:   logger,
	}
}

// Cache exposes the pattern cache for inspection
func (e *GenericExtractor) Cache() *PatternCache {
	return e.cache
}

// Extract implements Extractor. An invoice needs at least an invoice
// number and a net amount; anything else missing degrades gracefully.
func (e *GenericExtractor) Extract(ctx context.Context, doc Document) (*models.InvoiceRecord, error) {
	supplier, category := e.registry.Detect(doc.Text, doc.Filename)

	invoice := &models.InvoiceRecord{
		Supplier:   supplier,
		Category:   category,
		SourceFile: doc.Filename,
	}

	invoice.InvoiceNumber = strings.TrimSpace(e.field(supplier, FieldInvoiceNumber, doc.Text))
	invoice.POReference = strings.TrimSpace(e.field(supplier, FieldPOReference, doc.Text))
	invoice.QuoteReference = strings.TrimSpace(e.field(supplier, FieldQuoteRef, doc.Text))
	invoice.StoreName = strings.TrimSpace(e.field(supplier, FieldStoreName, doc.Text))
	invoice.WorkType = strings.TrimSpace(e.field(supplier, FieldWorkType, doc.Text))

	if raw := e.field(supplier, FieldNetAmount, doc.Text); raw != "" {
		if amount, err := ParseAmount(raw); err == nil {
			invoice.NetAmount = amount
		}
	}
	if raw := e.field(supplier, FieldTaxAmount, doc.Text); raw != "" {
		if amount, err := ParseAmount(raw); err == nil {
			invoice.TaxAmount = &amount
		}
	}
	if raw := e.field(supplier, FieldTotalAmount, doc.Text); raw != "" {
		if amount, err := ParseAmount(raw); err == nil {
			invoice.TotalAmount = &amount
		}
	}
	if raw := e.field(supplier, FieldInvoiceDate, doc.Text); raw != "" {
		if date, err := ParseDate(raw); err == nil {
			invoice.InvoiceDate = &date
		} else {
			e.logger.WithContext(ctx).Debugf("unparseable invoice date %q in %s", raw, doc.Filename)
		}
	}

	if invoice.InvoiceNumber == "" || invoice.NetAmount.IsZero() {
		return nil, fmt.Errorf("%w: %s", ErrExtractionIncomplete, missingFields(invoice))
	}
	return invoice, nil
}

// field tries the supplier's patterns for a logical field, then the
// defaults. Returns the first capture group of the first hit.
func (e *GenericExtractor) field(supplier, name, text string) string {
	if set, ok := e.patterns[supplier]; ok {
		if v := e.match(set[name], text); v != "" {
			return v
		}
	}
	return e.match(e.defaults[name], text)
}

func (e *GenericExtractor) match(patterns []string, text string) string {
	for _, pattern := range patterns {
		re, err := e.cache.Get(pattern)
		if err != nil {
			e.logger.WithError(err).Errorf("invalid extraction pattern %q", pattern)
			continue
		}
		if groups := re.FindStringSubmatch(text); len(groups) > 1 {
			return groups[1]
		}
	}
	return ""
}

func missingFields(invoice *models.InvoiceRecord) string {
	missing := make([]string, 0, 2)
	if invoice.InvoiceNumber == "" {
		missing = append(missing, FieldInvoiceNumber)
	}
	if invoice.NetAmount.IsZero() {
		missing = append(missing, FieldNetAmount)
	}
	return strings.Join(missing, ", ")
}
