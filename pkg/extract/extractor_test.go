package extract

import (
	"context"
	"testing"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samuelblakek/invoice-automation/pkg/models"
)

const sampleInvoiceText = `CORNERSTONE MAINTENANCE LTD
Invoice No: INV-500
Date: 12/06/2025
PO Number: CJL316
Store: 0042 - High Street
Quote Ref: Q-1043
Description of works: Roof repair

Net: £375.00
VAT @ 20%: £75.00
Total Due: £450.00
`

func newTestExtractor() *GenericExtractor {
	return NewGenericExtractor(
		NewSupplierRegistry(DefaultSupplierRules()),
		nil,
		ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {}),
	)
}

func TestGenericExtractor(t *testing.T) {
	ctx := context.Background()

	t.Run("should extract a complete invoice", func(t *testing.T) {
		invoice, err := newTestExtractor().Extract(ctx, Document{Text: sampleInvoiceText, Filename: "cornerstone_inv500.pdf"})
		require.NoError(t, err)

		assert.Equal(t, "INV-500", invoice.InvoiceNumber)
		assert.Equal(t, "Cornerstone Maintenance", invoice.Supplier)
		assert.Equal(t, models.SupplierCategoryMaintenance, invoice.Category)
		assert.Equal(t, "CJL316", invoice.POReference)
		assert.Equal(t, "Q-1043", invoice.QuoteReference)
		assert.Equal(t, "0042 - High Street", invoice.StoreName)
		assert.True(t, invoice.NetAmount.Equal(decimal.NewFromFloat(375.00)))
		require.NotNil(t, invoice.TaxAmount)
		assert.True(t, invoice.TaxAmount.Equal(decimal.NewFromFloat(75.00)))
		require.NotNil(t, invoice.TotalAmount)
		assert.True(t, invoice.TotalAmount.Equal(decimal.NewFromFloat(450.00)))
		require.NotNil(t, invoice.InvoiceDate)
		assert.Equal(t, time.Date(2025, 6, 12, 0, 0, 0, 0, time.UTC), *invoice.InvoiceDate)
	})

	t.Run("should fall back to the generic supplier", func(t *testing.T) {
		text := "Invoice No: AB-77\nNet: £50.00\n"
		invoice, err := newTestExtractor().Extract(ctx, Document{Text: text, Filename: "unknown.pdf"})
		require.NoError(t, err)
		assert.Equal(t, "", invoice.Supplier)
		assert.Equal(t, models.SupplierCategoryGeneric, invoice.Category)
	})

	t.Run("should detect the supplier from the filename when text has no marker", func(t *testing.T) {
		text := "Invoice No: AB-77\nNet: £50.00\n"
		invoice, err := newTestExtractor().Extract(ctx, Document{Text: text, Filename: "brightway_march.pdf"})
		require.NoError(t, err)
		assert.Equal(t, "Brightway Cleaning", invoice.Supplier)
		assert.Equal(t, models.SupplierCategoryCleaning, invoice.Category)
	})

	t.Run("should error naming the missing required fields", func(t *testing.T) {
		_, err := newTestExtractor().Extract(ctx, Document{Text: "nothing useful", Filename: "x.pdf"})
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrExtractionIncomplete)
		assert.Contains(t, err.Error(), FieldInvoiceNumber)
	})

	t.Run("should prefer supplier patterns over defaults", func(t *testing.T) {
		patterns := map[string]PatternSet{
			"Cornerstone Maintenance": {
				FieldInvoiceNumber: {`(?i)ref\s*code[:.\s]*([A-Z0-9-]+)`},
			},
		}
		extractor := NewGenericExtractor(
			NewSupplierRegistry(DefaultSupplierRules()),
			patterns,
			ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {}),
		)

		text := "Cornerstone Maintenance\nRef Code: CM-42\nNet: £50.00\n"
		invoice, err := extractor.Extract(ctx, Document{Text: text})
		require.NoError(t, err)
		assert.Equal(t, "CM-42", invoice.InvoiceNumber)
	})

	t.Run("should compile each pattern once", func(t *testing.T) {
		extractor := newTestExtractor()

		_, err := extractor.Extract(ctx, Document{Text: sampleInvoiceText})
		require.NoError(t, err)
		compiled := extractor.Cache().Len()
		assert.Greater(t, compiled, 0)

		_, err = extractor.Extract(ctx, Document{Text: sampleInvoiceText})
		require.NoError(t, err)
		assert.Equal(t, compiled, extractor.Cache().Len())
	})
}

func TestParseAmount(t *testing.T) {
	t.Run("should parse symbols separators and negatives", func(t *testing.T) {
		cases := map[string]string{
			"£1,234.56": "1234.56",
			"$ 99":      "99",
			"(45.00)":   "-45",
			"-12.30":    "-12.3",
			"1200.5":    "1200.5",
			"about £":   "",
		}
		for input, want := range cases {
			got, err := ParseAmount(input)
			if want == "" {
				assert.Error(t, err, "input %q", input)
				continue
			}
			require.NoError(t, err, "input %q", input)
			assert.Equal(t, want, got.String(), "input %q", input)
		}
	})

	t.Run("should reject empty input", func(t *testing.T) {
		_, err := ParseAmount("  ")
		assert.Error(t, err)
	})
}

func TestFindAmount(t *testing.T) {
	t.Run("should find an amount embedded in prose", func(t *testing.T) {
		amount, ok := FindAmount("quoted £450.00 ref Q-1043")
		require.True(t, ok)
		assert.Equal(t, "450", amount.String())
	})

	t.Run("should report no amount", func(t *testing.T) {
		_, ok := FindAmount("awaiting quote")
		assert.False(t, ok)
	})
}

func TestParseDate(t *testing.T) {
	t.Run("should parse day-first formats", func(t *testing.T) {
		for _, input := range []string{"12/06/2025", "12-06-2025", "12.06.2025", "12 June 2025", "12th June 2025"} {
			got, err := ParseDate(input)
			require.NoError(t, err, "input %q", input)
			assert.Equal(t, time.Date(2025, 6, 12, 0, 0, 0, 0, time.UTC), got, "input %q", input)
		}
	})

	t.Run("should reject month-first ordering", func(t *testing.T) {
		_, err := ParseDate("June 12, 2025")
		assert.Error(t, err)
	})

	t.Run("should reject nonsense", func(t *testing.T) {
		_, err := ParseDate("not a date")
		assert.Error(t, err)
	})
}
