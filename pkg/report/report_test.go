package report

import (
	"bytes"
	"encoding/csv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samuelblakek/invoice-automation/pkg/models"
)

func sampleRun() *models.ReconciliationRun {
	return &models.ReconciliationRun{
		ID:          "run-1",
		LedgerPath:  "data/ledger.xlsx",
		Total:       3,
		AutoUpdated: 1,
		NeedsReview: 1,
		Failed:      1,
	}
}

func sampleResults() []*models.ReconciliationResult {
	matched := &models.MatchResult{
		Strategy: models.MatchStrategyPOKey,
		Row:      &models.LedgerRow{Ref: models.RowRef{Sheet: "MAINTENANCE", Row: 4}},
		Score:    100,
	}
	return []*models.ReconciliationResult{
		{
			Invoice:     models.InvoiceRecord{InvoiceNumber: "INV-1", Supplier: "Cornerstone Maintenance"},
			Match:       matched,
			Disposition: models.DispositionAutoUpdate,
		},
		{
			Invoice:     models.InvoiceRecord{InvoiceNumber: "INV-2", Supplier: "Cornerstone Maintenance"},
			Match:       matched,
			Disposition: models.DispositionNeedsReview,
			Outcomes: []models.Outcome{{
				Check:    "spend_authorization",
				Passed:   false,
				Severity: models.SeverityAdvisory,
				Message:  "missing authoriser",
			}},
		},
		{
			Invoice:     models.InvoiceRecord{InvoiceNumber: "INV-3", Supplier: "Brightway Cleaning"},
			Disposition: models.DispositionFailed,
			Error:       "extraction incomplete",
		},
	}
}

func TestSummary(t *testing.T) {
	t.Run("should report counters and skip auto-updated results", func(t *testing.T) {
		out := Summary(sampleRun(), sampleResults())

		assert.Contains(t, out, "Reconciliation run run-1")
		assert.Contains(t, out, "Processed: 3")
		assert.Contains(t, out, "auto-updated: 1")
		assert.NotContains(t, out, "INV-1")
		assert.Contains(t, out, "INV-2")
		assert.Contains(t, out, "spend_authorization: missing authoriser")
		assert.Contains(t, out, "error: extraction incomplete")
	})
}

func TestWriteCSV(t *testing.T) {
	t.Run("should write one row per result plus a header", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, WriteCSV(&buf, sampleResults()))

		records, err := csv.NewReader(&buf).ReadAll()
		require.NoError(t, err)
		require.Len(t, records, 4)

		assert.Equal(t, "invoice_no", records[0][0])
		assert.Equal(t, []string{"INV-1", "Cornerstone Maintenance", "auto_update", "po_key", "100.0", "MAINTENANCE", "4", ""}, records[1])
		assert.Equal(t, "spend_authorization: missing authoriser", records[2][7])

		// unmatched result leaves the match columns empty
		assert.Equal(t, "", records[3][3])
		assert.Equal(t, "", records[3][5])
	})
}

func TestDetailed(t *testing.T) {
	t.Run("should render the matched row and every outcome", func(t *testing.T) {
		out := Detailed(sampleResults()[1])

		assert.Contains(t, out, "Invoice INV-2")
		assert.Contains(t, out, "Matched: MAINTENANCE row 4 via po_key (100.0)")
		assert.True(t, strings.Contains(out, "[FAIL] spend_authorization"))
	})
}
