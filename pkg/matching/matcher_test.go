package matching

import (
	"context"
	"testing"

	"github.com/Gobusters/ectologger"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samuelblakek/invoice-automation/pkg/ledger"
	"github.com/samuelblakek/invoice-automation/pkg/models"
)

type fakeIndex struct {
	byPO       *models.LedgerRow
	byInvoice  *models.LedgerRow
	candidates []models.CandidateScore
	err        error
}

func (f *fakeIndex) FindByPONumber(_ context.Context, _ models.SupplierCategory, _ string) (*models.LedgerRow, error) {
	return f.byPO, f.err
}

func (f *fakeIndex) FindBySettledInvoiceNumber(_ context.Context, _ models.SupplierCategory, _ string) (*models.LedgerRow, error) {
	return f.byInvoice, f.err
}

func (f *fakeIndex) FindCandidates(_ context.Context, _ *models.InvoiceRecord) ([]models.CandidateScore, error) {
	return f.candidates, f.err
}

func newTestMatcher(index LedgerIndex) *Matcher {
	return New(index, DefaultThresholds(), ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {}))
}

func testInvoice() *models.InvoiceRecord {
	return &models.InvoiceRecord{
		InvoiceNumber: "INV-500",
		Supplier:      "Cornerstone Maintenance",
		Category:      models.SupplierCategoryMaintenance,
		StoreName:     "High Street",
		NetAmount:     decimal.NewFromFloat(450),
		POReference:   "CJL316",
	}
}

func testRow() *models.LedgerRow {
	return &models.LedgerRow{
		Ref:       models.RowRef{Sheet: "MAINTENANCE", Row: 4},
		PONumber:  "CJL316",
		StoreName: "0042 - High Street",
		Brand:     "Cornerstone",
	}
}

func TestMatch(t *testing.T) {
	ctx := context.Background()

	t.Run("should match by PO key first", func(t *testing.T) {
		m := newTestMatcher(&fakeIndex{byPO: testRow()})

		result, err := m.Match(ctx, testInvoice())
		require.NoError(t, err)
		assert.Equal(t, models.MatchStrategyPOKey, result.Strategy)
		require.NotNil(t, result.Row)
		assert.Equal(t, float64(100), result.Score)
		assert.Equal(t, CheckPOKeyMatch, result.Outcomes[0].Check)
		assert.True(t, result.Outcomes[0].Passed)
	})

	t.Run("should fall through to the settled invoice strategy", func(t *testing.T) {
		row := testRow()
		row.SettledInvoiceNo = "INV-400"
		m := newTestMatcher(&fakeIndex{byInvoice: row})

		result, err := m.Match(ctx, testInvoice())
		require.NoError(t, err)
		assert.Equal(t, models.MatchStrategyInvoiceNumber, result.Strategy)
	})

	t.Run("should flag a duplicate as blocking and stop", func(t *testing.T) {
		row := testRow()
		row.SettledInvoiceNo = "INV-500"
		m := newTestMatcher(&fakeIndex{byInvoice: row})

		result, err := m.Match(ctx, testInvoice())
		require.NoError(t, err)

		last := result.Outcomes[len(result.Outcomes)-1]
		assert.Equal(t, CheckDuplicateInvoice, last.Check)
		assert.True(t, last.IsBlockingFailure())
		for _, o := range result.Outcomes {
			assert.NotEqual(t, CheckStoreIdentity, o.Check)
		}
	})

	t.Run("should flag a row already settled under a different invoice", func(t *testing.T) {
		row := testRow()
		row.SettledInvoiceNo = "INV-123"
		m := newTestMatcher(&fakeIndex{byPO: row})

		result, err := m.Match(ctx, testInvoice())
		require.NoError(t, err)

		dup := findOutcome(t, result.Outcomes, CheckDuplicateInvoice)
		assert.True(t, dup.IsBlockingFailure())
		assert.Equal(t, "INV-123", dup.Actual)
		assert.Contains(t, dup.Message, "already settled under invoice INV-123")
		for _, o := range result.Outcomes {
			assert.NotEqual(t, CheckStoreIdentity, o.Check)
		}
	})

	t.Run("should accept a fuzzy candidate at or above the accept threshold", func(t *testing.T) {
		m := newTestMatcher(&fakeIndex{candidates: []models.CandidateScore{
			{Row: testRow(), Score: 72, StoreScore: 100, SupplierScore: 60, AmountScore: 30},
		}})

		invoice := testInvoice()
		invoice.POReference = ""
		result, err := m.Match(ctx, invoice)
		require.NoError(t, err)
		assert.Equal(t, models.MatchStrategyFuzzy, result.Strategy)
		assert.Equal(t, float64(72), result.Score)
		assert.True(t, result.Outcomes[0].Passed)
	})

	t.Run("should mark a low-confidence fuzzy match as advisory failure", func(t *testing.T) {
		m := newTestMatcher(&fakeIndex{candidates: []models.CandidateScore{
			{Row: testRow(), Score: 55},
		}})

		result, err := m.Match(ctx, testInvoice())
		require.NoError(t, err)
		assert.Equal(t, models.MatchStrategyFuzzy, result.Strategy)
		assert.True(t, result.Outcomes[0].IsAdvisoryFailure())
	})

	t.Run("should add an advisory when matched without a PO reference", func(t *testing.T) {
		m := newTestMatcher(&fakeIndex{candidates: []models.CandidateScore{
			{Row: testRow(), Score: 90},
		}})

		invoice := testInvoice()
		invoice.POReference = ""
		result, err := m.Match(ctx, invoice)
		require.NoError(t, err)

		advisories := 0
		for _, o := range result.Outcomes {
			if o.IsAdvisoryFailure() {
				advisories++
			}
		}
		assert.Equal(t, 1, advisories)
	})

	t.Run("should report near misses when nothing clears the threshold", func(t *testing.T) {
		m := newTestMatcher(&fakeIndex{candidates: []models.CandidateScore{
			{Row: testRow(), Score: 35},
			{Row: testRow(), Score: 20},
		}})

		result, err := m.Match(ctx, testInvoice())
		require.NoError(t, err)
		assert.Equal(t, models.MatchStrategyNone, result.Strategy)
		assert.Nil(t, result.Row)
		require.Len(t, result.Outcomes, 1)
		assert.True(t, result.Outcomes[0].IsBlockingFailure())
		assert.Contains(t, result.Outcomes[0].Message, "scored 35.0")
	})

	t.Run("should turn an unknown category into a blocking outcome", func(t *testing.T) {
		m := newTestMatcher(&fakeIndex{err: ledger.ErrUnknownCategory})

		result, err := m.Match(ctx, testInvoice())
		require.NoError(t, err)
		assert.Equal(t, models.MatchStrategyNone, result.Strategy)
		require.Len(t, result.Outcomes, 1)
		assert.Equal(t, CheckLedgerSheet, result.Outcomes[0].Check)
		assert.True(t, result.Outcomes[0].IsBlockingFailure())
	})

	t.Run("should score store identity on the matched row", func(t *testing.T) {
		t.Run("confirmed at the info threshold", func(t *testing.T) {
			m := newTestMatcher(&fakeIndex{byPO: testRow()})

			result, err := m.Match(ctx, testInvoice())
			require.NoError(t, err)

			store := findOutcome(t, result.Outcomes, CheckStoreIdentity)
			assert.True(t, store.Passed)
			assert.Equal(t, models.SeverityInformational, store.Severity)
		})

		t.Run("blocking when the stores disagree", func(t *testing.T) {
			row := testRow()
			row.StoreName = "Riverside Depot"
			m := newTestMatcher(&fakeIndex{byPO: row})

			result, err := m.Match(ctx, testInvoice())
			require.NoError(t, err)

			store := findOutcome(t, result.Outcomes, CheckStoreIdentity)
			assert.True(t, store.IsBlockingFailure())
		})

		t.Run("skipped when the invoice names no store", func(t *testing.T) {
			m := newTestMatcher(&fakeIndex{byPO: testRow()})

			invoice := testInvoice()
			invoice.StoreName = ""
			result, err := m.Match(ctx, invoice)
			require.NoError(t, err)

			for _, o := range result.Outcomes {
				assert.NotEqual(t, CheckStoreIdentity, o.Check)
			}
		})
	})
}

func findOutcome(t *testing.T, outcomes []models.Outcome, check string) models.Outcome {
	t.Helper()
	for _, o := range outcomes {
		if o.Check == check {
			return o
		}
	}
	t.Fatalf("outcome %q not found", check)
	return models.Outcome{}
}
