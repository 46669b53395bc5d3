package processor

import (
	"context"
	"testing"

	"github.com/Gobusters/ectologger"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samuelblakek/invoice-automation/pkg/engine"
	"github.com/samuelblakek/invoice-automation/pkg/extract"
	"github.com/samuelblakek/invoice-automation/pkg/ledger"
	"github.com/samuelblakek/invoice-automation/pkg/matching"
	"github.com/samuelblakek/invoice-automation/pkg/models"
	"github.com/samuelblakek/invoice-automation/pkg/validation"
)

func testLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

// fakeExtractor maps filenames to canned invoices
type fakeExtractor struct {
	invoices map[string]*models.InvoiceRecord
}

func (f *fakeExtractor) Extract(_ context.Context, doc extract.Document) (*models.InvoiceRecord, error) {
	invoice, ok := f.invoices[doc.Filename]
	if !ok {
		return nil, extract.ErrExtractionIncomplete
	}
	return invoice, nil
}

// fakeMatcher matches by invoice number
type fakeMatcher struct {
	results map[string]*models.MatchResult
}

func (f *fakeMatcher) Match(_ context.Context, invoice *models.InvoiceRecord) (*models.MatchResult, error) {
	if result, ok := f.results[invoice.InvoiceNumber]; ok {
		return result, nil
	}
	return &models.MatchResult{
		Strategy: models.MatchStrategyNone,
		Outcomes: []models.Outcome{{
			Check:    matching.CheckNoMatch,
			Passed:   false,
			Severity: models.SeverityBlocking,
		}},
	}, nil
}

type fakeSettler struct {
	refs []models.RowRef
}

func (f *fakeSettler) ApplySettlement(_ context.Context, ref models.RowRef, _ ledger.Settlement) error {
	f.refs = append(f.refs, ref)
	return nil
}

type fakeStore struct {
	runs      []*models.ReconciliationRun
	completed []*models.ReconciliationRun
	results   []*models.StoredResult
}

func (f *fakeStore) CreateRun(_ context.Context, run *models.ReconciliationRun) (*models.ReconciliationRun, error) {
	run.ID = "run-1"
	f.runs = append(f.runs, run)
	return run, nil
}

func (f *fakeStore) CompleteRun(_ context.Context, run *models.ReconciliationRun) error {
	f.completed = append(f.completed, run)
	return nil
}

func (f *fakeStore) CreateResult(_ context.Context, result *models.StoredResult) (*models.StoredResult, error) {
	f.results = append(f.results, result)
	return result, nil
}

func cleanMatch(row int) *models.MatchResult {
	return &models.MatchResult{
		Strategy: models.MatchStrategyPOKey,
		Row:      &models.LedgerRow{Ref: models.RowRef{Sheet: "MAINTENANCE", Row: row}},
		Score:    100,
		Outcomes: []models.Outcome{{
			Check:    matching.CheckPOKeyMatch,
			Passed:   true,
			Severity: models.SeverityInformational,
		}},
	}
}

func testFixture() (*fakeExtractor, *fakeMatcher, *fakeSettler, *fakeStore) {
	extractor := &fakeExtractor{invoices: map[string]*models.InvoiceRecord{
		"clean.txt": {
			InvoiceNumber:  "INV-1",
			Supplier:       "Cornerstone Maintenance",
			Category:       models.SupplierCategoryMaintenance,
			NetAmount:      decimal.NewFromInt(120),
			POReference:    "CJL316",
			QuoteReference: "Q-1",
			AuthorizedBy:   "J Smith",
		},
		"review.txt": {
			InvoiceNumber: "INV-2",
			Supplier:      "Cornerstone Maintenance",
			Category:      models.SupplierCategoryMaintenance,
			NetAmount:     decimal.NewFromInt(450),
			POReference:   "CJL317",
		},
	}}
	matcher := &fakeMatcher{results: map[string]*models.MatchResult{
		"INV-1": cleanMatch(4),
		"INV-2": cleanMatch(5),
	}}
	return extractor, matcher, &fakeSettler{}, &fakeStore{}
}

func newTestProcessor(extractor extract.Extractor, matcher engine.Matcher, settler engine.Settler, store RunStore) *Processor {
	eng := engine.New(engine.Dependencies{
		Matcher:    matcher,
		Validators: validation.All(validation.DefaultPolicy()),
		Settler:    settler,
		Logger:     testLogger(),
	})
	return New(extractor, eng, store, nil, "data/ledger.xlsx", testLogger())
}

func TestProcessBatch(t *testing.T) {
	t.Run("should settle clean matches and isolate bad documents", func(t *testing.T) {
		extractor, matcher, settler, store := testFixture()
		p := newTestProcessor(extractor, matcher, settler, store)

		docs := []extract.Document{
			{Filename: "clean.txt"},
			{Filename: "review.txt"},
			{Filename: "garbage.txt"},
		}
		result, err := p.ProcessBatch(context.Background(), docs, Options{})
		require.NoError(t, err)

		assert.Equal(t, 3, result.Run.Total)
		assert.Equal(t, 1, result.Run.AutoUpdated)
		assert.Equal(t, 1, result.Run.NeedsReview)
		assert.Equal(t, 1, result.Run.Failed)
		assert.Equal(t, models.RunStatusCompleted, result.Run.Status)

		// only the clean auto-update reached the ledger
		require.Len(t, settler.refs, 1)
		assert.Equal(t, 4, settler.refs[0].Row)
	})

	t.Run("should never write the ledger on a dry run", func(t *testing.T) {
		extractor, matcher, settler, store := testFixture()
		p := newTestProcessor(extractor, matcher, settler, store)

		docs := []extract.Document{{Filename: "clean.txt"}}
		result, err := p.ProcessBatch(context.Background(), docs, Options{DryRun: true})
		require.NoError(t, err)

		assert.Equal(t, 1, result.Run.AutoUpdated)
		assert.Empty(t, settler.refs)
		assert.True(t, result.Run.DryRun)
	})

	t.Run("should persist the run and one stored result per document", func(t *testing.T) {
		extractor, matcher, settler, store := testFixture()
		p := newTestProcessor(extractor, matcher, settler, store)

		docs := []extract.Document{{Filename: "clean.txt"}, {Filename: "garbage.txt"}}
		_, err := p.ProcessBatch(context.Background(), docs, Options{})
		require.NoError(t, err)

		require.Len(t, store.runs, 1)
		require.Len(t, store.completed, 1)
		require.Len(t, store.results, 2)

		assert.Equal(t, "run-1", store.results[0].RunID)
		assert.Equal(t, "INV-1", store.results[0].InvoiceNumber)
		assert.True(t, store.results[0].Settled)
		assert.Equal(t, string(models.DispositionFailed), store.results[1].Disposition)
		assert.False(t, store.results[1].Settled)
	})

	t.Run("should run without a store or locker", func(t *testing.T) {
		extractor, matcher, settler, _ := testFixture()
		p := newTestProcessor(extractor, matcher, settler, nil)

		result, err := p.ProcessBatch(context.Background(), []extract.Document{{Filename: "clean.txt"}}, Options{})
		require.NoError(t, err)
		assert.Equal(t, 1, result.Run.Total)
	})
}
