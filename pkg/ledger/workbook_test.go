package ledger

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/samuelblakek/invoice-automation/pkg/models"
)

func testLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

func writeTestLedger(t *testing.T) string {
	t.Helper()

	f := excelize.NewFile()
	require.NoError(t, f.SetSheetName("Sheet1", "MAINTENANCE"))

	rows := [][]interface{}{
		{"MAINTENANCE LEDGER 2025"},
		{},
		{"PO", "STORE", "BRAND", "JOB DESCRIPTION", "QUOTE OVER £200", "AUTHORISED BY", "INVOICE NO", "INVOICE AMOUNT", "DATE", "NOMINAL CODE"},
		{"CJL316", "0042 - High Street", "Cornerstone", "Roof repair", "£450.00 Q-1043", "J Smith", "", "", "", ""},
		{"CJL317", "0042 - High Street", "Cornerstone", "Gutter clean", "", "", "INV-123", "120.00", "01/03/2025", "5100"},
		{"CJL318", "0077 - Riverside", "Brightway", "Window fix", "£95.00", "", "", "", "", ""},
		{},
	}
	for i, row := range rows {
		require.NoError(t, f.SetSheetRow("MAINTENANCE", fmt.Sprintf("A%d", i+1), &row))
	}

	path := filepath.Join(t.TempDir(), "ledger.xlsx")
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())
	return path
}

func openTestLedger(t *testing.T) *Workbook {
	t.Helper()
	wb, err := Open(Config{Path: writeTestLedger(t)}, testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = wb.Close() })
	return wb
}

func TestOpen(t *testing.T) {
	t.Run("should detect the header row below banner rows", func(t *testing.T) {
		wb := openTestLedger(t)

		rows, err := wb.Rows(context.Background(), models.SupplierCategoryMaintenance)
		require.NoError(t, err)
		require.GreaterOrEqual(t, len(rows), 3)
		assert.Equal(t, "CJL316", rows[0].PONumber)
		assert.Equal(t, models.RowRef{Sheet: "MAINTENANCE", Row: 4}, rows[0].Ref)
	})

	t.Run("should parse settled amount and date", func(t *testing.T) {
		wb := openTestLedger(t)

		rows, err := wb.Rows(context.Background(), models.SupplierCategoryMaintenance)
		require.NoError(t, err)

		settled := rows[1]
		assert.Equal(t, "INV-123", settled.SettledInvoiceNo)
		require.NotNil(t, settled.SettledAmount)
		assert.True(t, settled.SettledAmount.Equal(decimal.NewFromFloat(120.00)))
		require.NotNil(t, settled.SettledDate)
		assert.Equal(t, time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), *settled.SettledDate)
	})

	t.Run("should error for a category not in the sheet map", func(t *testing.T) {
		wb := openTestLedger(t)

		_, err := wb.Rows(context.Background(), models.SupplierCategory("plumbing"))
		assert.ErrorIs(t, err, ErrUnknownCategory)
	})

	t.Run("should error for a mapped category whose sheet is missing", func(t *testing.T) {
		wb := openTestLedger(t)

		_, err := wb.Rows(context.Background(), models.SupplierCategoryCleaning)
		assert.ErrorIs(t, err, ErrUnknownCategory)
	})
}

func TestFindByPONumber(t *testing.T) {
	ctx := context.Background()

	t.Run("should match normalized key variants", func(t *testing.T) {
		wb := openTestLedger(t)

		for _, ref := range []string{"CJL316", "cjl-316", "PO# CJL 316"} {
			row, err := wb.FindByPONumber(ctx, models.SupplierCategoryMaintenance, ref)
			require.NoError(t, err)
			require.NotNil(t, row, "reference %q", ref)
			assert.Equal(t, "CJL316", row.PONumber)
		}
	})

	t.Run("should return nil for a miss", func(t *testing.T) {
		wb := openTestLedger(t)

		row, err := wb.FindByPONumber(ctx, models.SupplierCategoryMaintenance, "ZZZ999")
		require.NoError(t, err)
		assert.Nil(t, row)
	})

	t.Run("should return nil for an empty reference", func(t *testing.T) {
		wb := openTestLedger(t)

		row, err := wb.FindByPONumber(ctx, models.SupplierCategoryMaintenance, " - ")
		require.NoError(t, err)
		assert.Nil(t, row)
	})

	t.Run("should propagate unknown category", func(t *testing.T) {
		wb := openTestLedger(t)

		_, err := wb.FindByPONumber(ctx, models.SupplierCategory("plumbing"), "CJL316")
		assert.ErrorIs(t, err, ErrUnknownCategory)
	})
}

func TestFindBySettledInvoiceNumber(t *testing.T) {
	ctx := context.Background()

	t.Run("should match a whole value only", func(t *testing.T) {
		wb := openTestLedger(t)

		row, err := wb.FindBySettledInvoiceNumber(ctx, models.SupplierCategoryMaintenance, "inv-123")
		require.NoError(t, err)
		require.NotNil(t, row)
		assert.Equal(t, "CJL317", row.PONumber)

		// a prefix of a settled number must not hit
		row, err = wb.FindBySettledInvoiceNumber(ctx, models.SupplierCategoryMaintenance, "INV-12")
		require.NoError(t, err)
		assert.Nil(t, row)
	})
}

func TestFindCandidates(t *testing.T) {
	ctx := context.Background()

	t.Run("should rank the closest row first", func(t *testing.T) {
		wb := openTestLedger(t)

		net := decimal.NewFromFloat(450.00)
		invoice := &models.InvoiceRecord{
			Supplier:  "Cornerstone Maintenance",
			Category:  models.SupplierCategoryMaintenance,
			StoreName: "High Street",
			NetAmount: net,
		}

		candidates, err := wb.FindCandidates(ctx, invoice)
		require.NoError(t, err)
		require.NotEmpty(t, candidates)
		assert.Equal(t, "CJL316", candidates[0].Row.PONumber)
		assert.Greater(t, candidates[0].Score, candidates[len(candidates)-1].Score)
	})

	t.Run("should exclude empty rows", func(t *testing.T) {
		wb := openTestLedger(t)

		invoice := &models.InvoiceRecord{
			Supplier:  "Cornerstone",
			Category:  models.SupplierCategoryMaintenance,
			StoreName: "High Street",
			NetAmount: decimal.NewFromFloat(100),
		}

		candidates, err := wb.FindCandidates(ctx, invoice)
		require.NoError(t, err)
		for _, c := range candidates {
			assert.False(t, c.Row.IsEmpty())
		}
	})

	t.Run("should rank identically across repeated scans", func(t *testing.T) {
		wb := openTestLedger(t)

		invoice := &models.InvoiceRecord{
			Supplier:  "Cornerstone",
			Category:  models.SupplierCategoryMaintenance,
			StoreName: "High Street",
			NetAmount: decimal.NewFromFloat(450),
		}

		first, err := wb.FindCandidates(ctx, invoice)
		require.NoError(t, err)
		second, err := wb.FindCandidates(ctx, invoice)
		require.NoError(t, err)

		require.Equal(t, len(first), len(second))
		for i := range first {
			assert.Equal(t, first[i].Row.Ref, second[i].Row.Ref)
			assert.Equal(t, first[i].Score, second[i].Score)
		}
	})
}

func TestApplySettlement(t *testing.T) {
	ctx := context.Background()

	t.Run("should write settlement and find it afterwards", func(t *testing.T) {
		wb := openTestLedger(t)

		row, err := wb.FindByPONumber(ctx, models.SupplierCategoryMaintenance, "CJL316")
		require.NoError(t, err)
		require.NotNil(t, row)

		err = wb.ApplySettlement(ctx, row.Ref, Settlement{
			InvoiceNo: "INV-900",
			Amount:    decimal.NewFromFloat(450.00),
			Date:      time.Date(2025, 6, 12, 0, 0, 0, 0, time.UTC),
			CostCode:  "5100",
		})
		require.NoError(t, err)

		settled, err := wb.FindBySettledInvoiceNumber(ctx, models.SupplierCategoryMaintenance, "INV-900")
		require.NoError(t, err)
		require.NotNil(t, settled)
		assert.Equal(t, "CJL316", settled.PONumber)
		require.NotNil(t, settled.SettledAmount)
		assert.True(t, settled.SettledAmount.Equal(decimal.NewFromFloat(450.00)))
		assert.Equal(t, "5100", settled.CostCode)
	})

	t.Run("should back up the workbook before the first write", func(t *testing.T) {
		wb := openTestLedger(t)

		row, err := wb.FindByPONumber(ctx, models.SupplierCategoryMaintenance, "CJL316")
		require.NoError(t, err)
		require.NotNil(t, row)

		require.NoError(t, wb.ApplySettlement(ctx, row.Ref, Settlement{
			InvoiceNo: "INV-901",
			Amount:    decimal.NewFromFloat(450.00),
			Date:      time.Now(),
		}))

		_, err = os.Stat(wb.Path() + ".backup")
		assert.NoError(t, err)
	})

	t.Run("should not overwrite an existing cost code", func(t *testing.T) {
		wb := openTestLedger(t)

		rows, err := wb.Rows(ctx, models.SupplierCategoryMaintenance)
		require.NoError(t, err)
		settledRow := rows[1]
		require.Equal(t, "5100", settledRow.CostCode)

		require.NoError(t, wb.ApplySettlement(ctx, settledRow.Ref, Settlement{
			InvoiceNo: "INV-123",
			Amount:    decimal.NewFromFloat(120.00),
			Date:      time.Now(),
			CostCode:  "9999",
		}))

		rows, err = wb.Rows(ctx, models.SupplierCategoryMaintenance)
		require.NoError(t, err)
		assert.Equal(t, "5100", rows[1].CostCode)
	})

	t.Run("should refuse a row settled with a different invoice", func(t *testing.T) {
		wb := openTestLedger(t)

		rows, err := wb.Rows(ctx, models.SupplierCategoryMaintenance)
		require.NoError(t, err)

		err = wb.ApplySettlement(ctx, rows[1].Ref, Settlement{
			InvoiceNo: "INV-999",
			Amount:    decimal.NewFromFloat(10),
			Date:      time.Now(),
		})
		assert.ErrorIs(t, err, ErrRowConflict)
	})

	t.Run("should refuse a row outside the sheet", func(t *testing.T) {
		wb := openTestLedger(t)

		err := wb.ApplySettlement(ctx, models.RowRef{Sheet: "MAINTENANCE", Row: 999}, Settlement{
			InvoiceNo: "INV-1",
			Amount:    decimal.NewFromFloat(10),
			Date:      time.Now(),
		})
		assert.ErrorIs(t, err, ErrRowOutOfRange)
	})
}
