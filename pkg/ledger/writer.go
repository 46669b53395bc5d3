package ledger

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/samuelblakek/invoice-automation/pkg/models"
	"github.com/samuelblakek/invoice-automation/pkg/normalizers"
)

// settledFillColor marks settled rows light blue
const settledFillColor = "DAEEF3"

const settledDateLayout = "02/01/2006"

// Settlement holds the values written back to a matched row
type Settlement struct {
	InvoiceNo string
	Amount    decimal.Decimal
	Date      time.Time
	CostCode  string
}

// ApplySettlement writes a settlement onto one row: invoice number,
// amount and date always; cost code only when the cell is empty. The
// whole row is written and saved in one pass or not at all. The first
// mutation of a session backs the workbook file up beside itself.
// Layouts are re-derived after the save.
func (w *Workbook) ApplySettlement(ctx context.Context, ref models.RowRef, s Settlement) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	layout, ok := w.layouts[ref.Sheet]
	if !ok {
		return fmt.Errorf("%w: sheet %q not loaded", ErrRowOutOfRange, ref.Sheet)
	}
	rows := w.rows[ref.Sheet]
	idx := ref.Row - layout.headerRow - 1
	if idx < 0 || idx >= len(rows) {
		return fmt.Errorf("%w: %s row %d", ErrRowOutOfRange, ref.Sheet, ref.Row)
	}

	current := rows[idx]
	if current.IsSettled() &&
		normalizers.NormalizeInvoiceNumber(current.SettledInvoiceNo) != normalizers.NormalizeInvoiceNumber(s.InvoiceNo) {
		return fmt.Errorf("%w: %s row %d holds %q", ErrRowConflict, ref.Sheet, ref.Row, current.SettledInvoiceNo)
	}

	writes, err := w.settlementWrites(layout, ref.Row, &current, s)
	if err != nil {
		return err
	}

	if !w.backedUp {
		if err := copyFile(w.path, w.path+".backup"); err != nil {
			return fmt.Errorf("backup ledger before write: %w", err)
		}
		w.backedUp = true
		w.logger.WithContext(ctx).Infof("backed up ledger to %s.backup", w.path)
	}

	for _, wr := range writes {
		if err := w.file.SetCellValue(ref.Sheet, wr.cell, wr.value); err != nil {
			return fmt.Errorf("write cell %s!%s: %w", ref.Sheet, wr.cell, err)
		}
	}
	if err := w.markRowSettled(layout, ref.Row); err != nil {
		return err
	}
	if err := w.file.Save(); err != nil {
		return fmt.Errorf("save ledger workbook: %w", err)
	}

	w.logger.WithContext(ctx).WithFields(map[string]interface{}{
		"sheet":      ref.Sheet,
		"row":        ref.Row,
		"invoice_no": s.InvoiceNo,
	}).Info("settlement written to ledger")

	return w.load(ctx)
}

type cellWrite struct {
	cell  string
	value interface{}
}

// settlementWrites resolves every target cell before anything is
// touched so a bad reference fails the whole settlement up front
func (w *Workbook) settlementWrites(layout *sheetLayout, rowIdx int, current *models.LedgerRow, s Settlement) ([]cellWrite, error) {
	writes := make([]cellWrite, 0, 4)

	add := func(c column, value interface{}) error {
		colIdx, ok := layout.col(c)
		if !ok {
			return fmt.Errorf("%w: sheet %q has no %s column", ErrHeaderNotFound, layout.sheet, c)
		}
		cell, err := excelize.CoordinatesToCellName(colIdx, rowIdx)
		if err != nil {
			return err
		}
		writes = append(writes, cellWrite{cell: cell, value: value})
		return nil
	}

	if err := add(columnInvoiceNo, s.InvoiceNo); err != nil {
		return nil, err
	}
	amount, _ := s.Amount.Float64()
	if err := add(columnInvoiceAmount, amount); err != nil {
		return nil, err
	}
	if err := add(columnDate, s.Date.Format(settledDateLayout)); err != nil {
		return nil, err
	}
	if s.CostCode != "" && current.CostCode == "" {
		if _, ok := layout.col(columnCostCode); ok {
			if err := add(columnCostCode, s.CostCode); err != nil {
				return nil, err
			}
		}
	}
	return writes, nil
}

// markRowSettled fills the row's used columns with the settled color
func (w *Workbook) markRowSettled(layout *sheetLayout, rowIdx int) error {
	styleID, err := w.file.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Color: []string{settledFillColor}, Pattern: 1},
	})
	if err != nil {
		return fmt.Errorf("create settled row style: %w", err)
	}

	minCol, maxCol := 0, 0
	for _, idx := range layout.columns {
		if minCol == 0 || idx < minCol {
			minCol = idx
		}
		if idx > maxCol {
			maxCol = idx
		}
	}
	first, err := excelize.CoordinatesToCellName(minCol, rowIdx)
	if err != nil {
		return err
	}
	last, err := excelize.CoordinatesToCellName(maxCol, rowIdx)
	if err != nil {
		return err
	}
	return w.file.SetCellStyle(layout.sheet, first, last, styleID)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}
