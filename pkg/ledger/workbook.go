package ledger

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/Gobusters/ectologger"
	"github.com/xuri/excelize/v2"

	"github.com/samuelblakek/invoice-automation/pkg/extract"
	"github.com/samuelblakek/invoice-automation/pkg/models"
)

// Config holds ledger workbook settings
type Config struct {
	Path   string
	Sheets SheetMap
}

// Workbook is the ledger index over an XLSX file. Header rows and
// column offsets are re-derived on every load and after every
// mutation; they are never carried across a write.
type Workbook struct {
	path   string
	sheets SheetMap
	logger ectologger.Logger

	mu       sync.RWMutex
	file     *excelize.File
	layouts  map[string]*sheetLayout
	rows     map[string][]models.LedgerRow
	backedUp bool
}

// Open loads the workbook and parses every mapped sheet
func Open(cfg Config, logger ectologger.Logger) (*Workbook, error) {
	file, err := excelize.OpenFile(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("open ledger workbook %q: %w", cfg.Path, err)
	}

	sheets := cfg.Sheets
	if sheets == nil {
		sheets = DefaultSheetMap()
	}

	wb := &Workbook{
		path:   cfg.Path,
		sheets: sheets,
		logger: logger,
		file:   file,
	}
	if err := wb.load(context.Background()); err != nil {
		return nil, err
	}
	return wb, nil
}

// Close releases the underlying file handle
func (w *Workbook) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.file.Close()
}

// Path returns the workbook file path
func (w *Workbook) Path() string {
	return w.path
}

// Reload re-reads every mapped sheet and re-derives all layouts
func (w *Workbook) Reload(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.load(ctx)
}

// load rebuilds layouts and parsed rows from the in-memory file.
// Caller holds the write lock (or is constructing).
func (w *Workbook) load(ctx context.Context) error {
	present := make(map[string]bool)
	for _, name := range w.file.GetSheetList() {
		present[name] = true
	}

	layouts := make(map[string]*sheetLayout)
	parsed := make(map[string][]models.LedgerRow)

	for category, sheet := range w.sheets {
		if !present[sheet] {
			w.logger.WithContext(ctx).Warnf("ledger sheet %q for category %q missing from workbook", sheet, category)
			continue
		}
		if _, done := layouts[sheet]; done {
			continue
		}

		cells, err := w.file.GetRows(sheet)
		if err != nil {
			return fmt.Errorf("read sheet %q: %w", sheet, err)
		}
		layout, err := resolveLayout(sheet, cells)
		if err != nil {
			return err
		}

		rows := make([]models.LedgerRow, 0, len(cells))
		for i := layout.headerRow; i < len(cells); i++ {
			rows = append(rows, parseRow(layout, i+1, cells[i]))
		}

		layouts[sheet] = layout
		parsed[sheet] = rows
		w.logger.WithContext(ctx).Debugf("loaded ledger sheet %q: header row %d, %d data rows", sheet, layout.headerRow, len(rows))
	}

	w.layouts = layouts
	w.rows = parsed
	return nil
}

// parseRow maps one cell row onto the ledger model. Unparseable
// amounts and dates are left nil; the row itself is never rejected.
func parseRow(layout *sheetLayout, rowIdx int, cells []string) models.LedgerRow {
	get := func(c column) string {
		idx, ok := layout.col(c)
		if !ok || idx > len(cells) {
			return ""
		}
		return strings.TrimSpace(cells[idx-1])
	}

	row := models.LedgerRow{
		Ref:              models.RowRef{Sheet: layout.sheet, Row: rowIdx},
		PONumber:         get(columnPO),
		StoreName:        get(columnStore),
		Brand:            get(columnBrand),
		JobDescription:   get(columnDescription),
		QuoteReference:   get(columnQuoteRef),
		AuthorizedBy:     get(columnAuthorizedBy),
		SettledInvoiceNo: get(columnInvoiceNo),
		CostCode:         get(columnCostCode),
	}

	if raw := get(columnInvoiceAmount); raw != "" {
		if amount, err := extract.ParseAmount(raw); err == nil {
			row.SettledAmount = &amount
		}
	}
	if raw := get(columnDate); raw != "" {
		if date, err := extract.ParseDate(raw); err == nil {
			row.SettledDate = &date
		}
	}
	return row
}

// sheetRows resolves the parsed rows for a category.
// Caller holds at least the read lock.
func (w *Workbook) sheetRows(category models.SupplierCategory) (string, []models.LedgerRow, error) {
	sheet, err := w.sheets.SheetFor(category)
	if err != nil {
		return "", nil, err
	}
	rows, ok := w.rows[sheet]
	if !ok {
		return "", nil, fmt.Errorf("%w: sheet %q not present in workbook", ErrUnknownCategory, sheet)
	}
	return sheet, rows, nil
}

// Rows returns a copy of the parsed rows for a category
func (w *Workbook) Rows(ctx context.Context, category models.SupplierCategory) ([]models.LedgerRow, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	_, rows, err := w.sheetRows(category)
	if err != nil {
		return nil, err
	}
	out := make([]models.LedgerRow, len(rows))
	copy(out, rows)
	return out, nil
}
