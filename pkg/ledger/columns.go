package ledger

import (
	"fmt"
	"strings"
)

// column identifies a logical ledger column independent of its position
type column string

const (
	columnPO            column = "po"
	columnStore         column = "store"
	columnBrand         column = "brand"
	columnDescription   column = "description"
	columnQuoteRef      column = "quote_ref"
	columnAuthorizedBy  column = "authorized_by"
	columnInvoiceNo     column = "invoice_no"
	columnInvoiceAmount column = "invoice_amount"
	columnDate          column = "date"
	columnCostCode      column = "cost_code"
)

// sheetLayout is the per-load resolution of one sheet's header.
// It is rebuilt on every workbook load and dropped on mutation;
// offsets are never trusted across reloads.
type sheetLayout struct {
	sheet     string
	headerRow int            // 1-based
	columns   map[column]int // 1-based column index
}

func (l *sheetLayout) col(c column) (int, bool) {
	idx, ok := l.columns[c]
	return idx, ok
}

const headerScanRows = 20

// detectHeaderRow finds the header within the first rows of a sheet.
// A row qualifies when any cell is exactly "PO" or contains
// "INVOICE NO" after trimming, matching how the ledger sheets are
// actually laid out (title banners above, data below).
func detectHeaderRow(rows [][]string) (int, bool) {
	limit := len(rows)
	if limit > headerScanRows {
		limit = headerScanRows
	}
	for i := 0; i < limit; i++ {
		for _, cell := range rows[i] {
			name := canonicalHeader(cell)
			if name == "PO" || strings.Contains(name, "INVOICE NO") {
				return i + 1, true
			}
		}
	}
	return 0, false
}

// canonicalHeader trims, collapses internal whitespace and uppercases
// a header cell so that "Invoice  no." and "INVOICE NO" resolve alike
func canonicalHeader(s string) string {
	s = strings.ToUpper(strings.TrimSpace(s))
	s = strings.ReplaceAll(s, ".", "")
	return strings.Join(strings.Fields(s), " ")
}

// resolveLayout maps logical columns onto the header row by synonym.
// First matching header wins for each logical column.
func resolveLayout(sheet string, rows [][]string) (*sheetLayout, error) {
	headerRow, ok := detectHeaderRow(rows)
	if !ok {
		return nil, fmt.Errorf("%w: sheet %q", ErrHeaderNotFound, sheet)
	}

	layout := &sheetLayout{
		sheet:     sheet,
		headerRow: headerRow,
		columns:   make(map[column]int),
	}

	for i, cell := range rows[headerRow-1] {
		name := canonicalHeader(cell)
		if name == "" {
			continue
		}
		c, ok := classifyHeader(name)
		if !ok {
			continue
		}
		if _, taken := layout.columns[c]; !taken {
			layout.columns[c] = i + 1
		}
	}

	if _, ok := layout.columns[columnPO]; !ok {
		return nil, fmt.Errorf("%w: sheet %q has no PO column", ErrHeaderNotFound, sheet)
	}
	return layout, nil
}

func classifyHeader(name string) (column, bool) {
	switch {
	case name == "PO" || strings.Contains(name, "PO NO") || strings.Contains(name, "PO NUMBER"):
		return columnPO, true
	case strings.Contains(name, "INVOICE NO"):
		return columnInvoiceNo, true
	case strings.Contains(name, "INVOICE AMOUNT") || name == "AMOUNT":
		return columnInvoiceAmount, true
	case strings.Contains(name, "STORE"):
		return columnStore, true
	case strings.Contains(name, "BRAND"):
		return columnBrand, true
	case strings.Contains(name, "DESCRIPTION") || strings.Contains(name, "JOB"):
		return columnDescription, true
	case strings.Contains(name, "QUOTE"):
		return columnQuoteRef, true
	case strings.Contains(name, "AUTHORIS") || strings.Contains(name, "AUTHORIZ"):
		return columnAuthorizedBy, true
	case strings.Contains(name, "NOMINAL") || strings.Contains(name, "COST CODE"):
		return columnCostCode, true
	case strings.Contains(name, "DATE"):
		return columnDate, true
	}
	return "", false
}
