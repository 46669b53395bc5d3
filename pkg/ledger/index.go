package ledger

import (
	"context"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/samuelblakek/invoice-automation/pkg/extract"
	"github.com/samuelblakek/invoice-automation/pkg/models"
	"github.com/samuelblakek/invoice-automation/pkg/normalizers"
)

// Candidate blend weights. Store identity dominates because stores
// recur across the ledger while suppliers and amounts repeat freely.
const (
	weightStore    = 0.50
	weightSupplier = 0.25
	weightAmount   = 0.25
)

// FindByPONumber looks up a row whose PO cell matches the reference
// by normalized-key containment. Multi-value PO cells are split and
// each value compared. The first matching row in sheet order wins.
// A miss is (nil, nil); only an unmapped category is an error.
func (w *Workbook) FindByPONumber(ctx context.Context, category models.SupplierCategory, poRef string) (*models.LedgerRow, error) {
	key := normalizers.NormalizePOKey(poRef)
	if key == "" {
		return nil, nil
	}

	w.mu.RLock()
	defer w.mu.RUnlock()

	_, rows, err := w.sheetRows(category)
	if err != nil {
		return nil, err
	}

	for i := range rows {
		for _, part := range splitCell(rows[i].PONumber) {
			rowKey := normalizers.NormalizePOKey(part)
			if rowKey == "" {
				continue
			}
			if strings.Contains(rowKey, key) || strings.Contains(key, rowKey) {
				row := rows[i]
				return &row, nil
			}
		}
	}
	return nil, nil
}

// FindBySettledInvoiceNumber looks up a row whose settled-invoice cell
// contains the invoice number as a whole value. Containment is not
// enough here; "INV-12" must not hit "INV-123".
func (w *Workbook) FindBySettledInvoiceNumber(ctx context.Context, category models.SupplierCategory, invoiceNo string) (*models.LedgerRow, error) {
	want := normalizers.NormalizeInvoiceNumber(invoiceNo)
	if want == "" {
		return nil, nil
	}

	w.mu.RLock()
	defer w.mu.RUnlock()

	_, rows, err := w.sheetRows(category)
	if err != nil {
		return nil, err
	}

	for i := range rows {
		for _, part := range splitCell(rows[i].SettledInvoiceNo) {
			if normalizers.NormalizeInvoiceNumber(part) == want {
				row := rows[i]
				return &row, nil
			}
		}
	}
	return nil, nil
}

// FindCandidates scans the category's sheet and scores every usable
// row against the invoice. Results are sorted by score descending;
// equal scores keep sheet order so reruns rank identically.
func (w *Workbook) FindCandidates(ctx context.Context, invoice *models.InvoiceRecord) ([]models.CandidateScore, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	_, rows, err := w.sheetRows(invoice.Category)
	if err != nil {
		return nil, err
	}

	invoiceStore := invoice.StoreName
	if invoiceStore == "" {
		invoiceStore = invoice.StoreNumber
	}

	candidates := make([]models.CandidateScore, 0, len(rows))
	for i := range rows {
		row := rows[i]
		if row.IsEmpty() {
			continue
		}

		storeScore := normalizers.Similarity(invoiceStore, row.StoreName)
		supplierScore := normalizers.Similarity(invoice.Supplier, supplierField(&row))
		amountScore := amountProximity(invoice.NetAmount, &row)

		score := weightStore*storeScore + weightSupplier*supplierScore + weightAmount*amountScore
		if score == 0 {
			continue
		}

		candidates = append(candidates, models.CandidateScore{
			Row:           &row,
			Score:         score,
			StoreScore:    storeScore,
			SupplierScore: supplierScore,
			AmountScore:   amountScore,
		})
	}

	sort.SliceStable(candidates, func(a, b int) bool {
		return candidates[a].Score > candidates[b].Score
	})
	return candidates, nil
}

// supplierField picks the row field that names the supplier: the
// brand column when present, the job description otherwise
func supplierField(row *models.LedgerRow) string {
	if row.Brand != "" {
		return row.Brand
	}
	return row.JobDescription
}

// amountProximity scores how close the invoice net is to the row's
// reference amount: the settled amount when present, otherwise an
// amount embedded in the quote-reference cell. min/max of the pair
// scaled to 0..100; non-positive pairs score 0.
func amountProximity(net decimal.Decimal, row *models.LedgerRow) float64 {
	ref := decimal.Zero
	if row.SettledAmount != nil {
		ref = *row.SettledAmount
	} else if found, ok := extract.FindAmount(row.QuoteReference); ok {
		ref = found
	}

	if !net.IsPositive() || !ref.IsPositive() {
		return 0
	}

	lo, hi := net, ref
	if lo.GreaterThan(hi) {
		lo, hi = hi, lo
	}
	ratio, _ := lo.Div(hi).Float64()
	return ratio * 100
}

func splitCell(s string) []string {
	return normalizers.SplitMultiValue(s)
}
