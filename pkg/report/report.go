// Package report renders run summaries for operators
package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/samuelblakek/invoice-automation/pkg/models"
)

// Summary renders a one-screen batch summary
func Summary(run *models.ReconciliationRun, results []*models.ReconciliationResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Reconciliation run %s\n", run.ID)
	fmt.Fprintf(&b, "Ledger: %s\n", run.LedgerPath)
	fmt.Fprintf(&b, "Processed: %d\n", run.Total)
	fmt.Fprintf(&b, "  auto-updated: %d\n", run.AutoUpdated)
	fmt.Fprintf(&b, "  needs review: %d\n", run.NeedsReview)
	fmt.Fprintf(&b, "  failed:       %d\n", run.Failed)

	for _, result := range results {
		if result.Disposition == models.DispositionAutoUpdate {
			continue
		}
		fmt.Fprintf(&b, "\n%s (%s): %s\n", result.Invoice.InvoiceNumber, result.Invoice.Supplier, result.Disposition)
		if failure := result.FirstFailure(); failure != nil {
			fmt.Fprintf(&b, "  %s: %s\n", failure.Check, failure.Message)
		}
		if result.Error != "" {
			fmt.Fprintf(&b, "  error: %s\n", result.Error)
		}
	}
	return b.String()
}

// WriteCSV writes one row per result for spreadsheet review
func WriteCSV(w io.Writer, results []*models.ReconciliationResult) error {
	cw := csv.NewWriter(w)
	header := []string{"invoice_no", "supplier", "disposition", "strategy", "score", "sheet", "row", "first_failure"}
	if err := cw.Write(header); err != nil {
		return err
	}

	for _, result := range results {
		strategy, score, sheet, row := "", "", "", ""
		if result.Match != nil {
			strategy = string(result.Match.Strategy)
			score = fmt.Sprintf("%.1f", result.Match.Score)
			if result.Match.Matched() {
				sheet = result.Match.Row.Ref.Sheet
				row = fmt.Sprintf("%d", result.Match.Row.Ref.Row)
			}
		}
		firstFailure := ""
		if failure := result.FirstFailure(); failure != nil {
			firstFailure = failure.Check + ": " + failure.Message
		}

		record := []string{
			result.Invoice.InvoiceNumber,
			result.Invoice.Supplier,
			string(result.Disposition),
			strategy,
			score,
			sheet,
			row,
			firstFailure,
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// Detailed renders every outcome of a single result
func Detailed(result *models.ReconciliationResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Invoice %s from %s\n", result.Invoice.InvoiceNumber, result.Invoice.Supplier)
	fmt.Fprintf(&b, "Disposition: %s\n", result.Disposition)
	if result.Match != nil && result.Match.Matched() {
		fmt.Fprintf(&b, "Matched: %s row %d via %s (%.1f)\n",
			result.Match.Row.Ref.Sheet, result.Match.Row.Ref.Row, result.Match.Strategy, result.Match.Score)
	}
	for _, o := range result.Outcomes {
		status := "PASS"
		if !o.Passed {
			status = "FAIL"
		}
		fmt.Fprintf(&b, "  [%s] %s (%s): %s\n", status, o.Check, o.Severity, o.Message)
	}
	if result.Error != "" {
		fmt.Fprintf(&b, "  error: %s\n", result.Error)
	}
	return b.String()
}
