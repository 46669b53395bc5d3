// Package ledger reads and settles the purchase-order ledger workbook
package ledger

import "errors"

var (
	// ErrUnknownCategory is returned when no sheet is mapped for a supplier category
	ErrUnknownCategory = errors.New("no ledger sheet mapped for supplier category")
	// ErrHeaderNotFound is returned when a sheet has no recognizable header row
	ErrHeaderNotFound = errors.New("header row not found")
	// ErrRowOutOfRange is returned when a row reference points outside the sheet
	ErrRowOutOfRange = errors.New("row reference out of range")
	// ErrRowConflict is returned when the target row changed since it was matched
	ErrRowConflict = errors.New("row already settled with a different invoice")
)
