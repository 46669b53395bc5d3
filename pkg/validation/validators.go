// Package validation holds the policy checks applied to a matched
// invoice before settlement
package validation

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/samuelblakek/invoice-automation/pkg/models"
)

// Check names surfaced in outcomes
const (
	CheckSpendAuthorization = "spend_authorization"
	CheckAmountSanity       = "amount_sanity"
	CheckTaxConsistency     = "tax_consistency"
)

// Policy carries the tunable limits of the checks
type Policy struct {
	// AuthThreshold is the net amount above which a quote reference
	// and an authorizing name must be on the ledger row
	AuthThreshold decimal.Decimal
	// AmountCeiling flags unusually large invoices for attention
	AmountCeiling decimal.Decimal
	// TaxTolerance absorbs rounding drift in net + tax vs total
	TaxTolerance decimal.Decimal
}

// DefaultPolicy returns the standard limits
func DefaultPolicy() Policy {
	return Policy{
		AuthThreshold: decimal.NewFromInt(200),
		AmountCeiling: decimal.NewFromInt(10000),
		TaxTolerance:  decimal.NewFromFloat(0.02),
	}
}

// Validator is one policy check. Row is nil when the invoice did not
// match a ledger row; validators that need the row skip themselves.
type Validator interface {
	Name() string
	Validate(ctx context.Context, invoice *models.InvoiceRecord, row *models.LedgerRow) []models.Outcome
}

// All returns the standard validator chain in evaluation order
func All(policy Policy) []Validator {
	return []Validator{
		&SpendAuthorizationValidator{policy: policy},
		&AmountSanityValidator{policy: policy},
		&TaxConsistencyValidator{policy: policy},
	}
}

// SpendAuthorizationValidator enforces the quote rule: spend above the
// threshold must carry a quote reference and an authorizing name on
// the ledger row
type SpendAuthorizationValidator struct {
	policy Policy
}

// Name implements Validator
func (v *SpendAuthorizationValidator) Name() string { return CheckSpendAuthorization }

// Validate implements Validator
func (v *SpendAuthorizationValidator) Validate(_ context.Context, invoice *models.InvoiceRecord, row *models.LedgerRow) []models.Outcome {
	if row == nil {
		return nil
	}

	if invoice.NetAmount.LessThanOrEqual(v.policy.AuthThreshold) {
		return []models.Outcome{{
			Check:    CheckSpendAuthorization,
			Passed:   true,
			Severity: models.SeverityInformational,
			Message:  fmt.Sprintf("net %s is within the £%s authorization threshold", invoice.NetAmount, v.policy.AuthThreshold),
		}}
	}

	var missing string
	switch {
	case row.QuoteReference == "" && row.AuthorizedBy == "":
		missing = "quote reference and authorized-by"
	case row.QuoteReference == "":
		missing = "quote reference"
	case row.AuthorizedBy == "":
		missing = "authorized-by"
	}
	if missing != "" {
		return []models.Outcome{{
			Check:    CheckSpendAuthorization,
			Passed:   false,
			Severity: models.SeverityAdvisory,
			Expected: fmt.Sprintf("quote reference and authorized-by for spend over £%s", v.policy.AuthThreshold),
			Message:  fmt.Sprintf("net %s exceeds £%s but %s row %d is missing %s", invoice.NetAmount, v.policy.AuthThreshold, row.Ref.Sheet, row.Ref.Row, missing),
		}}
	}

	return []models.Outcome{{
		Check:    CheckSpendAuthorization,
		Passed:   true,
		Severity: models.SeverityInformational,
		Message:  fmt.Sprintf("spend over £%s authorized by %q under quote %q", v.policy.AuthThreshold, row.AuthorizedBy, row.QuoteReference),
	}}
}

// AmountSanityValidator rejects non-positive invoices and flags
// unusually large ones
type AmountSanityValidator struct {
	policy Policy
}

// Name implements Validator
func (v *AmountSanityValidator) Name() string { return CheckAmountSanity }

// Validate implements Validator
func (v *AmountSanityValidator) Validate(_ context.Context, invoice *models.InvoiceRecord, _ *models.LedgerRow) []models.Outcome {
	switch {
	case !invoice.NetAmount.IsPositive():
		return []models.Outcome{{
			Check:    CheckAmountSanity,
			Passed:   false,
			Severity: models.SeverityBlocking,
			Actual:   invoice.NetAmount.String(),
			Message:  fmt.Sprintf("net amount %s is not positive", invoice.NetAmount),
		}}
	case invoice.NetAmount.GreaterThan(v.policy.AmountCeiling):
		return []models.Outcome{{
			Check:    CheckAmountSanity,
			Passed:   true,
			Severity: models.SeverityAdvisory,
			Actual:   invoice.NetAmount.String(),
			Message:  fmt.Sprintf("net amount %s exceeds the £%s attention ceiling", invoice.NetAmount, v.policy.AmountCeiling),
		}}
	default:
		return []models.Outcome{{
			Check:    CheckAmountSanity,
			Passed:   true,
			Severity: models.SeverityInformational,
			Message:  fmt.Sprintf("net amount %s is plausible", invoice.NetAmount),
		}}
	}
}

// TaxConsistencyValidator checks net + tax against the stated total
type TaxConsistencyValidator struct {
	policy Policy
}

// Name implements Validator
func (v *TaxConsistencyValidator) Name() string { return CheckTaxConsistency }

// Validate implements Validator
func (v *TaxConsistencyValidator) Validate(_ context.Context, invoice *models.InvoiceRecord, _ *models.LedgerRow) []models.Outcome {
	if invoice.TaxAmount == nil || invoice.TotalAmount == nil {
		return []models.Outcome{{
			Check:    CheckTaxConsistency,
			Passed:   true,
			Severity: models.SeverityInformational,
			Message:  "tax or total not stated, consistency check skipped",
		}}
	}

	computed := invoice.NetAmount.Add(*invoice.TaxAmount)
	drift := computed.Sub(*invoice.TotalAmount).Abs()
	if drift.LessThanOrEqual(v.policy.TaxTolerance) {
		return []models.Outcome{{
			Check:    CheckTaxConsistency,
			Passed:   true,
			Severity: models.SeverityInformational,
			Message:  fmt.Sprintf("net %s + tax %s agrees with total %s", invoice.NetAmount, invoice.TaxAmount, invoice.TotalAmount),
		}}
	}

	return []models.Outcome{{
		Check:    CheckTaxConsistency,
		Passed:   false,
		Severity: models.SeverityAdvisory,
		Expected: invoice.TotalAmount.String(),
		Actual:   computed.String(),
		Message:  fmt.Sprintf("net %s + tax %s = %s differs from stated total %s by %s", invoice.NetAmount, invoice.TaxAmount, computed, invoice.TotalAmount, drift),
	}}
}
