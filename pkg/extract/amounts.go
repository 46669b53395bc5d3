package extract

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

var amountPattern = regexp.MustCompile(`-?\(?[£$€]?\s*\d{1,3}(?:,\d{3})*(?:\.\d{1,2})?\)?`)

// ParseAmount parses a money value as it appears on invoices and in
// ledger cells: currency symbols, thousands separators and
// parenthesized negatives are all accepted.
func ParseAmount(s string) (decimal.Decimal, error) {
	cleaned := strings.TrimSpace(s)
	if cleaned == "" {
		return decimal.Zero, fmt.Errorf("empty amount")
	}

	negative := false
	if strings.HasPrefix(cleaned, "(") && strings.HasSuffix(cleaned, ")") {
		negative = true
		cleaned = cleaned[1 : len(cleaned)-1]
	}

	cleaned = strings.NewReplacer("£", "", "$", "", "€", "", ",", "", " ", "").Replace(cleaned)
	if strings.HasPrefix(cleaned, "-") {
		negative = !negative
		cleaned = cleaned[1:]
	}

	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse amount %q: %w", s, err)
	}
	if negative {
		d = d.Neg()
	}
	return d, nil
}

// FindAmount scans free text for the first money-looking value.
// Used for cells like "£450.00 quote Q-1043" where the amount is
// embedded in prose.
func FindAmount(s string) (decimal.Decimal, bool) {
	match := amountPattern.FindString(s)
	if match == "" {
		return decimal.Zero, false
	}
	d, err := ParseAmount(match)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}
