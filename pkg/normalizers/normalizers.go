// Package normalizers provides string canonicalization and similarity
// scoring for ledger matching
package normalizers

import (
	"math"
	"sort"
	"strings"
	"unicode"

	"github.com/agnivade/levenshtein"
)

// Normalizer is a function that normalizes a string value
type Normalizer func(string) string

// registry holds all registered normalizers
var registry = make(map[string]Normalizer)

func init() {
	Register("lowercase", Lowercase)
	Register("trim", Trim)
	Register("canonical", Canonical)
	Register("po_key", NormalizePOKey)
	Register("invoice_number", NormalizeInvoiceNumber)
	Register("store_name", NormalizeStoreName)
	Register("digits_only", DigitsOnly)
	Register("alphanumeric", Alphanumeric)
}

// Register adds a normalizer to the registry
func Register(name string, fn Normalizer) {
	registry[name] = fn
}

// Get retrieves a normalizer by name
func Get(name string) (Normalizer, bool) {
	fn, ok := registry[name]
	return fn, ok
}

// Apply applies a named normalizer to a value.
// Unknown names return the value unchanged.
func Apply(value, normalizer string) string {
	fn, ok := registry[normalizer]
	if !ok {
		return value
	}
	return fn(value)
}

// ApplyChain applies multiple normalizers in sequence
func ApplyChain(value string, normalizers ...string) string {
	result := value
	for _, name := range normalizers {
		result = Apply(result, name)
	}
	return result
}

// Built-in normalizers

// Lowercase converts string to lowercase
func Lowercase(s string) string {
	return strings.ToLower(s)
}

// Trim removes leading and trailing whitespace
func Trim(s string) string {
	return strings.TrimSpace(s)
}

// Canonical lowercases, maps punctuation to spaces and collapses
// whitespace runs. This is the comparison form used everywhere two
// free-text values are compared.
func Canonical(s string) string {
	s = strings.ToLower(s)
	var result strings.Builder
	prevSpace := false
	for _, r := range s {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			result.WriteRune(r)
			prevSpace = false
		default:
			if !prevSpace {
				result.WriteRune(' ')
				prevSpace = true
			}
		}
	}
	return strings.TrimSpace(result.String())
}

// NormalizePOKey reduces a purchase-order reference to its comparable
// key: uppercase alphanumerics only. "PO# CJL-316" and "cjl316" reduce
// to the same key.
func NormalizePOKey(s string) string {
	var result strings.Builder
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			result.WriteRune(unicode.ToUpper(r))
		}
	}
	return result.String()
}

// NormalizeInvoiceNumber uppercases and strips whitespace around an
// invoice number while keeping internal separators
func NormalizeInvoiceNumber(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// NormalizeStoreName canonicalizes a store name and drops a leading
// store-number prefix like "0042 - "
func NormalizeStoreName(s string) string {
	s = Canonical(s)
	fields := strings.Fields(s)
	if len(fields) > 1 && isAllDigits(fields[0]) {
		fields = fields[1:]
	}
	return strings.Join(fields, " ")
}

// DigitsOnly keeps only digit characters
func DigitsOnly(s string) string {
	var result strings.Builder
	for _, r := range s {
		if unicode.IsDigit(r) {
			result.WriteRune(r)
		}
	}
	return result.String()
}

// Alphanumeric keeps only alphanumeric characters
func Alphanumeric(s string) string {
	var result strings.Builder
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			result.WriteRune(r)
		}
	}
	return result.String()
}

func isAllDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

// Tokens splits a value into canonical tokens
func Tokens(s string) []string {
	return strings.Fields(Canonical(s))
}

// SplitMultiValue splits a ledger cell that carries several values
// (settled invoice numbers, PO references) on the delimiters seen in
// real workbooks: newlines, commas, semicolons and slashes.
func SplitMultiValue(s string) []string {
	parts := strings.FieldsFunc(s, func(r rune) bool {
		return r == '\n' || r == '\r' || r == ',' || r == ';' || r == '/'
	})
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Similarity scores two values 0..100 using token-sort Levenshtein
// ratio: both sides are canonicalized, tokenized, sorted and rejoined
// before the edit distance is taken. Token order never affects the
// score. Either side empty after canonicalization scores 0.
func Similarity(a, b string) float64 {
	sa := tokenSort(a)
	sb := tokenSort(b)
	if sa == "" || sb == "" {
		return 0
	}
	if sa == sb {
		return 100
	}
	dist := levenshtein.ComputeDistance(sa, sb)
	maxLen := len([]rune(sa))
	if l := len([]rune(sb)); l > maxLen {
		maxLen = l
	}
	ratio := (1 - float64(dist)/float64(maxLen)) * 100
	return math.Round(ratio*100) / 100
}

func tokenSort(s string) string {
	tokens := Tokens(s)
	sort.Strings(tokens)
	return strings.Join(tokens, " ")
}
