package normalizers

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanonical(t *testing.T) {
	t.Run("should lowercase and collapse punctuation to single spaces", func(t *testing.T) {
		assert.Equal(t, "abc ltd t a cornerstone", Canonical("ABC Ltd. (t/a Cornerstone)"))
	})

	t.Run("should collapse whitespace runs", func(t *testing.T) {
		assert.Equal(t, "high street 42", Canonical("  High   Street\t42 "))
	})

	t.Run("should return empty for punctuation only input", func(t *testing.T) {
		assert.Equal(t, "", Canonical("-- / --"))
	})
}

func TestNormalizePOKey(t *testing.T) {
	t.Run("should reduce variants to the same key", func(t *testing.T) {
		assert.Equal(t, "CJL316", NormalizePOKey("PO# CJL-316"))
		assert.Equal(t, "CJL316", NormalizePOKey("cjl316"))
		assert.Equal(t, "CJL316", NormalizePOKey(" CJL 316 "))
	})

	t.Run("should return empty for empty input", func(t *testing.T) {
		assert.Equal(t, "", NormalizePOKey(""))
	})
}

func TestNormalizeStoreName(t *testing.T) {
	t.Run("should drop a leading store number prefix", func(t *testing.T) {
		assert.Equal(t, "high street", NormalizeStoreName("0042 - High Street"))
	})

	t.Run("should keep names without a numeric prefix", func(t *testing.T) {
		assert.Equal(t, "high street", NormalizeStoreName("High Street"))
	})

	t.Run("should not drop a purely numeric name", func(t *testing.T) {
		assert.Equal(t, "42", NormalizeStoreName("42"))
	})
}

func TestSplitMultiValue(t *testing.T) {
	t.Run("should split on newlines commas semicolons and slashes", func(t *testing.T) {
		assert.Equal(t, []string{"INV-1", "INV-2", "INV-3", "INV-4"}, SplitMultiValue("INV-1\nINV-2, INV-3; INV-4"))
	})

	t.Run("should drop empty segments", func(t *testing.T) {
		assert.Equal(t, []string{"A"}, SplitMultiValue(" A \n\n"))
		assert.Empty(t, SplitMultiValue("  "))
	})
}

func TestSimilarity(t *testing.T) {
	t.Run("should score identical values 100", func(t *testing.T) {
		assert.Equal(t, float64(100), Similarity("Cornerstone Maintenance", "Cornerstone Maintenance"))
	})

	t.Run("should ignore token order", func(t *testing.T) {
		assert.Equal(t, float64(100), Similarity("Street High", "High Street"))
	})

	t.Run("should ignore case and punctuation", func(t *testing.T) {
		assert.Equal(t, float64(100), Similarity("ACME, Ltd.", "acme ltd"))
	})

	t.Run("should score empty input 0", func(t *testing.T) {
		assert.Equal(t, float64(0), Similarity("", "anything"))
		assert.Equal(t, float64(0), Similarity("anything", ""))
		assert.Equal(t, float64(0), Similarity("", ""))
	})

	t.Run("should stay within 0..100 for partial matches", func(t *testing.T) {
		score := Similarity("Cornerstone Maintenance Ltd", "Cornerstone Services")
		assert.Greater(t, score, float64(0))
		assert.Less(t, score, float64(100))
	})

	t.Run("should score closer strings higher", func(t *testing.T) {
		near := Similarity("High Street Store", "High Street Stores")
		far := Similarity("High Street Store", "Riverside Depot")
		assert.Greater(t, near, far)
	})
}

func TestApplyChain(t *testing.T) {
	t.Run("should apply normalizers in sequence", func(t *testing.T) {
		assert.Equal(t, "abc ltd", ApplyChain("  ABC Ltd. ", "canonical"))
	})

	t.Run("should pass through unknown names", func(t *testing.T) {
		assert.Equal(t, "x", Apply("x", "nope"))
	})
}
