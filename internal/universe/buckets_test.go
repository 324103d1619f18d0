package universe

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBucketLabel(t *testing.T) {
	tests := []struct {
		label string
		want  BucketRange
		ok    bool
	}{
		{"10-20", BucketRange{Low: 10, High: 20}, true},
		{"10–20", BucketRange{Low: 10, High: 20}, true},
		{"$1,000-$2,000", BucketRange{Low: 1000, High: 2000}, true},
		{"below 5", BucketRange{High: 5, OpenLow: true}, true},
		{"less than 5", BucketRange{High: 5, OpenLow: true}, true},
		{"<5", BucketRange{High: 5, OpenLow: true}, true},
		{"5 or less", BucketRange{High: 5, OpenLow: true}, true},
		{"20+", BucketRange{Low: 20, OpenHigh: true}, true},
		{"20 or more", BucketRange{Low: 20, OpenHigh: true}, true},
		{"above 20", BucketRange{Low: 20, OpenHigh: true}, true},
		{"2.5-3.5", BucketRange{Low: 2.5, High: 3.5}, true},
		{"Team A", BucketRange{}, false},
		{"20-10", BucketRange{}, false}, // inverted
		{"", BucketRange{}, false},
	}
	for _, tc := range tests {
		got, ok := ParseBucketLabel(tc.label)
		assert.Equal(t, tc.ok, ok, "label %q", tc.label)
		if tc.ok {
			assert.Equal(t, tc.want, got, "label %q", tc.label)
		}
	}
}

func TestLooksExhaustive(t *testing.T) {
	checker := defaultShapeChecker{}

	t.Run("contiguous tiling with open ends", func(t *testing.T) {
		assert.True(t, checker.LooksExhaustive([]BucketRange{
			{High: 10, OpenLow: true},
			{Low: 10, High: 20},
			{Low: 20, High: 30},
			{Low: 30, OpenHigh: true},
		}))
	})

	t.Run("inclusive labels with unit gaps", func(t *testing.T) {
		assert.True(t, checker.LooksExhaustive([]BucketRange{
			{High: 9, OpenLow: true},
			{Low: 10, High: 19},
			{Low: 20, High: 29},
			{Low: 30, OpenHigh: true},
		}))
	})

	t.Run("unordered input", func(t *testing.T) {
		assert.True(t, checker.LooksExhaustive([]BucketRange{
			{Low: 20, OpenHigh: true},
			{High: 10, OpenLow: true},
			{Low: 10, High: 20},
		}))
	})

	t.Run("gap in the middle", func(t *testing.T) {
		assert.False(t, checker.LooksExhaustive([]BucketRange{
			{High: 10, OpenLow: true},
			{Low: 15, High: 20},
			{Low: 20, OpenHigh: true},
		}))
	})

	t.Run("missing open bottom", func(t *testing.T) {
		assert.False(t, checker.LooksExhaustive([]BucketRange{
			{Low: 0, High: 10},
			{Low: 10, OpenHigh: true},
		}))
	})

	t.Run("missing open top", func(t *testing.T) {
		assert.False(t, checker.LooksExhaustive([]BucketRange{
			{High: 10, OpenLow: true},
			{Low: 10, High: 20},
		}))
	})

	t.Run("overlap", func(t *testing.T) {
		assert.False(t, checker.LooksExhaustive([]BucketRange{
			{High: 10, OpenLow: true},
			{Low: 5, High: 20},
			{Low: 20, OpenHigh: true},
		}))
	})

	t.Run("single bucket", func(t *testing.T) {
		assert.False(t, checker.LooksExhaustive([]BucketRange{{OpenLow: true, OpenHigh: true}}))
	})
}

func TestNormalizeLabel(t *testing.T) {
	assert.Equal(t, "how-many-goals", normalizeLabel("How many goals?"))
	assert.Equal(t, "a-b", normalizeLabel("  A -- B  "))
	require.Equal(t, "", normalizeLabel("???"))
}
