package profile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryLookup(t *testing.T) {
	r := NewRegistry()

	std, err := r.Lookup("standard_clean")
	require.NoError(t, err)
	assert.Equal(t, 21.0, std.PageWidthCm)
	assert.Equal(t, 29.7, std.PageHeightCm)
	assert.Equal(t, 2.54, std.Margins.Top)
	assert.Equal(t, "Calibri", std.FontName)
	assert.Equal(t, 11.0, std.FontSizePt)
	assert.Equal(t, 1.15, std.LineSpacing)
	assert.Equal(t, 6.0, std.SpaceAfterPt)

	compact, err := r.Lookup("compact_clean")
	require.NoError(t, err)
	assert.Equal(t, 2.0, compact.Margins.Left)
	assert.Equal(t, 1.0, compact.LineSpacing)
	assert.Equal(t, 4.0, compact.SpaceAfterPt)
}

func TestRegistryLookupUnknown(t *testing.T) {
	r := NewRegistry()

	_, err := r.Lookup("fancy")
	require.ErrorIs(t, err, ErrUnknownProfile)

	_, err = r.Lookup("")
	require.ErrorIs(t, err, ErrUnknownProfile)
}

func TestRegistryNames(t *testing.T) {
	assert.ElementsMatch(t, []string{"standard_clean", "compact_clean"}, NewRegistry().Names())
}

func TestDefaultNameRegistered(t *testing.T) {
	_, err := NewRegistry().Lookup(DefaultName)
	require.NoError(t, err)
}

func TestConversions(t *testing.T) {
	assert.Equal(t, 11906, CmToTwips(21.0))
	assert.Equal(t, 16838, CmToTwips(29.7))
	assert.Equal(t, 1440, CmToTwips(2.54))
	assert.Equal(t, 1134, CmToTwips(2.0))

	assert.Equal(t, 120, PtToTwips(6))
	assert.Equal(t, 0, PtToTwips(0))

	assert.Equal(t, 22, PtToHalfPoints(11))
	assert.Equal(t, 21, PtToHalfPoints(10.5))

	assert.Equal(t, 276, LineSpacingTwips(1.15))
	assert.Equal(t, 240, LineSpacingTwips(1.0))
}
