// Package profile holds the catalog of named formatting profiles.
// Profiles are pure data: page geometry, margins, the default font and
// paragraph spacing that the engine stamps onto a document wholesale.
package profile

import (
	"fmt"
	"math"
)

// Margins are the four page margins in centimeters.
type Margins struct {
	Top    float64
	Bottom float64
	Left   float64
	Right  float64
}

// Profile is an immutable bundle of formatting parameters applied to a
// document as a total overwrite.
type Profile struct {
	Name string

	// Page geometry in centimeters.
	PageWidthCm  float64
	PageHeightCm float64
	Margins      Margins

	// Default ("Normal") style font.
	FontName   string
	FontSizePt float64

	// Line spacing multiplier (1.0 = single, 1.15 = Word default).
	LineSpacing float64

	// Paragraph spacing in points.
	SpaceBeforePt float64
	SpaceAfterPt  float64
}

// DefaultName is the profile used when a job does not name one.
const DefaultName = "standard_clean"

// ErrUnknownProfile is returned by Lookup for names not in the registry.
// An unknown name is a caller error, never a silent fallback.
var ErrUnknownProfile = fmt.Errorf("unknown formatting profile")

// Registry is the immutable profile catalog, built once at process start.
// Lookups are read-only, so it is safe under concurrent job processing.
type Registry struct {
	profiles map[string]Profile
}

// NewRegistry builds the registry with the fixed set of presets.
func NewRegistry() *Registry {
	presets := []Profile{
		{
			Name:          "standard_clean",
			PageWidthCm:   21.0, // A4
			PageHeightCm:  29.7,
			Margins:       Margins{Top: 2.54, Bottom: 2.54, Left: 2.54, Right: 2.54},
			FontName:      "Calibri",
			FontSizePt:    11,
			LineSpacing:   1.15,
			SpaceBeforePt: 0,
			SpaceAfterPt:  6,
		},
		{
			Name:          "compact_clean",
			PageWidthCm:   21.0, // A4
			PageHeightCm:  29.7,
			Margins:       Margins{Top: 2.0, Bottom: 2.0, Left: 2.0, Right: 2.0},
			FontName:      "Calibri",
			FontSizePt:    11,
			LineSpacing:   1.0,
			SpaceBeforePt: 0,
			SpaceAfterPt:  4,
		},
	}

	m := make(map[string]Profile, len(presets))
	for _, p := range presets {
		m[p.Name] = p
	}
	return &Registry{profiles: m}
}

// Lookup returns the profile registered under name.
func (r *Registry) Lookup(name string) (Profile, error) {
	p, ok := r.profiles[name]
	if !ok {
		return Profile{}, fmt.Errorf("%w: %q", ErrUnknownProfile, name)
	}
	return p, nil
}

// Names returns the registered profile names. Order is not defined.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.profiles))
	for name := range r.profiles {
		names = append(names, name)
	}
	return names
}

// OOXML stores page geometry and paragraph spacing in twips (twentieths
// of a point, 1440 per inch) and font sizes in half-points.

// CmToTwips converts centimeters to twips.
func CmToTwips(cm float64) int {
	return int(math.Round(cm / 2.54 * 1440))
}

// PtToTwips converts points to twips.
func PtToTwips(pt float64) int {
	return int(math.Round(pt * 20))
}

// PtToHalfPoints converts points to half-points.
func PtToHalfPoints(pt float64) int {
	return int(math.Round(pt * 2))
}

// LineSpacingTwips converts a line-spacing multiplier to the w:line value
// used with lineRule="auto" (240 twips per single line).
func LineSpacingTwips(multiplier float64) int {
	return int(math.Round(multiplier * 240))
}
