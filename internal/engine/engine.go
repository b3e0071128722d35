// Package engine applies a formatting profile to a DOCX document while
// guaranteeing that the text content is unchanged. The pre/post text
// equality check runs on every invocation; it is the load-bearing
// correctness property of the whole system, not a test-only assertion.
package engine

import (
	"errors"
	"fmt"

	"github.com/docforge/docforge/internal/docx"
	"github.com/docforge/docforge/internal/profile"
)

// ErrTextIntegrity marks a detected mismatch between the extracted text
// before and after transformation. It indicates an engine defect, never a
// user error, and must not be retried.
var ErrTextIntegrity = errors.New("text integrity violation")

// Result is the outcome of a successful format-only transformation.
type Result struct {
	Output        []byte
	ExtractedText string
}

// Engine rewrites document formatting according to a named profile.
type Engine struct {
	registry *profile.Registry
}

// New creates an engine bound to a profile registry.
func New(registry *profile.Registry) *Engine {
	return &Engine{registry: registry}
}

// ApplyFormatOnly parses the input document, overwrites section geometry,
// the default style's font, and all paragraph spacing from the profile,
// verifies text preservation, and serializes the result.
//
// Formatting is a total overwrite, never a merge, so applying the same
// profile twice changes nothing further.
func (e *Engine) ApplyFormatOnly(input []byte, profileName string) (*Result, error) {
	prof, err := e.registry.Lookup(profileName)
	if err != nil {
		return nil, err
	}

	pkg, err := docx.Open(input)
	if err != nil {
		return nil, err
	}
	model, err := docx.ParseDocument(pkg.DocumentXML)
	if err != nil {
		return nil, err
	}
	preText := model.PlainText()

	spec := formatSpec(prof)
	documentXML, err := docx.RewriteDocument(pkg.DocumentXML, spec)
	if err != nil {
		return nil, fmt.Errorf("rewriting document part: %w", err)
	}
	stylesXML, err := docx.RewriteStyles(pkg.StylesXML, spec)
	if err != nil {
		return nil, fmt.Errorf("rewriting styles part: %w", err)
	}

	output, err := pkg.Save(documentXML, stylesXML)
	if err != nil {
		return nil, fmt.Errorf("serializing document: %w", err)
	}

	// Re-parse the serialized output rather than the mutated part, so the
	// check also covers serialization defects.
	outPkg, err := docx.Open(output)
	if err != nil {
		return nil, fmt.Errorf("%w: output unreadable: %v", ErrTextIntegrity, err)
	}
	outModel, err := docx.ParseDocument(outPkg.DocumentXML)
	if err != nil {
		return nil, fmt.Errorf("%w: output unparsable: %v", ErrTextIntegrity, err)
	}
	postText := outModel.PlainText()
	if postText != preText {
		return nil, fmt.Errorf("%w: extracted text changed (%d chars before, %d after)",
			ErrTextIntegrity, len(preText), len(postText))
	}

	return &Result{Output: output, ExtractedText: preText}, nil
}

func formatSpec(p profile.Profile) docx.FormatSpec {
	return docx.FormatSpec{
		PageWidth:          profile.CmToTwips(p.PageWidthCm),
		PageHeight:         profile.CmToTwips(p.PageHeightCm),
		MarginTop:          profile.CmToTwips(p.Margins.Top),
		MarginRight:        profile.CmToTwips(p.Margins.Right),
		MarginBottom:       profile.CmToTwips(p.Margins.Bottom),
		MarginLeft:         profile.CmToTwips(p.Margins.Left),
		SpaceBefore:        profile.PtToTwips(p.SpaceBeforePt),
		SpaceAfter:         profile.PtToTwips(p.SpaceAfterPt),
		Line:               profile.LineSpacingTwips(p.LineSpacing),
		FontName:           p.FontName,
		FontSizeHalfPoints: profile.PtToHalfPoints(p.FontSizePt),
	}
}
