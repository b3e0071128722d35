package docx

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
)

// NormalStyle is the parsed default paragraph style definition.
type NormalStyle struct {
	FontName           string
	FontSizeHalfPoints int
	Spacing            *Spacing
}

// ParseNormalStyle reads the "Normal" (or default) paragraph style out of
// word/styles.xml.
func ParseNormalStyle(data []byte) (*NormalStyle, error) {
	hasNormal, err := stylesHaveNormal(data)
	if err != nil {
		return nil, err
	}

	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.Strict = false
	dec.Entity = xml.HTMLEntity

	ns := &NormalStyle{}
	var inTarget bool
	var depth int

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return ns, nil
		}
		if err != nil {
			return nil, fmt.Errorf("%w: parsing styles: %v", ErrMalformed, err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			name := localName(t.Name)
			if name == "style" {
				inTarget = isTargetStyle(t, hasNormal)
				depth = 0
				continue
			}
			if !inTarget {
				continue
			}
			depth++
			switch name {
			case "rFonts":
				if v, ok := attrValue(t, "ascii"); ok {
					ns.FontName = v
				}
			case "sz":
				ns.FontSizeHalfPoints = intAttr(t, "val")
			case "spacing":
				s := &Spacing{
					Before: intAttr(t, "before"),
					After:  intAttr(t, "after"),
					Line:   intAttr(t, "line"),
				}
				s.LineRule, _ = attrValue(t, "lineRule")
				ns.Spacing = s
			}
		case xml.EndElement:
			if localName(t.Name) == "style" {
				inTarget = false
			} else if inTarget && depth > 0 {
				depth--
			}
		}
	}
}
