package docx

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"sort"
	"strings"
)

// FormatSpec carries the profile values in OOXML units: geometry and
// spacing in twips, font size in half-points.
type FormatSpec struct {
	PageWidth  int
	PageHeight int

	MarginTop    int
	MarginRight  int
	MarginBottom int
	MarginLeft   int

	SpaceBefore int
	SpaceAfter  int
	Line        int

	FontName           string
	FontSizeHalfPoints int
}

// edit is a byte-range splice: replace data[start:end) with text.
// start == end is an insertion.
type edit struct {
	start int64
	end   int64
	text  string
}

func applyEdits(data []byte, edits []edit) ([]byte, error) {
	// Insertions sort ahead of a replacement starting at the same offset.
	sort.SliceStable(edits, func(i, j int) bool {
		if edits[i].start != edits[j].start {
			return edits[i].start < edits[j].start
		}
		return edits[i].start == edits[i].end && edits[j].start != edits[j].end
	})

	var out bytes.Buffer
	out.Grow(len(data) + len(edits)*64)
	var pos int64
	for _, e := range edits {
		if e.start < pos || e.end > int64(len(data)) {
			return nil, fmt.Errorf("overlapping formatting edits at offset %d", e.start)
		}
		out.Write(data[pos:e.start])
		out.WriteString(e.text)
		pos = e.end
	}
	out.Write(data[pos:])
	return out.Bytes(), nil
}

func escapeAttr(s string) string {
	var sb strings.Builder
	if err := xml.EscapeText(&sb, []byte(s)); err != nil {
		return s
	}
	return sb.String()
}

func (s FormatSpec) spacingTag() string {
	return fmt.Sprintf(`<w:spacing w:before="%d" w:after="%d" w:line="%d" w:lineRule="auto"/>`,
		s.SpaceBefore, s.SpaceAfter, s.Line)
}

func (s FormatSpec) pgSzTag() string {
	return fmt.Sprintf(`<w:pgSz w:w="%d" w:h="%d"/>`, s.PageWidth, s.PageHeight)
}

func (s FormatSpec) pgMarTag(header, footer, gutter string) string {
	return fmt.Sprintf(`<w:pgMar w:top="%d" w:right="%d" w:bottom="%d" w:left="%d" w:header="%s" w:footer="%s" w:gutter="%s"/>`,
		s.MarginTop, s.MarginRight, s.MarginBottom, s.MarginLeft,
		escapeAttr(header), escapeAttr(footer), escapeAttr(gutter))
}

func (s FormatSpec) rFontsTag() string {
	name := escapeAttr(s.FontName)
	return fmt.Sprintf(`<w:rFonts w:ascii="%s" w:hAnsi="%s" w:eastAsia="%s" w:cs="%s"/>`,
		name, name, name, name)
}

func (s FormatSpec) szTag() string {
	return fmt.Sprintf(`<w:sz w:val="%d"/>`, s.FontSizeHalfPoints)
}

func (s FormatSpec) szCsTag() string {
	return fmt.Sprintf(`<w:szCs w:val="%d"/>`, s.FontSizeHalfPoints)
}

// frame tracks one open element during the token walk, with the byte
// offsets needed to splice around it.
type frame struct {
	name        string
	start       int64 // offset of '<'
	openEnd     int64 // offset just past the start tag
	selfClosing bool

	// p
	hasPPr bool

	// pPr
	sawSpacing bool
	insertAt   int64

	// sectPr
	sawPgSz    bool
	sawPgMar   bool
	pgSzEnd    int64
	pgMarStart int64

	// style (styles.xml)
	isTarget bool
	hasRPr   bool
	rPrStart int64

	// rPr (styles.xml)
	sawRFonts bool
	sawSz     bool
	sawSzCs   bool
	rFontsEnd int64
	szEnd     int64

	// element scheduled for wholesale replacement
	replace     bool
	replacement string
}

// expandEmpty turns a self-closing tag's raw bytes into an open/close
// pair wrapping inner, preserving the original attributes.
func expandEmpty(raw []byte, inner string) string {
	open := strings.TrimSuffix(string(raw), "/>") + ">"
	name := tagName(raw)
	return open + inner + "</" + name + ">"
}

// tagName extracts the raw (possibly prefixed) element name from a start
// tag's bytes.
func tagName(raw []byte) string {
	s := strings.TrimPrefix(string(raw), "<")
	for i, r := range s {
		if r == ' ' || r == '\t' || r == '\n' || r == '\r' || r == '/' || r == '>' {
			return s[:i]
		}
	}
	return s
}

type walker struct {
	data  []byte
	dec   *xml.Decoder
	stack []frame
	edits []edit
}

func newWalker(data []byte) *walker {
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.Strict = false
	dec.Entity = xml.HTMLEntity
	return &walker{data: data, dec: dec}
}

func (w *walker) parent() *frame {
	if len(w.stack) == 0 {
		return nil
	}
	return &w.stack[len(w.stack)-1]
}

func (w *walker) push(f frame) {
	w.stack = append(w.stack, f)
}

func (w *walker) pop() frame {
	f := w.stack[len(w.stack)-1]
	w.stack = w.stack[:len(w.stack)-1]
	return f
}

// RewriteDocument applies the spec's geometry and paragraph spacing to
// word/document.xml. Every section's pgSz/pgMar and every paragraph's
// spacing (top level and inside table cells) is overwritten in place, or
// inserted where absent; no other byte of the part changes.
func RewriteDocument(data []byte, spec FormatSpec) ([]byte, error) {
	w := newWalker(data)

	for {
		startOff := w.dec.InputOffset()
		tok, err := w.dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: rewriting document: %v", ErrMalformed, err)
		}
		endOff := w.dec.InputOffset()

		switch t := tok.(type) {
		case xml.StartElement:
			name := localName(t.Name)
			f := frame{
				name:        name,
				start:       startOff,
				openEnd:     endOff,
				selfClosing: isSelfClosing(data, startOff, endOff),
				insertAt:    endOff,
			}
			parent := w.parent()
			switch name {
			case "pPr":
				if parent != nil && parent.name == "p" {
					parent.hasPPr = true
				}
			case "spacing":
				if parent != nil && parent.name == "pPr" {
					if parent.sawSpacing {
						// Duplicate spacing elements collapse into one.
						f.replace = true
						f.replacement = ""
					} else {
						parent.sawSpacing = true
						f.replace = true
						f.replacement = spec.spacingTag()
					}
				}
			case "pgSz":
				if parent != nil && parent.name == "sectPr" {
					parent.sawPgSz = true
					f.replace = true
					f.replacement = spec.pgSzTag()
				}
			case "pgMar":
				if parent != nil && parent.name == "sectPr" {
					parent.sawPgMar = true
					f.replace = true
					f.replacement = spec.pgMarTag(marginExtras(t))
				}
			}
			w.push(f)

		case xml.EndElement:
			if len(w.stack) == 0 {
				continue
			}
			f := w.pop()
			tokEnd := endOff
			parent := w.parent()

			if f.replace {
				w.edits = append(w.edits, edit{start: f.start, end: tokEnd, text: f.replacement})
				if parent != nil && parent.name == "sectPr" {
					switch f.name {
					case "pgSz":
						parent.pgSzEnd = tokEnd
					case "pgMar":
						parent.pgMarStart = f.start
					}
				}
				continue
			}

			switch f.name {
			case "pStyle":
				// Spacing slots in after the style reference.
				if parent != nil && parent.name == "pPr" {
					parent.insertAt = tokEnd
				}
			case "pPr":
				if parent != nil && parent.name == "p" && !f.sawSpacing {
					if f.selfClosing {
						raw := data[f.start:f.openEnd]
						w.edits = append(w.edits, edit{start: f.start, end: tokEnd, text: expandEmpty(raw, spec.spacingTag())})
					} else {
						w.edits = append(w.edits, edit{start: f.insertAt, end: f.insertAt, text: spec.spacingTag()})
					}
				}
			case "p":
				if !f.hasPPr {
					inner := "<w:pPr>" + spec.spacingTag() + "</w:pPr>"
					if f.selfClosing {
						raw := data[f.start:f.openEnd]
						w.edits = append(w.edits, edit{start: f.start, end: tokEnd, text: expandEmpty(raw, inner)})
					} else {
						w.edits = append(w.edits, edit{start: f.openEnd, end: f.openEnd, text: inner})
					}
				}
			case "sectPr":
				// Missing geometry is spliced next to its sibling so the
				// pgSz-before-pgMar sequence holds.
				switch {
				case f.sawPgSz && f.sawPgMar:
				case f.selfClosing:
					raw := data[f.start:f.openEnd]
					w.edits = append(w.edits, edit{start: f.start, end: tokEnd, text: expandEmpty(raw, spec.pgSzTag()+spec.pgMarTag("708", "708", "0"))})
				case !f.sawPgSz && !f.sawPgMar:
					w.edits = append(w.edits, edit{start: f.insertAt, end: f.insertAt, text: spec.pgSzTag() + spec.pgMarTag("708", "708", "0")})
				case !f.sawPgMar:
					w.edits = append(w.edits, edit{start: f.pgSzEnd, end: f.pgSzEnd, text: spec.pgMarTag("708", "708", "0")})
				default:
					w.edits = append(w.edits, edit{start: f.pgMarStart, end: f.pgMarStart, text: spec.pgSzTag()})
				}
			}
		}
	}

	return applyEdits(data, w.edits)
}

// marginExtras carries the header/footer/gutter margins through a pgMar
// replacement; they are not part of any profile.
func marginExtras(t xml.StartElement) (header, footer, gutter string) {
	header, footer, gutter = "708", "708", "0"
	if v, ok := attrValue(t, "header"); ok {
		header = v
	}
	if v, ok := attrValue(t, "footer"); ok {
		footer = v
	}
	if v, ok := attrValue(t, "gutter"); ok {
		gutter = v
	}
	return header, footer, gutter
}

// isSelfClosing reports whether the start tag at data[start:end) closes
// itself.
func isSelfClosing(data []byte, start, end int64) bool {
	if end-start < 2 || end > int64(len(data)) {
		return false
	}
	return data[end-2] == '/' && data[end-1] == '>'
}

// RewriteStyles overwrites the default paragraph style's font and spacing
// in word/styles.xml. The style named "Normal" is preferred; the style
// flagged as the paragraph default is the fallback.
func RewriteStyles(data []byte, spec FormatSpec) ([]byte, error) {
	hasNormal, err := stylesHaveNormal(data)
	if err != nil {
		return nil, err
	}

	w := newWalker(data)
	var targetFound bool

	for {
		startOff := w.dec.InputOffset()
		tok, err := w.dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: rewriting styles: %v", ErrMalformed, err)
		}
		endOff := w.dec.InputOffset()

		switch t := tok.(type) {
		case xml.StartElement:
			name := localName(t.Name)
			f := frame{
				name:        name,
				start:       startOff,
				openEnd:     endOff,
				selfClosing: isSelfClosing(data, startOff, endOff),
				insertAt:    endOff,
			}
			parent := w.parent()
			switch name {
			case "style":
				f.isTarget = isTargetStyle(t, hasNormal)
				if f.isTarget {
					targetFound = true
				}
			case "pPr":
				// nothing extra; handled on pop
			case "rPr":
				if parent != nil && parent.name == "style" && parent.isTarget {
					parent.hasRPr = true
					parent.rPrStart = startOff
				}
			case "spacing":
				if parent != nil && parent.name == "pPr" && w.grandparentIsTarget() {
					parent.sawSpacing = true
					f.replace = true
					f.replacement = spec.spacingTag()
				}
			case "rFonts":
				if parent != nil && parent.name == "rPr" && w.grandparentIsTarget() {
					parent.sawRFonts = true
					f.replace = true
					f.replacement = spec.rFontsTag()
				}
			case "sz":
				if parent != nil && parent.name == "rPr" && w.grandparentIsTarget() {
					parent.sawSz = true
					f.replace = true
					f.replacement = spec.szTag()
				}
			case "szCs":
				if parent != nil && parent.name == "rPr" && w.grandparentIsTarget() {
					parent.sawSzCs = true
					f.replace = true
					f.replacement = spec.szCsTag()
				}
			}
			w.push(f)

		case xml.EndElement:
			if len(w.stack) == 0 {
				continue
			}
			f := w.pop()
			tokEnd := endOff
			parent := w.parent()

			if f.replace {
				w.edits = append(w.edits, edit{start: f.start, end: tokEnd, text: f.replacement})
				if parent != nil && parent.name == "rPr" {
					switch f.name {
					case "rFonts":
						parent.rFontsEnd = tokEnd
					case "sz":
						parent.szEnd = tokEnd
					}
				}
				continue
			}

			switch f.name {
			case "pPr":
				if parent != nil && parent.name == "style" && parent.isTarget {
					parent.hasPPr = true
					if !f.sawSpacing {
						if f.selfClosing {
							raw := data[f.start:f.openEnd]
							w.edits = append(w.edits, edit{start: f.start, end: tokEnd, text: expandEmpty(raw, spec.spacingTag())})
						} else {
							w.edits = append(w.edits, edit{start: f.insertAt, end: f.insertAt, text: spec.spacingTag()})
						}
					}
				}
			case "rPr":
				if parent != nil && parent.name == "style" && parent.isTarget {
					if f.selfClosing {
						if !f.sawRFonts || !f.sawSz || !f.sawSzCs {
							raw := data[f.start:f.openEnd]
							w.edits = append(w.edits, edit{start: f.start, end: tokEnd, text: expandEmpty(raw, spec.rFontsTag()+spec.szTag()+spec.szCsTag())})
						}
						continue
					}
					// Each missing element is spliced next to its present
					// sibling, keeping the rFonts, sz, szCs sequence.
					if !f.sawRFonts {
						w.edits = append(w.edits, edit{start: f.insertAt, end: f.insertAt, text: spec.rFontsTag()})
					}
					szAnchor := f.insertAt
					if f.sawRFonts {
						szAnchor = f.rFontsEnd
					}
					if !f.sawSz {
						w.edits = append(w.edits, edit{start: szAnchor, end: szAnchor, text: spec.szTag()})
					}
					szCsAnchor := szAnchor
					if f.sawSz {
						szCsAnchor = f.szEnd
					}
					if !f.sawSzCs {
						w.edits = append(w.edits, edit{start: szCsAnchor, end: szCsAnchor, text: spec.szCsTag()})
					}
				}
			case "styles":
				// No default paragraph style at all: define one so the
				// profile font still lands somewhere authoritative.
				if !targetFound {
					def := `<w:style w:type="paragraph" w:default="1" w:styleId="Normal"><w:name w:val="Normal"/>` +
						"<w:pPr>" + spec.spacingTag() + "</w:pPr>" +
						"<w:rPr>" + spec.rFontsTag() + spec.szTag() + spec.szCsTag() + "</w:rPr>" +
						"</w:style>"
					if f.selfClosing {
						raw := data[f.start:f.openEnd]
						w.edits = append(w.edits, edit{start: f.start, end: tokEnd, text: expandEmpty(raw, def)})
					} else {
						w.edits = append(w.edits, edit{start: startOff, end: startOff, text: def})
					}
				}
			case "style":
				if !f.isTarget {
					continue
				}
				pPrBlock := "<w:pPr>" + spec.spacingTag() + "</w:pPr>"
				rPrBlock := "<w:rPr>" + spec.rFontsTag() + spec.szTag() + spec.szCsTag() + "</w:rPr>"
				switch {
				case f.selfClosing && !f.hasPPr && !f.hasRPr:
					raw := data[f.start:f.openEnd]
					w.edits = append(w.edits, edit{start: f.start, end: tokEnd, text: expandEmpty(raw, pPrBlock+rPrBlock)})
				case !f.hasPPr && !f.hasRPr:
					// startOff here is the style's end tag position.
					w.edits = append(w.edits, edit{start: startOff, end: startOff, text: pPrBlock + rPrBlock})
				case !f.hasPPr:
					// pPr precedes rPr in a style definition.
					w.edits = append(w.edits, edit{start: f.rPrStart, end: f.rPrStart, text: pPrBlock})
				case !f.hasRPr:
					w.edits = append(w.edits, edit{start: startOff, end: startOff, text: rPrBlock})
				}
			}
		}
	}

	return applyEdits(data, w.edits)
}

// grandparentIsTarget reports whether the frame two levels up is the
// default style being rewritten.
func (w *walker) grandparentIsTarget() bool {
	if len(w.stack) < 2 {
		return false
	}
	gp := w.stack[len(w.stack)-2]
	return gp.name == "style" && gp.isTarget
}

func isTargetStyle(t xml.StartElement, hasNormal bool) bool {
	typ, _ := attrValue(t, "type")
	if typ != "paragraph" {
		return false
	}
	if hasNormal {
		id, _ := attrValue(t, "styleId")
		return id == "Normal"
	}
	def, _ := attrValue(t, "default")
	return def == "1" || def == "true"
}

// stylesHaveNormal scans for a paragraph style with styleId "Normal".
func stylesHaveNormal(data []byte) (bool, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.Strict = false
	dec.Entity = xml.HTMLEntity
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return false, nil
		}
		if err != nil {
			return false, fmt.Errorf("%w: scanning styles: %v", ErrMalformed, err)
		}
		if t, ok := tok.(xml.StartElement); ok && localName(t.Name) == "style" {
			typ, _ := attrValue(t, "type")
			id, _ := attrValue(t, "styleId")
			if typ == "paragraph" && id == "Normal" {
				return true, nil
			}
		}
	}
}
