package docx

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Document is the in-memory structural model of a document body: ordered
// block-level elements plus the geometry of every section. It is built
// for one engine invocation and never shared between jobs.
type Document struct {
	Blocks   []Block
	Sections []Section
}

// Block is a block-level element: *Paragraph or *Table.
type Block interface {
	block()
}

// Paragraph is an ordered sequence of runs plus the paragraph-level
// properties the engine cares about.
type Paragraph struct {
	StyleID string
	Runs    []Run
	Spacing *Spacing
}

func (*Paragraph) block() {}

// Run carries a contiguous piece of text. Tabs and line breaks inside the
// run are folded into the text as \t and \n.
type Run struct {
	Text string
}

// Spacing mirrors w:spacing on a paragraph, in twips.
type Spacing struct {
	Before   int
	After    int
	Line     int
	LineRule string
}

// Table is a grid of cells; each cell holds its own block sequence.
type Table struct {
	Rows []TableRow
}

func (*Table) block() {}

// TableRow is one w:tr.
type TableRow struct {
	Cells []TableCell
}

// TableCell is one w:tc with its nested blocks (paragraphs and tables).
type TableCell struct {
	Blocks []Block
}

// Section holds the page geometry of one w:sectPr, in twips.
type Section struct {
	PageWidth    int
	PageHeight   int
	MarginTop    int
	MarginRight  int
	MarginBottom int
	MarginLeft   int
}

// localName strips any namespace prefix remaining on an element or
// attribute name. The decoder resolves declared prefixes itself; this
// covers undeclared ones.
func localName(name xml.Name) string {
	if idx := strings.Index(name.Local, ":"); idx != -1 {
		return name.Local[idx+1:]
	}
	return name.Local
}

func attrValue(t xml.StartElement, name string) (string, bool) {
	for _, a := range t.Attr {
		if localName(a.Name) == name {
			return a.Value, true
		}
	}
	return "", false
}

func intAttr(t xml.StartElement, name string) int {
	v, ok := attrValue(t, name)
	if !ok {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return n
}

// ParseDocument builds the structural model from word/document.xml. Body
// content order is preserved; tables nest recursively.
func ParseDocument(data []byte) (*Document, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.Strict = false
	dec.Entity = xml.HTMLEntity

	doc := &Document{}
	var inBody bool
	var depth int

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: parsing document body: %v", ErrMalformed, err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			name := localName(t.Name)
			if name == "body" {
				inBody = true
				depth = 0
				continue
			}
			if !inBody {
				continue
			}
			if depth == 0 {
				switch name {
				case "p":
					para, err := parseParagraph(dec, doc)
					if err != nil {
						return nil, err
					}
					doc.Blocks = append(doc.Blocks, para)
				case "tbl":
					tbl, err := parseTable(dec, doc)
					if err != nil {
						return nil, err
					}
					doc.Blocks = append(doc.Blocks, tbl)
				case "sectPr":
					sect, err := parseSection(dec, t)
					if err != nil {
						return nil, err
					}
					doc.Sections = append(doc.Sections, sect)
				default:
					depth++
				}
			} else {
				depth++
			}
		case xml.EndElement:
			name := localName(t.Name)
			if name == "body" {
				inBody = false
			} else if inBody && depth > 0 {
				depth--
			}
		}
	}

	return doc, nil
}

// parseParagraph consumes a w:p element. Runs inside hyperlinks and other
// wrappers count the same as direct children. A sectPr inside the
// paragraph properties (a section break) is recorded on the document.
func parseParagraph(dec *xml.Decoder, doc *Document) (*Paragraph, error) {
	para := &Paragraph{}
	var depth int

	for {
		tok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("%w: parsing paragraph: %v", ErrMalformed, err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch localName(t.Name) {
			case "pStyle":
				if v, ok := attrValue(t, "val"); ok {
					para.StyleID = v
				}
				depth++
			case "spacing":
				// Character spacing under rPr shares the element name;
				// only the paragraph-level one carries these attributes.
				_, hasBefore := attrValue(t, "before")
				_, hasAfter := attrValue(t, "after")
				_, hasLine := attrValue(t, "line")
				if para.Spacing == nil && (hasBefore || hasAfter || hasLine) {
					s := &Spacing{
						Before: intAttr(t, "before"),
						After:  intAttr(t, "after"),
						Line:   intAttr(t, "line"),
					}
					s.LineRule, _ = attrValue(t, "lineRule")
					para.Spacing = s
				}
				depth++
			case "sectPr":
				sect, err := parseSection(dec, t)
				if err != nil {
					return nil, err
				}
				doc.Sections = append(doc.Sections, sect)
			case "r":
				run, err := parseRun(dec)
				if err != nil {
					return nil, err
				}
				para.Runs = append(para.Runs, run)
			default:
				depth++
			}
		case xml.EndElement:
			if depth == 0 {
				if localName(t.Name) == "p" {
					return para, nil
				}
				continue
			}
			depth--
		}
	}
}

// parseRun consumes a w:r element, folding tabs and breaks into the text.
func parseRun(dec *xml.Decoder) (Run, error) {
	var text strings.Builder
	var depth int
	var inText bool

	for {
		tok, err := dec.Token()
		if err != nil {
			return Run{}, fmt.Errorf("%w: parsing run: %v", ErrMalformed, err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch localName(t.Name) {
			case "t":
				inText = true
			case "tab":
				text.WriteByte('\t')
			case "br":
				text.WriteByte('\n')
			}
			depth++
		case xml.CharData:
			if inText {
				text.Write(t)
			}
		case xml.EndElement:
			if localName(t.Name) == "t" {
				inText = false
			}
			if depth == 0 {
				return Run{Text: text.String()}, nil
			}
			depth--
		}
	}
}

// parseTable consumes a w:tbl element, recursing into nested tables.
func parseTable(dec *xml.Decoder, doc *Document) (*Table, error) {
	tbl := &Table{}
	var depth int
	var row *TableRow
	var cell *TableCell

	for {
		tok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("%w: parsing table: %v", ErrMalformed, err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch localName(t.Name) {
			case "tr":
				tbl.Rows = append(tbl.Rows, TableRow{})
				row = &tbl.Rows[len(tbl.Rows)-1]
			case "tc":
				if row != nil {
					row.Cells = append(row.Cells, TableCell{})
					cell = &row.Cells[len(row.Cells)-1]
				}
			case "p":
				if cell != nil {
					para, err := parseParagraph(dec, doc)
					if err != nil {
						return nil, err
					}
					cell.Blocks = append(cell.Blocks, para)
				} else {
					depth++
				}
			case "tbl":
				if cell != nil {
					nested, err := parseTable(dec, doc)
					if err != nil {
						return nil, err
					}
					cell.Blocks = append(cell.Blocks, nested)
				} else {
					depth++
				}
			default:
				depth++
			}
		case xml.EndElement:
			switch localName(t.Name) {
			case "tr":
				row = nil
			case "tc":
				cell = nil
			default:
				if depth == 0 {
					if localName(t.Name) == "tbl" {
						return tbl, nil
					}
					continue
				}
				depth--
			}
		}
	}
}

// parseSection consumes a w:sectPr element.
func parseSection(dec *xml.Decoder, start xml.StartElement) (Section, error) {
	var sect Section
	var depth int

	// Self-closing sectPr yields its end element immediately.
	for {
		tok, err := dec.Token()
		if err != nil {
			return sect, fmt.Errorf("%w: parsing section properties: %v", ErrMalformed, err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch localName(t.Name) {
			case "pgSz":
				sect.PageWidth = intAttr(t, "w")
				sect.PageHeight = intAttr(t, "h")
			case "pgMar":
				sect.MarginTop = intAttr(t, "top")
				sect.MarginRight = intAttr(t, "right")
				sect.MarginBottom = intAttr(t, "bottom")
				sect.MarginLeft = intAttr(t, "left")
			}
			depth++
		case xml.EndElement:
			if depth == 0 {
				if localName(t.Name) == localName(start.Name) {
					return sect, nil
				}
				continue
			}
			depth--
		}
	}
}

// PlainText concatenates all run text in document order, including inside
// every table cell. Paragraphs are trimmed, empty ones skipped, and the
// result joined with a single newline.
func (d *Document) PlainText() string {
	var lines []string
	collectText(d.Blocks, &lines)
	return strings.Join(lines, "\n")
}

func collectText(blocks []Block, lines *[]string) {
	for _, b := range blocks {
		switch v := b.(type) {
		case *Paragraph:
			var sb strings.Builder
			for _, r := range v.Runs {
				sb.WriteString(r.Text)
			}
			if text := strings.TrimSpace(sb.String()); text != "" {
				*lines = append(*lines, text)
			}
		case *Table:
			for _, row := range v.Rows {
				for _, cell := range row.Cells {
					collectText(cell.Blocks, lines)
				}
			}
		}
	}
}

// Paragraphs flattens every paragraph in document order, including those
// nested in table cells.
func (d *Document) Paragraphs() []*Paragraph {
	var out []*Paragraph
	collectParagraphs(d.Blocks, &out)
	return out
}

func collectParagraphs(blocks []Block, out *[]*Paragraph) {
	for _, b := range blocks {
		switch v := b.(type) {
		case *Paragraph:
			*out = append(*out, v)
		case *Table:
			for _, row := range v.Rows {
				for _, cell := range row.Cells {
					collectParagraphs(cell.Blocks, out)
				}
			}
		}
	}
}
