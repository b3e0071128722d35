// Package docx reads, models, and rewrites DOCX (WordprocessingML)
// packages. Formatting changes are byte-range splices into the original
// XML parts: text content and every untouched zip entry pass through
// bit-for-bit.
package docx

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
)

// ErrMalformed marks input that is not a valid DOCX package or is
// missing a required part.
var ErrMalformed = errors.New("malformed document")

const (
	documentPart = "word/document.xml"
	stylesPart   = "word/styles.xml"
)

// Package is an opened DOCX container. The document and styles parts are
// held in memory; all other entries are only ever copied raw.
type Package struct {
	files []*zip.File

	DocumentXML []byte
	StylesXML   []byte
}

// Open reads a DOCX package from bytes. It fails with ErrMalformed if the
// data is not a zip archive or lacks the document body or styles part.
func Open(data []byte) (*Package, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: opening zip container: %v", ErrMalformed, err)
	}

	p := &Package{files: zr.File}

	p.DocumentXML, err = p.readPart(documentPart)
	if err != nil {
		return nil, err
	}
	p.StylesXML, err = p.readPart(stylesPart)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Package) readPart(name string) ([]byte, error) {
	for _, f := range p.files {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("%w: opening %s: %v", ErrMalformed, name, err)
		}
		defer rc.Close()
		data, err := io.ReadAll(rc)
		if err != nil {
			return nil, fmt.Errorf("%w: reading %s: %v", ErrMalformed, name, err)
		}
		return data, nil
	}
	return nil, fmt.Errorf("%w: missing %s", ErrMalformed, name)
}

// Save writes the package back out with the given document and styles
// parts. Entries are written in their original order; untouched entries
// are copied raw so their compressed bytes are identical to the input.
func (p *Package) Save(documentXML, stylesXML []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	for _, f := range p.files {
		switch f.Name {
		case documentPart, stylesPart:
			hdr := &zip.FileHeader{
				Name:     f.Name,
				Method:   f.Method,
				Modified: f.Modified,
			}
			w, err := zw.CreateHeader(hdr)
			if err != nil {
				return nil, fmt.Errorf("creating %s: %w", f.Name, err)
			}
			content := documentXML
			if f.Name == stylesPart {
				content = stylesXML
			}
			if _, err := w.Write(content); err != nil {
				return nil, fmt.Errorf("writing %s: %w", f.Name, err)
			}
		default:
			r, err := f.OpenRaw()
			if err != nil {
				return nil, fmt.Errorf("opening %s: %w", f.Name, err)
			}
			hdr := f.FileHeader
			w, err := zw.CreateRaw(&hdr)
			if err != nil {
				return nil, fmt.Errorf("creating %s: %w", f.Name, err)
			}
			if _, err := io.Copy(w, r); err != nil {
				return nil, fmt.Errorf("copying %s: %w", f.Name, err)
			}
		}
	}

	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("finalizing package: %w", err)
	}
	return buf.Bytes(), nil
}
