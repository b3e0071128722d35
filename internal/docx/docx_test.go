package docx

import (
	"archive/zip"
	"bytes"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"
)

const xmlHeader = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` + "\n"

const wordNS = `xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"`

func wrapBody(body string) []byte {
	return []byte(xmlHeader + `<w:document ` + wordNS + `><w:body>` + body + `</w:body></w:document>`)
}

func wrapStyles(styles string) []byte {
	return []byte(xmlHeader + `<w:styles ` + wordNS + `>` + styles + `</w:styles>`)
}

const minimalStyles = `<w:style w:type="paragraph" w:default="1" w:styleId="Normal"><w:name w:val="Normal"/></w:style>`

// buildPackage assembles an in-memory DOCX container for tests.
func buildPackage(t *testing.T, documentXML, stylesXML []byte, extra map[string]string) []byte {
	t.Helper()

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	write := func(name string, content []byte) {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write(content)
		require.NoError(t, err)
	}

	write("[Content_Types].xml", []byte(xmlHeader+`<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types"/>`))
	write("word/document.xml", documentXML)
	write("word/styles.xml", stylesXML)
	names := make([]string, 0, len(extra))
	for name := range extra {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		write(name, []byte(extra[name]))
	}

	require.NoError(t, zw.Close())
	return buf.Bytes()
}

// testSpec matches the standard_clean profile in OOXML units.
func testSpec() FormatSpec {
	return FormatSpec{
		PageWidth:          11906,
		PageHeight:         16838,
		MarginTop:          1440,
		MarginRight:        1440,
		MarginBottom:       1440,
		MarginLeft:         1440,
		SpaceBefore:        0,
		SpaceAfter:         120,
		Line:               276,
		FontName:           "Calibri",
		FontSizeHalfPoints: 22,
	}
}
