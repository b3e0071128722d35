package docx

import (
	"archive/zip"
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenReadsParts(t *testing.T) {
	docXML := wrapBody(`<w:p><w:r><w:t>hi</w:t></w:r></w:p>`)
	stylesXML := wrapStyles(minimalStyles)
	data := buildPackage(t, docXML, stylesXML, nil)

	pkg, err := Open(data)
	require.NoError(t, err)
	assert.Equal(t, docXML, pkg.DocumentXML)
	assert.Equal(t, stylesXML, pkg.StylesXML)
}

func TestOpenNotAZip(t *testing.T) {
	_, err := Open([]byte("this is not a docx"))
	require.ErrorIs(t, err, ErrMalformed)
}

func TestOpenMissingParts(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("word/document.xml")
	require.NoError(t, err)
	_, err = w.Write(wrapBody(``))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	_, err = Open(buf.Bytes())
	require.ErrorIs(t, err, ErrMalformed)
	assert.Contains(t, err.Error(), "word/styles.xml")
}

func TestSavePreservesUntouchedEntries(t *testing.T) {
	extra := map[string]string{
		"word/media/image1.png":        "\x89PNG fake image bytes",
		"word/_rels/document.xml.rels": xmlHeader + `<Relationships/>`,
		"docProps/core.xml":            xmlHeader + `<coreProperties/>`,
	}
	data := buildPackage(t, wrapBody(`<w:p><w:r><w:t>hi</w:t></w:r></w:p>`), wrapStyles(minimalStyles), extra)

	pkg, err := Open(data)
	require.NoError(t, err)

	newDoc := wrapBody(`<w:p><w:r><w:t>hi</w:t></w:r></w:p><w:sectPr/>`)
	out, err := pkg.Save(newDoc, pkg.StylesXML)
	require.NoError(t, err)

	zr, err := zip.NewReader(bytes.NewReader(out), int64(len(out)))
	require.NoError(t, err)

	contents := make(map[string]string)
	var order []string
	for _, f := range zr.File {
		rc, err := f.Open()
		require.NoError(t, err)
		b, err := io.ReadAll(rc)
		require.NoError(t, err)
		rc.Close()
		contents[f.Name] = string(b)
		order = append(order, f.Name)
	}

	assert.Equal(t, string(newDoc), contents["word/document.xml"])
	for name, want := range extra {
		assert.Equal(t, want, contents[name], name)
	}
	// Entry order survives the round trip.
	assert.Equal(t, []string{
		"[Content_Types].xml",
		"word/document.xml",
		"word/styles.xml",
		"docProps/core.xml",
		"word/_rels/document.xml.rels",
		"word/media/image1.png",
	}, order)
}
