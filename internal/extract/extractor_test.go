package extract

import (
	"archive/zip"
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestExtractBytes_plain(t *testing.T) {
	e := NewExtractor()
	got, err := e.ExtractBytes([]byte("Article 1\nLine 2"), ".txt")
	require.NoError(t, err)
	assert.Equal(t, "Article 1\nLine 2", got)
}

func TestExtractBytes_plainInvalidUTF8(t *testing.T) {
	e := NewExtractor()
	got, err := e.ExtractBytes([]byte("pasal\x80satu"), ".TXT")
	require.NoError(t, err)
	assert.Equal(t, "pasal\uFFFDsatu", got)
}

func TestExtractNamed_noExtensionIsPlain(t *testing.T) {
	e := NewExtractor()
	got, err := e.ExtractNamed("Law No 3 of 2024", []byte("Article 1 text"))
	require.NoError(t, err)
	assert.Equal(t, "Article 1 text", got)
}

func TestExtractNamed_numericSuffixIsTitle(t *testing.T) {
	e := NewExtractor()
	got, err := e.ExtractNamed("Perpres_No.16_2018", []byte("Article 1 text"))
	require.NoError(t, err)
	assert.Equal(t, "Article 1 text", got)
}

func TestExtractBytes_unsupported(t *testing.T) {
	e := NewExtractor()
	_, err := e.ExtractBytes([]byte("x"), ".pptx")
	require.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestSupported(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"Perpres 16 2018.pdf", true},
		{"annex.XLSX", true},
		{"notes.md", true},
		{"Law No 3 of 2024", true},
		{"Law No. 3 of 2024", true},
		{"Perpres_No.16_2018", true},
		{"Perpres No.16", true},
		{"scan.mp3", false},
		{"slides.pptx", false},
		{"archive.zip", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Supported(tt.name), tt.name)
	}
}

func TestExtractBytes_excel(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()
	require.NoError(t, f.SetCellValue("Sheet1", "A1", "Threshold"))
	require.NoError(t, f.SetCellValue("Sheet1", "A2", "Direct procurement"))
	require.NoError(t, f.SetCellValue("Sheet1", "B2", "200000000"))
	var buf bytes.Buffer
	_, err := f.WriteTo(&buf)
	require.NoError(t, err)

	got, err := NewExtractor().ExtractBytes(buf.Bytes(), ".xlsx")
	require.NoError(t, err)
	assert.Equal(t, "Threshold\nDirect procurement\t200000000", got)
}

func minimalDocx(paragraphs ...string) []byte {
	var body string
	for _, p := range paragraphs {
		body += `<w:p><w:r><w:t xml:space="preserve">` + p + `</w:t></w:r></w:p>`
	}
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	fw, _ := w.Create("word/document.xml")
	_, _ = fw.Write([]byte(`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>` +
		body + `</w:body></w:document>`))
	_ = w.Close()
	return buf.Bytes()
}

func TestExtractBytes_docxParagraphs(t *testing.T) {
	got, err := NewExtractor().ExtractBytes(minimalDocx("Article 1", "Procurement means ..."), ".docx")
	require.NoError(t, err)
	assert.Equal(t, "Article 1\n\nProcurement means ...", got)
}

func TestExtractBytes_docxNotZip(t *testing.T) {
	_, err := NewExtractor().ExtractBytes([]byte("not a zip"), ".docx")
	require.Error(t, err)
}

func TestExtractBytes_docxMissingBody(t *testing.T) {
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	_, _ = w.Create("word/styles.xml")
	_ = w.Close()
	_, err := NewExtractor().ExtractBytes(buf.Bytes(), ".docx")
	require.ErrorContains(t, err, "word/document.xml not found")
}

func TestExtractBytes_markdown(t *testing.T) {
	src := "# Article 1\n\nThe **budget user** may delegate.\n\n- tender\n- e-purchasing\n"
	got, err := NewExtractor().ExtractBytes([]byte(src), ".md")
	require.NoError(t, err)
	assert.Contains(t, got, "Article 1")
	assert.Contains(t, got, "The budget user may delegate.")
	assert.Contains(t, got, "tender")
	assert.NotContains(t, got, "**")
	assert.NotContains(t, got, "#")
}

func minimalODF(body string) []byte {
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	fw, _ := w.Create("content.xml")
	_, _ = fw.Write([]byte(`<office:document-content xmlns:office="urn:oasis:names:tc:opendocument:xmlns:office:1.0" ` +
		`xmlns:text="urn:oasis:names:tc:opendocument:xmlns:text:1.0"><office:body><office:text>` +
		body + `</office:text></office:body></office:document-content>`))
	_ = w.Close()
	return buf.Bytes()
}

func TestExtractBytes_openDocument(t *testing.T) {
	doc := minimalODF(`<text:h>Article 5</text:h>` +
		`<text:p>The <text:span>procurement official</text:span><text:s/>decides.</text:p>` +
		`<text:p></text:p>`)
	for _, ext := range []string{".odt", ".ODS", ".odp"} {
		got, err := NewExtractor().ExtractBytes(doc, ext)
		require.NoError(t, err, ext)
		assert.Equal(t, "Article 5\n\nThe procurement official decides.", got, ext)
	}
	assert.True(t, Supported("Perpres 12 2021.odt"))
}

func TestExtractBytes_openDocumentMissingContent(t *testing.T) {
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	_, _ = w.Create("styles.xml")
	_ = w.Close()
	_, err := NewExtractor().ExtractBytes(buf.Bytes(), ".odt")
	require.ErrorContains(t, err, "content.xml not found")
}
