package parser

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"research-assistant/internal/config"
)

func TestLoadUploadUnsupportedFormat(t *testing.T) {
	l := NewLoader(config.Default())

	for _, name := range []string{"notes.md", "slides.pptx", "report.docx", "archive", "image.PNG"} {
		t.Run(name, func(t *testing.T) {
			upload, err := l.LoadUpload(name, strings.NewReader("whatever"))
			assert.ErrorIs(t, err, ErrUnsupportedFormat)
			assert.Nil(t, upload)
		})
	}
}

func TestLoadUploadText(t *testing.T) {
	l := NewLoader(config.Default())
	content := "Go is a statically typed language.\n\nIt has goroutines."

	upload, err := l.LoadUpload("notes.TXT", strings.NewReader(content))
	require.NoError(t, err)

	require.Len(t, upload.Documents, 1)
	doc := upload.Documents[0]
	assert.Equal(t, content, doc.Content)
	assert.Equal(t, "notes.TXT", doc.Source)
	assert.Equal(t, 1, doc.PageNumber)
	assert.Equal(t, "notes.TXT", upload.Name)
	assert.Equal(t, len(content), upload.Size)
	assert.Len(t, upload.ID, uploadIDLength)
}

func TestLoadUploadBlankText(t *testing.T) {
	upload, err := NewLoader(nil).LoadUpload("empty.txt", strings.NewReader("  \n\n "))
	require.NoError(t, err)
	assert.Empty(t, upload.Documents)
}

func TestUploadIDIsContentAddressed(t *testing.T) {
	a := UploadID([]byte("same bytes"))
	b := UploadID([]byte("same bytes"))
	c := UploadID([]byte("other bytes"))

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}

func TestStageKeepsExtension(t *testing.T) {
	path, err := Stage("Paper.PDF", []byte("%PDF-1.4"))
	require.NoError(t, err)
	t.Cleanup(func() { os.Remove(path) })

	assert.Equal(t, ".pdf", filepath.Ext(path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4", string(data))

	other, err := Stage("Paper.PDF", []byte("%PDF-1.4"))
	require.NoError(t, err)
	t.Cleanup(func() { os.Remove(other) })
	assert.NotEqual(t, path, other)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doc.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello world"), 0o644))

	upload, err := NewLoader(nil).LoadFile(path)
	require.NoError(t, err)
	require.Len(t, upload.Documents, 1)
	assert.Equal(t, "hello world", upload.Documents[0].Content)
	assert.Equal(t, "doc.txt", upload.Name)
}

func TestOfficeFormatsAreOptIn(t *testing.T) {
	cfg := config.Default()
	assert.False(t, NewLoader(cfg).Supported("report.docx"))

	cfg.RAG.OfficeFormats = true
	l := NewLoader(cfg)
	assert.True(t, l.Supported("report.docx"))
	assert.True(t, l.Supported("book.xlsx"))
	assert.True(t, l.Supported("macros.xlsm"))
	assert.False(t, l.Supported("slides.pptx"))
}

func TestExtractTextFromXML(t *testing.T) {
	body := `<w:body><w:p><w:r><w:t>Hello</w:t></w:r><w:r><w:tab/><w:t xml:space="preserve"> world</w:t></w:r></w:p>` +
		`<w:p><w:r><w:t>Second</w:t></w:r></w:p></w:body>`

	assert.Equal(t, "Hello world\nSecond\n", extractTextFromXML(body))
}
