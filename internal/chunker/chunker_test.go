package chunker

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"research-assistant/internal/config"
	"research-assistant/internal/models"
)

func newChunker() *Chunker {
	return New(config.Default().RAG)
}

func TestSplitShortTextIsOneChunk(t *testing.T) {
	content := "Go is a statically typed language. It was designed at Google."
	chunks, err := newChunker().Split([]models.Document{{Content: content, Source: "go.txt", PageNumber: 1}}, "u1")
	require.NoError(t, err)

	require.Len(t, chunks, 1)
	assert.Equal(t, content, chunks[0].Content)
	assert.Equal(t, "go.txt", chunks[0].Source)
	assert.Equal(t, 1, chunks[0].PageNumber)
	assert.Equal(t, 1, chunks[0].ChunkID)
	assert.Equal(t, "u1", chunks[0].UploadID)
	assert.NotEmpty(t, chunks[0].ID)
}

func TestSplitPrefersParagraphBoundary(t *testing.T) {
	first := strings.TrimSpace(strings.Repeat("alpha beta gamma. ", 15))
	second := strings.TrimSpace(strings.Repeat("delta epsilon zeta. ", 14))
	require.Less(t, len(first), 400)
	require.Less(t, len(second), 400)
	require.Greater(t, len(first)+len(second), 400)

	chunks, err := newChunker().Split([]models.Document{{Content: first + "\n\n" + second, Source: "two.txt"}}, "u1")
	require.NoError(t, err)

	require.Len(t, chunks, 2)
	assert.Equal(t, first, chunks[0].Content)
	assert.Equal(t, second, chunks[1].Content)
}

func TestSplitLongParagraphFallsBackAndOverlaps(t *testing.T) {
	var words []string
	for i := 0; i < 200; i++ {
		words = append(words, "word")
	}
	content := strings.Join(words, " ")

	chunks, err := newChunker().Split([]models.Document{{Content: content}}, "")
	require.NoError(t, err)

	require.Greater(t, len(chunks), 1)
	for i, c := range chunks {
		assert.LessOrEqual(t, len(c.Content), 400)
		assert.Equal(t, i+1, c.ChunkID)
	}
	// consecutive chunks share the overlap window
	total := 0
	for _, c := range chunks {
		total += len(c.Content)
	}
	assert.Greater(t, total, len(content))
}

func TestSplitKeepsDocumentOrderAndMetadata(t *testing.T) {
	docs := []models.Document{
		{Content: "page one text", Source: "paper.pdf", PageNumber: 1},
		{Content: "page two text", Source: "paper.pdf", PageNumber: 2},
	}
	chunks, err := newChunker().Split(docs, "abc")
	require.NoError(t, err)

	require.Len(t, chunks, 2)
	assert.Equal(t, "page one text", chunks[0].Content)
	assert.Equal(t, 1, chunks[0].PageNumber)
	assert.Equal(t, "page two text", chunks[1].Content)
	assert.Equal(t, 2, chunks[1].PageNumber)
	assert.NotEqual(t, chunks[0].ID, chunks[1].ID)
}

func TestSplitNoDocuments(t *testing.T) {
	chunks, err := newChunker().Split(nil, "")
	require.NoError(t, err)
	assert.Empty(t, chunks)
}
