package embedding

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"research-assistant/internal/config"
	"research-assistant/internal/models"
	"research-assistant/internal/testutil"
)

func TestGenerateEmbedding(t *testing.T) {
	emb := &testutil.FakeEmbedder{}
	chunks := []models.Chunk{
		{ID: "a", Content: "goroutines and channels"},
		{ID: "b", Content: "goroutines and channels"},
	}

	out, err := GenerateEmbedding(context.Background(), emb, chunks)
	require.NoError(t, err)

	require.Len(t, out, 2)
	assert.Equal(t, "a", out[0].ID)
	assert.NotEmpty(t, out[0].Embedding)
	// identical text is embedded again, nothing is cached
	assert.Equal(t, out[0].Embedding, out[1].Embedding)
	assert.Equal(t, 2, emb.Calls)
}

func TestGenerateEmbeddingNoChunks(t *testing.T) {
	out, err := GenerateEmbedding(context.Background(), &testutil.FakeEmbedder{}, nil)
	require.NoError(t, err)
	assert.Nil(t, out)
}

func TestEmbeddingFunc(t *testing.T) {
	emb := &testutil.FakeEmbedder{}
	fn := EmbeddingFunc(emb)

	v, err := fn(context.Background(), "hello")
	require.NoError(t, err)
	want, _ := emb.EmbedQuery(context.Background(), "hello")
	assert.Equal(t, want, v)
}

type batchRecorder struct {
	batches []int
}

func (b *batchRecorder) CreateEmbedding(_ context.Context, texts []string) ([][]float32, error) {
	b.batches = append(b.batches, len(texts))
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{float32(i)}
	}
	return out, nil
}

func TestNewEmbedderBatchSize(t *testing.T) {
	texts := make([]string, 250)
	for i := range texts {
		texts[i] = fmt.Sprintf("chunk %d", i)
	}

	cases := []struct {
		provider string
		want     []int
	}{
		{config.ProviderGemini, []int{100, 100, 50}},
		{config.ProviderOllama, []int{250}},
	}
	for _, tc := range cases {
		t.Run(tc.provider, func(t *testing.T) {
			rec := &batchRecorder{}
			embedder, err := newEmbedder(rec, tc.provider)
			require.NoError(t, err)

			vectors, err := embedder.EmbedDocuments(context.Background(), texts)
			require.NoError(t, err)
			assert.Len(t, vectors, len(texts))
			assert.Equal(t, tc.want, rec.batches)
		})
	}
}
