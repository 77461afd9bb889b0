package vectorstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"research-assistant/internal/chromemdb"
	"research-assistant/internal/config"
	"research-assistant/internal/testutil"
)

func TestOpenChromem(t *testing.T) {
	cfg := config.Default()
	cfg.VectorDB.Path = t.TempDir()

	store, err := Open(context.Background(), cfg, &testutil.FakeEmbedder{})
	require.NoError(t, err)
	defer store.Close()

	assert.IsType(t, &chromemdb.VectorDBManager{}, store)
	count, err := store.Count(context.Background())
	require.NoError(t, err)
	assert.Zero(t, count)

	_, err = store.Search(context.Background(), []float32{1}, 4, "")
	assert.ErrorIs(t, err, ErrEmptyCollection)
}

func TestOpenPgvectorNeedsURL(t *testing.T) {
	cfg := config.Default()
	cfg.VectorDB.Backend = config.BackendPgvector

	_, err := Open(context.Background(), cfg, &testutil.FakeEmbedder{})
	assert.Error(t, err)
}

func TestOpenUnknownBackend(t *testing.T) {
	cfg := config.Default()
	cfg.VectorDB.Backend = "faiss"

	_, err := Open(context.Background(), cfg, &testutil.FakeEmbedder{})
	assert.Error(t, err)
}
