package vectorstore

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/embeddings"

	"research-assistant/internal/chroma"
	"research-assistant/internal/chromemdb"
	"research-assistant/internal/config"
	"research-assistant/internal/db"
	"research-assistant/internal/embedding"
	"research-assistant/internal/models"
)

// ErrEmptyCollection is returned when a search has nothing to search over.
var ErrEmptyCollection = models.ErrEmptyCollection

// Store is a persisted set of (chunk text, embedding, metadata) entries.
// Add always appends; nothing is deduplicated.
type Store interface {
	Add(ctx context.Context, entries []models.ChunkEmbedding) error
	// Search returns the k nearest entries. A non-empty uploadID restricts the search to that upload.
	Search(ctx context.Context, embedding []float32, k int, uploadID string) ([]models.Source, error)
	Count(ctx context.Context) (int, error)
	DeleteUpload(ctx context.Context, uploadID string) error
	Clear(ctx context.Context) error
	Close() error
}

var (
	_ Store = (*chromemdb.VectorDBManager)(nil)
	_ Store = (*db.Store)(nil)
	_ Store = (*chroma.Store)(nil)
)

// Open connects the backend named by cfg.VectorDB.Backend.
func Open(ctx context.Context, cfg *config.Config, embedder embeddings.Embedder) (Store, error) {
	vc := cfg.VectorDB
	switch vc.Backend {
	case config.BackendChromem:
		return chromemdb.NewVectorDBManager(vc.Path, vc.Collection, vc.InMemory, vc.Compress,
			cfg.RAG.EncryptionKey, embedding.EmbeddingFunc(embedder))
	case config.BackendPgvector:
		return db.NewStore(ctx, &cfg.Database, vc.Collection)
	case config.BackendChroma:
		return chroma.NewStore(ctx, cfg.Chroma.URL, vc.Collection, embedder)
	default:
		return nil, fmt.Errorf("unknown vector_db backend: %s", vc.Backend)
	}
}
