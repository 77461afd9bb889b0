package chromemdb

import (
	"context"
	"fmt"
	"path/filepath"
	"runtime"
	"strconv"

	"github.com/philippgille/chromem-go"
	"github.com/rs/zerolog/log"

	"research-assistant/internal/models"
)

// VectorDBManager encapsulates the chromem-go database operations
type VectorDBManager struct {
	db            *chromem.DB
	collection    *chromem.Collection
	embeddingFunc chromem.EmbeddingFunc
	dbPath        string
	compress      bool
	encryptionKey string
	filePath      string
}

// NewVectorDBManager opens (or creates) the database at dbPath; inMemory skips the disk.
func NewVectorDBManager(dbPath, collectionName string, inMemory, compress bool, encryptionKey string, embeddingFunc chromem.EmbeddingFunc) (*VectorDBManager, error) {
	var db *chromem.DB
	var err error
	if inMemory {
		db = chromem.NewDB()
	} else {
		db, err = chromem.NewPersistentDB(dbPath, compress)
		if err != nil {
			return nil, fmt.Errorf("failed to create database: %w", err)
		}
	}

	m := &VectorDBManager{
		db:            db,
		embeddingFunc: embeddingFunc,
		dbPath:        dbPath,
		compress:      compress,
		encryptionKey: encryptionKey,
		filePath:      filepath.Join(dbPath, collectionName+".chromem"),
	}
	if _, err := m.GetOrCreateCollection(collectionName); err != nil {
		return nil, err
	}
	return m, nil
}

// create or read collection
func (m *VectorDBManager) GetOrCreateCollection(collectionName string) (*chromem.Collection, error) {
	c, err := m.db.GetOrCreateCollection(collectionName, nil, m.embeddingFunc)
	if err != nil {
		return nil, fmt.Errorf("failed to create/get collection: %w", err)
	}
	m.collection = c
	return c, nil
}

func (m *VectorDBManager) Name() string {
	return m.collection.Name
}

// Add appends the entries; chunk IDs are unique so nothing is overwritten.
func (m *VectorDBManager) Add(ctx context.Context, entries []models.ChunkEmbedding) error {
	if len(entries) == 0 {
		return nil
	}
	docs := make([]chromem.Document, len(entries))
	for i, e := range entries {
		docs[i] = chromem.Document{
			ID:        e.ID,
			Content:   e.Content,
			Metadata:  CreateMetadata(e.Chunk),
			Embedding: e.Embedding,
		}
	}
	if err := m.collection.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return fmt.Errorf("failed to add documents: %w", err)
	}
	log.Debug().Str("collection", m.collection.Name).Int("added", len(docs)).Int("total", m.collection.Count()).Msg("Added documents")
	return nil
}

func (m *VectorDBManager) Search(ctx context.Context, embedding []float32, k int, uploadID string) ([]models.Source, error) {
	opts := chromem.QueryOptions{
		QueryEmbedding: embedding,
		NResults:       k,
	}
	if uploadID != "" {
		opts.Where = map[string]string{models.MetaUploadID: uploadID}
	}
	results, err := m.SearchWithQueryOptions(ctx, opts)
	if err != nil {
		return nil, err
	}

	sources := make([]models.Source, 0, len(results))
	for _, r := range results {
		page, _ := strconv.Atoi(r.Metadata[models.MetaPage])
		sources = append(sources, models.Source{
			Content:    r.Content,
			Source:     r.Metadata[models.MetaSource],
			PageNumber: page,
			UploadID:   r.Metadata[models.MetaUploadID],
			Similarity: r.Similarity,
		})
	}
	return sources, nil
}

// SearchWithQueryOptions runs a similarity search, clamping NResults to the collection size.
func (m *VectorDBManager) SearchWithQueryOptions(ctx context.Context, opts chromem.QueryOptions) ([]chromem.Result, error) {
	// exit if query or embedding is not provided
	if opts.QueryText == "" && opts.QueryEmbedding == nil {
		return nil, fmt.Errorf("either query or embedding must be provided")
	}

	count := m.collection.Count()
	if count == 0 {
		return nil, models.ErrEmptyCollection
	}
	if opts.NResults <= 0 || opts.NResults > count {
		opts.NResults = count
	}

	results, err := m.collection.QueryWithOptions(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query by similarity: %w", err)
	}
	return results, nil
}

func (m *VectorDBManager) Count(_ context.Context) (int, error) {
	return m.collection.Count(), nil
}

func (m *VectorDBManager) DeleteUpload(ctx context.Context, uploadID string) error {
	if m.collection.Count() == 0 {
		return nil
	}
	if err := m.collection.Delete(ctx, map[string]string{models.MetaUploadID: uploadID}, nil); err != nil {
		return fmt.Errorf("failed to delete upload %s: %w", uploadID, err)
	}
	return nil
}

// Clear drops the collection and recreates it empty.
func (m *VectorDBManager) Clear(_ context.Context) error {
	name := m.collection.Name
	if err := m.DeleteCollection(); err != nil {
		return err
	}
	_, err := m.GetOrCreateCollection(name)
	return err
}

// delete collection
func (m *VectorDBManager) DeleteCollection() error {
	err := m.db.DeleteCollection(m.collection.Name)
	if err != nil {
		return fmt.Errorf("failed to drop collection: %w", err)
	}
	return nil
}

func (m *VectorDBManager) Close() error {
	return nil
}

// Export writes the collection to an encrypted file next to the database.
func (m *VectorDBManager) Export(path string) error {
	if m.encryptionKey == "" {
		return fmt.Errorf("encryption key is required")
	}
	if path == "" {
		path = m.filePath
	}

	log.Debug().Str("collection", m.collection.Name).Str("file", path).Bool("compress", m.compress).Msg("Exporting collection")
	err := m.db.ExportToFile(path, m.compress, m.encryptionKey, m.collection.Name)
	if err != nil {
		return fmt.Errorf("failed to export database: %w", err)
	}
	return nil
}

// Import loads a previously exported collection into the database.
func (m *VectorDBManager) Import(path string) error {
	if path == "" {
		path = m.filePath
	}
	name := m.collection.Name
	err := m.db.ImportFromFile(path, m.encryptionKey, name)
	if err != nil {
		return fmt.Errorf("failed to import database: %w", err)
	}
	// the import replaces the collection object
	_, err = m.GetOrCreateCollection(name)
	return err
}

// CreateMetadata flattens chunk metadata into chromem's string map.
func CreateMetadata(c models.Chunk) map[string]string {
	return map[string]string{
		models.MetaSource:     c.Source,
		models.MetaPage:       strconv.Itoa(c.PageNumber),
		models.MetaChunkIndex: strconv.Itoa(c.ChunkID),
		models.MetaUploadID:   c.UploadID,
	}
}
