package chroma

import (
	"context"
	"encoding/json"
	"fmt"

	chromago "github.com/amikos-tech/chroma-go/pkg/api/v2"
	"github.com/amikos-tech/chroma-go/pkg/embeddings"
	"github.com/rs/zerolog/log"
	lcembeddings "github.com/tmc/langchaingo/embeddings"

	"research-assistant/internal/models"
)

// includeDistances is the wire value for query distances; v0.2.3 exports no constant for it.
const includeDistances chromago.Include = "distances"

// Store keeps chunks in a collection on a Chroma server.
type Store struct {
	client     chromago.Client
	collection chromago.Collection
	name       string
	ef         embeddings.EmbeddingFunction
}

// NewStore opens collectionName on the server at url. Chunks always arrive with
// vectors; embedder only serves text queries made through the collection.
func NewStore(ctx context.Context, url, collectionName string, embedder lcembeddings.Embedder) (*Store, error) {
	client, err := chromago.NewHTTPClient(chromago.WithBaseURL(url))
	if err != nil {
		return nil, fmt.Errorf("failed to create chroma client: %w", err)
	}
	s := &Store{client: client, name: collectionName, ef: embeddingFunction{embedder: embedder}}
	if err := s.open(ctx); err != nil {
		client.Close()
		return nil, err
	}
	log.Info().Str("url", url).Str("collection", collectionName).Msg("Connected to chroma")
	return s, nil
}

func (s *Store) open(ctx context.Context) error {
	collection, err := s.client.GetOrCreateCollection(ctx, s.name,
		chromago.WithCollectionMetadataCreate(
			chromago.NewMetadata(
				chromago.NewStringAttribute("description", "research assistant chunks"),
				chromago.NewStringAttribute(chromago.HNSWSpace, "cosine"),
			),
		),
		chromago.WithEmbeddingFunctionCreate(s.ef),
	)
	if err != nil {
		return fmt.Errorf("failed to get or create collection %s: %w", s.name, err)
	}
	s.collection = collection
	return nil
}

func (s *Store) Add(ctx context.Context, entries []models.ChunkEmbedding) error {
	if len(entries) == 0 {
		return nil
	}
	ids := make([]chromago.DocumentID, len(entries))
	texts := make([]string, len(entries))
	embs := make([]embeddings.Embedding, len(entries))
	metas := make([]chromago.DocumentMetadata, len(entries))
	for i, e := range entries {
		ids[i] = chromago.DocumentID(e.ID)
		texts[i] = e.Content
		embs[i] = embeddings.NewEmbeddingFromFloat32(e.Embedding)
		metas[i] = chromago.NewDocumentMetadata(
			chromago.NewStringAttribute(models.MetaSource, e.Source),
			chromago.NewIntAttribute(models.MetaPage, int64(e.PageNumber)),
			chromago.NewIntAttribute(models.MetaChunkIndex, int64(e.ChunkID)),
			chromago.NewStringAttribute(models.MetaUploadID, e.UploadID),
		)
	}
	err := s.collection.Add(ctx,
		chromago.WithIDs(ids...),
		chromago.WithTexts(texts...),
		chromago.WithEmbeddings(embs...),
		chromago.WithMetadatas(metas...),
	)
	if err != nil {
		return fmt.Errorf("failed to add %d chunks to chroma: %w", len(entries), err)
	}
	return nil
}

func (s *Store) Search(ctx context.Context, embedding []float32, k int, uploadID string) ([]models.Source, error) {
	count, err := s.Count(ctx)
	if err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, models.ErrEmptyCollection
	}
	if k > count {
		k = count
	}

	opts := []chromago.CollectionQueryOption{
		chromago.WithQueryEmbeddings(embeddings.NewEmbeddingFromFloat32(embedding)),
		chromago.WithNResults(k),
		chromago.WithIncludeQuery(chromago.IncludeDocuments, chromago.IncludeMetadatas, includeDistances),
	}
	if uploadID != "" {
		opts = append(opts, chromago.WithWhereQuery(chromago.EqString(models.MetaUploadID, uploadID)))
	}
	results, err := s.collection.Query(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to query chroma: %w", err)
	}

	documentGroups := results.GetDocumentsGroups()
	metadataGroups := results.GetMetadatasGroups()
	distanceGroups := results.GetDistancesGroups()
	if len(documentGroups) == 0 {
		return nil, nil
	}

	sources := make([]models.Source, 0, len(documentGroups[0]))
	for i, doc := range documentGroups[0] {
		src := models.Source{Content: doc.ContentString()}
		if len(metadataGroups) > 0 && i < len(metadataGroups[0]) {
			applyMetadata(&src, metadataGroups[0][i])
		}
		if len(distanceGroups) > 0 && i < len(distanceGroups[0]) {
			src.Similarity = 1 - float32(distanceGroups[0][i])
		}
		sources = append(sources, src)
	}
	return sources, nil
}

// applyMetadata goes through JSON; DocumentMetadata has no exported map accessor.
func applyMetadata(src *models.Source, meta chromago.DocumentMetadata) {
	if meta == nil {
		return
	}
	data, err := json.Marshal(meta)
	if err != nil {
		log.Warn().Err(err).Msg("could not marshal chroma metadata")
		return
	}
	var m map[string]interface{}
	if err := json.Unmarshal(data, &m); err != nil {
		log.Warn().Err(err).Msg("could not unmarshal chroma metadata")
		return
	}
	src.Source, _ = m[models.MetaSource].(string)
	src.UploadID, _ = m[models.MetaUploadID].(string)
	if page, ok := m[models.MetaPage].(float64); ok {
		src.PageNumber = int(page)
	}
}

func (s *Store) Count(ctx context.Context) (int, error) {
	count, err := s.collection.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to count items in collection: %w", err)
	}
	return int(count), nil
}

func (s *Store) DeleteUpload(ctx context.Context, uploadID string) error {
	if uploadID == "" {
		return fmt.Errorf("upload id is required")
	}
	return s.collection.Delete(ctx, chromago.WithWhereDelete(chromago.EqString(models.MetaUploadID, uploadID)))
}

// Clear drops the collection and creates it again empty.
func (s *Store) Clear(ctx context.Context) error {
	if err := s.client.DeleteCollection(ctx, s.name); err != nil {
		return fmt.Errorf("failed to delete collection %s: %w", s.name, err)
	}
	return s.open(ctx)
}

func (s *Store) Close() error {
	return s.client.Close()
}

// embeddingFunction lets the collection embed with the configured embedder
// instead of chroma-go's bundled ONNX model.
type embeddingFunction struct {
	embedder lcembeddings.Embedder
}

func (f embeddingFunction) EmbedDocuments(ctx context.Context, texts []string) ([]embeddings.Embedding, error) {
	vectors, err := f.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, err
	}
	out := make([]embeddings.Embedding, len(vectors))
	for i, v := range vectors {
		out[i] = embeddings.NewEmbeddingFromFloat32(v)
	}
	return out, nil
}

func (f embeddingFunction) EmbedQuery(ctx context.Context, text string) (embeddings.Embedding, error) {
	v, err := f.embedder.EmbedQuery(ctx, text)
	if err != nil {
		return nil, err
	}
	return embeddings.NewEmbeddingFromFloat32(v), nil
}
