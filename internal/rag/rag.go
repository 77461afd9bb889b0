package rag

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/prompts"

	"research-assistant/internal/chunker"
	"research-assistant/internal/config"
	"research-assistant/internal/embedding"
	"research-assistant/internal/llmservice"
	"research-assistant/internal/models"
	"research-assistant/internal/parser"
	"research-assistant/internal/vectorstore"
)

var ErrEmptyQuery = errors.New("query is empty")

// RAG owns the whole pipeline: load, split, embed, index, and answer over the index.
type RAG struct {
	store    vectorstore.Store
	embedder embeddings.Embedder
	llm      llmservice.Generator
	loader   *parser.Loader
	chunker  *chunker.Chunker
	cfg      *config.Config
	prompt   prompts.PromptTemplate
}

func NewRAG(store vectorstore.Store, embedder embeddings.Embedder, llm llmservice.Generator, cfg *config.Config) *RAG {
	return &RAG{
		store:    store,
		embedder: embedder,
		llm:      llm,
		loader:   parser.NewLoader(cfg),
		chunker:  chunker.New(cfg.RAG),
		cfg:      cfg,
		prompt:   prompts.NewPromptTemplate(models.QAPromptTemplate, []string{"context", "question"}),
	}
}

func (r *RAG) Store() vectorstore.Store {
	return r.store
}

// Supported reports whether name has an extension the loader accepts.
func (r *RAG) Supported(name string) bool {
	return r.loader.Supported(name)
}

func (r *RAG) DeleteUpload(ctx context.Context, uploadID string) error {
	return r.store.DeleteUpload(ctx, uploadID)
}

// Ingest loads an uploaded file and appends its chunks to the collection.
func (r *RAG) Ingest(ctx context.Context, name string, rd io.Reader) (*models.IngestResult, error) {
	upload, err := r.loader.LoadUpload(name, rd)
	if err != nil {
		return nil, err
	}
	return r.Index(ctx, upload)
}

// IngestFile does the same for a file already on disk.
func (r *RAG) IngestFile(ctx context.Context, path string) (*models.IngestResult, error) {
	upload, err := r.loader.LoadFile(path)
	if err != nil {
		return nil, err
	}
	return r.Index(ctx, upload)
}

// Index splits, embeds and stores the documents of a loaded upload.
func (r *RAG) Index(ctx context.Context, upload *models.Upload) (*models.IngestResult, error) {
	chunks, err := r.chunker.Split(upload.Documents, upload.ID)
	if err != nil {
		return nil, err
	}

	chunkEmbeddings, err := embedding.GenerateEmbedding(ctx, r.embedder, chunks)
	if err != nil {
		return nil, err
	}
	if err := r.store.Add(ctx, chunkEmbeddings); err != nil {
		return nil, err
	}

	count, err := r.store.Count(ctx)
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("file", upload.Name).
		Str("upload_id", upload.ID).
		Int("documents", len(upload.Documents)).
		Int("chunks", len(chunks)).
		Int("collection_size", count).
		Msg("Indexed upload")

	return &models.IngestResult{
		UploadID:       upload.ID,
		Name:           upload.Name,
		Documents:      upload.Documents,
		Chunks:         len(chunks),
		CollectionSize: count,
	}, nil
}

// Query answers query from the top-k chunks and returns them as sources.
func (r *RAG) Query(ctx context.Context, query, uploadID string) (*models.PromptResponse, error) {
	return r.QueryFor(ctx, query, query, uploadID)
}

// QueryFor retrieves with retrievalQuery but puts question to the model.
func (r *RAG) QueryFor(ctx context.Context, retrievalQuery, question, uploadID string) (*models.PromptResponse, error) {
	if strings.TrimSpace(question) == "" || strings.TrimSpace(retrievalQuery) == "" {
		return nil, ErrEmptyQuery
	}

	sources, err := r.Retrieve(ctx, retrievalQuery, uploadID)
	if err != nil {
		return nil, err
	}

	prompt, err := r.prompt.Format(map[string]any{
		"context":  buildContext(sources),
		"question": question,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to format prompt: %w", err)
	}

	answer, err := r.llm.Generate(ctx, prompt)
	if err != nil {
		return nil, err
	}

	return &models.PromptResponse{
		Query:   question,
		Source:  sourceNames(sources),
		Content: answer,
		Sources: sources,
	}, nil
}

// Retrieve embeds query and returns the nearest chunks within the configured scope.
func (r *RAG) Retrieve(ctx context.Context, query, uploadID string) ([]models.Source, error) {
	queryEmbedding, err := r.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	scope := ""
	if r.cfg.RAG.Scope == config.ScopeUpload {
		scope = uploadID
	}
	sources, err := r.store.Search(ctx, queryEmbedding, r.cfg.RAG.TopK, scope)
	if err != nil {
		return nil, err
	}
	if len(sources) == 0 {
		return nil, vectorstore.ErrEmptyCollection
	}

	log.Debug().Str("query", query).Str("scope", scope).Int("sources", len(sources)).Msg("Retrieved chunks")
	return sources, nil
}

func buildContext(sources []models.Source) string {
	parts := make([]string, len(sources))
	for i, s := range sources {
		parts[i] = s.Content
	}
	return strings.Join(parts, models.ContextSeparator)
}

func sourceNames(sources []models.Source) string {
	seen := make(map[string]bool)
	var names []string
	for _, s := range sources {
		if s.Source == "" || seen[s.Source] {
			continue
		}
		seen[s.Source] = true
		names = append(names, s.Source)
	}
	return strings.Join(names, ", ")
}
