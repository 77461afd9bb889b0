package embedding

import (
	"context"
	"fmt"

	"github.com/philippgille/chromem-go"
	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"
	"google.golang.org/genai"

	"research-assistant/internal/config"
	"research-assistant/internal/llmservice"
	"research-assistant/internal/models"
)

// NewEmbedder creates the sentence embedder for the configured provider.
func NewEmbedder(ctx context.Context, llmConfig *config.LLMConfig) (embeddings.Embedder, error) {
	log.Debug().Interface("config", map[string]string{
		"provider":        llmConfig.Provider,
		"base_url":        llmConfig.BaseURL,
		"embedding_model": llmConfig.Model,
	}).Msg("Creating embedder")

	var client embeddings.EmbedderClient
	switch llmConfig.Provider {
	case config.ProviderGemini:
		gc, err := llmservice.NewGeminiClient(ctx, llmConfig)
		if err != nil {
			return nil, err
		}
		client = &geminiEmbedder{client: gc, model: llmConfig.Model}
	default:
		llm, err := llmservice.NewLLM(llmConfig)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize embedding model: %w", err)
		}
		ec, ok := llm.(embeddings.EmbedderClient)
		if !ok {
			return nil, fmt.Errorf("provider %q cannot create embeddings", llmConfig.Provider)
		}
		client = ec
	}

	return newEmbedder(client, llmConfig.Provider)
}

// geminiMaxBatch is the most requests batchEmbedContents accepts in one call.
const geminiMaxBatch = 100

func newEmbedder(client embeddings.EmbedderClient, provider string) (embeddings.Embedder, error) {
	var opts []embeddings.Option
	if provider == config.ProviderGemini {
		opts = append(opts, embeddings.WithBatchSize(geminiMaxBatch))
	}
	embedder, err := embeddings.NewEmbedder(client, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}
	return embedder, nil
}

// GenerateEmbedding embeds every chunk, one vector per chunk.
func GenerateEmbedding(ctx context.Context, embedder embeddings.Embedder, chunks []models.Chunk) ([]models.ChunkEmbedding, error) {
	if len(chunks) == 0 {
		log.Info().Msg("No chunks generated from content")
		return nil, nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}
	vectors, err := embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("failed to embed chunks: %w", err)
	}
	if len(vectors) != len(chunks) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d chunks", len(vectors), len(chunks))
	}

	chunkEmbeddings := make([]models.ChunkEmbedding, len(chunks))
	for i, chunk := range chunks {
		chunkEmbeddings[i] = models.ChunkEmbedding{Chunk: chunk, Embedding: vectors[i]}
	}
	return chunkEmbeddings, nil
}

// EmbeddingFunc adapts an embedder to chromem-go, which calls it for text queries.
func EmbeddingFunc(embedder embeddings.Embedder) chromem.EmbeddingFunc {
	return func(ctx context.Context, text string) ([]float32, error) {
		return embedder.EmbedQuery(ctx, text)
	}
}

type geminiEmbedder struct {
	client *genai.Client
	model  string
}

func (g *geminiEmbedder) CreateEmbedding(ctx context.Context, texts []string) ([][]float32, error) {
	contents := make([]*genai.Content, 0, len(texts))
	for _, t := range texts {
		contents = append(contents, genai.Text(t)...)
	}
	resp, err := g.client.Models.EmbedContent(ctx, g.model, contents, nil)
	if err != nil {
		return nil, fmt.Errorf("gemini embed call failed: %w", err)
	}
	out := make([][]float32, 0, len(resp.Embeddings))
	for _, e := range resp.Embeddings {
		out = append(out, e.Values)
	}
	return out, nil
}
