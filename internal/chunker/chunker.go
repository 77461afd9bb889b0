package chunker

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/schema"
	"github.com/tmc/langchaingo/textsplitter"

	"research-assistant/internal/config"
	"research-assistant/internal/helper"
	"research-assistant/internal/models"
)

// Chunker splits document records into overlapping segments, preferring paragraph breaks,
// then line breaks, then sentence ends, then spaces.
type Chunker struct {
	splitter textsplitter.RecursiveCharacter
}

func New(cfg config.RAGConfig) *Chunker {
	return &Chunker{
		splitter: textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(cfg.ChunkSize),
			textsplitter.WithChunkOverlap(cfg.ChunkOverlap),
			textsplitter.WithSeparators(cfg.Separators),
		),
	}
}

// Split keeps source order; every chunk gets a fresh ID so re-indexing the same text adds new entries.
func (c *Chunker) Split(docs []models.Document, uploadID string) ([]models.Chunk, error) {
	if len(docs) == 0 {
		return nil, nil
	}

	in := make([]schema.Document, 0, len(docs))
	for _, d := range docs {
		in = append(in, schema.Document{
			PageContent: d.Content,
			Metadata: map[string]any{
				models.MetaSource: d.Source,
				models.MetaPage:   d.PageNumber,
			},
		})
	}

	out, err := textsplitter.SplitDocuments(c.splitter, in)
	if err != nil {
		return nil, fmt.Errorf("failed to split documents: %w", err)
	}

	chunks := make([]models.Chunk, 0, len(out))
	for i, d := range out {
		id, err := helper.GenerateUUID()
		if err != nil {
			return nil, err
		}
		source, _ := d.Metadata[models.MetaSource].(string)
		page, _ := d.Metadata[models.MetaPage].(int)
		chunks = append(chunks, models.Chunk{
			ID:         id,
			Content:    d.PageContent,
			Source:     source,
			PageNumber: page,
			ChunkID:    i + 1,
			UploadID:   uploadID,
		})
	}

	log.Debug().Int("documents", len(docs)).Int("chunks", len(chunks)).Msg("Split documents")
	return chunks, nil
}
