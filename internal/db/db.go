package db

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
	"github.com/rs/zerolog/log"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/extra/bundebug"

	"research-assistant/internal/config"
	"research-assistant/internal/models"
)

type Document struct {
	bun.BaseModel `bun:"table:documents,alias:d"`
	ID            string          `bun:"id,pk"`
	Collection    string          `bun:"collection,notnull"`
	Content       string          `bun:"content,notnull"`
	Embedding     pgvector.Vector `bun:"embedding,notnull,type:vector"`
	SourceName    string          `bun:"source_name"`
	PageNumber    int             `bun:"page_number"`
	ChunkID       int             `bun:"chunk_id"`
	UploadID      string          `bun:"upload_id"`
}

type scoredDocument struct {
	Content    string  `bun:"content"`
	SourceName string  `bun:"source_name"`
	PageNumber int     `bun:"page_number"`
	UploadID   string  `bun:"upload_id"`
	Distance   float64 `bun:"distance"`
}

func NewDB(sqldb *sql.DB, debug bool) *bun.DB {
	db := bun.NewDB(sqldb, pgdialect.New())
	if debug {
		db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
	}
	return db
}

// ConnectDB opens Postgres with bun's pgdriver, or lib/pq when driver is "postgres".
func ConnectDB(cfg *config.DatabaseConfig) (*sql.DB, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("database url is required")
	}
	if cfg.Driver == "postgres" {
		return sql.Open("postgres", cfg.URL)
	}
	opts := []pgdriver.Option{pgdriver.WithDSN(cfg.URL)}
	if cfg.Password != "" {
		opts = append(opts, pgdriver.WithPassword(cfg.Password))
	}
	return sql.OpenDB(pgdriver.NewConnector(opts...)), nil
}

func InitDB(ctx context.Context, db *bun.DB) error {
	if _, err := db.ExecContext(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return fmt.Errorf("failed to enable pgvector: %w", err)
	}
	_, err := db.NewCreateTable().Model((*Document)(nil)).IfNotExists().Exec(ctx)
	return err
}

func StoreDocuments(ctx context.Context, db *bun.DB, docs []Document) error {
	if len(docs) == 0 {
		return nil
	}
	_, err := db.NewInsert().Model(&docs).Exec(ctx)
	return err
}

// SearchDocuments orders by cosine distance to queryEmbedding.
func SearchDocuments(ctx context.Context, db *bun.DB, collection string, queryEmbedding []float32, limit int, uploadID string) ([]scoredDocument, error) {
	var docs []scoredDocument
	err := searchQuery(db, collection, queryEmbedding, limit, uploadID).Scan(ctx, &docs)
	return docs, err
}

func searchQuery(db *bun.DB, collection string, queryEmbedding []float32, limit int, uploadID string) *bun.SelectQuery {
	q := db.NewSelect().
		Model((*Document)(nil)).
		Column("content", "source_name", "page_number", "upload_id").
		ColumnExpr("embedding <=> ? AS distance", pgvector.NewVector(queryEmbedding)).
		Where("collection = ?", collection)
	if uploadID != "" {
		q = q.Where("upload_id = ?", uploadID)
	}
	return q.OrderExpr("distance").Limit(limit)
}

func CountDocuments(ctx context.Context, db *bun.DB, collection string) (int, error) {
	return db.NewSelect().Model((*Document)(nil)).Where("collection = ?", collection).Count(ctx)
}

func DeleteDocuments(ctx context.Context, db *bun.DB, collection, uploadID string) error {
	q := db.NewDelete().Model((*Document)(nil)).Where("collection = ?", collection)
	if uploadID != "" {
		q = q.Where("upload_id = ?", uploadID)
	}
	_, err := q.Exec(ctx)
	return err
}

// drop table documents
func DropDocuments(ctx context.Context, db *bun.DB) error {
	_, err := db.NewDropTable().Model((*Document)(nil)).IfExists().Exec(ctx)
	return err
}

// Store is the pgvector-backed chunk store. Several collections share one table.
type Store struct {
	db         *bun.DB
	collection string
}

func NewStore(ctx context.Context, cfg *config.DatabaseConfig, collection string) (*Store, error) {
	sqldb, err := ConnectDB(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	db := NewDB(sqldb, cfg.Debug)
	if err := InitDB(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	log.Info().Str("collection", collection).Msg("Connected to pgvector store")
	return &Store{db: db, collection: collection}, nil
}

func (s *Store) Add(ctx context.Context, entries []models.ChunkEmbedding) error {
	docs := make([]Document, len(entries))
	for i, ce := range entries {
		docs[i] = Document{
			ID:         ce.ID,
			Collection: s.collection,
			Content:    ce.Content,
			Embedding:  pgvector.NewVector(ce.Embedding),
			SourceName: ce.Source,
			PageNumber: ce.PageNumber,
			ChunkID:    ce.ChunkID,
			UploadID:   ce.UploadID,
		}
	}
	if err := StoreDocuments(ctx, s.db, docs); err != nil {
		return fmt.Errorf("failed to store documents: %w", err)
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

	docs, err := SearchDocuments(ctx, s.db, s.collection, embedding, k, uploadID)
	if err != nil {
		return nil, fmt.Errorf("failed to search documents: %w", err)
	}
	sources := make([]models.Source, len(docs))
	for i, d := range docs {
		sources[i] = models.Source{
			Content:    d.Content,
			Source:     d.SourceName,
			PageNumber: d.PageNumber,
			UploadID:   d.UploadID,
			Similarity: float32(1 - d.Distance),
		}
	}
	return sources, nil
}

func (s *Store) Count(ctx context.Context) (int, error) {
	return CountDocuments(ctx, s.db, s.collection)
}

func (s *Store) DeleteUpload(ctx context.Context, uploadID string) error {
	if uploadID == "" {
		return fmt.Errorf("upload id is required")
	}
	return DeleteDocuments(ctx, s.db, s.collection, uploadID)
}

func (s *Store) Clear(ctx context.Context) error {
	return DeleteDocuments(ctx, s.db, s.collection, "")
}

func (s *Store) Close() error {
	return s.db.Close()
}
