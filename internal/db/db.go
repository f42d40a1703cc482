package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pgvector/pgvector-go"
	"github.com/rs/zerolog/log"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/extra/bundebug"

	"document-qa/internal/config"
	"document-qa/internal/models"
)

// Document is one embedded chunk of one index
type Document struct {
	bun.BaseModel `bun:"table:index_chunks,alias:d"`
	ID            int64           `bun:"id,pk,autoincrement"`
	IndexName     string          `bun:"index_name,notnull"`
	ChunkID       int             `bun:"chunk_id,notnull"`
	Content       string          `bun:"content,notnull"`
	Embedding     pgvector.Vector `bun:"embedding,notnull,type:vector"`
}

type searchRow struct {
	ChunkID  int     `bun:"chunk_id"`
	Content  string  `bun:"content"`
	Distance float64 `bun:"distance"`
}

func NewDB(sqldb *sql.DB, debug bool) *bun.DB {
	db := bun.NewDB(sqldb, pgdialect.New())
	if debug {
		db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
	}
	return db
}

func ConnectDB(cfg *config.DatabaseConfig) (*sql.DB, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("database dsn is required")
	}
	opts := []pgdriver.Option{pgdriver.WithDSN(cfg.DSN)}
	if cfg.Password != "" {
		opts = append(opts, pgdriver.WithPassword(cfg.Password))
	}
	return sql.OpenDB(pgdriver.NewConnector(opts...)), nil
}

// InitDB enables pgvector and creates the chunk table
func InitDB(ctx context.Context, db *bun.DB) error {
	if _, err := db.ExecContext(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return fmt.Errorf("failed to enable pgvector: %w", err)
	}
	if _, err := db.NewCreateTable().Model((*Document)(nil)).IfNotExists().Exec(ctx); err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}
	_, err := db.NewCreateIndex().
		Model((*Document)(nil)).
		Index("index_chunks_index_name_idx").
		IfNotExists().
		Column("index_name").
		Exec(ctx)
	return err
}

// Store keeps all indexes in one table, keyed by index name
type Store struct {
	db *bun.DB
}

func NewStore(db *bun.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Create(ctx context.Context, name string, chunks []models.ChunkEmbedding) error {
	if len(chunks) == 0 {
		return fmt.Errorf("no chunks to store")
	}
	docs := make([]Document, len(chunks))
	for i, c := range chunks {
		docs[i] = Document{
			IndexName: name,
			ChunkID:   c.ChunkID,
			Content:   c.Content,
			Embedding: pgvector.NewVector(c.Embedding),
		}
	}

	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		_, err := tx.NewInsert().Model(&docs).Exec(ctx)
		return err
	})
}

// Search orders the chunks of one index by cosine distance to query
func (s *Store) Search(ctx context.Context, name string, query []float32, k int) ([]models.SearchResult, error) {
	var rows []searchRow
	err := s.db.NewSelect().
		Model((*Document)(nil)).
		Column("chunk_id", "content").
		ColumnExpr("embedding <=> ? AS distance", pgvector.NewVector(query)).
		Where("index_name = ?", name).
		OrderExpr("distance").
		Limit(k).
		Scan(ctx, &rows)
	if err != nil {
		return nil, err
	}

	out := make([]models.SearchResult, len(rows))
	for i, r := range rows {
		out[i] = models.SearchResult{
			Content:    r.Content,
			ChunkID:    r.ChunkID,
			Similarity: float32(1 - r.Distance),
		}
	}
	return out, nil
}

func (s *Store) Delete(ctx context.Context, name string) error {
	res, err := s.db.NewDelete().
		Model((*Document)(nil)).
		Where("index_name = ?", name).
		Exec(ctx)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil {
		log.Debug().Str("index", name).Int64("rows", n).Msg("Deleted pgvector index")
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}
