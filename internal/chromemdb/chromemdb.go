package chromemdb

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"strconv"

	"github.com/philippgille/chromem-go"
	"github.com/rs/zerolog/log"

	"document-qa/internal/helper"
	"document-qa/internal/models"
)

const collectionName = "chunks"

var ErrIndexNotFound = errors.New("index not found")

// VectorDBManager wraps one persistent chromem-go database and its chunk collection
type VectorDBManager struct {
	db         *chromem.DB
	collection *chromem.Collection
	dbPath     string
}

// NewVectorDBManager opens (or creates) the persistent database at dbPath
func NewVectorDBManager(dbPath string, compress bool) (*VectorDBManager, error) {
	db, err := chromem.NewPersistentDB(dbPath, compress)
	if err != nil {
		return nil, fmt.Errorf("failed to create database: %w", err)
	}
	return &VectorDBManager{db: db, dbPath: dbPath}, nil
}

// create or read collection. Embeddings are always supplied by the caller, so
// no embedding func is attached.
func (m *VectorDBManager) GetOrCreateCollection(name string) (*chromem.Collection, error) {
	c, err := m.db.GetOrCreateCollection(name, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create/get collection: %w", err)
	}
	m.collection = c
	return c, nil
}

// GetCollection loads an existing collection
func (m *VectorDBManager) GetCollection(name string) (*chromem.Collection, error) {
	c := m.db.GetCollection(name, nil)
	if c == nil {
		return nil, fmt.Errorf("collection %s: %w", name, ErrIndexNotFound)
	}
	m.collection = c
	return c, nil
}

// add multiple documents
func (m *VectorDBManager) CreateDocs(ctx context.Context, documents []chromem.Document) error {
	err := m.collection.AddDocuments(ctx, documents, runtime.NumCPU())
	if err != nil {
		return fmt.Errorf("failed to add documents: %w", err)
	}
	return nil
}

// SearchByEmbedding returns the nResults documents most similar to embedding.
// nResults is capped at the collection size.
func (m *VectorDBManager) SearchByEmbedding(ctx context.Context, embedding []float32, nResults int) ([]chromem.Result, error) {
	if len(embedding) == 0 {
		return nil, fmt.Errorf("query embedding must be provided")
	}
	nResults = min(nResults, m.collection.Count())
	if nResults <= 0 {
		return nil, nil
	}

	results, err := m.collection.QueryEmbedding(ctx, normalize(embedding), nResults, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to query by similarity: %w", err)
	}
	return results, nil
}

// Store keeps every index in its own database directory below baseDir
type Store struct {
	baseDir  string
	compress bool
}

func NewStore(baseDir string, compress bool) (*Store, error) {
	if err := helper.CreateFolder(baseDir); err != nil {
		return nil, err
	}
	return &Store{baseDir: baseDir, compress: compress}, nil
}

// Path is the directory holding the index called name
func (s *Store) Path(name string) string {
	return filepath.Join(s.baseDir, name)
}

func (s *Store) Create(ctx context.Context, name string, chunks []models.ChunkEmbedding) error {
	if err := validName(name); err != nil {
		return err
	}

	path := s.Path(name)
	m, err := NewVectorDBManager(path, s.compress)
	if err != nil {
		return err
	}
	if _, err := m.GetOrCreateCollection(collectionName); err != nil {
		return err
	}

	docs := make([]chromem.Document, len(chunks))
	for i, c := range chunks {
		docs[i] = chromem.Document{
			ID:        strconv.Itoa(c.ChunkID),
			Content:   c.Content,
			Metadata:  map[string]string{"chunk_id": strconv.Itoa(c.ChunkID)},
			Embedding: normalize(c.Embedding),
		}
	}

	if err := m.CreateDocs(ctx, docs); err != nil {
		if rmErr := helper.RemoveFolder(path); rmErr != nil {
			log.Warn().Err(rmErr).Str("path", path).Msg("Failed to remove partial index")
		}
		return err
	}

	log.Debug().Str("index", name).Int("chunks", len(docs)).Msg("Created chromem index")
	return nil
}

func (s *Store) Search(ctx context.Context, name string, query []float32, k int) ([]models.SearchResult, error) {
	if err := validName(name); err != nil {
		return nil, err
	}

	path := s.Path(name)
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", name, ErrIndexNotFound)
		}
		return nil, err
	}

	m, err := NewVectorDBManager(path, s.compress)
	if err != nil {
		return nil, err
	}
	if _, err := m.GetCollection(collectionName); err != nil {
		return nil, err
	}

	results, err := m.SearchByEmbedding(ctx, query, k)
	if err != nil {
		return nil, err
	}

	out := make([]models.SearchResult, len(results))
	for i, r := range results {
		id, _ := strconv.Atoi(r.Metadata["chunk_id"])
		out[i] = models.SearchResult{
			Content:    r.Content,
			ChunkID:    id,
			Similarity: r.Similarity,
		}
	}
	return out, nil
}

// Delete removes the index directory. A missing index is not an error.
func (s *Store) Delete(_ context.Context, name string) error {
	if err := validName(name); err != nil {
		return err
	}
	return helper.RemoveFolder(s.Path(name))
}

func validName(name string) error {
	if name == "" || name == "." || name == ".." || filepath.Base(name) != name {
		return fmt.Errorf("invalid index name %q", name)
	}
	return nil
}

func normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return v
	}
	norm := float32(math.Sqrt(sum))
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = x / norm
	}
	return out
}
