package rag

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/chains"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/prompts"
	"github.com/tmc/langchaingo/schema"

	"document-qa/internal/config"
	"document-qa/internal/embedding"
	"document-qa/internal/helper"
	"document-qa/internal/models"
	"document-qa/internal/parser"
)

var (
	ErrNoIndex  = errors.New("no document content indexed")
	ErrNoChunks = errors.New("text produced no chunks to index")
)

// IndexStore persists chunk embeddings under a name and searches them
type IndexStore interface {
	Create(ctx context.Context, name string, chunks []models.ChunkEmbedding) error
	Search(ctx context.Context, name string, query []float32, k int) ([]models.SearchResult, error)
	Delete(ctx context.Context, name string) error
}

type RAG struct {
	splitter parser.Splitter
	embedder embeddings.Embedder
	store    IndexStore
	qa       chains.StuffDocuments
	cfg      config.RAGConfig
	temp     float64
}

func NewRAG(splitter parser.Splitter, embedder embeddings.Embedder, llm llms.Model, store IndexStore, cfg *config.Config) *RAG {
	prompt := prompts.NewPromptTemplate(models.QAPromptTemplate, []string{"context", "question"})
	return &RAG{
		splitter: splitter,
		embedder: embedder,
		store:    store,
		qa:       chains.NewStuffDocuments(chains.NewLLMChain(llm, prompt)),
		cfg:      cfg.RAG,
		temp:     cfg.LLM.Temperature,
	}
}

// Upload indexes text under a fresh name and makes it the session's current
// index. The session is left untouched when anything fails.
func (r *RAG) Upload(ctx context.Context, sess *Session, text string) (string, error) {
	chunks, err := parser.Chunk(r.splitter, text)
	if err != nil {
		return "", err
	}
	if len(chunks) == 0 {
		return "", ErrNoChunks
	}

	chunkEmbeddings, err := embedding.GenerateEmbedding(ctx, r.embedder, chunks)
	if err != nil {
		return "", err
	}

	name, err := helper.NewIndexName(r.cfg.IndexPrefix)
	if err != nil {
		return "", err
	}
	if err := r.store.Create(ctx, name, chunkEmbeddings); err != nil {
		return "", fmt.Errorf("failed to persist index: %w", err)
	}

	sess.mu.Lock()
	previous := sess.indexName
	sess.indexName = name
	if r.cfg.PruneReplaced && previous != "" {
		if err := r.store.Delete(ctx, previous); err != nil {
			log.Warn().Err(err).Str("index", previous).Msg("Failed to delete replaced index")
		}
	}
	sess.mu.Unlock()

	log.Info().
		Str("session", sess.ID).
		Str("index", name).
		Str("previous", previous).
		Int("chunks", len(chunks)).
		Msg("Indexed document")
	return name, nil
}

// Ask answers question from the session's current index
func (r *RAG) Ask(ctx context.Context, sess *Session, question string) (string, error) {
	sess.mu.RLock()
	defer sess.mu.RUnlock()

	if sess.indexName == "" {
		return "", ErrNoIndex
	}

	queryEmbedding, err := r.embedder.EmbedQuery(ctx, question)
	if err != nil {
		return "", fmt.Errorf("failed to embed question: %w", err)
	}

	results, err := r.store.Search(ctx, sess.indexName, queryEmbedding, r.cfg.TopK)
	if err != nil {
		return "", fmt.Errorf("failed to search index: %w", err)
	}

	docs := make([]schema.Document, len(results))
	for i, res := range results {
		docs[i] = schema.Document{
			PageContent: res.Content,
			Metadata:    map[string]any{"chunk_id": res.ChunkID},
			Score:       res.Similarity,
		}
	}
	log.Debug().Str("session", sess.ID).Str("index", sess.indexName).Int("docs", len(docs)).Msg("Retrieved context")

	out, err := chains.Call(ctx, r.qa, map[string]any{
		"input_documents": docs,
		"question":        question,
	}, chains.WithTemperature(r.temp))
	if err != nil {
		return "", fmt.Errorf("failed to generate answer: %w", err)
	}

	answer, ok := out["text"].(string)
	if !ok {
		return "", fmt.Errorf("unexpected chain output %T", out["text"])
	}
	return answer, nil
}

// Clear forgets the session's index and deletes its artifact. The reference
// is reset even when the deletion fails; that error is returned.
func (r *RAG) Clear(ctx context.Context, sess *Session) error {
	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.indexName == "" {
		return nil
	}
	name := sess.indexName
	sess.indexName = ""

	if err := r.store.Delete(ctx, name); err != nil {
		log.Warn().Err(err).Str("index", name).Msg("Failed to delete index")
		return err
	}
	log.Info().Str("session", sess.ID).Str("index", name).Msg("Cleared index")
	return nil
}
