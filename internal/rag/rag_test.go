package rag

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"document-qa/internal/chromemdb"
	"document-qa/internal/config"
	"document-qa/internal/parser"
	"document-qa/internal/rag/ragtest"
)

const document = "The capital of France is Paris. " +
	"Mount Everest is the highest mountain on Earth. " +
	"The Pacific is the largest ocean. " +
	"Honey never spoils when stored properly."

type fixture struct {
	rag      *RAG
	store    *chromemdb.Store
	embedder *ragtest.Embedder
	model    *ragtest.Model
	cfg      *config.Config
}

func newFixture(t *testing.T, mutate func(*config.Config)) *fixture {
	t.Helper()
	cfg := config.Default()
	cfg.RAG.IndexDir = t.TempDir()
	cfg.RAG.Splitter = "fixed"
	cfg.RAG.ChunkSize = 60
	cfg.RAG.ChunkOverlap = 10
	if mutate != nil {
		mutate(cfg)
	}

	splitter, err := parser.NewSplitter(cfg.RAG)
	require.NoError(t, err)
	store, err := chromemdb.NewStore(cfg.RAG.IndexDir, false)
	require.NoError(t, err)

	f := &fixture{
		store:    store,
		embedder: ragtest.NewEmbedder(),
		model:    ragtest.NewModel("stub answer"),
		cfg:      cfg,
	}
	f.rag = NewRAG(splitter, f.embedder, f.model, store, cfg)
	return f
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func TestAskBeforeUpload(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.rag.Ask(context.Background(), NewSession("s"), "anything?")
	assert.ErrorIs(t, err, ErrNoIndex)
	assert.Equal(t, 0, f.embedder.QueryCalls())
	assert.Empty(t, f.model.Prompts())
}

func TestUploadAndAsk(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	sess := NewSession("s")

	name, err := f.rag.Upload(ctx, sess, document)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(name, "index_"))
	assert.Equal(t, name, sess.IndexName())
	assert.True(t, exists(f.store.Path(name)))

	answer, err := f.rag.Ask(ctx, sess, "What is the highest mountain on Earth?")
	require.NoError(t, err)
	assert.Equal(t, "stub answer", answer)

	prompt := f.model.LastPrompt()
	assert.Contains(t, prompt, "answer is not available in the context")
	assert.Contains(t, prompt, "Question:\nWhat is the highest mountain on Earth?")
	assert.Contains(t, prompt, "Everest")
}

func TestUploadClearAsk(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	sess := NewSession("s")

	name, err := f.rag.Upload(ctx, sess, document)
	require.NoError(t, err)

	require.NoError(t, f.rag.Clear(ctx, sess))
	assert.Empty(t, sess.IndexName())
	assert.False(t, exists(f.store.Path(name)))

	_, err = f.rag.Ask(ctx, sess, "Where is Paris?")
	assert.ErrorIs(t, err, ErrNoIndex)
}

func TestClearIsIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	sess := NewSession("s")

	assert.NoError(t, f.rag.Clear(ctx, sess))
	_, err := f.rag.Upload(ctx, sess, document)
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		assert.NoError(t, f.rag.Clear(ctx, sess))
	}
}

func TestRepeatedUploadsTargetLatest(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	sess := NewSession("s")
	f.model.Respond = func(prompt string) string {
		if strings.Contains(prompt, "black and white") {
			return "second document"
		}
		return "first document"
	}

	first, err := f.rag.Upload(ctx, sess, document)
	require.NoError(t, err)
	second, err := f.rag.Upload(ctx, sess, "A zebra has black and white stripes.")
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
	assert.Equal(t, second, sess.IndexName())
	// replaced artifacts stay on disk by default
	assert.True(t, exists(f.store.Path(first)))

	answer, err := f.rag.Ask(ctx, sess, "What stripes does a zebra have?")
	require.NoError(t, err)
	assert.Equal(t, "second document", answer)
}

func TestPruneReplaced(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, func(cfg *config.Config) { cfg.RAG.PruneReplaced = true })
	sess := NewSession("s")

	first, err := f.rag.Upload(ctx, sess, document)
	require.NoError(t, err)
	second, err := f.rag.Upload(ctx, sess, "Another text entirely.")
	require.NoError(t, err)

	assert.False(t, exists(f.store.Path(first)))
	assert.True(t, exists(f.store.Path(second)))
}

func TestDeterministicAnswer(t *testing.T) {
	respond := func(prompt string) string {
		return fmt.Sprintf("%d:%x", len(prompt), len(strings.Fields(prompt)))
	}

	var answers []string
	for i := 0; i < 2; i++ {
		f := newFixture(t, nil)
		f.model.Respond = respond
		sess := NewSession("s")
		_, err := f.rag.Upload(context.Background(), sess, document)
		require.NoError(t, err)
		answer, err := f.rag.Ask(context.Background(), sess, "Which ocean is the largest?")
		require.NoError(t, err)
		answers = append(answers, answer)
	}
	assert.Equal(t, answers[0], answers[1])
}

func TestUploadFailuresKeepReference(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	sess := NewSession("s")

	name, err := f.rag.Upload(ctx, sess, document)
	require.NoError(t, err)

	_, err = f.rag.Upload(ctx, sess, "   ")
	assert.ErrorIs(t, err, ErrNoChunks)
	assert.Equal(t, name, sess.IndexName())

	f.embedder.Err = errors.New("embedding service down")
	_, err = f.rag.Upload(ctx, sess, "fresh text")
	assert.ErrorContains(t, err, "embedding service down")
	assert.Equal(t, name, sess.IndexName())
}

func TestAskSurfacesDownstreamErrors(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	sess := NewSession("s")
	_, err := f.rag.Upload(ctx, sess, document)
	require.NoError(t, err)

	f.model.Err = errors.New("model overloaded")
	_, err = f.rag.Ask(ctx, sess, "Where is Paris?")
	assert.ErrorContains(t, err, "model overloaded")

	// index removed behind the service's back
	require.NoError(t, os.RemoveAll(f.store.Path(sess.IndexName())))
	f.model.Err = nil
	_, err = f.rag.Ask(ctx, sess, "Where is Paris?")
	assert.ErrorIs(t, err, chromemdb.ErrIndexNotFound)
}

func TestSessionsAreIsolated(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	sessions := NewSessionStore(0, nil)

	_, err := f.rag.Upload(ctx, sessions.Get("alice"), document)
	require.NoError(t, err)

	_, err = f.rag.Ask(ctx, sessions.Get("bob"), "Where is Paris?")
	assert.ErrorIs(t, err, ErrNoIndex)

	_, err = f.rag.Ask(ctx, sessions.Get("alice"), "Where is Paris?")
	assert.NoError(t, err)
	assert.Same(t, sessions.Get("alice"), sessions.Get("alice"))
	assert.Equal(t, 2, sessions.Len())
}

func TestExpiredSessionLosesIndex(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)

	var (
		mu      sync.Mutex
		evicted []string
	)
	sessions := NewSessionStore(20*time.Millisecond, func(s *Session) {
		_ = f.rag.Clear(ctx, s)
		mu.Lock()
		evicted = append(evicted, s.ID)
		mu.Unlock()
	})
	sess := sessions.Get("tmp")
	name, err := f.rag.Upload(ctx, sess, document)
	require.NoError(t, err)

	time.Sleep(50 * time.Millisecond)
	sessions.Expire()

	mu.Lock()
	assert.Contains(t, evicted, "tmp")
	mu.Unlock()
	assert.False(t, exists(f.store.Path(name)))
	assert.Empty(t, sess.IndexName())
}

func TestConcurrentRequests(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	sess := NewSession("s")

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(3)
		go func(i int) {
			defer wg.Done()
			_, err := f.rag.Upload(ctx, sess, fmt.Sprintf("%s Document number %d.", document, i))
			assert.NoError(t, err)
		}(i)
		go func() {
			defer wg.Done()
			_, err := f.rag.Ask(ctx, sess, "Where is Paris?")
			if err != nil {
				assert.ErrorIs(t, err, ErrNoIndex)
			}
		}()
		go func() {
			defer wg.Done()
			assert.NoError(t, f.rag.Clear(ctx, sess))
		}()
	}
	wg.Wait()
}
