package parser

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"document-qa/internal/config"
)

func TestChunkContent(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		maxChars int
		overlap  int
		want     []string
	}{
		{
			name:     "empty",
			content:  "   ",
			maxChars: 10,
			want:     nil,
		},
		{
			name:     "shorter than window",
			content:  "  hello world ",
			maxChars: 20,
			want:     []string{"hello world"},
		},
		{
			name:     "soft break with overlap",
			content:  "aaaa bbbb cccc dddd",
			maxChars: 10,
			overlap:  2,
			want:     []string{"aaaa bbbb", "b cccc ddd", "ddd"},
		},
		{
			name:     "no overlap",
			content:  "0123456789abcdefghij",
			maxChars: 10,
			overlap:  0,
			want:     []string{"0123456789", "abcdefghij"},
		},
		{
			name:     "zero window",
			content:  "text",
			maxChars: 0,
			want:     nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, chunkContent(tt.content, tt.maxChars, tt.overlap))
		})
	}
}

func TestChunkContentOverlapClamped(t *testing.T) {
	// overlap >= window must still make progress
	chunks := chunkContent(strings.Repeat("x", 50), 10, 10)
	require.NotEmpty(t, chunks)
	for _, c := range chunks {
		assert.LessOrEqual(t, len(c), 10)
	}
}

func TestChunkContentMultibyte(t *testing.T) {
	chunks := chunkContent(strings.Repeat("é", 25), 10, 0)
	require.Len(t, chunks, 3)
	for _, c := range chunks {
		assert.True(t, utf8.ValidString(c))
	}
}

func TestNewSplitter(t *testing.T) {
	_, err := NewSplitter(config.RAGConfig{Splitter: "bogus"})
	assert.Error(t, err)

	s, err := NewSplitter(config.RAGConfig{Splitter: "fixed", ChunkSize: 10, ChunkOverlap: 2})
	require.NoError(t, err)
	assert.IsType(t, FixedSplitter{}, s)
}

func TestRecursiveSplitter(t *testing.T) {
	s, err := NewSplitter(config.RAGConfig{Splitter: "recursive", ChunkSize: 100, ChunkOverlap: 10})
	require.NoError(t, err)

	text := strings.Repeat("The quick brown fox jumps over the lazy dog. ", 30)
	chunks, err := Chunk(s, text)
	require.NoError(t, err)
	require.Greater(t, len(chunks), 1)
	for i, c := range chunks {
		assert.Equal(t, i+1, c.ChunkID)
		assert.LessOrEqual(t, utf8.RuneCountInString(c.Content), 100)
	}

	short, err := Chunk(s, "just one line")
	require.NoError(t, err)
	require.Len(t, short, 1)
	assert.Equal(t, "just one line", short[0].Content)
}

func TestChunkSkipsBlankPieces(t *testing.T) {
	chunks, err := Chunk(FixedSplitter{ChunkSize: 10}, "")
	require.NoError(t, err)
	assert.Empty(t, chunks)
}
