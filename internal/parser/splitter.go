package parser

import (
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/textsplitter"

	"document-qa/internal/config"
	"document-qa/internal/models"
)

// Splitter cuts text into overlapping pieces. textsplitter.RecursiveCharacter
// satisfies it directly.
type Splitter interface {
	SplitText(text string) ([]string, error)
}

const (
	defaultChunkSize    = 10000 // characters
	defaultChunkOverlap = 1000  // characters
)

// NewSplitter builds the splitter selected by cfg.Splitter
func NewSplitter(cfg config.RAGConfig) (Splitter, error) {
	size, overlap := cfg.ChunkSize, cfg.ChunkOverlap
	if size <= 0 {
		size = defaultChunkSize
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= size {
		overlap = size / 2
	}

	switch cfg.Splitter {
	case "recursive", "":
		return textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(size),
			textsplitter.WithChunkOverlap(overlap),
		), nil
	case "fixed":
		return FixedSplitter{ChunkSize: size, ChunkOverlap: overlap}, nil
	default:
		return nil, fmt.Errorf("unknown splitter: %s", cfg.Splitter)
	}
}

// Chunk splits text and numbers the non-blank pieces from 1
func Chunk(s Splitter, text string) ([]models.Chunk, error) {
	pieces, err := s.SplitText(text)
	if err != nil {
		return nil, fmt.Errorf("failed to split text: %w", err)
	}
	var chunks []models.Chunk
	for _, p := range pieces {
		if strings.TrimSpace(p) == "" {
			continue
		}
		chunks = append(chunks, models.Chunk{
			Content: p,
			ChunkID: len(chunks) + 1,
		})
	}
	return chunks, nil
}

// FixedSplitter cuts fixed-size character windows, pulling each cut back to a
// space, newline or period found in the last tenth of the window.
type FixedSplitter struct {
	ChunkSize    int
	ChunkOverlap int
}

func (f FixedSplitter) SplitText(text string) ([]string, error) {
	return chunkContent(text, f.ChunkSize, f.ChunkOverlap), nil
}

// chunk content into chunks with maxChars and overlapChars
func chunkContent(content string, maxChars, overlapChars int) []string {
	if maxChars <= 0 {
		return nil
	}
	if overlapChars < 0 {
		overlapChars = 0
	}
	if overlapChars >= maxChars {
		overlapChars = maxChars / 2
	}

	runes := []rune(strings.TrimSpace(content))
	contentLen := len(runes)
	if contentLen == 0 {
		return nil
	}
	if contentLen <= maxChars {
		return []string{string(runes)}
	}

	var chunks []string
	start := 0
	for start < contentLen {
		end := min(start+maxChars, contentLen)

		if end < contentLen {
			lookBack := min(maxChars/10, end-start)
			for i := end - 1; i >= end-lookBack && i > start; i-- {
				if runes[i] == ' ' || runes[i] == '\n' || runes[i] == '.' {
					end = i + 1
					break
				}
			}
		}

		chunk := strings.TrimSpace(string(runes[start:end]))
		if chunk != "" {
			chunks = append(chunks, chunk)
		}
		if end >= contentLen {
			break
		}

		// next window starts overlapChars before this cut
		next := end - overlapChars
		if next <= start {
			next = start + 1
		}
		start = next
	}

	return chunks
}
