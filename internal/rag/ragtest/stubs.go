// Package ragtest provides deterministic stand-ins for the embedding and
// generation services.
package ragtest

import (
	"context"
	"hash/fnv"
	"strings"
	"sync"

	"github.com/tmc/langchaingo/llms"
)

const Dimensions = 16

// Embedder hashes words into a fixed-size bag-of-words vector.
type Embedder struct {
	Err error

	mu            sync.Mutex
	documentCalls int
	queryCalls    int
}

func NewEmbedder() *Embedder { return &Embedder{} }

func (e *Embedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	e.mu.Lock()
	e.documentCalls++
	e.mu.Unlock()
	if e.Err != nil {
		return nil, e.Err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = Vector(t)
	}
	return out, nil
}

func (e *Embedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	e.mu.Lock()
	e.queryCalls++
	e.mu.Unlock()
	if e.Err != nil {
		return nil, e.Err
	}
	return Vector(text), nil
}

func (e *Embedder) DocumentCalls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.documentCalls
}

func (e *Embedder) QueryCalls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.queryCalls
}

// Vector is the embedding Embedder produces for text.
func Vector(text string) []float32 {
	v := make([]float32, Dimensions)
	for _, w := range strings.Fields(strings.ToLower(text)) {
		h := fnv.New32a()
		h.Write([]byte(strings.Trim(w, ".,;:!?\"'")))
		v[h.Sum32()%Dimensions]++
	}
	// never return the zero vector
	v[Dimensions-1] += 0.01
	return v
}

// Model answers every prompt through Respond, or with Answer when Respond is nil.
type Model struct {
	Answer  string
	Respond func(prompt string) string
	Err     error

	mu      sync.Mutex
	prompts []string
}

func NewModel(answer string) *Model { return &Model{Answer: answer} }

func (m *Model) GenerateContent(ctx context.Context, messages []llms.MessageContent, _ ...llms.CallOption) (*llms.ContentResponse, error) {
	var prompt strings.Builder
	for _, msg := range messages {
		for _, part := range msg.Parts {
			if t, ok := part.(llms.TextContent); ok {
				prompt.WriteString(t.Text)
			}
		}
	}
	text, err := m.Call(ctx, prompt.String())
	if err != nil {
		return nil, err
	}
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: text}}}, nil
}

func (m *Model) Call(_ context.Context, prompt string, _ ...llms.CallOption) (string, error) {
	m.mu.Lock()
	m.prompts = append(m.prompts, prompt)
	m.mu.Unlock()
	if m.Err != nil {
		return "", m.Err
	}
	if m.Respond != nil {
		return m.Respond(prompt), nil
	}
	return m.Answer, nil
}

// Prompts returns every prompt the model has seen, oldest first.
func (m *Model) Prompts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.prompts...)
}

func (m *Model) LastPrompt() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.prompts) == 0 {
		return ""
	}
	return m.prompts[len(m.prompts)-1]
}
