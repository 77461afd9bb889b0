// Package testutil holds deterministic stand-ins for the model boundary.
package testutil

import (
	"context"
	"errors"
	"hash/fnv"
	"math"
	"strings"
	"sync"
	"unicode"
)

const embedDimensions = 64

// FakeEmbedder hashes lower-cased words into a fixed-size bag-of-words vector, so texts that
// share words end up close together. It satisfies langchaingo's embeddings.Embedder.
type FakeEmbedder struct {
	mu    sync.Mutex
	Calls int
}

func (e *FakeEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for _, t := range texts {
		v, err := e.EmbedQuery(ctx, t)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func (e *FakeEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	e.mu.Lock()
	e.Calls++
	e.mu.Unlock()

	v := make([]float32, embedDimensions)
	// constant component keeps the vector non-zero for empty input
	v[0] = 0.1
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, w := range words {
		h := fnv.New32a()
		h.Write([]byte(w))
		v[1+int(h.Sum32()%(embedDimensions-1))] += 1
	}

	var norm float64
	for _, x := range v {
		norm += float64(x * x)
	}
	norm = math.Sqrt(norm)
	for i := range v {
		v[i] = float32(float64(v[i]) / norm)
	}
	return v, nil
}

// FakeGenerator replays scripted responses and records every prompt it receives.
type FakeGenerator struct {
	mu        sync.Mutex
	Responses []string
	Err       error
	Prompts   []string
}

var ErrNoResponse = errors.New("fake generator: no scripted response left")

func (g *FakeGenerator) Generate(_ context.Context, prompt string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.Prompts = append(g.Prompts, prompt)
	if g.Err != nil {
		return "", g.Err
	}
	if len(g.Responses) == 0 {
		return "", ErrNoResponse
	}
	r := g.Responses[0]
	if len(g.Responses) > 1 {
		g.Responses = g.Responses[1:]
	}
	return r, nil
}

func (g *FakeGenerator) LastPrompt() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.Prompts) == 0 {
		return ""
	}
	return g.Prompts[len(g.Prompts)-1]
}
