package service

import (
	"context"
	"sync"

	"recanalysis/internal/models"
)

type fakeExtractor struct {
	text string
	err  error
}

func (f *fakeExtractor) ExtractText(ctx context.Context, data []byte) (string, error) {
	return f.text, f.err
}

type fakeIndex struct {
	mu      sync.Mutex
	queries []string
	chunks  []models.PolicyChunk
	err     error
}

func (f *fakeIndex) Search(ctx context.Context, query string, k int) ([]models.PolicyChunk, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, query)
	if f.err != nil {
		return nil, f.err
	}
	if len(f.chunks) > k {
		return f.chunks[:k], nil
	}
	return f.chunks, nil
}

func (f *fakeIndex) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.queries)
}

// fakeBackend answers with respond, or blocks until released when block is set.
type fakeBackend struct {
	mu      sync.Mutex
	prompts []string
	respond func(schema *models.ExtractionSchema) (string, error)
	block   chan struct{}
}

func (f *fakeBackend) Name() string { return "fake" }

func (f *fakeBackend) Generate(ctx context.Context, prompt string, schema *models.ExtractionSchema) (string, error) {
	f.mu.Lock()
	f.prompts = append(f.prompts, prompt)
	f.mu.Unlock()

	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return f.respond(schema)
}

func (f *fakeBackend) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.prompts)
}

func (f *fakeBackend) lastPrompt() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.prompts) == 0 {
		return ""
	}
	return f.prompts[len(f.prompts)-1]
}
