package rag_test

import (
	"context"
	"strings"

	"github.com/raggio-engine/raggio/internal/config"
	"github.com/raggio-engine/raggio/internal/rag/embedding"
)

// MockProvider implements embedding.Provider
type MockProvider struct {
	// Control fields to simulate different behaviors
	OnEmbed      func(ctx context.Context, text string, task embedding.TaskKind) ([]float32, error)
	OnEmbedBatch func(ctx context.Context, texts []string, task embedding.TaskKind) ([][]float32, error)
	OnComplete   func(ctx context.Context, messages []embedding.Message, opts embedding.CompletionOptions) (string, error)

	EmbedCalls    int
	BatchCalls    int
	CompleteCalls int
}

func (m *MockProvider) Name() string { return "mock" }

func (m *MockProvider) Embed(ctx context.Context, text string, task embedding.TaskKind) ([]float32, error) {
	m.EmbedCalls++
	if m.OnEmbed != nil {
		return m.OnEmbed(ctx, text, task)
	}
	return vectorFor(text), nil
}

func (m *MockProvider) EmbedBatch(ctx context.Context, texts []string, task embedding.TaskKind) ([][]float32, error) {
	m.BatchCalls++
	if m.OnEmbedBatch != nil {
		return m.OnEmbedBatch(ctx, texts, task)
	}
	vectors := make([][]float32, len(texts))
	for i := range texts {
		vectors[i] = vectorFor(texts[i])
	}
	return vectors, nil
}

func (m *MockProvider) Complete(ctx context.Context, messages []embedding.Message, opts embedding.CompletionOptions) (string, error) {
	m.CompleteCalls++
	if m.OnComplete != nil {
		return m.OnComplete(ctx, messages, opts)
	}
	return "mocked llm response", nil
}

// unitVector returns a dimension-correct basis vector on the given axis.
func unitVector(axis int) []float32 {
	v := make([]float32, config.EmbeddingOutputDimensionality)
	v[axis] = 1
	return v
}

// vectorFor embeds by keyword, texts about the same topic land on the same
// axis and everything else stays orthogonal to them.
func vectorFor(text string) []float32 {
	lower := strings.ToLower(text)
	switch {
	case strings.Contains(lower, "requisiti"):
		return unitVector(0)
	case strings.Contains(lower, "installazion"):
		return unitVector(1)
	case strings.Contains(lower, "nota"):
		return unitVector(2)
	default:
		return unitVector(3)
	}
}
