package rag

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/raggio-engine/raggio/internal/config"
	"github.com/raggio-engine/raggio/internal/domain/docModel"
	"github.com/raggio-engine/raggio/internal/metrics"
	"github.com/raggio-engine/raggio/internal/rag/embedding"
	"github.com/raggio-engine/raggio/internal/rag/ranker"
	"github.com/raggio-engine/raggio/pkg/logger_i"
)

func (s *service) validateQuery(query SearchQuery) (ranker.Params, error) {
	if strings.TrimSpace(query.Query) == "" {
		return ranker.Params{}, fmt.Errorf("%w: query must not be empty", docModel.ErrValidation)
	}
	if query.TopK < 0 {
		return ranker.Params{}, fmt.Errorf("%w: top_k must not be negative", docModel.ErrValidation)
	}

	threshold := float64(config.DefaultSimilarityThreshold)
	if query.Threshold != nil {
		threshold = *query.Threshold
		if threshold < 0 || threshold > 1 {
			return ranker.Params{}, fmt.Errorf("%w: similarity_threshold must be between 0 and 1", docModel.ErrValidation)
		}
	}

	fields := make([]docModel.FieldKind, 0, len(query.Fields))
	for _, raw := range query.Fields {
		kind := docModel.FieldKind(raw)
		if !docModel.IsValidField(kind) {
			return ranker.Params{}, fmt.Errorf("%w: unknown field %q", docModel.ErrValidation, raw)
		}
		fields = append(fields, kind)
	}

	return ranker.Params{TopK: query.TopK, Threshold: threshold, Fields: fields}, nil
}

func (s *service) executeCacheLookupStep(ctx context.Context, log *logger_i.Logger, query string) (docModel.SearchResult, bool) {
	log.Debug("Search", "step", "cache lookup")

	start := time.Now()
	defer func() { metrics.CaptureExecutionMetrics("cache_lookup", time.Since(start)) }()

	return s.cache.Lookup(ctx, query)
}

func (s *service) executeQueryEmbeddingStep(ctx context.Context, log *logger_i.Logger, query string) ([]float32, error) {
	log.Debug("Search", "step", "query embedding")

	start := time.Now()
	defer func() { metrics.CaptureExecutionMetrics("query_embedding", time.Since(start)) }()

	return s.gateway.Embed(ctx, query, embedding.TaskQueryEmbedding)
}

func (s *service) executeRankStep(log *logger_i.Logger, queryVector []float32, rows []docModel.ChunkRecord, params ranker.Params) []docModel.SearchResult {
	start := time.Now()
	defer func() { metrics.CaptureExecutionMetrics("similarity_rank", time.Since(start)) }()

	results, excluded := ranker.Rank(queryVector, rows, params)
	if excluded > 0 {
		log.Warn("Search", "chunks excluded from ranking", excluded)
	}
	log.Debug("Search", "candidates", len(rows), "results", len(results))

	if results == nil {
		results = []docModel.SearchResult{}
	}
	return results
}

func (s *service) executeAnswerStep(ctx context.Context, log *logger_i.Logger, query string, results []docModel.SearchResult) (string, error) {
	log.Debug("Answer", "step", "llm generation", "passages", len(results))

	start := time.Now()
	defer func() { metrics.CaptureExecutionMetrics("llm_generation", time.Since(start)) }()

	messages := []embedding.Message{
		{Role: embedding.RoleSystem, Content: config.AnswerSystemPrompt},
		{Role: embedding.RoleUser, Content: buildAnswerPrompt(query, results)},
	}
	return s.gateway.Complete(ctx, messages, embedding.CompletionOptions{
		Temperature: config.ModelTemperature,
		MaxTokens:   config.AnswerMaxTokens,
		Task:        embedding.TaskAnswerGeneration,
	})
}

// refreshFieldEmbedding re-embeds one editorial field, or drops the stale
// vector when the field was cleared.
func (s *service) refreshFieldEmbedding(ctx context.Context, chunk *docModel.Chunk, kind docModel.FieldKind, now time.Time) error {
	text := chunk.FieldText(kind)
	if strings.TrimSpace(text) == "" {
		delete(chunk.Embeddings, kind)
		return nil
	}

	start := time.Now()
	defer func() { metrics.CaptureExecutionMetrics("annotation_embedding", time.Since(start)) }()

	vector, err := s.gateway.Embed(ctx, text, embedding.TaskDocumentEmbedding)
	if err != nil {
		return err
	}
	if chunk.Embeddings == nil {
		chunk.Embeddings = make(map[docModel.FieldKind]docModel.FieldEmbedding)
	}
	createdAt := chunk.Embeddings[kind].CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}
	chunk.Embeddings[kind] = docModel.FieldEmbedding{
		Vector:    vector,
		ModelId:   s.gateway.ProviderName(),
		CreatedAt: createdAt,
		UpdatedAt: now,
	}
	return nil
}

// winningVector is the stored embedding behind the best result's top field.
func winningVector(rows []docModel.ChunkRecord, best docModel.SearchResult) []float32 {
	if len(best.MatchedFields) == 0 {
		return nil
	}
	for _, row := range rows {
		if row.Chunk.Id == best.ChunkId {
			return row.Chunk.Embeddings[best.MatchedFields[0]].Vector
		}
	}
	return nil
}

func buildAnswerPrompt(query string, results []docModel.SearchResult) string {
	var b strings.Builder
	b.WriteString("Answer the question using only the passages below.\n\n")
	for i, result := range results {
		fmt.Fprintf(&b, "[%d] %s", i+1, result.DocumentName)
		if result.HeaderContext != "" {
			fmt.Fprintf(&b, " / %s", result.HeaderContext)
		}
		b.WriteString("\n")
		b.WriteString(result.Content)
		b.WriteString("\n\n")
	}
	fmt.Fprintf(&b, "Question: %s", query)
	return b.String()
}
