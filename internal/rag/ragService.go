package rag

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/raggio-engine/raggio/internal/config"
	"github.com/raggio-engine/raggio/internal/domain/docModel"
	"github.com/raggio-engine/raggio/internal/metrics"
	"github.com/raggio-engine/raggio/internal/rag/embedding"
	"github.com/raggio-engine/raggio/internal/rag/ingest"
	"github.com/raggio-engine/raggio/internal/rag/semcache"
	"github.com/raggio-engine/raggio/pkg/logger_i"
)

/*
ARCHITECTURE NOTE: OPAQUE INTERFACE PATTERN
---------------------------------------------------------

Service is the public contract, the handlers and the worker only ever see
this. The lowercase service struct holds the actual state (store, provider
gateway, cache) and stays private, so nothing outside this package can reach
the dependencies directly. NewService links the two, which also lets tests
swap every dependency for a mock.
*/

// SearchQuery carries one retrieval request. A nil Threshold means the
// default, an explicit zero means zero.
type SearchQuery struct {
	Query     string
	TopK      int
	Threshold *float64
	Fields    []string
}

type SearchOutput struct {
	Results         []docModel.SearchResult
	ServedFromCache bool
}

type AnswerOutput struct {
	Answer          string
	Results         []docModel.SearchResult
	ServedFromCache bool
}

// AnnotationPatch updates a chunk's editorial fields. Nil means leave alone,
// a pointer to an empty value clears the field and its embedding.
type AnnotationPatch struct {
	Notes   *string
	Details *map[string]any
}

type Service interface {
	Search(ctx context.Context, query SearchQuery) (SearchOutput, error)
	Answer(ctx context.Context, query SearchQuery) (AnswerOutput, error)
	IngestDocument(ctx context.Context, task docModel.IngestTask) error
	AnnotateChunk(ctx context.Context, documentId string, chunkId string, patch AnnotationPatch) (docModel.Chunk, error)
	DeleteDocument(ctx context.Context, documentId string) error
}

type service struct {
	store   docModel.DocumentStore
	gateway *embedding.Gateway
	cache   semcache.Cache
	logger  *logger_i.Logger

	// one mutex per document keeps concurrent re-ingests of the same
	// document from interleaving
	ingestLocks sync.Map
}

// NewService constructor
func NewService(store docModel.DocumentStore, gateway *embedding.Gateway, cache semcache.Cache) Service {
	return &service{
		store:   store,
		gateway: gateway,
		cache:   cache,
		logger:  logger_i.NewLogger("RAG Service :"),
	}
}

func (s *service) Search(ctx context.Context, query SearchQuery) (SearchOutput, error) {
	log := s.logger.With("traceId", ctx.Value(config.TRACE_ID_KEY))

	params, err := s.validateQuery(query)
	if err != nil {
		return SearchOutput{}, err
	}

	// Cache Check
	if cached, found := s.executeCacheLookupStep(ctx, log, query.Query); found {
		metrics.CaptureCacheHit()
		log.Debug("Search", "servedFromCache", true)
		return SearchOutput{Results: []docModel.SearchResult{cached}, ServedFromCache: true}, nil
	}
	metrics.CaptureCacheMiss()

	rows, err := s.store.Snapshot(ctx)
	if err != nil {
		return SearchOutput{}, err
	}
	if len(rows) == 0 {
		// nothing indexed yet, an empty corpus is not an error
		return SearchOutput{Results: []docModel.SearchResult{}}, nil
	}

	// Embedding
	queryVector, err := s.executeQueryEmbeddingStep(ctx, log, query.Query)
	if err != nil {
		return SearchOutput{}, err
	}

	// Ranking
	results := s.executeRankStep(log, queryVector, rows, params)

	if len(results) > 0 {
		s.cache.Store(ctx, query.Query, results[0], winningVector(rows, results[0]))
	}
	return SearchOutput{Results: results}, nil
}

func (s *service) Answer(ctx context.Context, query SearchQuery) (AnswerOutput, error) {
	log := s.logger.With("traceId", ctx.Value(config.TRACE_ID_KEY))

	searchOut, err := s.Search(ctx, query)
	if err != nil {
		return AnswerOutput{}, err
	}
	if len(searchOut.Results) == 0 {
		// never let the model answer without grounding
		return AnswerOutput{
			Answer:          config.AnswerNoContextReply,
			Results:         searchOut.Results,
			ServedFromCache: searchOut.ServedFromCache,
		}, nil
	}

	// LLM Generation
	answer, err := s.executeAnswerStep(ctx, log, query.Query, searchOut.Results)
	if err != nil {
		return AnswerOutput{}, err
	}
	return AnswerOutput{
		Answer:          answer,
		Results:         searchOut.Results,
		ServedFromCache: searchOut.ServedFromCache,
	}, nil
}

func (s *service) IngestDocument(ctx context.Context, task docModel.IngestTask) error {
	start := time.Now()
	defer func() { metrics.CaptureExecutionMetrics("document_ingestion", time.Since(start)) }()

	unlock := s.lockDocument(task.DocumentId)
	defer unlock()

	return ingest.ProcessDocument(ctx, s.store, s.gateway, task)
}

func (s *service) AnnotateChunk(ctx context.Context, documentId string, chunkId string, patch AnnotationPatch) (docModel.Chunk, error) {
	log := s.logger.With("traceId", ctx.Value(config.TRACE_ID_KEY), "documentId", documentId, "chunkId", chunkId)

	if patch.Notes == nil && patch.Details == nil {
		return docModel.Chunk{}, fmt.Errorf("%w: annotation requires notes or details", docModel.ErrValidation)
	}

	chunk, err := s.store.GetChunk(ctx, documentId, chunkId)
	if err != nil {
		return docModel.Chunk{}, err
	}

	now := time.Now()
	if patch.Notes != nil {
		chunk.Notes = *patch.Notes
		if err := s.refreshFieldEmbedding(ctx, &chunk, docModel.FieldNotes, now); err != nil {
			return docModel.Chunk{}, err
		}
	}
	if patch.Details != nil {
		chunk.Details = *patch.Details
		if err := s.refreshFieldEmbedding(ctx, &chunk, docModel.FieldDetails, now); err != nil {
			return docModel.Chunk{}, err
		}
	}
	chunk.UpdatedAt = now

	if err := s.store.UpdateChunk(ctx, documentId, chunk); err != nil {
		return docModel.Chunk{}, err
	}
	log.Info("chunk annotated")
	return chunk, nil
}

func (s *service) DeleteDocument(ctx context.Context, documentId string) error {
	log := s.logger.With("traceId", ctx.Value(config.TRACE_ID_KEY), "documentId", documentId)

	if err := s.store.DeleteDocument(ctx, documentId); err != nil {
		return err
	}
	log.Info("document deleted with all chunks")
	return nil
}

func (s *service) lockDocument(documentId string) func() {
	v, _ := s.ingestLocks.LoadOrStore(documentId, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}
