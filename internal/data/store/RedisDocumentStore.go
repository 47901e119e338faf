package store

import (
	"context"
	"encoding/json"

	"github.com/raggio-engine/raggio/internal/config"
	"github.com/raggio-engine/raggio/internal/data/redisStore"
	"github.com/raggio-engine/raggio/internal/domain/docModel"
	"github.com/raggio-engine/raggio/pkg/logger_i"
)

const documentKeyPrefix = "doc:"

var _ docModel.DocumentStore = (*RedisDocumentStore)(nil)

// persistedDocument is the Redis value: one document with all of its chunks,
// written as a whole so hydration never sees a torn state.
type persistedDocument struct {
	Document docModel.Document `json:"document"`
	Chunks   []docModel.Chunk  `json:"chunks"`
}

// RedisDocumentStore keeps the in-memory store authoritative for reads and
// writes every change through to Redis, so a restart can rebuild the index.
type RedisDocumentStore struct {
	mem    *InMemoryDocumentStore
	store  *redisStore.Store
	logger *logger_i.Logger
}

func GetRedisDocumentStore(ctx context.Context) *RedisDocumentStore {
	inner := redisStore.GetRedisStore(ctx, config.RedisDocumentStore)
	if inner == nil {
		return nil
	}
	return &RedisDocumentStore{
		mem:    InitInMemoryDocumentStore(),
		store:  inner,
		logger: logger_i.NewLogger("DocumentStore"),
	}
}

// Hydrate rebuilds the in-memory index from Redis. Documents whose payload no
// longer round-trips are skipped, not fatal.
func (s *RedisDocumentStore) Hydrate(ctx context.Context) error {
	keys, err := s.store.ScanKeys(ctx, documentKeyPrefix+"*")
	if err != nil {
		return err
	}
	restored := 0
	for _, key := range keys {
		val, err := s.store.Get(ctx, key)
		if err != nil {
			s.logger.Error("skipping unreadable document", "key", key, "error", err)
			continue
		}
		var record persistedDocument
		if err := json.Unmarshal([]byte(val), &record); err != nil {
			s.logger.Error("skipping malformed document", "key", key, "error", err)
			continue
		}
		if err := s.mem.restore(record.Document, record.Chunks); err != nil {
			s.logger.Error("skipping inconsistent document", "key", key, "error", err)
			continue
		}
		restored++
	}
	s.logger.Info("hydrated document store", "documents", restored)
	return nil
}

func (s *RedisDocumentStore) SaveDocument(ctx context.Context, doc docModel.Document) error {
	if err := s.mem.SaveDocument(ctx, doc); err != nil {
		return err
	}
	s.persist(ctx, doc.Id)
	return nil
}

func (s *RedisDocumentStore) GetDocument(ctx context.Context, documentId string) (docModel.Document, error) {
	return s.mem.GetDocument(ctx, documentId)
}

func (s *RedisDocumentStore) ListDocuments(ctx context.Context) ([]docModel.Document, error) {
	return s.mem.ListDocuments(ctx)
}

func (s *RedisDocumentStore) DeleteDocument(ctx context.Context, documentId string) error {
	if err := s.mem.DeleteDocument(ctx, documentId); err != nil {
		return err
	}
	if err := s.store.Del(ctx, documentKeyPrefix+documentId); err != nil {
		s.logger.Error("error deleting document from Redis", "documentId", documentId, "error", err)
	}
	return nil
}

func (s *RedisDocumentStore) GetChunks(ctx context.Context, documentId string) ([]docModel.Chunk, error) {
	return s.mem.GetChunks(ctx, documentId)
}

func (s *RedisDocumentStore) GetChunk(ctx context.Context, documentId string, chunkId string) (docModel.Chunk, error) {
	return s.mem.GetChunk(ctx, documentId, chunkId)
}

func (s *RedisDocumentStore) UpdateChunk(ctx context.Context, documentId string, chunk docModel.Chunk) error {
	if err := s.mem.UpdateChunk(ctx, documentId, chunk); err != nil {
		return err
	}
	s.persist(ctx, documentId)
	return nil
}

func (s *RedisDocumentStore) BeginProcessing(ctx context.Context, documentId string) error {
	if err := s.mem.BeginProcessing(ctx, documentId); err != nil {
		return err
	}
	s.persist(ctx, documentId)
	return nil
}

func (s *RedisDocumentStore) CompleteProcessing(ctx context.Context, documentId string, rawText string, chunks []docModel.Chunk) error {
	if err := s.mem.CompleteProcessing(ctx, documentId, rawText, chunks); err != nil {
		return err
	}
	s.persist(ctx, documentId)
	return nil
}

func (s *RedisDocumentStore) FailProcessing(ctx context.Context, documentId string, reason string) error {
	if err := s.mem.FailProcessing(ctx, documentId, reason); err != nil {
		return err
	}
	s.persist(ctx, documentId)
	return nil
}

func (s *RedisDocumentStore) Snapshot(ctx context.Context) ([]docModel.ChunkRecord, error) {
	return s.mem.Snapshot(ctx)
}

// persist writes the current state of one document through to Redis. Memory
// stays authoritative, a failed write only costs durability.
func (s *RedisDocumentStore) persist(ctx context.Context, documentId string) {
	log := s.logger.With("traceId", ctx.Value(config.TRACE_ID_KEY), "documentId", documentId)
	doc, chunks, err := s.mem.export(documentId)
	if err != nil {
		log.Error("nothing to persist", "error", err)
		return
	}
	data, err := json.Marshal(persistedDocument{Document: doc, Chunks: chunks})
	if err != nil {
		log.Error("error marshalling document for Redis", "error", err)
		return
	}
	if err := s.store.Set(ctx, documentKeyPrefix+documentId, data, config.RedisDocumentStoreTTL); err != nil {
		log.Error("error persisting document to Redis", "error", err)
		return
	}
	log.Debug("persisted document to Redis")
}

func TestDocumentStore(store *redisStore.Store) *RedisDocumentStore {
	return &RedisDocumentStore{
		mem:    InitInMemoryDocumentStore(),
		store:  store,
		logger: logger_i.NewLogger("test redis"),
	}
}
