package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/raggio-engine/raggio/internal/config"
	"github.com/raggio-engine/raggio/internal/domain/docModel"
	"github.com/raggio-engine/raggio/pkg/logger_i"
)

var inMemLogger = logger_i.NewLogger("InMem DocumentStore")

var _ docModel.DocumentStore = (*InMemoryDocumentStore)(nil)

type InMemoryDocumentStore struct {
	mutex    *sync.RWMutex
	docMap   map[string]docModel.Document
	chunkMap map[string][]docModel.Chunk
}

func InitInMemoryDocumentStore() *InMemoryDocumentStore {
	return &InMemoryDocumentStore{
		mutex:    new(sync.RWMutex),
		docMap:   make(map[string]docModel.Document),
		chunkMap: make(map[string][]docModel.Chunk),
	}
}

func (store *InMemoryDocumentStore) SaveDocument(ctx context.Context, doc docModel.Document) error {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	store.docMap[doc.Id] = doc
	inMemLogger.Debug("saved document", "documentId", doc.Id, "status", doc.Status)
	return nil
}

func (store *InMemoryDocumentStore) GetDocument(ctx context.Context, documentId string) (docModel.Document, error) {
	store.mutex.RLock()
	defer store.mutex.RUnlock()
	doc, found := store.docMap[documentId]
	if !found {
		return docModel.Document{}, fmt.Errorf("document %s: %w", documentId, docModel.ErrNotFound)
	}
	return doc, nil
}

func (store *InMemoryDocumentStore) ListDocuments(ctx context.Context) ([]docModel.Document, error) {
	store.mutex.RLock()
	defer store.mutex.RUnlock()
	docs := make([]docModel.Document, 0, len(store.docMap))
	for _, doc := range store.docMap {
		docs = append(docs, doc)
	}
	sort.Slice(docs, func(i, j int) bool {
		if !docs[i].CreatedAt.Equal(docs[j].CreatedAt) {
			return docs[i].CreatedAt.Before(docs[j].CreatedAt)
		}
		return docs[i].Id < docs[j].Id
	})
	return docs, nil
}

// DeleteDocument removes the document and every chunk derived from it.
func (store *InMemoryDocumentStore) DeleteDocument(ctx context.Context, documentId string) error {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	if _, found := store.docMap[documentId]; !found {
		return fmt.Errorf("document %s: %w", documentId, docModel.ErrNotFound)
	}
	delete(store.docMap, documentId)
	delete(store.chunkMap, documentId)
	inMemLogger.Info("deleted document with chunks", "documentId", documentId)
	return nil
}

func (store *InMemoryDocumentStore) GetChunks(ctx context.Context, documentId string) ([]docModel.Chunk, error) {
	store.mutex.RLock()
	defer store.mutex.RUnlock()
	if _, found := store.docMap[documentId]; !found {
		return nil, fmt.Errorf("document %s: %w", documentId, docModel.ErrNotFound)
	}
	chunks := store.chunkMap[documentId]
	out := make([]docModel.Chunk, 0, len(chunks))
	for _, chunk := range chunks {
		out = append(out, copyChunk(chunk))
	}
	return out, nil
}

func (store *InMemoryDocumentStore) GetChunk(ctx context.Context, documentId string, chunkId string) (docModel.Chunk, error) {
	store.mutex.RLock()
	defer store.mutex.RUnlock()
	for _, chunk := range store.chunkMap[documentId] {
		if chunk.Id == chunkId {
			return copyChunk(chunk), nil
		}
	}
	return docModel.Chunk{}, fmt.Errorf("chunk %s of document %s: %w", chunkId, documentId, docModel.ErrNotFound)
}

func (store *InMemoryDocumentStore) UpdateChunk(ctx context.Context, documentId string, chunk docModel.Chunk) error {
	if err := validateChunkEmbeddings(chunk); err != nil {
		return err
	}
	store.mutex.Lock()
	defer store.mutex.Unlock()
	chunks := store.chunkMap[documentId]
	for i := range chunks {
		if chunks[i].Id == chunk.Id {
			chunks[i] = copyChunk(chunk)
			return nil
		}
	}
	return fmt.Errorf("chunk %s of document %s: %w", chunk.Id, documentId, docModel.ErrNotFound)
}

// BeginProcessing clears the old chunks and flips the status in one step, so
// readers either see the previous complete state or an empty processing one.
func (store *InMemoryDocumentStore) BeginProcessing(ctx context.Context, documentId string) error {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	doc, found := store.docMap[documentId]
	if !found {
		return fmt.Errorf("document %s: %w", documentId, docModel.ErrNotFound)
	}
	delete(store.chunkMap, documentId)
	doc.Status = docModel.DocumentStatusProcessing
	doc.Error = ""
	doc.UpdatedAt = time.Now()
	store.docMap[documentId] = doc
	inMemLogger.Info("document processing started", "documentId", documentId)
	return nil
}

func (store *InMemoryDocumentStore) CompleteProcessing(ctx context.Context, documentId string, rawText string, chunks []docModel.Chunk) error {
	for _, chunk := range chunks {
		if err := validateChunkEmbeddings(chunk); err != nil {
			return err
		}
	}
	store.mutex.Lock()
	defer store.mutex.Unlock()
	doc, found := store.docMap[documentId]
	if !found {
		return fmt.Errorf("document %s: %w", documentId, docModel.ErrNotFound)
	}
	installed := make([]docModel.Chunk, 0, len(chunks))
	for _, chunk := range chunks {
		installed = append(installed, copyChunk(chunk))
	}
	store.chunkMap[documentId] = installed
	doc.RawText = rawText
	doc.Status = docModel.DocumentStatusCompleted
	doc.Error = ""
	doc.UpdatedAt = time.Now()
	store.docMap[documentId] = doc
	inMemLogger.Info("document processing completed", "documentId", documentId, "chunks", len(installed))
	return nil
}

func (store *InMemoryDocumentStore) FailProcessing(ctx context.Context, documentId string, reason string) error {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	doc, found := store.docMap[documentId]
	if !found {
		return fmt.Errorf("document %s: %w", documentId, docModel.ErrNotFound)
	}
	doc.Status = docModel.DocumentStatusFailed
	doc.Error = reason
	doc.UpdatedAt = time.Now()
	store.docMap[documentId] = doc
	inMemLogger.Info("document processing failed", "documentId", documentId, "reason", reason)
	return nil
}

// Snapshot flattens every chunk of every completed document into rows the
// ranker can score. The rows are deep copies, callers own them outright.
func (store *InMemoryDocumentStore) Snapshot(ctx context.Context) ([]docModel.ChunkRecord, error) {
	store.mutex.RLock()
	defer store.mutex.RUnlock()

	docIds := make([]string, 0, len(store.docMap))
	for id, doc := range store.docMap {
		if doc.Status == docModel.DocumentStatusCompleted {
			docIds = append(docIds, id)
		}
	}
	sort.Strings(docIds)

	var rows []docModel.ChunkRecord
	for _, id := range docIds {
		doc := store.docMap[id]
		for _, chunk := range store.chunkMap[id] {
			rows = append(rows, docModel.ChunkRecord{
				DocumentId:   doc.Id,
				DocumentName: doc.Name,
				DocumentPath: doc.SourcePath,
				Chunk:        copyChunk(chunk),
			})
		}
	}
	return rows, nil
}

// restore installs a persisted document without touching status or timestamps.
func (store *InMemoryDocumentStore) restore(doc docModel.Document, chunks []docModel.Chunk) error {
	for _, chunk := range chunks {
		if err := validateChunkEmbeddings(chunk); err != nil {
			return err
		}
	}
	store.mutex.Lock()
	defer store.mutex.Unlock()
	store.docMap[doc.Id] = doc
	if len(chunks) > 0 {
		store.chunkMap[doc.Id] = chunks
	}
	return nil
}

// export reads one document and its chunks under a single lock.
func (store *InMemoryDocumentStore) export(documentId string) (docModel.Document, []docModel.Chunk, error) {
	store.mutex.RLock()
	defer store.mutex.RUnlock()
	doc, found := store.docMap[documentId]
	if !found {
		return docModel.Document{}, nil, fmt.Errorf("document %s: %w", documentId, docModel.ErrNotFound)
	}
	chunks := store.chunkMap[documentId]
	out := make([]docModel.Chunk, 0, len(chunks))
	for _, chunk := range chunks {
		out = append(out, copyChunk(chunk))
	}
	return doc, out, nil
}

func validateChunkEmbeddings(chunk docModel.Chunk) error {
	for kind, emb := range chunk.Embeddings {
		if len(emb.Vector) != config.EmbeddingOutputDimensionality {
			return fmt.Errorf("%w: chunk %s field %s has dimension %d, store requires %d",
				docModel.ErrDataIntegrity, chunk.Id, kind, len(emb.Vector), config.EmbeddingOutputDimensionality)
		}
	}
	return nil
}

func copyChunk(chunk docModel.Chunk) docModel.Chunk {
	out := chunk
	if chunk.Details != nil {
		out.Details = make(map[string]any, len(chunk.Details))
		for key, value := range chunk.Details {
			out.Details[key] = value
		}
	}
	if chunk.Embeddings != nil {
		out.Embeddings = make(map[docModel.FieldKind]docModel.FieldEmbedding, len(chunk.Embeddings))
		for kind, emb := range chunk.Embeddings {
			vector := make([]float32, len(emb.Vector))
			copy(vector, emb.Vector)
			emb.Vector = vector
			out.Embeddings[kind] = emb
		}
	}
	return out
}
