package docModel

import "context"

// DocumentStore owns documents, their ordered chunks and the per-field
// embeddings. Chunk sets are only ever installed together with the
// COMPLETED status flip, so a reader never observes a half-replaced set.
// Missing documents and chunks come back wrapping ErrNotFound.
type DocumentStore interface {
	SaveDocument(ctx context.Context, doc Document) error
	GetDocument(ctx context.Context, documentId string) (Document, error)
	ListDocuments(ctx context.Context) ([]Document, error)
	// DeleteDocument cascades to chunks and embeddings.
	DeleteDocument(ctx context.Context, documentId string) error

	GetChunks(ctx context.Context, documentId string) ([]Chunk, error)
	GetChunk(ctx context.Context, documentId string, chunkId string) (Chunk, error)
	// UpdateChunk replaces a chunk in place, matched by chunk id.
	UpdateChunk(ctx context.Context, documentId string, chunk Chunk) error

	// BeginProcessing removes all existing chunks and embeddings and flips
	// the status to PROCESSING in one step.
	BeginProcessing(ctx context.Context, documentId string) error
	// CompleteProcessing installs the raw text and the full new chunk set
	// and flips the status to COMPLETED in one step.
	CompleteProcessing(ctx context.Context, documentId string, rawText string, chunks []Chunk) error
	FailProcessing(ctx context.Context, documentId string, reason string) error

	// Snapshot returns the flattened chunk rows for ranking. The returned
	// slice is private to the caller.
	Snapshot(ctx context.Context) ([]ChunkRecord, error)
}
