package ingest

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/raggio-engine/raggio/internal/adapter/utils"
	"github.com/raggio-engine/raggio/internal/domain/docModel"
	"github.com/raggio-engine/raggio/internal/metrics"
	"github.com/raggio-engine/raggio/internal/rag/chunker"
	"github.com/raggio-engine/raggio/internal/rag/embedding"
	"github.com/raggio-engine/raggio/pkg/logger_i"
)

var logger = logger_i.NewLogger("Document Ingestion")

// fieldSlot remembers which chunk and field a flattened embedding text
// belongs to, so batch results can be routed back.
type fieldSlot struct {
	chunkIdx int
	kind     docModel.FieldKind
}

// ProcessDocument runs one ingest task end to end: flip the document to
// processing, extract the text, chunk and embed it, then install everything
// in a single step. Any failure leaves the document in a failed state with
// the reason on it.
func ProcessDocument(ctx context.Context, docStore docModel.DocumentStore, gateway *embedding.Gateway, task docModel.IngestTask) error {
	log := logger.With("traceId", task.TraceId, "documentId", task.DocumentId)

	if err := docStore.BeginProcessing(ctx, task.DocumentId); err != nil {
		// the document may have been deleted while the task sat in the queue
		log.Error("cannot start processing", "error", err)
		return err
	}

	rawText := task.RawText
	if !task.Inline {
		text, err := ExtractFile(task.FilePath)
		if err != nil {
			log.Error("extraction failed", "error", err)
			return failDocument(ctx, docStore, task.DocumentId, fmt.Sprintf("error extracting document content: %v", err), err)
		}
		rawText = text
		if err := os.Remove(task.FilePath); err != nil {
			log.Error("error removing uploaded file", "path", task.FilePath, "error", err)
		}
	}
	rawText = chunker.NormalizeNewlines(rawText)

	chunks, err := BuildChunks(ctx, gateway, task.DocumentId, rawText)
	if err != nil {
		log.Error("embedding failed", "error", err)
		return failDocument(ctx, docStore, task.DocumentId, fmt.Sprintf("error embedding document content: %v", err), err)
	}

	if err := docStore.CompleteProcessing(ctx, task.DocumentId, rawText, chunks); err != nil {
		log.Error("cannot install processed document", "error", err)
		metrics.CaptureDocumentProcessed("failed")
		return err
	}
	metrics.CaptureDocumentProcessed("completed")
	log.Info("document ingested", "chunks", len(chunks))
	return nil
}

// BuildChunks splits the raw text and embeds the content of every chunk plus
// the header context of the chunks that have one, in one batched call.
func BuildChunks(ctx context.Context, gateway *embedding.Gateway, documentId string, rawText string) ([]docModel.Chunk, error) {
	drafts := chunker.Chunk(rawText, chunker.Config{})
	if len(drafts) == 0 {
		return nil, nil
	}

	chunks := make([]docModel.Chunk, len(drafts))
	var texts []string
	var slots []fieldSlot
	now := time.Now()
	for i, draft := range drafts {
		chunks[i] = docModel.Chunk{
			Id:            utils.GetNewUUID(),
			DocumentId:    documentId,
			Index:         i,
			Content:       draft.Content,
			HeaderContext: draft.HeaderContext,
			Embeddings:    make(map[docModel.FieldKind]docModel.FieldEmbedding),
			UpdatedAt:     now,
		}
		texts = append(texts, draft.Content)
		slots = append(slots, fieldSlot{chunkIdx: i, kind: docModel.FieldContent})
		if draft.HeaderContext != "" {
			texts = append(texts, draft.HeaderContext)
			slots = append(slots, fieldSlot{chunkIdx: i, kind: docModel.FieldHeaderContext})
		}
	}

	vectors, err := gateway.EmbedBatch(ctx, texts, embedding.TaskDocumentEmbedding)
	if err != nil {
		return nil, err
	}
	for i, vector := range vectors {
		slot := slots[i]
		chunks[slot.chunkIdx].Embeddings[slot.kind] = docModel.FieldEmbedding{
			Vector:    vector,
			ModelId:   gateway.ProviderName(),
			CreatedAt: now,
			UpdatedAt: now,
		}
	}
	return chunks, nil
}

func failDocument(ctx context.Context, docStore docModel.DocumentStore, documentId string, reason string, cause error) error {
	if err := docStore.FailProcessing(ctx, documentId, reason); err != nil {
		logger.Error("cannot mark document failed", "documentId", documentId, "error", err)
	}
	metrics.CaptureDocumentProcessed("failed")
	return cause
}
