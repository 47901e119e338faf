package handlers

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/raggio-engine/raggio/internal/adapter"
	"github.com/raggio-engine/raggio/internal/api"
	"github.com/raggio-engine/raggio/internal/config"
	"github.com/raggio-engine/raggio/internal/domain/docModel"
	"github.com/raggio-engine/raggio/internal/metrics"
	"github.com/raggio-engine/raggio/internal/rag"
	"github.com/raggio-engine/raggio/internal/task"
	"github.com/raggio-engine/raggio/pkg/logger_i"
)

var (
	handlerInstance *DocumentHandler //private singleton
	once            sync.Once
	logDH           *logger_i.Logger

	errQueueFull      = errors.New("ingest queue is full")
	errServiceOffline = errors.New("document handler is not initialized")
)

type DocumentHandler struct {
	service *task.Service
	rag     rag.Service
}

func InitDocumentHandler(taskService *task.Service, ragService rag.Service) {
	once.Do(func() {
		handlerInstance = &DocumentHandler{service: taskService, rag: ragService}

		logDH = logger_i.NewLogger("DocumentHandler")
		logRH = logger_i.NewLogger("RequestHandler")
		logDH.Info("Starting document handler")
	})

}

// QueueNewDocument registers a document as Pending and queues its ingest
// task. When the queue is full the registration rolls back so the id never
// lingers as a ghost Pending document.
func QueueNewDocument(data newIngestData) (string, error) {
	if handlerInstance == nil {
		return "", errServiceOffline
	}
	ctxC := context.WithValue(context.Background(), config.TRACE_ID_KEY, data.traceId)
	log := logDH.With("traceId", data.traceId, "documentId", data.documentId)

	now := time.Now()
	doc := docModel.Document{
		Id:         data.documentId,
		Name:       data.name,
		SourcePath: data.sourcePath,
		Status:     docModel.DocumentStatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := handlerInstance.service.DocumentStore.SaveDocument(ctxC, doc); err != nil {
		return "", err
	}

	if err := handlerInstance.pushToTaskChannel(data); err != nil {
		if delErr := handlerInstance.service.DocumentStore.DeleteDocument(ctxC, data.documentId); delErr != nil {
			log.Error("cannot remove document after enqueue failure", "error", delErr)
		}
		return "", err
	}
	log.Info("Queued new document")
	return data.documentId, nil
}

// QueueReingest queues a re-process task for a document that already exists.
// The stored chunks stay in place until the worker swaps them out.
func QueueReingest(data newIngestData) error {
	if handlerInstance == nil {
		return errServiceOffline
	}
	ctxC := context.WithValue(context.Background(), config.TRACE_ID_KEY, data.traceId)

	if _, err := handlerInstance.service.DocumentStore.GetDocument(ctxC, data.documentId); err != nil {
		return err
	}
	return handlerInstance.pushToTaskChannel(data)
}

func GetDocumentStatus(id string, traceId string) (docModel.Document, int, error) {
	if handlerInstance == nil {
		return docModel.Document{}, 0, errServiceOffline
	}
	ctxC := context.WithValue(context.Background(), config.TRACE_ID_KEY, traceId)

	doc, err := handlerInstance.service.DocumentStore.GetDocument(ctxC, id)
	if err != nil {
		return docModel.Document{}, 0, err
	}
	chunks, _ := handlerInstance.service.DocumentStore.GetChunks(ctxC, id)
	return doc, len(chunks), nil
}

func SearchDocuments(ctx context.Context, query rag.SearchQuery) (rag.SearchOutput, error) {
	if handlerInstance == nil {
		return rag.SearchOutput{}, errServiceOffline
	}
	return handlerInstance.rag.Search(ctx, query)
}

func AnswerQuestion(ctx context.Context, query rag.SearchQuery) (rag.AnswerOutput, error) {
	if handlerInstance == nil {
		return rag.AnswerOutput{}, errServiceOffline
	}
	return handlerInstance.rag.Answer(ctx, query)
}

func AnnotateChunk(ctx context.Context, documentId string, chunkId string, patch rag.AnnotationPatch) (docModel.Chunk, error) {
	if handlerInstance == nil {
		return docModel.Chunk{}, errServiceOffline
	}
	return handlerInstance.rag.AnnotateChunk(ctx, documentId, chunkId, patch)
}

func RemoveDocument(ctx context.Context, documentId string) error {
	if handlerInstance == nil {
		return errServiceOffline
	}
	return handlerInstance.rag.DeleteDocument(ctx, documentId)
}

func ListDocumentSummaries(traceId string) ([]api.DocumentResponse, error) {
	if handlerInstance == nil {
		return nil, errServiceOffline
	}
	ctxC := context.WithValue(context.Background(), config.TRACE_ID_KEY, traceId)

	docs, err := handlerInstance.service.DocumentStore.ListDocuments(ctxC)
	if err != nil {
		return nil, err
	}

	summaries := make([]api.DocumentResponse, 0, len(docs))
	for _, doc := range docs {
		chunks, _ := handlerInstance.service.DocumentStore.GetChunks(ctxC, doc.Id)
		summaries = append(summaries, adapter.ToDocumentResponse(doc, len(chunks)))
	}
	return summaries, nil
}

// private methods
func (h *DocumentHandler) pushToTaskChannel(data newIngestData) error {

	ingestTask := docModel.IngestTask{
		DocumentId: data.documentId,
		TraceId:    data.traceId,
		FilePath:   data.filePath,
		RawText:    data.rawText,
		Inline:     data.inline,
	}

	select {
	case h.service.TaskChannel <- ingestTask:
		//the queue is bounded, shed load instead of stalling the handler
	default:
		logDH.Warn("Ingest queue is full ", "documentId", data.documentId)
		return errQueueFull
	}

	//metrics
	metrics.IncrementTasksInQueue()
	logDH.Info("Queued ingest task")

	//file ingestion involves extraction plus batched embedding calls - an
	//external system call that might take time - so every file nudges the
	//dispatcher for a worker
	//inline text is light enough to share the pool, it only asks for a new
	//worker every N requests
	//workers are removed again after idle time - so it should be ok
	//this also allows us to only keep 1 worker running at most times therefore cutting resource spend

	accurateCount := atomic.AddInt64(&h.service.RequestCount, 1) //after sending a request increment counter
	if accurateCount%config.RequestsPerNewWorkerCount == 0 || !data.inline {
		metrics.StartDispatcherSignalCount() //metrics
		logDH.Debug("Worker count ", accurateCount)
		h.service.DispatcherChannel <- true
	}
	return nil
}
