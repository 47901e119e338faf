package worker

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/raggio-engine/raggio/internal/config"
	"github.com/raggio-engine/raggio/internal/domain/docModel"
	"github.com/raggio-engine/raggio/internal/metrics"
)

func executeTask(currentTask docModel.IngestTask) {
	start := time.Now()
	status := "completed"
	defer func() {
		// Record total time at the end
		metrics.CaptureIngestMetrics(status, time.Since(start))
	}()

	ctxTrace := context.WithValue(context.Background(), config.TRACE_ID_KEY, currentTask.TraceId)
	ctx, cancel := context.WithTimeout(ctxTrace, config.IngestJobTimeout)
	defer cancel()

	log := logger.With("traceId", currentTask.TraceId, "documentId", currentTask.DocumentId)
	log.Debug("Processing ingest task")

	defer func() {
		if r := recover(); r != nil {
			status = "panic"
			log.Error("ingest task panicked", "panic", r)
			if err := _taskService.DocumentStore.FailProcessing(ctx, currentTask.DocumentId, "internal error while processing document"); err != nil {
				log.Error("cannot mark document failed after panic", "error", err)
			}
		}
	}()

	if err := _ragService.IngestDocument(ctx, currentTask); err != nil {
		status = "failed"
		log.Error("ingest task failed", "error", err)
		return
	}
	log.Info("ingest task completed")
}

func removeWorker(reason string) {

	workerWaitGroup.Done()
	atomic.AddInt64(&currentWorkerCount, -1)
	logger.Info("Removed worker ", "reason", reason, "workerCount", currentWorkerCount)
	metrics.DecrementActiveWorkerCount()

}

// tryRetire shrinks the pool by one unless that would take it below its
// minimum size. The count check and the decrement are a single CAS, so two
// idle workers cannot both claim the last slot above the minimum.
func tryRetire(reason string) bool {
	for {
		current := atomic.LoadInt64(&currentWorkerCount)
		if current <= atomic.LoadInt64(&minWorkerCount) {
			return false
		}
		if atomic.CompareAndSwapInt64(&currentWorkerCount, current, current-1) {
			workerWaitGroup.Done()
			logger.Info("Removed worker ", "reason", reason, "workerCount", current-1)
			metrics.DecrementActiveWorkerCount()
			return true
		}
	}
}
