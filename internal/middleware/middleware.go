package middleware

import (
	"net/http"
	"strconv"

	"github.com/raggio-engine/raggio/internal/handlers"
	"github.com/raggio-engine/raggio/internal/metrics"
	"github.com/raggio-engine/raggio/pkg/logger_i"
)

type requestResponseStruct struct {
	writer     http.ResponseWriter
	req        *http.Request
	badRequest failureStruct
	logger     *logger_i.Logger
}

type failureStruct struct {
	isBadRequest bool
	httpCode     int
	errorMessage string
	id           string
}

var GetHandler = Wrap(handlers.GetHandler)

var SearchHandler = Wrap(handlers.SearchHandler)
var AnswerHandler = Wrap(handlers.AnswerHandler)
var PostDocumentHandler = Wrap(handlers.PostDocumentHandler)
var PostDocumentTextHandler = Wrap(handlers.PostDocumentTextHandler)
var ReingestDocumentHandler = Wrap(handlers.ReingestDocumentHandler)
var GetDocumentStatusHandler = Wrap(handlers.GetDocumentStatusHandler)
var ListDocumentsHandler = Wrap(handlers.ListDocumentsHandler)
var DeleteDocumentHandler = Wrap(handlers.DeleteDocumentHandler)
var AnnotateChunkHandler = Wrap(handlers.AnnotateChunkHandler)

func Wrap(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec := &metrics.HttpStatusRecorder{ResponseWriter: w, Status: 200} //metrics
		re := processRequest(requestResponseStruct{req: r, writer: rec})

		if !re.badRequest.isBadRequest {
			next(rec, re.req)
		}

		metrics.HttpRequestsTotal.WithLabelValues(r.URL.Path, strconv.Itoa(rec.Status)).Inc() //metrics
	}
}
func processRequest(re requestResponseStruct) requestResponseStruct {
	re.logger = logger_i.NewLogger("middleware")
	re.logger.Info("New request received")
	re = injectTrace(re)
	if re.badRequest.isBadRequest {
		handleBadRequest(re)
		return re
	}
	re = rateLimiter(re)
	if re.badRequest.isBadRequest {
		handleBadRequest(re)
		return re //stop here if rate limit fails
	}

	return re
}
