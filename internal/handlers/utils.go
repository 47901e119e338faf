package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"path/filepath"

	"github.com/raggio-engine/raggio/internal/adapter"
	"github.com/raggio-engine/raggio/internal/config"
	"github.com/raggio-engine/raggio/internal/domain/docModel"
)

func writeJsonResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		// Log the error but can't send a clean status code now
		logRH.Error("Error encoding response: %v", err)
	}
}

func validateContext(ctx context.Context) bool {
	logRH.With("traceId:", ctx.Value(config.TRACE_ID_KEY).(string))
	if ctx.Err() != nil {
		logRH.Warn("context error", ctx.Err())
		return false
	}

	select {
	case <-ctx.Done():
		logRH.Warn("context cancelled")
		return false
	default:
		return true

	}
}

func WriteErrorResponse(w http.ResponseWriter, httpCode int, id string, error string) {
	writeJsonResponse(w, httpCode, adapter.BadRequest(id, error, httpCode))
}

// writeDomainError maps the error taxonomy onto HTTP statuses. Transient
// provider failures and timeouts come back retryable, everything else is
// final for the request as sent.
func writeDomainError(w http.ResponseWriter, id string, err error) {
	var providerErr *docModel.ProviderError

	switch {
	case errors.Is(err, errQueueFull):
		WriteErrorResponse(w, http.StatusServiceUnavailable, id, errQueueFull.Error())
	case errors.Is(err, docModel.ErrValidation):
		WriteErrorResponse(w, http.StatusBadRequest, id, err.Error())
	case errors.Is(err, docModel.ErrNotFound):
		WriteErrorResponse(w, http.StatusNotFound, id, err.Error())
	case errors.As(err, &providerErr):
		if providerErr.Transient {
			WriteErrorResponse(w, http.StatusServiceUnavailable, id, "embedding provider unavailable")
		} else {
			WriteErrorResponse(w, http.StatusBadGateway, id, "embedding provider rejected the request")
		}
	case errors.Is(err, context.DeadlineExceeded):
		WriteErrorResponse(w, http.StatusServiceUnavailable, id, "embedding provider timed out")
	default:
		logRH.Error("unmapped error reached the handler", "error", err)
		WriteErrorResponse(w, http.StatusInternalServerError, id, "internal error")
	}
}

func getTargetDirectory() (string, string) {
	root, err := os.Getwd()
	if err != nil {
		return "", "Storage Error"
	}

	targetDir := filepath.Join(root, "temporary_data")
	if err := os.MkdirAll(targetDir, 0750); err != nil {
		return "", "Storage Error"
	}
	return targetDir, ""
}
