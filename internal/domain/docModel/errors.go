package docModel

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation marks rejected caller input.
	ErrValidation = errors.New("invalid request")
	// ErrNotFound marks a missing document or chunk.
	ErrNotFound = errors.New("not found")
	// ErrDataIntegrity marks stored data that cannot be used, e.g. an
	// embedding whose dimensionality does not match the deployment.
	ErrDataIntegrity = errors.New("data integrity violation")
)

// ProviderError wraps a failure from an embedding/completion provider.
// Transient failures (429, 502, 503, attempt timeouts) are retried by the
// gateway; everything else fails immediately.
type ProviderError struct {
	Provider   string
	StatusCode int
	Transient  bool
	Err        error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider %s: status %d: %v", e.Provider, e.StatusCode, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

func IsTransient(err error) bool {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Transient
	}
	return false
}
