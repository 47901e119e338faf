package customHttpClient

import (
	"net/http"

	"github.com/raggio-engine/raggio/internal/config"
)

// NewPooledClient returns an http client with its own pooled transport.
// Each provider receives one at construction and never mutates it; request
// deadlines come from contexts, not from the client.
func NewPooledClient() *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			MaxIdleConns:        config.MaxIdleConns,
			MaxIdleConnsPerHost: config.MaxIdleConnsPerHost,
			IdleConnTimeout:     config.IdleConnTimeout,
		},
	}
}
