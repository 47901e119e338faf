package embedding

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/raggio-engine/raggio/internal/config"
	"github.com/raggio-engine/raggio/internal/domain/docModel"
	"github.com/raggio-engine/raggio/internal/metrics"
	"github.com/raggio-engine/raggio/pkg/logger_i"
)

// Gateway fronts a Provider and owns everything the vendors should not:
// per-call timeouts, the retry budget and batching. Transient failures
// (429/502/503 and attempt timeouts) are retried up to maxRetries times
// with exponential backoff; everything else surfaces immediately. When the
// budget runs out the last observed error is returned.
type Gateway struct {
	provider        Provider
	maxRetries      int
	baseDelay       time.Duration
	embedTimeout    time.Duration
	completeTimeout time.Duration
	batchSize       int
	logger          *logger_i.Logger
}

func NewGateway(provider Provider) *Gateway {
	return &Gateway{
		provider:        provider,
		maxRetries:      config.MaxEmbeddingRetries,
		baseDelay:       config.RetryBaseDelay,
		embedTimeout:    config.EmbeddingCallTimeout,
		completeTimeout: config.CompletionCallTimeout,
		batchSize:       config.EmbedBatchSize,
		logger:          logger_i.NewLogger("Embedding Gateway"),
	}
}

// NewTestGateway builds a gateway with caller-controlled pacing so tests
// do not sleep through the real backoff schedule.
func NewTestGateway(provider Provider, maxRetries int, baseDelay time.Duration, callTimeout time.Duration, batchSize int) *Gateway {
	return &Gateway{
		provider:        provider,
		maxRetries:      maxRetries,
		baseDelay:       baseDelay,
		embedTimeout:    callTimeout,
		completeTimeout: callTimeout,
		batchSize:       batchSize,
		logger:          logger_i.NewLogger("Embedding Gateway"),
	}
}

func (g *Gateway) ProviderName() string {
	return g.provider.Name()
}

func (g *Gateway) Embed(ctx context.Context, text string, task TaskKind) ([]float32, error) {
	var vector []float32
	err := g.callWithRetry(ctx, "embed", g.embedTimeout, func(callCtx context.Context) error {
		v, callErr := g.provider.Embed(callCtx, text, task)
		if callErr != nil {
			return callErr
		}
		vector = v
		return nil
	})
	if err != nil {
		return nil, err
	}
	return vector, nil
}

// EmbedBatch embeds texts in provider calls of at most batchSize inputs.
// The retry budget applies per call, so one flaky batch does not restart
// the whole document.
func (g *Gateway) EmbedBatch(ctx context.Context, texts []string, task TaskKind) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	vectors := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += g.batchSize {
		end := start + g.batchSize
		if end > len(texts) {
			end = len(texts)
		}
		batch := texts[start:end]

		var batchVectors [][]float32
		err := g.callWithRetry(ctx, "embed_batch", g.embedTimeout, func(callCtx context.Context) error {
			v, callErr := g.provider.EmbedBatch(callCtx, batch, task)
			if callErr != nil {
				return callErr
			}
			batchVectors = v
			return nil
		})
		if err != nil {
			return nil, err
		}
		if len(batchVectors) != len(batch) {
			return nil, &docModel.ProviderError{
				Provider:  g.provider.Name(),
				Transient: false,
				Err:       fmt.Errorf("provider returned %d vectors for %d inputs", len(batchVectors), len(batch)),
			}
		}
		vectors = append(vectors, batchVectors...)
	}
	return vectors, nil
}

func (g *Gateway) Complete(ctx context.Context, messages []Message, opts CompletionOptions) (string, error) {
	var answer string
	err := g.callWithRetry(ctx, "complete", g.completeTimeout, func(callCtx context.Context) error {
		text, callErr := g.provider.Complete(callCtx, messages, opts)
		if callErr != nil {
			return callErr
		}
		answer = text
		return nil
	})
	if err != nil {
		return "", err
	}
	return answer, nil
}

func (g *Gateway) callWithRetry(ctx context.Context, op string, timeout time.Duration, call func(context.Context) error) error {
	var lastErr error

	for attempt := 0; attempt <= g.maxRetries; attempt++ {
		if attempt > 0 {
			delay := g.baseDelay << (attempt - 1) //1s, 2s, 4s
			g.logger.Warn("transient provider failure, backing off",
				"provider", g.provider.Name(), "op", op, "attempt", attempt, "delay", delay.String(), "error", lastErr)
			metrics.CaptureProviderRetry(g.provider.Name(), op)
			select {
			case <-ctx.Done():
				return lastErr
			case <-time.After(delay):
			}
		}

		callCtx, cancel := context.WithTimeout(ctx, timeout)
		err := call(callCtx)
		cancel()
		if err == nil {
			return nil
		}
		lastErr = err

		if ctx.Err() != nil {
			//the caller is gone, nothing left to retry for
			return lastErr
		}
		if !retryable(err) {
			return err
		}
	}
	return lastErr
}

// retryable treats an attempt timeout like any other transient failure;
// the budget check in callWithRetry bounds how often that can happen.
func retryable(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	return docModel.IsTransient(err)
}
