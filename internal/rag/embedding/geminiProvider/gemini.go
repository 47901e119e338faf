package geminiProvider

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"google.golang.org/genai"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/raggio-engine/raggio/internal/config"
	"github.com/raggio-engine/raggio/internal/domain/docModel"
	"github.com/raggio-engine/raggio/internal/rag/embedding"
	"github.com/raggio-engine/raggio/pkg/logger_i"
)

var _ embedding.Provider = (*Client)(nil)

var dimension int32 = config.EmbeddingOutputDimensionality

type Client struct {
	genAi           *genai.Client
	embeddingModel  string
	generativeModel string
	logger          *logger_i.Logger
}

func New(ctx context.Context, apiKey string) (*Client, error) {
	if apiKey == "" {
		return nil, errors.New("gemini: GEMINI_API_KEY is not set")
	}

	c, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}

	return &Client{
		genAi:           c,
		embeddingModel:  config.GoogleEmbeddingModel,
		generativeModel: config.GeminiModelName,
		logger:          logger_i.NewLogger("Gemini Provider"),
	}, nil
}

func (c *Client) Name() string {
	return config.ProviderGemini
}

func (c *Client) Embed(ctx context.Context, text string, task embedding.TaskKind) ([]float32, error) {
	result, err := c.genAi.Models.EmbedContent(ctx, c.embeddingModel, genai.Text(text), c.embedConfig(task))
	if err != nil {
		return nil, classify(c.Name(), err)
	}
	if result == nil || len(result.Embeddings) == 0 {
		return nil, malformed(c.Name(), errors.New("no embedding returned"))
	}
	return result.Embeddings[0].Values, nil
}

func (c *Client) EmbedBatch(ctx context.Context, texts []string, task embedding.TaskKind) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	contents := make([]*genai.Content, 0, len(texts))
	for _, text := range texts {
		contents = append(contents, &genai.Content{
			Parts: []*genai.Part{{Text: text}},
		})
	}

	result, err := c.genAi.Models.EmbedContent(ctx, c.embeddingModel, contents, c.embedConfig(task))
	if err != nil {
		return nil, classify(c.Name(), err)
	}
	if result == nil || len(result.Embeddings) != len(texts) {
		got := 0
		if result != nil {
			got = len(result.Embeddings)
		}
		return nil, malformed(c.Name(), fmt.Errorf("asked for %d embeddings, got %d", len(texts), got))
	}

	vectors := make([][]float32, len(texts))
	for i, e := range result.Embeddings {
		vectors[i] = e.Values
	}
	return vectors, nil
}

func (c *Client) Complete(ctx context.Context, messages []embedding.Message, opts embedding.CompletionOptions) (string, error) {
	var systemParts []*genai.Part
	var contents []*genai.Content
	for _, m := range messages {
		switch m.Role {
		case embedding.RoleSystem:
			systemParts = append(systemParts, &genai.Part{Text: m.Content})
		case embedding.RoleAssistant:
			contents = append(contents, &genai.Content{Role: "model", Parts: []*genai.Part{{Text: m.Content}}})
		default:
			contents = append(contents, &genai.Content{Role: "user", Parts: []*genai.Part{{Text: m.Content}}})
		}
	}

	temperature := float32(opts.Temperature)
	contentConfig := &genai.GenerateContentConfig{
		Temperature: &temperature,
	}
	if len(systemParts) > 0 {
		contentConfig.SystemInstruction = &genai.Content{Parts: systemParts}
	}
	if opts.MaxTokens > 0 {
		contentConfig.MaxOutputTokens = int32(opts.MaxTokens)
	}

	result, err := c.genAi.Models.GenerateContent(ctx, c.generativeModel, contents, contentConfig)
	if err != nil {
		return "", classify(c.Name(), err)
	}
	if result == nil {
		return "", malformed(c.Name(), errors.New("empty generation response"))
	}
	return result.Text(), nil
}

// embedConfig maps the task kind onto Gemini's retrieval task types so
// query and document vectors land in the matched embedding space.
func (c *Client) embedConfig(task embedding.TaskKind) *genai.EmbedContentConfig {
	taskType := "RETRIEVAL_DOCUMENT"
	if task == embedding.TaskQueryEmbedding {
		taskType = "RETRIEVAL_QUERY"
	}
	return &genai.EmbedContentConfig{
		OutputDimensionality: &dimension,
		TaskType:             taskType,
	}
}

func classify(provider string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return err
	}

	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return &docModel.ProviderError{
			Provider:   provider,
			StatusCode: apiErr.Code,
			Transient:  transientStatus(apiErr.Code),
			Err:        err,
		}
	}

	//the SDK talks gRPC on some backends; rate limiting shows up as a status
	if s, ok := status.FromError(err); ok && err != nil {
		switch s.Code() {
		case codes.ResourceExhausted:
			return &docModel.ProviderError{Provider: provider, StatusCode: http.StatusTooManyRequests, Transient: true, Err: err}
		case codes.Unavailable:
			return &docModel.ProviderError{Provider: provider, StatusCode: http.StatusServiceUnavailable, Transient: true, Err: err}
		}
	}

	return &docModel.ProviderError{Provider: provider, Transient: false, Err: err}
}

func transientStatus(code int) bool {
	switch code {
	case http.StatusTooManyRequests, http.StatusBadGateway, http.StatusServiceUnavailable:
		return true
	}
	return false
}

func malformed(provider string, err error) error {
	return &docModel.ProviderError{Provider: provider, Transient: false, Err: err}
}
