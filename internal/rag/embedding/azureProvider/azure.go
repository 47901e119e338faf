package azureProvider

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/azure"
	"github.com/openai/openai-go/option"

	"github.com/raggio-engine/raggio/internal/config"
	"github.com/raggio-engine/raggio/internal/domain/docModel"
	"github.com/raggio-engine/raggio/internal/rag/embedding"
	"github.com/raggio-engine/raggio/pkg/logger_i"
)

var _ embedding.Provider = (*Client)(nil)

// Config is read from the environment once and never mutated. On Azure the
// model identifiers are deployment names, so both must be provided.
type Config struct {
	Endpoint            string
	APIKey              string
	APIVersion          string
	EmbeddingDeployment string
	ChatDeployment      string
	HTTPClient          *http.Client
}

type Client struct {
	api                 openai.Client
	embeddingDeployment string
	chatDeployment      string
	logger              *logger_i.Logger
}

func New(cfg Config) (*Client, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("azure: AZURE_OPENAI_ENDPOINT is not set")
	}
	if cfg.APIKey == "" {
		return nil, errors.New("azure: AZURE_OPENAI_API_KEY is not set")
	}
	if cfg.EmbeddingDeployment == "" || cfg.ChatDeployment == "" {
		return nil, errors.New("azure: embedding and chat deployment names are required")
	}
	if cfg.APIVersion == "" {
		cfg.APIVersion = "2024-06-01"
	}

	opts := []option.RequestOption{
		azure.WithEndpoint(cfg.Endpoint, cfg.APIVersion),
		azure.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(cfg.HTTPClient))
	}

	return &Client{
		api:                 openai.NewClient(opts...),
		embeddingDeployment: cfg.EmbeddingDeployment,
		chatDeployment:      cfg.ChatDeployment,
		logger:              logger_i.NewLogger("Azure OpenAI Provider"),
	}, nil
}

func (c *Client) Name() string {
	return config.ProviderAzureOpenAI
}

func (c *Client) Embed(ctx context.Context, text string, task embedding.TaskKind) ([]float32, error) {
	vectors, err := c.EmbedBatch(ctx, []string{text}, task)
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (c *Client) EmbedBatch(ctx context.Context, texts []string, task embedding.TaskKind) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	resp, err := c.api.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Input:      openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
		Model:      openai.EmbeddingModel(c.embeddingDeployment),
		Dimensions: openai.Int(int64(config.EmbeddingOutputDimensionality)),
	})
	if err != nil {
		return nil, classify(c.Name(), err)
	}
	if len(resp.Data) != len(texts) {
		return nil, malformed(c.Name(), fmt.Errorf("asked for %d embeddings, got %d", len(texts), len(resp.Data)))
	}

	vectors := make([][]float32, len(texts))
	for _, item := range resp.Data {
		idx := int(item.Index)
		if idx < 0 || idx >= len(vectors) {
			return nil, malformed(c.Name(), fmt.Errorf("embedding index %d out of range", idx))
		}
		v := make([]float32, len(item.Embedding))
		for i, f := range item.Embedding {
			v[i] = float32(f)
		}
		vectors[idx] = v
	}
	return vectors, nil
}

func (c *Client) Complete(ctx context.Context, messages []embedding.Message, opts embedding.CompletionOptions) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(c.chatDeployment),
		Temperature: openai.Float(opts.Temperature),
	}
	if opts.MaxTokens > 0 {
		params.MaxTokens = openai.Int(opts.MaxTokens)
	}
	for _, m := range messages {
		switch m.Role {
		case embedding.RoleSystem:
			params.Messages = append(params.Messages, openai.SystemMessage(m.Content))
		case embedding.RoleAssistant:
			params.Messages = append(params.Messages, openai.AssistantMessage(m.Content))
		default:
			params.Messages = append(params.Messages, openai.UserMessage(m.Content))
		}
	}

	resp, err := c.api.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", classify(c.Name(), err)
	}
	if len(resp.Choices) == 0 {
		return "", malformed(c.Name(), errors.New("completion returned no choices"))
	}
	return resp.Choices[0].Message.Content, nil
}

func classify(provider string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return err
	}
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return &docModel.ProviderError{
			Provider:   provider,
			StatusCode: apiErr.StatusCode,
			Transient:  transientStatus(apiErr.StatusCode),
			Err:        err,
		}
	}
	return &docModel.ProviderError{Provider: provider, Transient: true, Err: err}
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
