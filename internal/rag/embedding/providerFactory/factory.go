package providerFactory

import (
	"context"
	"fmt"
	"os"

	"github.com/raggio-engine/raggio/internal/config"
	"github.com/raggio-engine/raggio/internal/customHttpClient"
	"github.com/raggio-engine/raggio/internal/rag/embedding"
	"github.com/raggio-engine/raggio/internal/rag/embedding/azureProvider"
	"github.com/raggio-engine/raggio/internal/rag/embedding/geminiProvider"
	"github.com/raggio-engine/raggio/internal/rag/embedding/openaiProvider"
)

// Settings is the provider selection, read from the environment exactly
// once at startup and immutable afterwards.
type Settings struct {
	Kind string

	OpenAIAPIKey string
	GeminiAPIKey string

	Azure azureProvider.Config
}

func SettingsFromEnv() Settings {
	kind := os.Getenv("EMBEDDING_PROVIDER")
	if kind == "" {
		kind = config.DefaultEmbeddingProvider
	}
	return Settings{
		Kind:         kind,
		OpenAIAPIKey: os.Getenv("OPENAI_API_KEY"),
		GeminiAPIKey: os.Getenv("GEMINI_API_KEY"),
		Azure: azureProvider.Config{
			Endpoint:            os.Getenv("AZURE_OPENAI_ENDPOINT"),
			APIKey:              os.Getenv("AZURE_OPENAI_API_KEY"),
			APIVersion:          os.Getenv("AZURE_OPENAI_API_VERSION"),
			EmbeddingDeployment: os.Getenv("AZURE_OPENAI_EMBEDDING_DEPLOYMENT"),
			ChatDeployment:      os.Getenv("AZURE_OPENAI_CHAT_DEPLOYMENT"),
		},
	}
}

// New builds one of the three supported providers. Unknown names are an
// error, not a fallback: a typo must not silently change vendors.
func New(ctx context.Context, settings Settings) (embedding.Provider, error) {
	switch settings.Kind {
	case config.ProviderOpenAI:
		return openaiProvider.New(settings.OpenAIAPIKey, customHttpClient.NewPooledClient())
	case config.ProviderGemini:
		return geminiProvider.New(ctx, settings.GeminiAPIKey)
	case config.ProviderAzureOpenAI:
		azureCfg := settings.Azure
		azureCfg.HTTPClient = customHttpClient.NewPooledClient()
		return azureProvider.New(azureCfg)
	default:
		return nil, fmt.Errorf("unknown embedding provider %q (supported: %s, %s, %s)",
			settings.Kind, config.ProviderOpenAI, config.ProviderGemini, config.ProviderAzureOpenAI)
	}
}
