package embedding

import "context"

type TaskKind string

// Task kinds let a provider pick the right model or deployment per call.
// Gemini additionally maps them onto its retrieval task types.
const (
	TaskDocumentEmbedding TaskKind = "document_embedding"
	TaskQueryEmbedding    TaskKind = "query_embedding"
	TaskAnswerGeneration  TaskKind = "answer_generation"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Message struct {
	Role    string
	Content string
}

type CompletionOptions struct {
	MaxTokens   int64 //0 means the provider default
	Temperature float64
	Task        TaskKind
}

// Provider is the single capability surface every vendor implements. The
// set of implementations is closed: openaiProvider, geminiProvider and
// azureProvider, chosen by providerFactory. Implementations return
// *docModel.ProviderError with the Transient flag set so the gateway can
// decide what to retry.
type Provider interface {
	Name() string
	Embed(ctx context.Context, text string, task TaskKind) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string, task TaskKind) ([][]float32, error)
	Complete(ctx context.Context, messages []Message, opts CompletionOptions) (string, error)
}
