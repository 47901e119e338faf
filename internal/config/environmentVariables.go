package config

import (
	"log/slog"
	"time"
)

const (
	IS_PROD                         = false
	LOG_LEVEL_PROD                  = slog.LevelInfo
	FALLBACK_REDIS_TO_INTERNALSTORE = true //if redis init fails, documents and cache fall back to in-memory stores
	TRACE_ID_KEY                    = "traceId"
	RATE_LIMIT_PER_SECOND           = 2
	BURST_RATE_LIMIT_PER_SECOND     = 5

	//retrieval
	DefaultTopK                = 10
	MaxTopK                    = 50
	DefaultSimilarityThreshold = 0.5
	SemanticCacheTTL           = 1 * time.Hour

	//chunking
	MaxChunkChars             = 1000
	UnstructuredMaxChunkChars = 3000
	ChunkOverlapRatio         = 0.15
	MinChunkOverlapRatio      = 0.10
	MaxChunkOverlapRatio      = 0.20

	//embeddings
	//all providers are asked for this dimensionality; the stores reject anything else
	EmbeddingOutputDimensionality = 1536
	EmbedBatchSize                = 100

	GoogleEmbeddingModel = "gemini-embedding-001"
	GeminiModelName      = "gemini-2.5-flash-lite-preview-09-2025"
	OpenAIEmbeddingModel = "text-embedding-3-small"
	OpenAIChatModel      = "gpt-4o-mini"

	//gateway retry budget: first attempt + up to MaxEmbeddingRetries retries at 1s, 2s, 4s
	MaxEmbeddingRetries   = 3
	RetryBaseDelay        = 1 * time.Second
	EmbeddingCallTimeout  = 30 * time.Second
	CompletionCallTimeout = 90 * time.Second

	//ingestion
	IngestJobTimeout  = 5 * time.Minute
	ExtractionTimeout = 10 * time.Second

	RequestsPerNewWorkerCount int64 = 10
	MaxWorkerCount            int64 = 10
	MinWorkerCount            int64 = 1
	IdleWorkerTimeout               = 1 * time.Minute

	//serverTimeouts
	ReadTimeout            = 5 * time.Second
	WriteTimeout           = 2 * time.Minute //must outlive a completion call on /answer
	IdleTimeout            = 120 * time.Second
	ShutdownContextTimeout = 10 * time.Second

	//server listening port
	ServerListenAddr = ":3000"

	//ingest queue buffer limit
	BufferLimit = 100

	//llm answering
	ModelTemperature     = 0.2
	AnswerMaxTokens      = 1024
	AnswerSystemPrompt   = "You are a retrieval assistant. Answer using only the provided passages. If the passages do not contain the answer, say you don't know."
	AnswerNoContextReply = "No relevant passages were found in the indexed documents."

	MaxIdleConns        = 50
	MaxIdleConnsPerHost = 25
	IdleConnTimeout     = 60 * time.Second

	//providers
	ProviderOpenAI           = "openai"
	ProviderGemini           = "gemini"
	ProviderAzureOpenAI      = "azure"
	DefaultEmbeddingProvider = ProviderGemini

	//redis
	redisHost = "127.0.0.1"
	redisPort = "6379"
	RedisAddr = redisHost + ":" + redisPort

	//redis has 16 DBs we can use
	RedisDocumentStore = 0
	RedisCacheStore    = 1

	//documents persist until deleted; cache entries live SemanticCacheTTL
	RedisDocumentStoreTTL = 0 * time.Second
)
